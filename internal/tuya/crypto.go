package tuya

import (
	"bytes"
	"crypto/aes"
	"encoding/hex"
	"fmt"
)

// KeySize is the session key length in bytes (AES-128).
const KeySize = 16

// DeriveKey turns the device's local key into a 16-byte session key.
// A secret of exactly 32 hex characters is decoded as hex; anything else is
// taken as UTF-8 bytes, truncated to 16 bytes if longer and right-padded
// with zeros if shorter. Deterministic: the same secret always yields the
// same key.
func DeriveKey(secret string) []byte {
	if len(secret) == hex.EncodedLen(KeySize) {
		if raw, err := hex.DecodeString(secret); err == nil {
			return raw
		}
	}
	key := make([]byte, KeySize)
	copy(key, secret)
	return key
}

// EncryptPayload encrypts deviceID || plaintext with AES-128-ECB under key.
// The device identifier is prepended so the peripheral can attribute the
// command after decryption. ECB with no IV or tag is what the devices speak
// on the wire; it carries no integrity guarantee.
func EncryptPayload(key []byte, deviceID string, plaintext []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("tuya: new cipher: %w", err)
	}
	data := pkcs7Pad(append([]byte(deviceID), plaintext...), block.BlockSize())
	out := make([]byte, len(data))
	for i := 0; i < len(data); i += block.BlockSize() {
		block.Encrypt(out[i:], data[i:])
	}
	return out, nil
}

// DecryptPayload is the inverse of EncryptPayload, returning the
// deviceID || plaintext concatenation with padding removed.
func DecryptPayload(key, ciphertext []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("tuya: new cipher: %w", err)
	}
	if len(ciphertext) == 0 || len(ciphertext)%block.BlockSize() != 0 {
		return nil, fmt.Errorf("tuya: ciphertext length %d is not a multiple of the block size", len(ciphertext))
	}
	out := make([]byte, len(ciphertext))
	for i := 0; i < len(ciphertext); i += block.BlockSize() {
		block.Decrypt(out[i:], ciphertext[i:])
	}
	return pkcs7Unpad(out, block.BlockSize())
}

// pkcs7Pad pads b to a multiple of size per PKCS#7.
func pkcs7Pad(b []byte, size int) []byte {
	n := size - len(b)%size
	return append(b, bytes.Repeat([]byte{byte(n)}, n)...)
}

// pkcs7Unpad strips PKCS#7 padding from b.
func pkcs7Unpad(b []byte, size int) ([]byte, error) {
	n := int(b[len(b)-1])
	if n == 0 || n > size || n > len(b) {
		return nil, fmt.Errorf("tuya: invalid padding length %d", n)
	}
	for _, c := range b[len(b)-n:] {
		if int(c) != n {
			return nil, fmt.Errorf("tuya: malformed padding")
		}
	}
	return b[:len(b)-n], nil
}
