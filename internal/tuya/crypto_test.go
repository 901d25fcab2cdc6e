package tuya

import (
	"bytes"
	"testing"
)

func TestDeriveKey(t *testing.T) {
	tests := []struct {
		name   string
		secret string
		want   []byte
	}{
		{
			name:   "hex secret decodes",
			secret: "000102030405060708090a0b0c0d0e0f",
			want:   []byte{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15},
		},
		{
			name:   "short secret zero padded",
			secret: "abc",
			want:   append([]byte("abc"), make([]byte, 13)...),
		},
		{
			name:   "long secret truncated",
			secret: "this secret is much longer than sixteen bytes",
			want:   []byte("this secret is m"),
		},
		{
			name:   "32 chars but not hex treated as utf-8",
			secret: "zzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzz",
			want:   []byte("zzzzzzzzzzzzzzzz"),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DeriveKey(tt.secret)
			if len(got) != KeySize {
				t.Fatalf("DeriveKey() length = %d, want %d", len(got), KeySize)
			}
			if !bytes.Equal(got, tt.want) {
				t.Errorf("DeriveKey() = % x, want % x", got, tt.want)
			}
		})
	}
}

func TestDeriveKeyDeterministic(t *testing.T) {
	a := DeriveKey("some local key")
	b := DeriveKey("some local key")
	if !bytes.Equal(a, b) {
		t.Error("DeriveKey() is not deterministic")
	}
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	key := DeriveKey("local-key")
	ct, err := EncryptPayload(key, "devid123", []byte{0x0C, 0x02, 0x00, 0x04, 0, 0, 0, 64})
	if err != nil {
		t.Fatalf("EncryptPayload() error = %v", err)
	}
	if len(ct)%KeySize != 0 {
		t.Errorf("ciphertext length = %d, want a multiple of %d", len(ct), KeySize)
	}

	pt, err := DecryptPayload(key, ct)
	if err != nil {
		t.Fatalf("DecryptPayload() error = %v", err)
	}
	want := append([]byte("devid123"), 0x0C, 0x02, 0x00, 0x04, 0, 0, 0, 64)
	if !bytes.Equal(pt, want) {
		t.Errorf("round trip = % x, want % x", pt, want)
	}
}

func TestEncryptEmptyPlaintext(t *testing.T) {
	key := DeriveKey("local-key")
	ct, err := EncryptPayload(key, "devid123", nil)
	if err != nil {
		t.Fatalf("EncryptPayload() error = %v", err)
	}
	pt, err := DecryptPayload(key, ct)
	if err != nil {
		t.Fatalf("DecryptPayload() error = %v", err)
	}
	if !bytes.Equal(pt, []byte("devid123")) {
		t.Errorf("round trip = % x, want device id alone", pt)
	}
}

func TestDecryptRejectsBadLength(t *testing.T) {
	key := DeriveKey("local-key")
	if _, err := DecryptPayload(key, []byte{1, 2, 3}); err == nil {
		t.Error("DecryptPayload() accepted a non-block-aligned ciphertext")
	}
	if _, err := DecryptPayload(key, nil); err == nil {
		t.Error("DecryptPayload() accepted an empty ciphertext")
	}
}
