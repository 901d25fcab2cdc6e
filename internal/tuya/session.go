package tuya

import (
	"errors"
	"log/slog"
	"math/rand"
)

// ErrNoSessionKey is returned when an encrypting command is encoded on a
// session without a derived key.
var ErrNoSessionKey = errors.New("tuya: no session key")

// Session holds the per-connection protocol state: the packet sequence
// counter and the derived session key. A Session lives for exactly one
// operation; it is created fresh before discovery and discarded on
// disconnect, error, or timeout, never persisted or reused.
type Session struct {
	deviceID string
	key      []byte
	seq      uint32
}

// NewSession derives the session key from the device's local key and seeds
// the sequence counter with a random value so packet sequences from separate
// sessions do not collide.
func NewSession(deviceID, secret string) *Session {
	return &Session{
		deviceID: deviceID,
		key:      DeriveKey(secret),
		seq:      rand.Uint32(),
	}
}

// DeviceID returns the authentication identifier carried in the Login packet.
func (s *Session) DeviceID() string { return s.deviceID }

// next increments the sequence counter, wrapping at 2^32, and returns the
// new value. The counter is bumped before every packet is built.
func (s *Session) next() uint32 {
	s.seq++
	return s.seq
}

// Encode builds a complete wire packet for cmd. Every command except Login
// has its payload encrypted under the session key; Login is sent in the
// clear. A missing key on an encrypting command is an encoding error. Any
// other encryption failure falls back to sending the plaintext, matching
// the leniency observed on the wire.
func (s *Session) Encode(cmd Command, payload []byte) ([]byte, error) {
	body := payload
	if cmd != CmdLogin {
		if len(s.key) == 0 {
			return nil, ErrNoSessionKey
		}
		enc, err := EncryptPayload(s.key, s.deviceID, payload)
		if err != nil {
			slog.Warn("[TUYA] payload encryption failed, sending plaintext", "cmd", cmd, "error", err)
		} else {
			body = enc
		}
	}
	return buildFrame(s.next(), cmd, body), nil
}
