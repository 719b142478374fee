package types

import (
	"encoding/base64"
	"fmt"
)

// Key material is carried as fixed-size arrays and encoded as unpadded base64url in
// JSON, so API payloads and stored records read the same way.

// X25519Public is a Curve25519 public key.
type X25519Public [32]byte

// X25519Private is a Curve25519 private key.
type X25519Private [32]byte

// Ed25519Public is an Ed25519 signing public key.
type Ed25519Public [32]byte

// Ed25519Private is an Ed25519 signing private key (seed followed by public key).
type Ed25519Private [64]byte

// Slice returns the key as a []byte.
func (p X25519Public) Slice() []byte { return p[:] }

// Slice returns the key as a []byte.
func (k X25519Private) Slice() []byte { return k[:] }

// Slice returns the key as a []byte.
func (p Ed25519Public) Slice() []byte { return p[:] }

// Slice returns the key as a []byte.
func (k Ed25519Private) Slice() []byte { return k[:] }

// IsZero reports whether the key is unset.
func (p X25519Public) IsZero() bool { return p == X25519Public{} }

// IsZero reports whether the key is unset.
func (p Ed25519Public) IsZero() bool { return p == Ed25519Public{} }

func (p X25519Public) String() string  { return encodeKey(p[:]) }
func (p Ed25519Public) String() string { return encodeKey(p[:]) }

func (p X25519Public) MarshalText() ([]byte, error)   { return []byte(encodeKey(p[:])), nil }
func (k X25519Private) MarshalText() ([]byte, error)  { return []byte(encodeKey(k[:])), nil }
func (p Ed25519Public) MarshalText() ([]byte, error)  { return []byte(encodeKey(p[:])), nil }
func (k Ed25519Private) MarshalText() ([]byte, error) { return []byte(encodeKey(k[:])), nil }

func (p *X25519Public) UnmarshalText(b []byte) error   { return decodeKey("x25519 public", b, p[:]) }
func (k *X25519Private) UnmarshalText(b []byte) error  { return decodeKey("x25519 private", b, k[:]) }
func (p *Ed25519Public) UnmarshalText(b []byte) error  { return decodeKey("ed25519 public", b, p[:]) }
func (k *Ed25519Private) UnmarshalText(b []byte) error { return decodeKey("ed25519 private", b, k[:]) }

func encodeKey(b []byte) string { return base64.RawURLEncoding.EncodeToString(b) }

func decodeKey(kind string, text []byte, dst []byte) error {
	raw, err := base64.RawURLEncoding.DecodeString(string(text))
	if err != nil {
		return fmt.Errorf("%s key: %w", kind, err)
	}
	if len(raw) != len(dst) {
		return fmt.Errorf("%s key: want %d bytes, got %d", kind, len(dst), len(raw))
	}
	copy(dst, raw)
	return nil
}
