package envelope

import (
	"errors"
	"fmt"

	"sealkit/internal/codec"
	"sealkit/internal/crypto"
	"sealkit/internal/domain"
)

// Version is the only envelope version this package reads and writes.
const Version = 1

// ContentType tells what the sealed plaintext is.
type ContentType uint8

const (
	// ContentMessage is a UTF-8 text message.
	ContentMessage ContentType = 1
	// ContentFile is a CBOR FilePayload.
	ContentFile ContentType = 2
)

var (
	// ErrMalformed is returned for input that is not an envelope.
	ErrMalformed = errors.New("malformed envelope")
	// ErrTooLarge is returned for envelopes above the decoder limit.
	ErrTooLarge = errors.New("envelope too large")
	// ErrUnsupportedVersion is returned for envelopes of another version.
	ErrUnsupportedVersion = errors.New("unsupported envelope version")
	// ErrSessionMismatch is returned when an envelope belongs to another session.
	ErrSessionMismatch = errors.New("envelope belongs to another session")
	// ErrBadSignature is returned when the sender signature is missing or invalid.
	ErrBadSignature = errors.New("envelope signature invalid")
	// ErrDecrypt is returned when the ciphertext does not authenticate.
	ErrDecrypt = errors.New("envelope decryption failed")
)

// Header is the clear part of an envelope.
type Header struct {
	Version      uint8            `cbor:"1,keyasint"`
	SessionID    domain.SessionID `cbor:"2,keyasint"`
	SenderUser   domain.UserID    `cbor:"3,keyasint,omitempty"`
	SenderDevice domain.DeviceID  `cbor:"4,keyasint,omitempty"`
	ContentType  ContentType      `cbor:"5,keyasint"`
	Nonce        []byte           `cbor:"6,keyasint"`
}

// Anonymous reports whether the envelope was sealed without a sender identity.
func (h Header) Anonymous() bool { return h.SenderUser == "" }

// Envelope is a sealed payload.
type Envelope struct {
	Header     Header `cbor:"1,keyasint"`
	Ciphertext []byte `cbor:"2,keyasint"`
	Signature  []byte `cbor:"3,keyasint,omitempty"`
}

// SignFunc signs the envelope transcript. Anonymous envelopes are never signed.
type SignFunc func(msg []byte) []byte

// VerifyFunc returns every signing key the device that sealed an envelope has held.
// Devices that renewed their keys still have older envelopes signed with a previous key.
type VerifyFunc func(user domain.UserID, device domain.DeviceID) ([]domain.Ed25519Public, error)

// IdentitySigner signs with the Ed25519 key of id.
func IdentitySigner(id domain.Identity) SignFunc {
	return func(msg []byte) []byte { return crypto.SignEd25519(id.EdPriv, msg) }
}

// Seal encrypts plaintext under key. The nonce in h is replaced by a fresh random one.
func Seal(key []byte, h Header, plaintext []byte, sign SignFunc) (Envelope, error) {
	if h.SessionID == "" {
		return Envelope{}, fmt.Errorf("seal: %w", ErrMalformed)
	}
	if !h.Anonymous() && sign == nil {
		return Envelope{}, fmt.Errorf("seal: sender %s has no signer: %w", h.SenderUser, ErrBadSignature)
	}
	h.Version = Version
	h.Nonce = nil
	ad, err := codec.Marshal(h)
	if err != nil {
		return Envelope{}, err
	}
	nonce, ct, err := crypto.Seal(key, plaintext, ad)
	if err != nil {
		return Envelope{}, err
	}
	h.Nonce = nonce
	env := Envelope{Header: h, Ciphertext: ct}
	if !h.Anonymous() {
		msg, err := transcript(env)
		if err != nil {
			return Envelope{}, err
		}
		env.Signature = sign(msg)
	}
	return env, nil
}

// Open checks that env belongs to session, verifies its signature when it names a
// sender, and decrypts it. verify may be nil only for anonymous envelopes.
func Open(key []byte, session domain.SessionID, env Envelope, verify VerifyFunc) ([]byte, error) {
	h := env.Header
	if h.Version != Version {
		return nil, ErrUnsupportedVersion
	}
	if h.SessionID != session {
		return nil, ErrSessionMismatch
	}
	if !h.Anonymous() {
		if verify == nil || len(env.Signature) == 0 {
			return nil, ErrBadSignature
		}
		pubs, err := verify(h.SenderUser, h.SenderDevice)
		if err != nil {
			return nil, fmt.Errorf("sender key: %w", err)
		}
		msg, err := transcript(env)
		if err != nil {
			return nil, err
		}
		verified := false
		for _, pub := range pubs {
			if crypto.VerifyEd25519(pub, msg, env.Signature) {
				verified = true
				break
			}
		}
		if !verified {
			return nil, ErrBadSignature
		}
	}

	aadHeader := h
	aadHeader.Nonce = nil
	ad, err := codec.Marshal(aadHeader)
	if err != nil {
		return nil, err
	}
	pt, err := crypto.Open(key, h.Nonce, env.Ciphertext, ad)
	if err != nil {
		return nil, ErrDecrypt
	}
	return pt, nil
}

func transcript(env Envelope) ([]byte, error) {
	hb, err := codec.Marshal(env.Header)
	if err != nil {
		return nil, err
	}
	return append(hb, env.Ciphertext...), nil
}
