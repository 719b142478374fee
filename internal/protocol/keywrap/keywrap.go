package keywrap

import (
	"crypto/rand"
	"errors"
	"fmt"

	"golang.org/x/crypto/nacl/box"

	"sealkit/internal/codec"
	"sealkit/internal/crypto"
	"sealkit/internal/domain"
	"sealkit/internal/util/memzero"
)

const kekLabel = "sealkit-keywrap-v1|"

var (
	// ErrBadSignature is returned when the sender signature does not verify.
	ErrBadSignature = errors.New("wrapped key signature invalid")
	// ErrWrongRecipient is returned when a wrapped key is opened by another device.
	ErrWrongRecipient = errors.New("wrapped key is for another device")
	// ErrWrongSender is returned when the claimed sender does not match the wrapped key.
	ErrWrongSender = errors.New("wrapped key sender mismatch")
	// ErrSubjectMismatch is returned when a wrapped key is presented for another subject.
	ErrSubjectMismatch = errors.New("wrapped key subject mismatch")
	// ErrUnwrap is returned when the key cannot be decrypted.
	ErrUnwrap = errors.New("cannot unwrap key")
)

type transcript struct {
	Subject         string              `cbor:"1,keyasint"`
	RecipientUser   string              `cbor:"2,keyasint"`
	RecipientDevice domain.DeviceID     `cbor:"3,keyasint"`
	RecipientKey    domain.X25519Public `cbor:"4,keyasint"`
	SenderUser      domain.UserID       `cbor:"5,keyasint"`
	SenderDevice    domain.DeviceID     `cbor:"6,keyasint"`
	SenderKey       domain.X25519Public `cbor:"7,keyasint"`
	Ephemeral       domain.X25519Public `cbor:"8,keyasint"`
}

type anonymousPayload struct {
	Subject string `cbor:"1,keyasint"`
	Key     []byte `cbor:"2,keyasint"`
}

// Wrap seals key for recipient on behalf of sender.
func Wrap(
	sender domain.Identity,
	recipient domain.DevicePublic,
	subject string,
	key []byte,
	rights domain.RecipientRights,
) (domain.WrappedKey, error) {
	ephPriv, ephPub, err := crypto.GenerateX25519()
	if err != nil {
		return domain.WrappedKey{}, err
	}
	defer memzero.Key32((*[32]byte)(&ephPriv))

	t := transcript{
		Subject:         subject,
		RecipientUser:   recipient.UserID.String(),
		RecipientDevice: recipient.DeviceID,
		RecipientKey:    recipient.EncryptionKey,
		SenderUser:      sender.UserID,
		SenderDevice:    sender.DeviceID,
		SenderKey:       sender.XPub,
		Ephemeral:       ephPub,
	}
	ad, err := codec.Marshal(t)
	if err != nil {
		return domain.WrappedKey{}, err
	}

	ss, err := crypto.DH(sender.XPriv, recipient.EncryptionKey)
	if err != nil {
		return domain.WrappedKey{}, fmt.Errorf("static agreement: %w", err)
	}
	es, err := crypto.DH(ephPriv, recipient.EncryptionKey)
	if err != nil {
		return domain.WrappedKey{}, fmt.Errorf("ephemeral agreement: %w", err)
	}
	kek, err := deriveKEK(ss, es, ephPub, recipient.EncryptionKey, ad)
	if err != nil {
		return domain.WrappedKey{}, err
	}
	defer memzero.Zero(kek)

	nonce, ct, err := crypto.Seal(kek, key, ad)
	if err != nil {
		return domain.WrappedKey{}, err
	}
	return domain.WrappedKey{
		Subject:         subject,
		RecipientUser:   recipient.UserID.String(),
		RecipientDevice: recipient.DeviceID,
		RecipientKey:    recipient.EncryptionKey,
		SenderUser:      sender.UserID,
		SenderDevice:    sender.DeviceID,
		Ephemeral:       ephPub,
		Nonce:           nonce,
		Ciphertext:      ct,
		Signature:       crypto.SignEd25519(sender.EdPriv, signedBytes(ad, nonce, ct)),
		Rights:          rights,
	}, nil
}

// Unwrap verifies and opens wk with the recipient's keys. sender is the public record
// of the device named in wk. Keys wrapped for a retired encryption key of recipient
// are opened with that key.
func Unwrap(
	recipient domain.Identity,
	sender domain.DevicePublic,
	subject string,
	wk domain.WrappedKey,
) ([]byte, error) {
	if wk.Anonymous {
		return UnwrapAnonymous(recipient, subject, wk)
	}
	if wk.Subject != subject {
		return nil, ErrSubjectMismatch
	}
	if wk.RecipientDevice != recipient.DeviceID || wk.RecipientUser != recipient.UserID.String() {
		return nil, ErrWrongRecipient
	}
	recipient, ok := recipient.WithEncryptionKey(wk.RecipientKey)
	if !ok {
		return nil, ErrWrongRecipient
	}
	if wk.SenderDevice != sender.DeviceID || wk.SenderUser != sender.UserID {
		return nil, ErrWrongSender
	}

	ad, err := codec.Marshal(transcript{
		Subject:         wk.Subject,
		RecipientUser:   wk.RecipientUser,
		RecipientDevice: wk.RecipientDevice,
		RecipientKey:    recipient.XPub,
		SenderUser:      wk.SenderUser,
		SenderDevice:    wk.SenderDevice,
		SenderKey:       sender.EncryptionKey,
		Ephemeral:       wk.Ephemeral,
	})
	if err != nil {
		return nil, err
	}
	if !crypto.VerifyEd25519(sender.SigningKey, signedBytes(ad, wk.Nonce, wk.Ciphertext), wk.Signature) {
		return nil, ErrBadSignature
	}

	ss, err := crypto.DH(recipient.XPriv, sender.EncryptionKey)
	if err != nil {
		return nil, fmt.Errorf("static agreement: %w", err)
	}
	es, err := crypto.DH(recipient.XPriv, wk.Ephemeral)
	if err != nil {
		return nil, fmt.Errorf("ephemeral agreement: %w", err)
	}
	kek, err := deriveKEK(ss, es, wk.Ephemeral, recipient.XPub, ad)
	if err != nil {
		return nil, err
	}
	defer memzero.Zero(kek)

	key, err := crypto.Open(kek, wk.Nonce, wk.Ciphertext, ad)
	if err != nil {
		return nil, ErrUnwrap
	}
	return key, nil
}

// WrapAnonymous seals key for recipient without identifying the sender.
func WrapAnonymous(
	recipient domain.DevicePublic,
	subject string,
	key []byte,
	rights domain.RecipientRights,
) (domain.WrappedKey, error) {
	payload, err := codec.Marshal(anonymousPayload{Subject: subject, Key: key})
	if err != nil {
		return domain.WrappedKey{}, err
	}
	defer memzero.Zero(payload)

	pub := [32]byte(recipient.EncryptionKey)
	ct, err := box.SealAnonymous(nil, payload, &pub, rand.Reader)
	if err != nil {
		return domain.WrappedKey{}, err
	}
	return domain.WrappedKey{
		Subject:         subject,
		RecipientUser:   recipient.UserID.String(),
		RecipientDevice: recipient.DeviceID,
		RecipientKey:    recipient.EncryptionKey,
		Ciphertext:      ct,
		Anonymous:       true,
		Rights:          rights,
	}, nil
}

// UnwrapAnonymous opens a key sealed with WrapAnonymous.
func UnwrapAnonymous(recipient domain.Identity, subject string, wk domain.WrappedKey) ([]byte, error) {
	if wk.RecipientDevice != recipient.DeviceID {
		return nil, ErrWrongRecipient
	}
	recipient, ok := recipient.WithEncryptionKey(wk.RecipientKey)
	if !ok {
		return nil, ErrWrongRecipient
	}
	pub, priv := [32]byte(recipient.XPub), [32]byte(recipient.XPriv)
	defer memzero.Key32(&priv)

	raw, ok := box.OpenAnonymous(nil, wk.Ciphertext, &pub, &priv)
	if !ok {
		return nil, ErrUnwrap
	}
	defer memzero.Zero(raw)

	var p anonymousPayload
	if err := codec.Unmarshal(raw, &p); err != nil {
		return nil, ErrUnwrap
	}
	if p.Subject != subject || wk.Subject != subject {
		return nil, ErrSubjectMismatch
	}
	return p.Key, nil
}

func deriveKEK(ss, es [32]byte, eph, recipient domain.X25519Public, ad []byte) ([]byte, error) {
	ikm := make([]byte, 0, 64)
	ikm = append(ikm, ss[:]...)
	ikm = append(ikm, es[:]...)
	defer memzero.Zero(ikm)
	memzero.Key32(&ss)
	memzero.Key32(&es)

	salt := make([]byte, 0, 64)
	salt = append(salt, eph[:]...)
	salt = append(salt, recipient[:]...)
	return crypto.HKDF(ikm, salt, append([]byte(kekLabel), ad...), crypto.KeySize)
}

func signedBytes(ad, nonce, ct []byte) []byte {
	out := make([]byte, 0, len(ad)+len(nonce)+len(ct))
	out = append(out, ad...)
	out = append(out, nonce...)
	return append(out, ct...)
}
