package envelope

import (
	"bytes"
	"encoding/base64"
	"strings"

	"sealkit/internal/codec"
	"sealkit/internal/domain"
)

// MessagePrefix starts every text envelope.
const MessagePrefix = "sk1."

// FileMagic starts every binary envelope.
var FileMagic = []byte("SKF1")

// maxEncodedLen bounds an encoded envelope before it is decoded.
var maxEncodedLen = 1 << 30

// EncodeMessage returns the text form of env.
func EncodeMessage(env Envelope) (string, error) {
	raw, err := codec.Marshal(env)
	if err != nil {
		return "", err
	}
	return MessagePrefix + base64.RawURLEncoding.EncodeToString(raw), nil
}

// DecodeMessage parses the text form of an envelope.
func DecodeMessage(msg string) (Envelope, error) {
	body, ok := strings.CutPrefix(strings.TrimSpace(msg), MessagePrefix)
	if !ok {
		return Envelope{}, ErrMalformed
	}
	if base64.RawURLEncoding.DecodedLen(len(body)) > maxEncodedLen {
		return Envelope{}, ErrTooLarge
	}
	raw, err := base64.RawURLEncoding.DecodeString(body)
	if err != nil {
		return Envelope{}, ErrMalformed
	}
	return decode(raw)
}

// EncodeFile returns the binary form of env.
func EncodeFile(env Envelope) ([]byte, error) {
	raw, err := codec.Marshal(env)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, len(FileMagic)+len(raw))
	out = append(out, FileMagic...)
	return append(out, raw...), nil
}

// DecodeFile parses the binary form of an envelope.
func DecodeFile(b []byte) (Envelope, error) {
	raw, ok := bytes.CutPrefix(b, FileMagic)
	if !ok {
		return Envelope{}, ErrMalformed
	}
	return decode(raw)
}

// DecodeBytes accepts either form.
func DecodeBytes(b []byte) (Envelope, error) {
	if bytes.HasPrefix(b, FileMagic) {
		return DecodeFile(b)
	}
	return DecodeMessage(string(b))
}

// ParseSessionIDFromMessage reads the session ID of a text envelope.
func ParseSessionIDFromMessage(msg string) (domain.SessionID, error) {
	env, err := DecodeMessage(msg)
	if err != nil {
		return "", err
	}
	return env.Header.SessionID, nil
}

// ParseSessionIDFromFile reads the session ID of a binary envelope.
func ParseSessionIDFromFile(b []byte) (domain.SessionID, error) {
	env, err := DecodeFile(b)
	if err != nil {
		return "", err
	}
	return env.Header.SessionID, nil
}

// ParseSessionIDFromBytes reads the session ID of an envelope in either form.
func ParseSessionIDFromBytes(b []byte) (domain.SessionID, error) {
	env, err := DecodeBytes(b)
	if err != nil {
		return "", err
	}
	return env.Header.SessionID, nil
}

func decode(raw []byte) (Envelope, error) {
	if len(raw) > maxEncodedLen {
		return Envelope{}, ErrTooLarge
	}
	var env Envelope
	if err := codec.Unmarshal(raw, &env); err != nil {
		return Envelope{}, ErrMalformed
	}
	if env.Header.Version != Version {
		return Envelope{}, ErrUnsupportedVersion
	}
	if env.Header.SessionID == "" {
		return Envelope{}, ErrMalformed
	}
	return env, nil
}
