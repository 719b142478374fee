package envelope_test

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sealkit/internal/crypto"
	"sealkit/internal/domain"
	"sealkit/internal/envelope"
)

type fixture struct {
	key    []byte
	sender domain.Identity
	verify envelope.VerifyFunc
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	key, err := crypto.RandomKey()
	require.NoError(t, err)
	keys, err := crypto.GeneratePrivateKeys()
	require.NoError(t, err)
	id := domain.Identity{
		UserID: "alice", DeviceID: "a1",
		XPriv: keys.XPriv, XPub: keys.XPub, EdPriv: keys.EdPriv, EdPub: keys.EdPub,
	}
	verify := func(user domain.UserID, device domain.DeviceID) ([]domain.Ed25519Public, error) {
		if user != id.UserID || device != id.DeviceID {
			return nil, errors.New("unknown device")
		}
		return []domain.Ed25519Public{id.EdPub}, nil
	}
	return fixture{key: key, sender: id, verify: verify}
}

func (f fixture) header(session domain.SessionID) envelope.Header {
	return envelope.Header{
		SessionID:    session,
		SenderUser:   f.sender.UserID,
		SenderDevice: f.sender.DeviceID,
		ContentType:  envelope.ContentMessage,
	}
}

func TestSealOpen_Message(t *testing.T) {
	f := newFixture(t)

	env, err := envelope.Seal(f.key, f.header("s1"), []byte("hello"), envelope.IdentitySigner(f.sender))
	require.NoError(t, err)
	msg, err := envelope.EncodeMessage(env)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(msg, envelope.MessagePrefix))

	sid, err := envelope.ParseSessionIDFromMessage(msg)
	require.NoError(t, err)
	assert.Equal(t, domain.SessionID("s1"), sid)

	decoded, err := envelope.DecodeMessage(msg)
	require.NoError(t, err)
	pt, err := envelope.Open(f.key, "s1", decoded, f.verify)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(pt))
}

func TestSeal_FreshNonces(t *testing.T) {
	f := newFixture(t)
	sign := envelope.IdentitySigner(f.sender)

	a, err := envelope.Seal(f.key, f.header("s1"), []byte("same"), sign)
	require.NoError(t, err)
	b, err := envelope.Seal(f.key, f.header("s1"), []byte("same"), sign)
	require.NoError(t, err)

	assert.NotEqual(t, a.Header.Nonce, b.Header.Nonce)
	assert.NotEqual(t, a.Ciphertext, b.Ciphertext)
}

func TestOpen_Rejections(t *testing.T) {
	f := newFixture(t)
	env, err := envelope.Seal(f.key, f.header("s1"), []byte("hello"), envelope.IdentitySigner(f.sender))
	require.NoError(t, err)

	_, err = envelope.Open(f.key, "s2", env, f.verify)
	assert.ErrorIs(t, err, envelope.ErrSessionMismatch)

	_, err = envelope.Open(f.key, "s1", env, nil)
	assert.ErrorIs(t, err, envelope.ErrBadSignature)

	tampered := env
	tampered.Ciphertext = bytes.Clone(env.Ciphertext)
	tampered.Ciphertext[0] ^= 1
	_, err = envelope.Open(f.key, "s1", tampered, f.verify)
	assert.ErrorIs(t, err, envelope.ErrBadSignature)

	other, err := crypto.RandomKey()
	require.NoError(t, err)
	_, err = envelope.Open(other, "s1", env, f.verify)
	assert.ErrorIs(t, err, envelope.ErrDecrypt)

	future := env
	future.Header.Version = 2
	_, err = envelope.Open(f.key, "s1", future, f.verify)
	assert.ErrorIs(t, err, envelope.ErrUnsupportedVersion)
}

func TestSeal_SenderNeedsSigner(t *testing.T) {
	f := newFixture(t)
	_, err := envelope.Seal(f.key, f.header("s1"), []byte("x"), nil)
	assert.ErrorIs(t, err, envelope.ErrBadSignature)
}

func TestSealOpen_Anonymous(t *testing.T) {
	f := newFixture(t)
	h := envelope.Header{SessionID: "s1", ContentType: envelope.ContentMessage}

	env, err := envelope.Seal(f.key, h, []byte("hi"), nil)
	require.NoError(t, err)
	assert.Empty(t, env.Signature)

	pt, err := envelope.Open(f.key, "s1", env, nil)
	require.NoError(t, err)
	assert.Equal(t, "hi", string(pt))
}

func TestFileForm(t *testing.T) {
	f := newFixture(t)
	content := bytes.Repeat([]byte("compressible "), 200)

	payload, err := envelope.MarshalFilePayload("notes.txt", content, envelope.CompressionZstd)
	require.NoError(t, err)
	assert.Less(t, len(payload), len(content))

	h := f.header("s1")
	h.ContentType = envelope.ContentFile
	env, err := envelope.Seal(f.key, h, payload, envelope.IdentitySigner(f.sender))
	require.NoError(t, err)
	file, err := envelope.EncodeFile(env)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(file, envelope.FileMagic))

	sid, err := envelope.ParseSessionIDFromBytes(file)
	require.NoError(t, err)
	assert.Equal(t, domain.SessionID("s1"), sid)

	decoded, err := envelope.DecodeFile(file)
	require.NoError(t, err)
	pt, err := envelope.Open(f.key, "s1", decoded, f.verify)
	require.NoError(t, err)
	p, err := envelope.UnmarshalFilePayload(pt)
	require.NoError(t, err)
	assert.Equal(t, "notes.txt", p.Filename)
	assert.Equal(t, content, p.Content)
	assert.NotEmpty(t, p.MessageID)
}

func TestFilePayload_Compression(t *testing.T) {
	random, err := crypto.RandomKey()
	require.NoError(t, err)
	repetitive := bytes.Repeat([]byte{7}, 4096)

	tests := []struct {
		name    string
		content []byte
		algo    envelope.Compression
		shrinks bool
	}{
		{"zstd repetitive", repetitive, envelope.CompressionZstd, true},
		{"lz4 repetitive", repetitive, envelope.CompressionLZ4, true},
		{"zstd random", random, envelope.CompressionZstd, false},
		{"lz4 random", random, envelope.CompressionLZ4, false},
		{"none", repetitive, envelope.CompressionNone, false},
		{"empty", nil, envelope.CompressionZstd, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, err := envelope.MarshalFilePayload("f", tt.content, tt.algo)
			require.NoError(t, err)
			if tt.shrinks {
				assert.Less(t, len(raw), len(tt.content))
			} else {
				assert.Greater(t, len(raw), len(tt.content))
			}
			p, err := envelope.UnmarshalFilePayload(raw)
			require.NoError(t, err)
			assert.Equal(t, len(tt.content), len(p.Content))
			assert.True(t, bytes.Equal(tt.content, p.Content))
		})
	}
}

func TestParseSessionID_Malformed(t *testing.T) {
	_, err := envelope.ParseSessionIDFromMessage("hello")
	assert.ErrorIs(t, err, envelope.ErrMalformed)
	_, err = envelope.ParseSessionIDFromMessage(envelope.MessagePrefix + "!!!")
	assert.ErrorIs(t, err, envelope.ErrMalformed)
	_, err = envelope.ParseSessionIDFromFile([]byte("SKF1garbage"))
	assert.ErrorIs(t, err, envelope.ErrMalformed)
	_, err = envelope.ParseSessionIDFromBytes([]byte{0x01})
	assert.ErrorIs(t, err, envelope.ErrMalformed)
}

func TestDecode_RejectsOversizedInput(t *testing.T) {
	f := newFixture(t)
	env, err := envelope.Seal(f.key, f.header("s1"), bytes.Repeat([]byte("x"), 512), envelope.IdentitySigner(f.sender))
	require.NoError(t, err)
	msg, err := envelope.EncodeMessage(env)
	require.NoError(t, err)
	file, err := envelope.EncodeFile(env)
	require.NoError(t, err)

	defer envelope.SetMaxEncodedLen(256)()

	_, err = envelope.DecodeMessage(msg)
	assert.ErrorIs(t, err, envelope.ErrTooLarge)
	_, err = envelope.DecodeFile(file)
	assert.ErrorIs(t, err, envelope.ErrTooLarge)
	_, err = envelope.ParseSessionIDFromBytes(file)
	assert.ErrorIs(t, err, envelope.ErrTooLarge)
}

func TestParseCompression(t *testing.T) {
	c, err := envelope.ParseCompression("lz4")
	require.NoError(t, err)
	assert.Equal(t, envelope.CompressionLZ4, c)
	c, err = envelope.ParseCompression("")
	require.NoError(t, err)
	assert.Equal(t, envelope.CompressionZstd, c)
	_, err = envelope.ParseCompression("brotli")
	assert.Error(t, err)
}
