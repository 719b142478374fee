package session_test

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sealkit/internal/crypto"
	"sealkit/internal/domain"
	"sealkit/internal/envelope"
	"sealkit/internal/services/session"
)

type staticIdentity struct{ id domain.Identity }

func (s staticIdentity) Identity() (domain.Identity, error)     { return s.id, nil }
func (staticIdentity) UpdateCurrentDevice(context.Context) error { return nil }

// keyDirectory knows the signing keys of a fixed set of devices.
type keyDirectory map[domain.ConversationID][]domain.Ed25519Public

func (d keyDirectory) CheckActive(context.Context, domain.DevicePublic) error { return nil }
func (d keyDirectory) CheckKnown(context.Context, domain.DevicePublic) error  { return nil }
func (d keyDirectory) Device(context.Context, domain.UserID, domain.DeviceID) (domain.DevicePublic, error) {
	return domain.DevicePublic{}, errors.New("not used")
}
func (d keyDirectory) Invalidate(string) {}
func (d keyDirectory) SigningKeys(_ context.Context, u domain.UserID, dev domain.DeviceID) ([]domain.Ed25519Public, error) {
	keys, ok := d[domain.ConversationFor(u, dev)]
	if !ok {
		return nil, errors.New("unknown device")
	}
	return keys, nil
}

func newIdentity(t *testing.T, user, device string) domain.Identity {
	t.Helper()
	keys, err := crypto.GeneratePrivateKeys()
	require.NoError(t, err)
	return domain.Identity{
		UserID: domain.UserID(user), DeviceID: domain.DeviceID(device),
		XPriv: keys.XPriv, XPub: keys.XPub, EdPriv: keys.EdPriv, EdPub: keys.EdPub,
	}
}

func newSession(t *testing.T) domain.EncryptionSession {
	t.Helper()
	key, err := crypto.RandomKey()
	require.NoError(t, err)
	return domain.EncryptionSession{ID: "s1", Key: key}
}

func TestService_MessageAndFile(t *testing.T) {
	alice := newIdentity(t, "alice", "a1")
	dir := keyDirectory{domain.ConversationFor("alice", "a1"): {alice.EdPub}}
	svc := session.New(staticIdentity{alice}, nil, dir, nil, nil, envelope.CompressionZstd, zerolog.Nop())
	sess := newSession(t)
	ctx := context.Background()

	msg, err := svc.EncryptMessage(sess, "hello bob")
	require.NoError(t, err)
	pt, err := svc.DecryptMessage(ctx, sess, msg)
	require.NoError(t, err)
	assert.Equal(t, "hello bob", pt)

	content := bytes.Repeat([]byte("ledger line\n"), 100)
	file, err := svc.EncryptFile(sess, content, "ledger.txt")
	require.NoError(t, err)
	got, name, err := svc.DecryptFile(ctx, sess, file)
	require.NoError(t, err)
	assert.Equal(t, "ledger.txt", name)
	assert.Equal(t, content, got)
}

func TestService_RejectsUnknownSenderAndWrongType(t *testing.T) {
	alice := newIdentity(t, "alice", "a1")
	svc := session.New(staticIdentity{alice}, nil, keyDirectory{}, nil, nil, envelope.CompressionNone, zerolog.Nop())
	sess := newSession(t)
	ctx := context.Background()

	msg, err := svc.EncryptMessage(sess, "hi")
	require.NoError(t, err)
	_, err = svc.DecryptMessage(ctx, sess, msg)
	assert.Error(t, err)

	// A renewed sender is accepted with any key it has held.
	renewed := newIdentity(t, "alice", "a1")
	dir := keyDirectory{domain.ConversationFor("alice", "a1"): {renewed.EdPub, alice.EdPub}}
	svc = session.New(staticIdentity{renewed}, nil, dir, nil, nil, envelope.CompressionNone, zerolog.Nop())
	pt, err := svc.DecryptMessage(ctx, sess, msg)
	require.NoError(t, err)
	assert.Equal(t, "hi", pt)

	env, err := envelope.DecodeMessage(msg)
	require.NoError(t, err)
	asFile, err := envelope.EncodeFile(env)
	require.NoError(t, err)
	_, _, err = svc.DecryptFile(ctx, sess, asFile)
	assert.ErrorIs(t, err, session.ErrWrongContentType)
}

func TestService_ExpiredDeviceCannotSeal(t *testing.T) {
	alice := newIdentity(t, "alice", "a1")
	alice.DeviceExpires = time.Now().Add(-time.Hour)
	svc := session.New(staticIdentity{alice}, nil, keyDirectory{}, nil, nil, envelope.CompressionNone, zerolog.Nop())

	_, err := svc.EncryptMessage(newSession(t), "late")
	assert.ErrorIs(t, err, domain.ErrDeviceExpired)
}
