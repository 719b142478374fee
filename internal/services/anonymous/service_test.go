package anonymous_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sealkit/internal/crypto"
	"sealkit/internal/domain"
	"sealkit/internal/envelope"
	"sealkit/internal/protocol/keywrap"
	"sealkit/internal/services/anonymous"
)

type fakeAPI struct {
	devices map[domain.UserID][]domain.DevicePublic
	token   string
	created []domain.CreateSessionRequest
}

func (f *fakeAPI) AnonymousRecipients(_ context.Context, token string, users []domain.UserID) ([]domain.Recipient, error) {
	if token != f.token {
		return nil, assert.AnError
	}
	var out []domain.Recipient
	for _, u := range users {
		out = append(out, domain.Recipient{ID: string(u), Devices: f.devices[u]})
	}
	return out, nil
}

func (f *fakeAPI) CreateAnonymousSession(_ context.Context, token string, req domain.CreateSessionRequest) error {
	if token != f.token {
		return assert.AnError
	}
	f.created = append(f.created, req)
	return nil
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

func TestAnonymous_SealForRecipient(t *testing.T) {
	bob := newIdentity(t, "bob", "b1")
	expired := newIdentity(t, "bob", "b0").Public()
	expired.Expires = time.Now().Add(-time.Hour)
	api := &fakeAPI{
		token:   "tok",
		devices: map[domain.UserID][]domain.DevicePublic{"bob": {bob.Public(), expired}},
	}
	svc := anonymous.New(api, envelope.CompressionZstd, zerolog.Nop())

	sess, err := svc.CreateSession(context.Background(), "tok", []domain.UserID{"bob"})
	require.NoError(t, err)
	require.Len(t, api.created, 1)
	req := api.created[0]
	require.Len(t, req.Keys, 1, "expired devices get no key")
	assert.True(t, req.Keys[0].Anonymous)
	assert.Empty(t, req.Keys[0].SenderUser)

	key, err := keywrap.Unwrap(bob, domain.DevicePublic{}, keywrap.SessionSubject(sess.ID), req.Keys[0])
	require.NoError(t, err)

	msg, err := sess.EncryptMessage("tip-off")
	require.NoError(t, err)
	env, err := envelope.DecodeMessage(msg)
	require.NoError(t, err)
	assert.True(t, env.Header.Anonymous())
	pt, err := envelope.Open(key, sess.ID, env, nil)
	require.NoError(t, err)
	assert.Equal(t, "tip-off", string(pt))

	text, err := sess.Serialize()
	require.NoError(t, err)
	back, err := anonymous.DeserializeSession(text)
	require.NoError(t, err)
	assert.Equal(t, sess, back)
}

func TestAnonymous_Rejections(t *testing.T) {
	api := &fakeAPI{token: "tok", devices: map[domain.UserID][]domain.DevicePublic{}}
	svc := anonymous.New(api, envelope.CompressionNone, zerolog.Nop())

	_, err := svc.CreateSession(context.Background(), "tok", nil)
	assert.ErrorIs(t, err, anonymous.ErrNoRecipients)
	_, err = svc.CreateSession(context.Background(), "tok", []domain.UserID{"ghost"})
	assert.ErrorIs(t, err, anonymous.ErrNoRecipients)
	_, err = svc.CreateSession(context.Background(), "bad", []domain.UserID{"bob"})
	assert.Error(t, err)

	_, err = anonymous.DeserializeSession("!!")
	assert.ErrorIs(t, err, anonymous.ErrBadSession)
	_, err = anonymous.DeserializeSession(strings.Repeat("A", 1<<13))
	assert.ErrorIs(t, err, anonymous.ErrBadSession)
}
