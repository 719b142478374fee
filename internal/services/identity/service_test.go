package identity_test

import (
	"bytes"
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sealkit/internal/domain"
	"sealkit/internal/relay"
	"sealkit/internal/relayserver"
	"sealkit/internal/services/identity"
	"sealkit/internal/sigchain"
	"sealkit/internal/storage/encrypted"
	"sealkit/internal/storage/leveldb"
	"sealkit/internal/store"
	"sealkit/internal/token"
)

var secret = []byte("0123456789abcdef0123456789abcdef")

type server struct {
	srv *relayserver.Server
	url string
}

func newServer(t *testing.T) *server {
	t.Helper()
	srv, err := relayserver.New(relayserver.Options{AppID: "app", Secret: secret, Logger: zerolog.Nop()})
	require.NoError(t, err)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return &server{srv: srv, url: ts.URL}
}

// instance returns an identity service with empty local storage.
func (s *server) instance(t *testing.T) *identity.Service {
	t.Helper()
	raw, err := leveldb.NewMemProvider()
	require.NoError(t, err)
	t.Cleanup(func() { _ = raw.Close() })
	p, err := encrypted.New(raw, bytes.Repeat([]byte{5}, encrypted.DatabaseKeySize))
	require.NoError(t, err)
	stores, err := store.Open(p)
	require.NoError(t, err)

	creds := func() (relay.Credentials, bool) {
		id, ok, err := stores.Identity.LoadIdentity()
		if err != nil || !ok {
			return relay.Credentials{}, false
		}
		return relay.Credentials{UserID: id.UserID, DeviceID: id.DeviceID, SigningKey: id.EdPriv}, true
	}
	rc := relay.NewHTTP(s.url, relay.WithAppID("app"), relay.WithCredentials(creds))
	return identity.New(stores.Identity, stores.Account, rc, s.url, zerolog.Nop())
}

func (s *server) account(t *testing.T) (*identity.Service, domain.AccountInfo) {
	t.Helper()
	svc := s.instance(t)
	jwt, err := s.srv.Issuer().Issue(token.PurposeSignup, time.Minute)
	require.NoError(t, err)
	info, err := svc.CreateAccount(context.Background(), domain.CreateAccountOptions{SignupJWT: jwt})
	require.NoError(t, err)
	return svc, info
}

func TestCreateAccount_OnlyOnce(t *testing.T) {
	s := newServer(t)
	svc, info := s.account(t)

	assert.WithinDuration(t, time.Now().Add(domain.DefaultDeviceExpiry), info.DeviceExpires, time.Minute)
	jwt, err := s.srv.Issuer().Issue(token.PurposeSignup, time.Minute)
	require.NoError(t, err)
	_, err = svc.CreateAccount(context.Background(), domain.CreateAccountOptions{SignupJWT: jwt})
	assert.ErrorIs(t, err, domain.ErrAccountExists)
}

func TestSigchainHash_GetAndCheck(t *testing.T) {
	ctx := context.Background()
	s := newServer(t)
	svc, info := s.account(t)

	first, err := svc.GetSigchainHash(ctx, info.UserID, -1)
	require.NoError(t, err)
	assert.Equal(t, 0, first.Position)

	_, err = svc.CreateSubIdentity(ctx, domain.SubIdentityOptions{DeviceName: "laptop"})
	require.NoError(t, err)

	last, err := svc.GetSigchainHash(ctx, info.UserID, -1)
	require.NoError(t, err)
	assert.Equal(t, 1, last.Position)
	assert.NotEqual(t, first.Hash, last.Hash)

	again, err := svc.GetSigchainHash(ctx, info.UserID, 0)
	require.NoError(t, err)
	assert.Equal(t, first, again)

	_, err = svc.GetSigchainHash(ctx, info.UserID, 5)
	assert.ErrorIs(t, err, sigchain.ErrBadPosition)

	check, err := svc.CheckSigchainHash(ctx, info.UserID, first.Hash, -1)
	require.NoError(t, err)
	assert.Equal(t, domain.SigchainCheck{Found: true, Position: 0, LastPosition: 1}, check)

	check, err = svc.CheckSigchainHash(ctx, info.UserID, first.Hash, 1)
	require.NoError(t, err)
	assert.False(t, check.Found)
	assert.Equal(t, -1, check.Position)

	check, err = svc.CheckSigchainHash(ctx, info.UserID, "unknown", -1)
	require.NoError(t, err)
	assert.False(t, check.Found)
	assert.Equal(t, 1, check.LastPosition)
}

func TestRenewKeys_Prepared(t *testing.T) {
	ctx := context.Background()
	s := newServer(t)
	svc, _ := s.account(t)
	before, err := svc.Identity()
	require.NoError(t, err)

	prepared, err := svc.PrepareRenew(nil)
	require.NoError(t, err)
	_, want, err := identity.DecodeExport(prepared)
	require.NoError(t, err)

	unchanged, err := svc.Identity()
	require.NoError(t, err)
	assert.Equal(t, before.XPub, unchanged.XPub, "preparing does not install the keys")

	require.NoError(t, svc.RenewKeys(ctx, domain.RenewKeysOptions{PreparedRenewal: prepared, ExpireAfter: 2 * time.Hour}))
	after, err := svc.Identity()
	require.NoError(t, err)
	assert.Equal(t, want.XPub, after.XPub)
	assert.Equal(t, want.EdPub, after.EdPub)
	assert.WithinDuration(t, time.Now().Add(2*time.Hour), after.DeviceExpires, time.Minute)
	require.Len(t, after.RetiredKeys, 1)
	assert.Equal(t, before.XPub, after.RetiredKeys[0].XPub)

	require.NoError(t, svc.Heartbeat(ctx))
}

func TestRenewKeys_PreparedForAnotherDevice(t *testing.T) {
	ctx := context.Background()
	s := newServer(t)
	svc, _ := s.account(t)

	sub, err := svc.CreateSubIdentity(ctx, domain.SubIdentityOptions{})
	require.NoError(t, err)

	err = svc.RenewKeys(ctx, domain.RenewKeysOptions{PreparedRenewal: sub.BackupKey})
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)

	err = svc.RenewKeys(ctx, domain.RenewKeysOptions{PreparedRenewal: []byte("garbage")})
	assert.ErrorIs(t, err, identity.ErrBadExport)
}

func TestImportIdentity_StaleAfterRenewal(t *testing.T) {
	ctx := context.Background()
	s := newServer(t)
	svc, info := s.account(t)

	old, err := svc.ExportIdentity()
	require.NoError(t, err)
	require.NoError(t, svc.RenewKeys(ctx, domain.RenewKeysOptions{}))

	other := s.instance(t)
	err = other.ImportIdentity(ctx, old)
	assert.ErrorIs(t, err, identity.ErrStaleExport)
	_, err = other.Identity()
	assert.ErrorIs(t, err, domain.ErrNoAccount, "a failed import leaves no identity behind")

	fresh, err := svc.ExportIdentity()
	require.NoError(t, err)
	require.NoError(t, other.ImportIdentity(ctx, fresh))
	got, err := other.CurrentAccountInfo()
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, info.UserID, got.UserID)
	assert.Equal(t, info.DeviceID, got.DeviceID)
}

func TestUpdateCurrentDevice(t *testing.T) {
	ctx := context.Background()
	s := newServer(t)
	svc, _ := s.account(t)

	export, err := svc.ExportIdentity()
	require.NoError(t, err)
	copyOf := s.instance(t)
	require.NoError(t, copyOf.ImportIdentity(ctx, export))
	require.NoError(t, copyOf.UpdateCurrentDevice(ctx))

	require.NoError(t, svc.RenewKeys(ctx, domain.RenewKeysOptions{ExpireAfter: time.Hour}))
	require.NoError(t, svc.UpdateCurrentDevice(ctx))
	info, err := svc.CurrentAccountInfo()
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), info.DeviceExpires, time.Minute)

	err = copyOf.UpdateCurrentDevice(ctx)
	assert.ErrorIs(t, err, identity.ErrStaleExport)
}
