package sdk_test

import (
	"context"
	"crypto/rand"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sealkit/internal/relayserver"
	"sealkit/internal/token"
	"sealkit/sdk"
)

var secret = []byte("0123456789abcdef0123456789abcdef")

var fastBackup = sdk.BackupParams{ScryptWorkFactor: 10, ArgonTime: 1, ArgonMemory: 1024, ArgonThreads: 1}

type env struct {
	t   *testing.T
	srv *relayserver.Server
	url string
	log zerolog.Logger
}

func newEnv(t *testing.T) *env {
	t.Helper()
	srv, err := relayserver.New(relayserver.Options{AppID: "app", Secret: secret, Logger: zerolog.Nop()})
	require.NoError(t, err)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return &env{t: t, srv: srv, url: ts.URL, log: zerolog.Nop()}
}

func (e *env) instance() *sdk.SDK {
	e.t.Helper()
	return e.instanceWith(sdk.Options{})
}

func (e *env) instanceWith(opts sdk.Options) *sdk.SDK {
	e.t.Helper()
	key := make([]byte, 64)
	_, err := rand.Read(key)
	require.NoError(e.t, err)
	opts.ServerURL, opts.AppID, opts.DatabaseKey, opts.Logger = e.url, "app", key, &e.log
	s, err := sdk.New(opts)
	require.NoError(e.t, err)
	e.t.Cleanup(func() { _ = s.Close() })
	return s
}

// account returns an instance holding a fresh account.
func (e *env) account() (*sdk.SDK, sdk.AccountInfo) {
	e.t.Helper()
	return e.accountWith(sdk.Options{})
}

func (e *env) accountWith(opts sdk.Options) (*sdk.SDK, sdk.AccountInfo) {
	e.t.Helper()
	s := e.instanceWith(opts)
	jwt, err := e.srv.Issuer().Issue(token.PurposeSignup, time.Minute)
	require.NoError(e.t, err)
	info, err := s.CreateAccount(context.Background(), sdk.CreateAccountOptions{SignupJWT: jwt, DeviceName: "test"})
	require.NoError(e.t, err)
	return s, info
}

func (e *env) clientOptions() sdk.ClientOptions {
	return sdk.ClientOptions{ServerURL: e.url, AppID: "app", Logger: &e.log}
}

func to(ids ...string) []sdk.Recipient {
	out := make([]sdk.Recipient, 0, len(ids))
	for _, id := range ids {
		out = append(out, sdk.Recipient{ID: id, Rights: sdk.DefaultRights()})
	}
	return out
}

func TestNew_RequiresServer(t *testing.T) {
	_, err := sdk.New(sdk.Options{AppID: "app", DatabaseKey: make([]byte, 64)})
	assert.ErrorIs(t, err, sdk.ErrInvalidArgument)
}

func TestSDK_MessageAndFile(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	alice, aliceInfo := e.account()
	bob, bobInfo := e.account()

	sess, err := alice.CreateEncryptionSession(ctx, to(string(bobInfo.UserID)), false)
	require.NoError(t, err)
	assert.Equal(t, aliceInfo.UserID, sess.CreatedBy())
	assert.Equal(t, sdk.FlowCreated, sess.Retrieval().Flow)

	msg, err := sess.EncryptMessage("hello bob")
	require.NoError(t, err)
	sid, err := sdk.ParseSessionIDFromMessage(msg)
	require.NoError(t, err)
	assert.Equal(t, sess.ID(), sid)

	got, err := bob.RetrieveEncryptionSessionFromMessage(ctx, msg, false, false)
	require.NoError(t, err)
	assert.Equal(t, sdk.FlowDirect, got.Retrieval().Flow)
	plain, err := got.DecryptMessage(ctx, msg)
	require.NoError(t, err)
	assert.Equal(t, "hello bob", plain)

	file, err := got.EncryptFile([]byte("report body"), "report.txt")
	require.NoError(t, err)
	content, name, err := sess.DecryptFile(ctx, file)
	require.NoError(t, err)
	assert.Equal(t, "report body", string(content))
	assert.Equal(t, "report.txt", name)

	_, err = sess.DecryptMessage(ctx, "not a message")
	assert.Error(t, err)
}

func TestSDK_FilesOnDisk(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	alice, _ := e.account()

	dir := t.TempDir()
	src := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(src, []byte("secret notes"), 0o600))

	sess, err := alice.CreateEncryptionSession(ctx, nil, false)
	require.NoError(t, err)
	sealed, err := sess.EncryptFileFromPath(src)
	require.NoError(t, err)
	assert.Equal(t, src+sdk.SealedExtension, sealed)

	out, err := sess.DecryptFileFromPath(ctx, sealed)
	require.NoError(t, err)
	assert.NotEqual(t, src, out, "existing file must not be overwritten")
	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "secret notes", string(data))
}

func TestSDK_SessionCache(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	alice, _ := e.account()
	bob, bobInfo := e.accountWith(sdk.Options{SessionCacheTTL: time.Hour})

	sess, err := alice.CreateEncryptionSession(ctx, to(string(bobInfo.UserID)), false)
	require.NoError(t, err)

	first, err := bob.RetrieveEncryptionSession(ctx, sess.ID(), true, false)
	require.NoError(t, err)
	assert.False(t, first.Retrieval().FromCache)
	assert.False(t, first.Expires().IsZero())

	second, err := bob.RetrieveEncryptionSession(ctx, sess.ID(), true, false)
	require.NoError(t, err)
	assert.True(t, second.Retrieval().FromCache)

	_, err = sess.RevokeRecipients(ctx, []string{string(bobInfo.UserID)})
	require.NoError(t, err)
	_, err = bob.RetrieveEncryptionSession(ctx, sess.ID(), true, false)
	require.NoError(t, err, "a cached key stays usable until it expires")
	_, err = bob.RetrieveEncryptionSession(ctx, sess.ID(), false, false)
	assert.ErrorIs(t, err, sdk.ErrNoAccess)
}

func TestSDK_Revoke(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	alice, _ := e.account()
	bob, bobInfo := e.account()

	sess, err := alice.CreateEncryptionSession(ctx, to(string(bobInfo.UserID)), false)
	require.NoError(t, err)
	_, err = bob.RetrieveEncryptionSession(ctx, sess.ID(), false, false)
	require.NoError(t, err)

	res, err := sess.RevokeRecipients(ctx, []string{string(bobInfo.UserID)})
	require.NoError(t, err)
	assert.True(t, res.Recipients[string(bobInfo.UserID)].Success)

	_, err = bob.RetrieveEncryptionSession(ctx, sess.ID(), false, false)
	assert.ErrorIs(t, err, sdk.ErrNoAccess)

	_, err = alice.RetrieveEncryptionSession(ctx, sess.ID(), false, false)
	require.NoError(t, err)
}

func TestSDK_RevokeAll(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	alice, aliceInfo := e.account()
	bob, bobInfo := e.account()

	sess, err := alice.CreateEncryptionSession(ctx, to(string(bobInfo.UserID)), false)
	require.NoError(t, err)

	res, err := sess.RevokeAll(ctx)
	require.NoError(t, err)
	assert.True(t, res.Recipients[string(aliceInfo.UserID)].Success)
	assert.True(t, res.Recipients[string(bobInfo.UserID)].Success)

	_, err = bob.RetrieveEncryptionSession(ctx, sess.ID(), false, false)
	assert.ErrorIs(t, err, sdk.ErrNoAccess)
	_, err = alice.RetrieveEncryptionSession(ctx, sess.ID(), false, false)
	assert.ErrorIs(t, err, sdk.ErrNoAccess)
}

func TestSDK_SigchainAndStaleExport(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	alice, info := e.account()

	created, err := alice.GetSigchainHash(ctx, info.UserID, -1)
	require.NoError(t, err)
	old, err := alice.ExportIdentity()
	require.NoError(t, err)

	prepared, err := alice.PrepareRenew(nil)
	require.NoError(t, err)
	require.NoError(t, alice.RenewKeys(ctx, sdk.RenewKeysOptions{PreparedRenewal: prepared}))
	require.NoError(t, alice.UpdateCurrentDevice(ctx))

	renewed, err := alice.GetSigchainHash(ctx, info.UserID, -1)
	require.NoError(t, err)
	assert.Equal(t, 1, renewed.Position)
	check, err := alice.CheckSigchainHash(ctx, info.UserID, created.Hash, -1)
	require.NoError(t, err)
	assert.True(t, check.Found)
	assert.Equal(t, 0, check.Position)

	err = e.instance().ImportIdentity(ctx, old)
	assert.ErrorIs(t, err, sdk.ErrStaleExport)
}

func TestSDK_AddRecipients(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	alice, _ := e.account()
	bob, bobInfo := e.account()

	sess, err := alice.CreateEncryptionSession(ctx, nil, false)
	require.NoError(t, err)
	_, err = bob.RetrieveEncryptionSession(ctx, sess.ID(), false, false)
	assert.ErrorIs(t, err, sdk.ErrNoAccess)

	status, err := sess.AddRecipients(ctx, to(string(bobInfo.UserID), "nobody"))
	require.NoError(t, err)
	assert.True(t, status[string(bobInfo.UserID)].Success)
	assert.False(t, status["nobody"].Success)

	_, err = bob.RetrieveEncryptionSession(ctx, sess.ID(), false, false)
	require.NoError(t, err)
}

func TestSDK_Groups(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	alice, _ := e.account()
	bob, bobInfo := e.account()

	gid, err := alice.CreateGroup(ctx, sdk.CreateGroupOptions{Name: "team", Members: []sdk.UserID{bobInfo.UserID}})
	require.NoError(t, err)

	sess, err := alice.CreateEncryptionSession(ctx, to(string(gid)), false)
	require.NoError(t, err)
	msg, err := sess.EncryptMessage("for the team")
	require.NoError(t, err)

	_, err = bob.RetrieveEncryptionSession(ctx, sess.ID(), false, false)
	assert.ErrorIs(t, err, sdk.ErrNoAccess, "group keys are only used when asked")

	viaGroup, err := bob.RetrieveEncryptionSessionFromMessage(ctx, msg, false, true)
	require.NoError(t, err)
	assert.Equal(t, sdk.FlowViaGroup, viaGroup.Retrieval().Flow)
	assert.Equal(t, gid, viaGroup.Retrieval().GroupID)
	plain, err := viaGroup.DecryptMessage(ctx, msg)
	require.NoError(t, err)
	assert.Equal(t, "for the team", plain)

	err = bob.RemoveGroupMembers(ctx, gid, []sdk.UserID{bobInfo.UserID})
	assert.ErrorIs(t, err, sdk.ErrForbidden, "only admins manage members")

	require.NoError(t, alice.RemoveGroupMembers(ctx, gid, []sdk.UserID{bobInfo.UserID}))

	later, err := alice.CreateEncryptionSession(ctx, to(string(gid)), false)
	require.NoError(t, err)
	_, err = bob.RetrieveEncryptionSession(ctx, later.ID(), false, true)
	assert.ErrorIs(t, err, sdk.ErrNoAccess)

	require.NoError(t, alice.AddGroupMembers(ctx, gid, []sdk.UserID{bobInfo.UserID}, nil))
	back, err := bob.RetrieveEncryptionSession(ctx, later.ID(), false, true)
	require.NoError(t, err)
	assert.Equal(t, later.ID(), back.ID())
}

func TestSDK_RenewKeys(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	alice, _ := e.account()
	bob, bobInfo := e.account()

	before, err := alice.CreateEncryptionSession(ctx, to(string(bobInfo.UserID)), false)
	require.NoError(t, err)
	oldMsg, err := before.EncryptMessage("before renewal")
	require.NoError(t, err)

	bobSess, err := bob.RetrieveEncryptionSession(ctx, before.ID(), false, false)
	require.NoError(t, err)
	_, err = bobSess.DecryptMessage(ctx, oldMsg)
	require.NoError(t, err)

	fpBefore, err := alice.FingerprintIdentity()
	require.NoError(t, err)
	require.NoError(t, alice.RenewKeys(ctx, sdk.RenewKeysOptions{}))
	fpAfter, err := alice.FingerprintIdentity()
	require.NoError(t, err)
	assert.NotEqual(t, fpBefore, fpAfter)

	again, err := alice.RetrieveEncryptionSession(ctx, before.ID(), false, false)
	require.NoError(t, err)
	plain, err := again.DecryptMessage(ctx, oldMsg)
	require.NoError(t, err)
	assert.Equal(t, "before renewal", plain)

	newMsg, err := again.EncryptMessage("after renewal")
	require.NoError(t, err)
	plain, err = bobSess.DecryptMessage(ctx, newMsg)
	require.NoError(t, err)
	assert.Equal(t, "after renewal", plain)
}

func TestSDK_SubIdentityAndMassReencrypt(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	alice, aliceInfo := e.account()

	sess, err := alice.CreateEncryptionSession(ctx, nil, false)
	require.NoError(t, err)

	sub, err := alice.CreateSubIdentity(ctx, sdk.SubIdentityOptions{DeviceName: "laptop"})
	require.NoError(t, err)

	laptop := e.instance()
	require.NoError(t, laptop.ImportIdentity(ctx, sub.BackupKey))
	info, err := laptop.CurrentAccountInfo()
	require.NoError(t, err)
	assert.Equal(t, aliceInfo.UserID, info.UserID)
	assert.Equal(t, sub.DeviceID, info.DeviceID)

	err = laptop.ImportIdentity(ctx, sub.BackupKey)
	assert.ErrorIs(t, err, sdk.ErrAccountExists)

	_, err = laptop.RetrieveEncryptionSession(ctx, sess.ID(), false, false)
	assert.ErrorIs(t, err, sdk.ErrNoAccess)

	missing, err := alice.DevicesMissingKeys(ctx, true)
	require.NoError(t, err)
	require.Len(t, missing, 1)
	assert.Equal(t, sub.DeviceID, missing[0].DeviceID)

	res, err := alice.MassReencrypt(ctx, sub.DeviceID, sdk.DefaultMassReencryptOptions())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Reencrypted)
	assert.Zero(t, res.Failed)

	got, err := laptop.RetrieveEncryptionSession(ctx, sess.ID(), false, false)
	require.NoError(t, err)
	assert.Equal(t, sess.ID(), got.ID())
}

func TestSDK_Anonymous(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	bob, bobInfo := e.account()

	anon, err := sdk.NewAnonymous(e.clientOptions(), "lz4")
	require.NoError(t, err)

	jwt, err := e.srv.Issuer().Issue(token.PurposeEncrypt, time.Minute, string(bobInfo.UserID))
	require.NoError(t, err)
	sess, err := anon.CreateEncryptionSession(ctx, jwt, []sdk.UserID{bobInfo.UserID})
	require.NoError(t, err)

	msg, err := sess.EncryptMessage("tip")
	require.NoError(t, err)
	file, err := sess.EncryptFile([]byte("evidence"), "evidence.bin")
	require.NoError(t, err)

	text, err := sess.Serialize()
	require.NoError(t, err)
	restored, err := sdk.DeserializeAnonymousSession(text)
	require.NoError(t, err)
	assert.Equal(t, sess.ID, restored.ID)

	got, err := bob.RetrieveEncryptionSessionFromMessage(ctx, msg, false, false)
	require.NoError(t, err)
	assert.Empty(t, got.CreatedBy())
	plain, err := got.DecryptMessage(ctx, msg)
	require.NoError(t, err)
	assert.Equal(t, "tip", plain)
	content, name, err := got.DecryptFile(ctx, file)
	require.NoError(t, err)
	assert.Equal(t, "evidence", string(content))
	assert.Equal(t, "evidence.bin", name)

	_, err = anon.CreateEncryptionSession(ctx, jwt, []sdk.UserID{"someone-else"})
	assert.Error(t, err, "token does not cover the recipient")
}

func TestSDK_PasswordBackup(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	alice, aliceInfo := e.account()

	export, err := alice.ExportIdentity()
	require.NoError(t, err)

	backup := sdk.NewPasswordBackup(e.clientOptions(), fastBackup)
	require.NoError(t, backup.SaveIdentity(ctx, aliceInfo.UserID, "correct horse", export))

	_, err = backup.RetrieveIdentity(ctx, aliceInfo.UserID, "wrong")
	assert.ErrorIs(t, err, sdk.ErrNoBackup)

	restored, err := backup.RetrieveIdentity(ctx, aliceInfo.UserID, "correct horse")
	require.NoError(t, err)

	other := e.instance()
	require.NoError(t, other.ImportIdentity(ctx, restored))
	require.NoError(t, other.Heartbeat(ctx))

	require.NoError(t, backup.ChangeIdentityPassword(ctx, aliceInfo.UserID, "correct horse", "battery staple"))
	_, err = backup.RetrieveIdentity(ctx, aliceInfo.UserID, "correct horse")
	assert.ErrorIs(t, err, sdk.ErrNoBackup)
	_, err = backup.RetrieveIdentity(ctx, aliceInfo.UserID, "battery staple")
	require.NoError(t, err)
}

func TestSDK_Channels(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	alice, aliceInfo := e.account()
	bob, bobInfo := e.account()

	require.NoError(t, bob.PublishPreKeys(ctx, 4))
	require.NoError(t, alice.InitiateChannel(ctx, bobInfo.UserID, bobInfo.DeviceID))
	require.NoError(t, alice.SendMessage(ctx, bobInfo.UserID, bobInfo.DeviceID, []byte("ping")))

	got, err := bob.ReceiveMessages(ctx, 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, aliceInfo.UserID, got[0].FromUser)
	assert.Equal(t, "ping", string(got[0].Plaintext))

	require.NoError(t, bob.SendMessage(ctx, aliceInfo.UserID, aliceInfo.DeviceID, []byte("pong")))
	got, err = alice.ReceiveMessages(ctx, 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "pong", string(got[0].Plaintext))
}

func TestSDK_NoAccount(t *testing.T) {
	e := newEnv(t)
	s := e.instance()

	info, err := s.CurrentAccountInfo()
	require.NoError(t, err)
	assert.Nil(t, info)

	_, err = s.CreateEncryptionSession(context.Background(), nil, false)
	assert.ErrorIs(t, err, sdk.ErrNoAccount)
}

func TestSDK_Close(t *testing.T) {
	e := newEnv(t)
	s, _ := e.account()

	require.NoError(t, s.Close())
	assert.ErrorIs(t, s.Close(), sdk.ErrClosed)
	_, err := s.CreateEncryptionSession(context.Background(), nil, false)
	assert.ErrorIs(t, err, sdk.ErrClosed)
	_, err = s.ExportIdentity()
	assert.ErrorIs(t, err, sdk.ErrClosed)
}
