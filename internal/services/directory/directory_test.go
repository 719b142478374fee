package directory_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sealkit/internal/crypto"
	"sealkit/internal/domain"
	"sealkit/internal/services/directory"
	"sealkit/internal/sigchain"
)

type fakeChains struct {
	chains map[domain.UserID][]domain.SigchainEntry
	calls  atomic.Int32
}

func (f *fakeChains) Sigchain(_ context.Context, user domain.UserID) ([]domain.SigchainEntry, error) {
	f.calls.Add(1)
	return f.chains[user], nil
}

func newDevice(t *testing.T, device string) domain.Identity {
	t.Helper()
	keys, err := crypto.GeneratePrivateKeys()
	require.NoError(t, err)
	return domain.Identity{
		UserID: "alice", DeviceID: domain.DeviceID(device),
		XPriv: keys.XPriv, XPub: keys.XPub, EdPriv: keys.EdPriv, EdPub: keys.EdPub,
	}
}

func TestDirectory_ActiveAndKnown(t *testing.T) {
	ctx := context.Background()
	d1 := newDevice(t, "d1")
	create, err := sigchain.Next(nil, domain.SigchainCreate, d1.Public(), d1, time.Now())
	require.NoError(t, err)
	src := &fakeChains{chains: map[domain.UserID][]domain.SigchainEntry{"alice": {create}}}
	dir := directory.New(src, time.Minute)

	require.NoError(t, dir.CheckActive(ctx, d1.Public()))
	require.NoError(t, dir.CheckActive(ctx, d1.Public()))
	assert.Equal(t, int32(1), src.calls.Load(), "second lookup is served from cache")

	impostor := newDevice(t, "d1")
	assert.ErrorIs(t, dir.CheckActive(ctx, impostor.Public()), directory.ErrUnknownDevice)

	// A renewal shows up after a refresh; the old keys stay known but inactive.
	renewed := newDevice(t, "d1")
	renew, err := sigchain.Next(src.chains["alice"], domain.SigchainRenew, renewed.Public(), d1, time.Now())
	require.NoError(t, err)
	src.chains["alice"] = append(src.chains["alice"], renew)

	require.NoError(t, dir.CheckActive(ctx, renewed.Public()))
	assert.ErrorIs(t, dir.CheckActive(ctx, d1.Public()), directory.ErrUnknownDevice)
	require.NoError(t, dir.CheckKnown(ctx, d1.Public()))

	keys, err := dir.SigningKeys(ctx, "alice", "d1")
	require.NoError(t, err)
	assert.Equal(t, []domain.Ed25519Public{d1.EdPub, renewed.EdPub}, keys)
}

func TestDirectory_RejectsBrokenChain(t *testing.T) {
	d1 := newDevice(t, "d1")
	create, err := sigchain.Next(nil, domain.SigchainCreate, d1.Public(), d1, time.Now())
	require.NoError(t, err)
	create.Signature[0] ^= 1
	dir := directory.New(&fakeChains{chains: map[domain.UserID][]domain.SigchainEntry{"alice": {create}}}, 0)

	assert.ErrorIs(t, dir.CheckActive(context.Background(), d1.Public()), sigchain.ErrBadSignature)
}
