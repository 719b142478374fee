package sigchain_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sealkit/internal/crypto"
	"sealkit/internal/domain"
	"sealkit/internal/sigchain"
)

var now = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

func newDevice(t *testing.T, device string) domain.Identity {
	t.Helper()
	keys, err := crypto.GeneratePrivateKeys()
	require.NoError(t, err)
	return domain.Identity{
		UserID: "alice", DeviceID: domain.DeviceID(device),
		XPriv: keys.XPriv, XPub: keys.XPub, EdPriv: keys.EdPriv, EdPub: keys.EdPub,
		DeviceExpires: now.Add(time.Hour),
	}
}

func appendEntry(
	t *testing.T,
	chain []domain.SigchainEntry,
	op domain.SigchainOp,
	subject domain.DevicePublic,
	signer domain.Identity,
) []domain.SigchainEntry {
	t.Helper()
	e, err := sigchain.Next(chain, op, subject, signer, now)
	require.NoError(t, err)
	return append(chain, e)
}

func TestVerify_Lifecycle(t *testing.T) {
	d1 := newDevice(t, "d1")
	d2 := newDevice(t, "d2")

	chain := appendEntry(t, nil, domain.SigchainCreate, d1.Public(), d1)
	chain = appendEntry(t, chain, domain.SigchainAddDevice, d2.Public(), d1)

	renewed := newDevice(t, "d1")
	chain = appendEntry(t, chain, domain.SigchainRenew, renewed.Public(), d1)
	chain = appendEntry(t, chain, domain.SigchainRevoke, d2.Public(), renewed)

	devices, err := sigchain.Verify(chain)
	require.NoError(t, err)
	require.Len(t, devices, 1)
	assert.Equal(t, renewed.EdPub, devices["d1"].SigningKey)
}

func TestVerify_Rejections(t *testing.T) {
	d1 := newDevice(t, "d1")
	d2 := newDevice(t, "d2")
	outsider := newDevice(t, "x")

	base := appendEntry(t, nil, domain.SigchainCreate, d1.Public(), d1)
	good := appendEntry(t, base, domain.SigchainAddDevice, d2.Public(), d1)

	t.Run("empty", func(t *testing.T) {
		_, err := sigchain.Verify(nil)
		assert.ErrorIs(t, err, sigchain.ErrEmpty)
	})
	t.Run("broken link", func(t *testing.T) {
		chain := append([]domain.SigchainEntry(nil), good...)
		chain[1].PrevHash = []byte("nope")
		_, err := sigchain.Verify(chain)
		assert.ErrorIs(t, err, sigchain.ErrBrokenLink)
	})
	t.Run("bad signature", func(t *testing.T) {
		chain := append([]domain.SigchainEntry(nil), good...)
		chain[1].Expires++
		_, err := sigchain.Verify(chain)
		assert.ErrorIs(t, err, sigchain.ErrBadSignature)
	})
	t.Run("unknown signer", func(t *testing.T) {
		chain := appendEntry(t, base, domain.SigchainAddDevice, d2.Public(), outsider)
		_, err := sigchain.Verify(chain)
		assert.ErrorIs(t, err, sigchain.ErrUnknownSigner)
	})
	t.Run("position gap", func(t *testing.T) {
		chain := append([]domain.SigchainEntry(nil), good...)
		chain[1].Position = 5
		_, err := sigchain.Verify(chain)
		assert.ErrorIs(t, err, sigchain.ErrBadPosition)
	})
	t.Run("second create", func(t *testing.T) {
		chain := appendEntry(t, base, domain.SigchainCreate, d2.Public(), d2)
		_, err := sigchain.Verify(chain)
		assert.ErrorIs(t, err, sigchain.ErrBadOperation)
	})
	t.Run("revoked signer", func(t *testing.T) {
		chain := appendEntry(t, good, domain.SigchainRevoke, d2.Public(), d1)
		chain = appendEntry(t, chain, domain.SigchainAddDevice, outsider.Public(), d2)
		_, err := sigchain.Verify(chain)
		assert.ErrorIs(t, err, sigchain.ErrUnknownSigner)
	})
}

func TestHashAtAndCheck(t *testing.T) {
	d1 := newDevice(t, "d1")
	d2 := newDevice(t, "d2")
	chain := appendEntry(t, nil, domain.SigchainCreate, d1.Public(), d1)
	chain = appendEntry(t, chain, domain.SigchainAddDevice, d2.Public(), d1)

	last, err := sigchain.HashAt(chain, -1)
	require.NoError(t, err)
	assert.Equal(t, 1, last.Position)

	first, err := sigchain.HashAt(chain, 0)
	require.NoError(t, err)
	assert.NotEqual(t, first.Hash, last.Hash)

	_, err = sigchain.HashAt(chain, 2)
	assert.ErrorIs(t, err, sigchain.ErrBadPosition)

	check, err := sigchain.Check(chain, first.Hash, -1)
	require.NoError(t, err)
	assert.Equal(t, domain.SigchainCheck{Found: true, Position: 0, LastPosition: 1}, check)

	check, err = sigchain.Check(chain, first.Hash, 1)
	require.NoError(t, err)
	assert.False(t, check.Found)

	check, err = sigchain.Check(chain, "deadbeef", -1)
	require.NoError(t, err)
	assert.False(t, check.Found)
	assert.Equal(t, 1, check.LastPosition)
}

func TestHash_IgnoresSignature(t *testing.T) {
	d1 := newDevice(t, "d1")
	e, err := sigchain.Next(nil, domain.SigchainCreate, d1.Public(), d1, now)
	require.NoError(t, err)

	h1, err := sigchain.Hash(e)
	require.NoError(t, err)
	e.Signature = nil
	h2, err := sigchain.Hash(e)
	require.NoError(t, err)
	assert.Equal(t, h1, h2)
}

func TestVerify_ExpiredDevice(t *testing.T) {
	d1 := newDevice(t, "d1")
	d1.DeviceExpires = now.Add(-time.Minute)
	d2 := newDevice(t, "d2")

	chain := appendEntry(t, nil, domain.SigchainCreate, d1.Public(), d1)

	_, err := sigchain.Verify(appendEntry(t, chain, domain.SigchainAddDevice, d2.Public(), d1))
	assert.ErrorIs(t, err, sigchain.ErrUnknownSigner)

	renewed := newDevice(t, "d1")
	_, err = sigchain.Verify(appendEntry(t, chain, domain.SigchainRenew, renewed.Public(), d1))
	assert.NoError(t, err)
}
