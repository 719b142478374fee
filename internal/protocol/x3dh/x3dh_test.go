package x3dh_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sealkit/internal/crypto"
	"sealkit/internal/domain"
	"sealkit/internal/protocol/x3dh"
)

func device(t *testing.T, user, dev string) domain.Identity {
	t.Helper()
	keys, err := crypto.GeneratePrivateKeys()
	require.NoError(t, err)
	return domain.Identity{
		UserID: domain.UserID(user), DeviceID: domain.DeviceID(dev),
		XPriv: keys.XPriv, XPub: keys.XPub, EdPriv: keys.EdPriv, EdPub: keys.EdPub,
	}
}

type published struct {
	bundle  domain.PreKeyBundle
	spkPriv domain.X25519Private
	opkPriv domain.X25519Private
}

// publish builds a bundle for id signed the way the pre-key service signs it.
func publish(t *testing.T, id domain.Identity, withOPK bool) published {
	t.Helper()
	spkPriv, spkPub, err := crypto.GenerateX25519()
	require.NoError(t, err)
	p := published{spkPriv: spkPriv, bundle: domain.PreKeyBundle{
		UserID:         id.UserID,
		DeviceID:       id.DeviceID,
		IdentityKey:    id.XPub,
		SigningKey:     id.EdPub,
		SignedPreKeyID: "spk-1",
		SignedPreKey:   spkPub,
	}}
	p.bundle.SignedPreKeySignature = crypto.SignEd25519(id.EdPriv,
		domain.SignedPreKeyMessage(id.UserID, id.DeviceID, "spk-1", spkPub))
	if withOPK {
		opkPriv, opkPub, err := crypto.GenerateX25519()
		require.NoError(t, err)
		p.opkPriv = opkPriv
		p.bundle.OneTimePreKeys = []domain.OneTimePreKeyPublic{{ID: "opk-1", Pub: opkPub}}
	}
	return p
}

func TestRootAgreement(t *testing.T) {
	for _, withOPK := range []bool{false, true} {
		name := "signed pre-key only"
		if withOPK {
			name = "with one-time pre-key"
		}
		t.Run(name, func(t *testing.T) {
			alice := device(t, "alice", "a1")
			bob := device(t, "bob", "b1")
			p := publish(t, bob, withOPK)

			rootA, spkID, opkID, eph, err := x3dh.InitiatorRoot(alice, p.bundle)
			require.NoError(t, err)
			assert.Equal(t, domain.SignedPreKeyID("spk-1"), spkID)

			var opk *domain.X25519Private
			if withOPK {
				assert.Equal(t, domain.OneTimePreKeyID("opk-1"), opkID)
				opk = &p.opkPriv
			} else {
				assert.Empty(t, opkID)
			}

			rootB, err := x3dh.ResponderRoot(bob, p.spkPriv, opk, domain.PreKeyMessage{
				InitiatorIdentityKey: alice.XPub,
				EphemeralKey:         eph,
				SignedPreKeyID:       spkID,
				OneTimePreKeyID:      opkID,
			})
			require.NoError(t, err)
			assert.Equal(t, rootA, rootB)
			assert.Len(t, rootA, 32)
		})
	}
}

func TestRootAgreement_MissingOPKDiverges(t *testing.T) {
	alice := device(t, "alice", "a1")
	bob := device(t, "bob", "b1")
	p := publish(t, bob, true)

	rootA, spkID, opkID, eph, err := x3dh.InitiatorRoot(alice, p.bundle)
	require.NoError(t, err)
	rootB, err := x3dh.ResponderRoot(bob, p.spkPriv, nil, domain.PreKeyMessage{
		InitiatorIdentityKey: alice.XPub, EphemeralKey: eph, SignedPreKeyID: spkID, OneTimePreKeyID: opkID,
	})
	require.NoError(t, err)
	assert.NotEqual(t, rootA, rootB)
}

func TestInitiatorRoot_RejectsBadBundles(t *testing.T) {
	alice := device(t, "alice", "a1")
	bob := device(t, "bob", "b1")
	mallory := device(t, "mallory", "m1")

	forged := publish(t, bob, false).bundle
	forged.SignedPreKeySignature = crypto.SignEd25519(mallory.EdPriv,
		domain.SignedPreKeyMessage(bob.UserID, bob.DeviceID, forged.SignedPreKeyID, forged.SignedPreKey))

	replayed := publish(t, bob, false).bundle
	replayed.DeviceID = "b2"

	for name, b := range map[string]domain.PreKeyBundle{"forged": forged, "other device": replayed} {
		t.Run(name, func(t *testing.T) {
			_, _, _, _, err := x3dh.InitiatorRoot(alice, b)
			assert.ErrorIs(t, err, x3dh.ErrBadSPK)
		})
	}
}
