package store_test

import (
	"bytes"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sealkit/internal/domain"
	"sealkit/internal/storage/encrypted"
	"sealkit/internal/storage/leveldb"
	"sealkit/internal/store"
)

func openStores(t *testing.T) *store.Stores {
	t.Helper()
	raw, err := leveldb.NewMemProvider()
	require.NoError(t, err)
	t.Cleanup(func() { _ = raw.Close() })

	p, err := encrypted.New(raw, bytes.Repeat([]byte{9}, encrypted.DatabaseKeySize))
	require.NoError(t, err)
	s, err := store.Open(p)
	require.NoError(t, err)
	return s
}

func TestIdentity_SaveLoadDelete(t *testing.T) {
	s := openStores(t)

	_, ok, err := s.Identity.LoadIdentity()
	require.NoError(t, err)
	assert.False(t, ok)

	id := domain.Identity{
		UserID:        "u1",
		DeviceID:      "d1",
		XPub:          domain.X25519Public{1},
		XPriv:         domain.X25519Private{2},
		EdPub:         domain.Ed25519Public{3},
		EdPriv:        domain.Ed25519Private{4},
		DeviceExpires: time.Unix(1700000000, 0).UTC(),
	}
	require.NoError(t, s.Identity.SaveIdentity(id))

	got, ok, err := s.Identity.LoadIdentity()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, id, got)

	require.NoError(t, s.Identity.DeleteIdentity())
	_, ok, err = s.Identity.LoadIdentity()
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPreKeys_ConsumeOnce(t *testing.T) {
	s := openStores(t)

	require.NoError(t, s.PreKeys.SaveOneTimePreKeys([]domain.OneTimePreKeyPair{
		{ID: "opk-2", Priv: domain.X25519Private{2}, Pub: domain.X25519Public{2}},
		{ID: "opk-1", Priv: domain.X25519Private{1}, Pub: domain.X25519Public{1}},
	}))

	pubs, err := s.PreKeys.ListOneTimePreKeyPublics()
	require.NoError(t, err)
	require.Len(t, pubs, 2)
	assert.Equal(t, domain.OneTimePreKeyID("opk-1"), pubs[0].ID)

	pair, ok, err := s.PreKeys.ConsumeOneTimePreKey("opk-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, domain.X25519Private{1}, pair.Priv)

	_, ok, err = s.PreKeys.ConsumeOneTimePreKey("opk-1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPreKeys_CurrentSignedPreKey(t *testing.T) {
	s := openStores(t)

	_, ok, err := s.PreKeys.CurrentSignedPreKeyID()
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.PreKeys.SaveSignedPreKey(domain.SignedPreKey{
		ID: "spk-1", Priv: domain.X25519Private{5}, Pub: domain.X25519Public{6}, Signature: []byte("sig"), Created: 42,
	}))
	require.NoError(t, s.PreKeys.SetCurrentSignedPreKeyID("spk-1"))

	id, ok, err := s.PreKeys.CurrentSignedPreKeyID()
	require.NoError(t, err)
	require.True(t, ok)
	spk, ok, err := s.PreKeys.LoadSignedPreKey(id)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, domain.X25519Public{6}, spk.Pub)
	assert.Equal(t, domain.X25519Private{5}, spk.Priv)
	assert.Equal(t, []byte("sig"), spk.Signature)
	assert.Equal(t, int64(42), spk.Created)
}

func TestRatchet_SkippedKeysSurviveRoundTrip(t *testing.T) {
	s := openStores(t)
	peer := domain.ConversationFor("bob", "dev")

	conv := domain.Conversation{
		Peer: peer,
		State: domain.RatchetState{
			RootKey:     []byte{1, 2, 3},
			SkippedKeys: map[string][]byte{"abcd00000001": {9, 9}},
		},
	}
	require.NoError(t, s.Conversations.SaveConversation(peer, conv))

	got, ok, err := s.Conversations.LoadConversation(peer)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, conv, got)
}

func TestGroupKeys_SaveLoad(t *testing.T) {
	s := openStores(t)
	keys := domain.GroupKeys{GroupID: "g1", KeyID: "k1", XPriv: domain.X25519Private{7}}
	require.NoError(t, s.GroupKeys.SaveGroupKeys(keys))

	got, ok, err := s.GroupKeys.LoadGroupKeys("g1", "k1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, keys, got)

	_, ok, err = s.GroupKeys.LoadGroupKeys("g1", "k2")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestKeystore_UnlockAndChangePassphrase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keystore.json")
	ks := store.NewKeystore(path).WithScryptCost(1 << 10)

	_, err := ks.Unlock("weak")
	assert.ErrorIs(t, err, store.ErrWeakPassphrase)

	key, err := ks.Unlock("Correct-Horse-42")
	require.NoError(t, err)
	assert.Len(t, key, encrypted.DatabaseKeySize)

	again, err := ks.Unlock("Correct-Horse-42")
	require.NoError(t, err)
	assert.Equal(t, key, again)

	_, err = ks.Unlock("Wrong-Horse-42!")
	assert.ErrorIs(t, err, store.ErrWrongPassphrase)

	require.NoError(t, ks.ChangePassphrase("Correct-Horse-42", "Battery-Staple-7!"))
	moved, err := ks.Unlock("Battery-Staple-7!")
	require.NoError(t, err)
	assert.Equal(t, key, moved)
}
