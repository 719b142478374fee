package message_test

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sealkit/internal/crypto"
	"sealkit/internal/domain"
	"sealkit/internal/protocol/x3dh"
	channelsvc "sealkit/internal/services/channel"
	"sealkit/internal/services/message"
	"sealkit/internal/services/prekey"
	"sealkit/internal/storage/encrypted"
	"sealkit/internal/storage/leveldb"
	"sealkit/internal/store"
)

// network is an in-memory stand-in for the key server's channel routes.
type network struct {
	mu      sync.Mutex
	bundles map[domain.ConversationID]domain.PreKeyBundle
	queues  map[domain.ConversationID][]domain.ChannelMessage
	devices map[domain.ConversationID]domain.DevicePublic
}

func newNetwork() *network {
	return &network{
		bundles: map[domain.ConversationID]domain.PreKeyBundle{},
		queues:  map[domain.ConversationID][]domain.ChannelMessage{},
		devices: map[domain.ConversationID]domain.DevicePublic{},
	}
}

func (n *network) queued(id domain.ConversationID) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.queues[id])
}

// endpoint is the view of one device on the network.
type endpoint struct {
	net  *network
	self domain.ConversationID
}

func (e endpoint) RegisterPreKeyBundle(_ context.Context, b domain.PreKeyBundle) error {
	e.net.mu.Lock()
	defer e.net.mu.Unlock()
	e.net.bundles[b.Conversation()] = b
	return nil
}

func (e endpoint) FetchPreKeyBundle(_ context.Context, user domain.UserID, device domain.DeviceID) (domain.PreKeyBundle, error) {
	e.net.mu.Lock()
	defer e.net.mu.Unlock()
	id := domain.ConversationFor(user, device)
	b, ok := e.net.bundles[id]
	if !ok {
		return domain.PreKeyBundle{}, errors.New("no bundle")
	}
	out := b
	if len(b.OneTimePreKeys) > 0 {
		out.OneTimePreKeys = b.OneTimePreKeys[:1]
		b.OneTimePreKeys = b.OneTimePreKeys[1:]
		e.net.bundles[id] = b
	}
	return out, nil
}

func (e endpoint) SendMessage(_ context.Context, msg domain.ChannelMessage) error {
	e.net.mu.Lock()
	defer e.net.mu.Unlock()
	to := domain.ConversationFor(msg.ToUser, msg.ToDevice)
	e.net.queues[to] = append(e.net.queues[to], msg)
	return nil
}

func (e endpoint) FetchMessages(_ context.Context, limit int) ([]domain.ChannelMessage, error) {
	e.net.mu.Lock()
	defer e.net.mu.Unlock()
	q := e.net.queues[e.self]
	if limit > 0 && limit < len(q) {
		q = q[:limit]
	}
	return append([]domain.ChannelMessage(nil), q...), nil
}

func (e endpoint) AckMessages(_ context.Context, count int) error {
	e.net.mu.Lock()
	defer e.net.mu.Unlock()
	e.net.queues[e.self] = e.net.queues[e.self][count:]
	return nil
}

func (e endpoint) GetDevice(_ context.Context, user domain.UserID, device domain.DeviceID) (domain.DevicePublic, error) {
	e.net.mu.Lock()
	defer e.net.mu.Unlock()
	d, ok := e.net.devices[domain.ConversationFor(user, device)]
	if !ok {
		return domain.DevicePublic{}, errors.New("unknown device")
	}
	return d, nil
}

type staticIdentity struct{ id domain.Identity }

func (s staticIdentity) Identity() (domain.Identity, error) { return s.id, nil }

type party struct {
	id       domain.Identity
	stores   *store.Stores
	prekeys  *prekey.Service
	channels *channelsvc.Service
	messages *message.Service
}

func newIdentity(t *testing.T, user domain.UserID, device domain.DeviceID) domain.Identity {
	t.Helper()
	xpriv, xpub, err := crypto.GenerateX25519()
	require.NoError(t, err)
	edpriv, edpub, err := crypto.GenerateEd25519()
	require.NoError(t, err)
	return domain.Identity{UserID: user, DeviceID: device, XPriv: xpriv, XPub: xpub, EdPriv: edpriv, EdPub: edpub}
}

func newParty(t *testing.T, n *network, id domain.Identity) *party {
	t.Helper()
	raw, err := leveldb.NewMemProvider()
	require.NoError(t, err)
	t.Cleanup(func() { _ = raw.Close() })
	p, err := encrypted.New(raw, bytes.Repeat([]byte{3}, encrypted.DatabaseKeySize))
	require.NoError(t, err)
	stores, err := store.Open(p)
	require.NoError(t, err)

	self := domain.ConversationFor(id.UserID, id.DeviceID)
	n.mu.Lock()
	n.devices[self] = domain.DevicePublic{
		UserID: id.UserID, DeviceID: id.DeviceID, EncryptionKey: id.XPub, SigningKey: id.EdPub,
	}
	n.mu.Unlock()

	api := endpoint{net: n, self: self}
	ids := staticIdentity{id: id}
	chans := channelsvc.New(ids, stores.Channels, api)
	return &party{
		id:       id,
		stores:   stores,
		prekeys:  prekey.New(ids, stores.PreKeys, stores.Bundles, api),
		channels: chans,
		messages: message.New(ids, stores.PreKeys, stores.Conversations, chans, api, api, zerolog.Nop()),
	}
}

func plaintexts(msgs []domain.DecryptedMessage) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = string(m.Plaintext)
	}
	return out
}

func TestLoadPreKeyBundle_RequiresSignedPreKey(t *testing.T) {
	n := newNetwork()
	bob := newParty(t, n, newIdentity(t, "bob", "b1"))

	_, err := bob.prekeys.LoadPreKeyBundle()
	assert.ErrorIs(t, err, prekey.ErrNoSignedPreKey)
}

func TestPublishPreKeys_BundleIsBoundToDevice(t *testing.T) {
	n := newNetwork()
	bob := newParty(t, n, newIdentity(t, "bob", "b1"))

	_, opks, err := bob.prekeys.GenerateAndStorePreKeys(3)
	require.NoError(t, err)
	require.Len(t, opks, 3)

	b, err := bob.prekeys.PublishPreKeys(context.Background())
	require.NoError(t, err)
	assert.Len(t, b.OneTimePreKeys, 3)
	assert.True(t, x3dh.VerifySPK(b))

	moved := b
	moved.DeviceID = "b2"
	assert.False(t, x3dh.VerifySPK(moved), "signature must not carry over to another device")

	cached, ok, err := bob.stores.Bundles.LoadPreKeyBundle()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, b.SignedPreKeyID, cached.SignedPreKeyID)
}

func TestChannel_RoundTrip(t *testing.T) {
	ctx := context.Background()
	n := newNetwork()
	alice := newParty(t, n, newIdentity(t, "alice", "a1"))
	bob := newParty(t, n, newIdentity(t, "bob", "b1"))

	_, _, err := bob.prekeys.GenerateAndStorePreKeys(2)
	require.NoError(t, err)
	_, err = bob.prekeys.PublishPreKeys(ctx)
	require.NoError(t, err)

	ch, err := alice.channels.InitiateChannel(ctx, "bob", "b1")
	require.NoError(t, err)
	assert.NotEmpty(t, ch.OneTimePreKeyID)

	require.NoError(t, alice.messages.SendMessage(ctx, "bob", "b1", []byte("hello")))
	require.NoError(t, alice.messages.SendMessage(ctx, "bob", "b1", []byte("again")))

	got, err := bob.messages.ReceiveMessages(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"hello", "again"}, plaintexts(got))
	assert.Equal(t, domain.UserID("alice"), got[0].FromUser)
	assert.Zero(t, n.queued(domain.ConversationFor("bob", "b1")))

	left, err := bob.stores.PreKeys.ListOneTimePreKeyPublics()
	require.NoError(t, err)
	assert.Len(t, left, 1, "the one-time pre-key used by alice is consumed")

	require.NoError(t, bob.messages.SendMessage(ctx, "alice", "a1", []byte("hi alice")))
	got, err = alice.messages.ReceiveMessages(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"hi alice"}, plaintexts(got))
}

func TestSendMessage_NoChannel(t *testing.T) {
	n := newNetwork()
	alice := newParty(t, n, newIdentity(t, "alice", "a1"))

	err := alice.messages.SendMessage(context.Background(), "bob", "b1", []byte("x"))
	assert.ErrorIs(t, err, message.ErrNoChannel)
}

func TestReceiveMessages_StopsAtFirstFailure(t *testing.T) {
	ctx := context.Background()
	n := newNetwork()
	alice := newParty(t, n, newIdentity(t, "alice", "a1"))
	bob := newParty(t, n, newIdentity(t, "bob", "b1"))

	_, _, err := bob.prekeys.GenerateAndStorePreKeys(1)
	require.NoError(t, err)
	_, err = bob.prekeys.PublishPreKeys(ctx)
	require.NoError(t, err)
	_, err = alice.channels.InitiateChannel(ctx, "bob", "b1")
	require.NoError(t, err)

	require.NoError(t, alice.messages.SendMessage(ctx, "bob", "b1", []byte("one")))
	require.NoError(t, alice.messages.SendMessage(ctx, "bob", "b1", []byte("two")))

	inbox := domain.ConversationFor("bob", "b1")
	n.mu.Lock()
	n.queues[inbox][1].Cipher[0] ^= 0xff
	n.mu.Unlock()

	got, err := bob.messages.ReceiveMessages(ctx, 0)
	require.Error(t, err)
	assert.Equal(t, []string{"one"}, plaintexts(got))
	assert.Equal(t, 1, n.queued(inbox), "only processed messages are acked")
}

func TestReceiveMessages_UnknownSenderKey(t *testing.T) {
	ctx := context.Background()
	n := newNetwork()
	alice := newParty(t, n, newIdentity(t, "alice", "a1"))
	bob := newParty(t, n, newIdentity(t, "bob", "b1"))

	_, _, err := bob.prekeys.GenerateAndStorePreKeys(1)
	require.NoError(t, err)
	_, err = bob.prekeys.PublishPreKeys(ctx)
	require.NoError(t, err)
	_, err = alice.channels.InitiateChannel(ctx, "bob", "b1")
	require.NoError(t, err)
	require.NoError(t, alice.messages.SendMessage(ctx, "bob", "b1", []byte("one")))

	n.mu.Lock()
	d := n.devices[domain.ConversationFor("alice", "a1")]
	d.EncryptionKey = newIdentity(t, "alice", "a1").XPub
	n.devices[domain.ConversationFor("alice", "a1")] = d
	n.mu.Unlock()

	_, err = bob.messages.ReceiveMessages(ctx, 0)
	assert.ErrorIs(t, err, message.ErrUnknownSender)
}

func TestReceiveMessages_RestartsOnNewIdentityKey(t *testing.T) {
	ctx := context.Background()
	n := newNetwork()
	alice := newParty(t, n, newIdentity(t, "alice", "a1"))
	bob := newParty(t, n, newIdentity(t, "bob", "b1"))

	_, _, err := bob.prekeys.GenerateAndStorePreKeys(2)
	require.NoError(t, err)
	_, err = bob.prekeys.PublishPreKeys(ctx)
	require.NoError(t, err)

	_, err = alice.channels.InitiateChannel(ctx, "bob", "b1")
	require.NoError(t, err)
	require.NoError(t, alice.messages.SendMessage(ctx, "bob", "b1", []byte("before")))
	_, err = bob.messages.ReceiveMessages(ctx, 0)
	require.NoError(t, err)

	// Same device reinstalled with fresh keys and empty local state.
	renewed := newParty(t, n, newIdentity(t, "alice", "a1"))
	_, err = renewed.channels.InitiateChannel(ctx, "bob", "b1")
	require.NoError(t, err)
	require.NoError(t, renewed.messages.SendMessage(ctx, "bob", "b1", []byte("after")))

	got, err := bob.messages.ReceiveMessages(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"after"}, plaintexts(got))

	conv, ok, err := bob.stores.Conversations.LoadConversation(domain.ConversationFor("alice", "a1"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, renewed.id.XPub, conv.PeerIdentityKey)
}
