package message

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	pkgerrors "github.com/pkg/errors"
	"github.com/rs/zerolog"

	"sealkit/internal/domain"
	"sealkit/internal/protocol/ratchet"
	"sealkit/internal/protocol/x3dh"
)

var (
	// ErrNoChannel indicates there is no stored channel with the peer device.
	ErrNoChannel = errors.New("no channel with peer; run InitiateChannel first")
	// ErrUnknownSender is returned when the pre-key message does not carry the
	// identity key the key server lists for the sending device.
	ErrUnknownSender = errors.New("pre-key message identity does not match the sender device")
)

// IdentitySource returns the current device identity.
type IdentitySource interface {
	Identity() (domain.Identity, error)
}

// DeviceDirectory looks up the public keys of a device.
type DeviceDirectory interface {
	GetDevice(ctx context.Context, user domain.UserID, device domain.DeviceID) (domain.DevicePublic, error)
}

// Service sends and receives messages using Double Ratchet.
type Service struct {
	ids      IdentitySource
	prekeys  domain.PreKeyStore
	ratchets domain.RatchetStore
	channels domain.ChannelService
	api      domain.ChannelAPI
	devices  DeviceDirectory
	log      zerolog.Logger
	now      func() time.Time

	// mu serialises ratchet state updates.
	mu sync.Mutex
}

// New returns a message service.
func New(
	ids IdentitySource,
	prekeys domain.PreKeyStore,
	ratchets domain.RatchetStore,
	channels domain.ChannelService,
	api domain.ChannelAPI,
	devices DeviceDirectory,
	log zerolog.Logger,
) *Service {
	return &Service{
		ids:      ids,
		prekeys:  prekeys,
		ratchets: ratchets,
		channels: channels,
		api:      api,
		devices:  devices,
		log:      log,
		now:      time.Now,
	}
}

// associatedData binds a ciphertext to its sending and receiving devices.
func associatedData(fromUser domain.UserID, fromDevice domain.DeviceID, toUser domain.UserID, toDevice domain.DeviceID) []byte {
	return []byte(string(domain.ConversationFor(fromUser, fromDevice)) + ">" + string(domain.ConversationFor(toUser, toDevice)))
}

// SendMessage encrypts plaintext for a peer device and posts it to the key server.
func (s *Service) SendMessage(
	ctx context.Context,
	toUser domain.UserID,
	toDevice domain.DeviceID,
	plaintext []byte,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, err := s.ids.Identity()
	if err != nil {
		return err
	}
	peer := domain.ConversationFor(toUser, toDevice)
	conv, found, err := s.ratchets.LoadConversation(peer)
	if err != nil {
		return pkgerrors.Wrap(err, "load conversation")
	}

	var prekey *domain.PreKeyMessage
	if !found {
		ch, ok, err := s.channels.GetChannel(peer)
		if err != nil {
			return pkgerrors.Wrap(err, "load channel")
		}
		if !ok {
			return ErrNoChannel
		}
		st, err := ratchet.InitAsInitiator(ch.RootKey, id.XPriv, id.XPub, ch.PeerIdentityKey)
		if err != nil {
			return err
		}
		conv = domain.Conversation{
			Peer:            peer,
			PeerUser:        toUser,
			PeerDevice:      toDevice,
			PeerIdentityKey: ch.PeerIdentityKey,
			Established:     s.now().Unix(),
			State:           st,
		}
		prekey = &domain.PreKeyMessage{
			InitiatorIdentityKey: id.XPub,
			EphemeralKey:         ch.InitiatorEphemeralKey,
			SignedPreKeyID:       ch.SignedPreKeyID,
			OneTimePreKeyID:      ch.OneTimePreKeyID,
		}
	}

	ad := associatedData(id.UserID, id.DeviceID, toUser, toDevice)
	header, ct, err := ratchet.Encrypt(&conv.State, ad, plaintext)
	if err != nil {
		return err
	}
	if err := s.ratchets.SaveConversation(peer, conv); err != nil {
		return pkgerrors.Wrap(err, "save conversation")
	}

	return s.api.SendMessage(ctx, domain.ChannelMessage{
		FromUser:       id.UserID,
		FromDevice:     id.DeviceID,
		ToUser:         toUser,
		ToDevice:       toDevice,
		Header:         header,
		Cipher:         ct,
		AssociatedData: ad,
		PreKey:         prekey,
		Timestamp:      s.now().Unix(),
	})
}

// bootstrap builds the responder side of a conversation from a first message.
func (s *Service) bootstrap(ctx context.Context, id domain.Identity, msg domain.ChannelMessage) (domain.Conversation, error) {
	if msg.PreKey == nil || len(msg.Header.DiffieHellmanPublicKey) != 32 {
		return domain.Conversation{}, ErrNoChannel
	}
	sender, err := s.devices.GetDevice(ctx, msg.FromUser, msg.FromDevice)
	if err != nil {
		return domain.Conversation{}, pkgerrors.Wrap(err, "look up sender")
	}
	if sender.EncryptionKey != msg.PreKey.InitiatorIdentityKey {
		return domain.Conversation{}, ErrUnknownSender
	}
	if msg.PreKey.SignedPreKeyID == "" {
		return domain.Conversation{}, fmt.Errorf("missing signed pre-key ID in pre-key message")
	}
	spk, ok, err := s.prekeys.LoadSignedPreKey(msg.PreKey.SignedPreKeyID)
	if err != nil {
		return domain.Conversation{}, err
	}
	if !ok {
		return domain.Conversation{}, fmt.Errorf("signed pre-key %q not found", msg.PreKey.SignedPreKeyID)
	}
	var opkPriv *domain.X25519Private
	if msg.PreKey.OneTimePreKeyID != "" {
		p, ok, err := s.prekeys.ConsumeOneTimePreKey(msg.PreKey.OneTimePreKeyID)
		if err != nil {
			return domain.Conversation{}, err
		}
		if ok {
			opkPriv = &p.Priv
		}
	}

	rk, err := x3dh.ResponderRoot(id, spk.Priv, opkPriv, *msg.PreKey)
	if err != nil {
		return domain.Conversation{}, fmt.Errorf("x3dh responder root: %w", err)
	}
	senderRatchet := domain.X25519Public(msg.Header.DiffieHellmanPublicKey)
	st, err := ratchet.InitAsResponder(rk, id.XPriv, id.XPub, senderRatchet)
	if err != nil {
		return domain.Conversation{}, err
	}
	return domain.Conversation{
		Peer:            domain.ConversationFor(msg.FromUser, msg.FromDevice),
		PeerUser:        msg.FromUser,
		PeerDevice:      msg.FromDevice,
		PeerIdentityKey: sender.EncryptionKey,
		Established:     s.now().Unix(),
		State:           st,
	}, nil
}

// ReceiveMessages fetches queued messages for this device and decrypts them in order.
// Processing stops at the first message that cannot be handled; everything before it
// is acked, the rest stays queued.
func (s *Service) ReceiveMessages(ctx context.Context, limit int) ([]domain.DecryptedMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, err := s.ids.Identity()
	if err != nil {
		return nil, err
	}
	msgs, err := s.api.FetchMessages(ctx, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "fetch messages")
	}

	out := make([]domain.DecryptedMessage, 0, len(msgs))
	processed := 0
	var procErr error
	for i, msg := range msgs {
		plain, err := s.receive(ctx, id, msg)
		if err != nil {
			procErr = fmt.Errorf("message %d from %s/%s: %w", i, msg.FromUser, msg.FromDevice, err)
			break
		}
		out = append(out, domain.DecryptedMessage{
			FromUser:   msg.FromUser,
			FromDevice: msg.FromDevice,
			ToUser:     msg.ToUser,
			Plaintext:  plain,
			Timestamp:  msg.Timestamp,
		})
		processed = i + 1
	}

	if processed > 0 {
		if err := s.api.AckMessages(ctx, processed); err != nil {
			return out, pkgerrors.Wrapf(err, "ack %d messages", processed)
		}
	}
	if procErr != nil {
		s.log.Warn().Err(procErr).Int("processed", processed).Msg("stopped receiving")
	}
	return out, procErr
}

func (s *Service) receive(ctx context.Context, id domain.Identity, msg domain.ChannelMessage) ([]byte, error) {
	ad := associatedData(msg.FromUser, msg.FromDevice, id.UserID, id.DeviceID)
	if !bytes.Equal(ad, msg.AssociatedData) {
		return nil, errors.New("associated data does not match the relay envelope")
	}

	peer := domain.ConversationFor(msg.FromUser, msg.FromDevice)
	conv, found, err := s.ratchets.LoadConversation(peer)
	if err != nil {
		return nil, err
	}
	restart := found && msg.PreKey != nil && msg.PreKey.InitiatorIdentityKey != conv.PeerIdentityKey
	if !found || restart {
		if conv, err = s.bootstrap(ctx, id, msg); err != nil {
			return nil, err
		}
	}

	plain, err := ratchet.Decrypt(&conv.State, ad, msg.Header, msg.Cipher)
	if err != nil {
		return nil, fmt.Errorf("decrypt: %w", err)
	}
	if err := s.ratchets.SaveConversation(peer, conv); err != nil {
		return nil, fmt.Errorf("save conversation: %w", err)
	}
	return plain, nil
}

var _ domain.MessageService = (*Service)(nil)
