package channel

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"sealkit/internal/domain"
	"sealkit/internal/protocol/x3dh"
)

// IdentitySource returns the current device identity.
type IdentitySource interface {
	Identity() (domain.Identity, error)
}

// Service performs X3DH initiation and persists channels.
type Service struct {
	ids      IdentitySource
	channels domain.ChannelStore
	api      domain.ChannelAPI
	now      func() time.Time
}

// New returns a channel service.
func New(ids IdentitySource, channels domain.ChannelStore, api domain.ChannelAPI) *Service {
	return &Service{ids: ids, channels: channels, api: api, now: time.Now}
}

// InitiateChannel runs X3DH against the pre-key bundle of the peer device and stores
// the resulting channel.
func (s *Service) InitiateChannel(
	ctx context.Context,
	peerUser domain.UserID,
	peerDevice domain.DeviceID,
) (domain.Channel, error) {
	id, err := s.ids.Identity()
	if err != nil {
		return domain.Channel{}, err
	}

	bundle, err := s.api.FetchPreKeyBundle(ctx, peerUser, peerDevice)
	if err != nil {
		return domain.Channel{}, errors.Wrap(err, "fetch pre-key bundle")
	}
	if bundle.UserID != peerUser || bundle.DeviceID != peerDevice {
		return domain.Channel{}, errors.Errorf("bundle is for %s/%s", bundle.UserID, bundle.DeviceID)
	}

	rootKey, spkID, opkID, ephPub, err := x3dh.InitiatorRoot(id, bundle)
	if err != nil {
		return domain.Channel{}, errors.Wrap(err, "x3dh")
	}

	ch := domain.Channel{
		PeerUser:              peerUser,
		PeerDevice:            peerDevice,
		RootKey:               rootKey,
		PeerSignedPreKey:      bundle.SignedPreKey,
		PeerIdentityKey:       bundle.IdentityKey,
		CreatedUTC:            s.now().Unix(),
		SignedPreKeyID:        spkID,
		OneTimePreKeyID:       opkID,
		InitiatorEphemeralKey: ephPub,
	}
	if err := s.channels.SaveChannel(bundle.Conversation(), ch); err != nil {
		return domain.Channel{}, errors.Wrap(err, "save channel")
	}
	return ch, nil
}

// GetChannel returns the stored channel with a peer device.
func (s *Service) GetChannel(peer domain.ConversationID) (domain.Channel, bool, error) {
	return s.channels.LoadChannel(peer)
}

var _ domain.ChannelService = (*Service)(nil)
