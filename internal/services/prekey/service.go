package prekey

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	pkgerrors "github.com/pkg/errors"

	"sealkit/internal/crypto"
	"sealkit/internal/domain"
)

// ErrNoSignedPreKey is returned when no signed pre-key was generated yet.
var ErrNoSignedPreKey = errors.New("no signed pre-key available")

// IdentitySource returns the current device identity.
type IdentitySource interface {
	Identity() (domain.Identity, error)
}

// Service manages pre-key pairs and builds the public bundle.
type Service struct {
	ids   IdentitySource
	keys  domain.PreKeyStore
	cache domain.PreKeyBundleStore
	api   domain.ChannelAPI
	now   func() time.Time
}

// New returns a pre-key service.
func New(ids IdentitySource, keys domain.PreKeyStore, cache domain.PreKeyBundleStore, api domain.ChannelAPI) *Service {
	return &Service{ids: ids, keys: keys, cache: cache, api: api, now: time.Now}
}

// GenerateAndStorePreKeys creates a signed pre-key and count one-time pre-keys, and
// marks the new signed pre-key as current.
func (s *Service) GenerateAndStorePreKeys(count int) (domain.X25519Public, []domain.X25519Public, error) {
	id, err := s.ids.Identity()
	if err != nil {
		return domain.X25519Public{}, nil, err
	}

	spkPriv, spkPub, err := crypto.GenerateX25519()
	if err != nil {
		return domain.X25519Public{}, nil, err
	}
	spk := domain.SignedPreKey{
		ID:      domain.SignedPreKeyID("spk-" + uuid.NewString()),
		Priv:    spkPriv,
		Pub:     spkPub,
		Created: s.now().Unix(),
	}
	spk.Signature = crypto.SignEd25519(id.EdPriv, domain.SignedPreKeyMessage(id.UserID, id.DeviceID, spk.ID, spkPub))
	if err := s.keys.SaveSignedPreKey(spk); err != nil {
		return domain.X25519Public{}, nil, pkgerrors.Wrap(err, "save signed pre-key")
	}
	if err := s.keys.SetCurrentSignedPreKeyID(spk.ID); err != nil {
		return domain.X25519Public{}, nil, pkgerrors.Wrap(err, "select signed pre-key")
	}

	pairs := make([]domain.OneTimePreKeyPair, 0, count)
	publics := make([]domain.X25519Public, 0, count)
	for i := 0; i < count; i++ {
		priv, pub, err := crypto.GenerateX25519()
		if err != nil {
			return domain.X25519Public{}, nil, err
		}
		pairs = append(pairs, domain.OneTimePreKeyPair{
			ID:   domain.OneTimePreKeyID("opk-" + uuid.NewString()),
			Priv: priv,
			Pub:  pub,
		})
		publics = append(publics, pub)
	}
	if err := s.keys.SaveOneTimePreKeys(pairs); err != nil {
		return domain.X25519Public{}, nil, pkgerrors.Wrap(err, "save one-time pre-keys")
	}
	return spkPub, publics, nil
}

// LoadPreKeyBundle builds the public bundle from the current signed pre-key and the
// remaining one-time pre-keys, caches it and returns it.
func (s *Service) LoadPreKeyBundle() (domain.PreKeyBundle, error) {
	id, err := s.ids.Identity()
	if err != nil {
		return domain.PreKeyBundle{}, err
	}
	spkID, ok, err := s.keys.CurrentSignedPreKeyID()
	if err != nil {
		return domain.PreKeyBundle{}, err
	}
	if !ok {
		return domain.PreKeyBundle{}, ErrNoSignedPreKey
	}
	spk, found, err := s.keys.LoadSignedPreKey(spkID)
	if err != nil {
		return domain.PreKeyBundle{}, err
	}
	if !found {
		return domain.PreKeyBundle{}, ErrNoSignedPreKey
	}
	oneTime, err := s.keys.ListOneTimePreKeyPublics()
	if err != nil {
		return domain.PreKeyBundle{}, err
	}

	b := domain.PreKeyBundle{
		UserID:                id.UserID,
		DeviceID:              id.DeviceID,
		IdentityKey:           id.XPub,
		SigningKey:            id.EdPub,
		SignedPreKeyID:        spkID,
		SignedPreKey:          spk.Pub,
		SignedPreKeySignature: spk.Signature,
		OneTimePreKeys:        oneTime,
	}
	if err := s.cache.SavePreKeyBundle(b); err != nil {
		return domain.PreKeyBundle{}, pkgerrors.Wrap(err, "cache bundle")
	}
	return b, nil
}

// PublishPreKeys registers the current bundle with the key server. After a key
// renewal the signed pre-key must be regenerated first, since it is signed with the
// device signing key.
func (s *Service) PublishPreKeys(ctx context.Context) (domain.PreKeyBundle, error) {
	b, err := s.LoadPreKeyBundle()
	if err != nil {
		return domain.PreKeyBundle{}, err
	}
	if err := s.api.RegisterPreKeyBundle(ctx, b); err != nil {
		return domain.PreKeyBundle{}, pkgerrors.Wrap(err, "register pre-key bundle")
	}
	return b, nil
}

var _ domain.PreKeyService = (*Service)(nil)
