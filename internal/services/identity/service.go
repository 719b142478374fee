package identity

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"sealkit/internal/crypto"
	"sealkit/internal/domain"
	"sealkit/internal/relay"
	"sealkit/internal/sigchain"
)

// ErrStaleExport is returned when an imported identity no longer matches the keys the
// key server has for that device, typically because the device was renewed since.
var ErrStaleExport = errors.New("identity export does not match the key server")

// Service manages the local identity and its account on one key server.
type Service struct {
	ids       domain.IdentityStore
	accounts  domain.AccountStore
	api       domain.AccountAPI
	serverURL string
	log       zerolog.Logger
	now       func() time.Time

	// mu serialises operations that rewrite the identity.
	mu sync.Mutex
}

// New returns an identity service.
func New(
	ids domain.IdentityStore,
	accounts domain.AccountStore,
	api domain.AccountAPI,
	serverURL string,
	log zerolog.Logger,
) *Service {
	return &Service{ids: ids, accounts: accounts, api: api, serverURL: serverURL, log: log, now: time.Now}
}

// GeneratePrivateKeys returns fresh device keys, for callers that generate keys ahead
// of the operation that uses them.
func (s *Service) GeneratePrivateKeys() (domain.GeneratedPrivateKeys, error) {
	return crypto.GeneratePrivateKeys()
}

func (s *Service) keysOrNew(keys *domain.GeneratedPrivateKeys) (domain.GeneratedPrivateKeys, error) {
	if keys != nil {
		return *keys, nil
	}
	return crypto.GeneratePrivateKeys()
}

func (s *Service) expiry(after time.Duration) time.Time {
	if after <= 0 {
		after = domain.DefaultDeviceExpiry
	}
	return s.now().Add(after).UTC().Truncate(time.Second)
}

// Identity returns the stored identity, or domain.ErrNoAccount.
func (s *Service) Identity() (domain.Identity, error) {
	id, ok, err := s.ids.LoadIdentity()
	if err != nil {
		return domain.Identity{}, errors.Wrap(err, "load identity")
	}
	if !ok {
		return domain.Identity{}, domain.ErrNoAccount
	}
	return id, nil
}

// CreateAccount registers a new user with this instance's first device.
func (s *Service) CreateAccount(ctx context.Context, opts domain.CreateAccountOptions) (domain.AccountInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok, err := s.ids.LoadIdentity(); err != nil {
		return domain.AccountInfo{}, errors.Wrap(err, "load identity")
	} else if ok {
		return domain.AccountInfo{}, domain.ErrAccountExists
	}
	keys, err := s.keysOrNew(opts.Keys)
	if err != nil {
		return domain.AccountInfo{}, err
	}
	id := domain.Identity{
		UserID:        domain.UserID(uuid.NewString()),
		DeviceID:      domain.DeviceID(uuid.NewString()),
		XPriv:         keys.XPriv,
		XPub:          keys.XPub,
		EdPriv:        keys.EdPriv,
		EdPub:         keys.EdPub,
		DeviceExpires: s.expiry(opts.ExpireAfter),
	}
	device := id.Public()
	device.Name = opts.DeviceName

	entry, err := sigchain.Next(nil, domain.SigchainCreate, device, id, s.now())
	if err != nil {
		return domain.AccountInfo{}, errors.Wrap(err, "sigchain")
	}
	err = s.api.CreateAccount(ctx, domain.CreateAccountRequest{
		SignupJWT:   opts.SignupJWT,
		DisplayName: opts.DisplayName,
		Device:      device,
		Sigchain:    entry,
	})
	if err != nil {
		return domain.AccountInfo{}, errors.Wrap(err, "create account")
	}
	info, err := s.save(id)
	if err != nil {
		return domain.AccountInfo{}, err
	}
	s.log.Info().Str("user", string(id.UserID)).Str("device", string(id.DeviceID)).Msg("account created")
	return info, nil
}

func (s *Service) save(id domain.Identity) (domain.AccountInfo, error) {
	if err := s.ids.SaveIdentity(id); err != nil {
		return domain.AccountInfo{}, errors.Wrap(err, "save identity")
	}
	info := domain.AccountInfo{
		ServerURL:     s.serverURL,
		UserID:        id.UserID,
		DeviceID:      id.DeviceID,
		DeviceExpires: id.DeviceExpires,
	}
	if err := s.accounts.SaveAccountInfo(info); err != nil {
		return domain.AccountInfo{}, errors.Wrap(err, "save account info")
	}
	return info, nil
}

// CurrentAccountInfo returns the account of this instance, or nil when there is none.
func (s *Service) CurrentAccountInfo() (*domain.AccountInfo, error) {
	info, ok, err := s.accounts.LoadAccountInfo()
	if err != nil {
		return nil, errors.Wrap(err, "load account info")
	}
	if !ok {
		return nil, nil
	}
	return &info, nil
}

// UpdateCurrentDevice refreshes the locally known device expiry from the key server.
func (s *Service) UpdateCurrentDevice(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, err := s.Identity()
	if err != nil {
		return err
	}
	d, err := s.api.GetDevice(ctx, id.UserID, id.DeviceID)
	if err != nil {
		return errors.Wrap(staleOnUnauthorized(err), "get device")
	}
	if d.SigningKey != id.EdPub || d.EncryptionKey != id.XPub {
		return ErrStaleExport
	}
	id.DeviceExpires = d.Expires
	_, err = s.save(id)
	return err
}

// staleOnUnauthorized maps a rejected request signature to ErrStaleExport: the key
// server no longer knows the signing key of this identity.
func staleOnUnauthorized(err error) error {
	if relay.HasCode(err, relay.CodeUnauthorized) {
		return ErrStaleExport
	}
	return err
}

// verifiedChain fetches the sigchain of user and checks it.
func (s *Service) verifiedChain(ctx context.Context, user domain.UserID) ([]domain.SigchainEntry, error) {
	chain, err := s.api.Sigchain(ctx, user)
	if err != nil {
		return nil, errors.Wrap(err, "fetch sigchain")
	}
	if _, err := sigchain.Verify(chain); err != nil {
		return nil, errors.Wrapf(err, "sigchain of %s", user)
	}
	return chain, nil
}

// PrepareRenew returns an export of the current identity carrying new keys. Passing it
// to RenewKeys later installs exactly those keys.
func (s *Service) PrepareRenew(keys *domain.GeneratedPrivateKeys) ([]byte, error) {
	id, err := s.Identity()
	if err != nil {
		return nil, err
	}
	k, err := s.keysOrNew(keys)
	if err != nil {
		return nil, err
	}
	id.XPriv, id.XPub, id.EdPriv, id.EdPub = k.XPriv, k.XPub, k.EdPriv, k.EdPub
	id.RetiredKeys = nil
	return EncodeExport(s.serverURL, id)
}

// RenewKeys replaces the keys of the current device. The renewal is signed with the
// old signing key, which stops working afterwards.
func (s *Service) RenewKeys(ctx context.Context, opts domain.RenewKeysOptions) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	old, err := s.Identity()
	if err != nil {
		return err
	}
	keys := opts.Keys
	if opts.PreparedRenewal != nil {
		_, prepared, err := DecodeExport(opts.PreparedRenewal)
		if err != nil {
			return err
		}
		if prepared.UserID != old.UserID || prepared.DeviceID != old.DeviceID {
			return errors.Wrap(domain.ErrInvalidArgument, "prepared renewal is for another device")
		}
		keys = &domain.GeneratedPrivateKeys{
			XPriv: prepared.XPriv, XPub: prepared.XPub, EdPriv: prepared.EdPriv, EdPub: prepared.EdPub,
		}
	}
	k, err := s.keysOrNew(keys)
	if err != nil {
		return err
	}

	renewed := old
	renewed.XPriv, renewed.XPub, renewed.EdPriv, renewed.EdPub = k.XPriv, k.XPub, k.EdPriv, k.EdPub
	renewed.DeviceExpires = s.expiry(opts.ExpireAfter)
	renewed.RetiredKeys = append(append([]domain.RetiredKey(nil), old.RetiredKeys...),
		domain.RetiredKey{XPriv: old.XPriv, XPub: old.XPub})

	chain, err := s.verifiedChain(ctx, old.UserID)
	if err != nil {
		return err
	}
	entry, err := sigchain.Next(chain, domain.SigchainRenew, renewed.Public(), old, s.now())
	if err != nil {
		return errors.Wrap(err, "sigchain")
	}
	if err := s.api.RenewDevice(ctx, domain.RenewDeviceRequest{Device: renewed.Public(), Sigchain: entry}); err != nil {
		return errors.Wrap(err, "renew device")
	}
	if _, err := s.save(renewed); err != nil {
		return err
	}
	s.log.Info().Str("device", string(renewed.DeviceID)).Time("expires", renewed.DeviceExpires).Msg("device keys renewed")
	return nil
}

// CreateSubIdentity registers another device for the current user and returns its
// export. The new device has no session keys until MassReencrypt runs for it.
func (s *Service) CreateSubIdentity(ctx context.Context, opts domain.SubIdentityOptions) (domain.SubIdentity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, err := s.Identity()
	if err != nil {
		return domain.SubIdentity{}, err
	}
	k, err := s.keysOrNew(opts.Keys)
	if err != nil {
		return domain.SubIdentity{}, err
	}
	sub := domain.Identity{
		UserID:        id.UserID,
		DeviceID:      domain.DeviceID(uuid.NewString()),
		XPriv:         k.XPriv,
		XPub:          k.XPub,
		EdPriv:        k.EdPriv,
		EdPub:         k.EdPub,
		DeviceExpires: s.expiry(opts.ExpireAfter),
	}
	device := sub.Public()
	device.Name = opts.DeviceName

	chain, err := s.verifiedChain(ctx, id.UserID)
	if err != nil {
		return domain.SubIdentity{}, err
	}
	entry, err := sigchain.Next(chain, domain.SigchainAddDevice, device, id, s.now())
	if err != nil {
		return domain.SubIdentity{}, errors.Wrap(err, "sigchain")
	}
	if err := s.api.AddDevice(ctx, domain.AddDeviceRequest{Device: device, Sigchain: entry}); err != nil {
		return domain.SubIdentity{}, errors.Wrap(err, "add device")
	}
	export, err := EncodeExport(s.serverURL, sub)
	if err != nil {
		return domain.SubIdentity{}, err
	}
	s.log.Info().Str("device", string(sub.DeviceID)).Msg("sub-identity created")
	return domain.SubIdentity{DeviceID: sub.DeviceID, BackupKey: export}, nil
}

// ImportIdentity installs an exported identity on an instance without one. The export
// must match the keys the key server currently has for its device.
func (s *Service) ImportIdentity(ctx context.Context, export []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok, err := s.ids.LoadIdentity(); err != nil {
		return errors.Wrap(err, "load identity")
	} else if ok {
		return domain.ErrAccountExists
	}
	serverURL, id, err := DecodeExport(export)
	if err != nil {
		return err
	}
	if serverURL != "" && serverURL != s.serverURL {
		return errors.Wrapf(domain.ErrInvalidArgument, "export is for key server %s", serverURL)
	}

	// Requests are signed with the stored identity, so store it before asking.
	if err := s.ids.SaveIdentity(id); err != nil {
		return errors.Wrap(err, "save identity")
	}
	d, err := s.api.GetDevice(ctx, id.UserID, id.DeviceID)
	if err == nil && (d.SigningKey != id.EdPub || d.EncryptionKey != id.XPub) {
		err = ErrStaleExport
	}
	err = staleOnUnauthorized(err)
	if err != nil {
		if derr := s.ids.DeleteIdentity(); derr != nil {
			s.log.Error().Err(derr).Msg("roll back identity import")
		}
		return errors.Wrap(err, "check imported device")
	}
	id.DeviceExpires = d.Expires
	_, err = s.save(id)
	return err
}

// ExportIdentity serialises the current identity, private keys included.
func (s *Service) ExportIdentity() ([]byte, error) {
	id, err := s.Identity()
	if err != nil {
		return nil, err
	}
	return EncodeExport(s.serverURL, id)
}

// FingerprintIdentity returns a short fingerprint of the device public keys.
func (s *Service) FingerprintIdentity() (domain.Fingerprint, error) {
	id, err := s.Identity()
	if err != nil {
		return "", err
	}
	return domain.Fingerprint(crypto.Fingerprint(id.XPub.Slice(), id.EdPub.Slice())), nil
}

// GetSigchainHash returns the hash of user's sigchain entry at position; -1 selects the
// last entry.
func (s *Service) GetSigchainHash(ctx context.Context, user domain.UserID, position int) (domain.SigchainHash, error) {
	chain, err := s.verifiedChain(ctx, user)
	if err != nil {
		return domain.SigchainHash{}, err
	}
	return sigchain.HashAt(chain, position)
}

// CheckSigchainHash looks hash up in user's sigchain. A non-negative position also
// requires the hash to sit at that position.
func (s *Service) CheckSigchainHash(
	ctx context.Context,
	user domain.UserID,
	hash string,
	position int,
) (domain.SigchainCheck, error) {
	chain, err := s.verifiedChain(ctx, user)
	if err != nil {
		return domain.SigchainCheck{}, err
	}
	return sigchain.Check(chain, hash, position)
}

// Heartbeat tells the key server this device is alive.
func (s *Service) Heartbeat(ctx context.Context) error {
	return errors.Wrap(s.api.Heartbeat(ctx), "heartbeat")
}

var _ domain.IdentityService = (*Service)(nil)
