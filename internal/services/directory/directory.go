package directory

import (
	"context"
	"errors"
	"time"

	"github.com/bluele/gcache"
	pkgerrors "github.com/pkg/errors"

	"sealkit/internal/domain"
	"sealkit/internal/sigchain"
)

// DefaultTTL is how long a verified sigchain stays cached.
const DefaultTTL = 5 * time.Minute

// ErrUnknownDevice is returned when a sigchain does not vouch for a device key.
var ErrUnknownDevice = errors.New("device key is not in the owner's sigchain")

// SigchainSource fetches sigchains from the key server.
type SigchainSource interface {
	Sigchain(ctx context.Context, user domain.UserID) ([]domain.SigchainEntry, error)
}

type record struct {
	active map[domain.DeviceID]domain.DevicePublic
	// history holds every key pair a device has been registered with, oldest first.
	history map[domain.DeviceID][]domain.SigchainEntry
}

// Directory caches verified sigchains by owner (user or group) ID.
type Directory struct {
	api   SigchainSource
	cache gcache.Cache
	ttl   time.Duration
}

// New returns a Directory caching verified chains for ttl.
func New(api SigchainSource, ttl time.Duration) *Directory {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Directory{api: api, cache: gcache.New(0).Build(), ttl: ttl}
}

func (d *Directory) load(ctx context.Context, owner string, refresh bool) (*record, error) {
	if !refresh {
		if v, err := d.cache.Get(owner); err == nil {
			return v.(*record), nil
		}
	}
	chain, err := d.api.Sigchain(ctx, domain.UserID(owner))
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "fetch sigchain of %s", owner)
	}
	active, err := sigchain.Verify(chain)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "verify sigchain of %s", owner)
	}
	rec := &record{active: active, history: make(map[domain.DeviceID][]domain.SigchainEntry)}
	for _, e := range chain {
		if e.Op != domain.SigchainRevoke {
			rec.history[e.DeviceID] = append(rec.history[e.DeviceID], e)
		}
	}
	if err := d.cache.SetWithExpire(owner, rec, d.ttl); err != nil {
		return nil, err
	}
	return rec, nil
}

// lookup runs match on the cached record of owner, refreshing it once on a miss since
// the chain may have grown.
func (d *Directory) lookup(ctx context.Context, owner string, match func(*record) bool) (*record, error) {
	rec, err := d.load(ctx, owner, false)
	if err != nil {
		return nil, err
	}
	if match(rec) {
		return rec, nil
	}
	if rec, err = d.load(ctx, owner, true); err != nil {
		return nil, err
	}
	if match(rec) {
		return rec, nil
	}
	return nil, ErrUnknownDevice
}

// CheckActive verifies that dev is an active device of its owner with exactly these
// keys.
func (d *Directory) CheckActive(ctx context.Context, dev domain.DevicePublic) error {
	_, err := d.lookup(ctx, string(dev.UserID), func(r *record) bool {
		got, ok := r.active[dev.DeviceID]
		return ok && got.EncryptionKey == dev.EncryptionKey && got.SigningKey == dev.SigningKey
	})
	if err != nil {
		return pkgerrors.Wrapf(err, "device %s/%s", dev.UserID, dev.DeviceID)
	}
	return nil
}

// CheckKnown verifies that dev's keys were registered for its device at some point,
// revoked or renewed devices included.
func (d *Directory) CheckKnown(ctx context.Context, dev domain.DevicePublic) error {
	_, err := d.lookup(ctx, string(dev.UserID), func(r *record) bool {
		for _, e := range r.history[dev.DeviceID] {
			if e.EncryptionKey == dev.EncryptionKey && e.SigningKey == dev.SigningKey {
				return true
			}
		}
		return false
	})
	if err != nil {
		return pkgerrors.Wrapf(err, "device %s/%s", dev.UserID, dev.DeviceID)
	}
	return nil
}

// Device returns the active record of device.
func (d *Directory) Device(ctx context.Context, user domain.UserID, device domain.DeviceID) (domain.DevicePublic, error) {
	rec, err := d.lookup(ctx, string(user), func(r *record) bool {
		_, ok := r.active[device]
		return ok
	})
	if err != nil {
		return domain.DevicePublic{}, pkgerrors.Wrapf(err, "device %s/%s", user, device)
	}
	return rec.active[device], nil
}

// SigningKeys returns every signing key device has been registered with.
func (d *Directory) SigningKeys(ctx context.Context, user domain.UserID, device domain.DeviceID) ([]domain.Ed25519Public, error) {
	rec, err := d.lookup(ctx, string(user), func(r *record) bool { return len(r.history[device]) > 0 })
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "device %s/%s", user, device)
	}
	out := make([]domain.Ed25519Public, 0, len(rec.history[device]))
	for _, e := range rec.history[device] {
		out = append(out, e.SigningKey)
	}
	return out, nil
}

// ActiveDevices returns the devices owner's sigchain leaves active.
func (d *Directory) ActiveDevices(ctx context.Context, owner string) (map[domain.DeviceID]domain.DevicePublic, error) {
	rec, err := d.load(ctx, owner, false)
	if err != nil {
		return nil, err
	}
	return rec.active, nil
}

// Invalidate drops the cached chain of owner.
func (d *Directory) Invalidate(owner string) { d.cache.Remove(owner) }
