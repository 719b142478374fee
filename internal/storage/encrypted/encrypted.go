// Package encrypted wraps a storage.Provider so that every value is sealed with a
// key derived from the 64-byte database encryption key.
//
// Keys (record names) are stored in clear; values are XChaCha20-Poly1305 sealed with
// the store name and record name as associated data, so a value cannot be moved to
// another record undetected.
package encrypted

import (
	"github.com/pkg/errors"

	"sealkit/internal/crypto"
	"sealkit/internal/storage"
)

// DatabaseKeySize is the size of the database encryption key.
const DatabaseKeySize = 64

const (
	metaStore  = "_meta"
	canaryKey  = "canary"
	canaryText = "sealkit-database-canary"
)

var (
	// ErrBadKeySize is returned when the database key is not DatabaseKeySize bytes.
	ErrBadKeySize = errors.Errorf("database encryption key must be %d bytes", DatabaseKeySize)
	// ErrWrongKey is returned when the database was created with another key.
	ErrWrongKey = errors.New("wrong database encryption key")
)

// Provider seals values written through it.
type Provider struct {
	inner storage.Provider
	key   []byte
}

// New wraps inner. The first call on an empty database records a canary so that a
// wrong key is detected on later opens.
func New(inner storage.Provider, databaseKey []byte) (*Provider, error) {
	if len(databaseKey) != DatabaseKeySize {
		return nil, ErrBadKeySize
	}
	p := &Provider{inner: inner, key: append([]byte(nil), databaseKey...)}
	if err := p.checkCanary(); err != nil {
		return nil, err
	}
	return p, nil
}

// OpenStore opens the named store of the inner provider and wraps it.
func (p *Provider) OpenStore(name string) (storage.Store, error) {
	inner, err := p.inner.OpenStore(name)
	if err != nil {
		return nil, err
	}
	k, err := crypto.HKDF(p.key, nil, []byte("sealkit-store|"+name), crypto.KeySize)
	if err != nil {
		return nil, err
	}
	return &store{inner: inner, name: name, key: k}, nil
}

// Close closes the inner provider.
func (p *Provider) Close() error {
	return p.inner.Close()
}

func (p *Provider) checkCanary() error {
	s, err := p.OpenStore(metaStore)
	if err != nil {
		return err
	}
	v, err := s.Get(canaryKey)
	switch {
	case errors.Is(err, storage.ErrDataNotFound):
		return s.Put(canaryKey, []byte(canaryText))
	case errors.Is(err, crypto.ErrOpen):
		return ErrWrongKey
	case err != nil:
		return err
	}
	if string(v) != canaryText {
		return ErrWrongKey
	}
	return nil
}

type store struct {
	inner storage.Store
	name  string
	key   []byte
}

func (s *store) ad(k string) []byte {
	return []byte(s.name + "\x00" + k)
}

func (s *store) Put(k string, v []byte) error {
	nonce, ct, err := crypto.Seal(s.key, v, s.ad(k))
	if err != nil {
		return errors.Wrapf(err, "seal %s/%s", s.name, k)
	}
	return s.inner.Put(k, append(nonce, ct...))
}

func (s *store) Get(k string) ([]byte, error) {
	raw, err := s.inner.Get(k)
	if err != nil {
		return nil, err
	}
	if len(raw) < crypto.NonceSize {
		return nil, crypto.ErrOpen
	}
	return crypto.Open(s.key, raw[:crypto.NonceSize], raw[crypto.NonceSize:], s.ad(k))
}

func (s *store) Delete(k string) error {
	return s.inner.Delete(k)
}

func (s *store) Keys(prefix string) ([]string, error) {
	return s.inner.Keys(prefix)
}
