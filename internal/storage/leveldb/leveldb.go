// Package leveldb is a goleveldb implementation of storage.Provider.
package leveldb

import (
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/syndtr/goleveldb/leveldb"
	lerrors "github.com/syndtr/goleveldb/leveldb/errors"
	lstorage "github.com/syndtr/goleveldb/leveldb/storage"
	"github.com/syndtr/goleveldb/leveldb/util"

	"sealkit/internal/storage"
)

const separator = "\x00"

// Provider is a LevelDB implementation of storage.Provider. All stores share one
// database; each store is a key prefix.
type Provider struct {
	db     *leveldb.DB
	lock   sync.RWMutex
	closed bool
}

// NewProvider opens (or creates) the database at dbPath.
func NewProvider(dbPath string) (*Provider, error) {
	db, err := leveldb.OpenFile(dbPath, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "open leveldb at %s", dbPath)
	}
	return &Provider{db: db}, nil
}

// NewMemProvider returns a Provider backed by memory only.
func NewMemProvider() (*Provider, error) {
	db, err := leveldb.Open(lstorage.NewMemStorage(), nil)
	if err != nil {
		return nil, errors.Wrap(err, "open in-memory leveldb")
	}
	return &Provider{db: db}, nil
}

// OpenStore returns a handle on the name space name.
func (p *Provider) OpenStore(name string) (storage.Store, error) {
	if name == "" {
		return nil, errors.New("store name cannot be blank")
	}
	if strings.Contains(name, separator) {
		return nil, errors.Errorf("invalid store name %q", name)
	}
	p.lock.RLock()
	defer p.lock.RUnlock()
	if p.closed {
		return nil, storage.ErrClosed
	}
	return &store{p: p, prefix: strings.ToLower(name) + separator}, nil
}

// Close closes the database. Later calls on any store fail with storage.ErrClosed.
func (p *Provider) Close() error {
	p.lock.Lock()
	defer p.lock.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	return p.db.Close()
}

type store struct {
	p      *Provider
	prefix string
}

func (s *store) Put(k string, v []byte) error {
	if k == "" || v == nil {
		return errors.New("key and value are mandatory")
	}
	s.p.lock.RLock()
	defer s.p.lock.RUnlock()
	if s.p.closed {
		return storage.ErrClosed
	}
	return s.p.db.Put([]byte(s.prefix+k), v, nil)
}

func (s *store) Get(k string) ([]byte, error) {
	if k == "" {
		return nil, errors.New("key is mandatory")
	}
	s.p.lock.RLock()
	defer s.p.lock.RUnlock()
	if s.p.closed {
		return nil, storage.ErrClosed
	}
	data, err := s.p.db.Get([]byte(s.prefix+k), nil)
	if errors.Is(err, lerrors.ErrNotFound) {
		return nil, storage.ErrDataNotFound
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}

func (s *store) Delete(k string) error {
	s.p.lock.RLock()
	defer s.p.lock.RUnlock()
	if s.p.closed {
		return storage.ErrClosed
	}
	return s.p.db.Delete([]byte(s.prefix+k), nil)
}

func (s *store) Keys(prefix string) ([]string, error) {
	s.p.lock.RLock()
	defer s.p.lock.RUnlock()
	if s.p.closed {
		return nil, storage.ErrClosed
	}
	iter := s.p.db.NewIterator(util.BytesPrefix([]byte(s.prefix+prefix)), nil)
	defer iter.Release()

	var keys []string
	for iter.Next() {
		keys = append(keys, strings.TrimPrefix(string(iter.Key()), s.prefix))
	}
	return keys, iter.Error()
}
