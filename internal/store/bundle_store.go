package store

import (
	"sealkit/internal/domain"
)

const bundleKey = "current"

// BundleStore caches the last prekey bundle this device registered.
type BundleStore struct {
	*kv
}

// SavePreKeyBundle writes the bundle.
func (s *BundleStore) SavePreKeyBundle(b domain.PreKeyBundle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.putJSON(bundleKey, b)
}

// LoadPreKeyBundle returns the cached bundle and whether it was present.
func (s *BundleStore) LoadPreKeyBundle() (domain.PreKeyBundle, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var b domain.PreKeyBundle
	ok, err := s.getJSON(bundleKey, &b)
	if err != nil || !ok {
		return domain.PreKeyBundle{}, false, err
	}
	return b, true, nil
}

// Compile-time assertion that BundleStore implements domain.PreKeyBundleStore.
var _ domain.PreKeyBundleStore = (*BundleStore)(nil)
