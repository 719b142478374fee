package store

import (
	"sealkit/internal/domain"
)

const currentIdentityKey = "current"

// IdentityStore persists the local identity in the encrypted database.
type IdentityStore struct {
	*kv
}

// SaveIdentity replaces the stored identity.
func (s *IdentityStore) SaveIdentity(id domain.Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.putJSON(currentIdentityKey, id)
}

// LoadIdentity returns the stored identity and whether one exists.
func (s *IdentityStore) LoadIdentity() (domain.Identity, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var id domain.Identity
	ok, err := s.getJSON(currentIdentityKey, &id)
	if err != nil || !ok {
		return domain.Identity{}, false, err
	}
	return id, true, nil
}

// DeleteIdentity forgets the stored identity.
func (s *IdentityStore) DeleteIdentity() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.s.Delete(currentIdentityKey)
}

// Compile-time assertion that IdentityStore implements domain.IdentityStore.
var _ domain.IdentityStore = (*IdentityStore)(nil)
