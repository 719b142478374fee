package store

import (
	"sealkit/internal/domain"
)

// GroupKeyStore caches opened group key generations so that sessions shared with a
// group do not need a key server round trip for the group keys every time.
type GroupKeyStore struct {
	*kv
}

// SaveGroupKeys stores one key generation.
func (s *GroupKeyStore) SaveGroupKeys(keys domain.GroupKeys) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.putJSON(groupKeyName(keys.GroupID, keys.KeyID), keys)
}

// LoadGroupKeys returns a cached key generation.
func (s *GroupKeyStore) LoadGroupKeys(
	group domain.GroupID,
	keyID domain.DeviceID,
) (domain.GroupKeys, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var keys domain.GroupKeys
	ok, err := s.getJSON(groupKeyName(group, keyID), &keys)
	if err != nil || !ok {
		return domain.GroupKeys{}, false, err
	}
	return keys, true, nil
}

func groupKeyName(group domain.GroupID, keyID domain.DeviceID) string {
	return group.String() + "/" + keyID.String()
}

// Compile-time assertion that GroupKeyStore implements domain.GroupKeyStore.
var _ domain.GroupKeyStore = (*GroupKeyStore)(nil)
