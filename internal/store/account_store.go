package store

import (
	"sealkit/internal/domain"
)

const accountInfoKey = "info"

// AccountStore persists which account this instance holds.
type AccountStore struct {
	*kv
}

// SaveAccountInfo stores or updates the account record.
func (s *AccountStore) SaveAccountInfo(info domain.AccountInfo) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.putJSON(accountInfoKey, info)
}

// LoadAccountInfo returns the account record and whether it exists.
func (s *AccountStore) LoadAccountInfo() (domain.AccountInfo, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var info domain.AccountInfo
	ok, err := s.getJSON(accountInfoKey, &info)
	if err != nil || !ok {
		return domain.AccountInfo{}, false, err
	}
	return info, true, nil
}

// Compile-time assertion that AccountStore implements domain.AccountStore.
var _ domain.AccountStore = (*AccountStore)(nil)
