package store

import (
	"sort"
	"strings"

	"sealkit/internal/domain"
)

const (
	spkPrefix     = "spk/"
	opkPrefix     = "opk/"
	prekeyMetaKey = "meta"
)

// PreKeyStore holds the private pre-keys of this device.
type PreKeyStore struct {
	*kv
}

type prekeyMeta struct {
	CurrentSignedPreKeyID domain.SignedPreKeyID `json:"current_signed_pre_key_id"`
}

// SaveSignedPreKey stores spk under its ID.
func (s *PreKeyStore) SaveSignedPreKey(spk domain.SignedPreKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.putJSON(spkPrefix+spk.ID.String(), spk)
}

// LoadSignedPreKey returns the signed pre-key with id.
func (s *PreKeyStore) LoadSignedPreKey(id domain.SignedPreKeyID) (domain.SignedPreKey, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var spk domain.SignedPreKey
	ok, err := s.getJSON(spkPrefix+id.String(), &spk)
	return spk, ok, err
}

// SaveOneTimePreKeys adds pairs.
func (s *PreKeyStore) SaveOneTimePreKeys(pairs []domain.OneTimePreKeyPair) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range pairs {
		if err := s.putJSON(opkPrefix+p.ID.String(), p); err != nil {
			return err
		}
	}
	return nil
}

// ConsumeOneTimePreKey deletes and returns the one-time pre-key with id.
func (s *PreKeyStore) ConsumeOneTimePreKey(id domain.OneTimePreKeyID) (domain.OneTimePreKeyPair, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var p domain.OneTimePreKeyPair
	ok, err := s.getJSON(opkPrefix+id.String(), &p)
	if err != nil || !ok {
		return domain.OneTimePreKeyPair{}, false, err
	}
	if err := s.s.Delete(opkPrefix + id.String()); err != nil {
		return domain.OneTimePreKeyPair{}, false, err
	}
	return p, true, nil
}

// ListOneTimePreKeyPublics returns the public halves of the unused one-time pre-keys,
// ordered by ID.
func (s *PreKeyStore) ListOneTimePreKeyPublics() ([]domain.OneTimePreKeyPublic, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys, err := s.s.Keys(opkPrefix)
	if err != nil {
		return nil, err
	}
	sort.Strings(keys)

	out := make([]domain.OneTimePreKeyPublic, 0, len(keys))
	for _, k := range keys {
		var p domain.OneTimePreKeyPair
		ok, err := s.getJSON(k, &p)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		p.ID = domain.OneTimePreKeyID(strings.TrimPrefix(k, opkPrefix))
		out = append(out, p.Public())
	}
	return out, nil
}

// SetCurrentSignedPreKeyID selects the signed pre-key bundles are built from.
func (s *PreKeyStore) SetCurrentSignedPreKeyID(id domain.SignedPreKeyID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.putJSON(prekeyMetaKey, prekeyMeta{CurrentSignedPreKeyID: id})
}

// CurrentSignedPreKeyID returns the selected signed pre-key ID.
func (s *PreKeyStore) CurrentSignedPreKeyID() (domain.SignedPreKeyID, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var meta prekeyMeta
	ok, err := s.getJSON(prekeyMetaKey, &meta)
	if err != nil || !ok || meta.CurrentSignedPreKeyID == "" {
		return "", false, err
	}
	return meta.CurrentSignedPreKeyID, true, nil
}

var _ domain.PreKeyStore = (*PreKeyStore)(nil)
