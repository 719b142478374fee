package store

import (
	"sealkit/internal/domain"
)

// RatchetStore persists per-peer Double-Ratchet state.
type RatchetStore struct {
	*kv
}

// SaveConversation writes the Conversation for peer.
func (s *RatchetStore) SaveConversation(peer domain.ConversationID, conv domain.Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.putJSON(peer.String(), conv)
}

// LoadConversation retrieves the Conversation for peer.
func (s *RatchetStore) LoadConversation(peer domain.ConversationID) (domain.Conversation, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var c domain.Conversation
	ok, err := s.getJSON(peer.String(), &c)
	if err != nil || !ok {
		return domain.Conversation{}, false, err
	}
	return c, true, nil
}

// Compile-time assertion that RatchetStore implements domain.RatchetStore.
var _ domain.RatchetStore = (*RatchetStore)(nil)
