package store

import (
	"sealkit/internal/domain"
)

// ChannelStore persists established X3DH channels keyed by peer device.
type ChannelStore struct {
	*kv
}

// SaveChannel writes a channel record for peer.
func (s *ChannelStore) SaveChannel(peer domain.ConversationID, ch domain.Channel) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.putJSON(peer.String(), ch)
}

// LoadChannel retrieves a stored channel for peer.
func (s *ChannelStore) LoadChannel(peer domain.ConversationID) (domain.Channel, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var ch domain.Channel
	ok, err := s.getJSON(peer.String(), &ch)
	if err != nil || !ok {
		return domain.Channel{}, false, err
	}
	return ch, true, nil
}

// Compile-time assertion that ChannelStore implements domain.ChannelStore.
var _ domain.ChannelStore = (*ChannelStore)(nil)
