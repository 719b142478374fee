package sdk

import "context"

// PublishPreKeys generates count one-time pre-keys and a fresh signed pre-key and
// registers the resulting bundle, so peers can open channels with this device.
func (s *SDK) PublishPreKeys(ctx context.Context, count int) error {
	w, done, err := s.wire()
	if err != nil {
		return err
	}
	defer done()
	if _, _, err := w.PreKeys.GenerateAndStorePreKeys(count); err != nil {
		return err
	}
	_, err = w.PreKeys.PublishPreKeys(ctx)
	return err
}

// InitiateChannel runs X3DH with a peer device.
func (s *SDK) InitiateChannel(ctx context.Context, user UserID, device DeviceID) error {
	w, done, err := s.wire()
	if err != nil {
		return err
	}
	defer done()
	_, err = w.Channels.InitiateChannel(ctx, user, device)
	return err
}

// SendMessage sends a ratchet message to a peer device.
func (s *SDK) SendMessage(ctx context.Context, user UserID, device DeviceID, plaintext []byte) error {
	w, done, err := s.wire()
	if err != nil {
		return err
	}
	defer done()
	return w.Messages.SendMessage(ctx, user, device, plaintext)
}

// ReceiveMessages fetches and decrypts up to limit queued messages.
func (s *SDK) ReceiveMessages(ctx context.Context, limit int) ([]DecryptedMessage, error) {
	w, done, err := s.wire()
	if err != nil {
		return nil, err
	}
	defer done()
	return w.Messages.ReceiveMessages(ctx, limit)
}
