package sdk

import (
	"context"
	"time"

	"sealkit/internal/domain"
)

// EncryptionSession is a handle on a session this instance created or retrieved.
type EncryptionSession struct {
	sdk  *SDK
	data domain.EncryptionSession
}

// ID returns the session ID.
func (e *EncryptionSession) ID() SessionID { return e.data.ID }

// CreatedBy returns the user that created the session. It is empty for sessions
// created anonymously.
func (e *EncryptionSession) CreatedBy() UserID { return e.data.CreatedBy }

// Retrieval tells how the session key was obtained.
func (e *EncryptionSession) Retrieval() RetrievalDetails { return e.data.Retrieval }

// Expires is the cache expiry; zero when the session is not cached or cached forever.
func (e *EncryptionSession) Expires() time.Time { return e.data.Expires }

func (s *SDK) handle(d domain.EncryptionSession) *EncryptionSession {
	return &EncryptionSession{sdk: s, data: d}
}

// CreateEncryptionSession creates a session shared with recipients. The current user
// is always a recipient with every right.
func (s *SDK) CreateEncryptionSession(ctx context.Context, recipients []Recipient, useCache bool) (*EncryptionSession, error) {
	w, done, err := s.wire()
	if err != nil {
		return nil, err
	}
	defer done()
	d, err := w.Sessions.CreateSession(ctx, recipients, useCache)
	if err != nil {
		return nil, err
	}
	return s.handle(d), nil
}

// RetrieveEncryptionSession retrieves session id. With lookupGroupKey the key may come
// through a group the current user belongs to.
func (s *SDK) RetrieveEncryptionSession(ctx context.Context, id SessionID, useCache, lookupGroupKey bool) (*EncryptionSession, error) {
	w, done, err := s.wire()
	if err != nil {
		return nil, err
	}
	defer done()
	d, err := w.Sessions.RetrieveSession(ctx, id, useCache, lookupGroupKey)
	if err != nil {
		return nil, err
	}
	return s.handle(d), nil
}

// RetrieveEncryptionSessionFromMessage retrieves the session a message was sealed with.
func (s *SDK) RetrieveEncryptionSessionFromMessage(ctx context.Context, msg string, useCache, lookupGroupKey bool) (*EncryptionSession, error) {
	id, err := ParseSessionIDFromMessage(msg)
	if err != nil {
		return nil, err
	}
	return s.RetrieveEncryptionSession(ctx, id, useCache, lookupGroupKey)
}

// RetrieveEncryptionSessionFromFile retrieves the session a file was sealed with.
func (s *SDK) RetrieveEncryptionSessionFromFile(ctx context.Context, file []byte, useCache, lookupGroupKey bool) (*EncryptionSession, error) {
	id, err := ParseSessionIDFromFile(file)
	if err != nil {
		return nil, err
	}
	return s.RetrieveEncryptionSession(ctx, id, useCache, lookupGroupKey)
}

// RetrieveEncryptionSessionFromBytes retrieves the session of a message or file in
// either form.
func (s *SDK) RetrieveEncryptionSessionFromBytes(ctx context.Context, b []byte, useCache, lookupGroupKey bool) (*EncryptionSession, error) {
	id, err := ParseSessionIDFromBytes(b)
	if err != nil {
		return nil, err
	}
	return s.RetrieveEncryptionSession(ctx, id, useCache, lookupGroupKey)
}

// RetrieveMultipleEncryptionSessions retrieves every session in ids, in order.
func (s *SDK) RetrieveMultipleEncryptionSessions(ctx context.Context, ids []SessionID, useCache, lookupGroupKey bool) ([]*EncryptionSession, error) {
	w, done, err := s.wire()
	if err != nil {
		return nil, err
	}
	defer done()
	ds, err := w.Sessions.RetrieveMultipleSessions(ctx, ids, useCache, lookupGroupKey)
	if err != nil {
		return nil, err
	}
	out := make([]*EncryptionSession, len(ds))
	for i, d := range ds {
		out[i] = s.handle(d)
	}
	return out, nil
}

// DevicesMissingKeys lists devices of the current user lacking session keys.
func (s *SDK) DevicesMissingKeys(ctx context.Context, forceLocalAccountUpdate bool) ([]DeviceMissingKeys, error) {
	w, done, err := s.wire()
	if err != nil {
		return nil, err
	}
	defer done()
	return w.Sessions.DevicesMissingKeys(ctx, forceLocalAccountUpdate)
}

// MassReencrypt gives device the keys of every session the current user can read
// directly.
func (s *SDK) MassReencrypt(ctx context.Context, device DeviceID, opts MassReencryptOptions) (MassReencryptResponse, error) {
	w, done, err := s.wire()
	if err != nil {
		return MassReencryptResponse{}, err
	}
	defer done()
	return w.Sessions.MassReencrypt(ctx, device, opts)
}

// AddRecipients shares the session with more users or groups.
func (e *EncryptionSession) AddRecipients(ctx context.Context, recipients []Recipient) (map[string]ActionStatus, error) {
	w, done, err := e.sdk.wire()
	if err != nil {
		return nil, err
	}
	defer done()
	return w.Sessions.AddRecipients(ctx, e.data, recipients)
}

// RevokeRecipients removes users or groups from the session.
func (e *EncryptionSession) RevokeRecipients(ctx context.Context, ids []string) (RevokeResult, error) {
	w, done, err := e.sdk.wire()
	if err != nil {
		return RevokeResult{}, err
	}
	defer done()
	return w.Sessions.RevokeRecipients(ctx, e.data.ID, ids)
}

// RevokeAll removes every recipient, the current user included.
func (e *EncryptionSession) RevokeAll(ctx context.Context) (RevokeResult, error) {
	w, done, err := e.sdk.wire()
	if err != nil {
		return RevokeResult{}, err
	}
	defer done()
	return w.Sessions.RevokeAll(ctx, e.data.ID)
}

// RevokeOthers removes every recipient but the current user.
func (e *EncryptionSession) RevokeOthers(ctx context.Context) (RevokeResult, error) {
	w, done, err := e.sdk.wire()
	if err != nil {
		return RevokeResult{}, err
	}
	defer done()
	return w.Sessions.RevokeOthers(ctx, e.data.ID)
}

// EncryptMessage seals a text message.
func (e *EncryptionSession) EncryptMessage(plaintext string) (string, error) {
	w, done, err := e.sdk.wire()
	if err != nil {
		return "", err
	}
	defer done()
	return w.Sessions.EncryptMessage(e.data, plaintext)
}

// DecryptMessage opens a message sealed with this session.
func (e *EncryptionSession) DecryptMessage(ctx context.Context, msg string) (string, error) {
	w, done, err := e.sdk.wire()
	if err != nil {
		return "", err
	}
	defer done()
	return w.Sessions.DecryptMessage(ctx, e.data, msg)
}

// EncryptFile seals content under filename.
func (e *EncryptionSession) EncryptFile(content []byte, filename string) ([]byte, error) {
	w, done, err := e.sdk.wire()
	if err != nil {
		return nil, err
	}
	defer done()
	return w.Sessions.EncryptFile(e.data, content, filename)
}

// DecryptFile opens a file sealed with this session.
func (e *EncryptionSession) DecryptFile(ctx context.Context, encrypted []byte) (content []byte, filename string, err error) {
	w, done, err := e.sdk.wire()
	if err != nil {
		return nil, "", err
	}
	defer done()
	return w.Sessions.DecryptFile(ctx, e.data, encrypted)
}
