package anonymous

import (
	"context"
	"encoding/base64"
	"errors"
	"time"

	"github.com/google/uuid"
	pkgerrors "github.com/pkg/errors"
	"github.com/rs/zerolog"

	"sealkit/internal/codec"
	"sealkit/internal/crypto"
	"sealkit/internal/domain"
	"sealkit/internal/envelope"
	"sealkit/internal/protocol/keywrap"
)

var (
	// ErrNoRecipients is returned when a session would have nobody to read it.
	ErrNoRecipients = errors.New("anonymous session needs at least one recipient device")
	// ErrBadSession is returned for a serialised session that does not parse.
	ErrBadSession = errors.New("malformed serialised session")
)

// Service creates anonymous sessions.
type Service struct {
	api         domain.AnonymousAPI
	compression envelope.Compression
	log         zerolog.Logger
	now         func() time.Time
}

// New returns an anonymous encryption service.
func New(api domain.AnonymousAPI, compression envelope.Compression, log zerolog.Logger) *Service {
	return &Service{api: api, compression: compression, log: log, now: time.Now}
}

// maxSerializedLen bounds the text accepted by DeserializeSession.
const maxSerializedLen = 1 << 12

// Session is a session created without an account. It can seal but not open.
type Session struct {
	ID          domain.SessionID     `cbor:"1,keyasint"`
	Key         []byte               `cbor:"2,keyasint"`
	Compression envelope.Compression `cbor:"3,keyasint"`
}

// CreateSession registers a session readable by every active device of users.
func (s *Service) CreateSession(ctx context.Context, token string, users []domain.UserID) (*Session, error) {
	if len(users) == 0 {
		return nil, ErrNoRecipients
	}
	resolved, err := s.api.AnonymousRecipients(ctx, token, users)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "resolve recipients")
	}
	key, err := crypto.RandomKey()
	if err != nil {
		return nil, err
	}
	sid := domain.SessionID(uuid.NewString())
	rights := domain.RecipientRights{Read: true}
	now := s.now()

	var keys []domain.WrappedKey
	recipients := make([]domain.RecipientWithRights, 0, len(resolved))
	for _, r := range resolved {
		recipients = append(recipients, domain.RecipientWithRights{ID: r.ID, Rights: rights})
		for _, dev := range r.Devices {
			if string(dev.UserID) != r.ID || !dev.Active(now) {
				continue
			}
			wk, err := keywrap.WrapAnonymous(dev, keywrap.SessionSubject(sid), key, rights)
			if err != nil {
				return nil, err
			}
			keys = append(keys, wk)
		}
	}
	if len(keys) == 0 {
		return nil, ErrNoRecipients
	}
	err = s.api.CreateAnonymousSession(ctx, token, domain.CreateSessionRequest{
		SessionID:  sid,
		Recipients: recipients,
		Keys:       keys,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(err, "register session")
	}
	s.log.Debug().Str("session", sid.String()).Int("keys", len(keys)).Msg("anonymous session created")
	return &Session{ID: sid, Key: key, Compression: s.compression}, nil
}

func (s *Session) seal(ct envelope.ContentType, plaintext []byte) (envelope.Envelope, error) {
	return envelope.Seal(s.Key, envelope.Header{SessionID: s.ID, ContentType: ct}, plaintext, nil)
}

// EncryptMessage seals a text message.
func (s *Session) EncryptMessage(plaintext string) (string, error) {
	env, err := s.seal(envelope.ContentMessage, []byte(plaintext))
	if err != nil {
		return "", err
	}
	return envelope.EncodeMessage(env)
}

// EncryptFile seals content under filename.
func (s *Session) EncryptFile(content []byte, filename string) ([]byte, error) {
	payload, err := envelope.MarshalFilePayload(filename, content, s.Compression)
	if err != nil {
		return nil, err
	}
	env, err := s.seal(envelope.ContentFile, payload)
	if err != nil {
		return nil, err
	}
	return envelope.EncodeFile(env)
}

// Serialize returns a text form of the session, key included. Treat it as a secret.
func (s *Session) Serialize() (string, error) {
	b, err := codec.Marshal(s)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// DeserializeSession parses the output of Session.Serialize.
func DeserializeSession(text string) (*Session, error) {
	if len(text) > maxSerializedLen {
		return nil, ErrBadSession
	}
	b, err := base64.RawURLEncoding.DecodeString(text)
	if err != nil {
		return nil, ErrBadSession
	}
	var s Session
	if err := codec.Unmarshal(b, &s); err != nil || s.ID == "" || len(s.Key) != crypto.KeySize {
		return nil, ErrBadSession
	}
	return &s, nil
}
