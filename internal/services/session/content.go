package session

import (
	"context"
	"errors"

	pkgerrors "github.com/pkg/errors"

	"sealkit/internal/domain"
	"sealkit/internal/envelope"
)

// ErrWrongContentType is returned when a message is opened as a file or the reverse.
var ErrWrongContentType = errors.New("envelope holds another content type")

func (s *Service) seal(sess domain.EncryptionSession, ct envelope.ContentType, plaintext []byte) (envelope.Envelope, error) {
	id, err := s.identity()
	if err != nil {
		return envelope.Envelope{}, err
	}
	h := envelope.Header{
		SessionID:    sess.ID,
		SenderUser:   id.UserID,
		SenderDevice: id.DeviceID,
		ContentType:  ct,
	}
	return envelope.Seal(sess.Key, h, plaintext, envelope.IdentitySigner(id))
}

// verifier resolves envelope senders through the directory, so envelopes sealed
// before a sender renewed its keys still verify.
func (s *Service) verifier(ctx context.Context) envelope.VerifyFunc {
	return func(user domain.UserID, device domain.DeviceID) ([]domain.Ed25519Public, error) {
		return s.dir.SigningKeys(ctx, user, device)
	}
}

func (s *Service) open(ctx context.Context, sess domain.EncryptionSession, env envelope.Envelope, want envelope.ContentType) ([]byte, error) {
	if env.Header.ContentType != want {
		return nil, ErrWrongContentType
	}
	var verify envelope.VerifyFunc
	if !env.Header.Anonymous() {
		verify = s.verifier(ctx)
	}
	pt, err := envelope.Open(sess.Key, sess.ID, env, verify)
	if errors.Is(err, envelope.ErrBadSignature) && verify != nil {
		// The sender may have renewed its keys since its chain was cached.
		s.dir.Invalidate(string(env.Header.SenderUser))
		pt, err = envelope.Open(sess.Key, sess.ID, env, verify)
	}
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "open envelope of session %s", sess.ID)
	}
	return pt, nil
}

// EncryptMessage seals a text message and returns its text form.
func (s *Service) EncryptMessage(sess domain.EncryptionSession, plaintext string) (string, error) {
	env, err := s.seal(sess, envelope.ContentMessage, []byte(plaintext))
	if err != nil {
		return "", err
	}
	return envelope.EncodeMessage(env)
}

// DecryptMessage opens a message produced by EncryptMessage.
func (s *Service) DecryptMessage(ctx context.Context, sess domain.EncryptionSession, message string) (string, error) {
	env, err := envelope.DecodeMessage(message)
	if err != nil {
		return "", err
	}
	pt, err := s.open(ctx, sess, env, envelope.ContentMessage)
	if err != nil {
		return "", err
	}
	return string(pt), nil
}

// EncryptFile seals content under filename and returns the binary file form.
func (s *Service) EncryptFile(sess domain.EncryptionSession, content []byte, filename string) ([]byte, error) {
	payload, err := envelope.MarshalFilePayload(filename, content, s.compression)
	if err != nil {
		return nil, err
	}
	env, err := s.seal(sess, envelope.ContentFile, payload)
	if err != nil {
		return nil, err
	}
	return envelope.EncodeFile(env)
}

// DecryptFile opens a file produced by EncryptFile.
func (s *Service) DecryptFile(
	ctx context.Context,
	sess domain.EncryptionSession,
	encrypted []byte,
) (content []byte, filename string, err error) {
	env, err := envelope.DecodeFile(encrypted)
	if err != nil {
		return nil, "", err
	}
	pt, err := s.open(ctx, sess, env, envelope.ContentFile)
	if err != nil {
		return nil, "", err
	}
	p, err := envelope.UnmarshalFilePayload(pt)
	if err != nil {
		return nil, "", err
	}
	return p.Content, p.Filename, nil
}
