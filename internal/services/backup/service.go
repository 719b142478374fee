package backup

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"io"

	"filippo.io/age"
	pkgerrors "github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/argon2"

	"sealkit/internal/domain"
	"sealkit/internal/relay"
)

const lookupLabel = "sealkit-backup-lookup-v1|"

var (
	// ErrNoBackup is returned when no backup matches the user and password.
	ErrNoBackup = errors.New("no backup for this user and password")
	// ErrWeakPassword is returned for an empty password.
	ErrWeakPassword = errors.New("backup password must not be empty")
)

// Params tunes the password derivations. Tests lower them.
type Params struct {
	// ScryptWorkFactor is the log2 scrypt cost age seals with.
	ScryptWorkFactor int
	// ArgonTime, ArgonMemory (KiB) and ArgonThreads parameterise the lookup token.
	ArgonTime    uint32
	ArgonMemory  uint32
	ArgonThreads uint8
}

// DefaultParams are the production costs.
func DefaultParams() Params {
	return Params{ScryptWorkFactor: 18, ArgonTime: 3, ArgonMemory: 64 * 1024, ArgonThreads: 4}
}

// Service implements domain.BackupService.
type Service struct {
	api    domain.BackupAPI
	params Params
	log    zerolog.Logger
}

// New returns a backup service.
func New(api domain.BackupAPI, params Params, log zerolog.Logger) *Service {
	return &Service{api: api, params: params, log: log}
}

// lookup derives the token a backup is filed under.
func (s *Service) lookup(user domain.UserID, password string) string {
	salt := []byte(lookupLabel + string(user))
	token := argon2.IDKey([]byte(password), salt, s.params.ArgonTime, s.params.ArgonMemory, s.params.ArgonThreads, 32)
	return base64.RawURLEncoding.EncodeToString(token)
}

func (s *Service) seal(password string, identity []byte) ([]byte, error) {
	r, err := age.NewScryptRecipient(password)
	if err != nil {
		return nil, err
	}
	r.SetWorkFactor(s.params.ScryptWorkFactor)
	var buf bytes.Buffer
	w, err := age.Encrypt(&buf, r)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "create age encryptor")
	}
	if _, err := w.Write(identity); err != nil {
		return nil, pkgerrors.Wrap(err, "seal identity")
	}
	if err := w.Close(); err != nil {
		return nil, pkgerrors.Wrap(err, "finalise age encryption")
	}
	return buf.Bytes(), nil
}

func open(password string, blob []byte) ([]byte, error) {
	id, err := age.NewScryptIdentity(password)
	if err != nil {
		return nil, err
	}
	r, err := age.Decrypt(bytes.NewReader(blob), id)
	if err != nil {
		return nil, pkgerrors.Wrap(ErrNoBackup, err.Error())
	}
	return io.ReadAll(r)
}

// SaveIdentity seals identity with password and stores it for user.
func (s *Service) SaveIdentity(ctx context.Context, user domain.UserID, password string, identity []byte) error {
	if password == "" {
		return ErrWeakPassword
	}
	blob, err := s.seal(password, identity)
	if err != nil {
		return err
	}
	rec := domain.BackupRecord{UserID: user, Lookup: s.lookup(user, password), Blob: blob}
	if err := s.api.PutBackup(ctx, rec); err != nil {
		return pkgerrors.Wrap(err, "store backup")
	}
	s.log.Debug().Str("user", user.String()).Msg("identity backup stored")
	return nil
}

// RetrieveIdentity returns the identity stored for user under password.
func (s *Service) RetrieveIdentity(ctx context.Context, user domain.UserID, password string) ([]byte, error) {
	blob, err := s.api.GetBackup(ctx, user, s.lookup(user, password))
	if relay.IsNotFound(err) {
		return nil, ErrNoBackup
	}
	if err != nil {
		return nil, pkgerrors.Wrap(err, "fetch backup")
	}
	return open(password, blob)
}

// ChangeIdentityPassword re-seals the backup of user under next and removes the copy
// sealed under current.
func (s *Service) ChangeIdentityPassword(ctx context.Context, user domain.UserID, current, next string) error {
	identity, err := s.RetrieveIdentity(ctx, user, current)
	if err != nil {
		return err
	}
	if err := s.SaveIdentity(ctx, user, next, identity); err != nil {
		return err
	}
	if current == next {
		return nil
	}
	if err := s.api.DeleteBackup(ctx, user, s.lookup(user, current)); err != nil && !relay.IsNotFound(err) {
		return pkgerrors.Wrap(err, "delete old backup")
	}
	return nil
}

// Compile-time assertion that Service implements domain.BackupService.
var _ domain.BackupService = (*Service)(nil)
