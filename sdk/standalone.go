package sdk

import (
	"context"
	"net/http"

	"github.com/rs/zerolog"

	"sealkit/internal/envelope"
	"sealkit/internal/relay"
	"sealkit/internal/services/anonymous"
	"sealkit/internal/services/backup"
)

// ClientOptions configures the account-less clients.
type ClientOptions struct {
	ServerURL  string
	AppID      string
	HTTPClient *http.Client
	MaxRetries uint64
	Logger     *zerolog.Logger
}

func (o ClientOptions) client() *relay.Client {
	opts := []relay.Option{relay.WithAppID(o.AppID), relay.WithMaxRetries(o.MaxRetries)}
	if o.HTTPClient != nil {
		opts = append(opts, relay.WithHTTPClient(o.HTTPClient))
	}
	if o.Logger != nil {
		opts = append(opts, relay.WithLogger(*o.Logger))
	}
	return relay.NewHTTP(o.ServerURL, opts...)
}

func (o ClientOptions) logger() zerolog.Logger {
	if o.Logger != nil {
		return *o.Logger
	}
	return zerolog.Nop()
}

// Anonymous encrypts for users without holding an account.
type Anonymous struct {
	svc *anonymous.Service
}

// NewAnonymous returns an anonymous encryption client. fileCompression is zstd, lz4
// or none.
func NewAnonymous(opts ClientOptions, fileCompression string) (*Anonymous, error) {
	c, err := envelope.ParseCompression(fileCompression)
	if err != nil {
		return nil, err
	}
	return &Anonymous{svc: anonymous.New(opts.client(), c, opts.logger())}, nil
}

// CreateEncryptionSession registers a session for users, authorised by an encryption
// token from the application backend.
func (a *Anonymous) CreateEncryptionSession(ctx context.Context, token string, users []UserID) (*AnonymousSession, error) {
	return a.svc.CreateSession(ctx, token, users)
}

// DeserializeAnonymousSession restores a session saved with Serialize.
func DeserializeAnonymousSession(text string) (*AnonymousSession, error) {
	return anonymous.DeserializeSession(text)
}

// PasswordBackup stores identity exports on the key server under a password.
type PasswordBackup struct {
	svc *backup.Service
}

// NewPasswordBackup returns a password backup client.
func NewPasswordBackup(opts ClientOptions, params BackupParams) *PasswordBackup {
	return &PasswordBackup{svc: backup.New(opts.client(), params, opts.logger())}
}

// SaveIdentity seals identity with password and stores it for user.
func (b *PasswordBackup) SaveIdentity(ctx context.Context, user UserID, password string, identity []byte) error {
	return b.svc.SaveIdentity(ctx, user, password, identity)
}

// RetrieveIdentity returns the identity stored for user under password.
func (b *PasswordBackup) RetrieveIdentity(ctx context.Context, user UserID, password string) ([]byte, error) {
	return b.svc.RetrieveIdentity(ctx, user, password)
}

// ChangeIdentityPassword moves the backup of user from current to next.
func (b *PasswordBackup) ChangeIdentityPassword(ctx context.Context, user UserID, current, next string) error {
	return b.svc.ChangeIdentityPassword(ctx, user, current, next)
}
