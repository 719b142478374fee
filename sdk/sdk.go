package sdk

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"sealkit/internal/app"
	"sealkit/internal/config"
	"sealkit/internal/domain"
	"sealkit/internal/envelope"
	"sealkit/internal/logging"
)

// Options configures New. ServerURL, AppID and DatabaseKey are required.
type Options struct {
	ServerURL string
	AppID     string

	// DatabasePath is the LevelDB directory. Empty keeps the database in memory.
	DatabasePath string
	// DatabaseKey is the 64-byte key sealing the local database.
	DatabaseKey []byte

	// InstanceName tags every log line of this instance.
	InstanceName string
	// LogLevel is a zerolog level name ("debug") or number ("0"). Empty means info.
	LogLevel   string
	LogNoColor bool
	// Logger replaces the logger built from the fields above.
	Logger *zerolog.Logger

	// SessionCacheTTL: negative caches forever, zero disables the cache.
	SessionCacheTTL time.Duration
	// FileCompression is zstd (default), lz4 or none.
	FileCompression string
	RequestTimeout  time.Duration
	MaxRetries      uint64
	HTTPClient      *http.Client
}

func (o Options) logger() (zerolog.Logger, error) {
	if o.Logger != nil {
		return *o.Logger, nil
	}
	level, err := logging.ParseLevel(o.LogLevel)
	if err != nil {
		return zerolog.Nop(), errors.Wrapf(domain.ErrInvalidArgument, "log level %q", o.LogLevel)
	}
	return logging.New(logging.Options{InstanceName: o.InstanceName, Level: level, NoColor: o.LogNoColor}), nil
}

// SDK is one instance holding at most one account. It is safe for concurrent use.
type SDK struct {
	mu     sync.RWMutex
	w      *app.Wire
	closed bool
}

// New opens the local database and wires the instance.
func New(opts Options) (*SDK, error) {
	defaults := config.Default().Client
	if opts.RequestTimeout == 0 {
		opts.RequestTimeout = defaults.RequestTimeout
	}
	log, err := opts.logger()
	if err != nil {
		return nil, err
	}
	cfg, err := app.FromClientConfig(config.ClientConfig{
		ServerURL:       opts.ServerURL,
		AppID:           opts.AppID,
		DatabasePath:    opts.DatabasePath,
		SessionCacheTTL: opts.SessionCacheTTL,
		FileCompression: opts.FileCompression,
		RequestTimeout:  opts.RequestTimeout,
		MaxRetries:      opts.MaxRetries,
	}, opts.DatabaseKey, log)
	if err != nil {
		return nil, err
	}
	if opts.ServerURL == "" || opts.AppID == "" {
		return nil, domain.ErrInvalidArgument
	}
	cfg.HTTP = opts.HTTPClient
	w, err := app.NewWire(cfg)
	if err != nil {
		return nil, err
	}
	return &SDK{w: w}, nil
}

// Close releases the local database. Later calls return ErrClosed.
func (s *SDK) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.closed = true
	return s.w.Close()
}

// wire returns the dependency graph and a release func, or ErrClosed.
func (s *SDK) wire() (*app.Wire, func(), error) {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return nil, nil, ErrClosed
	}
	return s.w, s.mu.RUnlock, nil
}

// ParseSessionIDFromMessage reads the session ID of a message without any key.
func ParseSessionIDFromMessage(msg string) (SessionID, error) {
	return envelope.ParseSessionIDFromMessage(msg)
}

// ParseSessionIDFromFile reads the session ID of an encrypted file without any key.
func ParseSessionIDFromFile(b []byte) (SessionID, error) {
	return envelope.ParseSessionIDFromFile(b)
}

// ParseSessionIDFromBytes reads the session ID of a message or file in either form.
func ParseSessionIDFromBytes(b []byte) (SessionID, error) {
	return envelope.ParseSessionIDFromBytes(b)
}

// Heartbeat checks that the key server accepts this device.
func (s *SDK) Heartbeat(ctx context.Context) error {
	w, done, err := s.wire()
	if err != nil {
		return err
	}
	defer done()
	return w.Identity.Heartbeat(ctx)
}
