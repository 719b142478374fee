package app

import (
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"sealkit/internal/config"
	"sealkit/internal/envelope"
	"sealkit/internal/services/backup"
)

// Config holds runtime wiring options for building the app.
type Config struct {
	ServerURL    string
	AppID        string
	DatabasePath string // LevelDB directory; empty means in-memory
	DatabaseKey  []byte // 64 bytes sealing every stored value

	SessionCacheTTL time.Duration
	DirectoryTTL    time.Duration
	Compression     envelope.Compression
	RequestTimeout  time.Duration
	MaxRetries      uint64
	Backup          backup.Params

	Logger zerolog.Logger
	HTTP   *http.Client // optional; defaults to a client with RequestTimeout
}

// FromClientConfig maps the client section of the configuration file.
func FromClientConfig(c config.ClientConfig, databaseKey []byte, log zerolog.Logger) (Config, error) {
	compression, err := envelope.ParseCompression(c.FileCompression)
	if err != nil {
		return Config{}, err
	}
	return Config{
		ServerURL:       c.ServerURL,
		AppID:           c.AppID,
		DatabasePath:    c.DatabasePath,
		DatabaseKey:     databaseKey,
		SessionCacheTTL: c.SessionCacheTTL,
		Compression:     compression,
		RequestTimeout:  c.RequestTimeout,
		MaxRetries:      c.MaxRetries,
		Backup:          backup.DefaultParams(),
		Logger:          log,
	}, nil
}
