// Package config loads the YAML configuration shared by the sealkit CLI and the key
// server.
//
// Values are layered: Default, then the config file (unknown keys are rejected), then
// command-line flags applied by the caller. Validate runs last.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"sealkit/internal/envelope"
	"sealkit/internal/logging"
)

// FileName is the name of the config file inside the CLI home.
const FileName = "config.yaml"

// Config is the complete configuration.
type Config struct {
	// Client configures an SDK instance.
	Client ClientConfig `yaml:"client"`

	// Server configures the key server.
	Server ServerConfig `yaml:"server"`

	// Log configures logging for both.
	Log LogConfig `yaml:"log"`
}

// ClientConfig configures an SDK instance.
type ClientConfig struct {
	// ServerURL is the key server base URL.
	ServerURL string `yaml:"server_url"`

	// AppID names the application on the key server.
	AppID string `yaml:"app_id"`

	// InstanceName is added to every log line.
	InstanceName string `yaml:"instance_name"`

	// DatabasePath is the LevelDB directory. Empty means in-memory.
	DatabasePath string `yaml:"database_path"`

	// SessionCacheTTL is how long retrieved sessions stay cached.
	// Negative caches forever, zero disables the cache.
	SessionCacheTTL time.Duration `yaml:"session_cache_ttl"`

	// FileCompression is applied to file content before sealing: zstd, lz4 or none.
	FileCompression string `yaml:"file_compression"`

	// RequestTimeout bounds a single HTTP request to the key server.
	RequestTimeout time.Duration `yaml:"request_timeout"`

	// MaxRetries bounds retries of transient key server failures.
	MaxRetries uint64 `yaml:"max_retries"`
}

// ServerConfig configures the key server.
type ServerConfig struct {
	// Listen is the TCP address to serve on.
	Listen string `yaml:"listen"`

	// AppID is the only application this server accepts.
	AppID string `yaml:"app_id"`

	// JWTSecret signs and verifies signup and encryption tokens.
	// Default: read from SEALKIT_JWT_SECRET.
	JWTSecret string `yaml:"jwt_secret"`

	// AllowedOrigins lists CORS origins. Empty allows none.
	AllowedOrigins []string `yaml:"allowed_origins"`

	// ClockSkew is the accepted age of a signed request.
	ClockSkew time.Duration `yaml:"clock_skew"`
}

// LogConfig configures logging.
type LogConfig struct {
	// Level is a zerolog level name or number (-1 trace ... 7 disabled).
	Level string `yaml:"level"`

	// NoColor disables ANSI colours in console output.
	NoColor bool `yaml:"no_color"`

	// JSON switches from console output to JSON lines.
	JSON bool `yaml:"json"`
}

// Default returns the configuration used before any file or flag is applied.
func Default() *Config {
	return &Config{
		Client: ClientConfig{
			ServerURL:       "http://127.0.0.1:8080",
			AppID:           "sealkit-dev",
			InstanceName:    "sealkit",
			SessionCacheTTL: 0,
			FileCompression: "zstd",
			RequestTimeout:  30 * time.Second,
			MaxRetries:      3,
		},
		Server: ServerConfig{
			Listen:    ":8080",
			AppID:     "sealkit-dev",
			JWTSecret: os.Getenv("SEALKIT_JWT_SECRET"),
			ClockSkew: 5 * time.Minute,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// LoadFile applies the YAML file at path on top of Default. A missing file is not an
// error when optional is set.
func LoadFile(path string, optional bool) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) && optional {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := cfg.decode(data); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

// LoadHome loads FileName from the CLI home directory, if present.
func LoadHome(home string) (*Config, error) {
	return LoadFile(filepath.Join(home, FileName), true)
}

func (c *Config) decode(data []byte) error {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	return dec.Decode(c)
}

// Save writes c to path as YAML.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if u, err := url.Parse(c.Client.ServerURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("client.server_url is not an absolute URL: %q", c.Client.ServerURL))
	}
	if c.Client.AppID == "" {
		errs = append(errs, fmt.Errorf("client.app_id is required"))
	}
	if _, err := envelope.ParseCompression(c.Client.FileCompression); err != nil {
		errs = append(errs, fmt.Errorf("client.file_compression: %w", err))
	}
	if c.Client.RequestTimeout < 0 {
		errs = append(errs, fmt.Errorf("client.request_timeout must not be negative"))
	}
	if c.Server.Listen == "" {
		errs = append(errs, fmt.Errorf("server.listen is required"))
	}
	if c.Server.ClockSkew <= 0 {
		errs = append(errs, fmt.Errorf("server.clock_skew must be positive"))
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}

	return errors.Join(errs...)
}

// ValidateServer additionally checks what the key server needs to start.
func (c *Config) ValidateServer() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if len(c.Server.JWTSecret) < 32 {
		return fmt.Errorf("server.jwt_secret must be at least 32 bytes (or set SEALKIT_JWT_SECRET)")
	}
	if c.Server.AppID == "" {
		return fmt.Errorf("server.app_id is required")
	}
	return nil
}

// LogOptions converts the log section into logging.Options.
func (c *Config) LogOptions(instance string) (logging.Options, error) {
	level, err := logging.ParseLevel(c.Log.Level)
	if err != nil {
		return logging.Options{}, err
	}
	return logging.Options{
		InstanceName: instance,
		Level:        level,
		NoColor:      c.Log.NoColor,
		JSON:         c.Log.JSON,
	}, nil
}
