package app

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/user"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/florianilch/thinkgate/internal/keystore"
	"github.com/florianilch/thinkgate/internal/observability"
	"github.com/florianilch/thinkgate/internal/proxy"
	"github.com/florianilch/thinkgate/internal/thinking"
)

// LogFormat represents the logging output format.
type LogFormat string

const (
	LogFormatText LogFormat = "text"
	LogFormatJSON LogFormat = "json"
)

// KeyStorageType represents where the upstream API key is read from.
type KeyStorageType string

const (
	// KeyStorageTypeNone forwards the client's own credentials upstream.
	KeyStorageTypeNone    KeyStorageType = "none"
	KeyStorageTypeFile    KeyStorageType = "file"
	KeyStorageTypeEnv     KeyStorageType = "env"
	KeyStorageTypeKeyring KeyStorageType = "keyring"
)

// Default configuration values
const (
	DefaultConfigLogFormat        = LogFormatText
	DefaultConfigOtelExporter     = observability.ExporterNone
	DefaultConfigServerHost       = "127.0.0.1"
	DefaultConfigServerPort       = 4000
	DefaultConfigMaxRequestBytes  = proxy.DefaultMaxRequestBytes
	DefaultConfigShutdownTimeout  = 5 * time.Second
	DefaultConfigUpstreamBaseURL  = proxy.DefaultBaseURL
	DefaultConfigAuthStorage      = KeyStorageTypeNone
	DefaultConfigAuthScheme       = proxy.AuthSchemeAPIKey
	DefaultConfigCacheTTL         = 10 * time.Minute
	DefaultConfigCacheCleanup     = 15 * time.Minute
	DefaultConfigAuthEnvKey       = "ANTHROPIC_API_KEY"
	defaultConfigAuthFileDirName  = "thinkgate"
	defaultConfigAuthFileBaseName = "api_key"
)

// OtelConfig holds OpenTelemetry export configuration.
type OtelConfig struct {
	Exporter observability.Exporter `json:"exporter" validate:"oneof=none stdout otlp-http otlp-grpc"`
}

// ServerConfig holds server-specific configuration.
type ServerConfig struct {
	Host string `json:"host" validate:"hostname_rfc1123|ip"`
	Port uint16 `json:"port"` // Port range 0-65535 handled by uint16 type
	// MaxRequestBytes limits buffered request bodies.
	MaxRequestBytes int64 `json:"max_request_bytes" validate:"gt=0"`
}

// ShutdownConfig holds shutdown behavior configuration.
type ShutdownConfig struct {
	// Timeout for graceful shutdown.
	Timeout time.Duration `json:"timeout"`
}

// AuthConfig describes how the proxy authenticates upstream.
type AuthConfig struct {
	Storage KeyStorageType `json:"storage" validate:"required,oneof=none file env keyring"`

	// Storage-specific settings (mutually exclusive based on Storage type)
	File        string `json:"file,omitempty"`         // For file storage: path to key file
	EnvKey      string `json:"env_key,omitempty"`      // For env storage: environment variable name
	KeyringUser string `json:"keyring_user,omitempty"` // For keyring storage: user identifier

	// Scheme selects the header the key is sent in.
	Scheme proxy.AuthScheme `json:"scheme" validate:"required,oneof=x-api-key bearer"`
}

// NewKeyStore creates a KeyStore from the authentication configuration.
// Returns nil for storage "none".
func (a *AuthConfig) NewKeyStore() (keystore.KeyStore, error) {
	switch a.Storage {
	case KeyStorageTypeNone:
		return nil, nil
	case KeyStorageTypeFile:
		return keystore.NewFileStore(a.File)
	case KeyStorageTypeEnv:
		return keystore.NewEnvStore(a.EnvKey)
	case KeyStorageTypeKeyring:
		return keystore.NewKeyringStore(keystore.KeyringService, a.KeyringUser)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", a.Storage)
	}
}

// UpstreamConfig holds upstream API configuration.
type UpstreamConfig struct {
	BaseURL string     `json:"base_url" validate:"required,url"`
	Auth    AuthConfig `json:"auth"`
}

// CacheConfig configures the cache shared by pre-call hooks.
type CacheConfig struct {
	DefaultTTL      time.Duration `json:"default_ttl" validate:"gte=0"`
	CleanupInterval time.Duration `json:"cleanup_interval" validate:"gte=0"`
}

// Config holds the application's configuration.
type Config struct {
	// LogLevel for logging output (defaults to Info if unset).
	LogLevel  slog.Level      `json:"log_level"`
	LogFormat LogFormat       `json:"log_format" validate:"oneof=text json"`
	Otel      OtelConfig      `json:"otel"`
	Server    ServerConfig    `json:"server"`
	Shutdown  ShutdownConfig  `json:"shutdown"`
	Upstream  UpstreamConfig  `json:"upstream"`
	Cache     CacheConfig     `json:"cache"`
	Thinking  thinking.Config `json:"thinking"`
}

// Default creates a new Config with default values applied.
func Default() (*Config, error) {
	cfg := &Config{}
	if err := cfg.ApplyDefaults(); err != nil {
		return nil, fmt.Errorf("failed to apply defaults: %w", err)
	}
	return cfg, nil
}

// ApplyDefaults fills unset config fields with sensible defaults.
func (c *Config) ApplyDefaults() error {
	if c.LogFormat == "" {
		c.LogFormat = DefaultConfigLogFormat
	}
	if c.Otel.Exporter == "" {
		c.Otel.Exporter = DefaultConfigOtelExporter
	}
	if c.Server.Host == "" {
		c.Server.Host = DefaultConfigServerHost
	}
	if c.Server.Port == 0 {
		c.Server.Port = DefaultConfigServerPort
	}
	if c.Server.MaxRequestBytes == 0 {
		c.Server.MaxRequestBytes = DefaultConfigMaxRequestBytes
	}
	if c.Shutdown.Timeout == 0 {
		c.Shutdown.Timeout = DefaultConfigShutdownTimeout
	}
	if c.Upstream.BaseURL == "" {
		c.Upstream.BaseURL = DefaultConfigUpstreamBaseURL
	}
	if c.Upstream.Auth.Storage == "" {
		c.Upstream.Auth.Storage = DefaultConfigAuthStorage
	}
	if c.Upstream.Auth.Scheme == "" {
		c.Upstream.Auth.Scheme = DefaultConfigAuthScheme
	}
	if c.Cache.DefaultTTL == 0 {
		c.Cache.DefaultTTL = DefaultConfigCacheTTL
	}
	if c.Cache.CleanupInterval == 0 {
		c.Cache.CleanupInterval = DefaultConfigCacheCleanup
	}
	c.Thinking.ApplyDefaults()

	// Dynamic defaults based on storage type
	auth := &c.Upstream.Auth
	switch auth.Storage {
	case KeyStorageTypeFile:
		if auth.File == "" {
			configDir, err := os.UserConfigDir()
			if err != nil {
				return fmt.Errorf("upstream.auth.file required (auto-detect failed: %w)", err)
			}
			auth.File = filepath.Join(configDir, defaultConfigAuthFileDirName, defaultConfigAuthFileBaseName)
		}
	case KeyStorageTypeEnv:
		if auth.EnvKey == "" {
			auth.EnvKey = DefaultConfigAuthEnvKey
		}
	case KeyStorageTypeKeyring:
		if auth.KeyringUser == "" {
			currentUser, err := user.Current()
			if err != nil {
				return fmt.Errorf("upstream.auth.keyring_user required (auto-detect failed: %w)", err)
			}
			auth.KeyringUser = currentUser.Username
		}
	case KeyStorageTypeNone:
		// client credentials are forwarded
	}

	return nil
}

// Validate validates the configuration using struct tags and enum values.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return err
	}

	auth := c.Upstream.Auth
	switch auth.Storage {
	case KeyStorageTypeFile:
		if auth.File == "" {
			return errors.New("file path required for file storage")
		}
	case KeyStorageTypeEnv:
		if auth.EnvKey == "" {
			return errors.New("env_key required for env storage")
		}
	case KeyStorageTypeKeyring:
		if auth.KeyringUser == "" {
			return errors.New("keyring_user required for keyring storage")
		}
	}

	if err := c.Thinking.Validate(); err != nil {
		return fmt.Errorf("thinking: %w", err)
	}

	return nil
}

// Address returns the host:port the server listens on.
func (c *Config) Address() string {
	return net.JoinHostPort(c.Server.Host, strconv.FormatUint(uint64(c.Server.Port), 10))
}
