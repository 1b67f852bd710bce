package tanglr

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/artyultra/tanglr-client/session"
	"github.com/rs/zerolog"
)

// Config configures a [Client]. Start from [DefaultConfig] and override
// individual fields.
type Config struct {
	API     APIConfig
	Storage StorageConfig
	Refresh RefreshConfig
	Audit   AuditConfig
	Metrics MetricsConfig
	Logging LoggingConfig
}

/*
====================================
API CONFIG
====================================
*/

// APIConfig locates the Tanglr API.
type APIConfig struct {
	// BaseURL is the server root, without the version segment.
	BaseURL string
	// Version is appended to BaseURL as a path segment.
	Version   string
	Timeout   time.Duration
	UserAgent string
}

/*
====================================
STORAGE CONFIG
====================================
*/

// StorageBackend selects where the session is kept.
type StorageBackend string

const (
	StorageMemory StorageBackend = "memory"
	StorageFile   StorageBackend = "file"
	StorageRedis  StorageBackend = "redis"
)

// StorageConfig selects and parameterizes the session store. It is ignored
// when a store is passed to [Builder.WithStore].
type StorageConfig struct {
	Backend StorageBackend
	Keys    session.Keys

	// FilePath is the session document for the file backend.
	FilePath string

	RedisPrefix string
	// RedisTTL expires stored keys; zero keeps them until cleared.
	RedisTTL time.Duration
}

/*
====================================
REFRESH CONFIG
====================================
*/

// RefreshConfig controls token renewal.
type RefreshConfig struct {
	// Proactive refreshes before sending a request whose stored access token
	// has already expired. When false the stale token is sent and the 401
	// path refreshes.
	Proactive bool
	// ExpirySkew treats tokens as expired this long before their exp claim.
	ExpirySkew time.Duration
	// RevokeOnLogout revokes the refresh token on the server during Logout.
	RevokeOnLogout bool
}

/*
====================================
AUDIT CONFIG
====================================
*/

type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

/*
====================================
METRICS CONFIG
====================================
*/

type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
LOGGING CONFIG
====================================
*/

// LoggingConfig is consumed by [NewLogger].
type LoggingConfig struct {
	// Level is a zerolog level name.
	Level string
	// Format is "console" or "json".
	Format string
}

// DefaultConfig returns the configuration used when none is supplied.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		API: APIConfig{
			BaseURL:   "http://localhost:8082",
			Version:   "v1",
			Timeout:   30 * time.Second,
			UserAgent: "tanglr-client",
		},
		Storage: StorageConfig{
			Backend:     StorageMemory,
			Keys:        session.DefaultKeys(),
			RedisPrefix: "tanglr",
		},
		Refresh: RefreshConfig{
			RevokeOnLogout: true,
		},
		Audit: AuditConfig{
			BufferSize: 1024,
			DropIfFull: true,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

func cloneConfig(cfg Config) Config {
	return cfg
}

// APIURL returns the versioned API root, e.g. http://localhost:8082/v1.
func (c Config) APIURL() string {
	base := strings.TrimRight(c.API.BaseURL, "/")
	version := strings.Trim(c.API.Version, "/")
	if version == "" {
		return base
	}
	return base + "/" + version
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	u, err := url.Parse(c.API.BaseURL)
	if err != nil {
		return fmt.Errorf("API BaseURL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return errors.New("API BaseURL must be an http or https URL")
	}
	if u.Host == "" {
		return errors.New("API BaseURL must include a host")
	}
	if c.API.Timeout <= 0 {
		return errors.New("API Timeout must be > 0")
	}

	switch c.Storage.Backend {
	case StorageMemory, StorageRedis:
	case StorageFile:
		if c.Storage.FilePath == "" {
			return errors.New("Storage FilePath required for file backend")
		}
	default:
		return fmt.Errorf("unknown Storage Backend %q", c.Storage.Backend)
	}
	if err := c.Storage.Keys.Validate(); err != nil {
		return fmt.Errorf("Storage Keys: %w", err)
	}
	if c.Storage.RedisTTL < 0 {
		return errors.New("Storage RedisTTL must be >= 0")
	}

	if c.Refresh.ExpirySkew < 0 {
		return errors.New("Refresh ExpirySkew must be >= 0")
	}

	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0")
	}

	if c.Logging.Level != "" {
		if _, err := zerolog.ParseLevel(c.Logging.Level); err != nil {
			return fmt.Errorf("Logging Level: %w", err)
		}
	}
	switch c.Logging.Format {
	case "", "console", "json":
	default:
		return fmt.Errorf("unknown Logging Format %q", c.Logging.Format)
	}

	return nil
}
