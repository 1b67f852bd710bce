// Package config loads CLI settings from an HCL file and the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	tanglr "github.com/artyultra/tanglr-client"
	"github.com/hashicorp/hcl/v2/hclsimple"
	"github.com/zclconf/go-cty/cty"
)

// DefaultFile is the config file name looked up when none is given.
const DefaultFile = "tanglr.hcl"

// File mirrors the HCL document. Every block is optional.
type File struct {
	API     *APIBlock     `hcl:"api,block"`
	Storage *StorageBlock `hcl:"storage,block"`
	Refresh *RefreshBlock `hcl:"refresh,block"`
	Logging *LoggingBlock `hcl:"logging,block"`
}

type APIBlock struct {
	BaseURL   string `hcl:"base_url,optional"`
	Version   string `hcl:"version,optional"`
	Timeout   string `hcl:"timeout,optional"`
	UserAgent string `hcl:"user_agent,optional"`
}

type StorageBlock struct {
	Backend     string `hcl:"backend,optional"`
	File        string `hcl:"file,optional"`
	RedisAddr   string `hcl:"redis_addr,optional"`
	RedisPrefix string `hcl:"redis_prefix,optional"`
	RedisTTL    string `hcl:"redis_ttl,optional"`
	AccessKey   string `hcl:"access_token_key,optional"`
	RefreshKey  string `hcl:"refresh_token_key,optional"`
	UserKey     string `hcl:"user_key,optional"`
}

type RefreshBlock struct {
	Proactive      *bool  `hcl:"proactive,optional"`
	ExpirySkew     string `hcl:"expiry_skew,optional"`
	RevokeOnLogout *bool  `hcl:"revoke_on_logout,optional"`
}

type LoggingBlock struct {
	Level  string `hcl:"level,optional"`
	Format string `hcl:"format,optional"`
}

// Settings is everything the CLI needs to build a client.
type Settings struct {
	Client    tanglr.Config
	RedisAddr string
}

// Defaults returns CLI settings before any file or environment is applied:
// the library defaults with a durable session file.
func Defaults() Settings {
	cfg := tanglr.DefaultConfig()
	cfg.Storage.Backend = tanglr.StorageFile
	cfg.Storage.FilePath = DefaultSessionPath()
	cfg.Logging.Level = "warn"
	return Settings{Client: cfg}
}

// DefaultSessionPath is the session file under the user config directory.
func DefaultSessionPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = "."
	}
	return filepath.Join(dir, "tanglr", "session.json")
}

// Load applies the HCL file at path, when it exists, and then environment
// overrides on top of [Defaults]. A missing file is not an error unless
// required is set.
func Load(path string, required bool) (Settings, error) {
	s := Defaults()

	if path != "" {
		_, err := os.Stat(path)
		switch {
		case err == nil:
			var f File
			if err := hclsimple.DecodeFile(path, nil, &f); err != nil {
				return Settings{}, fmt.Errorf("decode config file: %w", err)
			}
			if err := f.apply(&s); err != nil {
				return Settings{}, fmt.Errorf("config file %s: %w", path, err)
			}
		case errors.Is(err, os.ErrNotExist) && !required:
		default:
			return Settings{}, fmt.Errorf("config file: %w", err)
		}
	}

	if err := applyEnv(&s); err != nil {
		return Settings{}, err
	}
	if s.Client.Storage.Backend == tanglr.StorageRedis && s.RedisAddr == "" {
		return Settings{}, errors.New("redis storage requires redis_addr")
	}
	if err := s.Client.Validate(); err != nil {
		return Settings{}, fmt.Errorf("config validation failed: %w", err)
	}
	return s, nil
}

func (f *File) apply(s *Settings) error {
	cfg := &s.Client
	if b := f.API; b != nil {
		setString(&cfg.API.BaseURL, b.BaseURL)
		setString(&cfg.API.Version, b.Version)
		setString(&cfg.API.UserAgent, b.UserAgent)
		if err := setDuration(&cfg.API.Timeout, b.Timeout); err != nil {
			return fmt.Errorf("api.timeout: %w", err)
		}
	}
	if b := f.Storage; b != nil {
		if b.Backend != "" {
			cfg.Storage.Backend = tanglr.StorageBackend(b.Backend)
		}
		setString(&cfg.Storage.FilePath, expandHome(b.File))
		setString(&s.RedisAddr, b.RedisAddr)
		setString(&cfg.Storage.RedisPrefix, b.RedisPrefix)
		setString(&cfg.Storage.Keys.AccessToken, b.AccessKey)
		setString(&cfg.Storage.Keys.RefreshToken, b.RefreshKey)
		setString(&cfg.Storage.Keys.User, b.UserKey)
		if err := setDuration(&cfg.Storage.RedisTTL, b.RedisTTL); err != nil {
			return fmt.Errorf("storage.redis_ttl: %w", err)
		}
	}
	if b := f.Refresh; b != nil {
		if b.Proactive != nil {
			cfg.Refresh.Proactive = *b.Proactive
		}
		if b.RevokeOnLogout != nil {
			cfg.Refresh.RevokeOnLogout = *b.RevokeOnLogout
		}
		if err := setDuration(&cfg.Refresh.ExpirySkew, b.ExpirySkew); err != nil {
			return fmt.Errorf("refresh.expiry_skew: %w", err)
		}
	}
	if b := f.Logging; b != nil {
		setString(&cfg.Logging.Level, b.Level)
		setString(&cfg.Logging.Format, b.Format)
	}
	return nil
}

// Environment overrides, applied after the file.
const (
	EnvAPIURL      = "TANGLR_API_URL"
	EnvAPIVersion  = "TANGLR_API_VERSION"
	EnvTimeout     = "TANGLR_TIMEOUT"
	EnvSessionFile = "TANGLR_SESSION_FILE"
	EnvRedisAddr   = "TANGLR_REDIS_ADDR"
	EnvLogLevel    = "TANGLR_LOG_LEVEL"
)

func applyEnv(s *Settings) error {
	cfg := &s.Client
	setString(&cfg.API.BaseURL, os.Getenv(EnvAPIURL))
	setString(&cfg.API.Version, os.Getenv(EnvAPIVersion))
	setString(&cfg.Logging.Level, os.Getenv(EnvLogLevel))
	if err := setDuration(&cfg.API.Timeout, os.Getenv(EnvTimeout)); err != nil {
		return fmt.Errorf("%s: %w", EnvTimeout, err)
	}
	if v := os.Getenv(EnvSessionFile); v != "" {
		cfg.Storage.Backend = tanglr.StorageFile
		cfg.Storage.FilePath = expandHome(v)
	}
	if v := os.Getenv(EnvRedisAddr); v != "" {
		cfg.Storage.Backend = tanglr.StorageRedis
		s.RedisAddr = v
	}
	return nil
}

func setString(dst *string, v string) {
	if v = strings.TrimSpace(v); v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, v string) error {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	var d Duration
	if err := d.DecodeCTY(cty.StringVal(strings.TrimSpace(v))); err != nil {
		return err
	}
	*dst = d.Duration()
	return nil
}

func expandHome(p string) string {
	if !strings.HasPrefix(p, "~/") {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, p[2:])
}
