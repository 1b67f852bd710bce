package tanglr

import (
	"errors"
	"net/http"
	"time"

	internalaudit "github.com/artyultra/tanglr-client/internal/audit"
	"github.com/artyultra/tanglr-client/internal/flows"
	"github.com/artyultra/tanglr-client/internal/transport"
	"github.com/artyultra/tanglr-client/jwt"
	"github.com/artyultra/tanglr-client/session"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Builder assembles a [Client]. A Builder is single-use.
type Builder struct {
	config Config
	store  session.Store
	redis  redis.UniversalClient

	httpClient *http.Client
	logger     *zerolog.Logger
	auditSink  AuditSink
	now        func() time.Time

	built bool
}

// New returns a builder seeded with [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the whole configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithStore uses store instead of the backend named in the storage config.
func (b *Builder) WithStore(store session.Store) *Builder {
	b.store = store
	return b
}

// WithRedis supplies the client used by the redis storage backend. The
// caller keeps ownership of it.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithHTTPClient sets the HTTP client used for API calls.
func (b *Builder) WithHTTPClient(client *http.Client) *Builder {
	b.httpClient = client
	return b
}

// WithLogger sets the logger. Without one the client logs nothing.
func (b *Builder) WithLogger(logger zerolog.Logger) *Builder {
	b.logger = &logger
	return b
}

// WithAuditSink sets the audit destination. Events flow only when
// Audit.Enabled is set.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithClock replaces the wall clock used for expiry checks and event stamps.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

// WithMetricsEnabled toggles the in-memory counters.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms toggles request latency histograms.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and returns a ready client.
func (b *Builder) Build() (*Client, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	store, err := b.buildStore(cfg.Storage)
	if err != nil {
		return nil, err
	}

	now := b.now
	if now == nil {
		now = time.Now
	}
	logger := zerolog.Nop()
	if b.logger != nil {
		logger = *b.logger
	}

	c := &Client{
		cfg:      cfg,
		store:    store,
		tracker:  jwt.NewTracker(jwt.WithClock(now), jwt.WithSkew(cfg.Refresh.ExpirySkew)),
		metrics:  NewMetrics(cfg.Metrics),
		logger:   logger,
		validate: newValidator(),
		now:      now,
	}

	// -------- TRANSPORT --------
	c.exec = transport.New(transport.Config{
		BaseURL:     cfg.APIURL(),
		Timeout:     cfg.API.Timeout,
		HTTPClient:  b.httpClient,
		UserAgent:   cfg.API.UserAgent,
		AccessToken: c.storedAccessToken,
		Observe:     c.observe,
		Logger:      logger.With().Str("layer", "transport").Logger(),
	})

	// -------- FLOWS --------
	deps := flows.Deps{
		Refresh: c.refreshDeps(),
		Logout:  c.logoutDeps(),
	}
	c.refresh = flows.NewCoordinator(deps.Refresh)
	c.logout = deps.Logout

	c.audit = internalaudit.NewDispatcher(internalaudit.Config{
		Enabled:    cfg.Audit.Enabled,
		BufferSize: cfg.Audit.BufferSize,
		DropIfFull: cfg.Audit.DropIfFull,
	}, b.auditSink, now)

	b.built = true

	return c, nil
}

func (b *Builder) buildStore(cfg StorageConfig) (session.Store, error) {
	if b.store != nil {
		return b.store, nil
	}
	switch cfg.Backend {
	case StorageFile:
		return session.NewFileStore(cfg.FilePath, cfg.Keys), nil
	case StorageRedis:
		if b.redis == nil {
			return nil, errors.New("redis storage backend requires a redis client")
		}
		return session.NewRedisStore(b.redis, cfg.RedisPrefix, cfg.Keys, cfg.RedisTTL), nil
	default:
		return session.NewMemoryStore(), nil
	}
}
