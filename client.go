package tanglr

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	internalaudit "github.com/artyultra/tanglr-client/internal/audit"
	"github.com/artyultra/tanglr-client/internal/flows"
	"github.com/artyultra/tanglr-client/internal/transport"
	"github.com/artyultra/tanglr-client/jwt"
	"github.com/artyultra/tanglr-client/session"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

// Client is an authenticated Tanglr API client. It owns one session and one
// refresh coordinator; every method is safe for concurrent use.
//
// A Client is created with [Builder.Build] and released with [Client.Close].
type Client struct {
	cfg      Config
	store    session.Store
	exec     *transport.Executor
	tracker  *jwt.Tracker
	refresh  *flows.Coordinator
	logout   flows.LogoutDeps
	audit    *internalaudit.Dispatcher
	metrics  *Metrics
	logger   zerolog.Logger
	validate *validator.Validate
	now      func() time.Time

	// sessionMu serializes read-modify-write cycles on the store.
	sessionMu sync.Mutex
	observers observers
	closed    atomic.Bool
}

// Close stops the audit dispatcher. Calls made after Close fail with
// ErrClientClosed. Close is idempotent.
func (c *Client) Close() error {
	if c == nil || !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	c.audit.Close()
	return nil
}

func (c *Client) checkOpen() error {
	if c == nil || c.closed.Load() {
		return ErrClientClosed
	}
	return nil
}

// Config returns a copy of the client configuration.
func (c *Client) Config() Config {
	return cloneConfig(c.cfg)
}

// MetricsSnapshot returns the current counters.
func (c *Client) MetricsSnapshot() MetricsSnapshot {
	return c.metrics.Snapshot()
}

/*
====================================
SESSION ACCESSORS
====================================
*/

// CurrentSession returns a copy of the stored session, or ErrNotAuthenticated.
func (c *Client) CurrentSession(ctx context.Context) (*session.Session, error) {
	if err := c.checkOpen(); err != nil {
		return nil, err
	}
	s, err := c.store.Get(ctx)
	if errors.Is(err, session.ErrNotFound) {
		return nil, ErrNotAuthenticated
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

// IsAuthenticated reports whether a complete session is stored.
func (c *Client) IsAuthenticated(ctx context.Context) bool {
	_, err := c.CurrentSession(ctx)
	return err == nil
}

// CurrentUser returns the profile cached with the session at login.
func (c *Client) CurrentUser(ctx context.Context) (*User, error) {
	s, err := c.CurrentSession(ctx)
	if err != nil {
		return nil, err
	}
	return &User{
		ID:        s.UserID,
		Username:  s.Username,
		Email:     s.Email,
		AvatarURL: s.AvatarURL,
		CoverURL:  s.CoverURL,
		DarkMode:  s.DarkMode,
	}, nil
}

// DarkMode returns the cached dark-mode preference. Without a session it
// defaults to true.
func (c *Client) DarkMode(ctx context.Context) bool {
	s, err := c.CurrentSession(ctx)
	if err != nil {
		return true
	}
	return s.DarkMode
}

// AccessToken returns the stored access token, or "" when no session is stored.
func (c *Client) AccessToken(ctx context.Context) (string, error) {
	if err := c.checkOpen(); err != nil {
		return "", err
	}
	return c.storedAccessToken(ctx), nil
}

// RenewAccessToken returns an access token newer than rejected, joining the
// refresh in flight or starting one. A failed refresh ends the session and
// returns ErrSessionExpired.
func (c *Client) RenewAccessToken(ctx context.Context, rejected string) (string, error) {
	if err := c.checkOpen(); err != nil {
		return "", err
	}
	out := c.refresh.Await(ctx, rejected)
	return out.AccessToken, out.Err
}

func (c *Client) storedAccessToken(ctx context.Context) string {
	s, err := c.store.Get(ctx)
	if err != nil {
		if !errors.Is(err, session.ErrNotFound) {
			c.logger.Warn().Err(err).Msg("read session failed")
		}
		return ""
	}
	return s.AccessToken
}

func (c *Client) storedRefreshToken(ctx context.Context) (string, error) {
	s, err := c.store.Get(ctx)
	if errors.Is(err, session.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return s.RefreshToken, nil
}

func (c *Client) identity(ctx context.Context) *sessionIdentity {
	s, err := c.store.Get(ctx)
	if err != nil {
		return nil
	}
	return &sessionIdentity{userID: s.UserID, username: s.Username}
}

/*
====================================
REQUEST PATHS
====================================
*/

// authorized runs req with the bearer token and the coordinated
// refresh-and-retry-once wrapper.
func authorized[T any](ctx context.Context, c *Client, req transport.Request, opts []CallOption) (T, error) {
	var zero T
	if err := c.checkOpen(); err != nil {
		return zero, err
	}

	o := collectOptions(opts)
	req.Timeout = o.timeout
	bearer := o.accessToken
	if bearer == "" {
		bearer = c.storedAccessToken(ctx)
	}

	if c.cfg.Refresh.Proactive && o.accessToken == "" && bearer != "" && c.tracker.Expired(bearer) {
		out := c.refresh.Await(ctx, bearer)
		if out.Err != nil {
			return zero, out.Err
		}
		// At most one refresh per call.
		v, err := send[T](ctx, c, req, out.AccessToken)
		if err != nil {
			c.refresh.RetryRejected(ctx, out.AccessToken, err)
		}
		return v, err
	}

	return flows.Call(ctx, c.refresh, bearer, func(ctx context.Context, bearer string) (T, error) {
		return send[T](ctx, c, req, bearer)
	})
}

// anonymous runs req once, without the refresh wrapper.
func anonymous[T any](ctx context.Context, c *Client, req transport.Request, opts []CallOption) (T, error) {
	var zero T
	if err := c.checkOpen(); err != nil {
		return zero, err
	}
	o := collectOptions(opts)
	req.Timeout = o.timeout
	return send[T](ctx, c, req, o.accessToken)
}

func send[T any](ctx context.Context, c *Client, req transport.Request, bearer string) (T, error) {
	req.BearerToken = bearer
	raw, err := c.exec.Do(ctx, req)
	if err != nil {
		var zero T
		return zero, err
	}
	return transport.DecodeJSON[T](raw)
}

func (c *Client) observe(_ transport.Request, _ int, elapsed time.Duration, err error) {
	c.metrics.Observe(MetricRequestLatency, elapsed)
	if err == nil {
		return
	}
	var httpErr *HTTPError
	switch {
	case errors.Is(err, ErrTimeout):
		c.metrics.Inc(MetricRequestTimeout)
	case errors.As(err, &httpErr):
		c.metrics.Inc(MetricHTTPError)
	}
}

/*
====================================
REFRESH WIRING
====================================
*/

func (c *Client) refreshDeps() flows.RefreshDeps {
	return flows.RefreshDeps{
		LoadRefreshToken: c.storedRefreshToken,
		Refresh:          c.exchangeRefreshToken,
		Persist:          c.persistAccessToken,
		Invalidate:       c.invalidate,
		IsUnauthorized:   IsUnauthorized,
		OnRefreshed: func() {
			c.metrics.Inc(MetricRefreshSuccess)
		},
		OnQueued: func() {
			c.metrics.Inc(MetricRefreshQueued)
		},
		OnRetry: func() {
			c.metrics.Inc(MetricRequestRetried)
			c.auditSession(context.Background(), AuditRequestRetry, nil, nil)
		},
		OnRetryRejected: c.recordRetryRejection,
		Logger:          c.logger.With().Str("flow", "refresh").Logger(),
	}
}

func (c *Client) exchangeRefreshToken(ctx context.Context, refreshToken string) (string, error) {
	resp, err := send[refreshTokenResponse](ctx, c, transport.Request{
		Method: "POST",
		Path:   "/refresh-token",
	}, refreshToken)
	if err != nil {
		return "", err
	}
	return resp.AccessToken, nil
}

// persistAccessToken stores accessToken on the session lease was taken for.
// A session replaced since then is left untouched.
func (c *Client) persistAccessToken(ctx context.Context, lease flows.Lease, accessToken string) error {
	c.sessionMu.Lock()
	current, err := c.store.Get(ctx)
	if errors.Is(err, session.ErrNotFound) {
		err = flows.ErrSessionReplaced
	}
	if err == nil && (!lease.Current() || current.RefreshToken != lease.RefreshToken) {
		err = flows.ErrSessionReplaced
	}
	if err != nil {
		c.sessionMu.Unlock()
		return err
	}
	next := current.WithAccessToken(accessToken, c.tracker.ExpiresAtMillis(accessToken))
	err = c.store.Set(ctx, next)
	c.sessionMu.Unlock()
	if err != nil {
		return err
	}

	c.auditSession(ctx, AuditRefreshSuccess, &sessionIdentity{userID: next.UserID, username: next.Username}, nil)
	c.observers.updated.notify(*next)
	return nil
}

// recordRetryRejection keeps err on the session as LastError when the session
// still holds accessToken.
func (c *Client) recordRetryRejection(ctx context.Context, accessToken string, err error) {
	c.sessionMu.Lock()
	defer c.sessionMu.Unlock()
	s, getErr := c.store.Get(ctx)
	if getErr != nil || s.AccessToken != accessToken {
		return
	}
	s.LastError = err.Error()
	if setErr := c.store.Set(ctx, s); setErr != nil {
		c.logger.Warn().Err(setErr).Msg("record retry rejection")
	}
}

// invalidate ends the session after a failed refresh: the store is cleared
// and session-invalidated observers run once. A session that replaced the one
// lease was taken for is kept.
func (c *Client) invalidate(ctx context.Context, lease flows.Lease, cause error) {
	id := c.identity(ctx)

	c.sessionMu.Lock()
	if !lease.Current() {
		c.sessionMu.Unlock()
		c.logger.Debug().Err(cause).Msg("refresh failed for a replaced session")
		return
	}
	err := c.store.Clear(ctx)
	c.sessionMu.Unlock()
	if err != nil {
		c.logger.Error().Err(err).Msg("clear session after refresh failure")
	}

	c.metrics.Inc(MetricRefreshFailure)
	c.metrics.Inc(MetricSessionExpired)
	c.auditSession(ctx, AuditRefreshFailure, id, cause)
	c.auditSession(ctx, AuditSessionExpired, id, cause)

	ev := SessionInvalidatedEvent{Cause: cause, At: c.now()}
	if id != nil {
		ev.UserID = id.userID
		ev.Username = id.username
	}
	c.observers.invalidated.notify(ev)
}
