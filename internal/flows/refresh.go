package flows

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
)

var (
	// ErrSessionExpired is returned to every caller waiting on a failed refresh.
	ErrSessionExpired = errors.New("session expired")
	// ErrNoRefreshToken is the refresh failure cause when no refresh token is stored.
	ErrNoRefreshToken = errors.New("no refresh token")
	// ErrEmptyAccessToken is the refresh failure cause when the backend answers without a token.
	ErrEmptyAccessToken = errors.New("refresh response missing access token")
	// ErrSessionReplaced is returned by RefreshDeps.Persist when the session a
	// refresh started from was replaced before its token could be stored.
	ErrSessionReplaced = errors.New("session replaced during refresh")
)

// RefreshDeps captures refresh coordinator dependencies.
type RefreshDeps struct {
	// LoadRefreshToken returns the stored refresh token, or "" when there is none.
	LoadRefreshToken func(ctx context.Context) (string, error)
	// Refresh exchanges a refresh token for a new access token.
	Refresh func(ctx context.Context, refreshToken string) (string, error)
	// Persist stores a newly issued access token. It returns ErrSessionReplaced
	// when lease is no longer current.
	Persist func(ctx context.Context, lease Lease, accessToken string) error
	// Invalidate is called once per failed refresh, before waiters are released.
	// It is not called again for a session it already ended.
	Invalidate func(ctx context.Context, lease Lease, cause error)
	// IsUnauthorized classifies errors that should trigger a refresh.
	IsUnauthorized func(error) bool

	OnRefreshed func()
	OnQueued    func()
	OnRetry     func()
	// OnRetryRejected sees the unauthorized error of a replay made with
	// accessToken.
	OnRetryRejected func(ctx context.Context, accessToken string, err error)

	Logger zerolog.Logger
}

// RefreshOutcome is what every participant of one refresh observes.
type RefreshOutcome struct {
	AccessToken string
	Err         error
}

// Lease ties one refresh to the session it was started for.
type Lease struct {
	// RefreshToken is the token the refresh exchanges, "" when none was stored.
	RefreshToken string

	c     *Coordinator
	epoch uint64
}

// Current reports whether no [Coordinator.Reset] happened since the lease was
// taken. Callers that Reset while holding a lock should check under that lock.
func (l Lease) Current() bool {
	if l.c == nil {
		return true
	}
	l.c.mu.Lock()
	defer l.c.mu.Unlock()
	return l.c.epoch == l.epoch
}

// Coordinator guarantees at most one refresh in flight. Callers that hit an
// unauthorized response while a refresh is running wait for its outcome
// instead of starting their own.
type Coordinator struct {
	deps RefreshDeps

	mu         sync.Mutex
	refreshing bool
	waiters    []chan RefreshOutcome
	// issued is the last access token produced by a successful refresh.
	issued string
	// epoch advances on Reset. expired marks the epoch whose session a failed
	// refresh already invalidated.
	epoch   uint64
	expired bool
}

// NewCoordinator returns an idle coordinator.
func NewCoordinator(deps RefreshDeps) *Coordinator {
	if deps.IsUnauthorized == nil {
		deps.IsUnauthorized = func(error) bool { return false }
	}
	return &Coordinator{deps: deps}
}

// Refreshing reports whether a refresh is in flight.
func (c *Coordinator) Refreshing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.refreshing
}

// Pending returns the number of callers queued behind the running refresh.
func (c *Coordinator) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.waiters)
}

// Reset forgets the last issued token and starts a new epoch. Called when a
// new session replaces the old one. Refreshes still running against the old
// epoch hold a lease that is no longer current.
func (c *Coordinator) Reset() {
	c.mu.Lock()
	c.issued = ""
	c.epoch++
	c.expired = false
	c.mu.Unlock()
}

// Await returns an access token newer than staleToken. It either joins the
// refresh in flight, reuses a token issued after staleToken was sent, or
// drives a new refresh.
func (c *Coordinator) Await(ctx context.Context, staleToken string) RefreshOutcome {
	c.mu.Lock()
	if c.refreshing {
		ch := make(chan RefreshOutcome, 1)
		c.waiters = append(c.waiters, ch)
		c.mu.Unlock()

		if c.deps.OnQueued != nil {
			c.deps.OnQueued()
		}
		select {
		case out := <-ch:
			return out
		case <-ctx.Done():
			return RefreshOutcome{Err: ctx.Err()}
		}
	}
	if staleToken != "" && c.issued != "" && staleToken != c.issued {
		token := c.issued
		c.mu.Unlock()
		return RefreshOutcome{AccessToken: token}
	}
	c.refreshing = true
	lease := Lease{c: c, epoch: c.epoch}
	c.mu.Unlock()

	return c.drive(ctx, lease)
}

func (c *Coordinator) drive(ctx context.Context, lease Lease) (out RefreshOutcome) {
	defer func() {
		if r := recover(); r != nil {
			c.settle(lease, RefreshOutcome{Err: fmt.Errorf("%w: refresh panicked: %v", ErrSessionExpired, r)})
			panic(r)
		}
		c.settle(lease, out)
	}()

	// The refresh outlives the driver's cancellation; waiters share its outcome.
	return c.refresh(context.WithoutCancel(ctx), lease)
}

func (c *Coordinator) refresh(ctx context.Context, lease Lease) RefreshOutcome {
	log := c.deps.Logger
	log.Debug().Msg("access token refresh started")

	refreshToken, err := c.deps.LoadRefreshToken(ctx)
	if err != nil {
		return c.fail(ctx, lease, fmt.Errorf("load refresh token: %w", err))
	}
	if refreshToken == "" {
		if c.alreadyExpired(lease) {
			log.Debug().Msg("session already invalidated")
			return RefreshOutcome{Err: fmt.Errorf("%w: %w", ErrSessionExpired, ErrNoRefreshToken)}
		}
		return c.fail(ctx, lease, ErrNoRefreshToken)
	}
	lease.RefreshToken = refreshToken

	accessToken, err := c.deps.Refresh(ctx, refreshToken)
	if err != nil {
		return c.fail(ctx, lease, err)
	}
	if accessToken == "" {
		return c.fail(ctx, lease, ErrEmptyAccessToken)
	}
	if err := c.deps.Persist(ctx, lease, accessToken); err != nil {
		if errors.Is(err, ErrSessionReplaced) {
			log.Debug().Msg("refreshed token discarded, session replaced")
			return RefreshOutcome{Err: fmt.Errorf("%w: %w", ErrSessionExpired, err)}
		}
		return c.fail(ctx, lease, fmt.Errorf("persist access token: %w", err))
	}

	if c.deps.OnRefreshed != nil {
		c.deps.OnRefreshed()
	}
	log.Debug().Msg("access token refreshed")
	return RefreshOutcome{AccessToken: accessToken}
}

func (c *Coordinator) fail(ctx context.Context, lease Lease, cause error) RefreshOutcome {
	c.deps.Logger.Warn().Err(cause).Msg("access token refresh failed")
	if c.deps.Invalidate != nil {
		c.deps.Invalidate(ctx, lease, cause)
	}
	c.mu.Lock()
	if c.epoch == lease.epoch {
		c.expired = true
	}
	c.mu.Unlock()
	return RefreshOutcome{Err: fmt.Errorf("%w: %w", ErrSessionExpired, cause)}
}

func (c *Coordinator) alreadyExpired(lease Lease) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.expired && c.epoch == lease.epoch
}

func (c *Coordinator) settle(lease Lease, out RefreshOutcome) {
	c.mu.Lock()
	waiters := c.waiters
	c.waiters = nil
	c.refreshing = false
	if out.Err == nil && c.epoch == lease.epoch {
		c.issued = out.AccessToken
	}
	c.mu.Unlock()

	for _, ch := range waiters {
		ch <- out
	}
}

// Call runs op with bearer. If op fails as unauthorized it awaits one
// coordinated refresh and replays op exactly once with the new token. A second
// unauthorized failure is returned unchanged.
func Call[T any](ctx context.Context, c *Coordinator, bearer string, op func(ctx context.Context, bearer string) (T, error)) (T, error) {
	v, err := op(ctx, bearer)
	if err == nil || !c.deps.IsUnauthorized(err) {
		return v, err
	}

	out := c.Await(ctx, bearer)
	if out.Err != nil {
		var zero T
		return zero, out.Err
	}

	if c.deps.OnRetry != nil {
		c.deps.OnRetry()
	}
	v, err = op(ctx, out.AccessToken)
	if err != nil {
		c.RetryRejected(ctx, out.AccessToken, err)
	}
	return v, err
}

// RetryRejected reports err to OnRetryRejected when it is an unauthorized
// failure of a request replayed with accessToken.
func (c *Coordinator) RetryRejected(ctx context.Context, accessToken string, err error) {
	if c.deps.OnRetryRejected != nil && c.deps.IsUnauthorized(err) {
		c.deps.OnRetryRejected(ctx, accessToken, err)
	}
}
