package flows

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/artyultra/tanglr-client/internal/transport"
	"github.com/stretchr/testify/require"
)

type fakeBackend struct {
	mu          sync.Mutex
	access      string
	refresh     string
	refreshErr  error
	refreshGate func()
	refreshes   atomic.Int32
	invalidated atomic.Int32
	persisted   atomic.Int32
	queued      atomic.Int32
	retries     atomic.Int32
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{access: "old", refresh: "R"}
}

func (f *fakeBackend) deps() RefreshDeps {
	return RefreshDeps{
		LoadRefreshToken: func(context.Context) (string, error) {
			f.mu.Lock()
			defer f.mu.Unlock()
			return f.refresh, nil
		},
		Refresh: func(_ context.Context, refreshToken string) (string, error) {
			f.refreshes.Add(1)
			if f.refreshGate != nil {
				f.refreshGate()
			}
			if f.refreshErr != nil {
				return "", f.refreshErr
			}
			return "new", nil
		},
		Persist: func(_ context.Context, lease Lease, token string) error {
			if !lease.Current() {
				return ErrSessionReplaced
			}
			f.persisted.Add(1)
			f.mu.Lock()
			f.access = token
			f.mu.Unlock()
			return nil
		},
		Invalidate: func(_ context.Context, lease Lease, _ error) {
			if !lease.Current() {
				return
			}
			f.invalidated.Add(1)
			f.mu.Lock()
			f.access, f.refresh = "", ""
			f.mu.Unlock()
		},
		IsUnauthorized: transport.IsUnauthorized,
		OnQueued:       func() { f.queued.Add(1) },
		OnRetry:        func() { f.retries.Add(1) },
	}
}

// resource accepts only the "new" token.
func resource(_ context.Context, bearer string) (string, error) {
	if bearer != "new" {
		return "", &transport.HTTPError{Status: http.StatusUnauthorized, Message: "Unauthorized"}
	}
	return "payload", nil
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	require.Eventually(t, cond, 2*time.Second, time.Millisecond)
}

func TestCallSingleFlightAcrossConcurrentCallers(t *testing.T) {
	const n = 16
	backend := newFakeBackend()
	var coord *Coordinator
	backend.refreshGate = func() {
		// Hold the refresh open until every other caller has queued behind it.
		waitFor(t, func() bool { return coord.Pending() == n-1 })
	}
	coord = NewCoordinator(backend.deps())

	var wg sync.WaitGroup
	results := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := Call(context.Background(), coord, "old", resource)
			if err == nil && v != "payload" {
				err = errors.New("unexpected payload " + v)
			}
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	for err := range results {
		require.NoError(t, err)
	}
	require.Equal(t, int32(1), backend.refreshes.Load())
	require.Equal(t, int32(1), backend.persisted.Load())
	require.Equal(t, int32(n-1), backend.queued.Load())
	require.Equal(t, int32(n), backend.retries.Load())
	require.False(t, coord.Refreshing())
	require.Zero(t, coord.Pending())
}

func TestCallRetriesOnlyOnce(t *testing.T) {
	backend := newFakeBackend()
	coord := NewCoordinator(backend.deps())

	var calls atomic.Int32
	_, err := Call(context.Background(), coord, "old", func(context.Context, string) (string, error) {
		calls.Add(1)
		return "", &transport.HTTPError{Status: http.StatusUnauthorized, Message: "still no"}
	})

	var httpErr *transport.HTTPError
	require.ErrorAs(t, err, &httpErr)
	require.Equal(t, http.StatusUnauthorized, httpErr.Status)
	require.Equal(t, int32(2), calls.Load())
	require.Equal(t, int32(1), backend.refreshes.Load())
}

func TestCallPassesThroughNonAuthErrors(t *testing.T) {
	backend := newFakeBackend()
	coord := NewCoordinator(backend.deps())

	_, err := Call(context.Background(), coord, "old", func(context.Context, string) (string, error) {
		return "", &transport.HTTPError{Status: http.StatusNotFound, Message: "user not found"}
	})
	require.EqualError(t, err, "user not found")
	require.Zero(t, backend.refreshes.Load())

	_, err = Call(context.Background(), coord, "old", func(context.Context, string) (string, error) {
		return "", transport.ErrTimeout
	})
	require.ErrorIs(t, err, transport.ErrTimeout)
	require.Zero(t, backend.refreshes.Load())
}

func TestCallRefreshFailureRejectsEveryone(t *testing.T) {
	const n = 8
	backend := newFakeBackend()
	backend.refreshErr = &transport.HTTPError{Status: http.StatusUnauthorized, Message: "refresh token revoked"}
	var coord *Coordinator
	backend.refreshGate = func() {
		waitFor(t, func() bool { return coord.Pending() == n-1 })
	}
	coord = NewCoordinator(backend.deps())

	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := Call(context.Background(), coord, "old", resource)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.ErrorIs(t, err, ErrSessionExpired)
	}
	require.Equal(t, int32(1), backend.invalidated.Load())
	require.Equal(t, int32(1), backend.refreshes.Load())
	require.False(t, coord.Refreshing())
}

func TestAwaitWithoutRefreshToken(t *testing.T) {
	backend := newFakeBackend()
	backend.refresh = ""
	coord := NewCoordinator(backend.deps())

	out := coord.Await(context.Background(), "old")
	require.ErrorIs(t, out.Err, ErrSessionExpired)
	require.ErrorIs(t, out.Err, ErrNoRefreshToken)
	require.Zero(t, backend.refreshes.Load())
	require.Equal(t, int32(1), backend.invalidated.Load())
}

func TestAwaitEmptyAccessTokenFails(t *testing.T) {
	backend := newFakeBackend()
	deps := backend.deps()
	deps.Refresh = func(context.Context, string) (string, error) { return "", nil }
	coord := NewCoordinator(deps)

	out := coord.Await(context.Background(), "old")
	require.ErrorIs(t, out.Err, ErrEmptyAccessToken)
	require.Equal(t, int32(1), backend.invalidated.Load())
}

func TestAwaitReusesTokenIssuedAfterStaleRequest(t *testing.T) {
	backend := newFakeBackend()
	coord := NewCoordinator(backend.deps())

	first := coord.Await(context.Background(), "old")
	require.NoError(t, first.Err)
	require.Equal(t, "new", first.AccessToken)

	late := coord.Await(context.Background(), "old")
	require.NoError(t, late.Err)
	require.Equal(t, "new", late.AccessToken)
	require.Equal(t, int32(1), backend.refreshes.Load())

	// A request that already used the issued token needs a real refresh.
	_ = coord.Await(context.Background(), "new")
	require.Equal(t, int32(2), backend.refreshes.Load())

	coord.Reset()
	_ = coord.Await(context.Background(), "old")
	require.Equal(t, int32(3), backend.refreshes.Load())
}

func TestAwaitAfterFailedRefreshInvalidatesOnce(t *testing.T) {
	backend := newFakeBackend()
	backend.refreshErr = &transport.HTTPError{Status: http.StatusUnauthorized}
	coord := NewCoordinator(backend.deps())

	first := coord.Await(context.Background(), "old")
	require.ErrorIs(t, first.Err, ErrSessionExpired)
	require.Equal(t, int32(1), backend.invalidated.Load())

	// A request sent with the old token before the failure answers late.
	late := coord.Await(context.Background(), "old")
	require.ErrorIs(t, late.Err, ErrSessionExpired)
	require.ErrorIs(t, late.Err, ErrNoRefreshToken)
	require.Equal(t, int32(1), backend.invalidated.Load())
	require.Equal(t, int32(1), backend.refreshes.Load())

	coord.Reset()
	_ = coord.Await(context.Background(), "")
	require.Equal(t, int32(2), backend.invalidated.Load())
}

func TestAwaitDiscardsRefreshForReplacedSession(t *testing.T) {
	backend := newFakeBackend()
	release := make(chan struct{})
	backend.refreshGate = func() { <-release }
	coord := NewCoordinator(backend.deps())

	outc := make(chan RefreshOutcome, 1)
	go func() { outc <- coord.Await(context.Background(), "old") }()
	waitFor(t, func() bool { return backend.refreshes.Load() == 1 })

	coord.Reset()
	close(release)

	out := <-outc
	require.ErrorIs(t, out.Err, ErrSessionExpired)
	require.ErrorIs(t, out.Err, ErrSessionReplaced)
	require.Zero(t, backend.persisted.Load())
	require.Zero(t, backend.invalidated.Load())

	// Nothing was issued for the new epoch, so a stale token refreshes again.
	next := coord.Await(context.Background(), "old")
	require.NoError(t, next.Err)
	require.Equal(t, int32(2), backend.refreshes.Load())
}

func TestAwaitRecoversFromPanickingRefresh(t *testing.T) {
	backend := newFakeBackend()
	release := make(chan struct{})
	deps := backend.deps()
	deps.Refresh = func(context.Context, string) (string, error) {
		<-release
		panic("boom")
	}
	coord := NewCoordinator(deps)

	driverDone := make(chan struct{})
	go func() {
		defer close(driverDone)
		defer func() { _ = recover() }()
		coord.Await(context.Background(), "old")
	}()
	waitFor(t, coord.Refreshing)

	waiterOut := make(chan RefreshOutcome, 1)
	go func() { waiterOut <- coord.Await(context.Background(), "old") }()
	waitFor(t, func() bool { return coord.Pending() == 1 })

	close(release)
	<-driverDone

	out := <-waiterOut
	require.ErrorIs(t, out.Err, ErrSessionExpired)
	require.False(t, coord.Refreshing())
}

func TestAwaitWaiterHonorsOwnContext(t *testing.T) {
	backend := newFakeBackend()
	release := make(chan struct{})
	backend.refreshGate = func() { <-release }
	coord := NewCoordinator(backend.deps())

	driverOut := make(chan RefreshOutcome, 1)
	go func() { driverOut <- coord.Await(context.Background(), "old") }()
	waitFor(t, coord.Refreshing)

	ctx, cancel := context.WithCancel(context.Background())
	waiterOut := make(chan RefreshOutcome, 1)
	go func() { waiterOut <- coord.Await(ctx, "old") }()
	waitFor(t, func() bool { return coord.Pending() == 1 })

	cancel()
	require.ErrorIs(t, (<-waiterOut).Err, context.Canceled)

	close(release)
	require.NoError(t, (<-driverOut).Err)
}

func TestAwaitDriverCancellationDoesNotFailRefresh(t *testing.T) {
	backend := newFakeBackend()
	release := make(chan struct{})
	deps := backend.deps()
	deps.Refresh = func(ctx context.Context, _ string) (string, error) {
		<-release
		if err := ctx.Err(); err != nil {
			return "", err
		}
		return "new", nil
	}
	coord := NewCoordinator(deps)

	ctx, cancel := context.WithCancel(context.Background())
	driverOut := make(chan RefreshOutcome, 1)
	go func() { driverOut <- coord.Await(ctx, "old") }()
	waitFor(t, coord.Refreshing)

	cancel()
	close(release)

	out := <-driverOut
	require.NoError(t, out.Err)
	require.Equal(t, "new", out.AccessToken)
	require.Zero(t, backend.invalidated.Load())
}
