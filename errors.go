package tanglr

import (
	"errors"

	"github.com/artyultra/tanglr-client/internal/flows"
	"github.com/artyultra/tanglr-client/internal/transport"
)

// HTTPError is a non-2xx API response. Status carries the HTTP status and
// Message the backend's message or error field.
type HTTPError = transport.HTTPError

var (
	// ErrTimeout is returned when a request exceeds its timeout. It is never an HTTPError.
	ErrTimeout = transport.ErrTimeout
	// ErrSessionExpired is returned when a refresh fails. The local session has
	// been cleared and OnSessionInvalidated subscribers notified.
	ErrSessionExpired = flows.ErrSessionExpired
	// ErrNoRefreshToken is wrapped inside ErrSessionExpired when no refresh token was stored.
	ErrNoRefreshToken = flows.ErrNoRefreshToken
	// ErrSessionReplaced is wrapped inside ErrSessionExpired when a Login or
	// Logout replaced the session while its refresh was in flight.
	ErrSessionReplaced = flows.ErrSessionReplaced
	// ErrNotAuthenticated is returned by session accessors when no session is stored.
	ErrNotAuthenticated = errors.New("not authenticated")
	// ErrUsernameRequired is returned by user-scoped calls given an empty username.
	ErrUsernameRequired = errors.New("username is required")
	// ErrInvalidInput wraps request validation failures.
	ErrInvalidInput = errors.New("invalid input")
	// ErrClientClosed is returned by calls made after Close.
	ErrClientClosed = errors.New("client closed")
	// ErrMalformedLoginResponse is returned when a login response lacks either token.
	ErrMalformedLoginResponse = errors.New("login response missing tokens")
)

// IsUnauthorized reports whether err is a rejected-token failure: status 401
// or a message containing "Unauthorized".
func IsUnauthorized(err error) bool {
	return transport.IsUnauthorized(err)
}
