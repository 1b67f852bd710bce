// Package tanglr is an authenticated client for the Tanglr social API.
//
// A [Client] keeps one session (access token, refresh token and a cached
// profile) in a [session.Store] and attaches the access token to every
// protected call. When the API answers 401, the client refreshes the access
// token once and replays the call. Concurrent callers that hit 401 while a
// refresh is running wait for that refresh instead of starting their own, so
// a burst of expired requests costs one POST /refresh-token.
//
// If the refresh fails the session is cleared, every waiting call returns
// [ErrSessionExpired] and [Client.OnSessionInvalidated] subscribers run once.
//
// # Construction
//
//	client, err := tanglr.New().
//		WithConfig(cfg).
//		WithLogger(logger).
//		Build()
//
// Clients hold no package-level state; independent clients never share a
// session or a refresh.
package tanglr
