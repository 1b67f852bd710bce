// Package transport executes single JSON-over-HTTP calls against the Tanglr API.
//
// An [Executor] attaches the bearer token, enforces a per-request timeout, and
// maps responses to either a raw JSON body or a typed error ([ErrTimeout],
// [*HTTPError]). It never retries; retry and refresh decisions belong to the
// caller.
package transport
