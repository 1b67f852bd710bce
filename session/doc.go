// Package session holds the authenticated session of a Tanglr client and the
// stores that persist it.
//
// # Storage layout
//
// A session is kept under three storage keys, mirroring the browser client:
// the access token, the refresh token, and a user record carrying the cached
// profile and the derived access-token expiry. The key names are supplied by
// the caller through [Keys].
//
// Three [Store] implementations are provided: [MemoryStore] for a single
// process, [FileStore] for a durable per-user file that survives restarts, and
// [RedisStore] for several processes sharing one installation. All of them
// write the three keys as one unit, so readers observe either the previous
// session, the new session, or no session.
//
// # What this package must NOT do
//
//   - Import tanglr or jwt (no upward imports). Expiry is computed by the
//     caller and stored as given.
//   - Return a session that lacks either token.
package session
