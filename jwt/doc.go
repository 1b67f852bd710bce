// Package jwt reads expiry and identity claims from bearer tokens issued by the
// Tanglr backend.
//
// The client never holds signing keys, so tokens are decoded without signature
// verification. A [Tracker] turns a token into an absolute expiry instant in
// epoch milliseconds and never fails: any token it cannot read is reported as
// expiring at the current instant, which callers treat as already expired.
//
// # What this package must NOT do
//
//   - Verify signatures or trust claims for authorization decisions.
//   - Import tanglr or session (no upward imports).
package jwt
