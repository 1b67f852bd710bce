// Package flows contains the session orchestration behind the Tanglr client:
// the single-flight refresh [Coordinator] with its retry-once [Call] wrapper,
// and the logout flow.
//
// Flows receive typed dependency structs and do not own the stores, the HTTP
// executor, metrics or observers they touch. Ownership stays with the client.
//
// # What this package must NOT do
//
//   - Import tanglr (to avoid import cycles).
//   - Perform I/O directly. All I/O goes through dependency functions.
package flows
