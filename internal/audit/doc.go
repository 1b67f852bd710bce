// Package audit dispatches session lifecycle events (login, refresh, expiry,
// logout) to a caller-supplied sink.
//
// # Components
//
//   - [Sink] for event consumers (channel, JSON writer, zerolog, no-op).
//   - [Dispatcher], a buffered async relay with drop-if-full or block-if-full semantics.
//   - [Event], the structured record.
//
// # What this package must NOT do
//
//   - Decide which events to emit. The client does.
//   - Import tanglr or any sibling internal package.
package audit
