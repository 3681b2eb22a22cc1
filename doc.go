// Package session coordinates a client-side authentication session: it
// observes identity-provider state, derives short-lived bearer tokens, and
// keeps a real-time connection open in lockstep with the signed-in state.
//
// Lifecycle:
//   - A single Coordinator instance is constructed at application-root scope
//     and passed to consumers; there is no package-level session state.
//   - Start subscribes to the provider's principal feed. The first event
//     either resolves a principal (token fetch + connection bind) or issues a
//     redirect to the login view; later feed events are absorbed by a
//     resolved-once latch so background token refreshes do not trigger
//     reconnect storms.
//   - Login, Register, SignInAsGuest, and Logout re-enter the same flow by
//     replacing the principal and rebinding or releasing the connection.
//
// Error classification:
//   - Provider failures are normalized into a closed ErrorKind taxonomy at
//     the operation boundary. Raw provider errors never escape it. Classify
//     recovers the kind from any error returned by this package, and
//     Annotate maps it onto the form field that should display it.
//
// Concurrency:
//   - Operations may be issued again before a previous attempt settles
//     (double-submits). Each attempt captures a generation counter and only
//     the latest settled attempt commits session state, so a stale failure
//     can never claw back a newer sign-in.
package session
