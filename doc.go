// Package auth implements a token lifecycle engine for password-based
// authentication: short-lived signed access tokens, per-device refresh
// tokens with rotate-on-use semantics, and single-use email verification
// tokens.
//
// Access tokens are stateless JWTs, validated by signature and expiry
// alone. Refresh tokens are opaque values validated against storage; each
// registered device holds at most one active refresh token, and rotation
// is a compare-and-swap so a stolen-then-replayed value loses the race
// exactly once.
//
// User lifecycle:
//   - RegisterUserHandler creates the account and issues a pending email
//     verification token in one transaction. Uniqueness of email and
//     username is enforced by the storage constraints, not by the
//     preliminary existence checks.
//   - ConfirmEmailHandler flips the user's verified flag and confirms the
//     token. Replayed confirmations for an already-verified user succeed
//     without writes.
//   - RecreateVerificationHandler supersedes a stale verification token
//     in place; the old value never validates again.
//
// Sessions and devices:
//   - Auther.Login verifies credentials, registers the calling device,
//     and returns a TokenPair (access JWT + refresh token).
//   - Auther.Refresh rotates the presented refresh token and mints a new
//     access token.
//   - Auther.Logout revokes the device's refresh token until next login.
//
// Activity sinks:
//   - ActivitySink is a light-weight audit emitter used by Auther and the
//     command handlers to describe registration, login, refresh, and
//     password change events. Sinks run best-effort (errors are logged) so
//     you can forward to a database or queue without blocking
//     authentication.
//
// Persistence goes through RepositoryManager, a thin facade over Bun
// repositories. See data/sql/migrations for the expected schema.
package auth
