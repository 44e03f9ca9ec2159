// Package auth issues and validates bearer tokens for username/password
// accounts and gates operations by role.
//
// Login:
//   - SessionIssuer verifies a password against the stored hash and signs a
//     short lived token whose subject is the username. Unknown users and wrong
//     passwords fail with the same ErrInvalidCredentials value.
//
// Validation:
//   - TokenService owns the signing key and algorithm. Decode rejects forged,
//     malformed and expired tokens with ErrInvalidToken.
//   - PrincipalResolver looks the subject up on every request, so role changes
//     and deactivation apply to tokens that were already issued.
//
// Access gates:
//   - Gate is built once per protected operation with the roles it accepts.
//     Authorize resolves the principal, rejects disabled accounts and
//     requires at least one matching role. Gate.Middleware exposes the same
//     check to go-router as a MiddlewareFunc.
//
// Activity sinks:
//   - ActivitySink receives login, registration, update and denial events.
//     Sinks run best-effort (errors are logged) so you can forward to a
//     metrics pipeline or a queue without blocking authentication.
package auth
