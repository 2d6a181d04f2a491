// Package auth is the server side of folio authentication: it verifies
// credentials, issues HS256 bearer tokens and guards API routes.
//
// Issuing:
//   - Auther.Login and Auther.Register return a LoginResult carrying the signed
//     token and the identity fields a client needs to render the session.
//     Unknown users and wrong passwords fail with the same CREDENTIAL_INVALID
//     error.
//   - ClaimsDecorator may add extension claims before signing. Protected claims
//     (sub, iss, aud, exp, iat, jti, role) cannot be changed by a decorator.
//
// Verifying:
//   - TokenService validates signature, expiry, issuer and audience.
//     NewRotatingValidator also accepts tokens signed with retired keys.
//   - ProtectedRoute and jwtware.RequireRoles gate fiber routes; failures are
//     written as JSON with the error kind in the code field.
//
// Activity sinks:
//   - ActivitySink receives login and registration events. Sinks run
//     best-effort (errors are logged) so you can forward to a log or queue
//     without blocking authentication. See the activitymap package.
//
// Storage is bun over sqlite or postgres; see OpenDB and CreateSchema. The
// client package holds the matching session handling for API consumers.
package auth
