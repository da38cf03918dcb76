// Package clinicauth implements the account-security core of the apsicologia
// clinic platform: credential storage, password hashing, login lockout, TOTP
// two-factor enrollment and verification, JWT access/refresh token issuance,
// and HTTP authentication middleware.
//
// The package is designed for concurrent server workloads: Engine methods are
// safe to call from multiple goroutines after initialization through
// [Builder.Build].
//
// # Architecture boundaries
//
// clinicauth is the public surface. It exposes [Engine], [Builder], [Config],
// the [AccountStore] contract, and value types (Account, Profile, LoginResult,
// TwoFactorEnrollment). Internal coordination such as rate limiting, pending
// 2FA enrollments and audit dispatch lives under internal/ and is never
// exported.
//
// # What this package must NOT do
//
//   - Expose password hashes, TOTP secrets, or backup codes through any
//     returned value; callers only ever see the [Profile] projection.
//   - Accept a refresh token where an access token is required, or vice versa.
//   - Retry storage failures; transient errors propagate to the caller.
//
// Sub-packages: password/ (bcrypt hasher), token/ (JWT manager), middleware/
// (HTTP guards), store/ (AccountStore implementations), httpapi/ (REST
// surface), logging/ (structured logger contract).
package clinicauth
