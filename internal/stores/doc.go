// Package stores holds the Redis-backed transient state used by the engine:
// pending two-factor enrollments that must not touch the account record until
// the caller proves possession of the secret.
package stores
