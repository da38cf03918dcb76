// Package password provides the one-way credential transform used by the
// authentication engine: salted bcrypt digests with a configurable cost
// factor and library-provided constant-time verification.
//
// Hashing is always an explicit call made by the engine before persistence.
// Nothing in this module re-hashes on unrelated record updates; a digest is
// produced exactly when a plaintext credential is created or changed.
package password
