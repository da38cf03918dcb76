// Package rate implements the Redis-backed attempt limiters layered in front
// of the credential core: a coarse per-address login pre-filter and a
// per-account two-factor wrong-code limiter. Neither participates in the
// lockout policy's correctness argument; they only bound abuse volume.
package rate
