// Package internal holds unexported plumbing shared by the engine: random
// challenge-token generation and hashing. Nothing here is part of the public
// API surface.
package internal
