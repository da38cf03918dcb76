// Package audit implements the asynchronous security audit trail: a
// dispatcher goroutine that forwards structured events to a pluggable sink
// without ever blocking the authentication hot path.
package audit
