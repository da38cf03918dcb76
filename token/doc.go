// Package token issues and verifies the signed credentials produced by a
// successful login: a short-lived access token presented on resource
// requests, and a longer-lived refresh token used solely to mint new access
// tokens. The two kinds are signed with distinct secrets and carry an
// explicit use claim, so neither can ever stand in for the other.
package token
