package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/apsicologia/clinicauth"
)

type errorMapping struct {
	sentinel error
	status   int
	code     string
}

// errorMappings is ordered: the first match wins, so the more specific
// sentinels sit above the catch-alls they wrap.
var errorMappings = []errorMapping{
	{clinicauth.ErrInvalidCredentials, http.StatusUnauthorized, "INVALID_CREDENTIALS"},
	{clinicauth.ErrAccountLocked, http.StatusLocked, "ACCOUNT_LOCKED"},
	{clinicauth.ErrAccountInactive, http.StatusForbidden, "ACCOUNT_INACTIVE"},
	{clinicauth.ErrAccountNotFound, http.StatusNotFound, "ACCOUNT_NOT_FOUND"},
	{clinicauth.ErrTwoFactorRequired, http.StatusUnauthorized, "TWO_FACTOR_REQUIRED"},
	{clinicauth.ErrTwoFactorInvalid, http.StatusUnauthorized, "TWO_FACTOR_INVALID"},
	{clinicauth.ErrTwoFactorNotEnrolled, http.StatusBadRequest, "TWO_FACTOR_NOT_ENROLLED"},
	{clinicauth.ErrEnrollmentNotFound, http.StatusBadRequest, "ENROLLMENT_NOT_FOUND"},
	{clinicauth.ErrBackupCodeInvalid, http.StatusUnauthorized, "BACKUP_CODE_INVALID"},
	{clinicauth.ErrInvalidToken, http.StatusUnauthorized, "INVALID_TOKEN"},
	{clinicauth.ErrTokenRevoked, http.StatusUnauthorized, "TOKEN_REVOKED"},
	{clinicauth.ErrDuplicateEmail, http.StatusConflict, "DUPLICATE_EMAIL"},
	{clinicauth.ErrRoleInvalid, http.StatusBadRequest, "ROLE_INVALID"},
	{clinicauth.ErrValidation, http.StatusBadRequest, "VALIDATION_ERROR"},
	{clinicauth.ErrResetInvalid, http.StatusBadRequest, "RESET_INVALID"},
	{clinicauth.ErrVerificationInvalid, http.StatusBadRequest, "VERIFICATION_INVALID"},
	{clinicauth.ErrRateLimited, http.StatusTooManyRequests, "RATE_LIMITED"},
	{clinicauth.ErrStoreUnavailable, http.StatusServiceUnavailable, "STORE_UNAVAILABLE"},
}

func (s *Server) respondData(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"success": true,
		"data":    data,
	})
}

func (s *Server) respondError(ctx context.Context, w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	code := "INTERNAL"
	message := "internal error"

	for _, m := range errorMappings {
		if errors.Is(err, m.sentinel) {
			status = m.status
			code = m.code
			message = m.sentinel.Error()
			break
		}
	}

	if status >= http.StatusInternalServerError {
		s.log.Error(ctx, "request failed", "error", err)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"success": false,
		"message": message,
		"code":    code,
	})
}

// decodeBody parses a JSON request body into dst. Unknown fields and
// malformed bodies surface as validation errors.
func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		s.respondError(r.Context(), w, clinicauth.ErrValidation)
		return false
	}
	return true
}
