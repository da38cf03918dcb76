package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/apsicologia/clinicauth"
	"github.com/apsicologia/clinicauth/middleware"
)

type registerRequest struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	result, err := s.engine.Register(r.Context(), clinicauth.RegisterInput{
		Email:    req.Email,
		Name:     req.Name,
		Password: req.Password,
	})
	if err != nil {
		s.respondError(r.Context(), w, err)
		return
	}

	if err := s.delivery.DeliverVerification(r.Context(), result.Profile.Email, result.VerificationToken); err != nil {
		s.log.Warn(r.Context(), "verification delivery failed", "account", result.Profile.ID)
	}

	s.respondData(w, http.StatusCreated, result.Profile)
}

type loginRequest struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	TOTPCode   string `json:"totpCode,omitempty"`
	BackupCode string `json:"backupCode,omitempty"`
}

type loginResponse struct {
	AccessToken  string             `json:"accessToken"`
	RefreshToken string             `json:"refreshToken"`
	Profile      clinicauth.Profile `json:"profile"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	result, err := s.engine.Authenticate(r.Context(), clinicauth.Credentials{
		Email:      req.Email,
		Password:   req.Password,
		TOTPCode:   req.TOTPCode,
		BackupCode: req.BackupCode,
	})
	if err != nil {
		s.respondError(r.Context(), w, err)
		return
	}

	s.respondData(w, http.StatusOK, loginResponse{
		AccessToken:  result.AccessToken,
		RefreshToken: result.RefreshToken,
		Profile:      result.Profile,
	})
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	access, err := s.engine.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		s.respondError(r.Context(), w, err)
		return
	}

	s.respondData(w, http.StatusOK, map[string]string{"accessToken": access})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	if err := s.engine.Logout(r.Context(), req.RefreshToken); err != nil {
		s.respondError(r.Context(), w, err)
		return
	}

	s.respondData(w, http.StatusOK, nil)
}

type passwordResetRequest struct {
	Email string `json:"email"`
}

func (s *Server) handlePasswordResetRequest(w http.ResponseWriter, r *http.Request) {
	var req passwordResetRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	token, err := s.engine.RequestPasswordReset(r.Context(), req.Email)
	if err != nil {
		s.respondError(r.Context(), w, err)
		return
	}
	if token != "" {
		if err := s.delivery.DeliverPasswordReset(r.Context(), req.Email, token); err != nil {
			s.log.Warn(r.Context(), "password reset delivery failed")
		}
	}

	// Accepted regardless of whether the email exists.
	s.respondData(w, http.StatusAccepted, nil)
}

type passwordResetConfirm struct {
	Token       string `json:"token"`
	NewPassword string `json:"newPassword"`
}

func (s *Server) handlePasswordResetConfirm(w http.ResponseWriter, r *http.Request) {
	var req passwordResetConfirm
	if !s.decodeBody(w, r, &req) {
		return
	}

	if err := s.engine.ConfirmPasswordReset(r.Context(), req.Token, req.NewPassword); err != nil {
		s.respondError(r.Context(), w, err)
		return
	}

	s.respondData(w, http.StatusOK, nil)
}

type verifyEmailRequest struct {
	Token string `json:"token"`
}

func (s *Server) handleVerifyEmail(w http.ResponseWriter, r *http.Request) {
	var req verifyEmailRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	if err := s.engine.ConfirmEmailVerification(r.Context(), req.Token); err != nil {
		s.respondError(r.Context(), w, err)
		return
	}

	s.respondData(w, http.StatusOK, nil)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	identity, _ := middleware.IdentityFromContext(r.Context())

	profile, err := s.engine.GetProfile(r.Context(), identity.AccountID)
	if err != nil {
		s.respondError(r.Context(), w, err)
		return
	}

	s.respondData(w, http.StatusOK, profile)
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

func (s *Server) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	identity, _ := middleware.IdentityFromContext(r.Context())

	var req changePasswordRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	if err := s.engine.ChangePassword(r.Context(), identity.AccountID, req.CurrentPassword, req.NewPassword); err != nil {
		s.respondError(r.Context(), w, err)
		return
	}

	s.respondData(w, http.StatusOK, nil)
}

func (s *Server) handleRequestVerification(w http.ResponseWriter, r *http.Request) {
	identity, _ := middleware.IdentityFromContext(r.Context())

	token, err := s.engine.RequestEmailVerification(r.Context(), identity.AccountID)
	if err != nil {
		s.respondError(r.Context(), w, err)
		return
	}

	profile, err := s.engine.GetProfile(r.Context(), identity.AccountID)
	if err != nil {
		s.respondError(r.Context(), w, err)
		return
	}
	if err := s.delivery.DeliverVerification(r.Context(), profile.Email, token); err != nil {
		s.log.Warn(r.Context(), "verification delivery failed", "account", identity.AccountID)
	}

	s.respondData(w, http.StatusAccepted, nil)
}

type passwordProofRequest struct {
	Password string `json:"password"`
}

type enrollResponse struct {
	Secret          string   `json:"secret"`
	ProvisioningURI string   `json:"provisioningUri"`
	BackupCodes     []string `json:"backupCodes"`
}

func (s *Server) handleEnrollTwoFactor(w http.ResponseWriter, r *http.Request) {
	identity, _ := middleware.IdentityFromContext(r.Context())

	var req passwordProofRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	enrollment, err := s.engine.EnrollTwoFactor(r.Context(), identity.AccountID, req.Password)
	if err != nil {
		s.respondError(r.Context(), w, err)
		return
	}

	s.respondData(w, http.StatusOK, enrollResponse{
		Secret:          enrollment.SecretBase32,
		ProvisioningURI: enrollment.ProvisioningURI,
		BackupCodes:     enrollment.BackupCodes,
	})
}

type codeProofRequest struct {
	Code string `json:"code"`
}

func (s *Server) handleConfirmTwoFactor(w http.ResponseWriter, r *http.Request) {
	identity, _ := middleware.IdentityFromContext(r.Context())

	var req codeProofRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	if err := s.engine.ConfirmTwoFactor(r.Context(), identity.AccountID, req.Code); err != nil {
		s.respondError(r.Context(), w, err)
		return
	}

	s.respondData(w, http.StatusOK, nil)
}

func (s *Server) handleDisableTwoFactor(w http.ResponseWriter, r *http.Request) {
	identity, _ := middleware.IdentityFromContext(r.Context())

	var req passwordProofRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	if err := s.engine.DisableTwoFactor(r.Context(), identity.AccountID, req.Password); err != nil {
		s.respondError(r.Context(), w, err)
		return
	}

	s.respondData(w, http.StatusOK, nil)
}

func (s *Server) handleRegenerateBackupCodes(w http.ResponseWriter, r *http.Request) {
	identity, _ := middleware.IdentityFromContext(r.Context())

	var req codeProofRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	codes, err := s.engine.RegenerateBackupCodes(r.Context(), identity.AccountID, req.Code)
	if err != nil {
		s.respondError(r.Context(), w, err)
		return
	}

	s.respondData(w, http.StatusOK, map[string][]string{"backupCodes": codes})
}

type createStaffRequest struct {
	Email       string `json:"email"`
	Name        string `json:"name"`
	Password    string `json:"password"`
	Role        string `json:"role"`
	ClinicianID string `json:"clinicianId,omitempty"`
	PatientID   string `json:"patientId,omitempty"`
}

func (s *Server) handleCreateStaff(w http.ResponseWriter, r *http.Request) {
	var req createStaffRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	result, err := s.engine.CreateStaff(r.Context(), clinicauth.RegisterInput{
		Email:       req.Email,
		Name:        req.Name,
		Password:    req.Password,
		Role:        clinicauth.Role(req.Role),
		ClinicianID: req.ClinicianID,
		PatientID:   req.PatientID,
	})
	if err != nil {
		s.respondError(r.Context(), w, err)
		return
	}

	if err := s.delivery.DeliverVerification(r.Context(), result.Profile.Email, result.VerificationToken); err != nil {
		s.log.Warn(r.Context(), "verification delivery failed", "account", result.Profile.ID)
	}

	s.respondData(w, http.StatusCreated, result.Profile)
}

func (s *Server) handleDeactivate(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.Deactivate(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.respondError(r.Context(), w, err)
		return
	}
	s.respondData(w, http.StatusOK, nil)
}

func (s *Server) handleReactivate(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.Reactivate(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.respondError(r.Context(), w, err)
		return
	}
	s.respondData(w, http.StatusOK, nil)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.SoftDelete(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.respondError(r.Context(), w, err)
		return
	}
	s.respondData(w, http.StatusOK, nil)
}
