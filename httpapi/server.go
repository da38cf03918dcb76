// Package httpapi exposes the authentication engine over a JSON REST API.
// Responses use a uniform envelope: {"success":true,"data":...} or
// {"success":false,"message":...,"code":...}.
package httpapi

import (
	"context"
	"net"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/apsicologia/clinicauth"
	"github.com/apsicologia/clinicauth/logging"
	"github.com/apsicologia/clinicauth/middleware"
)

// Delivery carries single-use challenge tokens to the account owner. The
// API never returns those tokens in a response body.
type Delivery interface {
	DeliverVerification(ctx context.Context, email, token string) error
	DeliverPasswordReset(ctx context.Context, email, token string) error
}

// LogDelivery writes challenge tokens to the logger. Useful for development
// and tests; production wires a mail-backed implementation.
type LogDelivery struct {
	Log logging.Logger
}

func (d LogDelivery) DeliverVerification(ctx context.Context, email, token string) error {
	d.Log.Info(ctx, "verification token issued", "email", email, "token", token)
	return nil
}

func (d LogDelivery) DeliverPasswordReset(ctx context.Context, email, token string) error {
	d.Log.Info(ctx, "password reset token issued", "email", email, "token", token)
	return nil
}

// Server hosts the REST routes for one engine.
type Server struct {
	engine   *clinicauth.Engine
	log      logging.Logger
	delivery Delivery
}

// NewServer assembles a Server. A nil logger becomes a no-op; a nil
// delivery logs tokens through the logger.
func NewServer(engine *clinicauth.Engine, log logging.Logger, delivery Delivery) *Server {
	if log == nil {
		log = logging.Nop()
	}
	if delivery == nil {
		delivery = LogDelivery{Log: log}
	}
	return &Server{
		engine:   engine,
		log:      log,
		delivery: delivery,
	}
}

// Router builds the route tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(clientIPContext)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", s.handleRegister)
			r.Post("/login", s.handleLogin)
			r.Post("/refresh", s.handleRefresh)
			r.Post("/logout", s.handleLogout)
			r.Post("/password-reset", s.handlePasswordResetRequest)
			r.Post("/password-reset/confirm", s.handlePasswordResetConfirm)
			r.Post("/verify-email", s.handleVerifyEmail)
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.Authenticate(s.engine))

			r.Get("/me", s.handleMe)
			r.Post("/me/password", s.handleChangePassword)
			r.Post("/me/verify-email", s.handleRequestVerification)

			r.Route("/me/2fa", func(r chi.Router) {
				r.Post("/enroll", s.handleEnrollTwoFactor)
				r.Post("/confirm", s.handleConfirmTwoFactor)
				r.Post("/disable", s.handleDisableTwoFactor)
				r.Post("/backup-codes", s.handleRegenerateBackupCodes)
			})

			r.Route("/admin/accounts", func(r chi.Router) {
				r.Use(middleware.RequireRole(clinicauth.RoleAdmin))

				r.Post("/", s.handleCreateStaff)
				r.Post("/{id}/deactivate", s.handleDeactivate)
				r.Post("/{id}/reactivate", s.handleReactivate)
				r.Delete("/{id}", s.handleDelete)
			})
		})
	})

	return r
}

// clientIPContext copies the request's remote address into the context the
// engine reads for audit records and the login limiter.
func clientIPContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			host = r.RemoteAddr
		}
		next.ServeHTTP(w, r.WithContext(clinicauth.WithClientIP(r.Context(), host)))
	})
}
