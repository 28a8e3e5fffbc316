// Package server assembles the HTTP engine from the feature handlers.
package server

import (
	"log/slog"

	"github.com/gin-gonic/gin"

	devotphandler "auth-gateway/backend/internal/devotp/handler"
	healthhandler "auth-gateway/backend/internal/health/handler"
	identityhandler "auth-gateway/backend/internal/identity/handler"
	"auth-gateway/backend/internal/server/interceptors"
	"auth-gateway/backend/internal/telemetry"
)

// Deps holds the handler dependencies for the HTTP engine.
type Deps struct {
	// Auth serves /auth/*. Required.
	Auth identityhandler.AuthService
	// HealthPinger is used by /healthz for readiness (e.g. *sql.DB). If nil, the DB check is skipped.
	HealthPinger healthhandler.Pinger
	// HealthPolicyChecker is used by /healthz (e.g. OPA evaluator). If nil, the policy check is skipped.
	HealthPolicyChecker healthhandler.PolicyChecker
	// DevOTPHandler serves the dev-only OTP lookup. If nil, the route is not registered.
	// Set only when dev OTP is enabled and not production.
	DevOTPHandler *devotphandler.Handler
	// Events receives one http_request event per request. May be nil.
	Events telemetry.EventEmitter
	Logger *slog.Logger
}

// NewRouter returns the engine with middleware and all routes mounted.
//
// Route → handler mapping:
//   - POST /auth/register, /auth/confirm-registration, /auth/login, GET /auth/me → internal/identity/handler
//   - GET /healthz → internal/health/handler
//   - GET /dev/registration/otp → internal/devotp/handler (dev only)
func NewRouter(deps Deps) *gin.Engine {
	r := gin.New()
	r.Use(
		gin.Recovery(),
		interceptors.ClientIPContext(),
		interceptors.RequestTelemetry(deps.Logger, deps.Events, map[string]bool{"/healthz": true}),
	)
	identityhandler.NewAuthHandler(deps.Auth, deps.Logger).Register(r)
	healthhandler.New(deps.HealthPinger, deps.HealthPolicyChecker).Register(r)
	if deps.DevOTPHandler != nil {
		deps.DevOTPHandler.Register(r)
	}
	return r
}
