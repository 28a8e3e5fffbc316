// Package handler exposes the registration and login flows over HTTP.
package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	directorydomain "auth-gateway/backend/internal/directory/domain"
	"auth-gateway/backend/internal/identity/service"
	"auth-gateway/backend/internal/registration/domain"
	"auth-gateway/backend/internal/server/interceptors"
)

const (
	msgOTPSent   = "A one-time code has been sent to your email."
	msgConfirmed = "Registration confirmed. Your account has been created."
	msgInternal  = "internal error"
)

// AuthService is the subset of service.AuthService the handler calls.
type AuthService interface {
	Register(ctx context.Context, payload domain.Payload) (*service.RegistrationTicket, error)
	ConfirmRegistration(ctx context.Context, email, code string) (*directorydomain.Account, error)
	Login(ctx context.Context, email, password string) (*service.LoginResult, error)
	Authenticate(token string) (string, error)
	Profile(ctx context.Context, username string) (*directorydomain.Account, error)
}

// AuthHandler serves /auth/*.
type AuthHandler struct {
	auth   AuthService
	logger *slog.Logger
}

// NewAuthHandler returns an AuthHandler backed by auth.
func NewAuthHandler(auth AuthService, logger *slog.Logger) *AuthHandler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &AuthHandler{auth: auth, logger: logger}
}

// Register mounts the routes on r.
func (h *AuthHandler) Register(r gin.IRouter) {
	g := r.Group("/auth")
	g.POST("/register", h.register)
	g.POST("/confirm-registration", h.confirm)
	g.POST("/login", h.login)
	g.GET("/me", interceptors.RequireBearer(h.auth.Authenticate), h.me)
}

type registerRequest struct {
	Email       string `json:"email"`
	Username    string `json:"username"`
	FullName    string `json:"fullName"`
	PhoneNumber string `json:"phoneNumber"`
	Password    string `json:"password"`
}

type confirmRequest struct {
	Email string `json:"email"`
	OTP   string `json:"otp"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string    `json:"token"`
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	ExpiresAt time.Time `json:"expiresAt"`
}

func (h *AuthHandler) register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "malformed request body"})
		return
	}
	_, err := h.auth.Register(c.Request.Context(), domain.Payload{
		Email:       req.Email,
		Username:    req.Username,
		FullName:    req.FullName,
		PhoneNumber: req.PhoneNumber,
		Password:    req.Password,
	})
	if err != nil {
		h.fail(c, http.StatusBadRequest, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": msgOTPSent})
}

func (h *AuthHandler) confirm(c *gin.Context) {
	var req confirmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "malformed request body"})
		return
	}
	if _, err := h.auth.ConfirmRegistration(c.Request.Context(), req.Email, req.OTP); err != nil {
		h.fail(c, http.StatusBadRequest, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": msgConfirmed})
}

func (h *AuthHandler) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"message": service.ErrInvalidCredentials.Error()})
		return
	}
	res, err := h.auth.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.fail(c, http.StatusUnauthorized, err)
		return
	}
	c.JSON(http.StatusOK, loginResponse{
		Token:     res.Session.Token,
		ID:        res.Account.ID,
		Username:  res.Account.Username,
		Email:     res.Account.Email,
		ExpiresAt: res.Session.ExpiresAt,
	})
}

type profileResponse struct {
	ID       int64  `json:"id,omitempty"`
	Username string `json:"username"`
	Email    string `json:"email,omitempty"`
	FullName string `json:"fullName,omitempty"`
}

// me returns the session's profile. When the directory cannot supply it, only
// the token subject is returned.
func (h *AuthHandler) me(c *gin.Context) {
	ctx := c.Request.Context()
	subject, _ := interceptors.GetSubject(ctx)
	acct, err := h.auth.Profile(ctx, subject)
	if err != nil {
		h.logger.WarnContext(ctx, "profile lookup failed", "error", err)
		c.JSON(http.StatusOK, profileResponse{Username: subject})
		return
	}
	c.JSON(http.StatusOK, profileResponse{ID: acct.ID, Username: acct.Username, Email: acct.Email, FullName: acct.FullName})
}

// fail writes the error response. Business errors use flowStatus; unknown
// errors are logged and reported as 500 without detail.
func (h *AuthHandler) fail(c *gin.Context, flowStatus int, err error) {
	status, msg := mapError(err, flowStatus)
	if status == http.StatusInternalServerError {
		h.logger.ErrorContext(c.Request.Context(), "auth request failed", "path", c.FullPath(), "error", err)
	}
	c.JSON(status, gin.H{"message": msg})
}

var flowErrors = []error{
	service.ErrDuplicateAccount,
	service.ErrRegistrationNotFoundOrExpired,
	service.ErrInvalidCode,
	service.ErrNotificationFailure,
	service.ErrAccountCommitFailed,
	service.ErrAccountNotFound,
	service.ErrInvalidCredentials,
	service.ErrDependencyUnavailable,
}

func mapError(err error, flowStatus int) (int, string) {
	switch {
	case errors.Is(err, service.ErrTooManyAttempts):
		return http.StatusTooManyRequests, service.ErrTooManyAttempts.Error()
	case errors.Is(err, service.ErrValidation), errors.Is(err, service.ErrRegistrationRejected):
		return flowStatus, err.Error()
	}
	for _, target := range flowErrors {
		if errors.Is(err, target) {
			return flowStatus, target.Error()
		}
	}
	return http.StatusInternalServerError, msgInternal
}
