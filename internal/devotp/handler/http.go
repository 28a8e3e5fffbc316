// Package handler serves the dev-only registration OTP lookup.
package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"auth-gateway/backend/internal/devotp"
)

const devOTPNote = "DEV MODE ONLY"

// Handler serves GET /dev/registration/otp?email=. Only registered when
// NOTIFY_MODE=dev and APP_ENV is not production.
type Handler struct {
	store devotp.Store
}

// New returns a Handler reading from store.
func New(store devotp.Store) *Handler {
	return &Handler{store: store}
}

// Register mounts the route on r.
func (h *Handler) Register(r gin.IRouter) {
	r.GET("/dev/registration/otp", h.GetOTP)
}

// GetOTP returns the latest code issued for the email query parameter.
func (h *Handler) GetOTP(c *gin.Context) {
	email := c.Query("email")
	if email == "" {
		c.JSON(http.StatusBadRequest, gin.H{"message": "email is required"})
		return
	}
	code, ok := h.store.Get(c.Request.Context(), email)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"message": "OTP not found or expired"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"otp": code, "note": devOTPNote})
}
