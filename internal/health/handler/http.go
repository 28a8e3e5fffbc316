// Package handler serves the readiness endpoint.
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

const checkTimeout = 2 * time.Second

// Pinger checks database reachability (e.g. *sql.DB).
type Pinger interface {
	PingContext(ctx context.Context) error
}

// PolicyChecker checks that the admission policy engine can evaluate.
type PolicyChecker interface {
	HealthCheck(ctx context.Context) error
}

// Handler serves GET /healthz. Nil checkers are skipped.
type Handler struct {
	pinger        Pinger
	policyChecker PolicyChecker
}

// New returns a Handler. pinger and policyChecker may be nil.
func New(pinger Pinger, policyChecker PolicyChecker) *Handler {
	return &Handler{pinger: pinger, policyChecker: policyChecker}
}

// Register mounts the route on r.
func (h *Handler) Register(r gin.IRouter) {
	r.GET("/healthz", h.HealthCheck)
}

// HealthCheck reports 200 when every configured check passes and 503 with
// the failing checks otherwise.
func (h *Handler) HealthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), checkTimeout)
	defer cancel()
	failing := map[string]string{}
	if h.pinger != nil {
		if err := h.pinger.PingContext(ctx); err != nil {
			failing["database"] = err.Error()
		}
	}
	if h.policyChecker != nil {
		if err := h.policyChecker.HealthCheck(ctx); err != nil {
			failing["policy"] = err.Error()
		}
	}
	if len(failing) > 0 {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "failing": failing})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
