package interceptors

import (
	"net"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// ClientIPContext returns middleware that stores the caller's IP in the
// request context so the audit logger can record it.
func ClientIPContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request = c.Request.WithContext(WithClientIP(c.Request.Context(), requestIP(c.Request)))
		c.Next()
	}
}

// requestIP returns the client IP from x-forwarded-for, x-real-ip or the
// remote address, or "unknown".
func requestIP(r *http.Request) string {
	if s := strings.TrimSpace(r.Header.Get("X-Forwarded-For")); s != "" {
		if i := strings.Index(s, ","); i > 0 {
			s = strings.TrimSpace(s[:i])
		}
		return s
	}
	if s := strings.TrimSpace(r.Header.Get("X-Real-IP")); s != "" {
		return s
	}
	if r.RemoteAddr != "" {
		if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
			return host
		}
		return r.RemoteAddr
	}
	return "unknown"
}
