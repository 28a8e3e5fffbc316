package interceptors

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"auth-gateway/backend/internal/logging"
	"auth-gateway/backend/internal/telemetry"
)

// RequestIDHeader carries the request id in and out.
const RequestIDHeader = "X-Request-ID"

// httpRequestMetadata is the JSON shape stored in Event.Metadata for http_request events.
type httpRequestMetadata struct {
	Route      string `json:"route"`
	Method     string `json:"method"`
	StatusCode int    `json:"status_code"`
	DurationMs int64  `json:"duration_ms"`
	ClientIP   string `json:"client_ip"`
}

// RequestTelemetry returns middleware that assigns a request id, wraps the
// request in a span, logs one line per request and emits an http_request
// event. The emitter may be nil. skipPaths are neither logged nor emitted.
func RequestTelemetry(logger *slog.Logger, emitter telemetry.EventEmitter, skipPaths map[string]bool) gin.HandlerFunc {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	tracer := otel.Tracer("auth-gateway/http")
	return func(c *gin.Context) {
		start := time.Now()
		id := c.GetHeader(RequestIDHeader)
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		c.Header(RequestIDHeader, id)
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		ctx := logging.WithRequestID(c.Request.Context(), id)
		ctx, span := tracer.Start(ctx, c.Request.Method+" "+route, trace.WithSpanKind(trace.SpanKindServer))
		defer span.End()
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		status := c.Writer.Status()
		span.SetAttributes(
			attribute.String("http.route", route),
			attribute.Int("http.status_code", status),
		)
		if status >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, http.StatusText(status))
		}
		if skipPaths[route] {
			return
		}
		meta := httpRequestMetadata{
			Route:      route,
			Method:     c.Request.Method,
			StatusCode: status,
			DurationMs: time.Since(start).Milliseconds(),
			ClientIP:   ClientIP(ctx),
		}
		logger.InfoContext(ctx, "http request",
			"method", meta.Method,
			"route", meta.Route,
			"status", meta.StatusCode,
			"duration_ms", meta.DurationMs,
			"client_ip", meta.ClientIP,
		)
		if emitter == nil {
			return
		}
		metaJSON, _ := json.Marshal(meta)
		subject, _ := GetSubject(ctx)
		telemetry.EmitAsync(emitter, ctx, &telemetry.Event{
			Type:     "http_request",
			Subject:  subject,
			Outcome:  http.StatusText(status),
			Source:   "http_middleware",
			Metadata: metaJSON,
		}, logger)
	}
}
