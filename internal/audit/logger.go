package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"auth-gateway/backend/internal/audit/domain"
	auditrepo "auth-gateway/backend/internal/audit/repository"
	"auth-gateway/backend/internal/telemetry"
)

// IPExtractor returns the client IP from the request context.
type IPExtractor func(context.Context) string

// AuditLogger writes a single audit event. LogEvent is best-effort: failures
// are logged and do not affect the caller.
type AuditLogger interface {
	LogEvent(ctx context.Context, subject, action, resource, metadata string)
}

// Logger persists events to an optional repository and mirrors them to an
// optional telemetry emitter.
type Logger struct {
	repo        auditrepo.Repository
	emitter     telemetry.EventEmitter
	ipExtractor IPExtractor
	logger      *slog.Logger
	nowF        func() time.Time
}

// NewLogger returns a Logger. repo, emitter and ipExtractor may be nil; a nil
// ipExtractor records IP as "unknown".
func NewLogger(repo auditrepo.Repository, emitter telemetry.EventEmitter, ipExtractor IPExtractor, logger *slog.Logger) *Logger {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Logger{
		repo:        repo,
		emitter:     emitter,
		ipExtractor: ipExtractor,
		logger:      logger,
		nowF:        func() time.Time { return time.Now().UTC() },
	}
}

// LogEvent writes one audit log entry.
func (l *Logger) LogEvent(ctx context.Context, subject, action, resource, metadata string) {
	ip := "unknown"
	if l.ipExtractor != nil {
		if v := l.ipExtractor(ctx); v != "" {
			ip = v
		}
	}
	entry := &domain.AuditLog{
		ID:        uuid.New().String(),
		Subject:   subject,
		Action:    action,
		Resource:  resource,
		IP:        ip,
		Metadata:  metadata,
		CreatedAt: l.nowF(),
	}
	if l.repo != nil {
		if err := l.repo.Create(ctx, entry); err != nil {
			l.logger.WarnContext(ctx, "audit: failed to log event", "action", action, "resource", resource, "error", err)
		}
	}
	var meta []byte
	if metadata != "" {
		meta = []byte(metadata)
	}
	telemetry.EmitAsync(l.emitter, ctx, &telemetry.Event{
		Type:       action,
		Subject:    subject,
		Source:     "audit",
		Attributes: map[string]string{"resource": resource, "ip": ip, "audit_id": entry.ID},
		Metadata:   meta,
		CreatedAt:  entry.CreatedAt,
	}, l.logger)
}
