package audit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"auth-gateway/backend/internal/audit/domain"
	"auth-gateway/backend/internal/telemetry"
)

// mockAuditRepo implements the audit repository for tests.
type mockAuditRepo struct {
	mu        sync.Mutex
	entries   []*domain.AuditLog
	createErr error
}

func (m *mockAuditRepo) Create(ctx context.Context, entry *domain.AuditLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	m.entries = append(m.entries, entry)
	return nil
}

func (m *mockAuditRepo) ListBySubject(ctx context.Context, subject string, limit int32) ([]*domain.AuditLog, error) {
	return nil, nil
}

type mockEmitter struct {
	mu     sync.Mutex
	events []*telemetry.Event
}

func (m *mockEmitter) Emit(ctx context.Context, e *telemetry.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, e)
	return nil
}

func (m *mockEmitter) snapshot() []*telemetry.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*telemetry.Event(nil), m.events...)
}

func TestLogger_LogEvent_Success(t *testing.T) {
	repo := &mockAuditRepo{}
	em := &mockEmitter{}
	logger := NewLogger(repo, em, func(context.Context) string { return "192.168.1.1" }, nil)

	logger.LogEvent(context.Background(), "a@x.com", domain.ActionRegistrationRequested, "registration", `{"k":"v"}`)

	if len(repo.entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(repo.entries))
	}
	entry := repo.entries[0]
	if entry.Subject != "a@x.com" || entry.Action != domain.ActionRegistrationRequested || entry.Resource != "registration" {
		t.Errorf("entry = %+v", entry)
	}
	if entry.IP != "192.168.1.1" {
		t.Errorf("ip = %q", entry.IP)
	}
	if entry.ID == "" || entry.CreatedAt.IsZero() {
		t.Error("ID and CreatedAt should be set")
	}

	deadline := time.Now().Add(2 * time.Second)
	for len(em.snapshot()) == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	events := em.snapshot()
	if len(events) != 1 {
		t.Fatalf("expected 1 telemetry event, got %d", len(events))
	}
	if events[0].Type != domain.ActionRegistrationRequested || events[0].Attributes["audit_id"] != entry.ID {
		t.Errorf("event = %+v", events[0])
	}
}

func TestLogger_LogEvent_NoIPExtractor(t *testing.T) {
	repo := &mockAuditRepo{}
	NewLogger(repo, nil, nil, nil).LogEvent(context.Background(), "alice", domain.ActionLoginFailure, "session", "")
	if repo.entries[0].IP != "unknown" {
		t.Errorf("ip = %q, want unknown", repo.entries[0].IP)
	}
}

func TestLogger_LogEvent_RepoErrorIsSwallowed(t *testing.T) {
	repo := &mockAuditRepo{createErr: errors.New("db down")}
	NewLogger(repo, nil, nil, nil).LogEvent(context.Background(), "alice", domain.ActionLoginSuccess, "session", "")
	if len(repo.entries) != 0 {
		t.Error("no entry should be stored on error")
	}
}

func TestLogger_LogEvent_NilRepo(t *testing.T) {
	NewLogger(nil, nil, nil, nil).LogEvent(context.Background(), "alice", domain.ActionLoginSuccess, "session", "")
}
