package repository

import (
	"context"
	"database/sql"

	"auth-gateway/backend/internal/audit/domain"
)

// PostgresRepository stores audit logs in the audit_logs table.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns an audit log repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create persists the audit log. The audit log must have ID set.
func (r *PostgresRepository) Create(ctx context.Context, a *domain.AuditLog) error {
	meta := sql.NullString{String: a.Metadata, Valid: a.Metadata != ""}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO audit_logs (id, subject, action, resource, ip, metadata, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		a.ID, a.Subject, a.Action, a.Resource, a.IP, meta, a.CreatedAt)
	return err
}

// ListBySubject returns the newest audit logs for subject, at most limit.
func (r *PostgresRepository) ListBySubject(ctx context.Context, subject string, limit int32) ([]*domain.AuditLog, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, subject, action, resource, ip, metadata, created_at
FROM audit_logs WHERE subject = $1 ORDER BY created_at DESC LIMIT $2`, subject, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*domain.AuditLog
	for rows.Next() {
		var (
			a    domain.AuditLog
			meta sql.NullString
		)
		if err := rows.Scan(&a.ID, &a.Subject, &a.Action, &a.Resource, &a.IP, &meta, &a.CreatedAt); err != nil {
			return nil, err
		}
		a.Metadata = meta.String
		out = append(out, &a)
	}
	return out, rows.Err()
}
