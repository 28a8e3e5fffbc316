package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"auth-gateway/backend/internal/otp"
	"auth-gateway/backend/internal/registration/domain"
	"auth-gateway/backend/internal/security"
)

// PostgresStore is a Store shared by every gateway replica. Codes rest as
// SHA-256 hashes and payloads are sealed, so neither the code nor the
// plaintext password is readable from the table. Get returns entries with an
// empty Code for that reason.
type PostgresStore struct {
	db     *sql.DB
	sealer *security.Sealer
}

// NewPostgresStore returns a PostgresStore over db (pgx stdlib driver).
func NewPostgresStore(db *sql.DB, sealer *security.Sealer) *PostgresStore {
	return &PostgresStore{db: db, sealer: sealer}
}

const upsertPending = `INSERT INTO pending_registrations (email, code_hash, payload, created_at, expires_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (email) DO UPDATE SET
	code_hash = EXCLUDED.code_hash,
	payload = EXCLUDED.payload,
	created_at = EXCLUDED.created_at,
	expires_at = EXCLUDED.expires_at`

// Put upserts p; the last write for an email wins.
func (s *PostgresStore) Put(ctx context.Context, p *domain.PendingRegistration) error {
	sealed, err := s.sealer.Seal(p.Payload, []byte(p.Email))
	if err != nil {
		return fmt.Errorf("seal pending payload: %w", err)
	}
	_, err = s.db.ExecContext(ctx, upsertPending, p.Email, otp.Hash(p.Code), sealed, p.CreatedAt.UTC(), p.ExpiresAt.UTC())
	return err
}

// Get returns the live entry for email without its code.
func (s *PostgresStore) Get(ctx context.Context, email string, now time.Time) (*domain.PendingRegistration, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT payload, created_at, expires_at FROM pending_registrations WHERE email = $1`, email)
	var (
		sealed               []byte
		createdAt, expiresAt time.Time
	)
	if err := row.Scan(&sealed, &createdAt, &expiresAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAbsent
		}
		return nil, err
	}
	p := &domain.PendingRegistration{Email: email, CreatedAt: createdAt, ExpiresAt: expiresAt}
	if p.Expired(now) {
		return nil, ErrAbsent
	}
	if err := s.sealer.Open(sealed, []byte(email), &p.Payload); err != nil {
		return nil, fmt.Errorf("open pending payload: %w", err)
	}
	return p, nil
}

// TakeIfValid locks the row for the duration of one transaction. A concurrent
// caller blocks on the row lock and then finds the row gone (ErrAbsent).
func (s *PostgresStore) TakeIfValid(ctx context.Context, email, code string, now time.Time) (payload domain.Payload, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Payload{}, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var (
		codeHash  string
		sealed    []byte
		expiresAt time.Time
	)
	row := tx.QueryRowContext(ctx,
		`SELECT code_hash, payload, expires_at FROM pending_registrations WHERE email = $1 FOR UPDATE`, email)
	if err = row.Scan(&codeHash, &sealed, &expiresAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = ErrAbsent
		}
		return domain.Payload{}, err
	}

	if !now.Before(expiresAt) {
		if err = deletePending(ctx, tx, email); err != nil {
			return domain.Payload{}, err
		}
		if err = tx.Commit(); err != nil {
			return domain.Payload{}, err
		}
		return domain.Payload{}, ErrExpired
	}
	if !otp.HashEqual(code, codeHash) {
		err = ErrCodeMismatch
		return domain.Payload{}, err
	}
	if err = s.sealer.Open(sealed, []byte(email), &payload); err != nil {
		return domain.Payload{}, fmt.Errorf("open pending payload: %w", err)
	}
	if err = deletePending(ctx, tx, email); err != nil {
		return domain.Payload{}, err
	}
	if err = tx.Commit(); err != nil {
		return domain.Payload{}, err
	}
	return payload, nil
}

// Sweep deletes every row expired at now.
func (s *PostgresStore) Sweep(ctx context.Context, now time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM pending_registrations WHERE expires_at <= $1`, now.UTC())
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

func deletePending(ctx context.Context, tx *sql.Tx, email string) error {
	_, err := tx.ExecContext(ctx, `DELETE FROM pending_registrations WHERE email = $1`, email)
	return err
}
