package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/course-review/internal/apperror"
	"github.com/sakif/course-review/internal/model"
	"github.com/sakif/course-review/internal/repository"
)

var _ repository.TokenRepository = (*DB)(nil)

// ============================================================================
// Student email verification
// ============================================================================

// SaveVerificationCode replaces the pending code for the email and resets
// its attempt counter and verified flag.
func (db *DB) SaveVerificationCode(ctx context.Context, v *model.VerificationCode) error {
	v.Email = strings.ToLower(strings.TrimSpace(v.Email))
	v.CreatedAt = time.Now().UTC()
	v.Attempts = 0
	v.VerifiedAt = nil
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO verification_codes (email, code_hash, expires_at, attempts, verified_at, created_at)
		 VALUES (?, ?, ?, 0, NULL, ?)
		 ON CONFLICT(email) DO UPDATE SET
		   code_hash = excluded.code_hash, expires_at = excluded.expires_at,
		   attempts = 0, verified_at = NULL, created_at = excluded.created_at`,
		v.Email, v.CodeHash, v.ExpiresAt.UTC(), v.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: saving verification code for %s: %w", v.Email, err)
	}
	return nil
}

func (db *DB) GetVerificationCode(ctx context.Context, email string) (*model.VerificationCode, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	var (
		v        model.VerificationCode
		verified sql.NullTime
	)
	err := db.conn.QueryRowContext(ctx,
		`SELECT email, code_hash, expires_at, attempts, verified_at, created_at
		 FROM verification_codes WHERE email = ?`, email,
	).Scan(&v.Email, &v.CodeHash, &v.ExpiresAt, &v.Attempts, &verified, &v.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("verification code", email)
		}
		return nil, fmt.Errorf("sqlite: getting verification code for %s: %w", email, err)
	}
	if verified.Valid {
		v.VerifiedAt = &verified.Time
	}
	return &v, nil
}

func (db *DB) IncrementVerificationAttempts(ctx context.Context, email string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	res, err := db.conn.ExecContext(ctx,
		`UPDATE verification_codes SET attempts = attempts + 1 WHERE email = ?`, email)
	if err != nil {
		return fmt.Errorf("sqlite: counting verification attempt for %s: %w", email, err)
	}
	return checkAffected(res, apperror.NotFound("verification code", email))
}

func (db *DB) MarkEmailVerified(ctx context.Context, email string, at time.Time) error {
	email = strings.ToLower(strings.TrimSpace(email))
	res, err := db.conn.ExecContext(ctx,
		`UPDATE verification_codes SET verified_at = ? WHERE email = ?`, at.UTC(), email)
	if err != nil {
		return fmt.Errorf("sqlite: marking %s verified: %w", email, err)
	}
	return checkAffected(res, apperror.NotFound("verification code", email))
}

// ============================================================================
// Password resets
// ============================================================================

func (db *DB) CreatePasswordReset(ctx context.Context, p *model.PasswordReset) error {
	p.ID = xid.New().String()
	p.CreatedAt = time.Now().UTC()
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO password_resets (id, user_id, secret_hash, expires_at, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		p.ID, p.UserID, p.SecretHash, p.ExpiresAt.UTC(), p.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: creating password reset for %s: %w", p.UserID, err)
	}
	return nil
}

// LatestPasswordReset orders by the xid as well as created_at: xids sort by
// creation time, which breaks ties within the same clock tick.
func (db *DB) LatestPasswordReset(ctx context.Context, userID string) (*model.PasswordReset, error) {
	var (
		p    model.PasswordReset
		used sql.NullTime
	)
	err := db.conn.QueryRowContext(ctx,
		`SELECT id, user_id, secret_hash, expires_at, used_at, created_at
		 FROM password_resets WHERE user_id = ?
		 ORDER BY created_at DESC, id DESC LIMIT 1`, userID,
	).Scan(&p.ID, &p.UserID, &p.SecretHash, &p.ExpiresAt, &used, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("password reset", userID)
		}
		return nil, fmt.Errorf("sqlite: getting password reset for %s: %w", userID, err)
	}
	if used.Valid {
		p.UsedAt = &used.Time
	}
	return &p, nil
}

func (db *DB) MarkPasswordResetUsed(ctx context.Context, id string, at time.Time) error {
	res, err := db.conn.ExecContext(ctx,
		`UPDATE password_resets SET used_at = ? WHERE id = ? AND used_at IS NULL`, at.UTC(), id)
	if err != nil {
		return fmt.Errorf("sqlite: marking password reset %s used: %w", id, err)
	}
	return checkAffected(res, apperror.NotFound("password reset", id))
}
