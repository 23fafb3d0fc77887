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

// compile-time check that *DB implements repository.UserRepository
var _ repository.UserRepository = (*DB)(nil)

const userColumns = `id, email, name, password_hash, email_verified, active,
	COALESCE(google_id, ''), google_email, created_at, updated_at`

func scanUser(row interface{ Scan(...any) error }) (*model.User, error) {
	var u model.User
	err := row.Scan(
		&u.ID,
		&u.Email,
		&u.Name,
		&u.PasswordHash,
		&u.EmailVerified,
		&u.Active,
		&u.GoogleID,
		&u.GoogleEmail,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// CreateUser stores a new account. Emails are stored lower-cased so lookups
// are case-insensitive; names keep their case but compare with NOCASE.
func (db *DB) CreateUser(ctx context.Context, user *model.User) error {
	now := time.Now().UTC()
	user.ID = xid.New().String()
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	user.CreatedAt = now
	user.UpdatedAt = now

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO users (id, email, name, password_hash, email_verified, active, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		user.ID,
		user.Email,
		user.Name,
		user.PasswordHash,
		user.EmailVerified,
		user.Active,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("user", "email or name already registered")
		}
		return fmt.Errorf("sqlite: inserting user %s: %w", user.Email, err)
	}
	return nil
}

func (db *DB) getUser(ctx context.Context, where, label string, arg any) (*model.User, error) {
	u, err := scanUser(db.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE `+where, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", fmt.Sprint(arg))
		}
		return nil, fmt.Errorf("sqlite: getting user by %s: %w", label, err)
	}
	return u, nil
}

// GetUserByID returns apperror.ErrNotFound if no user has that ID.
func (db *DB) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	return db.getUser(ctx, "id = ?", "id", id)
}

func (db *DB) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	return db.getUser(ctx, "email = ?", "email", strings.ToLower(strings.TrimSpace(email)))
}

func (db *DB) GetUserByGoogleID(ctx context.Context, googleID string) (*model.User, error) {
	return db.getUser(ctx, "google_id = ?", "google id", googleID)
}

func (db *DB) NameTaken(ctx context.Context, name, exceptID string) (bool, error) {
	var n int
	err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM users WHERE name = ? COLLATE NOCASE AND id != ?`,
		strings.TrimSpace(name), exceptID,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("sqlite: checking name %q: %w", name, err)
	}
	return n > 0, nil
}

func (db *DB) updateUser(ctx context.Context, id, set string, args ...any) error {
	args = append(args, time.Now().UTC(), id)
	res, err := db.conn.ExecContext(ctx,
		`UPDATE users SET `+set+`, updated_at = ? WHERE id = ?`, args...)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("user", "already in use by another account")
		}
		return fmt.Errorf("sqlite: updating user %s: %w", id, err)
	}
	return checkAffected(res, apperror.NotFound("user", id))
}

func (db *DB) UpdateUserName(ctx context.Context, id, name string) error {
	return db.updateUser(ctx, id, "name = ?", name)
}

func (db *DB) UpdatePasswordHash(ctx context.Context, id, hash string) error {
	return db.updateUser(ctx, id, "password_hash = ?", hash)
}

func (db *DB) SetEmailVerified(ctx context.Context, id string) error {
	return db.updateUser(ctx, id, "email_verified = 1")
}

// LinkGoogle attaches a Google identity. The partial unique index on
// google_id rejects an identity already linked to someone else.
func (db *DB) LinkGoogle(ctx context.Context, id, googleID, googleEmail string) error {
	return db.updateUser(ctx, id, "google_id = ?, google_email = ?", googleID, strings.ToLower(googleEmail))
}
