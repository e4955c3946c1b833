package postgres

import (
	"context"
	"time"

	"github.com/and161185/findit/internal/errs"
	"github.com/and161185/findit/internal/model"
	"github.com/jackc/pgx/v5"
)

// UserRepo implements UserRepository using PostgreSQL.
type UserRepo struct{ db *DB }

// NewUserRepo constructs a user repository.
func NewUserRepo(db *DB) *UserRepo { return &UserRepo{db: db} }

const userColumns = `id, email, COALESCE(password_hash, ''), full_name, avatar_url, role, auth_provider,
COALESCE(reset_code, ''), COALESCE(reset_code_expires, 'epoch'), created_at`

func scanUser(row pgx.Row) (*model.User, error) {
	var u model.User
	var expires time.Time
	if err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.FullName, &u.AvatarURL, &u.Role, &u.AuthProvider,
		&u.ResetCode, &expires, &u.CreatedAt); err != nil {
		return nil, notFound(err)
	}
	if expires.After(time.Unix(0, 0)) {
		u.ResetCodeExpires = expires
	}
	return &u, nil
}

// Create inserts a new user row.
func (r *UserRepo) Create(ctx context.Context, u *model.User) error {
	const q = `
INSERT INTO users (email, password_hash, full_name, avatar_url, role, auth_provider)
VALUES ($1, NULLIF($2, ''), $3, $4, $5, $6)
RETURNING id, created_at`
	err := r.db.Pool.QueryRow(ctx, q, u.Email, u.PasswordHash, u.FullName, u.AvatarURL,
		string(u.Role), string(u.AuthProvider)).Scan(&u.ID, &u.CreatedAt)
	if isUniqueViolation(err) {
		return errs.ErrAlreadyExists
	}
	return classify(err)
}

// GetByID selects a user by ID.
func (r *UserRepo) GetByID(ctx context.Context, id int64) (*model.User, error) {
	q := `SELECT ` + userColumns + ` FROM users WHERE id=$1`
	return scanUser(r.db.Pool.QueryRow(ctx, q, id))
}

// GetByEmail selects a user by email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	q := `SELECT ` + userColumns + ` FROM users WHERE email=$1`
	return scanUser(r.db.Pool.QueryRow(ctx, q, email))
}

// UpsertGoogle inserts a Google account or refreshes name and avatar of an existing email.
// The provider of an existing password account is kept.
func (r *UserRepo) UpsertGoogle(ctx context.Context, u *model.User) (*model.User, error) {
	q := `
INSERT INTO users (email, full_name, avatar_url, role, auth_provider)
VALUES ($1, $2, $3, 'student', 'google')
ON CONFLICT (email) DO UPDATE
SET full_name = EXCLUDED.full_name,
    avatar_url = CASE WHEN EXCLUDED.avatar_url <> '' THEN EXCLUDED.avatar_url ELSE users.avatar_url END
RETURNING ` + userColumns
	return scanUser(r.db.Pool.QueryRow(ctx, q, u.Email, u.FullName, u.AvatarURL))
}

// SetResetCode stores a pending reset code.
func (r *UserRepo) SetResetCode(ctx context.Context, id int64, code string, expires time.Time) error {
	const q = `UPDATE users SET reset_code=$2, reset_code_expires=$3 WHERE id=$1`
	tag, err := r.db.Pool.Exec(ctx, q, id, code, expires)
	if err != nil {
		return classify(err)
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

// ResetPassword swaps the password hash only while the code is pending and unexpired.
func (r *UserRepo) ResetPassword(ctx context.Context, email, code, passwordHash string) error {
	const q = `
UPDATE users
SET password_hash = $3, reset_code = NULL, reset_code_expires = NULL
WHERE email = $1 AND reset_code = $2 AND reset_code_expires > now()`
	tag, err := r.db.Pool.Exec(ctx, q, email, code, passwordHash)
	if err != nil {
		return classify(err)
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrInvalidCode
	}
	return nil
}

// Delete removes a user; foreign keys cascade to items, claims and messages.
func (r *UserRepo) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM users WHERE id=$1`, id)
	if err != nil {
		return classify(err)
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

// Stats counts reported items, started claims and recovered own items.
func (r *UserRepo) Stats(ctx context.Context, id int64) (model.UserStats, error) {
	const q = `
SELECT
  (SELECT COUNT(*) FROM items WHERE user_id = $1),
  (SELECT COUNT(*) FROM claims WHERE claimer_id = $1),
  (SELECT COUNT(*) FROM items WHERE user_id = $1 AND status = 'Recovered')`
	var s model.UserStats
	var reported, claims, reunited int64
	if err := r.db.Pool.QueryRow(ctx, q, id).Scan(&reported, &claims, &reunited); err != nil {
		return s, classify(err)
	}
	s.Reported, s.Claims, s.Reunited = int(reported), int(claims), int(reunited)
	return s, nil
}
