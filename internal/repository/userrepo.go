// Package repository defines storage interfaces implemented by concrete backends.
package repository

import (
	"context"
	"time"

	"github.com/and161185/findit/internal/model"
)

// UserRepository provides access to user accounts.
type UserRepository interface {
	// Create inserts a new user and fills ID and CreatedAt.
	Create(ctx context.Context, u *model.User) error
	// GetByID loads a user by ID.
	GetByID(ctx context.Context, id int64) (*model.User, error)
	// GetByEmail loads a user by email.
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	// UpsertGoogle creates a Google-provider user or refreshes the profile of an existing one.
	UpsertGoogle(ctx context.Context, u *model.User) (*model.User, error)
	// SetResetCode stores a pending password reset code.
	SetResetCode(ctx context.Context, id int64, code string, expires time.Time) error
	// ResetPassword replaces the password hash if code is pending and unexpired, and clears it.
	ResetPassword(ctx context.Context, email, code, passwordHash string) error
	// Delete removes the user and everything owned by it.
	Delete(ctx context.Context, id int64) error
	// Stats counts the user's reports, claims and recovered items.
	Stats(ctx context.Context, id int64) (model.UserStats, error)
}
