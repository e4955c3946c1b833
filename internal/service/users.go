package service

import (
	"context"

	"github.com/and161185/findit/internal/model"
	"github.com/and161185/findit/internal/repository"
)

// UserService exposes the caller's own profile and activity.
type UserService interface {
	Me(ctx context.Context, callerID int64) (*model.User, error)
	Stats(ctx context.Context, callerID int64) (model.UserStats, error)
	MyItems(ctx context.Context, callerID int64) ([]model.Item, error)
	MyClaims(ctx context.Context, callerID int64) ([]model.ClaimSummary, error)
	// DeleteAccount removes the caller and, by cascade, everything they own.
	DeleteAccount(ctx context.Context, callerID int64) error
}

type UserServiceImpl struct {
	users  repository.UserRepository
	items  repository.ItemRepository
	claims repository.ClaimRepository
}

func NewUserService(users repository.UserRepository, items repository.ItemRepository,
	claims repository.ClaimRepository) *UserServiceImpl {
	return &UserServiceImpl{users: users, items: items, claims: claims}
}

func (s *UserServiceImpl) Me(ctx context.Context, callerID int64) (*model.User, error) {
	return s.users.GetByID(ctx, callerID)
}

func (s *UserServiceImpl) Stats(ctx context.Context, callerID int64) (model.UserStats, error) {
	return s.users.Stats(ctx, callerID)
}

// MyItems includes the owner's own PINs.
func (s *UserServiceImpl) MyItems(ctx context.Context, callerID int64) ([]model.Item, error) {
	return s.items.ListByOwner(ctx, callerID)
}

func (s *UserServiceImpl) MyClaims(ctx context.Context, callerID int64) ([]model.ClaimSummary, error) {
	return s.claims.ListByClaimer(ctx, callerID)
}

func (s *UserServiceImpl) DeleteAccount(ctx context.Context, callerID int64) error {
	return s.users.Delete(ctx, callerID)
}
