package repository

import (
	"context"

	"github.com/and161185/findit/internal/model"
)

// ItemRepository provides access to lost/found reports.
type ItemRepository interface {
	// Create inserts an item and fills ID, Status default and CreatedAt.
	Create(ctx context.Context, it *model.Item) error

	// GetByID returns an item joined with its reporter's name.
	GetByID(ctx context.Context, id int64) (*model.Item, error)

	// List returns items matching the filter, newest first.
	List(ctx context.Context, f model.ItemFilter) ([]model.Item, error)

	// ListByOwner returns the user's own reports, newest first.
	ListByOwner(ctx context.Context, userID int64) ([]model.Item, error)

	// SetPIN stores a verification PIN on an item that is not yet recovered.
	SetPIN(ctx context.Context, id int64, pin string) error

	// Delete removes one item with cascading claims and messages.
	Delete(ctx context.Context, id int64) error

	// DeleteAll removes every item and returns the count.
	DeleteAll(ctx context.Context) (int64, error)

	// Locations returns the location of every item.
	Locations(ctx context.Context) ([]model.ItemLocation, error)

	// SetLocations updates locations in one transaction.
	SetLocations(ctx context.Context, updates []model.ItemLocation) error
}
