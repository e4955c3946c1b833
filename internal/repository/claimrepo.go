package repository

import (
	"context"

	"github.com/and161185/findit/internal/model"
)

// ClaimRepository persists claims and applies workflow transitions atomically.
type ClaimRepository interface {
	// Create inserts a claim in its initial status together with its opening messages
	// and ensures the (item, claimer) conversation exists. A second open claim for the
	// same (item, claimer) yields errs.ErrConflict.
	Create(ctx context.Context, c *model.Claim, msgs []model.Message) error

	// GetByID loads a claim.
	GetByID(ctx context.Context, id int64) (*model.Claim, error)

	// HasOpen reports whether claimer already holds a non-rejected claim on item.
	HasOpen(ctx context.Context, itemID, claimerID int64) (bool, error)

	// OpenForItem returns claimer's non-terminal claim on item.
	OpenForItem(ctx context.Context, itemID, claimerID int64) (*model.Claim, error)

	// Transition applies t as a single conditional update plus its side effects.
	// errs.ErrConflict means the claim was no longer in any of t.From.
	Transition(ctx context.Context, t model.ClaimTransition) error

	// ListForUser returns claims where the user is finder or claimer, most recently updated first.
	// Last-message previews never include handover codes for a non-finder.
	ListForUser(ctx context.Context, userID int64) ([]model.ClaimSummary, error)

	// ListByClaimer returns only the claims the user started.
	ListByClaimer(ctx context.Context, userID int64) ([]model.ClaimSummary, error)
}

// MessageRepository appends and reads message logs.
type MessageRepository interface {
	// Append inserts a message and fills ID and CreatedAt.
	Append(ctx context.Context, m *model.Message) error

	// Thread returns a claim's messages in chronological order.
	Thread(ctx context.Context, claimID int64) ([]model.Message, error)

	// ConversationMessages returns a conversation's messages in chronological order.
	ConversationMessages(ctx context.Context, conversationID int64) ([]model.Message, error)

	// MarkRead flags messages addressed to receiverID in the conversation as read.
	MarkRead(ctx context.Context, conversationID, receiverID int64) error
}

// ConversationRepository manages per-(item, claimer) chat threads.
type ConversationRepository interface {
	// GetOrCreate returns the conversation for (item, claimer), creating it when absent.
	GetOrCreate(ctx context.Context, itemID, finderID, claimerID int64) (*model.Conversation, bool, error)

	// GetByID returns a conversation with its item and both parties.
	GetByID(ctx context.Context, id int64) (*model.ConversationDetail, error)

	// ListForUser returns the user's conversations, latest activity first.
	ListForUser(ctx context.Context, userID int64) ([]model.ConversationSummary, error)
}
