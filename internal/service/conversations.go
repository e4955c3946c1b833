package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/and161185/findit/internal/errs"
	"github.com/and161185/findit/internal/model"
	"github.com/and161185/findit/internal/repository"
	"go.uber.org/zap"
)

// ConversationService manages per-(item, claimer) chat threads.
type ConversationService interface {
	// Initiate opens or returns the caller's conversation about an item.
	Initiate(ctx context.Context, callerID, itemID int64) (*model.Conversation, bool, error)
	// List returns the caller's conversations.
	List(ctx context.Context, callerID int64) ([]model.ConversationSummary, error)
	// Get returns a conversation the caller takes part in.
	Get(ctx context.Context, callerID, id int64) (*model.ConversationDetail, error)
	// Messages returns visible messages and marks those addressed to the caller read.
	Messages(ctx context.Context, callerID, id int64) ([]model.Message, error)
	// Send posts a text message to the other participant.
	Send(ctx context.Context, callerID, id int64, content string) (*model.Message, error)
}

type ConversationServiceImpl struct {
	convs    repository.ConversationRepository
	messages repository.MessageRepository
	items    repository.ItemRepository
	log      *zap.Logger
}

// NewConversationService constructs ConversationService. A nil logger discards output.
func NewConversationService(convs repository.ConversationRepository, messages repository.MessageRepository,
	items repository.ItemRepository, log *zap.Logger) *ConversationServiceImpl {
	if log == nil {
		log = zap.NewNop()
	}
	return &ConversationServiceImpl{convs: convs, messages: messages, items: items, log: log}
}

// Initiate reports created=false when the conversation already existed.
func (s *ConversationServiceImpl) Initiate(ctx context.Context, callerID, itemID int64) (*model.Conversation, bool, error) {
	it, err := s.items.GetByID(ctx, itemID)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return nil, false, fmt.Errorf("%w: item %d", errs.ErrNotFound, itemID)
		}
		return nil, false, err
	}
	if it.UserID == callerID {
		return nil, false, fmt.Errorf("%w: you cannot message yourself about your own item", errs.ErrForbidden)
	}
	return s.convs.GetOrCreate(ctx, itemID, it.UserID, callerID)
}

func (s *ConversationServiceImpl) List(ctx context.Context, callerID int64) ([]model.ConversationSummary, error) {
	return s.convs.ListForUser(ctx, callerID)
}

func (s *ConversationServiceImpl) Get(ctx context.Context, callerID, id int64) (*model.ConversationDetail, error) {
	d, err := s.convs.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return nil, fmt.Errorf("%w: conversation %d", errs.ErrNotFound, id)
		}
		return nil, err
	}
	if callerID != d.FinderID && callerID != d.ClaimerID {
		return nil, fmt.Errorf("%w: not a participant", errs.ErrForbidden)
	}
	return d, nil
}

// Messages filters handover codes for the claimer. A failed read-flag update
// does not hide the messages.
func (s *ConversationServiceImpl) Messages(ctx context.Context, callerID, id int64) ([]model.Message, error) {
	d, err := s.Get(ctx, callerID, id)
	if err != nil {
		return nil, err
	}
	msgs, err := s.messages.ConversationMessages(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.messages.MarkRead(ctx, id, callerID); err != nil {
		s.log.Warn("mark conversation read failed",
			zap.Int64("conversation_id", id),
			zap.Int64("user_id", callerID),
			zap.Error(err),
		)
	}

	out := msgs[:0]
	for _, m := range msgs {
		if m.VisibleTo(d.FinderID, callerID) {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *ConversationServiceImpl) Send(ctx context.Context, callerID, id int64, content string) (*model.Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, fmt.Errorf("%w: message is empty", errs.ErrInvalidInput)
	}
	d, err := s.Get(ctx, callerID, id)
	if err != nil {
		return nil, err
	}
	m := &model.Message{
		ConversationID: d.ID,
		ItemID:         d.ItemID,
		SenderID:       callerID,
		ReceiverID:     d.Other(callerID).ID,
		Type:           model.MessageText,
		Content:        content,
	}
	if err := s.messages.Append(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}
