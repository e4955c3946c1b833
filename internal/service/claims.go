package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	pkgcrypto "github.com/and161185/findit/internal/crypto"
	"github.com/and161185/findit/internal/errs"
	"github.com/and161185/findit/internal/model"
	"github.com/and161185/findit/internal/notify"
	"github.com/and161185/findit/internal/repository"
)

// System message texts appended by workflow transitions.
const (
	msgClaimStarted      = "[System] Claim started. Finder and claimer are now connected."
	msgClaimRejected     = "[System] This claim has been rejected by the finder."
	msgIdentityRequested = "[System] The finder has requested identity verification. Please fill in the form below."
	msgHandoverInit      = "[System] Hand-over initiated. Code: "
	msgHandoverConfirmed = "[System] Verification successful. The item has been returned."
)

// ClaimService drives the claim and handover workflow.
type ClaimService interface {
	// Start opens a claim on an item owned by someone else.
	Start(ctx context.Context, caller model.Principal, itemID int64, proof string) (*model.Claim, error)
	// Reject closes the claim. Finder only.
	Reject(ctx context.Context, callerID, claimID int64) error
	// RequestIdentity asks the claimer for identity answers. Finder only.
	RequestIdentity(ctx context.Context, callerID, claimID int64) error
	// SubmitIdentity stores the claimer's answers. Claimer only.
	SubmitIdentity(ctx context.Context, callerID, claimID int64, a model.IdentityAnswers) error
	// InitiateHandover issues a fresh handover code visible to the finder only.
	InitiateHandover(ctx context.Context, callerID, claimID int64) (string, error)
	// ConfirmHandover completes the claim when code matches. Claimer only.
	ConfirmHandover(ctx context.Context, callerID, claimID int64, code string) error
	// List returns claims where the caller is finder or claimer.
	List(ctx context.Context, callerID int64) ([]model.ClaimSummary, error)
	// Thread returns the claim's messages as the caller may see them.
	Thread(ctx context.Context, callerID, claimID int64) ([]model.Message, error)
	// Send posts a text message on an open claim.
	Send(ctx context.Context, callerID, claimID int64, content string) (*model.Message, error)
}

type ClaimServiceImpl struct {
	claims   repository.ClaimRepository
	messages repository.MessageRepository
	items    repository.ItemRepository
	users    repository.UserRepository
	notifier Notifier
	newCode  func() (string, error)
}

// NewClaimService constructs ClaimService.
func NewClaimService(claims repository.ClaimRepository, messages repository.MessageRepository,
	items repository.ItemRepository, users repository.UserRepository, notifier Notifier) *ClaimServiceImpl {
	return &ClaimServiceImpl{
		claims: claims, messages: messages, items: items, users: users, notifier: notifier,
		newCode: pkgcrypto.HandoverCode,
	}
}

// Start rejects self-claims, recovered items and duplicates, then opens the claim with
// its opening messages and tells the finder by email.
func (s *ClaimServiceImpl) Start(ctx context.Context, caller model.Principal, itemID int64, proof string) (*model.Claim, error) {
	it, err := s.items.GetByID(ctx, itemID)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return nil, fmt.Errorf("%w: item %d", errs.ErrNotFound, itemID)
		}
		return nil, err
	}
	if it.UserID == caller.ID {
		return nil, fmt.Errorf("%w: you cannot claim your own item", errs.ErrForbidden)
	}
	if it.Status == model.ItemRecovered {
		return nil, fmt.Errorf("%w: item is already recovered", errs.ErrConflict)
	}
	open, err := s.claims.HasOpen(ctx, itemID, caller.ID)
	if err != nil {
		return nil, err
	}
	if open {
		return nil, fmt.Errorf("%w: you already have an active claim on this item", errs.ErrConflict)
	}

	c := &model.Claim{
		ItemID:           itemID,
		ClaimerID:        caller.ID,
		FinderID:         it.UserID,
		ProofDescription: strings.TrimSpace(proof),
		Status:           model.ClaimActive,
	}
	msgs := []model.Message{{
		SenderID:   caller.ID,
		ReceiverID: it.UserID,
		Type:       model.MessageSystem,
		Content:    msgClaimStarted,
	}}
	if sys, err := s.users.GetByEmail(ctx, model.SystemEmail); err == nil {
		msgs = append(msgs, model.Message{
			SenderID:   sys.ID,
			ReceiverID: caller.ID,
			Type:       model.MessageSystem,
			Content:    greeting(caller.FullName),
		})
	} else if !errors.Is(err, errs.ErrNotFound) {
		return nil, err
	}
	if err := s.claims.Create(ctx, c, msgs); err != nil {
		return nil, err
	}

	if finder, err := s.users.GetByID(ctx, it.UserID); err == nil {
		s.notifier.Enqueue(notify.Email{
			Kind: notify.KindClaimStarted,
			To:   finder.Email,
			Name: finder.FullName,
			Fields: map[string]string{
				"title":   it.Title,
				"claimer": caller.FullName,
				"item_id": strconv.FormatInt(it.ID, 10),
			},
		})
	}
	return c, nil
}

func greeting(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		name = "there"
	}
	return "Hi " + name + "! Before you text the finder, please click the Verify button at the top of this page " +
		"to answer the security questions about this item. This helps the finder confirm you are the rightful owner!"
}

// authorize loads the claim and checks that callerID plays the rule's actor role and
// that the claim is in one of the rule's source states.
func (s *ClaimServiceImpl) authorize(ctx context.Context, callerID, claimID int64, action model.ClaimAction) (*model.Claim, model.TransitionRule, error) {
	rule := model.ClaimRules[action]
	c, err := s.claims.GetByID(ctx, claimID)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return nil, rule, fmt.Errorf("%w: claim %d", errs.ErrNotFound, claimID)
		}
		return nil, rule, err
	}
	if party, ok := c.PartyOf(callerID); !ok || party != rule.Actor {
		return nil, rule, fmt.Errorf("%w: only the %s can %s", errs.ErrForbidden, rule.Actor, action)
	}
	if !rule.Allows(c.Status) {
		return nil, rule, fmt.Errorf("%w: cannot %s a claim in status %s", errs.ErrConflict, action, c.Status)
	}
	return c, rule, nil
}

func (s *ClaimServiceImpl) message(c *model.Claim, senderID int64, t model.MessageType, content string) *model.Message {
	return &model.Message{
		ClaimID:    c.ID,
		ItemID:     c.ItemID,
		SenderID:   senderID,
		ReceiverID: c.Counterpart(senderID),
		Type:       t,
		Content:    content,
	}
}

// Reject moves any open claim to rejected.
func (s *ClaimServiceImpl) Reject(ctx context.Context, callerID, claimID int64) error {
	c, rule, err := s.authorize(ctx, callerID, claimID, model.ActionReject)
	if err != nil {
		return err
	}
	return s.claims.Transition(ctx, model.ClaimTransition{
		ClaimID: c.ID,
		From:    rule.From,
		To:      rule.To,
		Message: s.message(c, callerID, model.MessageSystem, msgClaimRejected),
	})
}

// RequestIdentity posts the identity form to the claimer.
func (s *ClaimServiceImpl) RequestIdentity(ctx context.Context, callerID, claimID int64) error {
	c, rule, err := s.authorize(ctx, callerID, claimID, model.ActionRequestIdentity)
	if err != nil {
		return err
	}
	return s.claims.Transition(ctx, model.ClaimTransition{
		ClaimID: c.ID,
		From:    rule.From,
		To:      rule.To,
		Message: s.message(c, callerID, model.MessageIdentityForm, msgIdentityRequested),
	})
}

// SubmitIdentity upserts the answers and posts them to the finder as JSON.
func (s *ClaimServiceImpl) SubmitIdentity(ctx context.Context, callerID, claimID int64, a model.IdentityAnswers) error {
	a.FullName = strings.TrimSpace(a.FullName)
	if a.FullName == "" {
		return fmt.Errorf("%w: full name is required", errs.ErrInvalidInput)
	}
	c, rule, err := s.authorize(ctx, callerID, claimID, model.ActionSubmitIdentity)
	if err != nil {
		return err
	}
	body, err := json.Marshal(a)
	if err != nil {
		return err
	}
	return s.claims.Transition(ctx, model.ClaimTransition{
		ClaimID:  c.ID,
		From:     rule.From,
		To:       rule.To,
		Identity: &model.IdentityVerification{ClaimID: c.ID, IdentityAnswers: a},
		Message:  s.message(c, callerID, model.MessageIdentityResponse, string(body)),
	})
}

// InitiateHandover stores a new code. Two racing calls cannot both win: the second
// finds the status already moved and gets errs.ErrConflict.
func (s *ClaimServiceImpl) InitiateHandover(ctx context.Context, callerID, claimID int64) (string, error) {
	c, rule, err := s.authorize(ctx, callerID, claimID, model.ActionInitiateHandover)
	if err != nil {
		return "", err
	}
	code, err := s.newCode()
	if err != nil {
		return "", err
	}
	err = s.claims.Transition(ctx, model.ClaimTransition{
		ClaimID: c.ID,
		From:    rule.From,
		To:      rule.To,
		NewCode: code,
		Message: s.message(c, callerID, model.MessageHandoverInit, msgHandoverInit+code),
	})
	if err != nil {
		return "", err
	}
	return code, nil
}

// ConfirmHandover returns the claim and recovers the item. A wrong code
// changes nothing and is not counted against the claimer.
func (s *ClaimServiceImpl) ConfirmHandover(ctx context.Context, callerID, claimID int64, code string) error {
	code = strings.TrimSpace(code)
	if code == "" {
		return fmt.Errorf("%w: code is required", errs.ErrInvalidInput)
	}
	c, rule, err := s.authorize(ctx, callerID, claimID, model.ActionConfirmHandover)
	if err != nil {
		return err
	}
	if c.HandoverCode == "" || !pkgcrypto.CodesEqual(code, c.HandoverCode) {
		return fmt.Errorf("%w: handover code does not match", errs.ErrInvalidCode)
	}
	err = s.claims.Transition(ctx, model.ClaimTransition{
		ClaimID:     c.ID,
		From:        rule.From,
		To:          rule.To,
		ExpectCode:  code,
		RecoverItem: true,
		Message:     s.message(c, callerID, model.MessageHandoverConfirm, msgHandoverConfirmed),
	})
	if errors.Is(err, errs.ErrConflict) {
		// Status or code moved between the read and the update.
		return fmt.Errorf("%w: claim changed, reload and retry", errs.ErrConflict)
	}
	return err
}

// List returns the caller's claims.
func (s *ClaimServiceImpl) List(ctx context.Context, callerID int64) ([]model.ClaimSummary, error) {
	return s.claims.ListForUser(ctx, callerID)
}

// Thread returns the claim's messages in order, dropping handover codes for non-finders.
func (s *ClaimServiceImpl) Thread(ctx context.Context, callerID, claimID int64) ([]model.Message, error) {
	c, err := s.party(ctx, callerID, claimID)
	if err != nil {
		return nil, err
	}
	msgs, err := s.messages.Thread(ctx, claimID)
	if err != nil {
		return nil, err
	}
	out := msgs[:0]
	for _, m := range msgs {
		if m.VisibleTo(c.FinderID, callerID) {
			out = append(out, m)
		}
	}
	return out, nil
}

// Send appends a text message addressed to the other party.
func (s *ClaimServiceImpl) Send(ctx context.Context, callerID, claimID int64, content string) (*model.Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, fmt.Errorf("%w: message is empty", errs.ErrInvalidInput)
	}
	c, err := s.party(ctx, callerID, claimID)
	if err != nil {
		return nil, err
	}
	if c.Status.Terminal() {
		return nil, fmt.Errorf("%w: claim is %s", errs.ErrConflict, c.Status)
	}
	m := s.message(c, callerID, model.MessageText, content)
	if err := s.messages.Append(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

func (s *ClaimServiceImpl) party(ctx context.Context, callerID, claimID int64) (*model.Claim, error) {
	c, err := s.claims.GetByID(ctx, claimID)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return nil, fmt.Errorf("%w: claim %d", errs.ErrNotFound, claimID)
		}
		return nil, err
	}
	if _, ok := c.PartyOf(callerID); !ok {
		return nil, fmt.Errorf("%w: not a party to this claim", errs.ErrForbidden)
	}
	return c, nil
}
