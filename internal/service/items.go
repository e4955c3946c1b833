package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	pkgcrypto "github.com/and161185/findit/internal/crypto"
	"github.com/and161185/findit/internal/errs"
	"github.com/and161185/findit/internal/imaging"
	"github.com/and161185/findit/internal/model"
	"github.com/and161185/findit/internal/notify"
	"github.com/and161185/findit/internal/repository"
	"github.com/and161185/findit/internal/storage"
)

// NewItem is the input of ItemService.Create.
type NewItem struct {
	Title             string
	Description       string
	Category          string
	Location          string
	Keywords          string
	DateFound         string // YYYY-MM-DD, optional
	ContactPreference string
	Status            model.ItemStatus // Lost or Found; empty means Found
	Photo             io.Reader        // optional
}

// ItemService defines operations over lost/found reports.
type ItemService interface {
	// Create stores a report, with an optional normalized photo.
	Create(ctx context.Context, caller model.Principal, in NewItem) (*model.Item, error)
	// List searches public listings.
	List(ctx context.Context, f model.ItemFilter) ([]model.Item, error)
	// Get returns one item; the PIN is only included for its owner.
	Get(ctx context.Context, viewerID, id int64) (*model.Item, error)
	// Delete removes an item. Owner or admin only.
	Delete(ctx context.Context, caller model.Principal, id int64) error
	// GeneratePIN issues a fresh verification PIN. Owner only.
	GeneratePIN(ctx context.Context, callerID, id int64) (string, error)
	// VerifyPIN completes the caller's open claim on the item when pin matches.
	VerifyPIN(ctx context.Context, callerID, id int64, pin string) error
}

type ItemServiceImpl struct {
	items    repository.ItemRepository
	claims   repository.ClaimRepository
	photos   storage.Store
	notifier Notifier
}

// NewItemService constructs ItemService.
func NewItemService(items repository.ItemRepository, claims repository.ClaimRepository, photos storage.Store,
	notifier Notifier) *ItemServiceImpl {
	return &ItemServiceImpl{items: items, claims: claims, photos: photos, notifier: notifier}
}

// Create validates fields, stores the photo if any and queues a confirmation email.
func (s *ItemServiceImpl) Create(ctx context.Context, caller model.Principal, in NewItem) (*model.Item, error) {
	it := &model.Item{
		UserID:            caller.ID,
		Title:             strings.TrimSpace(in.Title),
		Description:       strings.TrimSpace(in.Description),
		Category:          strings.TrimSpace(in.Category),
		Location:          strings.TrimSpace(in.Location),
		Keywords:          strings.TrimSpace(in.Keywords),
		DateFound:         strings.TrimSpace(in.DateFound),
		ContactPreference: strings.TrimSpace(in.ContactPreference),
		Status:            in.Status,
	}
	if it.Title == "" {
		return nil, fmt.Errorf("%w: title is required", errs.ErrInvalidInput)
	}
	switch it.Status {
	case "":
		it.Status = model.ItemFound
	case model.ItemLost, model.ItemFound:
	default:
		return nil, fmt.Errorf("%w: status must be Lost or Found", errs.ErrInvalidInput)
	}
	if it.DateFound != "" {
		if _, err := time.Parse(time.DateOnly, it.DateFound); err != nil {
			return nil, fmt.Errorf("%w: date_found must be YYYY-MM-DD", errs.ErrInvalidInput)
		}
	}
	if in.Photo != nil {
		data, err := imaging.NormalizeJPEG(in.Photo)
		if err != nil {
			return nil, err
		}
		if it.ImageURL, err = s.photos.Save(ctx, data); err != nil {
			return nil, err
		}
	}

	if err := s.items.Create(ctx, it); err != nil {
		if it.ImageURL != "" {
			if derr := s.photos.Delete(ctx, it.ImageURL); derr != nil {
				return nil, errors.Join(err, derr)
			}
		}
		return nil, err
	}
	it.ReporterName = caller.FullName
	s.notifier.Enqueue(notify.Email{
		Kind:   notify.KindItemReported,
		To:     caller.Email,
		Name:   caller.FullName,
		Fields: map[string]string{"title": it.Title, "item_id": strconv.FormatInt(it.ID, 10)},
	})
	return it, nil
}

// List returns matching items with PINs stripped.
func (s *ItemServiceImpl) List(ctx context.Context, f model.ItemFilter) ([]model.Item, error) {
	switch f.Status {
	case "", model.ItemLost, model.ItemFound, model.ItemRecovered:
	default:
		return nil, fmt.Errorf("%w: unknown status %q", errs.ErrInvalidInput, f.Status)
	}
	out, err := s.items.List(ctx, f)
	if err != nil {
		return nil, err
	}
	for i := range out {
		out[i].VerificationPIN = ""
	}
	return out, nil
}

func (s *ItemServiceImpl) Get(ctx context.Context, viewerID, id int64) (*model.Item, error) {
	it, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if it.UserID != viewerID {
		it.VerificationPIN = ""
	}
	return it, nil
}

func (s *ItemServiceImpl) Delete(ctx context.Context, caller model.Principal, id int64) error {
	it, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if it.UserID != caller.ID && !caller.IsAdmin() {
		return fmt.Errorf("%w: only the owner or an admin can delete this item", errs.ErrForbidden)
	}
	return s.items.Delete(ctx, id)
}

// GeneratePIN replaces any previous PIN.
func (s *ItemServiceImpl) GeneratePIN(ctx context.Context, callerID, id int64) (string, error) {
	it, err := s.load(ctx, id)
	if err != nil {
		return "", err
	}
	if it.UserID != callerID {
		return "", fmt.Errorf("%w: only the owner can generate a PIN", errs.ErrForbidden)
	}
	if it.Status == model.ItemRecovered {
		return "", fmt.Errorf("%w: item is already recovered", errs.ErrConflict)
	}
	pin, err := pkgcrypto.PIN()
	if err != nil {
		return "", err
	}
	if err := s.items.SetPIN(ctx, id, pin); err != nil {
		return "", err
	}
	return pin, nil
}

// VerifyPIN returns the caller's open claim and recovers the item in one transaction.
// The PIN is consumed: the item update also requires it to still be the stored one.
func (s *ItemServiceImpl) VerifyPIN(ctx context.Context, callerID, id int64, pin string) error {
	pin = strings.TrimSpace(pin)
	if !pkgcrypto.IsFourDigits(pin) {
		return fmt.Errorf("%w: PIN must be 4 digits", errs.ErrInvalidInput)
	}
	it, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if it.UserID == callerID {
		return fmt.Errorf("%w: the owner cannot verify their own item", errs.ErrForbidden)
	}
	if it.Status == model.ItemRecovered {
		return fmt.Errorf("%w: item is already recovered", errs.ErrConflict)
	}
	if it.VerificationPIN == "" {
		return fmt.Errorf("%w: no PIN has been issued for this item", errs.ErrConflict)
	}
	c, err := s.claims.OpenForItem(ctx, id, callerID)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return fmt.Errorf("%w: start a claim on this item first", errs.ErrConflict)
		}
		return err
	}
	if !pkgcrypto.CodesEqual(pin, it.VerificationPIN) {
		return fmt.Errorf("%w: PIN does not match", errs.ErrInvalidCode)
	}

	return s.claims.Transition(ctx, model.ClaimTransition{
		ClaimID:     c.ID,
		From:        model.OpenClaimStatuses,
		To:          model.ClaimReturned,
		RecoverItem: true,
		ConsumePIN:  pin,
		Message: &model.Message{
			ClaimID:    c.ID,
			ItemID:     id,
			SenderID:   callerID,
			ReceiverID: c.FinderID,
			Type:       model.MessageHandoverConfirm,
			Content:    msgHandoverConfirmed,
		},
	})
}

func (s *ItemServiceImpl) load(ctx context.Context, id int64) (*model.Item, error) {
	it, err := s.items.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return nil, fmt.Errorf("%w: item %d", errs.ErrNotFound, id)
		}
		return nil, err
	}
	return it, nil
}
