package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/and161185/findit/internal/errs"
	"github.com/and161185/findit/internal/model"
	"github.com/jackc/pgx/v5"
)

// ClaimRepo implements ClaimRepository using PostgreSQL.
type ClaimRepo struct{ db *DB }

// NewClaimRepo constructs a claim repository.
func NewClaimRepo(db *DB) *ClaimRepo { return &ClaimRepo{db: db} }

const claimColumns = `id, item_id, claimer_id, finder_id, proof_description, proof_image_url, status,
COALESCE(handover_code, ''), created_at, updated_at`

func scanClaim(row pgx.Row) (*model.Claim, error) {
	var c model.Claim
	if err := row.Scan(&c.ID, &c.ItemID, &c.ClaimerID, &c.FinderID, &c.ProofDescription, &c.ProofImageURL,
		&c.Status, &c.HandoverCode, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, notFound(err)
	}
	return &c, nil
}

func statusArgs(ss []model.ClaimStatus) []string {
	out := make([]string, len(ss))
	for i, s := range ss {
		out[i] = string(s)
	}
	return out
}

// Create inserts the claim, its opening messages and the (item, claimer) conversation in one transaction.
// The partial unique index on open (item_id, claimer_id) turns a concurrent duplicate into errs.ErrConflict.
func (r *ClaimRepo) Create(ctx context.Context, c *model.Claim, msgs []model.Message) error {
	return r.db.inTx(ctx, func(tx pgx.Tx) error {
		const ins = `
INSERT INTO claims (item_id, claimer_id, finder_id, proof_description, proof_image_url, status)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING id, created_at, updated_at`
		err := tx.QueryRow(ctx, ins, c.ItemID, c.ClaimerID, c.FinderID, c.ProofDescription, c.ProofImageURL,
			string(c.Status)).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: an open claim for this item already exists", errs.ErrConflict)
		}
		if err != nil {
			return err
		}

		const conv = `
INSERT INTO conversations (item_id, finder_id, claimer_id) VALUES ($1, $2, $3)
ON CONFLICT (item_id, claimer_id) DO NOTHING`
		if _, err := tx.Exec(ctx, conv, c.ItemID, c.FinderID, c.ClaimerID); err != nil {
			return err
		}

		for i := range msgs {
			msgs[i].ClaimID = c.ID
			msgs[i].ItemID = c.ItemID
			if err := insertMessage(ctx, tx, &msgs[i]); err != nil {
				return err
			}
		}
		return nil
	})
}

// GetByID loads a claim.
func (r *ClaimRepo) GetByID(ctx context.Context, id int64) (*model.Claim, error) {
	return scanClaim(r.db.Pool.QueryRow(ctx, `SELECT `+claimColumns+` FROM claims WHERE id=$1`, id))
}

// HasOpen reports whether a non-rejected claim exists for (item, claimer).
func (r *ClaimRepo) HasOpen(ctx context.Context, itemID, claimerID int64) (bool, error) {
	const q = `SELECT EXISTS (SELECT 1 FROM claims WHERE item_id=$1 AND claimer_id=$2 AND status <> 'rejected')`
	var ok bool
	if err := r.db.Pool.QueryRow(ctx, q, itemID, claimerID).Scan(&ok); err != nil {
		return false, classify(err)
	}
	return ok, nil
}

// OpenForItem returns the claimer's non-terminal claim on the item.
func (r *ClaimRepo) OpenForItem(ctx context.Context, itemID, claimerID int64) (*model.Claim, error) {
	q := `SELECT ` + claimColumns + ` FROM claims
WHERE item_id=$1 AND claimer_id=$2 AND status = ANY($3::text[])
ORDER BY id DESC LIMIT 1`
	return scanClaim(r.db.Pool.QueryRow(ctx, q, itemID, claimerID, statusArgs(model.OpenClaimStatuses)))
}

// Transition performs the status compare-and-swap and its side effects in one transaction.
// Nothing is written unless the claim is still in one of t.From (and holds t.ExpectCode when set).
func (r *ClaimRepo) Transition(ctx context.Context, t model.ClaimTransition) error {
	return r.db.inTx(ctx, func(tx pgx.Tx) error {
		const upd = `
UPDATE claims
SET status = $2, handover_code = COALESCE(NULLIF($3::text, ''), handover_code), updated_at = now()
WHERE id = $1 AND status = ANY($4::text[]) AND ($5::text = '' OR handover_code = $5::text)
RETURNING item_id`
		var itemID int64
		err := tx.QueryRow(ctx, upd, t.ClaimID, string(t.To), t.NewCode, statusArgs(t.From), t.ExpectCode).Scan(&itemID)
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("%w: claim state changed concurrently", errs.ErrConflict)
		}
		if err != nil {
			return err
		}

		if iv := t.Identity; iv != nil {
			const ups = `
INSERT INTO identity_verifications (claim_id, full_name, place_found, date_of_loss, location_of_loss, unlock_description)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (claim_id) DO UPDATE
SET full_name = EXCLUDED.full_name, place_found = EXCLUDED.place_found, date_of_loss = EXCLUDED.date_of_loss,
    location_of_loss = EXCLUDED.location_of_loss, unlock_description = EXCLUDED.unlock_description,
    submitted_at = now()`
			if _, err := tx.Exec(ctx, ups, t.ClaimID, iv.FullName, iv.PlaceFound, iv.DateOfLoss,
				iv.LocationOfLoss, iv.UnlockDescription); err != nil {
				return err
			}
		}

		if t.RecoverItem {
			const rec = `
UPDATE items SET status = 'Recovered', verification_pin = NULL
WHERE id = $1 AND status <> 'Recovered' AND ($2::text = '' OR verification_pin = $2::text)`
			tag, err := tx.Exec(ctx, rec, itemID, t.ConsumePIN)
			if err != nil {
				return err
			}
			if tag.RowsAffected() == 0 {
				return fmt.Errorf("%w: item already recovered", errs.ErrConflict)
			}
		}

		if t.Message != nil {
			t.Message.ClaimID = t.ClaimID
			t.Message.ItemID = itemID
			if err := insertMessage(ctx, tx, t.Message); err != nil {
				return err
			}
		}
		return nil
	})
}

const claimSummarySelect = `
SELECT c.id, i.title, i.image_url,
       CASE WHEN c.finder_id = $1 THEN cu.full_name ELSE fu.full_name END,
       c.status,
       COALESCE((
         SELECT m.content FROM messages m
         WHERE m.claim_id = c.id AND (m.message_type <> 'handover_init' OR c.finder_id = $1)
         ORDER BY m.created_at DESC, m.id DESC LIMIT 1
       ), ''),
       c.updated_at, c.claimer_id, c.finder_id
FROM claims c
JOIN items i ON i.id = c.item_id
JOIN users cu ON cu.id = c.claimer_id
JOIN users fu ON fu.id = c.finder_id`

func (r *ClaimRepo) summaries(ctx context.Context, where string, userID int64) ([]model.ClaimSummary, error) {
	rows, err := r.db.Pool.Query(ctx, claimSummarySelect+"\nWHERE "+where+"\nORDER BY c.updated_at DESC, c.id DESC", userID)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	var out []model.ClaimSummary
	for rows.Next() {
		var s model.ClaimSummary
		if err := rows.Scan(&s.ClaimID, &s.ItemTitle, &s.ItemPhoto, &s.OtherPartyName, &s.Status,
			&s.LastMessage, &s.UpdatedAt, &s.ClaimerID, &s.FinderID); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// ListForUser returns claims where the user is either party.
func (r *ClaimRepo) ListForUser(ctx context.Context, userID int64) ([]model.ClaimSummary, error) {
	return r.summaries(ctx, "c.claimer_id = $1 OR c.finder_id = $1", userID)
}

// ListByClaimer returns claims started by the user.
func (r *ClaimRepo) ListByClaimer(ctx context.Context, userID int64) ([]model.ClaimSummary, error) {
	return r.summaries(ctx, "c.claimer_id = $1", userID)
}
