package postgres

import (
	"context"
	"errors"

	"github.com/and161185/findit/internal/model"
	"github.com/jackc/pgx/v5"
)

// ConversationRepo implements ConversationRepository using PostgreSQL.
type ConversationRepo struct{ db *DB }

// NewConversationRepo constructs a conversation repository.
func NewConversationRepo(db *DB) *ConversationRepo { return &ConversationRepo{db: db} }

// GetOrCreate inserts the (item, claimer) conversation unless it exists and reports whether it was created.
func (r *ConversationRepo) GetOrCreate(ctx context.Context, itemID, finderID, claimerID int64) (*model.Conversation, bool, error) {
	c := &model.Conversation{ItemID: itemID, FinderID: finderID, ClaimerID: claimerID}

	const ins = `
INSERT INTO conversations (item_id, finder_id, claimer_id) VALUES ($1, $2, $3)
ON CONFLICT (item_id, claimer_id) DO NOTHING
RETURNING id, created_at`
	err := r.db.Pool.QueryRow(ctx, ins, itemID, finderID, claimerID).Scan(&c.ID, &c.CreatedAt)
	switch {
	case err == nil:
		return c, true, nil
	case !errors.Is(err, pgx.ErrNoRows):
		return nil, false, classify(err)
	}

	const sel = `SELECT id, finder_id, created_at FROM conversations WHERE item_id=$1 AND claimer_id=$2`
	if err := r.db.Pool.QueryRow(ctx, sel, itemID, claimerID).Scan(&c.ID, &c.FinderID, &c.CreatedAt); err != nil {
		return nil, false, notFound(err)
	}
	return c, false, nil
}

// GetByID returns a conversation with its item and both parties.
func (r *ConversationRepo) GetByID(ctx context.Context, id int64) (*model.ConversationDetail, error) {
	const q = `
SELECT cv.id, cv.item_id, cv.finder_id, cv.claimer_id, cv.created_at,
       i.title, i.image_url, fu.full_name, fu.avatar_url, cu.full_name, cu.avatar_url
FROM conversations cv
JOIN items i ON i.id = cv.item_id
JOIN users fu ON fu.id = cv.finder_id
JOIN users cu ON cu.id = cv.claimer_id
WHERE cv.id = $1`
	var d model.ConversationDetail
	err := r.db.Pool.QueryRow(ctx, q, id).Scan(&d.ID, &d.ItemID, &d.FinderID, &d.ClaimerID, &d.CreatedAt,
		&d.ItemTitle, &d.ItemPhoto, &d.Finder.FullName, &d.Finder.AvatarURL, &d.Claimer.FullName, &d.Claimer.AvatarURL)
	if err != nil {
		return nil, notFound(err)
	}
	d.Finder.ID, d.Claimer.ID = d.FinderID, d.ClaimerID
	return &d, nil
}

// ListForUser returns conversations with the last message preview, latest activity first.
func (r *ConversationRepo) ListForUser(ctx context.Context, userID int64) ([]model.ConversationSummary, error) {
	const q = `
SELECT cv.id, cv.item_id, i.title, i.image_url,
       CASE WHEN cv.finder_id = $1 THEN cv.claimer_id ELSE cv.finder_id END,
       CASE WHEN cv.finder_id = $1 THEN cu.full_name ELSE fu.full_name END,
       cv.finder_id = $1,
       COALESCE(lm.content, ''),
       COALESCE(lm.created_at, cv.created_at),
       COALESCE(lm.sender_id <> $1 AND NOT lm.is_read, false)
FROM conversations cv
JOIN items i ON i.id = cv.item_id
JOIN users fu ON fu.id = cv.finder_id
JOIN users cu ON cu.id = cv.claimer_id
LEFT JOIN LATERAL (
  SELECT m.content, m.created_at, m.sender_id, m.is_read
  FROM messages m
  WHERE m.conversation_id = cv.id AND (m.message_type <> 'handover_init' OR cv.finder_id = $1)
  ORDER BY m.created_at DESC, m.id DESC
  LIMIT 1
) lm ON true
WHERE cv.finder_id = $1 OR cv.claimer_id = $1
ORDER BY COALESCE(lm.created_at, cv.created_at) DESC, cv.id DESC`
	rows, err := r.db.Pool.Query(ctx, q, userID)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	var out []model.ConversationSummary
	for rows.Next() {
		var s model.ConversationSummary
		if err := rows.Scan(&s.ID, &s.ItemID, &s.ItemTitle, &s.ItemPhoto, &s.OtherUserID, &s.OtherUserName,
			&s.IsFinder, &s.LastMessage, &s.LastMessageAt, &s.Unread); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
