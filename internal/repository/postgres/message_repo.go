package postgres

import (
	"context"

	"github.com/and161185/findit/internal/model"
)

// MessageRepo implements MessageRepository using PostgreSQL.
type MessageRepo struct{ db *DB }

// NewMessageRepo constructs a message repository.
func NewMessageRepo(db *DB) *MessageRepo { return &MessageRepo{db: db} }

func insertMessage(ctx context.Context, q querier, m *model.Message) error {
	const ins = `
INSERT INTO messages (claim_id, conversation_id, item_id, sender_id, receiver_id, message_type, content)
VALUES (NULLIF($1::bigint, 0), NULLIF($2::bigint, 0), $3, $4, NULLIF($5::bigint, 0), $6, $7)
RETURNING id, created_at`
	return q.QueryRow(ctx, ins, m.ClaimID, m.ConversationID, m.ItemID, m.SenderID, m.ReceiverID,
		string(m.Type), m.Content).Scan(&m.ID, &m.CreatedAt)
}

// Append inserts a message.
func (r *MessageRepo) Append(ctx context.Context, m *model.Message) error {
	return classify(insertMessage(ctx, r.db.Pool, m))
}

const messageSelect = `
SELECT m.id, COALESCE(m.claim_id, 0), COALESCE(m.conversation_id, 0), m.item_id, m.sender_id,
       COALESCE(m.receiver_id, 0), m.message_type, m.content, m.is_read, m.created_at, u.full_name
FROM messages m
JOIN users u ON u.id = m.sender_id`

func (r *MessageRepo) list(ctx context.Context, where string, id int64) ([]model.Message, error) {
	rows, err := r.db.Pool.Query(ctx, messageSelect+"\nWHERE "+where+"\nORDER BY m.created_at ASC, m.id ASC", id)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	var out []model.Message
	for rows.Next() {
		var m model.Message
		if err := rows.Scan(&m.ID, &m.ClaimID, &m.ConversationID, &m.ItemID, &m.SenderID, &m.ReceiverID,
			&m.Type, &m.Content, &m.IsRead, &m.CreatedAt, &m.SenderName); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// Thread returns a claim's messages oldest first.
func (r *MessageRepo) Thread(ctx context.Context, claimID int64) ([]model.Message, error) {
	return r.list(ctx, "m.claim_id = $1", claimID)
}

// ConversationMessages returns a conversation's messages oldest first.
func (r *MessageRepo) ConversationMessages(ctx context.Context, conversationID int64) ([]model.Message, error) {
	return r.list(ctx, "m.conversation_id = $1", conversationID)
}

// MarkRead flags unread messages addressed to receiverID.
func (r *MessageRepo) MarkRead(ctx context.Context, conversationID, receiverID int64) error {
	const q = `UPDATE messages SET is_read = true WHERE conversation_id = $1 AND receiver_id = $2 AND NOT is_read`
	_, err := r.db.Pool.Exec(ctx, q, conversationID, receiverID)
	return classify(err)
}
