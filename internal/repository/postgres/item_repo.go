package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/and161185/findit/internal/errs"
	"github.com/and161185/findit/internal/model"
	"github.com/jackc/pgx/v5"
)

// ItemRepo implements ItemRepository using PostgreSQL.
type ItemRepo struct{ db *DB }

// NewItemRepo constructs an item repository.
func NewItemRepo(db *DB) *ItemRepo { return &ItemRepo{db: db} }

const itemSelect = `
SELECT i.id, i.user_id, i.title, i.description, i.category, i.location, i.keywords,
       COALESCE(to_char(i.date_found, 'YYYY-MM-DD'), ''), i.contact_preference, i.image_url,
       i.status, COALESCE(i.verification_pin, ''), u.full_name, i.created_at
FROM items i
JOIN users u ON u.id = i.user_id`

func scanItem(row pgx.Row, it *model.Item) error {
	return row.Scan(&it.ID, &it.UserID, &it.Title, &it.Description, &it.Category, &it.Location, &it.Keywords,
		&it.DateFound, &it.ContactPreference, &it.ImageURL, &it.Status, &it.VerificationPIN,
		&it.ReporterName, &it.CreatedAt)
}

func (r *ItemRepo) list(ctx context.Context, q string, args ...any) ([]model.Item, error) {
	rows, err := r.db.Pool.Query(ctx, q, args...)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	var out []model.Item
	for rows.Next() {
		var it model.Item
		if err := scanItem(rows, &it); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

// Create inserts an item; an empty status defaults to Found.
func (r *ItemRepo) Create(ctx context.Context, it *model.Item) error {
	if it.Status == "" {
		it.Status = model.ItemFound
	}
	const q = `
INSERT INTO items (user_id, title, description, category, location, keywords, date_found,
                   contact_preference, image_url, status)
VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, '')::date, $8, $9, $10)
RETURNING id, created_at`
	err := r.db.Pool.QueryRow(ctx, q, it.UserID, it.Title, it.Description, it.Category, it.Location,
		it.Keywords, it.DateFound, it.ContactPreference, it.ImageURL, string(it.Status)).
		Scan(&it.ID, &it.CreatedAt)
	return classify(err)
}

// GetByID returns an item with its reporter's name.
func (r *ItemRepo) GetByID(ctx context.Context, id int64) (*model.Item, error) {
	var it model.Item
	if err := scanItem(r.db.Pool.QueryRow(ctx, itemSelect+` WHERE i.id = $1`, id), &it); err != nil {
		return nil, notFound(err)
	}
	return &it, nil
}

// List applies case-insensitive substring search over title, description,
// location and keywords plus exact status/category filters.
func (r *ItemRepo) List(ctx context.Context, f model.ItemFilter) ([]model.Item, error) {
	var where []string
	var args []any
	if q := strings.TrimSpace(f.Query); q != "" {
		args = append(args, "%"+escapeLike(q)+"%")
		n := len(args)
		where = append(where, fmt.Sprintf(
			`(i.title ILIKE $%[1]d ESCAPE '\' OR i.description ILIKE $%[1]d ESCAPE '\'`+
				` OR i.location ILIKE $%[1]d ESCAPE '\' OR i.keywords ILIKE $%[1]d ESCAPE '\')`, n))
	}
	if f.Status != "" {
		args = append(args, string(f.Status))
		where = append(where, fmt.Sprintf("i.status = $%d", len(args)))
	}
	if f.Category != "" {
		args = append(args, f.Category)
		where = append(where, fmt.Sprintf("i.category = $%d", len(args)))
	}

	q := itemSelect
	if len(where) > 0 {
		q += "\nWHERE " + strings.Join(where, " AND ")
	}
	q += "\nORDER BY i.created_at DESC, i.id DESC"
	return r.list(ctx, q, args...)
}

// ListByOwner returns the user's reports, newest first.
func (r *ItemRepo) ListByOwner(ctx context.Context, userID int64) ([]model.Item, error) {
	return r.list(ctx, itemSelect+` WHERE i.user_id = $1 ORDER BY i.created_at DESC, i.id DESC`, userID)
}

// SetPIN stores a PIN unless the item is already recovered.
func (r *ItemRepo) SetPIN(ctx context.Context, id int64, pin string) error {
	const q = `UPDATE items SET verification_pin=$2 WHERE id=$1 AND status <> 'Recovered'`
	tag, err := r.db.Pool.Exec(ctx, q, id, pin)
	if err != nil {
		return classify(err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: item is recovered or gone", errs.ErrConflict)
	}
	return nil
}

// Delete removes one item.
func (r *ItemRepo) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM items WHERE id=$1`, id)
	if err != nil {
		return classify(err)
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

// DeleteAll removes every item.
func (r *ItemRepo) DeleteAll(ctx context.Context) (int64, error) {
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM items`)
	if err != nil {
		return 0, classify(err)
	}
	return tag.RowsAffected(), nil
}

// Locations returns (id, location) for every item.
func (r *ItemRepo) Locations(ctx context.Context) ([]model.ItemLocation, error) {
	rows, err := r.db.Pool.Query(ctx, `SELECT id, location FROM items ORDER BY id`)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	var out []model.ItemLocation
	for rows.Next() {
		var l model.ItemLocation
		if err := rows.Scan(&l.ID, &l.Location); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// SetLocations rewrites locations atomically.
func (r *ItemRepo) SetLocations(ctx context.Context, updates []model.ItemLocation) (err error) {
	tx, err := r.db.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return classify(err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
			return
		}
		if e := tx.Commit(ctx); e != nil {
			err = e
		}
	}()

	const upd = `UPDATE items SET location=$2 WHERE id=$1`
	for _, u := range updates {
		if _, err = tx.Exec(ctx, upd, u.ID, u.Location); err != nil {
			return err
		}
	}
	return nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// escapeLike makes user input match literally inside an ILIKE pattern.
func escapeLike(s string) string { return likeEscaper.Replace(s) }
