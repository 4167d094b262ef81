package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"

	"github.com/and161185/brainboard/internal/errs"
	"github.com/and161185/brainboard/internal/model"
)

// ChecklistRepo implements ChecklistRepository using PostgreSQL.
type ChecklistRepo struct{ db *DB }

// NewChecklistRepo constructs a checklist repository.
func NewChecklistRepo(db *DB) *ChecklistRepo { return &ChecklistRepo{db: db} }

func weekdays(in []int32) []time.Weekday {
	if len(in) == 0 {
		return nil
	}
	out := make([]time.Weekday, len(in))
	for i, d := range in {
		out[i] = time.Weekday(d)
	}
	return out
}

func weekdayInts(in []time.Weekday) []int32 {
	out := make([]int32, len(in))
	for i, d := range in {
		out[i] = int32(d)
	}
	return out
}

// UpsertItems writes a batch of items of one node atomically.
func (r *ChecklistRepo) UpsertItems(
	ctx context.Context, nodeID uuid.UUID, items []model.ChecklistItem,
) (stored []model.ChecklistItem, created []bool, err error) {
	const q = `
INSERT INTO checklist_items (id, node_id, text, completed, completed_at, sort_order, recurrence,
  reset_days, current_streak, longest_streak, last_reset_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
ON CONFLICT (id) DO UPDATE SET
  text=EXCLUDED.text, completed=EXCLUDED.completed, completed_at=EXCLUDED.completed_at,
  sort_order=EXCLUDED.sort_order, recurrence=EXCLUDED.recurrence, reset_days=EXCLUDED.reset_days,
  current_streak=EXCLUDED.current_streak, longest_streak=EXCLUDED.longest_streak,
  last_reset_at=EXCLUDED.last_reset_at, updated_at=now()
WHERE checklist_items.node_id = EXCLUDED.node_id
RETURNING updated_at, (xmax = 0) AS inserted`

	stored = make([]model.ChecklistItem, 0, len(items))
	created = make([]bool, 0, len(items))
	err = r.db.inTx(ctx, func(tx pgx.Tx) error {
		for i, it := range items {
			if it.NodeID != nodeID {
				return fmt.Errorf("item[%d]: %w: belongs to node %s", i, errs.ErrInvalidArgument, it.NodeID)
			}
			rec := it.Recurrence
			if rec == "" {
				rec = model.RecurNone
			}
			var inserted bool
			scanErr := tx.QueryRow(ctx, q, it.ID, nodeID, it.Text, it.Completed, it.CompletedAt, it.SortOrder,
				string(rec), weekdayInts(it.ResetDays), it.CurrentStreak, it.LongestStreak, it.LastResetAt).
				Scan(&it.UpdatedAt, &inserted)
			switch {
			case scanErr == nil:
			case errors.Is(scanErr, pgx.ErrNoRows):
				return fmt.Errorf("item[%d]: %w", i, errs.ErrAlreadyExists)
			case isForeignKeyViolation(scanErr):
				return fmt.Errorf("item[%d]: node %s: %w", i, nodeID, errs.ErrNotFound)
			default:
				return scanErr
			}
			it.Recurrence = rec
			stored = append(stored, it)
			created = append(created, inserted)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return stored, created, nil
}

// DeleteItem removes an item of a node.
func (r *ChecklistRepo) DeleteItem(ctx context.Context, nodeID, id uuid.UUID) error {
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM checklist_items WHERE id=$1 AND node_id=$2`, id, nodeID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

// ListItems returns the items of a node by sort order.
func (r *ChecklistRepo) ListItems(ctx context.Context, nodeID uuid.UUID) ([]model.ChecklistItem, error) {
	const q = `
SELECT id, node_id, text, completed, completed_at, sort_order, recurrence, reset_days,
  current_streak, longest_streak, last_reset_at, updated_at
FROM checklist_items WHERE node_id=$1
ORDER BY sort_order, id`
	rows, err := r.db.Pool.Query(ctx, q, nodeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.ChecklistItem{}
	for rows.Next() {
		var (
			it   model.ChecklistItem
			rec  string
			days []int32
		)
		if err := rows.Scan(&it.ID, &it.NodeID, &it.Text, &it.Completed, &it.CompletedAt, &it.SortOrder, &rec,
			&days, &it.CurrentStreak, &it.LongestStreak, &it.LastResetAt, &it.UpdatedAt); err != nil {
			return nil, err
		}
		it.Recurrence = model.Recurrence(rec)
		it.ResetDays = weekdays(days)
		out = append(out, it)
	}
	return out, rows.Err()
}
