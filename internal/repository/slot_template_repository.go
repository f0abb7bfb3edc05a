package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/canteen-ordering/internal/model"
)

// SlotTemplateRepo stores the ordered list of slot definitions used to
// materialize a day's slots.
type SlotTemplateRepo struct {
	db *sql.DB
}

func NewSlotTemplateRepo(db *sql.DB) *SlotTemplateRepo { return &SlotTemplateRepo{db: db} }

// Get returns the template entries in position order.
func (r *SlotTemplateRepo) Get(ctx context.Context) ([]model.SlotTemplateEntry, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT position, start_time, end_time, meal_type, capacity FROM slot_template_entries ORDER BY position ASC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.SlotTemplateEntry{}
	for rows.Next() {
		var e model.SlotTemplateEntry
		if err := rows.Scan(&e.Position, &e.Start, &e.End, &e.MealType, &e.Capacity); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Replace swaps the whole template for entries in one transaction.
// Positions are renumbered from the slice order.
func (r *SlotTemplateRepo) Replace(ctx context.Context, entries []model.SlotTemplateEntry) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if _, err := tx.ExecContext(ctx, "DELETE FROM slot_template_entries"); err != nil {
		return err
	}
	if len(entries) > 0 {
		query := "INSERT INTO slot_template_entries (position, start_time, end_time, meal_type, capacity) VALUES "
		args := make([]any, 0, len(entries)*5)
		for i, e := range entries {
			if i > 0 {
				query += ","
			}
			query += "(?, ?, ?, ?, ?)"
			args = append(args, i+1, e.Start, e.End, e.MealType, e.Capacity)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			if isDuplicate(err) {
				return ErrConflict
			}
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}
