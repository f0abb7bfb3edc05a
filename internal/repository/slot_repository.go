package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/canteen-ordering/internal/model"
)

// SlotRepo provides access to the per-date pickup slots.  Usage counters
// are only ever changed through ReserveTx, whose conditional update is the
// guard against over-booking.
type SlotRepo struct {
	db *sql.DB
}

// NewSlotRepo returns a SlotRepo bound to db.
func NewSlotRepo(db *sql.DB) *SlotRepo { return &SlotRepo{db: db} }

const slotColumns = "id, DATE_FORMAT(slot_date, '%Y-%m-%d'), start_time, end_time, meal_type, max_orders, current_orders, status"

func scanSlot(row rowScanner) (model.Slot, error) {
	var s model.Slot
	var status string
	err := row.Scan(&s.ID, &s.Date, &s.Start, &s.End, &s.MealType, &s.MaxOrders, &s.CurrentOrders, &status)
	s.Status = model.SlotStatus(status)
	return s, err
}

func (r *SlotRepo) querySlots(ctx context.Context, q querier, query string, args ...any) ([]model.Slot, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Slot{}
	for rows.Next() {
		s, err := scanSlot(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// ListByDate returns all slots for date ordered by start time.
func (r *SlotRepo) ListByDate(ctx context.Context, date string) ([]model.Slot, error) {
	return r.querySlots(ctx, r.db,
		"SELECT "+slotColumns+" FROM slots WHERE slot_date=? ORDER BY start_time ASC", date)
}

// GetByID fetches a single slot, returning ErrSlotNotFound when absent.
func (r *SlotRepo) GetByID(ctx context.Context, id uint64) (model.Slot, error) {
	return getSlot(ctx, r.db, id)
}

// GetByIDTx is GetByID inside tx.
func (r *SlotRepo) GetByIDTx(ctx context.Context, tx *sql.Tx, id uint64) (model.Slot, error) {
	return getSlot(ctx, tx, id)
}

func getSlot(ctx context.Context, q querier, id uint64) (model.Slot, error) {
	s, err := scanSlot(q.QueryRowContext(ctx, "SELECT "+slotColumns+" FROM slots WHERE id=?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Slot{}, ErrSlotNotFound
	}
	return s, err
}

// FindOpen returns the slot on date starting at start that is open and has
// spare capacity.  An empty mealType matches any slot.  ErrSlotNotFound is
// returned when no such slot exists.
func (r *SlotRepo) FindOpen(ctx context.Context, date, start, mealType string) (model.Slot, error) {
	s, err := scanSlot(r.db.QueryRowContext(ctx,
		"SELECT "+slotColumns+` FROM slots
		 WHERE slot_date=? AND start_time=? AND status='open' AND current_orders < max_orders
		   AND (?='' OR meal_type=?)
		 LIMIT 1`,
		date, start, mealType, mealType))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Slot{}, ErrSlotNotFound
	}
	return s, err
}

// EarliestOpen returns the earliest-starting open slot on date with spare
// capacity, or ErrSlotNotFound.
func (r *SlotRepo) EarliestOpen(ctx context.Context, date, mealType string) (model.Slot, error) {
	s, err := scanSlot(r.db.QueryRowContext(ctx,
		"SELECT "+slotColumns+` FROM slots
		 WHERE slot_date=? AND status='open' AND current_orders < max_orders
		   AND (?='' OR meal_type=?)
		 ORDER BY start_time ASC
		 LIMIT 1`,
		date, mealType, mealType))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Slot{}, ErrSlotNotFound
	}
	return s, err
}

// ReserveTx takes one unit of capacity on the slot.  The predicate and the
// increment run as a single statement so two callers racing for the last
// place cannot both succeed.  MySQL evaluates SET assignments left to right,
// so the CASE sees the incremented usage.
func (r *SlotRepo) ReserveTx(ctx context.Context, tx *sql.Tx, slotID uint64) error {
	res, err := tx.ExecContext(ctx, `
		UPDATE slots
		   SET current_orders = current_orders + 1,
		       status = CASE WHEN current_orders >= max_orders THEN 'full' ELSE status END
		 WHERE id=? AND status='open' AND current_orders < max_orders`,
		slotID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrSlotJustFilled
	}
	return nil
}

// ReplaceForDate discards every slot on date and creates fresh ones from the
// template entries with zero usage.  Orders keep their slot label; their
// slot_id is nulled by the foreign key.
func (r *SlotRepo) ReplaceForDate(ctx context.Context, date string, entries []model.SlotTemplateEntry) ([]model.Slot, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if _, err := tx.ExecContext(ctx, "DELETE FROM slots WHERE slot_date=?", date); err != nil {
		return nil, err
	}
	if len(entries) > 0 {
		query := "INSERT INTO slots (slot_date, start_time, end_time, meal_type, max_orders, current_orders, status) VALUES "
		args := make([]any, 0, len(entries)*5)
		for i, e := range entries {
			if i > 0 {
				query += ","
			}
			query += "(?, ?, ?, ?, ?, 0, 'open')"
			args = append(args, date, e.Start, e.End, e.MealType, e.Capacity)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return nil, err
		}
	}
	slots, err := r.querySlots(ctx, tx,
		"SELECT "+slotColumns+" FROM slots WHERE slot_date=? ORDER BY start_time ASC", date)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	committed = true
	return slots, nil
}

// SetStatus applies an administrator override.  Closing is unconditional.
// Reopening re-derives full or open from the current usage.
func (r *SlotRepo) SetStatus(ctx context.Context, id uint64, status model.SlotStatus) (model.Slot, error) {
	var query string
	switch status {
	case model.SlotClosed:
		query = "UPDATE slots SET status='closed' WHERE id=?"
	case model.SlotOpen:
		query = "UPDATE slots SET status = CASE WHEN current_orders >= max_orders THEN 'full' ELSE 'open' END WHERE id=?"
	default:
		return model.Slot{}, errors.New("status must be open or closed")
	}
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return model.Slot{}, err
	}
	return r.GetByID(ctx, id)
}
