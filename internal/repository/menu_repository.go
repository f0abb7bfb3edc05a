package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/canteen-ordering/internal/model"
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// MenuRepo reads and replaces the daily menus.
type MenuRepo struct {
	db *sql.DB
}

func NewMenuRepo(db *sql.DB) *MenuRepo { return &MenuRepo{db: db} }

// ForDate returns the menu for date with its items, or ErrMenuNotFound.
func (r *MenuRepo) ForDate(ctx context.Context, date string) (model.Menu, error) {
	return loadMenu(ctx, r.db, date, false)
}

// LockForDateTx loads the menu for date and holds a row lock on it until tx
// ends.  Every allocation for the same day goes through this lock first,
// which serializes the per-item cap check against concurrent orders.
func (r *MenuRepo) LockForDateTx(ctx context.Context, tx *sql.Tx, date string) (model.Menu, error) {
	return loadMenu(ctx, tx, date, true)
}

func loadMenu(ctx context.Context, q querier, date string, lock bool) (model.Menu, error) {
	query := "SELECT id FROM menus WHERE menu_date=?"
	if lock {
		query += " FOR UPDATE"
	}
	m := model.Menu{Date: date}
	if err := q.QueryRowContext(ctx, query, date).Scan(&m.ID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Menu{}, ErrMenuNotFound
		}
		return model.Menu{}, err
	}
	rows, err := q.QueryContext(ctx,
		"SELECT id, name, price_cents, meal_type, max_per_day FROM menu_items WHERE menu_id=? ORDER BY id",
		m.ID)
	if err != nil {
		return model.Menu{}, err
	}
	defer rows.Close()
	m.Items = []model.MenuItem{}
	for rows.Next() {
		var it model.MenuItem
		if err := rows.Scan(&it.ID, &it.Name, &it.PriceCents, &it.MealType, &it.MaxPerDay); err != nil {
			return model.Menu{}, err
		}
		m.Items = append(m.Items, it)
	}
	return m, rows.Err()
}

// Upsert creates the menu for date if needed and replaces its items.
func (r *MenuRepo) Upsert(ctx context.Context, date string, items []model.MenuItem) (model.Menu, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return model.Menu{}, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	// LAST_INSERT_ID(id) makes LastInsertId return the existing row on update.
	res, err := tx.ExecContext(ctx,
		"INSERT INTO menus (menu_date) VALUES (?) ON DUPLICATE KEY UPDATE id=LAST_INSERT_ID(id), updated_at=UTC_TIMESTAMP()",
		date)
	if err != nil {
		return model.Menu{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return model.Menu{}, err
	}
	menuID := uint64(id)
	if _, err := tx.ExecContext(ctx, "DELETE FROM menu_items WHERE menu_id=?", menuID); err != nil {
		return model.Menu{}, err
	}
	if len(items) > 0 {
		query := "INSERT INTO menu_items (menu_id, name, price_cents, meal_type, max_per_day) VALUES "
		args := make([]any, 0, len(items)*5)
		for i, it := range items {
			if i > 0 {
				query += ","
			}
			query += "(?, ?, ?, ?, ?)"
			args = append(args, menuID, it.Name, it.PriceCents, it.MealType, it.MaxPerDay)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			if isDuplicate(err) {
				return model.Menu{}, ErrConflict
			}
			return model.Menu{}, err
		}
	}
	if err := tx.Commit(); err != nil {
		return model.Menu{}, err
	}
	committed = true
	return model.Menu{ID: menuID, Date: date, Items: items}, nil
}
