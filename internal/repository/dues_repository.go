package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/canteen-ordering/internal/model"
)

// DuesRepo reports and settles pay-later debts.
type DuesRepo struct {
	db     *sql.DB
	orders *OrderRepo
	users  *UserRepo
}

// NewDuesRepo returns a DuesRepo bound to db.
func NewDuesRepo(db *sql.DB) *DuesRepo {
	return &DuesRepo{db: db, orders: NewOrderRepo(db), users: NewUserRepo(db)}
}

// List returns every student who owes money.
func (r *DuesRepo) List(ctx context.Context) ([]model.Due, error) {
	return r.orders.Dues(ctx)
}

// Clear marks the student's unpaid pay-later orders paid and resets their
// balance to zero in one transaction.  It returns how many orders changed.
func (r *DuesRepo) Clear(ctx context.Context, userID uint64) (int64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	var role string
	err = tx.QueryRowContext(ctx, "SELECT role FROM users WHERE id=? FOR UPDATE", userID).Scan(&role)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, err
	}
	n, err := r.orders.MarkDuesPaidTx(ctx, tx, userID)
	if err != nil {
		return 0, err
	}
	if err := r.users.ResetBalanceTx(ctx, tx, userID); err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	committed = true
	return n, nil
}
