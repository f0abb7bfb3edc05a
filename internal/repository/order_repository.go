package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/iliyamo/canteen-ordering/internal/model"
)

// OrderRepo provides data access to orders and their item lines.
type OrderRepo struct {
	db *sql.DB
}

// NewOrderRepo returns an OrderRepo bound to db.
func NewOrderRepo(db *sql.DB) *OrderRepo { return &OrderRepo{db: db} }

// ItemCountsForDate sums the quantity of each item across all orders placed
// for date.
func (r *OrderRepo) ItemCountsForDate(ctx context.Context, date string) (map[string]int, error) {
	return itemCounts(ctx, r.db, date)
}

// ItemCountsForDateTx is ItemCountsForDate inside tx.
func (r *OrderRepo) ItemCountsForDateTx(ctx context.Context, tx *sql.Tx, date string) (map[string]int, error) {
	return itemCounts(ctx, tx, date)
}

func itemCounts(ctx context.Context, q querier, date string) (map[string]int, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT oi.item_name, SUM(oi.quantity)
		  FROM order_items oi
		  JOIN orders o ON o.id = oi.order_id
		 WHERE o.order_date=?
		 GROUP BY oi.item_name`, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[string]int{}
	for rows.Next() {
		var name string
		var n int
		if err := rows.Scan(&name, &n); err != nil {
			return nil, err
		}
		out[name] = n
	}
	return out, rows.Err()
}

// CreateTx inserts the order and its item lines inside tx and fills in
// o.ID.  The caller owns the transaction.
func (r *OrderRepo) CreateTx(ctx context.Context, tx *sql.Tx, o *model.Order) error {
	res, err := tx.ExecContext(ctx, `
		INSERT INTO orders (reference, user_id, slot_id, slot_label, order_date, total_cents, pay_later, status, payment_status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		o.Reference, o.UserID, o.SlotID, o.SlotLabel, o.Date, o.TotalCents, o.PayLater, o.Status, o.PaymentStatus, o.CreatedAt.UTC())
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	o.ID = uint64(id)
	if len(o.Items) == 0 {
		return nil
	}
	query := "INSERT INTO order_items (order_id, item_name, quantity, unit_price_cents) VALUES "
	args := make([]any, 0, len(o.Items)*4)
	for i, it := range o.Items {
		if i > 0 {
			query += ","
		}
		query += "(?, ?, ?, ?)"
		args = append(args, o.ID, it.Name, it.Quantity, it.UnitPriceCents)
	}
	_, err = tx.ExecContext(ctx, query, args...)
	return err
}

const orderColumns = `o.id, o.reference, o.user_id, o.slot_id, o.slot_label, DATE_FORMAT(o.order_date, '%Y-%m-%d'),
	o.total_cents, o.pay_later, o.status, o.payment_status, o.created_at`

func scanOrder(row rowScanner, extra ...any) (model.Order, error) {
	var (
		o      model.Order
		slotID sql.NullInt64
	)
	dest := []any{&o.ID, &o.Reference, &o.UserID, &slotID, &o.SlotLabel, &o.Date,
		&o.TotalCents, &o.PayLater, &o.Status, &o.PaymentStatus, &o.CreatedAt}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return model.Order{}, err
	}
	if slotID.Valid {
		id := uint64(slotID.Int64)
		o.SlotID = &id
	}
	return o, nil
}

// ListByUser returns the user's orders, newest first.  An empty date lists
// every day.
func (r *OrderRepo) ListByUser(ctx context.Context, userID uint64, date string) ([]model.Order, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+orderColumns+` FROM orders o
		 WHERE o.user_id=? AND (?='' OR o.order_date=?)
		 ORDER BY o.created_at DESC, o.id DESC`,
		userID, date, date)
	if err != nil {
		return nil, err
	}
	orders := []model.Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		orders = append(orders, o)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	return orders, r.attachItems(ctx, orders)
}

// ListByDate returns every order with the student's name and roll, newest
// first.  An empty date lists every day.
func (r *OrderRepo) ListByDate(ctx context.Context, date string) ([]model.Order, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+orderColumns+`, u.name, COALESCE(u.roll, '')
		   FROM orders o
		   JOIN users u ON u.id = o.user_id
		  WHERE (?='' OR o.order_date=?)
		  ORDER BY o.created_at DESC, o.id DESC`,
		date, date)
	if err != nil {
		return nil, err
	}
	orders := []model.Order{}
	for rows.Next() {
		var name, roll string
		o, err := scanOrder(rows, &name, &roll)
		if err != nil {
			rows.Close()
			return nil, err
		}
		o.UserName, o.UserRoll = name, roll
		orders = append(orders, o)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	return orders, r.attachItems(ctx, orders)
}

// GetByIDForUser returns the order only when it belongs to userID.
func (r *OrderRepo) GetByIDForUser(ctx context.Context, id, userID uint64) (model.Order, error) {
	o, err := scanOrder(r.db.QueryRowContext(ctx,
		"SELECT "+orderColumns+" FROM orders o WHERE o.id=? AND o.user_id=?", id, userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Order{}, ErrNotFound
		}
		return model.Order{}, err
	}
	list := []model.Order{o}
	if err := r.attachItems(ctx, list); err != nil {
		return model.Order{}, err
	}
	return list[0], nil
}

// attachItems loads item lines for orders with a single IN query.
func (r *OrderRepo) attachItems(ctx context.Context, orders []model.Order) error {
	if len(orders) == 0 {
		return nil
	}
	index := make(map[uint64]int, len(orders))
	args := make([]any, 0, len(orders))
	for i := range orders {
		orders[i].Items = []model.OrderItem{}
		index[orders[i].ID] = i
		args = append(args, orders[i].ID)
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(orders)), ",")
	rows, err := r.db.QueryContext(ctx,
		"SELECT order_id, item_name, quantity, unit_price_cents FROM order_items WHERE order_id IN ("+placeholders+") ORDER BY id",
		args...)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var orderID uint64
		var it model.OrderItem
		if err := rows.Scan(&orderID, &it.Name, &it.Quantity, &it.UnitPriceCents); err != nil {
			return err
		}
		if i, ok := index[orderID]; ok {
			orders[i].Items = append(orders[i].Items, it)
		}
	}
	return rows.Err()
}

// Dues lists students who owe money: anyone with a negative balance or an
// unpaid pay-later order.
func (r *OrderRepo) Dues(ctx context.Context) ([]model.Due, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT u.id, u.name, COALESCE(u.roll, ''), COALESCE(u.phone, ''), u.balance_cents,
		       COALESCE(SUM(o.total_cents), 0), COUNT(o.id)
		  FROM users u
		  LEFT JOIN orders o
		    ON o.user_id = u.id AND o.pay_later = 1 AND o.payment_status = 'unpaid'
		 WHERE u.role = 'STUDENT'
		 GROUP BY u.id, u.name, u.roll, u.phone, u.balance_cents
		HAVING u.balance_cents < 0 OR COUNT(o.id) > 0
		 ORDER BY u.balance_cents ASC, u.name ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Due{}
	for rows.Next() {
		var d model.Due
		if err := rows.Scan(&d.UserID, &d.Name, &d.Roll, &d.Phone, &d.BalanceCents, &d.UnpaidCents, &d.UnpaidOrders); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// MarkDuesPaidTx flips the user's unpaid pay-later orders to paid and
// returns how many orders changed.
func (r *OrderRepo) MarkDuesPaidTx(ctx context.Context, tx *sql.Tx, userID uint64) (int64, error) {
	res, err := tx.ExecContext(ctx,
		"UPDATE orders SET payment_status='paid' WHERE user_id=? AND pay_later=1 AND payment_status='unpaid'",
		userID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
