package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/iliyamo/canteen-ordering/internal/model"
)

// Reservation is a fully priced request to take one place on a slot and
// record the order for it.
type Reservation struct {
	Reference  string
	UserID     uint64
	Date       string
	SlotID     uint64
	Items      []model.OrderItem
	TotalCents int64
	PayLater   bool
	CreatedAt  time.Time
}

// AllocationRepo commits reservations.  It composes the menu, slot, order
// and user repositories inside a single transaction.
type AllocationRepo struct {
	db     *sql.DB
	menus  *MenuRepo
	slots  *SlotRepo
	orders *OrderRepo
	users  *UserRepo
}

// NewAllocationRepo returns an AllocationRepo bound to db.
func NewAllocationRepo(db *sql.DB) *AllocationRepo {
	return &AllocationRepo{
		db:     db,
		menus:  NewMenuRepo(db),
		slots:  NewSlotRepo(db),
		orders: NewOrderRepo(db),
		users:  NewUserRepo(db),
	}
}

// Commit reserves a place on res.SlotID, creates the order and applies the
// pay-later balance charge, all or nothing.
//
// Locks are taken in a fixed order: the day's menu row, then the slot row,
// then the user row.  The menu lock serializes the per-item cap re-check
// with other orders for the same day; the slot increment is conditional on
// spare capacity and fails with ErrSlotJustFilled when it matches nothing.
func (r *AllocationRepo) Commit(ctx context.Context, res Reservation) (model.Order, model.Slot, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return model.Order{}, model.Slot{}, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	menu, err := r.menus.LockForDateTx(ctx, tx, res.Date)
	if err != nil {
		return model.Order{}, model.Slot{}, err
	}

	counts, err := r.orders.ItemCountsForDateTx(ctx, tx, res.Date)
	if err != nil {
		return model.Order{}, model.Slot{}, fmt.Errorf("item counts: %w", err)
	}
	names := make([]string, 0, len(res.Items))
	requested := make(map[string]int, len(res.Items))
	caps := make(map[string]int, len(res.Items))
	for _, it := range res.Items {
		names = append(names, it.Name)
		requested[it.Name] += it.Quantity
		if mi, ok := menu.Item(it.Name); ok {
			caps[it.Name] = mi.MaxPerDay
		}
	}
	if err := CheckItemCaps(names, requested, counts, caps); err != nil {
		return model.Order{}, model.Slot{}, err
	}

	if err := r.slots.ReserveTx(ctx, tx, res.SlotID); err != nil {
		return model.Order{}, model.Slot{}, err
	}
	slot, err := r.slots.GetByIDTx(ctx, tx, res.SlotID)
	if err != nil {
		return model.Order{}, model.Slot{}, err
	}

	slotID := slot.ID
	order := model.Order{
		Reference:     res.Reference,
		UserID:        res.UserID,
		SlotID:        &slotID,
		SlotLabel:     slot.Label(),
		Date:          res.Date,
		Items:         res.Items,
		TotalCents:    res.TotalCents,
		PayLater:      res.PayLater,
		Status:        model.OrderConfirmed,
		PaymentStatus: model.PaymentStatusFor(res.PayLater),
		CreatedAt:     res.CreatedAt,
	}
	if err := r.orders.CreateTx(ctx, tx, &order); err != nil {
		return model.Order{}, model.Slot{}, fmt.Errorf("insert order: %w", err)
	}

	if res.PayLater {
		if err := r.users.AdjustBalanceTx(ctx, tx, res.UserID, -res.TotalCents); err != nil {
			return model.Order{}, model.Slot{}, fmt.Errorf("charge balance: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return model.Order{}, model.Slot{}, err
	}
	committed = true
	return order, slot, nil
}

// MenuForDate returns the menu for date.
func (r *AllocationRepo) MenuForDate(ctx context.Context, date string) (model.Menu, error) {
	return r.menus.ForDate(ctx, date)
}

// ItemCountsForDate returns the quantity already ordered per item on date.
// The read takes no locks; Commit repeats the check under the menu lock.
func (r *AllocationRepo) ItemCountsForDate(ctx context.Context, date string) (map[string]int, error) {
	return r.orders.ItemCountsForDate(ctx, date)
}

// FindOpenSlot returns the open slot starting at start with spare capacity.
func (r *AllocationRepo) FindOpenSlot(ctx context.Context, date, start, mealType string) (model.Slot, error) {
	return r.slots.FindOpen(ctx, date, start, mealType)
}

// EarliestOpenSlot returns the earliest open slot with spare capacity.
func (r *AllocationRepo) EarliestOpenSlot(ctx context.Context, date, mealType string) (model.Slot, error) {
	return r.slots.EarliestOpen(ctx, date, mealType)
}
