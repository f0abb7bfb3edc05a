// Package service holds the canteen's business rules: slot allocation for
// new orders and the administrative slot lifecycle.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/iliyamo/canteen-ordering/internal/model"
	"github.com/iliyamo/canteen-ordering/internal/queue"
	"github.com/iliyamo/canteen-ordering/internal/repository"
)

var (
	// ErrMissingFields is returned before any store access when a required
	// request field is absent.
	ErrMissingFields = errors.New("missing fields")
	// ErrInvalidRequest wraps malformed values such as an unparseable time.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrAllSlotsFull means no slot on the date is open with spare capacity.
	ErrAllSlotsFull = errors.New("all slots full")
	// ErrUnknownItem means a requested item is not on the day's menu.
	ErrUnknownItem = errors.New("item not on menu")
	// ErrTotalMismatch means the client's total disagrees with menu prices.
	ErrTotalMismatch = errors.New("total does not match menu prices")
)

// AllocationStore is the persistence the allocator needs.  Commit must apply
// the reservation, the order and the balance charge atomically.
type AllocationStore interface {
	MenuForDate(ctx context.Context, date string) (model.Menu, error)
	ItemCountsForDate(ctx context.Context, date string) (map[string]int, error)
	FindOpenSlot(ctx context.Context, date, start, mealType string) (model.Slot, error)
	EarliestOpenSlot(ctx context.Context, date, mealType string) (model.Slot, error)
	Commit(ctx context.Context, res repository.Reservation) (model.Order, model.Slot, error)
}

// OrderPublisher receives an event for every confirmed order.
type OrderPublisher interface {
	PublishOrderConfirmed(ctx context.Context, ev queue.OrderConfirmedEvent) error
}

// AllocationRequest is one student's attempt to order for a pickup slot.
type AllocationRequest struct {
	StudentID      uint64
	Date           string
	MealType       string // optional slot filter
	PreferredStart string
	Items          []string // multiset of item names
	PayLater       *bool
	TotalCents     *int64 // optional; checked against menu prices when set
}

// AllocationKind distinguishes a committed order from a suggestion.
type AllocationKind string

const (
	Confirmed AllocationKind = "confirmed"
	Fallback  AllocationKind = "fallback"
)

// Allocation is the outcome of a successful Allocate call.  For Fallback the
// slot is only a suggestion: nothing was reserved and Order is nil.
type Allocation struct {
	Kind    AllocationKind
	Order   *model.Order
	Slot    model.Slot
	Message string
}

// SlotAllocator assigns students to pickup slots under a fixed capacity.
type SlotAllocator struct {
	store     AllocationStore
	publisher OrderPublisher
	log       *zap.Logger
	now       func() time.Time
}

// NewSlotAllocator wires the allocator.  publisher may be nil.
func NewSlotAllocator(store AllocationStore, publisher OrderPublisher, log *zap.Logger) *SlotAllocator {
	if store == nil {
		panic("nil store passed to NewSlotAllocator")
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &SlotAllocator{store: store, publisher: publisher, log: log.Named("allocator"), now: time.Now}
}

// Allocate places an order on the preferred slot if it is open with spare
// capacity.  Otherwise it suggests the earliest open slot without reserving
// it; the caller confirms by calling again with that slot's start time.
//
// Errors: ErrMissingFields, ErrInvalidRequest, ErrUnknownItem,
// ErrTotalMismatch, repository.ErrMenuNotFound, *repository.ItemCapError,
// ErrAllSlotsFull and repository.ErrSlotJustFilled.  Anything else is a
// store failure.
func (a *SlotAllocator) Allocate(ctx context.Context, req AllocationRequest) (Allocation, error) {
	requested := model.CountItems(trimAll(req.Items))
	if req.StudentID == 0 || strings.TrimSpace(req.Date) == "" || strings.TrimSpace(req.PreferredStart) == "" ||
		len(requested) == 0 || req.PayLater == nil {
		return Allocation{}, ErrMissingFields
	}
	date, err := model.ParseDate(req.Date)
	if err != nil {
		return Allocation{}, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	start, err := model.NormalizeClock(req.PreferredStart)
	if err != nil {
		return Allocation{}, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	mealType := strings.ToLower(strings.TrimSpace(req.MealType))
	if mealType != "" && !model.ValidMealType(mealType) {
		return Allocation{}, fmt.Errorf("%w: unknown meal type %q", ErrInvalidRequest, req.MealType)
	}

	menu, err := a.store.MenuForDate(ctx, date)
	if err != nil {
		return Allocation{}, err
	}
	names := orderedNames(req.Items)
	items := make([]model.OrderItem, 0, len(names))
	caps := make(map[string]int, len(names))
	var total int64
	for _, name := range names {
		mi, ok := menu.Item(name)
		if !ok {
			return Allocation{}, fmt.Errorf("%w: %s", ErrUnknownItem, name)
		}
		qty := requested[name]
		items = append(items, model.OrderItem{Name: name, Quantity: qty, UnitPriceCents: mi.PriceCents})
		caps[name] = mi.MaxPerDay
		total += mi.PriceCents * int64(qty)
	}
	if req.TotalCents != nil && *req.TotalCents != total {
		return Allocation{}, fmt.Errorf("%w: expected %d cents", ErrTotalMismatch, total)
	}

	// Advisory check so over-cap requests fail without taking locks.
	// Commit repeats it under the day's menu lock.
	counts, err := a.store.ItemCountsForDate(ctx, date)
	if err != nil {
		return Allocation{}, fmt.Errorf("item counts: %w", err)
	}
	if err := repository.CheckItemCaps(names, requested, counts, caps); err != nil {
		a.log.Info("item cap reached", zap.String("date", date), zap.Uint64("student_id", req.StudentID), zap.Error(err))
		return Allocation{}, err
	}

	slot, err := a.store.FindOpenSlot(ctx, date, start, mealType)
	if errors.Is(err, repository.ErrSlotNotFound) {
		fb, ferr := a.store.EarliestOpenSlot(ctx, date, mealType)
		if errors.Is(ferr, repository.ErrSlotNotFound) {
			a.log.Info("all slots full", zap.String("date", date), zap.String("preferred", start))
			return Allocation{}, ErrAllSlotsFull
		}
		if ferr != nil {
			return Allocation{}, fmt.Errorf("earliest open slot: %w", ferr)
		}
		a.log.Info("suggesting fallback slot",
			zap.String("date", date), zap.String("preferred", start), zap.String("fallback", fb.Start))
		return Allocation{
			Kind:    Fallback,
			Slot:    fb,
			Message: fmt.Sprintf("Slot %s is full or closed. Next available slot is %s.", start, fb.Label()),
		}, nil
	}
	if err != nil {
		return Allocation{}, fmt.Errorf("find slot: %w", err)
	}

	order, reserved, err := a.store.Commit(ctx, repository.Reservation{
		Reference:  uuid.NewString(),
		UserID:     req.StudentID,
		Date:       date,
		SlotID:     slot.ID,
		Items:      items,
		TotalCents: total,
		PayLater:   *req.PayLater,
		CreatedAt:  a.now().UTC(),
	})
	if err != nil {
		if errors.Is(err, repository.ErrSlotJustFilled) || errors.Is(err, repository.ErrItemCapExceeded) {
			a.log.Info("reservation lost race", zap.String("date", date), zap.String("slot", slot.Start), zap.Error(err))
			return Allocation{}, err
		}
		return Allocation{}, fmt.Errorf("commit reservation: %w", err)
	}

	a.log.Info("order confirmed",
		zap.String("reference", order.Reference),
		zap.Uint64("order_id", order.ID),
		zap.Uint64("student_id", req.StudentID),
		zap.String("date", date),
		zap.String("slot", reserved.Label()),
		zap.Int64("total_cents", order.TotalCents),
		zap.Bool("pay_later", order.PayLater))
	a.publish(ctx, order)

	return Allocation{Kind: Confirmed, Order: &order, Slot: reserved}, nil
}

func (a *SlotAllocator) publish(ctx context.Context, o model.Order) {
	if a.publisher == nil {
		return
	}
	ev := queue.OrderConfirmedEvent{
		OrderID:     o.ID,
		Reference:   o.Reference,
		UserID:      o.UserID,
		Date:        o.Date,
		SlotLabel:   o.SlotLabel,
		TotalCents:  o.TotalCents,
		PayLater:    o.PayLater,
		ConfirmedAt: o.CreatedAt.UTC().Format(time.RFC3339),
	}
	for _, it := range o.Items {
		ev.Items = append(ev.Items, queue.EventItem{Name: it.Name, Quantity: it.Quantity})
	}
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 3*time.Second)
	defer cancel()
	if err := a.publisher.PublishOrderConfirmed(pctx, ev); err != nil {
		a.log.Warn("order event not published", zap.String("reference", o.Reference), zap.Error(err))
	}
}

func trimAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		out = append(out, strings.TrimSpace(s))
	}
	return out
}

// orderedNames returns the distinct non-blank names in first-seen order.
func orderedNames(in []string) []string {
	seen := make(map[string]bool, len(in))
	var out []string
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
