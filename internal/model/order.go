package model

import "time"

// Order and payment statuses.
const (
	OrderConfirmed = "confirmed"

	PaymentPaid   = "paid"
	PaymentUnpaid = "unpaid"
)

// OrderItem is one line of an order: an item name and how many were ordered.
type OrderItem struct {
	Name           string `json:"name"`
	Quantity       int    `json:"quantity"`
	UnitPriceCents int64  `json:"unit_price_cents"`
}

// Order is a confirmed pickup order bound to exactly one slot.  SlotLabel
// duplicates the slot's "start-end" window so listings survive a later
// re-materialization of the day's slots.
type Order struct {
	ID            uint64      `json:"id"`
	Reference     string      `json:"reference"`
	UserID        uint64      `json:"user_id"`
	SlotID        *uint64     `json:"slot_id,omitempty"`
	SlotLabel     string      `json:"slot"`
	Date          string      `json:"date"`
	Items         []OrderItem `json:"items"`
	TotalCents    int64       `json:"total_cents"`
	PayLater      bool        `json:"pay_later"`
	Status        string      `json:"status"`
	PaymentStatus string      `json:"payment_status"`
	CreatedAt     time.Time   `json:"created_at"`

	// Populated on admin listings only.
	UserName string `json:"user_name,omitempty"`
	UserRoll string `json:"user_roll,omitempty"`
}

// PaymentStatusFor returns the payment status a new order starts in.
func PaymentStatusFor(payLater bool) string {
	if payLater {
		return PaymentUnpaid
	}
	return PaymentPaid
}

// CountItems folds a multiset of item names into per-name quantities.
// Blank names are dropped.
func CountItems(names []string) map[string]int {
	out := make(map[string]int, len(names))
	for _, n := range names {
		if n == "" {
			continue
		}
		out[n]++
	}
	return out
}

// Due summarises what a student owes from unpaid pay-later orders.
type Due struct {
	UserID       uint64 `json:"user_id"`
	Name         string `json:"name"`
	Roll         string `json:"roll"`
	Phone        string `json:"phone"`
	BalanceCents int64  `json:"balance_cents"`
	UnpaidCents  int64  `json:"unpaid_cents"`
	UnpaidOrders int    `json:"unpaid_orders"`
}
