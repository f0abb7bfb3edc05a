// Package queue carries order events over RabbitMQ: a publisher used after an
// order is confirmed and a consumer that prints kitchen tickets.
package queue

// OrderConfirmedEvent is published once per confirmed order.  It holds enough
// for the kitchen to prepare the order without querying the database.
type OrderConfirmedEvent struct {
	OrderID     uint64      `json:"order_id"`
	Reference   string      `json:"reference"`
	UserID      uint64      `json:"user_id"`
	Date        string      `json:"date"`
	SlotLabel   string      `json:"slot"`
	Items       []EventItem `json:"items"`
	TotalCents  int64       `json:"total_cents"`
	PayLater    bool        `json:"pay_later"`
	ConfirmedAt string      `json:"confirmed_at"`
}

// EventItem is one order line in an event.
type EventItem struct {
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
}
