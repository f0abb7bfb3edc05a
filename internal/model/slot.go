package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// SlotStatus is the lifecycle state of a pickup slot.
type SlotStatus string

const (
	SlotOpen   SlotStatus = "open"
	SlotFull   SlotStatus = "full"
	SlotClosed SlotStatus = "closed"
)

// Valid reports whether s is one of the known statuses.
func (s SlotStatus) Valid() bool {
	switch s {
	case SlotOpen, SlotFull, SlotClosed:
		return true
	}
	return false
}

// Meal types used to tag menu items and slots.
const (
	MealLunch = "lunch"
	MealSnack = "snack"
)

// ValidMealType reports whether t is a known meal type.
func ValidMealType(t string) bool { return t == MealLunch || t == MealSnack }

// DateLayout is the calendar day format used for slot, menu and order dates.
const DateLayout = "2006-01-02"

// Slot is a concrete pickup window on a specific date.  CurrentOrders never
// exceeds MaxOrders.  Status is full exactly when CurrentOrders reaches
// MaxOrders unless an administrator has closed the slot, in which case it
// stays closed regardless of usage.
type Slot struct {
	ID            uint64     `json:"id"`
	Date          string     `json:"date"`
	Start         string     `json:"start"`
	End           string     `json:"end"`
	MealType      string     `json:"meal_type"`
	MaxOrders     int        `json:"max_orders"`
	CurrentOrders int        `json:"current_orders"`
	Status        SlotStatus `json:"status"`
}

// Label is the human readable "start-end" form stored on orders.
func (s Slot) Label() string { return s.Start + "-" + s.End }

// Remaining returns the spare capacity of the slot.
func (s Slot) Remaining() int {
	if s.CurrentOrders >= s.MaxOrders {
		return 0
	}
	return s.MaxOrders - s.CurrentOrders
}

// Available reports whether a reservation could be taken on the slot.
func (s Slot) Available() bool { return s.Status == SlotOpen && s.CurrentOrders < s.MaxOrders }

// DeriveStatus computes the status a slot should report for the given usage.
// closed is sticky; otherwise the slot is full at capacity and open below it.
func DeriveStatus(current, max int, status SlotStatus) SlotStatus {
	if status == SlotClosed {
		return SlotClosed
	}
	if current >= max {
		return SlotFull
	}
	return SlotOpen
}

var clockLayouts = []string{"15:04", "3:04 PM", "3:04PM", "15:04:05"}

// ErrInvalidClock is returned by NormalizeClock for unparseable times.
var ErrInvalidClock = errors.New("invalid time of day")

// NormalizeClock accepts "13:00", "1:00 PM" or "1:00PM" and returns the
// 24-hour "15:04" form used for storage and comparisons.
func NormalizeClock(s string) (string, error) {
	v := strings.ToUpper(strings.TrimSpace(s))
	if v == "" {
		return "", ErrInvalidClock
	}
	for _, layout := range clockLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t.Format("15:04"), nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidClock, s)
}

// ParseDate validates a YYYY-MM-DD calendar day and returns it unchanged.
func ParseDate(s string) (string, error) {
	s = strings.TrimSpace(s)
	if _, err := time.Parse(DateLayout, s); err != nil {
		return "", fmt.Errorf("invalid date %q: want YYYY-MM-DD", s)
	}
	return s, nil
}

// Today returns the calendar day of now in loc.
func Today(now time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	return now.In(loc).Format(DateLayout)
}
