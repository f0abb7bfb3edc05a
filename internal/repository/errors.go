// Package repository holds the MySQL data access code.  The sentinel
// errors below let the service and handler layers tell business-rule
// rejections apart from store failures with errors.Is.
package repository

import (
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"
)

// ErrNotFound is returned when a row addressed by id does not exist or is
// not visible to the caller.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when a write collides with a unique key.
var ErrConflict = errors.New("conflict")

// ErrMenuNotFound is returned when no menu exists for the requested date.
var ErrMenuNotFound = errors.New("menu not found")

// ErrSlotNotFound is returned when a slot id does not exist.
var ErrSlotNotFound = errors.New("slot not found")

// ErrSlotJustFilled is returned when the conditional capacity increment
// matched no row: another order took the last place, or the slot was
// closed, between lookup and reservation.  Callers retry from lookup.
var ErrSlotJustFilled = errors.New("slot just filled")

// ErrItemCapExceeded is the sentinel matched by *ItemCapError.
var ErrItemCapExceeded = errors.New("item daily cap exceeded")

// ItemCapError reports the item whose daily cap would be exceeded and how
// many units of it may still be ordered today.
type ItemCapError struct {
	Item      string
	Remaining int
}

func (e *ItemCapError) Error() string {
	return fmt.Sprintf("%s: only %d %s left today", ErrItemCapExceeded, e.Remaining, e.Item)
}

// Is lets errors.Is(err, ErrItemCapExceeded) match.
func (e *ItemCapError) Is(target error) bool { return target == ErrItemCapExceeded }

// CheckItemCaps compares requested quantities against each item's daily cap
// given what has already been ordered today.  Items are checked in the order
// of names so the reported item is deterministic.
func CheckItemCaps(names []string, requested, already, caps map[string]int) error {
	for _, name := range names {
		want := requested[name]
		limit := caps[name]
		if already[name]+want > limit {
			remaining := limit - already[name]
			if remaining < 0 {
				remaining = 0
			}
			return &ItemCapError{Item: name, Remaining: remaining}
		}
	}
	return nil
}

// isDuplicate reports a MySQL 1062 duplicate key error.
func isDuplicate(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == 1062
}
