package handler // handler defines http handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/canteen-ordering/internal/model"
	"github.com/iliyamo/canteen-ordering/internal/repository"
	"github.com/iliyamo/canteen-ordering/internal/service"
)

// dbTimeout bounds every store call made from a handler.
const dbTimeout = 5 * time.Second

// CachePurger drops cached GET responses after a write changes what they
// would return.  *middleware.ResponseCache satisfies it.
type CachePurger interface {
	Purge(ctx context.Context) error
}

// getUserID extracts the user_id from echo.Context and converts it to uint64
func getUserID(c echo.Context) (uint64, error) {
	switch t := c.Get("user_id").(type) {
	case uint64:
		return t, nil
	case int:
		return uint64(t), nil
	case int64:
		return uint64(t), nil
	case float64:
		return uint64(t), nil
	case string:
		if n, err := strconv.ParseUint(t, 10, 64); err == nil {
			return n, nil
		}
	}
	return 0, errors.New("invalid user_id in context")
}

// parseID reads a positive numeric path parameter.
func parseID(c echo.Context, name string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return id, true
}

// dayParam resolves an optional YYYY-MM-DD value, defaulting to today in loc.
func dayParam(raw string, now time.Time, loc *time.Location) (string, error) {
	if raw == "" {
		return model.Today(now, loc), nil
	}
	return model.ParseDate(raw)
}

// purge clears the response cache; failures only cost freshness.
func purge(ctx context.Context, cache CachePurger, log *zap.Logger) {
	if cache == nil {
		return
	}
	if err := cache.Purge(ctx); err != nil && log != nil {
		log.Warn("cache purge failed", zap.Error(err))
	}
}

// allocationError translates allocator failures into HTTP responses.
// Conflicts carry a kind so clients can tell them apart.
func allocationError(c echo.Context, log *zap.Logger, err error) error {
	var capErr *repository.ItemCapError
	switch {
	case errors.Is(err, service.ErrMissingFields):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "missing fields"})
	case errors.Is(err, service.ErrInvalidRequest),
		errors.Is(err, service.ErrUnknownItem),
		errors.Is(err, service.ErrTotalMismatch):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	case errors.Is(err, repository.ErrMenuNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "no menu for this date"})
	case errors.Is(err, service.ErrAllSlotsFull):
		return c.JSON(http.StatusConflict, echo.Map{"error": "all slots are full", "kind": "all_slots_full"})
	case errors.Is(err, repository.ErrSlotJustFilled):
		return c.JSON(http.StatusConflict, echo.Map{"error": "slot just filled, please retry", "kind": "slot_just_filled"})
	case errors.As(err, &capErr):
		return c.JSON(http.StatusConflict, echo.Map{
			"error":     capErr.Error(),
			"kind":      "item_cap_exceeded",
			"item":      capErr.Item,
			"remaining": capErr.Remaining,
		})
	}
	if log != nil {
		log.Error("allocation failed", zap.Error(err))
	}
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "order failed"})
}
