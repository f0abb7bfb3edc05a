package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/canteen-ordering/internal/model"
	"github.com/iliyamo/canteen-ordering/internal/repository"
)

// OrderLister lists orders across all students.
type OrderLister interface {
	ListByDate(ctx context.Context, date string) ([]model.Order, error)
}

// DuesStore reports and settles pay-later debts.
type DuesStore interface {
	List(ctx context.Context) ([]model.Due, error)
	Clear(ctx context.Context, userID uint64) (int64, error)
}

// AdminHandler serves the canteen staff views.
type AdminHandler struct {
	OrderStore OrderLister
	Dues       DuesStore
	Loc        *time.Location
	Log        *zap.Logger
	now        func() time.Time
}

func NewAdminHandler(orders OrderLister, dues DuesStore, loc *time.Location, log *zap.Logger) *AdminHandler {
	if orders == nil || dues == nil {
		panic("nil store passed to NewAdminHandler")
	}
	if loc == nil {
		loc = time.Local
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &AdminHandler{OrderStore: orders, Dues: dues, Loc: loc, Log: log.Named("admin"), now: time.Now}
}

// Orders lists orders for ?date= (today by default, "all" for every day)
// with the student's name and roll.
func (h *AdminHandler) Orders(c echo.Context) error {
	date := strings.TrimSpace(c.QueryParam("date"))
	if date == "all" {
		date = ""
	} else {
		var err error
		if date, err = dayParam(date, h.now(), h.Loc); err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "date must be YYYY-MM-DD"})
		}
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	orders, err := h.OrderStore.ListByDate(ctx, date)
	if err != nil {
		h.Log.Error("list orders", zap.String("date", date), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"orders": orders})
}

// DuesList returns students with a negative balance or unpaid pay-later
// orders.
func (h *AdminHandler) DuesList(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	dues, err := h.Dues.List(ctx)
	if err != nil {
		h.Log.Error("list dues", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"dues": dues})
}

// ClearDues settles everything the student owes.
func (h *AdminHandler) ClearDues(c echo.Context) error {
	id, ok := parseID(c, "userId")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid user id"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	n, err := h.Dues.Clear(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "user not found"})
		}
		h.Log.Error("clear dues", zap.Uint64("user_id", id), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "clear dues failed"})
	}
	h.Log.Info("dues cleared", zap.Uint64("user_id", id), zap.Int64("orders", n))
	return c.JSON(http.StatusOK, echo.Map{"user_id": id, "orders_paid": n})
}
