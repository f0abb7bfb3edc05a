package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/canteen-ordering/internal/middleware"
	"github.com/iliyamo/canteen-ordering/internal/model"
	"github.com/iliyamo/canteen-ordering/internal/repository"
	"github.com/iliyamo/canteen-ordering/internal/service"
)

// Allocator places orders onto pickup slots.
type Allocator interface {
	Allocate(ctx context.Context, req service.AllocationRequest) (service.Allocation, error)
}

// OrderReader is the read side used by student order endpoints.
type OrderReader interface {
	ListByUser(ctx context.Context, userID uint64, date string) ([]model.Order, error)
	GetByIDForUser(ctx context.Context, id, userID uint64) (model.Order, error)
}

// OrderHandler serves the student-facing order endpoints.
type OrderHandler struct {
	Alloc  Allocator
	Orders OrderReader
	QRGen  service.QRGenerator
	Cache  CachePurger
	Loc    *time.Location
	Log    *zap.Logger
	now    func() time.Time
}

// NewOrderHandler wires an OrderHandler and panics on missing dependencies.
// cache may be nil.
func NewOrderHandler(alloc Allocator, orders OrderReader, qr service.QRGenerator, cache CachePurger, loc *time.Location, log *zap.Logger) *OrderHandler {
	if alloc == nil || orders == nil || qr == nil {
		panic("nil dependency passed to NewOrderHandler")
	}
	if loc == nil {
		loc = time.Local
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &OrderHandler{Alloc: alloc, Orders: orders, QRGen: qr, Cache: cache, Loc: loc, Log: log.Named("orders"), now: time.Now}
}

type placeOrderReq struct {
	Items      []string `json:"items"`
	Slot       string   `json:"slot"`
	MealType   string   `json:"meal_type"`
	PayLater   *bool    `json:"pay_later"`
	TotalCents *int64   `json:"total_cents"`
}

// Place books today's order on the requested slot.  A full or closed slot
// yields 200 with a suggested fallback that the client confirms by posting
// again with the suggested start.
func (h *OrderHandler) Place(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req placeOrderReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	res, err := h.Alloc.Allocate(ctx, service.AllocationRequest{
		StudentID:      uid,
		Date:           model.Today(h.now(), h.Loc),
		MealType:       req.MealType,
		PreferredStart: req.Slot,
		Items:          req.Items,
		PayLater:       req.PayLater,
		TotalCents:     req.TotalCents,
	})
	if err != nil {
		return allocationError(c, h.Log, err)
	}
	if res.Kind == service.Fallback {
		middleware.SkipReplay(c)
		return c.JSON(http.StatusOK, echo.Map{
			"result":  string(service.Fallback),
			"message": res.Message,
			"slot":    res.Slot,
		})
	}
	purge(ctx, h.Cache, h.Log)
	return c.JSON(http.StatusCreated, echo.Map{
		"result": string(service.Confirmed),
		"order":  res.Order,
		"slot":   res.Slot,
	})
}

// Mine lists the caller's orders.  ?date=all lists every day; otherwise the
// date defaults to today.
func (h *OrderHandler) Mine(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	date := strings.TrimSpace(c.QueryParam("date"))
	if date != "all" {
		if date, err = dayParam(date, h.now(), h.Loc); err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "date must be YYYY-MM-DD"})
		}
	} else {
		date = ""
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	orders, err := h.Orders.ListByUser(ctx, uid, date)
	if err != nil {
		h.Log.Error("list orders", zap.Uint64("user_id", uid), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"orders": orders})
}

// QR returns the pickup code for one of the caller's orders as a PNG.
func (h *OrderHandler) QR(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, ok := parseID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid order id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	order, err := h.Orders.GetByIDForUser(ctx, id, uid)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "order not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	png, err := h.QRGen.Generate(order)
	if err != nil {
		h.Log.Error("qr encode", zap.String("reference", order.Reference), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "qr failed"})
	}
	return c.Blob(http.StatusOK, "image/png", png)
}
