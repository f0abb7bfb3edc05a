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
	"github.com/iliyamo/canteen-ordering/internal/service"
)

// SlotManager is the slot lifecycle exposed over HTTP.  *service.SlotService
// satisfies it.
type SlotManager interface {
	ListDay(ctx context.Context, date string) ([]model.Slot, error)
	Template(ctx context.Context) ([]model.SlotTemplateEntry, error)
	ReplaceTemplate(ctx context.Context, entries []model.SlotTemplateEntry) ([]model.SlotTemplateEntry, error)
	MaterializeDay(ctx context.Context, date string) ([]model.Slot, error)
	SetStatus(ctx context.Context, id uint64, status model.SlotStatus) (model.Slot, error)
}

type SlotHandler struct {
	Slots SlotManager
	Cache CachePurger
	Loc   *time.Location
	Log   *zap.Logger
	now   func() time.Time
}

func NewSlotHandler(slots SlotManager, cache CachePurger, loc *time.Location, log *zap.Logger) *SlotHandler {
	if slots == nil {
		panic("nil slot manager passed to NewSlotHandler")
	}
	if loc == nil {
		loc = time.Local
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &SlotHandler{Slots: slots, Cache: cache, Loc: loc, Log: log.Named("slots"), now: time.Now}
}

// List returns the slots for ?date= (today by default) with live usage.
func (h *SlotHandler) List(c echo.Context) error {
	date, err := dayParam(strings.TrimSpace(c.QueryParam("date")), h.now(), h.Loc)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "date must be YYYY-MM-DD"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	slots, err := h.Slots.ListDay(ctx, date)
	if err != nil {
		return h.fail(c, "list slots", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"date": date, "slots": slots})
}

// Template returns the slot template used for materialization.
func (h *SlotHandler) Template(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	entries, err := h.Slots.Template(ctx)
	if err != nil {
		return h.fail(c, "load template", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"slots": entries})
}

type templateReq struct {
	Slots []model.SlotTemplateEntry `json:"slots"`
}

// ReplaceTemplate stores a new template.  Daily slots change only on the
// next materialization.
func (h *SlotHandler) ReplaceTemplate(c echo.Context) error {
	var req templateReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	entries, err := h.Slots.ReplaceTemplate(ctx, req.Slots)
	if err != nil {
		return h.fail(c, "replace template", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"slots": entries})
}

type materializeReq struct {
	Date string `json:"date"`
}

// Materialize rebuilds a day's slots from the template, discarding usage.
func (h *SlotHandler) Materialize(c echo.Context) error {
	var req materializeReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	date, err := dayParam(strings.TrimSpace(req.Date), h.now(), h.Loc)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "date must be YYYY-MM-DD"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	slots, err := h.Slots.MaterializeDay(ctx, date)
	if err != nil {
		return h.fail(c, "materialize", err)
	}
	purge(ctx, h.Cache, h.Log)
	return c.JSON(http.StatusOK, echo.Map{"date": date, "slots": slots})
}

type slotStatusReq struct {
	Status string `json:"status"`
}

// SetStatus closes or reopens a slot.
func (h *SlotHandler) SetStatus(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid slot id"})
	}
	var req slotStatusReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	slot, err := h.Slots.SetStatus(ctx, id, model.SlotStatus(strings.ToLower(strings.TrimSpace(req.Status))))
	if err != nil {
		return h.fail(c, "set slot status", err)
	}
	purge(ctx, h.Cache, h.Log)
	return c.JSON(http.StatusOK, slot)
}

func (h *SlotHandler) fail(c echo.Context, op string, err error) error {
	switch {
	case errors.Is(err, service.ErrInvalidRequest), errors.Is(err, service.ErrInvalidTemplate):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	case errors.Is(err, repository.ErrSlotNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "slot not found"})
	}
	h.Log.Error(op, zap.Error(err))
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": op + " failed"})
}
