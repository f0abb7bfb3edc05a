package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/canteen-ordering/internal/model"
	"github.com/iliyamo/canteen-ordering/internal/repository"
)

// MenuStore reads and replaces daily menus.
type MenuStore interface {
	ForDate(ctx context.Context, date string) (model.Menu, error)
	Upsert(ctx context.Context, date string, items []model.MenuItem) (model.Menu, error)
}

type MenuHandler struct {
	Menus MenuStore
	Cache CachePurger
	Loc   *time.Location
	Log   *zap.Logger
	now   func() time.Time
}

func NewMenuHandler(menus MenuStore, cache CachePurger, loc *time.Location, log *zap.Logger) *MenuHandler {
	if menus == nil {
		panic("nil store passed to NewMenuHandler")
	}
	if loc == nil {
		loc = time.Local
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &MenuHandler{Menus: menus, Cache: cache, Loc: loc, Log: log.Named("menu"), now: time.Now}
}

// Today returns the menu for the current canteen day.
func (h *MenuHandler) Today(c echo.Context) error {
	return h.respond(c, model.Today(h.now(), h.Loc))
}

// ByDate returns the menu for :date.
func (h *MenuHandler) ByDate(c echo.Context) error {
	date, err := model.ParseDate(c.Param("date"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "date must be YYYY-MM-DD"})
	}
	return h.respond(c, date)
}

func (h *MenuHandler) respond(c echo.Context, date string) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	m, err := h.Menus.ForDate(ctx, date)
	if err != nil {
		if errors.Is(err, repository.ErrMenuNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "no menu for this date"})
		}
		h.Log.Error("load menu", zap.String("date", date), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, m)
}

type upsertMenuReq struct {
	Items []model.MenuItem `json:"items"`
}

// Upsert replaces the items on :date, creating the menu when needed.
func (h *MenuHandler) Upsert(c echo.Context) error {
	date, err := model.ParseDate(c.Param("date"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "date must be YYYY-MM-DD"})
	}
	var req upsertMenuReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	items, err := normalizeMenuItems(req.Items)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	m, err := h.Menus.Upsert(ctx, date, items)
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return c.JSON(http.StatusConflict, echo.Map{"error": "duplicate item name"})
		}
		h.Log.Error("upsert menu", zap.String("date", date), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "save menu failed"})
	}
	purge(ctx, h.Cache, h.Log)
	h.Log.Info("menu saved", zap.String("date", date), zap.Int("items", len(items)))
	return c.JSON(http.StatusOK, m)
}

func normalizeMenuItems(in []model.MenuItem) ([]model.MenuItem, error) {
	if len(in) == 0 {
		return nil, errors.New("items required")
	}
	out := make([]model.MenuItem, 0, len(in))
	seen := make(map[string]bool, len(in))
	for i, it := range in {
		it.ID = 0
		it.Name = strings.TrimSpace(it.Name)
		it.MealType = strings.ToLower(strings.TrimSpace(it.MealType))
		if it.Name == "" {
			return nil, fmt.Errorf("item %d: name required", i+1)
		}
		if seen[it.Name] {
			return nil, fmt.Errorf("item %d: duplicate name %q", i+1, it.Name)
		}
		seen[it.Name] = true
		if it.PriceCents < 0 {
			return nil, fmt.Errorf("item %d: price_cents must not be negative", i+1)
		}
		if it.MealType == "" {
			it.MealType = model.MealLunch
		}
		if !model.ValidMealType(it.MealType) {
			return nil, fmt.Errorf("item %d: type must be lunch or snack", i+1)
		}
		if it.MaxPerDay < 0 {
			return nil, fmt.Errorf("item %d: max_per_day must not be negative", i+1)
		}
		if it.MaxPerDay == 0 {
			it.MaxPerDay = model.DefaultMaxPerDay
		}
		out = append(out, it)
	}
	return out, nil
}
