package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/iliyamo/canteen-ordering/internal/model"
)

// ErrInvalidTemplate is returned for an empty or malformed slot template.
var ErrInvalidTemplate = errors.New("invalid slot template")

// SlotStore is the slot persistence used by SlotService.
type SlotStore interface {
	ListByDate(ctx context.Context, date string) ([]model.Slot, error)
	ReplaceForDate(ctx context.Context, date string, entries []model.SlotTemplateEntry) ([]model.Slot, error)
	SetStatus(ctx context.Context, id uint64, status model.SlotStatus) (model.Slot, error)
}

// TemplateStore persists the slot template.
type TemplateStore interface {
	Get(ctx context.Context) ([]model.SlotTemplateEntry, error)
	Replace(ctx context.Context, entries []model.SlotTemplateEntry) error
}

// SlotService covers the administrative slot lifecycle: the template, daily
// materialization and status overrides.
type SlotService struct {
	slots     SlotStore
	templates TemplateStore
	log       *zap.Logger
}

// NewSlotService wires a SlotService.
func NewSlotService(slots SlotStore, templates TemplateStore, log *zap.Logger) *SlotService {
	if slots == nil || templates == nil {
		panic("nil store passed to NewSlotService")
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &SlotService{slots: slots, templates: templates, log: log.Named("slots")}
}

// ListDay returns the slots for date in start order.
func (s *SlotService) ListDay(ctx context.Context, date string) ([]model.Slot, error) {
	date, err := model.ParseDate(date)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	return s.slots.ListByDate(ctx, date)
}

// Template returns the current template.
func (s *SlotService) Template(ctx context.Context) ([]model.SlotTemplateEntry, error) {
	return s.templates.Get(ctx)
}

// ReplaceTemplate validates and stores a new template.  Existing daily slots
// are left alone until the next materialization.
func (s *SlotService) ReplaceTemplate(ctx context.Context, entries []model.SlotTemplateEntry) ([]model.SlotTemplateEntry, error) {
	clean, err := NormalizeTemplate(entries)
	if err != nil {
		return nil, err
	}
	if err := s.templates.Replace(ctx, clean); err != nil {
		return nil, err
	}
	s.log.Info("slot template replaced", zap.Int("entries", len(clean)))
	return clean, nil
}

// MaterializeDay replaces every slot on date with fresh slots built from the
// template, all open with zero usage.  Usage recorded on the previous set is
// discarded.
func (s *SlotService) MaterializeDay(ctx context.Context, date string) ([]model.Slot, error) {
	date, err := model.ParseDate(date)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	entries, err := s.templates.Get(ctx)
	if err != nil {
		return nil, err
	}
	clean, err := NormalizeTemplate(entries)
	if err != nil {
		return nil, err
	}
	slots, err := s.slots.ReplaceForDate(ctx, date, clean)
	if err != nil {
		return nil, err
	}
	s.log.Info("slots materialized", zap.String("date", date), zap.Int("slots", len(slots)))
	return slots, nil
}

// SetStatus closes a slot or reopens it.  A reopened slot reports full when
// its usage is already at capacity.
func (s *SlotService) SetStatus(ctx context.Context, id uint64, status model.SlotStatus) (model.Slot, error) {
	if status != model.SlotOpen && status != model.SlotClosed {
		return model.Slot{}, fmt.Errorf("%w: status must be open or closed", ErrInvalidRequest)
	}
	slot, err := s.slots.SetStatus(ctx, id, status)
	if err != nil {
		return model.Slot{}, err
	}
	s.log.Info("slot status changed", zap.Uint64("slot_id", id), zap.String("requested", string(status)),
		zap.String("status", string(slot.Status)))
	return slot, nil
}

// NormalizeTemplate checks a template and returns a cleaned copy: clock
// strings in HH:MM form, meal types lower-cased, missing capacities set to
// the default and positions renumbered.  Starts must be unique and each
// entry must end after it starts.
func NormalizeTemplate(entries []model.SlotTemplateEntry) ([]model.SlotTemplateEntry, error) {
	if len(entries) == 0 {
		return nil, fmt.Errorf("%w: no slots defined", ErrInvalidTemplate)
	}
	out := make([]model.SlotTemplateEntry, 0, len(entries))
	seen := make(map[string]bool, len(entries))
	for i, e := range entries {
		start, err := model.NormalizeClock(e.Start)
		if err != nil {
			return nil, fmt.Errorf("%w: entry %d start: %v", ErrInvalidTemplate, i+1, err)
		}
		end, err := model.NormalizeClock(e.End)
		if err != nil {
			return nil, fmt.Errorf("%w: entry %d end: %v", ErrInvalidTemplate, i+1, err)
		}
		if end <= start {
			return nil, fmt.Errorf("%w: entry %d ends at %s before it starts at %s", ErrInvalidTemplate, i+1, end, start)
		}
		if seen[start] {
			return nil, fmt.Errorf("%w: duplicate start %s", ErrInvalidTemplate, start)
		}
		seen[start] = true
		meal := strings.ToLower(strings.TrimSpace(e.MealType))
		if !model.ValidMealType(meal) {
			return nil, fmt.Errorf("%w: entry %d type must be lunch or snack", ErrInvalidTemplate, i+1)
		}
		capacity := e.Capacity
		if capacity == 0 {
			capacity = model.DefaultSlotCapacity
		}
		if capacity < 0 {
			return nil, fmt.Errorf("%w: entry %d capacity must be positive", ErrInvalidTemplate, i+1)
		}
		out = append(out, model.SlotTemplateEntry{Position: i + 1, Start: start, End: end, MealType: meal, Capacity: capacity})
	}
	return out, nil
}
