package model

// DefaultSlotCapacity applies to template entries that omit a capacity.
const DefaultSlotCapacity = 5

// SlotTemplateEntry is one date-independent slot definition.  A day's
// concrete slots are materialized from the ordered list of entries.
type SlotTemplateEntry struct {
	Position int    `json:"position"`
	Start    string `json:"start"`
	End      string `json:"end"`
	MealType string `json:"type"`
	Capacity int    `json:"capacity"`
}
