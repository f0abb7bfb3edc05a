package model

// DefaultMaxPerDay is the daily cap applied to menu items that omit one.
const DefaultMaxPerDay = 200

// MenuItem is a dish offered on a given day along with its daily cap.
type MenuItem struct {
	ID         uint64 `json:"id"`
	Name       string `json:"name"`
	PriceCents int64  `json:"price_cents"`
	MealType   string `json:"type"`
	MaxPerDay  int    `json:"max_per_day"`
}

// Menu is the set of items on sale for one calendar day.
type Menu struct {
	ID    uint64     `json:"id"`
	Date  string     `json:"date"`
	Items []MenuItem `json:"items"`
}

// Item looks up a menu item by exact name.
func (m Menu) Item(name string) (MenuItem, bool) {
	for _, it := range m.Items {
		if it.Name == name {
			return it, true
		}
	}
	return MenuItem{}, false
}
