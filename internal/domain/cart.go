package domain

import (
	"sort"
	"strings"
	"time"
)

// Selection maps a customization option id to the chosen choice ids.
type Selection map[string][]string

// Key returns a canonical string for the selection so that two selections
// with the same content compare equal regardless of map iteration order.
func (s Selection) Key() string {
	if len(s) == 0 {
		return ""
	}

	optionIDs := make([]string, 0, len(s))
	for id := range s {
		optionIDs = append(optionIDs, id)
	}
	sort.Strings(optionIDs)

	var b strings.Builder
	for i, optionID := range optionIDs {
		if i > 0 {
			b.WriteByte(';')
		}
		choices := append([]string(nil), s[optionID]...)
		sort.Strings(choices)
		b.WriteString(optionID)
		b.WriteByte('=')
		b.WriteString(strings.Join(choices, ","))
	}
	return b.String()
}

type LineItem struct {
	ProductID    string    `bson:"product_id" json:"product_id"`
	Quantity     int       `bson:"quantity" json:"quantity"`
	Selections   Selection `bson:"selections,omitempty" json:"selections,omitempty"`
	SelectionKey string    `bson:"selection_key" json:"-"`
	UnitPrice    int64     `bson:"unit_price" json:"unit_price"` // minor units, derived
	LineTotal    int64     `bson:"line_total" json:"line_total"` // minor units, derived
	AddedAt      time.Time `bson:"added_at" json:"added_at"`
}

// SameLine reports whether two line items describe the same
// (product, customization-set) and therefore must be merged.
func (li LineItem) SameLine(other LineItem) bool {
	return li.ProductID == other.ProductID && li.SelectionKey == other.SelectionKey
}

type Cart struct {
	ID        string     `bson:"_id,omitempty" json:"-"`
	OwnerID   string     `bson:"owner_id" json:"owner_id"`
	Items     []LineItem `bson:"items" json:"items"`
	CreatedAt time.Time  `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time  `bson:"updated_at" json:"updated_at"`
}
