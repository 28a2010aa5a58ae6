package domain

import "time"

type SnapshotItem struct {
	ProductID   string    `json:"product_id"`
	ProductName string    `json:"product_name"`
	Quantity    int       `json:"quantity"`
	Selections  Selection `json:"selections,omitempty"`
	UnitPrice   int64     `json:"unit_price"`
	LineTotal   int64     `json:"line_total"`
}

// CartSnapshot is the priced view of a cart. Prices are recomputed from the
// current catalog whenever the snapshot is rebuilt; a cached snapshot is
// only valid until the next cart mutation for the same owner.
type CartSnapshot struct {
	OwnerID     string         `json:"owner_id"`
	Items       []SnapshotItem `json:"items"`
	TotalAmount int64          `json:"total_amount"`
	Currency    string         `json:"currency"`
	Warnings    []string       `json:"warnings,omitempty"`
	CapturedAt  time.Time      `json:"captured_at"`
}

func (s *CartSnapshot) Empty() bool {
	return s == nil || len(s.Items) == 0
}
