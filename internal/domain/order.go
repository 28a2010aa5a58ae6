package domain

import (
	"time"

	"github.com/google/uuid"
)

type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "PENDING"
	OrderStatusConfirmed  OrderStatus = "CONFIRMED"
	OrderStatusCancelled  OrderStatus = "CANCELLED"
	OrderStatusProcessing OrderStatus = "PROCESSING"
	OrderStatusShipped    OrderStatus = "SHIPPED"
	OrderStatusDelivered  OrderStatus = "DELIVERED"
)

func (s OrderStatus) String() string {
	return string(s)
}

// IsTerminal reports whether no further status transitions are allowed
// from the cart/session subsystem's point of view.
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusCancelled || s == OrderStatusDelivered
}

// IsActive reports whether an order in this status means the owner's cart
// converted into a real purchase. The reaper must never delete carts whose
// owner has an active order.
func (s OrderStatus) IsActive() bool {
	switch s {
	case OrderStatusConfirmed, OrderStatusProcessing, OrderStatusShipped, OrderStatusDelivered:
		return true
	}
	return false
}

type OrderItem struct {
	ProductID   string `json:"product_id"`
	ProductName string `json:"product_name"`
	Quantity    int    `json:"quantity"`
	UnitPrice   int64  `json:"unit_price"`
	LineTotal   int64  `json:"line_total"`
}

type Order struct {
	ID          uuid.UUID
	OwnerID     string
	Fingerprint string
	TotalAmount int64
	Currency    string
	Status      OrderStatus
	Note        string
	Items       []OrderItem
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
