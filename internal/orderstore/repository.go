package orderstore

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/avask/shopflow/internal/domain"
)

var (
	ErrOrderNotFound        = errors.New("order not found")
	ErrDuplicateFingerprint = errors.New("pending order for this cart already exists")
)

type Credentials struct {
	Host              string
	Port              int
	User              string
	Password          string
	DBName            string
	MigrationsDirPath string
}

// OutboxEvent is an order-state change waiting to be published to Kafka.
type OutboxEvent struct {
	ID          int64
	AggregateID string
	EventType   string
	Payload     []byte
	CreatedAt   time.Time
}

type OrderRepository interface {
	CreateOrder(ctx context.Context, order *domain.Order) error
	GetOrderByID(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	ListOrdersByOwner(ctx context.Context, ownerID string) ([]*domain.Order, error)

	// FindActiveOrderForOwner returns the newest order in an active
	// (converted-to-purchase) state, or ErrOrderNotFound.
	FindActiveOrderForOwner(ctx context.Context, ownerID string) (*domain.Order, error)

	// FindPendingOrderByFingerprint returns the PENDING order holding the
	// fingerprint slot, or ErrOrderNotFound. The partial unique index
	// guarantees at most one such row.
	FindPendingOrderByFingerprint(ctx context.Context, fingerprint string) (*domain.Order, error)

	// ConfirmOrder transitions PENDING -> CONFIRMED and records the outbox
	// event in the same transaction. Returns false when the order was
	// already confirmed (duplicate callback, not an error).
	ConfirmOrder(ctx context.Context, id uuid.UUID) (bool, error)

	// CancelOrder transitions a non-terminal order to CANCELLED with a
	// note. Returns false when the order was already in a terminal state.
	CancelOrder(ctx context.Context, id uuid.UUID, note string) (bool, error)

	GetUnprocessedEvents(ctx context.Context, limit int) ([]*OutboxEvent, error)
	MarkEventAsProcessed(ctx context.Context, eventID int64) error

	RunMigrations(*Credentials) error
	Close() error
}
