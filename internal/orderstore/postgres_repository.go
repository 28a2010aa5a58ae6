package orderstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/avask/shopflow/internal/domain"
)

type Repository struct {
	db *sql.DB
}

func NewRepository(cred *Credentials) (*Repository, error) {
	psqlconn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		cred.Host,
		cred.Port,
		cred.User,
		cred.Password,
		cred.DBName)

	db, err := sql.Open("postgres", psqlconn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if e2 := db.Ping(); e2 != nil {
		return nil, fmt.Errorf("failed to ping database: %w", e2)
	}

	db.SetMaxOpenConns(100)
	db.SetMaxIdleConns(10)
	return &Repository{db: db}, nil
}

func (r *Repository) RunMigrations(cred *Credentials) error {
	driver, err := postgres.WithInstance(r.db, &postgres.Config{
		MigrationsTable: "orders_schema_migrations",
	})
	if err != nil {
		return fmt.Errorf("could not create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		fmt.Sprintf("file://%s", cred.MigrationsDirPath),
		"postgres",
		driver,
	)
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}

	if e2 := m.Up(); e2 != nil && !errors.Is(e2, migrate.ErrNoChange) {
		return fmt.Errorf("could not run migrations: %w", e2)
	}

	return nil
}

func (r *Repository) CreateOrder(ctx context.Context, order *domain.Order) error {
	itemsJSON, err := json.Marshal(order.Items)
	if err != nil {
		return fmt.Errorf("failed to marshal order items: %w", err)
	}

	query := `INSERT INTO orders (id, owner_id, fingerprint, total_amount, currency, status, note, items, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW())`

	_, insertErr := r.db.ExecContext(ctx, query,
		order.ID,
		order.OwnerID,
		order.Fingerprint,
		order.TotalAmount,
		order.Currency,
		order.Status,
		order.Note,
		itemsJSON)

	if insertErr != nil {
		var pqErr *pq.Error
		if errors.As(insertErr, &pqErr) && pqErr.Code == "23505" {
			return ErrDuplicateFingerprint
		}
		return fmt.Errorf("insert order: %w", insertErr)
	}
	return nil
}

const orderColumns = `id, owner_id, fingerprint, total_amount, currency, status, note, items, created_at, updated_at`

func (r *Repository) GetOrderByID(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	order, err := scanOrder(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query order by id: %w", err)
	}
	return order, nil
}

func (r *Repository) ListOrdersByOwner(ctx context.Context, ownerID string) ([]*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE owner_id = $1 ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("query orders by owner: %w", err)
	}
	defer rows.Close()

	var orders []*domain.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order row: %w", err)
		}
		orders = append(orders, order)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return orders, nil
}

func (r *Repository) FindActiveOrderForOwner(ctx context.Context, ownerID string) (*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders
	          WHERE owner_id = $1 AND status IN ('CONFIRMED', 'PROCESSING', 'SHIPPED', 'DELIVERED')
	          ORDER BY created_at DESC LIMIT 1`

	order, err := scanOrder(r.db.QueryRowContext(ctx, query, ownerID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query active order for owner: %w", err)
	}
	return order, nil
}

func (r *Repository) FindPendingOrderByFingerprint(ctx context.Context, fingerprint string) (*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders
	          WHERE fingerprint = $1 AND status = 'PENDING' LIMIT 1`

	order, err := scanOrder(r.db.QueryRowContext(ctx, query, fingerprint))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query pending order by fingerprint: %w", err)
	}
	return order, nil
}

// ConfirmOrder flips PENDING -> CONFIRMED and writes the outbox event in
// one transaction, so an order is never confirmed without its event (and
// never gets two events on duplicate callbacks).
func (r *Repository) ConfirmOrder(ctx context.Context, id uuid.UUID) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin confirm tx: %w", err)
	}
	defer tx.Rollback()

	update := `UPDATE orders SET status = 'CONFIRMED', updated_at = NOW()
	           WHERE id = $1 AND status = 'PENDING'
	           RETURNING owner_id, fingerprint, total_amount, currency, items`

	var (
		ownerID     string
		fingerprint string
		totalAmount int64
		currency    string
		itemsJSON   []byte
	)
	err = tx.QueryRowContext(ctx, update, id).Scan(&ownerID, &fingerprint, &totalAmount, &currency, &itemsJSON)
	if errors.Is(err, sql.ErrNoRows) {
		// Already confirmed (or not pending): duplicate callbacks land
		// here and must be a no-op.
		exists, existsErr := r.orderExists(ctx, id)
		if existsErr != nil {
			return false, existsErr
		}
		if !exists {
			return false, ErrOrderNotFound
		}
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("confirm order: %w", err)
	}

	payload, err := json.Marshal(map[string]interface{}{
		"order_id":     id.String(),
		"owner_id":     ownerID,
		"fingerprint":  fingerprint,
		"total_amount": totalAmount,
		"currency":     currency,
		"items":        json.RawMessage(itemsJSON),
		"confirmed_at": time.Now(),
	})
	if err != nil {
		return false, fmt.Errorf("marshal outbox payload: %w", err)
	}

	insert := `INSERT INTO order_events (aggregate_id, event_type, payload, created_at)
	           VALUES ($1, $2, $3, NOW())`
	if _, err := tx.ExecContext(ctx, insert, id.String(), "order.confirmed", payload); err != nil {
		return false, fmt.Errorf("insert outbox event: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit confirm tx: %w", err)
	}
	return true, nil
}

func (r *Repository) CancelOrder(ctx context.Context, id uuid.UUID, note string) (bool, error) {
	query := `UPDATE orders SET status = 'CANCELLED', note = $2, updated_at = NOW()
	          WHERE id = $1 AND status IN ('PENDING')`

	result, err := r.db.ExecContext(ctx, query, id, note)
	if err != nil {
		return false, fmt.Errorf("cancel order: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("cancel order rows affected: %w", err)
	}
	if affected == 0 {
		exists, existsErr := r.orderExists(ctx, id)
		if existsErr != nil {
			return false, existsErr
		}
		if !exists {
			return false, ErrOrderNotFound
		}
		return false, nil
	}
	return true, nil
}

func (r *Repository) GetUnprocessedEvents(ctx context.Context, limit int) ([]*OutboxEvent, error) {
	query := `SELECT id, aggregate_id, event_type, payload, created_at
	          FROM order_events WHERE processed_at IS NULL
	          ORDER BY id ASC LIMIT $1`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query unprocessed events: %w", err)
	}
	defer rows.Close()

	var events []*OutboxEvent
	for rows.Next() {
		var event OutboxEvent
		if err := rows.Scan(&event.ID, &event.AggregateID, &event.EventType, &event.Payload, &event.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan event row: %w", err)
		}
		events = append(events, &event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return events, nil
}

func (r *Repository) MarkEventAsProcessed(ctx context.Context, eventID int64) error {
	query := `UPDATE order_events SET processed_at = NOW() WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, eventID); err != nil {
		return fmt.Errorf("mark event processed: %w", err)
	}
	return nil
}

func (r *Repository) Close() error {
	return r.db.Close()
}

func (r *Repository) orderExists(ctx context.Context, id uuid.UUID) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM orders WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check order exists: %w", err)
	}
	return exists, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanOrder(row rowScanner) (*domain.Order, error) {
	var order domain.Order
	var itemsJSON []byte
	if err := row.Scan(
		&order.ID,
		&order.OwnerID,
		&order.Fingerprint,
		&order.TotalAmount,
		&order.Currency,
		&order.Status,
		&order.Note,
		&itemsJSON,
		&order.CreatedAt,
		&order.UpdatedAt,
	); err != nil {
		return nil, err
	}

	if err := json.Unmarshal(itemsJSON, &order.Items); err != nil {
		return nil, fmt.Errorf("unmarshal order items: %w", err)
	}
	return &order, nil
}
