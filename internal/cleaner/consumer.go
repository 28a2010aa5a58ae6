package cleaner

import (
	"context"
	"encoding/json"
	"errors"
	"log"

	"github.com/segmentio/kafka-go"

	"github.com/avask/shopflow/internal/cache"
	"github.com/avask/shopflow/internal/repository"
)

// Consumer deletes a cart once its order is confirmed. This is the
// "deleted by explicit checkout completion" path of the cart lifecycle;
// the reaper covers the abandoned ones.
type Consumer struct {
	repo   repository.CartRepository
	cache  cache.SnapshotCache
	reader *kafka.Reader
}

func NewConsumer(repo repository.CartRepository, snapCache cache.SnapshotCache, brokers ...string) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    "order-events",
		GroupID:  "cart-cleanup",
		MaxBytes: 10e6, // 10MB
	})
	return &Consumer{repo: repo, cache: snapCache, reader: reader}
}

func (c *Consumer) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		c.processMessage(ctx)
	}
}

func (c *Consumer) Close() {
	if err := c.reader.Close(); err != nil {
		log.Printf("error closing kafka reader: %v", err)
	}
}

type orderEvent struct {
	OrderID string `json:"order_id"`
	OwnerID string `json:"owner_id"`
}

func (c *Consumer) processMessage(ctx context.Context) {
	m, err := c.reader.ReadMessage(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		log.Printf("error reading message: %v", err)
		return
	}
	c.handle(ctx, m)
}

func (c *Consumer) handle(ctx context.Context, m kafka.Message) {
	if eventType(m) != "order.confirmed" {
		return
	}

	var event orderEvent
	if errUnmarshal := json.Unmarshal(m.Value, &event); errUnmarshal != nil {
		log.Printf("error parsing message: %v", errUnmarshal)
		return
	}
	if event.OwnerID == "" {
		log.Printf("order event %s missing owner_id", event.OrderID)
		return
	}

	errDelete := c.repo.DeleteCart(ctx, event.OwnerID)
	if errDelete != nil && !errors.Is(errDelete, repository.ErrCartNotFound) {
		log.Printf("failed to delete cart for %s: %v", event.OwnerID, errDelete)
	}

	if errCache := c.cache.Delete(ctx, event.OwnerID); errCache != nil {
		log.Printf("failed to delete snapshot cache for %s: %v", event.OwnerID, errCache)
	}
}

func eventType(m kafka.Message) string {
	for _, h := range m.Headers {
		if h.Key == "event_type" {
			return string(h.Value)
		}
	}
	return ""
}
