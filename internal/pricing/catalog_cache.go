package pricing

import (
	"sync"
	"time"

	"github.com/avask/shopflow/internal/domain"
)

// DefaultCatalogTTL is short on purpose: the catalog rarely changes, but
// an edit should show up in pricing within a couple of minutes even
// without an explicit invalidation.
const DefaultCatalogTTL = 2 * time.Minute

type catalogRecord struct {
	Product *domain.Product
	Options []domain.Option
}

type catalogEntry struct {
	record    *catalogRecord
	fetchedAt time.Time
}

// CatalogCache is an in-process read-through cache for the per-product
// customization catalog. Expired entries are retained so the resolver can
// fall back to a stale copy when the catalog store is unreachable.
type CatalogCache struct {
	mu      sync.RWMutex
	ttl     time.Duration
	entries map[string]catalogEntry
	now     func() time.Time
}

func NewCatalogCache(ttl time.Duration) *CatalogCache {
	if ttl <= 0 {
		ttl = DefaultCatalogTTL
	}
	return &CatalogCache{
		ttl:     ttl,
		entries: make(map[string]catalogEntry),
		now:     time.Now,
	}
}

// get returns the cached record plus whether it exists and is still fresh.
// A stale record is still returned so it can serve as a fallback when the
// catalog store is down.
func (c *CatalogCache) get(productID string) (record *catalogRecord, fresh bool, ok bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[productID]
	if !ok {
		return nil, false, false
	}
	fresh = c.now().Sub(entry.fetchedAt) < c.ttl
	return entry.record, fresh, true
}

func (c *CatalogCache) put(productID string, record *catalogRecord) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[productID] = catalogEntry{record: record, fetchedAt: c.now()}
}

// Invalidate drops the entry for a product. Called when the catalog is
// edited so the next resolution refetches.
func (c *CatalogCache) Invalidate(productID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, productID)
}
