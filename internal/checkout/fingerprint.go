package checkout

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"github.com/avask/shopflow/internal/domain"
)

// Fingerprint derives the idempotency key for a checkout from the cart
// contents plus owner identity. Line order must not matter: two requests
// describing the same cart produce the same fingerprint regardless of
// insertion order.
func Fingerprint(ownerID string, items []domain.SnapshotItem) string {
	lines := make([]string, 0, len(items))
	for _, item := range items {
		lines = append(lines, fmt.Sprintf("%s|%s|%d", item.ProductID, item.Selections.Key(), item.Quantity))
	}
	sort.Strings(lines)

	h := sha256.New()
	h.Write([]byte(ownerID))
	h.Write([]byte{0})
	h.Write([]byte(strings.Join(lines, "\n")))
	return hex.EncodeToString(h.Sum(nil))
}
