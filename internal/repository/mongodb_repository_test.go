package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/mongodb"

	"github.com/avask/shopflow/internal/domain"
)

func setupTestDB(t *testing.T) (CartRepository, func()) {
	ctx := context.Background()

	mongoContainer, err := mongodb.Run(ctx, "mongo:7")
	require.NoError(t, err)

	uri, err := mongoContainer.ConnectionString(ctx)
	require.NoError(t, err)

	db, err := ConnectMongoDB(ctx, uri, "testdb")
	require.NoError(t, err)

	repo := NewMongoRepository(db)

	mongoRepo := repo.(*mongoRepository)
	err = mongoRepo.CreateIndexes(ctx)
	require.NoError(t, err)

	cleanup := func() {
		if err := mongoContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	}

	return repo, cleanup
}

func TestGetCart_NotFound(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	cart, err := repo.GetCart(ctx, "nonexistent")

	assert.ErrorIs(t, err, ErrCartNotFound)
	assert.Nil(t, cart)
}

func TestAddLine_NewCart(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	ownerID := "owner-123"
	item := domain.LineItem{
		ProductID:  "rose-box",
		Quantity:   3,
		Selections: domain.Selection{"ribbon": {"silk"}},
		UnitPrice:  1250,
		LineTotal:  3750,
	}

	err := repo.AddLine(ctx, ownerID, item)
	require.NoError(t, err)

	cart, err := repo.GetCart(ctx, ownerID)
	require.NoError(t, err)
	assert.Equal(t, ownerID, cart.OwnerID)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, "rose-box", cart.Items[0].ProductID)
	assert.Equal(t, 3, cart.Items[0].Quantity)
	assert.Equal(t, "ribbon=silk", cart.Items[0].SelectionKey)
}

func TestAddLine_SameSelectionSumsQuantity(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	ownerID := "owner-123"
	silk := domain.Selection{"ribbon": {"silk"}}

	require.NoError(t, repo.AddLine(ctx, ownerID, domain.LineItem{
		ProductID: "rose-box", Quantity: 2, Selections: silk, UnitPrice: 1250, LineTotal: 2500,
	}))
	require.NoError(t, repo.AddLine(ctx, ownerID, domain.LineItem{
		ProductID: "rose-box", Quantity: 3, Selections: silk, UnitPrice: 1250, LineTotal: 3750,
	}))

	cart, err := repo.GetCart(ctx, ownerID)
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, 5, cart.Items[0].Quantity)
	// line_total reflects the merged quantity, not the incoming line's.
	assert.Equal(t, int64(1250), cart.Items[0].UnitPrice)
	assert.Equal(t, int64(6250), cart.Items[0].LineTotal)
}

func TestAddLine_DifferentSelectionIsSeparateLine(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	ownerID := "owner-123"

	require.NoError(t, repo.AddLine(ctx, ownerID, domain.LineItem{
		ProductID: "rose-box", Quantity: 1, Selections: domain.Selection{"ribbon": {"silk"}},
	}))
	require.NoError(t, repo.AddLine(ctx, ownerID, domain.LineItem{
		ProductID: "rose-box", Quantity: 1, Selections: domain.Selection{"ribbon": {"bow"}},
	}))
	require.NoError(t, repo.AddLine(ctx, ownerID, domain.LineItem{
		ProductID: "rose-box", Quantity: 1,
	}))

	cart, err := repo.GetCart(ctx, ownerID)
	require.NoError(t, err)
	assert.Len(t, cart.Items, 3)
}

func TestSetLineQuantity(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	ownerID := "owner-123"
	silk := domain.Selection{"ribbon": {"silk"}}

	require.NoError(t, repo.AddLine(ctx, ownerID, domain.LineItem{
		ProductID: "rose-box", Quantity: 2, Selections: silk, UnitPrice: 1250, LineTotal: 2500,
	}))

	err := repo.SetLineQuantity(ctx, ownerID, "rose-box", silk.Key(), 10, 1300, 13000)
	require.NoError(t, err)

	cart, err := repo.GetCart(ctx, ownerID)
	require.NoError(t, err)
	assert.Equal(t, 10, cart.Items[0].Quantity)
	assert.Equal(t, int64(1300), cart.Items[0].UnitPrice)
	assert.Equal(t, int64(13000), cart.Items[0].LineTotal)
}

func TestSetLineQuantity_NoMatchingLine(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	ownerID := "owner-123"

	require.NoError(t, repo.AddLine(ctx, ownerID, domain.LineItem{ProductID: "rose-box", Quantity: 2}))

	err := repo.SetLineQuantity(ctx, ownerID, "rose-box", "ribbon=silk", 10, 1250, 12500)
	assert.ErrorIs(t, err, ErrItemNotFound)
}

func TestRemoveLine_OnlyMatchingSelection(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	ownerID := "owner-123"
	silk := domain.Selection{"ribbon": {"silk"}}

	require.NoError(t, repo.AddLine(ctx, ownerID, domain.LineItem{
		ProductID: "rose-box", Quantity: 1, Selections: silk,
	}))
	require.NoError(t, repo.AddLine(ctx, ownerID, domain.LineItem{
		ProductID: "rose-box", Quantity: 1,
	}))

	err := repo.RemoveLine(ctx, ownerID, "rose-box", silk.Key())
	require.NoError(t, err)

	cart, err := repo.GetCart(ctx, ownerID)
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	assert.Empty(t, cart.Items[0].SelectionKey)
}

func TestDeleteCart(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	ownerID := "owner-123"

	require.NoError(t, repo.AddLine(ctx, ownerID, domain.LineItem{ProductID: "rose-box", Quantity: 2}))
	require.NoError(t, repo.DeleteCart(ctx, ownerID))

	_, err := repo.GetCart(ctx, ownerID)
	assert.ErrorIs(t, err, ErrCartNotFound)

	assert.ErrorIs(t, repo.DeleteCart(ctx, ownerID), ErrCartNotFound)
}

func TestListStale(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()

	require.NoError(t, repo.AddLine(ctx, "fresh-owner", domain.LineItem{ProductID: "rose-box", Quantity: 1}))

	// Carts written just now must not be stale against a cutoff in the past.
	stale, err := repo.ListStale(ctx, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Empty(t, stale)

	// A cutoff in the future catches them.
	stale, err = repo.ListStale(ctx, time.Now().Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, stale, 1)
	assert.Equal(t, "fresh-owner", stale[0].OwnerID)
}

func TestContextCancellation(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Nanosecond)
	defer cancel()

	time.Sleep(10 * time.Millisecond) // Ensure context is cancelled

	_, err := repo.GetCart(ctx, "owner-123")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "context")
}
