package orders

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/lvollmer/bazaarnode/pkg/db/models"
	"github.com/lvollmer/bazaarnode/pkg/enums"
	"github.com/lvollmer/bazaarnode/pkg/pagination"
)

func setupOrdersTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:orders_%s?mode=memory&cache=shared", t.Name())), &gorm.Config{})
	require.NoError(t, err)

	orders := `
CREATE TABLE IF NOT EXISTS orders (
  id TEXT PRIMARY KEY,
  hash TEXT NOT NULL UNIQUE,
  bid_hash TEXT NOT NULL UNIQUE,
  accept_hash TEXT NOT NULL UNIQUE,
  buyer_address TEXT NOT NULL,
  seller_address TEXT NOT NULL,
  created_at DATETIME,
  updated_at DATETIME
);`
	orderItems := `
CREATE TABLE IF NOT EXISTS order_items (
  id TEXT PRIMARY KEY,
  order_hash TEXT NOT NULL,
  item_ref TEXT NOT NULL,
  status TEXT NOT NULL,
  last_action_ref TEXT NOT NULL,
  created_at DATETIME,
  updated_at DATETIME
);`
	require.NoError(t, db.Exec(orders).Error)
	require.NoError(t, db.Exec(orderItems).Error)
	return db
}

func createOrder(t *testing.T, repo Repository, hash, bidHash, buyer string, status enums.OrderItemStatus, created time.Time) *models.Order {
	t.Helper()

	order := &models.Order{
		Hash:          hash,
		BidHash:       bidHash,
		AcceptHash:    hash + "-accept",
		BuyerAddress:  buyer,
		SellerAddress: "pSellerAddr",
		Items: []models.OrderItem{{
			ItemRef:       "itemhash-1",
			Status:        status,
			LastActionRef: hash + "-accept",
		}},
		CreatedAt: created,
		UpdatedAt: created,
	}
	order, err := repo.Create(context.Background(), order)
	require.NoError(t, err)
	return order
}

func TestRepositoryCreateAndLookups(t *testing.T) {
	repo := NewRepository(setupOrdersTestDB(t))
	ctx := context.Background()

	created := createOrder(t, repo, "orderhash-1", "bidhash-1", "pBuyerAddr", enums.OrderItemStatusAwaitingEscrow, time.Now().UTC())

	byHash, err := repo.FindByHash(ctx, "orderhash-1")
	require.NoError(t, err)
	require.Len(t, byHash.Items, 1)
	assert.Equal(t, enums.OrderItemStatusAwaitingEscrow, byHash.Items[0].Status)

	byBid, err := repo.FindByBidHash(ctx, "bidhash-1")
	require.NoError(t, err)
	assert.Equal(t, created.Hash, byBid.Hash)

	_, err = repo.FindByBidHash(ctx, "missing")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestRepositoryUpdateItemStatus(t *testing.T) {
	repo := NewRepository(setupOrdersTestDB(t))
	ctx := context.Background()

	order := createOrder(t, repo, "orderhash-2", "bidhash-2", "pBuyerAddr", enums.OrderItemStatusAwaitingEscrow, time.Now().UTC())
	require.NoError(t, repo.UpdateItemStatus(ctx, order.Items[0].ID, enums.OrderItemStatusEscrowLocked, "lockhash-1"))

	found, err := repo.FindByHash(ctx, "orderhash-2")
	require.NoError(t, err)
	assert.Equal(t, enums.OrderItemStatusEscrowLocked, found.Items[0].Status)
	assert.Equal(t, "lockhash-1", found.Items[0].LastActionRef)
}

func TestRepositorySearch(t *testing.T) {
	repo := NewRepository(setupOrdersTestDB(t))
	ctx := context.Background()

	base := time.Now().UTC().Add(-time.Hour)
	createOrder(t, repo, "orderhash-3", "bidhash-3", "pBuyerAddr", enums.OrderItemStatusShipping, base)
	createOrder(t, repo, "orderhash-4", "bidhash-4", "pBuyerAddr", enums.OrderItemStatusAwaitingEscrow, base.Add(time.Minute))
	createOrder(t, repo, "orderhash-5", "bidhash-5", "pOtherBuyer", enums.OrderItemStatusShipping, base.Add(2*time.Minute))

	byBuyer, err := repo.Search(ctx, pagination.Params{}, SearchFilters{BuyerAddress: "pBuyerAddr"})
	require.NoError(t, err)
	require.Len(t, byBuyer.Orders, 2)
	assert.Equal(t, "orderhash-4", byBuyer.Orders[0].Hash)

	status := enums.OrderItemStatusShipping
	shipping, err := repo.Search(ctx, pagination.Params{}, SearchFilters{Status: &status})
	require.NoError(t, err)
	require.Len(t, shipping.Orders, 2)
	for _, order := range shipping.Orders {
		require.Len(t, order.Items, 1)
		assert.Equal(t, enums.OrderItemStatusShipping, order.Items[0].Status)
	}
}
