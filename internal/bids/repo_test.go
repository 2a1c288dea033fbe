package bids

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
	"github.com/lvollmer/bazaarnode/pkg/types"
)

func setupBidsTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:bids_%s?mode=memory&cache=shared", t.Name())), &gorm.Config{})
	require.NoError(t, err)

	bids := `
CREATE TABLE IF NOT EXISTS bids (
  id TEXT PRIMARY KEY,
  hash TEXT NOT NULL UNIQUE,
  item_ref TEXT NOT NULL,
  bidder_address TEXT NOT NULL,
  seller_address TEXT NOT NULL,
  current_action TEXT NOT NULL,
  payload TEXT,
  created_at DATETIME,
  updated_at DATETIME
);`
	bidMessages := `
CREATE TABLE IF NOT EXISTS bid_messages (
  id TEXT PRIMARY KEY,
  bid_hash TEXT NOT NULL,
  message_hash TEXT NOT NULL UNIQUE,
  kind TEXT NOT NULL,
  actor_role TEXT NOT NULL,
  generated_at INTEGER NOT NULL,
  position INTEGER NOT NULL DEFAULT 0,
  created_at DATETIME
);`
	require.NoError(t, db.Exec(bids).Error)
	require.NoError(t, db.Exec(bidMessages).Error)
	return db
}

func createBid(t *testing.T, repo Repository, hash, itemRef, bidder string, action enums.ActionKind, created time.Time) *models.Bid {
	t.Helper()

	bid := &models.Bid{
		Hash:          hash,
		ItemRef:       itemRef,
		BidderAddress: bidder,
		SellerAddress: "pSellerAddr",
		CurrentAction: action,
		Payload:       types.JSONMap{"colour": "black"},
		CreatedAt:     created,
		UpdatedAt:     created,
	}
	bid, err := repo.Create(context.Background(), bid)
	require.NoError(t, err)
	return bid
}

func TestRepositoryCreateAndFindByHash(t *testing.T) {
	repo := NewRepository(setupBidsTestDB(t))
	ctx := context.Background()

	created := createBid(t, repo, "bidhash-1", "itemhash-1", "pBuyerAddr", enums.ActionKindBid, time.Now().UTC())
	require.NoError(t, repo.AppendMessage(ctx, &models.BidMessage{
		BidHash:     created.Hash,
		MessageHash: "bidhash-1",
		Kind:        enums.ActionKindBid,
		ActorRole:   enums.ActorRoleBuyer,
		GeneratedAt: 1700000000000,
		Position:    0,
	}))

	found, err := repo.FindByHash(ctx, "bidhash-1")
	require.NoError(t, err)
	assert.Equal(t, "itemhash-1", found.ItemRef)
	assert.Equal(t, enums.ActionKindBid, found.CurrentAction)
	assert.Equal(t, "black", found.Payload["colour"])
	require.Len(t, found.History, 1)
	assert.Equal(t, enums.ActionKindBid, found.History[0].Kind)

	_, err = repo.FindByHash(ctx, "missing")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestRepositoryUpdateMergesActionAndPayload(t *testing.T) {
	repo := NewRepository(setupBidsTestDB(t))
	ctx := context.Background()

	bid := createBid(t, repo, "bidhash-2", "itemhash-1", "pBuyerAddr", enums.ActionKindBid, time.Now().UTC())
	bid.CurrentAction = enums.ActionKindAccept
	bid.Payload = bid.Payload.MergeMissing(types.JSONMap{"escrow_ref": "escrow-1", "colour": "red"})
	require.NoError(t, repo.Update(ctx, bid))

	found, err := repo.FindByHash(ctx, "bidhash-2")
	require.NoError(t, err)
	assert.Equal(t, enums.ActionKindAccept, found.CurrentAction)
	assert.Equal(t, "escrow-1", found.Payload["escrow_ref"])
	// original bid keys are never overwritten
	assert.Equal(t, "black", found.Payload["colour"])
}

func TestRepositoryFindByHashForUpdate(t *testing.T) {
	repo := NewRepository(setupBidsTestDB(t))
	ctx := context.Background()

	created := createBid(t, repo, "bidhash-3", "itemhash-1", "pBuyerAddr", enums.ActionKindBid, time.Now().UTC())
	require.NoError(t, repo.AppendMessage(ctx, &models.BidMessage{
		BidHash:     created.Hash,
		MessageHash: "bidhash-3",
		Kind:        enums.ActionKindBid,
		ActorRole:   enums.ActorRoleBuyer,
		GeneratedAt: 1700000000000,
		Position:    0,
	}))

	// The locking clause is postgres-only; on sqlite the load must be a
	// plain read with the same shape as FindByHash.
	found, err := repo.FindByHashForUpdate(ctx, "bidhash-3")
	require.NoError(t, err)
	assert.Equal(t, enums.ActionKindBid, found.CurrentAction)
	require.Len(t, found.History, 1)

	_, err = repo.FindByHashForUpdate(ctx, "missing")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestRepositorySearchFiltersAndPagination(t *testing.T) {
	repo := NewRepository(setupBidsTestDB(t))
	ctx := context.Background()

	base := time.Now().UTC().Add(-time.Hour)
	for i := 0; i < 3; i++ {
		createBid(t, repo, fmt.Sprintf("bidhash-a%d", i), "itemhash-a", "pBuyerAddr", enums.ActionKindBid, base.Add(time.Duration(i)*time.Minute))
	}
	createBid(t, repo, "bidhash-b0", "itemhash-b", "pOtherBuyer", enums.ActionKindReject, base)

	action := enums.ActionKindBid
	list, err := repo.Search(ctx, pagination.Params{Limit: 2}, SearchFilters{ItemRef: "itemhash-a", Action: &action})
	require.NoError(t, err)
	require.Len(t, list.Bids, 2)
	require.NotEmpty(t, list.NextCursor)
	// newest first
	assert.Equal(t, "bidhash-a2", list.Bids[0].Hash)

	rest, err := repo.Search(ctx, pagination.Params{Limit: 2, Cursor: list.NextCursor}, SearchFilters{ItemRef: "itemhash-a", Action: &action})
	require.NoError(t, err)
	require.Len(t, rest.Bids, 1)
	assert.Empty(t, rest.NextCursor)
	assert.Equal(t, "bidhash-a0", rest.Bids[0].Hash)

	byBidder, err := repo.Search(ctx, pagination.Params{}, SearchFilters{BidderAddress: "pOtherBuyer"})
	require.NoError(t, err)
	require.Len(t, byBidder.Bids, 1)
	assert.Equal(t, enums.ActionKindReject, byBidder.Bids[0].CurrentAction)
}
