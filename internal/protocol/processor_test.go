package protocol

import (
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/lvollmer/bazaarnode/internal/bids"
	"github.com/lvollmer/bazaarnode/internal/hashing"
	"github.com/lvollmer/bazaarnode/internal/listings"
	"github.com/lvollmer/bazaarnode/internal/messages"
	"github.com/lvollmer/bazaarnode/internal/orders"
	"github.com/lvollmer/bazaarnode/pkg/db/models"
	"github.com/lvollmer/bazaarnode/pkg/enums"
	apperrors "github.com/lvollmer/bazaarnode/pkg/errors"
	"github.com/lvollmer/bazaarnode/pkg/logger"
	"github.com/lvollmer/bazaarnode/pkg/metrics"
)

var protocolTestSchema = []string{
	`CREATE TABLE IF NOT EXISTS listings (
  id TEXT PRIMARY KEY,
  hash TEXT NOT NULL UNIQUE,
  seller_address TEXT NOT NULL,
  title TEXT NOT NULL,
  price NUMERIC NOT NULL,
  currency TEXT NOT NULL DEFAULT 'PART',
  template_hash TEXT,
  expires_at DATETIME NOT NULL,
  created_at DATETIME
);`,
	`CREATE TABLE IF NOT EXISTS bids (
  id TEXT PRIMARY KEY,
  hash TEXT NOT NULL UNIQUE,
  item_ref TEXT NOT NULL,
  bidder_address TEXT NOT NULL,
  seller_address TEXT NOT NULL,
  current_action TEXT NOT NULL,
  payload TEXT,
  created_at DATETIME,
  updated_at DATETIME
);`,
	`CREATE TABLE IF NOT EXISTS bid_messages (
  id TEXT PRIMARY KEY,
  bid_hash TEXT NOT NULL,
  message_hash TEXT NOT NULL UNIQUE,
  kind TEXT NOT NULL,
  actor_role TEXT NOT NULL,
  generated_at INTEGER NOT NULL,
  position INTEGER NOT NULL DEFAULT 0,
  created_at DATETIME
);`,
	`CREATE TABLE IF NOT EXISTS orders (
  id TEXT PRIMARY KEY,
  hash TEXT NOT NULL UNIQUE,
  bid_hash TEXT NOT NULL UNIQUE,
  accept_hash TEXT NOT NULL UNIQUE,
  buyer_address TEXT NOT NULL,
  seller_address TEXT NOT NULL,
  created_at DATETIME,
  updated_at DATETIME
);`,
	`CREATE TABLE IF NOT EXISTS order_items (
  id TEXT PRIMARY KEY,
  order_hash TEXT NOT NULL,
  item_ref TEXT NOT NULL,
  status TEXT NOT NULL,
  last_action_ref TEXT NOT NULL,
  created_at DATETIME,
  updated_at DATETIME
);`,
	`CREATE TABLE IF NOT EXISTS applied_messages (
  hash TEXT PRIMARY KEY,
  kind TEXT NOT NULL,
  entity_key TEXT NOT NULL,
  applied_at DATETIME
);`,
	`CREATE TABLE IF NOT EXISTS pending_messages (
  id TEXT PRIMARY KEY,
  message_hash TEXT NOT NULL UNIQUE,
  target_ref TEXT NOT NULL,
  kind TEXT NOT NULL,
  raw TEXT NOT NULL,
  status TEXT NOT NULL,
  attempts INTEGER NOT NULL DEFAULT 0,
  last_error TEXT,
  first_seen_at DATETIME,
  last_tried_at DATETIME
);`,
	`CREATE TABLE IF NOT EXISTS outbound_messages (
  id TEXT PRIMARY KEY,
  message_hash TEXT NOT NULL UNIQUE,
  kind TEXT NOT NULL,
  recipient TEXT NOT NULL,
  raw TEXT NOT NULL,
  created_at DATETIME,
  published_at DATETIME,
  attempt_count INTEGER NOT NULL DEFAULT 0,
  last_error TEXT
);`,
}

// memoryDedupCache stands in for redis in tests.
type memoryDedupCache struct {
	mu   sync.Mutex
	hits map[string]bool
}

func newMemoryDedupCache() *memoryDedupCache {
	return &memoryDedupCache{hits: make(map[string]bool)}
}

func (c *memoryDedupCache) MarkApplied(_ context.Context, hash string, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hits[hash] = true
	return nil
}

func (c *memoryDedupCache) WasApplied(_ context.Context, hash string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits[hash], nil
}

type gormTxRunner struct {
	conn *gorm.DB
}

func (r gormTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.conn.WithContext(ctx).Transaction(fn)
}

// protocolFixture wires a full processor stack against an in-memory database.
type protocolFixture struct {
	conn      *gorm.DB
	hasher    *hashing.Service
	processor *Processor
	bids      bids.Repository
	orders    orders.Repository
	listings  listings.Repository
	pending   PendingRepository
	outbound  OutboundRepository
	now       time.Time
	seq       int64
}

func setupProtocolFixture(t *testing.T) *protocolFixture {
	t.Helper()

	conn, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:protocol_%s?mode=memory&cache=shared", t.Name())), &gorm.Config{})
	require.NoError(t, err)
	for _, stmt := range protocolTestSchema {
		require.NoError(t, conn.Exec(stmt).Error)
	}

	fixture := &protocolFixture{
		conn:     conn,
		hasher:   hashing.NewService(),
		bids:     bids.NewRepository(conn),
		orders:   orders.NewRepository(conn),
		listings: listings.NewRepository(conn),
		pending:  NewPendingRepository(conn),
		outbound: NewOutboundRepository(conn),
		now:      time.Now().UTC(),
	}

	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
	processor, err := NewProcessor(ProcessorParams{
		DB:       gormTxRunner{conn: conn},
		Hasher:   fixture.hasher,
		Bids:     fixture.bids,
		Orders:   fixture.orders,
		Listings: fixture.listings,
		Ledger:   NewLedger(NewLedgerRepository(conn), newMemoryDedupCache(), time.Hour),
		Pending:  fixture.pending,
		Logger:   logg,
		Metrics:  metrics.NewProtocolMetrics(nil),
		Clock:    func() time.Time { return fixture.now },
	})
	require.NoError(t, err)
	fixture.processor = processor
	return fixture
}

func (f *protocolFixture) seedListing(t *testing.T, hash, seller string, expiresAt time.Time) {
	t.Helper()
	_, err := f.listings.Upsert(context.Background(), &models.Listing{
		Hash:          hash,
		SellerAddress: seller,
		Title:         "ceramic teapot",
		Price:         decimal.NewFromInt(40),
		Currency:      "PART",
		ExpiresAt:     expiresAt,
	})
	require.NoError(t, err)
}

// sign stamps a fresh GeneratedAt and the content hash. Each call advances
// the timestamp so structurally identical messages still hash apart.
func (f *protocolFixture) sign(t *testing.T, msg messages.ActionMessage) messages.ActionMessage {
	t.Helper()
	f.seq++
	msg.GeneratedAt = f.now.UnixMilli() + f.seq
	hash, err := f.hasher.ComputeHash(msg.HashableForm())
	require.NoError(t, err)
	msg.Hash = hash
	return msg
}

func (f *protocolFixture) bidMessage(t *testing.T, itemRef string) messages.ActionMessage {
	return f.sign(t, messages.ActionMessage{
		Kind:      enums.ActionKindBid,
		ActorRole: enums.ActorRoleBuyer,
		Payload: messages.BidPayload{
			ItemRef:         itemRef,
			BidderAddress:   "pBuyerAddr",
			ShippingAddress: map[string]string{"city": "Utrecht"},
			Options:         map[string]string{"colour": "green"},
		},
	})
}

func (f *protocolFixture) targeted(t *testing.T, kind enums.ActionKind, targetRef string, role enums.ActorRole, payload messages.Payload) messages.ActionMessage {
	return f.sign(t, messages.ActionMessage{
		Kind:      kind,
		TargetRef: targetRef,
		ActorRole: role,
		Payload:   payload,
	})
}

func (f *protocolFixture) mustApply(t *testing.T, msg messages.ActionMessage) *ProcessResult {
	t.Helper()
	result, err := f.processor.Process(context.Background(), msg)
	require.NoError(t, err)
	require.Equal(t, enums.ProcessOutcomeApplied, result.Outcome)
	return result
}

func TestProcessorFullEscrowLifecycle(t *testing.T) {
	f := setupProtocolFixture(t)
	ctx := context.Background()
	f.seedListing(t, "itemhash-1", "pSellerAddr", f.now.Add(time.Hour))

	bidMsg := f.bidMessage(t, "itemhash-1")
	f.mustApply(t, bidMsg)

	acceptMsg := f.targeted(t, enums.ActionKindAccept, bidMsg.Hash, enums.ActorRoleSeller,
		messages.AcceptPayload{EscrowRef: "escrow-1", Terms: map[string]string{"escrow_days": "7"}})
	acceptResult := f.mustApply(t, acceptMsg)
	require.NotNil(t, acceptResult.Order)
	orderHash := acceptResult.Order.Hash
	assert.Equal(t, hashing.DeriveOrderHash(bidMsg.Hash, acceptMsg.Hash), orderHash)
	assert.Equal(t, "pBuyerAddr", acceptResult.Order.BuyerAddress)
	assert.Equal(t, "pSellerAddr", acceptResult.Order.SellerAddress)

	f.mustApply(t, f.targeted(t, enums.ActionKindLock, orderHash, enums.ActorRoleBuyer,
		messages.LockPayload{EscrowTxRef: "tx-lock-1"}))
	f.mustApply(t, f.targeted(t, enums.ActionKindRelease, orderHash, enums.ActorRoleSeller,
		messages.ReleasePayload{}))
	f.mustApply(t, f.targeted(t, enums.ActionKindRelease, orderHash, enums.ActorRoleBuyer,
		messages.ReleasePayload{Memo: "arrived intact"}))

	order, err := f.orders.FindByHash(ctx, orderHash)
	require.NoError(t, err)
	require.Len(t, order.Items, 1)
	assert.Equal(t, enums.OrderItemStatusComplete, order.Items[0].Status)

	bid, err := f.bids.FindByHash(ctx, bidMsg.Hash)
	require.NoError(t, err)
	assert.Equal(t, enums.ActionKindRelease, bid.CurrentAction)
	// original bid keys survive all later merges
	assert.Equal(t, "green", bid.Payload["colour"])
	assert.Equal(t, "Utrecht", bid.Payload["shipping_city"])
	assert.Equal(t, "escrow-1", bid.Payload["escrow_ref"])
	assert.Equal(t, "tx-lock-1", bid.Payload["escrow_tx_ref"])

	require.Len(t, bid.History, 5)
	for i, entry := range bid.History {
		assert.Equal(t, i, entry.Position)
	}
	assert.Equal(t, enums.ActionKindBid, bid.History[0].Kind)
	assert.Equal(t, enums.ActionKindRelease, bid.History[4].Kind)
}

func TestProcessorDuplicateDeliveryIsIdempotent(t *testing.T) {
	f := setupProtocolFixture(t)
	ctx := context.Background()
	f.seedListing(t, "itemhash-1", "pSellerAddr", f.now.Add(time.Hour))

	bidMsg := f.bidMessage(t, "itemhash-1")
	f.mustApply(t, bidMsg)

	again, err := f.processor.Process(ctx, bidMsg)
	require.NoError(t, err)
	assert.Equal(t, enums.ProcessOutcomeAlreadyProcessed, again.Outcome)

	var count int64
	require.NoError(t, f.conn.Model(&models.Bid{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestProcessorAcceptAfterRejectConflicts(t *testing.T) {
	f := setupProtocolFixture(t)
	ctx := context.Background()
	f.seedListing(t, "itemhash-1", "pSellerAddr", f.now.Add(time.Hour))

	bidMsg := f.bidMessage(t, "itemhash-1")
	f.mustApply(t, bidMsg)
	f.mustApply(t, f.targeted(t, enums.ActionKindReject, bidMsg.Hash, enums.ActorRoleSeller,
		messages.RejectPayload{Reason: "out of stock"}))

	_, err := f.processor.Process(ctx, f.targeted(t, enums.ActionKindAccept, bidMsg.Hash, enums.ActorRoleSeller,
		messages.AcceptPayload{EscrowRef: "escrow-1"}))
	assert.True(t, apperrors.Is(err, apperrors.CodeStateConflict))

	bid, err := f.bids.FindByHash(ctx, bidMsg.Hash)
	require.NoError(t, err)
	assert.Equal(t, enums.ActionKindReject, bid.CurrentAction)
}

func TestProcessorOutOfOrderAcceptParksThenApplies(t *testing.T) {
	f := setupProtocolFixture(t)
	ctx := context.Background()
	f.seedListing(t, "itemhash-1", "pSellerAddr", f.now.Add(time.Hour))

	bidMsg := f.bidMessage(t, "itemhash-1")
	acceptMsg := f.targeted(t, enums.ActionKindAccept, bidMsg.Hash, enums.ActorRoleSeller,
		messages.AcceptPayload{EscrowRef: "escrow-1"})

	// accept arrives first
	result, err := f.processor.Process(ctx, acceptMsg)
	require.NoError(t, err)
	assert.Equal(t, enums.ProcessOutcomePending, result.Outcome)

	queued, err := f.pending.FetchQueued(ctx, 10)
	require.NoError(t, err)
	require.Len(t, queued, 1)
	assert.Equal(t, acceptMsg.Hash, queued[0].MessageHash)
	assert.Equal(t, bidMsg.Hash, queued[0].TargetRef)

	// redelivery of the parked message stays a no-op
	result, err = f.processor.Process(ctx, acceptMsg)
	require.NoError(t, err)
	assert.Equal(t, enums.ProcessOutcomePending, result.Outcome)
	depth, err := f.pending.CountQueued(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), depth)

	f.mustApply(t, bidMsg)

	applied, err := f.processor.RetryPending(ctx, 10, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, applied)

	order, err := f.orders.FindByBidHash(ctx, bidMsg.Hash)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderItemStatusAwaitingEscrow, order.Items[0].Status)

	depth, err = f.pending.CountQueued(ctx)
	require.NoError(t, err)
	assert.Zero(t, depth)
}

func TestProcessorRetryDropsAgedMessages(t *testing.T) {
	f := setupProtocolFixture(t)
	ctx := context.Background()

	acceptMsg := f.targeted(t, enums.ActionKindAccept, "bidhash-unknown", enums.ActorRoleSeller,
		messages.AcceptPayload{EscrowRef: "escrow-1"})
	result, err := f.processor.Process(ctx, acceptMsg)
	require.NoError(t, err)
	assert.Equal(t, enums.ProcessOutcomePending, result.Outcome)

	f.now = f.now.Add(2 * time.Hour)
	applied, err := f.processor.RetryPending(ctx, 10, time.Hour)
	require.NoError(t, err)
	assert.Zero(t, applied)

	depth, err := f.pending.CountQueued(ctx)
	require.NoError(t, err)
	assert.Zero(t, depth)
}

func TestProcessorLockWhileShippingConflicts(t *testing.T) {
	f := setupProtocolFixture(t)
	ctx := context.Background()
	f.seedListing(t, "itemhash-1", "pSellerAddr", f.now.Add(time.Hour))

	bidMsg := f.bidMessage(t, "itemhash-1")
	f.mustApply(t, bidMsg)
	acceptResult := f.mustApply(t, f.targeted(t, enums.ActionKindAccept, bidMsg.Hash, enums.ActorRoleSeller,
		messages.AcceptPayload{EscrowRef: "escrow-1"}))
	orderHash := acceptResult.Order.Hash

	f.mustApply(t, f.targeted(t, enums.ActionKindLock, orderHash, enums.ActorRoleBuyer,
		messages.LockPayload{EscrowTxRef: "tx-lock-1"}))
	f.mustApply(t, f.targeted(t, enums.ActionKindRelease, orderHash, enums.ActorRoleSeller,
		messages.ReleasePayload{}))

	_, err := f.processor.Process(ctx, f.targeted(t, enums.ActionKindLock, orderHash, enums.ActorRoleBuyer,
		messages.LockPayload{EscrowTxRef: "tx-lock-2"}))
	assert.True(t, apperrors.Is(err, apperrors.CodeStateConflict))

	order, err := f.orders.FindByHash(ctx, orderHash)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderItemStatusShipping, order.Items[0].Status)
}

func TestProcessorShipUpdateIsInformational(t *testing.T) {
	f := setupProtocolFixture(t)
	ctx := context.Background()
	f.seedListing(t, "itemhash-1", "pSellerAddr", f.now.Add(time.Hour))

	bidMsg := f.bidMessage(t, "itemhash-1")
	f.mustApply(t, bidMsg)
	acceptResult := f.mustApply(t, f.targeted(t, enums.ActionKindAccept, bidMsg.Hash, enums.ActorRoleSeller,
		messages.AcceptPayload{EscrowRef: "escrow-1"}))
	orderHash := acceptResult.Order.Hash
	f.mustApply(t, f.targeted(t, enums.ActionKindLock, orderHash, enums.ActorRoleBuyer,
		messages.LockPayload{EscrowTxRef: "tx-lock-1"}))
	f.mustApply(t, f.targeted(t, enums.ActionKindRelease, orderHash, enums.ActorRoleSeller,
		messages.ReleasePayload{}))

	f.mustApply(t, f.targeted(t, enums.ActionKindShip, orderHash, enums.ActorRoleSeller,
		messages.ShipPayload{Carrier: "postnl", TrackingRef: "3S123"}))

	order, err := f.orders.FindByHash(ctx, orderHash)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderItemStatusShipping, order.Items[0].Status)

	bid, err := f.bids.FindByHash(ctx, bidMsg.Hash)
	require.NoError(t, err)
	assert.Equal(t, "postnl", bid.Payload["carrier"])
	assert.Equal(t, "3S123", bid.Payload["tracking_ref"])
}

func TestProcessorRejectsCorruptHash(t *testing.T) {
	f := setupProtocolFixture(t)
	f.seedListing(t, "itemhash-1", "pSellerAddr", f.now.Add(time.Hour))

	msg := f.bidMessage(t, "itemhash-1")
	msg.Hash = "deadbeef" + msg.Hash[8:]

	_, err := f.processor.Process(context.Background(), msg)
	assert.True(t, apperrors.Is(err, apperrors.CodeCorruptMessage))

	var count int64
	require.NoError(t, f.conn.Model(&models.Bid{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestProcessorRejectsBidOnExpiredListing(t *testing.T) {
	f := setupProtocolFixture(t)
	f.seedListing(t, "itemhash-old", "pSellerAddr", f.now.Add(-time.Minute))

	_, err := f.processor.Process(context.Background(), f.bidMessage(t, "itemhash-old"))
	assert.True(t, apperrors.Is(err, apperrors.CodeStateConflict))
}

func TestProcessorRefundAfterLock(t *testing.T) {
	f := setupProtocolFixture(t)
	ctx := context.Background()
	f.seedListing(t, "itemhash-1", "pSellerAddr", f.now.Add(time.Hour))

	bidMsg := f.bidMessage(t, "itemhash-1")
	f.mustApply(t, bidMsg)
	acceptResult := f.mustApply(t, f.targeted(t, enums.ActionKindAccept, bidMsg.Hash, enums.ActorRoleSeller,
		messages.AcceptPayload{EscrowRef: "escrow-1"}))
	orderHash := acceptResult.Order.Hash
	f.mustApply(t, f.targeted(t, enums.ActionKindLock, orderHash, enums.ActorRoleBuyer,
		messages.LockPayload{EscrowTxRef: "tx-lock-1"}))

	f.mustApply(t, f.targeted(t, enums.ActionKindRefund, orderHash, enums.ActorRoleSeller,
		messages.RefundPayload{Reason: "cannot fulfil", RefundTxRef: "tx-refund-1"}))

	order, err := f.orders.FindByHash(ctx, orderHash)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderItemStatusRefunded, order.Items[0].Status)

	bid, err := f.bids.FindByHash(ctx, bidMsg.Hash)
	require.NoError(t, err)
	assert.Equal(t, enums.ActionKindRefund, bid.CurrentAction)
	assert.Equal(t, "tx-refund-1", bid.Payload["refund_tx_ref"])
}

func TestProcessorBidWithUnknownListingParks(t *testing.T) {
	f := setupProtocolFixture(t)
	ctx := context.Background()

	bidMsg := f.bidMessage(t, "itemhash-unknown")
	result, err := f.processor.Process(ctx, bidMsg)
	require.NoError(t, err)
	assert.Equal(t, enums.ProcessOutcomePending, result.Outcome)

	queued, err := f.pending.FetchQueued(ctx, 10)
	require.NoError(t, err)
	require.Len(t, queued, 1)
	// a parked bid waits under the listing it references
	assert.Equal(t, "itemhash-unknown", queued[0].TargetRef)

	f.seedListing(t, "itemhash-unknown", "pSellerAddr", f.now.Add(time.Hour))
	applied, err := f.processor.RetryPending(ctx, 10, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, applied)

	_, err = f.bids.FindByHash(ctx, bidMsg.Hash)
	assert.NoError(t, err)
}

// lockRecordingBids counts how often the lineage bid is loaded under a row
// lock. The in-memory mutex only covers one process; transitions must take
// the database lock so a second node's worker serializes against this one.
type lockRecordingBids struct {
	bids.Repository
	lockLoads *int32
}

func (r *lockRecordingBids) WithTx(tx *gorm.DB) bids.Repository {
	return &lockRecordingBids{Repository: r.Repository.WithTx(tx), lockLoads: r.lockLoads}
}

func (r *lockRecordingBids) FindByHashForUpdate(ctx context.Context, hash string) (*models.Bid, error) {
	atomic.AddInt32(r.lockLoads, 1)
	return r.Repository.FindByHashForUpdate(ctx, hash)
}

func TestProcessorTransitionsLockLineageRow(t *testing.T) {
	f := setupProtocolFixture(t)
	ctx := context.Background()
	f.seedListing(t, "itemhash-1", "pSellerAddr", f.now.Add(time.Hour))

	var lockLoads int32
	recording := &lockRecordingBids{Repository: f.bids, lockLoads: &lockLoads}
	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
	processor, err := NewProcessor(ProcessorParams{
		DB:       gormTxRunner{conn: f.conn},
		Hasher:   f.hasher,
		Bids:     recording,
		Orders:   f.orders,
		Listings: f.listings,
		Ledger:   NewLedger(NewLedgerRepository(f.conn), newMemoryDedupCache(), time.Hour),
		Pending:  f.pending,
		Logger:   logg,
		Metrics:  metrics.NewProtocolMetrics(nil),
		Clock:    func() time.Time { return f.now },
	})
	require.NoError(t, err)

	bidMsg := f.bidMessage(t, "itemhash-1")
	result, err := processor.Process(ctx, bidMsg)
	require.NoError(t, err)
	require.Equal(t, enums.ProcessOutcomeApplied, result.Outcome)
	// opening a lineage has no prior row to lock
	assert.Equal(t, int32(0), atomic.LoadInt32(&lockLoads))

	acceptMsg := f.targeted(t, enums.ActionKindAccept, bidMsg.Hash, enums.ActorRoleSeller,
		messages.AcceptPayload{EscrowRef: "escrow-1"})
	acceptResult, err := processor.Process(ctx, acceptMsg)
	require.NoError(t, err)
	require.Equal(t, enums.ProcessOutcomeApplied, acceptResult.Outcome)
	assert.Equal(t, int32(1), atomic.LoadInt32(&lockLoads))

	lockMsg := f.targeted(t, enums.ActionKindLock, acceptResult.Order.Hash, enums.ActorRoleBuyer,
		messages.LockPayload{EscrowTxRef: "tx-lock-1"})
	_, err = processor.Process(ctx, lockMsg)
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&lockLoads))
}
