package protocol

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/lvollmer/bazaarnode/internal/bids"
	"github.com/lvollmer/bazaarnode/internal/hashing"
	"github.com/lvollmer/bazaarnode/internal/listings"
	"github.com/lvollmer/bazaarnode/internal/messages"
	"github.com/lvollmer/bazaarnode/internal/orders"
	"github.com/lvollmer/bazaarnode/pkg/db"
	"github.com/lvollmer/bazaarnode/pkg/db/models"
	"github.com/lvollmer/bazaarnode/pkg/enums"
	apperrors "github.com/lvollmer/bazaarnode/pkg/errors"
	"github.com/lvollmer/bazaarnode/pkg/logger"
	"github.com/lvollmer/bazaarnode/pkg/metrics"
	"github.com/lvollmer/bazaarnode/pkg/types"
)

// ProcessResult reports what the processor did with a message and the entity
// state after it.
type ProcessResult struct {
	Outcome enums.ProcessOutcome
	Bid     *models.Bid
	Order   *models.Order
}

// followUp runs extra writes inside the apply transaction, after the state
// mutation and the ledger record. The builder uses it to queue the outbound
// row atomically with the local self-apply.
type followUp func(tx *gorm.DB, result *ProcessResult) error

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// ProcessorParams collects the explicit collaborators; there is no
// process-wide registry.
type ProcessorParams struct {
	DB       txRunner
	Hasher   *hashing.Service
	Codec    *messages.Codec
	Bids     bids.Repository
	Orders   orders.Repository
	Listings listings.Repository
	Ledger   *Ledger
	Pending  PendingRepository
	Logger   *logger.Logger
	Metrics  *metrics.ProtocolMetrics
	Clock    func() time.Time
}

// Processor applies inbound action messages to local state exactly once.
// Sender and receiver run the same code path; a locally built message is
// fed through here before it is broadcast.
type Processor struct {
	db       txRunner
	hasher   *hashing.Service
	codec    *messages.Codec
	bids     bids.Repository
	orders   orders.Repository
	listings listings.Repository
	ledger   *Ledger
	pending  PendingRepository
	locks    *keyedMutex
	logg     *logger.Logger
	metrics  *metrics.ProtocolMetrics
	clock    func() time.Time
}

func NewProcessor(params ProcessorParams) (*Processor, error) {
	if params.DB == nil {
		return nil, errors.New("db client is required")
	}
	if params.Hasher == nil {
		return nil, errors.New("hashing service is required")
	}
	if params.Bids == nil || params.Orders == nil || params.Listings == nil {
		return nil, errors.New("bid, order and listing repositories are required")
	}
	if params.Ledger == nil {
		return nil, errors.New("dedup ledger is required")
	}
	if params.Pending == nil {
		return nil, errors.New("pending repository is required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	codec := params.Codec
	if codec == nil {
		codec = messages.NewCodec(nil)
	}
	clock := params.Clock
	if clock == nil {
		clock = func() time.Time { return time.Now().UTC() }
	}
	return &Processor{
		db:       params.DB,
		hasher:   params.Hasher,
		codec:    codec,
		bids:     params.Bids,
		orders:   params.Orders,
		listings: params.Listings,
		ledger:   params.Ledger,
		pending:  params.Pending,
		locks:    newKeyedMutex(),
		logg:     params.Logger,
		metrics:  params.Metrics,
		clock:    clock,
	}, nil
}

// Process verifies, resolves and applies one inbound message. Duplicate
// delivery returns AlreadyProcessed without touching state; an unknown parent
// parks the message for retry instead of dropping it.
func (p *Processor) Process(ctx context.Context, msg messages.ActionMessage) (*ProcessResult, error) {
	return p.process(ctx, msg, nil)
}

func (p *Processor) process(ctx context.Context, msg messages.ActionMessage, extra followUp) (*ProcessResult, error) {
	started := p.clock()
	ctx = p.logg.WithMessageHash(ctx, msg.Hash)
	ctx = p.logg.WithActorRole(ctx, msg.ActorRole.String())
	ctx = p.logg.WithField(ctx, "kind", msg.Kind.String())

	result, err := p.run(ctx, msg, extra)
	p.observe(ctx, msg, result, err, p.clock().Sub(started))
	return result, err
}

func (p *Processor) run(ctx context.Context, msg messages.ActionMessage, extra followUp) (*ProcessResult, error) {
	if err := p.hasher.Verify(msg); err != nil {
		return nil, err
	}
	if err := messages.Validate(msg); err != nil {
		return nil, err
	}

	// Fast path before taking the lineage lock. The authoritative check
	// happens again inside the transaction.
	if applied, err := p.ledger.WasApplied(ctx, msg.Hash); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeDependency, err, "consulting dedup ledger")
	} else if applied {
		return &ProcessResult{Outcome: enums.ProcessOutcomeAlreadyProcessed}, nil
	}

	lineage, err := p.resolveLineage(ctx, msg)
	if err != nil {
		if apperrors.Is(err, apperrors.CodeUnresolvedRef) {
			return p.park(ctx, msg, err)
		}
		return nil, err
	}

	unlock := p.locks.Lock(lineage)
	defer unlock()

	result := &ProcessResult{Outcome: enums.ProcessOutcomeApplied}
	txErr := p.db.WithTx(ctx, func(tx *gorm.DB) error {
		applied, err := p.ledger.HasAppliedTx(ctx, tx, msg.Hash)
		if err != nil {
			return err
		}
		if applied {
			result.Outcome = enums.ProcessOutcomeAlreadyProcessed
			return nil
		}

		if err := p.apply(ctx, tx, msg, lineage, result); err != nil {
			return err
		}

		if err := p.ledger.RecordTx(ctx, tx, &models.AppliedMessage{
			Hash:      msg.Hash,
			Kind:      msg.Kind.String(),
			EntityKey: lineage,
			AppliedAt: p.clock(),
		}); err != nil {
			return err
		}

		if extra != nil {
			return extra(tx, result)
		}
		return nil
	})
	if txErr != nil {
		// The lineage may have been torn down between resolve and apply on
		// another node's message; reclassify so the caller parks it.
		if apperrors.Is(txErr, apperrors.CodeUnresolvedRef) {
			return p.park(ctx, msg, txErr)
		}
		return nil, txErr
	}

	if result.Outcome == enums.ProcessOutcomeApplied {
		p.ledger.CacheApplied(ctx, msg.Hash)
	}
	return result, nil
}

// resolveLineage finds the bid-hash lineage key the message belongs to. BID
// opens a new lineage under its own hash; everything else resolves through
// its target.
func (p *Processor) resolveLineage(ctx context.Context, msg messages.ActionMessage) (string, error) {
	rule, err := messages.RuleFor(msg.Kind)
	if err != nil {
		return "", err
	}
	switch rule.Target {
	case messages.TargetNone:
		return msg.Hash, nil
	case messages.TargetBid:
		if _, err := p.bids.FindByHash(ctx, msg.TargetRef); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return "", apperrors.New(apperrors.CodeUnresolvedRef, "bid "+msg.TargetRef+" not known locally")
			}
			return "", apperrors.Wrap(apperrors.CodeDependency, err, "loading bid")
		}
		return msg.TargetRef, nil
	default:
		order, err := p.orders.FindByHash(ctx, msg.TargetRef)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return "", apperrors.New(apperrors.CodeUnresolvedRef, "order "+msg.TargetRef+" not known locally")
			}
			return "", apperrors.Wrap(apperrors.CodeDependency, err, "loading order")
		}
		return order.BidHash, nil
	}
}

// park queues an unresolved message for bounded retry. Redelivery of an
// already-parked hash is a no-op.
func (p *Processor) park(ctx context.Context, msg messages.ActionMessage, cause error) (*ProcessResult, error) {
	raw, err := p.codec.Encode(msg)
	if err != nil {
		return nil, err
	}
	targetRef := msg.TargetRef
	if targetRef == "" {
		// BID waiting on its listing parks under the listing hash.
		if payload, ok := msg.Payload.(messages.BidPayload); ok {
			targetRef = payload.ItemRef
		}
	}
	entry := &models.PendingMessage{
		MessageHash: msg.Hash,
		TargetRef:   targetRef,
		Kind:        msg.Kind,
		Raw:         raw,
		Status:      enums.PendingMessageStatusQueued,
		FirstSeenAt: p.clock(),
	}
	if err := p.pending.Enqueue(ctx, entry); err != nil {
		if !isDuplicateKey(err) {
			return nil, apperrors.Wrap(apperrors.CodeDependency, err, "queueing pending message")
		}
	}
	p.logg.Warn(ctx, "message parked on unresolved reference: "+cause.Error())
	return &ProcessResult{Outcome: enums.ProcessOutcomePending}, nil
}

func (p *Processor) apply(ctx context.Context, tx *gorm.DB, msg messages.ActionMessage, lineage string, result *ProcessResult) error {
	switch msg.Kind {
	case enums.ActionKindBid:
		return p.applyBid(ctx, tx, msg, result)
	case enums.ActionKindAccept:
		return p.applyAccept(ctx, tx, msg, result)
	case enums.ActionKindReject, enums.ActionKindCancel:
		return p.applyBidTerminal(ctx, tx, msg, result)
	default:
		return p.applyOrderStage(ctx, tx, msg, lineage, result)
	}
}

func (p *Processor) applyBid(ctx context.Context, tx *gorm.DB, msg messages.ActionMessage, result *ProcessResult) error {
	payload := msg.Payload.(messages.BidPayload)

	listing, err := p.listings.WithTx(tx).FindByHash(ctx, payload.ItemRef)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.New(apperrors.CodeUnresolvedRef, "listing "+payload.ItemRef+" not known locally")
		}
		return apperrors.Wrap(apperrors.CodeDependency, err, "resolving listing")
	}
	if listing.IsExpired(p.clock()) {
		return illegalTransition("listing %s is expired", listing.Hash)
	}

	bid := &models.Bid{
		Hash:          msg.Hash,
		ItemRef:       payload.ItemRef,
		BidderAddress: payload.BidderAddress,
		SellerAddress: listing.SellerAddress,
		CurrentAction: enums.ActionKindBid,
		Payload:       bidPayloadMap(payload),
	}
	bidRepo := p.bids.WithTx(tx)
	if _, err := bidRepo.Create(ctx, bid); err != nil {
		return apperrors.Wrap(apperrors.CodeDependency, err, "persisting bid")
	}
	if err := p.appendHistory(ctx, tx, bid.Hash, msg, 0); err != nil {
		return err
	}
	result.Bid = bid
	return nil
}

func (p *Processor) applyAccept(ctx context.Context, tx *gorm.DB, msg messages.ActionMessage, result *ProcessResult) error {
	payload := msg.Payload.(messages.AcceptPayload)

	// Lock the bid row: another node's message for the same lineage may be
	// applying in a different process at the same time.
	bidRepo := p.bids.WithTx(tx)
	bid, err := bidRepo.FindByHashForUpdate(ctx, msg.TargetRef)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.New(apperrors.CodeUnresolvedRef, "bid "+msg.TargetRef+" not known locally")
		}
		return apperrors.Wrap(apperrors.CodeDependency, err, "loading bid")
	}
	if err := checkBidTransition(bid.CurrentAction, msg.Kind); err != nil {
		return err
	}

	order := &models.Order{
		Hash:          hashing.DeriveOrderHash(bid.Hash, msg.Hash),
		BidHash:       bid.Hash,
		AcceptHash:    msg.Hash,
		BuyerAddress:  bid.BidderAddress,
		SellerAddress: bid.SellerAddress,
		Items: []models.OrderItem{{
			ItemRef:       bid.ItemRef,
			Status:        enums.OrderItemStatusAwaitingEscrow,
			LastActionRef: msg.Hash,
		}},
	}
	if _, err := p.orders.WithTx(tx).Create(ctx, order); err != nil {
		return apperrors.Wrap(apperrors.CodeDependency, err, "persisting order")
	}

	bid.CurrentAction = enums.ActionKindAccept
	merge := types.JSONMap{"escrow_ref": payload.EscrowRef}
	for key, value := range payload.Terms {
		merge[key] = value
	}
	bid.Payload = bid.Payload.MergeMissing(merge)
	if err := bidRepo.Update(ctx, bid); err != nil {
		return apperrors.Wrap(apperrors.CodeDependency, err, "updating bid")
	}
	if err := p.appendHistory(ctx, tx, bid.Hash, msg, len(bid.History)); err != nil {
		return err
	}

	result.Bid = bid
	result.Order = order
	return nil
}

func (p *Processor) applyBidTerminal(ctx context.Context, tx *gorm.DB, msg messages.ActionMessage, result *ProcessResult) error {
	bidRepo := p.bids.WithTx(tx)
	bid, err := bidRepo.FindByHashForUpdate(ctx, msg.TargetRef)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.New(apperrors.CodeUnresolvedRef, "bid "+msg.TargetRef+" not known locally")
		}
		return apperrors.Wrap(apperrors.CodeDependency, err, "loading bid")
	}
	if err := checkBidTransition(bid.CurrentAction, msg.Kind); err != nil {
		return err
	}

	bid.CurrentAction = msg.Kind
	if err := bidRepo.Update(ctx, bid); err != nil {
		return apperrors.Wrap(apperrors.CodeDependency, err, "updating bid")
	}
	if err := p.appendHistory(ctx, tx, bid.Hash, msg, len(bid.History)); err != nil {
		return err
	}
	result.Bid = bid
	return nil
}

func (p *Processor) applyOrderStage(ctx context.Context, tx *gorm.DB, msg messages.ActionMessage, lineage string, result *ProcessResult) error {
	// The lineage bid row is the serialization point for the whole escrow
	// chain. Lock it before touching order items so concurrent processes
	// cannot interleave transitions.
	bidRepo := p.bids.WithTx(tx)
	bid, err := bidRepo.FindByHashForUpdate(ctx, lineage)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeDependency, err, "loading bid lineage")
	}

	orderRepo := p.orders.WithTx(tx)
	order, err := orderRepo.FindByHash(ctx, msg.TargetRef)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.New(apperrors.CodeUnresolvedRef, "order "+msg.TargetRef+" not known locally")
		}
		return apperrors.Wrap(apperrors.CodeDependency, err, "loading order")
	}

	for i := range order.Items {
		item := &order.Items[i]
		next, mutates, err := nextOrderStatus(item.Status, msg.Kind, msg.ActorRole)
		if err != nil {
			return err
		}
		if !mutates {
			continue
		}
		if err := orderRepo.UpdateItemStatus(ctx, item.ID, next, msg.Hash); err != nil {
			return apperrors.Wrap(apperrors.CodeDependency, err, "updating order item")
		}
		item.Status = next
		item.LastActionRef = msg.Hash
	}

	bid.CurrentAction = msg.Kind
	bid.Payload = bid.Payload.MergeMissing(orderStagePayloadMap(msg))
	if err := bidRepo.Update(ctx, bid); err != nil {
		return apperrors.Wrap(apperrors.CodeDependency, err, "updating bid")
	}
	if err := p.appendHistory(ctx, tx, bid.Hash, msg, len(bid.History)); err != nil {
		return err
	}

	result.Bid = bid
	result.Order = order
	return nil
}

func (p *Processor) appendHistory(ctx context.Context, tx *gorm.DB, bidHash string, msg messages.ActionMessage, knownPosition int) error {
	position := knownPosition
	if position == 0 && msg.Kind != enums.ActionKindBid {
		count, err := p.bids.WithTx(tx).CountMessages(ctx, bidHash)
		if err != nil {
			return apperrors.Wrap(apperrors.CodeDependency, err, "counting bid history")
		}
		position = int(count)
	}
	entry := &models.BidMessage{
		BidHash:     bidHash,
		MessageHash: msg.Hash,
		Kind:        msg.Kind,
		ActorRole:   msg.ActorRole,
		GeneratedAt: msg.GeneratedAt,
		Position:    position,
	}
	if err := p.bids.WithTx(tx).AppendMessage(ctx, entry); err != nil {
		return apperrors.Wrap(apperrors.CodeDependency, err, "appending bid history")
	}
	return nil
}

func bidPayloadMap(payload messages.BidPayload) types.JSONMap {
	out := types.JSONMap{}
	for key, value := range payload.Options {
		out[key] = value
	}
	for key, value := range payload.ShippingAddress {
		out["shipping_"+key] = value
	}
	return out
}

func orderStagePayloadMap(msg messages.ActionMessage) types.JSONMap {
	out := types.JSONMap{}
	switch payload := msg.Payload.(type) {
	case messages.LockPayload:
		out["escrow_tx_ref"] = payload.EscrowTxRef
	case messages.RefundPayload:
		if payload.RefundTxRef != "" {
			out["refund_tx_ref"] = payload.RefundTxRef
		}
	case messages.ShipPayload:
		out["carrier"] = payload.Carrier
		if payload.TrackingRef != "" {
			out["tracking_ref"] = payload.TrackingRef
		}
	}
	return out
}

func (p *Processor) observe(ctx context.Context, msg messages.ActionMessage, result *ProcessResult, err error, elapsed time.Duration) {
	kind := msg.Kind.String()
	if err != nil {
		p.metrics.IncRejected(kind, string(apperrors.CodeOf(err)))
		p.logg.Warn(ctx, "message rejected: "+err.Error())
		return
	}
	p.metrics.IncProcessed(kind, result.Outcome.String())
	p.metrics.ObserveProcessDuration(kind, elapsed)
	p.logg.Info(ctx, "message "+result.Outcome.String())
}

func isDuplicateKey(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey) || db.IsUniqueViolation(err, "")
}
