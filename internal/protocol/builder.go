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
	"github.com/lvollmer/bazaarnode/pkg/db/models"
	"github.com/lvollmer/bazaarnode/pkg/enums"
	apperrors "github.com/lvollmer/bazaarnode/pkg/errors"
	"github.com/lvollmer/bazaarnode/pkg/logger"
)

// BuilderParams collects the builder's explicit collaborators.
type BuilderParams struct {
	Processor   *Processor
	Hasher      *hashing.Service
	Codec       *messages.Codec
	Bids        bids.Repository
	Orders      orders.Repository
	Listings    listings.Repository
	Outbound    OutboundRepository
	Logger      *logger.Logger
	Clock       func() time.Time
	NodeAddress string
}

// BuildInput is a local command resolved to protocol terms.
type BuildInput struct {
	Kind      enums.ActionKind
	TargetRef string
	ActorRole enums.ActorRole
	Payload   messages.Payload
}

// Builder composes outgoing action messages. It never applies a transition
// itself: the finished message is fed through the Processor, so sender and
// receiver run identical logic, and the outbound row is queued in the same
// transaction as the local self-apply.
type Builder struct {
	processor   *Processor
	hasher      *hashing.Service
	codec       *messages.Codec
	bids        bids.Repository
	orders      orders.Repository
	listings    listings.Repository
	outbound    OutboundRepository
	logg        *logger.Logger
	clock       func() time.Time
	nodeAddress string
}

func NewBuilder(params BuilderParams) (*Builder, error) {
	if params.Processor == nil {
		return nil, errors.New("processor is required")
	}
	if params.Hasher == nil {
		return nil, errors.New("hashing service is required")
	}
	if params.Outbound == nil {
		return nil, errors.New("outbound repository is required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if params.NodeAddress == "" {
		return nil, errors.New("node address is required")
	}
	codec := params.Codec
	if codec == nil {
		codec = messages.NewCodec(nil)
	}
	clock := params.Clock
	if clock == nil {
		clock = func() time.Time { return time.Now().UTC() }
	}
	return &Builder{
		processor:   params.Processor,
		hasher:      params.Hasher,
		codec:       codec,
		bids:        params.Bids,
		orders:      params.Orders,
		listings:    params.Listings,
		outbound:    params.Outbound,
		logg:        params.Logger,
		clock:       clock,
		nodeAddress: params.NodeAddress,
	}, nil
}

// Build stamps, hashes, self-applies and queues one outgoing message. An
// illegal command fails before anything is persisted or queued, so this node
// never broadcasts a message its own replica would reject on replay.
func (b *Builder) Build(ctx context.Context, input BuildInput) (messages.ActionMessage, *ProcessResult, error) {
	payload := input.Payload
	if bidPayload, ok := payload.(messages.BidPayload); ok && bidPayload.BidderAddress == "" {
		bidPayload.BidderAddress = b.nodeAddress
		payload = bidPayload
	}

	msg := messages.ActionMessage{
		Kind:        input.Kind,
		TargetRef:   input.TargetRef,
		ActorRole:   input.ActorRole,
		Payload:     payload,
		GeneratedAt: b.clock().UnixMilli(),
	}

	hash, err := b.hasher.ComputeHash(msg.HashableForm())
	if err != nil {
		return messages.ActionMessage{}, nil, err
	}
	msg.Hash = hash

	if err := messages.Validate(msg); err != nil {
		return messages.ActionMessage{}, nil, err
	}
	if err := b.checkTargetKnown(ctx, msg); err != nil {
		return messages.ActionMessage{}, nil, err
	}

	raw, err := b.codec.Encode(msg)
	if err != nil {
		return messages.ActionMessage{}, nil, err
	}

	result, err := b.processor.process(ctx, msg, func(tx *gorm.DB, result *ProcessResult) error {
		recipient, err := recipientFor(msg, result)
		if err != nil {
			return err
		}
		return b.outbound.WithTx(tx).Enqueue(ctx, &models.OutboundMessage{
			MessageHash: msg.Hash,
			Kind:        msg.Kind,
			Recipient:   recipient,
			Raw:         raw,
		})
	})
	if err != nil {
		return messages.ActionMessage{}, nil, err
	}
	if result.Outcome != enums.ProcessOutcomeApplied {
		// Self-built messages must apply; anything else means the command
		// raced a duplicate or an unknown parent.
		return messages.ActionMessage{}, nil, apperrors.New(apperrors.CodeConflict,
			"local build did not apply: "+result.Outcome.String())
	}
	return msg, result, nil
}

// checkTargetKnown fails a local command fast when the referenced entity is
// not in local state. Remote messages park instead; a local command has
// nothing to wait for.
func (b *Builder) checkTargetKnown(ctx context.Context, msg messages.ActionMessage) error {
	rule, err := messages.RuleFor(msg.Kind)
	if err != nil {
		return err
	}
	switch rule.Target {
	case messages.TargetNone:
		payload := msg.Payload.(messages.BidPayload)
		if _, err := b.listings.FindByHash(ctx, payload.ItemRef); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.New(apperrors.CodeNotFound, "listing "+payload.ItemRef+" not known locally")
			}
			return apperrors.Wrap(apperrors.CodeDependency, err, "resolving listing")
		}
	case messages.TargetBid:
		if _, err := b.bids.FindByHash(ctx, msg.TargetRef); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.New(apperrors.CodeNotFound, "bid "+msg.TargetRef+" not known locally")
			}
			return apperrors.Wrap(apperrors.CodeDependency, err, "loading bid")
		}
	default:
		if _, err := b.orders.FindByHash(ctx, msg.TargetRef); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.New(apperrors.CodeNotFound, "order "+msg.TargetRef+" not known locally")
			}
			return apperrors.Wrap(apperrors.CodeDependency, err, "loading order")
		}
	}
	return nil
}

// recipientFor picks the counterparty the broadcast should address.
func recipientFor(msg messages.ActionMessage, result *ProcessResult) (string, error) {
	switch msg.Kind {
	case enums.ActionKindBid, enums.ActionKindCancel:
		if result.Bid == nil || result.Bid.SellerAddress == "" {
			return "", apperrors.New(apperrors.CodeInternal, "bid result carries no seller address")
		}
		return result.Bid.SellerAddress, nil
	case enums.ActionKindAccept, enums.ActionKindReject:
		if result.Bid == nil || result.Bid.BidderAddress == "" {
			return "", apperrors.New(apperrors.CodeInternal, "bid result carries no bidder address")
		}
		return result.Bid.BidderAddress, nil
	default:
		if result.Order == nil {
			return "", apperrors.New(apperrors.CodeInternal, "order result missing for order-stage message")
		}
		if msg.ActorRole == enums.ActorRoleBuyer {
			return result.Order.SellerAddress, nil
		}
		return result.Order.BuyerAddress, nil
	}
}
