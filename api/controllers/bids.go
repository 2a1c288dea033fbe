package controllers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"gorm.io/gorm"

	"github.com/lvollmer/bazaarnode/api/middleware"
	"github.com/lvollmer/bazaarnode/api/responses"
	"github.com/lvollmer/bazaarnode/api/validators"
	"github.com/lvollmer/bazaarnode/internal/bids"
	"github.com/lvollmer/bazaarnode/internal/messages"
	"github.com/lvollmer/bazaarnode/internal/protocol"
	"github.com/lvollmer/bazaarnode/pkg/db/models"
	"github.com/lvollmer/bazaarnode/pkg/enums"
	pkgerrors "github.com/lvollmer/bazaarnode/pkg/errors"
	"github.com/lvollmer/bazaarnode/pkg/logger"
	"github.com/lvollmer/bazaarnode/pkg/pagination"
	"github.com/lvollmer/bazaarnode/pkg/types"
)

type sendBidRequest struct {
	ItemRef         string            `json:"item_ref" validate:"required"`
	ShippingAddress map[string]string `json:"shipping_address,omitempty"`
	Options         map[string]string `json:"options,omitempty"`
}

type acceptBidRequest struct {
	EscrowRef string            `json:"escrow_ref" validate:"required"`
	Terms     map[string]string `json:"terms,omitempty"`
}

type reasonRequest struct {
	Reason string `json:"reason,omitempty" validate:"omitempty,max=500"`
}

type commandResponse struct {
	MessageHash string           `json:"message_hash"`
	Kind        enums.ActionKind `json:"kind"`
	Outcome     string           `json:"outcome"`
	Bid         *bidDetail       `json:"bid,omitempty"`
	OrderHash   string           `json:"order_hash,omitempty"`
}

type bidDetail struct {
	Hash          string            `json:"hash"`
	ItemRef       string            `json:"item_ref"`
	BidderAddress string            `json:"bidder_address"`
	SellerAddress string            `json:"seller_address"`
	CurrentAction enums.ActionKind  `json:"current_action"`
	Payload       types.JSONMap     `json:"payload,omitempty"`
	History       []bidHistoryEntry `json:"history,omitempty"`
}

type bidHistoryEntry struct {
	MessageHash string           `json:"message_hash"`
	Kind        enums.ActionKind `json:"kind"`
	ActorRole   enums.ActorRole  `json:"actor_role"`
	GeneratedAt int64            `json:"generated_at"`
	Position    int              `json:"position"`
}

func bidDetailFrom(bid *models.Bid) *bidDetail {
	if bid == nil {
		return nil
	}
	detail := &bidDetail{
		Hash:          bid.Hash,
		ItemRef:       bid.ItemRef,
		BidderAddress: bid.BidderAddress,
		SellerAddress: bid.SellerAddress,
		CurrentAction: bid.CurrentAction,
		Payload:       bid.Payload,
	}
	for _, entry := range bid.History {
		detail.History = append(detail.History, bidHistoryEntry{
			MessageHash: entry.MessageHash,
			Kind:        entry.Kind,
			ActorRole:   entry.ActorRole,
			GeneratedAt: entry.GeneratedAt,
			Position:    entry.Position,
		})
	}
	return detail
}

func commandResponseFrom(msg messages.ActionMessage, result *protocol.ProcessResult) commandResponse {
	out := commandResponse{
		MessageHash: msg.Hash,
		Kind:        msg.Kind,
		Outcome:     result.Outcome.String(),
		Bid:         bidDetailFrom(result.Bid),
	}
	if result.Order != nil {
		out.OrderHash = result.Order.Hash
	}
	return out
}

// requireRole rejects commands issued under the wrong token role before they
// reach the builder.
func requireRole(r *http.Request, want enums.ActorRole) error {
	got := middleware.RoleFromContext(r.Context())
	if got != want.String() {
		return pkgerrors.New(pkgerrors.CodeForbidden, "command requires the "+want.String()+" role")
	}
	return nil
}

// SendBid opens a new bid lineage against a locally known listing.
func SendBid(builder MessageBuilder, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := requireRole(r, enums.ActorRoleBuyer); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req sendBidRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		msg, result, err := builder.Build(r.Context(), protocol.BuildInput{
			Kind:      enums.ActionKindBid,
			ActorRole: enums.ActorRoleBuyer,
			Payload: messages.BidPayload{
				ItemRef:         req.ItemRef,
				BidderAddress:   middleware.NodeAddressFromContext(r.Context()),
				ShippingAddress: req.ShippingAddress,
				Options:         req.Options,
			},
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, commandResponseFrom(msg, result))
	}
}

// AcceptBid forms the order for an open bid.
func AcceptBid(builder MessageBuilder, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := requireRole(r, enums.ActorRoleSeller); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req acceptBidRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		msg, result, err := builder.Build(r.Context(), protocol.BuildInput{
			Kind:      enums.ActionKindAccept,
			TargetRef: chi.URLParam(r, "hash"),
			ActorRole: enums.ActorRoleSeller,
			Payload:   messages.AcceptPayload{EscrowRef: req.EscrowRef, Terms: req.Terms},
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, commandResponseFrom(msg, result))
	}
}

// RejectBid closes an open bid from the seller side.
func RejectBid(builder MessageBuilder, logg *logger.Logger) http.HandlerFunc {
	return bidTerminal(builder, logg, enums.ActionKindReject, enums.ActorRoleSeller)
}

// CancelBid closes the buyer's own open bid.
func CancelBid(builder MessageBuilder, logg *logger.Logger) http.HandlerFunc {
	return bidTerminal(builder, logg, enums.ActionKindCancel, enums.ActorRoleBuyer)
}

func bidTerminal(builder MessageBuilder, logg *logger.Logger, kind enums.ActionKind, role enums.ActorRole) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := requireRole(r, role); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req reasonRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload messages.Payload
		if kind == enums.ActionKindReject {
			payload = messages.RejectPayload{Reason: req.Reason}
		} else {
			payload = messages.CancelPayload{Reason: req.Reason}
		}

		msg, result, err := builder.Build(r.Context(), protocol.BuildInput{
			Kind:      kind,
			TargetRef: chi.URLParam(r, "hash"),
			ActorRole: role,
			Payload:   payload,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, commandResponseFrom(msg, result))
	}
}

// GetBid returns one bid with its full message history.
func GetBid(reader BidReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		bid, err := reader.FindByHash(r.Context(), chi.URLParam(r, "hash"))
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				err = pkgerrors.New(pkgerrors.CodeNotFound, "bid not found")
			}
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, bidDetailFrom(bid))
	}
}

// SearchBids lists bids filtered by listing, party or current action.
func SearchBids(reader BidReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		filters := bids.SearchFilters{
			ItemRef:       validators.QueryString(r, "item_ref"),
			BidderAddress: validators.QueryString(r, "bidder_address"),
			SellerAddress: validators.QueryString(r, "seller_address"),
		}
		if raw := validators.QueryString(r, "action"); raw != "" {
			action, parseErr := enums.ParseActionKind(raw)
			if parseErr != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, parseErr, "invalid action filter"))
				return
			}
			filters.Action = &action
		}

		list, err := reader.Search(r.Context(), pagination.Params{
			Limit:  limit,
			Cursor: validators.QueryString(r, "cursor"),
		}, filters)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}
