package controllers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"gorm.io/gorm"

	"github.com/lvollmer/bazaarnode/api/middleware"
	"github.com/lvollmer/bazaarnode/api/responses"
	"github.com/lvollmer/bazaarnode/api/validators"
	"github.com/lvollmer/bazaarnode/internal/messages"
	"github.com/lvollmer/bazaarnode/internal/orders"
	"github.com/lvollmer/bazaarnode/internal/protocol"
	"github.com/lvollmer/bazaarnode/pkg/db/models"
	"github.com/lvollmer/bazaarnode/pkg/enums"
	pkgerrors "github.com/lvollmer/bazaarnode/pkg/errors"
	"github.com/lvollmer/bazaarnode/pkg/logger"
	"github.com/lvollmer/bazaarnode/pkg/pagination"
)

type lockOrderRequest struct {
	EscrowTxRef string `json:"escrow_tx_ref" validate:"required"`
}

type releaseOrderRequest struct {
	Memo string `json:"memo,omitempty" validate:"omitempty,max=500"`
}

type refundOrderRequest struct {
	Reason      string `json:"reason,omitempty" validate:"omitempty,max=500"`
	RefundTxRef string `json:"refund_tx_ref,omitempty"`
}

type shipOrderRequest struct {
	Carrier     string `json:"carrier" validate:"required"`
	TrackingRef string `json:"tracking_ref,omitempty"`
}

type orderDetail struct {
	Hash          string            `json:"hash"`
	BidHash       string            `json:"bid_hash"`
	AcceptHash    string            `json:"accept_hash"`
	BuyerAddress  string            `json:"buyer_address"`
	SellerAddress string            `json:"seller_address"`
	Items         []orderItemDetail `json:"items"`
}

type orderItemDetail struct {
	ItemRef       string                `json:"item_ref"`
	Status        enums.OrderItemStatus `json:"status"`
	LastActionRef string                `json:"last_action_ref"`
}

func orderDetailFrom(order *models.Order) *orderDetail {
	if order == nil {
		return nil
	}
	detail := &orderDetail{
		Hash:          order.Hash,
		BidHash:       order.BidHash,
		AcceptHash:    order.AcceptHash,
		BuyerAddress:  order.BuyerAddress,
		SellerAddress: order.SellerAddress,
	}
	for _, item := range order.Items {
		detail.Items = append(detail.Items, orderItemDetail{
			ItemRef:       item.ItemRef,
			Status:        item.Status,
			LastActionRef: item.LastActionRef,
		})
	}
	return detail
}

type orderCommandResponse struct {
	MessageHash string           `json:"message_hash"`
	Kind        enums.ActionKind `json:"kind"`
	Outcome     string           `json:"outcome"`
	Order       *orderDetail     `json:"order,omitempty"`
}

// LockOrder records the buyer's escrow lock on the order.
func LockOrder(builder MessageBuilder, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := requireRole(r, enums.ActorRoleBuyer); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req lockOrderRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		writeOrderCommand(w, r, builder, logg, protocol.BuildInput{
			Kind:      enums.ActionKindLock,
			TargetRef: chi.URLParam(r, "hash"),
			ActorRole: enums.ActorRoleBuyer,
			Payload:   messages.LockPayload{EscrowTxRef: req.EscrowTxRef},
		})
	}
}

// ReleaseOrder advances escrow: the seller's release starts shipping, the
// buyer's release completes the order. The role comes from the token.
func ReleaseOrder(builder MessageBuilder, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		role, err := enums.ParseActorRole(middleware.RoleFromContext(r.Context()))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeForbidden, err, "missing actor role"))
			return
		}

		var req releaseOrderRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		writeOrderCommand(w, r, builder, logg, protocol.BuildInput{
			Kind:      enums.ActionKindRelease,
			TargetRef: chi.URLParam(r, "hash"),
			ActorRole: role,
			Payload:   messages.ReleasePayload{Memo: req.Memo},
		})
	}
}

// RefundOrder returns the escrow to the buyer; either party may issue it
// while the order has not shipped.
func RefundOrder(builder MessageBuilder, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		role, err := enums.ParseActorRole(middleware.RoleFromContext(r.Context()))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeForbidden, err, "missing actor role"))
			return
		}

		var req refundOrderRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		writeOrderCommand(w, r, builder, logg, protocol.BuildInput{
			Kind:      enums.ActionKindRefund,
			TargetRef: chi.URLParam(r, "hash"),
			ActorRole: role,
			Payload:   messages.RefundPayload{Reason: req.Reason, RefundTxRef: req.RefundTxRef},
		})
	}
}

// ShipOrder records the seller's tracking update while the order ships.
func ShipOrder(builder MessageBuilder, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := requireRole(r, enums.ActorRoleSeller); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req shipOrderRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		writeOrderCommand(w, r, builder, logg, protocol.BuildInput{
			Kind:      enums.ActionKindShip,
			TargetRef: chi.URLParam(r, "hash"),
			ActorRole: enums.ActorRoleSeller,
			Payload:   messages.ShipPayload{Carrier: req.Carrier, TrackingRef: req.TrackingRef},
		})
	}
}

// CompleteOrder acknowledges a completed order from the seller side.
func CompleteOrder(builder MessageBuilder, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := requireRole(r, enums.ActorRoleSeller); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req releaseOrderRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		writeOrderCommand(w, r, builder, logg, protocol.BuildInput{
			Kind:      enums.ActionKindComplete,
			TargetRef: chi.URLParam(r, "hash"),
			ActorRole: enums.ActorRoleSeller,
			Payload:   messages.CompletePayload{Memo: req.Memo},
		})
	}
}

func writeOrderCommand(w http.ResponseWriter, r *http.Request, builder MessageBuilder, logg *logger.Logger, input protocol.BuildInput) {
	msg, result, err := builder.Build(r.Context(), input)
	if err != nil {
		responses.WriteError(r.Context(), logg, w, err)
		return
	}
	responses.WriteSuccessStatus(w, http.StatusCreated, orderCommandResponse{
		MessageHash: msg.Hash,
		Kind:        msg.Kind,
		Outcome:     result.Outcome.String(),
		Order:       orderDetailFrom(result.Order),
	})
}

// GetOrder returns one order with its item states.
func GetOrder(reader OrderReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		order, err := reader.FindByHash(r.Context(), chi.URLParam(r, "hash"))
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				err = pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, orderDetailFrom(order))
	}
}

// SearchOrders lists orders filtered by party, listing or item status.
func SearchOrders(reader OrderReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		filters := orders.SearchFilters{
			BuyerAddress:  validators.QueryString(r, "buyer_address"),
			SellerAddress: validators.QueryString(r, "seller_address"),
			ItemRef:       validators.QueryString(r, "item_ref"),
		}
		if raw := validators.QueryString(r, "status"); raw != "" {
			status, parseErr := enums.ParseOrderItemStatus(raw)
			if parseErr != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, parseErr, "invalid status filter"))
				return
			}
			filters.Status = &status
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
