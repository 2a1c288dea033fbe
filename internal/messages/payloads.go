package messages

import (
	"strings"

	"github.com/lvollmer/bazaarnode/pkg/enums"
	apperrors "github.com/lvollmer/bazaarnode/pkg/errors"
)

// Payload is the closed per-kind variant carried by an ActionMessage. Keeping
// the variants as structs makes hash canonicalization and required-field
// checks exhaustive instead of validated ad hoc against an open bag.
type Payload interface {
	Kind() enums.ActionKind
	Validate() error
}

func missingField(kind enums.ActionKind, field string) error {
	return apperrors.New(apperrors.CodeMalformedMessage,
		string(kind)+" message missing required field "+field)
}

// BidPayload is the buyer's proposal. The only payload that carries the
// listing reference; every later message points at the bid or order instead.
type BidPayload struct {
	ItemRef         string            `json:"item_ref"`
	BidderAddress   string            `json:"bidder_address"`
	ShippingAddress map[string]string `json:"shipping_address,omitempty"`
	Options         map[string]string `json:"options,omitempty"`
}

func (p BidPayload) Kind() enums.ActionKind { return enums.ActionKindBid }

func (p BidPayload) Validate() error {
	if strings.TrimSpace(p.ItemRef) == "" {
		return missingField(enums.ActionKindBid, "item_ref")
	}
	if strings.TrimSpace(p.BidderAddress) == "" {
		return missingField(enums.ActionKindBid, "bidder_address")
	}
	return nil
}

// AcceptPayload carries the seller's escrow reference for the buyer to lock
// against, plus any seller-added terms. Added keys never overwrite bid keys.
type AcceptPayload struct {
	EscrowRef string            `json:"escrow_ref"`
	Terms     map[string]string `json:"terms,omitempty"`
}

func (p AcceptPayload) Kind() enums.ActionKind { return enums.ActionKindAccept }

func (p AcceptPayload) Validate() error {
	if strings.TrimSpace(p.EscrowRef) == "" {
		return missingField(enums.ActionKindAccept, "escrow_ref")
	}
	return nil
}

type RejectPayload struct {
	Reason string `json:"reason,omitempty"`
}

func (p RejectPayload) Kind() enums.ActionKind { return enums.ActionKindReject }
func (p RejectPayload) Validate() error        { return nil }

type CancelPayload struct {
	Reason string `json:"reason,omitempty"`
}

func (p CancelPayload) Kind() enums.ActionKind { return enums.ActionKindCancel }
func (p CancelPayload) Validate() error        { return nil }

// LockPayload references the escrow transaction the buyer funded.
type LockPayload struct {
	EscrowTxRef string `json:"escrow_tx_ref"`
}

func (p LockPayload) Kind() enums.ActionKind { return enums.ActionKindLock }

func (p LockPayload) Validate() error {
	if strings.TrimSpace(p.EscrowTxRef) == "" {
		return missingField(enums.ActionKindLock, "escrow_tx_ref")
	}
	return nil
}

type RefundPayload struct {
	Reason      string `json:"reason,omitempty"`
	RefundTxRef string `json:"refund_tx_ref,omitempty"`
}

func (p RefundPayload) Kind() enums.ActionKind { return enums.ActionKindRefund }
func (p RefundPayload) Validate() error        { return nil }

// ReleasePayload is emitted twice per order: by the seller releasing goods
// and by the buyer releasing funds on receipt.
type ReleasePayload struct {
	Memo string `json:"memo,omitempty"`
}

func (p ReleasePayload) Kind() enums.ActionKind { return enums.ActionKindRelease }
func (p ReleasePayload) Validate() error        { return nil }

// ShipPayload is the seller's informational tracking update while the order
// is in shipping. It never changes order status.
type ShipPayload struct {
	Carrier     string `json:"carrier"`
	TrackingRef string `json:"tracking_ref,omitempty"`
}

func (p ShipPayload) Kind() enums.ActionKind { return enums.ActionKindShip }

func (p ShipPayload) Validate() error {
	if strings.TrimSpace(p.Carrier) == "" {
		return missingField(enums.ActionKindShip, "carrier")
	}
	return nil
}

// CompletePayload is the seller's acknowledgement after the buyer's final
// release.
type CompletePayload struct {
	Memo string `json:"memo,omitempty"`
}

func (p CompletePayload) Kind() enums.ActionKind { return enums.ActionKindComplete }
func (p CompletePayload) Validate() error        { return nil }
