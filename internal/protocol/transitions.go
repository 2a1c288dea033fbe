package protocol

import (
	"fmt"

	"github.com/lvollmer/bazaarnode/pkg/enums"
	apperrors "github.com/lvollmer/bazaarnode/pkg/errors"
)

func illegalTransition(format string, args ...any) error {
	return apperrors.New(apperrors.CodeStateConflict, fmt.Sprintf(format, args...))
}

// checkBidTransition guards the pre-order stage: ACCEPT, REJECT and CANCEL
// are legal only while the bid still sits at its opening action.
func checkBidTransition(current enums.ActionKind, incoming enums.ActionKind) error {
	switch incoming {
	case enums.ActionKindAccept, enums.ActionKindReject, enums.ActionKindCancel:
		if current != enums.ActionKindBid {
			return illegalTransition("%s not allowed on bid in action %s", incoming, current)
		}
		return nil
	default:
		return illegalTransition("%s does not target a bid", incoming)
	}
}

// orderTransition is one row of the escrow state table.
type orderTransition struct {
	next enums.OrderItemStatus
	// mutates is false for informational messages that are applied (recorded,
	// deduped) without changing the item status.
	mutates bool
}

type orderTransitionKey struct {
	current enums.OrderItemStatus
	kind    enums.ActionKind
	role    enums.ActorRole
}

var orderTransitions = map[orderTransitionKey]orderTransition{
	{enums.OrderItemStatusAwaitingEscrow, enums.ActionKindLock, enums.ActorRoleBuyer}:    {next: enums.OrderItemStatusEscrowLocked, mutates: true},
	{enums.OrderItemStatusAwaitingEscrow, enums.ActionKindRefund, enums.ActorRoleBuyer}:  {next: enums.OrderItemStatusRefunded, mutates: true},
	{enums.OrderItemStatusAwaitingEscrow, enums.ActionKindRefund, enums.ActorRoleSeller}: {next: enums.OrderItemStatusRefunded, mutates: true},
	{enums.OrderItemStatusEscrowLocked, enums.ActionKindRefund, enums.ActorRoleBuyer}:    {next: enums.OrderItemStatusRefunded, mutates: true},
	{enums.OrderItemStatusEscrowLocked, enums.ActionKindRefund, enums.ActorRoleSeller}:   {next: enums.OrderItemStatusRefunded, mutates: true},
	{enums.OrderItemStatusEscrowLocked, enums.ActionKindRelease, enums.ActorRoleSeller}:  {next: enums.OrderItemStatusShipping, mutates: true},
	{enums.OrderItemStatusShipping, enums.ActionKindRelease, enums.ActorRoleBuyer}:       {next: enums.OrderItemStatusComplete, mutates: true},
	{enums.OrderItemStatusShipping, enums.ActionKindShip, enums.ActorRoleSeller}:         {next: enums.OrderItemStatusShipping, mutates: false},
	{enums.OrderItemStatusComplete, enums.ActionKindComplete, enums.ActorRoleSeller}:     {next: enums.OrderItemStatusComplete, mutates: false},
}

// nextOrderStatus resolves the escrow table for one item. The returned bool
// reports whether the status actually changes; informational kinds (SHIP,
// COMPLETE ack) apply without moving the state.
func nextOrderStatus(current enums.OrderItemStatus, kind enums.ActionKind, role enums.ActorRole) (enums.OrderItemStatus, bool, error) {
	transition, ok := orderTransitions[orderTransitionKey{current: current, kind: kind, role: role}]
	if !ok {
		return current, false, illegalTransition("%s by %s not allowed on item in status %s", kind, role, current)
	}
	return transition.next, transition.mutates, nil
}
