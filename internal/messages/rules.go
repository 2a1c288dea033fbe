package messages

import (
	"strings"

	"github.com/lvollmer/bazaarnode/pkg/enums"
	apperrors "github.com/lvollmer/bazaarnode/pkg/errors"
)

// TargetClass says what entity a kind's target_ref must point at.
type TargetClass string

const (
	// TargetNone: the message opens a lineage (BID references a listing in
	// its payload, not through target_ref).
	TargetNone TargetClass = "none"
	// TargetBid: target_ref is a bid message hash.
	TargetBid TargetClass = "bid"
	// TargetOrder: target_ref is an order hash.
	TargetOrder TargetClass = "order"
)

// Rule declares which roles may emit a kind and what it must reference.
// Status preconditions live in the transition table, not here.
type Rule struct {
	Roles  []enums.ActorRole
	Target TargetClass
}

var ruleByKind = map[enums.ActionKind]Rule{
	enums.ActionKindBid:      {Roles: []enums.ActorRole{enums.ActorRoleBuyer}, Target: TargetNone},
	enums.ActionKindAccept:   {Roles: []enums.ActorRole{enums.ActorRoleSeller}, Target: TargetBid},
	enums.ActionKindReject:   {Roles: []enums.ActorRole{enums.ActorRoleSeller}, Target: TargetBid},
	enums.ActionKindCancel:   {Roles: []enums.ActorRole{enums.ActorRoleBuyer}, Target: TargetBid},
	enums.ActionKindLock:     {Roles: []enums.ActorRole{enums.ActorRoleBuyer}, Target: TargetOrder},
	enums.ActionKindRefund:   {Roles: []enums.ActorRole{enums.ActorRoleBuyer, enums.ActorRoleSeller}, Target: TargetOrder},
	enums.ActionKindRelease:  {Roles: []enums.ActorRole{enums.ActorRoleBuyer, enums.ActorRoleSeller}, Target: TargetOrder},
	enums.ActionKindShip:     {Roles: []enums.ActorRole{enums.ActorRoleSeller}, Target: TargetOrder},
	enums.ActionKindComplete: {Roles: []enums.ActorRole{enums.ActorRoleSeller}, Target: TargetOrder},
}

// RuleFor returns the emission rule for a kind.
func RuleFor(kind enums.ActionKind) (Rule, error) {
	rule, ok := ruleByKind[kind]
	if !ok {
		return Rule{}, apperrors.New(apperrors.CodeMalformedMessage, "no rule for kind "+kind.String())
	}
	return rule, nil
}

func (r Rule) allowsRole(role enums.ActorRole) bool {
	for _, candidate := range r.Roles {
		if candidate == role {
			return true
		}
	}
	return false
}

// Validate checks a message's structure against its kind's rule before it
// reaches the state machine: role permission, target_ref presence, payload
// variant match and the variant's required fields.
func Validate(msg ActionMessage) error {
	if !msg.Kind.IsValid() {
		return apperrors.New(apperrors.CodeMalformedMessage, "invalid action kind "+string(msg.Kind))
	}
	if !msg.ActorRole.IsValid() {
		return apperrors.New(apperrors.CodeMalformedMessage, "invalid actor role "+string(msg.ActorRole))
	}

	rule, err := RuleFor(msg.Kind)
	if err != nil {
		return err
	}
	if !rule.allowsRole(msg.ActorRole) {
		return apperrors.New(apperrors.CodeMalformedMessage,
			msg.ActorRole.String()+" may not emit "+msg.Kind.String())
	}

	hasTarget := strings.TrimSpace(msg.TargetRef) != ""
	if rule.Target == TargetNone && hasTarget {
		return apperrors.New(apperrors.CodeMalformedMessage, msg.Kind.String()+" must not carry target_ref")
	}
	if rule.Target != TargetNone && !hasTarget {
		return apperrors.New(apperrors.CodeMalformedMessage, msg.Kind.String()+" requires target_ref")
	}

	if msg.Payload == nil {
		return apperrors.New(apperrors.CodeMalformedMessage, msg.Kind.String()+" message missing payload")
	}
	if msg.Payload.Kind() != msg.Kind {
		return apperrors.New(apperrors.CodeMalformedMessage,
			"payload variant "+msg.Payload.Kind().String()+" does not match kind "+msg.Kind.String())
	}
	if err := msg.Payload.Validate(); err != nil {
		return err
	}

	if msg.GeneratedAt <= 0 {
		return apperrors.New(apperrors.CodeMalformedMessage, msg.Kind.String()+" message missing generated_at")
	}
	if strings.TrimSpace(msg.Hash) == "" {
		return apperrors.New(apperrors.CodeMalformedMessage, msg.Kind.String()+" message missing hash")
	}
	return nil
}
