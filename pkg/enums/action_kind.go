package enums

import "fmt"

// ActionKind identifies a protocol action message variant.
type ActionKind string

const (
	ActionKindBid      ActionKind = "bid"
	ActionKindAccept   ActionKind = "accept"
	ActionKindReject   ActionKind = "reject"
	ActionKindCancel   ActionKind = "cancel"
	ActionKindLock     ActionKind = "lock"
	ActionKindRefund   ActionKind = "refund"
	ActionKindRelease  ActionKind = "release"
	ActionKindShip     ActionKind = "ship"
	ActionKindComplete ActionKind = "complete"
)

var validActionKinds = []ActionKind{
	ActionKindBid,
	ActionKindAccept,
	ActionKindReject,
	ActionKindCancel,
	ActionKindLock,
	ActionKindRefund,
	ActionKindRelease,
	ActionKindShip,
	ActionKindComplete,
}

// String implements fmt.Stringer.
func (a ActionKind) String() string {
	return string(a)
}

// IsValid reports whether the value is a known ActionKind.
func (a ActionKind) IsValid() bool {
	for _, candidate := range validActionKinds {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseActionKind converts raw input into an ActionKind.
func ParseActionKind(value string) (ActionKind, error) {
	for _, candidate := range validActionKinds {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid action kind %q", value)
}
