package enums

import "fmt"

// PendingMessageStatus tracks the retry lifecycle of an out-of-order message.
type PendingMessageStatus string

const (
	PendingMessageStatusQueued  PendingMessageStatus = "queued"
	PendingMessageStatusApplied PendingMessageStatus = "applied"
	PendingMessageStatusDropped PendingMessageStatus = "dropped"
)

var validPendingMessageStatuses = []PendingMessageStatus{
	PendingMessageStatusQueued,
	PendingMessageStatusApplied,
	PendingMessageStatusDropped,
}

// String implements fmt.Stringer.
func (p PendingMessageStatus) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PendingMessageStatus.
func (p PendingMessageStatus) IsValid() bool {
	for _, candidate := range validPendingMessageStatuses {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParsePendingMessageStatus converts raw input into a PendingMessageStatus.
func ParsePendingMessageStatus(value string) (PendingMessageStatus, error) {
	for _, candidate := range validPendingMessageStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid pending message status %q", value)
}
