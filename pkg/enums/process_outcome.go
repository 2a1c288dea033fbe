package enums

// ProcessOutcome reports what the message processor did with an inbound message.
type ProcessOutcome string

const (
	// ProcessOutcomeApplied means the message mutated local state exactly once.
	ProcessOutcomeApplied ProcessOutcome = "applied"
	// ProcessOutcomeAlreadyProcessed means the message hash was found in the
	// dedup ledger; redelivery is expected and is not an error.
	ProcessOutcomeAlreadyProcessed ProcessOutcome = "already_processed"
	// ProcessOutcomePending means the referenced parent entity is not yet known
	// locally and the message was queued for retry.
	ProcessOutcomePending ProcessOutcome = "pending"
)

// String implements fmt.Stringer.
func (p ProcessOutcome) String() string {
	return string(p)
}
