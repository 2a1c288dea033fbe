package hashing

import (
	"encoding/hex"
	"encoding/json"
	"fmt"

	"golang.org/x/crypto/sha3"

	apperrors "github.com/lvollmer/bazaarnode/pkg/errors"
)

// HashableForm is the ordered set of semantic fields that participate in a
// message hash. Field order is fixed by struct declaration order and payloads
// are closed structs, so two nodes always serialize identical logical content
// to identical bytes. TargetRef is omitted entirely when empty (BID is the
// only kind without one) rather than encoded as null.
type HashableForm struct {
	Kind        string `json:"kind"`
	TargetRef   string `json:"target_ref,omitempty"`
	ActorRole   string `json:"actor_role"`
	Payload     any    `json:"payload"`
	GeneratedAt int64  `json:"generated_at"`
}

// Hashable is satisfied by any message that can be verified against its
// stamped hash.
type Hashable interface {
	HashableForm() HashableForm
	MessageHash() string
}

// Service computes and verifies content hashes. Pure; no clock, no randomness.
type Service struct{}

func NewService() *Service {
	return &Service{}
}

// ComputeHash digests the canonical JSON of the form with SHA3-256 and
// returns the lowercase hex encoding.
func (s *Service) ComputeHash(form HashableForm) (string, error) {
	raw, err := json.Marshal(form)
	if err != nil {
		return "", apperrors.Wrap(apperrors.CodeInternal, err, "canonicalizing hashable form")
	}
	sum := sha3.Sum256(raw)
	return hex.EncodeToString(sum[:]), nil
}

// Verify recomputes the hash from the message's hashable form and compares it
// to the stamped hash. A mismatch is a corruption of that message, never a
// retryable condition.
func (s *Service) Verify(msg Hashable) error {
	computed, err := s.ComputeHash(msg.HashableForm())
	if err != nil {
		return err
	}
	if computed != msg.MessageHash() {
		return apperrors.New(apperrors.CodeCorruptMessage,
			fmt.Sprintf("hash mismatch: stamped %s, computed %s", msg.MessageHash(), computed))
	}
	return nil
}

// DeriveOrderHash produces the order identity from the bid and accept message
// hashes. Both sides derive the same value independently.
func DeriveOrderHash(bidHash, acceptHash string) string {
	sum := sha3.Sum256([]byte(bidHash + ":" + acceptHash))
	return hex.EncodeToString(sum[:])
}
