package messages

import (
	"encoding/json"

	"github.com/lvollmer/bazaarnode/internal/hashing"
	"github.com/lvollmer/bazaarnode/pkg/enums"
	apperrors "github.com/lvollmer/bazaarnode/pkg/errors"
)

// ActionMessage is a single protocol event. Immutable once sent; the hash
// covers every field except Hash itself.
type ActionMessage struct {
	Kind        enums.ActionKind
	TargetRef   string
	ActorRole   enums.ActorRole
	Payload     Payload
	GeneratedAt int64 // unix milliseconds, producer-supplied
	Hash        string
}

// HashableForm extracts exactly the fields that participate in the hash.
func (m ActionMessage) HashableForm() hashing.HashableForm {
	return hashing.HashableForm{
		Kind:        m.Kind.String(),
		TargetRef:   m.TargetRef,
		ActorRole:   m.ActorRole.String(),
		Payload:     m.Payload,
		GeneratedAt: m.GeneratedAt,
	}
}

func (m ActionMessage) MessageHash() string { return m.Hash }

type wireMessage struct {
	Kind        string          `json:"kind"`
	TargetRef   string          `json:"target_ref,omitempty"`
	ActorRole   string          `json:"actor_role"`
	Payload     json.RawMessage `json:"payload"`
	GeneratedAt int64           `json:"generated_at"`
	Hash        string          `json:"hash"`
}

// Codec encodes and decodes wire messages. Decoding picks the payload
// variant through the kind-keyed registry so unknown kinds fail closed.
type Codec struct {
	registry *DecoderRegistry
}

func NewCodec(registry *DecoderRegistry) *Codec {
	if registry == nil {
		registry = NewDefaultRegistry()
	}
	return &Codec{registry: registry}
}

// Encode serializes the message for broadcast or storage.
func (c *Codec) Encode(msg ActionMessage) ([]byte, error) {
	payload, err := json.Marshal(msg.Payload)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInternal, err, "encoding message payload")
	}
	raw, err := json.Marshal(wireMessage{
		Kind:        msg.Kind.String(),
		TargetRef:   msg.TargetRef,
		ActorRole:   msg.ActorRole.String(),
		Payload:     payload,
		GeneratedAt: msg.GeneratedAt,
		Hash:        msg.Hash,
	})
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInternal, err, "encoding message")
	}
	return raw, nil
}

// Decode parses a wire message into a typed ActionMessage. Structural
// failures return MALFORMED_MESSAGE; the hash is not verified here.
func (c *Codec) Decode(raw []byte) (ActionMessage, error) {
	var wire wireMessage
	if err := json.Unmarshal(raw, &wire); err != nil {
		return ActionMessage{}, apperrors.Wrap(apperrors.CodeMalformedMessage, err, "decoding message envelope")
	}

	kind, err := enums.ParseActionKind(wire.Kind)
	if err != nil {
		return ActionMessage{}, apperrors.Wrap(apperrors.CodeMalformedMessage, err, "unknown action kind")
	}
	role, err := enums.ParseActorRole(wire.ActorRole)
	if err != nil {
		return ActionMessage{}, apperrors.Wrap(apperrors.CodeMalformedMessage, err, "unknown actor role")
	}

	payload, err := c.registry.Decode(kind, wire.Payload)
	if err != nil {
		return ActionMessage{}, err
	}

	return ActionMessage{
		Kind:        kind,
		TargetRef:   wire.TargetRef,
		ActorRole:   role,
		Payload:     payload,
		GeneratedAt: wire.GeneratedAt,
		Hash:        wire.Hash,
	}, nil
}
