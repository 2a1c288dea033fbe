package messages

import (
	"encoding/json"
	"sync"

	"github.com/lvollmer/bazaarnode/pkg/enums"
	apperrors "github.com/lvollmer/bazaarnode/pkg/errors"
)

type decoderFunc func(payload json.RawMessage) (Payload, error)

// DecoderRegistry maps an action kind to its payload decoder.
type DecoderRegistry struct {
	mtx      sync.RWMutex
	registry map[enums.ActionKind]decoderFunc
}

func NewDecoderRegistry() *DecoderRegistry {
	return &DecoderRegistry{registry: make(map[enums.ActionKind]decoderFunc)}
}

func (r *DecoderRegistry) Register(kind enums.ActionKind, decoder decoderFunc) {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	r.registry[kind] = decoder
}

func (r *DecoderRegistry) Decode(kind enums.ActionKind, payload json.RawMessage) (Payload, error) {
	r.mtx.RLock()
	decoder, ok := r.registry[kind]
	r.mtx.RUnlock()
	if !ok {
		return nil, apperrors.New(apperrors.CodeMalformedMessage, "no payload decoder for kind "+kind.String())
	}
	return decoder(payload)
}

func decodeAs[T Payload](payload json.RawMessage) (Payload, error) {
	var out T
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &out); err != nil {
			return nil, apperrors.Wrap(apperrors.CodeMalformedMessage, err, "decoding "+out.Kind().String()+" payload")
		}
	}
	return out, nil
}

// NewDefaultRegistry registers every payload variant the protocol knows.
func NewDefaultRegistry() *DecoderRegistry {
	r := NewDecoderRegistry()
	r.Register(enums.ActionKindBid, decodeAs[BidPayload])
	r.Register(enums.ActionKindAccept, decodeAs[AcceptPayload])
	r.Register(enums.ActionKindReject, decodeAs[RejectPayload])
	r.Register(enums.ActionKindCancel, decodeAs[CancelPayload])
	r.Register(enums.ActionKindLock, decodeAs[LockPayload])
	r.Register(enums.ActionKindRefund, decodeAs[RefundPayload])
	r.Register(enums.ActionKindRelease, decodeAs[ReleasePayload])
	r.Register(enums.ActionKindShip, decodeAs[ShipPayload])
	r.Register(enums.ActionKindComplete, decodeAs[CompletePayload])
	return r
}
