package messages

import (
	"testing"

	"github.com/lvollmer/bazaarnode/internal/hashing"
	"github.com/lvollmer/bazaarnode/pkg/enums"
	apperrors "github.com/lvollmer/bazaarnode/pkg/errors"
)

func stampedMessage(t *testing.T, msg ActionMessage) ActionMessage {
	t.Helper()
	hash, err := hashing.NewService().ComputeHash(msg.HashableForm())
	if err != nil {
		t.Fatalf("compute hash: %v", err)
	}
	msg.Hash = hash
	return msg
}

func TestCodecRoundTrip(t *testing.T) {
	codec := NewCodec(nil)
	msg := stampedMessage(t, ActionMessage{
		Kind:      enums.ActionKindBid,
		ActorRole: enums.ActorRoleBuyer,
		Payload: BidPayload{
			ItemRef:         "itemhash-1",
			BidderAddress:   "pBuyerAddr",
			ShippingAddress: map[string]string{"city": "Lisbon", "country": "PT"},
			Options:         map[string]string{"colour": "black", "size": "xl"},
		},
		GeneratedAt: 1700000000000,
	})

	raw, err := codec.Encode(msg)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	decoded, err := codec.Decode(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	if decoded.Kind != enums.ActionKindBid || decoded.ActorRole != enums.ActorRoleBuyer {
		t.Fatalf("envelope fields lost: %+v", decoded)
	}
	payload, ok := decoded.Payload.(BidPayload)
	if !ok {
		t.Fatalf("expected BidPayload, got %T", decoded.Payload)
	}
	if payload.ItemRef != "itemhash-1" || payload.Options["size"] != "xl" {
		t.Fatalf("payload fields lost: %+v", payload)
	}
	if decoded.Hash != msg.Hash {
		t.Fatal("hash not preserved")
	}

	// decoded payload must re-hash to the stamped value
	if err := hashing.NewService().Verify(decoded); err != nil {
		t.Fatalf("decoded message fails verification: %v", err)
	}
}

func TestCodecRejectsUnknownKind(t *testing.T) {
	codec := NewCodec(nil)
	_, err := codec.Decode([]byte(`{"kind":"upgrade","actor_role":"buyer","payload":{},"generated_at":1,"hash":"x"}`))
	if err == nil {
		t.Fatal("expected malformed message error")
	}
	if !apperrors.Is(err, apperrors.CodeMalformedMessage) {
		t.Fatalf("expected MALFORMED_MESSAGE, got %v", err)
	}
}

func TestValidateRoleAndTarget(t *testing.T) {
	cases := []struct {
		name    string
		msg     ActionMessage
		wantErr bool
	}{
		{
			name: "valid bid",
			msg: ActionMessage{
				Kind:        enums.ActionKindBid,
				ActorRole:   enums.ActorRoleBuyer,
				Payload:     BidPayload{ItemRef: "itemhash-1", BidderAddress: "pBuyerAddr"},
				GeneratedAt: 1,
				Hash:        "h",
			},
		},
		{
			name: "seller may not bid",
			msg: ActionMessage{
				Kind:        enums.ActionKindBid,
				ActorRole:   enums.ActorRoleSeller,
				Payload:     BidPayload{ItemRef: "itemhash-1", BidderAddress: "pBuyerAddr"},
				GeneratedAt: 1,
				Hash:        "h",
			},
			wantErr: true,
		},
		{
			name: "bid must not carry target_ref",
			msg: ActionMessage{
				Kind:        enums.ActionKindBid,
				TargetRef:   "bidhash-1",
				ActorRole:   enums.ActorRoleBuyer,
				Payload:     BidPayload{ItemRef: "itemhash-1", BidderAddress: "pBuyerAddr"},
				GeneratedAt: 1,
				Hash:        "h",
			},
			wantErr: true,
		},
		{
			name: "accept requires target_ref",
			msg: ActionMessage{
				Kind:        enums.ActionKindAccept,
				ActorRole:   enums.ActorRoleSeller,
				Payload:     AcceptPayload{EscrowRef: "escrow-1"},
				GeneratedAt: 1,
				Hash:        "h",
			},
			wantErr: true,
		},
		{
			name: "accept missing escrow_ref",
			msg: ActionMessage{
				Kind:        enums.ActionKindAccept,
				TargetRef:   "bidhash-1",
				ActorRole:   enums.ActorRoleSeller,
				Payload:     AcceptPayload{},
				GeneratedAt: 1,
				Hash:        "h",
			},
			wantErr: true,
		},
		{
			name: "payload variant mismatch",
			msg: ActionMessage{
				Kind:        enums.ActionKindLock,
				TargetRef:   "orderhash-1",
				ActorRole:   enums.ActorRoleBuyer,
				Payload:     RejectPayload{},
				GeneratedAt: 1,
				Hash:        "h",
			},
			wantErr: true,
		},
		{
			name: "buyer may not ship",
			msg: ActionMessage{
				Kind:        enums.ActionKindShip,
				TargetRef:   "orderhash-1",
				ActorRole:   enums.ActorRoleBuyer,
				Payload:     ShipPayload{Carrier: "dhl"},
				GeneratedAt: 1,
				Hash:        "h",
			},
			wantErr: true,
		},
		{
			name: "release allowed for both roles",
			msg: ActionMessage{
				Kind:        enums.ActionKindRelease,
				TargetRef:   "orderhash-1",
				ActorRole:   enums.ActorRoleBuyer,
				Payload:     ReleasePayload{},
				GeneratedAt: 1,
				Hash:        "h",
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := Validate(tc.msg)
			if tc.wantErr && err == nil {
				t.Fatal("expected validation error")
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tc.wantErr && !apperrors.Is(err, apperrors.CodeMalformedMessage) {
				t.Fatalf("expected MALFORMED_MESSAGE, got %v", err)
			}
		})
	}
}

func TestRuleForEveryKind(t *testing.T) {
	for _, kind := range []enums.ActionKind{
		enums.ActionKindBid, enums.ActionKindAccept, enums.ActionKindReject,
		enums.ActionKindCancel, enums.ActionKindLock, enums.ActionKindRefund,
		enums.ActionKindRelease, enums.ActionKindShip, enums.ActionKindComplete,
	} {
		if _, err := RuleFor(kind); err != nil {
			t.Fatalf("missing rule for %s: %v", kind, err)
		}
	}
}
