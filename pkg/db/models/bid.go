package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/lvollmer/bazaarnode/pkg/enums"
	"github.com/lvollmer/bazaarnode/pkg/types"
)

// Bid is the buyer's proposal against a listing plus its accumulated protocol
// history. The payload map holds the merged key/value set from the bid message
// and any later messages; original bid keys are never overwritten.
type Bid struct {
	ID            uuid.UUID        `gorm:"column:id;type:uuid;primaryKey"`
	Hash          string           `gorm:"column:hash;uniqueIndex;not null"`
	ItemRef       string           `gorm:"column:item_ref;index;not null"`
	BidderAddress string           `gorm:"column:bidder_address;index;not null"`
	SellerAddress string           `gorm:"column:seller_address;not null"`
	CurrentAction enums.ActionKind `gorm:"column:current_action;type:text;not null"`
	Payload       types.JSONMap    `gorm:"column:payload;type:jsonb;serializer:json"`
	History       []BidMessage     `gorm:"foreignKey:BidHash;references:Hash;constraint:OnDelete:CASCADE"`
	CreatedAt     time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}

func (b *Bid) BeforeCreate(*gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}

// BidMessage is one applied action message in a bid's append-only history.
type BidMessage struct {
	ID          uuid.UUID        `gorm:"column:id;type:uuid;primaryKey"`
	BidHash     string           `gorm:"column:bid_hash;index;not null"`
	MessageHash string           `gorm:"column:message_hash;uniqueIndex;not null"`
	Kind        enums.ActionKind `gorm:"column:kind;type:text;not null"`
	ActorRole   enums.ActorRole  `gorm:"column:actor_role;type:text;not null"`
	GeneratedAt int64            `gorm:"column:generated_at;not null"`
	Position    int              `gorm:"column:position;not null"`
	CreatedAt   time.Time        `gorm:"column:created_at;autoCreateTime"`
}

func (m *BidMessage) BeforeCreate(*gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}
