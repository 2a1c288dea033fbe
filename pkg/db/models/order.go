package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/lvollmer/bazaarnode/pkg/enums"
)

// Order is the agreement formed when a bid is accepted. It references its
// originating bid by hash value only; bid-to-order lookups go through the
// bid_hash index rather than a stored back-pointer on the bid.
type Order struct {
	ID            uuid.UUID   `gorm:"column:id;type:uuid;primaryKey"`
	Hash          string      `gorm:"column:hash;uniqueIndex;not null"`
	BidHash       string      `gorm:"column:bid_hash;uniqueIndex;not null"`
	AcceptHash    string      `gorm:"column:accept_hash;uniqueIndex;not null"`
	BuyerAddress  string      `gorm:"column:buyer_address;index;not null"`
	SellerAddress string      `gorm:"column:seller_address;index;not null"`
	Items         []OrderItem `gorm:"foreignKey:OrderHash;references:Hash;constraint:OnDelete:CASCADE"`
	CreatedAt     time.Time   `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time   `gorm:"column:updated_at;autoUpdateTime"`
}

func (o *Order) BeforeCreate(*gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}

// OrderItem carries the escrow state machine for a single item of an order.
// Only the message processor mutates it.
type OrderItem struct {
	ID            uuid.UUID             `gorm:"column:id;type:uuid;primaryKey"`
	OrderHash     string                `gorm:"column:order_hash;index;not null"`
	ItemRef       string                `gorm:"column:item_ref;index;not null"`
	Status        enums.OrderItemStatus `gorm:"column:status;type:text;not null"`
	LastActionRef string                `gorm:"column:last_action_ref;not null"`
	CreatedAt     time.Time             `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time             `gorm:"column:updated_at;autoUpdateTime"`
}

func (i *OrderItem) BeforeCreate(*gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}
