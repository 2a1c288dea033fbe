package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Listing is the locally known market listing a bid targets. TemplateHash is
// populated only for the seller's own listings; listings learned from the
// network never carry a template relation.
type Listing struct {
	ID            uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	Hash          string          `gorm:"column:hash;uniqueIndex;not null"`
	SellerAddress string          `gorm:"column:seller_address;index;not null"`
	Title         string          `gorm:"column:title;not null"`
	Price         decimal.Decimal `gorm:"column:price;type:numeric;not null"`
	Currency      string          `gorm:"column:currency;not null;default:'PART'"`
	TemplateHash  *string         `gorm:"column:template_hash"`
	ExpiresAt     time.Time       `gorm:"column:expires_at;not null"`
	CreatedAt     time.Time       `gorm:"column:created_at;autoCreateTime"`
}

func (l *Listing) BeforeCreate(*gorm.DB) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	return nil
}

// IsExpired reports whether the listing can no longer be bid on.
func (l *Listing) IsExpired(now time.Time) bool {
	return !l.ExpiresAt.IsZero() && now.After(l.ExpiresAt)
}
