package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/lvollmer/bazaarnode/pkg/enums"
)

// OutboundMessage queues a locally built action message for broadcast. The row
// is written in the same transaction as the local self-apply, so a crash can
// never leave local state updated with nothing queued for the peer.
type OutboundMessage struct {
	ID           uuid.UUID        `gorm:"column:id;type:uuid;primaryKey"`
	MessageHash  string           `gorm:"column:message_hash;uniqueIndex;not null"`
	Kind         enums.ActionKind `gorm:"column:kind;type:text;not null"`
	Recipient    string           `gorm:"column:recipient;not null"`
	Raw          json.RawMessage  `gorm:"column:raw;type:jsonb;not null"`
	CreatedAt    time.Time        `gorm:"column:created_at;autoCreateTime"`
	PublishedAt  *time.Time       `gorm:"column:published_at"`
	AttemptCount int              `gorm:"column:attempt_count;not null;default:0"`
	LastError    *string          `gorm:"column:last_error"`
}

func (o *OutboundMessage) BeforeCreate(*gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}
