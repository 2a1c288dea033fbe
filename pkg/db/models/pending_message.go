package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/lvollmer/bazaarnode/pkg/enums"
)

// PendingMessage parks an inbound message whose referenced parent entity is
// not yet known locally. The worker retries queued rows until they apply or
// age out.
type PendingMessage struct {
	ID          uuid.UUID                  `gorm:"column:id;type:uuid;primaryKey"`
	MessageHash string                     `gorm:"column:message_hash;uniqueIndex;not null"`
	TargetRef   string                     `gorm:"column:target_ref;index;not null"`
	Kind        enums.ActionKind           `gorm:"column:kind;type:text;not null"`
	Raw         json.RawMessage            `gorm:"column:raw;type:jsonb;not null"`
	Status      enums.PendingMessageStatus `gorm:"column:status;type:text;not null;index"`
	Attempts    int                        `gorm:"column:attempts;not null;default:0"`
	LastError   *string                    `gorm:"column:last_error"`
	FirstSeenAt time.Time                  `gorm:"column:first_seen_at;autoCreateTime"`
	LastTriedAt *time.Time                 `gorm:"column:last_tried_at"`
}

func (p *PendingMessage) BeforeCreate(*gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
