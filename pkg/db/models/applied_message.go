package models

import "time"

// AppliedMessage is the durable dedup ledger: one row per message hash whose
// state transition has been applied locally. Rows are written in the same
// transaction as the entity mutation they record.
type AppliedMessage struct {
	Hash      string    `gorm:"column:hash;primaryKey"`
	Kind      string    `gorm:"column:kind;not null"`
	EntityKey string    `gorm:"column:entity_key;index;not null"`
	AppliedAt time.Time `gorm:"column:applied_at;autoCreateTime"`
}
