package protocol

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/lvollmer/bazaarnode/pkg/db/models"
)

// OutboundRepository persists locally built messages queued for broadcast.
type OutboundRepository interface {
	WithTx(tx *gorm.DB) OutboundRepository
	Enqueue(ctx context.Context, entry *models.OutboundMessage) error
	FetchUnpublished(ctx context.Context, limit, maxAttempts int) ([]models.OutboundMessage, error)
	MarkPublished(ctx context.Context, id uuid.UUID, at time.Time) error
	MarkFailed(ctx context.Context, id uuid.UUID, lastError string) error
}

type outboundRepository struct {
	db *gorm.DB
}

func NewOutboundRepository(db *gorm.DB) OutboundRepository {
	return &outboundRepository{db: db}
}

func (r *outboundRepository) WithTx(tx *gorm.DB) OutboundRepository {
	if tx == nil {
		return r
	}
	return &outboundRepository{db: tx}
}

func (r *outboundRepository) Enqueue(ctx context.Context, entry *models.OutboundMessage) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *outboundRepository) FetchUnpublished(ctx context.Context, limit, maxAttempts int) ([]models.OutboundMessage, error) {
	var rows []models.OutboundMessage
	err := r.db.WithContext(ctx).
		Where("published_at IS NULL AND attempt_count < ?", maxAttempts).
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *outboundRepository) MarkPublished(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.OutboundMessage{}).
		Where("id = ?", id).
		Update("published_at", at).Error
}

func (r *outboundRepository) MarkFailed(ctx context.Context, id uuid.UUID, lastError string) error {
	return r.db.WithContext(ctx).
		Model(&models.OutboundMessage{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"attempt_count": gorm.Expr("attempt_count + 1"),
			"last_error":    lastError,
		}).Error
}
