package protocol

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/lvollmer/bazaarnode/pkg/db/models"
	"github.com/lvollmer/bazaarnode/pkg/enums"
)

// PendingRepository persists messages parked on an unresolved reference.
type PendingRepository interface {
	WithTx(tx *gorm.DB) PendingRepository
	Enqueue(ctx context.Context, entry *models.PendingMessage) error
	FetchQueued(ctx context.Context, limit int) ([]models.PendingMessage, error)
	MarkApplied(ctx context.Context, id uuid.UUID) error
	MarkAttempt(ctx context.Context, id uuid.UUID, lastError string, at time.Time) error
	MarkDropped(ctx context.Context, id uuid.UUID, lastError string) error
	DropOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
	CountQueued(ctx context.Context) (int64, error)
}

type pendingRepository struct {
	db *gorm.DB
}

func NewPendingRepository(db *gorm.DB) PendingRepository {
	return &pendingRepository{db: db}
}

func (r *pendingRepository) WithTx(tx *gorm.DB) PendingRepository {
	if tx == nil {
		return r
	}
	return &pendingRepository{db: tx}
}

func (r *pendingRepository) Enqueue(ctx context.Context, entry *models.PendingMessage) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *pendingRepository) FetchQueued(ctx context.Context, limit int) ([]models.PendingMessage, error) {
	var rows []models.PendingMessage
	err := r.db.WithContext(ctx).
		Where("status = ?", enums.PendingMessageStatusQueued).
		Order("first_seen_at ASC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *pendingRepository) MarkApplied(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.PendingMessage{}).
		Where("id = ?", id).
		Update("status", enums.PendingMessageStatusApplied).Error
}

func (r *pendingRepository) MarkAttempt(ctx context.Context, id uuid.UUID, lastError string, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.PendingMessage{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"attempts":      gorm.Expr("attempts + 1"),
			"last_error":    lastError,
			"last_tried_at": at,
		}).Error
}

func (r *pendingRepository) MarkDropped(ctx context.Context, id uuid.UUID, lastError string) error {
	return r.db.WithContext(ctx).
		Model(&models.PendingMessage{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":     enums.PendingMessageStatusDropped,
			"last_error": lastError,
		}).Error
}

func (r *pendingRepository) DropOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.PendingMessage{}).
		Where("status = ? AND first_seen_at < ?", enums.PendingMessageStatusQueued, cutoff).
		Updates(map[string]any{
			"status":     enums.PendingMessageStatusDropped,
			"last_error": "exceeded pending max age",
		})
	return result.RowsAffected, result.Error
}

func (r *pendingRepository) CountQueued(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.PendingMessage{}).
		Where("status = ?", enums.PendingMessageStatusQueued).
		Count(&count).Error
	return count, err
}
