package bids

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/lvollmer/bazaarnode/pkg/db/models"
	"github.com/lvollmer/bazaarnode/pkg/pagination"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds a bids repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, bid *models.Bid) (*models.Bid, error) {
	if err := r.db.WithContext(ctx).Create(bid).Error; err != nil {
		return nil, err
	}
	return bid, nil
}

func (r *repository) FindByHash(ctx context.Context, hash string) (*models.Bid, error) {
	return r.findByHash(ctx, hash, false)
}

// FindByHashForUpdate loads the bid under a row lock so concurrent
// transitions on the same lineage serialize at the database, not just
// behind this process's in-memory mutex.
func (r *repository) FindByHashForUpdate(ctx context.Context, hash string) (*models.Bid, error) {
	return r.findByHash(ctx, hash, true)
}

func (r *repository) findByHash(ctx context.Context, hash string, forUpdate bool) (*models.Bid, error) {
	query := r.db.WithContext(ctx).
		Preload("History", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC")
		}).
		Where("hash = ?", hash)
	if forUpdate && r.db.Dialector.Name() == "postgres" {
		// sqlite is single-writer and has no locking clause
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var bid models.Bid
	if err := query.First(&bid).Error; err != nil {
		return nil, err
	}
	return &bid, nil
}

func (r *repository) Update(ctx context.Context, bid *models.Bid) error {
	return r.db.WithContext(ctx).
		Model(&models.Bid{}).
		Where("hash = ?", bid.Hash).
		Updates(map[string]any{
			"current_action": bid.CurrentAction,
			"payload":        bid.Payload,
		}).Error
}

func (r *repository) AppendMessage(ctx context.Context, entry *models.BidMessage) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *repository) CountMessages(ctx context.Context, bidHash string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.BidMessage{}).
		Where("bid_hash = ?", bidHash).
		Count(&count).Error
	return count, err
}

func (r *repository) Search(ctx context.Context, params pagination.Params, filters SearchFilters) (*BidList, error) {
	limit := pagination.LimitWithBuffer(params.Limit)
	normalized := pagination.NormalizeLimit(params.Limit)

	query := r.db.WithContext(ctx).Model(&models.Bid{})
	if filters.ItemRef != "" {
		query = query.Where("item_ref = ?", filters.ItemRef)
	}
	if filters.BidderAddress != "" {
		query = query.Where("bidder_address = ?", filters.BidderAddress)
	}
	if filters.SellerAddress != "" {
		query = query.Where("seller_address = ?", filters.SellerAddress)
	}
	if filters.Action != nil {
		query = query.Where("current_action = ?", *filters.Action)
	}
	if cursor, err := pagination.ParseCursor(params.Cursor); err != nil {
		return nil, err
	} else if cursor != nil {
		query = query.Where("created_at < ? OR (created_at = ? AND id < ?)",
			cursor.CreatedAt, cursor.CreatedAt, cursor.ID)
	}

	var rows []models.Bid
	if err := query.Order("created_at DESC, id DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, err
	}

	list := &BidList{}
	if len(rows) > normalized {
		rows = rows[:normalized]
		last := rows[normalized-1]
		list.NextCursor = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}
	for _, row := range rows {
		list.Bids = append(list.Bids, BidSummary{
			Hash:          row.Hash,
			ItemRef:       row.ItemRef,
			BidderAddress: row.BidderAddress,
			SellerAddress: row.SellerAddress,
			CurrentAction: row.CurrentAction,
			Payload:       row.Payload,
			CreatedAt:     row.CreatedAt,
		})
	}
	return list, nil
}
