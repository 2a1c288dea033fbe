package orders

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/lvollmer/bazaarnode/pkg/db/models"
	"github.com/lvollmer/bazaarnode/pkg/enums"
	"github.com/lvollmer/bazaarnode/pkg/pagination"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds an orders repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, order *models.Order) (*models.Order, error) {
	if err := r.db.WithContext(ctx).Create(order).Error; err != nil {
		return nil, err
	}
	return order, nil
}

func (r *repository) FindByHash(ctx context.Context, hash string) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("hash = ?", hash).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) FindByBidHash(ctx context.Context, bidHash string) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("bid_hash = ?", bidHash).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) UpdateItemStatus(ctx context.Context, itemID uuid.UUID, status enums.OrderItemStatus, lastActionRef string) error {
	return r.db.WithContext(ctx).
		Model(&models.OrderItem{}).
		Where("id = ?", itemID).
		Updates(map[string]any{
			"status":          status,
			"last_action_ref": lastActionRef,
		}).Error
}

func (r *repository) Search(ctx context.Context, params pagination.Params, filters SearchFilters) (*OrderList, error) {
	limit := pagination.LimitWithBuffer(params.Limit)
	normalized := pagination.NormalizeLimit(params.Limit)

	query := r.db.WithContext(ctx).Model(&models.Order{}).Preload("Items")
	if filters.BuyerAddress != "" {
		query = query.Where("buyer_address = ?", filters.BuyerAddress)
	}
	if filters.SellerAddress != "" {
		query = query.Where("seller_address = ?", filters.SellerAddress)
	}
	if filters.ItemRef != "" {
		query = query.Where("hash IN (?)", r.db.Model(&models.OrderItem{}).
			Select("order_hash").
			Where("item_ref = ?", filters.ItemRef))
	}
	if filters.Status != nil {
		query = query.Where("hash IN (?)", r.db.Model(&models.OrderItem{}).
			Select("order_hash").
			Where("status = ?", *filters.Status))
	}
	if cursor, err := pagination.ParseCursor(params.Cursor); err != nil {
		return nil, err
	} else if cursor != nil {
		query = query.Where("created_at < ? OR (created_at = ? AND id < ?)",
			cursor.CreatedAt, cursor.CreatedAt, cursor.ID)
	}

	var rows []models.Order
	if err := query.Order("created_at DESC, id DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, err
	}

	list := &OrderList{}
	if len(rows) > normalized {
		rows = rows[:normalized]
		last := rows[normalized-1]
		list.NextCursor = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}
	for _, row := range rows {
		summary := OrderSummary{
			Hash:          row.Hash,
			BidHash:       row.BidHash,
			BuyerAddress:  row.BuyerAddress,
			SellerAddress: row.SellerAddress,
			CreatedAt:     row.CreatedAt,
		}
		for _, item := range row.Items {
			summary.Items = append(summary.Items, OrderItemSummary{
				ItemRef:       item.ItemRef,
				Status:        item.Status,
				LastActionRef: item.LastActionRef,
			})
		}
		list.Orders = append(list.Orders, summary)
	}
	return list, nil
}
