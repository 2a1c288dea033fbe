package orders

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/lvollmer/bazaarnode/pkg/db/models"
	"github.com/lvollmer/bazaarnode/pkg/enums"
	"github.com/lvollmer/bazaarnode/pkg/pagination"
)

// Repository defines persistence operations for orders and their items.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.Order) (*models.Order, error)
	FindByHash(ctx context.Context, hash string) (*models.Order, error)
	FindByBidHash(ctx context.Context, bidHash string) (*models.Order, error)
	UpdateItemStatus(ctx context.Context, itemID uuid.UUID, status enums.OrderItemStatus, lastActionRef string) error
	Search(ctx context.Context, params pagination.Params, filters SearchFilters) (*OrderList, error)
}
