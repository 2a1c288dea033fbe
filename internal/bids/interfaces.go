package bids

import (
	"context"

	"gorm.io/gorm"

	"github.com/lvollmer/bazaarnode/pkg/db/models"
	"github.com/lvollmer/bazaarnode/pkg/pagination"
)

// Repository defines persistence operations for bids and their history.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, bid *models.Bid) (*models.Bid, error)
	FindByHash(ctx context.Context, hash string) (*models.Bid, error)
	FindByHashForUpdate(ctx context.Context, hash string) (*models.Bid, error)
	Update(ctx context.Context, bid *models.Bid) error
	AppendMessage(ctx context.Context, entry *models.BidMessage) error
	CountMessages(ctx context.Context, bidHash string) (int64, error)
	Search(ctx context.Context, params pagination.Params, filters SearchFilters) (*BidList, error)
}
