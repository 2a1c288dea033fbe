package listings

import (
	"context"

	"gorm.io/gorm"

	"github.com/lvollmer/bazaarnode/pkg/db/models"
)

// Repository defines persistence operations for locally known listings.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Upsert(ctx context.Context, listing *models.Listing) (*models.Listing, error)
	FindByHash(ctx context.Context, hash string) (*models.Listing, error)
	ListBySeller(ctx context.Context, sellerAddress string) ([]models.Listing, error)
}
