package listings

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/lvollmer/bazaarnode/pkg/db/models"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds a listings repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// Upsert inserts or refreshes a listing keyed on its hash. The template
// relation is only ever written for the seller's own listings; a network
// refresh never sets it.
func (r *repository) Upsert(ctx context.Context, listing *models.Listing) (*models.Listing, error) {
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "hash"}},
			DoUpdates: clause.AssignmentColumns([]string{"title", "price", "currency", "expires_at"}),
		}).
		Create(listing).Error
	if err != nil {
		return nil, err
	}
	return listing, nil
}

func (r *repository) FindByHash(ctx context.Context, hash string) (*models.Listing, error) {
	var listing models.Listing
	err := r.db.WithContext(ctx).Where("hash = ?", hash).First(&listing).Error
	if err != nil {
		return nil, err
	}
	return &listing, nil
}

func (r *repository) ListBySeller(ctx context.Context, sellerAddress string) ([]models.Listing, error) {
	var rows []models.Listing
	err := r.db.WithContext(ctx).
		Where("seller_address = ?", sellerAddress).
		Order("created_at DESC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
