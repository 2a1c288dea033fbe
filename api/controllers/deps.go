package controllers

import (
	"context"

	"github.com/lvollmer/bazaarnode/internal/bids"
	"github.com/lvollmer/bazaarnode/internal/messages"
	"github.com/lvollmer/bazaarnode/internal/orders"
	"github.com/lvollmer/bazaarnode/internal/protocol"
	"github.com/lvollmer/bazaarnode/pkg/db/models"
	"github.com/lvollmer/bazaarnode/pkg/pagination"
)

// MessageBuilder is the command side of the protocol: it stamps, hashes,
// self-applies and queues a locally built action message.
type MessageBuilder interface {
	Build(ctx context.Context, input protocol.BuildInput) (messages.ActionMessage, *protocol.ProcessResult, error)
}

// BidReader is the query surface over local bid state.
type BidReader interface {
	FindByHash(ctx context.Context, hash string) (*models.Bid, error)
	Search(ctx context.Context, params pagination.Params, filters bids.SearchFilters) (*bids.BidList, error)
}

// OrderReader is the query surface over local order state.
type OrderReader interface {
	FindByHash(ctx context.Context, hash string) (*models.Order, error)
	Search(ctx context.Context, params pagination.Params, filters orders.SearchFilters) (*orders.OrderList, error)
}

// ListingStore seeds and lists this node's locally known listings.
type ListingStore interface {
	Upsert(ctx context.Context, listing *models.Listing) (*models.Listing, error)
	FindByHash(ctx context.Context, hash string) (*models.Listing, error)
	ListBySeller(ctx context.Context, sellerAddress string) ([]models.Listing, error)
}
