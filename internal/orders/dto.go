package orders

import (
	"time"

	"github.com/lvollmer/bazaarnode/pkg/enums"
)

// SearchFilters describe the inputs supported by the order search surface.
type SearchFilters struct {
	BuyerAddress  string
	SellerAddress string
	ItemRef       string
	Status        *enums.OrderItemStatus
}

// OrderItemSummary exposes the per-item state returned in the order list.
type OrderItemSummary struct {
	ItemRef       string                `json:"item_ref"`
	Status        enums.OrderItemStatus `json:"status"`
	LastActionRef string                `json:"last_action_ref"`
}

// OrderSummary exposes the fields returned in the order list.
type OrderSummary struct {
	Hash          string             `json:"hash"`
	BidHash       string             `json:"bid_hash"`
	BuyerAddress  string             `json:"buyer_address"`
	SellerAddress string             `json:"seller_address"`
	Items         []OrderItemSummary `json:"items"`
	CreatedAt     time.Time          `json:"created_at"`
}

// OrderList wraps a page of orders plus the next page cursor.
type OrderList struct {
	Orders     []OrderSummary `json:"orders"`
	NextCursor string         `json:"next_cursor,omitempty"`
}
