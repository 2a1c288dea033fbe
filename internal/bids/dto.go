package bids

import (
	"time"

	"github.com/lvollmer/bazaarnode/pkg/enums"
	"github.com/lvollmer/bazaarnode/pkg/types"
)

// SearchFilters describe the inputs supported by the bid search surface.
type SearchFilters struct {
	ItemRef       string
	BidderAddress string
	SellerAddress string
	Action        *enums.ActionKind
}

// BidSummary exposes the fields returned in the bid list.
type BidSummary struct {
	Hash          string           `json:"hash"`
	ItemRef       string           `json:"item_ref"`
	BidderAddress string           `json:"bidder_address"`
	SellerAddress string           `json:"seller_address"`
	CurrentAction enums.ActionKind `json:"current_action"`
	Payload       types.JSONMap    `json:"payload,omitempty"`
	CreatedAt     time.Time        `json:"created_at"`
}

// BidList wraps a page of bids plus the next page cursor.
type BidList struct {
	Bids       []BidSummary `json:"bids"`
	NextCursor string       `json:"next_cursor,omitempty"`
}
