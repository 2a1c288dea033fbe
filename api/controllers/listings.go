package controllers

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/lvollmer/bazaarnode/api/middleware"
	"github.com/lvollmer/bazaarnode/api/responses"
	"github.com/lvollmer/bazaarnode/api/validators"
	"github.com/lvollmer/bazaarnode/pkg/db/models"
	"github.com/lvollmer/bazaarnode/pkg/enums"
	pkgerrors "github.com/lvollmer/bazaarnode/pkg/errors"
	"github.com/lvollmer/bazaarnode/pkg/logger"
)

type seedListingRequest struct {
	Hash         string  `json:"hash" validate:"required"`
	Title        string  `json:"title" validate:"required,max=200"`
	Price        string  `json:"price" validate:"required"`
	Currency     string  `json:"currency,omitempty" validate:"omitempty,min=3,max=5"`
	TemplateHash *string `json:"template_hash,omitempty"`
	ExpiresAt    int64   `json:"expires_at" validate:"required"`
}

type listingResponse struct {
	Hash          string  `json:"hash"`
	SellerAddress string  `json:"seller_address"`
	Title         string  `json:"title"`
	Price         string  `json:"price"`
	Currency      string  `json:"currency"`
	TemplateHash  *string `json:"template_hash,omitempty"`
	ExpiresAt     int64   `json:"expires_at"`
}

func listingResponseFrom(listing *models.Listing) listingResponse {
	return listingResponse{
		Hash:          listing.Hash,
		SellerAddress: listing.SellerAddress,
		Title:         listing.Title,
		Price:         listing.Price.String(),
		Currency:      listing.Currency,
		TemplateHash:  listing.TemplateHash,
		ExpiresAt:     listing.ExpiresAt.UnixMilli(),
	}
}

// SeedListing registers one of this node's own listings so peers can bid on
// it. Only the seller's own listings carry a template hash.
func SeedListing(store ListingStore, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := requireRole(r, enums.ActorRoleSeller); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req seedListingRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		price, err := decimal.NewFromString(req.Price)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid price"))
			return
		}

		currency := req.Currency
		if currency == "" {
			currency = "PART"
		}

		listing, err := store.Upsert(r.Context(), &models.Listing{
			Hash:          req.Hash,
			SellerAddress: middleware.NodeAddressFromContext(r.Context()),
			Title:         validators.SanitizeString(req.Title, 200),
			Price:         price,
			Currency:      currency,
			TemplateHash:  req.TemplateHash,
			ExpiresAt:     time.UnixMilli(req.ExpiresAt).UTC(),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, listingResponseFrom(listing))
	}
}

// GetListing returns one locally known listing.
func GetListing(store ListingStore, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		listing, err := store.FindByHash(r.Context(), chi.URLParam(r, "hash"))
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				err = pkgerrors.New(pkgerrors.CodeNotFound, "listing not found")
			}
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, listingResponseFrom(listing))
	}
}

// ListListings returns listings for the requested seller, defaulting to the
// caller's own.
func ListListings(store ListingStore, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		seller := validators.QueryString(r, "seller_address")
		if seller == "" {
			seller = middleware.NodeAddressFromContext(r.Context())
		}

		rows, err := store.ListBySeller(r.Context(), seller)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		out := make([]listingResponse, 0, len(rows))
		for i := range rows {
			out = append(out, listingResponseFrom(&rows[i]))
		}
		responses.WriteSuccess(w, out)
	}
}
