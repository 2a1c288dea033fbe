package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lvollmer/bazaarnode/api/controllers"
	"github.com/lvollmer/bazaarnode/api/middleware"
	"github.com/lvollmer/bazaarnode/pkg/config"
	"github.com/lvollmer/bazaarnode/pkg/logger"
	"github.com/lvollmer/bazaarnode/pkg/redis"
)

// NewRouter assembles the local command surface: health probes, token
// minting, listing seeding and the signed bid/order commands.
func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP controllers.Pinger,
	redisClient *redis.Client,
	builder controllers.MessageBuilder,
	bidReader controllers.BidReader,
	orderReader controllers.OrderReader,
	listingStore controllers.ListingStore,
	registry *prometheus.Registry,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, dbP, redisClient, logg))
	})

	if registry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	}

	tokenPolicy := middleware.NewRateLimitPolicy(
		"token",
		cfg.RateLimit.TokenWindow,
		cfg.RateLimit.TokenIPLimit,
	)
	tokenLimit := middleware.RateLimit(tokenPolicy, nil, logg)
	var idemStore redis.IdempotencyStore
	if redisClient != nil {
		tokenLimit = middleware.RateLimit(tokenPolicy, redisClient, logg)
		idemStore = redisClient
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.With(tokenLimit).Post("/auth/token", controllers.TokenMint(cfg, logg))

		r.Group(func(r chi.Router) {
			r.Use(
				middleware.Auth(cfg.JWT, logg),
				middleware.Idempotency(idemStore, logg),
			)

			r.Route("/listings", func(r chi.Router) {
				r.Post("/", controllers.SeedListing(listingStore, logg))
				r.Get("/", controllers.ListListings(listingStore, logg))
				r.Get("/{hash}", controllers.GetListing(listingStore, logg))
			})

			r.Route("/bids", func(r chi.Router) {
				r.Post("/", controllers.SendBid(builder, logg))
				r.Get("/", controllers.SearchBids(bidReader, logg))
				r.Get("/{hash}", controllers.GetBid(bidReader, logg))
				r.Post("/{hash}/accept", controllers.AcceptBid(builder, logg))
				r.Post("/{hash}/reject", controllers.RejectBid(builder, logg))
				r.Post("/{hash}/cancel", controllers.CancelBid(builder, logg))
			})

			r.Route("/orders", func(r chi.Router) {
				r.Get("/", controllers.SearchOrders(orderReader, logg))
				r.Get("/{hash}", controllers.GetOrder(orderReader, logg))
				r.Post("/{hash}/lock", controllers.LockOrder(builder, logg))
				r.Post("/{hash}/release", controllers.ReleaseOrder(builder, logg))
				r.Post("/{hash}/refund", controllers.RefundOrder(builder, logg))
				r.Post("/{hash}/ship", controllers.ShipOrder(builder, logg))
				r.Post("/{hash}/complete", controllers.CompleteOrder(builder, logg))
			})
		})
	})

	return r
}
