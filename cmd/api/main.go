package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/lvollmer/bazaarnode/api/routes"
	"github.com/lvollmer/bazaarnode/internal/bids"
	"github.com/lvollmer/bazaarnode/internal/hashing"
	"github.com/lvollmer/bazaarnode/internal/listings"
	"github.com/lvollmer/bazaarnode/internal/messages"
	"github.com/lvollmer/bazaarnode/internal/orders"
	"github.com/lvollmer/bazaarnode/internal/protocol"
	"github.com/lvollmer/bazaarnode/pkg/config"
	"github.com/lvollmer/bazaarnode/pkg/db"
	"github.com/lvollmer/bazaarnode/pkg/logger"
	"github.com/lvollmer/bazaarnode/pkg/metrics"
	"github.com/lvollmer/bazaarnode/pkg/migrate"
	"github.com/lvollmer/bazaarnode/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	registry := prometheus.NewRegistry()
	protocolMetrics := metrics.NewProtocolMetrics(registry)

	bidRepo := bids.NewRepository(dbClient.DB())
	orderRepo := orders.NewRepository(dbClient.DB())
	listingRepo := listings.NewRepository(dbClient.DB())
	pendingRepo := protocol.NewPendingRepository(dbClient.DB())
	outboundRepo := protocol.NewOutboundRepository(dbClient.DB())

	hasher := hashing.NewService()
	codec := messages.NewCodec(messages.NewDefaultRegistry())
	ledger := protocol.NewLedger(protocol.NewLedgerRepository(dbClient.DB()), redisClient, cfg.Protocol.DedupCacheTTL)

	processor, err := protocol.NewProcessor(protocol.ProcessorParams{
		DB:       dbClient,
		Hasher:   hasher,
		Codec:    codec,
		Bids:     bidRepo,
		Orders:   orderRepo,
		Listings: listingRepo,
		Ledger:   ledger,
		Pending:  pendingRepo,
		Logger:   logg,
		Metrics:  protocolMetrics,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create message processor", err)
		os.Exit(1)
	}

	builder, err := protocol.NewBuilder(protocol.BuilderParams{
		Processor:   processor,
		Hasher:      hasher,
		Codec:       codec,
		Bids:        bidRepo,
		Orders:      orderRepo,
		Listings:    listingRepo,
		Outbound:    outboundRepo,
		Logger:      logg,
		NodeAddress: cfg.Protocol.NodeAddress,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create message builder", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":          cfg.App.Env,
		"addr":         addr,
		"node_address": cfg.Protocol.NodeAddress,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr:    addr,
		Handler: routes.NewRouter(cfg, logg, dbClient, redisClient, builder, bidRepo, orderRepo, listingRepo, registry),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
