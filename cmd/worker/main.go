package main

import (
	"context"
	"errors"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/lvollmer/bazaarnode/internal/bids"
	"github.com/lvollmer/bazaarnode/internal/hashing"
	"github.com/lvollmer/bazaarnode/internal/listings"
	"github.com/lvollmer/bazaarnode/internal/messages"
	"github.com/lvollmer/bazaarnode/internal/orders"
	"github.com/lvollmer/bazaarnode/internal/protocol"
	"github.com/lvollmer/bazaarnode/pkg/broadcast"
	"github.com/lvollmer/bazaarnode/pkg/config"
	"github.com/lvollmer/bazaarnode/pkg/db"
	"github.com/lvollmer/bazaarnode/pkg/logger"
	"github.com/lvollmer/bazaarnode/pkg/metrics"
	"github.com/lvollmer/bazaarnode/pkg/migrate"
	"github.com/lvollmer/bazaarnode/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "worker"

	logg = logger.New(logger.Options{
		ServiceName: "worker",
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

	broadcastClient, err := broadcast.NewClient(context.Background(), cfg.PubSub, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap pubsub", err)
		os.Exit(1)
	}
	defer func() {
		if err := broadcastClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing pubsub client", err)
		}
	}()

	protocolMetrics := metrics.NewProtocolMetrics(prometheus.DefaultRegisterer)

	hasher := hashing.NewService()
	codec := messages.NewCodec(messages.NewDefaultRegistry())
	ledger := protocol.NewLedger(protocol.NewLedgerRepository(dbClient.DB()), redisClient, cfg.Protocol.DedupCacheTTL)

	processor, err := protocol.NewProcessor(protocol.ProcessorParams{
		DB:       dbClient,
		Hasher:   hasher,
		Codec:    codec,
		Bids:     bids.NewRepository(dbClient.DB()),
		Orders:   orders.NewRepository(dbClient.DB()),
		Listings: listings.NewRepository(dbClient.DB()),
		Ledger:   ledger,
		Pending:  protocol.NewPendingRepository(dbClient.DB()),
		Logger:   logg,
		Metrics:  protocolMetrics,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create message processor", err)
		os.Exit(1)
	}

	service, err := NewService(ServiceParams{
		Config:    cfg,
		Logger:    logg,
		DB:        dbClient,
		Redis:     redisClient,
		Broadcast: broadcastClient,
		Processor: processor,
		Codec:     codec,
		Outbound:  protocol.NewOutboundRepository(dbClient.DB()),
		Metrics:   protocolMetrics,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create worker service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":          cfg.App.Env,
		"serviceKind":  "worker",
		"node_address": cfg.Protocol.NodeAddress,
	})
	logg.Info(ctx, "starting worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "worker shutting down gracefully")
}
