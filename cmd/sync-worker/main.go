package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/channelsync-backend/internal/sync/cursor"
	metajob "github.com/angelmondragon/channelsync-backend/internal/sync/meta"
	"github.com/angelmondragon/channelsync-backend/internal/sync/pipeline"
	"github.com/angelmondragon/channelsync-backend/internal/sync/registry"
	"github.com/angelmondragon/channelsync-backend/internal/sync/resolver"
	"github.com/angelmondragon/channelsync-backend/internal/sync/runlock"
	"github.com/angelmondragon/channelsync-backend/internal/sync/runs"
	shopifyjob "github.com/angelmondragon/channelsync-backend/internal/sync/shopify"
	squarejob "github.com/angelmondragon/channelsync-backend/internal/sync/square"
	"github.com/angelmondragon/channelsync-backend/pkg/bigquery"
	"github.com/angelmondragon/channelsync-backend/pkg/config"
	"github.com/angelmondragon/channelsync-backend/pkg/db"
	"github.com/angelmondragon/channelsync-backend/pkg/enums"
	"github.com/angelmondragon/channelsync-backend/pkg/instance"
	"github.com/angelmondragon/channelsync-backend/pkg/logger"
	metapkg "github.com/angelmondragon/channelsync-backend/pkg/meta"
	"github.com/angelmondragon/channelsync-backend/pkg/metrics"
	"github.com/angelmondragon/channelsync-backend/pkg/migrate"
	"github.com/angelmondragon/channelsync-backend/pkg/pubsub"
	"github.com/angelmondragon/channelsync-backend/pkg/redis"
	shopifypkg "github.com/angelmondragon/channelsync-backend/pkg/shopify"
	squarepkg "github.com/angelmondragon/channelsync-backend/pkg/square"
	"github.com/angelmondragon/channelsync-backend/pkg/warehouse"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "sync-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}
	cfg.Service.Kind = "sync-worker"

	logg = logger.New(logger.Options{
		ServiceName: "sync-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
		"instance":    instance.GetID(),
	})

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(ctx, "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		logg.Error(ctx, "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(ctx, "error closing redis", err)
		}
	}()

	pubsubClient, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap pubsub", err)
		os.Exit(1)
	}
	defer func() {
		if err := pubsubClient.Close(); err != nil {
			logg.Error(ctx, "error closing pubsub", err)
		}
	}()

	var exporter pipeline.AggregateExporter
	if cfg.BigQuery.Enabled {
		bqClient, err := bigquery.NewClient(ctx, cfg.GCP, cfg.BigQuery, logg)
		if err != nil {
			logg.Error(ctx, "failed to bootstrap bigquery", err)
			os.Exit(1)
		}
		defer func() {
			if err := bqClient.Close(); err != nil {
				logg.Error(ctx, "error closing bigquery", err)
			}
		}()
		exporter, err = warehouse.New(bqClient, warehouse.Config{
			Table:     cfg.BigQuery.DailyAggregatesTable,
			BatchSize: cfg.Sync.WarehouseExportSize,
		})
		if err != nil {
			logg.Error(ctx, "failed to build warehouse exporter", err)
			os.Exit(1)
		}
	}

	service, err := buildService(cfg, logg, dbClient, redisClient, pubsubClient, exporter)
	if err != nil {
		logg.Error(ctx, "failed to build sync worker", err)
		os.Exit(1)
	}

	startMetricsServer(ctx, logg, cfg.App.MetricsPort)

	logg.Info(ctx, "starting sync worker")
	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "sync worker stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(ctx, "sync worker shutting down gracefully")
}

func buildService(
	cfg *config.Config,
	logg *logger.Logger,
	dbClient *db.Client,
	redisClient *redis.Client,
	pubsubClient *pubsub.Client,
	exporter pipeline.AggregateExporter,
) (*Service, error) {
	store, err := pipeline.NewStore(pipeline.StoreParams{
		DB:        dbClient,
		Logger:    logg,
		Exporter:  exporter,
		TxTimeout: cfg.Sync.StatementTimeout,
	})
	if err != nil {
		return nil, err
	}

	integrations := resolver.New(dbClient.DB())
	cursors := cursor.NewStore(dbClient.DB())

	shopifyClient := shopifypkg.NewClient(cfg.Shopify, cfg.Sync.HTTPTimeout, logg)
	metaClient := metapkg.NewClient(cfg.Meta, cfg.Sync.HTTPTimeout, logg)
	squareClient, err := squarepkg.NewClient(cfg.Square, logg)
	if err != nil {
		return nil, err
	}

	shopifyParams := shopifyjob.JobParams{
		Fetcher:  shopifyClient,
		Store:    store,
		Resolver: integrations,
		Cursors:  cursors,
		Logger:   logg,
		Sync:     cfg.Sync,
		StubMode: cfg.Shopify.StubMode,
	}
	metaParams := metajob.JobParams{
		Fetcher:  metaClient,
		Store:    store,
		Resolver: integrations,
		Cursors:  cursors,
		Logger:   logg,
		Sync:     cfg.Sync,
		Meta:     cfg.Meta,
		StubMode: cfg.Meta.StubMode,
	}
	squareParams := squarejob.JobParams{
		Fetcher:  squareClient,
		Store:    store,
		Resolver: integrations,
		Cursors:  cursors,
		Logger:   logg,
		Sync:     cfg.Sync,
		StubMode: cfg.Square.StubMode,
	}

	shopifyFill, err := shopifyjob.NewFillJob(shopifyParams)
	if err != nil {
		return nil, err
	}
	shopifyFresh, err := shopifyjob.NewFreshJob(shopifyParams)
	if err != nil {
		return nil, err
	}
	metaFill, err := metajob.NewFillJob(metaParams)
	if err != nil {
		return nil, err
	}
	metaFresh, err := metajob.NewFreshJob(metaParams)
	if err != nil {
		return nil, err
	}
	squareFill, err := squarejob.NewFillJob(squareParams)
	if err != nil {
		return nil, err
	}
	squareFresh, err := squarejob.NewFreshJob(squareParams)
	if err != nil {
		return nil, err
	}

	recorder, err := runs.NewRecorder(dbClient)
	if err != nil {
		return nil, err
	}

	return NewService(ServiceParams{
		Logger:       logg,
		Subscription: pubsubClient.RunsSubscription(),
		Registry: registry.NewRegistry(
			shopifyFill, shopifyFresh,
			metaFill, metaFresh,
			squareFill, squareFresh,
		),
		Recorder: recorder,
		Metrics:  metrics.NewSyncJobMetrics(prometheus.DefaultRegisterer),
		NewLock: func(integrationID uuid.UUID, jobType enums.JobType) (runLock, error) {
			return runlock.New(redisClient, integrationID, string(jobType), cfg.Sync.RunLockTTL)
		},
	})
}

func startMetricsServer(ctx context.Context, logg *logger.Logger, port string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	server := &http.Server{
		Addr:              ":" + port,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "metrics server stopped", err)
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()
}
