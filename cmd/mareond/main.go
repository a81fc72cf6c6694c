package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/mareon-hq/mareon-backend/constants"
	"github.com/mareon-hq/mareon-backend/internal/common"
	"github.com/mareon-hq/mareon-backend/internal/documents"
	"github.com/mareon-hq/mareon-backend/internal/processing"
	"github.com/mareon-hq/mareon-backend/internal/pubsub"
	"github.com/mareon-hq/mareon-backend/internal/repository"
	"github.com/mareon-hq/mareon-backend/internal/server"
	"github.com/mareon-hq/mareon-backend/internal/storage"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := common.LoadConfig()
	if err != nil {
		logger.Error("configuration error", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := repository.Open(ctx, cfg.Database, logger)
	if err != nil {
		logger.Error("database connection failed", "error", err)
		os.Exit(1)
	}
	defer repository.Close(pool, logger)

	if err := repository.HealthCheck(ctx, pool, logger); err != nil {
		logger.Error("database health check failed", "error", err)
		os.Exit(1)
	}

	store, err := storage.NewGCSStore(ctx, cfg.Storage.Bucket, logger)
	if err != nil {
		logger.Error("storage client failed", "error", err)
		os.Exit(1)
	}

	var publisher pubsub.Publisher
	if cfg.PubSub.ProjectID != "" {
		publisher, err = pubsub.NewGCPPublisher(ctx, cfg.PubSub.ProjectID, cfg.PubSub.PublishTimeout, logger)
		if err != nil {
			logger.Error("publisher init failed", "error", err)
			os.Exit(1)
		}
		logger.Info("pubsub publisher initialized", "project", cfg.PubSub.ProjectID)
	} else {
		publisher = pubsub.NewRecordingPublisher()
		logger.Warn("no pubsub project configured, using recording publisher")
	}
	defer publisher.Close()

	subscription := pubsub.Subscription(cfg.PubSub.DocumentUploadsSubscription)
	if subscription == "" {
		subscription = constants.DefaultDocumentUploadsSubscription
	}
	topic := cfg.PubSub.ParsingJobsTopic
	if topic == "" {
		topic = constants.DefaultParsingJobsTopic
	}

	txRunner := repository.NewTxRunner(pool, logger)
	jobs := processing.NewService(logger)
	confirm := documents.NewConfirmHandler(txRunner, jobs, publisher, topic, logger)

	dispatcher := pubsub.NewDispatcher(logger)
	dispatcher.Register(confirm.Handler(subscription))

	uploads := documents.NewUploadService(txRunner, store, cfg.Storage.UploadURLTTL, logger)

	srv := server.New(cfg.Server, dispatcher, uploads, server.GatewayIdentity{}, logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Run(gctx) })

	if err := g.Wait(); err != nil {
		logger.Error("server exited with error", "error", err)
		os.Exit(1)
	}
	logger.Info("stopped")
}
