package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/Ryz3nPlayZ/B2B-Procurement/internal/clients"
	"github.com/Ryz3nPlayZ/B2B-Procurement/internal/config"
	"github.com/Ryz3nPlayZ/B2B-Procurement/internal/engine"
	"github.com/Ryz3nPlayZ/B2B-Procurement/internal/events"
	"github.com/Ryz3nPlayZ/B2B-Procurement/internal/httpapi"
	"github.com/Ryz3nPlayZ/B2B-Procurement/internal/store"
	"github.com/Ryz3nPlayZ/B2B-Procurement/internal/validator"
)

func main() {
	cfg := config.Load()

	logLevel := slog.LevelInfo
	if cfg.Environment == "development" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	slog.Info("starting negotiation-engine",
		"environment", cfg.Environment,
		"port", cfg.Port,
	)

	// Select persistence: MongoDB when configured, in-memory otherwise.
	var dealStore store.DealStore
	if cfg.MongoURI != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		clientOpts := options.Client().ApplyURI(cfg.MongoURI)
		mongoClient, err := mongo.Connect(ctx, clientOpts)
		if err != nil {
			slog.Error("failed to connect to mongodb", "error", err)
			os.Exit(1)
		}
		if err := mongoClient.Ping(ctx, nil); err != nil {
			slog.Error("failed to ping mongodb", "error", err)
			os.Exit(1)
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := mongoClient.Disconnect(ctx); err != nil {
				slog.Error("failed to disconnect mongodb", "error", err)
			}
		}()

		mongoStore := store.NewMongoDealStore(mongoClient, cfg.MongoDatabase, cfg.MongoCollection, cfg.MongoArchiveCollection)
		if err := mongoStore.EnsureIndexes(ctx); err != nil {
			slog.Warn("failed to create indexes", "error", err)
		}
		dealStore = mongoStore
		slog.Info("using mongodb store", "db", cfg.MongoDatabase, "collection", cfg.MongoCollection)
	} else {
		dealStore = store.NewMemoryDealStore()
		slog.Info("using in-memory store")
	}

	publisher := events.NewPublisher("negotiation-engine")
	for eventType, url := range cfg.EventWebhooks {
		publisher.RegisterEndpoint(eventType, url)
	}

	policyClient := clients.NewPolicyClient(cfg.PolicyServiceURL)

	eng := engine.New(
		dealStore,
		validator.New(cfg.StalenessWindow, cfg.MaxTextLength),
		publisher,
		engine.Options{
			DefaultMaxRounds: cfg.DefaultMaxRounds,
			DefaultTimeout:   cfg.DealTimeout,
			Policy:           policyClient,
		},
	)

	sweepCtx, stopSweeper := context.WithCancel(context.Background())
	defer stopSweeper()
	go eng.RunSweeper(sweepCtx, cfg.SweepInterval)

	router := httpapi.NewRouter(eng)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	go func() {
		slog.Info("http server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("http server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server...")
	stopSweeper()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("server stopped")
}
