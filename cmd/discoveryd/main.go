// Package main wires together the discovery orchestrator service.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	gcsclient "cloud.google.com/go/storage"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	cloudpubsub "cloud.google.com/go/pubsub"

	"github.com/Rahil-Maniar/Autonomous-Discovery-Framework/internal/api"
	archivegcs "github.com/Rahil-Maniar/Autonomous-Discovery-Framework/internal/archive/gcs"
	archivelocal "github.com/Rahil-Maniar/Autonomous-Discovery-Framework/internal/archive/local"
	archivemem "github.com/Rahil-Maniar/Autonomous-Discovery-Framework/internal/archive/memory"
	"github.com/Rahil-Maniar/Autonomous-Discovery-Framework/internal/clock/system"
	"github.com/Rahil-Maniar/Autonomous-Discovery-Framework/internal/config"
	"github.com/Rahil-Maniar/Autonomous-Discovery-Framework/internal/continuation"
	"github.com/Rahil-Maniar/Autonomous-Discovery-Framework/internal/discovery"
	"github.com/Rahil-Maniar/Autonomous-Discovery-Framework/internal/extractor"
	"github.com/Rahil-Maniar/Autonomous-Discovery-Framework/internal/fetcher"
	collyfetcher "github.com/Rahil-Maniar/Autonomous-Discovery-Framework/internal/fetcher/colly"
	"github.com/Rahil-Maniar/Autonomous-Discovery-Framework/internal/llm"
	"github.com/Rahil-Maniar/Autonomous-Discovery-Framework/internal/logging"
	"github.com/Rahil-Maniar/Autonomous-Discovery-Framework/internal/orchestrator"
	pubmem "github.com/Rahil-Maniar/Autonomous-Discovery-Framework/internal/publisher/memory"
	pubgcp "github.com/Rahil-Maniar/Autonomous-Discovery-Framework/internal/publisher/pubsub"
	"github.com/Rahil-Maniar/Autonomous-Discovery-Framework/internal/search"
	"github.com/Rahil-Maniar/Autonomous-Discovery-Framework/internal/state"
	"github.com/Rahil-Maniar/Autonomous-Discovery-Framework/internal/storage"
	memstorage "github.com/Rahil-Maniar/Autonomous-Discovery-Framework/internal/storage/memory"
	pgstorage "github.com/Rahil-Maniar/Autonomous-Discovery-Framework/internal/storage/postgres"
	"github.com/Rahil-Maniar/Autonomous-Discovery-Framework/internal/verifier"
)

func main() {
	cfgPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.ValidateOrchestrator(); err != nil {
		fmt.Fprintf(os.Stderr, "config invalid: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync()
	}()
	zap.ReplaceGlobals(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	kv, closeKV, err := buildKV(ctx, cfg)
	if err != nil {
		logger.Fatal("state store init failed", zap.Error(err))
	}
	defer closeKV()
	store := state.New(kv)

	extractClient, err := extractor.NewClient(cfg.Extractor.URL,
		extractor.WithTimeout(cfg.Extractor.Timeout()))
	if err != nil {
		logger.Fatal("extractor client init failed", zap.Error(err))
	}
	verifyClient, err := verifier.NewClient(cfg.Verifier.URL,
		verifier.WithTimeout(cfg.Verifier.Timeout()))
	if err != nil {
		logger.Fatal("verifier client init failed", zap.Error(err))
	}

	generator := llm.NewCaller(cfg.LLM.Keys(), cfg.LLM.PrimaryModel, cfg.LLM.SecondaryModel,
		logger.Named("llm"))

	searchCreds, err := search.ParseCredentials(cfg.Search.Keys())
	if err != nil {
		logger.Fatal("search credentials invalid", zap.Error(err))
	}
	searcher, err := search.NewClient(cfg.Search.Endpoint, searchCreds, cfg.Search.Locale,
		logger.Named("search"))
	if err != nil {
		logger.Fatal("search client init failed", zap.Error(err))
	}

	clock := system.New()
	sourceFetcher, err := fetcher.NewCached(
		collyfetcher.New(collyfetcher.Config{
			UserAgent: cfg.Fetcher.UserAgent,
			Timeout:   time.Duration(cfg.Fetcher.TimeoutSeconds) * time.Second,
		}),
		cfg.Fetcher.CacheSize,
		fetcher.DefaultMaxAge,
		clock,
	)
	if err != nil {
		logger.Fatal("fetcher init failed", zap.Error(err))
	}

	archiver, err := buildArchiver(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("archive init failed", zap.Error(err))
	}

	publisher, closePub, err := buildPublisher(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("publisher init failed", zap.Error(err))
	}
	defer closePub()

	continuer, err := continuation.NewClient(cfg.Orchestrator.BaseURL,
		cfg.Orchestrator.ContinuationSecret, logger.Named("continuation"))
	if err != nil {
		logger.Fatal("continuation client init failed", zap.Error(err))
	}

	orch, err := orchestrator.New(orchestrator.Config{
		Cooldown:            cfg.Cooldown(),
		ChunkMaxChars:       cfg.Orchestrator.ChunkMaxChars,
		ExtractBatchSize:    cfg.Orchestrator.ExtractBatchSize,
		ConfidenceThreshold: cfg.Orchestrator.ConfidenceThreshold,
		MaxCycles:           cfg.Orchestrator.MaxCycles,
		RetryDelay:          cfg.RetryDelay(),
		Topic:               cfg.Orchestrator.Topic,
		ArchivePrefix:       cfg.Archive.Prefix,
	}, orchestrator.Dependencies{
		Store:     store,
		Extractor: extractClient,
		Verifier:  verifyClient,
		Fetcher:   sourceFetcher,
		Generator: generator,
		Searcher:  searcher,
		Publisher: publisher,
		Archiver:  archiver,
		Continuer: continuer,
		Clock:     clock,
	}, logger.Named("orchestrator"))
	if err != nil {
		logger.Fatal("orchestrator init failed", zap.Error(err))
	}

	server := api.NewServer(orch, store, cfg.Orchestrator.ContinuationSecret, logger.Named("api"))
	runHTTP(ctx, cfg.Server.Port, server.Handler(), logger)
}

func buildKV(ctx context.Context, cfg config.Config) (storage.KV, func(), error) {
	if cfg.DB.DSN == "" {
		return memstorage.NewKV(), func() {}, nil
	}
	kv, err := pgstorage.NewKV(ctx, pgstorage.Config{
		DSN:   cfg.DB.DSN,
		Table: cfg.DB.Table,
	})
	if err != nil {
		return nil, nil, err
	}
	return kv, kv.Close, nil
}

func buildArchiver(ctx context.Context, cfg config.Config, logger *zap.Logger) (discovery.Archiver, error) {
	switch cfg.Archive.Provider {
	case "gcs":
		client, err := gcsclient.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("create gcs client: %w", err)
		}
		return archivegcs.New(client, cfg.Archive.GCSBucket)
	case "local":
		return archivelocal.New(cfg.Archive.LocalDir)
	default:
		logger.Info("using in-memory archive")
		return archivemem.New(), nil
	}
}

func buildPublisher(ctx context.Context, cfg config.Config, logger *zap.Logger) (discovery.Publisher, func(), error) {
	if cfg.PubSub.ProjectID == "" {
		logger.Info("using in-memory publisher")
		return pubmem.New(), func() {}, nil
	}
	client, err := cloudpubsub.NewClient(ctx, cfg.PubSub.ProjectID)
	if err != nil {
		return nil, nil, fmt.Errorf("create pubsub client: %w", err)
	}
	pub, err := pubgcp.New(client)
	if err != nil {
		return nil, nil, err
	}
	return pub, func() { _ = client.Close() }, nil
}

func runHTTP(ctx context.Context, port int, handler http.Handler, logger *zap.Logger) {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", zap.String("addr", srv.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server failed", zap.Error(err))
		}
		return
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown failed", zap.Error(err))
	}
}
