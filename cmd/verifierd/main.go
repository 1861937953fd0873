// Package main runs the careers-page verification service.
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

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/Rahil-Maniar/Autonomous-Discovery-Framework/internal/config"
	"github.com/Rahil-Maniar/Autonomous-Discovery-Framework/internal/discovery"
	collyfetcher "github.com/Rahil-Maniar/Autonomous-Discovery-Framework/internal/fetcher/colly"
	"github.com/Rahil-Maniar/Autonomous-Discovery-Framework/internal/fetcher/headless"
	"github.com/Rahil-Maniar/Autonomous-Discovery-Framework/internal/logging"
	"github.com/Rahil-Maniar/Autonomous-Discovery-Framework/internal/search"
	"github.com/Rahil-Maniar/Autonomous-Discovery-Framework/internal/verify"
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

	fetcher := collyfetcher.New(collyfetcher.Config{
		UserAgent: cfg.Fetcher.UserAgent,
		Timeout:   time.Duration(cfg.Fetcher.TimeoutSeconds) * time.Second,
	})

	opts := make([]verify.Option, 0, 2)
	escalation := discovery.SourceFetcher(headless.NewNoop())
	if cfg.Headless.Enabled {
		browser, herr := headless.NewChromedp(headless.Config{
			MaxParallel:       cfg.Headless.MaxParallel,
			UserAgent:         cfg.Fetcher.UserAgent,
			NavigationTimeout: cfg.Headless.NavTimeout(),
		})
		if herr != nil {
			logger.Warn("headless fetcher unavailable, continuing without escalation",
				zap.Error(herr))
		} else {
			defer browser.Close()
			escalation = browser
		}
	}
	opts = append(opts, verify.WithHeadless(escalation))

	if keys := cfg.Search.Keys(); len(keys) > 0 {
		creds, serr := search.ParseCredentials(keys)
		if serr != nil {
			logger.Fatal("search credentials invalid", zap.Error(serr))
		}
		searcher, serr := search.NewClient(cfg.Search.Endpoint, creds, cfg.Search.Locale,
			logger.Named("search"))
		if serr != nil {
			logger.Fatal("search client init failed", zap.Error(serr))
		}
		opts = append(opts, verify.WithSearcher(searcher))
	}

	service, err := verify.NewService(fetcher, logger.Named("verify"), opts...)
	if err != nil {
		logger.Fatal("verify service init failed", zap.Error(err))
	}
	handler := verify.NewHandler(service, logger.Named("http"))

	runHTTP(ctx, cfg.Server.Port, handler.Router(), logger)
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
