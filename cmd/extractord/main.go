// Package main runs the lead extraction service.
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
	"github.com/Rahil-Maniar/Autonomous-Discovery-Framework/internal/extract"
	"github.com/Rahil-Maniar/Autonomous-Discovery-Framework/internal/llm"
	"github.com/Rahil-Maniar/Autonomous-Discovery-Framework/internal/logging"
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
	if err := cfg.ValidateExtractor(); err != nil {
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

	generator := llm.NewCaller(cfg.LLM.Keys(), cfg.LLM.PrimaryModel, cfg.LLM.SecondaryModel,
		logger.Named("llm"))

	service, err := extract.NewService(generator, logger.Named("extract"))
	if err != nil {
		logger.Fatal("extract service init failed", zap.Error(err))
	}
	handler := extract.NewHandler(service, logger.Named("http"))

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
