package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/joseph-ayodele/invoice-po-matcher/internal/common"
	"github.com/joseph-ayodele/invoice-po-matcher/internal/export"
	svc "github.com/joseph-ayodele/invoice-po-matcher/internal/server"
)

func main() {
	// .env is optional
	_ = godotenv.Load()

	cfg, err := common.LoadConfig()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(2)
	}
	logger := common.NewLogger(os.Stdout, cfg.Log)
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", common.PublicMessage(err))
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := svc.ConnectDB(ctx, cfg.Database, logger)
	if err != nil {
		os.Exit(1)
	}
	defer svc.CloseDB(store, logger)

	if err := svc.PingDB(ctx, store, logger, 5*time.Second); err != nil {
		os.Exit(1)
	}

	processor, err := svc.NewProcessor(cfg, store, logger)
	if err != nil {
		logger.Error("failed to build processor", "error", err)
		os.Exit(1)
	}
	exporter := export.NewService(store, logger)

	httpSrv := &http.Server{
		Addr: cfg.Server.HTTPAddr,
		Handler: svc.NewHTTPServer(svc.HTTPConfig{
			UploadDir:      cfg.Server.UploadDir,
			MaxUploadBytes: cfg.Server.MaxUploadBytes,
		}, processor, store, exporter, logger).Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 2)
	go func() {
		logger.Info("http listening", "addr", cfg.Server.HTTPAddr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	grpcSrv, healthSrv := svc.NewGRPCServer(svc.NewComparisonService(processor, store, cfg.Server.UploadDir, logger), logger)
	if cfg.Server.GRPCAddr != "" {
		lis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
		if err != nil {
			logger.Error("failed to listen on address", "addr", cfg.Server.GRPCAddr, "error", err)
			os.Exit(1)
		}
		go func() {
			logger.Info("grpc listening", "addr", cfg.Server.GRPCAddr)
			if err := grpcSrv.Serve(lis); err != nil {
				errCh <- err
			}
		}()
	}

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-errCh:
		logger.Error("server error", "error", err)
	}

	healthSrv.Shutdown()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown", "error", err)
	}
	grpcSrv.GracefulStop()
	logger.Info("stopped")
}
