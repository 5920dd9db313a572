package server

import (
	"context"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/invoice-po-matcher/internal/common"
	repo "github.com/joseph-ayodele/invoice-po-matcher/internal/repository"
)

// ConnectDB opens the history store described by cfg.
func ConnectDB(ctx context.Context, cfg common.DatabaseConfig, logger *slog.Logger) (*repo.Store, error) {
	logger.Info("connecting to history store", "postgres", repo.IsPostgresDSN(cfg.DSN))
	store, err := repo.Open(ctx, repo.Config{
		DSN:              cfg.DSN,
		MaxConns:         cfg.MaxConns,
		MinConns:         cfg.MinConns,
		MaxConnLifetime:  cfg.MaxConnLifetime,
		MaxConnIdleTime:  cfg.MaxConnIdleTime,
		DialTimeout:      cfg.DialTimeout,
		StatementTimeout: cfg.StatementTimeout,
	}, logger)
	if err != nil {
		logger.Error("failed to open history store", "error", err)
		return nil, err
	}
	return store, nil
}

// PingDB pings the history store to ensure it's responsive
func PingDB(ctx context.Context, store *repo.Store, logger *slog.Logger, timeout time.Duration) error {
	logger.Debug("pinging database")
	if err := store.HealthCheck(ctx, timeout); err != nil {
		logger.Error("database ping failed", "error", err)
		return err
	}
	logger.Debug("database ping successful")
	return nil
}

// CloseDB closes the history store.
func CloseDB(store *repo.Store, logger *slog.Logger) {
	if store == nil {
		return
	}
	logger.Info("closing database connections")
	store.Close()
	logger.Info("database connections closed")
}
