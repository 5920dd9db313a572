package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

type Config struct {
	DSN              string
	MaxConns         int32
	MinConns         int32
	MaxConnLifetime  time.Duration
	MaxConnIdleTime  time.Duration
	DialTimeout      time.Duration
	StatementTimeout time.Duration
}

// Store owns the history database handle.
type Store struct {
	drv    *entsql.Driver
	pool   *pgxpool.Pool // nil for SQLite
	logger *slog.Logger
	now    func() time.Time
}

// IsPostgresDSN reports whether dsn selects the PostgreSQL backend.
func IsPostgresDSN(dsn string) bool {
	return strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://")
}

// Open connects to PostgreSQL (postgres:// DSNs) or SQLite (anything else) and
// creates the history table if it does not exist.
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.DSN == "" {
		return nil, fmt.Errorf("history dsn is empty")
	}

	var (
		s   *Store
		err error
	)
	if IsPostgresDSN(cfg.DSN) {
		s, err = openPostgres(ctx, cfg, logger)
	} else {
		s, err = openSQLite(cfg, logger)
	}
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		return nil, err
	}
	if err := s.migrate(ctx); err != nil {
		s.Close()
		return nil, fmt.Errorf("migrate history: %w", err)
	}
	logger.Info("successfully connected to database", "dialect", s.drv.Dialect())
	return s, nil
}

func openPostgres(ctx context.Context, cfg Config, logger *slog.Logger) (*Store, error) {
	logger.Info("connecting to database", "dialect", dialect.Postgres)
	pc, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, err
	}
	if cfg.MaxConns > 0 {
		pc.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		pc.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		pc.MaxConnLifetime = cfg.MaxConnLifetime
	}
	if cfg.MaxConnIdleTime > 0 {
		pc.MaxConnIdleTime = cfg.MaxConnIdleTime
	}
	pc.ConnConfig.RuntimeParams["application_name"] = "po-matcher"
	if cfg.StatementTimeout > 0 {
		pc.ConnConfig.RuntimeParams["statement_timeout"] = fmt.Sprint(cfg.StatementTimeout.Milliseconds())
	}

	if cfg.DialTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.DialTimeout)
		defer cancel()
	}
	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		return nil, err
	}

	// Wrap pool as *sql.DB for Ent
	db := stdlib.OpenDBFromPool(pool)
	return &Store{
		drv:    entsql.OpenDB(dialect.Postgres, db),
		pool:   pool,
		logger: logger,
		now:    time.Now,
	}, nil
}

func openSQLite(cfg Config, logger *slog.Logger) (*Store, error) {
	logger.Info("connecting to database", "dialect", dialect.SQLite, "dsn", cfg.DSN)
	db, err := sql.Open("sqlite", sqliteDSN(cfg.DSN))
	if err != nil {
		return nil, err
	}
	// one writer: inserts are serialized and :memory: databases stay on a single connection
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)
	return &Store{
		drv:    entsql.OpenDB(dialect.SQLite, db),
		logger: logger,
		now:    time.Now,
	}, nil
}

func sqliteDSN(dsn string) string {
	if dsn == ":memory:" || strings.HasPrefix(dsn, "file:") {
		return dsn
	}
	return "file:" + dsn + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
}

func (s *Store) migrate(ctx context.Context) error {
	var stmts []string
	switch s.drv.Dialect() {
	case dialect.Postgres:
		stmts = []string{
			`CREATE TABLE IF NOT EXISTS "history" (
				"id" BIGSERIAL PRIMARY KEY,
				"timestamp" TEXT NOT NULL,
				"invoice_file" TEXT NOT NULL,
				"po_file" TEXT NOT NULL,
				"result" TEXT NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS "history_timestamp_idx" ON "history" ("timestamp")`,
		}
	default:
		stmts = []string{
			"CREATE TABLE IF NOT EXISTS `history` (" +
				"`id` INTEGER PRIMARY KEY AUTOINCREMENT, " +
				"`timestamp` TEXT NOT NULL, " +
				"`invoice_file` TEXT NOT NULL, " +
				"`po_file` TEXT NOT NULL, " +
				"`result` TEXT NOT NULL)",
			"CREATE INDEX IF NOT EXISTS `history_timestamp_idx` ON `history` (`timestamp`)",
		}
	}
	for _, stmt := range stmts {
		if err := s.drv.Exec(ctx, stmt, []any{}, nil); err != nil {
			return err
		}
	}
	return nil
}

// Close closes the database connections gracefully
func (s *Store) Close() {
	if s == nil {
		return
	}
	s.logger.Info("closing database connections")
	if err := s.drv.Close(); err != nil {
		s.logger.Error("failed to close database", "error", err)
	}
	if s.pool != nil {
		s.pool.Close()
	}
	s.logger.Info("database connections closed")
}

// HealthCheck pings the database.
func (s *Store) HealthCheck(ctx context.Context, timeout time.Duration) error {
	s.logger.Debug("pinging database")
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	if s.pool != nil {
		return s.pool.Ping(ctx)
	}
	return s.drv.DB().PingContext(ctx)
}
