package postgres

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"time"

	retry "github.com/avast/retry-go/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pressly/goose/v3"
	"github.com/xela07ax/printhub-backend/internal/infra"
	"go.uber.org/zap"

	_ "github.com/jackc/pgx/v5/stdlib" // Драйвер Postgres для goose
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Connect создает пул соединений и проверяет доступность базы.
// Ping ретраится: при старте в compose/k8s база часто поднимается позже сервиса.
// Это единственный retry в системе — на путях запросов ретраев нет.
func Connect(ctx context.Context, cfg infra.DatabaseConfig, logger *zap.Logger) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("postgres: invalid database url: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to create pool: %w", err)
	}

	r := retry.New(
		retry.Context(ctx),
		retry.Attempts(5),
		retry.DelayType(func(n uint, err error, config retry.DelayContext) time.Duration {
			return time.Second
		}),
	)
	if err := r.Do(func() error {
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		defer cancel()
		if pingErr := pool.Ping(pingCtx); pingErr != nil {
			logger.Warn("database not ready yet", zap.Error(pingErr))
			return pingErr
		}
		return nil
	}); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: database unreachable: %w", err)
	}

	return pool, nil
}

// Migrate прогоняет встроенные goose-миграции до актуальной версии.
// Отдельное *sql.DB соединение только на время миграций.
func Migrate(dbURL string, logger *zap.Logger) error {
	db, err := sql.Open("pgx", dbURL)
	if err != nil {
		return fmt.Errorf("postgres: open for migrations: %w", err)
	}
	defer db.Close()

	goose.SetBaseFS(migrationsFS)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("postgres: goose dialect: %w", err)
	}

	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("postgres: migrations failed: %w", err)
	}

	logger.Info("database migrations applied")
	return nil
}
