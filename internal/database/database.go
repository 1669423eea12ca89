// Package database provides the PostgreSQL connection pool and schema
// migrations for the audiobook-service.
package database

import (
	"context"
	"embed"
	"errors"
	"fmt"

	"github.com/book-expert/logger"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/book-expert/audiobook-service/internal/config"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Connect creates a PostgreSQL connection pool and verifies it with a ping.
func Connect(ctx context.Context, cfg config.DatabaseConfig, log *logger.Logger) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to parse database DSN: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	pingErr := pool.Ping(ctx)
	if pingErr != nil {
		pool.Close()

		return nil, fmt.Errorf("failed to ping database: %w", pingErr)
	}

	log.Info("Connected to PostgreSQL: %s:%d/%s", cfg.Host, cfg.Port, cfg.Name)

	return pool, nil
}

// Migrate applies the embedded SQL migrations to the database.
func Migrate(cfg config.DatabaseConfig, log *logger.Logger) error {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	migrator, err := migrate.NewWithSourceInstance("iofs", source, cfg.MigrateURL())
	if err != nil {
		return fmt.Errorf("failed to initialize migrations: %w", err)
	}

	defer func() {
		sourceErr, dbErr := migrator.Close()
		if sourceErr != nil || dbErr != nil {
			log.Warn("Failed to close migrator: source=%v db=%v", sourceErr, dbErr)
		}
	}()

	upErr := migrator.Up()
	if upErr != nil && !errors.Is(upErr, migrate.ErrNoChange) {
		return fmt.Errorf("failed to apply migrations: %w", upErr)
	}

	version, dirty, versionErr := migrator.Version()
	if versionErr != nil {
		return fmt.Errorf("failed to read migration version: %w", versionErr)
	}

	log.Info("Database schema at version %d (dirty=%v)", version, dirty)

	return nil
}
