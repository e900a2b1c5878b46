package db

import (
	"errors"
	"fmt"
	"net/url"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/rs/zerolog/log"

	config "github.com/kovanet/kovascan/configs"
)

// RunMigrations applies the postgres schema. It is a no-op for the memory
// connector and when the schema is already current.
func RunMigrations() error {
	cfg := config.Cfg.Storage.Postgres
	if cfg == nil {
		log.Debug().Msg("No postgres storage configured, skipping migrations")
		return nil
	}

	dbURL := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		url.QueryEscape(cfg.Username),
		url.QueryEscape(cfg.Password),
		cfg.Host,
		cfg.Port,
		cfg.Database,
		cfg.SSLMode,
	)

	m, err := migrate.New("file://db/migrations", dbURL)
	if err != nil {
		return fmt.Errorf("failed to initialize migrations: %w", err)
	}
	defer m.Close()

	log.Info().Msg("Running postgres migrations")
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	log.Info().Msg("Postgres migrations completed")
	return nil
}
