package config

import (
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	log "github.com/sirupsen/logrus"
)

// ApplyMigrations brings the schema up to date. An empty MigrationsPath
// skips it.
func ApplyMigrations(cfg *Config) error {
	if cfg.MigrationsPath == "" {
		return nil
	}

	m, err := migrate.New(cfg.MigrationsPath, cfg.PostgresDSN)
	if err != nil {
		return fmt.Errorf("init migrations: %w", err)
	}
	defer func() { _, _ = m.Close() }()

	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			log.Info("schema up to date")
			return nil
		}
		return fmt.Errorf("apply migrations: %w", err)
	}

	log.Info("migrations applied")
	return nil
}
