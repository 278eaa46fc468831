package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// InitDB connects to Postgres and, when DBMigrate is set, applies the embedded
// migrations in migrations.
func InitDB(cfg *AppConfig, migrations fs.FS) *sqlx.DB {
	db, err := sqlx.Connect("postgres", cfg.DBConnectionString())
	if err != nil {
		slog.Error("Failed opening connection to postgres", "error", err)
		os.Exit(1)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	if cfg.DBMigrate {
		if err := Migrate(db, migrations); err != nil {
			slog.Error("Failed running migrations", "error", err)
			os.Exit(1)
		}
		slog.Info("Database migrated")
	}

	return db
}

func Migrate(db *sqlx.DB, migrations fs.FS) error {
	source, err := iofs.New(migrations, ".")
	if err != nil {
		return fmt.Errorf("open migration source: %w", err)
	}

	driver, err := postgres.WithInstance(db.DB, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("open migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return fmt.Errorf("init migrator: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate up: %w", err)
	}
	return nil
}
