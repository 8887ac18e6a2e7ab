// Package database はデータベース接続とマイグレーション管理を提供する。
package database

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	pgxmigrate "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/notho/socialgen/internal/config"
)

//go:embed migrations/postgres/*.sql migrations/sqlite/*.sql
var migrationsFS embed.FS

// migrationsDir はドライバーに対応するマイグレーションディレクトリを返す。
// postgresとpgxは同じPostgreSQL用SQLを共有する。
func migrationsDir(driver config.Driver) string {
	if driver == config.DriverSQLite {
		return "migrations/sqlite"
	}
	return "migrations/postgres"
}

// NewMigrator は既存の接続を使うmigrateインスタンスを生成する。
// 返したインスタンスのCloseはdbも閉じるため、dbを使い続ける場合は呼ばないこと。
func NewMigrator(db *sql.DB, driver config.Driver) (*migrate.Migrate, error) {
	source, err := iofs.New(migrationsFS, migrationsDir(driver))
	if err != nil {
		return nil, fmt.Errorf("failed to create migration source: %w", err)
	}

	var (
		target database.Driver
		name   string
	)
	switch driver {
	case config.DriverPostgres:
		name = "postgres"
		target, err = postgres.WithInstance(db, &postgres.Config{})
	case config.DriverPgx:
		name = "pgx5"
		target, err = pgxmigrate.WithInstance(db, &pgxmigrate.Config{})
	case config.DriverSQLite:
		name = "sqlite"
		target, err = sqlite.WithInstance(db, &sqlite.Config{})
	default:
		return nil, fmt.Errorf("unsupported database driver: %q", driver)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, name, target)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrator: %w", err)
	}

	return m, nil
}

// RunMigrations はすべてのマイグレーションを適用する。
// すでに最新の場合はエラーなしで返る。
func RunMigrations(db *sql.DB, driver config.Driver) error {
	m, err := NewMigrator(db, driver)
	if err != nil {
		return err
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}
