// Package database はデータベース接続とマイグレーション管理を提供する。
package database

import (
	"database/sql"
	"embed"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/postgres/*.sql migrations/sqlite/*.sql
var migrationsFS embed.FS

// NewMigrator はマイグレーション実行用のmigrateインスタンスを生成する。
// ドライバごとに migrations/<driver> 配下のSQLを使用する。
// 返したmigrateをCloseするとdbも閉じられるため、呼び出し元はdbの寿命に合わせて扱うこと。
func NewMigrator(driver string, db *sql.DB) (*migrate.Migrate, error) {
	source, err := iofs.New(migrationsFS, "migrations/"+driver)
	if err != nil {
		return nil, fmt.Errorf("failed to create migration source: %w", err)
	}

	var instance database.Driver
	switch driver {
	case DriverPostgres:
		instance, err = postgres.WithInstance(db, &postgres.Config{})
	case DriverSQLite:
		instance, err = sqlite.WithInstance(db, &sqlite.Config{})
	default:
		return nil, fmt.Errorf("unsupported database driver: %q", driver)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create %s migration driver: %w", driver, err)
	}

	m, err := migrate.NewWithInstance("iofs", source, driver, instance)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrator: %w", err)
	}

	return m, nil
}

// RunMigrations はすべてのマイグレーションを適用する。
// すでに最新の場合はエラーなしで返る。
func RunMigrations(driver string, db *sql.DB) error {
	m, err := NewMigrator(driver, db)
	if err != nil {
		return err
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}
