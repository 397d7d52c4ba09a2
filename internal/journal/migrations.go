package journal

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed files/*.sql
var migrationFiles embed.FS

// openSource opens the embedded migrations. Tests replace it to track closes.
var openSource = func() (source.Driver, error) {
	return iofs.New(migrationFiles, "files")
}

// migrateUp brings the schema to the latest version.
func migrateUp(db *sql.DB) error {
	m, src, err := newMigrate(db)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}
	// m is not closed: that would close db, which the caller owns.
	defer src.Close()

	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			return nil
		}
		return fmt.Errorf("migration failed: %w", err)
	}
	return nil
}

// SchemaStatus returns the schema version of db and whether it matches the
// newest embedded migration.
func SchemaStatus(db *sql.DB) (version uint, current bool, err error) {
	m, src, err := newMigrate(db)
	if err != nil {
		return 0, false, fmt.Errorf("failed to create migrate instance: %w", err)
	}
	defer src.Close()

	version, dirty, err := m.Version()
	if err != nil {
		if errors.Is(err, migrate.ErrNilVersion) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("failed to get journal version: %w", err)
	}
	if dirty {
		return version, false, fmt.Errorf("journal is in dirty state at version %d (migration failed previously)", version)
	}

	latest, err := latestVersion(src)
	if err != nil {
		return version, false, fmt.Errorf("failed to determine latest version: %w", err)
	}
	return version, version == latest, nil
}

func newMigrate(db *sql.DB) (*migrate.Migrate, source.Driver, error) {
	src, err := openSource()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create source driver: %w", err)
	}

	driver, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		src.Close()
		return nil, nil, fmt.Errorf("failed to create database driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "sqlite3", driver)
	if err != nil {
		src.Close()
		return nil, nil, fmt.Errorf("failed to create migrate instance: %w", err)
	}
	return m, src, nil
}

func latestVersion(src source.Driver) (uint, error) {
	v, err := src.First()
	if err != nil {
		return 0, err
	}
	for {
		next, err := src.Next(v)
		if err != nil {
			break
		}
		v = next
	}
	return v, nil
}
