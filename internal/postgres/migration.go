package postgres

import (
	"embed"
	"errors"

	"github.com/golang-migrate/migrate/v4"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	ierr "github.com/tuitionbill/tuitionbill/internal/errors"
)

//go:embed migrations/*.sql
var embeddedMigrations embed.FS

// newMigrator builds a migrator over the embedded sql files. The shared
// *sql.DB must not be closed by the caller through the migrator.
func (db *DB) newMigrator() (*migrate.Migrate, error) {
	source, err := iofs.New(embeddedMigrations, "migrations")
	if err != nil {
		return nil, ierr.WithError(err).
			WithMessage("create migration source").
			Mark(ierr.ErrSystem)
	}

	driver, err := migratepg.WithInstance(db.DB.DB, &migratepg.Config{})
	if err != nil {
		return nil, ierr.WithError(err).
			WithMessage("create migration driver").
			Mark(ierr.ErrDatabase)
	}

	m, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return nil, ierr.WithError(err).
			WithMessage("create migrator").
			Mark(ierr.ErrDatabase)
	}
	return m, nil
}

// MigrateUp applies all pending migrations
func (db *DB) MigrateUp() error {
	m, err := db.newMigrator()
	if err != nil {
		return err
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return ierr.WithError(err).
			WithMessage("apply migrations").
			Mark(ierr.ErrDatabase)
	}

	version, dirty, _ := m.Version()
	db.logger.Infow("database migrations applied", "version", version, "dirty", dirty)
	return nil
}

// MigrateDown rolls back the given number of migrations
func (db *DB) MigrateDown(steps int) error {
	m, err := db.newMigrator()
	if err != nil {
		return err
	}

	if err := m.Steps(-steps); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return ierr.WithError(err).
			WithMessagef("roll back %d migrations", steps).
			Mark(ierr.ErrDatabase)
	}
	return nil
}

// MigrationVersion reports the applied schema version. A database without
// any migration reports version 0.
func (db *DB) MigrationVersion() (uint, bool, error) {
	m, err := db.newMigrator()
	if err != nil {
		return 0, false, err
	}

	version, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, ierr.WithError(err).
			WithMessage("read migration version").
			Mark(ierr.ErrDatabase)
	}
	return version, dirty, nil
}
