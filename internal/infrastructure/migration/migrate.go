// Package migration wraps golang-migrate for the billing schema. The
// migrate CLI drives it; the server itself never migrates on boot.
package migration

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"go.uber.org/zap"
)

// Migrator applies the billing schema's SQL migrations.
type Migrator struct {
	m   *migrate.Migrate
	log *zap.Logger
}

// New builds a Migrator over an open postgres connection and a directory of
// versioned .up.sql/.down.sql pairs.
func New(db *sql.DB, migrationsPath string, log *zap.Logger) (*Migrator, error) {
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return nil, fmt.Errorf("postgres migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance("file://"+migrationsPath, "postgres", driver)
	if err != nil {
		return nil, fmt.Errorf("migrate instance: %w", err)
	}

	return &Migrator{m: m, log: log}, nil
}

// Up applies every pending migration.
func (mg *Migrator) Up() error {
	mg.log.Info("applying pending migrations")
	return mg.finish(mg.m.Up(), "schema is already current")
}

// Down rolls the whole schema back. Destructive; the CLI requires an
// explicit command for it.
func (mg *Migrator) Down() error {
	mg.log.Info("rolling back all migrations")
	return mg.finish(mg.m.Down(), "nothing to roll back")
}

// Steps applies n migrations forward, or backward when n is negative.
func (mg *Migrator) Steps(n int) error {
	mg.log.Info("stepping migrations", zap.Int("steps", n))
	return mg.finish(mg.m.Steps(n), "no steps to apply")
}

// GoTo migrates to an exact schema version in either direction.
func (mg *Migrator) GoTo(version uint) error {
	mg.log.Info("migrating to version", zap.Uint("target", version))
	return mg.finish(mg.m.Migrate(version), "already at target version")
}

// finish folds ErrNoChange into success and logs where the schema landed.
func (mg *Migrator) finish(err error, noChangeMsg string) error {
	if errors.Is(err, migrate.ErrNoChange) {
		mg.log.Info(noChangeMsg)
		return nil
	}
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	version, dirty, verr := mg.m.Version()
	if verr != nil && !errors.Is(verr, migrate.ErrNilVersion) {
		return fmt.Errorf("read schema version: %w", verr)
	}
	mg.log.Info("migration complete",
		zap.Uint("version", version),
		zap.Bool("dirty", dirty),
	)
	return nil
}

// Version reports the current schema version. A pristine database reports
// version 0, not an error.
func (mg *Migrator) Version() (uint, bool, error) {
	version, dirty, err := mg.m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("read schema version: %w", err)
	}
	return version, dirty, nil
}

// Force stamps the schema version without running SQL. Only for recovering
// a dirty state after a failed migration.
func (mg *Migrator) Force(version int) error {
	mg.log.Warn("forcing schema version", zap.Int("version", version))
	if err := mg.m.Force(version); err != nil {
		return fmt.Errorf("force version %d: %w", version, err)
	}
	return nil
}

// Drop deletes everything in the database, ledger data included.
func (mg *Migrator) Drop() error {
	mg.log.Warn("dropping database, all ledger data will be lost")
	if err := mg.m.Drop(); err != nil {
		return fmt.Errorf("drop database: %w", err)
	}
	mg.log.Info("database dropped")
	return nil
}

// Close releases the migration source and database handles.
func (mg *Migrator) Close() error {
	srcErr, dbErr := mg.m.Close()
	if srcErr != nil {
		return fmt.Errorf("close migration source: %w", srcErr)
	}
	if dbErr != nil {
		return fmt.Errorf("close migration database: %w", dbErr)
	}
	return nil
}
