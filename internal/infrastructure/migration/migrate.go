package migration

import (
	"database/sql"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"go.uber.org/zap"
)

// Status is where the database schema stands against the migration source
type Status struct {
	Version uint     // 0 when nothing is applied
	Dirty   bool     // a migration failed half way; see Force
	Latest  uint     // highest version in the source
	Pending []string // up migrations above Version, oldest first
}

// Current reports whether the schema matches the source exactly. Services
// rely on constraints such as the one-invoice-in-force index, so anything
// else means the schema cannot be trusted.
func (s Status) Current() bool {
	return !s.Dirty && s.Version == s.Latest
}

func statusOf(available []string, version uint, dirty bool) (Status, error) {
	st := Status{Version: version, Dirty: dirty}
	for _, base := range available {
		v, err := versionOf(base)
		if err != nil {
			return Status{}, err
		}
		if uint(v) > st.Latest {
			st.Latest = uint(v)
		}
		if uint(v) > version {
			st.Pending = append(st.Pending, base)
		}
	}
	return st, nil
}

// Migrator applies the freight schema to PostgreSQL with golang-migrate
type Migrator struct {
	migrate   *migrate.Migrate
	available []string
	logger    *zap.Logger
}

// New reads *.sql migrations from source, normally migrations.FS or
// os.DirFS of a checkout. Closing the Migrator closes db.
func New(db *sql.DB, source fs.FS, logger *zap.Logger) (*Migrator, error) {
	if err := Verify(source); err != nil {
		return nil, err
	}
	available, err := ListMigrations(source)
	if err != nil {
		return nil, err
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return nil, fmt.Errorf("postgres migration driver: %w", err)
	}
	src, err := iofs.New(source, ".")
	if err != nil {
		return nil, fmt.Errorf("open migration source: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		return nil, fmt.Errorf("create migrator: %w", err)
	}
	return &Migrator{migrate: m, available: available, logger: logger}, nil
}

// Status reads the applied version from schema_migrations
func (m *Migrator) Status() (Status, error) {
	version, dirty, err := m.migrate.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return Status{}, fmt.Errorf("read schema version: %w", err)
	}
	return statusOf(m.available, version, dirty)
}

// Up applies every pending migration
func (m *Migrator) Up() (Status, error) {
	return m.run("up", m.migrate.Up)
}

// Down rolls every migration back
func (m *Migrator) Down() (Status, error) {
	return m.run("down", m.migrate.Down)
}

// Steps applies n migrations; a negative n rolls back
func (m *Migrator) Steps(n int) (Status, error) {
	return m.run(fmt.Sprintf("step %d", n), func() error { return m.migrate.Steps(n) })
}

// GoTo migrates up or down to version
func (m *Migrator) GoTo(version uint) (Status, error) {
	return m.run(fmt.Sprintf("goto %d", version), func() error { return m.migrate.Migrate(version) })
}

// Force records version as applied without running anything. It is the way
// out of a dirty state once the failed migration was repaired by hand.
func (m *Migrator) Force(version int) (Status, error) {
	m.logger.Warn("forcing schema version", zap.Int("version", version))
	if err := m.migrate.Force(version); err != nil {
		return Status{}, fmt.Errorf("force version %d: %w", version, err)
	}
	return m.Status()
}

// Drop removes every table, freight data included
func (m *Migrator) Drop() error {
	m.logger.Warn("dropping every table in the database")
	if err := m.migrate.Drop(); err != nil {
		return fmt.Errorf("drop schema: %w", err)
	}
	return nil
}

// run executes op and reports the resulting status; ErrNoChange is success
func (m *Migrator) run(op string, fn func() error) (Status, error) {
	before, err := m.Status()
	if err != nil {
		return Status{}, err
	}
	if before.Dirty {
		return before, fmt.Errorf("migration %s: schema is dirty at version %d; repair it and run force", op, before.Version)
	}

	err = fn()
	if errors.Is(err, migrate.ErrNoChange) {
		m.logger.Info("schema unchanged", zap.String("op", op), zap.Uint("version", before.Version))
		return before, nil
	}
	if err != nil {
		return Status{}, fmt.Errorf("migration %s: %w", op, err)
	}

	after, err := m.Status()
	if err != nil {
		return Status{}, err
	}
	m.logger.Info("schema migrated",
		zap.String("op", op),
		zap.Uint("from", before.Version),
		zap.Uint("to", after.Version),
		zap.Int("pending", len(after.Pending)),
	)
	return after, nil
}

// Close releases the source and the database
func (m *Migrator) Close() error {
	sourceErr, dbErr := m.migrate.Close()
	return errors.Join(sourceErr, dbErr)
}
