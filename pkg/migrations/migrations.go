package migrations

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"sync"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"

	defaultMigrationsTable = "schema_migrations"
)

type migrator interface {
	Up() error
	Version() (version uint, dirty bool, err error)
	Close() (sourceErr error, databaseErr error)
}

var driverFactory = func(db *sql.DB, cfg Config) (database.Driver, error) {
	if cfg.Driver == DriverSQLite {
		return sqlite3.WithInstance(db, &sqlite3.Config{MigrationsTable: cfg.MigrationsTable})
	}
	return postgres.WithInstance(db, &postgres.Config{MigrationsTable: cfg.MigrationsTable})
}

var migratorFactory = func(sourceURL, databaseName string, driver database.Driver) (migrator, error) {
	return migrate.NewWithDatabaseInstance(sourceURL, databaseName, driver)
}

type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

// Config selects the SQL dialect and where its migrations live. Each driver
// keeps its own directory since the DDL differs (migrations/postgres,
// migrations/sqlite by default).
type Config struct {
	Driver          string
	Dir             string
	MigrationsTable string
	Logger          Logger
}

// Status is the schema version recorded in the migrations table.
type Status struct {
	Version uint
	Dirty   bool
	// Applied is false on a database no migration has touched yet.
	Applied bool
}

func (cfg *Config) normalize() (databaseName string, err error) {
	cfg.Driver = strings.ToLower(strings.TrimSpace(cfg.Driver))
	switch cfg.Driver {
	case "", DriverPostgres:
		cfg.Driver, databaseName = DriverPostgres, "postgres"
	case DriverSQLite:
		databaseName = "sqlite3"
	default:
		return "", fmt.Errorf("migrations: unsupported driver %q", cfg.Driver)
	}

	if strings.TrimSpace(cfg.Dir) == "" {
		cfg.Dir = filepath.Join("migrations", cfg.Driver)
	}
	if strings.TrimSpace(cfg.MigrationsTable) == "" {
		cfg.MigrationsTable = defaultMigrationsTable
	}
	if cfg.Logger == nil {
		cfg.Logger = nopLogger{}
	}
	return databaseName, nil
}

// sourceURL turns dir into a file:// URL; golang-migrate wants forward
// slashes and escaped characters even on Windows.
func sourceURL(dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("migrations: resolve dir: %w", err)
	}
	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}).String(), nil
}

type session struct {
	m         migrator
	logger    Logger
	closeOnce sync.Once
}

func open(ctx context.Context, db *sql.DB, cfg *Config) (*session, error) {
	if db == nil {
		return nil, errors.New("migrations: db is nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	dbName, err := cfg.normalize()
	if err != nil {
		return nil, err
	}
	src, err := sourceURL(cfg.Dir)
	if err != nil {
		return nil, err
	}

	driver, err := driverFactory(db, *cfg)
	if err != nil {
		return nil, fmt.Errorf("migrations: %s driver: %w", cfg.Driver, err)
	}
	m, err := migratorFactory(src, dbName, driver)
	if err != nil {
		return nil, fmt.Errorf("migrations: init: %w", err)
	}
	return &session{m: m, logger: cfg.Logger}, nil
}

func (s *session) close() {
	s.closeOnce.Do(func() {
		srcErr, dbErr := s.m.Close()
		if srcErr != nil {
			s.logger.Warn("Migrations source close error", "error", srcErr)
		}
		if dbErr != nil {
			s.logger.Warn("Migrations db close error", "error", dbErr)
		}
	})
}

// run calls fn in the background. golang-migrate takes no context, so a
// cancelled ctx closes the migrator to interrupt it.
func (s *session) run(ctx context.Context, fn func() error) error {
	done := make(chan error, 1)
	go func() { done <- fn() }()

	select {
	case <-ctx.Done():
		s.close()
		return ctx.Err()
	case err := <-done:
		return err
	}
}

// Up applies every pending migration for cfg.Driver. golang-migrate closes db
// when the session ends, so callers must not reuse it.
func Up(ctx context.Context, db *sql.DB, cfg Config) error {
	s, err := open(ctx, db, &cfg)
	if err != nil {
		return err
	}
	defer s.close()

	cfg.Logger.Info("Running SQL migrations", "driver", cfg.Driver, "dir", cfg.Dir, "table", cfg.MigrationsTable)

	err = s.run(ctx, s.m.Up)
	switch {
	case errors.Is(err, migrate.ErrNoChange):
		cfg.Logger.Info("No migrations to apply")
		return nil
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	case err != nil:
		return fmt.Errorf("migrations: up: %w", err)
	}

	cfg.Logger.Info("Migrations applied successfully")
	return nil
}

// CurrentStatus reads the schema version without applying anything. Like Up,
// it closes db.
func CurrentStatus(ctx context.Context, db *sql.DB, cfg Config) (Status, error) {
	s, err := open(ctx, db, &cfg)
	if err != nil {
		return Status{}, err
	}
	defer s.close()

	var status Status
	err = s.run(ctx, func() error {
		version, dirty, err := s.m.Version()
		if errors.Is(err, migrate.ErrNilVersion) {
			return nil
		}
		if err != nil {
			return err
		}
		status = Status{Version: version, Dirty: dirty, Applied: true}
		return nil
	})
	if err != nil {
		return Status{}, fmt.Errorf("migrations: version: %w", err)
	}
	return status, nil
}
