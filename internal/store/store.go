package store

import (
	"context"
	"database/sql"
	"embed"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	migratepgx "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	_ "modernc.org/sqlite"

	"github.com/tdaniel1925/spencer-mcgaw-os-sub006/internal/logging"
)

// Supported database drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "pgx"
)

// ErrNotFound is returned when a row does not exist.
var ErrNotFound = errors.New("not found")

//go:embed migrations
var migrationsFS embed.FS

var log = logging.For("store")

func init() {
	sqlx.BindDriver(DriverSQLite, sqlx.QUESTION)
}

// Options selects the driver and data source.
type Options struct {
	Driver string
	DSN    string
}

// Store provides access to the task pool database.
type Store struct {
	db     *sqlx.DB
	driver string
}

// Open migrates the database to the latest schema and returns a store.
func Open(ctx context.Context, opts Options) (*Store, error) {
	driver := opts.Driver
	if driver == "" {
		driver = DriverSQLite
	}
	if driver != DriverSQLite && driver != DriverPostgres {
		return nil, errors.Errorf("unsupported driver %q", driver)
	}
	if opts.DSN == "" {
		return nil, errors.New("empty dsn")
	}
	dsn := dataSource(driver, opts.DSN)

	if err := Migrate(ctx, driver, dsn); err != nil {
		return nil, errors.Wrap(err, "migrate")
	}

	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, errors.Wrap(err, "open database")
	}
	if driver == DriverSQLite {
		// One connection serialises writers; busy_timeout covers other processes.
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "ping database")
	}

	log.WithField("driver", driver).Debug("store opened")
	return &Store{db: db, driver: driver}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Driver returns the driver name the store was opened with.
func (s *Store) Driver() string {
	return s.driver
}

// Migrate applies all pending up migrations for the driver.
// It uses its own connection because closing the migrator closes the handle.
func Migrate(ctx context.Context, driver, dsn string) error {
	src, err := iofs.New(migrationsFS, "migrations/"+dialectDir(driver))
	if err != nil {
		return errors.Wrap(err, "load migrations")
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return errors.Wrap(err, "open migration connection")
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return errors.Wrap(err, "ping migration connection")
	}

	var target database.Driver
	switch driver {
	case DriverSQLite:
		target, err = migratesqlite.WithInstance(db, &migratesqlite.Config{})
	case DriverPostgres:
		target, err = migratepgx.WithInstance(db, &migratepgx.Config{})
	default:
		err = errors.Errorf("unsupported driver %q", driver)
	}
	if err != nil {
		db.Close()
		return errors.Wrap(err, "migration driver")
	}

	m, err := migrate.NewWithInstance("iofs", src, driver, target)
	if err != nil {
		db.Close()
		return errors.Wrap(err, "create migrator")
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return errors.Wrap(err, "apply migrations")
	}
	return nil
}

func dialectDir(driver string) string {
	if driver == DriverPostgres {
		return "postgres"
	}
	return "sqlite"
}

// dataSource adds the SQLite pragmas the store relies on to a plain file path.
func dataSource(driver, dsn string) string {
	if driver != DriverSQLite || strings.Contains(dsn, "_pragma=") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"
}

// Tx is a unit of work. All reads and writes made through a Tx share one transaction.
type Tx struct {
	tx *sqlx.Tx
}

// InTx runs fn inside a transaction, committing when fn returns nil.
// Transactions that fail with SQLITE_BUSY are retried from the start.
func (s *Store) InTx(ctx context.Context, fn func(tx *Tx) error) error {
	return retryOnBusy(ctx, func() error {
		tx, err := s.db.BeginTxx(ctx, nil)
		if err != nil {
			return errors.Wrap(err, "begin tx")
		}
		defer func() { _ = tx.Rollback() }()

		if err := fn(&Tx{tx: tx}); err != nil {
			return err
		}
		return errors.Wrap(tx.Commit(), "commit tx")
	})
}

const (
	busyAttempts  = 5
	busyBaseDelay = 20 * time.Millisecond
)

func retryOnBusy(ctx context.Context, fn func() error) error {
	var err error
	delay := busyBaseDelay
	for attempt := 0; attempt < busyAttempts; attempt++ {
		err = fn()
		if err == nil || !isBusy(err) {
			return err
		}
		log.WithField("attempt", attempt+1).Debug("database busy, retrying")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
	return err
}

func isBusy(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

// newID returns a time-ordered identifier.
func newID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// NewID exposes the identifier generator for callers that need an id before insert.
func NewID() string {
	return newID()
}

// Now returns the current time in the precision the store persists.
func Now() time.Time {
	return Normalize(time.Now())
}

// Normalize converts t to UTC with microsecond precision.
func Normalize(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}

func get(ctx context.Context, q sqlx.ExtContext, dest any, query string, args ...any) error {
	err := sqlx.GetContext(ctx, q, dest, q.Rebind(query), args...)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func selectRows(ctx context.Context, q sqlx.ExtContext, dest any, query string, args ...any) error {
	return sqlx.SelectContext(ctx, q, dest, q.Rebind(query), args...)
}

func exec(ctx context.Context, q sqlx.ExtContext, query string, args ...any) (int64, error) {
	res, err := q.ExecContext(ctx, q.Rebind(query), args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func namedExec(ctx context.Context, q sqlx.ExtContext, query string, arg any) error {
	_, err := sqlx.NamedExecContext(ctx, q, query, arg)
	return err
}
