package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// Store persists staff accounts and visitor records. It is the only shared
// mutable resource in the service; every method is a single statement.
type Store struct {
	db      *sqlx.DB
	dialect dialect
}

// Open connects to the configured database and creates the schema if absent.
// For the sqlite driver dsn is a data directory; pass empty string for an
// in-memory database.
func Open(driver, dsn string) (*Store, error) {
	d, err := dialectFor(driver)
	if err != nil {
		return nil, err
	}
	if d.driverName == sqliteDialect.driverName {
		return NewSQLite(dsn)
	}

	if d.driverName == mysqlDialect.driverName {
		if dsn, err = normalizeMySQLDSN(dsn); err != nil {
			return nil, err
		}
	}

	db, err := sqlx.Connect(d.driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", driver, err)
	}

	s := newStore(db, d)
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate %s database: %w", driver, err)
	}
	return s, nil
}

// NewSQLite creates a SQLite-backed store under dataDir. Pass empty string
// for in-memory.
func NewSQLite(dataDir string) (*Store, error) {
	var dsn string
	if dataDir == "" {
		dsn = ":memory:?_journal_mode=WAL"
	} else {
		if err := os.MkdirAll(dataDir, 0755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
		dsn = filepath.Join(dataDir, "frontdesk.db") + "?_journal_mode=WAL&_busy_timeout=5000"
	}

	db, err := sqlx.Connect(sqliteDialect.driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite doesn't support concurrent writes

	s := newStore(db, sqliteDialect)
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate sqlite database: %w", err)
	}
	return s, nil
}

func newStore(db *sqlx.DB, d dialect) *Store {
	return &Store{db: db, dialect: d}
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks that the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Driver returns the database/sql driver name the store is connected with.
func (s *Store) Driver() string {
	return s.dialect.driverName
}

func (s *Store) migrate() error {
	for _, m := range s.dialect.schema {
		if _, err := s.db.Exec(m); err != nil {
			// MySQL reports an already existing index as a duplicate key name.
			if strings.Contains(strings.ToLower(err.Error()), "duplicate key name") {
				continue
			}
			return fmt.Errorf("migration failed: %w\nSQL: %s", err, m)
		}
	}
	return nil
}

// insert runs a named INSERT and returns the new row id, using RETURNING on
// drivers that do not support LastInsertId.
func (s *Store) insert(ctx context.Context, q string, arg interface{}) (int64, error) {
	if !s.dialect.returning {
		result, err := s.db.NamedExecContext(ctx, q, arg)
		if err != nil {
			return 0, err
		}
		return result.LastInsertId()
	}

	query, args, err := sqlx.Named(q+" RETURNING id", arg)
	if err != nil {
		return 0, err
	}
	var id int64
	if err := s.db.QueryRowxContext(ctx, s.db.Rebind(query), args...).Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}
