// Package store is the single-writer SQLite persistence contract shared by
// every other component: it owns the only *sql.DB handle, serialises
// writes, and runs the idempotent schema bootstrap before anything else is
// served.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"
)

// Store wraps the single SQLite connection used by the whole process. Only
// this package may open connections to the database file; every other
// component goes through the repository methods defined alongside it.
type Store struct {
	db *sqlx.DB
	mu sync.RWMutex // read tx take RLock, write tx take Lock
}

// Mode selects whether a transaction is a reader or the single writer.
type Mode int

const (
	Read Mode = iota
	Write
)

// Open opens or creates the database at path, runs the schema bootstrap and
// FTS repair path, and returns a ready Store. This must complete before the
// process starts serving HTTP requests.
func Open(path string) (*Store, error) {
	dsn := fmt.Sprintf("%s?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(ON)&_pragma=busy_timeout(5000)", path)
	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// A single physical connection turns the driver's own pool into the
	// serialisation point: every statement, read or write, runs on that one
	// connection in turn, so two writers are never presented to the engine
	// at once even under a coding mistake elsewhere.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &Store{db: db}
	if err := s.bootstrapSchema(context.Background()); err != nil {
		return nil, fmt.Errorf("bootstrap schema: %w", err)
	}
	if err := s.repairFTS(context.Background()); err != nil {
		return nil, fmt.Errorf("repair fts index: %w", err)
	}

	log.Info().Str("path", path).Msg("storage engine ready")
	return s, nil
}

// Close releases the underlying connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Health pings the database and reports round-trip latency.
func (s *Store) Health(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	if err := s.db.PingContext(ctx); err != nil {
		return 0, err
	}
	return time.Since(start), nil
}

// Tx runs fn inside a transaction of the given mode. Write transactions
// hold the store's write lock for their entire duration so that, combined
// with the single-connection pool, the capacity check and the booking
// upsert the Booking Service performs always observe a consistent snapshot.
func (s *Store) Tx(ctx context.Context, mode Mode, fn func(tx *sqlx.Tx) error) error {
	if mode == Write {
		s.mu.Lock()
		defer s.mu.Unlock()
	} else {
		s.mu.RLock()
		defer s.mu.RUnlock()
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			log.Error().Err(rbErr).Msg("rollback failed after tx error")
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// DB exposes the underlying *sqlx.DB for read-only ad hoc queries that do
// not need the write-lock contract.
func (s *Store) DB() *sqlx.DB { return s.db }

// isNoRows reports whether err is sql.ErrNoRows.
func isNoRows(err error) bool { return err == sql.ErrNoRows }
