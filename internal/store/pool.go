package store

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"syscall"

	"github.com/lib/pq"
	"go.uber.org/zap"

	// Registers the "sqlite" driver (pure Go).
	_ "modernc.org/sqlite"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Options describes how to reach the database.
type Options struct {
	Driver  string // sqlite|postgres
	DSN     string // file path for sqlite, connection string for postgres
	MinIdle int
	MaxOpen int
}

type dialect struct {
	numbered   bool   // $1, $2 placeholders
	nullSafeEq string // NULL-aware equality operator
}

var dialects = map[string]dialect{
	DriverSQLite:   {numbered: false, nullSafeEq: "IS"},
	DriverPostgres: {numbered: true, nullSafeEq: "IS NOT DISTINCT FROM"},
}

// rebind rewrites ? placeholders for dialects that number them.
func (d dialect) rebind(q string) string {
	if !d.numbered {
		return q
	}
	var b strings.Builder
	b.Grow(len(q) + 8)
	n := 0
	for _, r := range q {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Pool owns the *sql.DB and replaces it when a connection-level failure is seen.
type Pool struct {
	opts    Options
	dialect dialect
	log     *zap.Logger

	mu sync.RWMutex
	db *sql.DB
}

// OpenPool opens the database and verifies connectivity.
func OpenPool(ctx context.Context, opts Options, log *zap.Logger) (*Pool, error) {
	d, ok := dialects[opts.Driver]
	if !ok {
		return nil, fmt.Errorf("unsupported driver %q", opts.Driver)
	}
	if log == nil {
		log = zap.NewNop()
	}
	p := &Pool{opts: opts, dialect: d, log: log}
	db, err := p.open(ctx)
	if err != nil {
		return nil, err
	}
	p.db = db
	return p, nil
}

func (p *Pool) open(ctx context.Context) (*sql.DB, error) {
	if p.opts.Driver == DriverSQLite && p.opts.DSN != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(p.opts.DSN), 0o755); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open(p.opts.Driver, p.opts.DSN)
	if err != nil {
		return nil, err
	}

	switch p.opts.Driver {
	case DriverSQLite:
		// Reasonable pooling for SQLite; it's a single-writer engine.
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		db.SetConnMaxLifetime(0)
		if err := applyPragmas(ctx, db); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragmas: %w", err)
		}
	default:
		if p.opts.MaxOpen > 0 {
			db.SetMaxOpenConns(p.opts.MaxOpen)
		}
		if p.opts.MinIdle > 0 {
			db.SetMaxIdleConns(p.opts.MinIdle)
		}
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// applyPragmas configures the SQLite connection for durability and concurrency.
func applyPragmas(ctx context.Context, db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA foreign_keys=ON;",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

func (p *Pool) current() *sql.DB {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.db
}

// reset discards bad and installs a fresh pool, unless another caller already did.
func (p *Pool) reset(ctx context.Context, bad *sql.DB) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.db != bad {
		return nil
	}
	_ = bad.Close()
	db, err := p.open(ctx)
	if err != nil {
		return fmt.Errorf("reopen pool: %w", err)
	}
	p.db = db
	return nil
}

// Close releases the underlying database resources.
func (p *Pool) Close() error {
	return p.current().Close()
}

// do runs fn against the current pool. On a connection-level failure the pool
// is recreated and fn is retried exactly once.
func (p *Pool) do(ctx context.Context, op string, fn func(db *sql.DB) error) error {
	db := p.current()
	err := fn(db)
	if !isConnError(err) {
		return err
	}
	p.log.Warn("db connection error, resetting pool", zap.String("op", op), zap.Error(err))
	if rerr := p.reset(ctx, db); rerr != nil {
		return fmt.Errorf("%s: %w (reset failed: %v)", op, err, rerr)
	}
	if err := fn(p.current()); err != nil {
		return fmt.Errorf("%s after pool reset: %w", op, err)
	}
	return nil
}

// tx runs fn in a transaction, with the same reset-and-retry-once policy as do.
func (p *Pool) tx(ctx context.Context, op string, fn func(tx *sql.Tx) error) error {
	return p.do(ctx, op, func(db *sql.DB) error {
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		if err := fn(tx); err != nil {
			_ = tx.Rollback()
			return err
		}
		return tx.Commit()
	})
}

// isConnError reports whether err means the connection (not the statement) failed.
func isConnError(err error) bool {
	if err == nil {
		return false
	}
	switch {
	case errors.Is(err, driver.ErrBadConn),
		errors.Is(err, sql.ErrConnDone),
		errors.Is(err, io.EOF),
		errors.Is(err, io.ErrUnexpectedEOF),
		errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, syscall.ECONNREFUSED),
		errors.Is(err, syscall.EPIPE):
		return true
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		// Class 08: connection exception; 57P01: admin_shutdown.
		return pqErr.Code.Class() == "08" || pqErr.Code == "57P01"
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return strings.Contains(err.Error(), "sql: database is closed")
}
