// Package db opens SQLite databases for the SQL table backend.
package db

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/openmined/aclstore/internal/fsutil"
)

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

// Pragma is a per-connection SQLite setting, as in PRAGMA name=value.
type Pragma struct {
	Name  string
	Value string
}

func (p Pragma) String() string {
	return fmt.Sprintf("PRAGMA %s=%s;", p.Name, p.Value)
}

// DefaultPragmas tune SQLite for short write transactions from a few writers.
var DefaultPragmas = []Pragma{
	{"journal_mode", "WAL"},
	{"busy_timeout", "5000"},
	{"synchronous", "NORMAL"},
	{"cache_size", "-8000"},
}

// config holds internal configuration for DB creation
type config struct {
	path            string
	pragmas         []Pragma
	maxOpenConns    int
	maxIdleConns    int
	connMaxLifetime time.Duration
}

// SqliteOption defines a function that configures the DB
type SqliteOption func(*config)

// WithPath sets the path for the SQLite database.
// Use MemoryPath for an in-memory database.
func WithPath(path string) SqliteOption {
	return func(c *config) {
		c.path = path
	}
}

// WithPragmas replaces DefaultPragmas.
func WithPragmas(pragmas ...Pragma) SqliteOption {
	return func(c *config) {
		c.pragmas = pragmas
	}
}

// WithMaxOpenConns caps the pool. In-memory databases are pinned to one
// connection regardless.
func WithMaxOpenConns(n int) SqliteOption {
	return func(c *config) {
		c.maxOpenConns = n
	}
}

func WithMaxIdleConns(n int) SqliteOption {
	return func(c *config) {
		c.maxIdleConns = n
	}
}

func WithConnMaxLifetime(d time.Duration) SqliteOption {
	return func(c *config) {
		c.connMaxLifetime = d
	}
}

// NewSqliteDB connects to the database described by opts. Pragmas travel in the
// DSN, so every pooled connection gets them, and are then executed once to
// surface invalid ones at open time.
func NewSqliteDB(opts ...SqliteOption) (*sqlx.DB, error) {
	cfg := &config{
		path:         MemoryPath,
		pragmas:      DefaultPragmas,
		maxIdleConns: 2,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	if cfg.path == MemoryPath {
		// every connection to :memory: is a separate database
		cfg.maxOpenConns = 1
		cfg.connMaxLifetime = 0
	} else if err := fsutil.EnsureParent(cfg.path); err != nil {
		return nil, fmt.Errorf("ensure parent directory: %w", err)
	}

	slog.Info("db", "driver", driverID, "path", cfg.path)
	db, err := sqlx.Connect(driverName, buildDSN(cfg.path, cfg.pragmas))
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	if cfg.maxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.maxOpenConns)
	}
	if cfg.maxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.maxIdleConns)
	}
	if cfg.connMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.connMaxLifetime)
	}

	for _, p := range cfg.pragmas {
		if _, err := db.Exec(p.String()); err != nil {
			db.Close()
			return nil, fmt.Errorf("set %s: %w", p.Name, err)
		}
	}

	return db, nil
}

// Driver names the SQLite driver compiled into the binary.
func Driver() string {
	return driverID
}
