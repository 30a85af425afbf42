package database

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"gorm.io/gorm"
)

// Config contains database connection options.
type Config struct {
	Driver   string
	Path     string // SQLite database path when Driver == sqlite
	DSN      string // Optional DSN override
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	Options  map[string]string

	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
}

// Database owns the pooled connection handle. The pool is opened lazily on
// first use and can be drained with Close; the next use re-opens it from the
// same static configuration.
type Database struct {
	cfg Config

	mu sync.Mutex
	db *gorm.DB
}

// New prepares a Database without opening any connections yet.
func New(cfg Config) *Database {
	return &Database{cfg: cfg}
}

// NewFromHandle wraps an already-open gorm handle. Intended for tests that
// supply an in-memory database.
func NewFromHandle(db *gorm.DB) *Database {
	return &Database{db: db}
}

// Handle returns the shared gorm handle, opening the pool on first use.
func (d *Database) Handle() (*gorm.DB, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.db != nil {
		return d.db, nil
	}

	db, err := open(d.cfg)
	if err != nil {
		return nil, err
	}

	if err := tunePool(db, d.cfg); err != nil {
		return nil, err
	}

	d.db = db
	return d.db, nil
}

// Close drains and discards the pool. Subsequent use re-creates it.
func (d *Database) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.db == nil {
		return nil
	}

	sqlDB, err := d.db.DB()
	d.db = nil
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// WithConn pins a single connection for the duration of fn so dependent
// statements observe each other. No transaction is opened.
func (d *Database) WithConn(ctx context.Context, fn func(conn *gorm.DB) error) error {
	handle, err := d.Handle()
	if err != nil {
		return err
	}
	return handle.WithContext(ctx).Connection(fn)
}

// WithTransaction runs fn inside a transaction. When scope is non-nil the
// caller already holds one and it is reused; nested calls therefore never
// open a second transaction. Otherwise a transaction is begun, committed on
// normal return, and rolled back when fn returns an error.
func (d *Database) WithTransaction(ctx context.Context, scope *gorm.DB, fn func(tx *gorm.DB) error) error {
	if scope != nil {
		return fn(scope)
	}

	handle, err := d.Handle()
	if err != nil {
		return err
	}
	return handle.WithContext(ctx).Transaction(fn)
}

// Exec runs fn in the supplied scope (or a pool-fresh one) and translates any
// failure through the ordered matcher list. Raw driver errors never escape:
// unmatched failures come back as the generic storage error.
func (d *Database) Exec(ctx context.Context, scope *gorm.DB, matchers []ErrorMatcher, fn func(db *gorm.DB) error) error {
	run := scope
	if run == nil {
		handle, err := d.Handle()
		if err != nil {
			return err
		}
		run = handle.WithContext(ctx)
	}

	return Translate(fn(run), matchers)
}

func open(cfg Config) (*gorm.DB, error) {
	driver := strings.ToLower(cfg.Driver)
	if driver == "" {
		driver = "sqlite"
	}

	switch driver {
	case "sqlite":
		return openSQLite(cfg)
	case "postgres":
		return openPostgres(cfg)
	case "mysql":
		return openMySQL(cfg)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

func tunePool(db *gorm.DB, cfg Config) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}

	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	return nil
}
