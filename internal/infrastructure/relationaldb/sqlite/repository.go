// Package sqlite provides a SQLite implementation of ports.GraphStore.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/ersonp/kin-core/internal/domain/entities"
	"github.com/ersonp/kin-core/internal/domain/ports"
	"github.com/ersonp/kin-core/internal/infrastructure/config"
)

const (
	// DefaultTxTimeout bounds a transaction when the caller set no deadline.
	DefaultTxTimeout = 5 * time.Second

	defaultBusyTimeout = 5 * time.Second
	memoryPath         = ":memory:"
)

// timeNow returns the current time (can be mocked in tests).
var timeNow = time.Now

// Repository implements ports.GraphStore using SQLite.
type Repository struct {
	db        *sql.DB
	path      string
	txTimeout time.Duration
}

// Option configures a Repository.
type Option func(*Repository)

// WithTxTimeout sets the timeout applied to transactions without a deadline.
func WithTxTimeout(d time.Duration) Option {
	return func(r *Repository) {
		if d > 0 {
			r.txTimeout = d
		}
	}
}

// NewRepository creates a new SQLite repository.
func NewRepository(cfg config.SQLiteConfig, opts ...Option) (*Repository, error) {
	if cfg.Path == "" {
		return nil, errors.New("sqlite path is required")
	}

	db, err := sql.Open("sqlite", dsn(cfg))
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database: %w", err)
	}

	// Every connection to :memory: is a separate database.
	if cfg.Path == memoryPath {
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connecting to sqlite database: %w", err)
	}

	r := &Repository{
		db:        db,
		path:      cfg.Path,
		txTimeout: DefaultTxTimeout,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// dsn builds the connection string. Pragmas are passed per connection so that
// every pooled connection gets them. Transactions begin IMMEDIATE so that
// concurrent writers queue on busy_timeout instead of failing on upgrade.
func dsn(cfg config.SQLiteConfig) string {
	busy := cfg.BusyTimeout
	if busy <= 0 {
		busy = defaultBusyTimeout
	}

	q := url.Values{}
	q.Set("_txlock", "immediate")
	q.Set("_time_format", "sqlite")
	q.Add("_pragma", "foreign_keys(1)")
	q.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", busy.Milliseconds()))
	if cfg.Path != memoryPath {
		// WAL mode for better concurrent read/write performance
		q.Add("_pragma", "journal_mode(WAL)")
	}
	return cfg.Path + "?" + q.Encode()
}

// Close closes the database connection.
func (r *Repository) Close() error {
	return r.db.Close()
}

// Path returns the database file path.
func (r *Repository) Path() string {
	return r.path
}

// EnsureSchema creates the database schema if it doesn't exist.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	schema := `
	-- Persons (nodes). Shortcut fields mirror spouse and parent edges.
	CREATE TABLE IF NOT EXISTS persons (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		gender TEXT NOT NULL DEFAULT 'UNSPECIFIED',
		spouse_id TEXT REFERENCES persons(id),
		father_id TEXT REFERENCES persons(id),
		mother_id TEXT REFERENCES persons(id),
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_persons_name ON persons(name);
	CREATE INDEX IF NOT EXISTS idx_persons_spouse ON persons(spouse_id);
	CREATE INDEX IF NOT EXISTS idx_persons_father ON persons(father_id);
	CREATE INDEX IF NOT EXISTS idx_persons_mother ON persons(mother_id);

	-- Relationships (directed, typed edges between persons)
	CREATE TABLE IF NOT EXISTS relationships (
		id TEXT PRIMARY KEY,
		from_id TEXT NOT NULL REFERENCES persons(id),
		to_id TEXT NOT NULL REFERENCES persons(id),
		type TEXT NOT NULL,
		type_key TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		strength REAL NOT NULL DEFAULT 0,
		since TIMESTAMP,
		notes TEXT NOT NULL DEFAULT '',
		reciprocal_suppressed INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMP NOT NULL
	);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_relationships_triple ON relationships(from_id, to_id, type_key);
	CREATE INDEX IF NOT EXISTS idx_relationships_to ON relationships(to_id);

	-- Audit log (tracks all mutations)
	CREATE TABLE IF NOT EXISTS audit_log (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		action TEXT NOT NULL,
		subject_id TEXT,
		details TEXT,
		created_at TIMESTAMP NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_audit_log_subject ON audit_log(subject_id);
	CREATE INDEX IF NOT EXISTS idx_audit_log_action ON audit_log(action);
	`

	_, err := r.db.ExecContext(ctx, schema)
	if err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	return nil
}

// RunInTx runs fn inside a single SQLite transaction. The transaction is
// rolled back if fn fails or ctx ends before commit.
func (r *Repository) RunInTx(ctx context.Context, fn func(stores ports.Stores) error) (err error) {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("transaction aborted: %w", err)
	}

	if _, hasDeadline := ctx.Deadline(); !hasDeadline && r.txTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.txTimeout)
		defer cancel()
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("transaction aborted: %w", ctxErr)
		}
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(newStores(tx)); err != nil {
		return err
	}

	if err = ctx.Err(); err != nil {
		return fmt.Errorf("transaction aborted: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

func newStores(tx *sql.Tx) ports.Stores {
	return ports.Stores{
		Persons:       &personStore{tx: tx},
		Relationships: &relationshipStore{tx: tx},
		Audit:         &auditLog{tx: tx},
	}
}

// isConstraintViolation reports whether err is a UNIQUE or PRIMARY KEY violation.
func isConstraintViolation(err error) bool {
	var sqliteErr *sqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	switch sqliteErr.Code() {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return true
	default:
		return false
	}
}

// nullableID maps the empty id to NULL.
func nullableID(id string) sql.NullString {
	return sql.NullString{String: id, Valid: id != ""}
}

// mapConflict converts uniqueness violations into entities.ErrConflict.
func mapConflict(err error, what string) error {
	if isConstraintViolation(err) {
		return fmt.Errorf("%s: %w", what, entities.ErrConflict)
	}
	return fmt.Errorf("inserting %s: %w", what, err)
}
