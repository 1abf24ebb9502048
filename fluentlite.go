// Package fluentlite is a fluent query builder and thin ORM convenience
// layer over an embedded SQLite database.
//
// It lets a host application open a database file, define table schemas
// from tagged Go structs, and build SELECT/INSERT/UPDATE/DELETE statements
// through a chained method interface instead of hand-written SQL strings,
// while still allowing raw SQL with parameter binding. The engine itself is
// reached through its native C API via the mattn/go-sqlite3 driver.
package fluentlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fluentlite/fluentlite/internal/log"
	"github.com/mattn/go-sqlite3"
	"github.com/orsinium-labs/enum"
)

// ErrNotFound is returned by First when no row matches the query.
var ErrNotFound = errors.New("record not found")

// Options represents the tunables applied when opening a database. The zero
// value is completed by Open with the defaults below.
type Options struct {
	// ForeignKeys enables foreign key enforcement. Defaults to true.
	ForeignKeys *bool
	// BusyTimeout is how long a statement waits on a locked database.
	// Defaults to 5 seconds.
	BusyTimeout time.Duration
	// JournalMode is the SQLite journal mode. Defaults to WAL.
	JournalMode string
	// Synchronous is the SQLite synchronous level. Defaults to NORMAL.
	Synchronous string
	// CacheSize is the page cache size in pages. Defaults to 10000.
	CacheSize int
	// ReadOnly opens the database in query-only mode.
	ReadOnly bool
	// LogWriter receives structured JSON logs for slow queries and
	// guard-rail warnings. Leave unset to disable logging.
	LogWriter io.Writer
	// SlowQueryThreshold is the duration above which a statement is logged
	// as slow. Zero disables slow-query logging.
	SlowQueryThreshold time.Duration
}

// Option mutates the Options used by Open.
type Option func(*Options)

// WithForeignKeys toggles foreign key enforcement.
func WithForeignKeys(enabled bool) Option {
	return func(o *Options) { o.ForeignKeys = &enabled }
}

// WithBusyTimeout sets how long statements wait on a locked database.
func WithBusyTimeout(d time.Duration) Option {
	return func(o *Options) { o.BusyTimeout = d }
}

// WithJournalMode sets the SQLite journal mode (WAL, DELETE, MEMORY, ...).
func WithJournalMode(mode string) Option {
	return func(o *Options) { o.JournalMode = mode }
}

// WithSynchronous sets the SQLite synchronous level (OFF, NORMAL, FULL).
func WithSynchronous(level string) Option {
	return func(o *Options) { o.Synchronous = level }
}

// WithCacheSize sets the page cache size in pages.
func WithCacheSize(pages int) Option {
	return func(o *Options) { o.CacheSize = pages }
}

// ReadOnly opens the database in query-only mode.
func ReadOnly() Option {
	return func(o *Options) { o.ReadOnly = true }
}

// WithLogWriter directs slow-query and guard-rail warnings to w as
// structured JSON.
func WithLogWriter(w io.Writer) Option {
	return func(o *Options) { o.LogWriter = w }
}

// WithSlowQueryThreshold enables slow-query logging for statements that
// take longer than d.
func WithSlowQueryThreshold(d time.Duration) Option {
	return func(o *Options) { o.SlowQueryThreshold = d }
}

// createDSN renders the driver DSN for the given database path and options.
func createDSN(path string, opts Options) string {
	qp := url.Values{}

	foreignKeys := true
	if opts.ForeignKeys != nil {
		foreignKeys = *opts.ForeignKeys
	}
	qp.Add("_foreign_keys", fmt.Sprintf("%t", foreignKeys))
	qp.Add("_busy_timeout", fmt.Sprintf("%d", opts.BusyTimeout.Milliseconds()))
	qp.Add("_journal_mode", opts.JournalMode)
	qp.Add("_synchronous", opts.Synchronous)
	qp.Add("_cache_size", fmt.Sprintf("%d", opts.CacheSize))

	if opts.ReadOnly {
		qp.Add("_query_only", "true")
	}

	return fmt.Sprintf("file:%s?%s", path, qp.Encode())
}

// DB owns a handle to an embedded SQLite database. It is safe for
// concurrent use; writes are serialized on a single underlying connection.
type DB struct {
	conn   *sql.DB
	path   string
	opts   Options
	stats  dbStats
	logger log.Logger
}

// dbStats holds atomic usage counters for a DB.
type dbStats struct {
	execs        int64
	queries      int64
	txBegun      int64
	txCommitted  int64
	txRolledBack int64
}

// Stats is a point-in-time snapshot of DB usage counters.
type Stats struct {
	Execs        int64
	Queries      int64
	TxBegun      int64
	TxCommitted  int64
	TxRolledBack int64
}

// Open opens (creating if needed) the SQLite database at path. Use
// ":memory:" for a transient in-memory database.
func Open(path string, options ...Option) (*DB, error) {
	if path == "" {
		return nil, errors.New("database path is required")
	}

	opts := Options{
		BusyTimeout: 5 * time.Second,
		JournalMode: "WAL",
		Synchronous: "NORMAL",
		CacheSize:   10000,
	}
	for _, option := range options {
		option(&opts)
	}

	conn, err := sql.Open("sqlite3", createDSN(path, opts))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// A single connection keeps LastInsertId coherent and serializes
	// writers ahead of SQLite's own locking.
	conn.SetConnMaxIdleTime(0)
	conn.SetConnMaxLifetime(0)
	conn.SetMaxIdleConns(1)
	conn.SetMaxOpenConns(1)

	db := &DB{
		conn: conn,
		path: path,
		opts: opts,
	}
	if opts.LogWriter != nil {
		db.logger = log.NewLogger(opts.LogWriter)
	}
	return db, nil
}

// Path returns the database path this DB was opened with.
func (db *DB) Path() string {
	return db.path
}

// Ping verifies the underlying connection is still alive.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// Close releases the underlying database handle.
func (db *DB) Close() error {
	if err := db.conn.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return nil
}

// Stats returns a snapshot of the usage counters.
func (db *DB) Stats() Stats {
	return Stats{
		Execs:        atomic.LoadInt64(&db.stats.execs),
		Queries:      atomic.LoadInt64(&db.stats.queries),
		TxBegun:      atomic.LoadInt64(&db.stats.txBegun),
		TxCommitted:  atomic.LoadInt64(&db.stats.txCommitted),
		TxRolledBack: atomic.LoadInt64(&db.stats.txRolledBack),
	}
}

// Result reports the outcome of a write statement.
type Result struct {
	LastInsertID int64
	RowsAffected int64
}

// sqlRunner is the subset of database/sql shared by *sql.DB and *sql.Tx.
type sqlRunner interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// exec runs a write statement against run, recording stats and slow-query
// logs on behalf of db.
func (db *DB) exec(ctx context.Context, run sqlRunner, query string, args []any) (Result, error) {
	bound, err := bindArgs(args)
	if err != nil {
		return Result{}, err
	}

	start := time.Now()
	res, err := run.ExecContext(ctx, query, bound...)
	db.observe(query, time.Since(start))
	if err != nil {
		return Result{}, fmt.Errorf("failed to execute statement: %w", err)
	}

	lastInsertID, err := res.LastInsertId()
	if err != nil {
		return Result{}, fmt.Errorf("failed to get last insert ID: %w", err)
	}
	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return Result{}, fmt.Errorf("failed to get rows affected: %w", err)
	}

	atomic.AddInt64(&db.stats.execs, 1)
	return Result{LastInsertID: lastInsertID, RowsAffected: rowsAffected}, nil
}

// query runs a read statement against run and wraps the rows in a Cursor.
func (db *DB) query(ctx context.Context, run sqlRunner, query string, args []any) (*Cursor, error) {
	bound, err := bindArgs(args)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	rows, err := run.QueryContext(ctx, query, bound...)
	db.observe(query, time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}

	atomic.AddInt64(&db.stats.queries, 1)
	return newCursor(rows)
}

// observe emits a slow-query log entry when the statement exceeded the
// configured threshold.
func (db *DB) observe(query string, took time.Duration) {
	if db.opts.SlowQueryThreshold <= 0 || took < db.opts.SlowQueryThreshold {
		return
	}
	if !db.logger.IsInitialized() {
		return
	}
	db.logger.WarnNs(log.NsDatabase, "slow statement", log.KV{
		"query": query,
		"took":  took.String(),
	})
}

// warn emits a guard-rail warning, such as an UPDATE without a WHERE clause.
func (db *DB) warn(msg string, kv log.KV) {
	if db.logger.IsInitialized() {
		db.logger.WarnNs(log.NsDatabase, msg, kv)
	}
}

// Exec executes a write statement with the given parameters.
func (db *DB) Exec(ctx context.Context, query string, args ...any) (Result, error) {
	return db.exec(ctx, db.conn, query, args)
}

// Query executes a read statement and returns a Cursor over its rows.
func (db *DB) Query(ctx context.Context, query string, args ...any) (*Cursor, error) {
	return db.query(ctx, db.conn, query, args)
}

// Row is a single-row query result. Scan reports the first error
// encountered while building or running the query.
type Row struct {
	row *sql.Row
	err error
}

// Scan copies the columns of the row into dest. It returns ErrNotFound if
// the query matched no rows.
func (r *Row) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	if err := r.row.Scan(dest...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}
	return nil
}

// QueryRow executes a read statement expected to return at most one row.
func (db *DB) QueryRow(ctx context.Context, query string, args ...any) *Row {
	bound, err := bindArgs(args)
	if err != nil {
		return &Row{err: err}
	}
	atomic.AddInt64(&db.stats.queries, 1)
	return &Row{row: db.conn.QueryRowContext(ctx, query, bound...)}
}

// Table starts a fluent query builder for the named table.
func (db *DB) Table(name string) *Builder {
	return newBuilder(db, db.conn, name)
}

// CreateTable creates the table (and its indexes) described by the tags of
// rec. It is a no-op if the table already exists.
func (db *DB) CreateTable(ctx context.Context, rec any) error {
	schema, err := Describe(rec)
	if err != nil {
		return err
	}
	if _, err := db.Exec(ctx, schema.CreateIfNotExistsSQL()); err != nil {
		return fmt.Errorf("failed to create table %s: %w", schema.Table(), err)
	}
	for _, indexSQL := range schema.IndexSQL() {
		if _, err := db.Exec(ctx, indexSQL); err != nil {
			return fmt.Errorf("failed to create index for table %s: %w", schema.Table(), err)
		}
	}
	return nil
}

// Kind represents the class of a given SQL statement.
type Kind enum.Member[string]

var (
	KindUnknown  = Kind{Value: "unknown"}
	KindRead     = Kind{Value: "read"}
	KindWrite    = Kind{Value: "write"}
	KindBegin    = Kind{Value: "begin"}
	KindCommit   = Kind{Value: "commit"}
	KindRollback = Kind{Value: "rollback"}
)

// DetectKind classifies a statement as read, write, begin, commit or
// rollback. Reads are detected by preparing the statement against the
// engine and asking whether it is read-only.
func (db *DB) DetectKind(ctx context.Context, query string) (Kind, error) {
	trimmed := strings.ToLower(strings.TrimSpace(query))

	switch {
	case strings.HasPrefix(trimmed, "begin"), strings.HasPrefix(trimmed, "savepoint"):
		return KindBegin, nil
	case strings.HasPrefix(trimmed, "commit"), strings.HasPrefix(trimmed, "end"),
		strings.HasPrefix(trimmed, "release"):
		return KindCommit, nil
	case strings.HasPrefix(trimmed, "rollback"):
		return KindRollback, nil
	}

	conn, err := db.conn.Conn(ctx)
	if err != nil {
		return KindUnknown, fmt.Errorf("failed to get connection: %w", err)
	}
	defer conn.Close()

	isReadOnly := false
	err = conn.Raw(func(driverConn any) error {
		sqliteConn := driverConn.(*sqlite3.SQLiteConn)
		drvStmt, err := sqliteConn.Prepare(query)
		if err != nil {
			return err
		}
		defer drvStmt.Close()
		sqliteStmt := drvStmt.(*sqlite3.SQLiteStmt)
		isReadOnly = sqliteStmt.Readonly()
		return nil
	})
	if err != nil {
		return KindUnknown, fmt.Errorf("failed to prepare statement: %w", err)
	}

	if isReadOnly {
		return KindRead, nil
	}
	return KindWrite, nil
}
