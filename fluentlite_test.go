package fluentlite

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateDSN(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		options  []Option
		expected string
	}{
		{
			name:     "defaults",
			path:     "data.sqlite",
			options:  nil,
			expected: "file:data.sqlite?_busy_timeout=5000&_cache_size=10000&_foreign_keys=true&_journal_mode=WAL&_synchronous=NORMAL",
		},
		{
			name:     "read only",
			path:     "data.sqlite",
			options:  []Option{ReadOnly()},
			expected: "file:data.sqlite?_busy_timeout=5000&_cache_size=10000&_foreign_keys=true&_journal_mode=WAL&_query_only=true&_synchronous=NORMAL",
		},
		{
			name: "tuned",
			path: "data.sqlite",
			options: []Option{
				WithForeignKeys(false),
				WithBusyTimeout(time.Second),
				WithJournalMode("DELETE"),
				WithSynchronous("FULL"),
				WithCacheSize(500),
			},
			expected: "file:data.sqlite?_busy_timeout=1000&_cache_size=500&_foreign_keys=false&_journal_mode=DELETE&_synchronous=FULL",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := Options{
				BusyTimeout: 5 * time.Second,
				JournalMode: "WAL",
				Synchronous: "NORMAL",
				CacheSize:   10000,
			}
			for _, option := range tt.options {
				option(&opts)
			}
			assert.Equal(t, tt.expected, createDSN(tt.path, opts))
		})
	}
}

func TestOpenRequiresPath(t *testing.T) {
	_, err := Open("")
	assert.Error(t, err)
}

func TestOpenAndPing(t *testing.T) {
	db := openTestDB(t)
	assert.Equal(t, ":memory:", db.Path())
	assert.NoError(t, db.Ping(context.Background()))
}

func TestExecAndQueryRow(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	_, err := db.Exec(ctx, "CREATE TABLE kv (k text, v integer)")
	require.NoError(t, err)

	res, err := db.Exec(ctx, "INSERT INTO kv (k, v) VALUES (?, ?)", "a", 1)
	require.NoError(t, err)
	assert.EqualValues(t, 1, res.RowsAffected)
	assert.EqualValues(t, 1, res.LastInsertID)

	var v int64
	err = db.QueryRow(ctx, "SELECT v FROM kv WHERE k = ?", "a").Scan(&v)
	assert.NoError(t, err)
	assert.EqualValues(t, 1, v)

	err = db.QueryRow(ctx, "SELECT v FROM kv WHERE k = ?", "zzz").Scan(&v)
	assert.ErrorIs(t, err, ErrNotFound)

	err = db.QueryRow(ctx, "SELECT v FROM kv WHERE k = ?", map[string]int{}).Scan(&v)
	assert.Error(t, err, "bind errors surface through Scan")
}

func TestExecBindError(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	_, err := db.Exec(ctx, "SELECT ?", struct{}{})
	assert.Error(t, err)
}

func TestTransactionCommit(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	require.NoError(t, db.CreateTable(ctx, product{}))

	tx, err := db.Begin(ctx)
	require.NoError(t, err)

	_, err = tx.Table("products").InsertMap(ctx, map[string]any{"name": "saw"})
	require.NoError(t, err)
	require.NoError(t, tx.Commit(ctx))

	count, err := db.Table("products").Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)

	assert.ErrorIs(t, tx.Commit(ctx), ErrTxDone)
	_, err = tx.Exec(ctx, "SELECT 1")
	assert.ErrorIs(t, err, ErrTxDone)
}

func TestTransactionRollback(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	require.NoError(t, db.CreateTable(ctx, product{}))

	tx, err := db.Begin(ctx)
	require.NoError(t, err)
	_, err = tx.Table("products").InsertMap(ctx, map[string]any{"name": "saw"})
	require.NoError(t, err)
	require.NoError(t, tx.Rollback(ctx))

	count, err := db.Table("products").Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestNestedTransactions(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	require.NoError(t, db.CreateTable(ctx, product{}))

	outer, err := db.Begin(ctx)
	require.NoError(t, err)

	_, err = outer.Table("products").InsertMap(ctx, map[string]any{"name": "kept"})
	require.NoError(t, err)

	inner, err := outer.Begin(ctx)
	require.NoError(t, err)
	_, err = inner.Table("products").InsertMap(ctx, map[string]any{"name": "discarded"})
	require.NoError(t, err)
	require.NoError(t, inner.Rollback(ctx))

	require.NoError(t, outer.Commit(ctx))

	var names []string
	cursor, err := db.Query(ctx, "SELECT name FROM products")
	require.NoError(t, err)
	defer cursor.Close()
	for cursor.Next() {
		name, err := cursor.Text(0)
		require.NoError(t, err)
		names = append(names, name)
	}
	require.NoError(t, cursor.Err())
	assert.Equal(t, []string{"kept"}, names)
}

func TestWithTx(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	require.NoError(t, db.CreateTable(ctx, product{}))

	t.Run("commits on nil", func(t *testing.T) {
		err := db.WithTx(ctx, func(tx *Tx) error {
			_, err := tx.Table("products").InsertMap(ctx, map[string]any{"name": "one"})
			return err
		})
		require.NoError(t, err)

		count, err := db.Table("products").Count(ctx)
		require.NoError(t, err)
		assert.EqualValues(t, 1, count)
	})

	t.Run("rolls back on error", func(t *testing.T) {
		boom := errors.New("boom")
		err := db.WithTx(ctx, func(tx *Tx) error {
			_, insErr := tx.Table("products").InsertMap(ctx, map[string]any{"name": "two"})
			require.NoError(t, insErr)
			return boom
		})
		assert.ErrorIs(t, err, boom)

		count, err := db.Table("products").Count(ctx)
		require.NoError(t, err)
		assert.EqualValues(t, 1, count)
	})

	t.Run("rolls back on panic", func(t *testing.T) {
		assert.Panics(t, func() {
			_ = db.WithTx(ctx, func(tx *Tx) error {
				_, _ = tx.Table("products").InsertMap(ctx, map[string]any{"name": "three"})
				panic("boom")
			})
		})

		count, err := db.Table("products").Count(ctx)
		require.NoError(t, err)
		assert.EqualValues(t, 1, count)
	})
}

func TestStats(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	require.NoError(t, db.CreateTable(ctx, product{}))

	statsBefore := db.Stats()

	_, err := db.Table("products").InsertMap(ctx, map[string]any{"name": "x"})
	require.NoError(t, err)
	_, err = db.Table("products").Count(ctx)
	require.NoError(t, err)
	require.NoError(t, db.WithTx(ctx, func(tx *Tx) error { return nil }))
	_ = db.WithTx(ctx, func(tx *Tx) error { return errors.New("rollback me") })

	stats := db.Stats()
	assert.Greater(t, stats.Execs, statsBefore.Execs)
	assert.Greater(t, stats.Queries, statsBefore.Queries)
	assert.Equal(t, statsBefore.TxBegun+2, stats.TxBegun)
	assert.Equal(t, statsBefore.TxCommitted+1, stats.TxCommitted)
	assert.Equal(t, statsBefore.TxRolledBack+1, stats.TxRolledBack)
}

func TestDetectKind(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	_, err := db.Exec(ctx, "CREATE TABLE kv (k text)")
	require.NoError(t, err)

	tests := []struct {
		name     string
		query    string
		expected Kind
	}{
		{name: "select", query: "SELECT * FROM kv", expected: KindRead},
		{name: "pragma read", query: "SELECT * FROM pragma_table_info('kv')", expected: KindRead},
		{name: "insert", query: "INSERT INTO kv (k) VALUES ('x')", expected: KindWrite},
		{name: "update", query: "UPDATE kv SET k = 'y'", expected: KindWrite},
		{name: "create", query: "CREATE TABLE other (a integer)", expected: KindWrite},
		{name: "begin", query: "BEGIN", expected: KindBegin},
		{name: "savepoint", query: "SAVEPOINT s1", expected: KindBegin},
		{name: "commit", query: "COMMIT", expected: KindCommit},
		{name: "release", query: "RELEASE SAVEPOINT s1", expected: KindCommit},
		{name: "rollback", query: "ROLLBACK", expected: KindRollback},
		{name: "case and whitespace", query: "   select 1", expected: KindRead},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kind, err := db.DetectKind(ctx, tt.query)
			assert.NoError(t, err)
			assert.Equal(t, tt.expected, kind)
		})
	}

	t.Run("invalid sql", func(t *testing.T) {
		_, err := db.DetectKind(ctx, "NOT REALLY SQL")
		assert.Error(t, err)
	})
}

func TestSlowQueryLogging(t *testing.T) {
	ctx := context.Background()
	var buf bytes.Buffer

	db, err := Open(":memory:",
		WithLogWriter(&buf),
		WithSlowQueryThreshold(time.Nanosecond),
	)
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Exec(ctx, "CREATE TABLE kv (k text)")
	require.NoError(t, err)

	assert.Contains(t, buf.String(), "slow statement")
	assert.Contains(t, buf.String(), "CREATE TABLE kv")
}

func TestGuardRailWarnings(t *testing.T) {
	ctx := context.Background()
	var buf bytes.Buffer

	db, err := Open(":memory:", WithLogWriter(&buf))
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, db.CreateTable(ctx, product{}))

	_, err = db.Table("products").Update(ctx, map[string]any{"stock": 0})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "update without conditions")

	_, err = db.Table("products").Delete(ctx)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "delete without conditions")
}
