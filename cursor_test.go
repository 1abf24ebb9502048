package fluentlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openCursorDB(t *testing.T) *DB {
	t.Helper()
	ctx := context.Background()
	db := openTestDB(t)

	_, err := db.Exec(ctx, `CREATE TABLE samples (
		n integer, f real, s text, b blob, flag integer, ts timestamp, missing text
	)`)
	require.NoError(t, err)

	_, err = db.Exec(ctx,
		"INSERT INTO samples (n, f, s, b, flag, ts, missing) VALUES (?, ?, ?, ?, ?, ?, ?)",
		42, 2.5, "hello", []byte{0xde, 0xad}, true,
		time.Date(2024, 5, 4, 12, 30, 0, 0, time.UTC), nil,
	)
	require.NoError(t, err)
	return db
}

func TestCursorTypedGetters(t *testing.T) {
	ctx := context.Background()
	db := openCursorDB(t)

	cursor, err := db.Query(ctx, "SELECT n, f, s, b, flag, ts, missing FROM samples")
	require.NoError(t, err)
	defer cursor.Close()
	require.True(t, cursor.Next())

	n, err := cursor.Int64(0)
	assert.NoError(t, err)
	assert.EqualValues(t, 42, n)

	i, err := cursor.Int(0)
	assert.NoError(t, err)
	assert.Equal(t, 42, i)

	f, err := cursor.Float64(1)
	assert.NoError(t, err)
	assert.Equal(t, 2.5, f)

	s, err := cursor.Text(2)
	assert.NoError(t, err)
	assert.Equal(t, "hello", s)

	b, err := cursor.Blob(3)
	assert.NoError(t, err)
	assert.Equal(t, []byte{0xde, 0xad}, b)

	flag, err := cursor.Bool(4)
	assert.NoError(t, err)
	assert.True(t, flag)

	ts, err := cursor.Time(5)
	assert.NoError(t, err)
	assert.Equal(t, 2024, ts.Year())

	isNull, err := cursor.IsNull(6)
	assert.NoError(t, err)
	assert.True(t, isNull)

	isNull, err = cursor.IsNull(0)
	assert.NoError(t, err)
	assert.False(t, isNull)
}

func TestCursorCoercions(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	cursor, err := db.Query(ctx, "SELECT '17', 3.9, 21, 'not a number'")
	require.NoError(t, err)
	defer cursor.Close()
	require.True(t, cursor.Next())

	n, err := cursor.Int64(0)
	assert.NoError(t, err, "numeric text coerces to integer")
	assert.EqualValues(t, 17, n)

	n, err = cursor.Int64(1)
	assert.NoError(t, err, "real truncates to integer")
	assert.EqualValues(t, 3, n)

	f, err := cursor.Float64(2)
	assert.NoError(t, err, "integer widens to real")
	assert.Equal(t, 21.0, f)

	s, err := cursor.Text(2)
	assert.NoError(t, err, "integer formats as text")
	assert.Equal(t, "21", s)

	_, err = cursor.Int64(3)
	assert.Error(t, err, "non-numeric text does not coerce to integer")
}

func TestCursorNullCoercesToZero(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	cursor, err := db.Query(ctx, "SELECT NULL")
	require.NoError(t, err)
	defer cursor.Close()
	require.True(t, cursor.Next())

	n, err := cursor.Int64(0)
	assert.NoError(t, err)
	assert.Zero(t, n)

	s, err := cursor.Text(0)
	assert.NoError(t, err)
	assert.Empty(t, s)

	b, err := cursor.Blob(0)
	assert.NoError(t, err)
	assert.Nil(t, b)
}

func TestCursorOutOfRange(t *testing.T) {
	ctx := context.Background()
	db := openCursorDB(t)

	cursor, err := db.Query(ctx, "SELECT n FROM samples")
	require.NoError(t, err)
	defer cursor.Close()

	_, err = cursor.Int64(0)
	assert.Error(t, err, "no current row before Next")

	require.True(t, cursor.Next())
	_, err = cursor.Int64(5)
	assert.Error(t, err)
	_, err = cursor.Int64(-1)
	assert.Error(t, err)
}

func TestCursorColumnsByName(t *testing.T) {
	ctx := context.Background()
	db := openCursorDB(t)

	cursor, err := db.Query(ctx, "SELECT n, s AS label FROM samples")
	require.NoError(t, err)
	defer cursor.Close()

	assert.Equal(t, []string{"n", "label"}, cursor.Columns())
	require.True(t, cursor.Next())

	n, err := cursor.GetInt64("n")
	assert.NoError(t, err)
	assert.EqualValues(t, 42, n)

	label, err := cursor.GetText("label")
	assert.NoError(t, err)
	assert.Equal(t, "hello", label)

	label, err = cursor.GetText("LABEL")
	assert.NoError(t, err, "name lookup falls back to case-insensitive")
	assert.Equal(t, "hello", label)

	_, err = cursor.GetText("nope")
	assert.Error(t, err)
}

func TestCursorKind(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	cursor, err := db.Query(ctx, "SELECT 1, 1.5, 'x', x'00ff', NULL")
	require.NoError(t, err)
	defer cursor.Close()
	require.True(t, cursor.Next())

	expected := []ValueKind{ValueInteger, ValueReal, ValueText, ValueBlob, ValueNull}
	for i, want := range expected {
		kind, err := cursor.Kind(i)
		assert.NoError(t, err)
		assert.Equal(t, want, kind)
	}
}

func TestCursorScan(t *testing.T) {
	ctx := context.Background()
	db := openCursorDB(t)

	cursor, err := db.Query(ctx, "SELECT n, s, flag FROM samples")
	require.NoError(t, err)
	defer cursor.Close()
	require.True(t, cursor.Next())

	var n int64
	var s string
	var flag bool
	require.NoError(t, cursor.Scan(&n, &s, &flag))
	assert.EqualValues(t, 42, n)
	assert.Equal(t, "hello", s)
	assert.True(t, flag)

	assert.Error(t, cursor.Scan(&n), "destination count must match columns")
}

func TestCursorScanStruct(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	seedProducts(t, db)

	cursor, err := db.Query(ctx, "SELECT rowid, name, price, stock, enabled FROM products ORDER BY name")
	require.NoError(t, err)
	defer cursor.Close()

	var names []string
	for cursor.Next() {
		var rec product
		require.NoError(t, cursor.ScanStruct(&rec))
		assert.NotZero(t, rec.ID)
		names = append(names, rec.Name)
	}
	require.NoError(t, cursor.Err())
	assert.Equal(t, []string{"hammer", "nails", "tarp"}, names)
}

func TestCursorIteration(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	require.NoError(t, db.CreateTable(ctx, product{}))

	for i := 0; i < 5; i++ {
		_, err := db.Table("products").InsertMap(ctx, map[string]any{"name": "x", "stock": i})
		require.NoError(t, err)
	}

	cursor, err := db.Query(ctx, "SELECT stock FROM products ORDER BY stock")
	require.NoError(t, err)
	defer cursor.Close()

	var got []int
	for cursor.Next() {
		n, err := cursor.Int(0)
		require.NoError(t, err)
		got = append(got, n)
	}
	assert.NoError(t, cursor.Err())
	assert.Equal(t, []int{0, 1, 2, 3, 4}, got)
	assert.False(t, cursor.Next(), "cursor stays exhausted")
}
