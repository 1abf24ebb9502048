package fluentlite

import (
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/orsinium-labs/enum"
)

// ValueKind represents the SQLite storage class of a column value.
type ValueKind enum.Member[string]

var (
	ValueNull    = ValueKind{Value: "null"}
	ValueInteger = ValueKind{Value: "integer"}
	ValueReal    = ValueKind{Value: "real"}
	ValueText    = ValueKind{Value: "text"}
	ValueBlob    = ValueKind{Value: "blob"}
)

// timeLayouts are the textual timestamp formats SQLite commonly stores,
// tried in order when coercing a text column to time.Time.
var timeLayouts = []string{
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02T15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// Cursor iterates the rows of a read statement and exposes typed column
// accessors. It must be closed when done; closing is idempotent.
type Cursor struct {
	rows    *sql.Rows
	columns []string
	byName  map[string]int
	row     []any
	err     error
}

// newCursor wraps rows, capturing the column list up front.
func newCursor(rows *sql.Rows) (*Cursor, error) {
	columns, err := rows.Columns()
	if err != nil {
		_ = rows.Close()
		return nil, fmt.Errorf("failed to get columns: %w", err)
	}
	return &Cursor{rows: rows, columns: columns}, nil
}

// Columns returns the column names of the result set in select order.
func (c *Cursor) Columns() []string {
	out := make([]string, len(c.columns))
	copy(out, c.columns)
	return out
}

// Index returns the position of the named column. The lookup is
// case-sensitive first, with a case-insensitive fallback to match SQLite's
// own identifier handling.
func (c *Cursor) Index(name string) (int, error) {
	if c.byName == nil {
		c.byName = make(map[string]int, len(c.columns))
		for i, col := range c.columns {
			if _, taken := c.byName[col]; !taken {
				c.byName[col] = i
			}
		}
	}

	if i, ok := c.byName[name]; ok {
		return i, nil
	}
	for i, col := range c.columns {
		if strings.EqualFold(col, name) {
			return i, nil
		}
	}
	return 0, fmt.Errorf("no column named %q", name)
}

// Next advances to the next row, returning false when the rows are
// exhausted or an error occurred. Check Err after a false return.
func (c *Cursor) Next() bool {
	if c.err != nil || !c.rows.Next() {
		return false
	}

	if c.row == nil {
		c.row = make([]any, len(c.columns))
	}
	scans := make([]any, len(c.columns))
	for i := range scans {
		c.row[i] = nil
		scans[i] = &c.row[i]
	}

	if err := c.rows.Scan(scans...); err != nil {
		c.err = fmt.Errorf("failed to scan row: %w", err)
		return false
	}
	return true
}

// Err returns the first error encountered during iteration.
func (c *Cursor) Err() error {
	if c.err != nil {
		return c.err
	}
	return c.rows.Err()
}

// Close releases the underlying rows.
func (c *Cursor) Close() error {
	return c.rows.Close()
}

// Scan copies the current row's columns into dest, like sql.Rows.Scan.
func (c *Cursor) Scan(dest ...any) error {
	if len(dest) != len(c.row) {
		return fmt.Errorf("expected %d destinations, got %d", len(c.row), len(dest))
	}
	for i, d := range dest {
		if err := convertAssign(d, c.row[i]); err != nil {
			return fmt.Errorf("failed to scan column %d: %w", i, err)
		}
	}
	return nil
}

// ScanStruct maps the current row's columns onto the db-tagged fields of
// the struct pointed to by ptr. Columns with no matching field are skipped.
func (c *Cursor) ScanStruct(ptr any) error {
	schema, err := Describe(ptr)
	if err != nil {
		return err
	}
	return schema.scanRow(ptr, c)
}

// value returns the raw driver value of the column at index i.
func (c *Cursor) value(i int) (any, error) {
	if c.row == nil {
		return nil, fmt.Errorf("no current row; call Next first")
	}
	if i < 0 || i >= len(c.row) {
		return nil, fmt.Errorf("column index %d out of range [0, %d)", i, len(c.row))
	}
	return c.row[i], nil
}

// Kind reports the storage class of the column at index i in the current
// row.
func (c *Cursor) Kind(i int) (ValueKind, error) {
	v, err := c.value(i)
	if err != nil {
		return ValueNull, err
	}
	switch v.(type) {
	case nil:
		return ValueNull, nil
	case int64, int, bool:
		return ValueInteger, nil
	case float64:
		return ValueReal, nil
	case string, time.Time:
		return ValueText, nil
	case []byte:
		return ValueBlob, nil
	default:
		return ValueNull, fmt.Errorf("unsupported driver value of type %T", v)
	}
}

// IsNull reports whether the column at index i is NULL in the current row.
func (c *Cursor) IsNull(i int) (bool, error) {
	v, err := c.value(i)
	if err != nil {
		return false, err
	}
	return v == nil, nil
}

// Int64 returns the column at index i coerced to an integer. NULL coerces
// to zero, matching the C API's column accessors.
func (c *Cursor) Int64(i int) (int64, error) {
	v, err := c.value(i)
	if err != nil {
		return 0, err
	}
	return coerceInt64(v)
}

// Int returns the column at index i coerced to an int.
func (c *Cursor) Int(i int) (int, error) {
	n, err := c.Int64(i)
	return int(n), err
}

// Float64 returns the column at index i coerced to a float.
func (c *Cursor) Float64(i int) (float64, error) {
	v, err := c.value(i)
	if err != nil {
		return 0, err
	}
	return coerceFloat64(v)
}

// Text returns the column at index i coerced to a string.
func (c *Cursor) Text(i int) (string, error) {
	v, err := c.value(i)
	if err != nil {
		return "", err
	}
	return coerceText(v)
}

// Blob returns the column at index i as a byte slice. NULL returns nil.
func (c *Cursor) Blob(i int) ([]byte, error) {
	v, err := c.value(i)
	if err != nil {
		return nil, err
	}
	return coerceBlob(v)
}

// Bool returns the column at index i coerced to a boolean.
func (c *Cursor) Bool(i int) (bool, error) {
	v, err := c.value(i)
	if err != nil {
		return false, err
	}
	return coerceBool(v)
}

// Time returns the column at index i coerced to a timestamp. Integer
// columns are treated as Unix seconds.
func (c *Cursor) Time(i int) (time.Time, error) {
	v, err := c.value(i)
	if err != nil {
		return time.Time{}, err
	}
	return coerceTime(v)
}

// GetInt64 is Int64 addressed by column name.
func (c *Cursor) GetInt64(name string) (int64, error) {
	i, err := c.Index(name)
	if err != nil {
		return 0, err
	}
	return c.Int64(i)
}

// GetInt is Int addressed by column name.
func (c *Cursor) GetInt(name string) (int, error) {
	i, err := c.Index(name)
	if err != nil {
		return 0, err
	}
	return c.Int(i)
}

// GetFloat64 is Float64 addressed by column name.
func (c *Cursor) GetFloat64(name string) (float64, error) {
	i, err := c.Index(name)
	if err != nil {
		return 0, err
	}
	return c.Float64(i)
}

// GetText is Text addressed by column name.
func (c *Cursor) GetText(name string) (string, error) {
	i, err := c.Index(name)
	if err != nil {
		return "", err
	}
	return c.Text(i)
}

// GetBlob is Blob addressed by column name.
func (c *Cursor) GetBlob(name string) ([]byte, error) {
	i, err := c.Index(name)
	if err != nil {
		return nil, err
	}
	return c.Blob(i)
}

// GetBool is Bool addressed by column name.
func (c *Cursor) GetBool(name string) (bool, error) {
	i, err := c.Index(name)
	if err != nil {
		return false, err
	}
	return c.Bool(i)
}

// GetTime is Time addressed by column name.
func (c *Cursor) GetTime(name string) (time.Time, error) {
	i, err := c.Index(name)
	if err != nil {
		return time.Time{}, err
	}
	return c.Time(i)
}

// GetIsNull is IsNull addressed by column name.
func (c *Cursor) GetIsNull(name string) (bool, error) {
	i, err := c.Index(name)
	if err != nil {
		return false, err
	}
	return c.IsNull(i)
}

func coerceInt64(v any) (int64, error) {
	switch t := v.(type) {
	case nil:
		return 0, nil
	case int64:
		return t, nil
	case int:
		return int64(t), nil
	case float64:
		return int64(t), nil
	case bool:
		if t {
			return 1, nil
		}
		return 0, nil
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(t), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("cannot coerce %q to integer", t)
		}
		return n, nil
	case []byte:
		return coerceInt64(string(t))
	case time.Time:
		return t.Unix(), nil
	default:
		return 0, fmt.Errorf("cannot coerce value of type %T to integer", v)
	}
}

func coerceFloat64(v any) (float64, error) {
	switch t := v.(type) {
	case nil:
		return 0, nil
	case float64:
		return t, nil
	case int64:
		return float64(t), nil
	case int:
		return float64(t), nil
	case bool:
		if t {
			return 1, nil
		}
		return 0, nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0, fmt.Errorf("cannot coerce %q to real", t)
		}
		return f, nil
	case []byte:
		return coerceFloat64(string(t))
	default:
		return 0, fmt.Errorf("cannot coerce value of type %T to real", v)
	}
}

func coerceText(v any) (string, error) {
	switch t := v.(type) {
	case nil:
		return "", nil
	case string:
		return t, nil
	case []byte:
		return string(t), nil
	case int64:
		return strconv.FormatInt(t, 10), nil
	case int:
		return strconv.Itoa(t), nil
	case float64:
		return strconv.FormatFloat(t, 'g', -1, 64), nil
	case bool:
		if t {
			return "1", nil
		}
		return "0", nil
	case time.Time:
		return t.Format("2006-01-02 15:04:05.999999999-07:00"), nil
	default:
		return "", fmt.Errorf("cannot coerce value of type %T to text", v)
	}
}

func coerceBlob(v any) ([]byte, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case []byte:
		out := make([]byte, len(t))
		copy(out, t)
		return out, nil
	case string:
		return []byte(t), nil
	default:
		return nil, fmt.Errorf("cannot coerce value of type %T to blob", v)
	}
}

func coerceBool(v any) (bool, error) {
	switch t := v.(type) {
	case nil:
		return false, nil
	case bool:
		return t, nil
	case int64:
		return t != 0, nil
	case int:
		return t != 0, nil
	case float64:
		return t != 0, nil
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(t))
		if err != nil {
			return false, fmt.Errorf("cannot coerce %q to boolean", t)
		}
		return b, nil
	case []byte:
		return coerceBool(string(t))
	default:
		return false, fmt.Errorf("cannot coerce value of type %T to boolean", v)
	}
}

func coerceTime(v any) (time.Time, error) {
	switch t := v.(type) {
	case nil:
		return time.Time{}, nil
	case time.Time:
		return t, nil
	case int64:
		return time.Unix(t, 0).UTC(), nil
	case int:
		return time.Unix(int64(t), 0).UTC(), nil
	case []byte:
		return coerceTime(string(t))
	case string:
		s := strings.TrimSpace(t)
		for _, layout := range timeLayouts {
			if ts, err := time.Parse(layout, s); err == nil {
				return ts, nil
			}
		}
		return time.Time{}, fmt.Errorf("cannot coerce %q to timestamp", t)
	default:
		return time.Time{}, fmt.Errorf("cannot coerce value of type %T to timestamp", v)
	}
}

// convertAssign assigns a driver value to the destination pointer using the
// same coercion rules as the typed getters.
func convertAssign(dest any, v any) error {
	switch d := dest.(type) {
	case *int64:
		n, err := coerceInt64(v)
		if err != nil {
			return err
		}
		*d = n
	case *int:
		n, err := coerceInt64(v)
		if err != nil {
			return err
		}
		*d = int(n)
	case *float64:
		f, err := coerceFloat64(v)
		if err != nil {
			return err
		}
		*d = f
	case *string:
		s, err := coerceText(v)
		if err != nil {
			return err
		}
		*d = s
	case *[]byte:
		b, err := coerceBlob(v)
		if err != nil {
			return err
		}
		*d = b
	case *bool:
		b, err := coerceBool(v)
		if err != nil {
			return err
		}
		*d = b
	case *time.Time:
		ts, err := coerceTime(v)
		if err != nil {
			return err
		}
		*d = ts
	case *any:
		*d = v
	default:
		return fmt.Errorf("unsupported scan destination of type %T", dest)
	}
	return nil
}
