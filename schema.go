package fluentlite

import (
	"fmt"
	"reflect"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"
)

// affinity maps Go scalar kinds to SQLite column affinities.
var affinity = map[reflect.Kind]string{
	reflect.Bool:    "integer",
	reflect.Int:     "integer",
	reflect.Int8:    "integer",
	reflect.Int16:   "integer",
	reflect.Int32:   "integer",
	reflect.Int64:   "integer",
	reflect.Uint:    "integer",
	reflect.Uint8:   "integer",
	reflect.Uint16:  "integer",
	reflect.Uint32:  "integer",
	reflect.Uint64:  "integer",
	reflect.Float32: "real",
	reflect.Float64: "real",
	reflect.String:  "text",
}

var timeType = reflect.TypeOf(time.Time{})

// fieldAffinity returns the SQLite affinity for a struct field type.
func fieldAffinity(t reflect.Type) (string, bool) {
	if t == timeType {
		return "timestamp", true
	}
	if t.Kind() == reflect.Slice && t.Elem().Kind() == reflect.Uint8 {
		return "blob", true
	}
	a, ok := affinity[t.Kind()]
	return a, ok
}

// column is one db-tagged struct field.
type column struct {
	name     string
	affinity string
	sf       reflect.StructField
}

// indexCol is one member of a composite index, ordered by its tag suffix.
type indexCol struct {
	order  string
	column string
}

// Schema holds the meta information of a table-mapped record structure: SQL
// names, column affinities and pre-rendered statement fragments. It is
// read-only after Describe and safe for concurrent use, so it is typically
// built once and kept for the duration of the program.
type Schema struct {
	table   string
	recType reflect.Type

	primary    reflect.StructField
	hasPrimary bool

	columns []column
	byName  map[string]column
	indexes map[string][]indexCol

	// Pre-rendered fragments.
	columnList      string
	placeholderList string
	createBody      string
	selectList      string
}

// indexTagRe splits an index tag entry into its index name and its
// position within the index, e.g. "loc2" -> ("loc", "2").
var indexTagRe = regexp.MustCompile(`^\s*(\D+)(\d*)\s*$`)

var schemaCache sync.Map // reflect.Type -> *Schema

// Describe collects the meta information of the record (or record pointed
// to by) rec. Descriptors are cached per struct type. An error is returned
// when the structure does not satisfy the tag rules: at least one exported
// field tagged `db:"col"` (or `db:"*"` to reuse the field name), exactly
// one `db_table:"name"` tag, an optional int64 `db_primary:""` field that
// maps to the table's rowid, and optional `db_index:"name<N>"` tags naming
// composite indexes.
func Describe(rec any) (*Schema, error) {
	rv := reflect.ValueOf(rec)
	if rv.Kind() == reflect.Ptr {
		rv = rv.Elem()
	}
	if !rv.IsValid() {
		return nil, fmt.Errorf("cannot describe a nil record")
	}

	if cached, ok := schemaCache.Load(rv.Type()); ok {
		return cached.(*Schema), nil
	}

	schema, err := describe(rv.Type())
	if err != nil {
		return nil, err
	}
	schemaCache.Store(rv.Type(), schema)
	return schema, nil
}

// MustDescribe is Describe but panics on error.
func MustDescribe(rec any) *Schema {
	schema, err := Describe(rec)
	if err != nil {
		panic(err)
	}
	return schema
}

func describe(recType reflect.Type) (*Schema, error) {
	if recType.Kind() != reflect.Struct {
		return nil, fmt.Errorf("record must be a struct or a pointer to one, got %s", recType.Kind())
	}

	schema := &Schema{
		recType: recType,
		byName:  make(map[string]column),
		indexes: make(map[string][]indexCol),
	}

	var names, placeholders, createCols, selectCols []string

	for i := 0; i < recType.NumField(); i++ {
		sf := recType.Field(i)

		if table := sf.Tag.Get("db_table"); table != "" {
			if schema.table != "" {
				return nil, fmt.Errorf(`multiple occurrence of "db_table" tag`)
			}
			schema.table = table
		}

		name := sf.Tag.Get("db")
		if name == "" {
			if _, isPrimary := sf.Tag.Lookup("db_primary"); isPrimary {
				if schema.hasPrimary {
					return nil, fmt.Errorf(`multiple occurrence of "db_primary" tag`)
				}
				if sf.Type.Kind() != reflect.Int64 {
					return nil, fmt.Errorf("primary key field %s must be int64, got %s", sf.Name, sf.Type.Kind())
				}
				schema.primary = sf
				schema.hasPrimary = true
				selectCols = append(selectCols, "rowid")
			}
			continue
		}
		if name == "*" {
			name = sf.Name
		}

		aff, ok := fieldAffinity(sf.Type)
		if !ok {
			return nil, fmt.Errorf("database does not support fields of type %s", sf.Type.String())
		}

		col := column{name: name, affinity: aff, sf: sf}
		schema.columns = append(schema.columns, col)
		schema.byName[name] = col
		names = append(names, quoteIdent(name))
		placeholders = append(placeholders, "?")
		createCols = append(createCols, fmt.Sprintf("%s %s", quoteIdent(name), aff))
		selectCols = append(selectCols, quoteIdent(name))

		if err := parseIndexTag(sf.Tag.Get("db_index"), name, schema.indexes); err != nil {
			return nil, err
		}
	}

	if len(schema.columns) == 0 {
		return nil, fmt.Errorf(`at least one exported structure field must have a "db" tag`)
	}
	if schema.table == "" {
		return nil, fmt.Errorf(`missing "db_table" tag`)
	}

	for _, cols := range schema.indexes {
		sort.Slice(cols, func(i, j int) bool { return cols[i].order < cols[j].order })
	}

	schema.columnList = strings.Join(names, ", ")
	schema.placeholderList = strings.Join(placeholders, ", ")
	schema.createBody = strings.Join(createCols, ", ")
	schema.selectList = strings.Join(selectCols, ", ")
	return schema, nil
}

// parseIndexTag tokenizes a db_index tag. A tag holds comma-separated
// entries of the form <index><position>, e.g. `db_index:"loc1,covering2"`.
func parseIndexTag(tag, columnName string, indexes map[string][]indexCol) error {
	if tag == "" {
		return nil
	}
	for _, entry := range strings.Split(tag, ",") {
		m := indexTagRe.FindStringSubmatch(entry)
		if m == nil {
			return fmt.Errorf("malformed index tag: %s", entry)
		}
		indexes[m[1]] = append(indexes[m[1]], indexCol{order: m[2], column: columnName})
	}
	return nil
}

// Table returns the table name from the db_table tag.
func (s *Schema) Table() string {
	return s.table
}

// Columns returns the mapped column names in field order.
func (s *Schema) Columns() []string {
	out := make([]string, 0, len(s.columns))
	for _, col := range s.columns {
		out = append(out, col.name)
	}
	return out
}

// HasPrimary reports whether the structure carries a db_primary field.
func (s *Schema) HasPrimary() bool {
	return s.hasPrimary
}

// CreateSQL returns the CREATE TABLE statement for the mapped table.
func (s *Schema) CreateSQL() string {
	return fmt.Sprintf("CREATE TABLE %s (%s)", quoteIdent(s.table), s.createBody)
}

// CreateIfNotExistsSQL is CreateSQL guarded with IF NOT EXISTS.
func (s *Schema) CreateIfNotExistsSQL() string {
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", quoteIdent(s.table), s.createBody)
}

// IndexSQL returns one CREATE INDEX statement per db_index name, in
// deterministic order.
func (s *Schema) IndexSQL() []string {
	names := make([]string, 0, len(s.indexes))
	for name := range s.indexes {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]string, 0, len(names))
	for _, name := range names {
		cols := make([]string, 0, len(s.indexes[name]))
		for _, ic := range s.indexes[name] {
			cols = append(cols, quoteIdent(ic.column))
		}
		out = append(out, fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s (%s)",
			quoteIdent(s.table+"_"+name), quoteIdent(s.table), strings.Join(cols, ", ")))
	}
	return out
}

// record unwraps rec to the struct value described by s, reporting whether
// it was addressable through a pointer.
func (s *Schema) record(rec any) (reflect.Value, bool, error) {
	rv := reflect.ValueOf(rec)
	isPtr := rv.Kind() == reflect.Ptr
	if isPtr {
		rv = rv.Elem()
	}
	if !rv.IsValid() || rv.Type() != s.recType {
		return reflect.Value{}, false, fmt.Errorf("record must be a %s or a pointer to one", s.recType.String())
	}
	return rv, isPtr, nil
}

// insertArgs marshals the mapped fields of rec into an ordered argument
// list matching the schema's column list. When rec is an addressable
// structure with a primary key, setID can be called with the last insert
// id to backfill it; otherwise setID is nil.
func (s *Schema) insertArgs(rec any) (args []any, setID func(int64), err error) {
	rv, isPtr, err := s.record(rec)
	if err != nil {
		return nil, nil, err
	}

	for _, col := range s.columns {
		v, err := bindValue(rv.FieldByIndex(col.sf.Index).Interface())
		if err != nil {
			return nil, nil, fmt.Errorf("column %s: %w", col.name, err)
		}
		args = append(args, v)
	}

	if s.hasPrimary && isPtr {
		idField := rv.FieldByIndex(s.primary.Index)
		if idField.CanSet() {
			setID = func(id int64) { idField.SetInt(id) }
		}
	}
	return args, setID, nil
}

// updateArgs marshals the named columns of rec (all mapped columns when
// none are given) followed by the record's primary key value.
func (s *Schema) updateArgs(rec any, columns ...string) ([]any, error) {
	if !s.hasPrimary {
		return nil, fmt.Errorf("update by record requires a db_primary field")
	}
	rv, _, err := s.record(rec)
	if err != nil {
		return nil, err
	}

	if len(columns) == 0 || columns[0] == "*" {
		columns = s.Columns()
	}

	args := make([]any, 0, len(columns)+1)
	for _, name := range columns {
		col, ok := s.byName[name]
		if !ok {
			return nil, fmt.Errorf("column %q not mapped by %s", name, s.recType.String())
		}
		v, err := bindValue(rv.FieldByIndex(col.sf.Index).Interface())
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", col.name, err)
		}
		args = append(args, v)
	}
	args = append(args, rv.FieldByIndex(s.primary.Index).Interface())
	return args, nil
}

// setColumns renders "col = ?, ..." for the named columns (all mapped
// columns when none are given).
func (s *Schema) setColumns(columns ...string) (string, error) {
	if len(columns) == 0 || columns[0] == "*" {
		columns = s.Columns()
	}
	parts := make([]string, 0, len(columns))
	for _, name := range columns {
		if _, ok := s.byName[name]; !ok {
			return "", fmt.Errorf("column %q not mapped by %s", name, s.recType.String())
		}
		parts = append(parts, fmt.Sprintf("%s = ?", quoteIdent(name)))
	}
	return strings.Join(parts, ", "), nil
}

// scanRow copies the current cursor row into the record pointed to by ptr,
// matching columns by name. The rowid column feeds the primary key field.
func (s *Schema) scanRow(ptr any, c *Cursor) error {
	rv := reflect.ValueOf(ptr)
	if rv.Kind() != reflect.Ptr || rv.Elem().Type() != s.recType {
		return fmt.Errorf("destination must be a *%s", s.recType.String())
	}
	rec := rv.Elem()

	for i, name := range c.columns {
		v, err := c.value(i)
		if err != nil {
			return err
		}

		if s.hasPrimary && (name == "rowid" || strings.EqualFold(name, "_rowid_")) {
			id, err := coerceInt64(v)
			if err != nil {
				return fmt.Errorf("column %s: %w", name, err)
			}
			rec.FieldByIndex(s.primary.Index).SetInt(id)
			continue
		}

		col, ok := s.byName[name]
		if !ok {
			continue
		}
		if err := setField(rec.FieldByIndex(col.sf.Index), v); err != nil {
			return fmt.Errorf("column %s: %w", name, err)
		}
	}
	return nil
}

// setField assigns a driver value to a struct field using the cursor's
// coercion rules.
func setField(field reflect.Value, v any) error {
	if field.Type() == timeType {
		ts, err := coerceTime(v)
		if err != nil {
			return err
		}
		field.Set(reflect.ValueOf(ts))
		return nil
	}

	switch field.Kind() {
	case reflect.Bool:
		b, err := coerceBool(v)
		if err != nil {
			return err
		}
		field.SetBool(b)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := coerceInt64(v)
		if err != nil {
			return err
		}
		field.SetInt(n)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := coerceInt64(v)
		if err != nil {
			return err
		}
		if n < 0 {
			return fmt.Errorf("cannot store negative value %d in unsigned field", n)
		}
		field.SetUint(uint64(n))
	case reflect.Float32, reflect.Float64:
		f, err := coerceFloat64(v)
		if err != nil {
			return err
		}
		field.SetFloat(f)
	case reflect.String:
		str, err := coerceText(v)
		if err != nil {
			return err
		}
		field.SetString(str)
	case reflect.Slice:
		if field.Type().Elem().Kind() != reflect.Uint8 {
			return fmt.Errorf("unsupported field type %s", field.Type())
		}
		b, err := coerceBlob(v)
		if err != nil {
			return err
		}
		field.SetBytes(b)
	default:
		return fmt.Errorf("unsupported field type %s", field.Type())
	}
	return nil
}
