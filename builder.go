package fluentlite

import (
	"context"
	"fmt"
	"reflect"
	"regexp"
	"sort"
	"strings"

	"github.com/fluentlite/fluentlite/internal/log"
	"github.com/orsinium-labs/enum"
)

// Conflict represents an SQLite conflict resolution algorithm for inserts.
type Conflict enum.Member[string]

var (
	ConflictRollback = Conflict{Value: "ROLLBACK"}
	ConflictAbort    = Conflict{Value: "ABORT"}
	ConflictFail     = Conflict{Value: "FAIL"}
	ConflictIgnore   = Conflict{Value: "IGNORE"}
	ConflictReplace  = Conflict{Value: "REPLACE"}
)

var plainIdentRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// quoteIdent quotes an identifier with double quotes when it is not a
// plain identifier. Embedded quotes are doubled.
func quoteIdent(name string) string {
	if plainIdentRe.MatchString(name) {
		return name
	}
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// whereClause is one accumulated condition fragment.
type whereClause struct {
	conj string // "AND" or "OR"
	expr string
	args []any
}

// joinClause is one accumulated join fragment.
type joinClause struct {
	kind  string // "JOIN", "LEFT JOIN", "CROSS JOIN"
	table string
	on    string
	args  []any
}

// Builder accumulates clause fragments for a single table and renders them
// into one SQL string plus an ordered parameter list when a terminal
// method runs. Builders are cheap; start a fresh one per statement. A
// builder does not mutate while rendering, so it can be executed more than
// once.
type Builder struct {
	db    *DB
	run   sqlRunner
	table string

	selects  []string
	distinct bool
	joins    []joinClause
	wheres   []whereClause
	groupBys []string
	havings  []whereClause
	orderBys []string
	limit    int
	offset   int
	conflict *Conflict

	err error
}

func newBuilder(db *DB, run sqlRunner, table string) *Builder {
	b := &Builder{db: db, run: run, table: table, limit: -1, offset: -1}
	if table == "" {
		b.err = fmt.Errorf("table name is required")
	}
	return b
}

// Select sets the column list. Entries are rendered verbatim, so
// expressions like "COUNT(*) AS n" are allowed. Without a call to Select
// the builder selects * for plain queries and the schema columns for
// record terminals.
func (b *Builder) Select(columns ...string) *Builder {
	b.selects = append(b.selects, columns...)
	return b
}

// Distinct adds the DISTINCT qualifier.
func (b *Builder) Distinct() *Builder {
	b.distinct = true
	return b
}

// Join adds an inner join with the given ON condition.
func (b *Builder) Join(table, on string, args ...any) *Builder {
	b.joins = append(b.joins, joinClause{kind: "JOIN", table: table, on: on, args: args})
	return b
}

// LeftJoin adds a left outer join with the given ON condition.
func (b *Builder) LeftJoin(table, on string, args ...any) *Builder {
	b.joins = append(b.joins, joinClause{kind: "LEFT JOIN", table: table, on: on, args: args})
	return b
}

// CrossJoin adds a cross join.
func (b *Builder) CrossJoin(table string) *Builder {
	b.joins = append(b.joins, joinClause{kind: "CROSS JOIN", table: table})
	return b
}

// Where adds a condition combined with AND. Parameters are referenced with
// question marks and supplied in order.
func (b *Builder) Where(cond string, args ...any) *Builder {
	b.wheres = append(b.wheres, whereClause{conj: "AND", expr: cond, args: args})
	return b
}

// OrWhere adds a condition combined with OR.
func (b *Builder) OrWhere(cond string, args ...any) *Builder {
	b.wheres = append(b.wheres, whereClause{conj: "OR", expr: cond, args: args})
	return b
}

// WhereEq adds an equality condition on a column.
func (b *Builder) WhereEq(column string, value any) *Builder {
	return b.Where(fmt.Sprintf("%s = ?", quoteIdent(column)), value)
}

// WhereIn adds an IN condition. An empty value list renders a clause that
// matches nothing, so the statement stays valid SQL.
func (b *Builder) WhereIn(column string, values ...any) *Builder {
	if len(values) == 0 {
		return b.Where("1 = 0")
	}
	marks := strings.Repeat("?, ", len(values))
	cond := fmt.Sprintf("%s IN (%s)", quoteIdent(column), marks[:len(marks)-2])
	return b.Where(cond, values...)
}

// WhereNull adds an IS NULL condition on a column.
func (b *Builder) WhereNull(column string) *Builder {
	return b.Where(fmt.Sprintf("%s IS NULL", quoteIdent(column)))
}

// WhereNotNull adds an IS NOT NULL condition on a column.
func (b *Builder) WhereNotNull(column string) *Builder {
	return b.Where(fmt.Sprintf("%s IS NOT NULL", quoteIdent(column)))
}

// GroupBy adds grouping columns.
func (b *Builder) GroupBy(columns ...string) *Builder {
	b.groupBys = append(b.groupBys, columns...)
	return b
}

// Having adds a HAVING condition combined with AND.
func (b *Builder) Having(cond string, args ...any) *Builder {
	b.havings = append(b.havings, whereClause{conj: "AND", expr: cond, args: args})
	return b
}

// OrderBy adds an ascending ordering term.
func (b *Builder) OrderBy(column string) *Builder {
	b.orderBys = append(b.orderBys, column)
	return b
}

// OrderByDesc adds a descending ordering term.
func (b *Builder) OrderByDesc(column string) *Builder {
	b.orderBys = append(b.orderBys, column+" DESC")
	return b
}

// Limit caps the number of returned rows. Negative values clear the cap.
func (b *Builder) Limit(n int) *Builder {
	b.limit = n
	return b
}

// Offset skips the first n rows.
func (b *Builder) Offset(n int) *Builder {
	b.offset = n
	return b
}

// OnConflict sets the conflict resolution algorithm for Insert terminals,
// e.g. OnConflict(ConflictIgnore) renders INSERT OR IGNORE.
func (b *Builder) OnConflict(c Conflict) *Builder {
	b.conflict = &c
	return b
}

// renderFrom appends the FROM and JOIN fragments.
func (b *Builder) renderFrom(sb *strings.Builder, args *[]any) {
	sb.WriteString(" FROM ")
	sb.WriteString(quoteIdent(b.table))
	for _, join := range b.joins {
		sb.WriteString(" ")
		sb.WriteString(join.kind)
		sb.WriteString(" ")
		sb.WriteString(quoteIdent(join.table))
		if join.on != "" {
			sb.WriteString(" ON ")
			sb.WriteString(join.on)
		}
		*args = append(*args, join.args...)
	}
}

// renderConds appends a WHERE or HAVING fragment.
func renderConds(sb *strings.Builder, args *[]any, keyword string, conds []whereClause) {
	if len(conds) == 0 {
		return
	}
	sb.WriteString(" ")
	sb.WriteString(keyword)
	sb.WriteString(" ")
	for i, cond := range conds {
		if i > 0 {
			sb.WriteString(" ")
			sb.WriteString(cond.conj)
			sb.WriteString(" ")
		}
		if len(conds) > 1 {
			sb.WriteString("(")
			sb.WriteString(cond.expr)
			sb.WriteString(")")
		} else {
			sb.WriteString(cond.expr)
		}
		*args = append(*args, cond.args...)
	}
}

// renderTail appends GROUP BY, HAVING, ORDER BY, LIMIT and OFFSET.
func (b *Builder) renderTail(sb *strings.Builder, args *[]any) {
	if len(b.groupBys) > 0 {
		sb.WriteString(" GROUP BY ")
		sb.WriteString(strings.Join(b.groupBys, ", "))
	}
	renderConds(sb, args, "HAVING", b.havings)
	if len(b.orderBys) > 0 {
		sb.WriteString(" ORDER BY ")
		sb.WriteString(strings.Join(b.orderBys, ", "))
	}
	if b.limit >= 0 {
		fmt.Fprintf(sb, " LIMIT %d", b.limit)
	}
	if b.offset >= 0 {
		fmt.Fprintf(sb, " OFFSET %d", b.offset)
	}
}

// renderSelect assembles the SELECT statement and its ordered parameters.
func (b *Builder) renderSelect(columns string) (string, []any) {
	var sb strings.Builder
	var args []any

	sb.WriteString("SELECT ")
	if b.distinct {
		sb.WriteString("DISTINCT ")
	}
	sb.WriteString(columns)
	b.renderFrom(&sb, &args)
	renderConds(&sb, &args, "WHERE", b.wheres)
	b.renderTail(&sb, &args)
	return sb.String(), args
}

// selectColumns resolves the column list for a SELECT terminal.
func (b *Builder) selectColumns() string {
	if len(b.selects) > 0 {
		return strings.Join(b.selects, ", ")
	}
	return "*"
}

// SQL renders the SELECT this builder would execute, for inspection and
// testing. The parameter list is in bind order.
func (b *Builder) SQL() (string, []any) {
	return b.renderSelect(b.selectColumns())
}

// Rows executes the SELECT and returns a cursor over the result.
func (b *Builder) Rows(ctx context.Context) (*Cursor, error) {
	if b.err != nil {
		return nil, b.err
	}
	query, args := b.SQL()
	return b.db.query(ctx, b.run, query, args)
}

// First executes the SELECT limited to one row and scans it into dest.
// When dest is a db-tagged struct pointer and no explicit column list was
// set, the schema's columns (including rowid for the primary key) are
// selected and mapped by name. Returns ErrNotFound when nothing matches.
func (b *Builder) First(ctx context.Context, dest any) error {
	if b.err != nil {
		return b.err
	}

	schema, err := Describe(dest)
	if err != nil {
		return err
	}

	columns := b.selectColumns()
	if len(b.selects) == 0 {
		columns = schema.selectList
	}

	limited := *b
	limited.limit = 1
	query, args := limited.renderSelect(columns)

	cursor, err := b.db.query(ctx, b.run, query, args)
	if err != nil {
		return err
	}
	defer cursor.Close()

	if !cursor.Next() {
		if err := cursor.Err(); err != nil {
			return err
		}
		return ErrNotFound
	}
	return schema.scanRow(dest, cursor)
}

// All executes the SELECT and appends every row to the slice pointed to by
// dest, which must be a *[]T or *[]*T of a db-tagged struct type.
func (b *Builder) All(ctx context.Context, dest any) error {
	if b.err != nil {
		return b.err
	}

	slicePtr := reflect.ValueOf(dest)
	if slicePtr.Kind() != reflect.Ptr || slicePtr.Elem().Kind() != reflect.Slice {
		return fmt.Errorf("destination must be a pointer to a slice, got %T", dest)
	}
	sliceVal := slicePtr.Elem()

	elemType := sliceVal.Type().Elem()
	elemIsPtr := elemType.Kind() == reflect.Ptr
	if elemIsPtr {
		elemType = elemType.Elem()
	}
	if elemType.Kind() != reflect.Struct {
		return fmt.Errorf("slice elements must be structs, got %s", elemType.Kind())
	}

	schema, err := Describe(reflect.New(elemType).Interface())
	if err != nil {
		return err
	}

	columns := b.selectColumns()
	if len(b.selects) == 0 {
		columns = schema.selectList
	}
	query, args := b.renderSelect(columns)

	cursor, err := b.db.query(ctx, b.run, query, args)
	if err != nil {
		return err
	}
	defer cursor.Close()

	for cursor.Next() {
		rec := reflect.New(elemType)
		if err := schema.scanRow(rec.Interface(), cursor); err != nil {
			return err
		}
		if elemIsPtr {
			sliceVal.Set(reflect.Append(sliceVal, rec))
		} else {
			sliceVal.Set(reflect.Append(sliceVal, rec.Elem()))
		}
	}
	return cursor.Err()
}

// Count executes SELECT COUNT(*) with the accumulated conditions. Ordering
// and limits do not apply to the count.
func (b *Builder) Count(ctx context.Context) (int64, error) {
	if b.err != nil {
		return 0, b.err
	}

	var sb strings.Builder
	var args []any
	sb.WriteString("SELECT COUNT(*)")
	b.renderFrom(&sb, &args)
	renderConds(&sb, &args, "WHERE", b.wheres)

	cursor, err := b.db.query(ctx, b.run, sb.String(), args)
	if err != nil {
		return 0, err
	}
	defer cursor.Close()

	if !cursor.Next() {
		if err := cursor.Err(); err != nil {
			return 0, err
		}
		return 0, fmt.Errorf("count returned no rows")
	}
	return cursor.Int64(0)
}

// Exists reports whether any row matches the accumulated conditions.
func (b *Builder) Exists(ctx context.Context) (bool, error) {
	if b.err != nil {
		return false, b.err
	}

	var sb strings.Builder
	var args []any
	sb.WriteString("SELECT EXISTS(SELECT 1")
	b.renderFrom(&sb, &args)
	renderConds(&sb, &args, "WHERE", b.wheres)
	sb.WriteString(")")

	cursor, err := b.db.query(ctx, b.run, sb.String(), args)
	if err != nil {
		return false, err
	}
	defer cursor.Close()

	if !cursor.Next() {
		if err := cursor.Err(); err != nil {
			return false, err
		}
		return false, fmt.Errorf("exists returned no rows")
	}
	return cursor.Bool(0)
}

// insertPrefix renders "INSERT [OR algo] INTO".
func (b *Builder) insertPrefix() string {
	if b.conflict != nil {
		return fmt.Sprintf("INSERT OR %s INTO", b.conflict.Value)
	}
	return "INSERT INTO"
}

// Insert inserts a db-tagged record. When rec is an addressable structure
// with a db_primary field, the field is backfilled with the last insert
// id.
func (b *Builder) Insert(ctx context.Context, rec any) (Result, error) {
	if b.err != nil {
		return Result{}, b.err
	}

	schema, err := Describe(rec)
	if err != nil {
		return Result{}, err
	}
	args, setID, err := schema.insertArgs(rec)
	if err != nil {
		return Result{}, err
	}

	query := fmt.Sprintf("%s %s (%s) VALUES (%s)",
		b.insertPrefix(), quoteIdent(b.table), schema.columnList, schema.placeholderList)

	res, err := b.db.exec(ctx, b.run, query, args)
	if err != nil {
		return Result{}, err
	}
	if setID != nil && res.RowsAffected > 0 {
		setID(res.LastInsertID)
	}
	return res, nil
}

// InsertMap inserts a row from column/value pairs. Columns are rendered in
// sorted order so the statement is deterministic.
func (b *Builder) InsertMap(ctx context.Context, values map[string]any) (Result, error) {
	if b.err != nil {
		return Result{}, b.err
	}
	if len(values) == 0 {
		return Result{}, fmt.Errorf("insert requires at least one column")
	}

	columns := make([]string, 0, len(values))
	for name := range values {
		columns = append(columns, name)
	}
	sort.Strings(columns)

	quoted := make([]string, 0, len(columns))
	args := make([]any, 0, len(columns))
	for _, name := range columns {
		quoted = append(quoted, quoteIdent(name))
		args = append(args, values[name])
	}

	marks := strings.Repeat("?, ", len(columns))
	query := fmt.Sprintf("%s %s (%s) VALUES (%s)",
		b.insertPrefix(), quoteIdent(b.table), strings.Join(quoted, ", "), marks[:len(marks)-2])
	return b.db.exec(ctx, b.run, query, args)
}

// Update updates the rows matched by the accumulated conditions with the
// given column/value pairs. An update with no conditions rewrites the
// whole table and is logged as a warning.
func (b *Builder) Update(ctx context.Context, values map[string]any) (Result, error) {
	if b.err != nil {
		return Result{}, b.err
	}
	if len(values) == 0 {
		return Result{}, fmt.Errorf("update requires at least one column")
	}
	if len(b.wheres) == 0 {
		b.db.warn("update without conditions", log.KV{"table": b.table})
	}

	columns := make([]string, 0, len(values))
	for name := range values {
		columns = append(columns, name)
	}
	sort.Strings(columns)

	sets := make([]string, 0, len(columns))
	args := make([]any, 0, len(columns))
	for _, name := range columns {
		sets = append(sets, fmt.Sprintf("%s = ?", quoteIdent(name)))
		args = append(args, values[name])
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "UPDATE %s SET %s", quoteIdent(b.table), strings.Join(sets, ", "))
	renderConds(&sb, &args, "WHERE", b.wheres)
	return b.db.exec(ctx, b.run, sb.String(), args)
}

// UpdateRecord updates the row identified by the record's db_primary field
// with the record's column values, optionally restricted to the named
// columns.
func (b *Builder) UpdateRecord(ctx context.Context, rec any, columns ...string) (Result, error) {
	if b.err != nil {
		return Result{}, b.err
	}

	schema, err := Describe(rec)
	if err != nil {
		return Result{}, err
	}
	sets, err := schema.setColumns(columns...)
	if err != nil {
		return Result{}, err
	}
	args, err := schema.updateArgs(rec, columns...)
	if err != nil {
		return Result{}, err
	}

	query := fmt.Sprintf("UPDATE %s SET %s WHERE rowid = ?", quoteIdent(b.table), sets)
	return b.db.exec(ctx, b.run, query, args)
}

// Delete removes the rows matched by the accumulated conditions. A delete
// with no conditions empties the table and is logged as a warning.
func (b *Builder) Delete(ctx context.Context) (Result, error) {
	if b.err != nil {
		return Result{}, b.err
	}
	if len(b.wheres) == 0 {
		b.db.warn("delete without conditions", log.KV{"table": b.table})
	}

	var sb strings.Builder
	var args []any
	fmt.Fprintf(&sb, "DELETE FROM %s", quoteIdent(b.table))
	renderConds(&sb, &args, "WHERE", b.wheres)
	return b.db.exec(ctx, b.run, sb.String(), args)
}
