package repl

import (
	"fmt"
	"time"

	"github.com/fluentlite/fluentlite"
	"github.com/fluentlite/fluentlite/internal/shell/styled"
	"github.com/fluentlite/fluentlite/internal/util/numutil"
	"github.com/jedib0t/go-pretty/v6/table"
)

// cmdQuery executes raw SQL from the prompt, routing it as a read, a
// write, or a transaction control statement.
func cmdQuery(r *Repl, input string) {
	start := time.Now()

	kind, err := r.db.DetectKind(r.ctx, input)
	if err != nil {
		printError(err)
		return
	}

	switch kind {
	case fluentlite.KindBegin:
		cmdBegin(r)
	case fluentlite.KindCommit:
		cmdCommit(r)
	case fluentlite.KindRollback:
		cmdRollback(r)
	case fluentlite.KindRead:
		cmdRead(r, input, start)
	default:
		cmdWrite(r, input, start)
	}
}

func printError(err error) {
	_, _ = styled.ErrorColor().Printf("Error: %s\n\n", err.Error())
}

func printOK(msg string) {
	tw := styled.NewTableWriter()
	tw.AppendHeader(table.Row{"OK"})
	tw.AppendRow(table.Row{msg})
	fmt.Println(tw.Render())
}

func printFooter(rows int, took time.Duration) {
	_, _ = styled.DimmedColor().Printf(
		"%s rows in %s\n\n", numutil.IntWithCommas(rows), took.Round(time.Microsecond),
	)
}

func cmdBegin(r *Repl) {
	if r.tx != nil {
		printError(fmt.Errorf("a transaction is already open"))
		return
	}
	tx, err := r.db.Begin(r.ctx)
	if err != nil {
		printError(err)
		return
	}
	r.setTx(tx)
	printOK("Transaction started")
}

func cmdCommit(r *Repl) {
	if r.tx == nil {
		printError(fmt.Errorf("no transaction is open"))
		return
	}
	if err := r.tx.Commit(r.ctx); err != nil {
		printError(err)
		return
	}
	r.setTx(nil)
	printOK("Transaction committed")
}

func cmdRollback(r *Repl) {
	if r.tx == nil {
		printError(fmt.Errorf("no transaction is open"))
		return
	}
	if err := r.tx.Rollback(r.ctx); err != nil {
		printError(err)
		return
	}
	r.setTx(nil)
	printOK("Transaction rolled back")
}

func cmdRead(r *Repl, input string, start time.Time) {
	var cursor *fluentlite.Cursor
	var err error
	if r.tx != nil {
		cursor, err = r.tx.Query(r.ctx, input)
	} else {
		cursor, err = r.db.Query(r.ctx, input)
	}
	if err != nil {
		printError(err)
		return
	}
	defer cursor.Close()

	tw := styled.NewTableWriter()
	header := table.Row{}
	for _, col := range cursor.Columns() {
		header = append(header, col)
	}
	tw.AppendHeader(header)

	count := 0
	for cursor.Next() {
		row := table.Row{}
		for i := range cursor.Columns() {
			text, err := cursor.Text(i)
			if err != nil {
				printError(err)
				return
			}
			if isNull, _ := cursor.IsNull(i); isNull {
				text = "NULL"
			}
			row = append(row, text)
		}
		tw.AppendRow(row)
		count++
	}
	if err := cursor.Err(); err != nil {
		printError(err)
		return
	}

	fmt.Println(tw.Render())
	printFooter(count, time.Since(start))
}

func cmdWrite(r *Repl, input string, start time.Time) {
	var res fluentlite.Result
	var err error
	if r.tx != nil {
		res, err = r.tx.Exec(r.ctx, input)
	} else {
		res, err = r.db.Exec(r.ctx, input)
	}
	if err != nil {
		printError(err)
		return
	}

	tw := styled.NewTableWriter()
	tw.AppendHeader(table.Row{"-", "Rows Affected", "Last Insert ID"})
	tw.AppendRow(table.Row{"OK", res.RowsAffected, res.LastInsertID})
	fmt.Println(tw.Render())
	printFooter(int(res.RowsAffected), time.Since(start))
}

// cmdCount prints the row count of a table.
func cmdCount(r *Repl, args []string) {
	if len(args) != 1 {
		fmt.Println("Usage: .count table_name")
		return
	}

	start := time.Now()
	count, err := r.db.Table(args[0]).Count(r.ctx)
	if err != nil {
		printError(err)
		return
	}

	tw := styled.NewTableWriter()
	tw.AppendHeader(table.Row{"Table", "Rows"})
	tw.AppendRow(table.Row{args[0], numutil.Int64WithCommas(count)})
	fmt.Println(tw.Render())
	printFooter(1, time.Since(start))
}

// cmdColumns prints the column layout of a table.
func cmdColumns(r *Repl, args []string) {
	if len(args) != 1 {
		fmt.Println("Usage: .columns table_name")
		return
	}
	cmdQuery(r, fmt.Sprintf(
		`SELECT name, type, "notnull", dflt_value, pk FROM pragma_table_info('%s')`,
		args[0],
	))
}
