package repl

import (
	"encoding/csv"
	"fmt"
	"os"
	"time"

	"github.com/fluentlite/fluentlite"
	"github.com/schollz/progressbar/v3"
)

// cmdImport bulk inserts a CSV file into a table. The first CSV record is
// the header and names the target columns. Every row goes through a single
// transaction so a malformed file leaves the table untouched.
func cmdImport(r *Repl, args []string) {
	if len(args) != 2 {
		fmt.Println("Usage: .import csv_path table_name")
		return
	}
	csvPath, tableName := args[0], args[1]

	if r.tx != nil {
		printError(fmt.Errorf("cannot import while a transaction is open"))
		return
	}

	file, err := os.Open(csvPath)
	if err != nil {
		printError(fmt.Errorf("failed to open CSV file: %w", err))
		return
	}
	defer file.Close()

	records, err := csv.NewReader(file).ReadAll()
	if err != nil {
		printError(fmt.Errorf("failed to read CSV file: %w", err))
		return
	}
	if len(records) < 2 {
		printError(fmt.Errorf("CSV file needs a header row and at least one data row"))
		return
	}
	header, rows := records[0], records[1:]

	start := time.Now()
	bar := progressbar.Default(int64(len(rows)), "importing")
	_ = bar.Set(0)

	err = r.db.WithTx(r.ctx, func(tx *fluentlite.Tx) error {
		for i, row := range rows {
			if len(row) != len(header) {
				return fmt.Errorf("row %d has %d fields, expected %d", i+2, len(row), len(header))
			}

			values := make(map[string]any, len(header))
			for j, col := range header {
				values[col] = row[j]
			}

			if _, err := tx.Table(tableName).InsertMap(r.ctx, values); err != nil {
				return fmt.Errorf("row %d: %w", i+2, err)
			}
			_ = bar.Add(1)
		}
		return nil
	})

	_ = bar.Finish()
	_ = bar.Close()

	if err != nil {
		printError(err)
		return
	}
	printOK(fmt.Sprintf("Imported %d rows into %s", len(rows), tableName))
	printFooter(len(rows), time.Since(start))
}
