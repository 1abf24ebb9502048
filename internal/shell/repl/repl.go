// Package repl implements the interactive prompt of the fluentlite shell.
package repl

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/fluentlite/fluentlite"
	"github.com/fluentlite/fluentlite/internal/shell/config"
	"github.com/fluentlite/fluentlite/internal/util/sysutil"
	"github.com/peterh/liner"
)

type Repl struct {
	conf        config.Config
	db          *fluentlite.DB
	tx          *fluentlite.Tx
	ctx         context.Context
	stop        context.CancelFunc
	historyPath string
}

func NewRepl(
	ctx context.Context,
	stop context.CancelFunc,
	conf config.Config,
	db *fluentlite.DB,
) Repl {
	return Repl{
		conf:        conf,
		db:          db,
		ctx:         ctx,
		stop:        stop,
		historyPath: conf.HistoryPath,
	}
}

func (r *Repl) Start() error {
	fmt.Printf("Connected to %s\n", r.db.Path())
	fmt.Println(`Enter ".help" for usage hints and ".quit" or "CTRL+C" to quit`)
	fmt.Println()

	for {
		select {
		case <-r.ctx.Done():
			return nil
		default:
			input := r.prompt()

			if input == "" {
				continue
			}

			if input == "exit" || input == ".exit" || input == ".quit" {
				r.Shutdown()
				return nil
			}

			if input == "clear" || input == ".clear" {
				sysutil.ClearTerminal()
				continue
			}

			if input == "help" || input == ".help" {
				cmdHelp()
				continue
			}

			if input == ".tables" {
				cmdQuery(r, `SELECT name FROM sqlite_master WHERE type = 'table' ORDER BY name`)
				continue
			}

			if input == ".indexes" {
				cmdQuery(r, `SELECT name, tbl_name FROM sqlite_master WHERE type = 'index' ORDER BY name`)
				continue
			}

			if input == ".schema" {
				cmdQuery(r, `SELECT sql FROM sqlite_master WHERE sql IS NOT NULL`)
				continue
			}

			if args, ok := dotCmdArgs(input, ".count"); ok {
				cmdCount(r, args)
				continue
			}

			if args, ok := dotCmdArgs(input, ".columns"); ok {
				cmdColumns(r, args)
				continue
			}

			if args, ok := dotCmdArgs(input, ".import"); ok {
				cmdImport(r, args)
				continue
			}

			if strings.HasPrefix(input, ".") {
				fmt.Println("Unknown command, type .help for usage hints")
				continue
			}

			cmdQuery(r, input)
		}
	}
}

// Shutdown stops the REPL, rolling back any transaction left open.
func (r *Repl) Shutdown() {
	if r.tx != nil {
		_ = r.tx.Rollback(r.ctx)
		r.tx = nil
	}
	r.stop()
}

// setTx tracks the transaction opened from the prompt. Pass nil once it is
// committed or rolled back.
func (r *Repl) setTx(tx *fluentlite.Tx) {
	r.tx = tx
}

// dotCmdArgs matches input against a dot command that takes arguments and
// returns the argument list.
func dotCmdArgs(input, name string) ([]string, bool) {
	if input != name && !strings.HasPrefix(input, name+" ") {
		return nil, false
	}
	return strings.Fields(strings.TrimPrefix(input, name)), true
}

// prompt shows the prompt and reads the input from the user.
func (r *Repl) prompt() string {
	label := "fluentlite> "
	if r.tx != nil {
		label = "fluentlite(tx)> "
	}

	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)
	line.SetCompleter(cmdHelpCompleter)

	if file, err := os.Open(r.historyPath); err == nil {
		_, _ = line.ReadHistory(file)
		file.Close()
	}

	prompt, err := line.Prompt(label)
	if err != nil {
		if err == liner.ErrPromptAborted {
			fmt.Println("CTRL+C pressed, exiting...")
			return ".quit"
		}
		return ""
	}

	line.AppendHistory(prompt)
	if file, err := os.Create(r.historyPath); err == nil {
		_, _ = line.WriteHistory(file)
		file.Close()
	}

	return strings.TrimSpace(prompt)
}
