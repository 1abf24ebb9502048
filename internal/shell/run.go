// Package shell implements the interactive fluentlite CLI.
package shell

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/fluentlite/fluentlite"
	"github.com/fluentlite/fluentlite/internal/shell/config"
	"github.com/fluentlite/fluentlite/internal/shell/repl"
	"github.com/fluentlite/fluentlite/internal/version"
)

// Run runs the fluentlite shell.
func Run(ctx context.Context) error {
	conf := config.MustParse(os.Args)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if conf.NoColor {
		color.NoColor = true
	}

	fmt.Println(version.CLIVersion())

	options := []fluentlite.Option{
		fluentlite.WithBusyTimeout(conf.BusyTimeout),
	}
	if conf.ReadOnly {
		options = append(options, fluentlite.ReadOnly())
	}

	db, err := fluentlite.Open(conf.Database, options...)
	if err != nil {
		return err
	}
	defer db.Close()

	rp := repl.NewRepl(ctx, stop, conf, db)
	defer rp.Shutdown()
	go func() {
		if err := rp.Start(); err != nil {
			fmt.Println(err)
			stop()
		}
	}()

	<-ctx.Done()
	fmt.Printf("\nGoodbye!\n\n")
	return nil
}
