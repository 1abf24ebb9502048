// Package config holds the configuration of the fluentlite shell.
package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/alexflint/go-arg"
	"github.com/fluentlite/fluentlite/internal/version"
)

// Config represents the configuration for the fluentlite shell.
type Config struct {
	Database    string        `arg:"positional,required" help:"Path to the SQLite database file, use :memory: for a transient database"`
	ReadOnly    bool          `arg:"--read-only,env:FLUENTLITE_READ_ONLY" help:"Open the database in query-only mode" default:"false"`
	BusyTimeout time.Duration `arg:"--busy-timeout,env:FLUENTLITE_BUSY_TIMEOUT" help:"How long statements wait on a locked database. Valid time units are ns, us (or µs), ms, s, m, h" default:"5s"`
	HistoryPath string        `arg:"--history,env:FLUENTLITE_HISTORY" help:"Path of the shell history file; defaults to a file in the system temp directory"`
	NoColor     bool          `arg:"--no-color,env:FLUENTLITE_NO_COLOR" help:"Disable colored output" default:"false"`
}

func (Config) Version() string {
	return fmt.Sprintf("%s\n", version.CLIVersion())
}

// MustParse parses and validates the configuration from the command
// line arguments. It returns a Config struct or exits the program
// with an error.
func MustParse(args []string) Config {
	cfg := Config{}

	parser, err := arg.NewParser(
		arg.Config{},
		&cfg,
	)
	if err != nil {
		log.Fatal(err)
	}
	parser.MustParse(args[1:])

	if err := validateBusyTimeout(cfg.BusyTimeout); err != nil {
		log.Fatal(err)
	}

	if cfg.HistoryPath == "" {
		cfg.HistoryPath = defaultHistoryPath()
	}

	return cfg
}

// validateBusyTimeout rejects negative busy timeouts.
func validateBusyTimeout(d time.Duration) error {
	if d < 0 {
		return fmt.Errorf("busy timeout must not be negative, got %s", d)
	}
	return nil
}

// defaultHistoryPath is used when no history file is configured.
func defaultHistoryPath() string {
	return filepath.Join(os.TempDir(), ".fluentlite_history")
}
