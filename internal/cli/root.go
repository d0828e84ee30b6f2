// Package cli implements the librepeat commands.
package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/cyp0633/librepeat/internal/config"
	"github.com/cyp0633/librepeat/storage/sqlite"
)

// version is set at build time via ldflags.
var version = "dev"

// Global flags.
var (
	flagConfig   string
	flagDatabase string
	flagTimezone string
	flagVerbose  bool
)

var rootCmd = newRootCmd()

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "librepeat",
		Short: "Advance recurring tasks to their next occurrence",
		Long: `librepeat keeps a small task database and moves recurring tasks to their
next due date when they are completed. Rules use the RRULE subset
FREQ, INTERVAL, COUNT and BYDAY plus an optional ;FROM=COMPLETION marker.`,
		Version:       version,
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	cmd.PersistentFlags().StringVarP(&flagConfig, "config", "c", "", "path to YAML config file")
	cmd.PersistentFlags().StringVar(&flagDatabase, "db", "", "SQLite database path (overrides config)")
	cmd.PersistentFlags().StringVar(&flagTimezone, "tz", "", "time zone for due dates (overrides config)")
	cmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "debug logging to stderr")

	cmd.AddCommand(
		newNextCmd(),
		newAddCmd(),
		newCompleteCmd(),
		newListCmd(),
		newExportCmd(),
		newImportCmd(),
	)
	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// env is what a command needs once configuration is resolved
type env struct {
	cfg    *config.Config
	loc    *time.Location
	logger *slog.Logger
	out    io.Writer
}

func loadEnv(cmd *cobra.Command) (*env, error) {
	cfg, err := config.Load(flagConfig, flagConfig != "")
	if err != nil {
		return nil, err
	}
	if flagDatabase != "" {
		cfg.Database = flagDatabase
	}
	if flagTimezone != "" {
		cfg.Timezone = flagTimezone
	}
	if flagVerbose {
		cfg.LogLevel = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	level, err := cfg.Level()
	if err != nil {
		return nil, err
	}

	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
	return &env{cfg: cfg, loc: loc, logger: logger, out: cmd.OutOrStdout()}, nil
}

func (e *env) openStore() (*sqlite.Store, error) {
	return sqlite.Open(e.cfg.Database, sqlite.WithLocation(e.loc), sqlite.WithLogger(e.logger))
}
