// Package cli implements the fibrun command tree.
package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/me/gofib/internal/config"
	"github.com/me/gofib/internal/logging"
	"github.com/me/gofib/internal/trace"
)

// NewRootCmd builds the fibrun root command.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "fibrun",
		Short:         "Run and inspect the gofib job scheduler",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.String("config", "", "Path to YAML config file")
	pf.String("log-level", "", "Log level (debug, info, warn, error)")
	pf.String("log-format", "", "Log format (text, json)")
	pf.String("mode", "", "Execution mode (fibers, inline)")
	pf.Int("workers", 0, "Worker goroutine count")
	pf.String("db", "", "Run-history sqlite path (\":memory:\" allowed)")

	root.AddCommand(newDemoCmd(), newBenchCmd(), newServeCmd())
	return root
}

// setup resolves configuration (file, then flag overrides) and builds the
// logger shared by every subcommand.
func setup(cmd *cobra.Command) (config.Config, *slog.Logger, error) {
	flags := cmd.Flags()

	cfg := config.Default()
	if path, _ := flags.GetString("config"); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return cfg, nil, err
		}
		cfg = loaded
	}

	if flags.Changed("log-level") {
		cfg.LogLevel, _ = flags.GetString("log-level")
	}
	if flags.Changed("log-format") {
		cfg.LogFormat, _ = flags.GetString("log-format")
	}
	if flags.Changed("mode") {
		mode, _ := flags.GetString("mode")
		cfg.Mode = config.Mode(mode)
	}
	if flags.Changed("workers") {
		cfg.Workers, _ = flags.GetInt("workers")
	}
	if flags.Changed("db") {
		cfg.TraceDB, _ = flags.GetString("db")
	}

	if err := cfg.Validate(); err != nil {
		return cfg, nil, fmt.Errorf("config: %w", err)
	}
	return cfg, logging.New(cfg.LogLevel, cfg.LogFormat), nil
}

// openTrace opens the run-history store when configured, migrating as
// needed. Returns nil when history is disabled.
func openTrace(ctx context.Context, cfg config.Config, logger *slog.Logger) (*trace.SQLiteStore, error) {
	if cfg.TraceDB == "" {
		return nil, nil
	}
	st, err := trace.NewSQLiteStore(cfg.TraceDB, logger)
	if err != nil {
		return nil, fmt.Errorf("open trace db: %w", err)
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close()
		return nil, fmt.Errorf("migrate trace db: %w", err)
	}
	return st, nil
}
