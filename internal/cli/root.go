// Package cli provides the segmentctl command line interface.
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/snowflake-labs/segment/internal/config"
	"github.com/spf13/cobra"
)

// Version information, set at build time.
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
)

// appKey stores the *app within a command's context.
type appKey struct{}

// NewRootCmd returns the segmentctl root command.
func NewRootCmd() *cobra.Command {
	var cfgFile string

	rootCmd := &cobra.Command{
		Use:   "segmentctl",
		Short: "Build and run audience segments",
		Long: `segmentctl builds boolean audience segments from warehouse attributes.

Segments are trees of AND/OR groups and attribute conditions, compiled into a
predicate which can be previewed, rendered as SQL and run against a warehouse.`,
		Version: Version,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "help" || cmd.Name() == "version" {
				return nil
			}
			cfg, err := config.Load(cfgFile, cmd.Flags())
			if err != nil {
				return err
			}
			log, err := newLogger(cmd.ErrOrStderr(), cfg.Log)
			if err != nil {
				return err
			}
			if cfg.File != "" {
				log.Debug("loaded config", "file", cfg.File)
			}
			cmd.SetContext(context.WithValue(cmd.Context(), appKey{}, &app{cfg: cfg, log: log}))
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.SetVersionTemplate("{{.Name}} {{.Version}}\n")

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default: ./segmentctl.yaml)")
	flags.String("driver", "", "catalog database driver (pgx|sqlite)")
	flags.String("dsn", "", "catalog database connection string")
	flags.String("snapshot-dir", "", "directory of the offline catalog snapshot")
	flags.String("relation", "", "table or view segments are counted and sampled from")
	flags.String("log-level", "", "log level (debug|info|warn|error)")
	flags.String("log-format", "", "log format (text|json)")

	rootCmd.AddCommand(newVersionCommand())
	rootCmd.AddCommand(newAttributesCommand())
	rootCmd.AddCommand(newRefreshCommand())
	rootCmd.AddCommand(newOperatorsCommand())
	rootCmd.AddCommand(newShellCommand())

	return rootCmd
}

// Execute runs the root command.
func Execute(ctx context.Context) error {
	if err := NewRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}

func appFrom(cmd *cobra.Command) (*app, error) {
	a, ok := cmd.Context().Value(appKey{}).(*app)
	if !ok {
		return nil, errors.New("configuration was not loaded")
	}
	return a, nil
}
