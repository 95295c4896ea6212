package cli

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/snowflake-labs/segment"
	"github.com/snowflake-labs/segment/catalog"
	"github.com/snowflake-labs/segment/executor"
	"github.com/snowflake-labs/segment/internal/shell"
	"github.com/spf13/cobra"
)

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "segmentctl %s (%s)\n", Version, GitCommit)
			return err
		},
	}
}

func newAttributesCommand() *cobra.Command {
	var (
		category string
		search   string
		offline  bool
	)
	cmd := &cobra.Command{
		Use:   "attributes",
		Short: "List the attributes segments may reference",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := appFrom(cmd)
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			var db *sql.DB
			if !offline {
				conn, err := a.openDB(ctx)
				if err != nil {
					return err
				}
				defer func() { _ = conn.Close() }()
				db = conn
			}

			idx, err := a.loadIndex(ctx, db, offline, category)
			if err != nil {
				return err
			}
			shell.WriteAttributes(cmd.OutOrStdout(), idx.Search(search))
			return nil
		},
	}
	cmd.Flags().StringVar(&category, "category", "", "only list attributes within the category")
	cmd.Flags().StringVar(&search, "search", "", "only list attributes whose label contains the text")
	cmd.Flags().BoolVar(&offline, "offline", false, "list attributes from the catalog snapshot")
	return cmd
}

func newRefreshCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Save the warehouse catalog as an offline snapshot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := appFrom(cmd)
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			db, err := a.openDB(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()

			defs, err := a.listLive(ctx, db, "")
			if err != nil {
				return err
			}

			store, err := catalog.OpenSnapshotStore(a.cfg.Catalog.SnapshotDir, nil)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			if err := store.Save(ctx, defs); err != nil {
				return fmt.Errorf("error saving catalog snapshot: %w", err)
			}
			a.log.Info("saved catalog snapshot", "dir", a.cfg.Catalog.SnapshotDir, "attributes", len(defs))
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "saved %d attributes to %s\n", len(defs), a.cfg.Catalog.SnapshotDir)
			return err
		},
	}
}

func newOperatorsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "operators <data-type>",
		Short: "List the operators allowed for a data type",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dataType := strings.Join(args, " ")
			w := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(w, "%s is %s\n", segment.NormalizeType(dataType), segment.ClassifyType(dataType))
			def := segment.DefaultOperator(dataType)
			for _, op := range segment.OperatorOptions(dataType) {
				marker := " "
				if op == def {
					marker = "*"
				}
				_, _ = fmt.Fprintf(w, "%s %s\n", marker, op)
			}
			return nil
		},
	}
}

func newShellCommand() *cobra.Command {
	var (
		script  string
		offline bool
	)
	cmd := &cobra.Command{
		Use:   "shell",
		Short: "Build segments interactively",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := appFrom(cmd)
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			var db *sql.DB
			if !offline {
				conn, err := a.openDB(ctx)
				if err != nil {
					return err
				}
				defer func() { _ = conn.Close() }()
				db = conn
			}

			idx, err := a.loadIndex(ctx, db, offline, "")
			if err != nil {
				return err
			}

			opts := shell.Opts{
				Out:         cmd.OutOrStdout(),
				Dialect:     a.cfg.Dialect(),
				SampleLimit: a.cfg.Executor.SampleLimit,
				Logger:      a.log,
			}
			if db != nil && a.cfg.Executor.Relation != "" {
				e, err := executor.New(db, a.cfg.Executor.Relation, a.cfg.Dialect(), a.log)
				if err != nil {
					return err
				}
				opts.Runner = e
			}

			sh, err := shell.New(idx, opts)
			if err != nil {
				return err
			}
			defer sh.Close()

			switch script {
			case "":
				return runInteractive(ctx, cmd, sh)
			case "-":
				return sh.Run(ctx, cmd.InOrStdin())
			}
			f, err := os.Open(script)
			if err != nil {
				return err
			}
			defer func() { _ = f.Close() }()
			return sh.Run(ctx, f)
		},
	}
	cmd.Flags().StringVar(&script, "script", "", "run commands from a file, or - for stdin")
	cmd.Flags().BoolVar(&offline, "offline", false, "use the catalog snapshot, without a warehouse connection")
	return cmd
}

func runInteractive(ctx context.Context, cmd *cobra.Command, sh *shell.Shell) error {
	history := ""
	if dir, err := os.UserCacheDir(); err == nil {
		history = filepath.Join(dir, "segmentctl_history")
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          sh.Prompt(),
		HistoryFile:     history,
		InterruptPrompt: "^C",
		EOFPrompt:       "quit",
		Stdout:          cmd.OutOrStdout(),
		Stderr:          cmd.ErrOrStderr(),
	})
	if err != nil {
		return fmt.Errorf("failed to initialize shell: %w", err)
	}
	defer func() { _ = rl.Close() }()

	_, _ = fmt.Fprintln(rl.Stdout(), "segmentctl shell: type help for commands, quit to exit")
	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			continue
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		err = sh.Exec(ctx, line)
		if errors.Is(err, shell.ErrQuit) {
			return nil
		}
		if err != nil {
			_, _ = fmt.Fprintf(rl.Stderr(), "Error: %v\n", err)
		}
		rl.SetPrompt(sh.Prompt())
	}
}
