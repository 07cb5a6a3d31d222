package cli

import (
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"jordanella.com/screen-mapper/internal/database"
)

func newDBCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "db",
		Short: "Maintain the results database",
		Long: `The results database holds recorded sessions, every rule result of those
sessions and the errors raised while they ran. Its path is databasePath in
the settings file.`,
	}

	cmd.AddCommand(newDBStatsCmd(opts))
	cmd.AddCommand(newDBErrorsCmd(opts))
	cmd.AddCommand(newDBBackupCmd(opts))
	cmd.AddCommand(newDBVacuumCmd(opts))
	cmd.AddCommand(newDBPruneCmd(opts))

	return cmd
}

// withResults runs fn against the results database named in the settings
func withResults(cmd *cobra.Command, opts *rootOptions, fn func(*database.DB) error) error {
	env, err := opts.load(cmd)
	if err != nil {
		return err
	}
	defer env.close()

	db, err := openResults(env)
	if err != nil {
		return err
	}
	defer db.Close()

	return fn(db)
}

func newDBStatsCmd(opts *rootOptions) *cobra.Command {
	var since time.Duration

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Count rows per table and recent errors per code",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withResults(cmd, opts, func(db *database.DB) error {
				out := cmd.OutOrStdout()

				version, err := db.GetVersion()
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "%s (schema %d)\n", db.Path(), version)

				stats, err := db.GetStats()
				if err != nil {
					return err
				}
				for _, table := range sortedKeys(stats) {
					fmt.Fprintf(out, "  %-14s %d\n", table, stats[table])
				}

				codes, err := db.GetErrorStatsByCode(time.Now().Add(-since))
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Errors in the last %s:\n", since)
				if len(codes) == 0 {
					fmt.Fprintln(out, "  none")
				}
				for _, code := range sortedKeys(codes) {
					label := code
					if label == "" {
						label = "(no code)"
					}
					fmt.Fprintf(out, "  %-24s %d\n", label, codes[code])
				}
				return nil
			})
		},
	}

	cmd.Flags().DurationVar(&since, "since", 24*time.Hour, "Window for the error counts")

	return cmd
}

func newDBErrorsCmd(opts *rootOptions) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "errors",
		Short: "List the newest recorded errors",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withResults(cmd, opts, func(db *database.DB) error {
				out := cmd.OutOrStdout()

				logs, err := db.GetRecentErrors(limit)
				if err != nil {
					return err
				}
				if len(logs) == 0 {
					fmt.Fprintln(out, "No errors recorded")
					return nil
				}
				for _, e := range logs {
					session := "-"
					if e.SessionID != nil {
						session = shortID(*e.SessionID)
					}
					code := ""
					if e.ErrorCode != nil {
						code = " [" + *e.ErrorCode + "]"
					}
					fmt.Fprintf(out, "%s  %-8s  %s%s: %s\n",
						e.OccurredAt.Format("2006-01-02 15:04:05"), session, e.Source, code, e.Message)
				}
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Number of errors to list")

	return cmd
}

func newDBBackupCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "backup <path>",
		Short: "Write a consistent copy of the database",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withResults(cmd, opts, func(db *database.DB) error {
				if err := db.Backup(args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Backed up %s to %s\n", db.Path(), args[0])
				return nil
			})
		},
	}
}

func newDBVacuumCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "vacuum",
		Short: "Reclaim space left by deleted sessions and errors",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withResults(cmd, opts, func(db *database.DB) error {
				if err := db.Vacuum(); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Vacuumed %s\n", db.Path())
				return nil
			})
		},
	}
}

func newDBPruneCmd(opts *rootOptions) *cobra.Command {
	var olderThan time.Duration

	cmd := &cobra.Command{
		Use:     "prune",
		Short:   "Delete recorded errors older than a duration",
		Example: `  screenmapper db prune --older-than 720h`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if olderThan <= 0 {
				return fmt.Errorf("--older-than must be positive, got %s", olderThan)
			}
			return withResults(cmd, opts, func(db *database.DB) error {
				deleted, err := db.DeleteOldErrors(time.Now().Add(-olderThan))
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d error(s) older than %s\n", deleted, olderThan)
				return nil
			})
		},
	}

	cmd.Flags().DurationVar(&olderThan, "older-than", 30*24*time.Hour, "Age of the oldest error kept")

	return cmd
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
