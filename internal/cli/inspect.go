package cli

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"jordanella.com/screen-mapper/internal/database"
	"jordanella.com/screen-mapper/internal/library"
)

func newInspectCmd(opts *rootOptions) *cobra.Command {
	var (
		sessions int
		rule     string
		history  int
	)

	cmd := &cobra.Command{
		Use:   "inspect <library.go>",
		Short: "Show a library and its recorded sessions",
		Example: `  screenmapper inspect libs/hud.go
  screenmapper inspect libs/hud.go --sessions 5
  screenmapper inspect libs/hud.go --rule score --history 20`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			lib, err := library.Load(args[0])
			if err != nil {
				return err
			}
			if rule != "" {
				if _, ok := lib.Rule(rule); !ok {
					return fmt.Errorf("no rule named %q", rule)
				}
			}
			out := cmd.OutOrStdout()
			printLibrary(out, lib)

			if sessions <= 0 && rule == "" {
				return nil
			}

			env, err := opts.load(cmd)
			if err != nil {
				return err
			}
			defer env.close()

			db, err := openResults(env)
			if errors.Is(err, errNoDatabase) {
				fmt.Fprintf(out, "\nNo results database at %s\n", env.cfg.DatabasePath)
				return nil
			}
			if err != nil {
				return err
			}
			defer db.Close()

			if sessions > 0 {
				if err := printSessions(cmd, db, args[0], sessions); err != nil {
					return err
				}
			}
			if rule != "" {
				return printRuleHistory(cmd, db, rule, history)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&sessions, "sessions", 0, "Also list this many recorded sessions of the library")
	cmd.Flags().StringVar(&rule, "rule", "", "Also show the recorded results of this rule")
	cmd.Flags().IntVar(&history, "history", 10, "Number of results shown with --rule (0 shows all)")

	return cmd
}

var errNoDatabase = errors.New("no results database")

// openResults opens the results database named in the settings. It does not
// create one.
func openResults(env *environment) (*database.DB, error) {
	if _, err := os.Stat(env.cfg.DatabasePath); errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w at %s", errNoDatabase, env.cfg.DatabasePath)
	}
	return database.OpenAndMigrate(env.cfg.DatabasePath, env.logger.Named("database"))
}

// printSessions lists the newest recorded sessions of libraryPath with their
// failing rules
func printSessions(cmd *cobra.Command, db *database.DB, libraryPath string, limit int) error {
	out := cmd.OutOrStdout()

	all, err := db.ListSessions(0)
	if err != nil {
		return err
	}

	fmt.Fprintln(out, "\nSessions:")
	shown := 0
	for _, s := range all {
		if s.Library != libraryPath {
			continue
		}
		if shown == limit {
			break
		}
		shown++

		state := "running"
		if !s.Running() {
			state = fmt.Sprintf("%d ticks", s.Ticks)
		}
		fmt.Fprintf(out, "  %s  %s  every %dms  %s  %s\n",
			s.StartedAt.Format("2006-01-02 15:04:05"), shortID(s.ID), s.PeriodMs, state, s.Folder)

		failures, err := db.RuleFailureCounts(s.ID)
		if err != nil {
			return err
		}
		names := make([]string, 0, len(failures))
		for name := range failures {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintf(out, "    %s failed %d time(s)\n", name, failures[name])
		}
	}
	if shown == 0 {
		fmt.Fprintln(out, "  none recorded")
	}
	return nil
}

// printRuleHistory lists the newest recorded results of a rule, newest first
func printRuleHistory(cmd *cobra.Command, db *database.DB, rule string, limit int) error {
	out := cmd.OutOrStdout()

	results, err := db.RuleHistory(rule, limit)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "\nHistory of %s:\n", rule)
	if len(results) == 0 {
		fmt.Fprintln(out, "  none recorded")
		return nil
	}
	for _, r := range results {
		fmt.Fprintf(out, "  %s  %s  tick %-4d %s\n",
			r.CapturedAt.Format("2006-01-02 15:04:05"), shortID(r.SessionID), r.Tick, formatRecorded(r))
	}
	return nil
}

// formatRecorded renders a stored result the way eval prints a live one
func formatRecorded(r *database.RuleResult) string {
	switch {
	case r.Failed():
		return "error: " + *r.Error
	case r.Number != nil:
		return strconv.FormatFloat(*r.Number, 'g', -1, 64)
	case r.Text != nil:
		return strconv.Quote(*r.Text)
	default:
		parts := make([]string, len(r.Matches))
		for i, p := range r.Matches {
			parts[i] = fmt.Sprintf("(%d, %d)", p.X, p.Y)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
