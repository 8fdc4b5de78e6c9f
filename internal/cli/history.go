package cli

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/giftswap/internal/config"
	"github.com/roach88/giftswap/internal/store"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	Database string
	Limit    int
}

// HistoryResult holds audit entries, newest first.
type HistoryResult struct {
	Database string        `json:"database"`
	Entries  []store.Entry `json:"entries"`
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent commits from the audit log",
		Long: `Show the most recent durable commits recorded in the SQLite audit log.

Each entry lists the operation, the participant count and event flags after
the commit. Names, tokens and assignments are never recorded.

Examples:
  giftswap history --db ./data/audit.db
  giftswap history --db ./data/audit.db --limit 5 --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "audit database path (defaults to GIFTSWAP_AUDIT_DB)")
	cmd.Flags().IntVarP(&opts.Limit, "limit", "n", 20, "maximum number of entries")

	return cmd
}

func runHistory(opts *HistoryOptions, cmd *cobra.Command) error {
	path := opts.Database
	if path == "" {
		cfg, err := config.Load()
		if err != nil {
			return WrapExitError(ExitCommandError, "invalid configuration", err)
		}
		path = cfg.AuditDB
	}
	if path == "" {
		return NewExitError(ExitCommandError, "no audit database: pass --db or set GIFTSWAP_AUDIT_DB")
	}
	if opts.Limit <= 0 {
		return NewExitError(ExitCommandError, fmt.Sprintf("invalid limit %d: must be positive", opts.Limit))
	}

	// OpenAudit would create a missing database.
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return NewExitError(ExitCommandError, fmt.Sprintf("audit database not found: %s", path))
	}

	audit, err := store.OpenAudit(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open audit database", err)
	}
	defer audit.Close()

	entries, err := audit.Recent(context.Background(), opts.Limit)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read audit log", err)
	}
	if entries == nil {
		entries = []store.Entry{}
	}
	result := HistoryResult{Database: path, Entries: entries}

	if opts.Format == "json" {
		return newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr()).Success(result)
	}
	return outputHistoryText(cmd, result)
}

func outputHistoryText(cmd *cobra.Command, r HistoryResult) error {
	w := cmd.OutOrStdout()
	if len(r.Entries) == 0 {
		fmt.Fprintln(w, "No commits recorded.")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SEQ\tOP\tPARTICIPANTS\tREGISTRATION\tREADY\tCOMMITTED\tID")
	for _, e := range r.Entries {
		fmt.Fprintf(tw, "%d\t%s\t%d\t%s\t%s\t%s\t%s\n",
			e.Seq,
			e.Op,
			e.Participants,
			openClosed(e.RegistrationOpen),
			yesNo(e.AssignmentsReady),
			e.CommittedAt.UTC().Format(store.TimeLayout),
			e.ID,
		)
	}
	return tw.Flush()
}
