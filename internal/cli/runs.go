package cli

import (
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/yourorg/hubsync/internal/journal"
)

func newRunsCommand(rootOpts *RootOptions) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Show recorded sync runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := rootOpts.Config.JournalDir
			if dir == "" {
				return WrapExitError(ExitCommandError, "runs", errors.New("HUBSYNC_JOURNAL_DIR is not set"))
			}
			j, err := journal.Open(dir)
			if err != nil {
				return WrapExitError(ExitFailure, "open journal", err)
			}
			defer j.Close()
			reps, err := j.List(limit)
			if err != nil {
				return WrapExitError(ExitFailure, "list runs", err)
			}
			w := cmd.OutOrStdout()
			if rootOpts.Format == "json" {
				return writeJSON(w, reps)
			}
			tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "RUN\tSTATE\tOUTCOME\tSTARTED\tELAPSED")
			for _, r := range reps {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", r.RunID, r.State, r.Outcome,
					r.StartedAt.UTC().Format(time.RFC3339), r.FinishedAt.Sub(r.StartedAt).Round(time.Second))
			}
			return tw.Flush()
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "maximum runs to show (0 for all)")
	return cmd
}
