package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/yourorg/hubsync/internal/bulkjob"
	"github.com/yourorg/hubsync/internal/iopkg"
	"github.com/yourorg/hubsync/internal/journal"
	"github.com/yourorg/hubsync/internal/orchestrator"
	"github.com/yourorg/hubsync/internal/types"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	ListSource            bool
	Container             string
	TTL                   time.Duration
	ImportOutputContainer string
	Report                string
	PageSize              int
}

func newRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Export from the source registry and import into the destination",
		Long: `Run one sync: provision the container, issue a scoped URI, export every
identity from the source registry, then import the same artifact into the
destination registry. The run report is printed on completion.

Example:
  devsync run
  devsync run --container devices-2026 --ttl 2h --report s3://audit/runs/latest.json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(cmd, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.ListSource, "list-source", false, "print source device ids before syncing")
	cmd.Flags().StringVar(&opts.Container, "container", "", "container name (overrides HUBSYNC_CONTAINER)")
	cmd.Flags().DurationVar(&opts.TTL, "ttl", 0, "scoped uri lifetime (overrides HUBSYNC_SAS_TTL)")
	cmd.Flags().StringVar(&opts.ImportOutputContainer, "import-output-container", "", `import log container, "-" reuses the input container`)
	cmd.Flags().StringVar(&opts.Report, "report", "", "also write the report to this file:// or s3:// uri")
	cmd.Flags().IntVar(&opts.PageSize, "page-size", 100, "device query page size for --list-source")
	return cmd
}

func runSync(cmd *cobra.Command, opts *RunOptions) error {
	ctx := cmd.Context()
	cfg := opts.Config
	if opts.Container != "" {
		cfg.Container = opts.Container
	}
	if opts.TTL != 0 {
		cfg.SASTTL = opts.TTL
	}
	if opts.ImportOutputContainer != "" {
		cfg.ImportOutputContainer = opts.ImportOutputContainer
	}
	if opts.Report != "" {
		cfg.ReportURI = opts.Report
	}
	if err := cfg.Validate(); err != nil {
		return WrapExitError(ExitCommandError, "invalid configuration", err)
	}
	log := opts.Log

	prov, err := openStorage(cfg, log)
	if err != nil {
		return WrapExitError(ExitCommandError, "open storage", err)
	}
	src, err := openHub(cfg, types.HubSource, log)
	if err != nil {
		return WrapExitError(ExitCommandError, "open source registry", err)
	}
	dst, err := openHub(cfg, types.HubDestination, log)
	if err != nil {
		return WrapExitError(ExitCommandError, "open destination registry", err)
	}

	if opts.ListSource {
		if err := printDevices(cmd, src, opts.PageSize, opts.Format); err != nil {
			return WrapExitError(outcomeExitForErr(ctx.Err()), "list source devices", err)
		}
	}

	r := newRetry(log)
	o, err := orchestrator.New(cfg.Orchestrator(), orchestrator.Deps{
		Storage:     prov,
		Source:      src.jobs,
		Destination: dst.jobs,
		Submitter:   bulkjob.NewSubmitter(r, log),
		Poller:      bulkjob.NewPoller(r, log, bulkjob.WithSleeper(pollSleeper)),
		Log:         log,
	})
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid configuration", err)
	}

	rep, runErr := o.Run(ctx)

	if cfg.JournalDir != "" {
		if err := recordRun(cfg.JournalDir, rep); err != nil {
			log.Warn("journal write failed", zap.Error(err))
		}
	}
	if cfg.ReportURI != "" {
		// Written even after cancellation.
		if err := iopkg.WriteReport(context.WithoutCancel(ctx), cfg.ReportURI, rep); err != nil {
			log.Warn("report write failed", zap.String("uri", cfg.ReportURI), zap.Error(err))
		}
	}
	if err := printReport(cmd.OutOrStdout(), opts.Format, rep); err != nil {
		return err
	}
	if runErr != nil {
		return WrapExitError(outcomeExit(rep.Outcome), "sync aborted", runErr)
	}
	return nil
}

func outcomeExitForErr(err error) int {
	if err != nil {
		return ExitInterrupted
	}
	return ExitFailure
}

func recordRun(dir string, rep types.RunReport) error {
	j, err := journal.Open(dir)
	if err != nil {
		return err
	}
	defer j.Close()
	return j.Record(rep)
}

func printReport(w io.Writer, format string, rep types.RunReport) error {
	if format == "json" {
		return writeJSON(w, rep)
	}
	fmt.Fprintf(w, "run %s: %s (%s)\n", rep.RunID, rep.State, rep.Outcome)
	if rep.FailedAt != "" {
		fmt.Fprintf(w, "  failed at: %s\n", rep.FailedAt)
	}
	if rep.Error != "" {
		fmt.Fprintf(w, "  error: %s\n", rep.Error)
	}
	if rep.Location != nil {
		fmt.Fprintf(w, "  container: %s (expires %s)\n", rep.Location.Container, rep.Location.Expiry.Format(time.RFC3339))
	}
	for _, j := range []*types.Job{rep.ExportJob, rep.ImportJob} {
		if j != nil {
			fmt.Fprintf(w, "  %s job %s: %s\n", j.Kind, j.ID, j.Status)
		}
	}
	for _, s := range []types.RunState{types.StateProvisioning, types.StateExporting, types.StateImporting} {
		if d, ok := rep.Durations[s]; ok {
			fmt.Fprintf(w, "  %s: %s\n", s, d.Round(time.Millisecond))
		}
	}
	return nil
}
