package cli

import (
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.temporal.io/sdk/client"
	"go.uber.org/zap"

	"github.com/yourorg/hubsync/internal/types"
	"github.com/yourorg/hubsync/internal/workflow"
)

func newSubmitCommand(rootOpts *RootOptions) *cobra.Command {
	var runID string

	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Start the sync as a Temporal workflow and wait for its report",
		Long: `Start SyncWorkflow on TEMPORAL_TASK_QUEUE and wait for the run report.
A worker (cmd/worker) must be polling the queue.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := rootOpts.Config
			if runID == "" {
				runID = uuid.NewString()
			}
			c, err := client.Dial(client.Options{HostPort: cfg.TemporalAddress, Namespace: cfg.TemporalNamespace})
			if err != nil {
				return WrapExitError(ExitCommandError, "temporal client", err)
			}
			defer c.Close()

			ctx := cmd.Context()
			we, err := c.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
				ID:        "hubsync-" + runID,
				TaskQueue: cfg.TemporalTaskQueue,
			}, workflow.SyncWorkflow, cfg.SyncParams(runID))
			if err != nil {
				return WrapExitError(ExitFailure, "start workflow", err)
			}
			rootOpts.Log.Info("workflow started", zap.String("workflowId", we.GetID()), zap.String("runId", we.GetRunID()))

			var rep types.RunReport
			if err := we.Get(ctx, &rep); err != nil {
				if ctx.Err() != nil {
					return WrapExitError(ExitInterrupted, "wait for workflow", err)
				}
				return WrapExitError(ExitFailure, "workflow failed", err)
			}
			if err := printReport(cmd.OutOrStdout(), rootOpts.Format, rep); err != nil {
				return err
			}
			if code := outcomeExit(rep.Outcome); code != ExitSuccess {
				return WrapExitError(code, "sync aborted", errString(rep.Error))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&runID, "run-id", "", "run id (default: random uuid)")
	return cmd
}

type errString string

func (e errString) Error() string { return string(e) }
