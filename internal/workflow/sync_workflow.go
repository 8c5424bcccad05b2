package workflow

import (
	"errors"
	"fmt"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/yourorg/hubsync/internal/activities"
	"github.com/yourorg/hubsync/internal/bulkjob"
	"github.com/yourorg/hubsync/internal/orchestrator"
	"github.com/yourorg/hubsync/internal/storage"
	"github.com/yourorg/hubsync/internal/types"
)

// SyncWorkflow runs one export-then-import sync as a workflow. The report is
// the result for every outcome except cancellation, which also fails the
// workflow as cancelled.
func SyncWorkflow(ctx workflow.Context, p types.SyncParams) (types.RunReport, error) {
	ao := workflow.ActivityOptions{
		StartToCloseTimeout: 2 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    5 * time.Second,
			BackoffCoefficient: 2.0,
			MaximumAttempts:    3,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, ao)
	logger := workflow.GetLogger(ctx)

	if p.Container == "" {
		p.Container = orchestrator.DefaultContainer
	}
	if p.TTL <= 0 {
		p.TTL = storage.DefaultTTL
	}
	if p.RunID == "" {
		p.RunID = workflow.GetInfo(ctx).WorkflowExecution.ID
	}

	s := &syncRun{ctx: ctx, p: p, report: types.RunReport{
		RunID:     p.RunID,
		State:     types.StateIdle,
		StartedAt: workflow.Now(ctx),
		Durations: map[types.RunState]time.Duration{},
	}}
	err := s.steps()

	rep := &s.report
	now := workflow.Now(ctx)
	s.leave(now)
	rep.FinishedAt = now
	if err == nil {
		rep.State = types.StateDone
		rep.Outcome = types.OutcomeSucceeded
		logger.Info("done", "runId", rep.RunID)
		return *rep, nil
	}
	rep.FailedAt = rep.State
	rep.State = types.StateAborted
	rep.Error = err.Error()
	if temporal.IsCanceledError(err) || errors.Is(err, workflow.ErrCanceled) {
		rep.Outcome = types.OutcomeAbortedByCaller
		logger.Warn("run cancelled", "runId", rep.RunID, "failedAt", string(rep.FailedAt))
		return *rep, err
	}
	rep.Outcome = orchestrator.Classify(err)
	logger.Error("run aborted", "runId", rep.RunID, "failedAt", string(rep.FailedAt), "error", err)
	return *rep, nil
}

type syncRun struct {
	ctx     workflow.Context
	p       types.SyncParams
	report  types.RunReport
	entered time.Time
}

func (s *syncRun) enter(st types.RunState) {
	now := workflow.Now(s.ctx)
	s.leave(now)
	s.report.State = st
	s.entered = now
	workflow.GetLogger(s.ctx).Info("run state", "runId", s.report.RunID, "state", string(st))
}

func (s *syncRun) leave(now time.Time) {
	switch s.report.State {
	case types.StateProvisioning, types.StateExporting, types.StateImporting:
		s.report.Durations[s.report.State] += now.Sub(s.entered)
	}
}

func (s *syncRun) steps() error {
	ctx := s.ctx

	s.enter(types.StateProvisioning)
	var in types.ProvisionResult
	pp := types.ProvisionParams{Container: s.p.Container, Permissions: storage.DefaultPermissions, TTL: s.p.TTL}
	if err := workflow.ExecuteActivity(ctx, activities.ProvisionStorageName, pp).Get(ctx, &in); err != nil {
		return err
	}
	loc := in.Location
	s.report.Location = &loc
	outputURI := in.URI
	if oc := s.p.ImportOutputContainer; oc != "" && oc != s.p.Container {
		var out types.ProvisionResult
		pp.Container = oc
		if err := workflow.ExecuteActivity(ctx, activities.ProvisionStorageName, pp).Get(ctx, &out); err != nil {
			return err
		}
		outLoc := out.Location
		s.report.OutputLocation = &outLoc
		outputURI = out.URI
	}

	s.enter(types.StateExporting)
	var exp types.Job
	if err := workflow.ExecuteActivity(ctx, activities.SubmitExportName, types.ExportParams{OutputURI: in.URI}).Get(ctx, &exp); err != nil {
		return err
	}
	s.report.ExportJob = &exp
	if err := s.wait(types.HubSource, &exp); err != nil {
		return err
	}
	if exp.Status != types.JobStatusCompleted {
		return fmt.Errorf("export job %s %s: %w", exp.ID, exp.Status, orchestrator.ErrJobFailed)
	}

	s.enter(types.StateImporting)
	var imp types.Job
	ip := types.ImportParams{InputURI: in.URI, OutputURI: outputURI}
	if err := workflow.ExecuteActivity(ctx, activities.SubmitImportName, ip).Get(ctx, &imp); err != nil {
		return err
	}
	s.report.ImportJob = &imp
	if err := s.wait(types.HubDestination, &imp); err != nil {
		return err
	}
	if imp.Status != types.JobStatusCompleted {
		return fmt.Errorf("import job %s %s: %w", imp.ID, imp.Status, orchestrator.ErrJobFailed)
	}
	return nil
}

// wait polls job until terminal, updating it in place.
func (s *syncRun) wait(hub types.HubSide, job *types.Job) error {
	ctx := s.ctx
	kind := job.Kind
	for {
		var cur types.Job
		gp := types.GetJobParams{Hub: hub, JobID: job.ID}
		if err := workflow.ExecuteActivity(ctx, activities.GetJobName, gp).Get(ctx, &cur); err != nil {
			return err
		}
		if cur.Kind == "" {
			cur.Kind = kind
		}
		*job = cur
		if cur.Status.Terminal() {
			return nil
		}
		if err := workflow.Sleep(ctx, bulkjob.PollInterval); err != nil {
			return err
		}
	}
}
