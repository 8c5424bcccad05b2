// Package orchestrator runs one export-then-import sync between two
// registries through a scoped storage container.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/yourorg/hubsync/internal/bulkjob"
	znmetrics "github.com/yourorg/hubsync/internal/metrics"
	"github.com/yourorg/hubsync/internal/normalize"
	"github.com/yourorg/hubsync/internal/storage"
	"github.com/yourorg/hubsync/internal/types"
)

// DefaultContainer is the container shared by the export and the import.
const DefaultContainer = "deviceidentities"

// DefaultImportOutputContainer receives the import job's processing log.
const DefaultImportOutputContainer = "deviceidentities-results"

// Config is fixed for the lifetime of an Orchestrator.
type Config struct {
	Container string
	// ImportOutputContainer receives the import log. Empty, or equal to
	// Container, reuses the input location.
	ImportOutputContainer string
	TTL                   time.Duration
	Permissions           types.Permissions
}

// DefaultConfig returns the standard handoff: read/write/delete for one hour.
func DefaultConfig() Config {
	return Config{
		Container:             DefaultContainer,
		ImportOutputContainer: DefaultImportOutputContainer,
		TTL:                   storage.DefaultTTL,
		Permissions:           storage.DefaultPermissions,
	}
}

func (c Config) validate() error {
	if err := normalize.ContainerName(c.Container); err != nil {
		return fmt.Errorf("%w: container: %w", ErrInvalidConfig, err)
	}
	if c.ImportOutputContainer != "" {
		if err := normalize.ContainerName(c.ImportOutputContainer); err != nil {
			return fmt.Errorf("%w: import output container: %w", ErrInvalidConfig, err)
		}
	}
	if c.TTL <= 0 {
		return fmt.Errorf("%w: ttl must be positive", ErrInvalidConfig)
	}
	if c.Permissions == 0 {
		return fmt.Errorf("%w: no permissions", ErrInvalidConfig)
	}
	return nil
}

func (c Config) separateOutput() bool {
	return c.ImportOutputContainer != "" && c.ImportOutputContainer != c.Container
}

// Deps are the collaborators of an Orchestrator. Storage, Source and
// Destination are required.
type Deps struct {
	Storage     storage.Provisioner
	Source      bulkjob.Registry
	Destination bulkjob.Registry
	Submitter   *bulkjob.Submitter
	Poller      *bulkjob.Poller
	Log         *zap.Logger
	Now         func() time.Time
	NewRunID    func() string
}

// Orchestrator drives Idle → Provisioning → Exporting → Importing → Done,
// leaving for Aborted on any failure.
type Orchestrator struct {
	cfg       Config
	storage   storage.Provisioner
	source    bulkjob.Registry
	dest      bulkjob.Registry
	submitter *bulkjob.Submitter
	poller    *bulkjob.Poller
	log       *zap.Logger
	now       func() time.Time
	newRunID  func() string
}

// New validates cfg and fills unset deps with defaults.
func New(cfg Config, d Deps) (*Orchestrator, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if d.Storage == nil || d.Source == nil || d.Destination == nil {
		return nil, fmt.Errorf("%w: storage, source and destination are required", ErrInvalidConfig)
	}
	o := &Orchestrator{
		cfg:       cfg,
		storage:   d.Storage,
		source:    d.Source,
		dest:      d.Destination,
		submitter: d.Submitter,
		poller:    d.Poller,
		log:       d.Log,
		now:       d.Now,
		newRunID:  d.NewRunID,
	}
	if o.log == nil {
		o.log = zap.NewNop()
	}
	if o.submitter == nil {
		o.submitter = bulkjob.NewSubmitter(nil, o.log)
	}
	if o.poller == nil {
		o.poller = bulkjob.NewPoller(nil, o.log)
	}
	if o.now == nil {
		o.now = time.Now
	}
	if o.newRunID == nil {
		o.newRunID = uuid.NewString
	}
	return o, nil
}

// run is the mutable state of one Run call.
type run struct {
	o       *Orchestrator
	report  types.RunReport
	entered time.Time
}

func (r *run) enter(s types.RunState) {
	now := r.o.now()
	r.leave(now)
	r.report.State = s
	r.entered = now
	r.o.log.Info("run state", zap.String("runId", r.report.RunID), zap.String("state", string(s)))
}

func (r *run) leave(now time.Time) {
	switch r.report.State {
	case types.StateProvisioning, types.StateExporting, types.StateImporting:
		d := now.Sub(r.entered)
		r.report.Durations[r.report.State] += d
		znmetrics.PhaseSeconds.WithLabelValues(string(r.report.State)).Observe(d.Seconds())
	}
}

// Run performs one sync. The report is complete in every case; the error is
// non-nil exactly when the run ends Aborted and matches ErrJobFailed,
// bulkjob.ErrAbortedByCaller or a transport failure.
func (o *Orchestrator) Run(ctx context.Context) (types.RunReport, error) {
	r := &run{o: o, report: types.RunReport{
		RunID:     o.newRunID(),
		State:     types.StateIdle,
		StartedAt: o.now(),
		Durations: map[types.RunState]time.Duration{},
	}}
	err := r.steps(ctx)
	return r.finish(ctx, err)
}

func (r *run) steps(ctx context.Context) error {
	o := r.o

	r.enter(types.StateProvisioning)
	loc, err := o.provision(ctx, o.cfg.Container)
	if err != nil {
		return err
	}
	r.report.Location = redacted(loc)
	outputURI := loc.URI
	if o.cfg.separateOutput() {
		out, err := o.provision(ctx, o.cfg.ImportOutputContainer)
		if err != nil {
			return err
		}
		r.report.OutputLocation = redacted(out)
		outputURI = out.URI
	}

	r.enter(types.StateExporting)
	exp, err := o.submitter.SubmitExport(ctx, o.source, loc.URI, false)
	if err != nil {
		return err
	}
	r.report.ExportJob = &exp
	exp, err = o.poller.WaitUntilTerminal(ctx, o.source, exp)
	r.report.ExportJob = &exp
	if err != nil {
		return err
	}
	if exp.Status != types.JobStatusCompleted {
		return jobFailed(exp)
	}

	r.enter(types.StateImporting)
	imp, err := o.submitter.SubmitImport(ctx, o.dest, loc.URI, outputURI)
	if err != nil {
		return err
	}
	r.report.ImportJob = &imp
	imp, err = o.poller.WaitUntilTerminal(ctx, o.dest, imp)
	r.report.ImportJob = &imp
	if err != nil {
		return err
	}
	if imp.Status != types.JobStatusCompleted {
		return jobFailed(imp)
	}
	return nil
}

func (r *run) finish(ctx context.Context, err error) (types.RunReport, error) {
	rep := &r.report
	now := r.o.now()
	if err == nil {
		r.leave(now)
		rep.State = types.StateDone
		rep.Outcome = types.OutcomeSucceeded
	} else {
		if ctx.Err() != nil && !errors.Is(err, bulkjob.ErrAbortedByCaller) {
			err = fmt.Errorf("%w: %w", bulkjob.ErrAbortedByCaller, err)
		}
		r.leave(now)
		rep.FailedAt = rep.State
		rep.State = types.StateAborted
		rep.Outcome = Classify(err)
		rep.Error = err.Error()
	}
	rep.FinishedAt = now
	znmetrics.Runs.WithLabelValues(string(rep.Outcome)).Inc()

	fields := []zap.Field{
		zap.String("runId", rep.RunID),
		zap.String("outcome", string(rep.Outcome)),
		zap.Duration("elapsed", rep.FinishedAt.Sub(rep.StartedAt)),
	}
	if err != nil {
		r.o.log.Error("run aborted", append(fields, zap.String("failedAt", string(rep.FailedAt)), zap.Error(err))...)
		return *rep, err
	}
	r.o.log.Info("done", fields...)
	return *rep, nil
}

// Classify maps a run error onto its outcome.
func Classify(err error) types.Outcome {
	switch {
	case err == nil:
		return types.OutcomeSucceeded
	case errors.Is(err, bulkjob.ErrAbortedByCaller), errors.Is(err, context.Canceled):
		return types.OutcomeAbortedByCaller
	case errors.Is(err, ErrJobFailed):
		return types.OutcomeJobFailed
	default:
		return types.OutcomeTransportError
	}
}

func jobFailed(j types.Job) error {
	if j.FailureReason != "" {
		return fmt.Errorf("%s job %s %s: %w: %s", j.Kind, j.ID, j.Status, ErrJobFailed, j.FailureReason)
	}
	return fmt.Errorf("%s job %s %s: %w", j.Kind, j.ID, j.Status, ErrJobFailed)
}

// provision ensures name exists and issues a scoped URI on it, then checks
// that the token round-trips to the grant that was asked for.
func (o *Orchestrator) provision(ctx context.Context, name string) (types.ScopedLocation, error) {
	ref, err := o.storage.EnsureContainer(ctx, name)
	if err != nil {
		return types.ScopedLocation{}, fmt.Errorf("provision: %w", err)
	}
	floor := o.now().UTC().Truncate(time.Second).Add(o.cfg.TTL)
	loc, err := o.storage.IssueScopedURI(ref, o.cfg.Permissions, o.cfg.TTL)
	if err != nil {
		return types.ScopedLocation{}, fmt.Errorf("provision: %w", err)
	}
	perms, exp, err := storage.DecodeScopedURI(loc.URI)
	if err != nil {
		return types.ScopedLocation{}, fmt.Errorf("%w: %w", ErrPreflight, err)
	}
	if perms != o.cfg.Permissions {
		return types.ScopedLocation{}, fmt.Errorf("%w: granted %q, want %q", ErrPreflight, perms, o.cfg.Permissions)
	}
	if exp.Before(floor) {
		return types.ScopedLocation{}, fmt.Errorf("%w: expiry %s earlier than %s", ErrPreflight, exp.Format(time.RFC3339), floor.Format(time.RFC3339))
	}
	o.log.Info("scoped uri issued",
		zap.String("container", loc.Container),
		zap.String("uri", storage.Redact(loc.URI)),
		zap.String("permissions", loc.Permissions.String()),
		zap.Time("expiry", loc.Expiry),
	)
	return loc, nil
}

func redacted(l types.ScopedLocation) *types.ScopedLocation {
	l.URI = ""
	return &l
}
