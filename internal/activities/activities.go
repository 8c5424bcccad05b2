// Package activities exposes the sync steps as Temporal activities.
package activities

import (
	"context"
	"errors"
	"fmt"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"
	"go.uber.org/zap"

	"github.com/yourorg/hubsync/internal/bulkjob"
	"github.com/yourorg/hubsync/internal/retry"
	"github.com/yourorg/hubsync/internal/storage"
	"github.com/yourorg/hubsync/internal/types"
)

// Registered activity names, matching workflow.ExecuteActivity calls.
const (
	ProvisionStorageName = "Activities.ProvisionStorage"
	SubmitExportName     = "Activities.SubmitExport"
	SubmitImportName     = "Activities.SubmitImport"
	GetJobName           = "Activities.GetJob"
)

// ErrUnknownHub is returned for a GetJob call naming neither registry.
var ErrUnknownHub = errors.New("unknown hub")

type Config struct {
	Storage     storage.Provisioner
	Source      bulkjob.Registry
	Destination bulkjob.Registry
	Log         *zap.Logger
}

type Activities struct {
	cfg       Config
	submitter *bulkjob.Submitter
}

// New returns activities bound to cfg. Activity retries are left to the
// workflow's RetryPolicy, so submissions run once per attempt.
func New(cfg Config) *Activities {
	return &Activities{cfg: cfg, submitter: bulkjob.NewSubmitter(nil, cfg.Log)}
}

// Registrar is satisfied by worker.Worker and the test workflow environment.
type Registrar interface {
	RegisterActivityWithOptions(a interface{}, options activity.RegisterOptions)
}

// Register registers every activity under its explicit name.
func Register(r Registrar, a *Activities) {
	r.RegisterActivityWithOptions(a.ProvisionStorage, activity.RegisterOptions{Name: ProvisionStorageName})
	r.RegisterActivityWithOptions(a.SubmitExport, activity.RegisterOptions{Name: SubmitExportName})
	r.RegisterActivityWithOptions(a.SubmitImport, activity.RegisterOptions{Name: SubmitImportName})
	r.RegisterActivityWithOptions(a.GetJob, activity.RegisterOptions{Name: GetJobName})
}

// ProvisionStorage ensures the container and issues a scoped URI on it.
func (a *Activities) ProvisionStorage(ctx context.Context, p types.ProvisionParams) (types.ProvisionResult, error) {
	ref, err := a.cfg.Storage.EnsureContainer(ctx, p.Container)
	if err != nil {
		return types.ProvisionResult{}, classify(err)
	}
	loc, err := a.cfg.Storage.IssueScopedURI(ref, p.Permissions, p.TTL)
	if err != nil {
		return types.ProvisionResult{}, temporal.NewNonRetryableApplicationError(err.Error(), "IssueScopedURI", err)
	}
	perms, _, err := storage.DecodeScopedURI(loc.URI)
	if err != nil || perms != p.Permissions {
		msg := fmt.Sprintf("scoped uri grants %q, want %q", perms, p.Permissions)
		return types.ProvisionResult{}, temporal.NewNonRetryableApplicationError(msg, "Preflight", err)
	}
	activity.GetLogger(ctx).Info("scoped uri issued",
		"container", loc.Container, "uri", storage.Redact(loc.URI), "expiry", loc.Expiry)
	return types.ProvisionResult{Location: loc, URI: loc.URI}, nil
}

func (a *Activities) SubmitExport(ctx context.Context, p types.ExportParams) (types.Job, error) {
	job, err := a.submitter.SubmitExport(ctx, a.cfg.Source, p.OutputURI, p.ExcludeKeys)
	if err != nil {
		return types.Job{}, classify(err)
	}
	activity.GetLogger(ctx).Info("export submitted", "jobId", job.ID)
	return job, nil
}

func (a *Activities) SubmitImport(ctx context.Context, p types.ImportParams) (types.Job, error) {
	job, err := a.submitter.SubmitImport(ctx, a.cfg.Destination, p.InputURI, p.OutputURI)
	if err != nil {
		return types.Job{}, classify(err)
	}
	activity.GetLogger(ctx).Info("import submitted", "jobId", job.ID)
	return job, nil
}

// GetJob returns one status snapshot; the workflow owns the poll loop.
func (a *Activities) GetJob(ctx context.Context, p types.GetJobParams) (types.Job, error) {
	var reg bulkjob.Registry
	switch p.Hub {
	case types.HubSource:
		reg = a.cfg.Source
	case types.HubDestination:
		reg = a.cfg.Destination
	default:
		return types.Job{}, temporal.NewNonRetryableApplicationError(string(p.Hub), "UnknownHub", ErrUnknownHub)
	}
	job, err := reg.GetJob(ctx, p.JobID)
	if err != nil {
		return types.Job{}, classify(err)
	}
	if job.ID == "" {
		job.ID = p.JobID
	}
	activity.GetLogger(ctx).Info("job status",
		"jobId", job.ID, "hub", string(p.Hub), "status", string(job.Status), "progress", job.Progress)
	return job, nil
}

// classify stops Temporal from retrying errors the registry will answer the
// same way again.
func classify(err error) error {
	if retry.Retryable(err) {
		return err
	}
	return temporal.NewNonRetryableApplicationError(err.Error(), "Terminal", err)
}
