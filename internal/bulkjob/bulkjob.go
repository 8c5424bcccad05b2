// Package bulkjob submits registry bulk jobs and waits for them to reach a
// terminal status.
package bulkjob

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	znmetrics "github.com/yourorg/hubsync/internal/metrics"
	"github.com/yourorg/hubsync/internal/retry"
	"github.com/yourorg/hubsync/internal/types"
)

var (
	// ErrAbortedByCaller is returned when the caller's context ends the wait.
	// The remote job keeps running on the service.
	ErrAbortedByCaller = errors.New("aborted by caller")
	// ErrNoJobID is returned for a job handle without an id.
	ErrNoJobID = errors.New("job has no id")
)

// JobGetter reads job state by id.
type JobGetter interface {
	GetJob(ctx context.Context, id string) (types.Job, error)
}

// Registry is the bulk job surface of one registry service.
type Registry interface {
	JobGetter
	CreateExportJob(ctx context.Context, outputURI string, excludeKeys bool) (types.Job, error)
	CreateImportJob(ctx context.Context, inputURI, outputURI string) (types.Job, error)
}

// Submitter starts export and import jobs.
type Submitter struct {
	retry *retry.Runner
	log   *zap.Logger
}

// NewSubmitter returns a Submitter that retries submission with r.
// A nil runner submits once.
func NewSubmitter(r *retry.Runner, log *zap.Logger) *Submitter {
	if log == nil {
		log = zap.NewNop()
	}
	if r == nil {
		r = retry.NewRunner(retry.None, log)
	}
	return &Submitter{retry: r, log: log}
}

// SubmitExport asks reg to export every identity into destinationURI.
func (s *Submitter) SubmitExport(ctx context.Context, reg Registry, destinationURI string, excludeKeys bool) (types.Job, error) {
	var job types.Job
	err := s.retry.Do(ctx, "submit export", func(ctx context.Context) error {
		j, err := reg.CreateExportJob(ctx, destinationURI, excludeKeys)
		if err != nil {
			return err
		}
		job = j
		return nil
	})
	if err != nil {
		return types.Job{}, fmt.Errorf("submit export: %w", err)
	}
	return s.submitted(job, types.JobKindExport), nil
}

// SubmitImport asks reg to import the identities at inputURI, writing its
// processing log to outputURI.
func (s *Submitter) SubmitImport(ctx context.Context, reg Registry, inputURI, outputURI string) (types.Job, error) {
	var job types.Job
	err := s.retry.Do(ctx, "submit import", func(ctx context.Context) error {
		j, err := reg.CreateImportJob(ctx, inputURI, outputURI)
		if err != nil {
			return err
		}
		job = j
		return nil
	})
	if err != nil {
		return types.Job{}, fmt.Errorf("submit import: %w", err)
	}
	return s.submitted(job, types.JobKindImport), nil
}

func (s *Submitter) submitted(job types.Job, kind types.JobKind) types.Job {
	if job.Kind == "" {
		job.Kind = kind
	}
	znmetrics.JobSubmissions.WithLabelValues(string(kind)).Inc()
	s.log.Info("job submitted",
		zap.String("jobId", job.ID),
		zap.String("kind", string(job.Kind)),
		zap.String("status", string(job.Status)),
	)
	return job
}
