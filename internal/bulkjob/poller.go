package bulkjob

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	znmetrics "github.com/yourorg/hubsync/internal/metrics"
	"github.com/yourorg/hubsync/internal/retry"
	"github.com/yourorg/hubsync/internal/types"
)

// PollInterval is the fixed delay between status checks.
const PollInterval = 5 * time.Second

// Poller drives a submitted job to a terminal status.
type Poller struct {
	retry *retry.Runner
	sleep retry.Sleeper
	log   *zap.Logger
}

// PollerOption customizes a Poller.
type PollerOption func(*Poller)

// WithSleeper replaces the wall-clock wait between checks.
func WithSleeper(s retry.Sleeper) PollerOption {
	return func(p *Poller) { p.sleep = s }
}

// NewPoller returns a Poller whose status checks are retried with r.
func NewPoller(r *retry.Runner, log *zap.Logger, opts ...PollerOption) *Poller {
	if log == nil {
		log = zap.NewNop()
	}
	if r == nil {
		r = retry.NewRunner(retry.None, log)
	}
	p := &Poller{retry: r, sleep: retry.Sleep, log: log}
	for _, o := range opts {
		o(p)
	}
	return p
}

// WaitUntilTerminal fetches job by id until it reports completed, failed or
// cancelled, waiting PollInterval between checks. There is no attempt cap;
// ctx is the only way to stop early, which yields ErrAbortedByCaller. A
// status check that fails after retries ends the wait with that error. The
// returned job is the last snapshot observed.
func (p *Poller) WaitUntilTerminal(ctx context.Context, reg JobGetter, job types.Job) (types.Job, error) {
	if job.ID == "" {
		return job, ErrNoJobID
	}
	last := job
	op := fmt.Sprintf("get %s job", job.Kind)
	for {
		if err := ctx.Err(); err != nil {
			return last, aborted(err)
		}
		var cur types.Job
		err := p.retry.Do(ctx, op, func(ctx context.Context) error {
			j, err := reg.GetJob(ctx, job.ID)
			if err != nil {
				return err
			}
			cur = j
			return nil
		})
		if err != nil {
			if cerr := ctx.Err(); cerr != nil {
				return last, aborted(cerr)
			}
			return last, fmt.Errorf("get job %s: %w", job.ID, err)
		}
		if cur.ID == "" {
			cur.ID = job.ID
		}
		if cur.Kind == "" {
			cur.Kind = job.Kind
		}
		last = cur

		znmetrics.JobPolls.WithLabelValues(string(cur.Kind)).Inc()
		p.log.Info("job status",
			zap.String("jobId", cur.ID),
			zap.String("kind", string(cur.Kind)),
			zap.String("status", string(cur.Status)),
			zap.Int("progress", cur.Progress),
		)
		if cur.Status.Terminal() {
			znmetrics.JobTerminal.WithLabelValues(string(cur.Kind), string(cur.Status)).Inc()
			return cur, nil
		}
		if err := p.sleep(ctx, PollInterval); err != nil {
			return last, aborted(err)
		}
	}
}

func aborted(err error) error {
	return fmt.Errorf("%w: %w", ErrAbortedByCaller, err)
}
