// Package retry runs registry and storage calls under a bounded exponential
// backoff policy with jitter.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"net"
	"net/http"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"go.uber.org/zap"
)

// Policy configures attempts and delays. MaxAttempts includes the first try.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	// Jitter is the +/- fraction applied to each delay, e.g. 0.25.
	Jitter float64
}

// Default is 5 attempts starting at 500ms, capped at 30s, with 25% jitter.
var Default = Policy{
	MaxAttempts: 5,
	BaseDelay:   500 * time.Millisecond,
	MaxDelay:    30 * time.Second,
	Jitter:      0.25,
}

// None performs a single attempt.
var None = Policy{MaxAttempts: 1}

// Delay returns the wait before attempt+1, where attempt is 1-based.
func (p Policy) Delay(attempt int, rng *rand.Rand) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := float64(p.BaseDelay) * math.Pow(2, float64(attempt-1))
	if p.Jitter > 0 && rng != nil {
		d += d * p.Jitter * (2*rng.Float64() - 1)
	}
	if p.MaxDelay > 0 && d > float64(p.MaxDelay) {
		d = float64(p.MaxDelay)
	}
	if d < 0 {
		d = 0
	}
	return time.Duration(d)
}

// Permanent marks err as not worth retrying regardless of its shape.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// StatusCoder is implemented by transport errors that carry an HTTP status.
type StatusCoder interface {
	HTTPStatus() int
}

// Retryable classifies err. Network failures, 408, 429 and 5xx responses
// are retryable; other 4xx (including authorization failures from an expired
// token), cancellation and anything marked Permanent are not.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	var pe *permanentError
	if errors.As(err, &pe) {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var sc StatusCoder
	if errors.As(err, &sc) {
		return retryableStatus(sc.HTTPStatus())
	}
	var re *azcore.ResponseError
	if errors.As(err, &re) {
		return retryableStatus(re.StatusCode)
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return true
	}
	var oe *net.OpError
	return errors.As(err, &oe)
}

func retryableStatus(code int) bool {
	switch {
	case code == http.StatusRequestTimeout, code == http.StatusTooManyRequests:
		return true
	case code >= 500:
		return true
	default:
		return false
	}
}

// Sleeper waits for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// Sleep is the wall-clock Sleeper.
func Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Runner executes operations under a policy.
type Runner struct {
	Policy  Policy
	Log     *zap.Logger
	Sleep   Sleeper
	OnRetry func(op string) // metrics hook
	rng     *rand.Rand
}

// NewRunner returns a Runner using wall-clock sleeps.
func NewRunner(p Policy, log *zap.Logger) *Runner {
	if log == nil {
		log = zap.NewNop()
	}
	return &Runner{
		Policy: p,
		Log:    log,
		Sleep:  Sleep,
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// ErrExhausted wraps the last error once every attempt has failed.
var ErrExhausted = errors.New("retry attempts exhausted")

// Do calls fn until it succeeds, returns a non-retryable error, the attempt
// budget runs out, or ctx is done.
func (r *Runner) Do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	attempts := r.Policy.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	sleep := r.Sleep
	if sleep == nil {
		sleep = Sleep
	}
	var err error
	for attempt := 1; ; attempt++ {
		err = fn(ctx)
		if err == nil {
			return nil
		}
		if !Retryable(err) {
			return err
		}
		if attempt >= attempts {
			if attempts == 1 {
				return err
			}
			return fmt.Errorf("%s: %w after %d attempts: %w", op, ErrExhausted, attempt, err)
		}
		d := r.Policy.Delay(attempt, r.rng)
		r.Log.Warn("retrying",
			zap.String("op", op),
			zap.Int("attempt", attempt),
			zap.Duration("delay", d),
			zap.Error(err),
		)
		if r.OnRetry != nil {
			r.OnRetry(op)
		}
		if serr := sleep(ctx, d); serr != nil {
			return serr
		}
	}
}
