package retry

import (
	"context"
	"time"

	"github.com/jpillora/backoff"

	"github.com/voicestack/voicestack/internal/logger"
)

// Policy bounds a retried operation: at most MaxAttempts invocations, with
// the delay between failures starting at InitialDelay and multiplying by
// BackoffFactor after each one.
type Policy struct {
	MaxAttempts   int
	InitialDelay  time.Duration
	BackoffFactor float64
}

// Executor re-invokes fallible operations according to a Policy. Connection
// setup, message fetch and move/delete each get their own Executor with a
// budget matched to how transient their failures tend to be.
type Executor struct {
	policy    Policy
	log       logger.Logger
	retryable func(error) bool
	wait      func(ctx context.Context, d time.Duration) error
}

func NewExecutor(policy Policy, log logger.Logger) *Executor {
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}
	if policy.BackoffFactor <= 0 {
		policy.BackoffFactor = 2.0
	}
	return &Executor{
		policy:    policy,
		log:       log,
		retryable: func(error) bool { return true },
		wait:      sleepCtx,
	}
}

// WithRetryable restricts which failures are retried. Non-retryable errors
// propagate to the caller immediately.
func (e *Executor) WithRetryable(pred func(error) bool) *Executor {
	e.retryable = pred
	return e
}

// Do runs op up to MaxAttempts times. The last failure is returned once the
// budget is exhausted; a success stops further attempts.
func (e *Executor) Do(ctx context.Context, name string, op func() error) error {
	b := &backoff.Backoff{
		Min:    e.policy.InitialDelay,
		Max:    10 * time.Minute,
		Factor: e.policy.BackoffFactor,
		Jitter: false,
	}

	var lastErr error
	for attempt := 1; attempt <= e.policy.MaxAttempts; attempt++ {
		err := op()
		if err == nil {
			return nil
		}
		lastErr = err

		if !e.retryable(err) {
			return err
		}

		if attempt == e.policy.MaxAttempts {
			e.log.Errorf("%s failed after %d attempts: %v", name, e.policy.MaxAttempts, err)
			break
		}

		delay := b.ForAttempt(float64(attempt - 1))
		e.log.Warnf("%s failed (attempt %d/%d): %v. Retrying in %v",
			name, attempt, e.policy.MaxAttempts, err, delay)

		if waitErr := e.wait(ctx, delay); waitErr != nil {
			return waitErr
		}
	}

	return lastErr
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
