package pipeline

import (
	"context"
	"time"
)

// RetryPolicy bounds how often a collaborator call is retried. Backoff
// doubles after every failed attempt. Retries are explicit and
// stage-aware: the runner decides which stages use them and what an
// exhausted policy means for the job.
type RetryPolicy struct {
	Attempts int
	Backoff  time.Duration
}

// DefaultRetryPolicy matches the task-level retry discipline: three
// attempts, ten seconds apart to start.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{Attempts: 3, Backoff: 10 * time.Second}
}

// Do runs op until it succeeds, attempts are exhausted, or the context
// expires. The last error is returned.
func (p RetryPolicy) Do(ctx context.Context, op func() error) error {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}

	var err error
	backoff := p.Backoff
	for i := 0; i < attempts; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}
		if err = op(); err == nil {
			return nil
		}
	}
	return err
}
