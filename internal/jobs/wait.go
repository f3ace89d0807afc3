package jobs

import (
	"context"
	"fmt"
	"time"
)

// WaitForJobs polls store until every job in ids is terminal, then returns
// their final state in the same order.
func WaitForJobs(ctx context.Context, store JobStore, ids []string, interval time.Duration) ([]*ExtractStatementJob, error) {
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		result := make([]*ExtractStatementJob, 0, len(ids))
		done := true
		for _, id := range ids {
			job, err := store.GetJob(ctx, id)
			if err != nil {
				return nil, fmt.Errorf("WaitForJobs: %w", err)
			}
			if !job.Status.Terminal() {
				done = false
			}
			result = append(result, job)
		}
		if done {
			return result, nil
		}

		select {
		case <-ctx.Done():
			return result, ctx.Err()
		case <-ticker.C:
		}
	}
}
