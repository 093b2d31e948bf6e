package engine

import (
	"context"

	"watchpost/model"
)

// FailureCounter maintains the per-check consecutive-failure streak.
// The count is persisted so thresholds can span scheduled invocations;
// under the one-task-per-check model there is never a concurrent writer
// for the same check.
type FailureCounter struct {
	Store Store
}

// Update applies one cycle's outcome and returns the new streak: a
// failure increments, anything else resets to zero.
func (c *FailureCounter) Update(ctx context.Context, def *model.CheckDefinition, failed bool) (int, error) {
	count := 0
	if failed {
		count = def.CurrentFailureCount + 1
	}
	if err := c.Store.SetFailureCount(ctx, def.ID, count); err != nil {
		return count, err
	}
	return count, nil
}
