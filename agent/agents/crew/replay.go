package crew

import (
	"context"
	"fmt"

	contractx "github.com/tanpawarit/voiceboard/agent/contract"
	statex "github.com/tanpawarit/voiceboard/agent/state"
)

// Replay re-runs a stored kickoff from taskID onward. Outputs of the tasks
// before it are reused as context and the kickoff's inputs are reused.
func (c *Crew) Replay(ctx context.Context, taskID string) (Output, error) {
	if c.store == nil {
		return Output{}, fmt.Errorf("%w: replay needs a task output store", contractx.ErrConfigurationMissing)
	}

	stored, err := c.store.KickoffByTask(ctx, taskID)
	if err != nil {
		return Output{}, err
	}
	if stored[0].Crew != c.name {
		return Output{}, fmt.Errorf("%w: task %s belongs to crew %s, not %s", contractx.ErrValidation, taskID, stored[0].Crew, c.name)
	}

	start := -1
	for _, rec := range stored {
		if rec.TaskID == taskID {
			start = rec.Index
			break
		}
	}
	if start < 0 || start >= len(c.tasks) {
		return Output{}, fmt.Errorf("%w: %s", statex.ErrTaskNotFound, taskID)
	}

	prior := make([]statex.TaskOutput, 0, start)
	for _, rec := range stored {
		if rec.Index < start {
			prior = append(prior, rec)
		}
	}
	if len(prior) != start {
		return Output{}, fmt.Errorf("%w: kickoff %s is missing outputs before task %s", statex.ErrTaskNotFound, stored[0].KickoffID, taskID)
	}

	return c.run(ctx, stored[0].Inputs, prior)
}
