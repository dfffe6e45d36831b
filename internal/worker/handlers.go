package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/hibiken/asynq"

	"podcast-drive/pkg/tasks"
)

// TaskHandler holds the dependencies for asynq task processing.
type TaskHandler struct {
	runner *Runner
}

func NewTaskHandler(runner *Runner) *TaskHandler {
	return &TaskHandler{runner: runner}
}

// HandleRunPassTask runs a full pipeline pass. A coalesced trigger is a
// success: the already-running pass covers the same work.
func (h *TaskHandler) HandleRunPassTask(ctx context.Context, t *asynq.Task) error {
	var p tasks.RunPassPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("failed to unmarshal payload: %v: %w", err, asynq.SkipRetry)
	}
	log.Printf("Starting %s pass", p.RunType)
	if err := h.runner.RunPass(ctx, p.RunType); err != nil {
		if err == ErrPassActive {
			return nil
		}
		return fmt.Errorf("pass failed: %w", err)
	}
	return nil
}

// HandleEnforceRetentionTask applies retention for a single podcast.
func (h *TaskHandler) HandleEnforceRetentionTask(ctx context.Context, t *asynq.Task) error {
	var p tasks.EnforceRetentionPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("failed to unmarshal payload: %v: %w", err, asynq.SkipRetry)
	}
	log.Printf("Enforcing retention for %s", p.PodcastName)
	if err := h.runner.EnforceRetention(ctx, p.PodcastName, p.KeepCount); err != nil {
		return fmt.Errorf("retention failed for %s: %w", p.PodcastName, err)
	}
	return nil
}
