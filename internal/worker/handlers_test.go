package worker

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"podcast-drive/pkg/tasks"
)

func TestHandleRunPassTaskCoalesced(t *testing.T) {
	runner := &Runner{}
	runner.mu.Lock()
	defer runner.mu.Unlock()

	handler := NewTaskHandler(runner)
	payload, err := json.Marshal(tasks.RunPassPayload{RunType: "scheduled"})
	require.NoError(t, err)
	task := asynq.NewTask(tasks.TypeRunPass, payload)

	// A trigger that lands mid-pass is not a failure.
	assert.NoError(t, handler.HandleRunPassTask(context.Background(), task))
}

func TestHandleRunPassTaskBadPayload(t *testing.T) {
	handler := NewTaskHandler(&Runner{})
	task := asynq.NewTask(tasks.TypeRunPass, []byte("not json"))

	err := handler.HandleRunPassTask(context.Background(), task)
	assert.ErrorIs(t, err, asynq.SkipRetry)
}

func TestHandleEnforceRetentionTaskBadPayload(t *testing.T) {
	handler := NewTaskHandler(&Runner{})
	task := asynq.NewTask(tasks.TypeEnforceRetention, []byte("{"))

	err := handler.HandleEnforceRetentionTask(context.Background(), task)
	assert.ErrorIs(t, err, asynq.SkipRetry)
}
