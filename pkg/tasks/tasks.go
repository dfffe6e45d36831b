package tasks

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	TypeRunPass          = "pass:run"
	TypeEnforceRetention = "retention:enforce"
)

type RunPassPayload struct {
	RunType string
}

func NewRunPassTask(runType string) (*asynq.Task, error) {
	payload, err := json.Marshal(RunPassPayload{RunType: runType})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeRunPass, payload), nil
}

type EnforceRetentionPayload struct {
	PodcastName string
	// KeepCount overrides the podcast's configured retention when >= 0;
	// -1 means use the configured value.
	KeepCount int
}

func NewEnforceRetentionTask(podcastName string, keepCount int) (*asynq.Task, error) {
	payload, err := json.Marshal(EnforceRetentionPayload{PodcastName: podcastName, KeepCount: keepCount})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeEnforceRetention, payload), nil
}
