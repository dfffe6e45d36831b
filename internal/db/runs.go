package db

import "podcast-drive/internal/models"

const (
	RunStatusStarted   = "started"
	RunStatusCompleted = "completed"
	RunStatusError     = "error"
)

// StartRun opens a run history record and returns its id.
func StartRun(runType, message string) (int, error) {
	var id int
	err := DB.Get(&id, `
		INSERT INTO runs (run_type, status, message)
		VALUES ($1, 'started', $2)
		RETURNING id`,
		runType, message)
	return id, err
}

// FinishRun closes a run history record with its outcome.
func FinishRun(id int, status, message string) error {
	_, err := DB.Exec(`
		UPDATE runs SET status = $1, message = $2, finished_at = NOW()
		WHERE id = $3`,
		status, message, id)
	return err
}

func RecentRuns(limit int) ([]models.Run, error) {
	var runs []models.Run
	err := DB.Select(&runs, "SELECT * FROM runs ORDER BY started_at DESC LIMIT $1", limit)
	return runs, err
}
