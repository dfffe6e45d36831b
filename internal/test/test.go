package test

import (
	"database/sql/driver"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/hibiken/asynq"
	"github.com/jmoiron/sqlx"

	"podcast-drive/internal/db"
	"podcast-drive/internal/models"
)

// MockTaskEnqueuer is a mock implementation of tasks.TaskEnqueuer for testing.
type MockTaskEnqueuer struct {
	EnqueuedTasks []*asynq.Task
}

func (m *MockTaskEnqueuer) Enqueue(task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	m.EnqueuedTasks = append(m.EnqueuedTasks, task)
	return &asynq.TaskInfo{ID: "test-task-id", Queue: "default"}, nil
}

// NewMockDB swaps the global catalog connection for a sqlmock-backed one
// and restores it when the test finishes.
func NewMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	mockDb, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	sqlxDB := sqlx.NewDb(mockDb, "sqlmock")

	originalDB := db.DB
	db.DB = sqlxDB
	t.Cleanup(func() {
		db.DB = originalDB
		mockDb.Close()
	})

	return sqlxDB, mock
}

// nullable unwraps a pointer column into a sqlmock row value.
func nullable[T any](p *T) driver.Value {
	if p == nil {
		return nil
	}
	return *p
}

// EpisodeRows builds a sqlmock result in the episodes table's column order,
// for SELECT * queries.
func EpisodeRows(episodes ...models.Episode) *sqlmock.Rows {
	rows := sqlmock.NewRows([]string{
		"id", "podcast_id", "fingerprint", "title", "published_at", "media_url",
		"size_hint", "local_path", "drive_file_id", "drive_file_url",
		"bytes_transferred", "state", "last_error", "state_changed_at", "created_at",
	})
	for _, ep := range episodes {
		rows.AddRow(
			ep.ID, ep.PodcastID, ep.Fingerprint, ep.Title, ep.PublishedAt, ep.MediaURL,
			ep.SizeHint, nullable(ep.LocalPath), nullable(ep.DriveFileID), nullable(ep.DriveFileURL),
			ep.BytesTransferred, ep.State, nullable(ep.LastError), ep.StateChangedAt, ep.CreatedAt,
		)
	}
	return rows
}

// PodcastRows builds a sqlmock result in the podcasts table's column order.
func PodcastRows(podcasts ...models.Podcast) *sqlmock.Rows {
	rows := sqlmock.NewRows([]string{
		"id", "name", "feed_url", "folder_name", "drive_folder_id",
		"enabled", "keep_count", "delete_remote", "last_checked",
	})
	for _, p := range podcasts {
		rows.AddRow(
			p.ID, p.Name, p.FeedURL, p.FolderName, nullable(p.DriveFolderID),
			p.Enabled, p.KeepCount, p.DeleteRemote, nullable(p.LastChecked),
		)
	}
	return rows
}
