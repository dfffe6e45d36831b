package retention

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"podcast-drive/internal/db"
	"podcast-drive/internal/drive"
	"podcast-drive/internal/models"
	"podcast-drive/internal/test"
)

// fakeStore records remote deletions.
type fakeStore struct {
	deletedIDs []string
}

func (f *fakeStore) EnsureFolder(ctx context.Context, name, parentID string) (string, error) {
	return "folder-id", nil
}

func (f *fakeStore) ListFiles(ctx context.Context, folderID string) ([]drive.File, error) {
	return nil, nil
}

func (f *fakeStore) UploadFile(ctx context.Context, folderID, localPath, name string) (drive.File, error) {
	return drive.File{}, nil
}

func (f *fakeStore) DeleteFile(ctx context.Context, fileID string) error {
	f.deletedIDs = append(f.deletedIDs, fileID)
	return nil
}

// uploadedEpisodes builds n UPLOADED episodes, newest first, each with a
// real file on disk under dir.
func uploadedEpisodes(t *testing.T, dir string, n int) []models.Episode {
	t.Helper()
	episodes := make([]models.Episode, 0, n)
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		path := filepath.Join(dir, "ep"+string(rune('a'+i))+".mp3")
		require.NoError(t, os.WriteFile(path, []byte("audio"), 0o644))
		localPath := path
		driveID := "drive-" + string(rune('a'+i))
		episodes = append(episodes, models.Episode{
			ID:          i + 1,
			PodcastID:   1,
			Title:       "Episode",
			PublishedAt: base.Add(-time.Duration(i) * time.Hour),
			State:       db.StateUploaded,
			LocalPath:   &localPath,
			DriveFileID: &driveID,
		})
	}
	return episodes
}

func expectListByState(mock sqlmock.Sqlmock, episodes []models.Episode) {
	mock.ExpectQuery(`SELECT \* FROM episodes\s+WHERE podcast_id = \$1 AND state = ANY\(\$2\)`).
		WithArgs(1, pq.Array([]string{db.StateUploaded, db.StateRetained, db.StateDeletedLocal})).
		WillReturnRows(test.EpisodeRows(episodes...))
}

func TestEnforceKeepsNewest(t *testing.T) {
	_, mock := test.NewMockDB(t)
	dir := t.TempDir()
	episodes := uploadedEpisodes(t, dir, 5)

	expectListByState(mock, episodes)
	// The two newest settle into RETAINED.
	for i := 0; i < 2; i++ {
		mock.ExpectExec(`UPDATE episodes SET state = 'RETAINED'`).
			WithArgs(episodes[i].ID).
			WillReturnResult(sqlmock.NewResult(0, 1))
	}
	// The rest lose their local file.
	for i := 2; i < 5; i++ {
		mock.ExpectExec(`UPDATE episodes SET state = 'DELETED_LOCAL'`).
			WithArgs(episodes[i].ID, sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(0, 1))
	}

	m := NewManager(nil)
	podcast := models.Podcast{ID: 1, Name: "Show", KeepCount: 2}
	require.NoError(t, m.Enforce(context.Background(), podcast))

	for i, ep := range episodes {
		_, err := os.Stat(*ep.LocalPath)
		if i < 2 {
			assert.NoError(t, err, "kept episode %d should still have its file", ep.ID)
		} else {
			assert.True(t, os.IsNotExist(err), "episode %d beyond the keep count should be gone", ep.ID)
		}
	}
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnforceUnlimitedKeepsEverything(t *testing.T) {
	_, mock := test.NewMockDB(t)
	dir := t.TempDir()
	episodes := uploadedEpisodes(t, dir, 3)

	expectListByState(mock, episodes)
	for _, ep := range episodes {
		mock.ExpectExec(`UPDATE episodes SET state = 'RETAINED'`).
			WithArgs(ep.ID).
			WillReturnResult(sqlmock.NewResult(0, 1))
	}

	m := NewManager(nil)
	podcast := models.Podcast{ID: 1, Name: "Show", KeepCount: -1}
	require.NoError(t, m.Enforce(context.Background(), podcast))

	for _, ep := range episodes {
		_, err := os.Stat(*ep.LocalPath)
		assert.NoError(t, err)
	}
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnforceDeletesRemoteWhenOptedIn(t *testing.T) {
	_, mock := test.NewMockDB(t)
	dir := t.TempDir()
	episodes := uploadedEpisodes(t, dir, 2)

	expectListByState(mock, episodes)
	mock.ExpectExec(`UPDATE episodes SET state = 'RETAINED'`).
		WithArgs(episodes[0].ID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE episodes SET state = 'DELETED_LOCAL'`).
		WithArgs(episodes[1].ID, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	store := &fakeStore{}
	m := NewManager(store)
	podcast := models.Podcast{ID: 1, Name: "Show", KeepCount: 1, DeleteRemote: true}
	require.NoError(t, m.Enforce(context.Background(), podcast))

	assert.Equal(t, []string{*episodes[1].DriveFileID}, store.deletedIDs)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnforceSkipsAlreadyDeleted(t *testing.T) {
	_, mock := test.NewMockDB(t)
	dir := t.TempDir()
	episodes := uploadedEpisodes(t, dir, 2)
	episodes[1].State = db.StateDeletedLocal
	episodes[1].LocalPath = nil

	expectListByState(mock, episodes)
	mock.ExpectExec(`UPDATE episodes SET state = 'RETAINED'`).
		WithArgs(episodes[0].ID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	// Nothing else: the second episode is already DELETED_LOCAL.

	m := NewManager(nil)
	podcast := models.Podcast{ID: 1, Name: "Show", KeepCount: 1}
	require.NoError(t, m.Enforce(context.Background(), podcast))
	assert.NoError(t, mock.ExpectationsWereMet())
}
