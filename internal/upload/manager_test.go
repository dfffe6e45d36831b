package upload

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"

	"podcast-drive/internal/db"
	"podcast-drive/internal/drive"
	"podcast-drive/internal/models"
	"podcast-drive/internal/test"
)

// fakeStore scripts UploadFile outcomes and records every call.
type fakeStore struct {
	existing    []drive.File
	listErr     error
	uploadErrs  []error
	uploads     int
	deletedIDs  []string
	uploadedAs  string
	uploadedDir string
}

func (f *fakeStore) EnsureFolder(ctx context.Context, name, parentID string) (string, error) {
	return "folder-id", nil
}

func (f *fakeStore) ListFiles(ctx context.Context, folderID string) ([]drive.File, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.existing, nil
}

func (f *fakeStore) UploadFile(ctx context.Context, folderID, localPath, name string) (drive.File, error) {
	f.uploads++
	if len(f.uploadErrs) > 0 {
		err := f.uploadErrs[0]
		f.uploadErrs = f.uploadErrs[1:]
		if err != nil {
			return drive.File{}, err
		}
	}
	f.uploadedAs = name
	f.uploadedDir = folderID
	return drive.File{ID: "file-1", Name: name, URL: "https://drive.google.com/file/d/file-1/view"}, nil
}

func (f *fakeStore) DeleteFile(ctx context.Context, fileID string) error {
	f.deletedIDs = append(f.deletedIDs, fileID)
	return nil
}

func testEpisode(localPath string) models.Episode {
	return models.Episode{
		ID:        3,
		PodcastID: 1,
		Title:     "Episode One",
		State:     db.StateDownloaded,
		LocalPath: &localPath,
	}
}

func newTestManager(store drive.Store) *Manager {
	m := NewManager(store)
	m.backoffBase = 0
	return m
}

func TestUploadSuccess(t *testing.T) {
	_, mock := test.NewMockDB(t)
	store := &fakeStore{}
	m := newTestManager(store)

	mock.ExpectExec(`UPDATE episodes SET state = 'UPLOADING'`).
		WithArgs(3, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE episodes SET state = 'UPLOADED'`).
		WithArgs("file-1", "https://drive.google.com/file/d/file-1/view", 3).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := m.Upload(context.Background(), testEpisode("/data/Show/ep1.mp3"), "folder-id")
	require.NoError(t, err)
	assert.Equal(t, 1, store.uploads)
	assert.Equal(t, "ep1.mp3", store.uploadedAs)
	assert.Equal(t, "folder-id", store.uploadedDir)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUploadRetriesTransientErrors(t *testing.T) {
	_, mock := test.NewMockDB(t)
	store := &fakeStore{
		uploadErrs: []error{
			&googleapi.Error{Code: 503},
			&googleapi.Error{Code: 429},
			nil,
		},
	}
	m := newTestManager(store)

	mock.ExpectExec(`UPDATE episodes SET state = 'UPLOADING'`).
		WithArgs(3, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE episodes SET state = 'UPLOADED'`).
		WithArgs("file-1", "https://drive.google.com/file/d/file-1/view", 3).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := m.Upload(context.Background(), testEpisode("/data/Show/ep1.mp3"), "folder-id")
	require.NoError(t, err)
	assert.Equal(t, 3, store.uploads)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUploadGivesUpAfterMaxAttempts(t *testing.T) {
	_, mock := test.NewMockDB(t)
	store := &fakeStore{
		uploadErrs: []error{
			&googleapi.Error{Code: 500},
			&googleapi.Error{Code: 500},
			&googleapi.Error{Code: 500},
		},
	}
	m := newTestManager(store)

	mock.ExpectExec(`UPDATE episodes SET state = 'UPLOADING'`).
		WithArgs(3, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE episodes SET state = 'UPLOAD_FAILED'`).
		WithArgs(sqlmock.AnyArg(), 3).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := m.Upload(context.Background(), testEpisode("/data/Show/ep1.mp3"), "folder-id")
	assert.Error(t, err)
	assert.Equal(t, 3, store.uploads)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUploadDoesNotRetryPermanentErrors(t *testing.T) {
	_, mock := test.NewMockDB(t)
	store := &fakeStore{
		uploadErrs: []error{
			&googleapi.Error{Code: 404},
		},
	}
	m := newTestManager(store)

	mock.ExpectExec(`UPDATE episodes SET state = 'UPLOADING'`).
		WithArgs(3, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE episodes SET state = 'UPLOAD_FAILED'`).
		WithArgs(sqlmock.AnyArg(), 3).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := m.Upload(context.Background(), testEpisode("/data/Show/ep1.mp3"), "folder-id")
	assert.Error(t, err)
	assert.Equal(t, 1, store.uploads)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUploadReusesOrphanedFile(t *testing.T) {
	_, mock := test.NewMockDB(t)
	store := &fakeStore{
		existing: []drive.File{
			{ID: "orphan-1", Name: "ep1.mp3", URL: "https://drive.google.com/file/d/orphan-1/view"},
		},
	}
	m := newTestManager(store)

	mock.ExpectExec(`UPDATE episodes SET state = 'UPLOADING'`).
		WithArgs(3, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE episodes SET state = 'UPLOADED'`).
		WithArgs("orphan-1", "https://drive.google.com/file/d/orphan-1/view", 3).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := m.Upload(context.Background(), testEpisode("/data/Show/ep1.mp3"), "folder-id")
	require.NoError(t, err)
	assert.Zero(t, store.uploads)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUploadProceedsWhenListingFails(t *testing.T) {
	_, mock := test.NewMockDB(t)
	store := &fakeStore{
		listErr: &googleapi.Error{Code: 500},
	}
	m := newTestManager(store)

	mock.ExpectExec(`UPDATE episodes SET state = 'UPLOADING'`).
		WithArgs(3, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE episodes SET state = 'UPLOADED'`).
		WithArgs("file-1", "https://drive.google.com/file/d/file-1/view", 3).
		WillReturnResult(sqlmock.NewResult(0, 1))

	// Failing to check for an orphan is not fatal; the upload goes ahead.
	err := m.Upload(context.Background(), testEpisode("/data/Show/ep1.mp3"), "folder-id")
	require.NoError(t, err)
	assert.Equal(t, 1, store.uploads)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUploadCancelledLeavesClaim(t *testing.T) {
	_, mock := test.NewMockDB(t)
	store := &fakeStore{
		uploadErrs: []error{
			&googleapi.Error{Code: 503},
		},
	}
	m := newTestManager(store)

	// Only the claim: cancellation must not record UPLOAD_FAILED, the row
	// stays UPLOADING for the next pass.
	mock.ExpectExec(`UPDATE episodes SET state = 'UPLOADING'`).
		WithArgs(3, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := m.Upload(ctx, testEpisode("/data/Show/ep1.mp3"), "folder-id")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, store.uploads)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUploadWithoutLocalFile(t *testing.T) {
	_, mock := test.NewMockDB(t)
	m := newTestManager(&fakeStore{})

	mock.ExpectExec(`UPDATE episodes SET state = 'UPLOADING'`).
		WithArgs(3, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE episodes SET state = 'UPLOAD_FAILED'`).
		WithArgs(ErrNoLocalFile.Error(), 3).
		WillReturnResult(sqlmock.NewResult(0, 1))

	ep := models.Episode{ID: 3, PodcastID: 1, Title: "Episode One", State: db.StateDownloaded}
	err := m.Upload(context.Background(), ep, "folder-id")
	assert.ErrorIs(t, err, ErrNoLocalFile)

	assert.NoError(t, mock.ExpectationsWereMet())
}
