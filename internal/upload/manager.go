package upload

import (
	"context"
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"time"

	"podcast-drive/internal/db"
	"podcast-drive/internal/drive"
	"podcast-drive/internal/models"
)

// ErrNoLocalFile means the episode reached the upload stage without a
// recorded local path; the catalog row is inconsistent.
var ErrNoLocalFile = errors.New("episode has no local file to upload")

// Manager pushes downloaded episodes into the remote store. The local file
// is never touched here: deleting it is the retention manager's job, and
// only after the remote copy is confirmed.
type Manager struct {
	store       drive.Store
	maxAttempts int
	backoffBase time.Duration
}

func NewManager(store drive.Store) *Manager {
	return &Manager{
		store:       store,
		maxAttempts: 3,
		backoffBase: 2 * time.Second,
	}
}

// Upload transfers an episode's local file into folderID. The episode must
// be DOWNLOADED, UPLOAD_FAILED, or left UPLOADING by an unclean shutdown.
func (m *Manager) Upload(ctx context.Context, ep models.Episode, folderID string) error {
	if err := db.MarkUploading(ep.ID); err != nil {
		return err
	}
	if ep.LocalPath == nil || *ep.LocalPath == "" {
		if err := db.MarkUploadFailed(ep.ID, ErrNoLocalFile.Error()); err != nil {
			return err
		}
		return ErrNoLocalFile
	}

	name := filepath.Base(*ep.LocalPath)

	// A crash between remote success and catalog commit leaves an orphan
	// file in the folder. Reuse it instead of duplicating.
	existing, err := m.findExisting(ctx, folderID, name)
	if err != nil {
		log.Printf("Could not check Drive folder for existing %q: %v", name, err)
	} else if existing != nil {
		log.Printf("File %q already present in Drive folder, reusing id %s", name, existing.ID)
		return db.MarkUploaded(ep.ID, existing.ID, fileURL(*existing))
	}

	var lastErr error
	for attempt := 1; attempt <= m.maxAttempts; attempt++ {
		if attempt > 1 {
			delay := m.backoffBase << (attempt - 2)
			log.Printf("Retrying upload of %q (attempt %d/%d) after %v", name, attempt, m.maxAttempts, delay)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
			}
			if ctx.Err() != nil {
				lastErr = ctx.Err()
				break
			}
		}

		file, err := m.store.UploadFile(ctx, folderID, *ep.LocalPath, name)
		if err == nil {
			log.Printf("Uploaded %q to Drive (id %s)", name, file.ID)
			return db.MarkUploaded(ep.ID, file.ID, fileURL(file))
		}
		lastErr = err
		if !drive.Retryable(err) {
			break
		}
	}

	// Cancellation is not an upload failure: the row stays UPLOADING and
	// the next pass picks it up again.
	if ctx.Err() != nil {
		log.Printf("Upload of %q interrupted: %v", name, lastErr)
		return lastErr
	}

	log.Printf("Upload failed for %q: %v", name, lastErr)
	if err := db.MarkUploadFailed(ep.ID, lastErr.Error()); err != nil {
		return err
	}
	return fmt.Errorf("uploading %s: %w", name, lastErr)
}

func (m *Manager) findExisting(ctx context.Context, folderID, name string) (*drive.File, error) {
	files, err := m.store.ListFiles(ctx, folderID)
	if err != nil {
		return nil, err
	}
	for i := range files {
		if files[i].Name == name {
			return &files[i], nil
		}
	}
	return nil, nil
}

func fileURL(f drive.File) string {
	if f.URL != "" {
		return f.URL
	}
	return fmt.Sprintf("https://drive.google.com/file/d/%s/view", f.ID)
}
