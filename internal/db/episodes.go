package db

import (
	"database/sql"
	"errors"
	"time"

	"podcast-drive/internal/models"

	"github.com/lib/pq"
)

// Episode lifecycle states. Transitions between them are guarded by the
// Mark* functions below; the in-progress states appear in the from-sets so
// an episode left mid-transfer by an unclean shutdown is resumable rather
// than stuck.
const (
	StateDiscovered     = "DISCOVERED"
	StateDownloading    = "DOWNLOADING"
	StateDownloaded     = "DOWNLOADED"
	StateDownloadFailed = "DOWNLOAD_FAILED"
	StateUploading      = "UPLOADING"
	StateUploaded       = "UPLOADED"
	StateUploadFailed   = "UPLOAD_FAILED"
	StateRetained       = "RETAINED"
	StateDeletedLocal   = "DELETED_LOCAL"
)

// ErrStateConflict is returned when a guarded transition finds the episode
// in a state outside the expected set, usually because another pass (or a
// crashed one) got there first. Callers skip the episode for this pass.
var ErrStateConflict = errors.New("episode state conflict")

// UpsertDiscovered inserts a newly scanned feed entry, or returns the
// existing row when the (podcast, fingerprint) pair has been seen before.
// The second return value reports whether the episode is new.
func UpsertDiscovered(podcastID int, fingerprint, title string, publishedAt time.Time, mediaURL string, sizeHint int64) (models.Episode, bool, error) {
	episode := models.Episode{}
	err := DB.Get(&episode, `
		INSERT INTO episodes (podcast_id, fingerprint, title, published_at, media_url, size_hint, state)
		VALUES ($1, $2, $3, $4, $5, $6, 'DISCOVERED')
		ON CONFLICT (podcast_id, fingerprint) DO NOTHING
		RETURNING *`,
		podcastID, fingerprint, title, publishedAt, mediaURL, sizeHint)
	if err == nil {
		return episode, true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return models.Episode{}, false, err
	}

	// Conflict: the fingerprint is already catalogued.
	err = DB.Get(&episode, "SELECT * FROM episodes WHERE podcast_id = $1 AND fingerprint = $2", podcastID, fingerprint)
	return episode, false, err
}

func GetEpisodeByID(id int) (models.Episode, error) {
	episode := models.Episode{}
	err := DB.Get(&episode, "SELECT * FROM episodes WHERE id = $1", id)
	return episode, err
}

// ListByState returns a podcast's episodes in any of the given states,
// newest published first.
func ListByState(podcastID int, states ...string) ([]models.Episode, error) {
	var episodes []models.Episode
	err := DB.Select(&episodes, `
		SELECT * FROM episodes
		WHERE podcast_id = $1 AND state = ANY($2)
		ORDER BY published_at DESC`,
		podcastID, pq.Array(states))
	return episodes, err
}

// ListEpisodes returns all episodes for a podcast, newest published first.
func ListEpisodes(podcastID int) ([]models.Episode, error) {
	var episodes []models.Episode
	err := DB.Select(&episodes, "SELECT * FROM episodes WHERE podcast_id = $1 ORDER BY published_at DESC", podcastID)
	return episodes, err
}

// RecordProgress persists the byte offset of an in-flight transfer. It is
// unguarded and safe to call repeatedly; the offset is the resume point
// after a crash.
func RecordProgress(id int, bytesSoFar int64) error {
	_, err := DB.Exec("UPDATE episodes SET bytes_transferred = $1 WHERE id = $2", bytesSoFar, id)
	return err
}

// Transition moves an episode between states with no accompanying field
// changes. Returns ErrStateConflict if the current state is outside from.
func Transition(id int, from []string, to string) error {
	return guarded(`
		UPDATE episodes SET state = $1, state_changed_at = NOW()
		WHERE id = $2 AND state = ANY($3)`,
		to, id, pq.Array(from))
}

// MarkDownloading claims an episode for download and records where the file
// will land. DOWNLOADING itself is a valid source state so a transfer
// abandoned by a crash can be reclaimed.
func MarkDownloading(id int, localPath string) error {
	return guarded(`
		UPDATE episodes SET state = 'DOWNLOADING', local_path = $1, last_error = NULL, state_changed_at = NOW()
		WHERE id = $2 AND state = ANY($3)`,
		localPath, id, pq.Array([]string{StateDiscovered, StateDownloadFailed, StateDownloading}))
}

// MarkDownloaded commits a verified download: the final path and byte count
// land in the same statement as the state change.
func MarkDownloaded(id int, localPath string, bytes int64) error {
	return guarded(`
		UPDATE episodes SET state = 'DOWNLOADED', local_path = $1, bytes_transferred = $2, last_error = NULL, state_changed_at = NOW()
		WHERE id = $3 AND state = 'DOWNLOADING'`,
		localPath, bytes, id)
}

func MarkDownloadFailed(id int, errMsg string) error {
	return guarded(`
		UPDATE episodes SET state = 'DOWNLOAD_FAILED', last_error = $1, state_changed_at = NOW()
		WHERE id = $2 AND state = 'DOWNLOADING'`,
		errMsg, id)
}

func MarkUploading(id int) error {
	return guarded(`
		UPDATE episodes SET state = 'UPLOADING', last_error = NULL, state_changed_at = NOW()
		WHERE id = $1 AND state = ANY($2)`,
		id, pq.Array([]string{StateDownloaded, StateUploadFailed, StateUploading}))
}

// MarkUploaded records the durable remote copy. The Drive file id commits
// atomically with the state so a reader never sees UPLOADED without it.
func MarkUploaded(id int, driveFileID, driveFileURL string) error {
	return guarded(`
		UPDATE episodes SET state = 'UPLOADED', drive_file_id = $1, drive_file_url = $2, last_error = NULL, state_changed_at = NOW()
		WHERE id = $3 AND state = 'UPLOADING'`,
		driveFileID, driveFileURL, id)
}

func MarkUploadFailed(id int, errMsg string) error {
	return guarded(`
		UPDATE episodes SET state = 'UPLOAD_FAILED', last_error = $1, state_changed_at = NOW()
		WHERE id = $2 AND state = 'UPLOADING'`,
		errMsg, id)
}

func MarkRetained(id int) error {
	return guarded(`
		UPDATE episodes SET state = 'RETAINED', state_changed_at = NOW()
		WHERE id = $1 AND state = 'UPLOADED'`,
		id)
}

// MarkDeletedLocal clears the local path once the file beyond the retention
// cutoff is gone. Only reachable from UPLOADED or RETAINED: local deletion
// is strictly downstream of a confirmed remote copy.
func MarkDeletedLocal(id int) error {
	return guarded(`
		UPDATE episodes SET state = 'DELETED_LOCAL', local_path = NULL, state_changed_at = NOW()
		WHERE id = $1 AND state = ANY($2)`,
		id, pq.Array([]string{StateUploaded, StateRetained}))
}

func guarded(query string, args ...interface{}) error {
	res, err := DB.Exec(query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrStateConflict
	}
	return nil
}
