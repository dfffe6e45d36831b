package models

import "time"

// Podcast is a feed the service mirrors into Google Drive. Rows are
// upserted from the configuration snapshot at the start of each pass.
type Podcast struct {
	ID            int        `db:"id"`
	Name          string     `db:"name"`
	FeedURL       string     `db:"feed_url"`
	FolderName    string     `db:"folder_name"`
	DriveFolderID *string    `db:"drive_folder_id"`
	Enabled       bool       `db:"enabled"`
	KeepCount     int        `db:"keep_count"`
	DeleteRemote  bool       `db:"delete_remote"`
	LastChecked   *time.Time `db:"last_checked"`
}
