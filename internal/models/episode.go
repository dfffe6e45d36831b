package models

import "time"

type Episode struct {
	ID               int       `db:"id"`
	PodcastID        int       `db:"podcast_id"`
	Fingerprint      string    `db:"fingerprint"`
	Title            string    `db:"title"`
	PublishedAt      time.Time `db:"published_at"`
	MediaURL         string    `db:"media_url"`
	SizeHint         int64     `db:"size_hint"`
	LocalPath        *string   `db:"local_path"`
	DriveFileID      *string   `db:"drive_file_id"`
	DriveFileURL     *string   `db:"drive_file_url"`
	BytesTransferred int64     `db:"bytes_transferred"`
	State            string    `db:"state"`
	LastError        *string   `db:"last_error"`
	StateChangedAt   time.Time `db:"state_changed_at"`
	CreatedAt        time.Time `db:"created_at"`
}
