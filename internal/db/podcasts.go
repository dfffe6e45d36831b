package db

import (
	"log"

	"podcast-drive/internal/models"
)

// UpsertPodcast creates or refreshes a podcast row from the configuration
// snapshot, stamping last_checked.
func UpsertPodcast(name, feedURL, folderName string, enabled bool, keepCount int, deleteRemote bool) (models.Podcast, error) {
	podcast := models.Podcast{}
	err := DB.Get(&podcast, `
		INSERT INTO podcasts (name, feed_url, folder_name, enabled, keep_count, delete_remote, last_checked)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		ON CONFLICT (name) DO UPDATE SET
			feed_url = EXCLUDED.feed_url,
			folder_name = EXCLUDED.folder_name,
			enabled = EXCLUDED.enabled,
			keep_count = EXCLUDED.keep_count,
			delete_remote = EXCLUDED.delete_remote,
			last_checked = EXCLUDED.last_checked
		RETURNING *`,
		name, feedURL, folderName, enabled, keepCount, deleteRemote)
	if err != nil {
		log.Printf("Error upserting podcast %s: %v", name, err)
		return podcast, err
	}
	return podcast, nil
}

func GetPodcastByName(name string) (models.Podcast, error) {
	podcast := models.Podcast{}
	err := DB.Get(&podcast, "SELECT * FROM podcasts WHERE name = $1", name)
	return podcast, err
}

func ListPodcasts() ([]models.Podcast, error) {
	var podcasts []models.Podcast
	err := DB.Select(&podcasts, "SELECT * FROM podcasts ORDER BY name")
	return podcasts, err
}

// UpdatePodcastDriveFolder records the resolved Drive folder id so later
// passes and the dashboard can link to it.
func UpdatePodcastDriveFolder(id int, driveFolderID string) error {
	_, err := DB.Exec("UPDATE podcasts SET drive_folder_id = $1 WHERE id = $2", driveFolderID, id)
	return err
}
