package db

// Stats are derived from episode rows on demand, never stored.
type Stats struct {
	TotalPodcasts    int   `db:"total_podcasts"`
	TotalEpisodes    int   `db:"total_episodes"`
	FailedEpisodes   int   `db:"failed_episodes"`
	BytesTransferred int64 `db:"bytes_transferred"`
}

func GetStats() (Stats, error) {
	stats := Stats{}
	err := DB.Get(&stats, `
		SELECT
			(SELECT COUNT(*) FROM podcasts) AS total_podcasts,
			COUNT(*) AS total_episodes,
			COUNT(*) FILTER (WHERE state IN ('DOWNLOAD_FAILED', 'UPLOAD_FAILED')) AS failed_episodes,
			COALESCE(SUM(bytes_transferred), 0) AS bytes_transferred
		FROM episodes`)
	return stats, err
}

// CountByState returns the number of a podcast's episodes in each state.
func CountByState(podcastID int) (map[string]int, error) {
	rows, err := DB.Queryx(`
		SELECT state, COUNT(*) AS n FROM episodes
		WHERE podcast_id = $1
		GROUP BY state`,
		podcastID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var state string
		var n int
		if err := rows.Scan(&state, &n); err != nil {
			return nil, err
		}
		counts[state] = n
	}
	return counts, rows.Err()
}
