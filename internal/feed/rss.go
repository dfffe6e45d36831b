package feed

import (
	"fmt"
	"net/http"
	"os"
	"path"
	"strings"
	"time"

	"github.com/eduncan911/podcast"

	"podcast-drive/internal/models"
)

func getBaseURL(r *http.Request) string {
	if baseURL := os.Getenv("BASE_URL"); baseURL != "" {
		return baseURL
	}

	scheme := r.URL.Scheme
	if scheme == "" {
		scheme = "https"
		if r.Header.Get("X-Forwarded-Proto") != "" {
			scheme = r.Header.Get("X-Forwarded-Proto")
		}
	}

	return fmt.Sprintf("%s://%s", scheme, r.Host)
}

// GenerateRSS republishes a podcast's uploaded episodes as an RSS feed whose
// enclosures point at the Google Drive copies.
func GenerateRSS(p models.Podcast, episodes []models.Episode, r *http.Request) (string, error) {
	baseURL := getBaseURL(r)
	now := time.Now()

	feed := podcast.New(
		p.Name,
		fmt.Sprintf("%s/rss/%s", baseURL, p.Name),
		fmt.Sprintf("Episodes of %s mirrored to Google Drive.", p.Name),
		&now, &now,
	)

	for i := range episodes {
		episode := episodes[i]
		if episode.DriveFileURL == nil {
			continue
		}
		item := podcast.Item{
			Title:       episode.Title,
			Description: episode.Title,
			PubDate:     &episode.PublishedAt,
		}
		item.AddEnclosure(*episode.DriveFileURL, enclosureType(episode.MediaURL), episode.BytesTransferred)
		if _, err := feed.AddItem(item); err != nil {
			return "", err
		}
	}

	return feed.String(), nil
}

func enclosureType(mediaURL string) podcast.EnclosureType {
	switch strings.ToLower(path.Ext(mediaURL)) {
	case ".m4a":
		return podcast.M4A
	case ".mp4":
		return podcast.MP4
	default:
		return podcast.MP3
	}
}
