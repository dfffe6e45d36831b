package handlers

import (
	"log"
	"net/http"

	"github.com/gorilla/mux"

	"podcast-drive/internal/db"
	"podcast-drive/internal/feed"
)

// GetRSSFeed republishes a podcast's uploaded episodes as an RSS feed
// whose enclosures point at the Drive copies.
func (h *Handlers) GetRSSFeed(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	podcast, err := db.GetPodcastByName(vars["name"])
	if err != nil {
		http.Error(w, "Podcast not found", http.StatusNotFound)
		return
	}

	episodes, err := db.ListByState(podcast.ID, db.StateUploaded, db.StateRetained)
	if err != nil {
		log.Printf("Error getting episodes: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	rss, err := feed.GenerateRSS(podcast, episodes, r)
	if err != nil {
		log.Printf("Error generating RSS: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/rss+xml")
	w.Write([]byte(rss))
}
