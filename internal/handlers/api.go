package handlers

import (
	"log"
	"net/http"

	"github.com/gorilla/mux"

	"podcast-drive/internal/db"
	"podcast-drive/internal/models"
	"podcast-drive/pkg/tasks"
)

type statsResponse struct {
	db.Stats
	DriveUsedBytes  *int64 `json:"drive_used_bytes,omitempty"`
	DriveTotalBytes *int64 `json:"drive_total_bytes,omitempty"`
}

func (h *Handlers) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := db.GetStats()
	if err != nil {
		log.Printf("Error getting stats: %v", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	resp := statsResponse{Stats: stats}
	if h.quota != nil {
		used, total, err := h.quota.StorageQuota(r.Context())
		if err != nil {
			log.Printf("Error fetching Drive quota: %v", err)
		} else {
			resp.DriveUsedBytes = &used
			resp.DriveTotalBytes = &total
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

type podcastStatus struct {
	models.Podcast
	Episodes map[string]int `json:"episodes"`
}

func (h *Handlers) ListPodcasts(w http.ResponseWriter, r *http.Request) {
	podcasts, err := db.ListPodcasts()
	if err != nil {
		log.Printf("Error listing podcasts: %v", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	out := make([]podcastStatus, 0, len(podcasts))
	for _, p := range podcasts {
		counts, err := db.CountByState(p.ID)
		if err != nil {
			log.Printf("Error counting episodes for %s: %v", p.Name, err)
			writeError(w, http.StatusInternalServerError, "Internal server error")
			return
		}
		out = append(out, podcastStatus{Podcast: p, Episodes: counts})
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handlers) ListEpisodes(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	podcast, err := db.GetPodcastByName(vars["name"])
	if err != nil {
		writeError(w, http.StatusNotFound, "Podcast not found")
		return
	}

	episodes, err := db.ListEpisodes(podcast.ID)
	if err != nil {
		log.Printf("Error listing episodes: %v", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	writeJSON(w, http.StatusOK, episodes)
}

func (h *Handlers) ListRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := db.RecentRuns(20)
	if err != nil {
		log.Printf("Error listing runs: %v", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	writeJSON(w, http.StatusOK, runs)
}

// TriggerRun enqueues a manual pass. The worker coalesces the trigger if
// a pass is already underway.
func (h *Handlers) TriggerRun(w http.ResponseWriter, r *http.Request) {
	task, err := tasks.NewRunPassTask("manual")
	if err != nil {
		log.Printf("Error creating task: %v", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if _, err := h.asynqClient.Enqueue(task); err != nil {
		log.Printf("Error enqueueing task: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to schedule run")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "scheduled"})
}
