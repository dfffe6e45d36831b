package handlers

import (
	"context"
	"encoding/json"
	"log"
	"net/http"

	"podcast-drive/pkg/tasks"
)

// QuotaReporter reports remote storage usage. Implemented by drive.Drive;
// nil when the server runs without Drive credentials.
type QuotaReporter interface {
	StorageQuota(ctx context.Context) (used, total int64, err error)
}

type Handlers struct {
	asynqClient tasks.TaskEnqueuer
	quota       QuotaReporter
}

func New(asynqClient tasks.TaskEnqueuer, quota QuotaReporter) *Handlers {
	return &Handlers{
		asynqClient: asynqClient,
		quota:       quota,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Error encoding response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
