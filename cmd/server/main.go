package main

import (
	"context"
	"log"
	"net/http"
	"os"

	"github.com/gorilla/mux"
	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	"golang.org/x/time/rate"
	"google.golang.org/api/option"

	"podcast-drive/internal/db"
	"podcast-drive/internal/drive"
	"podcast-drive/internal/handlers"
	"podcast-drive/internal/middleware"
)

// CommitSHA is set at build time via ldflags
var CommitSHA = "unknown"

func main() {
	err := godotenv.Load()
	if err != nil {
		log.Println("Error loading .env file")
	}

	db.InitDB()

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		redisAddr = "127.0.0.1:6379"
	}

	asynqClient := asynq.NewClient(asynq.RedisClientOpt{Addr: redisAddr})
	defer asynqClient.Close()

	var quota handlers.QuotaReporter
	if credsFile := os.Getenv("GOOGLE_CREDENTIALS_FILE"); credsFile != "" {
		d, err := drive.New(context.Background(), option.WithCredentialsFile(credsFile))
		if err != nil {
			log.Fatalf("could not init Drive client: %v", err)
		}
		quota = d
	}

	h := handlers.New(asynqClient, quota)
	rateLimiter := middleware.NewRateLimiterMiddleware(rate.Limit(5), 10)

	r := mux.NewRouter()
	r.Use(rateLimiter.Middleware)
	r.HandleFunc("/api/stats", h.GetStats).Methods(http.MethodGet)
	r.HandleFunc("/api/podcasts", h.ListPodcasts).Methods(http.MethodGet)
	r.HandleFunc("/api/podcasts/{name}/episodes", h.ListEpisodes).Methods(http.MethodGet)
	r.HandleFunc("/api/runs", h.ListRuns).Methods(http.MethodGet)
	r.HandleFunc("/api/run", h.TriggerRun).Methods(http.MethodPost)
	r.HandleFunc("/rss/{name}", h.GetRSSFeed).Methods(http.MethodGet)

	log.Printf("Starting server on :%s (commit: %s)", port, CommitSHA)
	if err := http.ListenAndServe(":"+port, r); err != nil {
		log.Fatal(err)
	}
}
