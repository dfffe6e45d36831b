package main

import (
	"context"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	"golang.org/x/time/rate"
	"google.golang.org/api/option"

	"podcast-drive/internal/config"
	"podcast-drive/internal/db"
	"podcast-drive/internal/download"
	"podcast-drive/internal/drive"
	"podcast-drive/internal/feed"
	"podcast-drive/internal/retention"
	"podcast-drive/internal/upload"
	"podcast-drive/internal/worker"
	"podcast-drive/pkg/tasks"
)

// CommitSHA is set at build time via ldflags
var CommitSHA = "unknown"

func main() {
	err := godotenv.Load()
	if err != nil {
		log.Println("Error loading .env file")
	}

	db.InitDB()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("could not load config: %v", err)
	}

	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		redisAddr = "127.0.0.1:6379"
	}

	var store drive.Store
	if credsFile := os.Getenv("GOOGLE_CREDENTIALS_FILE"); credsFile != "" {
		d, err := drive.New(context.Background(), option.WithCredentialsFile(credsFile))
		if err != nil {
			log.Fatalf("could not init Drive client: %v", err)
		}
		store = d
	} else {
		log.Println("GOOGLE_CREDENTIALS_FILE not set, uploads disabled")
	}

	scanner := feed.NewScanner(nil, cfg.Settings.MaxEpisodesPerScan)
	downloads := download.NewManager(nil, cfg.Settings.DownloadDir)
	if bps, err := strconv.Atoi(os.Getenv("DOWNLOAD_BYTES_PER_SEC")); err == nil && bps > 0 {
		downloads.SetLimiter(rate.NewLimiter(rate.Limit(bps), bps))
	}
	uploads := upload.NewManager(store)
	ret := retention.NewManager(store)
	// Each pass re-reads the config, so podcast list and retention edits
	// apply without restarting the worker.
	runner := worker.NewRunner(config.Load, scanner, downloads, uploads, ret, store)

	srv := asynq.NewServer(
		asynq.RedisClientOpt{Addr: redisAddr},
		asynq.Config{
			Concurrency: 1, // Passes serialize on the catalog, one at a time is plenty
			Queues: map[string]int{
				"high":    2,
				"default": 1,
			},
			// Custom retry delay function for exponential backoff
			RetryDelayFunc: func(n int, err error, task *asynq.Task) time.Duration {
				delay := 5 * time.Minute
				maxDelay := 24 * time.Hour

				// Exponential backoff: 5min, 10min, 20min, 40min, 80min, etc.
				for i := 0; i < n; i++ {
					delay *= 2
					if delay > maxDelay {
						delay = maxDelay
						break
					}
				}

				log.Printf("Task %s failed %d times, retrying in %v", task.Type(), n+1, delay)
				return delay
			},
		},
	)

	mux := asynq.NewServeMux()
	taskHandler := worker.NewTaskHandler(runner)

	mux.HandleFunc(tasks.TypeRunPass, taskHandler.HandleRunPassTask)
	mux.HandleFunc(tasks.TypeEnforceRetention, taskHandler.HandleEnforceRetentionTask)

	log.Printf("Worker starting (commit: %s)", CommitSHA)
	if err := srv.Run(mux); err != nil {
		log.Fatalf("could not run server: %v", err)
	}
}
