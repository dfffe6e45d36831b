package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"

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
)

// Runs the pipeline directly, without Redis or the worker. Useful for
// one-shot syncs from cron and for poking at the catalog.
func main() {
	var (
		once    = flag.Bool("once", false, "run a single pass and exit")
		stats   = flag.Bool("stats", false, "print catalog statistics and exit")
		cleanup = flag.Bool("cleanup", false, "enforce retention and exit")
		podcast = flag.String("podcast", "", "restrict -cleanup to one podcast")
		keep    = flag.Int("keep", -1, "override keep count for -cleanup (-1 uses configured)")
	)
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Println("Error loading .env file")
	}

	db.InitDB()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("could not load config: %v", err)
	}

	ctx := context.Background()

	switch {
	case *stats:
		printStats()
	case *cleanup:
		runCleanup(ctx, cfg, *podcast, *keep)
	case *once:
		runner := buildRunner(ctx, cfg)
		if err := runner.RunPass(ctx, "manual"); err != nil {
			log.Fatalf("pass failed: %v", err)
		}
	default:
		flag.Usage()
		os.Exit(2)
	}
}

func buildRunner(ctx context.Context, cfg *config.Config) *worker.Runner {
	var store drive.Store
	if credsFile := os.Getenv("GOOGLE_CREDENTIALS_FILE"); credsFile != "" {
		d, err := drive.New(ctx, option.WithCredentialsFile(credsFile))
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
	// One-shot invocation: the already loaded snapshot is the pass snapshot.
	return worker.NewRunner(func() (*config.Config, error) { return cfg, nil }, scanner, downloads, uploads, ret, store)
}

func printStats() {
	stats, err := db.GetStats()
	if err != nil {
		log.Fatalf("could not read stats: %v", err)
	}
	fmt.Printf("Podcasts:          %d\n", stats.TotalPodcasts)
	fmt.Printf("Episodes:          %d\n", stats.TotalEpisodes)
	fmt.Printf("Failed episodes:   %d\n", stats.FailedEpisodes)
	fmt.Printf("Bytes transferred: %d\n", stats.BytesTransferred)

	podcasts, err := db.ListPodcasts()
	if err != nil {
		log.Fatalf("could not list podcasts: %v", err)
	}
	for _, p := range podcasts {
		counts, err := db.CountByState(p.ID)
		if err != nil {
			log.Fatalf("could not count episodes for %s: %v", p.Name, err)
		}
		fmt.Printf("\n%s:\n", p.Name)
		for state, n := range counts {
			fmt.Printf("  %-16s %d\n", state, n)
		}
	}
}

func runCleanup(ctx context.Context, cfg *config.Config, name string, keep int) {
	runner := buildRunner(ctx, cfg)
	if name != "" {
		if err := runner.EnforceRetention(ctx, name, keep); err != nil {
			log.Fatalf("retention failed for %s: %v", name, err)
		}
		return
	}
	for _, pc := range cfg.EnabledPodcasts() {
		if err := runner.EnforceRetention(ctx, pc.Name, keep); err != nil {
			log.Printf("retention failed for %s: %v", pc.Name, err)
		}
	}
}
