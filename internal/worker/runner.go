package worker

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"podcast-drive/internal/config"
	"podcast-drive/internal/db"
	"podcast-drive/internal/download"
	"podcast-drive/internal/drive"
	"podcast-drive/internal/feed"
	"podcast-drive/internal/models"
	"podcast-drive/internal/retention"
	"podcast-drive/internal/upload"
)

// driveRootFolder is the folder everything lands under in Drive.
const driveRootFolder = "Podcasts"

// ErrPassActive is returned when a trigger arrives while a pass is already
// running. The trigger is coalesced: the running pass will pick up the same
// work, so a second one would only double-process.
var ErrPassActive = errors.New("a pass is already running")

// Runner drives one full pass: scan, download, upload, retention, per
// enabled podcast. The pass-level mutex is the only in-memory lock; all
// cross-component state lives in the catalog. Configuration is loaded
// fresh at the start of every pass, so edits to the podcast list or
// retention knobs take effect on the next pass without a restart.
type Runner struct {
	mu sync.Mutex

	load      func() (*config.Config, error)
	scanner   *feed.Scanner
	downloads *download.Manager
	uploads   *upload.Manager
	retention *retention.Manager
	store     drive.Store // nil when Drive is not configured
}

func NewRunner(load func() (*config.Config, error), scanner *feed.Scanner, downloads *download.Manager, uploads *upload.Manager, ret *retention.Manager, store drive.Store) *Runner {
	return &Runner{
		load:      load,
		scanner:   scanner,
		downloads: downloads,
		uploads:   uploads,
		retention: ret,
		store:     store,
	}
}

// RunPass executes one pass over a fresh config snapshot. Only one pass
// runs at a time; a concurrent call returns ErrPassActive without doing
// any work.
func (r *Runner) RunPass(ctx context.Context, runType string) error {
	if !r.mu.TryLock() {
		log.Println("Pass trigger coalesced: a pass is already running")
		return ErrPassActive
	}
	defer r.mu.Unlock()

	cfg, err := r.load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	podcasts := cfg.EnabledPodcasts()
	settings := cfg.Settings

	runID, err := db.StartRun(runType, fmt.Sprintf("Processing %d podcasts", len(podcasts)))
	if err != nil {
		return fmt.Errorf("recording run start: %w", err)
	}

	folders := r.ensureFolders(ctx, podcasts)

	var (
		statsMu    sync.Mutex
		downloaded int
		uploaded   int
		failures   int
	)

	limit := settings.MaxConcurrentPodcasts
	if limit < 1 {
		limit = 1
	}
	sem := make(chan struct{}, limit)
	var wg sync.WaitGroup
	for _, pc := range podcasts {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(pc config.Podcast) {
			defer wg.Done()
			defer func() { <-sem }()

			d, u, err := r.processPodcast(ctx, pc, folders[pc.FolderName], settings)
			statsMu.Lock()
			downloaded += d
			uploaded += u
			if err != nil {
				failures++
			}
			statsMu.Unlock()
			if err != nil {
				log.Printf("Error processing podcast %s: %v", pc.Name, err)
			}
		}(pc)
	}
	wg.Wait()

	status := db.RunStatusCompleted
	msg := fmt.Sprintf("Downloaded: %d, Uploaded: %d", downloaded, uploaded)
	if failures > 0 {
		msg += fmt.Sprintf(", Podcast errors: %d", failures)
	}
	if err := ctx.Err(); err != nil {
		status = db.RunStatusError
		msg += fmt.Sprintf(", aborted: %v", err)
	}
	if err := db.FinishRun(runID, status, msg); err != nil {
		log.Printf("Failed to record run finish: %v", err)
	}
	log.Printf("Pass complete. %s", msg)
	return ctx.Err()
}

// ensureFolders resolves the Drive folder for every podcast once per pass.
// A failure disables uploads for that podcast this pass, nothing more.
func (r *Runner) ensureFolders(ctx context.Context, podcasts []config.Podcast) map[string]string {
	folders := make(map[string]string)
	if r.store == nil {
		log.Println("Drive not configured; uploads disabled for this pass")
		return folders
	}

	rootID, err := r.store.EnsureFolder(ctx, driveRootFolder, "")
	if err != nil {
		log.Printf("Failed to ensure Drive root folder: %v", err)
		return folders
	}
	for _, pc := range podcasts {
		if _, ok := folders[pc.FolderName]; ok {
			continue
		}
		id, err := r.store.EnsureFolder(ctx, pc.FolderName, rootID)
		if err != nil {
			log.Printf("Failed to ensure Drive folder for %s: %v", pc.Name, err)
			continue
		}
		folders[pc.FolderName] = id
	}
	return folders
}

// processPodcast runs the scan, download, upload and retention stages for
// one podcast. Episode failures are recorded in the catalog and do not
// abort the stage.
func (r *Runner) processPodcast(ctx context.Context, pc config.Podcast, folderID string, settings config.Settings) (downloaded, uploaded int, err error) {
	podcast, err := db.UpsertPodcast(pc.Name, pc.FeedURL, pc.FolderName, pc.IsEnabled(), pc.KeepCount, pc.DeleteRemote)
	if err != nil {
		return 0, 0, fmt.Errorf("upserting podcast: %w", err)
	}
	if folderID != "" && (podcast.DriveFolderID == nil || *podcast.DriveFolderID != folderID) {
		if err := db.UpdatePodcastDriveFolder(podcast.ID, folderID); err != nil {
			log.Printf("Failed to record Drive folder for %s: %v", pc.Name, err)
		}
	}

	if err := r.scanPodcast(ctx, podcast); err != nil {
		// Scan failures skip this podcast's new work, but episodes
		// already catalogued still deserve their retries below.
		log.Printf("Scan failed for %s: %v", pc.Name, err)
	}

	downloaded = r.downloadStage(ctx, podcast, settings)
	if folderID != "" {
		uploaded = r.uploadStage(ctx, podcast, folderID, settings)
	}

	if err := r.retention.Enforce(ctx, podcast); err != nil {
		log.Printf("Retention failed for %s: %v", pc.Name, err)
	}
	return downloaded, uploaded, nil
}

func (r *Runner) scanPodcast(ctx context.Context, podcast models.Podcast) error {
	candidates, err := r.scanner.Scan(ctx, podcast.FeedURL)
	if err != nil {
		return err
	}
	newCount := 0
	for _, c := range candidates {
		_, isNew, err := db.UpsertDiscovered(podcast.ID, c.Fingerprint, c.Title, c.PublishedAt, c.MediaURL, c.SizeHint)
		if err != nil {
			log.Printf("Failed to catalog episode %q: %v", c.Title, err)
			continue
		}
		if isNew {
			newCount++
		}
	}
	if newCount > 0 {
		log.Printf("Discovered %d new episodes for %s", newCount, podcast.Name)
	}
	return nil
}

// downloadStage fetches every episode eligible for download, bounded by
// the per-podcast concurrency cap. Stale DOWNLOADING rows from an unclean
// shutdown are picked up here too.
func (r *Runner) downloadStage(ctx context.Context, podcast models.Podcast, settings config.Settings) int {
	episodes, err := db.ListByState(podcast.ID, db.StateDiscovered, db.StateDownloadFailed, db.StateDownloading)
	if err != nil {
		log.Printf("Failed to list downloadable episodes for %s: %v", podcast.Name, err)
		return 0
	}
	return r.forEach(ctx, episodes, settings.MaxConcurrentDownloads, func(ep models.Episode) error {
		return r.downloads.Download(ctx, ep, podcast.FolderName)
	})
}

func (r *Runner) uploadStage(ctx context.Context, podcast models.Podcast, folderID string, settings config.Settings) int {
	episodes, err := db.ListByState(podcast.ID, db.StateDownloaded, db.StateUploadFailed, db.StateUploading)
	if err != nil {
		log.Printf("Failed to list uploadable episodes for %s: %v", podcast.Name, err)
		return 0
	}
	return r.forEach(ctx, episodes, settings.MaxConcurrentUploads, func(ep models.Episode) error {
		return r.uploads.Upload(ctx, ep, folderID)
	})
}

// forEach runs fn over episodes with bounded concurrency and returns how
// many succeeded. A StateConflict means another pass owns the episode; it
// is skipped quietly and re-evaluated next pass.
func (r *Runner) forEach(ctx context.Context, episodes []models.Episode, limit int, fn func(models.Episode) error) int {
	if limit < 1 {
		limit = 1
	}
	sem := make(chan struct{}, limit)
	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0

	for _, ep := range episodes {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(ep models.Episode) {
			defer wg.Done()
			defer func() { <-sem }()
			err := fn(ep)
			switch {
			case err == nil:
				mu.Lock()
				succeeded++
				mu.Unlock()
			case errors.Is(err, db.ErrStateConflict):
				log.Printf("Episode %d claimed elsewhere, skipping this pass", ep.ID)
			}
		}(ep)
	}
	wg.Wait()
	return succeeded
}

// EnforceRetention applies retention for one podcast outside a full pass,
// optionally overriding the configured keep count (>= 0).
func (r *Runner) EnforceRetention(ctx context.Context, podcastName string, keepCount int) error {
	podcast, err := db.GetPodcastByName(podcastName)
	if err != nil {
		return fmt.Errorf("looking up podcast %s: %w", podcastName, err)
	}
	if keepCount >= 0 {
		podcast.KeepCount = keepCount
	}
	return r.retention.Enforce(ctx, podcast)
}
