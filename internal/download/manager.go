package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"syscall"
	"time"

	"golang.org/x/time/rate"

	"podcast-drive/internal/db"
	"podcast-drive/internal/models"
)

var (
	// ErrSizeMismatch means the transfer ended short of the size the
	// server advertised. The partial file is kept for a later resume.
	ErrSizeMismatch = errors.New("downloaded size does not match expected size")
	// ErrDiskFull means the local disk ran out of space mid-transfer.
	ErrDiskFull = errors.New("local disk full")
)

// Manager downloads episode media with resume support. A download is only
// considered done once the temp file has been verified and renamed into
// place; a file at the final path is therefore always complete.
type Manager struct {
	client      *http.Client
	baseDir     string
	limiter     *rate.Limiter
	maxAttempts int

	// progressBytes/progressEvery bound how often the resume point is
	// persisted so large files do not turn into catalog write storms.
	progressBytes int64
	progressEvery time.Duration
	backoffBase   time.Duration
}

// NewManager returns a download manager writing under baseDir. A nil
// client gets a long timeout suited to large media files.
func NewManager(client *http.Client, baseDir string) *Manager {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Minute}
	}
	return &Manager{
		client:        client,
		baseDir:       baseDir,
		maxAttempts:   3,
		progressBytes: 1 << 20,
		progressEvery: 3 * time.Second,
		backoffBase:   time.Second,
	}
}

// SetLimiter installs a shared bandwidth limiter (bytes per second).
func (m *Manager) SetLimiter(l *rate.Limiter) { m.limiter = l }

// Download fetches an episode's media into <baseDir>/<folderName>/. The
// episode must be DISCOVERED, DOWNLOAD_FAILED, or left DOWNLOADING by an
// unclean shutdown; anything else returns ErrStateConflict untouched.
func (m *Manager) Download(ctx context.Context, ep models.Episode, folderName string) error {
	dir := filepath.Join(m.baseDir, Sanitize(folderName))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", dir, err)
	}
	finalPath := filepath.Join(dir, Filename(ep))

	if err := db.MarkDownloading(ep.ID, finalPath); err != nil {
		return err
	}

	var lastErr error
	for attempt := 1; attempt <= m.maxAttempts; attempt++ {
		if attempt > 1 {
			delay := m.backoffBase << (attempt - 2)
			log.Printf("Retrying download of %q (attempt %d/%d) after %v", ep.Title, attempt, m.maxAttempts, delay)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
			}
			if ctx.Err() != nil {
				lastErr = ctx.Err()
				break
			}
		}
		lastErr = m.fetch(ctx, ep, finalPath)
		if lastErr == nil {
			return nil
		}
		// Disk full and cancellation do not get better by retrying
		// right now; leave the partial for the next pass.
		if errors.Is(lastErr, ErrDiskFull) || ctx.Err() != nil {
			break
		}
	}

	// Cancellation is not a download failure: the row stays DOWNLOADING
	// and the next pass resumes from the partial.
	if ctx.Err() != nil {
		log.Printf("Download of %q interrupted: %v", ep.Title, lastErr)
		return lastErr
	}

	log.Printf("Download failed for %q: %v", ep.Title, lastErr)
	if err := db.MarkDownloadFailed(ep.ID, lastErr.Error()); err != nil {
		return err
	}
	return lastErr
}

// fetch performs one transfer attempt: resume from the .part file when the
// server honors the range, restart from zero when it does not.
func (m *Manager) fetch(ctx context.Context, ep models.Episode, finalPath string) error {
	partPath := finalPath + ".part"

	var offset int64
	if fi, err := os.Stat(partPath); err == nil {
		offset = fi.Size()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ep.MediaURL, nil)
	if err != nil {
		return fmt.Errorf("creating request for %s: %w", ep.MediaURL, err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36")
	if offset > 0 {
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-", offset))
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return fmt.Errorf("fetching %s: %w", ep.MediaURL, err)
	}
	defer resp.Body.Close()

	var f *os.File
	switch resp.StatusCode {
	case http.StatusPartialContent:
		f, err = os.OpenFile(partPath, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0o644)
	case http.StatusOK:
		// Server ignored (or never saw) the range header: start over.
		offset = 0
		f, err = os.OpenFile(partPath, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	case http.StatusRequestedRangeNotSatisfiable:
		os.Remove(partPath)
		return fmt.Errorf("range %d not satisfiable for %s", offset, ep.MediaURL)
	default:
		return fmt.Errorf("unexpected status %d from %s", resp.StatusCode, ep.MediaURL)
	}
	if err != nil {
		return fmt.Errorf("opening %s: %w", partPath, err)
	}

	var expected int64
	if resp.ContentLength >= 0 {
		expected = offset + resp.ContentLength
	} else if ep.SizeHint > 0 {
		expected = ep.SizeHint
	}

	written, copyErr := m.copyWithProgress(ctx, f, resp.Body, ep.ID, offset)
	syncErr := f.Sync()
	closeErr := f.Close()
	total := offset + written

	if copyErr != nil {
		// The partial stays on disk; offset resumes from here next time.
		if isDiskFull(copyErr) {
			return fmt.Errorf("%w: %d bytes written to %s", ErrDiskFull, total, partPath)
		}
		return fmt.Errorf("reading %s: %w", ep.MediaURL, copyErr)
	}
	if syncErr != nil {
		return fmt.Errorf("flushing %s: %w", partPath, syncErr)
	}
	if closeErr != nil {
		return fmt.Errorf("closing %s: %w", partPath, closeErr)
	}

	if total == 0 {
		return fmt.Errorf("empty download from %s", ep.MediaURL)
	}
	if expected > 0 && total != expected {
		return fmt.Errorf("%w: got %d, want %d", ErrSizeMismatch, total, expected)
	}

	// The rename is the atomicity boundary: a file at finalPath is always
	// a complete, verified download.
	if err := os.Rename(partPath, finalPath); err != nil {
		return fmt.Errorf("renaming %s: %w", partPath, err)
	}

	if err := db.MarkDownloaded(ep.ID, finalPath, total); err != nil {
		return err
	}
	log.Printf("Downloaded %q (%d bytes) to %s", ep.Title, total, finalPath)
	return nil
}

// copyWithProgress streams body to f, persisting the resume point at most
// every progressBytes/progressEvery.
func (m *Manager) copyWithProgress(ctx context.Context, f *os.File, body io.Reader, episodeID int, offset int64) (int64, error) {
	buf := make([]byte, 32*1024)
	var written, sinceFlush int64
	lastFlush := time.Now()

	for {
		if err := ctx.Err(); err != nil {
			return written, err
		}
		n, readErr := body.Read(buf)
		if n > 0 {
			if m.limiter != nil {
				if err := m.limiter.WaitN(ctx, n); err != nil {
					return written, err
				}
			}
			wn, writeErr := f.Write(buf[:n])
			written += int64(wn)
			sinceFlush += int64(wn)
			if writeErr != nil {
				return written, writeErr
			}

			if sinceFlush >= m.progressBytes || time.Since(lastFlush) >= m.progressEvery {
				if err := db.RecordProgress(episodeID, offset+written); err != nil {
					log.Printf("Failed to record download progress for episode %d: %v", episodeID, err)
				}
				sinceFlush = 0
				lastFlush = time.Now()
			}
		}
		if readErr == io.EOF {
			return written, nil
		}
		if readErr != nil {
			return written, readErr
		}
	}
}

func isDiskFull(err error) bool {
	return errors.Is(err, syscall.ENOSPC)
}
