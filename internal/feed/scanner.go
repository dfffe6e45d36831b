package feed

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/mmcdole/gofeed"
)

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"

var (
	// ErrFeedUnreachable covers network failures, timeouts and non-2xx
	// responses while fetching a feed. Podcast-scoped; the pass goes on.
	ErrFeedUnreachable = errors.New("feed unreachable")
	// ErrFeedMalformed covers documents the parser rejects.
	ErrFeedMalformed = errors.New("feed malformed")
)

// Candidate is one feed entry eligible for cataloguing.
type Candidate struct {
	Fingerprint string
	Title       string
	PublishedAt time.Time
	MediaURL    string
	SizeHint    int64
}

// Scanner fetches and normalizes podcast feeds into candidate episodes.
type Scanner struct {
	client     *http.Client
	maxPerScan int
}

// NewScanner returns a Scanner capping each scan at maxPerScan entries.
// A nil client gets a 30 second timeout default.
func NewScanner(client *http.Client, maxPerScan int) *Scanner {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &Scanner{client: client, maxPerScan: maxPerScan}
}

// Scan fetches a feed and returns its newest candidates, publish date
// descending, capped at the scanner's batch limit. Entries without a parsed
// publish date or an enclosure URL are dropped.
func (s *Scanner) Scan(ctx context.Context, feedURL string) ([]Candidate, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFeedUnreachable, err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFeedUnreachable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: status %d from %s", ErrFeedUnreachable, resp.StatusCode, feedURL)
	}

	parsed, err := gofeed.NewParser().Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFeedMalformed, err)
	}

	var candidates []Candidate
	for _, item := range parsed.Items {
		if item.PublishedParsed == nil {
			continue
		}
		mediaURL, sizeHint := enclosure(item)
		if mediaURL == "" {
			continue
		}
		candidates = append(candidates, Candidate{
			Fingerprint: Fingerprint(item.GUID, item.Title, *item.PublishedParsed, mediaURL),
			Title:       item.Title,
			PublishedAt: *item.PublishedParsed,
			MediaURL:    mediaURL,
			SizeHint:    sizeHint,
		})
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].PublishedAt.After(candidates[j].PublishedAt)
	})
	if s.maxPerScan > 0 && len(candidates) > s.maxPerScan {
		candidates = candidates[:s.maxPerScan]
	}

	log.Printf("Scanned %s: %d candidate episodes", feedURL, len(candidates))
	return candidates, nil
}

func enclosure(item *gofeed.Item) (string, int64) {
	for _, enc := range item.Enclosures {
		if enc == nil || enc.URL == "" {
			continue
		}
		length, _ := strconv.ParseInt(enc.Length, 10, 64)
		return enc.URL, length
	}
	return "", 0
}
