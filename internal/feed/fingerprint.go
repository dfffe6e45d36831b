package feed

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Fingerprint derives the stable identity of a feed entry. The feed's own
// GUID wins when present; otherwise the entry is identified by a hash of
// title, publish time and enclosure URL, which tolerates feeds that never
// set <guid>.
func Fingerprint(guid, title string, publishedAt time.Time, mediaURL string) string {
	if guid != "" {
		return guid
	}
	h := sha256.New()
	h.Write([]byte(title))
	h.Write([]byte("|"))
	h.Write([]byte(publishedAt.UTC().Format(time.RFC3339)))
	h.Write([]byte("|"))
	h.Write([]byte(mediaURL))
	return hex.EncodeToString(h.Sum(nil))
}
