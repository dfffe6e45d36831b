package feed

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFingerprintPrefersGUID(t *testing.T) {
	got := Fingerprint("tag:example.com,2024:ep1", "Episode One", time.Now(), "https://example.com/ep1.mp3")
	assert.Equal(t, "tag:example.com,2024:ep1", got)
}

func TestFingerprintStableWithoutGUID(t *testing.T) {
	published := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	a := Fingerprint("", "Episode One", published, "https://example.com/ep1.mp3")
	b := Fingerprint("", "Episode One", published, "https://example.com/ep1.mp3")
	assert.Equal(t, a, b)
	assert.Len(t, a, 64)

	// Same instant in a different zone hashes identically.
	inParis := published.In(time.FixedZone("CET", 3600))
	assert.Equal(t, a, Fingerprint("", "Episode One", inParis, "https://example.com/ep1.mp3"))
}

func TestFingerprintDistinguishesEntries(t *testing.T) {
	published := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	a := Fingerprint("", "Episode One", published, "https://example.com/ep1.mp3")
	assert.NotEqual(t, a, Fingerprint("", "Episode Two", published, "https://example.com/ep1.mp3"))
	assert.NotEqual(t, a, Fingerprint("", "Episode One", published.Add(time.Hour), "https://example.com/ep1.mp3"))
	assert.NotEqual(t, a, Fingerprint("", "Episode One", published, "https://example.com/ep2.mp3"))
}
