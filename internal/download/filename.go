package download

import (
	"net/url"
	"path"
	"strings"

	"podcast-drive/internal/models"
)

// invalid filename characters, the Windows superset.
const invalidChars = `<>:"/\|?*`

// Sanitize makes a string safe to use as a file or directory name.
func Sanitize(name string) string {
	for _, c := range invalidChars {
		name = strings.ReplaceAll(name, string(c), "_")
	}
	name = strings.Join(strings.Fields(name), " ")

	var parts []string
	for _, p := range strings.Split(name, "_") {
		if p != "" {
			parts = append(parts, p)
		}
	}
	name = strings.Join(parts, "_")
	name = strings.Trim(name, ". ")

	if name == "" {
		return "untitled"
	}
	return name
}

// Filename builds the episode's on-disk name: a fingerprint prefix keeps
// titles that collide apart, the extension follows the media URL.
func Filename(ep models.Episode) string {
	ext := ".mp3"
	if u, err := url.Parse(ep.MediaURL); err == nil {
		if e := path.Ext(u.Path); e != "" && len(e) <= 5 {
			ext = e
		}
	}

	prefix := ep.Fingerprint
	if len(prefix) > 8 {
		prefix = prefix[:8]
	}
	prefix = Sanitize(prefix)

	title := Sanitize(ep.Title)
	name := prefix + "-" + title + ext
	if len(name) > 200 {
		keep := 200 - len(ext) - len(prefix) - 1
		name = prefix + "-" + title[:keep] + ext
	}
	return name
}
