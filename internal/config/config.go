package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Podcast is one configured feed. Enabled is a pointer so that an absent
// key means enabled, matching the config files this replaces.
type Podcast struct {
	Name         string `json:"name"`
	FeedURL      string `json:"feed_url"`
	FolderName   string `json:"folder_name"`
	Enabled      *bool  `json:"enabled,omitempty"`
	KeepCount    int    `json:"keep_count"`
	DeleteRemote bool   `json:"delete_remote"`
}

func (p Podcast) IsEnabled() bool {
	return p.Enabled == nil || *p.Enabled
}

type Settings struct {
	CheckIntervalHours     int    `json:"check_interval_hours"`
	MaxEpisodesPerScan     int    `json:"max_episodes_per_scan"`
	DownloadDir            string `json:"download_dir"`
	MaxConcurrentPodcasts  int    `json:"max_concurrent_podcasts"`
	MaxConcurrentDownloads int    `json:"max_concurrent_downloads"`
	MaxConcurrentUploads   int    `json:"max_concurrent_uploads"`
}

// Config is the immutable snapshot a pass works from. It is loaded once per
// pass; edits to the source take effect on the next one.
type Config struct {
	Podcasts []Podcast `json:"podcasts"`
	Settings Settings  `json:"settings"`
}

// Load reads configuration from the PODCASTS_CONFIG environment variable
// (cloud deployment) or config/podcasts.json (development), in that order.
func Load() (*Config, error) {
	if raw := os.Getenv("PODCASTS_CONFIG"); raw != "" {
		return parse([]byte(raw), "PODCASTS_CONFIG")
	}

	path := filepath.Join("config", "podcasts.json")
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		cfg := &Config{}
		cfg.applyDefaults()
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return parse(data, path)
}

func parse(data []byte, source string) (*Config, error) {
	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("invalid JSON in %s: %w", source, err)
	}
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Settings.CheckIntervalHours <= 0 {
		c.Settings.CheckIntervalHours = 6
	}
	if c.Settings.MaxEpisodesPerScan <= 0 {
		c.Settings.MaxEpisodesPerScan = 5
	}
	if c.Settings.DownloadDir == "" {
		c.Settings.DownloadDir = "downloads"
	}
	if dir := os.Getenv("DOWNLOAD_DIR"); dir != "" {
		c.Settings.DownloadDir = dir
	}
	if c.Settings.MaxConcurrentPodcasts <= 0 {
		c.Settings.MaxConcurrentPodcasts = 2
	}
	if c.Settings.MaxConcurrentDownloads <= 0 {
		c.Settings.MaxConcurrentDownloads = 3
	}
	if c.Settings.MaxConcurrentUploads <= 0 {
		c.Settings.MaxConcurrentUploads = 2
	}
}

// EnabledPodcasts returns the podcasts a pass should process.
func (c *Config) EnabledPodcasts() []Podcast {
	var enabled []Podcast
	for _, p := range c.Podcasts {
		if p.IsEnabled() {
			enabled = append(enabled, p)
		}
	}
	return enabled
}
