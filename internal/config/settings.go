package config

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/lecturecast/lecturecast/internal/model"
)

// Settings holds all configuration options.
type Settings struct {
	// Catalog endpoints
	CatalogBaseURL  string `json:"catalog_base_url"`
	ProgressSyncURL string `json:"progress_sync_url"`

	// Download settings
	DownloadsPath          string  `json:"downloads_path"`
	MaxConcurrentDownloads int     `json:"max_concurrent_downloads"`
	DownloadMaxRetries     int     `json:"download_max_retries"`
	DownloadRetryCooldown  float64 `json:"download_retry_cooldown"`
	DownloadRetryExponent  float64 `json:"download_retry_exponent"`
	MinFreeSpaceBytes      uint64  `json:"min_free_space_bytes"`

	// Progress reporting throttle
	ProgressMinIntervalMs int     `json:"progress_min_interval_ms"`
	ProgressMinPercent    float64 `json:"progress_min_percent"`

	// File naming
	FileNameFormat string `json:"file_name_format"`

	// Offline artwork settings
	SaveArtwork        bool `json:"save_artwork"`
	ArtworkMaxSize     int  `json:"artwork_max_size"`
	EmbedArtworkInTags bool `json:"embed_artwork_in_tags"`

	// Tag settings
	ModifyTags bool `json:"modify_tags"`

	// Playback settings
	PositionTickMs     int `json:"position_tick_ms"`
	PositionSyncEveryS int `json:"position_sync_every_s"`
}

// DefaultSettings returns settings with default values.
func DefaultSettings() *Settings {
	homeDir, _ := os.UserHomeDir()
	return &Settings{
		CatalogBaseURL:  "https://api.lecturecast.app/v1",
		ProgressSyncURL: "https://api.lecturecast.app/v1/progress",

		DownloadsPath:          filepath.Join(homeDir, "Lectures"),
		MaxConcurrentDownloads: 2,
		DownloadMaxRetries:     3,
		DownloadRetryCooldown:  0.5,
		DownloadRetryExponent:  2.0,
		MinFreeSpaceBytes:      64 * 1024 * 1024,

		ProgressMinIntervalMs: 250,
		ProgressMinPercent:    1.0,

		FileNameFormat: "{speaker} - {title}.mp3",

		SaveArtwork:        true,
		ArtworkMaxSize:     500,
		EmbedArtworkInTags: true,

		ModifyTags: true,

		PositionTickMs:     500,
		PositionSyncEveryS: 15,
	}
}

// Load reads settings from a JSON file.
//
// A missing file is not an error; defaults are returned instead.
func Load(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultSettings(), nil
		}
		return nil, err
	}

	settings := DefaultSettings()
	if err := json.Unmarshal(data, settings); err != nil {
		return nil, err
	}

	return settings, nil
}

// Save writes settings to a JSON file.
func (s *Settings) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// ToPathConfig converts settings to a model.PathConfig.
func (s *Settings) ToPathConfig() *model.PathConfig {
	return &model.PathConfig{
		DownloadsPath:  s.DownloadsPath,
		FileNameFormat: s.FileNameFormat,
	}
}
