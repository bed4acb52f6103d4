// Package config provides configuration management for lecturecast.
//
// This package handles:
//   - Loading and saving settings from JSON files
//   - Default configuration values
//   - Conversion to model.PathConfig for path computation
//
// # Default Settings
//
// Use DefaultSettings() to get sensible defaults:
//
//	settings := config.DefaultSettings()
//	// Downloads to ~/Lectures
//	// Two concurrent downloads
//	// ID3 tagging and offline artwork enabled
//
// # Loading from File
//
//	settings, err := config.Load("/path/to/config.json")
//	// Uses defaults if the file doesn't exist
//
// # Saving Settings
//
//	settings.DownloadsPath = "/data/lectures"
//	err := settings.Save("/path/to/config.json")
package config
