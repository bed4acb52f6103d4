// Package audio provides audio file services for offline lecture
// copies: ID3 tag writing and offline playlist export.
//
// # ID3 Tagging
//
// The Tagger writes lecture metadata into downloaded MP3 files before
// they are promoted to their final path:
//
//	tagger := audio.NewTagger(true)
//	err := tagger.Tag(tempPath, lecture, artworkBytes)
//
// # Playlist Export
//
// Completed downloads can be exported as an offline playlist:
//
//	creator := audio.NewPlaylistCreator(audio.FormatM3U, true) // extended M3U
//	content := creator.Create("Offline lectures", entries)
//
// Supported formats: M3U (with optional extended info) and PLS.
package audio
