// Package storage provides the on-disk layout and durability primitives
// for offline lecture copies.
//
// # Layout
//
// Layout keeps in-flight temp files and final audio files on the same
// volume so the completing rename is atomic:
//
//	layout := storage.NewLayout(settings.DownloadsPath)
//	_ = layout.EnsureDirs()
//	tmp := layout.TempPath(jobID)
//	// stream into tmp, then:
//	err := layout.Promote(tmp, finalPath)
//
// Layout also answers free-space queries (via gopsutil) so the download
// manager can refuse a transfer before allocating anything.
//
// # Atomic JSON persistence
//
// The download registry is persisted with temp-file + rename semantics:
//
//	err := storage.WriteJSONAtomic(path, records)
//	err = storage.ReadJSON(path, &records)
package storage
