package storage

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/shirou/gopsutil/v3/disk"
)

// Layout describes the on-disk layout for offline lecture copies.
//
// Final audio files live directly under Root. In-flight transfers are
// written to a hidden partials directory under Root so that a temp file
// and its final destination are always on the same volume, keeping the
// final rename atomic.
//
// Example:
//
//	layout := storage.NewLayout("/data/lectures")
//	tmp := layout.TempPath("3f2a...")
//	// ... stream bytes into tmp ...
//	err := layout.Promote(tmp, layout.Root+"/A. Rao - Stillness.mp3")
type Layout struct {
	// Root is the downloads directory.
	Root string
}

// NewLayout creates a Layout rooted at the given downloads directory.
func NewLayout(root string) *Layout {
	return &Layout{Root: root}
}

// partialsDir is where in-flight temp files live.
func (l *Layout) partialsDir() string {
	return filepath.Join(l.Root, ".partial")
}

// EnsureDirs creates the downloads root and the partials directory.
func (l *Layout) EnsureDirs() error {
	if err := os.MkdirAll(l.Root, 0755); err != nil {
		return err
	}
	return os.MkdirAll(l.partialsDir(), 0755)
}

// TempPath returns the temp file path for an in-flight download job.
func (l *Layout) TempPath(jobID string) string {
	return filepath.Join(l.partialsDir(), jobID+".part")
}

// Promote atomically moves a fully-written temp file to its final path.
//
// The rename is atomic because both paths live under Root; the final
// path never exists in a partially-written state.
func (l *Layout) Promote(tempPath, finalPath string) error {
	if err := os.Rename(tempPath, finalPath); err != nil {
		return fmt.Errorf("promote %s: %w", filepath.Base(finalPath), err)
	}
	return nil
}

// Remove deletes a file, treating a missing file as success.
func (l *Layout) Remove(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// FreeSpace returns the number of bytes available on the volume that
// holds the downloads root.
func (l *Layout) FreeSpace() (uint64, error) {
	usage, err := disk.Usage(l.Root)
	if err != nil {
		return 0, fmt.Errorf("query free space: %w", err)
	}
	return usage.Free, nil
}

// SweepPartials removes every leftover temp file, typically at startup
// after an unclean shutdown.
func (l *Layout) SweepPartials() error {
	entries, err := os.ReadDir(l.partialsDir())
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		os.Remove(filepath.Join(l.partialsDir(), entry.Name()))
	}
	return nil
}
