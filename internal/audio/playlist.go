package audio

import (
	"fmt"
	"path/filepath"
	"strings"
)

// PlaylistFormat represents supported playlist file formats.
type PlaylistFormat int

const (
	// FormatM3U creates .m3u files (most compatible). Can be extended
	// with EXTINF lines for duration/title info.
	FormatM3U PlaylistFormat = iota

	// FormatPLS creates .pls files (INI-style, Winamp lineage).
	FormatPLS
)

// Extension returns the file extension for the format, including the dot.
func (f PlaylistFormat) Extension() string {
	if f == FormatPLS {
		return ".pls"
	}
	return ".m3u"
}

// PlaylistEntry is one playable item in an exported playlist.
type PlaylistEntry struct {
	// Path is the local audio file path.
	Path string

	// Title is the lecture title.
	Title string

	// Artist is the speaker name.
	Artist string

	// DurationSeconds is the lecture length.
	DurationSeconds float64
}

// PlaylistCreator exports an offline playlist over completed downloads.
//
// Entry paths are written relative (just the filename), assuming the
// playlist file sits in the downloads directory next to the audio.
//
// Example:
//
//	creator := audio.NewPlaylistCreator(audio.FormatM3U, true)
//	content := creator.Create("Offline lectures", entries)
//	os.WriteFile(filepath.Join(dir, "offline"+audio.FormatM3U.Extension()), []byte(content), 0644)
type PlaylistCreator struct {
	format   PlaylistFormat
	extended bool // For M3U: include EXTINF lines with duration/title
}

// NewPlaylistCreator creates a new PlaylistCreator. The extended flag
// only affects the M3U format.
func NewPlaylistCreator(format PlaylistFormat, extended bool) *PlaylistCreator {
	return &PlaylistCreator{format: format, extended: extended}
}

// Create generates playlist content for the given entries.
func (p *PlaylistCreator) Create(title string, entries []PlaylistEntry) string {
	if p.format == FormatPLS {
		return p.createPLS(entries)
	}
	return p.createM3U(entries)
}

func (p *PlaylistCreator) createM3U(entries []PlaylistEntry) string {
	var sb strings.Builder

	if p.extended {
		sb.WriteString("#EXTM3U\n")
	}
	for _, e := range entries {
		if p.extended {
			fmt.Fprintf(&sb, "#EXTINF:%d,%s - %s\n", int(e.DurationSeconds), e.Artist, e.Title)
		}
		sb.WriteString(filepath.Base(e.Path))
		sb.WriteString("\n")
	}

	return sb.String()
}

func (p *PlaylistCreator) createPLS(entries []PlaylistEntry) string {
	var sb strings.Builder

	sb.WriteString("[playlist]\n")
	for i, e := range entries {
		n := i + 1
		fmt.Fprintf(&sb, "File%d=%s\n", n, filepath.Base(e.Path))
		fmt.Fprintf(&sb, "Title%d=%s - %s\n", n, e.Artist, e.Title)
		fmt.Fprintf(&sb, "Length%d=%d\n", n, int(e.DurationSeconds))
	}
	fmt.Fprintf(&sb, "NumberOfEntries=%d\n", len(entries))
	sb.WriteString("Version=2\n")

	return sb.String()
}
