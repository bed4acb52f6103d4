package model

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

// LectureRef is an immutable snapshot of a lecture from the catalog.
//
// A LectureRef is created when catalog metadata is fetched and never
// mutated afterwards. Every subsystem (playback queue, download manager,
// UI surfaces) passes these snapshots around by value.
//
// Example:
//
//	lecture := model.LectureRef{
//	    ID:              "lec-042",
//	    Title:           "The Nature of Attention",
//	    SpeakerName:     "A. Sharma",
//	    DurationSeconds: 3420,
//	}
//	fmt.Println(lecture.FormatDuration()) // "57:00"
type LectureRef struct {
	// ID is the catalog identifier, unique across all lectures.
	ID string `json:"id"`

	// Title is the lecture title.
	Title string `json:"title"`

	// SpeakerName is the name of the speaker.
	SpeakerName string `json:"speaker_name"`

	// ThumbnailURL is the URL of the lecture artwork.
	// Empty string means no artwork is available.
	ThumbnailURL string `json:"thumbnail_url"`

	// DurationSeconds is the lecture length as reported by the catalog.
	DurationSeconds float64 `json:"duration_seconds"`

	// PublishedAt is when the lecture was published.
	PublishedAt time.Time `json:"published_at"`
}

// FormatDuration renders the lecture duration as MM:SS, or H:MM:SS for
// lectures of an hour or longer.
func (l LectureRef) FormatDuration() string {
	return FormatClock(l.DurationSeconds)
}

// FormatClock renders a position in seconds as MM:SS, or H:MM:SS once the
// value reaches an hour. Negative values render as 0:00.
func FormatClock(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	total := int(seconds)
	h := total / 3600
	m := (total % 3600) / 60
	s := total % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

// PathConfig holds path formatting settings for offline lecture copies.
//
// FileNameFormat supports placeholders replaced with lecture values:
//   - {id} - Lecture ID
//   - {speaker} - Speaker name
//   - {title} - Lecture title
//
// Example:
//
//	cfg := &model.PathConfig{
//	    DownloadsPath:  "/data/lectures",
//	    FileNameFormat: "{speaker} - {title}.mp3",
//	}
type PathConfig struct {
	// DownloadsPath is the directory completed downloads are stored in.
	DownloadsPath string

	// FileNameFormat is the template for audio filenames.
	// Must include the file extension (typically ".mp3").
	FileNameFormat string
}

// AudioPath computes the local file path for a lecture's offline audio.
//
// Invalid filename characters are replaced with underscores, and the
// total path is truncated to stay under the Windows MAX_PATH limit.
func (c *PathConfig) AudioPath(lecture LectureRef) string {
	name := c.FileNameFormat
	name = strings.ReplaceAll(name, "{id}", lecture.ID)
	name = strings.ReplaceAll(name, "{speaker}", lecture.SpeakerName)
	name = strings.ReplaceAll(name, "{title}", lecture.Title)
	name = SanitizeFileName(name)

	path := filepath.Join(c.DownloadsPath, name)

	// Limit total path length for Windows compatibility (MAX_PATH = 260)
	if len(path) >= 260 {
		ext := filepath.Ext(name)
		maxLen := 260 - len(c.DownloadsPath) - len(ext) - 2
		if maxLen > 0 && maxLen < len(name) {
			path = filepath.Join(c.DownloadsPath, name[:maxLen]+ext)
		}
	}

	return path
}

// ArtworkPath computes the local file path for a lecture's offline
// thumbnail, stored next to the audio file.
func (c *PathConfig) ArtworkPath(lecture LectureRef) string {
	name := SanitizeFileName(lecture.ID) + ".jpg"
	return filepath.Join(c.DownloadsPath, name)
}

var (
	invalidChars  = regexp.MustCompile(`[<>:"/\\|?*\x00-\x1f]`)
	trailingDots  = regexp.MustCompile(`\.+$`)
	multiSpace    = regexp.MustCompile(`\s+`)
)

// SanitizeFileName removes or replaces characters that are invalid in
// file/folder names.
//
// The following transformations are applied:
//   - Invalid characters (<>:"/\|?* and control chars 0x00-0x1f) → underscore
//   - Trailing dots → removed (Windows limitation)
//   - Multiple whitespace → single space
//   - Trailing whitespace → removed
func SanitizeFileName(name string) string {
	name = invalidChars.ReplaceAllString(name, "_")
	name = trailingDots.ReplaceAllString(name, "")
	name = multiSpace.ReplaceAllString(name, " ")
	return strings.TrimRight(name, " ")
}
