package download

import (
	"time"

	"github.com/lecturecast/lecturecast/internal/model"
)

// Status is the lifecycle state of a download record.
type Status string

const (
	// StatusQueued means the job is waiting for a worker slot.
	StatusQueued Status = "queued"

	// StatusDownloading means bytes are being transferred.
	StatusDownloading Status = "downloading"

	// StatusCompleted means the final file is fully written and
	// promoted; only Completed records count toward storage usage.
	StatusCompleted Status = "completed"

	// StatusFailed means the transfer failed after its retries; a
	// fresh StartDownload may try again.
	StatusFailed Status = "failed"

	// StatusCanceled means the transfer was aborted by the user and
	// its partial file removed.
	StatusCanceled Status = "canceled"
)

// InFlight reports whether the status occupies the one in-flight slot a
// lecture is allowed.
func (s Status) InFlight() bool {
	return s == StatusQueued || s == StatusDownloading
}

// Terminal reports whether the status is a final sub-state.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCanceled
}

// Record is the persisted state of one offline copy.
//
// A record is created by StartDownload and destroyed by a successful
// DeleteDownload. BytesDownloaded never exceeds TotalBytes (when the
// total is known), and at most one record per lecture is in-flight at a
// time.
type Record struct {
	// Lecture is the catalog snapshot the download was started from.
	Lecture model.LectureRef `json:"lecture"`

	// LocalPath is the final audio path; the file exists there only
	// once Status is Completed.
	LocalPath string `json:"local_path"`

	// ArtworkPath is the offline thumbnail path, empty when artwork
	// was unavailable or disabled.
	ArtworkPath string `json:"artwork_path,omitempty"`

	// Status is the record's lifecycle state.
	Status Status `json:"status"`

	// BytesDownloaded is the number of bytes received so far (the
	// final size once Completed).
	BytesDownloaded int64 `json:"bytes_downloaded"`

	// TotalBytes is the expected size from Content-Length, 0 when
	// unknown.
	TotalBytes int64 `json:"total_bytes"`

	// CreatedAt is when StartDownload admitted the record.
	CreatedAt time.Time `json:"created_at"`

	// Error holds the failure description when Status is Failed.
	Error string `json:"error,omitempty"`
}

// LectureID returns the catalog ID the record belongs to.
func (r *Record) LectureID() string {
	return r.Lecture.ID
}

// clone returns a copy safe to hand to subscribers and callers.
func (r *Record) clone() Record {
	return *r
}
