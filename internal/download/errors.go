package download

import "errors"

// Sentinel errors returned at the Manager API boundary.
var (
	// ErrAlreadyInProgress is returned by StartDownload when a record
	// for the lecture is already Queued or Downloading.
	ErrAlreadyInProgress = errors.New("download already in progress")

	// ErrStorageFull is returned by StartDownload when the downloads
	// volume does not have enough free space. It is checked before any
	// temp file is allocated.
	ErrStorageFull = errors.New("not enough free storage")

	// ErrClosed is returned by StartDownload after the manager has
	// been shut down.
	ErrClosed = errors.New("download manager closed")
)

// errCorrupt marks a completed transfer whose size did not match the
// declared Content-Length. It triggers exactly one automatic
// re-download before the record is surfaced as Failed.
var errCorrupt = errors.New("downloaded file failed verification")
