// Package download maintains offline copies of lectures.
//
// # Manager
//
// The Manager owns the full download lifecycle:
//
//  1. Resolve the lecture's stream URL through the catalog
//  2. Stream bytes to a temp file under .partial/
//  3. Verify the transfer against the declared size
//  4. Fetch and resize the lecture artwork
//  5. Tag the file with ID3 metadata
//  6. Atomically promote the temp file to its final path
//
// The final audio path only ever holds a finished file; everything in
// flight lives under the temp directory and is swept on startup.
//
// # Basic Usage
//
//	manager, err := download.NewManager(settings, client, resolver, nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer manager.Close()
//
//	events, unsubscribe := manager.Subscribe()
//	defer unsubscribe()
//
//	err = manager.StartDownload(lecture)
//
// # Record Lifecycle
//
// Each lecture has at most one Record, moving through
//
//	queued -> downloading -> completed | failed | canceled
//
// A terminal record is replaced by a fresh StartDownload. Records are
// persisted to a JSON registry in the downloads directory and reloaded
// on startup; records interrupted mid-flight come back as failed.
//
// # Concurrency
//
// Transfers run on a bounded worker pool
// (settings.MaxConcurrentDownloads); admissions beyond the bound wait
// FIFO. Cancellation is synchronous: CancelDownload returns only after
// the partial file is removed.
//
// # Retry Logic
//
// Failed transfers are retried with exponential backoff, configurable
// via settings.DownloadMaxRetries and settings.DownloadRetryCooldown. A
// completed transfer whose size does not match the declared length is
// re-downloaded once before being surfaced as failed.
//
// # Storage Accounting
//
// The Ledger aggregates the bytes of completed records and backs
// TotalStorageUsed; it is recomputed on every completion and deletion.
package download
