package download

import (
	"fmt"
	"sync"
)

// Ledger is the storage accounting aggregate over download records.
//
// It holds the total bytes of all Completed records and is recomputed
// whenever a record transitions to or from Completed or is deleted.
// The ledger has no identity of its own beyond this read-through sum.
type Ledger struct {
	mu    sync.Mutex
	total int64
}

// Recompute replaces the aggregate with the sum over Completed records.
func (l *Ledger) Recompute(records map[string]*Record) {
	var total int64
	for _, rec := range records {
		if rec.Status == StatusCompleted {
			total += rec.BytesDownloaded
		}
	}

	l.mu.Lock()
	l.total = total
	l.mu.Unlock()
}

// Total returns the bytes consumed by completed downloads.
func (l *Ledger) Total() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.total
}

const (
	kib = 1024
	mib = 1024 * kib
	gib = 1024 * mib
)

// FormatBytes renders a byte count as a human-readable string using
// base-1024 units with one decimal place.
//
// The output is deterministic and locale-independent:
//
//	FormatBytes(0)         // "0 B"
//	FormatBytes(1024)      // "1.0 KB"
//	FormatBytes(1_500_000) // "1.4 MB"
func FormatBytes(n int64) string {
	switch {
	case n < kib:
		return fmt.Sprintf("%d B", n)
	case n < mib:
		return fmt.Sprintf("%.1f KB", float64(n)/kib)
	case n < gib:
		return fmt.Sprintf("%.1f MB", float64(n)/mib)
	default:
		return fmt.Sprintf("%.1f GB", float64(n)/gib)
	}
}
