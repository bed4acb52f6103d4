package download

import "testing"

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		n    int64
		want string
	}{
		{0, "0 B"},
		{1, "1 B"},
		{1023, "1023 B"},
		{1024, "1.0 KB"},
		{1536, "1.5 KB"},
		{1024 * 1024, "1.0 MB"},
		{1_500_000, "1.4 MB"},
		{10 * 1024 * 1024, "10.0 MB"},
		{1024 * 1024 * 1024, "1.0 GB"},
		{5 * 1024 * 1024 * 1024, "5.0 GB"},
	}

	for _, tt := range tests {
		if got := FormatBytes(tt.n); got != tt.want {
			t.Errorf("FormatBytes(%d) = %q, want %q", tt.n, got, tt.want)
		}
	}
}

func TestLedger_RecomputeCountsOnlyCompleted(t *testing.T) {
	records := map[string]*Record{
		"a": {Status: StatusCompleted, BytesDownloaded: 1000},
		"b": {Status: StatusCompleted, BytesDownloaded: 2000},
		"c": {Status: StatusDownloading, BytesDownloaded: 5000},
		"d": {Status: StatusFailed, BytesDownloaded: 300},
		"e": {Status: StatusCanceled, BytesDownloaded: 400},
	}

	var ledger Ledger
	ledger.Recompute(records)
	if got := ledger.Total(); got != 3000 {
		t.Errorf("Total() = %d, want 3000 (completed records only)", got)
	}

	delete(records, "a")
	ledger.Recompute(records)
	if got := ledger.Total(); got != 2000 {
		t.Errorf("Total() after delete = %d, want 2000", got)
	}

	ledger.Recompute(map[string]*Record{})
	if got := ledger.Total(); got != 0 {
		t.Errorf("Total() over empty registry = %d, want 0", got)
	}
}

func TestStatusPredicates(t *testing.T) {
	inFlight := []Status{StatusQueued, StatusDownloading}
	terminal := []Status{StatusCompleted, StatusFailed, StatusCanceled}

	for _, s := range inFlight {
		if !s.InFlight() || s.Terminal() {
			t.Errorf("%v: InFlight() = %v, Terminal() = %v; want true, false", s, s.InFlight(), s.Terminal())
		}
	}
	for _, s := range terminal {
		if s.InFlight() || !s.Terminal() {
			t.Errorf("%v: InFlight() = %v, Terminal() = %v; want false, true", s, s.InFlight(), s.Terminal())
		}
	}
}
