package download

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/lecturecast/lecturecast/internal/catalog"
	"github.com/lecturecast/lecturecast/internal/config"
	httpx "github.com/lecturecast/lecturecast/internal/http"
	"github.com/lecturecast/lecturecast/internal/model"
	"github.com/lecturecast/lecturecast/internal/storage"
)

// stubResolver maps every lecture to the same stream URL.
type stubResolver struct {
	url string
	err error
}

func (r stubResolver) ResolveStreamURL(ctx context.Context, lectureID string) (catalog.StreamURL, error) {
	if r.err != nil {
		return catalog.StreamURL{}, r.err
	}
	return catalog.StreamURL{URL: r.url}, nil
}

func testSettings(t *testing.T) *config.Settings {
	t.Helper()
	settings := config.DefaultSettings()
	settings.DownloadsPath = t.TempDir()
	settings.MaxConcurrentDownloads = 2
	settings.DownloadMaxRetries = 3
	settings.DownloadRetryCooldown = 0.001
	settings.MinFreeSpaceBytes = 0
	settings.SaveArtwork = false
	settings.ModifyTags = false
	return settings
}

func testLecture(id string) model.LectureRef {
	return model.LectureRef{
		ID:              id,
		Title:           "Talk " + id,
		SpeakerName:     "B. Chen",
		DurationSeconds: 1800,
	}
}

func newTestManager(t *testing.T, settings *config.Settings, resolver catalog.Resolver) *Manager {
	t.Helper()
	mgr, err := NewManager(settings, httpx.NewClient(), resolver, nil)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	t.Cleanup(func() { mgr.Close() })
	return mgr
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}

func waitForStatus(t *testing.T, mgr *Manager, lectureID string, status Status) {
	t.Helper()
	waitFor(t, func() bool {
		rec, ok := mgr.Get(lectureID)
		return ok && rec.Status == status
	})
}

// serveBytes serves the same payload for every request.
func serveBytes(t *testing.T, payload []byte) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", strconv.Itoa(len(payload)))
		w.Write(payload)
	}))
	t.Cleanup(srv.Close)
	return srv
}

// serveBlocking writes half the payload, then holds the transfer open
// until release closes (or the client goes away) before finishing.
func serveBlocking(t *testing.T, payload []byte, release chan struct{}) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", strconv.Itoa(len(payload)))
		half := len(payload) / 2
		w.Write(payload[:half])
		w.(http.Flusher).Flush()
		select {
		case <-release:
		case <-r.Context().Done():
			return
		}
		w.Write(payload[half:])
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestManager_DownloadCompletes(t *testing.T) {
	payload := bytes.Repeat([]byte("lecturecast audio "), 10*1024*1024/18+1)[:10*1024*1024]
	srv := serveBytes(t, payload)

	settings := testSettings(t)
	mgr := newTestManager(t, settings, stubResolver{url: srv.URL})

	lecture := testLecture("lec-1")
	if err := mgr.StartDownload(lecture); err != nil {
		t.Fatalf("StartDownload: %v", err)
	}
	waitForStatus(t, mgr, "lec-1", StatusCompleted)

	if !mgr.IsDownloaded("lec-1") {
		t.Error("IsDownloaded = false after completion")
	}

	rec, _ := mgr.Get("lec-1")
	info, err := os.Stat(rec.LocalPath)
	if err != nil {
		t.Fatalf("final file missing: %v", err)
	}
	if info.Size() != int64(len(payload)) {
		t.Errorf("final file size = %d, want %d", info.Size(), len(payload))
	}
	if got := mgr.TotalStorageUsed(); got != int64(len(payload)) {
		t.Errorf("TotalStorageUsed = %d, want %d", got, len(payload))
	}

	// No stray partials once the job is done.
	partials, _ := filepath.Glob(filepath.Join(settings.DownloadsPath, ".partial", "*"))
	if len(partials) != 0 {
		t.Errorf("leftover partials: %v", partials)
	}
}

func TestManager_StartWhileInFlightFails(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	srv := serveBlocking(t, make([]byte, 4096), release)

	mgr := newTestManager(t, testSettings(t), stubResolver{url: srv.URL})

	if err := mgr.StartDownload(testLecture("lec-1")); err != nil {
		t.Fatalf("StartDownload: %v", err)
	}
	waitForStatus(t, mgr, "lec-1", StatusDownloading)

	if err := mgr.StartDownload(testLecture("lec-1")); !errors.Is(err, ErrAlreadyInProgress) {
		t.Errorf("second StartDownload error = %v, want ErrAlreadyInProgress", err)
	}
}

func TestManager_ConcurrentStartAdmitsExactlyOne(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	srv := serveBlocking(t, make([]byte, 4096), release)

	mgr := newTestManager(t, testSettings(t), stubResolver{url: srv.URL})

	for i := 0; i < 50; i++ {
		lecture := testLecture(fmt.Sprintf("lec-%d", i))
		errs := make(chan error, 2)
		for k := 0; k < 2; k++ {
			go func() { errs <- mgr.StartDownload(lecture) }()
		}

		var admitted, rejected int
		for k := 0; k < 2; k++ {
			switch err := <-errs; {
			case err == nil:
				admitted++
			case errors.Is(err, ErrAlreadyInProgress):
				rejected++
			default:
				t.Fatalf("StartDownload: %v", err)
			}
		}
		if admitted != 1 || rejected != 1 {
			t.Fatalf("admitted %d, rejected %d; want exactly one of each", admitted, rejected)
		}
	}
}

func TestManager_CancelLeavesNoPartialFile(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	srv := serveBlocking(t, make([]byte, 64*1024), release)

	settings := testSettings(t)
	mgr := newTestManager(t, settings, stubResolver{url: srv.URL})

	if err := mgr.StartDownload(testLecture("lec-1")); err != nil {
		t.Fatalf("StartDownload: %v", err)
	}
	waitForStatus(t, mgr, "lec-1", StatusDownloading)

	mgr.CancelDownload("lec-1")

	rec, _ := mgr.Get("lec-1")
	if rec.Status != StatusCanceled {
		t.Errorf("status = %v, want canceled", rec.Status)
	}
	if mgr.IsDownloaded("lec-1") {
		t.Error("IsDownloaded = true after cancel")
	}

	// CancelDownload returns only after the partial file is gone.
	partials, _ := filepath.Glob(filepath.Join(settings.DownloadsPath, ".partial", "*"))
	if len(partials) != 0 {
		t.Errorf("leftover partials after cancel: %v", partials)
	}
	if _, err := os.Stat(rec.LocalPath); !os.IsNotExist(err) {
		t.Errorf("final path exists after cancel (err = %v)", err)
	}
}

func TestManager_CancelWithNothingInFlightIsNoop(t *testing.T) {
	mgr := newTestManager(t, testSettings(t), stubResolver{url: "http://unused"})
	mgr.CancelDownload("lec-unknown")
}

func TestManager_ConcurrencyBound(t *testing.T) {
	release := make(chan struct{})
	srv := serveBlocking(t, make([]byte, 4096), release)

	mgr := newTestManager(t, testSettings(t), stubResolver{url: srv.URL})

	for _, id := range []string{"lec-1", "lec-2", "lec-3"} {
		if err := mgr.StartDownload(testLecture(id)); err != nil {
			t.Fatalf("StartDownload(%s): %v", id, err)
		}
	}

	countByStatus := func(status Status) int {
		n := 0
		for _, rec := range mgr.Downloads() {
			if rec.Status == status {
				n++
			}
		}
		return n
	}

	// Two worker slots transfer; the third admission waits its turn.
	waitFor(t, func() bool {
		return countByStatus(StatusDownloading) == 2 && countByStatus(StatusQueued) == 1
	})

	var active string
	for _, rec := range mgr.Downloads() {
		if rec.Status == StatusDownloading {
			active = rec.LectureID()
			break
		}
	}
	mgr.CancelDownload(active)

	// The freed slot picks up the queued job.
	waitFor(t, func() bool { return countByStatus(StatusQueued) == 0 && countByStatus(StatusDownloading) == 2 })

	close(release)
	waitFor(t, func() bool { return countByStatus(StatusCompleted) == 2 })
}

func TestManager_StorageFullRejectsBeforeTempFile(t *testing.T) {
	settings := testSettings(t)
	settings.MinFreeSpaceBytes = 1 << 62

	mgr := newTestManager(t, settings, stubResolver{url: "http://unused"})

	err := mgr.StartDownload(testLecture("lec-1"))
	if !errors.Is(err, ErrStorageFull) {
		t.Fatalf("StartDownload error = %v, want ErrStorageFull", err)
	}
	if _, ok := mgr.Get("lec-1"); ok {
		t.Error("record created despite storage-full rejection")
	}
	partials, _ := filepath.Glob(filepath.Join(settings.DownloadsPath, ".partial", "*"))
	if len(partials) != 0 {
		t.Errorf("temp files allocated despite rejection: %v", partials)
	}
}

func TestManager_TruncatedStreamRetriesThenFails(t *testing.T) {
	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		// Declare more than is delivered; the client sees the
		// connection die mid-body.
		w.Header().Set("Content-Length", "100")
		w.Write(make([]byte, 50))
	}))
	defer srv.Close()

	settings := testSettings(t)
	mgr := newTestManager(t, settings, stubResolver{url: srv.URL})

	if err := mgr.StartDownload(testLecture("lec-1")); err != nil {
		t.Fatalf("StartDownload: %v", err)
	}
	waitForStatus(t, mgr, "lec-1", StatusFailed)

	rec, _ := mgr.Get("lec-1")
	if rec.Error == "" {
		t.Error("failed record carries no error description")
	}
	if got := requests.Load(); got != int32(settings.DownloadMaxRetries) {
		t.Errorf("attempts = %d, want %d", got, settings.DownloadMaxRetries)
	}

	partials, _ := filepath.Glob(filepath.Join(settings.DownloadsPath, ".partial", "*"))
	if len(partials) != 0 {
		t.Errorf("leftover partials after failure: %v", partials)
	}
}

func TestManager_NoCooldownAfterFinalAttempt(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "100")
		w.Write(make([]byte, 50))
	}))
	defer srv.Close()

	settings := testSettings(t)
	settings.DownloadMaxRetries = 1
	// Long enough that sleeping after the last attempt would blow the
	// wait deadline below.
	settings.DownloadRetryCooldown = 60

	mgr := newTestManager(t, settings, stubResolver{url: srv.URL})

	if err := mgr.StartDownload(testLecture("lec-1")); err != nil {
		t.Fatalf("StartDownload: %v", err)
	}
	waitForStatus(t, mgr, "lec-1", StatusFailed)
}

func TestManager_FailedRecordCanBeRestarted(t *testing.T) {
	var fail atomic.Bool
	fail.Store(true)
	payload := make([]byte, 2048)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fail.Load() {
			w.Header().Set("Content-Length", "100")
			w.Write(make([]byte, 50))
			return
		}
		w.Header().Set("Content-Length", strconv.Itoa(len(payload)))
		w.Write(payload)
	}))
	defer srv.Close()

	settings := testSettings(t)
	settings.DownloadMaxRetries = 1
	mgr := newTestManager(t, settings, stubResolver{url: srv.URL})

	if err := mgr.StartDownload(testLecture("lec-1")); err != nil {
		t.Fatalf("StartDownload: %v", err)
	}
	waitForStatus(t, mgr, "lec-1", StatusFailed)

	fail.Store(false)
	if err := mgr.StartDownload(testLecture("lec-1")); err != nil {
		t.Fatalf("restart after failure: %v", err)
	}
	waitForStatus(t, mgr, "lec-1", StatusCompleted)
}

func TestManager_DeleteRemovesFileAndLedgerEntry(t *testing.T) {
	payload := make([]byte, 4096)
	srv := serveBytes(t, payload)

	mgr := newTestManager(t, testSettings(t), stubResolver{url: srv.URL})

	if err := mgr.StartDownload(testLecture("lec-1")); err != nil {
		t.Fatalf("StartDownload: %v", err)
	}
	waitForStatus(t, mgr, "lec-1", StatusCompleted)
	rec, _ := mgr.Get("lec-1")

	if err := mgr.DeleteDownload("lec-1"); err != nil {
		t.Fatalf("DeleteDownload: %v", err)
	}

	if _, ok := mgr.Get("lec-1"); ok {
		t.Error("record survives deletion")
	}
	if _, err := os.Stat(rec.LocalPath); !os.IsNotExist(err) {
		t.Errorf("audio file survives deletion (err = %v)", err)
	}
	if got := mgr.TotalStorageUsed(); got != 0 {
		t.Errorf("TotalStorageUsed = %d after delete, want 0", got)
	}

	// Idempotent: no record, no error.
	if err := mgr.DeleteDownload("lec-1"); err != nil {
		t.Errorf("second DeleteDownload: %v", err)
	}
	if err := mgr.DeleteDownload("lec-never-existed"); err != nil {
		t.Errorf("DeleteDownload of unknown lecture: %v", err)
	}
}

func TestManager_EventsFollowLifecycle(t *testing.T) {
	srv := serveBytes(t, make([]byte, 4096))

	mgr := newTestManager(t, testSettings(t), stubResolver{url: srv.URL})

	events, unsubscribe := mgr.Subscribe()
	defer unsubscribe()

	if err := mgr.StartDownload(testLecture("lec-1")); err != nil {
		t.Fatalf("StartDownload: %v", err)
	}

	var seen []Status
	deadline := time.After(5 * time.Second)
	for {
		select {
		case ev := <-events:
			seen = append(seen, ev.Record.Status)
			if ev.Record.Status == StatusCompleted {
				if seen[0] != StatusQueued {
					t.Errorf("first event status = %v, want queued", seen[0])
				}
				return
			}
		case <-deadline:
			t.Fatalf("no completion event; saw %v", seen)
		}
	}
}

func TestManager_RegistrySurvivesRestart(t *testing.T) {
	payload := make([]byte, 4096)
	srv := serveBytes(t, payload)

	settings := testSettings(t)
	mgr, err := NewManager(settings, httpx.NewClient(), stubResolver{url: srv.URL}, nil)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	if err := mgr.StartDownload(testLecture("lec-1")); err != nil {
		t.Fatalf("StartDownload: %v", err)
	}
	waitForStatus(t, mgr, "lec-1", StatusCompleted)
	mgr.Close()

	reopened := newTestManager(t, settings, stubResolver{url: srv.URL})
	if !reopened.IsDownloaded("lec-1") {
		t.Error("completed download lost across restart")
	}
	if got := reopened.TotalStorageUsed(); got != int64(len(payload)) {
		t.Errorf("TotalStorageUsed after restart = %d, want %d", got, len(payload))
	}
}

func TestManager_InterruptedDownloadLoadsAsFailed(t *testing.T) {
	settings := testSettings(t)

	interrupted := []*Record{{
		Lecture:         testLecture("lec-1"),
		LocalPath:       filepath.Join(settings.DownloadsPath, "unfinished.mp3"),
		Status:          StatusDownloading,
		BytesDownloaded: 123,
		CreatedAt:       time.Now(),
	}}
	if err := storage.WriteJSONAtomic(filepath.Join(settings.DownloadsPath, registryFile), interrupted); err != nil {
		t.Fatalf("seed registry: %v", err)
	}

	mgr := newTestManager(t, settings, stubResolver{url: "http://unused"})

	rec, ok := mgr.Get("lec-1")
	if !ok {
		t.Fatal("interrupted record missing after load")
	}
	if rec.Status != StatusFailed {
		t.Errorf("status = %v, want failed", rec.Status)
	}
	if rec.Error == "" {
		t.Error("interrupted record carries no error description")
	}
}

func TestManager_StartAfterCloseFails(t *testing.T) {
	mgr := newTestManager(t, testSettings(t), stubResolver{url: "http://unused"})
	mgr.Close()

	if err := mgr.StartDownload(testLecture("lec-1")); !errors.Is(err, ErrClosed) {
		t.Errorf("StartDownload after Close error = %v, want ErrClosed", err)
	}
}

func TestProgressGate(t *testing.T) {
	gate := newProgressGate(250*time.Millisecond, 1.0)
	start := time.Now()

	if !gate.allow(10, 1000, start) {
		t.Error("first update should pass")
	}
	if gate.allow(15, 1000, start.Add(100*time.Millisecond)) {
		t.Error("update inside the interval should be gated")
	}
	if gate.allow(12, 1000, start.Add(300*time.Millisecond)) {
		t.Error("sub-percent advance should be gated even after the interval")
	}
	if !gate.allow(500, 1000, start.Add(300*time.Millisecond)) {
		t.Error("large advance after the interval should pass")
	}
	// Completion bypasses both gates.
	if !gate.allow(1000, 1000, start.Add(301*time.Millisecond)) {
		t.Error("completion should always pass")
	}
}
