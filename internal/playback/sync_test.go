package playback

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	httpx "github.com/lecturecast/lecturecast/internal/http"
)

func TestProgressSyncer_PushPostsPayload(t *testing.T) {
	var (
		mu       sync.Mutex
		received []progressPayload
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload progressPayload
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		mu.Lock()
		received = append(received, payload)
		mu.Unlock()
	}))
	defer srv.Close()

	syncer := NewProgressSyncer(httpx.NewClient(), srv.URL, nil)
	syncer.Push("lec-1", 42.5)

	// Close cancels whatever is still in flight, so let the push land
	// before shutting down.
	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(received) == 1
	})
	syncer.Close()

	mu.Lock()
	defer mu.Unlock()
	if received[0].LectureID != "lec-1" || received[0].PositionSeconds != 42.5 {
		t.Errorf("payload = %+v, want lec-1 at 42.5", received[0])
	}
}

func TestProgressSyncer_AtMostOneInFlightPerLecture(t *testing.T) {
	release := make(chan struct{})
	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		<-release
	}))
	defer srv.Close()

	syncer := NewProgressSyncer(httpx.NewClient(), srv.URL, nil)

	syncer.Push("lec-1", 10)
	waitFor(t, func() bool { return requests.Load() == 1 })

	// Pushes for the same lecture while one is pending are dropped;
	// other lectures still go out.
	syncer.Push("lec-1", 11)
	syncer.Push("lec-1", 12)
	syncer.Push("lec-2", 5)
	waitFor(t, func() bool { return requests.Load() == 2 })

	time.Sleep(20 * time.Millisecond)
	if got := requests.Load(); got != 2 {
		t.Errorf("requests = %d, want 2", got)
	}

	close(release)
	syncer.Close()
}

func TestProgressSyncer_FailureIsDropped(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer srv.Close()

	syncer := NewProgressSyncer(httpx.NewClient(), srv.URL, nil)
	syncer.Push("lec-1", 10)
	syncer.Close()

	// A failed push frees the lecture's in-flight slot.
	syncer2 := NewProgressSyncer(httpx.NewClient(), srv.URL, nil)
	syncer2.Push("lec-1", 10)
	waitFor(t, func() bool {
		syncer2.mu.Lock()
		defer syncer2.mu.Unlock()
		return !syncer2.inflight["lec-1"]
	})
	syncer2.Close()
}

func TestProgressSyncer_PushAfterCloseIsNoop(t *testing.T) {
	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
	}))
	defer srv.Close()

	syncer := NewProgressSyncer(httpx.NewClient(), srv.URL, nil)
	syncer.Close()
	syncer.Push("lec-1", 10)

	time.Sleep(20 * time.Millisecond)
	if got := requests.Load(); got != 0 {
		t.Errorf("requests = %d, want 0 after close", got)
	}
}
