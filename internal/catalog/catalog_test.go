package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	httpx "github.com/lecturecast/lecturecast/internal/http"
)

func TestClient_Lectures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/lectures" {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, `[{"id":"lec-1","title":"Intro","speaker_name":"A. Rao","duration_seconds":600}]`)
	}))
	defer srv.Close()

	cat := NewClient(srv.URL, httpx.NewClient())
	lectures, err := cat.Lectures(context.Background())
	if err != nil {
		t.Fatalf("Lectures() error = %v", err)
	}
	if len(lectures) != 1 || lectures[0].ID != "lec-1" || lectures[0].DurationSeconds != 600 {
		t.Errorf("Lectures() = %+v", lectures)
	}
}

func TestClient_ResolveStreamURL_CachesUntilExpiry(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		json.NewEncoder(w).Encode(StreamURL{
			URL:       fmt.Sprintf("https://cdn.example.com/lec-1.mp3?sig=%d", n),
			ExpiresAt: time.Now().Add(10 * time.Minute),
		})
	}))
	defer srv.Close()

	cat := NewClient(srv.URL, httpx.NewClient())

	first, err := cat.ResolveStreamURL(context.Background(), "lec-1")
	if err != nil {
		t.Fatalf("ResolveStreamURL() error = %v", err)
	}
	second, err := cat.ResolveStreamURL(context.Background(), "lec-1")
	if err != nil {
		t.Fatalf("ResolveStreamURL() error = %v", err)
	}

	if first.URL != second.URL {
		t.Errorf("valid cached URL not reused: %q vs %q", first.URL, second.URL)
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("resolve calls = %d, want 1", got)
	}
}

func TestClient_ResolveStreamURL_ExpiredIsReResolved(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		json.NewEncoder(w).Encode(StreamURL{
			URL:       fmt.Sprintf("https://cdn.example.com/lec-1.mp3?sig=%d", n),
			ExpiresAt: time.Now().Add(10 * time.Minute),
		})
	}))
	defer srv.Close()

	cat := NewClient(srv.URL, httpx.NewClient())
	if _, err := cat.ResolveStreamURL(context.Background(), "lec-1"); err != nil {
		t.Fatal(err)
	}

	// Jump the clock past the URL's validity window.
	cat.now = func() time.Time { return time.Now().Add(time.Hour) }

	if _, err := cat.ResolveStreamURL(context.Background(), "lec-1"); err != nil {
		t.Fatal(err)
	}
	if got := atomic.LoadInt32(&calls); got != 2 {
		t.Errorf("resolve calls after expiry = %d, want 2", got)
	}
}

func TestClient_ResolveStreamURL_EmptyURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"url":""}`)
	}))
	defer srv.Close()

	cat := NewClient(srv.URL, httpx.NewClient())
	if _, err := cat.ResolveStreamURL(context.Background(), "lec-1"); err == nil {
		t.Error("ResolveStreamURL() with empty url should fail")
	}
}

func TestStreamURL_Expired(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		expiresAt time.Time
		want      bool
	}{
		{"no expiry declared", time.Time{}, false},
		{"well within validity", now.Add(time.Hour), false},
		{"inside safety margin", now.Add(10 * time.Second), true},
		{"already expired", now.Add(-time.Minute), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := StreamURL{URL: "u", ExpiresAt: tt.expiresAt}
			if got := s.expired(now); got != tt.want {
				t.Errorf("expired() = %v, want %v", got, tt.want)
			}
		})
	}
}
