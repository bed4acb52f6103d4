package catalog

import (
	"context"
	"fmt"
	"sync"
	"time"

	httpx "github.com/lecturecast/lecturecast/internal/http"
	"github.com/lecturecast/lecturecast/internal/model"
)

// Resolver resolves a lecture ID to a playable stream URL.
//
// Both the playback session and the download manager depend on this
// interface rather than the concrete Client, so tests can substitute a
// stub resolver.
type Resolver interface {
	// ResolveStreamURL returns a time-limited presigned URL for the
	// lecture's audio. Implementations must never return a URL past
	// its validity; expired entries are re-resolved, not reused.
	ResolveStreamURL(ctx context.Context, lectureID string) (StreamURL, error)
}

// StreamURL is a presigned, time-limited media URL.
type StreamURL struct {
	// URL is the direct media URL.
	URL string `json:"url"`

	// ExpiresAt is when the URL stops being valid. Zero means the
	// server did not declare an expiry.
	ExpiresAt time.Time `json:"expires_at"`
}

// expired reports whether the URL can no longer be trusted. A small
// safety margin avoids handing out a URL that expires mid-request.
func (s StreamURL) expired(now time.Time) bool {
	if s.ExpiresAt.IsZero() {
		return false
	}
	return !now.Add(30 * time.Second).Before(s.ExpiresAt)
}

// Client is the HTTP catalog client.
//
// It fetches lecture metadata and resolves presigned stream URLs,
// caching each resolved URL only until its expiry.
//
// Example:
//
//	cat := catalog.NewClient("https://api.lecturecast.app/v1", httpClient)
//	lectures, err := cat.Lectures(ctx)
//	stream, err := cat.ResolveStreamURL(ctx, lectures[0].ID)
type Client struct {
	baseURL string
	http    *httpx.Client

	mu    sync.Mutex
	cache map[string]StreamURL
	now   func() time.Time
}

// NewClient creates a catalog client for the given API base URL.
func NewClient(baseURL string, client *httpx.Client) *Client {
	return &Client{
		baseURL: baseURL,
		http:    client,
		cache:   make(map[string]StreamURL),
		now:     time.Now,
	}
}

// Lectures fetches the full lecture listing.
func (c *Client) Lectures(ctx context.Context) ([]model.LectureRef, error) {
	var lectures []model.LectureRef
	if err := c.http.GetJSON(ctx, c.baseURL+"/lectures", &lectures); err != nil {
		return nil, fmt.Errorf("list lectures: %w", err)
	}
	return lectures, nil
}

// Lecture fetches metadata for a single lecture.
func (c *Client) Lecture(ctx context.Context, id string) (model.LectureRef, error) {
	var lecture model.LectureRef
	if err := c.http.GetJSON(ctx, c.baseURL+"/lectures/"+id, &lecture); err != nil {
		return model.LectureRef{}, fmt.Errorf("fetch lecture %s: %w", id, err)
	}
	return lecture, nil
}

// ResolveStreamURL returns a presigned stream URL for the lecture,
// reusing a cached URL while it remains valid and re-resolving after
// expiry.
func (c *Client) ResolveStreamURL(ctx context.Context, lectureID string) (StreamURL, error) {
	c.mu.Lock()
	cached, ok := c.cache[lectureID]
	now := c.now()
	c.mu.Unlock()

	if ok && !cached.expired(now) {
		return cached, nil
	}

	var stream StreamURL
	if err := c.http.GetJSON(ctx, c.baseURL+"/lectures/"+lectureID+"/stream", &stream); err != nil {
		return StreamURL{}, fmt.Errorf("resolve stream for %s: %w", lectureID, err)
	}
	if stream.URL == "" {
		return StreamURL{}, fmt.Errorf("resolve stream for %s: empty url", lectureID)
	}

	c.mu.Lock()
	c.cache[lectureID] = stream
	c.mu.Unlock()

	return stream, nil
}
