package playback

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"

	httpx "github.com/lecturecast/lecturecast/internal/http"
)

// ProgressSyncer pushes playback positions to the progress-sync
// endpoint, fire-and-forget.
//
// At most one request per lecture is in flight at a time; a push while
// one is pending is dropped, as are request failures. Close cancels
// pending requests and waits for their goroutines, so every push has an
// owner and a completion signal.
type ProgressSyncer struct {
	client *httpx.Client
	url    string
	log    *logrus.Entry

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	closed   bool
	inflight map[string]bool
}

// NewProgressSyncer creates a syncer posting to the given endpoint.
func NewProgressSyncer(client *httpx.Client, url string, log *logrus.Logger) *ProgressSyncer {
	if log == nil {
		log = logrus.StandardLogger()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &ProgressSyncer{
		client:   client,
		url:      url,
		log:      log.WithField("component", "progress-sync"),
		ctx:      ctx,
		cancel:   cancel,
		inflight: make(map[string]bool),
	}
}

type progressPayload struct {
	LectureID       string  `json:"lecture_id"`
	PositionSeconds float64 `json:"position_seconds"`
}

// Push implements PositionPusher. It returns immediately; the request
// runs in its own goroutine and its failure is logged and dropped,
// never surfaced to playback.
func (p *ProgressSyncer) Push(lectureID string, positionSeconds float64) {
	p.mu.Lock()
	if p.closed || p.inflight[lectureID] {
		p.mu.Unlock()
		return
	}
	p.inflight[lectureID] = true
	p.mu.Unlock()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer func() {
			p.mu.Lock()
			delete(p.inflight, lectureID)
			p.mu.Unlock()
		}()

		payload := progressPayload{LectureID: lectureID, PositionSeconds: positionSeconds}
		if err := p.client.PostJSON(p.ctx, p.url, payload); err != nil {
			p.log.WithError(err).WithField("lecture", lectureID).Debug("progress push dropped")
		}
	}()
}

// Close cancels in-flight pushes and waits for them to finish.
func (p *ProgressSyncer) Close() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()

	p.cancel()
	p.wg.Wait()
}
