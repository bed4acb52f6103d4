package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/lecturecast/lecturecast/internal/audio"
	"github.com/lecturecast/lecturecast/internal/catalog"
	"github.com/lecturecast/lecturecast/internal/config"
	httpx "github.com/lecturecast/lecturecast/internal/http"
	ioutils "github.com/lecturecast/lecturecast/internal/io"
	"github.com/lecturecast/lecturecast/internal/model"
	"github.com/lecturecast/lecturecast/internal/storage"
)

// registryFile is the registry filename under the downloads root.
const registryFile = "downloads.json"

// chunkSize is the transfer buffer size; cancellation is checked
// between chunks.
const chunkSize = 64 * 1024

// Event is a download state notification delivered to subscribers.
type Event struct {
	// Record is a snapshot of the record after the transition.
	Record Record

	// Removed is true when the record was deleted from the registry.
	Removed bool
}

// job is one admitted download with its own cancellation path.
type job struct {
	id      string
	lecture model.LectureRef
	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}
}

// Manager maintains offline copies of lectures.
//
// It runs a bounded worker pool (Settings.MaxConcurrentDownloads);
// admissions beyond the bound wait FIFO. Each job streams bytes to a
// temp path and the final file appears only through an atomic rename,
// so a partially-written file is never observed as completed. Progress
// notifications are throttled to avoid flooding UI surfaces.
//
// Example:
//
//	mgr, err := download.NewManager(settings, client, resolver, nil)
//	defer mgr.Close()
//
//	events, unsubscribe := mgr.Subscribe()
//	defer unsubscribe()
//
//	if err := mgr.StartDownload(lecture); err != nil { ... }
type Manager struct {
	cfg      *config.Settings
	client   *httpx.Client
	resolver catalog.Resolver
	layout   *storage.Layout
	paths    *model.PathConfig
	tagger   *audio.Tagger
	images   *ioutils.ImageService
	log      *logrus.Entry

	registryPath string

	mu      sync.Mutex
	closed  bool
	records map[string]*Record
	jobs    map[string]*job
	subs    map[string]chan Event
	ledger  Ledger

	queue     chan *job
	g         *errgroup.Group
	cancelAll context.CancelFunc
}

// NewManager creates a download Manager and starts its worker pool.
//
// The downloads directory is created if needed, leftover temp files
// from an unclean shutdown are swept, and the persisted registry is
// loaded; records interrupted mid-flight are marked Failed (a fresh
// StartDownload restarts them).
func NewManager(settings *config.Settings, client *httpx.Client, resolver catalog.Resolver, log *logrus.Logger) (*Manager, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}

	layout := storage.NewLayout(settings.DownloadsPath)
	if err := layout.EnsureDirs(); err != nil {
		return nil, fmt.Errorf("prepare downloads dir: %w", err)
	}
	if err := layout.SweepPartials(); err != nil {
		return nil, fmt.Errorf("sweep partials: %w", err)
	}

	m := &Manager{
		cfg:          settings,
		client:       client,
		resolver:     resolver,
		layout:       layout,
		paths:        settings.ToPathConfig(),
		tagger:       audio.NewTagger(settings.ModifyTags),
		images:       ioutils.NewImageService(),
		log:          log.WithField("component", "download"),
		registryPath: filepath.Join(settings.DownloadsPath, registryFile),
		records:      make(map[string]*Record),
		jobs:         make(map[string]*job),
		subs:         make(map[string]chan Event),
		queue:        make(chan *job, 128),
	}

	if err := m.loadRegistry(); err != nil {
		return nil, err
	}

	workers := settings.MaxConcurrentDownloads
	if workers < 1 {
		workers = 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	m.cancelAll = cancel
	m.g, ctx = errgroup.WithContext(ctx)
	for i := 0; i < workers; i++ {
		m.g.Go(func() error {
			return m.worker(ctx)
		})
	}

	return m, nil
}

// loadRegistry restores persisted records. Anything left Queued or
// Downloading by a previous process can no longer complete; it is
// surfaced as Failed rather than silently resumed.
func (m *Manager) loadRegistry() error {
	var persisted []*Record
	if err := storage.ReadJSON(m.registryPath, &persisted); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("load download registry: %w", err)
	}

	for _, rec := range persisted {
		if rec.Status.InFlight() {
			rec.Status = StatusFailed
			rec.Error = "interrupted by shutdown"
		}
		m.records[rec.LectureID()] = rec
	}
	m.ledger.Recompute(m.records)
	return nil
}

// Subscribe registers an event channel and returns it with its
// unsubscribe handle. Events are dropped rather than blocking a slow
// subscriber.
func (m *Manager) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, 32)
	key := uuid.NewString()

	m.mu.Lock()
	m.subs[key] = ch
	m.mu.Unlock()

	return ch, func() {
		m.mu.Lock()
		if sub, ok := m.subs[key]; ok {
			delete(m.subs, key)
			close(sub)
		}
		m.mu.Unlock()
	}
}

// emitLocked fans out an event; m.mu must be held.
func (m *Manager) emitLocked(ev Event) {
	for _, ch := range m.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// persistLocked writes the registry atomically; m.mu must be held.
func (m *Manager) persistLocked() {
	all := make([]*Record, 0, len(m.records))
	for _, rec := range m.records {
		all = append(all, rec)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.Before(all[j].CreatedAt) })

	if err := storage.WriteJSONAtomic(m.registryPath, all); err != nil {
		m.log.WithError(err).Warn("persist download registry")
	}
}

// StartDownload creates a Queued record for the lecture and admits it
// to the worker pool.
//
// It fails with ErrAlreadyInProgress when a record for the lecture is
// already Queued or Downloading, and with ErrStorageFull when the
// downloads volume lacks free space; the storage check happens before
// any temp file is allocated. A Failed, Canceled, or Completed record
// is replaced by the fresh attempt.
func (m *Manager) StartDownload(lecture model.LectureRef) error {
	// The disk query runs outside the lock; the in-flight check and the
	// record insertion share one critical section so two concurrent
	// calls for the same lecture cannot both be admitted.
	free, err := m.layout.FreeSpace()
	if err != nil {
		m.log.WithError(err).Warn("free space query failed, admitting anyway")
	} else if free < m.cfg.MinFreeSpaceBytes {
		return fmt.Errorf("%s free: %w", FormatBytes(int64(free)), ErrStorageFull)
	}

	j := &job{
		id:      uuid.NewString(),
		lecture: lecture,
		done:    make(chan struct{}),
	}
	j.ctx, j.cancel = context.WithCancel(context.Background())

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		j.cancel()
		return ErrClosed
	}
	if rec, ok := m.records[lecture.ID]; ok && rec.Status.InFlight() {
		m.mu.Unlock()
		j.cancel()
		return fmt.Errorf("%s: %w", lecture.ID, ErrAlreadyInProgress)
	}
	rec := &Record{
		Lecture:   lecture,
		LocalPath: m.paths.AudioPath(lecture),
		Status:    StatusQueued,
		CreatedAt: time.Now(),
	}
	m.records[lecture.ID] = rec
	m.jobs[lecture.ID] = j
	m.persistLocked()
	m.emitLocked(Event{Record: rec.clone()})
	m.mu.Unlock()

	select {
	case m.queue <- j:
		return nil
	default:
		// Queue saturated; roll the admission back.
		m.mu.Lock()
		rec.Status = StatusFailed
		rec.Error = "download queue full"
		delete(m.jobs, lecture.ID)
		m.persistLocked()
		m.emitLocked(Event{Record: rec.clone()})
		m.mu.Unlock()
		return errors.New("download queue full")
	}
}

// worker pulls jobs FIFO until the manager shuts down.
func (m *Manager) worker(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case j := <-m.queue:
			m.runJob(j)
		}
	}
}

// runJob executes one download job end to end. The job's done channel
// closes only after any temp file has been removed, which is what makes
// CancelDownload synchronous.
func (m *Manager) runJob(j *job) {
	tempPath := m.layout.TempPath(j.id)

	defer func() {
		m.layout.Remove(tempPath)
		close(j.done)
	}()

	m.mu.Lock()
	rec, ok := m.records[j.lecture.ID]
	if !ok || rec.Status != StatusQueued || j.ctx.Err() != nil {
		// Canceled while waiting in the queue.
		m.mu.Unlock()
		return
	}
	rec.Status = StatusDownloading
	m.persistLocked()
	m.emitLocked(Event{Record: rec.clone()})
	m.mu.Unlock()

	log := m.log.WithField("lecture", j.lecture.ID)
	log.Debug("download started")

	var written int64
	var err error
	corruptRetried := false
	for tries := 0; tries < m.maxRetries(); tries++ {
		written, err = m.attempt(j, tempPath)
		if err == nil || j.ctx.Err() != nil {
			break
		}
		if errors.Is(err, errCorrupt) {
			if corruptRetried {
				break
			}
			corruptRetried = true
			log.Warn("size mismatch, re-downloading once")
			continue
		}
		log.WithError(err).Warnf("attempt %d/%d failed", tries+1, m.maxRetries())
		if tries+1 < m.maxRetries() {
			m.waitForRetry(j.ctx, tries)
		}
	}

	if j.ctx.Err() != nil {
		// CancelDownload owns the status transition; just clean up.
		log.Debug("download canceled")
		return
	}

	if err != nil {
		m.mu.Lock()
		rec.Status = StatusFailed
		rec.Error = err.Error()
		delete(m.jobs, j.lecture.ID)
		m.persistLocked()
		m.emitLocked(Event{Record: rec.clone()})
		m.mu.Unlock()
		log.WithError(err).Warn("download failed")
		return
	}

	// Artwork and tags are written into the temp file so the final
	// path only ever holds the finished product.
	artwork := m.fetchArtwork(j, rec)
	if err := m.tagger.Tag(tempPath, j.lecture, artwork); err != nil {
		log.WithError(err).Warn("tagging failed")
	}

	m.mu.Lock()
	if j.ctx.Err() != nil {
		m.mu.Unlock()
		return
	}
	if err := m.layout.Promote(tempPath, rec.LocalPath); err != nil {
		rec.Status = StatusFailed
		rec.Error = err.Error()
		delete(m.jobs, j.lecture.ID)
		m.persistLocked()
		m.emitLocked(Event{Record: rec.clone()})
		m.mu.Unlock()
		log.WithError(err).Warn("promote failed")
		return
	}
	rec.Status = StatusCompleted
	rec.BytesDownloaded = written
	rec.Error = ""
	delete(m.jobs, j.lecture.ID)
	m.ledger.Recompute(m.records)
	m.persistLocked()
	m.emitLocked(Event{Record: rec.clone()})
	m.mu.Unlock()

	log.WithField("bytes", written).Debug("download completed")
}

// attempt performs a single resolve+transfer+verify cycle into
// tempPath, returning the bytes written.
func (m *Manager) attempt(j *job, tempPath string) (int64, error) {
	stream, err := m.resolver.ResolveStreamURL(j.ctx, j.lecture.ID)
	if err != nil {
		return 0, fmt.Errorf("resolve: %w", err)
	}

	body, total, err := m.client.Open(j.ctx, stream.URL)
	if err != nil {
		return 0, fmt.Errorf("open stream: %w", err)
	}
	defer body.Close()

	m.mu.Lock()
	rec := m.records[j.lecture.ID]
	if rec != nil && total > 0 {
		rec.TotalBytes = total
	}
	m.mu.Unlock()

	file, err := os.Create(tempPath)
	if err != nil {
		return 0, fmt.Errorf("create temp: %w", err)
	}
	defer file.Close()

	gate := newProgressGate(
		time.Duration(m.cfg.ProgressMinIntervalMs)*time.Millisecond,
		m.cfg.ProgressMinPercent,
	)
	writer := &httpx.ProgressWriter{
		Writer: file,
		Total:  total,
		OnUpdate: func(written, total int64) {
			if gate.allow(written, total, time.Now()) {
				m.reportProgress(j.lecture.ID, written)
			}
		},
	}

	buf := make([]byte, chunkSize)
	var written int64
	for {
		if err := j.ctx.Err(); err != nil {
			return written, err
		}
		n, rerr := body.Read(buf)
		if n > 0 {
			if _, werr := writer.Write(buf[:n]); werr != nil {
				return written, fmt.Errorf("write chunk: %w", werr)
			}
			written += int64(n)
		}
		if rerr != nil {
			if errors.Is(rerr, io.EOF) {
				break
			}
			return written, fmt.Errorf("read chunk: %w", rerr)
		}
	}

	if total > 0 && written != total {
		return written, fmt.Errorf("%w: got %d of %d bytes", errCorrupt, written, total)
	}
	return written, nil
}

// reportProgress publishes a throttled byte-count update.
func (m *Manager) reportProgress(lectureID string, written int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[lectureID]
	if !ok || rec.Status != StatusDownloading {
		return
	}
	rec.BytesDownloaded = written
	m.emitLocked(Event{Record: rec.clone()})
}

// fetchArtwork downloads and resizes the lecture thumbnail, storing it
// next to the audio file. Best effort: artwork failures never fail the
// download.
func (m *Manager) fetchArtwork(j *job, rec *Record) []byte {
	if !m.cfg.SaveArtwork || j.lecture.ThumbnailURL == "" {
		return nil
	}

	data, err := m.client.Get(j.ctx, j.lecture.ThumbnailURL)
	if err != nil {
		m.log.WithError(err).Debug("artwork fetch failed")
		return nil
	}

	resized, err := m.images.ResizeImage(j.ctx, data, m.cfg.ArtworkMaxSize, m.cfg.ArtworkMaxSize)
	if err != nil {
		m.log.WithError(err).Debug("artwork resize failed")
		return nil
	}

	artPath := m.paths.ArtworkPath(j.lecture)
	if err := os.WriteFile(artPath, resized, 0644); err == nil {
		m.mu.Lock()
		rec.ArtworkPath = artPath
		m.mu.Unlock()
	}

	if m.cfg.EmbedArtworkInTags {
		return resized
	}
	return nil
}

func (m *Manager) maxRetries() int {
	if m.cfg.DownloadMaxRetries < 1 {
		return 1
	}
	return m.cfg.DownloadMaxRetries
}

func (m *Manager) waitForRetry(ctx context.Context, tries int) {
	cooldown := m.cfg.DownloadRetryCooldown * math.Pow(m.cfg.DownloadRetryExponent, float64(tries))
	select {
	case <-ctx.Done():
	case <-time.After(time.Duration(cooldown * float64(time.Second))):
	}
}

// CancelDownload aborts the in-flight download for the lecture.
//
// For an active transfer it does not return until the partial file is
// removed and no further progress or completion event can fire.
// Canceling a lecture with nothing in flight is a no-op.
func (m *Manager) CancelDownload(lectureID string) {
	m.mu.Lock()
	j, ok := m.jobs[lectureID]
	if !ok {
		m.mu.Unlock()
		return
	}
	rec := m.records[lectureID]

	if rec.Status == StatusQueued {
		// Never picked up; no temp file, no callbacks possible.
		rec.Status = StatusCanceled
		delete(m.jobs, lectureID)
		j.cancel()
		m.persistLocked()
		m.emitLocked(Event{Record: rec.clone()})
		m.mu.Unlock()
		return
	}

	j.cancel()
	m.mu.Unlock()

	<-j.done

	m.mu.Lock()
	if rec.Status == StatusDownloading {
		rec.Status = StatusCanceled
		delete(m.jobs, lectureID)
		m.persistLocked()
		m.emitLocked(Event{Record: rec.clone()})
	}
	m.mu.Unlock()
}

// DeleteDownload removes the lecture's offline copy and its record,
// decrementing storage usage. Deleting a lecture with no record is a
// no-op.
func (m *Manager) DeleteDownload(lectureID string) error {
	m.mu.Lock()
	rec, ok := m.records[lectureID]
	m.mu.Unlock()
	if !ok {
		return nil
	}

	if rec.Status.InFlight() {
		m.CancelDownload(lectureID)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok = m.records[lectureID]
	if !ok {
		return nil
	}

	if err := m.layout.Remove(rec.LocalPath); err != nil {
		return fmt.Errorf("delete %s: %w", lectureID, err)
	}
	if rec.ArtworkPath != "" {
		m.layout.Remove(rec.ArtworkPath)
	}

	delete(m.records, lectureID)
	m.ledger.Recompute(m.records)
	m.persistLocked()
	m.emitLocked(Event{Record: rec.clone(), Removed: true})
	return nil
}

// IsDownloaded reports whether a completed offline copy exists for the
// lecture. O(1) registry lookup.
func (m *Manager) IsDownloaded(lectureID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[lectureID]
	return ok && rec.Status == StatusCompleted
}

// Get returns a snapshot of the lecture's record.
func (m *Manager) Get(lectureID string) (Record, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[lectureID]
	if !ok {
		return Record{}, false
	}
	return rec.clone(), true
}

// Downloads returns snapshots of all records, oldest first.
func (m *Manager) Downloads() []Record {
	m.mu.Lock()
	defer m.mu.Unlock()

	all := make([]Record, 0, len(m.records))
	for _, rec := range m.records {
		all = append(all, rec.clone())
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.Before(all[j].CreatedAt) })
	return all
}

// TotalStorageUsed returns the bytes consumed by completed downloads.
func (m *Manager) TotalStorageUsed() int64 {
	return m.ledger.Total()
}

// Close cancels all in-flight jobs, stops the worker pool, and closes
// subscriber channels.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	for _, j := range m.jobs {
		j.cancel()
	}
	m.mu.Unlock()

	m.cancelAll()
	err := m.g.Wait()

	m.mu.Lock()
	for key, ch := range m.subs {
		delete(m.subs, key)
		close(ch)
	}
	m.persistLocked()
	m.mu.Unlock()
	return err
}

// progressGate coalesces progress callbacks: an update passes only
// when the minimum interval has elapsed and the transfer advanced by
// the minimum percentage (completion always passes).
type progressGate struct {
	minInterval time.Duration
	minPercent  float64
	lastEmit    time.Time
	lastPct     float64
}

func newProgressGate(minInterval time.Duration, minPercent float64) *progressGate {
	return &progressGate{minInterval: minInterval, minPercent: minPercent}
}

func (g *progressGate) allow(written, total int64, now time.Time) bool {
	if total > 0 && written >= total {
		g.lastEmit = now
		return true
	}
	if now.Sub(g.lastEmit) < g.minInterval {
		return false
	}
	if total > 0 {
		pct := float64(written) / float64(total) * 100
		if pct-g.lastPct < g.minPercent {
			return false
		}
		g.lastPct = pct
	}
	g.lastEmit = now
	return true
}
