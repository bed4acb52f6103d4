package playback

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/lecturecast/lecturecast/internal/catalog"
	"github.com/lecturecast/lecturecast/internal/engine"
	"github.com/lecturecast/lecturecast/internal/model"
)

// PositionPusher receives fire-and-forget position updates for the
// progress-sync endpoint.
type PositionPusher interface {
	Push(lectureID string, positionSeconds float64)
}

// Session is the single process-wide playback controller.
//
// Every UI surface binds to the same Session instance, injected by the
// caller rather than reached through ambient state. Commands from any
// surface and callbacks from the audio engine are serialized behind one
// mutex, so no two commands apply concurrently and readers always see a
// complete snapshot.
//
// Example:
//
//	session := playback.NewSession(eng, cat)
//	defer session.Close()
//
//	states, unsubscribe := session.Subscribe()
//	defer unsubscribe()
//
//	session.SetLecture(lecture) // loads, then plays
//	session.SeekTo(120)
type Session struct {
	eng      engine.Engine
	resolver catalog.Resolver
	log      *logrus.Entry

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	syncer    PositionPusher
	syncEvery time.Duration

	mu         sync.Mutex
	closed     bool
	state      State
	shuffle    *shuffleOrder
	loadGen    int
	preStall   Status
	lastPushAt time.Time
	subs       map[string]chan State

	sleep *SleepTimer
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the session's logger.
func WithLogger(log *logrus.Logger) Option {
	return func(s *Session) { s.log = log.WithField("component", "playback") }
}

// WithSyncer enables periodic position pushes to the progress-sync
// endpoint, at most once per interval while playing.
func WithSyncer(p PositionPusher, every time.Duration) Option {
	return func(s *Session) {
		s.syncer = p
		s.syncEvery = every
	}
}

// WithShuffleSeed fixes the shuffle randomness, for tests.
func WithShuffleSeed(seed int64) Option {
	return func(s *Session) { s.shuffle = newShuffleOrder(seed) }
}

// NewSession creates the playback session and registers it as the
// engine's event listener. The caller owns the session's lifetime and
// must Close it.
func NewSession(eng engine.Engine, resolver catalog.Resolver, opts ...Option) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		eng:      eng,
		resolver: resolver,
		log:      logrus.StandardLogger().WithField("component", "playback"),
		ctx:      ctx,
		cancel:   cancel,
		shuffle:  newShuffleOrder(time.Now().UnixNano()),
		subs:     make(map[string]chan State),
		state: State{
			Status: StatusIdle,
			Rate:   1.0,
		},
	}
	for _, opt := range opts {
		opt(s)
	}

	s.sleep = NewSleepTimer(func() { s.Pause() })
	eng.SetListener(s)
	return s
}

// Sleep returns the session's sleep timer. The timer's lifetime is
// independent of the loaded lecture: switching lectures leaves an armed
// timer running.
func (s *Session) Sleep() *SleepTimer {
	return s.sleep
}

// Subscribe registers a state channel and returns it with its
// unsubscribe handle. Snapshots are dropped rather than blocking a
// slow subscriber.
func (s *Session) Subscribe() (<-chan State, func()) {
	ch := make(chan State, 16)
	key := uuid.NewString()

	s.mu.Lock()
	s.subs[key] = ch
	s.mu.Unlock()

	return ch, func() {
		s.mu.Lock()
		if sub, ok := s.subs[key]; ok {
			delete(s.subs, key)
			close(sub)
		}
		s.mu.Unlock()
	}
}

// Snapshot returns the current state.
func (s *Session) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() State {
	snap := s.state
	snap.Queue = append([]model.LectureRef(nil), s.state.Queue...)
	return snap
}

func (s *Session) publishLocked() {
	snap := s.snapshotLocked()
	for _, ch := range s.subs {
		select {
		case ch <- snap:
		default:
		}
	}
}

// SetLecture makes the lecture the sole queue entry and starts loading
// it. When the lecture is already the loaded one this is equivalent to
// toggling play/pause; no reload happens.
//
// On resolution failure the session enters StatusError with
// ErrMediaResolution in LastError, keeping the queue so the UI can
// offer a retry.
func (s *Session) SetLecture(lecture model.LectureRef) {
	s.mu.Lock()
	if current, ok := s.state.Current(); ok && current.ID == lecture.ID && s.state.Status.active() {
		s.togglePlayPauseLocked()
		s.mu.Unlock()
		return
	}

	s.state.Queue = []model.LectureRef{lecture}
	s.shuffle.reset()
	s.loadLocked(0)
	s.mu.Unlock()
}

// SetQueue replaces the play queue and starts loading the entry at
// startIndex. An empty queue resets the session to idle.
func (s *Session) SetQueue(lectures []model.LectureRef, startIndex int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(lectures) == 0 {
		s.stopLocked()
		s.state.Queue = nil
		s.state.QueueIndex = 0
		s.publishLocked()
		return
	}

	if startIndex < 0 || startIndex >= len(lectures) {
		startIndex = 0
	}

	s.state.Queue = append([]model.LectureRef(nil), lectures...)
	s.shuffle.reset()
	s.loadLocked(startIndex)
}

// loadLocked switches to queue index i and spawns the async resolve.
// The load generation discards results of superseded loads.
func (s *Session) loadLocked(i int) {
	lecture := s.state.Queue[i]
	s.state.QueueIndex = i
	s.state.Status = StatusLoading
	s.state.PositionSeconds = 0
	s.state.DurationSeconds = lecture.DurationSeconds
	s.state.LastError = nil
	s.loadGen++
	gen := s.loadGen
	s.publishLocked()

	s.wg.Add(1)
	go s.resolveAndLoad(gen, lecture)
}

func (s *Session) resolveAndLoad(gen int, lecture model.LectureRef) {
	defer s.wg.Done()

	stream, err := s.resolver.ResolveStreamURL(s.ctx, lecture.ID)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || gen != s.loadGen {
		return
	}

	if err == nil {
		err = s.eng.Load(s.ctx, stream.URL)
	}
	if err != nil {
		s.log.WithError(err).WithField("lecture", lecture.ID).Warn("load failed")
		s.state.Status = StatusError
		s.state.LastError = fmt.Errorf("%w: %v", ErrMediaResolution, err)
		s.publishLocked()
		return
	}

	s.eng.SetRate(s.state.Rate)
	if err := s.eng.Play(); err != nil {
		s.state.Status = StatusReady
	} else {
		s.state.Status = StatusPlaying
	}
	s.publishLocked()
}

// Play starts playback. Calling it while already playing is a no-op
// with no engine call issued.
func (s *Session) Play() {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state.Status {
	case StatusReady, StatusPaused:
		if err := s.eng.Play(); err != nil {
			s.log.WithError(err).Warn("engine play failed")
			return
		}
		s.state.Status = StatusPlaying
		s.publishLocked()
	}
}

// Pause suspends playback. Idempotent.
func (s *Session) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state.Status {
	case StatusPlaying, StatusBuffering:
		if err := s.eng.Pause(); err != nil {
			s.log.WithError(err).Warn("engine pause failed")
			return
		}
		s.state.Status = StatusPaused
		s.publishLocked()
	}
}

// TogglePlayPause flips between playing and paused.
func (s *Session) TogglePlayPause() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.togglePlayPauseLocked()
}

func (s *Session) togglePlayPauseLocked() {
	switch s.state.Status {
	case StatusPlaying, StatusBuffering:
		if s.eng.Pause() == nil {
			s.state.Status = StatusPaused
			s.publishLocked()
		}
	case StatusReady, StatusPaused:
		if s.eng.Play() == nil {
			s.state.Status = StatusPlaying
			s.publishLocked()
		}
	}
}

// SeekTo moves the playhead, clamping to [0, duration]. It silently
// does nothing when no media is loaded; it never rejects.
func (s *Session) SeekTo(seconds float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.state.Status.active() {
		return
	}

	if seconds < 0 {
		seconds = 0
	}
	if seconds > s.state.DurationSeconds {
		seconds = s.state.DurationSeconds
	}

	if err := s.eng.Seek(seconds); err != nil {
		s.log.WithError(err).Warn("engine seek failed")
		return
	}
	s.state.PositionSeconds = seconds
	s.publishLocked()
}

// PlayNext advances through the queue.
//
// With RepeatOne it restarts the current lecture at position zero
// instead of advancing. With shuffle it picks a pseudo-random unvisited
// index, resetting the round once exhausted (repeat all) or stopping
// (repeat off). Sequential traversal wraps under RepeatAll and stops to
// idle past the end otherwise.
func (s *Session) PlayNext() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.state.Queue) == 0 {
		return
	}

	if s.state.Repeat == RepeatOne {
		s.restartCurrentLocked()
		return
	}
	s.advanceLocked(true)
}

// PlayPrevious retreats through the queue. At the first entry it wraps
// under RepeatAll and otherwise restarts the current lecture.
func (s *Session) PlayPrevious() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.state.Queue) == 0 {
		return
	}
	s.advanceLocked(false)
}

// restartCurrentLocked rewinds the current lecture to position zero,
// keeping the play/pause status.
func (s *Session) restartCurrentLocked() {
	if !s.state.Status.active() {
		return
	}
	if err := s.eng.Seek(0); err != nil {
		s.log.WithError(err).Warn("engine seek failed")
		return
	}
	s.state.PositionSeconds = 0
	s.publishLocked()
}

func (s *Session) advanceLocked(forward bool) {
	n := len(s.state.Queue)

	if s.state.Shuffle {
		next, ok := s.shuffle.next(n)
		if !ok {
			// Round exhausted.
			s.shuffle.reset()
			if s.state.Repeat != RepeatAll {
				s.stopLocked()
				s.publishLocked()
				return
			}
			s.advanceSequentialLocked(forward)
			return
		}
		s.shuffle.mark(next)
		s.loadLocked(next)
		return
	}

	s.advanceSequentialLocked(forward)
}

func (s *Session) advanceSequentialLocked(forward bool) {
	n := len(s.state.Queue)
	i := s.state.QueueIndex

	if forward {
		if i+1 < n {
			s.loadLocked(i + 1)
			return
		}
		if s.state.Repeat == RepeatAll {
			s.loadLocked(0)
			return
		}
		s.stopLocked()
		s.publishLocked()
		return
	}

	if i > 0 {
		s.loadLocked(i - 1)
		return
	}
	if s.state.Repeat == RepeatAll {
		s.loadLocked(n - 1)
		return
	}
	s.restartCurrentLocked()
}

// stopLocked parks the session at idle, keeping the queue for a later
// restart.
func (s *Session) stopLocked() {
	if s.state.Status.active() {
		s.eng.Pause()
	}
	s.loadGen++ // discard any in-flight load
	s.state.Status = StatusIdle
	s.state.PositionSeconds = 0
	s.state.LastError = nil
}

// ToggleShuffle flips shuffle mode. Enabling it starts a fresh round
// with no index visited yet.
func (s *Session) ToggleShuffle() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state.Shuffle = !s.state.Shuffle
	if s.state.Shuffle {
		s.shuffle.reset()
	}
	s.publishLocked()
}

// CycleRepeatMode steps Off → All → One → Off.
func (s *Session) CycleRepeatMode() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Repeat = s.state.Repeat.next()
	s.publishLocked()
}

// SetPlaybackRate changes the playback speed. Rates outside the
// enumerated set are rejected with *InvalidRateError.
func (s *Session) SetPlaybackRate(rate float64) error {
	if !ValidRate(rate) {
		return &InvalidRateError{Rate: rate}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.eng.SetRate(rate); err != nil {
		return fmt.Errorf("engine rate: %w", err)
	}
	s.state.Rate = rate
	s.publishLocked()
	return nil
}

// PositionChanged implements engine.Listener.
func (s *Session) PositionChanged(pos, dur float64) {
	s.mu.Lock()

	if !s.state.Status.active() {
		s.mu.Unlock()
		return
	}

	if dur > 0 {
		s.state.DurationSeconds = dur
	}
	if pos < 0 {
		pos = 0
	}
	if pos > s.state.DurationSeconds {
		pos = s.state.DurationSeconds
	}
	s.state.PositionSeconds = pos

	var pushID string
	if s.syncer != nil && s.state.Status == StatusPlaying && time.Since(s.lastPushAt) >= s.syncEvery {
		if current, ok := s.state.Current(); ok {
			pushID = current.ID
			s.lastPushAt = time.Now()
		}
	}

	s.publishLocked()
	s.mu.Unlock()

	if pushID != "" {
		s.syncer.Push(pushID, pos)
	}
}

// BufferingChanged implements engine.Listener. A stall remembers the
// pre-stall status and restores it when the stall clears.
func (s *Session) BufferingChanged(buffering bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if buffering {
		if s.state.Status == StatusPlaying || s.state.Status == StatusPaused {
			s.preStall = s.state.Status
			s.state.Status = StatusBuffering
			s.publishLocked()
		}
		return
	}

	if s.state.Status == StatusBuffering {
		s.state.Status = s.preStall
		s.publishLocked()
	}
}

// TrackEnded implements engine.Listener, auto-advancing per the repeat
// and shuffle modes.
func (s *Session) TrackEnded() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.state.Queue) == 0 {
		return
	}

	if s.state.Repeat == RepeatOne {
		if s.eng.Seek(0) == nil && s.eng.Play() == nil {
			s.state.PositionSeconds = 0
			s.state.Status = StatusPlaying
			s.publishLocked()
		}
		return
	}
	s.advanceLocked(true)
}

// Close shuts the session down: pending loads are discarded, the sleep
// timer is disarmed, and subscriber channels are closed.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.loadGen++
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()
	s.sleep.Cancel()
	s.eng.SetListener(nil)

	s.mu.Lock()
	for key, ch := range s.subs {
		delete(s.subs, key)
		close(ch)
	}
	s.mu.Unlock()
	return nil
}
