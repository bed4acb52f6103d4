package engine

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrNothingLoaded is returned by transport commands before a
// successful Load.
var ErrNothingLoaded = errors.New("engine: nothing loaded")

// Simulated is a clock-driven Engine implementation.
//
// It advances a virtual playhead on a ticker instead of decoding audio,
// which makes it suitable for the CLI, the TUI demo mode, and tests.
// Position events fire on every tick while media is loaded; reaching
// the end of the media pauses the engine and fires TrackEnded once.
//
// Example:
//
//	eng := engine.NewSimulated(500 * time.Millisecond)
//	defer eng.Close()
//	eng.SetListener(session)
//	eng.Load(ctx, streamURL)
//	eng.Play()
//
// Constructing with a non-positive interval disables the internal
// ticker; tests then drive the playhead deterministically with Step.
type Simulated struct {
	mu       sync.Mutex
	listener Listener
	loaded   bool
	playing  bool
	stalled  bool
	pos      float64
	dur      float64
	rate     float64

	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}

	// DurationFor maps a URL to a simulated media duration in
	// seconds. Defaults to a constant when nil.
	DurationFor func(url string) float64
}

// NewSimulated creates a Simulated engine ticking at the given
// interval. A non-positive interval disables the ticker.
func NewSimulated(interval time.Duration) *Simulated {
	s := &Simulated{
		rate: 1.0,
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}

	if interval > 0 {
		go s.run(interval)
	} else {
		close(s.done)
	}

	return s
}

func (s *Simulated) run(interval time.Duration) {
	defer close(s.done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.Step(interval.Seconds())
		}
	}
}

// Step advances the virtual playhead by dt wall-clock seconds, scaled
// by the playback rate. Exposed so tests can drive the engine without
// waiting on the ticker.
func (s *Simulated) Step(dt float64) {
	s.mu.Lock()
	if !s.loaded {
		s.mu.Unlock()
		return
	}

	ended := false
	if s.playing && !s.stalled {
		s.pos += dt * s.rate
		if s.pos >= s.dur {
			s.pos = s.dur
			s.playing = false
			ended = true
		}
	}

	l := s.listener
	pos, dur := s.pos, s.dur
	s.mu.Unlock()

	if l != nil {
		l.PositionChanged(pos, dur)
		if ended {
			l.TrackEnded()
		}
	}
}

// SetStalled simulates a network stall starting or clearing, firing
// BufferingChanged on transitions.
func (s *Simulated) SetStalled(stalled bool) {
	s.mu.Lock()
	changed := s.stalled != stalled
	s.stalled = stalled
	l := s.listener
	s.mu.Unlock()

	if changed && l != nil {
		l.BufferingChanged(stalled)
	}
}

// Load implements Engine.
func (s *Simulated) Load(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	dur := 180.0
	if s.DurationFor != nil {
		dur = s.DurationFor(url)
	}

	s.mu.Lock()
	s.loaded = true
	s.playing = false
	s.stalled = false
	s.pos = 0
	s.dur = dur
	s.mu.Unlock()
	return nil
}

// Play implements Engine.
func (s *Simulated) Play() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.loaded {
		return ErrNothingLoaded
	}
	if s.pos >= s.dur {
		s.pos = 0
	}
	s.playing = true
	return nil
}

// Pause implements Engine.
func (s *Simulated) Pause() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.loaded {
		return ErrNothingLoaded
	}
	s.playing = false
	return nil
}

// Seek implements Engine.
func (s *Simulated) Seek(seconds float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.loaded {
		return ErrNothingLoaded
	}
	if seconds < 0 {
		seconds = 0
	}
	if seconds > s.dur {
		seconds = s.dur
	}
	s.pos = seconds
	return nil
}

// SetRate implements Engine.
func (s *Simulated) SetRate(rate float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rate = rate
	return nil
}

// SetListener implements Engine.
func (s *Simulated) SetListener(l Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listener = l
}

// Position returns the current playhead position in seconds.
func (s *Simulated) Position() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pos
}

// Playing reports whether the engine is currently advancing.
func (s *Simulated) Playing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.playing
}

// Close implements Engine. It stops the ticker and detaches the
// listener; no events fire after Close returns.
func (s *Simulated) Close() error {
	s.stopOnce.Do(func() { close(s.stop) })
	<-s.done

	s.mu.Lock()
	s.listener = nil
	s.loaded = false
	s.playing = false
	s.mu.Unlock()
	return nil
}
