package playback

import (
	"errors"
	"fmt"

	"github.com/lecturecast/lecturecast/internal/model"
)

// Status is the playback lifecycle state.
type Status int

const (
	// StatusIdle means no lecture is loaded.
	StatusIdle Status = iota

	// StatusLoading means a stream URL is being resolved and handed
	// to the engine.
	StatusLoading

	// StatusReady means media is loaded and paused at the start.
	StatusReady

	// StatusPlaying means the engine is advancing.
	StatusPlaying

	// StatusPaused means playback is suspended by the user.
	StatusPaused

	// StatusBuffering means a network stall suspended playback; the
	// pre-stall status is restored when the stall clears.
	StatusBuffering

	// StatusError means the last load failed; see State.LastError.
	StatusError
)

// String implements fmt.Stringer.
func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusLoading:
		return "loading"
	case StatusReady:
		return "ready"
	case StatusPlaying:
		return "playing"
	case StatusPaused:
		return "paused"
	case StatusBuffering:
		return "buffering"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// active reports whether media is loaded and seekable.
func (s Status) active() bool {
	switch s {
	case StatusReady, StatusPlaying, StatusPaused, StatusBuffering:
		return true
	default:
		return false
	}
}

// RepeatMode controls queue wrap-around behavior.
type RepeatMode int

const (
	// RepeatOff stops at the end of the queue.
	RepeatOff RepeatMode = iota

	// RepeatAll wraps from the last queue entry back to the first.
	RepeatAll

	// RepeatOne restarts the current lecture on advance.
	RepeatOne
)

// String implements fmt.Stringer.
func (m RepeatMode) String() string {
	switch m {
	case RepeatAll:
		return "all"
	case RepeatOne:
		return "one"
	default:
		return "off"
	}
}

// next returns the following mode in the Off → All → One cycle.
func (m RepeatMode) next() RepeatMode {
	switch m {
	case RepeatOff:
		return RepeatAll
	case RepeatAll:
		return RepeatOne
	default:
		return RepeatOff
	}
}

// Rates is the set of playback speeds the session accepts.
var Rates = []float64{0.75, 1.0, 1.25, 1.5, 1.75, 2.0}

// ValidRate reports whether rate is one of the enumerated speeds.
func ValidRate(rate float64) bool {
	for _, r := range Rates {
		if r == rate {
			return true
		}
	}
	return false
}

// ErrMediaResolution marks a failed stream URL resolution. The session
// keeps the previous lecture reference so UI surfaces can offer a
// contextual retry.
var ErrMediaResolution = errors.New("could not resolve lecture stream")

// InvalidRateError is returned by SetPlaybackRate for a speed outside
// the enumerated set.
type InvalidRateError struct {
	Rate float64
}

func (e *InvalidRateError) Error() string {
	return fmt.Sprintf("invalid playback rate %v", e.Rate)
}

// State is an immutable snapshot of the playback session.
//
// Readers always observe a complete, self-consistent snapshot; the
// queue slice is copied on publication and must not be mutated.
type State struct {
	// Queue is the ordered play queue.
	Queue []model.LectureRef

	// QueueIndex is the current position in Queue; it is only
	// meaningful when the queue is non-empty, and then always within
	// [0, len(Queue)).
	QueueIndex int

	// Status is the lifecycle state.
	Status Status

	// PositionSeconds is the playhead, always within
	// [0, DurationSeconds].
	PositionSeconds float64

	// DurationSeconds is the loaded media duration.
	DurationSeconds float64

	// Rate is the active playback speed.
	Rate float64

	// Shuffle selects pseudo-random queue traversal.
	Shuffle bool

	// Repeat is the wrap-around mode.
	Repeat RepeatMode

	// LastError is the most recent user-facing failure, set when
	// Status is StatusError.
	LastError error
}

// Current returns the lecture at the queue index, if any.
func (s State) Current() (model.LectureRef, bool) {
	if len(s.Queue) == 0 || s.QueueIndex < 0 || s.QueueIndex >= len(s.Queue) {
		return model.LectureRef{}, false
	}
	return s.Queue[s.QueueIndex], true
}
