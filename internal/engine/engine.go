package engine

import "context"

// Listener receives asynchronous playback events from an Engine.
//
// Implementations must be safe for calls from the engine's own
// goroutine; the playback session serializes these against its command
// handling internally.
type Listener interface {
	// PositionChanged reports the current position and, when known,
	// the media duration. Fired periodically while a track is loaded.
	PositionChanged(positionSeconds, durationSeconds float64)

	// BufferingChanged reports a network stall starting (true) or
	// clearing (false).
	BufferingChanged(buffering bool)

	// TrackEnded fires once when playback reaches the end of the
	// loaded media.
	TrackEnded()
}

// Engine is the audio decode/output primitive the playback session
// drives. The real implementation is supplied by the host platform;
// this package ships a clock-driven Simulated engine for the CLI, the
// TUI demo mode, and tests.
type Engine interface {
	// Load prepares the media at url for playback, resetting the
	// position to zero. Load does not start playback.
	Load(ctx context.Context, url string) error

	// Play starts or resumes playback of the loaded media.
	Play() error

	// Pause suspends playback, retaining the current position.
	Pause() error

	// Seek moves the position to the given offset in seconds. The
	// engine clamps to the media duration.
	Seek(seconds float64) error

	// SetRate changes the playback speed multiplier.
	SetRate(rate float64) error

	// SetListener registers the event sink. Pass nil to detach.
	SetListener(l Listener)

	// Close releases the engine. No events fire after Close returns.
	Close() error
}
