// Package engine defines the audio decode/output primitive the playback
// session drives, and ships a clock-driven simulated implementation.
//
// The Engine interface mirrors the capabilities of a platform audio
// player: load, play, pause, seek, rate, plus a Listener that delivers
// periodic position ticks, buffering transitions, and end-of-track
// notifications.
//
// # Simulated engine
//
//	eng := engine.NewSimulated(500 * time.Millisecond)
//	defer eng.Close()
//	eng.SetListener(session)
//
// Tests construct it with a non-positive interval and call Step to
// advance the playhead deterministically.
package engine
