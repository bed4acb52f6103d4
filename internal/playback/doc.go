// Package playback provides the process-wide playback session, its
// sleep timer, and the progress-sync pusher.
//
// # Session
//
// Session is the single source of truth for "what's playing now".
// Every UI surface binds to the same injected instance; commands and
// engine callbacks are serialized so interleaved play/pause from two
// surfaces can never race into an inconsistent status:
//
//	session := playback.NewSession(eng, cat,
//	    playback.WithSyncer(syncer, 15*time.Second))
//	defer session.Close()
//
//	states, unsubscribe := session.Subscribe()
//	defer unsubscribe()
//
//	session.SetQueue(lectures, 0)
//	session.ToggleShuffle()
//	session.PlayNext()
//
// # Sleep Timer
//
// The sleep timer pauses playback after a countdown, firing at most
// once per armed period even when a cancel races the expiry:
//
//	session.Sleep().Set(30)
//
// # Progress Sync
//
// ProgressSyncer posts (lecture, position) fire-and-forget with at most
// one in-flight request per lecture; failures never disturb playback.
package playback
