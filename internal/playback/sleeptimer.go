package playback

import (
	"sync"
	"time"
)

// ticker abstracts time.Ticker so tests can drive the countdown with a
// simulated clock.
type ticker interface {
	C() <-chan time.Time
	Stop()
}

type realTicker struct{ t *time.Ticker }

func (r realTicker) C() <-chan time.Time { return r.t.C }
func (r realTicker) Stop()               { r.t.Stop() }

// SleepTimer is a one-shot countdown that pauses playback on expiry.
//
// Its lifetime is independent of the playback session's current
// lecture: arming it requires no loaded lecture, and switching lectures
// does not cancel it. Per armed period the pause callback fires at most
// once; cancellation is race-free against a concurrently firing expiry.
//
// Example:
//
//	timer := session.Sleep()
//	timer.Set(30)               // pause in 30 minutes
//	remaining, armed := timer.Remaining()
//	timer.Cancel()
type SleepTimer struct {
	pause func()

	mu         sync.Mutex
	remaining  int // seconds; 0 when disarmed
	endsAt     time.Time
	generation int
	stop       chan struct{}

	newTicker func(d time.Duration) ticker // test seam
}

// NewSleepTimer creates a disarmed timer that calls pause on expiry.
func NewSleepTimer(pause func()) *SleepTimer {
	return &SleepTimer{
		pause: pause,
		newTicker: func(d time.Duration) ticker {
			return realTicker{t: time.NewTicker(d)}
		},
	}
}

// Set arms the countdown for the given number of minutes, replacing any
// previously armed period. Non-positive minutes cancel the timer.
func (t *SleepTimer) Set(minutes int) {
	if minutes <= 0 {
		t.Cancel()
		return
	}

	t.mu.Lock()
	t.disarmLocked()
	t.remaining = minutes * 60
	t.endsAt = time.Now().Add(time.Duration(minutes) * time.Minute)
	t.generation++
	t.stop = make(chan struct{})
	gen := t.generation
	stop := t.stop
	t.mu.Unlock()

	go t.run(gen, stop)
}

// run ticks the countdown at one-second granularity until expiry or
// cancellation.
func (t *SleepTimer) run(gen int, stop chan struct{}) {
	tick := t.newTicker(time.Second)
	defer tick.Stop()

	for {
		select {
		case <-stop:
			return
		case <-tick.C():
			t.mu.Lock()
			if gen != t.generation {
				t.mu.Unlock()
				return
			}
			t.remaining--
			if t.remaining > 0 {
				t.mu.Unlock()
				continue
			}
			// Expired: disarm before pausing so a concurrent Cancel
			// cannot observe an armed timer nor trigger a second pause.
			t.generation++
			t.remaining = 0
			t.endsAt = time.Time{}
			t.mu.Unlock()

			t.pause()
			return
		}
	}
}

// Cancel disarms the timer. Canceling a disarmed timer is a no-op, and
// a cancel racing the timer's own expiry still yields at most one pause
// for the armed period.
func (t *SleepTimer) Cancel() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.disarmLocked()
}

func (t *SleepTimer) disarmLocked() {
	if t.stop == nil {
		return
	}
	t.generation++
	close(t.stop)
	t.stop = nil
	t.remaining = 0
	t.endsAt = time.Time{}
}

// Remaining returns the seconds left and whether the timer is armed.
func (t *SleepTimer) Remaining() (int, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.remaining, t.remaining > 0
}

// EndsAt returns the expiry timestamp and whether the timer is armed.
func (t *SleepTimer) EndsAt() (time.Time, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.endsAt, t.remaining > 0
}
