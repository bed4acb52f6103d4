package playback

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// fakeTicker feeds the countdown loop from a buffered channel so tests
// control the clock.
type fakeTicker struct {
	ch chan time.Time
}

func newFakeTicker() *fakeTicker {
	return &fakeTicker{ch: make(chan time.Time, 4096)}
}

func (f *fakeTicker) C() <-chan time.Time { return f.ch }
func (f *fakeTicker) Stop()               {}

func (f *fakeTicker) advance(seconds int) {
	for i := 0; i < seconds; i++ {
		f.ch <- time.Now()
	}
}

func newFakeTimer(pause func()) (*SleepTimer, *fakeTicker) {
	tick := newFakeTicker()
	timer := NewSleepTimer(pause)
	timer.newTicker = func(time.Duration) ticker { return tick }
	return timer, tick
}

func TestSleepTimer_ExpiryPausesExactlyOnce(t *testing.T) {
	var pauses atomic.Int32
	timer, tick := newFakeTimer(func() { pauses.Add(1) })

	timer.Set(1)
	tick.advance(60)

	waitFor(t, func() bool { return pauses.Load() == 1 })

	if _, armed := timer.Remaining(); armed {
		t.Error("timer still armed after expiry")
	}

	// Extra ticks after expiry must not pause again.
	tick.advance(5)
	time.Sleep(10 * time.Millisecond)
	if got := pauses.Load(); got != 1 {
		t.Errorf("pauses = %d, want exactly 1", got)
	}
}

func TestSleepTimer_RemainingCountsDown(t *testing.T) {
	timer, tick := newFakeTimer(func() {})

	timer.Set(2)
	if remaining, armed := timer.Remaining(); !armed || remaining != 120 {
		t.Fatalf("Remaining() = %d, %v; want 120, true", remaining, armed)
	}

	tick.advance(30)
	waitFor(t, func() bool {
		remaining, _ := timer.Remaining()
		return remaining == 90
	})
}

func TestSleepTimer_CancelDisarmsWithoutPausing(t *testing.T) {
	var pauses atomic.Int32
	timer, tick := newFakeTimer(func() { pauses.Add(1) })

	timer.Set(1)
	timer.Cancel()

	if _, armed := timer.Remaining(); armed {
		t.Error("timer still armed after cancel")
	}

	tick.advance(60)
	time.Sleep(10 * time.Millisecond)
	if got := pauses.Load(); got != 0 {
		t.Errorf("pauses = %d, want 0 after cancel", got)
	}
}

func TestSleepTimer_CancelOnDisarmedIsNoop(t *testing.T) {
	timer := NewSleepTimer(func() { t.Error("pause must not fire") })
	timer.Cancel()
	timer.Cancel()
}

func TestSleepTimer_SetReplacesArmedPeriod(t *testing.T) {
	var pauses atomic.Int32
	timer, tick := newFakeTimer(func() { pauses.Add(1) })

	timer.Set(1)
	timer.Set(5)

	if remaining, _ := timer.Remaining(); remaining != 300 {
		t.Errorf("Remaining() = %d, want 300 after re-arm", remaining)
	}

	// Enough ticks to exhaust the replaced period but not the new one.
	tick.advance(60)
	waitFor(t, func() bool {
		remaining, _ := timer.Remaining()
		return remaining <= 245
	})
	if got := pauses.Load(); got != 0 {
		t.Errorf("pauses = %d, want 0 while re-armed period runs", got)
	}
}

func TestSleepTimer_SetZeroCancels(t *testing.T) {
	timer, _ := newFakeTimer(func() {})

	timer.Set(1)
	timer.Set(0)

	if _, armed := timer.Remaining(); armed {
		t.Error("Set(0) should disarm the timer")
	}
}

func TestSleepTimer_EndsAt(t *testing.T) {
	timer, _ := newFakeTimer(func() {})

	if _, armed := timer.EndsAt(); armed {
		t.Fatal("disarmed timer reports an expiry time")
	}

	before := time.Now()
	timer.Set(30)
	endsAt, armed := timer.EndsAt()
	if !armed {
		t.Fatal("armed timer reports disarmed")
	}
	want := before.Add(30 * time.Minute)
	if endsAt.Before(want.Add(-time.Second)) || endsAt.After(want.Add(time.Second)) {
		t.Errorf("EndsAt() = %v, want about %v", endsAt, want)
	}
}

func TestSleepTimer_ConcurrentCancelAndExpiry(t *testing.T) {
	for i := 0; i < 20; i++ {
		var pauses atomic.Int32
		timer, tick := newFakeTimer(func() { pauses.Add(1) })

		timer.Set(1)
		tick.advance(59)

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			tick.advance(1)
		}()
		go func() {
			defer wg.Done()
			timer.Cancel()
		}()
		wg.Wait()

		time.Sleep(5 * time.Millisecond)
		if got := pauses.Load(); got > 1 {
			t.Fatalf("pauses = %d, want at most 1", got)
		}
		if _, armed := timer.Remaining(); armed {
			t.Fatal("timer still armed after cancel/expiry race")
		}
	}
}
