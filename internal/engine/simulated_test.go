package engine

import (
	"context"
	"sync"
	"testing"
)

type recordingListener struct {
	mu        sync.Mutex
	positions []float64
	buffering []bool
	ended     int
}

func (r *recordingListener) PositionChanged(pos, dur float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.positions = append(r.positions, pos)
}

func (r *recordingListener) BufferingChanged(b bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.buffering = append(r.buffering, b)
}

func (r *recordingListener) TrackEnded() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ended++
}

func newStepped(t *testing.T, dur float64) (*Simulated, *recordingListener) {
	t.Helper()
	eng := NewSimulated(0)
	t.Cleanup(func() { eng.Close() })
	eng.DurationFor = func(string) float64 { return dur }

	l := &recordingListener{}
	eng.SetListener(l)
	if err := eng.Load(context.Background(), "https://cdn.example.com/a.mp3"); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	return eng, l
}

func TestSimulated_PlayAdvancesAtRate(t *testing.T) {
	eng, _ := newStepped(t, 100)

	if err := eng.Play(); err != nil {
		t.Fatal(err)
	}
	if err := eng.SetRate(2.0); err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 4; i++ {
		eng.Step(0.5)
	}

	if got := eng.Position(); got != 4.0 {
		t.Errorf("Position() = %v, want 4.0 (2s wall clock at 2x)", got)
	}
}

func TestSimulated_PauseFreezesPlayhead(t *testing.T) {
	eng, _ := newStepped(t, 100)

	eng.Play()
	eng.Step(1)
	eng.Pause()
	eng.Step(5)

	if got := eng.Position(); got != 1.0 {
		t.Errorf("Position() = %v, want 1.0 after pause", got)
	}
}

func TestSimulated_TrackEndedFiresOnce(t *testing.T) {
	eng, l := newStepped(t, 2)

	eng.Play()
	for i := 0; i < 10; i++ {
		eng.Step(1)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.ended != 1 {
		t.Errorf("TrackEnded fired %d times, want 1", l.ended)
	}
	if eng.Playing() {
		t.Error("engine should stop advancing at end of media")
	}
}

func TestSimulated_StallSuspendsAdvance(t *testing.T) {
	eng, l := newStepped(t, 100)

	eng.Play()
	eng.SetStalled(true)
	eng.Step(3)
	eng.SetStalled(false)
	eng.Step(1)

	if got := eng.Position(); got != 1.0 {
		t.Errorf("Position() = %v, want 1.0 (stalled time not counted)", got)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	want := []bool{true, false}
	if len(l.buffering) != 2 || l.buffering[0] != want[0] || l.buffering[1] != want[1] {
		t.Errorf("buffering transitions = %v, want %v", l.buffering, want)
	}
}

func TestSimulated_CommandsBeforeLoad(t *testing.T) {
	eng := NewSimulated(0)
	defer eng.Close()

	if err := eng.Play(); err != ErrNothingLoaded {
		t.Errorf("Play() before Load error = %v, want ErrNothingLoaded", err)
	}
	if err := eng.Seek(10); err != ErrNothingLoaded {
		t.Errorf("Seek() before Load error = %v, want ErrNothingLoaded", err)
	}
}

func TestSimulated_SeekClampsToDuration(t *testing.T) {
	eng, _ := newStepped(t, 60)

	eng.Seek(500)
	if got := eng.Position(); got != 60 {
		t.Errorf("Seek(500) position = %v, want 60", got)
	}
	eng.Seek(-5)
	if got := eng.Position(); got != 0 {
		t.Errorf("Seek(-5) position = %v, want 0", got)
	}
}
