package frameclock

import (
	"testing"
	"time"
)

type fakeNow struct{ t time.Time }

func (f *fakeNow) now() time.Time          { return f.t }
func (f *fakeNow) advance(d time.Duration) { f.t = f.t.Add(d) }

func newFake() (*fakeNow, *Clock) {
	f := &fakeNow{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	return f, New(WithNow(f.now))
}

func TestSignalMeasuresDelta(t *testing.T) {
	t.Parallel()
	f, c := newFake()

	// stopped clocks do not measure
	f.advance(time.Second)
	if d := c.Signal(); d != 0 {
		t.Fatalf("stopped Signal = %s, want 0", d)
	}

	c.Start()
	f.advance(16 * time.Millisecond)
	if d := c.Signal(); d != 16*time.Millisecond {
		t.Fatalf("delta = %s, want 16ms", d)
	}
	f.advance(20 * time.Millisecond)
	c.Signal()
	if c.DeltaTime() != 20*time.Millisecond {
		t.Fatalf("DeltaTime = %s, want 20ms", c.DeltaTime())
	}
	if c.Frames() != 2 {
		t.Fatalf("Frames = %d, want 2", c.Frames())
	}
}

func TestStopExcludesPausedTime(t *testing.T) {
	t.Parallel()
	f, c := newFake()
	c.Start()
	f.advance(10 * time.Millisecond)
	c.Signal()

	c.Stop()
	f.advance(time.Hour)
	c.Start()
	f.advance(5 * time.Millisecond)
	if d := c.Signal(); d != 5*time.Millisecond {
		t.Fatalf("delta after pause = %s, want 5ms", d)
	}
}

func TestFPSRollsOverEverySecond(t *testing.T) {
	t.Parallel()
	f, c := newFake()
	c.Start()

	// 40 frames of 25ms: the window reaches 1s on the 40th frame
	for i := 0; i < 40; i++ {
		f.advance(25 * time.Millisecond)
		c.Signal()
	}
	if c.FPS() != 39 {
		t.Fatalf("FPS = %d, want 39 (frames counted before rollover)", c.FPS())
	}
	for i := 0; i < 40; i++ {
		f.advance(25 * time.Millisecond)
		c.Signal()
	}
	if c.FPS() != 40 {
		t.Fatalf("FPS = %d, want 40", c.FPS())
	}
}

func TestDelayPacesTowardTarget(t *testing.T) {
	t.Parallel()
	f, c := newFake()

	if d := c.Delay(60); d != 0 {
		t.Fatalf("Delay on stopped clock = %s, want 0", d)
	}
	c.Start()
	if d := c.Delay(0); d != 0 {
		t.Fatalf("Delay(0) = %s, want 0", d)
	}

	// frame work took 4ms; target 50fps (20ms) -> sleep 16ms
	f.advance(4 * time.Millisecond)
	c.Signal()
	if d := c.Delay(50); d != 16*time.Millisecond {
		t.Fatalf("Delay = %s, want 16ms", d)
	}

	// next frame measured 4ms of work plus the 16ms sleep -> keep 16ms
	f.advance(20 * time.Millisecond)
	c.Signal()
	if d := c.Delay(50); d != 16*time.Millisecond {
		t.Fatalf("steady Delay = %s, want 16ms", d)
	}

	// a frame that overran badly clamps to zero
	f.advance(200 * time.Millisecond)
	c.Signal()
	if d := c.Delay(50); d != 0 {
		t.Fatalf("overrun Delay = %s, want 0", d)
	}
}

func TestResetClearsState(t *testing.T) {
	t.Parallel()
	f, c := newFake()
	c.Start()
	f.advance(30 * time.Millisecond)
	c.Signal()
	c.Delay(10)

	c.Reset()
	if c.DeltaTime() != 0 || c.FPS() != 0 {
		t.Fatalf("Reset left delta=%s fps=%d", c.DeltaTime(), c.FPS())
	}
	if !c.Running() {
		t.Fatal("Reset stopped a running clock")
	}
	f.advance(7 * time.Millisecond)
	if d := c.Signal(); d != 7*time.Millisecond {
		t.Fatalf("delta after Reset = %s, want 7ms", d)
	}
}
