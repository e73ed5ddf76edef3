package timers

import (
	"math"
	"testing"
	"time"
)

func TestSeconds(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in   float64
		want time.Duration
	}{
		{in: 1, want: time.Second},
		{in: 2.5, want: 2500 * time.Millisecond},
		{in: 0.25, want: 250 * time.Millisecond},
		{in: 0, want: 0},
		{in: -1, want: -time.Second},
		{in: math.NaN(), want: 0},
		{in: math.Inf(1), want: math.MaxInt64},
		{in: math.Inf(-1), want: math.MinInt64},
		{in: 1e12, want: math.MaxInt64},
		{in: -1e12, want: math.MinInt64},
	}
	for _, tt := range tests {
		if got := Seconds(tt.in); got != tt.want {
			t.Fatalf("Seconds(%v) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestUnsubscribeDuringDispatch(t *testing.T) {
	t.Parallel()
	r := New()
	tm, err := r.NewTimer(WithInterval(time.Second), WithID(3))
	if err != nil {
		t.Fatalf("NewTimer: %v", err)
	}

	var first, second, late int
	var secondTok Token
	tm.Subscribe(func(Tick) {
		first++
		// both changes apply from the next tick on
		tm.Unsubscribe(secondTok)
		tm.Subscribe(func(Tick) { late++ })
	})
	secondTok = tm.Subscribe(func(Tick) { second++ })
	tm.Start()

	r.Update(time.Second)
	if first != 1 || second != 1 || late != 0 {
		t.Fatalf("first=%d second=%d late=%d, want 1 1 0", first, second, late)
	}

	r.Update(time.Second)
	if first != 2 || second != 1 || late != 1 {
		t.Fatalf("first=%d second=%d late=%d, want 2 1 1", first, second, late)
	}
	if tm.Unsubscribe(secondTok) {
		t.Fatal("second Unsubscribe of the same token reported success")
	}
	if tm.Subscribe(nil) != 0 {
		t.Fatal("Subscribe(nil) issued a token")
	}
}

func TestTickString(t *testing.T) {
	t.Parallel()
	r := New()
	tm, err := r.NewTimer(WithID(9))
	if err != nil {
		t.Fatalf("NewTimer: %v", err)
	}
	got := Tick{Timer: tm, SinceLastTick: 1500 * time.Millisecond}.String()
	if got != "tick(id=9 since=1.5s)" {
		t.Fatalf("String = %q", got)
	}
	if tm.String() != "timer(id=9 interval=1s policy=repeating)" {
		t.Fatalf("Timer.String = %q", tm.String())
	}
}
