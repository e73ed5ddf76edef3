package timers

import (
	"fmt"
	"math"
	"time"
)

// Tick describes one firing of a timer.
type Tick struct {
	Timer *Timer

	// SinceLastTick is the timer's elapsed time at the moment it became due,
	// before the interval was subtracted. It can exceed the interval when a
	// frame was long or a previous tick carried time over.
	SinceLastTick time.Duration
}

func (t Tick) String() string {
	if t.Timer == nil {
		return fmt.Sprintf("tick(<nil> since=%s)", t.SinceLastTick)
	}
	return fmt.Sprintf("tick(id=%d since=%s)", t.Timer.ID(), t.SinceLastTick)
}

// Observer receives tick notifications.
type Observer func(Tick)

// Token identifies an observer subscription. The zero Token is never issued.
type Token uint64

// Seconds converts float seconds to a Duration. Host loops that measure frames
// as float seconds can pass Seconds(dt) to Update. NaN maps to 0; infinities
// and values beyond the Duration range saturate.
func Seconds(s float64) time.Duration {
	ns := s * float64(time.Second)
	switch {
	case math.IsNaN(ns):
		return 0
	case ns >= math.MaxInt64:
		return math.MaxInt64
	case ns <= math.MinInt64:
		return math.MinInt64
	}
	return time.Duration(ns)
}
