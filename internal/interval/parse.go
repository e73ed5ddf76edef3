// Package interval parses human-written timer intervals from configs and
// flags.
//
// Supported forms:
//   - Go duration: "250ms", "1.5s", "2m30s"
//   - bare seconds: "1.5", "0.25"
//   - clock: "01:30" (MM:SS), "00:01:30" (HH:MM:SS)
//   - cron descriptor: "@every 2s" (robfig/cron, whole seconds only)
//
// Optional prefixes:
//   - "cron:" forces cron parsing
//   - "interval:" or "every:" forces non-cron parsing
package interval

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

var ErrEmpty = errors.New("interval required")

// Spec is a parsed interval.
type Spec struct {
	Every  time.Duration
	Source string // "duration" | "seconds" | "clock" | "cron"
}

func (s Spec) String() string { return s.Every.String() }

var reClock = regexp.MustCompile(`^(\d{1,3}):(\d{2})(?::(\d{2}))?$`)

// cron only understands descriptors here; five-field specs describe wall-clock
// instants, not a constant period.
var cronParser = cron.NewParser(cron.Descriptor)

func Parse(raw string) (Spec, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return Spec{}, ErrEmpty
	}

	low := strings.ToLower(s)
	switch {
	case strings.HasPrefix(low, "cron:"):
		expr := strings.TrimSpace(s[len("cron:"):])
		if expr == "" {
			return Spec{}, fmt.Errorf("cron descriptor required after 'cron:': %w", ErrEmpty)
		}
		return parseCron(expr)
	case strings.HasPrefix(low, "interval:"):
		return parsePlain(strings.TrimSpace(s[len("interval:"):]))
	case strings.HasPrefix(low, "every:"):
		return parsePlain(strings.TrimSpace(s[len("every:"):]))
	}

	if strings.HasPrefix(s, "@") {
		return parseCron(s)
	}
	sp, err := parsePlain(s)
	if err != nil {
		return Spec{}, fmt.Errorf(
			"%w (use a duration like '250ms', seconds like '1.5', MM:SS like '01:30', or '@every 2s')",
			err,
		)
	}
	return sp, nil
}

// MustParse is Parse for literals known to be valid.
func MustParse(raw string) time.Duration {
	sp, err := Parse(raw)
	if err != nil {
		panic(err)
	}
	return sp.Every
}

func parsePlain(v string) (Spec, error) {
	if v == "" {
		return Spec{}, ErrEmpty
	}
	if reClock.MatchString(v) {
		d, err := parseClock(v)
		if err != nil {
			return Spec{}, err
		}
		return positive(Spec{Every: d, Source: "clock"})
	}
	if d, err := time.ParseDuration(v); err == nil {
		return positive(Spec{Every: d, Source: "duration"})
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return Spec{}, fmt.Errorf("invalid interval %q", v)
	}
	if f > float64(math.MaxInt64)/float64(time.Second) {
		return Spec{}, fmt.Errorf("interval %q out of range", v)
	}
	return positive(Spec{Every: time.Duration(math.Round(f * float64(time.Second))), Source: "seconds"})
}

func parseClock(v string) (time.Duration, error) {
	m := reClock.FindStringSubmatch(v)
	if len(m) != 4 {
		return 0, fmt.Errorf("invalid clock interval %q", v)
	}
	a, _ := strconv.Atoi(m[1])
	b, _ := strconv.Atoi(m[2])
	if b > 59 {
		return 0, fmt.Errorf("invalid clock interval %q: field out of range", v)
	}
	if m[3] == "" {
		// MM:SS
		return time.Duration(a)*time.Minute + time.Duration(b)*time.Second, nil
	}
	c, _ := strconv.Atoi(m[3])
	if c > 59 {
		return 0, fmt.Errorf("invalid clock interval %q: field out of range", v)
	}
	return time.Duration(a)*time.Hour + time.Duration(b)*time.Minute + time.Duration(c)*time.Second, nil
}

func parseCron(expr string) (Spec, error) {
	sched, err := cronParser.Parse(expr)
	if err != nil {
		return Spec{}, fmt.Errorf("invalid cron descriptor %q: %w", expr, err)
	}
	cd, ok := sched.(cron.ConstantDelaySchedule)
	if !ok {
		return Spec{}, fmt.Errorf("cron descriptor %q has no constant period (use '@every <duration>')", expr)
	}
	return positive(Spec{Every: cd.Delay, Source: "cron"})
}

func positive(sp Spec) (Spec, error) {
	if sp.Every <= 0 {
		return Spec{}, fmt.Errorf("interval must be > 0, got %s", sp.Every)
	}
	return sp, nil
}
