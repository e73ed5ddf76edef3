package hostloop

import (
	"reflect"
	"testing"
	"time"

	"tickloop/internal/config"
	"tickloop/internal/timers"
	logx "tickloop/pkg/logx"
)

func TestTimerSetSync(t *testing.T) {
	t.Parallel()
	reg := timers.New()
	var fired []string
	set := NewTimerSet(reg, logx.Nop(), func(name string) timers.Observer {
		return func(timers.Tick) { fired = append(fired, name) }
	})

	off := false
	id := 12
	err := set.Sync([]config.TimerConfig{
		{Name: "fast", Every: "0.5"},
		{Name: "slow", Every: "00:00:02", ID: &id},
		{Name: "idle", Every: "1s", Start: &off},
	})
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if got := set.Names(); !reflect.DeepEqual(got, []string{"fast", "idle", "slow"}) {
		t.Fatalf("Names = %v", got)
	}
	slow, _ := set.Get("slow")
	if slow.ID() != 12 || slow.Interval() != 2*time.Second {
		t.Fatalf("slow = %s", slow)
	}
	idle, _ := set.Get("idle")
	if idle.Enabled() {
		t.Fatal("start=false timer was started")
	}

	reg.Update(500 * time.Millisecond)
	if !reflect.DeepEqual(fired, []string{"fast"}) {
		t.Fatalf("fired = %v", fired)
	}

	// keep slow untouched, retime fast, drop idle
	err = set.Sync([]config.TimerConfig{
		{Name: "fast", Every: "250ms"},
		{Name: "slow", Every: "00:00:02", ID: &id},
	})
	if err != nil {
		t.Fatalf("second Sync: %v", err)
	}
	if same, _ := set.Get("slow"); same != slow {
		t.Fatal("unchanged timer was rebuilt")
	}
	if slow.Elapsed() != 500*time.Millisecond {
		t.Fatalf("unchanged timer lost elapsed: %s", slow.Elapsed())
	}
	if _, ok := set.Get("idle"); ok {
		t.Fatal("removed timer still declared")
	}
	fast, _ := set.Get("fast")
	if fast.Interval() != 250*time.Millisecond {
		t.Fatalf("fast interval = %s", fast.Interval())
	}

	reg.Update(0) // drain the disposed timers
	if reg.Len() != 2 {
		t.Fatalf("registry len = %d, want 2", reg.Len())
	}

	set.Close()
	reg.Update(0)
	if reg.Len() != 0 {
		t.Fatalf("Close left %d timers", reg.Len())
	}
}

func TestTimerSetRejectsBadEntries(t *testing.T) {
	t.Parallel()
	reg := timers.New()
	set := NewTimerSet(reg, logx.Nop())
	if err := set.Sync([]config.TimerConfig{{Name: "a", Every: "1s"}}); err != nil {
		t.Fatalf("Sync: %v", err)
	}

	bad := [][]config.TimerConfig{
		{{Name: "a", Every: "never"}},
		{{Name: "b", Every: "1s"}, {Name: "b", Every: "2s"}},
	}
	for _, cfgs := range bad {
		if err := set.Sync(cfgs); err == nil {
			t.Fatalf("Sync(%+v) accepted", cfgs)
		}
	}
	if got := set.Names(); !reflect.DeepEqual(got, []string{"a"}) {
		t.Fatalf("failed Sync modified the set: %v", got)
	}
}

func TestTimerSetOneShot(t *testing.T) {
	t.Parallel()
	reg := timers.New()
	set := NewTimerSet(reg, logx.Nop())
	cfgs := []config.TimerConfig{{Every: "1s", OneShot: true}}
	if err := set.Sync(cfgs); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	tm, ok := set.Get("#0")
	if !ok || tm.Policy() != timers.OneShot {
		t.Fatalf("unnamed one-shot not declared under #0")
	}
	reg.Update(time.Second)
	if tm.State() != timers.Detached {
		t.Fatalf("one-shot state after firing = %s", tm.State())
	}
	if _, ok := set.Get("#0"); ok {
		t.Fatal("fired one-shot still reported by Get")
	}
	if got := set.Names(); len(got) != 0 {
		t.Fatalf("Names after firing = %v", got)
	}

	// an unchanged reload does not declare it again
	if err := set.Sync(cfgs); err != nil {
		t.Fatalf("Sync unchanged: %v", err)
	}
	if _, ok := set.Get("#0"); ok || reg.Len() != 0 {
		t.Fatalf("unchanged one-shot rebuilt (len=%d)", reg.Len())
	}

	// a changed one is
	if err := set.Sync([]config.TimerConfig{{Every: "2s", OneShot: true}}); err != nil {
		t.Fatalf("Sync changed: %v", err)
	}
	again, ok := set.Get("#0")
	if !ok || again == tm || again.Interval() != 2*time.Second {
		t.Fatal("changed one-shot not rebuilt")
	}
}
