package storage

import (
	"bufio"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	logx "tickloop/pkg/logx"
)

func rec(id int, since time.Duration) TickRecord {
	return TickRecord{
		At:            time.Date(2026, 3, 1, 12, 0, id, 0, time.UTC),
		Name:          "t",
		TimerID:       id,
		SinceLastTick: since,
		Frame:         uint64(id * 10),
	}
}

func TestOpenDisabled(t *testing.T) {
	t.Parallel()
	for _, driver := range []string{"", "none", " NONE "} {
		st, err := Open(Config{Driver: driver}, logx.Nop())
		if err != nil || st != nil {
			t.Fatalf("Open(%q) = %v, %v; want nil, nil", driver, st, err)
		}
	}
	if _, err := Open(Config{Driver: "redis"}, logx.Nop()); err == nil {
		t.Fatal("unknown driver accepted")
	}
	if _, err := Open(Config{Driver: "file"}, logx.Nop()); err == nil {
		t.Fatal("file driver without path accepted")
	}
}

func TestStores(t *testing.T) {
	t.Parallel()
	for _, driver := range []string{"file", "sqlite"} {
		driver := driver
		t.Run(driver, func(t *testing.T) {
			t.Parallel()
			ctx := context.Background()
			cfg := Config{Driver: driver, Path: filepath.Join(t.TempDir(), "hist.db"), BusyTimeout: time.Second}

			st, err := Open(cfg, logx.Nop())
			if err != nil {
				t.Fatalf("Open: %v", err)
			}
			for i := 1; i <= 3; i++ {
				if err := st.AppendTick(ctx, rec(i, time.Duration(i)*time.Second)); err != nil {
					t.Fatalf("AppendTick: %v", err)
				}
			}

			got, err := st.RecentTicks(ctx, 2)
			if err != nil {
				t.Fatalf("RecentTicks: %v", err)
			}
			if len(got) != 2 || got[0].TimerID != 2 || got[1].TimerID != 3 {
				t.Fatalf("RecentTicks = %+v, want ids 2,3 oldest first", got)
			}
			want := rec(3, 3*time.Second)
			if !got[1].At.Equal(want.At) || got[1].SinceLastTick != want.SinceLastTick ||
				got[1].Frame != want.Frame || got[1].Name != want.Name {
				t.Fatalf("record = %+v, want %+v", got[1], want)
			}
			if empty, _ := st.RecentTicks(ctx, 0); len(empty) != 0 {
				t.Fatal("RecentTicks(0) returned records")
			}
			if err := st.Close(); err != nil {
				t.Fatalf("Close: %v", err)
			}

			// history survives a reopen
			st, err = Open(cfg, logx.Nop())
			if err != nil {
				t.Fatalf("reopen: %v", err)
			}
			defer st.Close()
			got, err = st.RecentTicks(ctx, 10)
			if err != nil {
				t.Fatalf("RecentTicks after reopen: %v", err)
			}
			if len(got) != 3 || got[0].TimerID != 1 {
				t.Fatalf("after reopen = %+v", got)
			}
		})
	}
}

func TestFileStoreCompacts(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	dir := t.TempDir()
	st, err := Open(Config{Driver: "file", Path: filepath.Join(dir, "hist"), Retain: 2}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer st.Close()

	for i := 1; i <= 5; i++ {
		if err := st.AppendTick(ctx, rec(i, time.Second)); err != nil {
			t.Fatalf("AppendTick %d: %v", i, err)
		}
	}

	// compaction at the 4th append keeps 2 lines; the 5th appends one more
	f, err := os.Open(filepath.Join(dir, "hist.ticks.jsonl"))
	if err != nil {
		t.Fatalf("open history: %v", err)
	}
	defer f.Close()
	lines := 0
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		lines++
	}
	if lines != 3 {
		t.Fatalf("history lines = %d, want 3", lines)
	}

	got, _ := st.RecentTicks(ctx, 10)
	if len(got) != 2 || got[0].TimerID != 4 || got[1].TimerID != 5 {
		t.Fatalf("RecentTicks = %+v, want ids 4,5", got)
	}
}

func TestFileStoreClosed(t *testing.T) {
	t.Parallel()
	st, err := Open(Config{Driver: "file", Path: filepath.Join(t.TempDir(), "h")}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := st.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := st.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if err := st.AppendTick(context.Background(), rec(1, 0)); err == nil {
		t.Fatal("AppendTick after Close succeeded")
	}
}
