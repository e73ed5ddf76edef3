package pprof

import (
	"context"
	"encoding/json"
	"net/http"
	"runtime"
	"testing"
	"time"

	logx "tickloop/pkg/logx"
)

func restoreRates(t *testing.T) {
	t.Helper()
	prev := runtime.SetMutexProfileFraction(-1)
	t.Cleanup(func() {
		runtime.SetMutexProfileFraction(prev)
		runtime.SetBlockProfileRate(0)
	})
}

func get(t *testing.T, url, bearer string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, url, http.NoBody)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func TestApplyEnableDisable(t *testing.T) {
	restoreRates(t)
	s := New(logx.Nop(), func() any { return map[string]int{"frames": 42} })
	t.Cleanup(func() { s.Stop(context.Background()) })

	ctx := context.Background()
	cfg := Config{Enabled: true, Addr: "127.0.0.1:0", MutexProfileFraction: 7}
	if err := s.Apply(ctx, cfg); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	addr := s.Addr()
	if addr == "" {
		t.Fatal("no listen address while enabled")
	}
	if got := runtime.SetMutexProfileFraction(-1); got != 7 {
		t.Fatalf("mutex profile fraction = %d, want 7", got)
	}

	if resp := get(t, "http://"+addr+DefaultPrefix, ""); resp.StatusCode != http.StatusOK {
		t.Fatalf("index status = %d", resp.StatusCode)
	}
	resp := get(t, "http://"+addr+"/statsz", "")
	var stats map[string]int
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil || stats["frames"] != 42 {
		t.Fatalf("statsz = %v (%v)", stats, err)
	}

	// same config keeps the listener
	if err := s.Apply(ctx, cfg); err != nil || s.Addr() != addr {
		t.Fatalf("unchanged Apply restarted: addr %s -> %s (%v)", addr, s.Addr(), err)
	}

	if err := s.Apply(ctx, Config{}); err != nil {
		t.Fatalf("disable: %v", err)
	}
	if s.Addr() != "" {
		t.Fatalf("still listening at %s after disable", s.Addr())
	}
}

func TestTokenAndPrefix(t *testing.T) {
	restoreRates(t)
	s := New(logx.Nop(), nil)
	t.Cleanup(func() { s.Stop(context.Background()) })

	err := s.Apply(context.Background(), Config{Enabled: true, Addr: "127.0.0.1:0", Prefix: "prof", Token: "s3cret"})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	base := "http://" + s.Addr()

	tests := []struct {
		url    string
		bearer string
		want   int
	}{
		{url: base + "/prof/", want: http.StatusUnauthorized},
		{url: base + "/prof/", bearer: "wrong", want: http.StatusUnauthorized},
		{url: base + "/prof/", bearer: "s3cret", want: http.StatusOK},
		{url: base + "/prof/?token=s3cret", want: http.StatusOK},
		{url: base + "/healthz?token=nope", want: http.StatusUnauthorized},
		{url: base + "/statsz", bearer: "s3cret", want: http.StatusOK},
	}
	for _, tt := range tests {
		if resp := get(t, tt.url, tt.bearer); resp.StatusCode != tt.want {
			t.Fatalf("GET %s (bearer %q) = %d, want %d", tt.url, tt.bearer, resp.StatusCode, tt.want)
		}
	}
}

func TestRefusesPublicBindWithoutToken(t *testing.T) {
	restoreRates(t)
	s := New(logx.Nop(), nil)
	t.Cleanup(func() { s.Stop(context.Background()) })
	if err := s.Apply(context.Background(), Config{Enabled: true, Addr: "0.0.0.0:0"}); err == nil {
		t.Fatal("public bind without token accepted")
	}
	if s.Addr() != "" {
		t.Fatal("refused config left a listener")
	}
}

func TestIsLoopbackAddr(t *testing.T) {
	t.Parallel()
	tests := map[string]bool{
		"127.0.0.1:6060": true,
		"localhost:1":    true,
		"[::1]:80":       true,
		":6060":          false,
		"0.0.0.0:6060":   false,
		"10.0.0.1:6060":  false,
		"nonsense":       false,
	}
	for addr, want := range tests {
		if got := IsLoopbackAddr(addr); got != want {
			t.Fatalf("IsLoopbackAddr(%q) = %v, want %v", addr, got, want)
		}
	}
}
