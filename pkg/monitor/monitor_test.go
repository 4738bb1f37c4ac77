package monitor

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"gravityhq/sentinel/pkg/config"
	"gravityhq/sentinel/pkg/discovery"
	"gravityhq/sentinel/pkg/guard"
	"gravityhq/sentinel/pkg/history"
	"gravityhq/sentinel/pkg/platform"
	"gravityhq/sentinel/pkg/quota"
)

func pct(v float64) *float64 { return &v }

// scriptedFetcher returns queued results, repeating the last one.
type scriptedFetcher struct {
	mu      sync.Mutex
	results []fetchResult
	fetches int
}

type fetchResult struct {
	snapshot *quota.Snapshot
	err      error
}

func (f *scriptedFetcher) Fetch(ctx context.Context) (*quota.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetches++
	r := f.results[0]
	if len(f.results) > 1 {
		f.results = f.results[1:]
	}
	return r.snapshot, r.err
}

// stubRunner feeds the discovery engine fixed process and port listings.
type stubRunner struct {
	mu    sync.Mutex
	lists int
}

func (r *stubRunner) Run(ctx context.Context, command string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if strings.Contains(command, "ps ax") {
		r.lists++
		return " 5678 /opt/agent/language_server --extension_server_port=42100 --csrf_token=6ba7b810-9dad-11d1-80b4-00c04fd430c8\n", nil
	}
	return `LISTEN 0 4096 127.0.0.1:42100 0.0.0.0:* users:(("language_server",pid=5678,fd=23))` + "\n", nil
}

func (r *stubRunner) listings() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lists
}

type okProber struct{}

func (okProber) Probe(ctx context.Context, port int, csrfToken string) bool { return true }

func snapshotWith(p float64) *quota.Snapshot {
	return &quota.Snapshot{
		Timestamp: time.Now(),
		Models: []quota.Model{
			{Label: "Gemini 3 Pro", ModelID: "gemini-3-pro", RemainingPercentage: pct(p)},
		},
	}
}

func newTestMonitor(fetcher Fetcher, runner *stubRunner) (*Monitor, *stubRunner) {
	if runner == nil {
		runner = &stubRunner{}
	}
	strategy, _ := platform.ForOS("linux")
	engine := discovery.NewEngine(discovery.Config{
		MaxRetries: 1,
		RetryDelay: time.Millisecond,
	}, strategy, runner, okProber{})

	g := guard.New(guard.Config{
		Thresholds: guard.Thresholds{Warning: 10, Block: 2},
		Enabled:    true,
	})

	m := New(Options{
		Engine:           engine,
		Guard:            g,
		History:          history.NewMemoryStore(),
		Interval:         20 * time.Millisecond,
		FailureThreshold: 2,
		NewSource: func(endpoint *discovery.EndpointInfo) Fetcher {
			return fetcher
		},
	})
	return m, runner
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("Timed out waiting for condition")
}

func TestMonitor_PollsAndDerivesState(t *testing.T) {
	fetcher := &scriptedFetcher{results: []fetchResult{{snapshot: snapshotWith(80)}}}
	m, _ := newTestMonitor(fetcher, nil)

	var mu sync.Mutex
	var states []guard.State
	m.OnSnapshot(func(state guard.State, snapshot *quota.Snapshot) {
		mu.Lock()
		states = append(states, state)
		mu.Unlock()
	})

	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer m.Stop()

	waitFor(t, 2*time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(states) >= 2
	})

	mu.Lock()
	state := states[0]
	mu.Unlock()
	if state.Level != guard.LevelNormal {
		t.Errorf("Expected normal, got %s", state.Level)
	}
	if state.LowestQuota == nil || *state.LowestQuota != 80 {
		t.Errorf("Unexpected lowest quota: %v", state.LowestQuota)
	}
	if m.GetState().Level != guard.LevelNormal {
		t.Errorf("Unexpected state from GetState: %s", m.GetState().Level)
	}
}

func TestMonitor_StartTwiceFails(t *testing.T) {
	fetcher := &scriptedFetcher{results: []fetchResult{{snapshot: snapshotWith(80)}}}
	m, _ := newTestMonitor(fetcher, nil)

	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer m.Stop()
	if err := m.Start(context.Background()); err == nil {
		t.Error("Expected the second start to fail")
	}
}

func TestMonitor_RediscoversAfterConsecutiveFailures(t *testing.T) {
	fetcher := &scriptedFetcher{results: []fetchResult{
		{snapshot: snapshotWith(80)},
		{err: errors.New("connection refused")},
		{err: errors.New("connection refused")},
		{snapshot: snapshotWith(75)},
	}}
	m, runner := newTestMonitor(fetcher, nil)

	var mu sync.Mutex
	var errs int
	m.OnError(func(err error) {
		mu.Lock()
		errs++
		mu.Unlock()
	})

	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer m.Stop()

	// After two consecutive failures the endpoint is dropped and the next
	// tick runs a second discovery.
	waitFor(t, 3*time.Second, func() bool { return runner.listings() >= 2 })

	mu.Lock()
	gotErrs := errs
	mu.Unlock()
	if gotErrs < 2 {
		t.Errorf("Expected the failures to be reported, got %d", gotErrs)
	}
}

func TestMonitor_ReconnectForcesDiscovery(t *testing.T) {
	fetcher := &scriptedFetcher{results: []fetchResult{{snapshot: snapshotWith(80)}}}
	m, runner := newTestMonitor(fetcher, nil)

	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer m.Stop()

	waitFor(t, 2*time.Second, func() bool { return runner.listings() >= 1 })
	m.Reconnect()
	waitFor(t, 2*time.Second, func() bool { return runner.listings() >= 2 })
}

func TestMonitor_SavesHistory(t *testing.T) {
	store := history.NewMemoryStore()
	fetcher := &scriptedFetcher{results: []fetchResult{{snapshot: snapshotWith(80)}}}

	strategy, _ := platform.ForOS("linux")
	engine := discovery.NewEngine(discovery.Config{MaxRetries: 1, RetryDelay: time.Millisecond},
		strategy, &stubRunner{}, okProber{})
	g := guard.New(guard.Config{Thresholds: guard.Thresholds{Warning: 10, Block: 2}, Enabled: true})

	m := New(Options{
		Engine:    engine,
		Guard:     g,
		History:   store,
		Interval:  20 * time.Millisecond,
		NewSource: func(endpoint *discovery.EndpointInfo) Fetcher { return fetcher },
	})

	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer m.Stop()

	waitFor(t, 2*time.Second, func() bool {
		points, err := store.ModelHistory(context.Background(), "gemini-3-pro", time.Time{})
		return err == nil && len(points) >= 1
	})
}

func TestMonitor_ApplyConfig(t *testing.T) {
	fetcher := &scriptedFetcher{results: []fetchResult{{snapshot: snapshotWith(15)}}}
	m, _ := newTestMonitor(fetcher, nil)

	// Feed one snapshot synchronously through the guard to have state.
	m.opts.Guard.Observe(snapshotWith(15))
	if m.GetState().Level != guard.LevelNormal {
		t.Fatalf("Expected normal at the default thresholds, got %s", m.GetState().Level)
	}

	cfg := config.DefaultConfig()
	cfg.Guard.WarningThreshold = 20
	cfg.Guard.BlockThreshold = 5
	m.ApplyConfig(cfg)

	if m.GetState().Level != guard.LevelWarning {
		t.Errorf("Expected warning after the reload, got %s", m.GetState().Level)
	}

	disabled := false
	cfg.Guard.Enabled = &disabled
	m.ApplyConfig(cfg)
	if m.GetState().GuardActive {
		t.Error("Expected the reload to disable the guard")
	}
}

func TestMonitor_StopIsIdempotent(t *testing.T) {
	fetcher := &scriptedFetcher{results: []fetchResult{{snapshot: snapshotWith(80)}}}
	m, _ := newTestMonitor(fetcher, nil)

	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	m.Stop()
	m.Stop()
}
