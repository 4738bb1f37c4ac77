package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"gravityhq/sentinel/pkg/config"
	"gravityhq/sentinel/pkg/discovery"
	"gravityhq/sentinel/pkg/guard"
	"gravityhq/sentinel/pkg/history"
	"gravityhq/sentinel/pkg/notify"
	"gravityhq/sentinel/pkg/quota"
	"gravityhq/sentinel/pkg/telemetry/metrics"
)

// Fetcher issues one status poll. Satisfied by *quota.Source; tests swap in
// scripted fetchers.
type Fetcher interface {
	Fetch(ctx context.Context) (*quota.Snapshot, error)
}

// SourceFactory builds a Fetcher for a discovered endpoint.
type SourceFactory func(endpoint *discovery.EndpointInfo) Fetcher

// SnapshotCallback receives every successful poll's derived state and
// snapshot. Callbacks run on the poll goroutine and must return promptly.
type SnapshotCallback func(state guard.State, snapshot *quota.Snapshot)

// ErrorCallback receives discovery and poll failures.
type ErrorCallback func(err error)

// Options configures a Monitor.
type Options struct {
	// Engine locates the agent service endpoint. Required.
	Engine *discovery.Engine

	// Guard is the decision engine fed by the poll loop. Required.
	Guard *guard.Guard

	// History persists snapshots. Optional.
	History history.Store

	// Metrics publishes instrumentation. Optional.
	Metrics *metrics.Collector

	// Sound gates the audible alert hook. Optional.
	Sound *notify.SoundGate

	// NewSource builds the quota source after discovery. A nil factory
	// selects the production HTTP source.
	NewSource SourceFactory

	// Interval is the polling interval.
	Interval time.Duration

	// FailureThreshold is how many consecutive poll failures trigger
	// re-discovery.
	FailureThreshold int
}

// Monitor is the polling pipeline. Guard state is only ever mutated from
// its poll goroutine; callers interact through the thread-safe guard and
// the registration methods.
type Monitor struct {
	opts   Options
	logger *slog.Logger

	mu          sync.Mutex
	running     bool
	cancel      context.CancelFunc
	doneCh      chan struct{}
	endpoint    *discovery.EndpointInfo
	fetcher     Fetcher
	onSnapshot  []SnapshotCallback
	onError     []ErrorCallback
	reconnectCh chan struct{}

	// consecutiveFailures is only touched on the poll goroutine.
	consecutiveFailures int
}

// New creates a monitor.
func New(opts Options) *Monitor {
	if opts.Interval == 0 {
		opts.Interval = config.DefaultPollInterval
	}
	if opts.FailureThreshold == 0 {
		opts.FailureThreshold = config.DefaultFailureThreshold
	}
	if opts.NewSource == nil {
		opts.NewSource = func(endpoint *discovery.EndpointInfo) Fetcher {
			return quota.NewSource(quota.SourceConfig{
				Port:      endpoint.ConnectPort,
				CSRFToken: endpoint.CSRFToken,
			})
		}
	}

	return &Monitor{
		opts:        opts,
		logger:      slog.Default().With("component", "monitor"),
		reconnectCh: make(chan struct{}, 1),
	}
}

// OnSnapshot registers a callback for successful polls. Must be called
// before Start.
func (m *Monitor) OnSnapshot(cb SnapshotCallback) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onSnapshot = append(m.onSnapshot, cb)
}

// OnError registers a callback for discovery and poll failures. Must be
// called before Start.
func (m *Monitor) OnError(cb ErrorCallback) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onError = append(m.onError, cb)
}

// Start launches the polling loop. It returns an error if the monitor is
// already running; discovery failures are reported through OnError and
// retried on the polling cadence, not returned here.
func (m *Monitor) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return fmt.Errorf("monitor already running")
	}
	runCtx, cancel := context.WithCancel(ctx)
	m.running = true
	m.cancel = cancel
	m.doneCh = make(chan struct{})

	go m.run(runCtx)
	return nil
}

// Stop halts the polling loop and waits for it to exit. A stopped poll is
// simply not rescheduled; in-flight requests are cancelled via context.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel, done := m.cancel, m.doneCh
	m.mu.Unlock()

	cancel()
	<-done

	m.mu.Lock()
	m.running = false
	m.mu.Unlock()
}

// Reconnect requests a fresh discovery before the next poll. Any discovery
// already in flight is superseded by the engine's single-flight guard.
func (m *Monitor) Reconnect() {
	select {
	case m.reconnectCh <- struct{}{}:
	default:
	}
}

// CheckAndWarn delegates to the guard's decision gate.
func (m *Monitor) CheckAndWarn(ctx context.Context) bool {
	return m.opts.Guard.CheckAndWarn(ctx)
}

// ToggleGuard flips guarding on or off and returns the new value.
func (m *Monitor) ToggleGuard() bool {
	return m.opts.Guard.Toggle()
}

// GetState returns the guard's current derived state.
func (m *Monitor) GetState() guard.State {
	return m.opts.Guard.State()
}

// ApplyConfig applies a hot-reloaded configuration to the running
// pipeline. Only guard thresholds and switches take effect without a
// restart; polling cadence and storage paths need one.
func (m *Monitor) ApplyConfig(cfg *config.Config) {
	m.opts.Guard.SetThresholds(guard.Thresholds{
		Warning: cfg.Guard.WarningThreshold,
		Block:   cfg.Guard.BlockThreshold,
	})
	m.opts.Guard.SetEnabled(cfg.Guard.GuardEnabled())
	if m.opts.Sound != nil {
		m.opts.Sound.SetEnabled(cfg.Guard.SoundEnabled)
	}
}

// run is the poll loop. It is the only goroutine that calls Observe, which
// keeps guard mutation single-threaded as required.
func (m *Monitor) run(ctx context.Context) {
	defer close(m.doneCh)

	m.ensureEndpoint(ctx)
	m.poll(ctx)

	ticker := time.NewTicker(m.opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("monitor stopped")
			return
		case <-m.reconnectCh:
			m.dropEndpoint()
			m.ensureEndpoint(ctx)
			m.poll(ctx)
		case <-ticker.C:
			m.ensureEndpoint(ctx)
			m.poll(ctx)
		}
	}
}

// ensureEndpoint discovers the endpoint if none is active.
func (m *Monitor) ensureEndpoint(ctx context.Context) {
	m.mu.Lock()
	have := m.endpoint != nil
	m.mu.Unlock()
	if have {
		return
	}

	start := time.Now()
	endpoint, err := m.opts.Engine.Discover(ctx)
	if m.opts.Metrics != nil {
		m.opts.Metrics.RecordDiscovery(err == nil, time.Since(start).Seconds())
	}
	if err != nil {
		m.reportError(fmt.Errorf("discovery failed: %w", err))
		return
	}

	m.mu.Lock()
	m.endpoint = endpoint
	m.fetcher = m.opts.NewSource(endpoint)
	m.mu.Unlock()
}

// dropEndpoint forgets the current endpoint so the next poll rediscovers.
func (m *Monitor) dropEndpoint() {
	m.mu.Lock()
	m.endpoint = nil
	m.fetcher = nil
	m.mu.Unlock()
}

func (m *Monitor) poll(ctx context.Context) {
	m.mu.Lock()
	fetcher := m.fetcher
	m.mu.Unlock()
	if fetcher == nil {
		return
	}

	start := time.Now()
	snapshot, err := fetcher.Fetch(ctx)
	if m.opts.Metrics != nil {
		m.opts.Metrics.RecordPoll(err == nil, time.Since(start).Seconds())
	}

	if err != nil {
		m.consecutiveFailures++
		m.reportError(fmt.Errorf("status poll failed: %w", err))
		if m.consecutiveFailures >= m.opts.FailureThreshold {
			m.logger.Warn("poll failure threshold reached, rediscovering endpoint",
				"consecutive_failures", m.consecutiveFailures,
			)
			m.consecutiveFailures = 0
			m.dropEndpoint()
		}
		return
	}
	m.consecutiveFailures = 0

	resets := m.opts.Guard.Observe(snapshot)
	if m.opts.Metrics != nil {
		for range resets {
			m.opts.Metrics.RecordReset()
		}
		for _, model := range snapshot.Models {
			if model.RemainingPercentage != nil {
				m.opts.Metrics.SetModelPercentage(model.ModelID, *model.RemainingPercentage)
			}
		}
		if snapshot.PromptCredits != nil {
			m.opts.Metrics.SetModelPercentage(quota.PromptCreditsModelID, snapshot.PromptCredits.RemainingPercentage)
		}
	}

	state := m.opts.Guard.State()
	if m.opts.Metrics != nil {
		m.opts.Metrics.SetGuardLevel(int(state.Level))
	}

	if m.opts.History != nil {
		if err := m.opts.History.SaveSnapshot(ctx, snapshot); err != nil {
			m.logger.Warn("failed to persist snapshot", "error", err)
		}
	}

	if m.opts.Sound != nil && state.Level >= guard.LevelCritical && m.opts.Sound.Allow() {
		m.logger.Info("audible alert", "level", state.Level.String())
	}

	m.mu.Lock()
	callbacks := append([]SnapshotCallback(nil), m.onSnapshot...)
	m.mu.Unlock()
	for _, cb := range callbacks {
		cb(state, snapshot)
	}
}

func (m *Monitor) reportError(err error) {
	m.logger.Warn("monitor error", "error", err)
	m.mu.Lock()
	callbacks := append([]ErrorCallback(nil), m.onError...)
	m.mu.Unlock()
	for _, cb := range callbacks {
		cb(err)
	}
}
