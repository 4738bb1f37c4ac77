package discovery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"gravityhq/sentinel/pkg/platform"
)

var (
	// ErrNotFound is returned when every attempt failed to produce a
	// validated endpoint. It is a "not connected" condition, not a crash.
	ErrNotFound = errors.New("agent service endpoint not found")

	// ErrSuperseded is returned when a newer Discover call invalidated this
	// one. The stale result is discarded by the caller.
	ErrSuperseded = errors.New("discovery superseded by a newer attempt")
)

// EndpointInfo is the validated result of discovery. It is owned by the
// quota source for the lifetime of one session, until a reconnect.
type EndpointInfo struct {
	// ExtensionPort is the port advertised on the process command line.
	ExtensionPort int

	// ConnectPort is the port that empirically answered the API probe.
	ConnectPort int

	// CSRFToken authenticates requests against the endpoint.
	CSRFToken string
}

// Config configures the discovery engine.
type Config struct {
	// ProcessName is the image name of the agent service process.
	// Default: "language_server"
	ProcessName string

	// MaxRetries bounds the number of discovery attempts.
	// Default: 3
	MaxRetries int

	// RetryDelay is the pause between failed attempts.
	// Default: 500ms
	RetryDelay time.Duration

	// ProbeTimeout bounds each individual port probe.
	// Default: 5s
	ProbeTimeout time.Duration
}

// Engine orchestrates the platform strategy into a validated endpoint.
type Engine struct {
	config   Config
	strategy platform.Strategy
	runner   Runner
	prober   Prober
	logger   *slog.Logger

	// generation is the single-flight discriminator. Every Discover call
	// bumps it; an attempt whose generation is no longer current discards
	// its result instead of returning it.
	mu         sync.Mutex
	generation uint64
}

// NewEngine creates a discovery engine. A nil runner or prober selects the
// production implementation.
func NewEngine(config Config, strategy platform.Strategy, runner Runner, prober Prober) *Engine {
	if config.ProcessName == "" {
		config.ProcessName = "language_server"
	}
	if config.MaxRetries == 0 {
		config.MaxRetries = 3
	}
	if config.RetryDelay == 0 {
		config.RetryDelay = 500 * time.Millisecond
	}
	if runner == nil {
		runner = NewShellRunner()
	}
	if prober == nil {
		prober = NewHTTPProber(config.ProbeTimeout)
	}

	return &Engine{
		config:   config,
		strategy: strategy,
		runner:   runner,
		prober:   prober,
		logger:   slog.Default().With("component", "discovery"),
	}
}

// Discover locates and validates the agent service endpoint.
//
// Each attempt lists processes, parses connection parameters, lists the
// pid's loopback ports, and probes them in order until one answers. The
// first fully successful attempt returns immediately. All failures inside
// an attempt are logged and retried, never fatal; after MaxRetries failed
// attempts the result is ErrNotFound.
//
// Calling Discover again while a previous call is in flight supersedes the
// previous call: the stale call returns ErrSuperseded instead of racing its
// endpoint in.
func (e *Engine) Discover(ctx context.Context) (*EndpointInfo, error) {
	e.mu.Lock()
	e.generation++
	gen := e.generation
	e.mu.Unlock()

	for attempt := 1; attempt <= e.config.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !e.current(gen) {
			return nil, ErrSuperseded
		}

		endpoint, err := e.attempt(ctx)
		if err == nil {
			if !e.current(gen) {
				return nil, ErrSuperseded
			}
			e.logger.Info("endpoint discovered",
				"extension_port", endpoint.ExtensionPort,
				"connect_port", endpoint.ConnectPort,
				"attempt", attempt,
			)
			return endpoint, nil
		}

		e.logger.Debug("discovery attempt failed",
			"attempt", attempt,
			"max_retries", e.config.MaxRetries,
			"error", err,
		)

		if attempt < e.config.MaxRetries {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(e.config.RetryDelay):
			}
		}
	}

	return nil, ErrNotFound
}

// attempt runs one full discovery pass.
func (e *Engine) attempt(ctx context.Context) (*EndpointInfo, error) {
	listCmd := e.strategy.ListProcessesCommand(e.config.ProcessName)
	output, err := e.runner.Run(ctx, listCmd)
	if err != nil {
		return nil, fmt.Errorf("process list command failed: %w", err)
	}

	params, ok := e.strategy.ParseProcessInfo(output)
	if !ok {
		return nil, errors.New("no process with extractable connection parameters")
	}

	portsCmd := e.strategy.ListListeningPortsCommand(params.PID)
	portsOutput, err := e.runner.Run(ctx, portsCmd)
	if err != nil {
		return nil, fmt.Errorf("port list command failed for pid %d: %w", params.PID, err)
	}

	candidates := e.strategy.ParseListeningPorts(portsOutput, params.PID)
	if len(candidates) == 0 {
		return nil, fmt.Errorf("pid %d has no loopback listening ports", params.PID)
	}

	connectPort, ok := e.validatePorts(ctx, candidates, params.CSRFToken)
	if !ok {
		return nil, fmt.Errorf("none of %d candidate ports answered the API probe", len(candidates))
	}

	return &EndpointInfo{
		ExtensionPort: params.ExtensionPort,
		ConnectPort:   connectPort,
		CSRFToken:     params.CSRFToken,
	}, nil
}

// validatePorts probes candidates sequentially and stops at the first
// working port. Remaining candidates are never probed.
func (e *Engine) validatePorts(ctx context.Context, candidates []int, csrfToken string) (int, bool) {
	for _, port := range candidates {
		if ctx.Err() != nil {
			return 0, false
		}
		if e.prober.Probe(ctx, port, csrfToken) {
			return port, true
		}
		e.logger.Debug("candidate port rejected", "port", port)
	}
	return 0, false
}

// current reports whether gen is still the newest discovery generation.
func (e *Engine) current(gen uint64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.generation == gen
}
