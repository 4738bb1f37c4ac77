package main

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/spf13/cobra"

	"gravityhq/sentinel/pkg/cli"
	"gravityhq/sentinel/pkg/config"
	"gravityhq/sentinel/pkg/discovery"
	"gravityhq/sentinel/pkg/guard"
	"gravityhq/sentinel/pkg/history"
	"gravityhq/sentinel/pkg/journal"
	"gravityhq/sentinel/pkg/monitor"
	"gravityhq/sentinel/pkg/notify"
	"gravityhq/sentinel/pkg/platform"
	"gravityhq/sentinel/pkg/quota"
	"gravityhq/sentinel/pkg/telemetry/logging"
	"gravityhq/sentinel/pkg/telemetry/metrics"
)

var runFlags struct {
	logLevel string
	interval time.Duration
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the quota watcher daemon",
	Long: `Run the quota watcher daemon.

The daemon discovers the agent service endpoint, polls its status RPC on a
fixed interval, persists the quota trend, and surfaces graduated warnings
on the console as quotas approach exhaustion.

Examples:
  # Run with default config
  sentinel run

  # Run with a custom config file
  sentinel run --config /etc/sentinel/sentinel.yaml

  # Poll every 30 seconds regardless of config
  sentinel run --interval 30s`,
	RunE: runDaemon,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVar(&runFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	runCmd.Flags().DurationVar(&runFlags.interval, "interval", 0, "override polling interval")
}

func runDaemon(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	if runFlags.logLevel != "" {
		cfg.Telemetry.Logging.Level = runFlags.logLevel
	}
	if verbose {
		cfg.Telemetry.Logging.Level = "debug"
	}
	if runFlags.interval != 0 {
		cfg.Polling.Interval = runFlags.interval
	}

	logger, err := logging.Setup(logging.Config{
		Level:        cfg.Telemetry.Logging.Level,
		Format:       cfg.Telemetry.Logging.Format,
		RedactTokens: cfg.Telemetry.Logging.TokensRedacted(),
	})
	if err != nil {
		return err
	}

	strategy, err := platform.ForOS(runtime.GOOS)
	if err != nil {
		return err
	}

	engine := discovery.NewEngine(discovery.Config{
		ProcessName:  cfg.Discovery.ProcessName,
		MaxRetries:   cfg.Discovery.MaxRetries,
		RetryDelay:   cfg.Discovery.RetryDelay,
		ProbeTimeout: cfg.Discovery.ProbeTimeout,
	}, strategy, nil, nil)

	// Alert decision sinks: the journal and, when metrics are on, the
	// alerts_total counter.
	var sinks []guard.EventSink
	if cfg.Journal.JournalEnabled() {
		storage, err := journal.NewSQLiteStorage(cfg.Journal.Path)
		if err != nil {
			return fmt.Errorf("failed to open journal: %w", err)
		}
		recorder := journal.NewRecorder(storage, 0)
		defer recorder.Close()
		sinks = append(sinks, recorder)
	}

	// Metrics endpoint.
	var collector *metrics.Collector
	if cfg.Telemetry.Metrics.Enabled {
		collector = metrics.NewCollector(cfg.Telemetry.Metrics.Namespace)
		sinks = append(sinks, collector.AlertSink())
		mux := http.NewServeMux()
		mux.Handle("/metrics", collector.Handler())
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			fmt.Fprintln(w, `{"status":"ok"}`)
		})
		server := &http.Server{Addr: cfg.Telemetry.Metrics.ListenAddress, Handler: mux}
		go func() {
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("metrics listener failed", "error", err)
			}
		}()
		defer server.Close()
		logger.Info("metrics listening", "address", cfg.Telemetry.Metrics.ListenAddress)
	}

	g := guard.New(guard.Config{
		Thresholds: guard.Thresholds{
			Warning: cfg.Guard.WarningThreshold,
			Block:   cfg.Guard.BlockThreshold,
		},
		Enabled:  cfg.Guard.GuardEnabled(),
		Prompter: notify.NewConsolePrompter(nil, nil),
		Notifier: notify.NewConsoleNotifier(),
		Sink:     guard.MultiSink(sinks...),
	})

	// Snapshot history.
	var store history.Store
	if cfg.History.HistoryEnabled() {
		sqlStore, err := history.NewSQLiteStore(cfg.History.Path)
		if err != nil {
			return fmt.Errorf("failed to open history: %w", err)
		}
		defer sqlStore.Close()
		store = sqlStore
	}

	sound := notify.NewSoundGate(cfg.Guard.SoundEnabled, 0)

	m := monitor.New(monitor.Options{
		Engine:           engine,
		Guard:            g,
		History:          store,
		Metrics:          collector,
		Sound:            sound,
		Interval:         cfg.Polling.Interval,
		FailureThreshold: cfg.Polling.FailureThreshold,
	})

	m.OnSnapshot(func(state guard.State, snapshot *quota.Snapshot) {
		attrs := []any{"models", len(snapshot.Models), "level", state.Level.String()}
		if state.LowestQuota != nil {
			attrs = append(attrs, "lowest", fmt.Sprintf("%.1f%%", *state.LowestQuota), "lowest_model", state.LowestQuotaModel)
		}
		logger.Info("quota snapshot", attrs...)
	})
	m.OnError(func(err error) {
		logger.Warn("not connected", "error", err)
	})

	housekeeping := monitor.NewHousekeeping(g, store, cfg.History.PruneSchedule, cfg.History.RetentionDays)
	if err := housekeeping.Start(); err != nil {
		return err
	}
	defer housekeeping.Stop()

	ctx := cli.SetupSignalHandler()

	// Hot reload of guard thresholds and switches.
	watcher := config.NewWatcher(cfgFile, 0)
	go func() {
		if err := watcher.Watch(ctx, m.ApplyConfig); err != nil {
			logger.Warn("config watcher failed", "error", err)
		}
	}()

	if err := m.Start(ctx); err != nil {
		return err
	}

	logger.Info("sentinel running",
		"process_name", cfg.Discovery.ProcessName,
		"interval", cfg.Polling.Interval,
		"warning_threshold", cfg.Guard.WarningThreshold,
		"block_threshold", cfg.Guard.BlockThreshold,
	)

	<-ctx.Done()
	m.Stop()
	logger.Info("sentinel stopped")
	return nil
}
