package main

import (
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/spf13/cobra"

	"gravityhq/sentinel/pkg/cli"
	"gravityhq/sentinel/pkg/config"
	"gravityhq/sentinel/pkg/discovery"
	"gravityhq/sentinel/pkg/guard"
	"gravityhq/sentinel/pkg/history"
	"gravityhq/sentinel/pkg/platform"
	"gravityhq/sentinel/pkg/quota"
)

var statusFlags struct {
	showHistory bool
	historyFor  time.Duration
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the current quota snapshot",
	Long: `Show the current quota snapshot.

Discovers the agent service, fetches its status once, and prints a table of
per-model quotas together with the overall guard level. With --history the
recent trend of each model is rendered as a sparkline from the local
history database.`,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().BoolVar(&statusFlags.showHistory, "history", false, "show recent quota trend per model")
	statusCmd.Flags().DurationVar(&statusFlags.historyFor, "history-window", 6*time.Hour, "how far back the trend reaches")
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
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

	endpoint, err := engine.Discover(cmd.Context())
	if err != nil {
		return fmt.Errorf("agent service not found: %w", err)
	}

	source := quota.NewSource(quota.SourceConfig{
		Port:      endpoint.ConnectPort,
		CSRFToken: endpoint.CSRFToken,
	})
	snapshot, err := source.Fetch(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to fetch status: %w", err)
	}

	thresholds := guard.Thresholds{
		Warning: cfg.Guard.WarningThreshold,
		Block:   cfg.Guard.BlockThreshold,
	}
	g := guard.New(guard.Config{Thresholds: thresholds, Enabled: cfg.Guard.GuardEnabled()})
	g.Observe(snapshot)

	if err := cli.WriteSnapshotTable(os.Stdout, g.State(), snapshot, thresholds, cfg.Guard.PinnedModels); err != nil {
		return err
	}

	if statusFlags.showHistory {
		return printHistory(cmd, cfg, snapshot)
	}
	return nil
}

func printHistory(cmd *cobra.Command, cfg *config.Config, snapshot *quota.Snapshot) error {
	if !cfg.History.HistoryEnabled() {
		fmt.Fprintln(os.Stdout, "history is disabled in configuration")
		return nil
	}
	store, err := history.NewSQLiteStore(cfg.History.Path)
	if err != nil {
		return fmt.Errorf("failed to open history: %w", err)
	}
	defer store.Close()

	since := time.Now().Add(-statusFlags.historyFor)
	fmt.Fprintf(os.Stdout, "\nTrend (last %s):\n", statusFlags.historyFor)
	for _, model := range snapshot.Models {
		points, err := store.ModelHistory(cmd.Context(), model.ModelID, since)
		if err != nil {
			return err
		}
		values := make([]float64, 0, len(points))
		for _, p := range points {
			if p.Percentage != nil {
				values = append(values, *p.Percentage)
			}
		}
		fmt.Fprintf(os.Stdout, "  %-28s %s\n", model.Label, cli.Sparkline(values))
	}
	return nil
}
