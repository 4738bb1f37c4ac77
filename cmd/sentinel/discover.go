package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"gravityhq/sentinel/pkg/config"
	"gravityhq/sentinel/pkg/discovery"
	"gravityhq/sentinel/pkg/platform"
	"gravityhq/sentinel/pkg/telemetry/logging"
)

var discoverFlags struct {
	showToken bool
}

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Locate the agent service endpoint",
	Long: `Locate the agent service endpoint.

Runs one discovery pass and prints the endpoint it found. The CSRF token is
redacted unless --show-token is given.`,
	RunE: runDiscover,
}

func init() {
	rootCmd.AddCommand(discoverCmd)

	discoverCmd.Flags().BoolVar(&discoverFlags.showToken, "show-token", false, "print the full CSRF token")
}

func runDiscover(cmd *cobra.Command, args []string) error {
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

	token := endpoint.CSRFToken
	if !discoverFlags.showToken {
		token = logging.RedactTokens(token)
	}

	fmt.Fprintf(os.Stdout, "Extension port: %d\n", endpoint.ExtensionPort)
	fmt.Fprintf(os.Stdout, "Connect port:   %d\n", endpoint.ConnectPort)
	fmt.Fprintf(os.Stdout, "CSRF token:     %s\n", token)
	return nil
}
