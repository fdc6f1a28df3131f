package main

import (
	"context"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"telemon/internal/config"
	"telemon/internal/logging"
)

type rootOptions struct {
	configPath string
	logLevel   string
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "telemon",
		Short: "Simulated telecom telemetry for Prometheus and Grafana",
		Long: `telemon simulates VoIP, Diameter, IPsec and mobile network telemetry and
exposes it for Prometheus scraping.

Quick start:
  telemon simulator                 # Dashboard API on :5000, metrics on :8000
  telemon exporter voip             # VoIP exporter on :9010
  telemon stats --window 5m         # Summarize the simulator history
  telemon export csv --out hist.csv # Save the simulator history
  telemon dump ipsec --ticks 10     # Print an offline scrape`,
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "path to YAML config")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "DEBUG, INFO, WARNING, ERROR or CRITICAL")

	cmd.AddCommand(newSimulatorCommand(opts))
	cmd.AddCommand(newExporterCommand(opts))
	cmd.AddCommand(newStatsCommand(opts))
	cmd.AddCommand(newExportCommand(opts))
	cmd.AddCommand(newStatusCommand(opts))
	cmd.AddCommand(newControlCommand(opts))
	cmd.AddCommand(newConfigCommand(opts))
	cmd.AddCommand(newDumpCommand(opts))
	return cmd
}

func main() {
	if err := newRootCommand().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

// loadConfig layers the YAML file, the environment and flag overrides, then
// validates the result. Environment and validation problems are reported
// together.
func loadConfig(opts *rootOptions, override func(*config.Config)) (config.Config, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return config.Config{}, err
	}
	envErr := config.ApplyEnv(&cfg, os.LookupEnv)
	if opts.logLevel != "" {
		cfg.LogLevel = opts.logLevel
	}
	if override != nil {
		override(&cfg)
	}
	if err := multierr.Append(envErr, config.Validate(cfg)); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func setup(opts *rootOptions, override func(*config.Config)) (config.Config, *zap.Logger, error) {
	cfg, err := loadConfig(opts, override)
	if err != nil {
		return config.Config{}, nil, err
	}
	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, logger, nil
}
