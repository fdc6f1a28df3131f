package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/benbjohnson/clock"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"telemon/internal/config"
	"telemon/internal/domain/diameter"
	"telemon/internal/domain/ipsec"
	"telemon/internal/domain/voip"
	"telemon/internal/server"
	"telemon/internal/sim"
	"telemon/internal/simulator"
	"telemon/internal/telemetry"
)

var healthMessages = map[string]string{
	config.VoIP:     "VoIP Exporter is healthy",
	config.Diameter: "Diameter Exporter is healthy",
	config.IPsec:    "IPsec Exporter is healthy",
}

const simulatorHealth = "TeleMonitor Simulator is healthy"

func newSimulatorCommand(root *rootOptions) *cobra.Command {
	var (
		listenPort  int
		metricsPort int
		interval    int
		historySize int
		seed        int64
	)
	cmd := &cobra.Command{
		Use:   "simulator",
		Short: "Run every domain model with the dashboard API",
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			cfg, logger, err := setup(root, func(cfg *config.Config) {
				s := &cfg.Simulator
				if flags.Changed("listen-port") {
					s.ListenPort = listenPort
				}
				if flags.Changed("metrics-port") {
					s.MetricsPort = metricsPort
				}
				if flags.Changed("interval") {
					s.SimulationInterval = interval
				}
				if flags.Changed("history-size") {
					s.HistorySize = historySize
				}
				if flags.Changed("seed") {
					s.Seed = seed
				}
			})
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()
			return runSimulator(cmd.Context(), cfg, logger)
		},
	}
	cmd.Flags().IntVar(&listenPort, "listen-port", config.DefaultSimulatorPort, "dashboard API port")
	cmd.Flags().IntVar(&metricsPort, "metrics-port", config.DefaultSimulatorMetrics, "dedicated metrics port")
	cmd.Flags().IntVar(&interval, "interval", config.DefaultSimulationInterval, "seconds between ticks")
	cmd.Flags().IntVar(&historySize, "history-size", config.DefaultHistorySize, "points kept for the dashboard")
	cmd.Flags().Int64Var(&seed, "seed", 0, "random seed (0 picks one)")
	return cmd
}

func runSimulator(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	sc := cfg.Simulator
	reg, err := newRegistry(cfg)
	if err != nil {
		return err
	}
	clk := clock.New()
	s, err := simulator.New(reg, simulator.Options{HistorySize: sc.HistorySize, Clock: clk})
	if err != nil {
		return err
	}
	loop := &sim.Loop{
		Model:    s,
		Guard:    reg,
		Rand:     sim.NewRand(sc.Seed),
		Clock:    clk,
		Interval: sc.Interval(),
		Backoff:  sc.Backoff(),
		Enabled:  sc.Enabled(),
		Logger:   logger.Named("loop"),
	}
	if err := loop.Init(); err != nil {
		return err
	}

	apiServer := server.New(server.Options{
		Addr:      fmt.Sprintf(":%d", sc.ListenPort),
		Registry:  reg,
		Health:    simulatorHealth,
		Dashboard: s,
		Columns:   simulator.Columns,
		Status: server.StatusInfo{
			PrometheusAddr: sc.PrometheusAddr,
			GrafanaAddr:    sc.GrafanaAddr,
			Exporters:      sc.Exporters,
			ExporterOrder:  config.ExporterNames,
		},
		Logger: logger.Named("api"),
	})
	servers := []*server.Server{apiServer}
	if sc.MetricsPort != sc.ListenPort {
		servers = append(servers, server.New(server.Options{
			Addr:     fmt.Sprintf(":%d", sc.MetricsPort),
			Registry: reg,
			Health:   simulatorHealth,
			Logger:   logger.Named("metrics"),
		}))
	}

	logger.Info("simulator starting",
		zap.String("instance_id", s.InstanceID()),
		zap.Int("listen_port", sc.ListenPort),
		zap.Int("metrics_port", sc.MetricsPort),
	)
	return serve(ctx, loop, servers...)
}

func newExporterCommand(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "exporter",
		Short: "Run a single-domain exporter",
	}
	for _, name := range config.ExporterNames {
		cmd.AddCommand(newExporterRunCommand(root, name))
	}
	return cmd
}

func newExporterRunCommand(root *rootOptions, name string) *cobra.Command {
	var (
		listenPort int
		interval   int
		seed       int64
		disabled   bool
	)
	cmd := &cobra.Command{
		Use:   name,
		Short: fmt.Sprintf("Run the %s exporter", name),
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			cfg, logger, err := setup(root, func(cfg *config.Config) {
				e, _ := cfg.Exporter(name)
				if flags.Changed("listen-port") {
					e.ListenPort = listenPort
				}
				if flags.Changed("interval") {
					e.SimulationInterval = interval
				}
				if flags.Changed("seed") {
					e.Seed = seed
				}
				if disabled {
					off := false
					e.SimulationEnabled = &off
				}
			})
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()
			return runExporter(cmd.Context(), cfg, name, logger.Named(name))
		},
	}
	cmd.Flags().IntVar(&listenPort, "listen-port", 0, "HTTP port for /metrics and /health")
	cmd.Flags().IntVar(&interval, "interval", config.DefaultSimulationInterval, "seconds between ticks")
	cmd.Flags().Int64Var(&seed, "seed", 0, "random seed (0 picks one)")
	cmd.Flags().BoolVar(&disabled, "no-simulation", false, "seed series once and never tick")
	return cmd
}

func runExporter(ctx context.Context, cfg config.Config, name string, logger *zap.Logger) error {
	e, err := cfg.Exporter(name)
	if err != nil {
		return err
	}
	reg, err := newRegistry(cfg)
	if err != nil {
		return err
	}
	model, err := newDomainModel(name, reg)
	if err != nil {
		return err
	}
	loop := &sim.Loop{
		Model:    model,
		Guard:    reg,
		Rand:     sim.NewRand(e.Seed),
		Clock:    clock.New(),
		Interval: e.Interval(),
		Backoff:  e.Backoff(),
		Enabled:  e.Enabled(),
		Logger:   logger,
	}
	if err := loop.Init(); err != nil {
		return err
	}
	srv := server.New(server.Options{
		Addr:     fmt.Sprintf(":%d", e.ListenPort),
		Registry: reg,
		Health:   healthMessages[name],
		Logger:   logger,
	})
	logger.Info("exporter starting",
		zap.Int("listen_port", e.ListenPort),
		zap.Bool("simulation_enabled", e.Enabled()),
	)
	return serve(ctx, loop, srv)
}

func newDomainModel(name string, reg sim.Registerer) (sim.Model, error) {
	switch name {
	case config.VoIP:
		return voip.New(reg)
	case config.Diameter:
		return diameter.New(reg)
	case config.IPsec:
		return ipsec.New(reg)
	}
	return nil, fmt.Errorf("unknown exporter %q", name)
}

func newRegistry(cfg config.Config) (*telemetry.Registry, error) {
	reg := telemetry.NewRegistry()
	if cfg.RuntimeMetrics {
		if err := reg.RegisterRuntime(); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

// serve runs the loop and every server until SIGINT/SIGTERM or the first
// failure.
func serve(ctx context.Context, loop *sim.Loop, servers ...*server.Server) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return loop.Run(ctx) })
	for _, srv := range servers {
		srv := srv
		g.Go(func() error { return srv.ListenAndServe(ctx) })
	}
	return g.Wait()
}
