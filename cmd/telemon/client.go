package main

import (
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"telemon/internal/api"
	"telemon/internal/config"
	"telemon/internal/metrics"
	"telemon/internal/model"
	"telemon/internal/simulator"
)

type clientOptions struct {
	server string
}

func (o *clientOptions) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&o.server, "server", "", "simulator base URL (default http://localhost:<simulator.listen_port>)")
}

func (o *clientOptions) client(root *rootOptions) (*api.Client, error) {
	if o.server != "" {
		return api.NewClient(o.server), nil
	}
	cfg, err := loadConfig(root, nil)
	if err != nil {
		return nil, err
	}
	return api.NewClient(fmt.Sprintf("http://localhost:%d", cfg.Simulator.ListenPort)), nil
}

func newStatsCommand(root *rootOptions) *cobra.Command {
	var (
		opts   clientOptions
		window time.Duration
		path   string
	)
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Summarize the simulator history over a time window",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				columns []string
				points  []model.Point
			)
			if path != "" {
				var err error
				columns, points, err = metrics.ReadCSV(path)
				if err != nil {
					return err
				}
			} else {
				c, err := opts.client(root)
				if err != nil {
					return err
				}
				hist, err := c.History(cmd.Context())
				if err != nil {
					return err
				}
				columns = simulator.Columns
				points = hist.Points(columns)
			}

			cutoff := time.Now().UTC().Add(-window)
			printSummaries(cmd.OutOrStdout(), metrics.Summarize(points, columns, cutoff))
			return nil
		},
	}
	opts.bind(cmd)
	cmd.Flags().DurationVar(&window, "window", 5*time.Minute, "time window")
	cmd.Flags().StringVar(&path, "path", "", "read history from a CSV export instead of the API")
	return cmd
}

func printSummaries(w io.Writer, summaries []metrics.Summary) {
	if len(summaries) == 0 || summaries[0].Count == 0 {
		fmt.Fprintln(w, "no samples in window")
		return
	}
	first := summaries[0]
	fmt.Fprintf(w, "samples=%d from=%s to=%s\n", first.Count, first.From.Format(time.RFC3339), first.To.Format(time.RFC3339))
	for _, s := range summaries {
		fmt.Fprintf(w, "%-20s min=%.2f avg=%.2f p95=%.2f max=%.2f delta=%+.2f\n", s.Name, s.Min, s.Avg, s.P95, s.Max, s.Delta)
	}
}

func newExportCommand(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the simulator history",
	}

	var (
		opts clientOptions
		out  string
	)
	csvCmd := &cobra.Command{
		Use:   "csv",
		Short: "Append the simulator history to a CSV file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.client(root)
			if err != nil {
				return err
			}
			hist, err := c.History(cmd.Context())
			if err != nil {
				return err
			}
			points := hist.Points(simulator.Columns)
			if out == "" || out == "-" {
				return metrics.WriteCSV(cmd.OutOrStdout(), simulator.Columns, points)
			}
			if err := metrics.AppendCSV(out, simulator.Columns, points); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d rows to %s\n", len(points), out)
			return nil
		},
	}
	opts.bind(csvCmd)
	csvCmd.Flags().StringVar(&out, "out", "", "output CSV path (stdout when empty)")

	cmd.AddCommand(csvCmd)
	return cmd
}

func newStatusCommand(root *rootOptions) *cobra.Command {
	var opts clientOptions
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the simulator and stack status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.client(root)
			if err != nil {
				return err
			}
			st, err := c.Status(cmd.Context())
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "simulator  %s uptime=%s points=%d instance=%s\n",
				st.Simulator.Status, st.Simulator.Uptime, st.Simulator.MetricsCount, st.Simulator.InstanceID)
			fmt.Fprintf(w, "prometheus %s %s\n", st.Prometheus.Status, st.Prometheus.Address)
			fmt.Fprintf(w, "grafana    %s %s\n", st.Grafana.Status, st.Grafana.Address)
			for _, name := range config.ExporterNames {
				e, ok := st.Exporters[name]
				if !ok {
					continue
				}
				fmt.Fprintf(w, "%-10s %s %s\n", name, e.Status, e.Address)
			}
			return nil
		},
	}
	opts.bind(cmd)
	return cmd
}

func newControlCommand(root *rootOptions) *cobra.Command {
	var (
		opts      clientOptions
		callRate  float64
		errorRate float64
		mode      string
	)
	cmd := &cobra.Command{
		Use:   "control",
		Short: "Adjust the running simulation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var req api.ControlRequest
			flags := cmd.Flags()
			if flags.Changed("call-rate") {
				req.VoIPCallRate = &callRate
			}
			if flags.Changed("error-rate") {
				req.ErrorRate = &errorRate
			}
			if flags.Changed("mode") {
				req.SimulationMode = &mode
			}
			c, err := opts.client(root)
			if err != nil {
				return err
			}
			resp, err := c.Control(cmd.Context(), req)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), resp.Message)
			return nil
		},
	}
	opts.bind(cmd)
	cmd.Flags().Float64Var(&callRate, "call-rate", 1, "VoIP call rate multiplier")
	cmd.Flags().Float64Var(&errorRate, "error-rate", 0, "error probability in percent")
	cmd.Flags().StringVar(&mode, "mode", "normal", "normal, high-load or failure")
	return cmd
}

func newConfigCommand(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the configuration file",
	}

	var out string
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a config file populated with the effective settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(root, nil)
			if err != nil {
				return err
			}
			path := out
			if path == "" {
				path = root.configPath
			}
			if path == "" {
				path = "telemon.yaml"
			}
			if err := config.Save(path, cfg); err != nil {
				return err
			}
			abs, _ := filepath.Abs(path)
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", abs)
			return nil
		},
	}
	initCmd.Flags().StringVar(&out, "out", "", "output path (defaults to --config or telemon.yaml)")
	cmd.AddCommand(initCmd)

	validateCmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate the layered configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := loadConfig(root, nil); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "config ok")
			return nil
		},
	}
	cmd.AddCommand(validateCmd)
	return cmd
}
