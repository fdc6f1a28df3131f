package main

import (
	"fmt"
	"io"

	"github.com/benbjohnson/clock"
	"github.com/spf13/cobra"

	"telemon/internal/config"
	"telemon/internal/sim"
	"telemon/internal/simulator"
	"telemon/internal/telemetry"
)

const dumpSimulator = "simulator"

func newDumpCommand(root *rootOptions) *cobra.Command {
	var (
		ticks int
		seed  int64
	)
	cmd := &cobra.Command{
		Use:   "dump <simulator|voip|diameter|ipsec>",
		Short: "Print the metrics a model exposes after a number of ticks",
		Long: `dump runs a model offline for --ticks ticks and prints its scrape in the
Prometheus text format. The same --seed always prints the same output.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if ticks < 0 {
				return fmt.Errorf("--ticks must not be negative")
			}
			if _, err := loadConfig(root, nil); err != nil {
				return err
			}
			return dump(cmd.OutOrStdout(), args[0], ticks, seed)
		},
	}
	cmd.Flags().IntVar(&ticks, "ticks", 1, "ticks to run before printing (0 prints seeded values)")
	cmd.Flags().Int64Var(&seed, "seed", 1, "random seed (0 picks one)")
	return cmd
}

func dump(w io.Writer, name string, ticks int, seed int64) error {
	reg := telemetry.NewRegistry()
	var (
		m   sim.Model
		err error
	)
	if name == dumpSimulator {
		m, err = simulator.New(reg, simulator.Options{HistorySize: config.DefaultHistorySize, Clock: clock.NewMock()})
	} else {
		m, err = newDomainModel(name, reg)
	}
	if err != nil {
		return err
	}

	loop := &sim.Loop{Model: m, Guard: reg, Rand: sim.NewRand(seed)}
	if err := loop.Init(); err != nil {
		return err
	}
	for i := 0; i < ticks; i++ {
		reg.Update(func() { m.Tick(loop.Rand) })
	}

	text, err := reg.Text()
	if err != nil {
		return err
	}
	_, err = w.Write(text)
	return err
}
