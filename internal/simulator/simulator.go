// Package simulator runs every domain model as one composite model and
// records the per-tick aggregates for the dashboard.
package simulator

import (
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"go.uber.org/multierr"

	"telemon/internal/domain/diameter"
	"telemon/internal/domain/ipsec"
	"telemon/internal/domain/mobile"
	"telemon/internal/domain/voip"
	"telemon/internal/history"
	"telemon/internal/model"
	"telemon/internal/sim"
)

// Columns are the aggregates exposed by the dashboard history, in display
// order.
var Columns = []string{
	diameter.AggregateRequests,
	voip.AggregateCalls,
	ipsec.AggregateTunnels,
	mobile.AggregateSubscribers,
}

// Options configures a Simulator.
type Options struct {
	HistorySize int
	Clock       clock.Clock
}

// Simulator is a sim.Model that drives the diameter, voip, ipsec and mobile
// models in that order and appends one history point per tick.
type Simulator struct {
	sim.Lifecycle

	models  []sim.Model
	history *history.Buffer[model.Point]
	clock   clock.Clock
	started time.Time
	id      string

	mu       sync.Mutex
	controls sim.Controls
}

// New declares every domain instrument on reg.
func New(reg sim.Registerer, opts Options) (*Simulator, error) {
	d, err := diameter.New(reg)
	if err != nil {
		return nil, fmt.Errorf("diameter: %w", err)
	}
	v, err := voip.New(reg)
	if err != nil {
		return nil, fmt.Errorf("voip: %w", err)
	}
	i, err := ipsec.New(reg)
	if err != nil {
		return nil, fmt.Errorf("ipsec: %w", err)
	}
	m, err := mobile.New(reg)
	if err != nil {
		return nil, fmt.Errorf("mobile: %w", err)
	}
	return NewWithModels(opts, d, v, i, m), nil
}

// NewWithModels composes already constructed models.
func NewWithModels(opts Options, models ...sim.Model) *Simulator {
	clk := opts.Clock
	if clk == nil {
		clk = clock.New()
	}
	size := opts.HistorySize
	if size <= 0 {
		size = history.DefaultCapacity
	}
	return &Simulator{
		models:   models,
		history:  history.NewBuffer[model.Point](size),
		clock:    clk,
		started:  clk.Now(),
		id:       uuid.NewString(),
		controls: sim.DefaultControls(),
	}
}

// Name implements sim.Model.
func (s *Simulator) Name() string { return "simulator" }

// Initialize implements sim.Model. Every sub-model is initialized and all
// failures are reported together.
func (s *Simulator) Initialize(r sim.Rand) error {
	if err := s.Begin(); err != nil {
		return err
	}
	var errs error
	for _, m := range s.models {
		if err := m.Initialize(r); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", m.Name(), err))
		}
	}
	if errs != nil {
		return errs
	}
	s.Ready()
	return nil
}

// Tick implements sim.Model.
func (s *Simulator) Tick(r sim.Rand) sim.Aggregate {
	s.MustBeReady(s.Name())

	controls := s.Controls()
	merged := make(sim.Aggregate)
	for _, m := range s.models {
		if t, ok := m.(sim.Tunable); ok {
			t.Tune(controls)
		}
		for k, v := range m.Tick(r) {
			merged[k] = v
		}
	}
	s.history.Append(model.NewPoint(s.clock.Now(), merged))
	return merged
}

// UpdateControls replaces the controls used from the next tick on with the
// result of fn. fn runs under the controls lock; on error nothing changes.
func (s *Simulator) UpdateControls(fn func(sim.Controls) (sim.Controls, error)) (sim.Controls, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, err := fn(s.controls)
	if err != nil {
		return s.controls, err
	}
	s.controls = c
	return c, nil
}

// Controls returns the current controls.
func (s *Simulator) Controls() sim.Controls {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.controls
}

// History returns the recorded points, oldest first.
func (s *Simulator) History() []model.Point {
	return s.history.Snapshot()
}

// MetricsCount returns the number of recorded points.
func (s *Simulator) MetricsCount() int {
	return s.history.Len()
}

// Uptime returns the time since construction.
func (s *Simulator) Uptime() time.Duration {
	return s.clock.Since(s.started)
}

// InstanceID identifies this process in status responses.
func (s *Simulator) InstanceID() string {
	return s.id
}

// FormatUptime renders d as HH:MM:SS. Hours are not wrapped at 24.
func FormatUptime(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	sec := int64(d / time.Second)
	return fmt.Sprintf("%02d:%02d:%02d", sec/3600, (sec/60)%60, sec%60)
}
