package sim

import (
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"
)

// ErrAlreadyInitialized is returned by a second Initialize call.
var ErrAlreadyInitialized = errors.New("model already initialized")

// Aggregate holds the per-tick scalars a model reports for history.
type Aggregate map[string]float64

// Model is a simulated subsystem advanced one tick at a time.
type Model interface {
	Name() string
	// Initialize validates the catalog and seeds every series. It must run
	// exactly once, before the first Tick.
	Initialize(r Rand) error
	// Tick advances every series by one step.
	Tick(r Rand) Aggregate
}

// Registerer accepts instrument declarations.
type Registerer interface {
	Register(cs ...prometheus.Collector) error
}

// Lifecycle enforces the Initialize-once-then-Tick contract.
type Lifecycle struct {
	started bool
	ready   bool
}

// Begin marks initialization as started. It fails on the second call.
func (l *Lifecycle) Begin() error {
	if l.started {
		return ErrAlreadyInitialized
	}
	l.started = true
	return nil
}

// Ready marks initialization as complete.
func (l *Lifecycle) Ready() {
	l.ready = true
}

// MustBeReady panics when a tick arrives before a successful Initialize.
func (l *Lifecycle) MustBeReady(model string) {
	if !l.ready {
		panic(fmt.Sprintf("%s: Tick before Initialize", model))
	}
}

// Tunable is implemented by models that honour dashboard controls.
type Tunable interface {
	Tune(c Controls)
}

// Mode selects a simulation profile.
type Mode string

const (
	ModeNormal   Mode = "normal"
	ModeHighLoad Mode = "high-load"
	ModeFailure  Mode = "failure"
)

// ParseMode validates a mode name.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(s); m {
	case ModeNormal, ModeHighLoad, ModeFailure:
		return m, nil
	}
	return "", fmt.Errorf("unknown simulation mode %q", s)
}

// Controls are operator adjustments applied at the start of a tick.
type Controls struct {
	// CallRate scales call arrivals; 1 is nominal.
	CallRate float64
	// ErrorRate in percent overrides every error probability. Negative
	// keeps the per-domain defaults.
	ErrorRate float64
	Mode      Mode
}

// DefaultControls returns nominal controls.
func DefaultControls() Controls {
	return Controls{CallRate: 1, ErrorRate: -1, Mode: ModeNormal}
}

// Load is the multiplier applied to arrival and counter increments.
func (c Controls) Load() float64 {
	if c.Mode == ModeHighLoad {
		return 2
	}
	return 1
}

// ErrorProb returns the probability of an error event whose nominal
// probability is def.
func (c Controls) ErrorProb(def float64) float64 {
	p := def
	if c.ErrorRate >= 0 {
		p = c.ErrorRate / 100
	}
	if c.Mode == ModeFailure {
		p *= 3
	}
	if p > 1 {
		p = 1
	}
	return p
}

// Scale multiplies an inclusive upper bound by f, never below lo.
func Scale(hi int, f float64, lo int) int {
	v := int(float64(hi)*f + 0.5)
	if v < lo {
		return lo
	}
	return v
}

// CheckCatalog reports empty or duplicate label values in one dimension.
func CheckCatalog(dimension string, values []string) error {
	if len(values) == 0 {
		return fmt.Errorf("catalog %s is empty", dimension)
	}
	var err error
	seen := make(map[string]bool, len(values))
	for _, v := range values {
		if v == "" {
			err = multierr.Append(err, fmt.Errorf("catalog %s has an empty value", dimension))
			continue
		}
		if seen[v] {
			err = multierr.Append(err, fmt.Errorf("catalog %s has duplicate value %q", dimension, v))
		}
		seen[v] = true
	}
	return err
}
