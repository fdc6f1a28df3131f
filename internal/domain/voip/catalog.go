package voip

import (
	"go.uber.org/multierr"

	"telemon/internal/sim"
)

// ResultCompleted is the call result that produces duration observations.
const ResultCompleted = "completed"

// Catalog enumerates the label values the model simulates.
type Catalog struct {
	Codecs     []string
	Regions    []string
	Methods    []string
	ErrorCodes []string
	Results    []string
}

// DefaultCatalog returns the reference label set.
func DefaultCatalog() Catalog {
	return Catalog{
		Codecs:     []string{"G.711", "G.729", "Opus", "AMR-WB", "EVS"},
		Regions:    []string{"north", "south", "east", "west", "central"},
		Methods:    []string{"INVITE", "BYE", "REGISTER", "CANCEL", "OPTIONS", "UPDATE", "REFER"},
		ErrorCodes: []string{"400", "403", "404", "408", "480", "486", "487", "500", "503", "504"},
		Results:    []string{ResultCompleted, "failed", "busy", "no_answer", "rejected"},
	}
}

// Validate reports every malformed dimension.
func (c Catalog) Validate() error {
	return multierr.Combine(
		sim.CheckCatalog("codec", c.Codecs),
		sim.CheckCatalog("region", c.Regions),
		sim.CheckCatalog("method", c.Methods),
		sim.CheckCatalog("code", c.ErrorCodes),
		sim.CheckCatalog("result", c.Results),
	)
}

var (
	activeCallsWalk = sim.Walk{
		Init: sim.Range{Min: 50, Max: 500}, Delta: sim.Range{Min: -30, Max: 30},
		Bound: sim.Bound{Low: 0, High: 1000}, Integer: true,
	}
	codecCallsWalk = sim.Walk{
		Init: sim.Range{Min: 10, Max: 100}, Delta: sim.Range{Min: -10, Max: 10},
		Bound: sim.Bound{Low: 0, High: 200}, Integer: true,
	}
	regionCallsWalk = sim.Walk{
		Init: sim.Range{Min: 10, Max: 100}, Delta: sim.Range{Min: -5, Max: 5},
		Bound: sim.Bound{Low: 0, High: 200}, Default: 50, Integer: true,
	}
	mosWalk = sim.Walk{
		Init: sim.Range{Min: 3.0, Max: 4.8}, Delta: sim.Range{Min: -0.2, Max: 0.2},
		Bound: sim.Bound{Low: 1, High: 5}, Default: 4.0,
	}
	jitterWalk = sim.Walk{
		Init: sim.Range{Min: 5, Max: 60}, Delta: sim.Range{Min: -5, Max: 5},
		Bound: sim.Bound{Low: 0, High: 500}, Default: 20,
	}
	lossWalk = sim.Walk{
		Init: sim.Range{Min: 0, Max: 5}, Delta: sim.Range{Min: -0.5, Max: 0.5},
		Bound: sim.Bound{Low: 0, High: 100}, Default: 1.0,
	}
	latencyWalk = sim.Walk{
		Init: sim.Range{Min: 20, Max: 200}, Delta: sim.Range{Min: -10, Max: 10},
		Bound: sim.Bound{Low: 10, High: 1000}, Default: 100,
	}
	rFactorWalk = sim.Walk{
		Init: sim.Range{Min: 70, Max: 93}, Delta: sim.Range{Min: -2, Max: 2},
		Bound: sim.Bound{Low: 0, High: 100}, Default: 80,
	}
)

var (
	durationBuckets = []float64{10, 30, 60, 120, 300, 600, 1200, 1800, 3600, 7200}
	setupBuckets    = []float64{50, 100, 200, 500, 1000, 2000, 5000}
)
