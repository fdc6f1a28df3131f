// Package mobile simulates radio access network subscribers and cells.
package mobile

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"

	"telemon/internal/sim"
)

// AggregateSubscribers is the history column fed by this model.
const AggregateSubscribers = "mobile_subscribers"

const (
	namespace = "telecom"
	subsystem = "mobile"
)

// handoverProb is the per-result chance of recording handovers in a tick.
const handoverProb = 0.5

// Catalog enumerates the label values the model simulates.
type Catalog struct {
	SubscriberTypes []string
	Generations     []string
	Cells           []string
	HandoverResults []string
}

// DefaultCatalog returns the reference label set.
func DefaultCatalog() Catalog {
	return Catalog{
		SubscriberTypes: []string{"prepaid", "postpaid", "iot", "roaming"},
		Generations:     []string{"3G", "4G", "5G"},
		Cells:           []string{"cell_1", "cell_2", "cell_3"},
		HandoverResults: []string{"success", "failure", "rejected"},
	}
}

// Validate reports every malformed dimension.
func (c Catalog) Validate() error {
	return multierr.Combine(
		sim.CheckCatalog("type", c.SubscriberTypes),
		sim.CheckCatalog("generation", c.Generations),
		sim.CheckCatalog("cell_id", c.Cells),
		sim.CheckCatalog("result", c.HandoverResults),
	)
}

var (
	subscribersWalk = sim.Walk{
		Init: sim.Range{Min: 5000, Max: 20000}, Delta: sim.Range{Min: -100, Max: 100},
		Bound: sim.Bound{Low: 0, High: 10000000}, Integer: true,
	}
	trafficWalk = sim.Walk{
		Init: sim.Range{Min: 0.5, Max: 20}, Delta: sim.Range{Min: -1, Max: 1},
		Bound: sim.Bound{Low: 0, High: 100}, Default: 5,
	}
	signalWalk = sim.Walk{
		Init: sim.Range{Min: 40, Max: 95}, Delta: sim.Range{Min: -3, Max: 3},
		Bound: sim.Bound{Low: 0, High: 100}, Default: 70,
	}
)

type generationSeries struct {
	traffic *sim.Gauge
	signal  []*sim.Gauge // parallel to Catalog.Cells
}

// Model is the mobile network domain model.
type Model struct {
	sim.Lifecycle

	catalog  Catalog
	controls sim.Controls

	subscribersVec *prometheus.GaugeVec
	trafficVec     *prometheus.GaugeVec
	signalVec      *prometheus.GaugeVec
	handoversVec   *prometheus.CounterVec

	subscribers []*sim.Gauge
	generations []*generationSeries
	handovers   []*sim.Counter
}

// New declares the mobile instruments on reg using the default catalog.
func New(reg sim.Registerer) (*Model, error) {
	return NewWithCatalog(reg, DefaultCatalog())
}

// NewWithCatalog declares the mobile instruments on reg.
func NewWithCatalog(reg sim.Registerer, catalog Catalog) (*Model, error) {
	m := &Model{
		catalog:  catalog,
		controls: sim.DefaultControls(),
		subscribersVec: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: subsystem,
			Name: "subscribers", Help: "Mobile subscribers by type",
		}, []string{"type"}),
		trafficVec: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: subsystem,
			Name: "data_traffic_gbps", Help: "Mobile data traffic in Gbps",
		}, []string{"generation"}),
		signalVec: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: subsystem,
			Name: "signal_quality", Help: "Mobile signal quality (0-100)",
		}, []string{"generation", "cell_id"}),
		handoversVec: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: subsystem,
			Name: "handovers_total", Help: "Mobile handover operations",
		}, []string{"result"}),
	}
	if err := reg.Register(m.subscribersVec, m.trafficVec, m.signalVec, m.handoversVec); err != nil {
		return nil, err
	}
	return m, nil
}

// Name implements sim.Model.
func (m *Model) Name() string { return "mobile" }

// Tune implements sim.Tunable.
func (m *Model) Tune(c sim.Controls) { m.controls = c }

// Initialize implements sim.Model.
func (m *Model) Initialize(r sim.Rand) error {
	if err := m.Begin(); err != nil {
		return err
	}
	if err := m.catalog.Validate(); err != nil {
		return err
	}

	var errs error
	for _, typ := range m.catalog.SubscriberTypes {
		g, err := sim.NewGauge(m.subscribersVec, subscribersWalk, typ)
		errs = multierr.Append(errs, err)
		m.subscribers = append(m.subscribers, g)
	}
	for _, gen := range m.catalog.Generations {
		traffic, err := sim.NewGauge(m.trafficVec, trafficWalk, gen)
		errs = multierr.Append(errs, err)
		s := &generationSeries{traffic: traffic}
		for _, cell := range m.catalog.Cells {
			g, err := sim.NewGauge(m.signalVec, signalWalk, gen, cell)
			errs = multierr.Append(errs, err)
			s.signal = append(s.signal, g)
		}
		m.generations = append(m.generations, s)
	}
	for _, result := range m.catalog.HandoverResults {
		c, err := sim.NewCounter(m.handoversVec, result)
		errs = multierr.Append(errs, err)
		m.handovers = append(m.handovers, c)
	}
	if errs != nil {
		return errs
	}

	for _, g := range m.subscribers {
		g.Seed(r)
	}
	for _, s := range m.generations {
		s.traffic.Seed(r)
		for _, g := range s.signal {
			g.Seed(r)
		}
	}
	m.Ready()
	return nil
}

// Tick implements sim.Model.
func (m *Model) Tick(r sim.Rand) sim.Aggregate {
	m.MustBeReady(m.Name())

	var total float64
	for _, g := range m.subscribers {
		total += g.Advance(r)
	}
	for _, s := range m.generations {
		s.traffic.Advance(r)
		for _, g := range s.signal {
			g.Advance(r)
		}
	}
	hi := sim.Scale(10, m.controls.Load(), 1)
	for _, c := range m.handovers {
		if sim.Chance(r, handoverProb) {
			c.Add(float64(sim.IntRange(r, 1, hi)))
		}
	}
	return sim.Aggregate{AggregateSubscribers: total}
}
