// Package voip simulates SIP/RTP call activity per codec and region.
package voip

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"

	"telemon/internal/sim"
)

// AggregateCalls is the history column fed by this model.
const AggregateCalls = "voip_calls"

const (
	namespace = "telecom"
	subsystem = "voip"
)

type instruments struct {
	activeCalls   *prometheus.GaugeVec
	callsByCodec  *prometheus.GaugeVec
	callsByRegion *prometheus.GaugeVec
	mos           *prometheus.GaugeVec
	jitter        *prometheus.GaugeVec
	packetLoss    *prometheus.GaugeVec
	latency       *prometheus.GaugeVec
	rFactor       *prometheus.GaugeVec
	calls         *prometheus.CounterVec
	callDuration  *prometheus.HistogramVec
	callSetup     *prometheus.HistogramVec
	sipTx         *prometheus.CounterVec
	sipErrors     *prometheus.CounterVec
}

type codecSeries struct {
	name     string
	active   *sim.Gauge
	mos      *sim.Gauge
	jitter   *sim.Gauge
	loss     *sim.Gauge
	latency  *sim.Gauge
	rFactor  *sim.Gauge
	results  []*sim.Counter // parallel to Catalog.Results
	duration *sim.Histogram
	setup    *sim.Histogram
}

type methodSeries struct {
	name         string
	transactions *sim.Counter
	errors       map[string]*sim.Counter // by response code
}

// Model is the VoIP domain model.
type Model struct {
	sim.Lifecycle

	catalog  Catalog
	vecs     instruments
	controls sim.Controls

	active  *sim.Gauge
	codecs  []*codecSeries
	regions []*sim.Gauge
	methods []*methodSeries
}

// New declares the VoIP instruments on reg using the default catalog.
func New(reg sim.Registerer) (*Model, error) {
	return NewWithCatalog(reg, DefaultCatalog())
}

// NewWithCatalog declares the VoIP instruments on reg.
func NewWithCatalog(reg sim.Registerer, catalog Catalog) (*Model, error) {
	gauge := func(name, help string, labels ...string) *prometheus.GaugeVec {
		return prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: subsystem, Name: name, Help: help,
		}, labels)
	}
	v := instruments{
		activeCalls:   gauge("active_calls", "Currently active VoIP calls"),
		callsByCodec:  gauge("active_calls_by_codec", "Currently active VoIP calls by codec", "codec"),
		callsByRegion: gauge("active_calls_by_region", "Currently active VoIP calls by region", "region"),
		mos:           gauge("mos", "Mean Opinion Score (MOS) for VoIP quality (1-5)", "codec"),
		jitter:        gauge("jitter_ms", "VoIP jitter in milliseconds", "codec"),
		packetLoss:    gauge("packet_loss_percent", "VoIP packet loss percentage", "codec"),
		latency:       gauge("latency_ms", "VoIP one-way latency in milliseconds", "codec"),
		rFactor:       gauge("r_factor", "R-Factor quality metric (0-100)", "codec"),
		calls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: subsystem,
			Name: "calls_total", Help: "Total VoIP calls",
		}, []string{"codec", "result"}),
		callDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: subsystem,
			Name: "call_duration_seconds", Help: "VoIP call duration in seconds",
			Buckets: durationBuckets,
		}, []string{"codec"}),
		callSetup: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: subsystem,
			Name: "call_setup_time_ms", Help: "VoIP call setup time in ms",
			Buckets: setupBuckets,
		}, []string{"codec"}),
		sipTx: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: subsystem,
			Name: "sip_transactions_total", Help: "Total SIP transactions",
		}, []string{"method"}),
		sipErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: subsystem,
			Name: "sip_errors_total", Help: "SIP transaction errors",
		}, []string{"code", "method"}),
	}
	err := reg.Register(
		v.activeCalls, v.callsByCodec, v.callsByRegion,
		v.mos, v.jitter, v.packetLoss, v.latency, v.rFactor,
		v.calls, v.callDuration, v.callSetup, v.sipTx, v.sipErrors,
	)
	if err != nil {
		return nil, err
	}
	return &Model{catalog: catalog, vecs: v, controls: sim.DefaultControls()}, nil
}

// Name implements sim.Model.
func (m *Model) Name() string { return "voip" }

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
	if err := m.build(); err != nil {
		return err
	}

	m.active.Seed(r)
	for _, c := range m.codecs {
		c.active.Seed(r)
		c.mos.Seed(r)
		c.jitter.Seed(r)
		c.loss.Seed(r)
		c.latency.Seed(r)
		c.rFactor.Seed(r)
	}
	for _, g := range m.regions {
		g.Seed(r)
	}
	m.Ready()
	return nil
}

func (m *Model) build() error {
	var errs error
	gauge := func(vec *prometheus.GaugeVec, w sim.Walk, labels ...string) *sim.Gauge {
		g, err := sim.NewGauge(vec, w, labels...)
		errs = multierr.Append(errs, err)
		return g
	}
	counter := func(vec *prometheus.CounterVec, labels ...string) *sim.Counter {
		c, err := sim.NewCounter(vec, labels...)
		errs = multierr.Append(errs, err)
		return c
	}
	histogram := func(vec *prometheus.HistogramVec, labels ...string) *sim.Histogram {
		h, err := sim.NewHistogram(vec, labels...)
		errs = multierr.Append(errs, err)
		return h
	}

	m.active = gauge(m.vecs.activeCalls, activeCallsWalk)
	for _, codec := range m.catalog.Codecs {
		c := &codecSeries{
			name:     codec,
			active:   gauge(m.vecs.callsByCodec, codecCallsWalk, codec),
			mos:      gauge(m.vecs.mos, mosWalk, codec),
			jitter:   gauge(m.vecs.jitter, jitterWalk, codec),
			loss:     gauge(m.vecs.packetLoss, lossWalk, codec),
			latency:  gauge(m.vecs.latency, latencyWalk, codec),
			rFactor:  gauge(m.vecs.rFactor, rFactorWalk, codec),
			duration: histogram(m.vecs.callDuration, codec),
			setup:    histogram(m.vecs.callSetup, codec),
		}
		for _, result := range m.catalog.Results {
			c.results = append(c.results, counter(m.vecs.calls, codec, result))
		}
		m.codecs = append(m.codecs, c)
	}
	for _, region := range m.catalog.Regions {
		m.regions = append(m.regions, gauge(m.vecs.callsByRegion, regionCallsWalk, region))
	}
	for _, method := range m.catalog.Methods {
		s := &methodSeries{
			name:         method,
			transactions: counter(m.vecs.sipTx, method),
			errors:       make(map[string]*sim.Counter, len(m.catalog.ErrorCodes)),
		}
		for _, code := range m.catalog.ErrorCodes {
			s.errors[code] = counter(m.vecs.sipErrors, code, method)
		}
		m.methods = append(m.methods, s)
	}
	return errs
}

// Tick implements sim.Model.
func (m *Model) Tick(r sim.Rand) sim.Aggregate {
	m.MustBeReady(m.Name())

	load := m.controls.Load()
	maxCalls := sim.Scale(3, load*m.controls.CallRate, 0)

	active := m.active.Advance(r)
	for _, c := range m.codecs {
		c.active.Advance(r)
		c.mos.Advance(r)
		c.jitter.Advance(r)
		c.loss.Advance(r)
		c.latency.Advance(r)
		c.rFactor.Advance(r)
		m.recordCalls(r, c, maxCalls)
		c.setup.Observe(sim.Uniform(r, 50, 2000))
	}
	for _, g := range m.regions {
		g.Advance(r)
	}
	for _, s := range m.methods {
		m.recordSIP(r, s, load)
	}
	return sim.Aggregate{AggregateCalls: active}
}

// recordCalls adds finished calls per result; every completed call also
// lands one duration observation.
func (m *Model) recordCalls(r sim.Rand, c *codecSeries, maxCalls int) {
	for i, result := range m.catalog.Results {
		n := sim.IntRange(r, 0, maxCalls)
		c.results[i].Add(float64(n))
		if result != ResultCompleted {
			continue
		}
		for j := 0; j < n; j++ {
			c.duration.Observe(sim.Uniform(r, 30, 3600))
		}
	}
}

func (m *Model) recordSIP(r sim.Rand, s *methodSeries, load float64) {
	s.transactions.Add(float64(sim.IntRange(r, 5, sim.Scale(50, load, 5))))
	if !sim.Chance(r, m.controls.ErrorProb(0.2)) {
		return
	}
	code := sim.Pick(r, m.catalog.ErrorCodes)
	s.errors[code].Add(float64(sim.IntRange(r, 1, 5)))
}
