// Package diameter simulates Diameter signaling between EPC/IMS nodes.
package diameter

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"

	"telemon/internal/sim"
)

// History columns fed by this model.
const (
	AggregateRequests = "diameter_requests"
	AggregateSessions = "diameter_sessions"
)

// ErrorTimeout also counts against the per-type timeout counter.
const ErrorTimeout = "TIMEOUT"

const (
	namespace = "telecom"
	subsystem = "diameter"
)

// Catalog enumerates the label values the model simulates.
type Catalog struct {
	RequestTypes []string
	ResultCodes  []int
	ErrorTypes   []string
	OriginHosts  []string
}

// DefaultCatalog returns the reference label set.
func DefaultCatalog() Catalog {
	return Catalog{
		RequestTypes: []string{"CCR", "AAR", "RAR", "STR", "ASR", "DWR", "DPR", "ULR", "AIR"},
		ResultCodes:  []int{2001, 2002, 2003, 3001, 3002, 3003, 4001, 4002, 4003, 5001, 5002, 5003},
		ErrorTypes:   []string{ErrorTimeout, "AUTHENTICATION_FAILED", "UNKNOWN_SESSION", "NETWORK_ERROR", "PROTOCOL_ERROR"},
		OriginHosts:  []string{"mme01.example.com", "pcrf02.example.com", "hss03.example.com", "dra01.example.com"},
	}
}

func (c Catalog) resultCodes() []string {
	out := make([]string, len(c.ResultCodes))
	for i, code := range c.ResultCodes {
		out[i] = strconv.Itoa(code)
	}
	return out
}

// Validate reports every malformed dimension.
func (c Catalog) Validate() error {
	return multierr.Combine(
		sim.CheckCatalog("type", c.RequestTypes),
		sim.CheckCatalog("result_code", c.resultCodes()),
		sim.CheckCatalog("error_type", c.ErrorTypes),
		sim.CheckCatalog("origin_host", c.OriginHosts),
	)
}

var (
	sessionsWalk = sim.Walk{
		Init: sim.Range{Min: 10, Max: 1000}, Delta: sim.Range{Min: -50, Max: 50},
		Bound: sim.Bound{Low: 0, High: 100000}, Integer: true,
	}
	tpsWalk = sim.Walk{
		Init: sim.Range{Min: 5, Max: 200}, Delta: sim.Range{Min: -15, Max: 15},
		Bound: sim.Bound{Low: 0, High: 500}, Default: 50,
	}

	latencyBuckets = []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}
	sessionBuckets = []float64{1, 5, 10, 30, 60, 300, 600, 1800, 3600, 7200, 14400}
)

type instruments struct {
	requests        *prometheus.CounterVec
	responses       *prometheus.CounterVec
	timeouts        *prometheus.CounterVec
	latency         *prometheus.HistogramVec
	errors          *prometheus.CounterVec
	activeSessions  *prometheus.GaugeVec
	sessionDuration *prometheus.HistogramVec
	tps             *prometheus.GaugeVec
}

type typeSeries struct {
	name      string
	requests  map[string]*sim.Counter // by origin host
	responses map[string]*sim.Counter // by result code
	timeouts  *sim.Counter
	latency   *sim.Histogram
	sessions  *sim.Gauge
	durations *sim.Histogram
	tps       *sim.Gauge
}

// Model is the Diameter domain model.
type Model struct {
	sim.Lifecycle

	catalog  Catalog
	codes    []string
	vecs     instruments
	controls sim.Controls

	types  []*typeSeries
	errors map[string]map[string]*sim.Counter // error type -> origin host
	total  float64
}

// New declares the Diameter instruments on reg using the default catalog.
func New(reg sim.Registerer) (*Model, error) {
	return NewWithCatalog(reg, DefaultCatalog())
}

// NewWithCatalog declares the Diameter instruments on reg.
func NewWithCatalog(reg sim.Registerer, catalog Catalog) (*Model, error) {
	counter := func(name, help string, labels ...string) *prometheus.CounterVec {
		return prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: subsystem, Name: name, Help: help,
		}, labels)
	}
	v := instruments{
		requests:  counter("requests_total", "Total Diameter requests", "type", "origin_host"),
		responses: counter("responses_total", "Total Diameter responses", "type", "result_code"),
		timeouts:  counter("timeouts_total", "Total Diameter timeouts", "type"),
		errors:    counter("errors_total", "Diameter protocol errors", "error_type", "origin_host"),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: subsystem,
			Name: "latency_seconds", Help: "Diameter request latency in seconds",
			Buckets: latencyBuckets,
		}, []string{"type"}),
		activeSessions: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: subsystem,
			Name: "active_sessions", Help: "Active Diameter sessions",
		}, []string{"type"}),
		sessionDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: subsystem,
			Name: "session_duration_seconds", Help: "Diameter session duration in seconds",
			Buckets: sessionBuckets,
		}, []string{"type"}),
		tps: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: subsystem,
			Name: "transactions_rate", Help: "Diameter transactions per second",
		}, []string{"type"}),
	}
	err := reg.Register(
		v.requests, v.responses, v.timeouts, v.latency,
		v.errors, v.activeSessions, v.sessionDuration, v.tps,
	)
	if err != nil {
		return nil, err
	}
	return &Model{catalog: catalog, vecs: v, controls: sim.DefaultControls()}, nil
}

// Name implements sim.Model.
func (m *Model) Name() string { return "diameter" }

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
	m.codes = m.catalog.resultCodes()
	if err := m.build(); err != nil {
		return err
	}
	for _, t := range m.types {
		t.sessions.Seed(r)
		t.tps.Seed(r)
	}
	m.Ready()
	return nil
}

func (m *Model) build() error {
	var errs error
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
	gauge := func(vec *prometheus.GaugeVec, w sim.Walk, labels ...string) *sim.Gauge {
		g, err := sim.NewGauge(vec, w, labels...)
		errs = multierr.Append(errs, err)
		return g
	}

	for _, typ := range m.catalog.RequestTypes {
		t := &typeSeries{
			name:      typ,
			requests:  make(map[string]*sim.Counter, len(m.catalog.OriginHosts)),
			responses: make(map[string]*sim.Counter, len(m.codes)),
			timeouts:  counter(m.vecs.timeouts, typ),
			latency:   histogram(m.vecs.latency, typ),
			sessions:  gauge(m.vecs.activeSessions, sessionsWalk, typ),
			durations: histogram(m.vecs.sessionDuration, typ),
			tps:       gauge(m.vecs.tps, tpsWalk, typ),
		}
		for _, host := range m.catalog.OriginHosts {
			t.requests[host] = counter(m.vecs.requests, typ, host)
		}
		for _, code := range m.codes {
			t.responses[code] = counter(m.vecs.responses, typ, code)
		}
		m.types = append(m.types, t)
	}
	m.errors = make(map[string]map[string]*sim.Counter, len(m.catalog.ErrorTypes))
	for _, et := range m.catalog.ErrorTypes {
		byHost := make(map[string]*sim.Counter, len(m.catalog.OriginHosts))
		for _, host := range m.catalog.OriginHosts {
			byHost[host] = counter(m.vecs.errors, et, host)
		}
		m.errors[et] = byHost
	}
	return errs
}

// Tick implements sim.Model.
func (m *Model) Tick(r sim.Rand) sim.Aggregate {
	m.MustBeReady(m.Name())

	n := sim.IntRange(r, 5, sim.Scale(20, m.controls.Load(), 5))
	errProb := m.controls.ErrorProb(0.1)
	for i := 0; i < n; i++ {
		t := sim.Pick(r, m.types)
		host := sim.Pick(r, m.catalog.OriginHosts)

		t.requests[host].Inc()
		m.total++
		t.latency.Observe(sim.Uniform(r, 0.001, 0.5))

		if sim.Chance(r, errProb) {
			et := sim.Pick(r, m.catalog.ErrorTypes)
			m.errors[et][host].Inc()
			if et == ErrorTimeout {
				t.timeouts.Inc()
			}
			continue
		}
		t.responses[sim.Pick(r, m.codes)].Inc()
	}

	var sessions float64
	for _, t := range m.types {
		before := t.sessions.Value()
		after := t.sessions.Advance(r)
		sessions += after
		// sessions that ended this tick report their duration
		for ended := int(before - after); ended > 0; ended-- {
			t.durations.Observe(sim.Uniform(r, 10, 7200))
		}
	}
	for _, t := range m.types {
		t.tps.Advance(r)
	}

	return sim.Aggregate{AggregateRequests: m.total, AggregateSessions: sessions}
}
