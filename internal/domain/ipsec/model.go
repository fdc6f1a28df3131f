// Package ipsec simulates site-to-site IPsec tunnels.
package ipsec

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"

	"telemon/internal/sim"
)

// History columns fed by this model.
const (
	AggregateTunnels   = "ipsec_tunnels"
	AggregateTunnelsUp = "ipsec_tunnels_up"
)

const (
	namespace = "telecom"
	subsystem = "ipsec"
)

// Tunnel is one configured tunnel and the subnets it joins.
type Tunnel struct {
	ID           string
	LocalSubnet  string
	RemoteSubnet string
}

// Catalog enumerates the label values the model simulates.
type Catalog struct {
	States      []string
	Tunnels     []Tunnel
	Directions  []string
	CryptoError []string
}

var (
	localSubnets  = []string{"10.1.0.0/24", "10.2.0.0/24", "10.3.0.0/24", "172.16.0.0/16", "192.168.1.0/24"}
	remoteSubnets = []string{"192.168.10.0/24", "192.168.20.0/24", "172.31.0.0/16", "10.50.0.0/16", "10.60.0.0/16"}
)

// DefaultCatalog returns the reference label set: ten tunnels spread over
// five subnet pairs.
func DefaultCatalog() Catalog {
	tunnels := make([]Tunnel, 10)
	for i := range tunnels {
		tunnels[i] = Tunnel{
			ID:           fmt.Sprintf("tunnel_%d", i+1),
			LocalSubnet:  localSubnets[i%len(localSubnets)],
			RemoteSubnet: remoteSubnets[i%len(remoteSubnets)],
		}
	}
	return Catalog{
		States:      []string{"established", "connecting", "rekeying", "failed"},
		Tunnels:     tunnels,
		Directions:  []string{"in", "out"},
		CryptoError: []string{"integrity_check", "decrypt_failure", "invalid_key", "replay_error", "bad_proposal"},
	}
}

// Validate reports every malformed dimension.
func (c Catalog) Validate() error {
	ids := make([]string, len(c.Tunnels))
	var errs error
	for i, t := range c.Tunnels {
		ids[i] = t.ID
		if t.LocalSubnet == "" || t.RemoteSubnet == "" {
			errs = multierr.Append(errs, fmt.Errorf("tunnel %q is missing a subnet", t.ID))
		}
	}
	return multierr.Combine(
		sim.CheckCatalog("state", c.States),
		sim.CheckCatalog("tunnel_id", ids),
		sim.CheckCatalog("direction", c.Directions),
		sim.CheckCatalog("error_type", c.CryptoError),
		errs,
	)
}

const (
	upProb     = 0.8
	toggleProb = 0.05
	rekeyProb  = 0.1
	authProb   = 0.03
	cryptoProb = 0.05
)

var (
	// initial ranges per tunnel state
	stateInit = map[string]sim.Range{
		"established": {Min: 5, Max: 20},
		"connecting":  {Min: 0, Max: 3},
		"rekeying":    {Min: 0, Max: 2},
		"failed":      {Min: 0, Max: 5},
	}
	tunnelsWalk = sim.Walk{
		Init: sim.Range{Min: 0, Max: 5}, Delta: sim.Range{Min: -2, Max: 2},
		Bound: sim.Bound{Low: 0, High: 1000}, Integer: true,
	}
	bandwidthWalk = sim.Walk{
		Init: sim.Range{Min: 5, Max: 100}, Delta: sim.Range{Min: -20, Max: 20},
		Bound: sim.Bound{Low: 1, High: 1000}, Default: 50,
	}
	latencyWalk = sim.Walk{
		Init: sim.Range{Min: 5, Max: 100}, Delta: sim.Range{Min: -5, Max: 5},
		Bound: sim.Bound{Low: 1, High: 1000}, Default: 20,
	}
	lossWalk = sim.Walk{
		Init: sim.Range{Min: 0, Max: 2}, Delta: sim.Range{Min: -0.2, Max: 0.2},
		Bound: sim.Bound{Low: 0, High: 10}, Default: 0.5,
	}
)

type instruments struct {
	tunnels      *prometheus.GaugeVec
	tunnelState  *prometheus.GaugeVec
	bandwidth    *prometheus.GaugeVec
	packets      *prometheus.CounterVec
	bytes        *prometheus.CounterVec
	rekeys       *prometheus.CounterVec
	latency      *prometheus.GaugeVec
	packetLoss   *prometheus.GaugeVec
	cryptoErrors *prometheus.CounterVec
	authFailures *prometheus.CounterVec
}

type flowSeries struct {
	bandwidth *sim.Gauge
	packets   *sim.Counter
	bytes     *sim.Counter
}

type tunnelSeries struct {
	Tunnel
	state   prometheus.Gauge
	up      bool
	flows   []*flowSeries // parallel to Catalog.Directions
	latency *sim.Gauge
	loss    *sim.Gauge
	rekeys  *sim.Counter
	auth    *sim.Counter
}

// Model is the IPsec domain model.
type Model struct {
	sim.Lifecycle

	catalog  Catalog
	vecs     instruments
	controls sim.Controls

	states  []*sim.Gauge
	tunnels []*tunnelSeries
	byID    map[string]*tunnelSeries
	crypto  []*sim.Counter
}

// New declares the IPsec instruments on reg using the default catalog.
func New(reg sim.Registerer) (*Model, error) {
	return NewWithCatalog(reg, DefaultCatalog())
}

// NewWithCatalog declares the IPsec instruments on reg.
func NewWithCatalog(reg sim.Registerer, catalog Catalog) (*Model, error) {
	gauge := func(name, help string, labels ...string) *prometheus.GaugeVec {
		return prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: subsystem, Name: name, Help: help,
		}, labels)
	}
	counter := func(name, help string, labels ...string) *prometheus.CounterVec {
		return prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: subsystem, Name: name, Help: help,
		}, labels)
	}
	v := instruments{
		tunnels:      gauge("tunnels", "IPsec tunnels by state", "state"),
		tunnelState:  gauge("tunnel_state", "IPsec tunnel state (1=up, 0=down)", "tunnel_id", "local_subnet", "remote_subnet"),
		bandwidth:    gauge("bandwidth_mbps", "IPsec tunnel bandwidth (Mbps)", "tunnel_id", "direction"),
		packets:      counter("packets_total", "IPsec packets processed", "tunnel_id", "direction"),
		bytes:        counter("bytes_total", "IPsec bytes processed", "tunnel_id", "direction"),
		rekeys:       counter("rekey_total", "IPsec rekey operations", "tunnel_id"),
		latency:      gauge("latency_ms", "IPsec tunnel latency in milliseconds", "tunnel_id"),
		packetLoss:   gauge("packet_loss_percent", "IPsec tunnel packet loss percentage", "tunnel_id"),
		cryptoErrors: counter("crypto_errors_total", "IPsec cryptographic errors", "error_type"),
		authFailures: counter("auth_failures_total", "IPsec authentication failures", "tunnel_id"),
	}
	err := reg.Register(
		v.tunnels, v.tunnelState, v.bandwidth, v.packets, v.bytes,
		v.rekeys, v.latency, v.packetLoss, v.cryptoErrors, v.authFailures,
	)
	if err != nil {
		return nil, err
	}
	return &Model{catalog: catalog, vecs: v, controls: sim.DefaultControls()}, nil
}

// Name implements sim.Model.
func (m *Model) Name() string { return "ipsec" }

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

	for i, g := range m.states {
		init, ok := stateInit[m.catalog.States[i]]
		if !ok {
			init = tunnelsWalk.Init
		}
		g.Set(float64(sim.IntRange(r, int(init.Min), int(init.Max))))
	}
	for _, t := range m.tunnels {
		m.setUp(t, sim.Chance(r, upProb))
		for _, f := range t.flows {
			f.bandwidth.Seed(r)
			f.packets.Add(float64(sim.IntRange(r, 1000, 10000)))
			f.bytes.Add(float64(sim.IntRange(r, 1000000, 10000000)))
		}
		t.latency.Seed(r)
		t.loss.Seed(r)
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

	for _, state := range m.catalog.States {
		m.states = append(m.states, gauge(m.vecs.tunnels, tunnelsWalk, state))
	}
	m.byID = make(map[string]*tunnelSeries, len(m.catalog.Tunnels))
	for _, tun := range m.catalog.Tunnels {
		state, err := m.vecs.tunnelState.GetMetricWithLabelValues(tun.ID, tun.LocalSubnet, tun.RemoteSubnet)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("tunnel_state %s: %w", tun.ID, err))
		}
		t := &tunnelSeries{
			Tunnel:  tun,
			state:   state,
			latency: gauge(m.vecs.latency, latencyWalk, tun.ID),
			loss:    gauge(m.vecs.packetLoss, lossWalk, tun.ID),
			rekeys:  counter(m.vecs.rekeys, tun.ID),
			auth:    counter(m.vecs.authFailures, tun.ID),
		}
		for _, dir := range m.catalog.Directions {
			t.flows = append(t.flows, &flowSeries{
				bandwidth: gauge(m.vecs.bandwidth, bandwidthWalk, tun.ID, dir),
				packets:   counter(m.vecs.packets, tun.ID, dir),
				bytes:     counter(m.vecs.bytes, tun.ID, dir),
			})
		}
		m.tunnels = append(m.tunnels, t)
		m.byID[tun.ID] = t
	}
	for _, et := range m.catalog.CryptoError {
		m.crypto = append(m.crypto, counter(m.vecs.cryptoErrors, et))
	}
	return errs
}

func (m *Model) setUp(t *tunnelSeries, up bool) {
	t.up = up
	if up {
		t.state.Set(1)
	} else {
		t.state.Set(0)
	}
}

// Toggle flips the up/down state of the tunnel with the given id.
func (m *Model) Toggle(id string) bool {
	t, ok := m.byID[id]
	if !ok {
		return false
	}
	m.setUp(t, !t.up)
	return true
}

// Tick implements sim.Model.
func (m *Model) Tick(r sim.Rand) sim.Aggregate {
	m.MustBeReady(m.Name())

	load := m.controls.Load()
	toggle := toggleProb
	if m.controls.Mode == sim.ModeFailure {
		toggle *= 3
	}

	var tunnels float64
	for _, g := range m.states {
		tunnels += g.Advance(r)
	}

	var up float64
	for _, t := range m.tunnels {
		if sim.Chance(r, toggle) {
			m.Toggle(t.ID)
		}
		for _, f := range t.flows {
			f.bandwidth.Advance(r)
			packets := sim.IntRange(r, 100, sim.Scale(1000, load, 100))
			f.packets.Add(float64(packets))
			f.bytes.Add(float64(packets * sim.IntRange(r, 500, 1500)))
		}
		t.latency.Advance(r)
		t.loss.Advance(r)
		if sim.Chance(r, rekeyProb) {
			t.rekeys.Inc()
		}
		if sim.Chance(r, m.controls.ErrorProb(authProb)) {
			t.auth.Inc()
		}
		if t.up {
			up++
		}
	}

	if sim.Chance(r, m.controls.ErrorProb(cryptoProb)) {
		i := r.Intn(len(m.crypto))
		m.crypto[i].Add(float64(sim.IntRange(r, 1, 3)))
	}

	return sim.Aggregate{AggregateTunnels: tunnels, AggregateTunnelsUp: up}
}
