package sim

import (
	"fmt"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
)

// Gauge is one labeled gauge series driven by a Walk.
//
// The last written value is kept alongside the prometheus child so the
// simulation never reads state back out of the registry.
type Gauge struct {
	walk   Walk
	metric prometheus.Gauge
	value  float64
	seeded bool
}

// NewGauge resolves the series for labels on vec.
func NewGauge(vec *prometheus.GaugeVec, walk Walk, labels ...string) (*Gauge, error) {
	m, err := vec.GetMetricWithLabelValues(labels...)
	if err != nil {
		return nil, fmt.Errorf("gauge {%s}: %w", strings.Join(labels, ","), err)
	}
	return &Gauge{walk: walk, metric: m}, nil
}

// Seed sets a starting value drawn from the walk's Init range.
func (g *Gauge) Seed(r Rand) {
	g.Set(g.walk.Seed(r))
}

// Advance applies one step of the walk and returns the new value.
func (g *Gauge) Advance(r Rand) float64 {
	current := g.walk.Default
	if g.seeded {
		current = g.value
	}
	g.Set(g.walk.Next(r, current))
	return g.value
}

// Set stores v clamped to the walk's bound.
func (g *Gauge) Set(v float64) {
	g.value = g.walk.Bound.Clamp(v)
	g.seeded = true
	g.metric.Set(g.value)
}

// Value returns the current value, or the walk default when never set.
func (g *Gauge) Value() float64 {
	if !g.seeded {
		return g.walk.Default
	}
	return g.value
}

// Bound returns the walk's bound.
func (g *Gauge) Bound() Bound {
	return g.walk.Bound
}

// Counter is one labeled counter series.
type Counter struct {
	metric prometheus.Counter
	total  float64
}

// NewCounter resolves the series for labels on vec.
func NewCounter(vec *prometheus.CounterVec, labels ...string) (*Counter, error) {
	m, err := vec.GetMetricWithLabelValues(labels...)
	if err != nil {
		return nil, fmt.Errorf("counter {%s}: %w", strings.Join(labels, ","), err)
	}
	return &Counter{metric: m}, nil
}

// Add increases the counter by n. Non-positive increments are ignored.
func (c *Counter) Add(n float64) {
	if n <= 0 {
		return
	}
	c.total += n
	c.metric.Add(n)
}

// Inc increases the counter by one.
func (c *Counter) Inc() {
	c.Add(1)
}

// Value returns the running total.
func (c *Counter) Value() float64 {
	return c.total
}

// Histogram is one labeled histogram series.
type Histogram struct {
	metric prometheus.Observer
	count  uint64
}

// NewHistogram resolves the series for labels on vec.
func NewHistogram(vec *prometheus.HistogramVec, labels ...string) (*Histogram, error) {
	m, err := vec.GetMetricWithLabelValues(labels...)
	if err != nil {
		return nil, fmt.Errorf("histogram {%s}: %w", strings.Join(labels, ","), err)
	}
	return &Histogram{metric: m}, nil
}

// Observe records one observation.
func (h *Histogram) Observe(v float64) {
	h.count++
	h.metric.Observe(v)
}

// Count returns the number of observations.
func (h *Histogram) Count() uint64 {
	return h.count
}
