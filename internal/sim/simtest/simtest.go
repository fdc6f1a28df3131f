// Package simtest provides helpers for testing simulation models.
package simtest

import (
	"fmt"
	"sort"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// Script is a sim.Rand that replays fixed draws. Each sequence cycles when
// exhausted; an empty Floats yields 0.5 and an empty Ints yields 0.
type Script struct {
	Floats []float64
	Ints   []int

	fi, ii int
}

// Float64 returns the next scripted float.
func (s *Script) Float64() float64 {
	if len(s.Floats) == 0 {
		return 0.5
	}
	v := s.Floats[s.fi%len(s.Floats)]
	s.fi++
	return v
}

// Intn returns the next scripted int. It panics when the value is not in
// [0, n).
func (s *Script) Intn(n int) int {
	if len(s.Ints) == 0 {
		return 0
	}
	v := s.Ints[s.ii%len(s.Ints)]
	s.ii++
	if v < 0 || v >= n {
		panic(fmt.Sprintf("scripted Intn value %d outside [0,%d)", v, n))
	}
	return v
}

// Counters snapshots every counter value and histogram count in g, keyed by
// family name and label pairs.
func Counters(t testing.TB, g prometheus.Gatherer) map[string]float64 {
	t.Helper()
	families, err := g.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	out := make(map[string]float64)
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			key := mf.GetName() + labelKey(m.GetLabel())
			switch mf.GetType() {
			case dto.MetricType_COUNTER:
				out[key] = m.GetCounter().GetValue()
			case dto.MetricType_HISTOGRAM:
				out[key+"_count"] = float64(m.GetHistogram().GetSampleCount())
			}
		}
	}
	return out
}

// Gauges snapshots every gauge value in g.
func Gauges(t testing.TB, g prometheus.Gatherer) map[string]float64 {
	t.Helper()
	families, err := g.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	out := make(map[string]float64)
	for _, mf := range families {
		if mf.GetType() != dto.MetricType_GAUGE {
			continue
		}
		for _, m := range mf.GetMetric() {
			out[mf.GetName()+labelKey(m.GetLabel())] = m.GetGauge().GetValue()
		}
	}
	return out
}

// RequireMonotonic fails when any series in after is lower than in before,
// or when a series disappeared.
func RequireMonotonic(t testing.TB, before, after map[string]float64) {
	t.Helper()
	keys := make([]string, 0, len(before))
	for k := range before {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		v, ok := after[k]
		if !ok {
			t.Fatalf("series %s disappeared", k)
		}
		if v < before[k] {
			t.Fatalf("series %s decreased from %v to %v", k, before[k], v)
		}
	}
}

func labelKey(labels []*dto.LabelPair) string {
	if len(labels) == 0 {
		return ""
	}
	parts := make([]string, len(labels))
	for i, l := range labels {
		parts[i] = l.GetName() + "=" + l.GetValue()
	}
	return "{" + strings.Join(parts, ",") + "}"
}
