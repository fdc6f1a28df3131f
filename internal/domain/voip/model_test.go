package voip

import (
	"math"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"telemon/internal/sim"
	"telemon/internal/sim/simtest"
	"telemon/internal/telemetry"
)

func newModel(t *testing.T, seed int64) (*Model, *telemetry.Registry) {
	t.Helper()
	reg := telemetry.NewRegistry()
	m, err := New(reg)
	require.NoError(t, err)
	require.NoError(t, m.Initialize(sim.NewRand(seed)))
	return m, reg
}

func (m *Model) codec(name string) *codecSeries {
	for _, c := range m.codecs {
		if c.name == name {
			return c
		}
	}
	return nil
}

func TestWalks_AreConsistent(t *testing.T) {
	t.Parallel()

	for _, w := range []sim.Walk{
		activeCallsWalk, codecCallsWalk, regionCallsWalk,
		mosWalk, jitterWalk, lossWalk, latencyWalk, rFactorWalk,
	} {
		require.NoError(t, w.Validate())
	}
}

func TestInitialize_Once(t *testing.T) {
	t.Parallel()

	m, _ := newModel(t, 1)
	require.ErrorIs(t, m.Initialize(sim.NewRand(1)), sim.ErrAlreadyInitialized)
}

func TestTick_BeforeInitializePanics(t *testing.T) {
	t.Parallel()

	m, err := New(telemetry.NewRegistry())
	require.NoError(t, err)
	require.Panics(t, func() { m.Tick(sim.NewRand(1)) })
}

func TestInitialize_RejectsBadCatalog(t *testing.T) {
	t.Parallel()

	cat := DefaultCatalog()
	cat.Codecs = []string{"Opus", "Opus"}
	cat.Regions = nil
	m, err := NewWithCatalog(telemetry.NewRegistry(), cat)
	require.NoError(t, err)
	err = m.Initialize(sim.NewRand(1))
	require.ErrorContains(t, err, "duplicate value")
	require.ErrorContains(t, err, "region is empty")
}

func TestNew_DuplicateRegistrationFails(t *testing.T) {
	t.Parallel()

	reg := telemetry.NewRegistry()
	_, err := New(reg)
	require.NoError(t, err)
	_, err = New(reg)
	require.Error(t, err)
}

func TestTick_MOSWalkStaysInBoundsWithSmallSteps(t *testing.T) {
	t.Parallel()

	m, _ := newModel(t, 11)
	r := sim.NewRand(12)
	for _, c := range m.codecs {
		require.True(t, mosWalk.Bound.Contains(c.mos.Value()))
	}

	prev := make([]float64, len(m.codecs))
	for i, c := range m.codecs {
		prev[i] = c.mos.Value()
	}
	for tick := 0; tick < 1000; tick++ {
		m.Tick(r)
		for i, c := range m.codecs {
			v := c.mos.Value()
			require.GreaterOrEqual(t, v, 1.0)
			require.LessOrEqual(t, v, 5.0)
			require.LessOrEqual(t, math.Abs(v-prev[i]), 0.2+1e-9, "codec %s tick %d", c.name, tick)
			prev[i] = v
		}
	}
}

func TestTick_GaugesStayInBounds(t *testing.T) {
	t.Parallel()

	m, _ := newModel(t, 3)
	r := sim.NewRand(4)
	for tick := 0; tick < 500; tick++ {
		m.Tick(r)
	}

	require.True(t, m.active.Bound().Contains(m.active.Value()))
	for _, c := range m.codecs {
		for _, g := range []*sim.Gauge{c.active, c.mos, c.jitter, c.loss, c.latency, c.rFactor} {
			require.True(t, g.Bound().Contains(g.Value()), "codec %s value %v", c.name, g.Value())
		}
	}
	for _, g := range m.regions {
		require.True(t, g.Bound().Contains(g.Value()))
	}
}

func TestTick_CountersAreMonotonic(t *testing.T) {
	t.Parallel()

	m, reg := newModel(t, 5)
	r := sim.NewRand(6)
	before := simtest.Counters(t, reg)
	for tick := 0; tick < 50; tick++ {
		m.Tick(r)
		after := simtest.Counters(t, reg)
		simtest.RequireMonotonic(t, before, after)
		before = after
	}
}

func TestRecordCalls_CompletedMatchesDraws(t *testing.T) {
	t.Parallel()

	m, _ := newModel(t, 1)
	opus := m.codec("Opus")
	require.NotNil(t, opus)

	// One Intn draw per result per call; completed comes first in the catalog.
	completed := []int{2, 0, 3, 1, 1, 3, 0, 2, 2, 1}
	var ints []int
	for _, n := range completed {
		ints = append(ints, n, 1, 0, 2, 0)
	}
	script := &simtest.Script{Ints: ints, Floats: []float64{0.25}}

	for range completed {
		m.recordCalls(script, opus, 3)
	}

	want := 0
	for _, n := range completed {
		want += n
	}
	got := testutil.ToFloat64(m.vecs.calls.WithLabelValues("Opus", ResultCompleted))
	require.Equal(t, float64(want), got)
	require.Equal(t, uint64(want), opus.duration.Count())
	require.Equal(t, float64(len(completed)), testutil.ToFloat64(m.vecs.calls.WithLabelValues("Opus", "failed")))
}

func TestTick_SameSeedSameExposition(t *testing.T) {
	t.Parallel()

	run := func() []byte {
		m, reg := newModel(t, 77)
		r := sim.NewRand(78)
		for tick := 0; tick < 20; tick++ {
			m.Tick(r)
		}
		text, err := reg.Text()
		require.NoError(t, err)
		return text
	}
	require.Equal(t, string(run()), string(run()))
}

func TestTick_AggregateIsActiveCalls(t *testing.T) {
	t.Parallel()

	m, _ := newModel(t, 8)
	agg := m.Tick(sim.NewRand(9))
	require.Equal(t, m.active.Value(), agg[AggregateCalls])
}

func TestTune_CallRateZeroStopsCallResults(t *testing.T) {
	t.Parallel()

	m, _ := newModel(t, 21)
	c := sim.DefaultControls()
	c.CallRate = 0
	m.Tune(c)

	before := testutil.ToFloat64(m.vecs.calls.WithLabelValues("G.711", ResultCompleted))
	r := sim.NewRand(22)
	for tick := 0; tick < 20; tick++ {
		m.Tick(r)
	}
	require.Equal(t, before, testutil.ToFloat64(m.vecs.calls.WithLabelValues("G.711", ResultCompleted)))
}
