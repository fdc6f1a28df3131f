package sim_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"telemon/internal/sim"
	"telemon/internal/sim/simtest"
)

func TestStep_ClampsToBound(t *testing.T) {
	t.Parallel()

	bound := sim.Bound{Low: 1, High: 5}
	delta := sim.Range{Min: -0.2, Max: 0.2}

	// Float64 of 1 draws the top of the delta range.
	hi := &simtest.Script{Floats: []float64{1}}
	require.Equal(t, 5.0, sim.Step(hi, 4.9, delta, bound))

	lo := &simtest.Script{Floats: []float64{0}}
	require.Equal(t, 1.0, sim.Step(lo, 1.1, delta, bound))

	mid := &simtest.Script{Floats: []float64{0.5}}
	require.InDelta(t, 3.0, sim.Step(mid, 3.0, delta, bound), 1e-9)
}

func TestStepInt_InclusiveRange(t *testing.T) {
	t.Parallel()

	bound := sim.Bound{Low: 0, High: 1000}
	// Intn(61) for a delta of [-30, 30]: 0 is -30, 60 is +30.
	r := &simtest.Script{Ints: []int{0, 60, 30}}
	require.Equal(t, 70.0, sim.StepInt(r, 100, -30, 30, bound))
	require.Equal(t, 130.0, sim.StepInt(r, 100, -30, 30, bound))
	require.Equal(t, 100.0, sim.StepInt(r, 100, -30, 30, bound))
}

func TestWalk_StaysInBound(t *testing.T) {
	t.Parallel()

	w := sim.Walk{
		Init: sim.Range{Min: 3, Max: 4.8}, Delta: sim.Range{Min: -0.2, Max: 0.2},
		Bound: sim.Bound{Low: 1, High: 5}, Default: 4,
	}
	require.NoError(t, w.Validate())

	r := sim.NewRand(42)
	v := w.Seed(r)
	for i := 0; i < 5000; i++ {
		next := w.Next(r, v)
		require.True(t, w.Bound.Contains(next), "step %d left bound: %v", i, next)
		require.LessOrEqual(t, next-v, 0.2+1e-9)
		require.GreaterOrEqual(t, next-v, -0.2-1e-9)
		v = next
	}
}

func TestWalk_Validate(t *testing.T) {
	t.Parallel()

	require.Error(t, sim.Walk{Bound: sim.Bound{Low: 5, High: 1}}.Validate())
	require.Error(t, sim.Walk{Bound: sim.Bound{Low: 1, High: 5}, Default: 9}.Validate())
	require.Error(t, sim.Walk{Bound: sim.Bound{Low: 0, High: 5}, Delta: sim.Range{Min: 1, Max: -1}}.Validate())
	require.NoError(t, sim.Walk{Bound: sim.Unbounded}.Validate())
}

func TestIntRange_Inclusive(t *testing.T) {
	t.Parallel()

	r := sim.NewRand(7)
	seen := map[int]bool{}
	for i := 0; i < 1000; i++ {
		v := sim.IntRange(r, 1, 3)
		require.GreaterOrEqual(t, v, 1)
		require.LessOrEqual(t, v, 3)
		seen[v] = true
	}
	require.Len(t, seen, 3)
	require.Equal(t, 4, sim.IntRange(r, 4, 4))
}

func TestChance_Extremes(t *testing.T) {
	t.Parallel()

	r := &simtest.Script{Floats: []float64{0}}
	require.False(t, sim.Chance(r, 0))
	require.True(t, sim.Chance(r, 1))
	require.True(t, sim.Chance(r, 0.5))

	r = &simtest.Script{Floats: []float64{0.9}}
	require.False(t, sim.Chance(r, 0.5))
}

func TestNewRand_SameSeedSameSequence(t *testing.T) {
	t.Parallel()

	a, b := sim.NewRand(99), sim.NewRand(99)
	for i := 0; i < 100; i++ {
		require.Equal(t, a.Float64(), b.Float64())
		require.Equal(t, a.Intn(1000), b.Intn(1000))
	}
}
