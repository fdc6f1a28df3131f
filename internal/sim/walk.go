package sim

import (
	"fmt"
	"math"
)

// Range is an inclusive [Min, Max] interval used for draws.
type Range struct {
	Min float64
	Max float64
}

// Bound is the closed interval a gauge must stay inside.
type Bound struct {
	Low  float64
	High float64
}

// Unbounded allows any non-negative value.
var Unbounded = Bound{Low: 0, High: math.Inf(1)}

// Clamp limits v to the bound.
func (b Bound) Clamp(v float64) float64 {
	return math.Max(b.Low, math.Min(b.High, v))
}

// Contains reports whether v lies inside the bound.
func (b Bound) Contains(v float64) bool {
	return v >= b.Low && v <= b.High
}

// Walk is the step policy of one gauge family.
//
// Init is the wider range used to seed a series, Delta is the per-tick
// perturbation and Default stands in for a series that was never seeded.
type Walk struct {
	Init    Range
	Delta   Range
	Bound   Bound
	Default float64
	// Integer walks draw whole-number seeds and deltas.
	Integer bool
}

// Validate checks that the policy is internally consistent.
func (w Walk) Validate() error {
	if w.Bound.Low > w.Bound.High {
		return fmt.Errorf("bound [%v,%v] is inverted", w.Bound.Low, w.Bound.High)
	}
	if w.Delta.Min > w.Delta.Max || w.Init.Min > w.Init.Max {
		return fmt.Errorf("range is inverted")
	}
	if !w.Bound.Contains(w.Default) {
		return fmt.Errorf("default %v outside bound [%v,%v]", w.Default, w.Bound.Low, w.Bound.High)
	}
	return nil
}

// Seed draws a starting value from Init, clamped to the bound.
func (w Walk) Seed(r Rand) float64 {
	if w.Integer {
		return w.Bound.Clamp(float64(IntRange(r, int(w.Init.Min), int(w.Init.Max))))
	}
	return w.Bound.Clamp(Uniform(r, w.Init.Min, w.Init.Max))
}

// Next advances current by one step of the policy.
func (w Walk) Next(r Rand, current float64) float64 {
	if w.Integer {
		return StepInt(r, current, int(w.Delta.Min), int(w.Delta.Max), w.Bound)
	}
	return Step(r, current, w.Delta, w.Bound)
}

// Step perturbs current by a uniform draw from delta and clamps the result.
func Step(r Rand, current float64, delta Range, bound Bound) float64 {
	return bound.Clamp(current + Uniform(r, delta.Min, delta.Max))
}

// StepInt is Step with an integer perturbation drawn from [lo, hi].
func StepInt(r Rand, current float64, lo, hi int, bound Bound) float64 {
	return bound.Clamp(current + float64(IntRange(r, lo, hi)))
}
