package metrics

import (
	"math"
	"sort"
	"time"

	"telemon/internal/model"
)

// Summary describes one aggregate over a time window.
type Summary struct {
	Name  string
	Count int
	From  time.Time
	To    time.Time
	Min   float64
	Avg   float64
	P95   float64
	Max   float64
	// Delta is the change from the first to the last point.
	Delta float64
}

// Summarize computes one summary per column for points at or after since,
// in column order.
func Summarize(points []model.Point, columns []string, since time.Time) []Summary {
	filtered := make([]model.Point, 0, len(points))
	for _, p := range points {
		if !p.Timestamp.Before(since) {
			filtered = append(filtered, p)
		}
	}

	out := make([]Summary, len(columns))
	for i, col := range columns {
		out[i] = summarize(col, filtered)
	}
	return out
}

func summarize(name string, points []model.Point) Summary {
	if len(points) == 0 {
		return Summary{Name: name}
	}

	values := make([]float64, 0, len(points))
	var sum float64
	minV := math.MaxFloat64
	maxV := -math.MaxFloat64
	from := points[0].Timestamp
	to := points[0].Timestamp

	for _, p := range points {
		v := p.Value(name)
		values = append(values, v)
		sum += v
		minV = math.Min(minV, v)
		maxV = math.Max(maxV, v)
		if p.Timestamp.Before(from) {
			from = p.Timestamp
		}
		if p.Timestamp.After(to) {
			to = p.Timestamp
		}
	}

	delta := values[len(values)-1] - values[0]
	sort.Float64s(values)

	return Summary{
		Name:  name,
		Count: len(points),
		From:  from,
		To:    to,
		Min:   minV,
		Avg:   sum / float64(len(points)),
		P95:   percentile(values, 0.95),
		Max:   maxV,
		Delta: delta,
	}
}

func percentile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return 0
	}
	if p <= 0 {
		return values[0]
	}
	if p >= 1 {
		return values[len(values)-1]
	}
	idx := int(math.Ceil(p*float64(len(values)))) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(values) {
		idx = len(values) - 1
	}
	return values[idx]
}
