package model

import "time"

// TimestampColumn names the time axis in history tables.
const TimestampColumn = "timestamp"

// Point is the set of aggregates recorded by one simulator tick.
//
// Points are immutable once appended to history; every aggregate of a
// tick shares its timestamp.
type Point struct {
	Timestamp time.Time
	Values    map[string]float64
}

// NewPoint copies values so later changes by the caller are not observed.
func NewPoint(ts time.Time, values map[string]float64) Point {
	cp := make(map[string]float64, len(values))
	for k, v := range values {
		cp[k] = v
	}
	return Point{Timestamp: ts, Values: cp}
}

// Value returns the named aggregate, or zero when the tick did not report it.
func (p Point) Value(name string) float64 {
	return p.Values[name]
}

// Unix returns the timestamp in fractional unix seconds.
func (p Point) Unix() float64 {
	return float64(p.Timestamp.UnixNano()) / float64(time.Second)
}

// FromUnix converts fractional unix seconds back to a UTC time.
func FromUnix(sec float64) time.Time {
	return time.Unix(0, int64(sec*float64(time.Second))).UTC()
}
