package metrics

import (
	"testing"
	"time"

	"telemon/internal/model"
)

func TestSummarize_Basic(t *testing.T) {
	t.Parallel()

	now := time.Now().UTC()
	points := []model.Point{
		{Timestamp: now.Add(-2 * time.Hour), Values: map[string]float64{"voip_calls": 1000}},
		{Timestamp: now.Add(-10 * time.Second), Values: map[string]float64{"voip_calls": 10, "ipsec_tunnels": 4}},
		{Timestamp: now.Add(-5 * time.Second), Values: map[string]float64{"voip_calls": 20, "ipsec_tunnels": 6}},
	}
	got := Summarize(points, []string{"voip_calls", "ipsec_tunnels"}, now.Add(-1*time.Minute))
	if len(got) != 2 {
		t.Fatalf("summaries=%d", len(got))
	}
	s := got[0]
	if s.Name != "voip_calls" || s.Count != 2 {
		t.Fatalf("name/count=%s/%d", s.Name, s.Count)
	}
	if s.Avg != 15 {
		t.Fatalf("avg=%.2f", s.Avg)
	}
	if s.Min != 10 || s.Max != 20 {
		t.Fatalf("min/max=%.2f/%.2f", s.Min, s.Max)
	}
	if s.P95 != 20 {
		t.Fatalf("p95=%.2f", s.P95)
	}
	if s.Delta != 10 {
		t.Fatalf("delta=%.2f", s.Delta)
	}
	if got[1].Avg != 5 {
		t.Fatalf("ipsec avg=%.2f", got[1].Avg)
	}
}

func TestSummarize_EmptyWindow(t *testing.T) {
	t.Parallel()

	points := []model.Point{{Timestamp: time.Unix(1, 0), Values: map[string]float64{"voip_calls": 1}}}
	got := Summarize(points, []string{"voip_calls"}, time.Unix(2, 0))
	if got[0].Count != 0 || got[0].Name != "voip_calls" {
		t.Fatalf("summary=%+v", got[0])
	}
}

func TestPercentile_Edges(t *testing.T) {
	t.Parallel()

	values := []float64{1, 2, 3, 4}
	if got := percentile(values, 0); got != 1 {
		t.Fatalf("p0=%v", got)
	}
	if got := percentile(values, 1); got != 4 {
		t.Fatalf("p100=%v", got)
	}
	if got := percentile(values, 0.5); got != 2 {
		t.Fatalf("p50=%v", got)
	}
}
