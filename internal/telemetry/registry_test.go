package telemetry

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
)

func TestRegister_ReportsEveryConflict(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	a := prometheus.NewGauge(prometheus.GaugeOpts{Name: "a"})
	b := prometheus.NewGauge(prometheus.GaugeOpts{Name: "b"})
	require.NoError(t, r.Register(a, b))

	err := r.Register(
		prometheus.NewGauge(prometheus.GaugeOpts{Name: "a"}),
		prometheus.NewGauge(prometheus.GaugeOpts{Name: "b"}),
	)
	require.Len(t, multierr.Errors(err), 2)
}

func TestHandler_ServesTextExposition(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	g := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "telecom", Subsystem: "voip", Name: "mos", Help: "MOS",
	}, []string{"codec"})
	require.NoError(t, r.Register(g))
	r.Update(func() { g.WithLabelValues("Opus").Set(4.2) })

	srv := httptest.NewServer(r.Handler(nil))
	defer srv.Close()

	res, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer res.Body.Close()
	body, err := io.ReadAll(res.Body)
	require.NoError(t, err)

	require.Equal(t, http.StatusOK, res.StatusCode)
	require.True(t, strings.HasPrefix(res.Header.Get("Content-Type"), "text/plain"))
	require.Contains(t, string(body), `telecom_voip_mos{codec="Opus"} 4.2`)
}

func TestText_MatchesGather(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	c := prometheus.NewCounter(prometheus.CounterOpts{Name: "ticks_total", Help: "ticks"})
	require.NoError(t, r.Register(c))
	r.Update(func() { c.Add(3) })

	text, err := r.Text()
	require.NoError(t, err)
	require.Contains(t, string(text), "ticks_total 3")
}
