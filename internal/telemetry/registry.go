package telemetry

import (
	"bytes"
	"log"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
	"go.uber.org/multierr"
)

// Registry is the process-wide instrument catalog.
//
// Ticks mutate series under the write lock and scrapes gather under the
// read lock, so a scrape observes either all or none of a tick's updates.
type Registry struct {
	mu  sync.RWMutex
	reg *prometheus.Registry
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{reg: prometheus.NewRegistry()}
}

// Register adds collectors, reporting every conflict at once.
func (r *Registry) Register(cs ...prometheus.Collector) error {
	var err error
	for _, c := range cs {
		err = multierr.Append(err, r.reg.Register(c))
	}
	return err
}

// RegisterRuntime adds the Go runtime and process collectors.
func (r *Registry) RegisterRuntime() error {
	return r.Register(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}

// Update runs fn while holding the write lock.
func (r *Registry) Update(fn func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fn()
}

// Gather implements prometheus.Gatherer.
func (r *Registry) Gather() ([]*dto.MetricFamily, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.reg.Gather()
}

// Handler serves the text exposition of the registry.
func (r *Registry) Handler(errLog *log.Logger) http.Handler {
	opts := promhttp.HandlerOpts{}
	if errLog != nil {
		opts.ErrorLog = errLog
	}
	return promhttp.HandlerFor(r, opts)
}

// Text renders the current state in the text exposition format.
func (r *Registry) Text() ([]byte, error) {
	families, err := r.Gather()
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(&buf, mf); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}
