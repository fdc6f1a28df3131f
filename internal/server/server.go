// Package server exposes the scrape, health and dashboard endpoints.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"telemon/internal/api"
	"telemon/internal/model"
	"telemon/internal/sim"
	"telemon/internal/simulator"
	"telemon/internal/telemetry"
)

const (
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 5 * time.Second
	maxBodyBytes      = 1 << 20
)

// Dashboard is the simulator state served under /api.
type Dashboard interface {
	History() []model.Point
	MetricsCount() int
	Uptime() time.Duration
	InstanceID() string
	// UpdateControls applies fn to the current controls atomically.
	UpdateControls(fn func(sim.Controls) (sim.Controls, error)) (sim.Controls, error)
}

// StatusInfo lists the stack components reported by /api/status.
type StatusInfo struct {
	PrometheusAddr string
	GrafanaAddr    string
	// Exporters maps exporter name to its configured address.
	Exporters map[string]string
	// ExporterOrder fixes which exporters are listed.
	ExporterOrder []string
}

// Options configures a Server.
type Options struct {
	Addr     string
	Registry *telemetry.Registry
	// Health is the body returned by /health.
	Health string
	// Dashboard enables the /api routes when set.
	Dashboard Dashboard
	Columns   []string
	Status    StatusInfo
	Logger    *zap.Logger
}

// Server serves one process's HTTP surface.
type Server struct {
	opts   Options
	logger *zap.Logger
	mux    *http.ServeMux
}

// New builds the route table.
func New(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{opts: opts, logger: logger, mux: http.NewServeMux()}

	s.mux.Handle("/metrics", opts.Registry.Handler(zap.NewStdLog(logger)))
	s.mux.HandleFunc("/health", s.handleHealth)
	if opts.Dashboard != nil {
		s.mux.HandleFunc("/api/metrics", s.handleHistory)
		s.mux.HandleFunc("/api/status", s.handleStatus)
		s.mux.HandleFunc("/api/control", s.handleControl)
	}
	return s
}

// Handler returns the route table.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// ListenAndServe runs the HTTP server until ctx is done, then shuts it
// down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.opts.Addr,
		Handler:           s.mux,
		ReadHeaderTimeout: readHeaderTimeout,
		ErrorLog:          zap.NewStdLog(s.logger),
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", zap.String("addr", s.opts.Addr))
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("listen %s: %w", s.opts.Addr, err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown %s: %w", s.opts.Addr, err)
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, s.opts.Health)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	points := s.opts.Dashboard.History()
	writeJSON(w, http.StatusOK, api.NewHistoryResponse(s.opts.Columns, points))
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	d := s.opts.Dashboard
	info := s.opts.Status
	resp := api.StatusResponse{
		Simulator: api.SimulatorStatus{
			Status:       "active",
			Uptime:       simulator.FormatUptime(d.Uptime()),
			MetricsCount: d.MetricsCount(),
			InstanceID:   d.InstanceID(),
		},
		Prometheus: api.ComponentStatus{Status: "active", Address: info.PrometheusAddr},
		Grafana:    api.ComponentStatus{Status: "active", Address: info.GrafanaAddr},
		Exporters:  make(map[string]api.ComponentStatus, len(info.ExporterOrder)),
	}
	for _, name := range info.ExporterOrder {
		resp.Exporters[name] = api.ComponentStatus{Status: "active", Address: info.Exporters[name]}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleControl(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req api.ControlRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	var message string
	controls, err := s.opts.Dashboard.UpdateControls(func(c sim.Controls) (sim.Controls, error) {
		var err error
		c, message, err = applyControl(c, req)
		return c, err
	})
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.logger.Info("controls updated",
		zap.Float64("call_rate", controls.CallRate),
		zap.Float64("error_rate", controls.ErrorRate),
		zap.String("mode", string(controls.Mode)),
	)
	writeJSON(w, http.StatusOK, api.ControlResponse{Status: api.StatusSuccess, Message: message})
}

// applyControl validates every provided field before changing anything.
// The message echoes the last provided field.
func applyControl(c sim.Controls, req api.ControlRequest) (sim.Controls, string, error) {
	message := "Settings updated"
	if v := req.VoIPCallRate; v != nil {
		if math.IsNaN(*v) || math.IsInf(*v, 0) || *v < 0 {
			return c, "", fmt.Errorf("voip_call_rate must be a non-negative number")
		}
		c.CallRate = *v
		message = "VoIP call rate set to " + formatNumber(*v)
	}
	if v := req.ErrorRate; v != nil {
		if math.IsNaN(*v) || *v < 0 || *v > 100 {
			return c, "", fmt.Errorf("error_rate must be between 0 and 100")
		}
		c.ErrorRate = *v
		message = "Error rate set to " + formatNumber(*v) + "%"
	}
	if v := req.SimulationMode; v != nil {
		mode, err := sim.ParseMode(*v)
		if err != nil {
			return c, "", err
		}
		c.Mode = mode
		message = "Simulation mode set to " + string(mode)
	}
	return c, message, nil
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func decodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	decoder := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := decoder.Decode(v); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	encoder := json.NewEncoder(w)
	_ = encoder.Encode(v)
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, api.ControlResponse{Status: api.StatusError, Message: message})
}
