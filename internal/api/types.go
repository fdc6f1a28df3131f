package api

import "telemon/internal/model"

// HistoryResponse is the dashboard time series: one array per column, all
// of equal length, oldest first. The "timestamp" column holds unix seconds.
type HistoryResponse map[string][]float64

// NewHistoryResponse lays points out as parallel columns.
func NewHistoryResponse(columns []string, points []model.Point) HistoryResponse {
	resp := make(HistoryResponse, len(columns)+1)
	ts := make([]float64, len(points))
	for i, p := range points {
		ts[i] = p.Unix()
	}
	resp[model.TimestampColumn] = ts
	for _, col := range columns {
		values := make([]float64, len(points))
		for i, p := range points {
			values[i] = p.Value(col)
		}
		resp[col] = values
	}
	return resp
}

// Len returns the number of rows.
func (h HistoryResponse) Len() int {
	return len(h[model.TimestampColumn])
}

// Points converts the named columns back into points. Columns shorter than
// the time axis read as zero.
func (h HistoryResponse) Points(columns []string) []model.Point {
	ts := h[model.TimestampColumn]
	points := make([]model.Point, len(ts))
	for i, sec := range ts {
		values := make(map[string]float64, len(columns))
		for _, col := range columns {
			if series := h[col]; i < len(series) {
				values[col] = series[i]
			}
		}
		points[i] = model.Point{Timestamp: model.FromUnix(sec), Values: values}
	}
	return points
}

// SimulatorStatus describes the simulator process itself. Every field is
// always present.
type SimulatorStatus struct {
	Status       string `json:"status"`
	Uptime       string `json:"uptime"`
	MetricsCount int    `json:"metrics_count"`
	InstanceID   string `json:"instance_id"`
}

// ComponentStatus describes one other stack component on the dashboard.
type ComponentStatus struct {
	Status  string `json:"status"`
	Address string `json:"address,omitempty"`
}

// StatusResponse is returned by /api/status.
type StatusResponse struct {
	Simulator  SimulatorStatus            `json:"simulator"`
	Prometheus ComponentStatus            `json:"prometheus"`
	Grafana    ComponentStatus            `json:"grafana"`
	Exporters  map[string]ComponentStatus `json:"exporters"`
}

// ControlRequest adjusts the running simulation. Absent fields are left
// unchanged.
type ControlRequest struct {
	VoIPCallRate   *float64 `json:"voip_call_rate,omitempty"`
	ErrorRate      *float64 `json:"error_rate,omitempty"`
	SimulationMode *string  `json:"simulation_mode,omitempty"`
}

// ControlResponse reports the outcome of a control request.
type ControlResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// Control response statuses.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)
