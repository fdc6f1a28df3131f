package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"telemon/internal/model"
)

func TestClient_ErrorUsesServerMessage(t *testing.T) {
	t.Parallel()

	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"status":"error","message":"nope"}`))
	}))
	defer s.Close()

	c := NewClient(s.URL)
	mode := "normal"
	_, err := c.Control(context.Background(), ControlRequest{SimulationMode: &mode})
	if err == nil {
		t.Fatalf("expected error")
	}
	got := err.Error()
	if got == "" || got[len(got)-1] == '\n' {
		t.Fatalf("unexpected error string: %q", got)
	}
	if want := "400"; !strings.Contains(got, want) {
		t.Fatalf("error missing status: %q", got)
	}
	if want := "POST /api/control: 400 Bad Request: nope"; got != want {
		t.Fatalf("error=%q want %q", got, want)
	}
}

func TestClient_ErrorFallsBackToText(t *testing.T) {
	t.Parallel()

	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream down", http.StatusBadGateway)
	}))
	defer s.Close()

	_, err := NewClient(s.URL).Status(context.Background())
	if err == nil || !strings.HasSuffix(err.Error(), ": upstream down") {
		t.Fatalf("err=%v", err)
	}
}

func TestClient_ControlOmitsUnsetFields(t *testing.T) {
	t.Parallel()

	var body map[string]any
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/control" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode: %v", err)
		}
		_, _ = w.Write([]byte(`{"status":"success","message":"Error rate set to 5%"}`))
	}))
	defer s.Close()

	rate := 5.0
	resp, err := NewClient(s.URL+"/").Control(context.Background(), ControlRequest{ErrorRate: &rate})
	if err != nil {
		t.Fatalf("Control: %v", err)
	}
	if resp.Status != StatusSuccess || resp.Message != "Error rate set to 5%" {
		t.Fatalf("resp=%+v", resp)
	}
	if diff := cmp.Diff(map[string]any{"error_rate": 5.0}, body); diff != "" {
		t.Fatalf("body mismatch (-want +got):\n%s", diff)
	}
}

func TestHistoryResponse_RoundTrip(t *testing.T) {
	t.Parallel()

	columns := []string{"voip_calls", "ipsec_tunnels"}
	points := []model.Point{
		{Timestamp: time.Unix(100, 0).UTC(), Values: map[string]float64{"voip_calls": 10, "ipsec_tunnels": 3}},
		{Timestamp: time.Unix(105, 0).UTC(), Values: map[string]float64{"voip_calls": 12}},
	}
	h := NewHistoryResponse(columns, points)
	if h.Len() != 2 {
		t.Fatalf("len=%d", h.Len())
	}
	if diff := cmp.Diff([]float64{100, 105}, h["timestamp"]); diff != "" {
		t.Fatalf("timestamps (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]float64{3, 0}, h["ipsec_tunnels"]); diff != "" {
		t.Fatalf("ipsec_tunnels (-want +got):\n%s", diff)
	}

	back := h.Points(columns)
	if len(back) != 2 || !back[1].Timestamp.Equal(points[1].Timestamp) {
		t.Fatalf("points=%+v", back)
	}
	if back[0].Value("voip_calls") != 10 {
		t.Fatalf("voip_calls=%v", back[0].Value("voip_calls"))
	}
}

func TestClient_History(t *testing.T) {
	t.Parallel()

	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/metrics" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(`{"timestamp":[1,2],"voip_calls":[5,6]}`))
	}))
	defer s.Close()

	h, err := NewClient(s.URL).History(context.Background())
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if diff := cmp.Diff([]float64{5, 6}, h["voip_calls"]); diff != "" {
		t.Fatalf("voip_calls (-want +got):\n%s", diff)
	}
}
