package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestCollectorsRegistered(t *testing.T) {
	UpdatesReceived.WithLabelValues("BTCUSDT").Inc()
	UpdatesDropped.WithLabelValues("stale").Inc()

	mfs, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	want := map[string]bool{
		"relay_updates_received_total": false,
		"relay_updates_dropped_total":  false,
		"relay_sessions_active":        false,
	}
	for _, mf := range mfs {
		if _, ok := want[mf.GetName()]; ok {
			want[mf.GetName()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Fatalf("%s metric not found", name)
		}
	}
}

func TestHandlerServesMetricsAndHealth(t *testing.T) {
	SessionsActive.Set(3)
	srv := httptest.NewServer(Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), "relay_sessions_active 3") {
		t.Fatalf("unexpected /metrics response %d:\n%s", resp.StatusCode, body)
	}

	resp, err = http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	body, _ = io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || string(body) != "ok" {
		t.Fatalf("unexpected /healthz response %d %q", resp.StatusCode, body)
	}
}

func TestServeStarts(t *testing.T) {
	srv := Serve("127.0.0.1:0")
	defer srv.Close()
	if srv.Handler == nil {
		t.Fatal("server has no handler")
	}
}
