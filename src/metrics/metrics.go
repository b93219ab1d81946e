package metrics

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	SessionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "relay_sessions_active", Help: "Connected client sessions"},
	)
	ActiveSymbols = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "relay_active_symbols", Help: "Symbols wanted by at least one session"},
	)
	UpstreamState = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "relay_upstream_state", Help: "Upstream controller state (0 idle, 1 streaming, 2 restarting)"},
	)
	UpstreamRestarts = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "relay_upstream_restarts_total", Help: "Upstream streams replaced by a new symbol set"},
	)
	UpstreamFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "relay_upstream_failures_total", Help: "Upstream failures by stage"},
		[]string{"stage"},
	)
	UpdatesReceived = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "relay_updates_received_total", Help: "Kline updates received from upstream"},
		[]string{"symbol"},
	)
	UpdatesDelivered = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "relay_updates_delivered_total", Help: "Kline updates queued to client sessions"},
	)
	UpdatesDropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "relay_updates_dropped_total", Help: "Kline updates not delivered, by reason"},
		[]string{"reason"},
	)
	SessionMessages = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "relay_session_messages_total", Help: "Client commands by result"},
		[]string{"result"},
	)
)

func init() {
	prometheus.MustRegister(
		SessionsActive,
		ActiveSymbols,
		UpstreamState,
		UpstreamRestarts,
		UpstreamFailures,
		UpdatesReceived,
		UpdatesDelivered,
		UpdatesDropped,
		SessionMessages,
	)
}

// Handler serves /metrics and /healthz.
func Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return r
}

// Serve starts the admin listener in the background.
func Serve(addr string) *http.Server {
	srv := &http.Server{Addr: addr, Handler: Handler(), ReadHeaderTimeout: 5 * time.Second}
	go func() { _ = srv.ListenAndServe() }()
	return srv
}
