// Package metrics exposes an optional Prometheus /metrics endpoint for the
// server: connection count, broadcast throughput, eviction count, and
// framing/protocol error counts.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/drgolem/pcmcast/internal/logx"
)

var (
	ClientsConnected = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "pcmcast_clients_connected",
		Help: "Current number of connected streaming clients.",
	})
	BroadcastsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pcmcast_broadcasts_total",
		Help: "Total number of messages broadcast to the connection set.",
	})
	EvictionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pcmcast_evictions_total",
		Help: "Total number of clients evicted after a failed write.",
	})
	FrameErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pcmcast_frame_errors_total",
		Help: "Total framing/protocol errors observed, by kind.",
	}, []string{"kind"})
	SamplesStreamedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pcmcast_samples_streamed_total",
		Help: "Total PCM samples broadcast by the pacing loop.",
	})
)

// StartHTTP serves the Prometheus handler at /metrics on addr.
func StartHTTP(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		logx.L().Info("metrics listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logx.L().Error("metrics server error", "error", err)
		}
	}()
	return srv
}
