// Package metrics exposes the broadcast daemon's activity counters and
// gauges as Prometheus metrics, served over HTTP for scraping.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rhizomatica/hermes-broadcast/broadcast"
	"github.com/rhizomatica/hermes-broadcast/frame"
)

// Registry wraps a dedicated Prometheus registry and the daemon's metric
// instruments, so a test or a second daemon instance in the same process
// can use its own Registry instead of the global default one.
type Registry struct {
	reg *prometheus.Registry

	framesSent    prometheus.Counter
	framesDropped *prometheus.CounterVec
	sessionsOpen  *prometheus.CounterVec
	sessionsDone  *prometheus.CounterVec
	blocksDecoded prometheus.Gauge
	blocksTotal   prometheus.Gauge
	errors        prometheus.Counter
}

// New builds a Registry with all daemon instruments registered.
func New() *Registry {
	reg := prometheus.NewRegistry()
	r := &Registry{
		reg: reg,
		framesSent: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Namespace: "hermes_broadcast",
			Name:      "frames_sent_total",
			Help:      "Number of frames transmitted.",
		}),
		framesDropped: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: "hermes_broadcast",
			Name:      "frames_dropped_total",
			Help:      "Number of inbound frames dropped, by reason.",
		}, []string{"reason"}),
		sessionsOpen: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: "hermes_broadcast",
			Name:      "sessions_opened_total",
			Help:      "Number of TX or RX sessions opened, by direction.",
		}, []string{"direction"}),
		sessionsDone: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: "hermes_broadcast",
			Name:      "sessions_completed_total",
			Help:      "Number of TX or RX sessions completed, by direction.",
		}, []string{"direction"}),
		blocksDecoded: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Namespace: "hermes_broadcast",
			Name:      "rx_blocks_decoded",
			Help:      "Blocks decoded in the active RX session.",
		}),
		blocksTotal: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Namespace: "hermes_broadcast",
			Name:      "rx_blocks_total",
			Help:      "Total blocks in the active RX session's object.",
		}),
		errors: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Namespace: "hermes_broadcast",
			Name:      "errors_total",
			Help:      "Number of errors reported via OnError.",
		}),
	}
	return r
}

// Handler returns the http.Handler to mount for Prometheus scraping.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}

// Serve runs an HTTP server exposing the registry's handler at /metrics
// until ctx is cancelled.
func (r *Registry) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", r.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}

// Callbacks returns a broadcast.Callbacks that records every event into r,
// merged with any user-supplied callbacks so both fire.
func (r *Registry) Callbacks(user *broadcast.Callbacks) *broadcast.Callbacks {
	wrapped := &broadcast.Callbacks{
		OnFrameSent: func(oti frame.OTIPair, tag frame.Tag) {
			r.framesSent.Inc()
			if user != nil && user.OnFrameSent != nil {
				user.OnFrameSent(oti, tag)
			}
		},
		OnFrameDropped: func(reason broadcast.DropReason) {
			r.framesDropped.WithLabelValues(string(reason)).Inc()
			if user != nil && user.OnFrameDropped != nil {
				user.OnFrameDropped(reason)
			}
		},
		OnSessionOpen: func(stats broadcast.SessionStats) {
			r.sessionsOpen.WithLabelValues(direction(stats)).Inc()
			if user != nil && user.OnSessionOpen != nil {
				user.OnSessionOpen(stats)
			}
		},
		OnProgress: func(stats broadcast.SessionStats) {
			r.blocksDecoded.Set(float64(stats.BlocksDecoded))
			r.blocksTotal.Set(float64(stats.TotalBlocks))
			if user != nil && user.OnProgress != nil {
				user.OnProgress(stats)
			}
		},
		OnSessionComplete: func(stats broadcast.SessionStats) {
			r.sessionsDone.WithLabelValues(direction(stats)).Inc()
			r.blocksDecoded.Set(float64(stats.BlocksDecoded))
			r.blocksTotal.Set(float64(stats.TotalBlocks))
			if user != nil && user.OnSessionComplete != nil {
				user.OnSessionComplete(stats)
			}
		},
		OnError: func(err error) {
			r.errors.Inc()
			if user != nil && user.OnError != nil {
				user.OnError(err)
			}
		},
	}
	return wrapped
}

func direction(stats broadcast.SessionStats) string {
	if stats.TotalBlocks > 0 || stats.BlocksDecoded > 0 {
		return "rx"
	}
	return "tx"
}
