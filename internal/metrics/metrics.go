// Package metrics exposes Prometheus collectors for the polling loops, the
// service boundary and the equity picture.
//
//   - botview_ticks_total{loop,outcome}          ok|failed|stale
//   - botview_ticks_skipped_total{loop}          ticks dropped while one was in flight
//   - botview_service_requests_total{op,outcome} ok|error
//   - botview_service_request_seconds{op}
//   - botview_replay_index
//   - botview_equity{mode}, botview_pnl{mode}
//   - botview_running{mode}                      1 while the mode's loop runs
//
// Collectors register in init() and are served at /metrics.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
)

var (
	ticks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "botview_ticks_total",
			Help: "Completed loop ticks by outcome",
		},
		[]string{"loop", "outcome"},
	)

	ticksSkipped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "botview_ticks_skipped_total",
			Help: "Ticks skipped because the previous tick was still running",
		},
		[]string{"loop"},
	)

	requests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "botview_service_requests_total",
			Help: "Calls to the trading service by outcome",
		},
		[]string{"op", "outcome"},
	)

	requestSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "botview_service_request_seconds",
			Help:    "Latency of calls to the trading service",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"op"},
	)

	replayIndex = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "botview_replay_index",
			Help: "Last replay index reported by the service",
		},
	)

	equityGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "botview_equity",
			Help: "Current total equity",
		},
		[]string{"mode"},
	)

	pnlGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "botview_pnl",
			Help: "Equity minus baseline; absent until a baseline exists",
		},
		[]string{"mode"},
	)

	running = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "botview_running",
			Help: "1 while the mode's polling loop runs",
		},
		[]string{"mode"},
	)
)

func init() {
	prometheus.MustRegister(ticks, ticksSkipped)
	prometheus.MustRegister(requests, requestSeconds)
	prometheus.MustRegister(replayIndex, equityGauge, pnlGauge, running)
}

func Handler() http.Handler { return promhttp.Handler() }

func Tick(loop, outcome string) { ticks.WithLabelValues(loop, outcome).Inc() }

func TickSkipped(loop string) { ticksSkipped.WithLabelValues(loop).Inc() }

func Request(op string, err error, d time.Duration) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	requests.WithLabelValues(op, outcome).Inc()
	requestSeconds.WithLabelValues(op).Observe(d.Seconds())
}

func ReplayIndex(i int) { replayIndex.Set(float64(i)) }

func Equity(mode string, equity decimal.Decimal, pnl decimal.NullDecimal) {
	equityGauge.WithLabelValues(mode).Set(equity.InexactFloat64())
	if pnl.Valid {
		pnlGauge.WithLabelValues(mode).Set(pnl.Decimal.InexactFloat64())
	} else {
		pnlGauge.DeleteLabelValues(mode)
	}
}

func Running(mode string, on bool) {
	v := 0.0
	if on {
		v = 1
	}
	running.WithLabelValues(mode).Set(v)
}
