package metrics

import (
	"strconv"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(
		fleetBots,
		fleetReconciliationsTotal,
		fleetFullSyncsTotal,
		fleetFeedReconnectsTotal,
		fleetSendsTotal,
		fleetSendLatencyMs,
		fleetRateLimitTriggeredTotal,
	)
}

var (
	fleetBots = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "fleet_bots",
			Help: "Current number of pooled bots by status.",
		},
		[]string{"status"},
	)

	fleetReconciliationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fleet_reconciliations_total",
			Help: "Reconciliation outcomes by action (added/updated/removed/noop/error).",
		},
		[]string{"action"},
	)

	fleetFullSyncsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fleet_full_syncs_total",
			Help: "Full resynchronizations against the credential store by result.",
		},
		[]string{"success"},
	)

	fleetFeedReconnectsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "fleet_feed_reconnects_total",
			Help: "Times the change feed watcher had to reconnect.",
		},
	)

	fleetSendsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fleet_sends_total",
			Help: "Outbound message sends by result (ok/unavailable/rate_limited/failed).",
		},
		[]string{"result"},
	)

	fleetSendLatencyMs = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "fleet_send_latency_ms",
			Help:    "Outbound send latency distribution in milliseconds.",
			Buckets: []float64{10, 25, 50, 100, 200, 400, 800, 1600, 3000, 5000},
		},
	)

	fleetRateLimitTriggeredTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "fleet_rate_limit_triggered_total",
			Help: "Total number of times a customer send was rate-limited.",
		},
	)
)

func norm(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

func SetBots(status string, n int) {
	fleetBots.WithLabelValues(norm(status)).Set(float64(n))
}

func IncReconciliation(action string) {
	fleetReconciliationsTotal.WithLabelValues(norm(action)).Inc()
}

func IncFullSync(success bool) {
	fleetFullSyncsTotal.WithLabelValues(strconv.FormatBool(success)).Inc()
}

func IncFeedReconnect() {
	fleetFeedReconnectsTotal.Inc()
}

func ObserveSend(result string, latencyMs int) {
	fleetSendsTotal.WithLabelValues(norm(result)).Inc()
	fleetSendLatencyMs.Observe(float64(latencyMs))
}

func IncRateLimitTriggered() {
	fleetRateLimitTriggeredTotal.Inc()
}
