// Prometheus metrics for the scan loop, registered in init() and served
// at /metrics by the status API:
//   - scout_ticks_total                      scan ticks completed
//   - scout_decisions_total{strategy,outcome} condition evaluations by result
//   - scout_ideas_total                      trade ideas generated
//   - scout_orders_placed_total              orders accepted by the broker
//   - scout_admission_denials_total{code}    admission denials by code
//   - scout_scan_errors_total                per-symbol scan failures
//   - scout_open_positions                   tracked open positions (gauge)
package monitoring

import "github.com/prometheus/client_golang/prometheus"

var (
	metricTicks = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "scout_ticks_total",
			Help: "Scan ticks completed",
		},
	)

	metricDecisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scout_decisions_total",
			Help: "Condition evaluations by strategy and outcome",
		},
		[]string{"strategy", "outcome"},
	)

	metricIdeas = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "scout_ideas_total",
			Help: "Trade ideas generated",
		},
	)

	metricOrders = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "scout_orders_placed_total",
			Help: "Orders accepted by the broker",
		},
	)

	metricDenials = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scout_admission_denials_total",
			Help: "Admission denials by code",
		},
		[]string{"code"},
	)

	metricScanErrors = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "scout_scan_errors_total",
			Help: "Per-symbol scan failures",
		},
	)

	metricOpenPositions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "scout_open_positions",
			Help: "Tracked open positions",
		},
	)
)

func init() {
	prometheus.MustRegister(metricTicks, metricDecisions, metricIdeas)
	prometheus.MustRegister(metricOrders, metricDenials, metricScanErrors)
	prometheus.MustRegister(metricOpenPositions)
}
