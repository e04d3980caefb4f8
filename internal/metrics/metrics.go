package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	Ticks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alertbot_ticks_total",
			Help: "Total number of trigger loop ticks",
		},
		[]string{"status"}, // status: ok|idle|error
	)

	TickDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "alertbot_tick_duration_seconds",
			Help:    "Trigger loop tick duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		},
	)

	PriceFetchErrors = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "alertbot_price_fetch_errors_total",
			Help: "Price table fetches that failed or timed out",
		},
	)

	AlertsCreated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "alertbot_alerts_created_total",
			Help: "Alerts registered through the chat",
		},
	)

	AlertsTriggered = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "alertbot_alerts_triggered_total",
			Help: "Alerts that crossed their threshold and were removed",
		},
	)

	NotifyErrors = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "alertbot_notify_errors_total",
			Help: "Notifications that could not be delivered",
		},
	)

	ActiveAlerts = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "alertbot_active_alerts",
			Help: "Alerts currently waiting for a crossing",
		},
	)

	CatalogSymbols = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "alertbot_catalog_symbols",
			Help: "Symbols known to the catalog",
		},
	)
)

func init() {
	prometheus.MustRegister(
		Ticks,
		TickDuration,
		PriceFetchErrors,
		AlertsCreated,
		AlertsTriggered,
		NotifyErrors,
		ActiveAlerts,
		CatalogSymbols,
	)
}

func Handler() http.Handler {
	return promhttp.Handler()
}
