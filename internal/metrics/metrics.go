package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the gateway's counters. The matching core itself never
// touches them; they are fed from the gateway's callback sink.
type Metrics struct {
	registry *prometheus.Registry

	OrdersAccepted prometheus.Counter
	OrdersRejected prometheus.Counter
	Trades         prometheus.Counter
	MatchedVolume  prometheus.Counter
	Sessions       prometheus.Gauge
}

func New() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,
		OrdersAccepted: factory.NewCounter(prometheus.CounterOpts{
			Name: "kestrel_orders_accepted_total",
			Help: "Orders admitted by the engine.",
		}),
		OrdersRejected: factory.NewCounter(prometheus.CounterOpts{
			Name: "kestrel_orders_rejected_total",
			Help: "Orders refused by validation or policy.",
		}),
		Trades: factory.NewCounter(prometheus.CounterOpts{
			Name: "kestrel_trades_total",
			Help: "Executions reported by the engine.",
		}),
		MatchedVolume: factory.NewCounter(prometheus.CounterOpts{
			Name: "kestrel_matched_volume_total",
			Help: "Total quantity matched.",
		}),
		Sessions: factory.NewGauge(prometheus.GaugeOpts{
			Name: "kestrel_sessions",
			Help: "Connected client sessions.",
		}),
	}
}

// Handler serves the registry in Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
