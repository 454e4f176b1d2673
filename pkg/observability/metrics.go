package observability

import (
	"context"
	"net/http"

	"github.com/aretw0/parley/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "parley"

// Metrics holds the conversation collectors.
type Metrics struct {
	QueueItems    *prometheus.CounterVec
	Turns         *prometheus.CounterVec
	TurnDuration  *prometheus.HistogramVec
	Cancellations prometheus.Counter
	Executions    *prometheus.CounterVec
	ExecDuration  prometheus.Histogram
	InFlight      prometheus.Gauge
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		QueueItems: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "queue_items_total",
			Help:      "Queue items taken by the conversation loop.",
		}, []string{"kind"}),
		Turns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turns_total",
			Help:      "Completed turns by item kind and outcome.",
		}, []string{"kind", "outcome"}),
		TurnDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "turn_duration_seconds",
			Help:      "Duration of a turn, including time spent waiting for answers.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
		}, []string{"kind"}),
		Cancellations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cancellations_total",
			Help:      "Turns ended by a cancellation.",
		}),
		Executions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "executions_total",
			Help:      "Statements run by the executor.",
		}, []string{"status"}),
		ExecDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "execution_duration_seconds",
			Help:      "Duration of statement execution.",
			Buckets:   prometheus.DefBuckets,
		}),
		InFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "turns_in_flight",
			Help:      "Turns currently being processed.",
		}),
	}

	for _, c := range []prometheus.Collector{
		m.QueueItems, m.Turns, m.TurnDuration, m.Cancellations, m.Executions, m.ExecDuration, m.InFlight,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Hooks returns lifecycle hooks recording into m.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnQueueItem: func(ctx context.Context, e *domain.TurnEvent) {
			m.QueueItems.WithLabelValues(e.Kind).Inc()
		},
		OnTurnStart: func(ctx context.Context, e *domain.TurnEvent) {
			m.InFlight.Inc()
		},
		OnTurnEnd: func(ctx context.Context, e *domain.TurnEvent) {
			m.InFlight.Dec()
			m.Turns.WithLabelValues(e.Kind, e.Outcome).Inc()
			m.TurnDuration.WithLabelValues(e.Kind).Observe(e.Duration.Seconds())
		},
		OnCancel: func(ctx context.Context, e *domain.TurnEvent) {
			m.Cancellations.Inc()
		},
		OnExecute: func(ctx context.Context, e *domain.ExecutionEvent) {
			status := "ok"
			if e.Err != nil || e.ErrorCode != "" {
				status = "error"
			}
			m.Executions.WithLabelValues(status).Inc()
			m.ExecDuration.Observe(e.Duration.Seconds())
		},
	}
}

// Handler serves the metrics gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
