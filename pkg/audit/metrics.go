package audit

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus counters of the engine.
type Metrics struct {
	Events  *prometheus.CounterVec
	Lines   *prometheus.CounterVec
	Ignored *prometheus.CounterVec
	Vetoes  prometheus.Counter
}

// NewMetrics creates the counters and registers them with reg.
// A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Events: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "audittrail_events_total",
			Help: "Events dispatched to an audit handler",
		}, []string{"kind"}),
		Lines: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "audittrail_lines_total",
			Help: "Audit lines written to the sink",
		}, []string{"kind"}),
		Ignored: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "audittrail_ignored_total",
			Help: "Events ignored because the record is outside the primary store",
		}, []string{"kind"}),
		Vetoes: factory.NewCounter(prometheus.CounterOpts{
			Name: "audittrail_vetoes_total",
			Help: "Creations cancelled by the duplicate-name guard",
		}),
	}
}
