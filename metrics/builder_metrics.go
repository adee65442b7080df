package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

const workflowLabel = "workflow"

// BuilderMetrics holds the metrics reported by workflow builders.
// One BuilderMetrics may be shared by many builders; series are keyed by
// workflow name.
type BuilderMetrics struct {
	added      CounterVec
	rejected   CounterVec
	registered GaugeVec
}

// NewBuilderMetrics creates and registers the builder metrics with r.
func NewBuilderMetrics(r Registry) (*BuilderMetrics, error) {
	labels := []string{workflowLabel}

	added, err := r.NewCounterVec(prometheus.CounterOpts{
		Name: "tasks_added_total",
		Help: "Number of tasks admitted by a workflow builder.",
	}, labels)
	if err != nil {
		return nil, fmt.Errorf("creating added counter: %w", err)
	}

	rejected, err := r.NewCounterVec(prometheus.CounterOpts{
		Name: "tasks_rejected_total",
		Help: "Number of tasks rejected because of an invalid scope.",
	}, labels)
	if err != nil {
		return nil, fmt.Errorf("creating rejected counter: %w", err)
	}

	registered, err := r.NewGaugeVec(prometheus.GaugeOpts{
		Name: "tasks_registered",
		Help: "Number of tasks currently held by a workflow builder.",
	}, labels)
	if err != nil {
		return nil, fmt.Errorf("creating registered gauge: %w", err)
	}

	return &BuilderMetrics{
		added:      added,
		rejected:   rejected,
		registered: registered,
	}, nil
}

// TaskAdded records an admitted task; count is the builder's task count after the add.
func (m *BuilderMetrics) TaskAdded(workflow string, count int) {
	labels := prometheus.Labels{workflowLabel: workflow}
	m.added.With(labels).Inc()
	m.registered.With(labels).Set(float64(count))
}

// TaskRejected records a task rejected by the admission rule.
func (m *BuilderMetrics) TaskRejected(workflow string) {
	m.rejected.With(prometheus.Labels{workflowLabel: workflow}).Inc()
}
