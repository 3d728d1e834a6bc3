// Package metrics exposes Prometheus counters for tracker operations.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Update outcomes.
const (
	OutcomeSaved     = "saved"
	OutcomeNoop      = "noop"
	OutcomeRejected  = "rejected"
	OutcomeNotFound  = "not_found"
	OutcomeStoreFail = "store_error"
)

// Recorder records tracker events. A nil *Recorder is valid and records
// nothing.
type Recorder struct {
	registry    *prometheus.Registry
	updates     *prometheus.CounterVec
	stepChanges *prometheus.CounterVec
	creations   *prometheus.CounterVec
	storeErrors *prometheus.CounterVec
}

// NewRecorder creates a Recorder with its own registry, including Go runtime
// and process collectors.
func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return NewRecorderWithRegistry(reg)
}

// NewRecorderWithRegistry registers the tracker metrics on reg.
func NewRecorderWithRegistry(reg *prometheus.Registry) *Recorder {
	r := &Recorder{
		registry: reg,
		updates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tracker",
			Name:      "step_updates_total",
			Help:      "Step update requests by workflow kind and outcome.",
		}, []string{"kind", "outcome"}),
		stepChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tracker",
			Name:      "step_changes_total",
			Help:      "Individual step values written, by workflow kind and new value.",
		}, []string{"kind", "done"}),
		creations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tracker",
			Name:      "creations_total",
			Help:      "Entity creation attempts by entity and outcome.",
		}, []string{"entity", "outcome"}),
		storeErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tracker",
			Name:      "store_errors_total",
			Help:      "Document store failures by operation.",
		}, []string{"op"}),
	}
	reg.MustRegister(r.updates, r.stepChanges, r.creations, r.storeErrors)
	return r
}

// Registry returns the underlying Prometheus registry.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

// Update counts one step update request.
func (r *Recorder) Update(kind, outcome string) {
	if r == nil {
		return
	}
	r.updates.WithLabelValues(kind, outcome).Inc()
}

// StepChange counts one written step value.
func (r *Recorder) StepChange(kind string, done bool) {
	if r == nil {
		return
	}
	label := "false"
	if done {
		label = "true"
	}
	r.stepChanges.WithLabelValues(kind, label).Inc()
}

// Creation counts one creation attempt.
func (r *Recorder) Creation(entity, outcome string) {
	if r == nil {
		return
	}
	r.creations.WithLabelValues(entity, outcome).Inc()
}

// StoreError counts one failed store call.
func (r *Recorder) StoreError(op string) {
	if r == nil {
		return
	}
	r.storeErrors.WithLabelValues(op).Inc()
}
