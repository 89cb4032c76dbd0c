// Package metrics exposes classification counters to Prometheus.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mikey/mail-threat-classifier/internal/core"
)

// Recorder counts verdicts, remote attempts and batch items
type Recorder struct {
	registry         *prometheus.Registry
	verdicts         *prometheus.CounterVec
	externalAttempts *prometheus.CounterVec
	batchItems       *prometheus.CounterVec
}

// NewRecorder registers the classifier collectors on registry. A nil registry
// gets a fresh one.
func NewRecorder(registry *prometheus.Registry) (*Recorder, error) {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	r := &Recorder{
		registry: registry,
		verdicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "threat_classifier_verdicts_total",
			Help: "Total number of verdicts produced",
		}, []string{"classification", "provenance"}),
		externalAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "threat_classifier_external_attempts_total",
			Help: "Total number of remote classifier attempts by outcome",
		}, []string{"outcome"}),
		batchItems: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "threat_classifier_batch_items_total",
			Help: "Total number of batch items by status",
		}, []string{"status"}),
	}
	for _, c := range []prometheus.Collector{r.verdicts, r.externalAttempts, r.batchItems} {
		if err := registry.Register(c); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// ObserveVerdict counts one verdict
func (r *Recorder) ObserveVerdict(v *core.Verdict, provenance core.Provenance) {
	r.verdicts.WithLabelValues(string(v.Classification), string(provenance)).Inc()
}

// ObserveExternalAttempt counts one remote attempt outcome
func (r *Recorder) ObserveExternalAttempt(outcome string) {
	r.externalAttempts.WithLabelValues(outcome).Inc()
}

// ObserveBatchItem counts one batch item
func (r *Recorder) ObserveBatchItem(status string) {
	r.batchItems.WithLabelValues(status).Inc()
}

// Handler serves the registry in the Prometheus exposition format
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}
