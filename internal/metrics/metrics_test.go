package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/mikey/mail-threat-classifier/internal/core"
)

func TestRecorderExposesCounters(t *testing.T) {
	r, err := NewRecorder(nil)
	if err != nil {
		t.Fatalf("NewRecorder() error = %v", err)
	}

	r.ObserveVerdict(&core.Verdict{Classification: core.ClassificationPhishing}, core.ProvenanceLocal)
	r.ObserveVerdict(&core.Verdict{Classification: core.ClassificationPhishing}, core.ProvenanceLocal)
	r.ObserveExternalAttempt("retry")
	r.ObserveBatchItem("skipped")

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)

	for _, want := range []string{
		`threat_classifier_verdicts_total{classification="phishing",provenance="local"} 2`,
		`threat_classifier_external_attempts_total{outcome="retry"} 1`,
		`threat_classifier_batch_items_total{status="skipped"} 1`,
	} {
		if !strings.Contains(string(body), want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}

func TestRecorderDuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	if _, err := NewRecorder(reg); err != nil {
		t.Fatalf("first NewRecorder() error = %v", err)
	}
	if _, err := NewRecorder(reg); err == nil {
		t.Error("second NewRecorder() on the same registry succeeded, want error")
	}
}
