package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/mikey/mail-threat-classifier/internal/batch"
	"github.com/mikey/mail-threat-classifier/internal/core"
	"github.com/mikey/mail-threat-classifier/internal/engine"
	"github.com/mikey/mail-threat-classifier/internal/metrics"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	logger := zap.NewNop()
	recorder, err := metrics.NewRecorder(nil)
	if err != nil {
		t.Fatalf("NewRecorder() error = %v", err)
	}
	svc := core.NewClassifierService(engine.NewDefaultEngine(logger), nil, nil, recorder, logger, core.ServiceOptions{})
	coord := batch.NewCoordinator(svc, nil, recorder, logger, batch.Options{Concurrency: 2})

	ts := httptest.NewServer(New(svc, coord, recorder.Handler(), logger).Routes())
	t.Cleanup(ts.Close)
	return ts
}

func post(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST %s error = %v", url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestClassify(t *testing.T) {
	ts := newTestServer(t)

	resp := post(t, ts.URL+"/v1/classify", `{
		"subject": "Your Account Has Been Suspended",
		"sender": "secure-update@paypa1.com",
		"content": "Verify your identity immediately or lose access. Click here now."
	}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var got map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decode error = %v", err)
	}
	if got["classification"] != "phishing" || got["threat_level"] != "high" || got["provenance"] != "local" {
		t.Errorf("response = %v", got)
	}
	if _, ok := got["keywords"].([]any); !ok {
		t.Errorf("keywords missing from response: %v", got)
	}
}

func TestClassifyBadRequests(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		name string
		path string
		body string
	}{
		{"missing sender", "/v1/classify", `{"subject":"hi"}`},
		{"broken json", "/v1/classify", `{"subject":`},
		{"batch without items", "/v1/classify/batch", `{"emails":[]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := post(t, ts.URL+tt.path, tt.body)
			if resp.StatusCode != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", resp.StatusCode)
			}
		})
	}
}

func TestClassifyBatch(t *testing.T) {
	ts := newTestServer(t)

	body, _ := json.Marshal(map[string]any{"items": []core.ClassificationRequest{
		{Subject: "Weekly Team Meeting Notes", Sender: "manager@yourcompany.com", Content: "Please review the agenda."},
		{Subject: "No sender"},
		{Subject: "Win a FREE prize", Sender: "promo@deals.tk", Content: "Act now, limited time offer!"},
	}})
	resp := post(t, ts.URL+"/v1/classify/batch", string(body))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var got core.BatchResult
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decode error = %v", err)
	}
	if got.Processed != 2 || got.Skipped != 1 || got.Total != 3 || len(got.Results) != 2 {
		t.Errorf("batch result = %+v", got)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	ts := newTestServer(t)
	post(t, ts.URL+"/v1/classify", `{"subject":"Hello","sender":"a@b.com","content":"hi"}`)

	for _, path := range []string{"/healthz", "/metrics"} {
		resp, err := http.Get(ts.URL + path)
		if err != nil {
			t.Fatalf("GET %s error = %v", path, err)
		}
		var buf bytes.Buffer
		_, _ = buf.ReadFrom(resp.Body)
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("GET %s status = %d", path, resp.StatusCode)
		}
		if path == "/metrics" && !strings.Contains(buf.String(), "threat_classifier_verdicts_total") {
			t.Errorf("metrics output missing verdict counter")
		}
	}
}
