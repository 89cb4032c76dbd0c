package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/mikey/mail-threat-classifier/internal/adapters/prompt"
	"github.com/mikey/mail-threat-classifier/internal/core"
	"github.com/mikey/mail-threat-classifier/internal/utils"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *OpenAIClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := openai.DefaultConfig("test-key")
	cfg.BaseURL = srv.URL + "/v1"
	return NewOpenAIClient(
		openai.NewClientWithConfig(cfg),
		"test-model",
		200,
		0.1,
		0.9,
		prompt.NewBuilder(utils.NewTextProcessor(zap.NewNop()), 1000),
		zap.NewNop(),
	)
}

func chatResponse(content string) map[string]any {
	return map[string]any{
		"id":     "chatcmpl-1",
		"object": "chat.completion",
		"model":  "test-model",
		"choices": []map[string]any{{
			"index":         0,
			"message":       map[string]string{"role": "assistant", "content": content},
			"finish_reason": "stop",
		}},
	}
}

var request = &core.ClassificationRequest{
	Subject: "Your Account Has Been Suspended",
	Sender:  "secure-update@paypa1.com",
	Content: "Verify your identity immediately.",
}

func TestClassifyEmail(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			http.NotFound(w, r)
			return
		}
		var body openai.ChatCompletionRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Model != "test-model" || len(body.Messages) != 2 {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(chatResponse(
			`{"classification":"phishing","threat_level":"high","confidence":0.95,"keywords":["verify"],"reasoning":"spoofed"}`))
	})

	v, err := client.ClassifyEmail(context.Background(), request)
	if err != nil {
		t.Fatalf("ClassifyEmail() error = %v", err)
	}
	if v.Classification != core.ClassificationPhishing || v.Confidence != 0.95 {
		t.Errorf("verdict = %+v", v)
	}
	if client.Model() != "test-model" {
		t.Errorf("Model() = %q", client.Model())
	}
}

func TestClassifyEmailErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		content string
		want    error
	}{
		{"rate limited", http.StatusTooManyRequests, "", core.ErrTransientUpstream},
		{"unauthorized", http.StatusUnauthorized, "", core.ErrUpstreamRejected},
		{"server error", http.StatusInternalServerError, "", core.ErrUpstreamRejected},
		{"not json", http.StatusOK, "I think this is spam", core.ErrMalformedResponse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				if tt.status != http.StatusOK {
					w.WriteHeader(tt.status)
					json.NewEncoder(w).Encode(map[string]any{
						"error": map[string]string{"message": tt.name, "type": "test_error"},
					})
					return
				}
				json.NewEncoder(w).Encode(chatResponse(tt.content))
			})

			_, err := client.ClassifyEmail(context.Background(), request)
			if !errors.Is(err, tt.want) {
				t.Errorf("error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestClassifyEmailConnectionFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	cfg := openai.DefaultConfig("k")
	cfg.BaseURL = url + "/v1"
	client := NewOpenAIClient(openai.NewClientWithConfig(cfg), "m", 10, 0, 1,
		prompt.NewBuilder(utils.NewTextProcessor(nil), 100), zap.NewNop())

	_, err := client.ClassifyEmail(context.Background(), request)
	if !errors.Is(err, core.ErrTransientUpstream) {
		t.Errorf("error = %v, want ErrTransientUpstream", err)
	}
}
