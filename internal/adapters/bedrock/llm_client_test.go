package bedrock

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/aws/smithy-go"
	"go.uber.org/zap"

	"github.com/mikey/mail-threat-classifier/internal/adapters/prompt"
	"github.com/mikey/mail-threat-classifier/internal/core"
	"github.com/mikey/mail-threat-classifier/internal/utils"
)

type fakeInvoker struct {
	body    []byte
	err     error
	payload map[string]any
}

func (f *fakeInvoker) InvokeModel(ctx context.Context, in *bedrockruntime.InvokeModelInput, _ ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error) {
	if err := json.Unmarshal(in.Body, &f.payload); err != nil {
		return nil, err
	}
	if f.err != nil {
		return nil, f.err
	}
	return &bedrockruntime.InvokeModelOutput{Body: f.body}, nil
}

func newClient(inv ModelInvoker, modelID string) *BedrockClient {
	return NewBedrockClient(inv, modelID, 300, 0.1, 0.9,
		prompt.NewBuilder(utils.NewTextProcessor(zap.NewNop()), 500), zap.NewNop())
}

var req = &core.ClassificationRequest{Subject: "Hi", Sender: "a@example.com", Content: "Lunch?"}

func TestClassifyEmailClaude(t *testing.T) {
	inv := &fakeInvoker{body: []byte(`{"content":[{"type":"text","text":"{\"classification\":\"legitimate\",\"threat_level\":\"low\",\"confidence\":0.9}"}]}`)}
	c := newClient(inv, "anthropic.claude-3-haiku-20240307-v1:0")

	v, err := c.ClassifyEmail(context.Background(), req)
	if err != nil {
		t.Fatalf("ClassifyEmail() error = %v", err)
	}
	if v.Classification != core.ClassificationLegitimate || v.Confidence != 0.9 {
		t.Errorf("verdict = %+v", v)
	}
	if inv.payload["anthropic_version"] != anthropicVersion {
		t.Errorf("payload = %v", inv.payload)
	}
}

func TestClassifyEmailTitan(t *testing.T) {
	inv := &fakeInvoker{body: []byte(`{"results":[{"outputText":"{\"classification\":\"scam\",\"threat_level\":\"medium\",\"confidence\":0.7}"}]}`)}
	c := newClient(inv, "amazon.titan-text-express-v1")

	v, err := c.ClassifyEmail(context.Background(), req)
	if err != nil {
		t.Fatalf("ClassifyEmail() error = %v", err)
	}
	if v.Classification != core.ClassificationScam {
		t.Errorf("classification = %s", v.Classification)
	}
	if _, ok := inv.payload["textGenerationConfig"]; !ok {
		t.Errorf("payload = %v", inv.payload)
	}
}

func TestClassifyEmailErrors(t *testing.T) {
	tests := []struct {
		name string
		inv  *fakeInvoker
		want error
	}{
		{"throttled", &fakeInvoker{err: &types.ThrottlingException{Message: ptr("slow down")}}, core.ErrTransientUpstream},
		{"unavailable", &fakeInvoker{err: &types.ServiceUnavailableException{}}, core.ErrTransientUpstream},
		{"access denied", &fakeInvoker{err: &types.AccessDeniedException{}}, core.ErrUpstreamRejected},
		{"generic api error", &fakeInvoker{err: &smithy.GenericAPIError{Code: "ValidationException"}}, core.ErrUpstreamRejected},
		{"transport", &fakeInvoker{err: errors.New("dial tcp: i/o timeout")}, core.ErrTransientUpstream},
		{"empty claude content", &fakeInvoker{body: []byte(`{"content":[]}`)}, core.ErrMalformedResponse},
		{"claude prose", &fakeInvoker{body: []byte(`{"content":[{"type":"text","text":"not sure"}]}`)}, core.ErrMalformedResponse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newClient(tt.inv, "anthropic.claude-3-haiku-20240307-v1:0")
			_, err := c.ClassifyEmail(context.Background(), req)
			if !errors.Is(err, tt.want) {
				t.Errorf("error = %v, want %v", err, tt.want)
			}
		})
	}
}

func ptr(s string) *string { return &s }
