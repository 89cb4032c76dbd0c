package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"go.uber.org/zap"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/mikey/mail-threat-classifier/internal/adapters/prompt"
	"github.com/mikey/mail-threat-classifier/internal/core"
)

// GeminiClient is an implementation of the LLMClient interface using Google Gemini
type GeminiClient struct {
	client    *genai.Client
	model     *genai.GenerativeModel
	modelName string
	prompts   *prompt.Builder
	logger    *zap.Logger
}

// NewGeminiClient creates a new Gemini client
func NewGeminiClient(
	ctx context.Context,
	apiKey string,
	modelName string,
	maxTokens int,
	temperature float32,
	topP float32,
	prompts *prompt.Builder,
	logger *zap.Logger,
) (*GeminiClient, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	model := client.GenerativeModel(modelName)
	model.SetTemperature(temperature)
	model.SetTopP(topP)
	model.SetMaxOutputTokens(int32(maxTokens))
	model.ResponseMIMEType = "application/json"
	model.SystemInstruction = genai.NewUserContent(genai.Text(prompt.SystemInstruction))

	return &GeminiClient{
		client:    client,
		model:     model,
		modelName: modelName,
		prompts:   prompts,
		logger:    logger,
	}, nil
}

// Close closes the Gemini client
func (c *GeminiClient) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

// Model returns the configured model name
func (c *GeminiClient) Model() string {
	return c.modelName
}

// ClassifyEmail asks Gemini for a verdict
func (c *GeminiClient) ClassifyEmail(ctx context.Context, req *core.ClassificationRequest) (*core.Verdict, error) {
	resp, err := c.model.GenerateContent(ctx, genai.Text(c.prompts.Build(req)))
	if err != nil {
		return nil, classifyError(err)
	}

	text := responseText(resp)
	if text == "" {
		return nil, fmt.Errorf("%w: empty response from Gemini", core.ErrMalformedResponse)
	}

	c.logger.Debug("Gemini classification received", zap.String("model", c.modelName))
	return prompt.ParseVerdict(text)
}

// responseText joins the text parts of the first candidate
func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			b.WriteString(string(t))
		}
	}
	return b.String()
}

// classifyError maps gRPC and REST errors onto the upstream error taxonomy
func classifyError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		if gerr.Code == http.StatusTooManyRequests {
			return fmt.Errorf("%w: gemini: %v", core.ErrTransientUpstream, err)
		}
		return fmt.Errorf("%w: gemini status %d: %v", core.ErrUpstreamRejected, gerr.Code, err)
	}

	st, ok := status.FromError(err)
	if !ok {
		return fmt.Errorf("%w: gemini: %v", core.ErrTransientUpstream, err)
	}
	switch st.Code() {
	case codes.ResourceExhausted, codes.Unavailable:
		return fmt.Errorf("%w: gemini %s: %v", core.ErrTransientUpstream, st.Code(), err)
	}
	return fmt.Errorf("%w: gemini %s: %v", core.ErrUpstreamRejected, st.Code(), err)
}
