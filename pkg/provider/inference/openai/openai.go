// Package openai provides a text-only inference provider backed by the
// official OpenAI Go SDK.
//
// Like the anyllm provider it cannot ingest media; requests carrying an
// attachment or file handle fail with [inference.ErrMediaUnsupported].
package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/lumina-live/lumina/pkg/provider/inference"
)

// DefaultModel is the default OpenAI chat model.
const DefaultModel = "gpt-4o-mini"

// jsonInstruction enforces structured output without relying on the
// response_format parameter, which not all proxy deployments accept.
const jsonInstruction = "Respond with a single valid JSON object and nothing else. No prose, no code fences."

// Ensure Provider implements the inference.Provider interface.
var _ inference.Provider = (*Provider)(nil)

// Provider implements inference.Provider using the OpenAI API.
type Provider struct {
	client oai.Client
	model  string
}

// config holds optional configuration for the provider.
type config struct {
	baseURL string
	timeout time.Duration
}

// Option is a functional option for Provider.
type Option func(*config)

// WithBaseURL overrides the default OpenAI API base URL.
func WithBaseURL(url string) Option {
	return func(c *config) { c.baseURL = url }
}

// WithTimeout sets a per-request HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *config) { c.timeout = d }
}

// New constructs an OpenAI inference Provider. If model is empty,
// [DefaultModel] is used.
func New(apiKey, model string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, inference.ErrNoCredentials
	}
	if model == "" {
		model = DefaultModel
	}

	cfg := &config{}
	for _, o := range opts {
		o(cfg)
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
	}
	if cfg.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.baseURL))
	}
	if cfg.timeout > 0 {
		reqOpts = append(reqOpts, option.WithHTTPClient(&http.Client{
			Timeout: cfg.timeout,
		}))
	}

	return &Provider{
		client: oai.NewClient(reqOpts...),
		model:  model,
	}, nil
}

// Name implements inference.Provider.
func (p *Provider) Name() string { return "openai" }

// buildParams converts an inference.Request into chat completion params.
func (p *Provider) buildParams(req inference.Request) oai.ChatCompletionNewParams {
	var messages []oai.ChatCompletionMessageParamUnion
	if req.JSONOutput {
		messages = append(messages, oai.SystemMessage(jsonInstruction))
	}
	messages = append(messages, oai.UserMessage(req.Prompt))

	return oai.ChatCompletionNewParams{
		Model:    oai.ChatModel(p.model),
		Messages: messages,
	}
}

// Generate implements inference.Provider.
func (p *Provider) Generate(ctx context.Context, req inference.Request) (string, error) {
	if req.Attachment != nil || req.File != nil {
		return "", inference.ErrMediaUnsupported
	}

	resp, err := p.client.Chat.Completions.New(ctx, p.buildParams(req))
	if err != nil {
		return "", classifyErr(err)
	}
	if len(resp.Choices) == 0 {
		return "", &inference.PermanentError{Err: fmt.Errorf("openai: empty choices in response")}
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// GenerateStream implements inference.Provider.
func (p *Provider) GenerateStream(ctx context.Context, req inference.Request) (<-chan inference.Chunk, error) {
	if req.Attachment != nil || req.File != nil {
		return nil, inference.ErrMediaUnsupported
	}

	stream := p.client.Chat.Completions.NewStreaming(ctx, p.buildParams(req))

	out := make(chan inference.Chunk, 16)
	go func() {
		defer close(out)
		defer stream.Close()

		for stream.Next() {
			chunk := stream.Current()
			if len(chunk.Choices) == 0 {
				continue
			}
			text := chunk.Choices[0].Delta.Content
			if text == "" {
				continue
			}
			select {
			case out <- inference.Chunk{Text: text}:
			case <-ctx.Done():
				return
			}
		}

		if err := stream.Err(); err != nil {
			select {
			case out <- inference.Chunk{Err: classifyErr(err)}:
			case <-ctx.Done():
			}
		}
	}()

	return out, nil
}

// classifyErr maps OpenAI SDK errors onto the inference taxonomy.
func classifyErr(err error) error {
	var apiErr *oai.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.StatusCode == http.StatusTooManyRequests:
			return &inference.TransientError{Kind: inference.KindQuota, Err: err}
		case apiErr.StatusCode >= 500:
			return &inference.TransientError{Kind: inference.KindNetwork, Err: err}
		default:
			return &inference.PermanentError{Err: err}
		}
	}

	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "connection") || strings.Contains(msg, "timeout") ||
		strings.Contains(msg, "no such host") {
		return &inference.TransientError{Kind: inference.KindNetwork, Err: err}
	}
	return &inference.PermanentError{Err: err}
}
