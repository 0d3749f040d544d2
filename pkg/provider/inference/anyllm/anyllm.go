// Package anyllm provides a text-only inference provider backed by
// github.com/mozilla-ai/any-llm-go, a unified multi-provider interface that
// supports OpenAI, Anthropic, Gemini, Ollama, DeepSeek, Mistral, Groq, and
// more.
//
// The provider handles classification, extraction, and analytical requests
// but cannot ingest media: requests carrying an attachment or file handle
// fail with [inference.ErrMediaUnsupported], so file transcription requires
// a multimodal provider such as gemini.
//
// Usage:
//
//	p, err := anyllm.New("openai", "gpt-4o-mini", anyllmlib.WithAPIKey("sk-..."))
package anyllm

import (
	"context"
	"fmt"
	"strings"

	anyllmlib "github.com/mozilla-ai/any-llm-go"
	"github.com/mozilla-ai/any-llm-go/providers/anthropic"
	"github.com/mozilla-ai/any-llm-go/providers/deepseek"
	"github.com/mozilla-ai/any-llm-go/providers/gemini"
	"github.com/mozilla-ai/any-llm-go/providers/groq"
	"github.com/mozilla-ai/any-llm-go/providers/mistral"
	"github.com/mozilla-ai/any-llm-go/providers/ollama"
	anyllmoai "github.com/mozilla-ai/any-llm-go/providers/openai"

	"github.com/lumina-live/lumina/pkg/provider/inference"
)

// jsonInstruction enforces structured output on backends without a native
// structured-output flag.
const jsonInstruction = "Respond with a single valid JSON object and nothing else. No prose, no code fences."

// Compile-time assertion that Provider satisfies inference.Provider.
var _ inference.Provider = (*Provider)(nil)

// Provider implements inference.Provider by wrapping any-llm-go.
type Provider struct {
	backend anyllmlib.Provider
	name    string
	model   string
}

// New creates a Provider backed by the given backend name, one of:
// "openai", "anthropic", "gemini", "ollama", "deepseek", "mistral", "groq".
// If no API key option is provided, the backend falls back to its usual
// environment variable (OPENAI_API_KEY, ANTHROPIC_API_KEY, ...).
func New(backendName, model string, opts ...anyllmlib.Option) (*Provider, error) {
	if backendName == "" {
		return nil, fmt.Errorf("anyllm: backendName must not be empty")
	}
	if model == "" {
		return nil, fmt.Errorf("anyllm: model must not be empty")
	}

	backend, err := createBackend(backendName, opts...)
	if err != nil {
		return nil, fmt.Errorf("anyllm: create %q backend: %w", backendName, err)
	}
	return &Provider{backend: backend, name: "anyllm/" + backendName, model: model}, nil
}

// createBackend creates the underlying any-llm-go provider.
func createBackend(backendName string, opts ...anyllmlib.Option) (anyllmlib.Provider, error) {
	switch strings.ToLower(backendName) {
	case "openai":
		return anyllmoai.New(opts...)
	case "anthropic":
		return anthropic.New(opts...)
	case "gemini":
		return gemini.New(opts...)
	case "ollama":
		return ollama.New(opts...)
	case "deepseek":
		return deepseek.New(opts...)
	case "mistral":
		return mistral.New(opts...)
	case "groq":
		return groq.New(opts...)
	default:
		return nil, fmt.Errorf("unsupported backend %q; supported: openai, anthropic, gemini, ollama, deepseek, mistral, groq", backendName)
	}
}

// Name implements inference.Provider.
func (p *Provider) Name() string { return p.name }

// buildParams converts an inference.Request into any-llm CompletionParams.
func (p *Provider) buildParams(req inference.Request) anyllmlib.CompletionParams {
	var messages []anyllmlib.Message
	if req.JSONOutput {
		messages = append(messages, anyllmlib.Message{
			Role:    anyllmlib.RoleSystem,
			Content: jsonInstruction,
		})
	}
	messages = append(messages, anyllmlib.Message{
		Role:    anyllmlib.RoleUser,
		Content: req.Prompt,
	})
	return anyllmlib.CompletionParams{
		Model:    p.model,
		Messages: messages,
	}
}

// Generate implements inference.Provider.
func (p *Provider) Generate(ctx context.Context, req inference.Request) (string, error) {
	if req.Attachment != nil || req.File != nil {
		return "", inference.ErrMediaUnsupported
	}

	resp, err := p.backend.Completion(ctx, p.buildParams(req))
	if err != nil {
		return "", classifyErr(err)
	}
	if len(resp.Choices) == 0 {
		return "", &inference.PermanentError{Err: fmt.Errorf("anyllm: empty choices in response")}
	}
	return strings.TrimSpace(resp.Choices[0].Message.ContentString()), nil
}

// GenerateStream implements inference.Provider.
func (p *Provider) GenerateStream(ctx context.Context, req inference.Request) (<-chan inference.Chunk, error) {
	if req.Attachment != nil || req.File != nil {
		return nil, inference.ErrMediaUnsupported
	}

	backendChunks, backendErrs := p.backend.CompletionStream(ctx, p.buildParams(req))

	out := make(chan inference.Chunk, 16)
	go func() {
		defer close(out)

		for chunk := range backendChunks {
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

		if err := <-backendErrs; err != nil {
			select {
			case out <- inference.Chunk{Err: classifyErr(err)}:
			case <-ctx.Done():
			}
		}
	}()

	return out, nil
}

// classifyErr maps any-llm backend errors onto the inference taxonomy using
// the response text, since any-llm normalises provider errors to strings.
func classifyErr(err error) error {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "429"), strings.Contains(msg, "quota"),
		strings.Contains(msg, "rate limit"):
		return &inference.TransientError{Kind: inference.KindQuota, Err: err}
	case strings.Contains(msg, "connection"), strings.Contains(msg, "timeout"),
		strings.Contains(msg, "no such host"):
		return &inference.TransientError{Kind: inference.KindNetwork, Err: err}
	default:
		return &inference.PermanentError{Err: err}
	}
}
