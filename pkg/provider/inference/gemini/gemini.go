// Package gemini implements the inference.Provider and inference.FileStore
// interfaces on top of the Google Gemini API (google.golang.org/genai).
//
// The provider owns an ordered set of API credentials and survives
// per-credential rate limits by rotating cyclically through them: a
// quota-class failure advances the cursor and retries the same request, at
// most once per configured credential. The cursor is guarded by its own
// lock so rotation never contends with unrelated state.
package gemini

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"google.golang.org/genai"

	"github.com/lumina-live/lumina/pkg/provider/inference"
)

// Compile-time assertions that Provider satisfies the inference interfaces.
var _ inference.Provider = (*Provider)(nil)
var _ inference.FileStore = (*Provider)(nil)

// DefaultModel is the Gemini model used when none is configured.
const DefaultModel = "gemini-3-flash-preview"

// ── Options ────────────────────────────────────────────────────────────────────

// Option is a functional option for configuring a Provider.
type Option func(*Provider)

// WithModel sets the Gemini model used for all requests.
func WithModel(model string) Option {
	return func(p *Provider) {
		if model != "" {
			p.model = model
		}
	}
}

// WithBaseURL overrides the base API URL. Primarily used in tests to point
// at a local mock server.
func WithBaseURL(url string) Option {
	return func(p *Provider) { p.baseURL = url }
}

// WithRotationHook registers fn to be called after every credential
// rotation with the new cursor position. Used to feed rotation counters.
func WithRotationHook(fn func(cursor int)) Option {
	return func(p *Provider) { p.onRotate = fn }
}

// ── Provider ───────────────────────────────────────────────────────────────────

// Provider implements inference.Provider for the Google Gemini API.
type Provider struct {
	ring     *keyring
	model    string
	baseURL  string
	onRotate func(cursor int)

	// clients holds one genai client per credential, indexed in keyring order.
	clients []*genai.Client
}

// New creates a Provider with the given ordered credential list. An empty
// list is a startup-fatal configuration error ([inference.ErrNoCredentials]).
func New(ctx context.Context, apiKeys []string, opts ...Option) (*Provider, error) {
	keys := make([]string, 0, len(apiKeys))
	for _, k := range apiKeys {
		if k = strings.TrimSpace(k); k != "" {
			keys = append(keys, k)
		}
	}
	if len(keys) == 0 {
		return nil, inference.ErrNoCredentials
	}

	p := &Provider{
		ring:  newKeyring(keys),
		model: DefaultModel,
	}
	for _, o := range opts {
		o(p)
	}

	p.clients = make([]*genai.Client, len(keys))
	for i, key := range keys {
		cc := &genai.ClientConfig{
			APIKey:  key,
			Backend: genai.BackendGeminiAPI,
		}
		if p.baseURL != "" {
			cc.HTTPOptions.BaseURL = p.baseURL
		}
		client, err := genai.NewClient(ctx, cc)
		if err != nil {
			return nil, fmt.Errorf("gemini: create client for credential %d: %w", i+1, err)
		}
		p.clients[i] = client
	}

	slog.Info("gemini provider ready", "model", p.model, "credentials", len(keys))
	return p, nil
}

// Name implements inference.Provider.
func (p *Provider) Name() string { return "gemini" }

// client returns the genai client selected by the current cursor position.
func (p *Provider) client() *genai.Client {
	idx, _ := p.ring.current()
	return p.clients[idx]
}

// Cursor exposes the current credential index for observability and tests.
func (p *Provider) Cursor() int {
	idx, _ := p.ring.current()
	return idx
}

// rotate advances the credential cursor and fires the rotation hook.
func (p *Provider) rotate() bool {
	if !p.ring.rotate() {
		return false
	}
	if p.onRotate != nil {
		p.onRotate(p.Cursor())
	}
	return true
}

// withRotation runs fn against the current credential, rotating on
// quota-class failures. At most one attempt is made per configured
// credential, and the cursor only advances between attempts: after a full
// exhausted cycle it rests on the last credential tried, not back where it
// started. The last failure is surfaced, classified, as terminal for this
// call.
func (p *Provider) withRotation(fn func(client *genai.Client) error) error {
	var lastErr error
	for attempt := 0; attempt < p.ring.size(); attempt++ {
		err := fn(p.client())
		if err == nil {
			return nil
		}
		lastErr = err
		if !isQuotaErr(err) {
			break
		}
		if attempt+1 == p.ring.size() {
			break
		}
		if !p.rotate() {
			break
		}
		slog.Warn("gemini quota reached, rotated credential",
			"cursor", p.Cursor(), "attempt", attempt+1)
	}
	return classifyErr(lastErr)
}

// buildContents converts an inference.Request into genai content parts.
func (p *Provider) buildContents(req inference.Request) []*genai.Content {
	parts := []*genai.Part{genai.NewPartFromText(req.Prompt)}
	if req.Attachment != nil {
		parts = append(parts, genai.NewPartFromBytes(req.Attachment.Data, req.Attachment.MIMEType))
	}
	if req.File != nil {
		parts = append(parts, genai.NewPartFromURI(req.File.URI, req.File.MIMEType))
	}
	return []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}
}

// buildConfig returns the generation config for a request, or nil when the
// defaults suffice.
func buildConfig(req inference.Request) *genai.GenerateContentConfig {
	if !req.JSONOutput {
		return nil
	}
	return &genai.GenerateContentConfig{ResponseMIMEType: "application/json"}
}

// Generate implements inference.Provider.
func (p *Provider) Generate(ctx context.Context, req inference.Request) (string, error) {
	contents := p.buildContents(req)
	cfg := buildConfig(req)

	var text string
	err := p.withRotation(func(client *genai.Client) error {
		resp, err := client.Models.GenerateContent(ctx, p.model, contents, cfg)
		if err != nil {
			return err
		}
		text = strings.TrimSpace(resp.Text())
		return nil
	})
	if err != nil {
		return "", err
	}
	return text, nil
}

// GenerateStream implements inference.Provider. Fragments are delivered in
// API order on the returned channel. A quota failure before the first
// fragment rotates credentials and restarts the request; a failure after
// text has been emitted is terminal, because the stream is not restartable
// without duplicating output.
func (p *Provider) GenerateStream(ctx context.Context, req inference.Request) (<-chan inference.Chunk, error) {
	contents := p.buildContents(req)
	cfg := buildConfig(req)

	out := make(chan inference.Chunk, 16)
	go func() {
		defer close(out)

		attempts := p.ring.size()
		for attempt := 0; attempt < attempts; attempt++ {
			emitted := false
			var streamErr error

			for resp, err := range p.client().Models.GenerateContentStream(ctx, p.model, contents, cfg) {
				if err != nil {
					streamErr = err
					break
				}
				text := resp.Text()
				if text == "" {
					continue
				}
				emitted = true
				select {
				case out <- inference.Chunk{Text: text}:
				case <-ctx.Done():
					return
				}
			}

			if streamErr == nil {
				return
			}
			if !emitted && isQuotaErr(streamErr) {
				if attempt+1 < attempts && p.rotate() {
					slog.Warn("gemini quota reached before stream start, rotated credential",
						"cursor", p.Cursor())
					continue
				}
				streamErr = &inference.TransientError{
					Kind: inference.KindQuota,
					Err:  fmt.Errorf("gemini: all %d credentials exhausted: %w", attempts, streamErr),
				}
			}

			select {
			case out <- inference.Chunk{Err: classifyErr(streamErr)}:
			case <-ctx.Done():
			}
			return
		}
	}()

	return out, nil
}
