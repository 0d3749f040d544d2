// Package mock provides a test double for the inference.Provider and
// inference.FileStore interfaces.
//
// Use Provider in unit tests to feed controlled responses without a live
// backend and to verify the requests the pipeline sends. Responses can be
// fixed (GenerateResponse) or scripted per request (GenerateFunc). All
// fields are safe to set before calling any method; mutating them during a
// concurrent call is the caller's responsibility.
package mock

import (
	"context"
	"sync"

	"github.com/lumina-live/lumina/pkg/provider/inference"
)

// Compile-time assertions.
var _ inference.Provider = (*Provider)(nil)
var _ inference.FileStore = (*Provider)(nil)

// GenerateCall records a single invocation of Generate or GenerateStream.
type GenerateCall struct {
	// Req is the request passed to the call.
	Req inference.Request

	// Stream is true when the call was GenerateStream.
	Stream bool
}

// Provider is a mock implementation of inference.Provider and
// inference.FileStore. Zero values cause methods to return zero values and
// nil errors.
type Provider struct {
	mu sync.Mutex

	// --- Configurable responses ---

	// GenerateFunc, when non-nil, is consulted first for every Generate
	// call. It receives the request and returns the response text or error.
	GenerateFunc func(req inference.Request) (string, error)

	// GenerateResponse is returned by Generate when GenerateFunc is nil.
	GenerateResponse string

	// GenerateErr, if non-nil, is returned by Generate when GenerateFunc is nil.
	GenerateErr error

	// StreamChunks is the fragment sequence emitted by GenerateStream before
	// the channel closes.
	StreamChunks []inference.Chunk

	// StreamErr, if non-nil, is returned as the error from GenerateStream
	// instead of starting a channel.
	StreamErr error

	// RegisterHandle is returned by RegisterFile.
	RegisterHandle inference.FileHandle

	// RegisterErr, if non-nil, is returned by RegisterFile.
	RegisterErr error

	// StatusSequence is consumed one element per FileStatus call; when
	// exhausted, FileStatus keeps returning the last element. Empty means
	// every call reports FileActive.
	StatusSequence []inference.FileState
	statusIndex    int

	// UnregisterErr, if non-nil, is returned by UnregisterFile.
	UnregisterErr error

	// --- Call records (read after test) ---

	// GenerateCalls records every Generate/GenerateStream invocation in order.
	GenerateCalls []GenerateCall

	// UnregisterCalls records every handle passed to UnregisterFile.
	UnregisterCalls []inference.FileHandle
}

// Name implements inference.Provider.
func (p *Provider) Name() string { return "mock" }

// Generate implements inference.Provider.
func (p *Provider) Generate(_ context.Context, req inference.Request) (string, error) {
	p.mu.Lock()
	p.GenerateCalls = append(p.GenerateCalls, GenerateCall{Req: req})
	fn := p.GenerateFunc
	resp, err := p.GenerateResponse, p.GenerateErr
	p.mu.Unlock()

	if fn != nil {
		return fn(req)
	}
	return resp, err
}

// GenerateStream implements inference.Provider.
func (p *Provider) GenerateStream(ctx context.Context, req inference.Request) (<-chan inference.Chunk, error) {
	p.mu.Lock()
	p.GenerateCalls = append(p.GenerateCalls, GenerateCall{Req: req, Stream: true})
	streamErr := p.StreamErr
	chunks := make([]inference.Chunk, len(p.StreamChunks))
	copy(chunks, p.StreamChunks)
	p.mu.Unlock()

	if streamErr != nil {
		return nil, streamErr
	}

	out := make(chan inference.Chunk, len(chunks))
	go func() {
		defer close(out)
		for _, c := range chunks {
			select {
			case out <- c:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// CallCount returns the number of Generate/GenerateStream invocations so far.
func (p *Provider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.GenerateCalls)
}

// RegisterFile implements inference.FileStore.
func (p *Provider) RegisterFile(_ context.Context, _ string) (inference.FileHandle, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.RegisterHandle, p.RegisterErr
}

// FileStatus implements inference.FileStore.
func (p *Provider) FileStatus(_ context.Context, _ inference.FileHandle) (inference.FileState, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.StatusSequence) == 0 {
		return inference.FileActive, nil
	}
	state := p.StatusSequence[min(p.statusIndex, len(p.StatusSequence)-1)]
	p.statusIndex++
	return state, nil
}

// UnregisterFile implements inference.FileStore.
func (p *Provider) UnregisterFile(_ context.Context, handle inference.FileHandle) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.UnregisterCalls = append(p.UnregisterCalls, handle)
	return p.UnregisterErr
}
