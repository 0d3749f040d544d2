package config

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/lumina-live/lumina/pkg/provider/inference"
)

// ErrProviderNotRegistered is returned by [Registry.CreateInference] when no
// factory has been registered under the requested provider name.
var ErrProviderNotRegistered = errors.New("config: provider not registered")

// InferenceFactory constructs an inference provider from its configuration.
type InferenceFactory func(ctx context.Context, cfg InferenceConfig) (inference.Provider, error)

// Registry maps provider names to their constructor functions. It is safe
// for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	inference map[InferenceProvider]InferenceFactory
}

// NewRegistry returns an empty, ready-to-use [Registry].
func NewRegistry() *Registry {
	return &Registry{
		inference: make(map[InferenceProvider]InferenceFactory),
	}
}

// RegisterInference registers an inference provider factory under name.
// Subsequent calls with the same name overwrite the previous registration.
func (r *Registry) RegisterInference(name InferenceProvider, factory InferenceFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.inference[name] = factory
}

// CreateInference instantiates an inference provider using the factory
// registered under cfg.Provider. Returns [ErrProviderNotRegistered] if no
// factory has been registered for that name.
func (r *Registry) CreateInference(ctx context.Context, cfg InferenceConfig) (inference.Provider, error) {
	r.mu.RLock()
	factory, ok := r.inference[cfg.Provider]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: inference/%q", ErrProviderNotRegistered, cfg.Provider)
	}
	return factory(ctx, cfg)
}
