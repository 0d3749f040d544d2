// Package config provides the configuration schema, loader, and provider
// registry for the Lumina session intelligence server.
package config

// LogLevel controls log verbosity for the Lumina server.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// InferenceProvider selects the inference backend implementation.
type InferenceProvider string

const (
	// ProviderGemini is the native Gemini client with credential rotation
	// and media file support.
	ProviderGemini InferenceProvider = "gemini"

	// ProviderOpenAI is the native OpenAI chat-completions client.
	ProviderOpenAI InferenceProvider = "openai"

	// ProviderAnyLLM routes text inference through any-llm-go to one of its
	// supported backends (see InferenceConfig.Backend).
	ProviderAnyLLM InferenceProvider = "anyllm"
)

// IsValid reports whether p is a recognised inference provider.
func (p InferenceProvider) IsValid() bool {
	switch p {
	case ProviderGemini, ProviderOpenAI, ProviderAnyLLM:
		return true
	}
	return false
}

// Config is the root configuration structure for Lumina.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Inference InferenceConfig `yaml:"inference"`
	Session   SessionConfig   `yaml:"session"`
	Uploads   UploadsConfig   `yaml:"uploads"`
}

// ServerConfig holds network and logging settings for the Lumina server.
type ServerConfig struct {
	// ListenAddr is the TCP address the ops HTTP server listens on
	// (e.g., ":8080").
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`
}

// InferenceConfig selects and parameterises the inference backend.
type InferenceConfig struct {
	// Provider selects the registered backend implementation.
	Provider InferenceProvider `yaml:"provider"`

	// Model selects a specific model within the provider
	// (e.g., "gemini-3-flash-preview", "gpt-4o-mini").
	Model string `yaml:"model"`

	// APIKeys is the ordered credential list. The gemini provider rotates
	// through it on quota exhaustion; other providers use the first entry.
	APIKeys []string `yaml:"api_keys"`

	// BaseURL overrides the provider's default API endpoint.
	// Leave empty to use the provider's built-in default.
	BaseURL string `yaml:"base_url"`

	// Backend selects the any-llm-go sub-backend (e.g., "openai",
	// "anthropic", "ollama"). Only used when Provider is "anyllm".
	Backend string `yaml:"backend"`
}

// SessionConfig tunes the question pipeline's concurrency bounds.
type SessionConfig struct {
	// MaxInflight caps concurrent classify/extract pipelines. 0 selects the
	// engine default.
	MaxInflight int `yaml:"max_inflight"`

	// SweepConcurrency bounds parallel rechecks within one sweep. 0 selects
	// the sweeper default.
	SweepConcurrency int `yaml:"sweep_concurrency"`
}

// UploadsConfig holds settings for the media upload staging area.
type UploadsConfig struct {
	// Dir is the local directory where uploaded media is staged before
	// being registered with the provider. Defaults to "uploads".
	Dir string `yaml:"dir"`
}
