package config

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Load reads the YAML configuration file at path and returns a validated
// [Config]. It is a convenience wrapper around [LoadFromReader] and
// [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	if cfg.Inference.Provider == "" {
		errs = append(errs, errors.New("inference.provider is required"))
	} else if !cfg.Inference.Provider.IsValid() {
		errs = append(errs, fmt.Errorf("inference.provider %q is invalid; valid values: gemini, openai, anyllm", cfg.Inference.Provider))
	}

	// A provider without a single usable credential can never serve a
	// request, so this is fatal at load time rather than a first-call
	// surprise.
	if len(nonEmptyKeys(cfg.Inference.APIKeys)) == 0 {
		errs = append(errs, errors.New("inference.api_keys must contain at least one non-empty key"))
	}

	if cfg.Inference.Provider == ProviderAnyLLM && cfg.Inference.Backend == "" {
		errs = append(errs, errors.New("inference.backend is required when inference.provider is anyllm"))
	}

	if cfg.Session.MaxInflight < 0 {
		errs = append(errs, fmt.Errorf("session.max_inflight %d must not be negative", cfg.Session.MaxInflight))
	}
	if cfg.Session.SweepConcurrency < 0 {
		errs = append(errs, fmt.Errorf("session.sweep_concurrency %d must not be negative", cfg.Session.SweepConcurrency))
	}

	return errors.Join(errs...)
}

// nonEmptyKeys filters blank entries from a credential list.
func nonEmptyKeys(keys []string) []string {
	var out []string
	for _, k := range keys {
		if k != "" {
			out = append(out, k)
		}
	}
	return out
}
