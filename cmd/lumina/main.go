// Command lumina is the main entry point for the Lumina session
// intelligence server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	anyllmlib "github.com/mozilla-ai/any-llm-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/lumina-live/lumina/internal/app"
	"github.com/lumina-live/lumina/internal/config"
	"github.com/lumina-live/lumina/internal/observe"
	"github.com/lumina-live/lumina/pkg/provider/inference"
	"github.com/lumina-live/lumina/pkg/provider/inference/anyllm"
	"github.com/lumina-live/lumina/pkg/provider/inference/gemini"
	"github.com/lumina-live/lumina/pkg/provider/inference/openai"
)

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "lumina: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "lumina: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	logger := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)

	slog.Info("lumina starting",
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	shutdownTelemetry, err := observe.InitProvider(ctx, observe.ProviderConfig{})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(flushCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	met, err := observe.NewMetrics(otel.GetMeterProvider())
	if err != nil {
		slog.Error("failed to create metric instruments", "err", err)
		return 1
	}

	// ── Provider registry ─────────────────────────────────────────────────────
	reg := config.NewRegistry()
	registerBuiltinProviders(reg, met)

	provider, err := reg.CreateInference(ctx, cfg.Inference)
	if err != nil {
		slog.Error("failed to create inference provider", "err", err)
		return 1
	}
	slog.Info("provider created", "name", provider.Name(), "model", cfg.Inference.Model)

	// ── Startup summary ───────────────────────────────────────────────────────
	printStartupSummary(cfg, provider)

	application, err := app.New(cfg, provider, app.WithLogger(logger), app.WithMetrics(met))
	if err != nil {
		slog.Error("failed to initialise application", "err", err)
		return 1
	}

	slog.Info("server ready — press Ctrl+C to shut down")

	if err := application.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	slog.Info("shutdown signal received, stopping…")

	if err := application.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// ── Provider wiring ───────────────────────────────────────────────────────────

// registerBuiltinProviders wires all built-in inference factories into reg.
func registerBuiltinProviders(reg *config.Registry, met *observe.Metrics) {
	reg.RegisterInference(config.ProviderGemini, func(ctx context.Context, c config.InferenceConfig) (inference.Provider, error) {
		opts := []gemini.Option{
			gemini.WithRotationHook(func(cursor int) {
				met.CredentialRotations.Add(context.Background(), 1,
					metric.WithAttributes(attribute.Int("cursor", cursor)))
			}),
		}
		if c.Model != "" {
			opts = append(opts, gemini.WithModel(c.Model))
		}
		if c.BaseURL != "" {
			opts = append(opts, gemini.WithBaseURL(c.BaseURL))
		}
		return gemini.New(ctx, c.APIKeys, opts...)
	})

	reg.RegisterInference(config.ProviderOpenAI, func(_ context.Context, c config.InferenceConfig) (inference.Provider, error) {
		var key string
		if len(c.APIKeys) > 0 {
			key = c.APIKeys[0]
		}
		var opts []openai.Option
		if c.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(c.BaseURL))
		}
		return openai.New(key, c.Model, opts...)
	})

	reg.RegisterInference(config.ProviderAnyLLM, func(_ context.Context, c config.InferenceConfig) (inference.Provider, error) {
		var opts []anyllmlib.Option
		if len(c.APIKeys) > 0 {
			opts = append(opts, anyllmlib.WithAPIKey(c.APIKeys[0]))
		}
		if c.BaseURL != "" {
			opts = append(opts, anyllmlib.WithBaseURL(c.BaseURL))
		}
		return anyllm.New(c.Backend, c.Model, opts...)
	})
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config, provider inference.Provider) {
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║          Lumina — startup summary     ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	printRow("Provider", provider.Name())
	printRow("Model", cfg.Inference.Model)
	printRow("API keys", fmt.Sprintf("%d configured", len(cfg.Inference.APIKeys)))
	if _, ok := provider.(inference.FileStore); ok {
		printRow("Media uploads", "supported")
	} else {
		printRow("Media uploads", "(text only)")
	}
	printRow("Uploads dir", cfg.Uploads.Dir)
	printRow("Listen addr", cfg.Server.ListenAddr)
	fmt.Println("╚═══════════════════════════════════════╝")
}

func printRow(kind, value string) {
	if value == "" {
		value = "(not configured)"
	}
	if len(value) > 19 {
		value = value[:16] + "…"
	}
	fmt.Printf("║  %-13s   : %-19s ║\n", kind, value)
}

// ── Logger ─────────────────────────────────────────────────────────────────────

func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
