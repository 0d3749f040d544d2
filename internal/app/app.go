// Package app wires all Lumina subsystems into a running application.
//
// The App struct owns the full lifecycle: New creates and connects all
// subsystems, Run executes the background loops, and Shutdown tears
// everything down in order. It is also the command boundary the transport
// layer calls into: question submission, active queries, insight reports,
// session resets, and media ingestion.
//
// For testing, inject a mock provider and leave server.listen_addr empty so
// no ops server is started.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/lumina-live/lumina/internal/config"
	"github.com/lumina-live/lumina/internal/engine"
	"github.com/lumina-live/lumina/internal/event"
	"github.com/lumina-live/lumina/internal/health"
	"github.com/lumina-live/lumina/internal/ingest"
	"github.com/lumina-live/lumina/internal/observe"
	"github.com/lumina-live/lumina/internal/session"
	"github.com/lumina-live/lumina/internal/sweep"
	"github.com/lumina-live/lumina/pkg/provider/inference"
)

// App owns all subsystem lifetimes and exposes the session command surface.
type App struct {
	cfg      *config.Config
	provider inference.Provider
	log      *slog.Logger

	// Subsystems — initialised in New, torn down in Shutdown.
	store    *session.Store
	broker   *event.Broker
	metrics  *observe.Metrics
	engine   *engine.Engine
	sweeper  *sweep.Sweeper
	pipeline *ingest.Pipeline
	ops      *health.Server

	// ingestWG tracks background ingestion jobs started by IngestFile.
	ingestWG sync.WaitGroup

	// stopOnce guards the Shutdown path.
	stopOnce sync.Once
}

// Option is a functional option for New.
type Option func(*App)

// WithLogger sets the structured logger. Default is [slog.Default].
func WithLogger(l *slog.Logger) Option {
	return func(a *App) { a.log = l }
}

// WithMetrics injects pre-built metric instruments instead of creating them
// from the global meter provider.
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// ─── New ─────────────────────────────────────────────────────────────────────

// New creates an App by wiring all subsystems together. The provider comes
// from main.go (populated via the config registry).
func New(cfg *config.Config, provider inference.Provider, opts ...Option) (*App, error) {
	a := &App{
		cfg:      cfg,
		provider: provider,
		log:      slog.Default(),
	}
	for _, o := range opts {
		o(a)
	}

	// ── 1. Metrics ───────────────────────────────────────────────────────
	if a.metrics == nil {
		m, err := observe.NewMetrics(otel.GetMeterProvider())
		if err != nil {
			return nil, fmt.Errorf("app: init metrics: %w", err)
		}
		a.metrics = m
	}

	// ── 2. Session state + events ────────────────────────────────────────
	a.store = session.NewStore()
	a.broker = event.NewBroker(func(t event.Type) {
		a.metrics.EventsDropped.Add(context.Background(), 1,
			metric.WithAttributes(attribute.String("type", string(t))))
	})

	// ── 3. Question engine ───────────────────────────────────────────────
	engOpts := []engine.Option{engine.WithLogger(a.log), engine.WithMetrics(a.metrics)}
	if cfg.Session.MaxInflight > 0 {
		engOpts = append(engOpts, engine.WithMaxInflight(cfg.Session.MaxInflight))
	}
	a.engine = engine.New(a.store, provider, a.broker, engOpts...)

	// ── 4. Recheck sweeper ───────────────────────────────────────────────
	swOpts := []sweep.Option{sweep.WithLogger(a.log), sweep.WithMetrics(a.metrics)}
	if cfg.Session.SweepConcurrency > 0 {
		swOpts = append(swOpts, sweep.WithConcurrency(cfg.Session.SweepConcurrency))
	}
	a.sweeper = sweep.New(a.store, a.engine, swOpts...)

	// ── 5. Ingestion pipeline ────────────────────────────────────────────
	a.pipeline = ingest.New(a.store, provider, a.broker, a.sweeper,
		ingest.WithLogger(a.log), ingest.WithMetrics(a.metrics))

	// ── 6. Upload staging dir ────────────────────────────────────────────
	if cfg.Uploads.Dir != "" {
		if err := os.MkdirAll(cfg.Uploads.Dir, 0o755); err != nil {
			return nil, fmt.Errorf("app: create uploads dir: %w", err)
		}
	}

	// ── 7. Ops server ────────────────────────────────────────────────────
	if cfg.Server.ListenAddr != "" {
		a.ops = health.NewServer(cfg.Server.ListenAddr, a.log, a.checkers()...)
	}

	return a, nil
}

// checkers builds the readiness checks for the ops server.
func (a *App) checkers() []health.Checker {
	return []health.Checker{
		{
			Name: "inference",
			Check: func(context.Context) error {
				if a.provider == nil {
					return fmt.Errorf("no inference provider configured")
				}
				return nil
			},
		},
		{
			Name: "uploads",
			Check: func(context.Context) error {
				if a.cfg.Uploads.Dir == "" {
					return nil
				}
				_, err := os.Stat(a.cfg.Uploads.Dir)
				return err
			},
		},
	}
}

// ─── Run ─────────────────────────────────────────────────────────────────────

// Run starts the sweeper loop and the ops server, then blocks until ctx is
// cancelled. It returns ctx.Err() after the background loops have stopped.
func (a *App) Run(ctx context.Context) error {
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		a.sweeper.Run(ctx)
	}()

	opsErr := make(chan error, 1)
	if a.ops != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := a.ops.ListenAndServe(); err != nil {
				opsErr <- err
			}
		}()
	}

	a.log.Info("lumina running",
		"provider", a.provider.Name(),
		"ops_addr", a.cfg.Server.ListenAddr,
	)

	select {
	case err := <-opsErr:
		return fmt.Errorf("app: ops server: %w", err)
	case <-ctx.Done():
	}

	if a.ops != nil {
		if err := a.ops.Shutdown(context.Background()); err != nil {
			a.log.Warn("ops server shutdown error", "error", err)
		}
	}
	wg.Wait()
	return ctx.Err()
}

// Shutdown waits for in-flight work to finish. It respects the context
// deadline: when ctx expires, remaining background work is abandoned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		a.log.Info("shutting down")

		done := make(chan struct{})
		go func() {
			defer close(done)
			a.ingestWG.Wait()
			a.engine.Wait()
		}()

		select {
		case <-done:
			a.log.Info("shutdown complete")
		case <-ctx.Done():
			a.log.Warn("shutdown deadline exceeded, abandoning background work")
			shutdownErr = ctx.Err()
		}
	})
	return shutdownErr
}

// ─── Command boundary ────────────────────────────────────────────────────────

// SubmitQuestion registers an audience question and starts its asynchronous
// classification and extraction. The returned snapshot is still pending.
func (a *App) SubmitQuestion(ctx context.Context, user, text string) (session.Question, error) {
	return a.engine.Submit(ctx, user, text)
}

// ActiveQuery answers a moderator inquiry from the transcript and the given
// audience comments, synchronously.
func (a *App) ActiveQuery(ctx context.Context, query, comments string) (string, error) {
	return a.engine.ActiveQuery(ctx, query, comments)
}

// GenerateInsights produces the structured end-of-session report.
func (a *App) GenerateInsights(ctx context.Context, comments string) (*engine.InsightReport, error) {
	return a.engine.GenerateInsights(ctx, comments)
}

// ResetSession clears the transcript and question registry together and
// publishes the reset event. In-flight work from the previous session is
// fenced out by the new generation. Returns the new generation.
func (a *App) ResetSession() uint64 {
	gen := a.store.Reset()
	a.broker.Publish(event.Event{Type: event.TypeSessionReset})
	a.log.Info("session reset", "generation", gen)
	return gen
}

// IngestFile resets the session and starts background transcription of the
// media file at path. streamID tags the resulting events (typically the
// upload filename). Returns immediately; progress is published as events.
func (a *App) IngestFile(ctx context.Context, path, streamID string) {
	gen := a.store.Reset()
	a.broker.Publish(event.Event{Type: event.TypeSessionReset, StreamID: streamID})
	a.log.Info("session replaced by upload", "stream_id", streamID, "generation", gen)

	bgCtx := context.WithoutCancel(ctx)
	a.ingestWG.Add(1)
	go func() {
		defer a.ingestWG.Done()
		if err := a.pipeline.TranscribeFile(bgCtx, gen, path, streamID); err != nil {
			a.log.Error("file ingestion failed", "stream_id", streamID, "error", err)
		}
	}()
}

// IngestChunk transcribes one inline audio chunk into the current session
// and returns the recognised text.
func (a *App) IngestChunk(ctx context.Context, data []byte, mimeType string) (string, error) {
	return a.pipeline.TranscribeChunk(ctx, a.store.Generation(), data, mimeType)
}

// Questions returns a snapshot of the question registry in insertion order.
func (a *App) Questions() []session.Question {
	return a.store.Questions()
}

// Transcript returns the full session transcript.
func (a *App) Transcript() string {
	return a.store.Transcript()
}

// Events subscribes to the session event stream. The returned cancel
// function must be called when the consumer goes away.
func (a *App) Events(buffer int) (<-chan event.Event, func()) {
	ch, cancel := a.broker.Subscribe(buffer)
	a.metrics.Subscribers.Add(context.Background(), 1)
	var once sync.Once
	return ch, func() {
		once.Do(func() { a.metrics.Subscribers.Add(context.Background(), -1) })
		cancel()
	}
}

// WaitIdle blocks until all background question resolutions and ingestion
// jobs have finished. Intended for tests.
func (a *App) WaitIdle() {
	a.ingestWG.Wait()
	a.engine.Wait()
}
