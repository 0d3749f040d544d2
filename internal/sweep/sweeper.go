// Package sweep re-resolves unanswered questions as the transcript grows.
//
// Ingestion notifies the sweeper after each appended fragment; notifications
// coalesce, so a burst of fragments triggers at most one queued sweep. Each
// sweep snapshots the unanswered set and re-runs extraction for every member
// with bounded concurrency.
package sweep

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/lumina-live/lumina/internal/observe"
	"github.com/lumina-live/lumina/internal/session"
)

// defaultConcurrency bounds parallel rechecks within one sweep.
const defaultConcurrency = 4

// Resolver re-runs extraction for one unanswered question. Satisfied by
// *engine.Engine.
type Resolver interface {
	Recheck(ctx context.Context, gen uint64, id string) bool
}

// Sweeper scans the unanswered questions of a [session.Store] whenever it
// is notified of transcript growth. Safe for concurrent use.
type Sweeper struct {
	store    *session.Store
	resolver Resolver
	metrics  *observe.Metrics
	log      *slog.Logger

	concurrency int

	// trigger has capacity 1 so pending notifications coalesce instead of
	// queueing one sweep per appended fragment.
	trigger chan struct{}
}

// Option is a functional option for configuring a Sweeper.
type Option func(*Sweeper)

// WithLogger sets the structured logger. Default is [slog.Default].
func WithLogger(l *slog.Logger) Option {
	return func(s *Sweeper) { s.log = l }
}

// WithMetrics wires metric instruments. Nil disables metric recording.
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Sweeper) { s.metrics = m }
}

// WithConcurrency bounds parallel rechecks within one sweep. Default is 4.
func WithConcurrency(n int) Option {
	return func(s *Sweeper) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// New constructs a Sweeper. Options are applied after defaults.
func New(store *session.Store, resolver Resolver, opts ...Option) *Sweeper {
	s := &Sweeper{
		store:       store,
		resolver:    resolver,
		log:         slog.Default(),
		concurrency: defaultConcurrency,
		trigger:     make(chan struct{}, 1),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Trigger schedules a sweep. Never blocks; when a sweep is already queued
// the notification folds into it.
func (s *Sweeper) Trigger() {
	select {
	case s.trigger <- struct{}{}:
	default:
	}
}

// Run executes sweeps until ctx is cancelled. Intended to be started as a
// background goroutine by the application.
func (s *Sweeper) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.trigger:
			s.Sweep(ctx)
		}
	}
}

// Sweep re-runs extraction for every currently unanswered question and
// returns how many were resolved. Answered questions are never revisited;
// the resolver's idempotent answer write keeps overlapping sweeps safe.
func (s *Sweeper) Sweep(ctx context.Context) int {
	gen := s.store.Generation()
	unanswered := s.store.QuestionsWithStatus(session.StatusUnanswered)
	if len(unanswered) == 0 {
		return 0
	}

	s.log.Debug("rechecking unanswered questions", "count", len(unanswered))
	start := time.Now()

	var resolved atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for _, q := range unanswered {
		g.Go(func() error {
			if s.resolver.Recheck(gctx, gen, q.ID) {
				resolved.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()

	n := int(resolved.Load())
	if s.metrics != nil {
		s.metrics.SweepDuration.Record(ctx, time.Since(start).Seconds())
		if n > 0 {
			s.metrics.SweepResolutions.Add(ctx, int64(n))
		}
	}
	if n > 0 {
		s.log.Info("sweep resolved questions", "resolved", n, "checked", len(unanswered))
	}
	return n
}
