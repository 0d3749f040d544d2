// Package engine implements the question lifecycle: classification of
// incoming audience questions against the live transcript, grounded answer
// extraction, and re-resolution of previously unanswerable questions.
//
// The engine never mutates session state directly from inference results
// without passing the generation fence of [session.Store]; a session reset
// while a classification or extraction is in flight silently discards the
// result.
package engine

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/semaphore"

	"github.com/lumina-live/lumina/internal/event"
	"github.com/lumina-live/lumina/internal/observe"
	"github.com/lumina-live/lumina/internal/session"
	"github.com/lumina-live/lumina/pkg/provider/inference"
)

// ErrEmptyQuestion is returned by [Engine.Submit] for blank submissions.
var ErrEmptyQuestion = errors.New("engine: empty question")

// defaultMaxInflight caps concurrent classify/extract pipelines.
const defaultMaxInflight = 8

// ExtractResult is the outcome of one grounded extraction attempt.
type ExtractResult struct {
	// Found reports whether the transcript grounded an answer.
	Found bool

	// Answer is the extracted answer text, including its "(Source: [MM:SS])"
	// citation. Empty when Found is false.
	Answer string
}

// Engine drives the question lifecycle against a [session.Store] using a
// single [inference.Provider]. It is safe for concurrent use.
type Engine struct {
	store    *session.Store
	provider inference.Provider
	broker   *event.Broker
	metrics  *observe.Metrics
	log      *slog.Logger

	// sem bounds concurrent background resolutions so a burst of
	// submissions cannot fan out into unbounded inference calls.
	sem *semaphore.Weighted

	// wg tracks background resolution goroutines spawned by Submit so
	// callers (and tests) can synchronise with their completion.
	wg sync.WaitGroup
}

// Option is a functional option for configuring an Engine.
type Option func(*Engine)

// WithLogger sets the structured logger. Default is [slog.Default].
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// WithMetrics wires metric instruments. Nil disables metric recording.
func WithMetrics(m *observe.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithMaxInflight caps concurrent background resolutions. Default is 8.
func WithMaxInflight(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.sem = semaphore.NewWeighted(int64(n))
		}
	}
}

// New constructs an Engine. Options are applied after defaults.
func New(store *session.Store, provider inference.Provider, broker *event.Broker, opts ...Option) *Engine {
	e := &Engine{
		store:    store,
		provider: provider,
		broker:   broker,
		log:      slog.Default(),
		sem:      semaphore.NewWeighted(defaultMaxInflight),
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Submit registers a new audience question and starts its asynchronous
// resolution (classify, then extract when relevant). It returns the pending
// question snapshot immediately; status progress is published as events.
//
// Leading and trailing whitespace is stripped; a blank submission is
// rejected with [ErrEmptyQuestion].
func (e *Engine) Submit(ctx context.Context, user, text string) (session.Question, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return session.Question{}, ErrEmptyQuestion
	}
	if user == "" {
		user = "Anonymous"
	}

	gen := e.store.Generation()
	q, ok := e.store.AddQuestion(gen, user, text)
	if !ok {
		return session.Question{}, session.ErrStaleSession
	}

	if e.metrics != nil {
		e.metrics.QuestionsSubmitted.Add(ctx, 1)
	}
	e.broker.Publish(event.Event{Type: event.TypeQuestionReceived, Question: &q, QuestionID: q.ID})

	// Resolution outlives the submitting request.
	bgCtx := context.WithoutCancel(ctx)
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.resolve(bgCtx, gen, q)
	}()

	return q, nil
}

// Wait blocks until all background resolutions spawned so far have finished.
func (e *Engine) Wait() {
	e.wg.Wait()
}

// resolve runs the classify → extract pipeline for one question.
func (e *Engine) resolve(ctx context.Context, gen uint64, q session.Question) {
	if err := e.sem.Acquire(ctx, 1); err != nil {
		return
	}
	defer e.sem.Release(1)

	if e.metrics != nil {
		e.metrics.InflightQuestions.Add(ctx, 1)
		defer e.metrics.InflightQuestions.Add(ctx, -1)
	}

	ctx, span := observe.StartSpan(ctx, "engine.resolve")
	defer span.End()

	status := e.classify(ctx, q.Text)
	if !e.transition(ctx, gen, q.ID, status) {
		return
	}
	if status != session.StatusRelevant {
		return
	}

	res := e.extract(ctx, q.Text)
	if res.Found {
		e.answer(ctx, gen, q.ID, res.Answer)
	} else {
		e.transition(ctx, gen, q.ID, session.StatusUnanswered)
	}
}

// classify labels a question against the transcript tail. Any inference
// failure or unrecognised label degrades to relevant so a flaky model can
// only ever over-include, never suppress a legitimate question.
func (e *Engine) classify(ctx context.Context, text string) session.Status {
	prompt := buildClassifyPrompt(text, e.store.TranscriptTail(classifyContextChars))

	raw, err := e.generate(ctx, "classify", inference.Request{Prompt: prompt})
	if err != nil {
		e.log.Warn("classification failed, defaulting to relevant", "error", err)
		return session.StatusRelevant
	}

	label := session.Status(strings.Trim(strings.ToLower(strings.TrimSpace(raw)), `"'`))
	switch label {
	case session.StatusNonsense, session.StatusOffTopic, session.StatusRelevant:
		return label
	}
	return session.StatusRelevant
}

// extract attempts a grounded answer from the transcript tail. A transcript
// below the minimum grounding length short-circuits without an inference
// call. Inference failures report not-found; the sweeper retries those
// questions as the transcript grows.
func (e *Engine) extract(ctx context.Context, text string) ExtractResult {
	transcript := e.store.TranscriptTail(extractContextChars)
	if len(transcript) < minTranscriptChars {
		return ExtractResult{}
	}

	raw, err := e.generate(ctx, "extract", inference.Request{Prompt: buildExtractPrompt(text, transcript)})
	if err != nil {
		e.log.Warn("extraction failed", "error", err)
		return ExtractResult{}
	}
	answer := strings.TrimSpace(raw)
	if answer == "" || strings.Contains(answer, notFound) {
		return ExtractResult{}
	}
	return ExtractResult{Found: true, Answer: answer}
}

// Recheck re-runs extraction for one unanswered question. It returns true
// when the question was resolved to answered by this call. gen must be the
// generation the caller snapshotted before reading the registry.
func (e *Engine) Recheck(ctx context.Context, gen uint64, id string) bool {
	q, ok := e.store.Question(id)
	if !ok || q.Status != session.StatusUnanswered {
		return false
	}
	res := e.extract(ctx, q.Text)
	if !res.Found {
		return false
	}
	return e.answer(ctx, gen, id, res.Answer)
}

// transition applies a status change behind the generation fence and
// publishes it. Returns false when the write was rejected (stale session,
// vanished question, or illegal transition).
func (e *Engine) transition(ctx context.Context, gen uint64, id string, to session.Status) bool {
	q, changed, err := e.store.UpdateStatus(gen, id, to)
	if err != nil {
		if errors.Is(err, session.ErrStaleSession) {
			e.log.Debug("discarding stale status update", "question", id, "to", to)
		} else {
			e.log.Warn("status update rejected", "question", id, "to", to, "error", err)
		}
		return false
	}
	if changed {
		if e.metrics != nil {
			e.metrics.QuestionTransitions.Add(ctx, 1,
				metric.WithAttributes(attribute.String("to", string(to))))
		}
		e.broker.Publish(event.Event{Type: event.TypeQuestionStatus, QuestionID: q.ID, Status: q.Status})
	}
	return true
}

// answer stores an extracted answer behind the generation fence and
// publishes the status change plus the answer itself.
func (e *Engine) answer(ctx context.Context, gen uint64, id, answer string) bool {
	q, changed, err := e.store.SetAnswer(gen, id, answer)
	if err != nil {
		if errors.Is(err, session.ErrStaleSession) {
			e.log.Debug("discarding stale answer", "question", id)
		} else {
			e.log.Warn("answer rejected", "question", id, "error", err)
		}
		return false
	}
	if !changed {
		return false
	}
	if e.metrics != nil {
		e.metrics.QuestionTransitions.Add(ctx, 1,
			metric.WithAttributes(attribute.String("to", string(session.StatusAnswered))))
	}
	e.broker.Publish(event.Event{Type: event.TypeQuestionStatus, QuestionID: q.ID, Status: q.Status})
	e.broker.Publish(event.Event{Type: event.TypeAnswer, QuestionID: q.ID, Answer: q.Answer})
	return true
}

// generate runs one provider call with timing and request metrics.
func (e *Engine) generate(ctx context.Context, op string, req inference.Request) (string, error) {
	start := time.Now()
	resp, err := e.provider.Generate(ctx, req)

	if e.metrics != nil {
		status := "ok"
		if err != nil {
			status = "error"
		}
		attrs := metric.WithAttributes(
			attribute.String("provider", e.provider.Name()),
			attribute.String("op", op),
			attribute.String("status", status),
		)
		e.metrics.InferenceRequests.Add(ctx, 1, attrs)
		e.metrics.InferenceDuration.Record(ctx, time.Since(start).Seconds(), metric.WithAttributes(
			attribute.String("provider", e.provider.Name()),
			attribute.String("op", op),
		))
	}
	return resp, err
}
