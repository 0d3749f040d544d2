// Package ingest turns uploaded media and live audio chunks into transcript
// growth: it registers media with the inference provider, streams the
// transcription back, appends fragments behind the session's generation
// fence, and notifies the recheck sweeper after every append.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/lumina-live/lumina/internal/event"
	"github.com/lumina-live/lumina/internal/observe"
	"github.com/lumina-live/lumina/internal/session"
	"github.com/lumina-live/lumina/pkg/provider/inference"
)

// ErrFileIngestUnsupported is returned by [Pipeline.TranscribeFile] when the
// configured provider does not implement [inference.FileStore].
var ErrFileIngestUnsupported = errors.New("ingest: provider does not support file ingestion")

// ErrFileProcessingFailed is returned when the provider reports the
// registered file as failed during polling.
var ErrFileProcessingFailed = errors.New("ingest: file processing failed on the provider side")

// defaultPollInterval is the delay between file state polls.
const defaultPollInterval = time.Second

const filePrompt = "Please provide a full, accurate transcription of the speech in this video. " +
	"Include [MM:SS] timestamps at the start of each new paragraph or major speaker change. " +
	"Output only the transcript text with timestamps. Do not provide summaries or comments."

const chunkPrompt = "Transcribe this audio strictly. Output only the text. Skip silence."

// Notifier receives a nudge after transcript growth. Satisfied by
// *sweep.Sweeper.
type Notifier interface {
	Trigger()
}

// Pipeline ingests media into the session transcript. Safe for concurrent
// use; concurrent ingestion jobs interleave at fragment granularity.
type Pipeline struct {
	store    *session.Store
	provider inference.Provider
	broker   *event.Broker
	sweeper  Notifier
	metrics  *observe.Metrics
	log      *slog.Logger

	pollInterval time.Duration
}

// Option is a functional option for configuring a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the structured logger. Default is [slog.Default].
func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) { p.log = l }
}

// WithMetrics wires metric instruments. Nil disables metric recording.
func WithMetrics(m *observe.Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// WithPollInterval overrides the file state polling interval. Default is 1s.
func WithPollInterval(d time.Duration) Option {
	return func(p *Pipeline) {
		if d > 0 {
			p.pollInterval = d
		}
	}
}

// New constructs a Pipeline. sweeper may be nil when no recheck sweeping is
// wanted. Options are applied after defaults.
func New(store *session.Store, provider inference.Provider, broker *event.Broker, sweeper Notifier, opts ...Option) *Pipeline {
	p := &Pipeline{
		store:        store,
		provider:     provider,
		broker:       broker,
		sweeper:      sweeper,
		log:          slog.Default(),
		pollInterval: defaultPollInterval,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// TranscribeFile registers the media file at path with the provider, waits
// until it is processed, streams its transcription, and appends every
// fragment to the transcript under gen. streamID tags the emitted events so
// consumers can reassemble per-job output.
//
// The registered file is always unregistered afterwards; cleanup failures
// are logged, never returned. A terminal failure publishes an error event
// and is returned — the process itself survives.
func (p *Pipeline) TranscribeFile(ctx context.Context, gen uint64, path, streamID string) error {
	files, ok := p.provider.(inference.FileStore)
	if !ok {
		return ErrFileIngestUnsupported
	}

	ctx, span := observe.StartSpan(ctx, "ingest.transcribe_file")
	defer span.End()
	log := p.log.With("stream_id", streamID)

	handle, err := files.RegisterFile(ctx, path)
	if err != nil {
		p.publishError(streamID, err)
		return fmt.Errorf("ingest: register %s: %w", streamID, err)
	}
	defer func() {
		// Cleanup must run even when ctx is already cancelled.
		outcome := inference.CleanupOutcome{
			Handle: handle,
			Err:    files.UnregisterFile(context.WithoutCancel(ctx), handle),
		}
		if !outcome.OK() {
			log.Warn("file cleanup failed", "file", outcome.Handle.Name, "error", outcome.Err)
		}
	}()

	if err := p.awaitActive(ctx, files, handle); err != nil {
		p.publishError(streamID, err)
		return fmt.Errorf("ingest: await %s: %w", streamID, err)
	}

	log.Info("transcribing media file", "provider", p.provider.Name())
	p.broker.Publish(event.Event{
		Type:     event.TypeTranscriptChunk,
		Chunk:    fmt.Sprintf("--- Upload Result: %s ---\n", streamID),
		StreamID: streamID,
	})

	stream, err := p.provider.GenerateStream(ctx, inference.Request{Prompt: filePrompt, File: &handle})
	if err != nil {
		p.publishError(streamID, err)
		return fmt.Errorf("ingest: stream %s: %w", streamID, err)
	}

	fragments := 0
	for chunk := range stream {
		if chunk.Err != nil {
			p.publishError(streamID, chunk.Err)
			return fmt.Errorf("ingest: stream %s: %w", streamID, chunk.Err)
		}
		if chunk.Text == "" {
			continue
		}
		if !p.append(ctx, gen, chunk.Text, streamID) {
			log.Debug("session reset mid-stream, discarding remainder")
			return nil
		}
		fragments++
	}

	if fragments == 0 {
		p.broker.Publish(event.Event{Type: event.TypeTranscriptEmpty, StreamID: streamID})
		log.Info("media contained no transcribable speech")
		return nil
	}

	log.Info("transcription completed", "fragments", fragments)
	return nil
}

// TranscribeChunk transcribes one short inline audio chunk (the live
// microphone path) and appends the result under gen. Returns the recognised
// text; silence yields an empty string and no append.
func (p *Pipeline) TranscribeChunk(ctx context.Context, gen uint64, data []byte, mimeType string) (string, error) {
	text, err := p.provider.Generate(ctx, inference.Request{
		Prompt:     chunkPrompt,
		Attachment: &inference.Attachment{Data: data, MIMEType: mimeType},
	})
	if err != nil {
		return "", fmt.Errorf("ingest: transcribe chunk: %w", err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", nil
	}
	if !p.append(ctx, gen, text+" ", "live") {
		return "", session.ErrStaleSession
	}
	return text, nil
}

// awaitActive polls the file state until it becomes active. A failed state
// or context cancellation ends the wait.
func (p *Pipeline) awaitActive(ctx context.Context, files inference.FileStore, handle inference.FileHandle) error {
	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()

	for {
		state, err := files.FileStatus(ctx, handle)
		if err != nil {
			return err
		}
		switch state {
		case inference.FileActive:
			return nil
		case inference.FileFailed:
			return ErrFileProcessingFailed
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// append writes one fragment behind the generation fence, publishes the
// chunk event, and nudges the sweeper. Returns false when gen is stale.
func (p *Pipeline) append(ctx context.Context, gen uint64, text, streamID string) bool {
	if !p.store.AppendTranscript(gen, text) {
		return false
	}
	if p.metrics != nil {
		p.metrics.TranscriptChunks.Add(ctx, 1,
			metric.WithAttributes(attribute.String("stream", streamID)))
	}
	p.broker.Publish(event.Event{Type: event.TypeTranscriptChunk, Chunk: text, StreamID: streamID})
	if p.sweeper != nil {
		p.sweeper.Trigger()
	}
	return true
}

func (p *Pipeline) publishError(streamID string, err error) {
	p.broker.Publish(event.Event{Type: event.TypeError, StreamID: streamID, Err: err.Error()})
}
