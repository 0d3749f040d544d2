package app

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/lumina-live/lumina/internal/config"
	"github.com/lumina-live/lumina/internal/engine"
	"github.com/lumina-live/lumina/internal/event"
	"github.com/lumina-live/lumina/internal/session"
	"github.com/lumina-live/lumina/pkg/provider/inference"
	"github.com/lumina-live/lumina/pkg/provider/inference/mock"
)

// testConfig returns a config with no ops server and no uploads dir so New
// touches nothing external.
func testConfig() *config.Config {
	return &config.Config{
		Inference: config.InferenceConfig{
			Provider: config.ProviderGemini,
			APIKeys:  []string{"test-key"},
		},
	}
}

func newTestApp(t *testing.T, prov inference.Provider) *App {
	t.Helper()
	a, err := New(testConfig(), prov)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return a
}

func TestApp_QuestionRoundTrip(t *testing.T) {
	prov := &mock.Provider{
		GenerateFunc: func(req inference.Request) (string, error) {
			if strings.Contains(req.Prompt, "Intelligent Classifier") {
				return "relevant", nil
			}
			return "It ships in December. (Source: [01:30])", nil
		},
	}
	a := newTestApp(t, prov)

	gen := a.store.Generation()
	a.store.AppendTranscript(gen, "[01:30] The release ships in December.")

	events, cancel := a.Events(16)
	defer cancel()

	q, err := a.SubmitQuestion(context.Background(), "alice", "When does it ship?")
	if err != nil {
		t.Fatalf("SubmitQuestion: %v", err)
	}
	a.WaitIdle()

	qs := a.Questions()
	if len(qs) != 1 || qs[0].ID != q.ID {
		t.Fatalf("Questions() = %+v", qs)
	}
	if qs[0].Status != session.StatusAnswered {
		t.Errorf("status = %s, want answered", qs[0].Status)
	}

	var sawAnswer bool
	deadline := time.After(2 * time.Second)
	for !sawAnswer {
		select {
		case ev := <-events:
			if ev.Type == event.TypeAnswer && ev.QuestionID == q.ID {
				sawAnswer = true
			}
		case <-deadline:
			t.Fatal("no answer event observed")
		}
	}
}

func TestApp_ResetSession(t *testing.T) {
	a := newTestApp(t, &mock.Provider{GenerateResponse: "relevant"})

	gen := a.store.Generation()
	a.store.AppendTranscript(gen, "old content")
	a.store.AddQuestion(gen, "bob", "old question")

	events, cancel := a.Events(4)
	defer cancel()

	newGen := a.ResetSession()
	if newGen == gen {
		t.Error("generation did not advance")
	}
	if a.Transcript() != "" || len(a.Questions()) != 0 {
		t.Error("session state survived reset")
	}

	select {
	case ev := <-events:
		if ev.Type != event.TypeSessionReset {
			t.Errorf("event = %s, want session_reset", ev.Type)
		}
	case <-time.After(time.Second):
		t.Fatal("no reset event")
	}
}

func TestApp_IngestFileReplacesSession(t *testing.T) {
	prov := &mock.Provider{
		RegisterHandle: inference.FileHandle{Name: "files/x", URI: "uri"},
		StreamChunks: []inference.Chunk{
			{Text: "[00:00] Fresh session content."},
		},
	}
	a := newTestApp(t, prov)

	gen := a.store.Generation()
	a.store.AppendTranscript(gen, "stale content from the previous talk")

	a.IngestFile(context.Background(), "/tmp/talk.mp4", "talk.mp4")
	a.WaitIdle()

	if got := a.Transcript(); got != "[00:00] Fresh session content." {
		t.Errorf("transcript = %q", got)
	}
	if len(prov.UnregisterCalls) != 1 {
		t.Error("uploaded file not cleaned up")
	}
}

func TestApp_IngestChunk(t *testing.T) {
	a := newTestApp(t, &mock.Provider{GenerateResponse: "hello world"})

	got, err := a.IngestChunk(context.Background(), []byte{1, 2}, "audio/wav")
	if err != nil {
		t.Fatalf("IngestChunk: %v", err)
	}
	if got != "hello world" {
		t.Errorf("text = %q", got)
	}
	if !strings.Contains(a.Transcript(), "hello world") {
		t.Errorf("transcript = %q", a.Transcript())
	}
}

func TestApp_ActiveQueryAndInsights(t *testing.T) {
	prov := &mock.Provider{GenerateResponse: "the summary"}
	a := newTestApp(t, prov)

	if got, err := a.ActiveQuery(context.Background(), "summary?", ""); err != nil || got != engine.NoTranscriptAnswer {
		t.Fatalf("ActiveQuery on empty session = %q, %v", got, err)
	}

	a.store.AppendTranscript(a.store.Generation(), "some talk content")
	got, err := a.ActiveQuery(context.Background(), "summary?", "nice talk")
	if err != nil {
		t.Fatalf("ActiveQuery: %v", err)
	}
	if got != "the summary" {
		t.Errorf("answer = %q", got)
	}
}

func TestApp_RunStopsOnContextCancel(t *testing.T) {
	a := newTestApp(t, &mock.Provider{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Run returned %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop")
	}

	if err := a.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown: %v", err)
	}
}
