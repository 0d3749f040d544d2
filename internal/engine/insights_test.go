package engine

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/lumina-live/lumina/internal/event"
	"github.com/lumina-live/lumina/internal/session"
	"github.com/lumina-live/lumina/pkg/provider/inference"
	"github.com/lumina-live/lumina/pkg/provider/inference/mock"
)

func TestActiveQuery(t *testing.T) {
	t.Run("no transcript falls back", func(t *testing.T) {
		prov := &mock.Provider{}
		eng := New(session.NewStore(), prov, event.NewBroker(nil))
		got, err := eng.ActiveQuery(context.Background(), "summary?", "")
		if err != nil {
			t.Fatalf("ActiveQuery: %v", err)
		}
		if got != NoTranscriptAnswer {
			t.Errorf("answer = %q, want %q", got, NoTranscriptAnswer)
		}
		if n := prov.CallCount(); n != 0 {
			t.Errorf("provider calls = %d, want 0", n)
		}
	})

	t.Run("inference failure falls back", func(t *testing.T) {
		store := session.NewStore()
		store.AppendTranscript(store.Generation(), "some talk content")
		prov := &mock.Provider{GenerateErr: &inference.TransientError{
			Kind: inference.KindQuota, Err: errors.New("exhausted"),
		}}
		eng := New(store, prov, event.NewBroker(nil))
		got, err := eng.ActiveQuery(context.Background(), "summary?", "")
		if err != nil {
			t.Fatalf("ActiveQuery: %v", err)
		}
		if got != NotCoveredAnswer {
			t.Errorf("answer = %q, want %q", got, NotCoveredAnswer)
		}
	})

	t.Run("empty query", func(t *testing.T) {
		store := session.NewStore()
		store.AppendTranscript(store.Generation(), "some talk content")
		eng := New(store, &mock.Provider{}, event.NewBroker(nil))
		if _, err := eng.ActiveQuery(context.Background(), "  ", ""); !errors.Is(err, ErrEmptyQuery) {
			t.Fatalf("err = %v, want ErrEmptyQuery", err)
		}
	})

	t.Run("answers with both sources in the prompt", func(t *testing.T) {
		store := session.NewStore()
		store.AppendTranscript(store.Generation(), "[00:30] We cut cold-start latency in half.")

		prov := &mock.Provider{GenerateResponse: "  The audience loved the latency news.  "}
		eng := New(store, prov, event.NewBroker(nil))

		got, err := eng.ActiveQuery(context.Background(),
			"How was the latency news received?", "wow, half the cold start!")
		if err != nil {
			t.Fatalf("ActiveQuery: %v", err)
		}
		if got != "The audience loved the latency news." {
			t.Errorf("answer = %q", got)
		}

		prompt := prov.GenerateCalls[0].Req.Prompt
		for _, want := range []string{
			"cold-start latency", "half the cold start", "How was the latency news received?",
		} {
			if !strings.Contains(prompt, want) {
				t.Errorf("prompt missing %q", want)
			}
		}
	})

	t.Run("blank comments become None", func(t *testing.T) {
		store := session.NewStore()
		store.AppendTranscript(store.Generation(), "talk content")
		prov := &mock.Provider{GenerateResponse: "answer"}
		eng := New(store, prov, event.NewBroker(nil))

		if _, err := eng.ActiveQuery(context.Background(), "what is X?", "  "); err != nil {
			t.Fatalf("ActiveQuery: %v", err)
		}
		if !strings.Contains(prov.GenerateCalls[0].Req.Prompt, "None.") {
			t.Error("blank comments not normalised in prompt")
		}
	})
}

func TestGenerateInsights(t *testing.T) {
	t.Run("no transcript", func(t *testing.T) {
		eng := New(session.NewStore(), &mock.Provider{}, event.NewBroker(nil))
		if _, err := eng.GenerateInsights(context.Background(), ""); !errors.Is(err, ErrNoTranscript) {
			t.Fatalf("err = %v, want ErrNoTranscript", err)
		}
	})

	t.Run("decodes strict JSON report", func(t *testing.T) {
		store := session.NewStore()
		gen := store.Generation()
		store.AppendTranscript(gen, "[00:10] Welcome to the deep dive on vector databases.")

		q1, _ := store.AddQuestion(gen, "a", "What index types are supported?")
		store.UpdateStatus(gen, q1.ID, session.StatusRelevant)
		store.SetAnswer(gen, q1.ID, "HNSW and IVF. (Source: [03:12])")
		q2, _ := store.AddQuestion(gen, "b", "Best pizza in town?")
		store.UpdateStatus(gen, q2.ID, session.StatusOffTopic)

		prov := &mock.Provider{GenerateResponse: `{
			"session_overview": {
				"total_questions": 2,
				"relevant_asked": 1,
				"relevant_answered": 1,
				"relevant_unanswered": 0,
				"off_topic_asked": 1,
				"engagement_level": "medium"
			},
			"top_interest_topics": ["index types"],
			"clarity_gaps": [{"topic": "IVF tuning", "evidence": "What index types are supported?"}],
			"sentiment_summary": {
				"positive_percent": 70.0,
				"neutral_percent": 25.0,
				"negative_percent": 5.0,
				"audience_vibe": "curious and engaged"
			},
			"potential_misunderstandings": [],
			"delivery_improvement_suggestions": ["show a benchmark chart"]
		}`}
		eng := New(store, prov, event.NewBroker(nil))

		report, err := eng.GenerateInsights(context.Background(), "great talk!")
		if err != nil {
			t.Fatalf("GenerateInsights: %v", err)
		}
		if report.SessionOverview.TotalQuestions != 2 ||
			report.SessionOverview.RelevantAnswered != 1 ||
			report.SessionOverview.OffTopicAsked != 1 {
			t.Errorf("overview = %+v", report.SessionOverview)
		}
		if report.SentimentSummary.AudienceVibe != "curious and engaged" {
			t.Errorf("vibe = %q", report.SentimentSummary.AudienceVibe)
		}
		if len(report.ClarityGaps) != 1 || report.ClarityGaps[0].Evidence == "" {
			t.Errorf("clarity gaps = %+v", report.ClarityGaps)
		}

		req := prov.GenerateCalls[0].Req
		if !req.JSONOutput {
			t.Error("insight request did not ask for JSON output")
		}
		for _, want := range []string{
			`"What index types are supported?"`, `"answered":true`, `"off_topic"`, "great talk!",
		} {
			if !strings.Contains(req.Prompt, want) {
				t.Errorf("prompt missing %q", want)
			}
		}
	})

	t.Run("malformed model output", func(t *testing.T) {
		store := session.NewStore()
		store.AppendTranscript(store.Generation(), "talk content")
		eng := New(store, &mock.Provider{GenerateResponse: "not json"}, event.NewBroker(nil))
		if _, err := eng.GenerateInsights(context.Background(), ""); err == nil {
			t.Fatal("expected decode error")
		}
	})

	t.Run("provider error surfaces", func(t *testing.T) {
		store := session.NewStore()
		store.AppendTranscript(store.Generation(), "talk content")
		wantErr := &inference.PermanentError{Err: errors.New("bad request")}
		eng := New(store, &mock.Provider{GenerateErr: wantErr}, event.NewBroker(nil))
		if _, err := eng.GenerateInsights(context.Background(), ""); !errors.Is(err, wantErr) {
			t.Fatalf("err = %v, want %v", err, wantErr)
		}
	})
}
