package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/lumina-live/lumina/internal/session"
	"github.com/lumina-live/lumina/pkg/provider/inference"
)

// ErrNoTranscript is returned by [Engine.GenerateInsights] when no
// transcript has been ingested yet.
var ErrNoTranscript = errors.New("engine: no transcript available")

// ErrEmptyQuery is returned by [Engine.ActiveQuery] for blank queries.
var ErrEmptyQuery = errors.New("engine: empty query")

// Fixed degraded-mode answers for [Engine.ActiveQuery]. A moderator asking
// mid-session gets a usable sentence back, never a raw error.
const (
	NoTranscriptAnswer = "Transcript data is not available."
	NotCoveredAnswer   = "This information was not covered in the session."
)

// InsightReport is the structured session analysis produced by
// [Engine.GenerateInsights].
type InsightReport struct {
	SessionOverview struct {
		TotalQuestions     int    `json:"total_questions"`
		RelevantAsked      int    `json:"relevant_asked"`
		RelevantAnswered   int    `json:"relevant_answered"`
		RelevantUnanswered int    `json:"relevant_unanswered"`
		OffTopicAsked      int    `json:"off_topic_asked"`
		EngagementLevel    string `json:"engagement_level"`
	} `json:"session_overview"`

	TopInterestTopics []string `json:"top_interest_topics"`

	ClarityGaps []ClarityGap `json:"clarity_gaps"`

	SentimentSummary struct {
		PositivePercent float64 `json:"positive_percent"`
		NeutralPercent  float64 `json:"neutral_percent"`
		NegativePercent float64 `json:"negative_percent"`
		AudienceVibe    string  `json:"audience_vibe"`
	} `json:"sentiment_summary"`

	PotentialMisunderstandings     []string `json:"potential_misunderstandings"`
	DeliveryImprovementSuggestions []string `json:"delivery_improvement_suggestions"`
}

// ClarityGap names a topic the audience struggled with, backed by a quote.
type ClarityGap struct {
	Topic    string `json:"topic"`
	Evidence string `json:"evidence"`
}

// ActiveQuery answers an ad-hoc moderator inquiry from the transcript and
// the supplied audience comments. Unlike [Engine.Submit] it is synchronous,
// touches no registry state, and routes between transcript and comments by
// query intent. It degrades rather than fails: a missing transcript or an
// inference failure yields a fixed fallback sentence, and only a blank
// query is rejected with an error.
func (e *Engine) ActiveQuery(ctx context.Context, query, comments string) (string, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return "", ErrEmptyQuery
	}
	transcript := e.store.TranscriptTail(activeContextChars)
	if transcript == "" {
		return NoTranscriptAnswer, nil
	}

	answer, err := e.generate(ctx, "active_query", inference.Request{
		Prompt: buildActiveQueryPrompt(query, transcript, comments),
	})
	if err != nil {
		e.log.Warn("active query degraded to fallback answer", "err", err)
		return NotCoveredAnswer, nil
	}
	return strings.TrimSpace(answer), nil
}

// GenerateInsights produces a structured end-of-session report from the
// transcript, the full question registry, and the supplied audience
// comments. The model is asked for strict JSON and the response is decoded
// into an [InsightReport].
func (e *Engine) GenerateInsights(ctx context.Context, comments string) (*InsightReport, error) {
	transcript := e.store.TranscriptTail(insightContextChars)
	if transcript == "" {
		return nil, ErrNoTranscript
	}

	type questionRecord struct {
		Text     string `json:"text"`
		Status   string `json:"status"`
		Answered bool   `json:"answered"`
	}
	questions := e.store.Questions()
	records := make([]questionRecord, 0, len(questions))
	for _, q := range questions {
		records = append(records, questionRecord{
			Text:     q.Text,
			Status:   string(q.Status),
			Answered: q.Status == session.StatusAnswered,
		})
	}
	questionsJSON, err := json.Marshal(records)
	if err != nil {
		return nil, fmt.Errorf("encode question dataset: %w", err)
	}

	raw, err := e.generate(ctx, "insights", inference.Request{
		Prompt:     buildInsightPrompt(transcript, string(questionsJSON), comments),
		JSONOutput: true,
	})
	if err != nil {
		return nil, fmt.Errorf("insight generation: %w", err)
	}

	var report InsightReport
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &report); err != nil {
		return nil, fmt.Errorf("decode insight report: %w", err)
	}
	return &report, nil
}
