// Package event provides the typed session event model and a non-blocking
// fan-out broker. Every state transition in the session pipeline is
// published here so the (external) push-channel layer can reconstruct
// registry and transcript deltas without re-querying.
package event

import (
	"time"

	"github.com/lumina-live/lumina/internal/session"
)

// Type identifies the kind of session event.
type Type string

const (
	// TypeQuestionReceived fires when a submission enters the registry.
	// Carries the full Question.
	TypeQuestionReceived Type = "question_received"

	// TypeQuestionStatus fires on every lifecycle transition. Carries
	// QuestionID and Status.
	TypeQuestionStatus Type = "question_status"

	// TypeAnswer fires when an answer is produced. Carries QuestionID and
	// Answer.
	TypeAnswer Type = "answer"

	// TypeTranscriptChunk fires per appended transcript fragment. Carries
	// Chunk and StreamID.
	TypeTranscriptChunk Type = "transcript_chunk"

	// TypeTranscriptEmpty fires when an ingestion stream finishes without
	// producing a single fragment. Carries StreamID.
	TypeTranscriptEmpty Type = "transcript_empty"

	// TypeSessionReset fires when the transcript and registry are cleared
	// together. Carries StreamID of the replacing source, if any.
	TypeSessionReset Type = "session_reset"

	// TypeError reports a non-fatal background failure. Carries Err.
	TypeError Type = "error"
)

// Event is one session state transition. Only the fields documented for
// the respective [Type] are populated.
type Event struct {
	Type Type

	// Question is the full question snapshot (TypeQuestionReceived).
	Question *session.Question

	// QuestionID identifies the affected question.
	QuestionID string

	// Status is the new lifecycle status (TypeQuestionStatus).
	Status session.Status

	// Answer is the produced answer text (TypeAnswer).
	Answer string

	// Chunk is the appended transcript fragment (TypeTranscriptChunk).
	Chunk string

	// StreamID tags the logical ingestion job a fragment belongs to, so a
	// consumer can reassemble ordered output per job.
	StreamID string

	// Err is the failure description (TypeError).
	Err string

	// Time is when the event was published.
	Time time.Time
}
