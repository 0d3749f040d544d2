package session

import "time"

// Status is the lifecycle state of a question.
//
// The legal transitions are:
//
//	pending → nonsense | off_topic | relevant
//	relevant → answered | unanswered
//	unanswered → answered
//
// nonsense, off_topic, and answered are terminal. unanswered is not — the
// recheck sweeper re-attempts resolution whenever the transcript grows.
type Status string

const (
	StatusPending    Status = "pending"
	StatusNonsense   Status = "nonsense"
	StatusOffTopic   Status = "off_topic"
	StatusRelevant   Status = "relevant"
	StatusUnanswered Status = "unanswered"
	StatusAnswered   Status = "answered"
)

// IsValid reports whether s is a recognised status.
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusNonsense, StatusOffTopic,
		StatusRelevant, StatusUnanswered, StatusAnswered:
		return true
	}
	return false
}

// Terminal reports whether s admits no further transitions.
func (s Status) Terminal() bool {
	switch s {
	case StatusNonsense, StatusOffTopic, StatusAnswered:
		return true
	}
	return false
}

// validTransitions maps each status to the set of statuses it may move to.
var validTransitions = map[Status][]Status{
	StatusPending:    {StatusNonsense, StatusOffTopic, StatusRelevant},
	StatusRelevant:   {StatusAnswered, StatusUnanswered},
	StatusUnanswered: {StatusAnswered},
}

// CanTransition reports whether a question in status s may move to "to".
// A same-status transition is permitted as a no-op.
func (s Status) CanTransition(to Status) bool {
	if s == to {
		return true
	}
	for _, allowed := range validTransitions[s] {
		if allowed == to {
			return true
		}
	}
	return false
}

// Question is a user-submitted query tracked through classification and
// answer resolution. Values handed out by the [Store] are copies; only the
// Store mutates the canonical entry.
type Question struct {
	// ID is a generated identifier, unique and stable for the session.
	ID string

	// User is the free-text submitter name. May be "Anonymous".
	User string

	// Text is the trimmed question text. Never empty.
	Text string

	// Status is the current lifecycle state.
	Status Status

	// Answer holds the extracted answer once Status is answered.
	Answer string

	// CreatedAt is the submission time.
	CreatedAt time.Time
}
