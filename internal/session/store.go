// Package session holds the shared state of one live session: the
// append-only transcript and the question registry. The [Store] is the
// single source of truth for every other component and serialises all
// access behind one lock; inference calls never happen inside it.
//
// A monotonically increasing generation counter fences resets: every
// mutator takes the generation its caller observed, and writes carrying a
// superseded generation are rejected with [ErrStaleSession]. An in-flight
// classification or extraction started before a reset therefore cannot
// leak results into the new session.
package session

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrStaleSession is returned by mutators when the supplied generation no
// longer matches the store, i.e. the session was reset after the caller
// took its snapshot.
var ErrStaleSession = errors.New("session: stale generation")

// ErrQuestionNotFound is returned when a question ID is not in the registry.
var ErrQuestionNotFound = errors.New("session: question not found")

// ErrInvalidTransition is returned when a status update violates the
// lifecycle state machine.
var ErrInvalidTransition = errors.New("session: invalid status transition")

// Store pairs one transcript with one question registry under a single
// lock. All exported methods are safe for concurrent use.
type Store struct {
	mu         sync.RWMutex
	generation uint64
	transcript strings.Builder
	questions  map[string]*Question
	order      []string
}

// NewStore creates an empty Store at generation 1.
func NewStore() *Store {
	return &Store{
		generation: 1,
		questions:  make(map[string]*Question),
	}
}

// Generation returns the current session generation. Callers snapshot it
// before starting work and pass it back to mutators.
func (s *Store) Generation() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.generation
}

// Reset atomically clears the transcript and the registry together and
// bumps the generation, invalidating all in-flight work from the previous
// session. Returns the new generation.
func (s *Store) Reset() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transcript.Reset()
	s.questions = make(map[string]*Question)
	s.order = nil
	s.generation++
	return s.generation
}

// ─── Transcript ──────────────────────────────────────────────────────────────

// AppendTranscript appends fragment to the transcript. Returns false when
// gen is stale; the fragment is discarded in that case.
func (s *Store) AppendTranscript(gen uint64, fragment string) bool {
	if fragment == "" {
		return true
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.generation {
		return false
	}
	s.transcript.WriteString(fragment)
	return true
}

// Transcript returns the full transcript text.
func (s *Store) Transcript() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.transcript.String()
}

// TranscriptTail returns at most maxChars trailing characters of the
// transcript. A non-positive maxChars returns the full transcript.
func (s *Store) TranscriptTail(maxChars int) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t := s.transcript.String()
	if maxChars <= 0 || len(t) <= maxChars {
		return t
	}
	return t[len(t)-maxChars:]
}

// TranscriptLen returns the transcript length in bytes.
func (s *Store) TranscriptLen() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.transcript.Len()
}

// ─── Question registry ───────────────────────────────────────────────────────

// AddQuestion inserts a new pending question and returns a copy of it.
// Returns false when gen is stale.
func (s *Store) AddQuestion(gen uint64, user, text string) (Question, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.generation {
		return Question{}, false
	}
	q := &Question{
		ID:        uuid.NewString(),
		User:      user,
		Text:      text,
		Status:    StatusPending,
		CreatedAt: time.Now().UTC(),
	}
	s.questions[q.ID] = q
	s.order = append(s.order, q.ID)
	return *q, true
}

// Question returns a copy of the question with the given ID.
func (s *Store) Question(id string) (Question, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	q, ok := s.questions[id]
	if !ok {
		return Question{}, false
	}
	return *q, true
}

// Questions returns copies of all questions in insertion order.
func (s *Store) Questions() []Question {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Question, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, *s.questions[id])
	}
	return out
}

// QuestionsWithStatus returns copies of all questions currently in the
// given status, in insertion order.
func (s *Store) QuestionsWithStatus(st Status) []Question {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Question
	for _, id := range s.order {
		if q := s.questions[id]; q.Status == st {
			out = append(out, *q)
		}
	}
	return out
}

// UpdateStatus moves a question to status "to" as one atomic
// read-modify-write. A same-status update is a silent no-op (changed is
// false). Stale generations, unknown IDs, and illegal transitions fail.
func (s *Store) UpdateStatus(gen uint64, id string, to Status) (q Question, changed bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.generation {
		return Question{}, false, ErrStaleSession
	}
	entry, ok := s.questions[id]
	if !ok {
		return Question{}, false, ErrQuestionNotFound
	}
	if entry.Status == to {
		return *entry, false, nil
	}
	if !entry.Status.CanTransition(to) {
		return Question{}, false, fmt.Errorf("%w: %s → %s", ErrInvalidTransition, entry.Status, to)
	}
	entry.Status = to
	return *entry, true, nil
}

// SetAnswer transitions a question to answered and stores the answer text
// atomically. When the question is already answered the call is an
// idempotent no-op (changed is false), so overlapping sweeper passes
// resolving the same question cannot corrupt the registry.
func (s *Store) SetAnswer(gen uint64, id, answer string) (q Question, changed bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.generation {
		return Question{}, false, ErrStaleSession
	}
	entry, ok := s.questions[id]
	if !ok {
		return Question{}, false, ErrQuestionNotFound
	}
	if entry.Status == StatusAnswered {
		return *entry, false, nil
	}
	if !entry.Status.CanTransition(StatusAnswered) {
		return Question{}, false, fmt.Errorf("%w: %s → %s", ErrInvalidTransition, entry.Status, StatusAnswered)
	}
	entry.Status = StatusAnswered
	entry.Answer = answer
	return *entry, true, nil
}
