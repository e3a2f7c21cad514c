// Package session drives one reader through one document, segment by
// segment, feeding what they read back into the vocabulary store.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/japaniel/novelreader/pkg/difficulty"
	"github.com/japaniel/novelreader/pkg/document"
)

var (
	ErrNotStarted          = errors.New("session: not started")
	ErrAlreadyStarted      = errors.New("session: already started")
	ErrOutOfSegments       = errors.New("session: out of segments")
	ErrSessionClosed       = errors.New("session: closed")
	ErrSegmentNotServed    = errors.New("session: segment was not served")
	ErrAlreadyAcknowledged = errors.New("session: segment already acknowledged")
)

// State is the lifecycle position of a session.
type State int

const (
	NotStarted State = iota
	InProgress
	Completed
)

func (s State) String() string {
	switch s {
	case NotStarted:
		return "not started"
	case InProgress:
		return "in progress"
	case Completed:
		return "completed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Stats summarizes one session. WordsEncountered counts token occurrences;
// NewWordsLearned counts distinct lemmas the store had no record of before
// their segment was acknowledged.
type Stats struct {
	ID                  string        `json:"id" yaml:"id"`
	Document            string        `json:"document" yaml:"document"`
	StartedAt           time.Time     `json:"started_at" yaml:"started_at"`
	WordsEncountered    int           `json:"words_encountered" yaml:"words_encountered"`
	NewWordsLearned     int           `json:"new_words_learned" yaml:"new_words_learned"`
	SegmentsRead        int           `json:"segments_read" yaml:"segments_read"`
	Elapsed             time.Duration `json:"elapsed" yaml:"elapsed"`
	Explanations        int           `json:"explanations" yaml:"explanations"`
	ExplanationFailures int           `json:"explanation_failures" yaml:"explanation_failures"`
}

// AnnotatedSegment is a served segment with what the session learned about it.
type AnnotatedSegment struct {
	Segment      document.Segment `json:"segment" yaml:"segment"`
	Score        difficulty.Score `json:"score" yaml:"score"`
	Explanation  string           `json:"explanation,omitempty" yaml:"explanation,omitempty"`
	Acknowledged bool             `json:"acknowledged" yaml:"acknowledged"`
}

// EventKind classifies a journaled word event.
type EventKind string

const (
	EventExposure EventKind = "exposure"
	EventKnown    EventKind = "known"
	EventUnknown  EventKind = "unknown"
)

// Event is one exposure or feedback applied to the store.
type Event struct {
	Word         string
	Kind         EventKind
	SegmentIndex int
	At           time.Time
}

// Journal records reading progress alongside the vocabulary store. Journal
// failures are logged and never end a session.
type Journal interface {
	// Open registers doc for the session and returns the index of the last
	// segment acknowledged in any earlier session, or -1.
	Open(ctx context.Context, sessionID string, doc *document.Document) (int, error)
	// Acknowledged records the events of one acknowledged segment.
	Acknowledged(ctx context.Context, sessionID string, segment int, events []Event) error
	// Finished records the final stats of a session.
	Finished(ctx context.Context, stats Stats) error
}
