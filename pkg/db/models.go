package db

import "time"

// Document identifies a loaded novel and how far the reader has got.
type Document struct {
	ID           int64
	Fingerprint  string
	Title        string
	Path         string
	SegmentCount int
	LastSegment  int // index of the last acknowledged segment, -1 if none
	AddedAt      time.Time
}

// SessionRecord is the durable summary of one finished reading session.
type SessionRecord struct {
	ID                  string
	DocumentID          int64
	StartedAt           time.Time
	FinishedAt          time.Time
	WordsEncountered    int
	NewWordsLearned     int
	SegmentsRead        int
	Elapsed             time.Duration
	Explanations        int
	ExplanationFailures int
}

// EventKind classifies a word event.
type EventKind string

const (
	EventExposure EventKind = "exposure"
	EventKnown    EventKind = "known"
	EventUnknown  EventKind = "unknown"
)

// WordEvent is one journaled exposure or feedback for a word.
type WordEvent struct {
	SessionID    string
	Word         string
	Kind         EventKind
	SegmentIndex int
	OccurredAt   time.Time
}
