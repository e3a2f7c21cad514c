package vocab

import "time"

// WordRecord is the learning record for one normalized word.
type WordRecord struct {
	Word          string    `json:"word"`
	ExposureCount int       `json:"exposure_count"`
	Proficiency   float64   `json:"proficiency"`
	FirstSeen     time.Time `json:"first_seen"`
	LastSeen      time.Time `json:"last_seen"`
	// DecayedThrough is the instant up to which forgetting has been applied.
	DecayedThrough time.Time `json:"decayed_through"`
	// Version increases with every mutation and guards incremental writes.
	Version int64 `json:"version"`
}

// Status derives the learning stage from the record's proficiency.
func (r WordRecord) Status(p Policy) Status {
	return p.StatusOf(r.Proficiency)
}

// Stats is an aggregate view of a vocabulary.
type Stats struct {
	TotalWords      int            `json:"total_words" yaml:"total_words"`
	MasteredCount   int            `json:"mastered_count" yaml:"mastered_count"`
	MeanProficiency float64        `json:"mean_proficiency" yaml:"mean_proficiency"`
	ByStatus        map[Status]int `json:"by_status" yaml:"by_status"`
}

// Snapshot is an immutable point-in-time copy of the reader's proficiencies,
// safe to share across goroutines.
type Snapshot struct {
	proficiency map[string]float64
	stats       Stats
}

// NewSnapshot builds a snapshot from explicit proficiencies.
func NewSnapshot(policy Policy, proficiency map[string]float64) *Snapshot {
	s := &Snapshot{proficiency: make(map[string]float64, len(proficiency))}
	for w, p := range proficiency {
		s.proficiency[w] = policy.clamp(p)
	}
	s.stats = summarize(policy, s.proficiency)
	return s
}

// Proficiency returns the reader's proficiency for word and whether the
// reader has seen it.
func (s *Snapshot) Proficiency(word string) (float64, bool) {
	p, ok := s.proficiency[word]
	return p, ok
}

// MeanProficiency returns the mean proficiency over known records.
func (s *Snapshot) MeanProficiency() float64 { return s.stats.MeanProficiency }

// Stats returns the aggregate statistics captured with the snapshot.
func (s *Snapshot) Stats() Stats { return s.stats }

func summarize(policy Policy, proficiency map[string]float64) Stats {
	st := Stats{TotalWords: len(proficiency), ByStatus: map[Status]int{}}
	if len(proficiency) == 0 {
		return st
	}
	var sum float64
	for _, p := range proficiency {
		sum += p
		status := policy.StatusOf(p)
		st.ByStatus[status]++
		if status == StatusMastered {
			st.MasteredCount++
		}
	}
	st.MeanProficiency = sum / float64(len(proficiency))
	return st
}
