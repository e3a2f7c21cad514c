package vocab

import (
	"fmt"
	"math"
	"time"
)

// Status is the learning stage of a word. It is always derived from a
// proficiency value and never stored.
type Status string

const (
	StatusNew      Status = "new"
	StatusLearning Status = "learning"
	StatusFamiliar Status = "familiar"
	StatusMastered Status = "mastered"
)

// Policy holds the proficiency update rules.
type Policy struct {
	Min float64
	Max float64

	// ExposureRate is the fraction of the remaining headroom gained per
	// exposure: p += ExposureRate*(Max-p).
	ExposureRate float64

	// KnownBoost is the fraction of remaining headroom gained when the reader
	// marks a word as known, bounded by MaxFeedbackDelta.
	KnownBoost       float64
	MaxFeedbackDelta float64

	// UnknownRetain is the share of proficiency above Floor kept when the
	// reader marks a word as unknown. The result is never below Floor.
	UnknownRetain float64
	Floor         float64

	// StalenessWindow is how long after LastSeen proficiency starts to decay.
	StalenessWindow time.Duration
	// DecayRate is the exponential forgetting rate per day past the window.
	DecayRate float64

	LearningAt float64
	FamiliarAt float64
	MasteredAt float64
}

// DefaultPolicy returns the default proficiency rules.
func DefaultPolicy() Policy {
	return Policy{
		Min:              0,
		Max:              1,
		ExposureRate:     0.10,
		KnownBoost:       0.60,
		MaxFeedbackDelta: 0.40,
		UnknownRetain:    0.50,
		Floor:            0.10,
		StalenessWindow:  14 * 24 * time.Hour,
		DecayRate:        0.05,
		LearningAt:       0.15,
		FamiliarAt:       0.50,
		MasteredAt:       0.85,
	}
}

// Validate reports an inconsistent policy.
func (p Policy) Validate() error {
	switch {
	case !(p.Min < p.Max):
		return fmt.Errorf("%w: min %.2f must be below max %.2f", ErrInvalidPolicy, p.Min, p.Max)
	case p.ExposureRate <= 0 || p.ExposureRate >= 1:
		return fmt.Errorf("%w: exposure rate %.2f must be in (0, 1)", ErrInvalidPolicy, p.ExposureRate)
	case p.KnownBoost <= 0 || p.KnownBoost > 1:
		return fmt.Errorf("%w: known boost %.2f must be in (0, 1]", ErrInvalidPolicy, p.KnownBoost)
	case p.MaxFeedbackDelta <= 0:
		return fmt.Errorf("%w: max feedback delta must be positive", ErrInvalidPolicy)
	case p.UnknownRetain < 0 || p.UnknownRetain >= 1:
		return fmt.Errorf("%w: unknown retain %.2f must be in [0, 1)", ErrInvalidPolicy, p.UnknownRetain)
	case p.Floor < p.Min || p.Floor >= p.Max:
		return fmt.Errorf("%w: floor %.2f outside [%.2f, %.2f)", ErrInvalidPolicy, p.Floor, p.Min, p.Max)
	case p.StalenessWindow < 0 || p.DecayRate < 0:
		return fmt.Errorf("%w: staleness window and decay rate must not be negative", ErrInvalidPolicy)
	case !(p.Min <= p.LearningAt && p.LearningAt <= p.FamiliarAt && p.FamiliarAt <= p.MasteredAt && p.MasteredAt <= p.Max):
		return fmt.Errorf("%w: status thresholds out of order", ErrInvalidPolicy)
	}
	return nil
}

// StatusOf maps a proficiency value to its status.
func (p Policy) StatusOf(proficiency float64) Status {
	switch {
	case proficiency >= p.MasteredAt:
		return StatusMastered
	case proficiency >= p.FamiliarAt:
		return StatusFamiliar
	case proficiency >= p.LearningAt:
		return StatusLearning
	default:
		return StatusNew
	}
}

func (p Policy) clamp(x float64) float64 {
	if math.IsNaN(x) {
		return p.Min
	}
	return math.Min(p.Max, math.Max(p.Min, x))
}

func (p Policy) afterExposure(x float64) float64 {
	return p.clamp(x + p.ExposureRate*(p.Max-x))
}

func (p Policy) afterFeedback(x float64, known bool) float64 {
	if known {
		return p.clamp(x + math.Min(p.MaxFeedbackDelta, p.KnownBoost*(p.Max-x)))
	}
	return p.clamp(math.Max(p.Floor, p.Floor+p.UnknownRetain*(x-p.Floor)))
}

// decay applies forgetting for the time past the staleness window that has
// not already been accounted for in r.DecayedThrough.
func (p Policy) decay(r WordRecord, now time.Time) (WordRecord, bool) {
	if p.DecayRate <= 0 || r.LastSeen.IsZero() {
		return r, false
	}
	start := r.LastSeen.Add(p.StalenessWindow)
	if r.DecayedThrough.After(start) {
		start = r.DecayedThrough
	}
	if !now.After(start) {
		return r, false
	}
	days := now.Sub(start).Hours() / 24
	r.Proficiency = p.clamp(p.Min + (r.Proficiency-p.Min)*math.Exp(-p.DecayRate*days))
	r.DecayedThrough = now
	return r, true
}
