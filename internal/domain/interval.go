package domain

import (
	"time"

	"github.com/google/uuid"
)

type IntervalKind string

const (
	IntervalKindAppointment  IntervalKind = "appointment"
	IntervalKindGroupSession IntervalKind = "group_session"
	IntervalKindBlockedTime  IntervalKind = "blocked_time"
)

// Interval is the half-open time range [Start, End) a booking or group
// session occupies on a professional's calendar. Live is false for cancelled
// records, which never participate in conflict checks.
type Interval struct {
	ID             uuid.UUID
	ProfessionalID string
	Kind           IntervalKind
	Start          time.Time
	End            time.Time
	Live           bool
}

// Overlaps reports whether two half-open ranges intersect. The predicate is
// symmetric: a.Overlaps(b) == b.Overlaps(a).
func (i Interval) Overlaps(other Interval) bool {
	return i.Start.Before(other.End) && other.Start.Before(i.End)
}

// CheckConflict returns a *ConflictError naming the first existing interval
// that overlaps the candidate, or nil if the candidate is free. Only live
// intervals belonging to the candidate's professional are considered, and an
// interval never conflicts with itself, so reschedules can pass the full
// calendar without excluding their own record by hand.
func CheckConflict(candidate Interval, existing []Interval) error {
	for _, e := range existing {
		if !e.Live {
			continue
		}
		if e.ProfessionalID != candidate.ProfessionalID {
			continue
		}
		if e.ID != uuid.Nil && e.ID == candidate.ID {
			continue
		}
		if candidate.Overlaps(e) {
			return &ConflictError{
				IntervalID: e.ID,
				Kind:       e.Kind,
				Start:      e.Start,
				End:        e.End,
			}
		}
	}
	return nil
}

// EffectiveEnd computes the end time used for conflict purposes: the raw end
// (start + service duration) plus the professional's buffer. Buffer is added
// exactly once, here, before any conflict check; stored end times are
// buffer-inclusive.
func EffectiveEnd(start time.Time, duration, buffer time.Duration) time.Time {
	if buffer < 0 {
		buffer = 0
	}
	return start.Add(duration).Add(buffer)
}
