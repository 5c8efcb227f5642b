package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ConflictError reports that a candidate interval overlaps a live interval
// on the same professional's calendar. Callers surface it as a 409.
type ConflictError struct {
	IntervalID uuid.UUID
	Kind       IntervalKind
	Start      time.Time
	End        time.Time
}

func (e *ConflictError) Error() string {
	if e.IntervalID == uuid.Nil {
		return "time range is no longer available"
	}
	return fmt.Sprintf("time range conflicts with %s %s (%s to %s)",
		e.Kind, e.IntervalID,
		e.Start.Format(time.RFC3339), e.End.Format(time.RFC3339))
}

// CapacityError reports a reserve on a full session, or a release on an
// empty one.
type CapacityError struct {
	Current int
	Max     int
}

func (e *CapacityError) Error() string {
	if e.Current <= 0 {
		return "no participants to release"
	}
	return fmt.Sprintf("session is full: %d of %d participants", e.Current, e.Max)
}

// InvalidRuleError reports a malformed recurrence rule, rejected before any
// expansion or persistence happens.
type InvalidRuleError struct {
	Reason string
}

func (e *InvalidRuleError) Error() string {
	return "invalid recurrence rule: " + e.Reason
}

// InvalidTransitionError reports an illegal booking or registration status
// change.
type InvalidTransitionError struct {
	From string
	To   string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot transition from %s to %s", e.From, e.To)
}
