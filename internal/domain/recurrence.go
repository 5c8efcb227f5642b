package domain

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type RecurrenceType string

const (
	RecurrenceTypeDaily    RecurrenceType = "daily"
	RecurrenceTypeWeekly   RecurrenceType = "weekly"
	RecurrenceTypeBiweekly RecurrenceType = "biweekly"
	RecurrenceTypeMonthly  RecurrenceType = "monthly"
)

const (
	// DefaultHorizonMonths bounds expansion when a rule sets neither an end
	// date nor an occurrence count.
	DefaultHorizonMonths = 3
	// MaxOccurrences is the hard cap on created occurrences, a safety valve
	// against unbounded generation. An EndAfter above it is clamped.
	MaxOccurrences = 52
)

// walkLimitDays returns how many days a count-bounded expansion may examine:
// enough for the creation target at the rule's sparsest cadence, plus
// MaxOccurrences cadence slots of headroom for conflict skips. Monthly gets
// two months per occurrence because a day-31 rule fires in only seven months
// of the year.
func walkLimitDays(t RecurrenceType, target int) int {
	perOccurrence := 1
	switch t {
	case RecurrenceTypeWeekly:
		perOccurrence = 7
	case RecurrenceTypeBiweekly:
		perOccurrence = 14
	case RecurrenceTypeMonthly:
		perOccurrence = 62
	}
	return perOccurrence * (target + MaxOccurrences)
}

// RecurrenceRule belongs to exactly one origin booking. Weekdays use
// time.Weekday numbering (0 = Sunday). EndDate and EndAfter are mutually
// exclusive; when neither is set, expansion stops at the default horizon and
// occurrence cap.
type RecurrenceRule struct {
	bun.BaseModel `bun:"table:recurrence_rules"`

	ID        uuid.UUID      `bun:"id,pk,type:uuid"`
	BookingID uuid.UUID      `bun:"booking_id,notnull,type:uuid"`
	Type      RecurrenceType `bun:"type,notnull"`
	Interval  int            `bun:"interval,notnull"`
	Weekdays  []int16        `bun:"weekdays,array"`
	MonthDay  int            `bun:"month_day"`
	EndDate   *time.Time     `bun:"end_date"`
	EndAfter  *int           `bun:"end_after"`
	CreatedAt time.Time      `bun:"created_at,notnull"`
	UpdatedAt time.Time      `bun:"updated_at,notnull"`
}

func (r *RecurrenceRule) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	now := time.Now().UTC()
	switch query.(type) {
	case *bun.InsertQuery:
		if r.ID == uuid.Nil {
			id, err := uuid.NewV7()
			if err != nil {
				return err
			}
			r.ID = id
		}
		if r.CreatedAt.IsZero() {
			r.CreatedAt = now
		}
		if r.UpdatedAt.IsZero() {
			r.UpdatedAt = now
		}
	case *bun.UpdateQuery:
		r.UpdatedAt = now
	}
	return nil
}

// Validate rejects malformed rules before any expansion or persistence.
func (r *RecurrenceRule) Validate() error {
	switch r.Type {
	case RecurrenceTypeDaily, RecurrenceTypeWeekly, RecurrenceTypeBiweekly, RecurrenceTypeMonthly:
	default:
		return &InvalidRuleError{Reason: "unknown recurrence type"}
	}
	if r.Interval != 0 && r.Interval != 1 {
		return &InvalidRuleError{Reason: "interval must be 1"}
	}
	for _, wd := range r.Weekdays {
		if wd < 0 || wd > 6 {
			return &InvalidRuleError{Reason: "weekday must be between 0 and 6"}
		}
	}
	if r.MonthDay != 0 && (r.MonthDay < 1 || r.MonthDay > 31) {
		return &InvalidRuleError{Reason: "month day must be between 1 and 31"}
	}
	if r.EndDate != nil && r.EndAfter != nil {
		return &InvalidRuleError{Reason: "end date and occurrence count are mutually exclusive"}
	}
	if r.EndAfter != nil && *r.EndAfter < 1 {
		return &InvalidRuleError{Reason: "occurrence count must be at least 1"}
	}
	return nil
}

// normalizedWeekdays returns the rule's weekday set deduplicated and sorted.
func (r *RecurrenceRule) normalizedWeekdays() []int16 {
	seen := make(map[int16]struct{}, len(r.Weekdays))
	out := make([]int16, 0, len(r.Weekdays))
	for _, wd := range r.Weekdays {
		if _, ok := seen[wd]; ok {
			continue
		}
		seen[wd] = struct{}{}
		out = append(out, wd)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// matchesDay reports whether a candidate day qualifies under the rule,
// given the origin start. day is midnight UTC of the candidate date.
func (r *RecurrenceRule) matchesDay(origin time.Time, day time.Time) bool {
	switch r.Type {
	case RecurrenceTypeDaily:
		return true
	case RecurrenceTypeWeekly:
		return r.weekdayMatches(origin, day)
	case RecurrenceTypeBiweekly:
		if !r.weekdayMatches(origin, day) {
			return false
		}
		// Parity is floor(elapsed time / 7 days) since the origin, not a
		// calendar-week computation. Mirrors the behavior of the system this
		// engine replaces.
		candidate := atTimeOfDay(day, origin)
		weeks := int(candidate.Sub(origin) / (7 * 24 * time.Hour))
		return weeks%2 == 0
	case RecurrenceTypeMonthly:
		monthDay := r.MonthDay
		if monthDay == 0 {
			monthDay = origin.Day()
		}
		return day.Day() == monthDay
	}
	return false
}

func (r *RecurrenceRule) weekdayMatches(origin time.Time, day time.Time) bool {
	weekdays := r.normalizedWeekdays()
	if len(weekdays) == 0 {
		return day.Weekday() == origin.Weekday()
	}
	for _, wd := range weekdays {
		if time.Weekday(wd) == day.Weekday() {
			return true
		}
	}
	return false
}

// ExpansionResult reports how many occurrences a rule produced and how many
// candidate days were dropped because they conflicted.
type ExpansionResult struct {
	Created []Booking
	Skipped int
}

// ExpandRecurrence materializes future occurrences of an origin booking.
// The walk moves day by day from the day after the origin, testing each
// qualifying candidate through hasConflict; conflicting occurrences are
// skipped silently, never retried, and do not count toward EndAfter. A
// wholly conflicting series is a success with zero created occurrences.
//
// hasConflict is called with the candidate interval and must reflect every
// live interval on the professional's calendar. Occurrences created earlier
// in the same expansion are checked internally, so a long daily occurrence
// spilling into the next day cannot collide with its own series.
func ExpandRecurrence(origin Booking, rule RecurrenceRule, hasConflict func(Interval) bool) (ExpansionResult, error) {
	if err := rule.Validate(); err != nil {
		return ExpansionResult{}, err
	}

	duration := origin.EndTime.Sub(origin.StartTime)
	if duration <= 0 {
		return ExpansionResult{}, &InvalidRuleError{Reason: "origin booking has no duration"}
	}

	originStart := origin.StartTime.UTC()

	maxCreated := MaxOccurrences
	if rule.EndAfter != nil && *rule.EndAfter < MaxOccurrences {
		maxCreated = *rule.EndAfter
	}

	var dateBound time.Time
	haveDateBound := false
	if rule.EndDate != nil {
		// Inclusive date bound: occurrences on the end date itself still
		// qualify.
		dateBound = startOfDayUTC(rule.EndDate.UTC())
		haveDateBound = true
	} else if rule.EndAfter == nil {
		dateBound = startOfDayUTC(originStart.AddDate(0, DefaultHorizonMonths, 0))
		haveDateBound = true
	}

	var out ExpansionResult
	created := make([]Interval, 0, 8)
	day := startOfDayUTC(originStart).AddDate(0, 0, 1)

	// Date-bounded rules walk to their bound; count-bounded rules walk far
	// enough that a conflict-free series always reaches its target.
	walkLimit := walkLimitDays(rule.Type, maxCreated)
	if haveDateBound {
		walkLimit = int(dateBound.Sub(day)/(24*time.Hour)) + 1
	}

	for walked := 0; walked < walkLimit; walked++ {
		if rule.matchesDay(originStart, day) {
			start := atTimeOfDay(day, originStart)
			candidate := Interval{
				ProfessionalID: origin.ProfessionalID,
				Kind:           origin.Kind,
				Start:          start,
				End:            start.Add(duration),
				Live:           true,
			}
			if hasConflict(candidate) || CheckConflict(candidate, created) != nil {
				out.Skipped++
			} else {
				occ := origin
				occ.ID = uuid.Nil
				occ.StartTime = candidate.Start
				occ.EndTime = candidate.End
				occ.Recurring = true
				originID := origin.ID
				occ.ParentBookingID = &originID
				if rule.ID != uuid.Nil {
					ruleID := rule.ID
					occ.RecurrenceID = &ruleID
				}
				occ.CreatedAt = time.Time{}
				occ.UpdatedAt = time.Time{}
				out.Created = append(out.Created, occ)
				created = append(created, candidate)
				if len(out.Created) >= maxCreated {
					break
				}
			}
		}
		day = day.AddDate(0, 0, 1)
	}

	return out, nil
}

// ExpansionWindowEnd returns the latest instant an occurrence of the rule
// could end, so callers can load the conflict set for the whole expansion in
// one query.
func (r *RecurrenceRule) ExpansionWindowEnd(origin Booking) time.Time {
	duration := origin.EndTime.Sub(origin.StartTime)
	originStart := origin.StartTime.UTC()

	var bound time.Time
	switch {
	case r.EndDate != nil:
		bound = startOfDayUTC(r.EndDate.UTC())
	case r.EndAfter == nil:
		bound = startOfDayUTC(originStart.AddDate(0, DefaultHorizonMonths, 0))
	default:
		target := *r.EndAfter
		if target > MaxOccurrences {
			target = MaxOccurrences
		}
		bound = startOfDayUTC(originStart).AddDate(0, 0, walkLimitDays(r.Type, target))
	}
	return bound.AddDate(0, 0, 1).Add(duration)
}

func startOfDayUTC(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// atTimeOfDay places the origin's wall-clock time on the candidate day.
func atTimeOfDay(day time.Time, origin time.Time) time.Time {
	return time.Date(
		day.Year(), day.Month(), day.Day(),
		origin.Hour(), origin.Minute(), origin.Second(), origin.Nanosecond(),
		time.UTC,
	)
}
