package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestIntervalOverlaps(t *testing.T) {
	base := time.Date(2026, 4, 6, 9, 0, 0, 0, time.UTC)
	mk := func(startOffset, endOffset time.Duration) Interval {
		return Interval{Start: base.Add(startOffset), End: base.Add(endOffset)}
	}

	tests := []struct {
		name string
		a, b Interval
		want bool
	}{
		{name: "identical", a: mk(0, time.Hour), b: mk(0, time.Hour), want: true},
		{name: "partial overlap", a: mk(0, time.Hour), b: mk(30*time.Minute, 90*time.Minute), want: true},
		{name: "contained", a: mk(0, 2*time.Hour), b: mk(30*time.Minute, time.Hour), want: true},
		{name: "back to back", a: mk(0, time.Hour), b: mk(time.Hour, 2*time.Hour), want: false},
		{name: "disjoint", a: mk(0, time.Hour), b: mk(3*time.Hour, 4*time.Hour), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.Overlaps(tt.b); got != tt.want {
				t.Fatalf("a.Overlaps(b) = %v, want %v", got, tt.want)
			}
			if got := tt.b.Overlaps(tt.a); got != tt.want {
				t.Fatalf("b.Overlaps(a) = %v, want %v (symmetry)", got, tt.want)
			}
		})
	}
}

func TestCheckConflict(t *testing.T) {
	base := time.Date(2026, 4, 6, 9, 0, 0, 0, time.UTC)
	candidateID := uuid.MustParse("00000000-0000-0000-0000-00000000000a")
	otherID := uuid.MustParse("00000000-0000-0000-0000-00000000000b")

	candidate := Interval{
		ID:             candidateID,
		ProfessionalID: "pro-1",
		Kind:           IntervalKindAppointment,
		Start:          base,
		End:            base.Add(time.Hour),
		Live:           true,
	}

	overlapping := Interval{
		ID:             otherID,
		ProfessionalID: "pro-1",
		Kind:           IntervalKindBlockedTime,
		Start:          base.Add(30 * time.Minute),
		End:            base.Add(90 * time.Minute),
		Live:           true,
	}

	t.Run("reports first overlap", func(t *testing.T) {
		err := CheckConflict(candidate, []Interval{overlapping})
		var conflict *ConflictError
		if !errors.As(err, &conflict) {
			t.Fatalf("err = %v, want *ConflictError", err)
		}
		if conflict.IntervalID != otherID {
			t.Fatalf("conflict.IntervalID = %s, want %s", conflict.IntervalID, otherID)
		}
		if conflict.Kind != IntervalKindBlockedTime {
			t.Fatalf("conflict.Kind = %s, want %s", conflict.Kind, IntervalKindBlockedTime)
		}
	})

	t.Run("skips cancelled intervals", func(t *testing.T) {
		dead := overlapping
		dead.Live = false
		if err := CheckConflict(candidate, []Interval{dead}); err != nil {
			t.Fatalf("CheckConflict error: %v", err)
		}
	})

	t.Run("skips other professionals", func(t *testing.T) {
		foreign := overlapping
		foreign.ProfessionalID = "pro-2"
		if err := CheckConflict(candidate, []Interval{foreign}); err != nil {
			t.Fatalf("CheckConflict error: %v", err)
		}
	})

	t.Run("never conflicts with itself", func(t *testing.T) {
		self := candidate
		if err := CheckConflict(candidate, []Interval{self}); err != nil {
			t.Fatalf("CheckConflict error: %v", err)
		}
	})

	t.Run("zero id is not self", func(t *testing.T) {
		anon := candidate
		anon.ID = uuid.Nil
		other := overlapping
		other.ID = uuid.Nil
		if err := CheckConflict(anon, []Interval{other}); err == nil {
			t.Fatalf("expected conflict between distinct zero-id intervals")
		}
	})
}

func TestEffectiveEnd(t *testing.T) {
	start := time.Date(2026, 4, 6, 9, 0, 0, 0, time.UTC)

	got := EffectiveEnd(start, time.Hour, 15*time.Minute)
	want := start.Add(75 * time.Minute)
	if !got.Equal(want) {
		t.Fatalf("EffectiveEnd = %v, want %v", got, want)
	}

	got = EffectiveEnd(start, time.Hour, 0)
	if !got.Equal(start.Add(time.Hour)) {
		t.Fatalf("zero buffer changed the end: %v", got)
	}

	got = EffectiveEnd(start, time.Hour, -10*time.Minute)
	if !got.Equal(start.Add(time.Hour)) {
		t.Fatalf("negative buffer must clamp to zero, got %v", got)
	}
}

func TestEffectiveEndBufferMonotonic(t *testing.T) {
	start := time.Date(2026, 4, 6, 9, 0, 0, 0, time.UTC)
	neighbor := Interval{
		ID:             uuid.MustParse("00000000-0000-0000-0000-000000000002"),
		ProfessionalID: "pro-1",
		Kind:           IntervalKindAppointment,
		Start:          start.Add(80 * time.Minute),
		End:            start.Add(140 * time.Minute),
		Live:           true,
	}

	prev := EffectiveEnd(start, time.Hour, 0)
	conflicted := false
	for buffer := time.Duration(0); buffer <= 3*time.Hour; buffer += 5 * time.Minute {
		end := EffectiveEnd(start, time.Hour, buffer)
		if end.Before(prev) {
			t.Fatalf("effective end decreased at buffer %v: %v < %v", buffer, end, prev)
		}
		prev = end

		candidate := Interval{
			ID:             uuid.MustParse("00000000-0000-0000-0000-000000000001"),
			ProfessionalID: "pro-1",
			Kind:           IntervalKindAppointment,
			Start:          start,
			End:            end,
			Live:           true,
		}
		overlaps := candidate.Overlaps(neighbor)
		if conflicted && !overlaps {
			t.Fatalf("buffer %v resolved a conflict a smaller buffer created", buffer)
		}
		if overlaps {
			conflicted = true
		}
	}
	if !conflicted {
		t.Fatalf("sweep never reached the neighboring interval")
	}
}
