package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "pending"
	BookingStatusConfirmed BookingStatus = "confirmed"
	BookingStatusCancelled BookingStatus = "cancelled"
	BookingStatusCompleted BookingStatus = "completed"
	BookingStatusNoShow    BookingStatus = "no_show"
)

// Booking is one individual appointment, one occurrence of a legacy group
// class, or a blocked slot (kind blocked_time). EndTime is buffer-inclusive:
// the professional's buffer is folded in when the booking is created, so
// conflict checks never mix raw and buffered ends.
type Booking struct {
	bun.BaseModel `bun:"table:bookings"`

	ID                  uuid.UUID     `bun:"id,pk,type:uuid"`
	ProfessionalID      string        `bun:"professional_id,notnull"`
	ClientID            string        `bun:"client_id"`
	ServiceID           *uuid.UUID    `bun:"service_id,type:uuid"`
	Kind                IntervalKind  `bun:"kind,notnull"`
	Status              BookingStatus `bun:"status,notnull"`
	StartTime           time.Time     `bun:"start_time,notnull"`
	EndTime             time.Time     `bun:"end_time,notnull"`
	Notes               string        `bun:"notes"`
	PaymentStatus       string        `bun:"payment_status"`
	MaxParticipants     int           `bun:"max_participants,notnull"`
	CurrentParticipants int           `bun:"current_participants,notnull"`
	Recurring           bool          `bun:"recurring,notnull"`
	ParentBookingID     *uuid.UUID    `bun:"parent_booking_id,type:uuid"`
	RecurrenceID        *uuid.UUID    `bun:"recurrence_id,type:uuid"`
	CreatedAt           time.Time     `bun:"created_at,notnull"`
	UpdatedAt           time.Time     `bun:"updated_at,notnull"`
}

func (b *Booking) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	now := time.Now().UTC()
	switch query.(type) {
	case *bun.InsertQuery:
		if b.ID == uuid.Nil {
			id, err := uuid.NewV7()
			if err != nil {
				return err
			}
			b.ID = id
		}
		if b.CreatedAt.IsZero() {
			b.CreatedAt = now
		}
		if b.UpdatedAt.IsZero() {
			b.UpdatedAt = now
		}
	case *bun.UpdateQuery:
		b.UpdatedAt = now
	}
	return nil
}

// Live reports whether the booking still participates in conflict checks.
// Completed and no-show bookings stay live; their ranges are in the past by
// construction, so future candidates never reach them.
func (b *Booking) Live() bool {
	return b.Status != BookingStatusCancelled
}

// Interval derives the conflict-check view of the booking.
func (b *Booking) Interval() Interval {
	return Interval{
		ID:             b.ID,
		ProfessionalID: b.ProfessionalID,
		Kind:           b.Kind,
		Start:          b.StartTime,
		End:            b.EndTime,
		Live:           b.Live(),
	}
}

// CapacityBearing reports whether the booking tracks a participant count
// that must stay within [0, max]. Non-group bookings carry a fixed 1/1.
func (b *Booking) CapacityBearing() bool {
	return b.Kind == IntervalKindGroupSession
}

var bookingTransitions = map[BookingStatus][]BookingStatus{
	BookingStatusPending:   {BookingStatusConfirmed, BookingStatusCancelled},
	BookingStatusConfirmed: {BookingStatusCancelled, BookingStatusCompleted, BookingStatusNoShow},
}

// CanTransition reports whether to is a legal next status. Cancelled,
// completed and no_show are terminal.
func (b *Booking) CanTransition(to BookingStatus) bool {
	for _, next := range bookingTransitions[b.Status] {
		if next == to {
			return true
		}
	}
	return false
}

// Transition moves the booking to a new status, enforcing the lifecycle
// state machine. Capacity side effects are the caller's responsibility; they
// must be applied in the same transaction as the status write.
func (b *Booking) Transition(to BookingStatus) error {
	if !b.CanTransition(to) {
		return &InvalidTransitionError{From: string(b.Status), To: string(to)}
	}
	b.Status = to
	return nil
}

// InitialStatus is the creation-time branch for auto-confirmation: it is not
// a transition, the booking simply starts out confirmed.
func InitialStatus(autoConfirm bool) BookingStatus {
	if autoConfirm {
		return BookingStatusConfirmed
	}
	return BookingStatusPending
}

// Reserve adds one participant, failing without mutation when the booking
// is full.
func (b *Booking) Reserve() error {
	next, err := reserveSlot(b.CurrentParticipants, b.MaxParticipants)
	if err != nil {
		return err
	}
	b.CurrentParticipants = next
	return nil
}

// Release removes one participant, failing without mutation when the count
// is already zero.
func (b *Booking) Release() error {
	next, err := releaseSlot(b.CurrentParticipants)
	if err != nil {
		return err
	}
	b.CurrentParticipants = next
	return nil
}
