package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"wellplan/backend/internal/domain"
)

// SchedulingTx is the set of operations available inside a locked
// professional-scoped transaction. The conflict-then-write logic runs
// against this interface so it can be exercised without a database.
type SchedulingTx interface {
	GetProfessional(ctx context.Context, professionalID string) (domain.Professional, error)

	// ListLiveIntervals returns every non-cancelled interval (bookings and
	// group sessions) for the professional overlapping the window.
	ListLiveIntervals(ctx context.Context, professionalID string, windowStart, windowEnd time.Time) ([]domain.Interval, error)

	InsertBooking(ctx context.Context, booking domain.Booking) (domain.Booking, error)
	GetBooking(ctx context.Context, professionalID string, bookingID uuid.UUID) (domain.Booking, error)
	UpdateBooking(ctx context.Context, booking domain.Booking) (domain.Booking, error)
	DeleteBooking(ctx context.Context, professionalID string, bookingID uuid.UUID) error
	ListBookingsByStatus(ctx context.Context, professionalID string, statuses []domain.BookingStatus, from time.Time) ([]domain.Booking, error)

	InsertRecurrenceRule(ctx context.Context, rule domain.RecurrenceRule) (domain.RecurrenceRule, error)

	InsertGroupSession(ctx context.Context, session domain.GroupSession) (domain.GroupSession, error)
}

// GroupTx is the set of operations available inside a locked
// session-scoped transaction.
type GroupTx interface {
	GetSession(ctx context.Context, sessionID uuid.UUID) (domain.GroupSession, error)
	UpdateSession(ctx context.Context, session domain.GroupSession) (domain.GroupSession, error)
	InsertRegistration(ctx context.Context, reg domain.GroupRegistration) (domain.GroupRegistration, error)
	GetRegistration(ctx context.Context, registrationID uuid.UUID) (domain.GroupRegistration, error)
	UpdateRegistration(ctx context.Context, reg domain.GroupRegistration) (domain.GroupRegistration, error)
	ListActiveRegistrations(ctx context.Context, sessionID uuid.UUID) ([]domain.GroupRegistration, error)
}
