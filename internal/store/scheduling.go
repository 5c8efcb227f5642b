package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"wellplan/backend/internal/domain"
)

// SchedulingRepository is the booking engine's view of storage. Every
// mutating operation runs its conflict check and write inside a single
// transaction holding the professional's advisory lock, so two concurrent
// requests for overlapping slots can never both succeed.
type SchedulingRepository interface {
	// CreateBooking persists a booking after buffering its end time and
	// conflict-checking it. Booking times arrive raw (start + service
	// duration); the professional's buffer is folded in before the check.
	// When rule is non-nil the recurrence is expanded in the same
	// transaction and the result reports created vs skipped occurrences.
	CreateBooking(ctx context.Context, booking domain.Booking, rule *domain.RecurrenceRule) (domain.Booking, domain.ExpansionResult, error)

	// Reschedule moves a booking to a new raw time range, re-buffering and
	// conflict-checking it against everything except the booking itself.
	Reschedule(ctx context.Context, professionalID string, bookingID uuid.UUID, start, end time.Time) (domain.Booking, error)

	// Transition applies a lifecycle status change atomically with its
	// capacity side effects.
	Transition(ctx context.Context, professionalID string, bookingID uuid.UUID, to domain.BookingStatus) (domain.Booking, error)

	// AddParticipant and RemoveParticipant adjust a group booking's
	// participant count, atomically with the bounds check.
	AddParticipant(ctx context.Context, professionalID string, bookingID uuid.UUID) (domain.Booking, error)
	RemoveParticipant(ctx context.Context, professionalID string, bookingID uuid.UUID) (domain.Booking, error)

	// CancelFutureBookings cancels every pending or confirmed booking
	// starting at or after from, one lifecycle transition per record, and
	// returns the number cancelled.
	CancelFutureBookings(ctx context.Context, professionalID string, from time.Time) (int, error)

	List(ctx context.Context, professionalID string, windowStart, windowEnd time.Time) ([]domain.Booking, error)
	Delete(ctx context.Context, professionalID string, bookingID uuid.UUID) error

	GetProfessional(ctx context.Context, professionalID string) (domain.Professional, error)
}

// GroupRepository covers the course-catalogue model: class templates,
// scheduled sessions, and client registrations. Registration mutations keep
// session.current_participants equal to the count of non-cancelled
// registrations inside the same transaction.
type GroupRepository interface {
	CreateClass(ctx context.Context, class domain.GroupClass) (domain.GroupClass, error)
	GetClass(ctx context.Context, classID uuid.UUID) (domain.GroupClass, error)

	// ScheduleSession conflict-checks the session against all of the
	// professional's live intervals before inserting it.
	ScheduleSession(ctx context.Context, session domain.GroupSession) (domain.GroupSession, error)
	ListSessions(ctx context.Context, professionalID string, windowStart, windowEnd time.Time) ([]domain.GroupSession, error)

	// CancelSession cancels a session and every active registration on it,
	// releasing each registration's capacity unit through the same
	// transition path a single cancellation uses.
	CancelSession(ctx context.Context, sessionID uuid.UUID) (domain.GroupSession, error)

	Register(ctx context.Context, sessionID uuid.UUID, clientID string) (domain.GroupRegistration, error)
	TransitionRegistration(ctx context.Context, registrationID uuid.UUID, to domain.RegistrationStatus) (domain.GroupRegistration, error)
}
