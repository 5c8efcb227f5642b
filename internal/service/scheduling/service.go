package scheduling

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"wellplan/backend/internal/domain"
	"wellplan/backend/internal/store"
)

type ValidationError struct {
	msg string
}

func (e *ValidationError) Error() string {
	return e.msg
}

func validationError(msg string) error {
	return &ValidationError{msg: msg}
}

type Service struct {
	repo store.SchedulingRepository
}

func NewService(repo store.SchedulingRepository) *Service {
	return &Service{repo: repo}
}

type RecurrenceInput struct {
	Type     domain.RecurrenceType
	Weekdays []int16
	MonthDay int
	EndDate  *time.Time
	EndAfter *int
}

type CreateBookingInput struct {
	ProfessionalID  string
	ClientID        string
	ServiceID       *uuid.UUID
	StartTime       time.Time
	DurationMinutes int
	Notes           string
	Group           bool
	MaxParticipants int
	Recurrence      *RecurrenceInput
}

// CreateBookingResult carries the booking plus the outcome of recurrence
// expansion, so callers can report "8 of 10 sessions scheduled; 2 skipped".
type CreateBookingResult struct {
	Booking            domain.Booking
	CreatedOccurrences []domain.Booking
	SkippedOccurrences int
}

func (s *Service) CreateBooking(ctx context.Context, in CreateBookingInput) (CreateBookingResult, error) {
	if in.ProfessionalID == "" {
		return CreateBookingResult{}, validationError("professional_id is required")
	}
	if in.ClientID == "" {
		return CreateBookingResult{}, validationError("client_id is required")
	}
	if in.StartTime.IsZero() {
		return CreateBookingResult{}, validationError("start_time is required")
	}
	if in.DurationMinutes <= 0 {
		return CreateBookingResult{}, validationError("duration_minutes must be positive")
	}
	duration := time.Duration(in.DurationMinutes) * time.Minute
	if duration > 24*time.Hour {
		return CreateBookingResult{}, validationError("duration too long")
	}

	start := in.StartTime.UTC()
	booking := domain.Booking{
		ProfessionalID:      in.ProfessionalID,
		ClientID:            in.ClientID,
		ServiceID:           in.ServiceID,
		Kind:                domain.IntervalKindAppointment,
		StartTime:           start,
		EndTime:             start.Add(duration),
		Notes:               strings.TrimSpace(in.Notes),
		MaxParticipants:     1,
		CurrentParticipants: 1,
	}
	if in.Group {
		if in.MaxParticipants < 1 {
			return CreateBookingResult{}, validationError("max_participants must be at least 1")
		}
		booking.Kind = domain.IntervalKindGroupSession
		booking.MaxParticipants = in.MaxParticipants
		booking.CurrentParticipants = 0
	}

	var rule *domain.RecurrenceRule
	if in.Recurrence != nil {
		r := domain.RecurrenceRule{
			Type:     in.Recurrence.Type,
			Interval: 1,
			Weekdays: in.Recurrence.Weekdays,
			MonthDay: in.Recurrence.MonthDay,
			EndAfter: in.Recurrence.EndAfter,
		}
		if in.Recurrence.EndDate != nil {
			d := in.Recurrence.EndDate.UTC()
			if d.Before(start) {
				return CreateBookingResult{}, validationError("end_date must be after start_time")
			}
			r.EndDate = &d
		}
		if err := r.Validate(); err != nil {
			return CreateBookingResult{}, err
		}
		rule = &r
	}

	created, expansion, err := s.repo.CreateBooking(ctx, booking, rule)
	if err != nil {
		return CreateBookingResult{}, err
	}
	return CreateBookingResult{
		Booking:            created,
		CreatedOccurrences: expansion.Created,
		SkippedOccurrences: expansion.Skipped,
	}, nil
}

type CreateBlockedTimeInput struct {
	ProfessionalID string
	StartTime      time.Time
	EndTime        time.Time
	Notes          string
}

// CreateBlockedTime reserves a range for the professional themselves. The
// record is a live booking with kind blocked_time; it conflicts exactly like
// an appointment.
func (s *Service) CreateBlockedTime(ctx context.Context, in CreateBlockedTimeInput) (domain.Booking, error) {
	if in.ProfessionalID == "" {
		return domain.Booking{}, validationError("professional_id is required")
	}

	start := in.StartTime.UTC()
	end := in.EndTime.UTC()
	if end.Equal(start) || end.Before(start) {
		return domain.Booking{}, validationError("end_time must be after start_time")
	}
	// Unlike appointments, a block may span days: vacations and leave are
	// modelled as one long blocked range.
	if end.Sub(start) > 366*24*time.Hour {
		return domain.Booking{}, validationError("blocked range must not exceed one year")
	}

	booking := domain.Booking{
		ProfessionalID:      in.ProfessionalID,
		Kind:                domain.IntervalKindBlockedTime,
		StartTime:           start,
		EndTime:             end,
		Notes:               strings.TrimSpace(in.Notes),
		MaxParticipants:     1,
		CurrentParticipants: 1,
	}

	created, _, err := s.repo.CreateBooking(ctx, booking, nil)
	if err != nil {
		return domain.Booking{}, err
	}
	return created, nil
}

func (s *Service) Reschedule(ctx context.Context, professionalID string, bookingID uuid.UUID, start time.Time, durationMinutes int) (domain.Booking, error) {
	if professionalID == "" {
		return domain.Booking{}, validationError("professional_id is required")
	}
	if bookingID == uuid.Nil {
		return domain.Booking{}, validationError("booking_id is required")
	}
	if start.IsZero() {
		return domain.Booking{}, validationError("start_time is required")
	}
	if durationMinutes <= 0 {
		return domain.Booking{}, validationError("duration_minutes must be positive")
	}
	duration := time.Duration(durationMinutes) * time.Minute
	if duration > 24*time.Hour {
		return domain.Booking{}, validationError("duration too long")
	}

	startUTC := start.UTC()
	return s.repo.Reschedule(ctx, professionalID, bookingID, startUTC, startUTC.Add(duration))
}

func (s *Service) Transition(ctx context.Context, professionalID string, bookingID uuid.UUID, to domain.BookingStatus) (domain.Booking, error) {
	if professionalID == "" {
		return domain.Booking{}, validationError("professional_id is required")
	}
	if bookingID == uuid.Nil {
		return domain.Booking{}, validationError("booking_id is required")
	}
	switch to {
	case domain.BookingStatusPending, domain.BookingStatusConfirmed, domain.BookingStatusCancelled,
		domain.BookingStatusCompleted, domain.BookingStatusNoShow:
	default:
		return domain.Booking{}, validationError("unknown status")
	}
	return s.repo.Transition(ctx, professionalID, bookingID, to)
}

func (s *Service) AddParticipant(ctx context.Context, professionalID string, bookingID uuid.UUID) (domain.Booking, error) {
	if professionalID == "" {
		return domain.Booking{}, validationError("professional_id is required")
	}
	if bookingID == uuid.Nil {
		return domain.Booking{}, validationError("booking_id is required")
	}
	return s.repo.AddParticipant(ctx, professionalID, bookingID)
}

func (s *Service) RemoveParticipant(ctx context.Context, professionalID string, bookingID uuid.UUID) (domain.Booking, error) {
	if professionalID == "" {
		return domain.Booking{}, validationError("professional_id is required")
	}
	if bookingID == uuid.Nil {
		return domain.Booking{}, validationError("booking_id is required")
	}
	return s.repo.RemoveParticipant(ctx, professionalID, bookingID)
}

// CancelFutureBookings is the suspension cascade: every future pending or
// confirmed booking is cancelled through the normal lifecycle transition.
func (s *Service) CancelFutureBookings(ctx context.Context, professionalID string, from time.Time) (int, error) {
	if professionalID == "" {
		return 0, validationError("professional_id is required")
	}
	if from.IsZero() {
		from = time.Now()
	}
	return s.repo.CancelFutureBookings(ctx, professionalID, from.UTC())
}

func (s *Service) List(ctx context.Context, professionalID string, windowStart, windowEnd time.Time) ([]domain.Booking, error) {
	if professionalID == "" {
		return nil, validationError("professional_id is required")
	}

	start := windowStart.UTC()
	end := windowEnd.UTC()
	if end.Equal(start) || end.Before(start) {
		return nil, validationError("window_end must be after window_start")
	}

	return s.repo.List(ctx, professionalID, start, end)
}

func (s *Service) Delete(ctx context.Context, professionalID string, bookingID uuid.UUID) error {
	if professionalID == "" {
		return validationError("professional_id is required")
	}
	if bookingID == uuid.Nil {
		return validationError("booking_id is required")
	}
	return s.repo.Delete(ctx, professionalID, bookingID)
}
