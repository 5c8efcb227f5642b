package groups

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
	repo store.GroupRepository
}

func NewService(repo store.GroupRepository) *Service {
	return &Service{repo: repo}
}

type CreateClassInput struct {
	ProfessionalID  string
	Name            string
	Description     string
	PriceCents      int64
	DurationMinutes int
	MaxParticipants int
	Location        string
}

func (s *Service) CreateClass(ctx context.Context, in CreateClassInput) (domain.GroupClass, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return domain.GroupClass{}, validationError("name is required")
	}
	if in.ProfessionalID == "" {
		return domain.GroupClass{}, validationError("professional_id is required")
	}
	if in.DurationMinutes <= 0 {
		return domain.GroupClass{}, validationError("duration_minutes must be positive")
	}
	if in.MaxParticipants < 1 {
		return domain.GroupClass{}, validationError("max_participants must be at least 1")
	}
	if in.PriceCents < 0 {
		return domain.GroupClass{}, validationError("price must not be negative")
	}

	return s.repo.CreateClass(ctx, domain.GroupClass{
		ProfessionalID:  in.ProfessionalID,
		Name:            name,
		Description:     strings.TrimSpace(in.Description),
		PriceCents:      in.PriceCents,
		DurationMinutes: in.DurationMinutes,
		MaxParticipants: in.MaxParticipants,
		Location:        strings.TrimSpace(in.Location),
	})
}

// ScheduleSession creates one occurrence of a class. Duration and capacity
// come from the template; the session end is buffered and conflict-checked
// against the professional's whole calendar by the store.
func (s *Service) ScheduleSession(ctx context.Context, classID uuid.UUID, start time.Time) (domain.GroupSession, error) {
	if classID == uuid.Nil {
		return domain.GroupSession{}, validationError("class_id is required")
	}
	if start.IsZero() {
		return domain.GroupSession{}, validationError("start_time is required")
	}

	class, err := s.repo.GetClass(ctx, classID)
	if err != nil {
		return domain.GroupSession{}, err
	}

	startUTC := start.UTC()
	return s.repo.ScheduleSession(ctx, domain.GroupSession{
		ClassID:             class.ID,
		ProfessionalID:      class.ProfessionalID,
		Status:              domain.GroupSessionStatusScheduled,
		StartTime:           startUTC,
		EndTime:             startUTC.Add(time.Duration(class.DurationMinutes) * time.Minute),
		MaxParticipants:     class.MaxParticipants,
		CurrentParticipants: 0,
	})
}

func (s *Service) ListSessions(ctx context.Context, professionalID string, windowStart, windowEnd time.Time) ([]domain.GroupSession, error) {
	if professionalID == "" {
		return nil, validationError("professional_id is required")
	}

	start := windowStart.UTC()
	end := windowEnd.UTC()
	if end.Equal(start) || end.Before(start) {
		return nil, validationError("window_end must be after window_start")
	}

	return s.repo.ListSessions(ctx, professionalID, start, end)
}

func (s *Service) CancelSession(ctx context.Context, sessionID uuid.UUID) (domain.GroupSession, error) {
	if sessionID == uuid.Nil {
		return domain.GroupSession{}, validationError("session_id is required")
	}
	return s.repo.CancelSession(ctx, sessionID)
}

func (s *Service) Register(ctx context.Context, sessionID uuid.UUID, clientID string) (domain.GroupRegistration, error) {
	if sessionID == uuid.Nil {
		return domain.GroupRegistration{}, validationError("session_id is required")
	}
	if clientID == "" {
		return domain.GroupRegistration{}, validationError("client_id is required")
	}
	return s.repo.Register(ctx, sessionID, clientID)
}

func (s *Service) TransitionRegistration(ctx context.Context, registrationID uuid.UUID, to domain.RegistrationStatus) (domain.GroupRegistration, error) {
	if registrationID == uuid.Nil {
		return domain.GroupRegistration{}, validationError("registration_id is required")
	}
	switch to {
	case domain.RegistrationStatusRegistered, domain.RegistrationStatusConfirmed, domain.RegistrationStatusCancelled,
		domain.RegistrationStatusAttended, domain.RegistrationStatusNoShow:
	default:
		return domain.GroupRegistration{}, validationError("unknown status")
	}
	return s.repo.TransitionRegistration(ctx, registrationID, to)
}

// CancelRegistration frees the client's seat; the capacity release happens
// in the same transaction as the status write.
func (s *Service) CancelRegistration(ctx context.Context, registrationID uuid.UUID) (domain.GroupRegistration, error) {
	return s.TransitionRegistration(ctx, registrationID, domain.RegistrationStatusCancelled)
}
