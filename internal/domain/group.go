package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// GroupClass is the template for a group offering in the course catalogue:
// what is taught, for how long, at what price, and for how many people.
type GroupClass struct {
	bun.BaseModel `bun:"table:group_classes"`

	ID              uuid.UUID `bun:"id,pk,type:uuid"`
	ProfessionalID  string    `bun:"professional_id,notnull"`
	Name            string    `bun:"name,notnull"`
	Description     string    `bun:"description"`
	PriceCents      int64     `bun:"price_cents,notnull"`
	DurationMinutes int       `bun:"duration_minutes,notnull"`
	MaxParticipants int       `bun:"max_participants,notnull"`
	Location        string    `bun:"location"`
	CreatedAt       time.Time `bun:"created_at,notnull"`
	UpdatedAt       time.Time `bun:"updated_at,notnull"`
}

func (c *GroupClass) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	now := time.Now().UTC()
	switch query.(type) {
	case *bun.InsertQuery:
		if c.ID == uuid.Nil {
			id, err := uuid.NewV7()
			if err != nil {
				return err
			}
			c.ID = id
		}
		if c.CreatedAt.IsZero() {
			c.CreatedAt = now
		}
		if c.UpdatedAt.IsZero() {
			c.UpdatedAt = now
		}
	case *bun.UpdateQuery:
		c.UpdatedAt = now
	}
	return nil
}

type GroupSessionStatus string

const (
	GroupSessionStatusScheduled GroupSessionStatus = "scheduled"
	GroupSessionStatusCancelled GroupSessionStatus = "cancelled"
	GroupSessionStatusCompleted GroupSessionStatus = "completed"
)

// GroupSession is one scheduled occurrence of a class. CurrentParticipants
// must always equal the count of its non-cancelled registrations; every
// registration mutation maintains it in the same transaction, it is never
// recomputed lazily.
type GroupSession struct {
	bun.BaseModel `bun:"table:group_sessions"`

	ID                  uuid.UUID          `bun:"id,pk,type:uuid"`
	ClassID             uuid.UUID          `bun:"class_id,notnull,type:uuid"`
	ProfessionalID      string             `bun:"professional_id,notnull"`
	Status              GroupSessionStatus `bun:"status,notnull"`
	StartTime           time.Time          `bun:"start_time,notnull"`
	EndTime             time.Time          `bun:"end_time,notnull"`
	MaxParticipants     int                `bun:"max_participants,notnull"`
	CurrentParticipants int                `bun:"current_participants,notnull"`
	CreatedAt           time.Time          `bun:"created_at,notnull"`
	UpdatedAt           time.Time          `bun:"updated_at,notnull"`
}

func (s *GroupSession) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	now := time.Now().UTC()
	switch query.(type) {
	case *bun.InsertQuery:
		if s.ID == uuid.Nil {
			id, err := uuid.NewV7()
			if err != nil {
				return err
			}
			s.ID = id
		}
		if s.CreatedAt.IsZero() {
			s.CreatedAt = now
		}
		if s.UpdatedAt.IsZero() {
			s.UpdatedAt = now
		}
	case *bun.UpdateQuery:
		s.UpdatedAt = now
	}
	return nil
}

func (s *GroupSession) Live() bool {
	return s.Status != GroupSessionStatusCancelled
}

// Interval derives the conflict-check view of the session.
func (s *GroupSession) Interval() Interval {
	return Interval{
		ID:             s.ID,
		ProfessionalID: s.ProfessionalID,
		Kind:           IntervalKindGroupSession,
		Start:          s.StartTime,
		End:            s.EndTime,
		Live:           s.Live(),
	}
}

// Reserve adds one participant, failing without mutation when the session
// is full.
func (s *GroupSession) Reserve() error {
	next, err := reserveSlot(s.CurrentParticipants, s.MaxParticipants)
	if err != nil {
		return err
	}
	s.CurrentParticipants = next
	return nil
}

// Release removes one participant, failing without mutation when the count
// is already zero.
func (s *GroupSession) Release() error {
	next, err := releaseSlot(s.CurrentParticipants)
	if err != nil {
		return err
	}
	s.CurrentParticipants = next
	return nil
}

type RegistrationStatus string

const (
	RegistrationStatusRegistered RegistrationStatus = "registered"
	RegistrationStatusConfirmed  RegistrationStatus = "confirmed"
	RegistrationStatusCancelled  RegistrationStatus = "cancelled"
	RegistrationStatusAttended   RegistrationStatus = "attended"
	RegistrationStatusNoShow     RegistrationStatus = "no_show"
)

// GroupRegistration links a client to a session. An active (non-cancelled)
// registration holds exactly one unit of the session's capacity.
type GroupRegistration struct {
	bun.BaseModel `bun:"table:group_registrations"`

	ID        uuid.UUID          `bun:"id,pk,type:uuid"`
	SessionID uuid.UUID          `bun:"session_id,notnull,type:uuid"`
	ClientID  string             `bun:"client_id,notnull"`
	Status    RegistrationStatus `bun:"status,notnull"`
	CreatedAt time.Time          `bun:"created_at,notnull"`
	UpdatedAt time.Time          `bun:"updated_at,notnull"`
}

func (r *GroupRegistration) BeforeAppendModel(ctx context.Context, query bun.Query) error {
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

// Active reports whether the registration holds a capacity unit.
func (r *GroupRegistration) Active() bool {
	return r.Status != RegistrationStatusCancelled
}

var registrationTransitions = map[RegistrationStatus][]RegistrationStatus{
	RegistrationStatusRegistered: {RegistrationStatusConfirmed, RegistrationStatusCancelled, RegistrationStatusAttended, RegistrationStatusNoShow},
	RegistrationStatusConfirmed:  {RegistrationStatusCancelled, RegistrationStatusAttended, RegistrationStatusNoShow},
	RegistrationStatusCancelled:  {RegistrationStatusRegistered},
}

// CanTransition reports whether to is a legal next status. Attended and
// no_show are terminal; a cancelled registration may be reactivated, which
// reserves capacity again.
func (r *GroupRegistration) CanTransition(to RegistrationStatus) bool {
	for _, next := range registrationTransitions[r.Status] {
		if next == to {
			return true
		}
	}
	return false
}

// Transition moves the registration to a new status. The caller applies the
// matching capacity delta in the same transaction: exactly one Release when
// leaving an active status for cancelled, exactly one Reserve when coming
// back from cancelled.
func (r *GroupRegistration) Transition(to RegistrationStatus) error {
	if !r.CanTransition(to) {
		return &InvalidTransitionError{From: string(r.Status), To: string(to)}
	}
	r.Status = to
	return nil
}
