package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"wellplan/backend/internal/domain"
	"wellplan/backend/internal/store"
)

type fakeGroupTx struct {
	sessions      map[uuid.UUID]domain.GroupSession
	registrations map[uuid.UUID]domain.GroupRegistration
	activeRegs    []domain.GroupRegistration

	insertedRegs []domain.GroupRegistration
	updatedRegs  []domain.GroupRegistration
}

func (f *fakeGroupTx) GetSession(ctx context.Context, sessionID uuid.UUID) (domain.GroupSession, error) {
	s, ok := f.sessions[sessionID]
	if !ok {
		return domain.GroupSession{}, store.ErrNotFound
	}
	return s, nil
}

func (f *fakeGroupTx) UpdateSession(ctx context.Context, session domain.GroupSession) (domain.GroupSession, error) {
	if _, ok := f.sessions[session.ID]; !ok {
		return domain.GroupSession{}, store.ErrNotFound
	}
	f.sessions[session.ID] = session
	return session, nil
}

func (f *fakeGroupTx) InsertRegistration(ctx context.Context, reg domain.GroupRegistration) (domain.GroupRegistration, error) {
	if reg.ID == uuid.Nil {
		reg.ID = uuid.MustParse("00000000-0000-0000-0000-0000000001ff")
	}
	f.insertedRegs = append(f.insertedRegs, reg)
	return reg, nil
}

func (f *fakeGroupTx) GetRegistration(ctx context.Context, registrationID uuid.UUID) (domain.GroupRegistration, error) {
	r, ok := f.registrations[registrationID]
	if !ok {
		return domain.GroupRegistration{}, store.ErrNotFound
	}
	return r, nil
}

func (f *fakeGroupTx) UpdateRegistration(ctx context.Context, reg domain.GroupRegistration) (domain.GroupRegistration, error) {
	f.updatedRegs = append(f.updatedRegs, reg)
	if f.registrations != nil {
		f.registrations[reg.ID] = reg
	}
	return reg, nil
}

func (f *fakeGroupTx) ListActiveRegistrations(ctx context.Context, sessionID uuid.UUID) ([]domain.GroupRegistration, error) {
	return f.activeRegs, nil
}

func newSession(id uuid.UUID, max, current int) domain.GroupSession {
	start := time.Date(2026, 1, 6, 18, 0, 0, 0, time.UTC)
	return domain.GroupSession{
		ID:                  id,
		ClassID:             uuid.MustParse("00000000-0000-0000-0000-000000000020"),
		ProfessionalID:      "pro-1",
		Status:              domain.GroupSessionStatusScheduled,
		StartTime:           start,
		EndTime:             start.Add(time.Hour),
		MaxParticipants:     max,
		CurrentParticipants: current,
	}
}

var sessionID = uuid.MustParse("00000000-0000-0000-0000-000000000030")

func TestScheduleSessionLocked_BuffersEnd(t *testing.T) {
	tx := &fakeSchedTx{prof: activePro(15, true)}

	start := time.Date(2026, 1, 6, 18, 0, 0, 0, time.UTC)
	session := domain.GroupSession{
		ProfessionalID:  "pro-1",
		Status:          domain.GroupSessionStatusScheduled,
		StartTime:       start,
		EndTime:         start.Add(time.Hour),
		MaxParticipants: 10,
	}

	created, err := scheduleSessionLocked(context.Background(), tx, session)
	if err != nil {
		t.Fatalf("scheduleSessionLocked error: %v", err)
	}
	if !created.EndTime.Equal(start.Add(75 * time.Minute)) {
		t.Fatalf("session end = %v, want %v (buffer folded in)", created.EndTime, start.Add(75*time.Minute))
	}
	if len(tx.insertedSessions) != 1 {
		t.Fatalf("inserted %d sessions, want 1", len(tx.insertedSessions))
	}
}

func TestScheduleSessionLocked_Conflict(t *testing.T) {
	start := time.Date(2026, 1, 6, 18, 0, 0, 0, time.UTC)
	tx := &fakeSchedTx{
		prof: activePro(0, true),
		intervals: []domain.Interval{{
			ID:             uuid.MustParse("00000000-0000-0000-0000-0000000000ff"),
			ProfessionalID: "pro-1",
			Kind:           domain.IntervalKindAppointment,
			Start:          start.Add(30 * time.Minute),
			End:            start.Add(90 * time.Minute),
			Live:           true,
		}},
	}

	session := domain.GroupSession{
		ProfessionalID:  "pro-1",
		Status:          domain.GroupSessionStatusScheduled,
		StartTime:       start,
		EndTime:         start.Add(time.Hour),
		MaxParticipants: 10,
	}

	_, err := scheduleSessionLocked(context.Background(), tx, session)
	var conflict *domain.ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("err = %v, want *ConflictError", err)
	}
	if len(tx.insertedSessions) != 0 {
		t.Fatalf("conflicting session must not be inserted")
	}
}

func TestScheduleSessionLocked_InactiveProfessional(t *testing.T) {
	prof := activePro(0, true)
	prof.Active = false
	tx := &fakeSchedTx{prof: prof}

	start := time.Date(2026, 1, 6, 18, 0, 0, 0, time.UTC)
	_, err := scheduleSessionLocked(context.Background(), tx, domain.GroupSession{
		ProfessionalID: "pro-1",
		StartTime:      start,
		EndTime:        start.Add(time.Hour),
	})
	if !errors.Is(err, store.ErrProfessionalInactive) {
		t.Fatalf("err = %v, want %v", err, store.ErrProfessionalInactive)
	}
}

func TestRegisterLocked_ReservesCapacity(t *testing.T) {
	tx := &fakeGroupTx{
		sessions: map[uuid.UUID]domain.GroupSession{sessionID: newSession(sessionID, 2, 0)},
	}

	reg, err := registerLocked(context.Background(), tx, sessionID, "client-1")
	if err != nil {
		t.Fatalf("registerLocked error: %v", err)
	}
	if reg.Status != domain.RegistrationStatusRegistered {
		t.Fatalf("registration status = %s, want %s", reg.Status, domain.RegistrationStatusRegistered)
	}
	if tx.sessions[sessionID].CurrentParticipants != 1 {
		t.Fatalf("session count = %d, want 1", tx.sessions[sessionID].CurrentParticipants)
	}
	if len(tx.insertedRegs) != 1 {
		t.Fatalf("inserted %d registrations, want 1", len(tx.insertedRegs))
	}
}

func TestRegisterLocked_FullSession(t *testing.T) {
	tx := &fakeGroupTx{
		sessions: map[uuid.UUID]domain.GroupSession{sessionID: newSession(sessionID, 2, 2)},
	}

	_, err := registerLocked(context.Background(), tx, sessionID, "client-3")
	var capErr *domain.CapacityError
	if !errors.As(err, &capErr) {
		t.Fatalf("err = %v, want *CapacityError", err)
	}
	if len(tx.insertedRegs) != 0 {
		t.Fatalf("full session must not gain registrations")
	}
	if tx.sessions[sessionID].CurrentParticipants != 2 {
		t.Fatalf("failed reserve mutated count to %d", tx.sessions[sessionID].CurrentParticipants)
	}
}

func TestRegisterLocked_CancelledSession(t *testing.T) {
	cancelled := newSession(sessionID, 5, 0)
	cancelled.Status = domain.GroupSessionStatusCancelled
	tx := &fakeGroupTx{
		sessions: map[uuid.UUID]domain.GroupSession{sessionID: cancelled},
	}

	_, err := registerLocked(context.Background(), tx, sessionID, "client-1")
	var invalid *domain.InvalidTransitionError
	if !errors.As(err, &invalid) {
		t.Fatalf("err = %v, want *InvalidTransitionError", err)
	}
}

func TestTransitionRegistrationLocked_CancelReleasesSeat(t *testing.T) {
	regID := uuid.MustParse("00000000-0000-0000-0000-000000000040")
	tx := &fakeGroupTx{
		sessions: map[uuid.UUID]domain.GroupSession{sessionID: newSession(sessionID, 5, 3)},
		registrations: map[uuid.UUID]domain.GroupRegistration{regID: {
			ID:        regID,
			SessionID: sessionID,
			ClientID:  "client-1",
			Status:    domain.RegistrationStatusConfirmed,
		}},
	}

	reg, err := transitionRegistrationLocked(context.Background(), tx, regID, domain.RegistrationStatusCancelled)
	if err != nil {
		t.Fatalf("transitionRegistrationLocked error: %v", err)
	}
	if reg.Status != domain.RegistrationStatusCancelled {
		t.Fatalf("registration status = %s, want %s", reg.Status, domain.RegistrationStatusCancelled)
	}
	if tx.sessions[sessionID].CurrentParticipants != 2 {
		t.Fatalf("session count = %d, want 2 (one seat released)", tx.sessions[sessionID].CurrentParticipants)
	}
}

func TestTransitionRegistrationLocked_ConfirmKeepsSeat(t *testing.T) {
	regID := uuid.MustParse("00000000-0000-0000-0000-000000000040")
	tx := &fakeGroupTx{
		sessions: map[uuid.UUID]domain.GroupSession{sessionID: newSession(sessionID, 5, 3)},
		registrations: map[uuid.UUID]domain.GroupRegistration{regID: {
			ID:        regID,
			SessionID: sessionID,
			Status:    domain.RegistrationStatusRegistered,
		}},
	}

	_, err := transitionRegistrationLocked(context.Background(), tx, regID, domain.RegistrationStatusConfirmed)
	if err != nil {
		t.Fatalf("transitionRegistrationLocked error: %v", err)
	}
	// Active-to-active transitions carry no capacity delta.
	if tx.sessions[sessionID].CurrentParticipants != 3 {
		t.Fatalf("session count = %d, want 3", tx.sessions[sessionID].CurrentParticipants)
	}
}

func TestTransitionRegistrationLocked_ReactivationReserves(t *testing.T) {
	regID := uuid.MustParse("00000000-0000-0000-0000-000000000040")
	tx := &fakeGroupTx{
		sessions: map[uuid.UUID]domain.GroupSession{sessionID: newSession(sessionID, 3, 2)},
		registrations: map[uuid.UUID]domain.GroupRegistration{regID: {
			ID:        regID,
			SessionID: sessionID,
			Status:    domain.RegistrationStatusCancelled,
		}},
	}

	reg, err := transitionRegistrationLocked(context.Background(), tx, regID, domain.RegistrationStatusRegistered)
	if err != nil {
		t.Fatalf("transitionRegistrationLocked error: %v", err)
	}
	if reg.Status != domain.RegistrationStatusRegistered {
		t.Fatalf("registration status = %s", reg.Status)
	}
	if tx.sessions[sessionID].CurrentParticipants != 3 {
		t.Fatalf("session count = %d, want 3 (seat re-reserved)", tx.sessions[sessionID].CurrentParticipants)
	}
}

func TestTransitionRegistrationLocked_ReactivationIntoFullSession(t *testing.T) {
	regID := uuid.MustParse("00000000-0000-0000-0000-000000000040")
	tx := &fakeGroupTx{
		sessions: map[uuid.UUID]domain.GroupSession{sessionID: newSession(sessionID, 2, 2)},
		registrations: map[uuid.UUID]domain.GroupRegistration{regID: {
			ID:        regID,
			SessionID: sessionID,
			Status:    domain.RegistrationStatusCancelled,
		}},
	}

	_, err := transitionRegistrationLocked(context.Background(), tx, regID, domain.RegistrationStatusRegistered)
	var capErr *domain.CapacityError
	if !errors.As(err, &capErr) {
		t.Fatalf("err = %v, want *CapacityError", err)
	}
	if len(tx.updatedRegs) != 0 {
		t.Fatalf("failed reactivation must not write the registration")
	}
}

func TestCancelSessionLocked_ReleasesEverySeat(t *testing.T) {
	regA := uuid.MustParse("00000000-0000-0000-0000-000000000041")
	regB := uuid.MustParse("00000000-0000-0000-0000-000000000042")
	tx := &fakeGroupTx{
		sessions: map[uuid.UUID]domain.GroupSession{sessionID: newSession(sessionID, 5, 2)},
		activeRegs: []domain.GroupRegistration{
			{ID: regA, SessionID: sessionID, Status: domain.RegistrationStatusRegistered},
			{ID: regB, SessionID: sessionID, Status: domain.RegistrationStatusConfirmed},
		},
	}

	session, err := cancelSessionLocked(context.Background(), tx, sessionID)
	if err != nil {
		t.Fatalf("cancelSessionLocked error: %v", err)
	}
	if session.Status != domain.GroupSessionStatusCancelled {
		t.Fatalf("session status = %s, want %s", session.Status, domain.GroupSessionStatusCancelled)
	}
	if session.CurrentParticipants != 0 {
		t.Fatalf("session count = %d, want 0", session.CurrentParticipants)
	}
	if len(tx.updatedRegs) != 2 {
		t.Fatalf("updated %d registrations, want 2", len(tx.updatedRegs))
	}
	for _, reg := range tx.updatedRegs {
		if reg.Status != domain.RegistrationStatusCancelled {
			t.Fatalf("registration %s status = %s, want %s", reg.ID, reg.Status, domain.RegistrationStatusCancelled)
		}
	}
}

func TestCancelSessionLocked_SkipsTerminalRegistrations(t *testing.T) {
	regA := uuid.MustParse("00000000-0000-0000-0000-000000000041")
	regB := uuid.MustParse("00000000-0000-0000-0000-000000000042")
	regC := uuid.MustParse("00000000-0000-0000-0000-000000000043")
	tx := &fakeGroupTx{
		sessions: map[uuid.UUID]domain.GroupSession{sessionID: newSession(sessionID, 5, 3)},
		activeRegs: []domain.GroupRegistration{
			{ID: regA, SessionID: sessionID, Status: domain.RegistrationStatusConfirmed},
			{ID: regB, SessionID: sessionID, Status: domain.RegistrationStatusAttended},
			{ID: regC, SessionID: sessionID, Status: domain.RegistrationStatusNoShow},
		},
	}

	session, err := cancelSessionLocked(context.Background(), tx, sessionID)
	if err != nil {
		t.Fatalf("cancelSessionLocked error: %v", err)
	}
	if session.Status != domain.GroupSessionStatusCancelled {
		t.Fatalf("session status = %s, want %s", session.Status, domain.GroupSessionStatusCancelled)
	}
	if session.CurrentParticipants != 2 {
		t.Fatalf("session count = %d, want 2 (only the confirmed seat is released)", session.CurrentParticipants)
	}
	if len(tx.updatedRegs) != 1 {
		t.Fatalf("updated %d registrations, want 1", len(tx.updatedRegs))
	}
	if tx.updatedRegs[0].ID != regA || tx.updatedRegs[0].Status != domain.RegistrationStatusCancelled {
		t.Fatalf("updated registration = %+v, want %s cancelled", tx.updatedRegs[0], regA)
	}
}

func TestCancelSessionLocked_AlreadyCancelled(t *testing.T) {
	cancelled := newSession(sessionID, 5, 0)
	cancelled.Status = domain.GroupSessionStatusCancelled
	tx := &fakeGroupTx{
		sessions: map[uuid.UUID]domain.GroupSession{sessionID: cancelled},
	}

	_, err := cancelSessionLocked(context.Background(), tx, sessionID)
	var invalid *domain.InvalidTransitionError
	if !errors.As(err, &invalid) {
		t.Fatalf("err = %v, want *InvalidTransitionError", err)
	}
}
