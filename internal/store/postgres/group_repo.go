package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"wellplan/backend/internal/domain"
	"wellplan/backend/internal/store"
)

type groupTx struct {
	tx bun.Tx
}

// InSessionTransaction serializes capacity mutations per session the same
// way InProfessionalTransaction serializes calendar writes per professional.
func (r *Repo) InSessionTransaction(ctx context.Context, sessionID uuid.UUID, fn func(ctx context.Context, tx store.GroupTx) error) error {
	return r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := lockCalendar(ctx, tx, sessionID.String()); err != nil {
			return err
		}
		return fn(ctx, groupTx{tx: tx})
	})
}

func (r *Repo) CreateClass(ctx context.Context, class domain.GroupClass) (domain.GroupClass, error) {
	m := class
	_, err := r.db.NewInsert().Model(&m).Exec(ctx)
	if err != nil {
		return domain.GroupClass{}, err
	}
	return m, nil
}

func (r *Repo) GetClass(ctx context.Context, classID uuid.UUID) (domain.GroupClass, error) {
	var class domain.GroupClass
	err := r.db.NewSelect().
		Model(&class).
		Where("id = ?", classID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.GroupClass{}, store.ErrNotFound
		}
		return domain.GroupClass{}, err
	}
	return class, nil
}

func (r *Repo) ScheduleSession(ctx context.Context, session domain.GroupSession) (domain.GroupSession, error) {
	var out domain.GroupSession
	err := r.InProfessionalTransaction(ctx, session.ProfessionalID, func(ctx context.Context, tx store.SchedulingTx) error {
		s, err := scheduleSessionLocked(ctx, tx, session)
		if err != nil {
			return err
		}
		out = s
		return nil
	})
	if err != nil {
		return domain.GroupSession{}, err
	}
	return out, nil
}

// scheduleSessionLocked conflict-checks the session against every live
// interval of the professional (bookings, other sessions, blocked time)
// before inserting it.
func scheduleSessionLocked(ctx context.Context, tx store.SchedulingTx, session domain.GroupSession) (domain.GroupSession, error) {
	prof, err := tx.GetProfessional(ctx, session.ProfessionalID)
	if err != nil {
		return domain.GroupSession{}, err
	}
	if !prof.Active {
		return domain.GroupSession{}, store.ErrProfessionalInactive
	}

	duration := session.EndTime.Sub(session.StartTime)
	session.EndTime = domain.EffectiveEnd(session.StartTime, duration, prof.Buffer())

	existing, err := tx.ListLiveIntervals(ctx, session.ProfessionalID, session.StartTime, session.EndTime)
	if err != nil {
		return domain.GroupSession{}, err
	}
	if err := domain.CheckConflict(session.Interval(), existing); err != nil {
		return domain.GroupSession{}, err
	}

	return tx.InsertGroupSession(ctx, session)
}

func (r *Repo) ListSessions(ctx context.Context, professionalID string, windowStart, windowEnd time.Time) ([]domain.GroupSession, error) {
	var rows []domain.GroupSession
	err := r.db.NewSelect().
		Model(&rows).
		Where("professional_id = ?", professionalID).
		Where("start_time < ?", windowEnd).
		Where("end_time > ?", windowStart).
		OrderExpr("start_time ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *Repo) Register(ctx context.Context, sessionID uuid.UUID, clientID string) (domain.GroupRegistration, error) {
	var out domain.GroupRegistration
	err := r.InSessionTransaction(ctx, sessionID, func(ctx context.Context, tx store.GroupTx) error {
		reg, err := registerLocked(ctx, tx, sessionID, clientID)
		if err != nil {
			return err
		}
		out = reg
		return nil
	})
	if err != nil {
		return domain.GroupRegistration{}, err
	}
	return out, nil
}

// registerLocked reserves capacity and creates the registration in one
// step, so the participant counter can never drift from the registration
// set.
func registerLocked(ctx context.Context, tx store.GroupTx, sessionID uuid.UUID, clientID string) (domain.GroupRegistration, error) {
	session, err := tx.GetSession(ctx, sessionID)
	if err != nil {
		return domain.GroupRegistration{}, err
	}
	if !session.Live() {
		return domain.GroupRegistration{}, &domain.InvalidTransitionError{From: string(session.Status), To: "registration"}
	}

	if err := session.Reserve(); err != nil {
		return domain.GroupRegistration{}, err
	}

	reg, err := tx.InsertRegistration(ctx, domain.GroupRegistration{
		SessionID: sessionID,
		ClientID:  clientID,
		Status:    domain.RegistrationStatusRegistered,
	})
	if err != nil {
		return domain.GroupRegistration{}, err
	}
	if _, err := tx.UpdateSession(ctx, session); err != nil {
		return domain.GroupRegistration{}, err
	}
	return reg, nil
}

func (r *Repo) TransitionRegistration(ctx context.Context, registrationID uuid.UUID, to domain.RegistrationStatus) (domain.GroupRegistration, error) {
	// The lock key is the session, so the registration is read once outside
	// the lock to learn which session it belongs to, then re-read inside.
	var lookup domain.GroupRegistration
	err := r.db.NewSelect().
		Model(&lookup).
		Where("id = ?", registrationID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.GroupRegistration{}, store.ErrNotFound
		}
		return domain.GroupRegistration{}, err
	}

	var out domain.GroupRegistration
	err = r.InSessionTransaction(ctx, lookup.SessionID, func(ctx context.Context, tx store.GroupTx) error {
		reg, err := transitionRegistrationLocked(ctx, tx, registrationID, to)
		if err != nil {
			return err
		}
		out = reg
		return nil
	})
	if err != nil {
		return domain.GroupRegistration{}, err
	}
	return out, nil
}

// transitionRegistrationLocked pairs the status write with exactly one
// capacity adjustment: release when an active registration is cancelled,
// reserve when a cancelled one is reactivated.
func transitionRegistrationLocked(ctx context.Context, tx store.GroupTx, registrationID uuid.UUID, to domain.RegistrationStatus) (domain.GroupRegistration, error) {
	reg, err := tx.GetRegistration(ctx, registrationID)
	if err != nil {
		return domain.GroupRegistration{}, err
	}

	wasActive := reg.Active()
	if err := reg.Transition(to); err != nil {
		return domain.GroupRegistration{}, err
	}
	nowActive := reg.Active()

	if wasActive != nowActive {
		session, err := tx.GetSession(ctx, reg.SessionID)
		if err != nil {
			return domain.GroupRegistration{}, err
		}
		if nowActive {
			err = session.Reserve()
		} else {
			err = session.Release()
		}
		if err != nil {
			return domain.GroupRegistration{}, err
		}
		if _, err := tx.UpdateSession(ctx, session); err != nil {
			return domain.GroupRegistration{}, err
		}
	}

	return tx.UpdateRegistration(ctx, reg)
}

func (r *Repo) CancelSession(ctx context.Context, sessionID uuid.UUID) (domain.GroupSession, error) {
	var out domain.GroupSession
	err := r.InSessionTransaction(ctx, sessionID, func(ctx context.Context, tx store.GroupTx) error {
		session, err := cancelSessionLocked(ctx, tx, sessionID)
		if err != nil {
			return err
		}
		out = session
		return nil
	})
	if err != nil {
		return domain.GroupSession{}, err
	}
	return out, nil
}

// cancelSessionLocked cancels every still-cancellable registration through
// the normal transition path, releasing each capacity unit once, then
// cancels the session itself.
func cancelSessionLocked(ctx context.Context, tx store.GroupTx, sessionID uuid.UUID) (domain.GroupSession, error) {
	session, err := tx.GetSession(ctx, sessionID)
	if err != nil {
		return domain.GroupSession{}, err
	}
	if !session.Live() {
		return domain.GroupSession{}, &domain.InvalidTransitionError{From: string(session.Status), To: string(domain.GroupSessionStatusCancelled)}
	}

	regs, err := tx.ListActiveRegistrations(ctx, sessionID)
	if err != nil {
		return domain.GroupSession{}, err
	}
	for _, reg := range regs {
		// Attended and no-show registrations are terminal; their record
		// survives the cancellation and their seat dies with the session.
		if !reg.CanTransition(domain.RegistrationStatusCancelled) {
			continue
		}
		if err := reg.Transition(domain.RegistrationStatusCancelled); err != nil {
			return domain.GroupSession{}, err
		}
		if err := session.Release(); err != nil {
			return domain.GroupSession{}, err
		}
		if _, err := tx.UpdateRegistration(ctx, reg); err != nil {
			return domain.GroupSession{}, err
		}
	}

	session.Status = domain.GroupSessionStatusCancelled
	return tx.UpdateSession(ctx, session)
}

func (t groupTx) GetSession(ctx context.Context, sessionID uuid.UUID) (domain.GroupSession, error) {
	var session domain.GroupSession
	err := t.tx.NewSelect().
		Model(&session).
		Where("id = ?", sessionID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.GroupSession{}, store.ErrNotFound
		}
		return domain.GroupSession{}, err
	}
	return session, nil
}

func (t groupTx) UpdateSession(ctx context.Context, session domain.GroupSession) (domain.GroupSession, error) {
	m := session
	res, err := t.tx.NewUpdate().
		Model(&m).
		WherePK().
		Exec(ctx)
	if err != nil {
		return domain.GroupSession{}, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return domain.GroupSession{}, err
	}
	if affected == 0 {
		return domain.GroupSession{}, store.ErrNotFound
	}
	return m, nil
}

func (t groupTx) InsertRegistration(ctx context.Context, reg domain.GroupRegistration) (domain.GroupRegistration, error) {
	m := reg
	_, err := t.tx.NewInsert().Model(&m).Exec(ctx)
	if err != nil {
		return domain.GroupRegistration{}, err
	}
	return m, nil
}

func (t groupTx) GetRegistration(ctx context.Context, registrationID uuid.UUID) (domain.GroupRegistration, error) {
	var reg domain.GroupRegistration
	err := t.tx.NewSelect().
		Model(&reg).
		Where("id = ?", registrationID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.GroupRegistration{}, store.ErrNotFound
		}
		return domain.GroupRegistration{}, err
	}
	return reg, nil
}

func (t groupTx) UpdateRegistration(ctx context.Context, reg domain.GroupRegistration) (domain.GroupRegistration, error) {
	m := reg
	res, err := t.tx.NewUpdate().
		Model(&m).
		WherePK().
		Exec(ctx)
	if err != nil {
		return domain.GroupRegistration{}, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return domain.GroupRegistration{}, err
	}
	if affected == 0 {
		return domain.GroupRegistration{}, store.ErrNotFound
	}
	return m, nil
}

func (t groupTx) ListActiveRegistrations(ctx context.Context, sessionID uuid.UUID) ([]domain.GroupRegistration, error) {
	var rows []domain.GroupRegistration
	err := t.tx.NewSelect().
		Model(&rows).
		Where("session_id = ?", sessionID).
		Where("status != ?", domain.RegistrationStatusCancelled).
		OrderExpr("created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return rows, nil
}
