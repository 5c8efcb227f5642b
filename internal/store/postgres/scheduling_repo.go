package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/uptrace/bun"

	"wellplan/backend/internal/domain"
	"wellplan/backend/internal/store"
)

// Repo implements both store.SchedulingRepository and store.GroupRepository
// on one bun connection. Every conflict-check+write pair runs inside a
// transaction holding an advisory lock on the professional (or session) it
// touches, which is the engine's whole defense against check-then-act races.
type Repo struct {
	db *bun.DB
}

func NewRepo(db *bun.DB) *Repo {
	return &Repo{db: db}
}

type schedTx struct {
	tx bun.Tx
}

func (r *Repo) InProfessionalTransaction(ctx context.Context, professionalID string, fn func(ctx context.Context, tx store.SchedulingTx) error) error {
	return r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := lockCalendar(ctx, tx, professionalID); err != nil {
			return err
		}
		return fn(ctx, schedTx{tx: tx})
	})
}

func lockCalendar(ctx context.Context, tx bun.Tx, key string) error {
	_, err := tx.NewRaw("SELECT pg_advisory_xact_lock(hashtext(?))", key).Exec(ctx)
	return err
}

func (r *Repo) CreateBooking(ctx context.Context, booking domain.Booking, rule *domain.RecurrenceRule) (domain.Booking, domain.ExpansionResult, error) {
	var (
		out domain.Booking
		res domain.ExpansionResult
	)
	err := r.InProfessionalTransaction(ctx, booking.ProfessionalID, func(ctx context.Context, tx store.SchedulingTx) error {
		b, er, err := createBookingLocked(ctx, tx, booking, rule)
		if err != nil {
			return err
		}
		out = b
		res = er
		return nil
	})
	if err != nil {
		return domain.Booking{}, domain.ExpansionResult{}, err
	}
	return out, res, nil
}

// createBookingLocked is the whole creation path: buffer, conflict check,
// insert, recurrence expansion. It assumes the professional's advisory lock
// is held.
func createBookingLocked(ctx context.Context, tx store.SchedulingTx, booking domain.Booking, rule *domain.RecurrenceRule) (domain.Booking, domain.ExpansionResult, error) {
	prof, err := tx.GetProfessional(ctx, booking.ProfessionalID)
	if err != nil {
		return domain.Booking{}, domain.ExpansionResult{}, err
	}
	if !prof.Active {
		return domain.Booking{}, domain.ExpansionResult{}, store.ErrProfessionalInactive
	}

	// Blocked time has no service attached, so no buffer applies to it.
	if booking.Kind != domain.IntervalKindBlockedTime {
		duration := booking.EndTime.Sub(booking.StartTime)
		booking.EndTime = domain.EffectiveEnd(booking.StartTime, duration, prof.Buffer())
		booking.Status = domain.InitialStatus(prof.AutoConfirmBookings)
	} else {
		booking.Status = domain.BookingStatusConfirmed
	}
	booking.Recurring = rule != nil

	windowEnd := booking.EndTime
	if rule != nil {
		windowEnd = rule.ExpansionWindowEnd(booking)
	}

	existing, err := tx.ListLiveIntervals(ctx, booking.ProfessionalID, booking.StartTime, windowEnd)
	if err != nil {
		return domain.Booking{}, domain.ExpansionResult{}, err
	}
	if err := domain.CheckConflict(booking.Interval(), existing); err != nil {
		return domain.Booking{}, domain.ExpansionResult{}, err
	}

	inserted, err := tx.InsertBooking(ctx, booking)
	if err != nil {
		return domain.Booking{}, domain.ExpansionResult{}, err
	}

	var res domain.ExpansionResult
	if rule != nil {
		res, err = expandLocked(ctx, tx, inserted, *rule, existing)
		if err != nil {
			return domain.Booking{}, domain.ExpansionResult{}, err
		}
	}

	return inserted, res, nil
}

// expandLocked persists a recurrence rule and the occurrences it produces.
// The conflict set is the calendar loaded before the origin insert, plus the
// origin itself; occurrences created during the walk are tracked inside
// domain.ExpandRecurrence.
func expandLocked(ctx context.Context, tx store.SchedulingTx, origin domain.Booking, rule domain.RecurrenceRule, existing []domain.Interval) (domain.ExpansionResult, error) {
	rule.BookingID = origin.ID
	insertedRule, err := tx.InsertRecurrenceRule(ctx, rule)
	if err != nil {
		return domain.ExpansionResult{}, err
	}

	conflictSet := append(existing, origin.Interval())
	res, err := domain.ExpandRecurrence(origin, insertedRule, func(candidate domain.Interval) bool {
		return domain.CheckConflict(candidate, conflictSet) != nil
	})
	if err != nil {
		return domain.ExpansionResult{}, err
	}

	for i, occ := range res.Created {
		created, err := tx.InsertBooking(ctx, occ)
		if err != nil {
			return domain.ExpansionResult{}, err
		}
		res.Created[i] = created
	}
	return res, nil
}

func (r *Repo) Reschedule(ctx context.Context, professionalID string, bookingID uuid.UUID, start, end time.Time) (domain.Booking, error) {
	var out domain.Booking
	err := r.InProfessionalTransaction(ctx, professionalID, func(ctx context.Context, tx store.SchedulingTx) error {
		b, err := rescheduleLocked(ctx, tx, professionalID, bookingID, start, end)
		if err != nil {
			return err
		}
		out = b
		return nil
	})
	if err != nil {
		return domain.Booking{}, err
	}
	return out, nil
}

func rescheduleLocked(ctx context.Context, tx store.SchedulingTx, professionalID string, bookingID uuid.UUID, start, end time.Time) (domain.Booking, error) {
	booking, err := tx.GetBooking(ctx, professionalID, bookingID)
	if err != nil {
		return domain.Booking{}, err
	}
	if booking.Status != domain.BookingStatusPending && booking.Status != domain.BookingStatusConfirmed {
		return domain.Booking{}, &domain.InvalidTransitionError{From: string(booking.Status), To: "rescheduled"}
	}

	booking.StartTime = start
	booking.EndTime = end
	if booking.Kind != domain.IntervalKindBlockedTime {
		prof, err := tx.GetProfessional(ctx, professionalID)
		if err != nil {
			return domain.Booking{}, err
		}
		booking.EndTime = domain.EffectiveEnd(start, end.Sub(start), prof.Buffer())
	}

	existing, err := tx.ListLiveIntervals(ctx, professionalID, booking.StartTime, booking.EndTime)
	if err != nil {
		return domain.Booking{}, err
	}
	// The candidate keeps the booking's own id, so CheckConflict ignores the
	// record's previous self.
	if err := domain.CheckConflict(booking.Interval(), existing); err != nil {
		return domain.Booking{}, err
	}

	return tx.UpdateBooking(ctx, booking)
}

func (r *Repo) Transition(ctx context.Context, professionalID string, bookingID uuid.UUID, to domain.BookingStatus) (domain.Booking, error) {
	var out domain.Booking
	err := r.InProfessionalTransaction(ctx, professionalID, func(ctx context.Context, tx store.SchedulingTx) error {
		booking, err := tx.GetBooking(ctx, professionalID, bookingID)
		if err != nil {
			return err
		}
		if err := booking.Transition(to); err != nil {
			return err
		}
		out, err = tx.UpdateBooking(ctx, booking)
		return err
	})
	if err != nil {
		return domain.Booking{}, err
	}
	return out, nil
}

func (r *Repo) AddParticipant(ctx context.Context, professionalID string, bookingID uuid.UUID) (domain.Booking, error) {
	return r.adjustParticipants(ctx, professionalID, bookingID, (*domain.Booking).Reserve)
}

func (r *Repo) RemoveParticipant(ctx context.Context, professionalID string, bookingID uuid.UUID) (domain.Booking, error) {
	return r.adjustParticipants(ctx, professionalID, bookingID, (*domain.Booking).Release)
}

func (r *Repo) adjustParticipants(ctx context.Context, professionalID string, bookingID uuid.UUID, adjust func(*domain.Booking) error) (domain.Booking, error) {
	var out domain.Booking
	err := r.InProfessionalTransaction(ctx, professionalID, func(ctx context.Context, tx store.SchedulingTx) error {
		booking, err := tx.GetBooking(ctx, professionalID, bookingID)
		if err != nil {
			return err
		}
		if !booking.CapacityBearing() {
			return store.ErrNotGroupBooking
		}
		if !booking.Live() {
			return &domain.InvalidTransitionError{From: string(booking.Status), To: "participant change"}
		}
		if err := adjust(&booking); err != nil {
			return err
		}
		out, err = tx.UpdateBooking(ctx, booking)
		return err
	})
	if err != nil {
		return domain.Booking{}, err
	}
	return out, nil
}

func (r *Repo) CancelFutureBookings(ctx context.Context, professionalID string, from time.Time) (int, error) {
	var cancelled int
	err := r.InProfessionalTransaction(ctx, professionalID, func(ctx context.Context, tx store.SchedulingTx) error {
		n, err := cancelFutureLocked(ctx, tx, professionalID, from)
		if err != nil {
			return err
		}
		cancelled = n
		return nil
	})
	if err != nil {
		return 0, err
	}
	return cancelled, nil
}

// cancelFutureLocked cancels each booking through the normal status
// transition rather than a raw bulk update.
func cancelFutureLocked(ctx context.Context, tx store.SchedulingTx, professionalID string, from time.Time) (int, error) {
	active := []domain.BookingStatus{domain.BookingStatusPending, domain.BookingStatusConfirmed}
	bookings, err := tx.ListBookingsByStatus(ctx, professionalID, active, from)
	if err != nil {
		return 0, err
	}

	cancelled := 0
	for _, b := range bookings {
		if err := b.Transition(domain.BookingStatusCancelled); err != nil {
			return 0, err
		}
		if _, err := tx.UpdateBooking(ctx, b); err != nil {
			return 0, err
		}
		cancelled++
	}
	return cancelled, nil
}

func (r *Repo) List(ctx context.Context, professionalID string, windowStart, windowEnd time.Time) ([]domain.Booking, error) {
	var rows []domain.Booking
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

func (r *Repo) Delete(ctx context.Context, professionalID string, bookingID uuid.UUID) error {
	return r.InProfessionalTransaction(ctx, professionalID, func(ctx context.Context, tx store.SchedulingTx) error {
		return tx.DeleteBooking(ctx, professionalID, bookingID)
	})
}

func (r *Repo) GetProfessional(ctx context.Context, professionalID string) (domain.Professional, error) {
	var prof domain.Professional
	err := r.db.NewSelect().
		Model(&prof).
		Where("id = ?", professionalID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Professional{}, store.ErrNotFound
		}
		return domain.Professional{}, err
	}
	return prof, nil
}

func (t schedTx) GetProfessional(ctx context.Context, professionalID string) (domain.Professional, error) {
	var prof domain.Professional
	err := t.tx.NewSelect().
		Model(&prof).
		Where("id = ?", professionalID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Professional{}, store.ErrNotFound
		}
		return domain.Professional{}, err
	}
	return prof, nil
}

func (t schedTx) ListLiveIntervals(ctx context.Context, professionalID string, windowStart, windowEnd time.Time) ([]domain.Interval, error) {
	var bookings []domain.Booking
	err := t.tx.NewSelect().
		Model(&bookings).
		Where("professional_id = ?", professionalID).
		Where("status != ?", domain.BookingStatusCancelled).
		Where("start_time < ?", windowEnd).
		Where("end_time > ?", windowStart).
		OrderExpr("start_time ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}

	var sessions []domain.GroupSession
	err = t.tx.NewSelect().
		Model(&sessions).
		Where("professional_id = ?", professionalID).
		Where("status != ?", domain.GroupSessionStatusCancelled).
		Where("start_time < ?", windowEnd).
		Where("end_time > ?", windowStart).
		OrderExpr("start_time ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]domain.Interval, 0, len(bookings)+len(sessions))
	for i := range bookings {
		out = append(out, bookings[i].Interval())
	}
	for i := range sessions {
		out = append(out, sessions[i].Interval())
	}
	return out, nil
}

func (t schedTx) InsertBooking(ctx context.Context, booking domain.Booking) (domain.Booking, error) {
	m := booking
	_, err := t.tx.NewInsert().Model(&m).Exec(ctx)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23P01" && pgErr.ConstraintName == "bookings_no_overlap" {
			return domain.Booking{}, &domain.ConflictError{}
		}
		return domain.Booking{}, err
	}
	return m, nil
}

func (t schedTx) GetBooking(ctx context.Context, professionalID string, bookingID uuid.UUID) (domain.Booking, error) {
	var booking domain.Booking
	err := t.tx.NewSelect().
		Model(&booking).
		Where("professional_id = ?", professionalID).
		Where("id = ?", bookingID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Booking{}, store.ErrNotFound
		}
		return domain.Booking{}, err
	}
	return booking, nil
}

func (t schedTx) UpdateBooking(ctx context.Context, booking domain.Booking) (domain.Booking, error) {
	m := booking
	res, err := t.tx.NewUpdate().
		Model(&m).
		WherePK().
		Exec(ctx)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23P01" && pgErr.ConstraintName == "bookings_no_overlap" {
			return domain.Booking{}, &domain.ConflictError{}
		}
		return domain.Booking{}, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return domain.Booking{}, err
	}
	if affected == 0 {
		return domain.Booking{}, store.ErrNotFound
	}
	return m, nil
}

func (t schedTx) DeleteBooking(ctx context.Context, professionalID string, bookingID uuid.UUID) error {
	// The origin owns its recurrence rule; occurrences only hold weak
	// back-references and are left in place.
	_, err := t.tx.NewDelete().
		Model((*domain.RecurrenceRule)(nil)).
		Where("booking_id = ?", bookingID).
		Exec(ctx)
	if err != nil {
		return err
	}

	res, err := t.tx.NewDelete().
		Model((*domain.Booking)(nil)).
		Where("professional_id = ?", professionalID).
		Where("id = ?", bookingID).
		Exec(ctx)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (t schedTx) ListBookingsByStatus(ctx context.Context, professionalID string, statuses []domain.BookingStatus, from time.Time) ([]domain.Booking, error) {
	var rows []domain.Booking
	err := t.tx.NewSelect().
		Model(&rows).
		Where("professional_id = ?", professionalID).
		Where("status IN (?)", bun.In(statuses)).
		Where("start_time >= ?", from).
		OrderExpr("start_time ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (t schedTx) InsertRecurrenceRule(ctx context.Context, rule domain.RecurrenceRule) (domain.RecurrenceRule, error) {
	m := rule
	_, err := t.tx.NewInsert().Model(&m).Exec(ctx)
	if err != nil {
		return domain.RecurrenceRule{}, err
	}
	return m, nil
}

func (t schedTx) InsertGroupSession(ctx context.Context, session domain.GroupSession) (domain.GroupSession, error) {
	m := session
	_, err := t.tx.NewInsert().Model(&m).Exec(ctx)
	if err != nil {
		return domain.GroupSession{}, err
	}
	return m, nil
}
