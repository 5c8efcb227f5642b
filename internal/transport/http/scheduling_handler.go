package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"wellplan/backend/internal/domain"
	"wellplan/backend/internal/service/scheduling"
)

type schedulingService interface {
	CreateBooking(ctx context.Context, in scheduling.CreateBookingInput) (scheduling.CreateBookingResult, error)
	CreateBlockedTime(ctx context.Context, in scheduling.CreateBlockedTimeInput) (domain.Booking, error)
	Reschedule(ctx context.Context, professionalID string, bookingID uuid.UUID, start time.Time, durationMinutes int) (domain.Booking, error)
	Transition(ctx context.Context, professionalID string, bookingID uuid.UUID, to domain.BookingStatus) (domain.Booking, error)
	AddParticipant(ctx context.Context, professionalID string, bookingID uuid.UUID) (domain.Booking, error)
	RemoveParticipant(ctx context.Context, professionalID string, bookingID uuid.UUID) (domain.Booking, error)
	CancelFutureBookings(ctx context.Context, professionalID string, from time.Time) (int, error)
	List(ctx context.Context, professionalID string, windowStart, windowEnd time.Time) ([]domain.Booking, error)
	Delete(ctx context.Context, professionalID string, bookingID uuid.UUID) error
}

type SchedulingHandler struct {
	svc schedulingService
	log *slog.Logger
}

func NewSchedulingHandler(svc schedulingService, log *slog.Logger) *SchedulingHandler {
	if log == nil {
		log = slog.Default()
	}
	return &SchedulingHandler{
		svc: svc,
		log: log.With(slog.String("component", "http.scheduling")),
	}
}

type recurrencePayload struct {
	Type     string     `json:"type"`
	Weekdays []int16    `json:"weekdays,omitempty"`
	MonthDay int        `json:"month_day,omitempty"`
	EndDate  *time.Time `json:"end_date,omitempty"`
	EndAfter *int       `json:"end_after,omitempty"`
}

type createBookingRequest struct {
	ClientID        string             `json:"client_id"`
	ServiceID       *uuid.UUID         `json:"service_id,omitempty"`
	StartTime       time.Time          `json:"start_time"`
	DurationMinutes int                `json:"duration_minutes"`
	Notes           string             `json:"notes,omitempty"`
	Group           bool               `json:"group,omitempty"`
	MaxParticipants int                `json:"max_participants,omitempty"`
	Recurrence      *recurrencePayload `json:"recurrence,omitempty"`
}

type bookingPayload struct {
	ID                  uuid.UUID  `json:"id"`
	ProfessionalID      string     `json:"professional_id"`
	ClientID            string     `json:"client_id,omitempty"`
	ServiceID           *uuid.UUID `json:"service_id,omitempty"`
	Kind                string     `json:"kind"`
	Status              string     `json:"status"`
	StartTime           time.Time  `json:"start_time"`
	EndTime             time.Time  `json:"end_time"`
	Notes               string     `json:"notes,omitempty"`
	MaxParticipants     int        `json:"max_participants"`
	CurrentParticipants int        `json:"current_participants"`
	Recurring           bool       `json:"recurring"`
	ParentBookingID     *uuid.UUID `json:"parent_booking_id,omitempty"`
	RecurrenceID        *uuid.UUID `json:"recurrence_id,omitempty"`
}

type createBookingResponse struct {
	Booking            bookingPayload   `json:"booking"`
	CreatedOccurrences []bookingPayload `json:"created_occurrences,omitempty"`
	SkippedOccurrences int              `json:"skipped_occurrences"`
}

func toBookingPayload(b domain.Booking) bookingPayload {
	return bookingPayload{
		ID:                  b.ID,
		ProfessionalID:      b.ProfessionalID,
		ClientID:            b.ClientID,
		ServiceID:           b.ServiceID,
		Kind:                string(b.Kind),
		Status:              string(b.Status),
		StartTime:           b.StartTime,
		EndTime:             b.EndTime,
		Notes:               b.Notes,
		MaxParticipants:     b.MaxParticipants,
		CurrentParticipants: b.CurrentParticipants,
		Recurring:           b.Recurring,
		ParentBookingID:     b.ParentBookingID,
		RecurrenceID:        b.RecurrenceID,
	}
}

func (h *SchedulingHandler) CreateBooking(w http.ResponseWriter, r *http.Request) {
	log := h.log.With(slog.String("handler", "CreateBooking"))
	professionalID := chi.URLParam(r, "professionalID")

	var req createBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Warn("invalid request", slog.String("reason", "bad_json"))
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	in := scheduling.CreateBookingInput{
		ProfessionalID:  professionalID,
		ClientID:        req.ClientID,
		ServiceID:       req.ServiceID,
		StartTime:       req.StartTime,
		DurationMinutes: req.DurationMinutes,
		Notes:           req.Notes,
		Group:           req.Group,
		MaxParticipants: req.MaxParticipants,
	}
	if req.Recurrence != nil {
		in.Recurrence = &scheduling.RecurrenceInput{
			Type:     domain.RecurrenceType(req.Recurrence.Type),
			Weekdays: req.Recurrence.Weekdays,
			MonthDay: req.Recurrence.MonthDay,
			EndDate:  req.Recurrence.EndDate,
			EndAfter: req.Recurrence.EndAfter,
		}
	}

	result, err := h.svc.CreateBooking(r.Context(), in)
	if err != nil {
		writeServiceError(log.With(slog.String("professional_id", professionalID)), w, err)
		return
	}

	log.Info(
		"booking created",
		slog.String("booking_id", result.Booking.ID.String()),
		slog.String("professional_id", professionalID),
		slog.Int("occurrences_created", len(result.CreatedOccurrences)),
		slog.Int("occurrences_skipped", result.SkippedOccurrences),
	)

	resp := createBookingResponse{
		Booking:            toBookingPayload(result.Booking),
		SkippedOccurrences: result.SkippedOccurrences,
	}
	for _, occ := range result.CreatedOccurrences {
		resp.CreatedOccurrences = append(resp.CreatedOccurrences, toBookingPayload(occ))
	}
	writeJSON(w, http.StatusCreated, resp)
}

type createBlockedTimeRequest struct {
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	Notes     string    `json:"notes,omitempty"`
}

func (h *SchedulingHandler) CreateBlockedTime(w http.ResponseWriter, r *http.Request) {
	log := h.log.With(slog.String("handler", "CreateBlockedTime"))
	professionalID := chi.URLParam(r, "professionalID")

	var req createBlockedTimeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Warn("invalid request", slog.String("reason", "bad_json"))
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	booking, err := h.svc.CreateBlockedTime(r.Context(), scheduling.CreateBlockedTimeInput{
		ProfessionalID: professionalID,
		StartTime:      req.StartTime,
		EndTime:        req.EndTime,
		Notes:          req.Notes,
	})
	if err != nil {
		writeServiceError(log.With(slog.String("professional_id", professionalID)), w, err)
		return
	}

	log.Info(
		"blocked time created",
		slog.String("booking_id", booking.ID.String()),
		slog.String("professional_id", professionalID),
	)
	writeJSON(w, http.StatusCreated, toBookingPayload(booking))
}

type rescheduleRequest struct {
	StartTime       time.Time `json:"start_time"`
	DurationMinutes int       `json:"duration_minutes"`
}

func (h *SchedulingHandler) Reschedule(w http.ResponseWriter, r *http.Request) {
	log := h.log.With(slog.String("handler", "Reschedule"))
	professionalID := chi.URLParam(r, "professionalID")

	bookingID, err := uuid.Parse(chi.URLParam(r, "bookingID"))
	if err != nil {
		log.Warn("invalid request", slog.String("reason", "invalid_uuid"))
		writeError(w, http.StatusBadRequest, "booking_id must be a UUID")
		return
	}

	var req rescheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Warn("invalid request", slog.String("reason", "bad_json"))
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	booking, err := h.svc.Reschedule(r.Context(), professionalID, bookingID, req.StartTime, req.DurationMinutes)
	if err != nil {
		writeServiceError(log.With(slog.String("booking_id", bookingID.String())), w, err)
		return
	}

	log.Info("booking rescheduled", slog.String("booking_id", bookingID.String()), slog.Time("start_time", booking.StartTime))
	writeJSON(w, http.StatusOK, toBookingPayload(booking))
}

type transitionRequest struct {
	Status string `json:"status"`
}

func (h *SchedulingHandler) Transition(w http.ResponseWriter, r *http.Request) {
	log := h.log.With(slog.String("handler", "Transition"))
	professionalID := chi.URLParam(r, "professionalID")

	bookingID, err := uuid.Parse(chi.URLParam(r, "bookingID"))
	if err != nil {
		log.Warn("invalid request", slog.String("reason", "invalid_uuid"))
		writeError(w, http.StatusBadRequest, "booking_id must be a UUID")
		return
	}

	var req transitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Warn("invalid request", slog.String("reason", "bad_json"))
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	booking, err := h.svc.Transition(r.Context(), professionalID, bookingID, domain.BookingStatus(req.Status))
	if err != nil {
		writeServiceError(log.With(slog.String("booking_id", bookingID.String())), w, err)
		return
	}

	log.Info("booking transitioned", slog.String("booking_id", bookingID.String()), slog.String("status", string(booking.Status)))
	writeJSON(w, http.StatusOK, toBookingPayload(booking))
}

func (h *SchedulingHandler) AddParticipant(w http.ResponseWriter, r *http.Request) {
	h.adjustParticipants(w, r, "AddParticipant", h.svc.AddParticipant)
}

func (h *SchedulingHandler) RemoveParticipant(w http.ResponseWriter, r *http.Request) {
	h.adjustParticipants(w, r, "RemoveParticipant", h.svc.RemoveParticipant)
}

func (h *SchedulingHandler) adjustParticipants(w http.ResponseWriter, r *http.Request, name string, op func(context.Context, string, uuid.UUID) (domain.Booking, error)) {
	log := h.log.With(slog.String("handler", name))
	professionalID := chi.URLParam(r, "professionalID")

	bookingID, err := uuid.Parse(chi.URLParam(r, "bookingID"))
	if err != nil {
		log.Warn("invalid request", slog.String("reason", "invalid_uuid"))
		writeError(w, http.StatusBadRequest, "booking_id must be a UUID")
		return
	}

	booking, err := op(r.Context(), professionalID, bookingID)
	if err != nil {
		writeServiceError(log.With(slog.String("booking_id", bookingID.String())), w, err)
		return
	}

	log.Info(
		"participants adjusted",
		slog.String("booking_id", bookingID.String()),
		slog.Int("current_participants", booking.CurrentParticipants),
	)
	writeJSON(w, http.StatusOK, toBookingPayload(booking))
}

type cancelFutureRequest struct {
	From *time.Time `json:"from,omitempty"`
}

type cancelFutureResponse struct {
	Cancelled int `json:"cancelled"`
}

func (h *SchedulingHandler) CancelFuture(w http.ResponseWriter, r *http.Request) {
	log := h.log.With(slog.String("handler", "CancelFuture"))
	professionalID := chi.URLParam(r, "professionalID")

	var req cancelFutureRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			log.Warn("invalid request", slog.String("reason", "bad_json"))
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	from := time.Time{}
	if req.From != nil {
		from = *req.From
	}

	cancelled, err := h.svc.CancelFutureBookings(r.Context(), professionalID, from)
	if err != nil {
		writeServiceError(log.With(slog.String("professional_id", professionalID)), w, err)
		return
	}

	log.Info("future bookings cancelled", slog.String("professional_id", professionalID), slog.Int("cancelled", cancelled))
	writeJSON(w, http.StatusOK, cancelFutureResponse{Cancelled: cancelled})
}

func (h *SchedulingHandler) ListBookings(w http.ResponseWriter, r *http.Request) {
	log := h.log.With(slog.String("handler", "ListBookings"))
	professionalID := chi.URLParam(r, "professionalID")

	windowStart, windowEnd, ok := parseWindow(r)
	if !ok {
		log.Warn("invalid request", slog.String("reason", "bad_window"))
		writeError(w, http.StatusBadRequest, "window_start and window_end must be RFC 3339 timestamps")
		return
	}

	bookings, err := h.svc.List(r.Context(), professionalID, windowStart, windowEnd)
	if err != nil {
		writeServiceError(log.With(slog.String("professional_id", professionalID)), w, err)
		return
	}

	out := make([]bookingPayload, 0, len(bookings))
	for _, b := range bookings {
		out = append(out, toBookingPayload(b))
	}
	writeJSON(w, http.StatusOK, map[string][]bookingPayload{"bookings": out})
}

func (h *SchedulingHandler) Delete(w http.ResponseWriter, r *http.Request) {
	log := h.log.With(slog.String("handler", "Delete"))
	professionalID := chi.URLParam(r, "professionalID")

	bookingID, err := uuid.Parse(chi.URLParam(r, "bookingID"))
	if err != nil {
		log.Warn("invalid request", slog.String("reason", "invalid_uuid"))
		writeError(w, http.StatusBadRequest, "booking_id must be a UUID")
		return
	}

	if err := h.svc.Delete(r.Context(), professionalID, bookingID); err != nil {
		writeServiceError(log.With(slog.String("booking_id", bookingID.String())), w, err)
		return
	}

	log.Info("booking deleted", slog.String("booking_id", bookingID.String()))
	w.WriteHeader(http.StatusNoContent)
}

func parseWindow(r *http.Request) (time.Time, time.Time, bool) {
	start, err := time.Parse(time.RFC3339, r.URL.Query().Get("window_start"))
	if err != nil {
		return time.Time{}, time.Time{}, false
	}
	end, err := time.Parse(time.RFC3339, r.URL.Query().Get("window_end"))
	if err != nil {
		return time.Time{}, time.Time{}, false
	}
	return start, end, true
}
