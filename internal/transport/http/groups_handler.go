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
	"wellplan/backend/internal/service/groups"
)

type groupsService interface {
	CreateClass(ctx context.Context, in groups.CreateClassInput) (domain.GroupClass, error)
	ScheduleSession(ctx context.Context, classID uuid.UUID, start time.Time) (domain.GroupSession, error)
	ListSessions(ctx context.Context, professionalID string, windowStart, windowEnd time.Time) ([]domain.GroupSession, error)
	CancelSession(ctx context.Context, sessionID uuid.UUID) (domain.GroupSession, error)
	Register(ctx context.Context, sessionID uuid.UUID, clientID string) (domain.GroupRegistration, error)
	TransitionRegistration(ctx context.Context, registrationID uuid.UUID, to domain.RegistrationStatus) (domain.GroupRegistration, error)
}

type GroupsHandler struct {
	svc groupsService
	log *slog.Logger
}

func NewGroupsHandler(svc groupsService, log *slog.Logger) *GroupsHandler {
	if log == nil {
		log = slog.Default()
	}
	return &GroupsHandler{
		svc: svc,
		log: log.With(slog.String("component", "http.groups")),
	}
}

type createClassRequest struct {
	ProfessionalID  string `json:"professional_id"`
	Name            string `json:"name"`
	Description     string `json:"description,omitempty"`
	PriceCents      int64  `json:"price_cents"`
	DurationMinutes int    `json:"duration_minutes"`
	MaxParticipants int    `json:"max_participants"`
	Location        string `json:"location,omitempty"`
}

type classPayload struct {
	ID              uuid.UUID `json:"id"`
	ProfessionalID  string    `json:"professional_id"`
	Name            string    `json:"name"`
	Description     string    `json:"description,omitempty"`
	PriceCents      int64     `json:"price_cents"`
	DurationMinutes int       `json:"duration_minutes"`
	MaxParticipants int       `json:"max_participants"`
	Location        string    `json:"location,omitempty"`
}

func toClassPayload(c domain.GroupClass) classPayload {
	return classPayload{
		ID:              c.ID,
		ProfessionalID:  c.ProfessionalID,
		Name:            c.Name,
		Description:     c.Description,
		PriceCents:      c.PriceCents,
		DurationMinutes: c.DurationMinutes,
		MaxParticipants: c.MaxParticipants,
		Location:        c.Location,
	}
}

type sessionPayload struct {
	ID                  uuid.UUID `json:"id"`
	ClassID             uuid.UUID `json:"class_id"`
	ProfessionalID      string    `json:"professional_id"`
	Status              string    `json:"status"`
	StartTime           time.Time `json:"start_time"`
	EndTime             time.Time `json:"end_time"`
	MaxParticipants     int       `json:"max_participants"`
	CurrentParticipants int       `json:"current_participants"`
}

func toSessionPayload(s domain.GroupSession) sessionPayload {
	return sessionPayload{
		ID:                  s.ID,
		ClassID:             s.ClassID,
		ProfessionalID:      s.ProfessionalID,
		Status:              string(s.Status),
		StartTime:           s.StartTime,
		EndTime:             s.EndTime,
		MaxParticipants:     s.MaxParticipants,
		CurrentParticipants: s.CurrentParticipants,
	}
}

type registrationPayload struct {
	ID        uuid.UUID `json:"id"`
	SessionID uuid.UUID `json:"session_id"`
	ClientID  string    `json:"client_id"`
	Status    string    `json:"status"`
}

func toRegistrationPayload(reg domain.GroupRegistration) registrationPayload {
	return registrationPayload{
		ID:        reg.ID,
		SessionID: reg.SessionID,
		ClientID:  reg.ClientID,
		Status:    string(reg.Status),
	}
}

func (h *GroupsHandler) CreateClass(w http.ResponseWriter, r *http.Request) {
	log := h.log.With(slog.String("handler", "CreateClass"))

	var req createClassRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Warn("invalid request", slog.String("reason", "bad_json"))
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	class, err := h.svc.CreateClass(r.Context(), groups.CreateClassInput{
		ProfessionalID:  req.ProfessionalID,
		Name:            req.Name,
		Description:     req.Description,
		PriceCents:      req.PriceCents,
		DurationMinutes: req.DurationMinutes,
		MaxParticipants: req.MaxParticipants,
		Location:        req.Location,
	})
	if err != nil {
		writeServiceError(log.With(slog.String("professional_id", req.ProfessionalID)), w, err)
		return
	}

	log.Info("group class created", slog.String("class_id", class.ID.String()), slog.String("professional_id", class.ProfessionalID))
	writeJSON(w, http.StatusCreated, toClassPayload(class))
}

type scheduleSessionRequest struct {
	StartTime time.Time `json:"start_time"`
}

func (h *GroupsHandler) ScheduleSession(w http.ResponseWriter, r *http.Request) {
	log := h.log.With(slog.String("handler", "ScheduleSession"))

	classID, err := uuid.Parse(chi.URLParam(r, "classID"))
	if err != nil {
		log.Warn("invalid request", slog.String("reason", "invalid_uuid"))
		writeError(w, http.StatusBadRequest, "class_id must be a UUID")
		return
	}

	var req scheduleSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Warn("invalid request", slog.String("reason", "bad_json"))
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	session, err := h.svc.ScheduleSession(r.Context(), classID, req.StartTime)
	if err != nil {
		writeServiceError(log.With(slog.String("class_id", classID.String())), w, err)
		return
	}

	log.Info(
		"group session scheduled",
		slog.String("session_id", session.ID.String()),
		slog.String("class_id", classID.String()),
		slog.Time("start_time", session.StartTime),
	)
	writeJSON(w, http.StatusCreated, toSessionPayload(session))
}

func (h *GroupsHandler) ListSessions(w http.ResponseWriter, r *http.Request) {
	log := h.log.With(slog.String("handler", "ListSessions"))
	professionalID := chi.URLParam(r, "professionalID")

	windowStart, windowEnd, ok := parseWindow(r)
	if !ok {
		log.Warn("invalid request", slog.String("reason", "bad_window"))
		writeError(w, http.StatusBadRequest, "window_start and window_end must be RFC 3339 timestamps")
		return
	}

	sessions, err := h.svc.ListSessions(r.Context(), professionalID, windowStart, windowEnd)
	if err != nil {
		writeServiceError(log.With(slog.String("professional_id", professionalID)), w, err)
		return
	}

	out := make([]sessionPayload, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, toSessionPayload(s))
	}
	writeJSON(w, http.StatusOK, map[string][]sessionPayload{"sessions": out})
}

func (h *GroupsHandler) CancelSession(w http.ResponseWriter, r *http.Request) {
	log := h.log.With(slog.String("handler", "CancelSession"))

	sessionID, err := uuid.Parse(chi.URLParam(r, "sessionID"))
	if err != nil {
		log.Warn("invalid request", slog.String("reason", "invalid_uuid"))
		writeError(w, http.StatusBadRequest, "session_id must be a UUID")
		return
	}

	session, err := h.svc.CancelSession(r.Context(), sessionID)
	if err != nil {
		writeServiceError(log.With(slog.String("session_id", sessionID.String())), w, err)
		return
	}

	log.Info("group session cancelled", slog.String("session_id", sessionID.String()))
	writeJSON(w, http.StatusOK, toSessionPayload(session))
}

type registerRequest struct {
	ClientID string `json:"client_id"`
}

func (h *GroupsHandler) Register(w http.ResponseWriter, r *http.Request) {
	log := h.log.With(slog.String("handler", "Register"))

	sessionID, err := uuid.Parse(chi.URLParam(r, "sessionID"))
	if err != nil {
		log.Warn("invalid request", slog.String("reason", "invalid_uuid"))
		writeError(w, http.StatusBadRequest, "session_id must be a UUID")
		return
	}

	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Warn("invalid request", slog.String("reason", "bad_json"))
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	reg, err := h.svc.Register(r.Context(), sessionID, req.ClientID)
	if err != nil {
		writeServiceError(log.With(slog.String("session_id", sessionID.String())), w, err)
		return
	}

	log.Info(
		"client registered",
		slog.String("registration_id", reg.ID.String()),
		slog.String("session_id", sessionID.String()),
	)
	writeJSON(w, http.StatusCreated, toRegistrationPayload(reg))
}

type transitionRegistrationRequest struct {
	Status string `json:"status"`
}

func (h *GroupsHandler) TransitionRegistration(w http.ResponseWriter, r *http.Request) {
	log := h.log.With(slog.String("handler", "TransitionRegistration"))

	registrationID, err := uuid.Parse(chi.URLParam(r, "registrationID"))
	if err != nil {
		log.Warn("invalid request", slog.String("reason", "invalid_uuid"))
		writeError(w, http.StatusBadRequest, "registration_id must be a UUID")
		return
	}

	var req transitionRegistrationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Warn("invalid request", slog.String("reason", "bad_json"))
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	reg, err := h.svc.TransitionRegistration(r.Context(), registrationID, domain.RegistrationStatus(req.Status))
	if err != nil {
		writeServiceError(log.With(slog.String("registration_id", registrationID.String())), w, err)
		return
	}

	log.Info(
		"registration transitioned",
		slog.String("registration_id", registrationID.String()),
		slog.String("status", string(reg.Status)),
	)
	writeJSON(w, http.StatusOK, toRegistrationPayload(reg))
}
