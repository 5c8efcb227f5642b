package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"wellplan/backend/internal/domain"
	"wellplan/backend/internal/service/groups"
	"wellplan/backend/internal/service/scheduling"
	"wellplan/backend/internal/store"
)

// NewRouter wires every scheduling and group endpoint onto one chi router.
func NewRouter(sched *SchedulingHandler, grp *GroupsHandler) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/v1/professionals/{professionalID}", func(r chi.Router) {
		r.Post("/bookings", sched.CreateBooking)
		r.Get("/bookings", sched.ListBookings)
		r.Post("/blocked-times", sched.CreateBlockedTime)
		r.Post("/bookings/{bookingID}/reschedule", sched.Reschedule)
		r.Post("/bookings/{bookingID}/status", sched.Transition)
		r.Post("/bookings/{bookingID}/participants", sched.AddParticipant)
		r.Delete("/bookings/{bookingID}/participants", sched.RemoveParticipant)
		r.Delete("/bookings/{bookingID}", sched.Delete)
		r.Post("/cancel-future", sched.CancelFuture)
		r.Get("/group-sessions", grp.ListSessions)
	})

	r.Post("/v1/group-classes", grp.CreateClass)
	r.Post("/v1/group-classes/{classID}/sessions", grp.ScheduleSession)
	r.Post("/v1/group-sessions/{sessionID}/cancel", grp.CancelSession)
	r.Post("/v1/group-sessions/{sessionID}/registrations", grp.Register)
	r.Post("/v1/group-registrations/{registrationID}/status", grp.TransitionRegistration)

	return r
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// writeServiceError translates the engine's typed outcomes into HTTP
// statuses: conflicts and capacity exhaustion are 409, malformed input is
// 400, missing records are 404, everything unexpected is an opaque 500.
func writeServiceError(log *slog.Logger, w http.ResponseWriter, err error) {
	var conflictErr *domain.ConflictError
	if errors.As(err, &conflictErr) {
		log.Info("conflict rejected", slog.String("detail", conflictErr.Error()))
		writeError(w, http.StatusConflict, "That time range is already taken. Pick a different slot.")
		return
	}

	var capacityErr *domain.CapacityError
	if errors.As(err, &capacityErr) {
		log.Info("capacity rejected", slog.String("detail", capacityErr.Error()))
		writeError(w, http.StatusConflict, "This session is full.")
		return
	}

	var ruleErr *domain.InvalidRuleError
	if errors.As(err, &ruleErr) {
		log.Warn("invalid recurrence rule", slog.Any("err", err))
		writeError(w, http.StatusBadRequest, ruleErr.Error())
		return
	}

	var transitionErr *domain.InvalidTransitionError
	if errors.As(err, &transitionErr) {
		log.Info("invalid transition", slog.Any("err", err))
		writeError(w, http.StatusConflict, transitionErr.Error())
		return
	}

	var schedValidation *scheduling.ValidationError
	if errors.As(err, &schedValidation) {
		log.Warn("invalid request", slog.Any("err", err))
		writeError(w, http.StatusBadRequest, schedValidation.Error())
		return
	}

	var groupValidation *groups.ValidationError
	if errors.As(err, &groupValidation) {
		log.Warn("invalid request", slog.Any("err", err))
		writeError(w, http.StatusBadRequest, groupValidation.Error())
		return
	}

	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	if errors.Is(err, store.ErrProfessionalInactive) {
		writeError(w, http.StatusConflict, "This professional is not accepting bookings.")
		return
	}
	if errors.Is(err, store.ErrNotGroupBooking) {
		writeError(w, http.StatusBadRequest, "booking does not track participants")
		return
	}

	log.Error("request failed", slog.Any("err", err))
	writeError(w, http.StatusInternalServerError, "internal error")
}
