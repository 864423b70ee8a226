package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/timfee/scheduler/libs/httpx"
	"github.com/timfee/scheduler/services/booking-service/internal/apptypes"
	"github.com/timfee/scheduler/services/booking-service/internal/availability"
	"github.com/timfee/scheduler/services/booking-service/internal/booking"
	"github.com/timfee/scheduler/services/booking-service/internal/calendar"
	"github.com/timfee/scheduler/services/booking-service/internal/interval"
	"github.com/timfee/scheduler/services/booking-service/internal/scheduling"
)

const lookupTimeout = 5 * time.Second

type Booker interface {
	AttemptBooking(ctx context.Context, req booking.Request) (calendar.ConfirmedBooking, error)
	InFlight() []booking.InFlightEntry
}

type BookingHandler struct {
	booker     Booker
	calendar   calendar.Provider
	types      apptypes.Lookup
	hours      scheduling.Provider
	logger     *slog.Logger
	retryAfter time.Duration
	now        func() time.Time
}

type BookingHandlerDeps struct {
	Booker   Booker
	Calendar calendar.Provider
	Types    apptypes.Lookup
	Hours    scheduling.Provider
	Logger   *slog.Logger
	// RetryAfter is advertised on rate limited responses.
	RetryAfter time.Duration
}

func NewBookingHandler(deps BookingHandlerDeps) *BookingHandler {
	return &BookingHandler{
		booker:     deps.Booker,
		calendar:   deps.Calendar,
		types:      deps.Types,
		hours:      deps.Hours,
		logger:     deps.Logger,
		retryAfter: deps.RetryAfter,
		now:        time.Now,
	}
}

type slotsResponse struct {
	Date              string   `json:"date"`
	AppointmentTypeID string   `json:"appointment_type_id"`
	DurationMinutes   int      `json:"duration_minutes"`
	TimeZone          string   `json:"time_zone"`
	Slots             []string `json:"slots"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// Slots lists the free start times for an appointment type on a date.
func (h *BookingHandler) Slots(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	typeID := strings.TrimSpace(r.URL.Query().Get("appointment_type_id"))
	date := strings.TrimSpace(r.URL.Query().Get("date"))
	if typeID == "" || date == "" {
		http.Error(w, "appointment_type_id and date are required", http.StatusBadRequest)
		return
	}
	if _, _, _, err := interval.ParseDate(date); err != nil {
		http.Error(w, "invalid date", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), lookupTimeout)
	defer cancel()

	at, ok, err := h.types.Get(ctx, typeID)
	if err != nil {
		h.logger.Error("appointment type lookup failed", "err", err, "request_id", httpx.RequestIDFromContext(ctx))
		http.Error(w, "failed to load appointment type", http.StatusBadGateway)
		return
	}
	if !ok {
		http.Error(w, "unknown appointment type", http.StatusNotFound)
		return
	}

	resp := slotsResponse{
		Date:              date,
		AppointmentTypeID: at.ID,
		DurationMinutes:   at.DurationMinutes,
		TimeZone:          interval.DefaultTimeZone,
		Slots:             []string{},
	}

	hours, working, err := h.hours.HoursFor(ctx, date)
	if err != nil {
		h.logger.Error("business hours lookup failed", "err", err, "request_id", httpx.RequestIDFromContext(ctx))
		http.Error(w, "failed to load business hours", http.StatusBadGateway)
		return
	}
	if !working {
		writeJSON(w, http.StatusOK, resp)
		return
	}
	if hours.TimeZone != "" {
		resp.TimeZone = hours.TimeZone
	}

	window, _, err := availability.BusinessWindow(date, hours)
	if err != nil {
		h.logger.Error("business window invalid", "err", err)
		http.Error(w, "business hours misconfigured", http.StatusInternalServerError)
		return
	}
	busy, err := h.calendar.ListBusyTimes(ctx, window.Start, window.End)
	if err != nil {
		h.logger.Error("list busy times failed", "err", err, "request_id", httpx.RequestIDFromContext(ctx))
		http.Error(w, "failed to load busy times", http.StatusBadGateway)
		return
	}

	slots, err := availability.ComputeSlots(availability.Query{
		Date:            date,
		DurationMinutes: at.DurationMinutes,
		Hours:           hours,
		Busy:            busy,
		NotBefore:       h.now(),
	})
	if err != nil {
		h.logger.Error("compute slots failed", "err", err)
		http.Error(w, "failed to compute slots", http.StatusInternalServerError)
		return
	}
	resp.Slots = slots
	writeJSON(w, http.StatusOK, resp)
}

// Book attempts to book one slot previously returned by Slots.
func (h *BookingHandler) Book(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req booking.Request
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: string(booking.KindValidation), Message: "invalid json body"})
		return
	}

	confirmed, err := h.booker.AttemptBooking(r.Context(), req)
	if err != nil {
		h.writeBookingError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, confirmed)
}

// InFlight lists slots currently locked by booking attempts.
func (h *BookingHandler) InFlight(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"in_flight": h.booker.InFlight()})
}

func (h *BookingHandler) writeBookingError(w http.ResponseWriter, r *http.Request, err error) {
	var be *booking.Error
	if !errors.As(err, &be) {
		h.logger.Error("booking failed", "err", err, "request_id", httpx.RequestIDFromContext(r.Context()))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal", Message: "booking failed"})
		return
	}
	status := StatusFor(be.Kind)
	if be.Kind == booking.KindRateLimited && h.retryAfter > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(int(h.retryAfter.Seconds())))
	}
	writeJSON(w, status, errorResponse{Error: string(be.Kind), Message: be.Message})
}

// StatusFor maps a booking error kind to its HTTP status.
func StatusFor(kind booking.Kind) int {
	switch kind {
	case booking.KindValidation:
		return http.StatusBadRequest
	case booking.KindRateLimited:
		return http.StatusTooManyRequests
	case booking.KindSlotUnavailable:
		return http.StatusConflict
	case booking.KindProviderFailure:
		return http.StatusBadGateway
	case booking.KindLockTimeout:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		http.Error(w, "failed to build response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}
