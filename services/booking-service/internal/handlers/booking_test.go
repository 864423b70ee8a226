package handlers

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/timfee/scheduler/services/booking-service/internal/apptypes"
	"github.com/timfee/scheduler/services/booking-service/internal/availability"
	"github.com/timfee/scheduler/services/booking-service/internal/booking"
	"github.com/timfee/scheduler/services/booking-service/internal/calendar"
	"github.com/timfee/scheduler/services/booking-service/internal/ratelimit"
	"github.com/timfee/scheduler/services/booking-service/internal/scheduling"
)

var testNow = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func newTestHandler(t *testing.T) (*BookingHandler, *calendar.Memory) {
	t.Helper()
	days, err := scheduling.ParseDays(nil)
	if err != nil {
		t.Fatalf("days: %v", err)
	}
	hours, err := scheduling.NewWeekly(availability.BusinessHours{Start: "09:00", End: "17:00", TimeZone: "America/New_York"}, days)
	if err != nil {
		t.Fatalf("hours: %v", err)
	}
	types := apptypes.NewStatic(apptypes.AppointmentType{ID: "intro", Name: "Intro call", DurationMinutes: 30})
	mem := calendar.NewMemory()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	ctrl := booking.NewController(booking.Deps{
		Calendar: mem,
		Types:    types,
		Hours:    hours,
		Limiter:  ratelimit.NewCooldown(time.Minute),
		Logger:   logger,
		Now:      func() time.Time { return testNow },
	}, booking.Config{})

	h := NewBookingHandler(BookingHandlerDeps{
		Booker:     ctrl,
		Calendar:   mem,
		Types:      types,
		Hours:      hours,
		Logger:     logger,
		RetryAfter: time.Minute,
	})
	h.now = func() time.Time { return testNow }
	return h, mem
}

func getSlots(t *testing.T, h *BookingHandler, query string) (int, slotsResponse) {
	t.Helper()
	rr := httptest.NewRecorder()
	h.Slots(rr, httptest.NewRequest(http.MethodGet, "/api/v1/public/slots?"+query, nil))
	var resp slotsResponse
	if rr.Code == http.StatusOK {
		if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
			t.Fatalf("decode slots: %v", err)
		}
	}
	return rr.Code, resp
}

func book(h *BookingHandler, body string) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	h.Book(rr, httptest.NewRequest(http.MethodPost, "/api/v1/public/book", strings.NewReader(body)))
	return rr
}

func TestSlots_ListsLocalTimesAndHidesBooked(t *testing.T) {
	h, mem := newTestHandler(t)

	code, resp := getSlots(t, h, "appointment_type_id=intro&date=2026-07-15")
	if code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if len(resp.Slots) != 16 || resp.Slots[0] != "09:00" || resp.TimeZone != "America/New_York" {
		t.Fatalf("unexpected slots: %+v", resp)
	}

	// 12:00-13:00 New York daylight time.
	mem.Block(time.Date(2026, 7, 15, 16, 0, 0, 0, time.UTC), time.Date(2026, 7, 15, 17, 0, 0, 0, time.UTC))
	_, resp = getSlots(t, h, "appointment_type_id=intro&date=2026-07-15")
	for _, s := range resp.Slots {
		if s == "12:00" || s == "12:30" {
			t.Fatalf("busy slot %s offered: %v", s, resp.Slots)
		}
	}
	if len(resp.Slots) != 14 {
		t.Fatalf("expected 14 slots, got %d", len(resp.Slots))
	}
}

func TestSlots_ClosedDayIsEmpty(t *testing.T) {
	h, _ := newTestHandler(t)
	code, resp := getSlots(t, h, "appointment_type_id=intro&date=2026-07-18")
	if code != http.StatusOK || len(resp.Slots) != 0 {
		t.Fatalf("expected empty 200 for saturday, got %d %+v", code, resp)
	}
}

func TestSlots_BadRequests(t *testing.T) {
	h, _ := newTestHandler(t)
	tests := []struct {
		query string
		want  int
	}{
		{"date=2026-07-15", http.StatusBadRequest},
		{"appointment_type_id=intro&date=15-07-2026", http.StatusBadRequest},
		{"appointment_type_id=nope&date=2026-07-15", http.StatusNotFound},
	}
	for _, tt := range tests {
		if code, _ := getSlots(t, h, tt.query); code != tt.want {
			t.Fatalf("%s: expected %d, got %d", tt.query, tt.want, code)
		}
	}
}

func TestBook_CreatedThenConflictThenRateLimited(t *testing.T) {
	h, _ := newTestHandler(t)
	body := `{"appointment_type_id":"intro","date":"2026-07-15","time":"10:00","name":"Ada","email":"ada@example.com"}`

	rr := book(h, body)
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	var confirmed calendar.ConfirmedBooking
	if err := json.NewDecoder(rr.Body).Decode(&confirmed); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if want := time.Date(2026, 7, 15, 14, 0, 0, 0, time.UTC); !confirmed.StartUTC.Equal(want) {
		t.Fatalf("expected start %s, got %s", want, confirmed.StartUTC)
	}

	rr = book(h, strings.Replace(body, "ada@example.com", "grace@example.com", 1))
	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d: %s", rr.Code, rr.Body.String())
	}

	rr = book(h, strings.Replace(body, `"10:00"`, `"11:00"`, 1))
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d: %s", rr.Code, rr.Body.String())
	}
	if rr.Header().Get("Retry-After") != "60" {
		t.Fatalf("expected Retry-After 60, got %q", rr.Header().Get("Retry-After"))
	}
	var e errorResponse
	if err := json.NewDecoder(rr.Body).Decode(&e); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if e.Error != string(booking.KindRateLimited) {
		t.Fatalf("unexpected error body: %+v", e)
	}
}

func TestBook_InvalidBodies(t *testing.T) {
	h, _ := newTestHandler(t)
	for _, body := range []string{
		`not json`,
		`{"appointment_type_id":"intro","date":"2026-07-15","time":"10:00","name":"Ada","email":"ada@example.com","extra":1}`,
		`{"appointment_type_id":"intro","date":"2026-07-15","time":"10:10","name":"Ada","email":"ada@example.com"}`,
	} {
		if rr := book(h, body); rr.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", body, rr.Code)
		}
	}
}

func TestInFlight_EmptyWhenIdle(t *testing.T) {
	h, _ := newTestHandler(t)
	rr := httptest.NewRecorder()
	h.InFlight(rr, httptest.NewRequest(http.MethodGet, "/debug/bookings/inflight", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var body struct {
		InFlight []booking.InFlightEntry `json:"in_flight"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.InFlight) != 0 {
		t.Fatalf("expected no in-flight bookings, got %v", body.InFlight)
	}
}

func TestStatusFor(t *testing.T) {
	want := map[booking.Kind]int{
		booking.KindValidation:      http.StatusBadRequest,
		booking.KindRateLimited:     http.StatusTooManyRequests,
		booking.KindSlotUnavailable: http.StatusConflict,
		booking.KindProviderFailure: http.StatusBadGateway,
		booking.KindLockTimeout:     http.StatusServiceUnavailable,
		booking.Kind("other"):       http.StatusInternalServerError,
	}
	for kind, status := range want {
		if got := StatusFor(kind); got != status {
			t.Fatalf("StatusFor(%s) = %d, want %d", kind, got, status)
		}
	}
}

var _ Booker = (*booking.Controller)(nil)

func TestBook_MethodNotAllowed(t *testing.T) {
	h, _ := newTestHandler(t)
	rr := httptest.NewRecorder()
	h.Book(rr, httptest.NewRequest(http.MethodGet, "/api/v1/public/book", nil).WithContext(context.Background()))
	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rr.Code)
	}
}
