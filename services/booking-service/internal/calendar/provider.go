// Package calendar defines the operator's calendar backend: where busy time
// comes from and where confirmed appointments are written.
package calendar

import (
	"context"
	"errors"
	"time"

	"github.com/timfee/scheduler/services/booking-service/internal/interval"
)

// ErrSlotTaken is returned by CreateAppointment when the backend itself
// detects that the requested range is already booked.
var ErrSlotTaken = errors.New("calendar: slot already taken")

type Provider interface {
	// ListBusyTimes returns the busy intervals overlapping [from, to), in UTC.
	ListBusyTimes(ctx context.Context, from, to time.Time) ([]interval.Interval, error)
	CreateAppointment(ctx context.Context, in AppointmentInput) (ConfirmedBooking, error)
}

type AppointmentInput struct {
	AppointmentTypeID string
	Title             string
	Description       string
	Location          string
	RequesterName     string
	RequesterEmail    string
	StartUTC          time.Time
	EndUTC            time.Time
	OwnerTimeZone     string
}

type ConfirmedBooking struct {
	ID                string    `json:"id"`
	AppointmentTypeID string    `json:"appointment_type_id"`
	Title             string    `json:"title"`
	RequesterEmail    string    `json:"requester_email"`
	StartUTC          time.Time `json:"start_utc"`
	EndUTC            time.Time `json:"end_utc"`
	CreatedAt         time.Time `json:"created_at"`
}
