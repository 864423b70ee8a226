// Package scheduling answers which hours of a given day are bookable.
package scheduling

import (
	"context"

	"github.com/timfee/scheduler/services/booking-service/internal/availability"
)

type Provider interface {
	// HoursFor returns the business hours on date (YYYY-MM-DD). The bool is
	// false when the operator does not take bookings that day.
	HoursFor(ctx context.Context, date string) (availability.BusinessHours, bool, error)
}
