package scheduling

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/timfee/scheduler/services/booking-service/internal/availability"
	"github.com/timfee/scheduler/services/booking-service/internal/interval"
)

// Weekly is the same business hours on every working weekday.
type Weekly struct {
	hours availability.BusinessHours
	days  map[time.Weekday]bool
}

var dayTokens = map[string]time.Weekday{
	"sun": time.Sunday, "sunday": time.Sunday,
	"mon": time.Monday, "monday": time.Monday,
	"tue": time.Tuesday, "tues": time.Tuesday, "tuesday": time.Tuesday,
	"wed": time.Wednesday, "wednesday": time.Wednesday,
	"thu": time.Thursday, "thur": time.Thursday, "thurs": time.Thursday, "thursday": time.Thursday,
	"fri": time.Friday, "friday": time.Friday,
	"sat": time.Saturday, "saturday": time.Saturday,
}

// ParseDays reads a list of weekday names; an empty list means Monday to Friday.
func ParseDays(tokens []string) (map[time.Weekday]bool, error) {
	days := map[time.Weekday]bool{}
	for _, tok := range tokens {
		tok = strings.ToLower(strings.TrimSpace(tok))
		if tok == "" {
			continue
		}
		d, ok := dayTokens[tok]
		if !ok {
			return nil, fmt.Errorf("unknown weekday %q", tok)
		}
		days[d] = true
	}
	if len(days) == 0 {
		for d := time.Monday; d <= time.Friday; d++ {
			days[d] = true
		}
	}
	return days, nil
}

func NewWeekly(hours availability.BusinessHours, days map[time.Weekday]bool) (*Weekly, error) {
	if _, err := interval.LoadLocation(hours.TimeZone); err != nil {
		return nil, err
	}
	sh, sm, err := interval.ParseClock(hours.Start)
	if err != nil {
		return nil, fmt.Errorf("business start: %w", err)
	}
	eh, em, err := interval.ParseClock(hours.End)
	if err != nil {
		return nil, fmt.Errorf("business end: %w", err)
	}
	if eh*60+em <= sh*60+sm {
		return nil, fmt.Errorf("business end %s must be after start %s", hours.End, hours.Start)
	}
	return &Weekly{hours: hours, days: days}, nil
}

func (w *Weekly) HoursFor(_ context.Context, date string) (availability.BusinessHours, bool, error) {
	y, m, d, err := interval.ParseDate(date)
	if err != nil {
		return availability.BusinessHours{}, false, err
	}
	if !w.days[time.Date(y, m, d, 12, 0, 0, 0, time.UTC).Weekday()] {
		return availability.BusinessHours{}, false, nil
	}
	return w.hours, true, nil
}
