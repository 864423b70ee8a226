package availability

import (
	"errors"
	"fmt"
	"time"

	"github.com/timfee/scheduler/services/booking-service/internal/interval"
)

var ErrInvalidDuration = errors.New("duration must be a positive number of minutes")

// BusinessHours is the operator's bookable window for a day, as wall-clock
// times in TimeZone. An empty TimeZone means interval.DefaultTimeZone.
type BusinessHours struct {
	Start    string
	End      string
	TimeZone string
}

// Query is one slot computation request. NotBefore, when set, hides
// candidates that start before it.
type Query struct {
	Date            string
	DurationMinutes int
	Hours           BusinessHours
	Busy            []interval.Interval
	NotBefore       time.Time
}

// BusinessWindow resolves the business hours on date to a UTC interval and
// returns the zone used, so slot display and booking resolution share one
// normalization path.
func BusinessWindow(date string, hours BusinessHours) (interval.Interval, *time.Location, error) {
	loc, err := interval.LoadLocation(hours.TimeZone)
	if err != nil {
		return interval.Interval{}, nil, err
	}
	start, err := interval.LocalWallClockToUTC(date, hours.Start, loc)
	if err != nil {
		return interval.Interval{}, nil, fmt.Errorf("business start: %w", err)
	}
	end, err := interval.LocalWallClockToUTC(date, hours.End, loc)
	if err != nil {
		return interval.Interval{}, nil, fmt.Errorf("business end: %w", err)
	}
	return interval.Interval{Start: start, End: end}, loc, nil
}

// ComputeSlots returns the free slot start times for the query as HH:MM in
// the business zone, ordered by time.
func ComputeSlots(q Query) ([]string, error) {
	if q.DurationMinutes <= 0 {
		return nil, ErrInvalidDuration
	}
	window, loc, err := BusinessWindow(q.Date, q.Hours)
	if err != nil {
		return nil, err
	}

	d := time.Duration(q.DurationMinutes) * time.Minute
	starts := AvailableSlots(window.Start, window.End, d, d, q.Busy, q.NotBefore)

	out := make([]string, 0, len(starts))
	for _, s := range starts {
		out = append(out, interval.UTCToLocalDisplay(s, loc))
	}
	return out, nil
}

// AvailableSlots returns slot start times within [windowStart, windowEnd) where a booking of
// length duration would not overlap any of the busy intervals.
//
// The walk happens on absolute instants, so DST days neither repeat nor drop
// slots relative to elapsed time. A zero notBefore disables past filtering.
func AvailableSlots(windowStart, windowEnd time.Time, duration, step time.Duration, busy []interval.Interval, notBefore time.Time) []time.Time {
	if duration <= 0 || step <= 0 {
		return nil
	}
	if !windowEnd.After(windowStart) {
		return nil
	}

	var slots []time.Time
	for t := windowStart; t.Before(windowEnd); t = t.Add(step) {
		end := t.Add(duration)
		if end.After(windowEnd) {
			break
		}
		if !notBefore.IsZero() && t.Before(notBefore) {
			continue
		}
		if interval.OverlapsAny(interval.Interval{Start: t, End: end}, busy) {
			continue
		}
		slots = append(slots, t)
	}
	return slots
}

// OnGrid reports whether candidate starts inside window on a multiple of
// duration from the window start and ends inside it.
func OnGrid(window, candidate interval.Interval, duration time.Duration) bool {
	if duration <= 0 || !window.Contains(candidate) {
		return false
	}
	return candidate.Start.Sub(window.Start)%duration == 0
}
