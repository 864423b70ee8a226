package interval

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// DefaultTimeZone is used whenever a business zone is not configured.
const DefaultTimeZone = "UTC"

const (
	DateLayout  = "2006-01-02"
	ClockLayout = "15:04"
)

var (
	ErrInvalidClock = errors.New("invalid wall-clock time")
	ErrInvalidDate  = errors.New("invalid calendar date")
)

// LoadLocation resolves an IANA zone name. An empty name means DefaultTimeZone.
func LoadLocation(name string) (*time.Location, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = DefaultTimeZone
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("load time zone %q: %w", name, err)
	}
	return loc, nil
}

// ParseClock parses a strict HH:MM wall-clock value (00:00-23:59).
func ParseClock(hhmm string) (hour, minute int, err error) {
	hhmm = strings.TrimSpace(hhmm)
	if len(hhmm) != len(ClockLayout) {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidClock, hhmm)
	}
	t, err := time.Parse(ClockLayout, hhmm)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidClock, hhmm)
	}
	return t.Hour(), t.Minute(), nil
}

// ParseDate parses a YYYY-MM-DD calendar date.
func ParseDate(date string) (year int, month time.Month, day int, err error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(date))
	if err != nil {
		return 0, 0, 0, fmt.Errorf("%w: %q", ErrInvalidDate, date)
	}
	return t.Year(), t.Month(), t.Day(), nil
}

// LocalWallClockToUTC resolves hhmm on date in loc to a UTC instant, using the
// zone's offset for that date rather than today's offset.
func LocalWallClockToUTC(date, hhmm string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	y, mo, d, err := ParseDate(date)
	if err != nil {
		return time.Time{}, err
	}
	h, m, err := ParseClock(hhmm)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(y, mo, d, h, m, 0, 0, loc).UTC(), nil
}

// UTCToLocalDisplay formats an instant as HH:MM in loc. Callers must pass the
// same zone used to build the business window for the query.
func UTCToLocalDisplay(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format(ClockLayout)
}
