package booking

import (
	"fmt"
	"strings"
	"time"

	"github.com/timfee/scheduler/services/booking-service/internal/interval"
)

// SlotKey identifies a booking window by its UTC bounds, so two requests
// for the same instant range share a key whatever zone they came from.
type SlotKey string

func NewSlotKey(iv interval.Interval) SlotKey {
	return SlotKey(iv.Start.UTC().Format(time.RFC3339) + "|" + iv.End.UTC().Format(time.RFC3339))
}

func (k SlotKey) Interval() (interval.Interval, error) {
	start, end, ok := strings.Cut(string(k), "|")
	if !ok {
		return interval.Interval{}, fmt.Errorf("malformed slot key %q", string(k))
	}
	s, err := time.Parse(time.RFC3339, start)
	if err != nil {
		return interval.Interval{}, fmt.Errorf("slot key start: %w", err)
	}
	e, err := time.Parse(time.RFC3339, end)
	if err != nil {
		return interval.Interval{}, fmt.Errorf("slot key end: %w", err)
	}
	return interval.Interval{Start: s.UTC(), End: e.UTC()}, nil
}
