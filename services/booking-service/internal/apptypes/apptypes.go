// Package apptypes resolves bookable appointment types.
package apptypes

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"
)

type AppointmentType struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	DurationMinutes int    `json:"duration_minutes"`
}

type Lookup interface {
	// Get returns false when no type with that id exists.
	Get(ctx context.Context, id string) (AppointmentType, bool, error)
}

// Static is a fixed set of types, configured at startup.
type Static struct {
	types map[string]AppointmentType
}

func NewStatic(types ...AppointmentType) *Static {
	s := &Static{types: make(map[string]AppointmentType, len(types))}
	for _, t := range types {
		s.types[t.ID] = t
	}
	return s
}

func (s *Static) Get(_ context.Context, id string) (AppointmentType, bool, error) {
	t, ok := s.types[strings.TrimSpace(id)]
	return t, ok, nil
}

// All returns the configured types ordered by id.
func (s *Static) All() []AppointmentType {
	out := make([]AppointmentType, 0, len(s.types))
	for _, t := range s.types {
		out = append(out, t)
	}
	slices.SortFunc(out, func(a, b AppointmentType) int { return strings.Compare(a.ID, b.ID) })
	return out
}

// ParseStatic reads a list like "intro:Intro call:30,deep:Deep dive:60".
func ParseStatic(raw string) (*Static, error) {
	var types []AppointmentType
	for _, item := range strings.Split(raw, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		parts := strings.Split(item, ":")
		if len(parts) != 3 {
			return nil, fmt.Errorf("appointment type %q: want id:name:minutes", item)
		}
		id := strings.TrimSpace(parts[0])
		name := strings.TrimSpace(parts[1])
		minutes, err := strconv.Atoi(strings.TrimSpace(parts[2]))
		if err != nil || minutes <= 0 {
			return nil, fmt.Errorf("appointment type %q: invalid duration %q", item, parts[2])
		}
		if id == "" {
			return nil, fmt.Errorf("appointment type %q: empty id", item)
		}
		if name == "" {
			name = id
		}
		types = append(types, AppointmentType{ID: id, Name: name, DurationMinutes: minutes})
	}
	if len(types) == 0 {
		return nil, fmt.Errorf("no appointment types configured")
	}
	return NewStatic(types...), nil
}
