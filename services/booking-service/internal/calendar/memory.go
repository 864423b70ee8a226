package calendar

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/timfee/scheduler/services/booking-service/internal/interval"
	"github.com/timfee/scheduler/services/booking-service/internal/model"
)

// Memory is an in-process calendar used for local runs and tests. Like the
// Postgres schema it refuses overlapping appointments with ErrSlotTaken.
type Memory struct {
	mu    sync.Mutex
	appts []model.Appointment
	now   func() time.Time
}

func NewMemory() *Memory {
	return &Memory{now: time.Now}
}

// Block adds a busy interval that did not come from a booking, e.g. an
// imported personal event.
func (m *Memory) Block(start, end time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.appts = append(m.appts, model.Appointment{
		ID:        uuid.NewString(),
		Title:     "busy",
		StartTime: start.UTC(),
		EndTime:   end.UTC(),
		Status:    model.StatusBooked,
		CreatedAt: m.now().UTC(),
	})
}

func (m *Memory) ListBusyTimes(ctx context.Context, from, to time.Time) ([]interval.Interval, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	window := interval.Interval{Start: from, End: to}

	m.mu.Lock()
	defer m.mu.Unlock()

	var busy []interval.Interval
	for _, a := range m.appts {
		if a.Status != model.StatusBooked {
			continue
		}
		iv := interval.Interval{Start: a.StartTime, End: a.EndTime}
		if iv.Overlaps(window) {
			busy = append(busy, iv)
		}
	}
	sort.Slice(busy, func(i, j int) bool { return busy[i].Start.Before(busy[j].Start) })
	return busy, nil
}

func (m *Memory) CreateAppointment(ctx context.Context, in AppointmentInput) (ConfirmedBooking, error) {
	if err := ctx.Err(); err != nil {
		return ConfirmedBooking{}, err
	}
	want := interval.Interval{Start: in.StartUTC.UTC(), End: in.EndUTC.UTC()}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, a := range m.appts {
		if a.Status == model.StatusBooked && want.Overlaps(interval.Interval{Start: a.StartTime, End: a.EndTime}) {
			return ConfirmedBooking{}, ErrSlotTaken
		}
	}

	appt := model.Appointment{
		ID:                uuid.NewString(),
		AppointmentTypeID: in.AppointmentTypeID,
		Title:             in.Title,
		Description:       in.Description,
		Location:          in.Location,
		RequesterName:     in.RequesterName,
		RequesterEmail:    in.RequesterEmail,
		OwnerTimeZone:     in.OwnerTimeZone,
		StartTime:         want.Start,
		EndTime:           want.End,
		Status:            model.StatusBooked,
		CreatedAt:         m.now().UTC(),
	}
	m.appts = append(m.appts, appt)
	return FromAppointment(appt), nil
}

// Appointments returns a copy of everything stored, in insertion order.
func (m *Memory) Appointments() []model.Appointment {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Appointment, len(m.appts))
	copy(out, m.appts)
	return out
}

func FromAppointment(a model.Appointment) ConfirmedBooking {
	return ConfirmedBooking{
		ID:                a.ID,
		AppointmentTypeID: a.AppointmentTypeID,
		Title:             a.Title,
		RequesterEmail:    a.RequesterEmail,
		StartUTC:          a.StartTime.UTC(),
		EndUTC:            a.EndTime.UTC(),
		CreatedAt:         a.CreatedAt.UTC(),
	}
}
