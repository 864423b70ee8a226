package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/timfee/scheduler/libs/db"
	"github.com/timfee/scheduler/services/booking-service/internal/calendar"
	"github.com/timfee/scheduler/services/booking-service/internal/interval"
	"github.com/timfee/scheduler/services/booking-service/internal/model"
)

// CalendarRepository is a calendar.Provider on the appointments table. The
// table's exclusion constraint rejects overlaps across every instance.
type CalendarRepository struct {
	pool *db.Pool
}

var _ calendar.Provider = (*CalendarRepository)(nil)

func NewCalendarRepository(pool *db.Pool) *CalendarRepository {
	return &CalendarRepository{pool: pool}
}

func (r *CalendarRepository) ListBusyTimes(ctx context.Context, from, to time.Time) ([]interval.Interval, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT start_time, end_time
		FROM appointments
		WHERE status = $1
			AND start_time < $3
			AND end_time > $2
		ORDER BY start_time ASC
	`, model.StatusBooked, from.UTC(), to.UTC())
	if err != nil {
		return nil, fmt.Errorf("query busy times: %w", err)
	}
	defer rows.Close()

	var busy []interval.Interval
	for rows.Next() {
		var iv interval.Interval
		if err := rows.Scan(&iv.Start, &iv.End); err != nil {
			return nil, err
		}
		iv.Start, iv.End = iv.Start.UTC(), iv.End.UTC()
		busy = append(busy, iv)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return busy, nil
}

func (r *CalendarRepository) CreateAppointment(ctx context.Context, in calendar.AppointmentInput) (calendar.ConfirmedBooking, error) {
	appt := model.Appointment{
		AppointmentTypeID: in.AppointmentTypeID,
		Title:             in.Title,
		Description:       in.Description,
		Location:          in.Location,
		RequesterName:     in.RequesterName,
		RequesterEmail:    in.RequesterEmail,
		OwnerTimeZone:     in.OwnerTimeZone,
		StartTime:         in.StartUTC.UTC(),
		EndTime:           in.EndUTC.UTC(),
		Status:            model.StatusBooked,
	}
	if appt.OwnerTimeZone == "" {
		appt.OwnerTimeZone = interval.DefaultTimeZone
	}

	err := r.pool.QueryRow(ctx, `
		INSERT INTO appointments
			(appointment_type_id, title, description, location, requester_name, requester_email,
			 owner_time_zone, start_time, end_time, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id::text, created_at
	`, appt.AppointmentTypeID, appt.Title, appt.Description, appt.Location, appt.RequesterName,
		appt.RequesterEmail, appt.OwnerTimeZone, appt.StartTime, appt.EndTime, appt.Status,
	).Scan(&appt.ID, &appt.CreatedAt)
	if IsConflict(err) {
		return calendar.ConfirmedBooking{}, fmt.Errorf("%w: %v", calendar.ErrSlotTaken, err)
	}
	if err != nil {
		return calendar.ConfirmedBooking{}, fmt.Errorf("insert appointment: %w", err)
	}
	return calendar.FromAppointment(appt), nil
}

// IsConflict reports an exclusion constraint violation, i.e. an overlapping
// booked appointment.
func IsConflict(err error) bool {
	return db.HasCode(err, db.CodeExclusionViolation)
}
