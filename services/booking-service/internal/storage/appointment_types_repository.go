package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/timfee/scheduler/libs/db"
	"github.com/timfee/scheduler/services/booking-service/internal/apptypes"
)

type AppointmentTypeRepository struct {
	pool *db.Pool
}

var _ apptypes.Lookup = (*AppointmentTypeRepository)(nil)

func NewAppointmentTypeRepository(pool *db.Pool) *AppointmentTypeRepository {
	return &AppointmentTypeRepository{pool: pool}
}

func (r *AppointmentTypeRepository) Get(ctx context.Context, id string) (apptypes.AppointmentType, bool, error) {
	var t apptypes.AppointmentType
	err := r.pool.QueryRow(ctx, `
		SELECT id, name, duration_minutes
		FROM appointment_types
		WHERE id = $1 AND active
	`, id).Scan(&t.ID, &t.Name, &t.DurationMinutes)
	if IsNotFound(err) {
		return apptypes.AppointmentType{}, false, nil
	}
	if err != nil {
		return apptypes.AppointmentType{}, false, fmt.Errorf("get appointment type: %w", err)
	}
	return t, true, nil
}

// Upsert seeds or updates a type; used to load the configured defaults.
func (r *AppointmentTypeRepository) Upsert(ctx context.Context, t apptypes.AppointmentType) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO appointment_types (id, name, duration_minutes)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name, duration_minutes = EXCLUDED.duration_minutes, active = TRUE
	`, t.ID, t.Name, t.DurationMinutes)
	return err
}

func IsNotFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
