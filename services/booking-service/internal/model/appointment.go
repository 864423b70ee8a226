package model

import "time"

const (
	StatusBooked    = "booked"
	StatusCancelled = "cancelled"
)

// Appointment is a confirmed booking as stored by a calendar backend.
type Appointment struct {
	ID                string
	AppointmentTypeID string
	Title             string
	Description       string
	Location          string
	RequesterName     string
	RequesterEmail    string
	OwnerTimeZone     string
	StartTime         time.Time
	EndTime           time.Time
	Status            string
	CreatedAt         time.Time
}
