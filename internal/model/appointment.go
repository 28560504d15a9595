package model

import (
	"time"
)

type AppointmentStatus string

const (
	AppointmentStatusArrived   AppointmentStatus = "Arrived"
	AppointmentStatusCancelled AppointmentStatus = "Cancelled"
	AppointmentStatusComplete  AppointmentStatus = "Complete"
	AppointmentStatusInSession AppointmentStatus = "In Session"
	AppointmentStatusNoShow    AppointmentStatus = "No Show"
)

// handledStatuses are terminal for the kiosk: such appointments are neither
// shown on the dashboard nor checked in again.
var handledStatuses = map[AppointmentStatus]struct{}{
	AppointmentStatusCancelled: {},
	AppointmentStatusComplete:  {},
	AppointmentStatusInSession: {},
	AppointmentStatusNoShow:    {},
}

func (s AppointmentStatus) IsHandled() bool {
	_, ok := handledStatuses[s]
	return ok
}

type Appointment struct {
	ID            int64             `json:"id"`
	Doctor        int64             `json:"doctor"`
	Patient       *int64            `json:"patient"`
	ScheduledTime time.Time         `json:"scheduled_time"`
	Status        AppointmentStatus `json:"status"`
	UpdatedAt     time.Time         `json:"updated_at"`
	Deleted       bool              `json:"deleted_flag"`
}

// Actionable reports whether the appointment can still be checked in or
// started.
func (a Appointment) Actionable() bool {
	return !a.Deleted && !a.Status.IsHandled()
}

// AppointmentFilter narrows an appointment listing. A zero Patient lists
// appointments of every patient.
type AppointmentFilter struct {
	Doctor  int64
	Date    time.Time
	Patient int64
}

// EnrichedAppointment is an appointment merged with the name of its patient,
// as shown on the dashboard.
type EnrichedAppointment struct {
	ID            int64             `json:"id"`
	PatientID     int64             `json:"patient"`
	ScheduledTime time.Time         `json:"scheduled_time"`
	Status        AppointmentStatus `json:"status"`
	UpdatedAt     time.Time         `json:"updated_at"`
	FirstName     string            `json:"first_name"`
	LastName      string            `json:"last_name"`
}

// DayAppointments partitions today's actionable appointments. Both slices keep
// the order of the upstream listing.
type DayAppointments struct {
	CheckedIn []EnrichedAppointment `json:"checked_in_patients"`
	Upcoming  []EnrichedAppointment `json:"upcoming_appointments"`
}
