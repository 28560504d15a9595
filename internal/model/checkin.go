package model

// CheckinRequest is the identity a walk-in patient claims at the kiosk.
type CheckinRequest struct {
	FirstName string `form:"patient-first-name" json:"first_name" binding:"required,max=100"`
	LastName  string `form:"patient-last-name" json:"last_name" binding:"required,max=100"`
	SecretID  string `form:"patient-social-security-number" json:"social_security_number" binding:"required,secretid"`
}

type CheckinResult struct {
	Patient               PatientView `json:"patient"`
	AppointmentsCheckedIn int         `json:"appointments_checked_in"`
}

// DashboardView is what the doctor sees: today's queue and the historic
// average wait.
type DashboardView struct {
	Doctor                  int64                 `json:"doctor"`
	CheckedInPatients       []EnrichedAppointment `json:"checked_in_patients"`
	UpcomingAppointments    []EnrichedAppointment `json:"upcoming_appointments"`
	HistoricAverageWaitTime float64               `json:"historic_average_wait_time"`
}

type StartAppointmentResult struct {
	AppointmentID      int64   `json:"appointment_id"`
	MinutesWaited      int64   `json:"minutes_waited"`
	AverageWaitMinutes float64 `json:"average_wait_minutes"`
}
