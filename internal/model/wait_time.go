package model

import "time"

// WaitTime is the running wait-time statistic of one doctor. Only the sum and
// the count are stored, individual samples are not kept.
type WaitTime struct {
	DoctorID       int64     `db:"doctor_id" json:"doctor_id"`
	MinutesWaiting int64     `db:"minutes_waiting" json:"minutes_waiting"`
	TotalPatients  int64     `db:"total_patients" json:"total_patients"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// Average returns the mean wait in minutes, 0 when nobody was counted yet.
func (w *WaitTime) Average() float64 {
	if w == nil || w.TotalPatients == 0 {
		return 0
	}
	return float64(w.MinutesWaiting) / float64(w.TotalPatients)
}
