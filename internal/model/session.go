package model

import (
	"time"
)

// Session ties a browser (the doctor's workstation or the kiosk tablet) to a
// signed-in doctor.
type Session struct {
	ID        string    `json:"id"`
	DoctorID  int64     `json:"doctor_id"`
	CreatedAt time.Time `json:"created_at"`
}

// StoredCredential is an encrypted OAuth token bundle persisted per doctor.
type StoredCredential struct {
	DoctorID  int64      `db:"doctor_id"`
	Token     []byte     `db:"token"`
	ExpiresAt *time.Time `db:"expires_at"`
	CreatedAt time.Time  `db:"created_at"`
	UpdatedAt time.Time  `db:"updated_at"`
}

// User is the account behind an upstream credential.
type User struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	IsDoctor bool   `json:"is_doctor"`
}
