package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jwalitptl/checkin-kiosk/internal/model"
)

// ErrNotFound is returned when a lookup matches no row or key.
var ErrNotFound = errors.New("not found")

// All repository interfaces in one file
type (
	// WaitTimeRepository keeps one running wait-time row per doctor.
	WaitTimeRepository interface {
		// Record adds one sample atomically, creating the row on the first
		// sample, and returns the updated row.
		Record(ctx context.Context, doctorID, minutes int64) (*model.WaitTime, error)
		// Get returns ErrNotFound when the doctor has no samples yet.
		Get(ctx context.Context, doctorID int64) (*model.WaitTime, error)
	}

	// CredentialRepository persists each doctor's OAuth token bundle,
	// encrypted at rest.
	CredentialRepository interface {
		Save(ctx context.Context, doctorID int64, token []byte, expiresAt *time.Time) error
		Get(ctx context.Context, doctorID int64) (*model.StoredCredential, error)
		Delete(ctx context.Context, doctorID int64) error
	}

	// SessionRepository maps opaque session ids to signed-in doctors.
	SessionRepository interface {
		Create(ctx context.Context, session *model.Session, ttl time.Duration) error
		Get(ctx context.Context, id string) (*model.Session, error)
		Delete(ctx context.Context, id string) error
	}
)
