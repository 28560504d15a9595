package emr

import (
	"context"
	"errors"
	"iter"
	"net/http"

	"github.com/jwalitptl/checkin-kiosk/internal/model"
)

// RecordService is the typed view of the practice-management API used by the
// kiosk. Every call needs a valid Credential; a missing, invalid or rejected
// credential surfaces as errors.ErrUnauthenticated, any other failure as
// *errors.UpstreamError.
type RecordService interface {
	// CurrentUser returns the account that owns the credential.
	CurrentUser(ctx context.Context) (*model.User, error)

	// ListAppointments pages through appointments lazily, following the
	// upstream's next links. Iteration stops at the first error.
	ListAppointments(ctx context.Context, filter model.AppointmentFilter) iter.Seq2[model.Appointment, error]

	GetAppointment(ctx context.Context, id int64) (*model.Appointment, error)

	PatchAppointmentStatus(ctx context.Context, id int64, status model.AppointmentStatus) error

	// ListPatients searches patients by name. The upstream matches
	// case-insensitively and on substrings, callers must filter for exact
	// matches themselves.
	ListPatients(ctx context.Context, filter model.PatientFilter) iter.Seq2[model.Patient, error]

	GetPatient(ctx context.Context, id int64) (*model.Patient, error)

	// ReplacePatient overwrites the whole record; fields absent from patient
	// are lost upstream.
	ReplacePatient(ctx context.Context, id int64, patient *model.Patient) error
}

// ErrCredentialRejected is wrapped by Credential.Apply when the provider
// refused to refresh the token. Any other Apply error is transient and leaves
// the credential usable.
var ErrCredentialRejected = errors.New("credential rejected by provider")

// Credential is a delegated-authorization token bundle of one doctor.
type Credential interface {
	// Apply sets the authorization header, refreshing the token when needed.
	Apply(h http.Header) error
	Invalid() bool
	// Invalidate marks the credential as rejected by the upstream.
	Invalidate()
}

// Connector binds a credential to a RecordService.
type Connector interface {
	Connect(cred Credential) RecordService
}
