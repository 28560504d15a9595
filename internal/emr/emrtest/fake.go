// Package emrtest provides an in-memory RecordService for tests.
package emrtest

import (
	"context"
	"iter"
	"strings"
	"sync"

	"github.com/jwalitptl/checkin-kiosk/internal/emr"
	"github.com/jwalitptl/checkin-kiosk/internal/model"
	apperrors "github.com/jwalitptl/checkin-kiosk/pkg/errors"
)

var _ emr.RecordService = (*Records)(nil)

// Patch is one recorded status change.
type Patch struct {
	AppointmentID int64
	Status        model.AppointmentStatus
}

// Records serves appointments and patients from memory. Listings are split
// into pages of PageSize items; PagesFetched counts the pages handed out so
// tests can assert on lazy iteration.
type Records struct {
	mu sync.Mutex

	User         *model.User
	Appointments []model.Appointment
	Patients     []model.Patient
	PageSize     int

	// Error injection. A non-nil entry makes the matching call fail.
	ListAppointmentsErr error
	ListPatientsErr     error
	GetPatientErr       map[int64]error
	PatchErr            map[int64]error
	ReplaceErr          error

	Patches      []Patch
	Replaced     []model.Patient
	PagesFetched int
}

func (r *Records) pageSize() int {
	if r.PageSize <= 0 {
		return 50
	}
	return r.PageSize
}

func (r *Records) CurrentUser(ctx context.Context) (*model.User, error) {
	if r.User == nil {
		return nil, apperrors.ErrUnauthenticated
	}
	u := *r.User
	return &u, nil
}

func (r *Records) ListAppointments(ctx context.Context, filter model.AppointmentFilter) iter.Seq2[model.Appointment, error] {
	r.mu.Lock()
	var matched []model.Appointment
	for _, a := range r.Appointments {
		if a.Doctor != filter.Doctor {
			continue
		}
		if filter.Patient != 0 && (a.Patient == nil || *a.Patient != filter.Patient) {
			continue
		}
		matched = append(matched, a)
	}
	listErr := r.ListAppointmentsErr
	r.mu.Unlock()

	return paged(r, matched, listErr)
}

func (r *Records) GetAppointment(ctx context.Context, id int64) (*model.Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.Appointments {
		if a.ID == id {
			appt := a
			return &appt, nil
		}
	}
	return nil, &apperrors.UpstreamError{Method: "GET", URL: "/api/appointments", Status: 404}
}

func (r *Records) PatchAppointmentStatus(ctx context.Context, id int64, status model.AppointmentStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.PatchErr[id]; err != nil {
		return err
	}
	r.Patches = append(r.Patches, Patch{AppointmentID: id, Status: status})
	for i := range r.Appointments {
		if r.Appointments[i].ID == id {
			r.Appointments[i].Status = status
		}
	}
	return nil
}

// ListPatients mimics the upstream search: case-insensitive substring match.
func (r *Records) ListPatients(ctx context.Context, filter model.PatientFilter) iter.Seq2[model.Patient, error] {
	r.mu.Lock()
	var matched []model.Patient
	for _, p := range r.Patients {
		if contains(p.FirstName, filter.FirstName) && contains(p.LastName, filter.LastName) {
			matched = append(matched, p)
		}
	}
	listErr := r.ListPatientsErr
	r.mu.Unlock()

	return paged(r, matched, listErr)
}

func (r *Records) GetPatient(ctx context.Context, id int64) (*model.Patient, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.GetPatientErr[id]; err != nil {
		return nil, err
	}
	for _, p := range r.Patients {
		if p.ID == id {
			patient := p
			return &patient, nil
		}
	}
	return nil, &apperrors.UpstreamError{Method: "GET", URL: "/api/patients", Status: 404}
}

func (r *Records) ReplacePatient(ctx context.Context, id int64, patient *model.Patient) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ReplaceErr != nil {
		return r.ReplaceErr
	}
	r.Replaced = append(r.Replaced, *patient)
	for i := range r.Patients {
		if r.Patients[i].ID == id {
			r.Patients[i] = *patient
		}
	}
	return nil
}

// PatchCount returns the number of successful status patches.
func (r *Records) PatchCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.Patches)
}

// paged serves items page by page. A non-nil err is yielded once the first
// page has been consumed, as if fetching the next page failed.
func paged[T any](r *Records, items []T, err error) iter.Seq2[T, error] {
	size := r.pageSize()
	return func(yield func(T, error) bool) {
		var zero T
		for start := 0; ; start += size {
			if start > 0 && err != nil {
				yield(zero, err)
				return
			}

			r.mu.Lock()
			r.PagesFetched++
			r.mu.Unlock()

			end := min(start+size, len(items))
			for _, item := range items[start:end] {
				if !yield(item, nil) {
					return
				}
			}
			if end >= len(items) && err == nil {
				return
			}
		}
	}
}

func contains(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

// Int64 returns a pointer to v.
func Int64(v int64) *int64 {
	return &v
}
