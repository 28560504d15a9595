package checkin

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/checkin-kiosk/internal/emr/emrtest"
	"github.com/jwalitptl/checkin-kiosk/internal/model"
	apperrors "github.com/jwalitptl/checkin-kiosk/pkg/errors"
	"github.com/jwalitptl/checkin-kiosk/pkg/logger"
)

func newService() *Service {
	s := NewService(logger.Nop(), nil)
	s.SetClock(func() time.Time { return time.Date(2024, 3, 5, 9, 0, 0, 0, time.UTC) })
	return s
}

func patient(id int64, first, last, ssn string) model.Patient {
	return model.Patient{
		ID:                   id,
		PatientDemographics:  model.PatientDemographics{FirstName: first, LastName: last},
		SocialSecurityNumber: ssn,
	}
}

func TestCheckIn_MatchOnSecondPage(t *testing.T) {
	records := &emrtest.Records{
		PageSize: 1,
		Patients: []model.Patient{
			patient(1, "Jane", "Doe", "111-11-1111"),
			patient(2, "JANE", "doe", "222-22-2222"),
			patient(3, "Jane", "Doe", "222-22-2222"),
		},
		Appointments: []model.Appointment{
			{ID: 10, Doctor: 7, Patient: emrtest.Int64(2)},
			{ID: 11, Doctor: 7, Patient: emrtest.Int64(2), Status: model.AppointmentStatusCancelled},
			{ID: 12, Doctor: 7, Patient: emrtest.Int64(2), Status: "Confirmed"},
			{ID: 13, Doctor: 7, Patient: emrtest.Int64(3)},
		},
	}

	res, err := newService().CheckIn(context.Background(), records, 7, model.CheckinRequest{
		FirstName: "jane",
		LastName:  "DOE",
		SecretID:  "222-22-2222",
	})
	require.NoError(t, err)

	assert.Equal(t, int64(2), res.Patient.ID)
	assert.Equal(t, 2, res.AppointmentsCheckedIn)
	assert.Equal(t, []emrtest.Patch{
		{AppointmentID: 10, Status: model.AppointmentStatusArrived},
		{AppointmentID: 12, Status: model.AppointmentStatusArrived},
	}, records.Patches)
}

func TestMatch_StopsPagingAtFirstMatch(t *testing.T) {
	records := &emrtest.Records{
		PageSize: 1,
		Patients: []model.Patient{
			patient(1, "Jane", "Doe", "111-11-1111"),
			patient(2, "Jane", "Doe", "222-22-2222"),
			patient(3, "Jane", "Doe", "222-22-2222"),
		},
	}

	p, err := newService().Match(context.Background(), records, model.CheckinRequest{
		FirstName: "Jane",
		LastName:  "Doe",
		SecretID:  "222-22-2222",
	})
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, int64(2), p.ID)
	assert.Equal(t, 2, records.PagesFetched)
}

func TestCheckIn_NoMatch(t *testing.T) {
	records := &emrtest.Records{
		Patients: []model.Patient{
			patient(1, "Jane", "Doe", "111-11-1111"),
			patient(2, "Janet", "Doe", "222-22-2222"),
		},
	}

	_, err := newService().CheckIn(context.Background(), records, 7, model.CheckinRequest{
		FirstName: "Jane",
		LastName:  "Doe",
		SecretID:  "222-22-2222",
	})
	require.Error(t, err)
	assert.True(t, apperrors.IsNotFound(err))
	assert.Empty(t, records.Patches)
}

func TestCheckIn_SecretIDIsCaseSensitive(t *testing.T) {
	records := &emrtest.Records{
		Patients: []model.Patient{patient(1, "Jane", "Doe", "ab-12")},
	}

	_, err := newService().CheckIn(context.Background(), records, 7, model.CheckinRequest{
		FirstName: "Jane",
		LastName:  "Doe",
		SecretID:  "AB-12",
	})
	assert.True(t, apperrors.IsNotFound(err))
}

func TestCheckIn_SearchFailure(t *testing.T) {
	boom := errors.New("search down")
	records := &emrtest.Records{
		PageSize:        1,
		Patients:        []model.Patient{patient(1, "Jane", "Doe", "1"), patient(2, "Jane", "Doe", "2")},
		ListPatientsErr: boom,
	}

	_, err := newService().CheckIn(context.Background(), records, 7, model.CheckinRequest{
		FirstName: "Jane",
		LastName:  "Doe",
		SecretID:  "2",
	})
	assert.ErrorIs(t, err, boom)
}

func TestCheckInToday_StopsAtFirstFailure(t *testing.T) {
	boom := errors.New("patch failed")
	records := &emrtest.Records{
		Appointments: []model.Appointment{
			{ID: 1, Doctor: 7, Patient: emrtest.Int64(5)},
			{ID: 2, Doctor: 7, Patient: emrtest.Int64(5)},
			{ID: 3, Doctor: 7, Patient: emrtest.Int64(5)},
		},
		PatchErr: map[int64]error{2: boom},
	}

	n, err := newService().CheckInToday(context.Background(), records, 7, 5)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, records.PatchCount())
}

func TestCheckInToday_NoAppointments(t *testing.T) {
	records := &emrtest.Records{
		Appointments: []model.Appointment{
			{ID: 1, Doctor: 8, Patient: emrtest.Int64(5)},
			{ID: 2, Doctor: 7, Patient: emrtest.Int64(6)},
			{ID: 3, Doctor: 7, Patient: emrtest.Int64(5), Deleted: true},
		},
	}

	n, err := newService().CheckInToday(context.Background(), records, 7, 5)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, records.Patches)
}
