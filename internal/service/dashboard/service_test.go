package dashboard

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/checkin-kiosk/internal/emr"
	"github.com/jwalitptl/checkin-kiosk/internal/emr/emrtest"
	"github.com/jwalitptl/checkin-kiosk/internal/model"
	"github.com/jwalitptl/checkin-kiosk/internal/service/appointment"
	"github.com/jwalitptl/checkin-kiosk/pkg/logger"
)

type fixedAverage struct {
	avg float64
	err error
}

func (f fixedAverage) Average(ctx context.Context, doctor int64) (float64, error) {
	return f.avg, f.err
}

type failingAggregator struct{ err error }

func (f failingAggregator) TodaysActionable(ctx context.Context, records emr.RecordService, doctor int64) (*model.DayAppointments, error) {
	return nil, f.err
}

func TestDashboard(t *testing.T) {
	now := time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC)
	records := &emrtest.Records{
		Patients: []model.Patient{
			{ID: 11, PatientDemographics: model.PatientDemographics{FirstName: "Ann", LastName: "Lee"}},
		},
		Appointments: []model.Appointment{
			{ID: 1, Doctor: 7, Patient: emrtest.Int64(11), Status: model.AppointmentStatusArrived},
			{ID: 2, Doctor: 7, Patient: emrtest.Int64(11), Status: model.AppointmentStatusNoShow},
			{ID: 3, Doctor: 7, Patient: emrtest.Int64(11)},
		},
	}
	agg := appointment.NewService(logger.Nop(), appointment.WithClock(func() time.Time { return now }))

	view, err := NewService(agg, fixedAverage{avg: 20}).Dashboard(context.Background(), records, 7)
	require.NoError(t, err)

	assert.Equal(t, int64(7), view.Doctor)
	assert.Equal(t, 20.0, view.HistoricAverageWaitTime)
	require.Len(t, view.CheckedInPatients, 1)
	assert.Equal(t, int64(1), view.CheckedInPatients[0].ID)
	require.Len(t, view.UpcomingAppointments, 1)
	assert.Equal(t, int64(3), view.UpcomingAppointments[0].ID)
}

func TestDashboard_Errors(t *testing.T) {
	boom := errors.New("boom")

	_, err := NewService(failingAggregator{err: boom}, fixedAverage{}).Dashboard(context.Background(), &emrtest.Records{}, 7)
	assert.ErrorIs(t, err, boom)

	agg := appointment.NewService(logger.Nop())
	_, err = NewService(agg, fixedAverage{err: boom}).Dashboard(context.Background(), &emrtest.Records{}, 7)
	assert.ErrorIs(t, err, boom)
}
