package dashboard

import (
	"context"

	"github.com/jwalitptl/checkin-kiosk/internal/emr"
	"github.com/jwalitptl/checkin-kiosk/internal/model"
)

// Aggregator lists the day's actionable appointments.
type Aggregator interface {
	TodaysActionable(ctx context.Context, records emr.RecordService, doctor int64) (*model.DayAppointments, error)
}

// WaitTimes reads the historic average wait.
type WaitTimes interface {
	Average(ctx context.Context, doctor int64) (float64, error)
}

type Service struct {
	appointments Aggregator
	waitTimes    WaitTimes
}

func NewService(appointments Aggregator, waitTimes WaitTimes) *Service {
	return &Service{appointments: appointments, waitTimes: waitTimes}
}

// Dashboard builds the doctor's view. The average is read at render time from
// the stored totals.
func (s *Service) Dashboard(ctx context.Context, records emr.RecordService, doctor int64) (*model.DashboardView, error) {
	day, err := s.appointments.TodaysActionable(ctx, records, doctor)
	if err != nil {
		return nil, err
	}

	avg, err := s.waitTimes.Average(ctx, doctor)
	if err != nil {
		return nil, err
	}

	return &model.DashboardView{
		Doctor:                  doctor,
		CheckedInPatients:       day.CheckedIn,
		UpcomingAppointments:    day.Upcoming,
		HistoricAverageWaitTime: avg,
	}, nil
}
