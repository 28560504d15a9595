package waittime

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jwalitptl/checkin-kiosk/internal/emr"
	"github.com/jwalitptl/checkin-kiosk/internal/model"
	"github.com/jwalitptl/checkin-kiosk/internal/repository"
	apperrors "github.com/jwalitptl/checkin-kiosk/pkg/errors"
	"github.com/jwalitptl/checkin-kiosk/pkg/logger"
	"github.com/jwalitptl/checkin-kiosk/pkg/metrics"
)

type Service struct {
	repo    repository.WaitTimeRepository
	log     *logger.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

func NewService(repo repository.WaitTimeRepository, log *logger.Logger, m *metrics.Metrics) *Service {
	return &Service{
		repo:    repo,
		log:     log,
		metrics: m,
		now:     time.Now,
	}
}

// SetClock replaces time.Now.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// Average returns the doctor's historic mean wait in minutes, 0 before the
// first sample.
func (s *Service) Average(ctx context.Context, doctor int64) (float64, error) {
	wt, err := s.repo.Get(ctx, doctor)
	if errors.Is(err, repository.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, apperrors.Internal(err)
	}
	return wt.Average(), nil
}

// Record folds one wait of the given minutes into the doctor's running
// statistic and returns the updated row.
func (s *Service) Record(ctx context.Context, doctor, minutes int64) (*model.WaitTime, error) {
	if minutes < 0 {
		minutes = 0
	}
	wt, err := s.repo.Record(ctx, doctor, minutes)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	return wt, nil
}

// StartAppointment moves a checked-in appointment into session. The time since
// the appointment was last updated, normally its check-in, counts as the
// patient's wait.
func (s *Service) StartAppointment(ctx context.Context, records emr.RecordService, doctor, appointmentID int64) (*model.StartAppointmentResult, error) {
	appt, err := records.GetAppointment(ctx, appointmentID)
	if err != nil {
		return nil, fmt.Errorf("failed to get appointment %d: %w", appointmentID, err)
	}
	if appt.Doctor != doctor {
		return nil, apperrors.NotFound("appointment", nil)
	}
	// A started, finished or cancelled appointment must not add a second sample.
	if !appt.Actionable() {
		return nil, apperrors.BadRequest("appointment is not waiting to start", nil)
	}

	waited := MinutesBetween(appt.UpdatedAt, s.now())

	wt, err := s.Record(ctx, doctor, waited)
	if err != nil {
		return nil, err
	}

	if err := records.PatchAppointmentStatus(ctx, appointmentID, model.AppointmentStatusInSession); err != nil {
		return nil, fmt.Errorf("failed to start appointment %d: %w", appointmentID, err)
	}

	s.metrics.Started(waited)
	logger.FromContext(ctx, s.log).Info("appointment started",
		"doctor_id", doctor,
		"appointment_id", appointmentID,
		"minutes_waited", waited,
	)

	return &model.StartAppointmentResult{
		AppointmentID:      appointmentID,
		MinutesWaited:      waited,
		AverageWaitMinutes: wt.Average(),
	}, nil
}

// MinutesBetween returns the whole minutes from since to now, rounded down.
// Clock skew that puts since in the future yields 0.
func MinutesBetween(since, now time.Time) int64 {
	d := now.Sub(since)
	if d < 0 {
		return 0
	}
	return int64(d / time.Minute)
}
