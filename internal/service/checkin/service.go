package checkin

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jwalitptl/checkin-kiosk/internal/emr"
	"github.com/jwalitptl/checkin-kiosk/internal/model"
	apperrors "github.com/jwalitptl/checkin-kiosk/pkg/errors"
	"github.com/jwalitptl/checkin-kiosk/pkg/logger"
	"github.com/jwalitptl/checkin-kiosk/pkg/metrics"
)

type Service struct {
	log     *logger.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

func NewService(log *logger.Logger, m *metrics.Metrics) *Service {
	return &Service{
		log:     log,
		metrics: m,
		now:     time.Now,
	}
}

// SetClock replaces time.Now.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// CheckIn finds the patient matching the claimed identity and marks every
// actionable appointment they have with the doctor today as arrived.
//
// The upstream search is loose, so names are compared again here
// case-insensitively and the secret identifier exactly. The first match in
// listing order wins.
func (s *Service) CheckIn(ctx context.Context, records emr.RecordService, doctor int64, req model.CheckinRequest) (*model.CheckinResult, error) {
	patient, err := s.Match(ctx, records, req)
	if err != nil {
		return nil, err
	}
	if patient == nil {
		s.metrics.Checkin("not_found")
		logger.FromContext(ctx, s.log).Info("check-in did not match a patient", "doctor_id", doctor)
		return nil, apperrors.NotFound("patient", nil)
	}

	n, err := s.CheckInToday(ctx, records, doctor, patient.ID)
	if err != nil {
		s.metrics.Checkin("error")
		return nil, err
	}

	s.metrics.Checkin("matched")
	logger.FromContext(ctx, s.log).Info("patient checked in",
		"doctor_id", doctor,
		"patient_id", patient.ID,
		"appointments", n,
	)

	return &model.CheckinResult{
		Patient:               patient.View(),
		AppointmentsCheckedIn: n,
	}, nil
}

// Match returns the first patient whose names equal the request ignoring case
// and whose secret identifier is identical, or nil when none does. Pages past
// the match are not fetched.
func (s *Service) Match(ctx context.Context, records emr.RecordService, req model.CheckinRequest) (*model.Patient, error) {
	filter := model.PatientFilter{FirstName: req.FirstName, LastName: req.LastName}
	for p, err := range records.ListPatients(ctx, filter) {
		if err != nil {
			return nil, fmt.Errorf("failed to search patients: %w", err)
		}
		if matches(p, req) {
			matched := p
			return &matched, nil
		}
	}
	return nil, nil
}

func matches(p model.Patient, req model.CheckinRequest) bool {
	return strings.ToLower(p.FirstName) == strings.ToLower(req.FirstName) &&
		strings.ToLower(p.LastName) == strings.ToLower(req.LastName) &&
		p.SocialSecurityNumber == req.SecretID
}

// CheckInToday sets every actionable appointment of the patient with the
// doctor today to Arrived and returns how many were changed. It stops at the
// first failed update; earlier updates stay applied.
func (s *Service) CheckInToday(ctx context.Context, records emr.RecordService, doctor, patientID int64) (int, error) {
	filter := model.AppointmentFilter{Doctor: doctor, Date: s.now(), Patient: patientID}

	var eligible []model.Appointment
	for appt, err := range records.ListAppointments(ctx, filter) {
		if err != nil {
			return 0, fmt.Errorf("failed to list appointments: %w", err)
		}
		if appt.Actionable() {
			eligible = append(eligible, appt)
		}
	}

	checkedIn := 0
	for _, appt := range eligible {
		if err := records.PatchAppointmentStatus(ctx, appt.ID, model.AppointmentStatusArrived); err != nil {
			s.metrics.CheckedIn(checkedIn)
			logger.FromContext(ctx, s.log).Error(err, "failed to check in appointment",
				"doctor_id", doctor,
				"appointment_id", appt.ID,
				"already_checked_in", checkedIn,
			)
			return checkedIn, fmt.Errorf("failed to check in appointment %d: %w", appt.ID, err)
		}
		checkedIn++
	}

	s.metrics.CheckedIn(checkedIn)
	return checkedIn, nil
}
