package appointment

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jwalitptl/checkin-kiosk/internal/emr"
	"github.com/jwalitptl/checkin-kiosk/internal/model"
	"github.com/jwalitptl/checkin-kiosk/pkg/logger"
)

const DefaultConcurrency = 4

type Service struct {
	log         *logger.Logger
	now         func() time.Time
	concurrency int
}

// Option customizes a Service.
type Option func(*Service)

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithConcurrency bounds the number of patient lookups running at once.
func WithConcurrency(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

func NewService(log *logger.Logger, opts ...Option) *Service {
	s := &Service{
		log:         log,
		now:         time.Now,
		concurrency: DefaultConcurrency,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// TodaysActionable lists the doctor's appointments for today that still need
// attention, merged with their patient's name, split into checked-in and
// upcoming. Any upstream failure aborts the whole call.
func (s *Service) TodaysActionable(ctx context.Context, records emr.RecordService, doctor int64) (*model.DayAppointments, error) {
	filter := model.AppointmentFilter{Doctor: doctor, Date: s.now()}

	var pending []model.Appointment
	for appt, err := range records.ListAppointments(ctx, filter) {
		if err != nil {
			return nil, fmt.Errorf("failed to list appointments: %w", err)
		}
		if appt.Patient == nil || !appt.Actionable() {
			continue
		}
		pending = append(pending, appt)
	}

	enriched := make([]model.EnrichedAppointment, len(pending))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, appt := range pending {
		g.Go(func() error {
			patient, err := records.GetPatient(gctx, *appt.Patient)
			if err != nil {
				return fmt.Errorf("failed to get patient %d of appointment %d: %w", *appt.Patient, appt.ID, err)
			}
			enriched[i] = enrich(appt, patient)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	day := &model.DayAppointments{
		CheckedIn: []model.EnrichedAppointment{},
		Upcoming:  []model.EnrichedAppointment{},
	}
	for _, e := range enriched {
		if e.Status == model.AppointmentStatusArrived {
			day.CheckedIn = append(day.CheckedIn, e)
		} else {
			day.Upcoming = append(day.Upcoming, e)
		}
	}

	logger.FromContext(ctx, s.log).Debug("aggregated appointments",
		"doctor_id", doctor,
		"checked_in", len(day.CheckedIn),
		"upcoming", len(day.Upcoming),
	)
	return day, nil
}

func enrich(appt model.Appointment, patient *model.Patient) model.EnrichedAppointment {
	return model.EnrichedAppointment{
		ID:            appt.ID,
		PatientID:     *appt.Patient,
		ScheduledTime: appt.ScheduledTime,
		Status:        appt.Status,
		UpdatedAt:     appt.UpdatedAt,
		FirstName:     patient.FirstName,
		LastName:      patient.LastName,
	}
}
