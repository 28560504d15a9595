package patient

import (
	"context"
	"fmt"

	"github.com/jwalitptl/checkin-kiosk/internal/emr"
	"github.com/jwalitptl/checkin-kiosk/internal/model"
	"github.com/jwalitptl/checkin-kiosk/pkg/logger"
)

type Service struct {
	log *logger.Logger
}

func NewService(log *logger.Logger) *Service {
	return &Service{log: log}
}

func (s *Service) GetPatient(ctx context.Context, records emr.RecordService, id int64) (*model.PatientView, error) {
	p, err := records.GetPatient(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get patient %d: %w", id, err)
	}
	view := p.View()
	return &view, nil
}

// UpdateDemographics overwrites the editable fields of a patient. The upstream
// only supports full replacement, so the current record is fetched first and
// everything else, including the secret identifier, is written back unchanged.
func (s *Service) UpdateDemographics(ctx context.Context, records emr.RecordService, req model.UpdatePatientRequest) (*model.PatientView, error) {
	p, err := records.GetPatient(ctx, req.PatientID)
	if err != nil {
		return nil, fmt.Errorf("failed to get patient %d: %w", req.PatientID, err)
	}

	p.PatientDemographics = req.PatientDemographics
	if err := records.ReplacePatient(ctx, req.PatientID, p); err != nil {
		return nil, fmt.Errorf("failed to update patient %d: %w", req.PatientID, err)
	}

	logger.FromContext(ctx, s.log).Info("patient demographics updated", "patient_id", req.PatientID)

	view := p.View()
	return &view, nil
}
