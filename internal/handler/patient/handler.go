package patient

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/checkin-kiosk/internal/emr"
	"github.com/jwalitptl/checkin-kiosk/internal/handler"
	"github.com/jwalitptl/checkin-kiosk/internal/middleware"
	"github.com/jwalitptl/checkin-kiosk/internal/model"
	apperrors "github.com/jwalitptl/checkin-kiosk/pkg/errors"
)

type Service interface {
	GetPatient(ctx context.Context, records emr.RecordService, id int64) (*model.PatientView, error)
	UpdateDemographics(ctx context.Context, records emr.RecordService, req model.UpdatePatientRequest) (*model.PatientView, error)
}

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	patients := r.Group("/patient")
	{
		patients.GET("/:id", h.GetPatient)
		patients.POST("/update", h.UpdatePatient)
	}
}

func (h *Handler) GetPatient(c *gin.Context) {
	id, err := handler.ParamID(c, "id")
	if err != nil {
		_ = c.Error(err)
		return
	}

	patient, err := h.service.GetPatient(c.Request.Context(), middleware.Records(c), id)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(patient))
}

// UpdatePatient saves the reviewed demographics and hands the kiosk back to
// the check-in form for the next patient.
func (h *Handler) UpdatePatient(c *gin.Context) {
	var req model.UpdatePatientRequest
	if err := c.ShouldBind(&req); err != nil {
		_ = c.Error(apperrors.BadRequest("invalid patient form", err))
		return
	}

	if _, err := h.service.UpdateDemographics(c.Request.Context(), middleware.Records(c), req); err != nil {
		_ = c.Error(err)
		return
	}

	log.Info().Int64("patient_id", req.PatientID).Msg("Patient demographics updated")
	c.Redirect(http.StatusSeeOther, "/checkin")
}
