package appointment

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/checkin-kiosk/internal/emr"
	"github.com/jwalitptl/checkin-kiosk/internal/handler"
	"github.com/jwalitptl/checkin-kiosk/internal/middleware"
	"github.com/jwalitptl/checkin-kiosk/internal/model"
)

type Starter interface {
	StartAppointment(ctx context.Context, records emr.RecordService, doctor, appointmentID int64) (*model.StartAppointmentResult, error)
}

type Handler struct {
	starter Starter
}

func NewHandler(starter Starter) *Handler {
	return &Handler{starter: starter}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/appointment/:id/start", h.Start)
}

// Start records how long the patient waited and moves the appointment to
// In Session, then returns the doctor to the dashboard.
func (h *Handler) Start(c *gin.Context) {
	id, err := handler.ParamID(c, "id")
	if err != nil {
		_ = c.Error(err)
		return
	}

	if _, err := h.starter.StartAppointment(c.Request.Context(), middleware.Records(c), middleware.DoctorID(c), id); err != nil {
		_ = c.Error(err)
		return
	}
	c.Redirect(http.StatusSeeOther, "/dashboard")
}
