package checkin

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/checkin-kiosk/internal/emr"
	"github.com/jwalitptl/checkin-kiosk/internal/handler"
	"github.com/jwalitptl/checkin-kiosk/internal/middleware"
	"github.com/jwalitptl/checkin-kiosk/internal/model"
	apperrors "github.com/jwalitptl/checkin-kiosk/pkg/errors"
)

type Service interface {
	CheckIn(ctx context.Context, records emr.RecordService, doctor int64, req model.CheckinRequest) (*model.CheckinResult, error)
}

// Field describes one input of the kiosk form.
type Field struct {
	Name     string `json:"name"`
	Label    string `json:"label"`
	Type     string `json:"type"`
	Required bool   `json:"required"`
}

// Form is what the kiosk renders before a patient checks in.
type Form struct {
	Action string  `json:"action"`
	Method string  `json:"method"`
	Fields []Field `json:"fields"`
}

var checkinForm = Form{
	Action: "/handle_checkin",
	Method: http.MethodPost,
	Fields: []Field{
		{Name: "patient-first-name", Label: "First name", Type: "text", Required: true},
		{Name: "patient-last-name", Label: "Last name", Type: "text", Required: true},
		{Name: "patient-social-security-number", Label: "Social security number", Type: "password", Required: true},
	},
}

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes mounts the kiosk form. submit runs in front of the check-in
// itself, typically a rate limiter.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup, submit ...gin.HandlerFunc) {
	r.GET("/checkin", h.Form)
	r.POST("/handle_checkin", append(submit, h.CheckIn)...)
}

func (h *Handler) Form(c *gin.Context) {
	c.JSON(http.StatusOK, handler.NewSuccessResponse(checkinForm))
}

// CheckIn marks every actionable appointment of today as Arrived for the
// patient matching the submitted identity.
func (h *Handler) CheckIn(c *gin.Context) {
	var req model.CheckinRequest
	if err := c.ShouldBind(&req); err != nil {
		_ = c.Error(apperrors.BadRequest("invalid check-in form", err))
		return
	}

	result, err := h.service.CheckIn(c.Request.Context(), middleware.Records(c), middleware.DoctorID(c), req)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(result))
}
