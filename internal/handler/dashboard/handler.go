package dashboard

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/checkin-kiosk/internal/emr"
	"github.com/jwalitptl/checkin-kiosk/internal/handler"
	"github.com/jwalitptl/checkin-kiosk/internal/middleware"
	"github.com/jwalitptl/checkin-kiosk/internal/model"
)

type Presenter interface {
	Dashboard(ctx context.Context, records emr.RecordService, doctor int64) (*model.DashboardView, error)
}

type Handler struct {
	presenter Presenter
}

func NewHandler(presenter Presenter) *Handler {
	return &Handler{presenter: presenter}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/dashboard", h.Dashboard)
}

func (h *Handler) Dashboard(c *gin.Context) {
	view, err := h.presenter.Dashboard(c.Request.Context(), middleware.Records(c), middleware.DoctorID(c))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(view))
}
