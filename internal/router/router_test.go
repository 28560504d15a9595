package router

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/checkin-kiosk/internal/emr"
	"github.com/jwalitptl/checkin-kiosk/internal/emr/emrtest"
	"github.com/jwalitptl/checkin-kiosk/internal/handler/checkin"
	"github.com/jwalitptl/checkin-kiosk/internal/handler/dashboard"
	"github.com/jwalitptl/checkin-kiosk/internal/handler/health"
	"github.com/jwalitptl/checkin-kiosk/internal/middleware"
	"github.com/jwalitptl/checkin-kiosk/internal/model"
	checkinsvc "github.com/jwalitptl/checkin-kiosk/internal/service/checkin"
	apperrors "github.com/jwalitptl/checkin-kiosk/pkg/errors"
	"github.com/jwalitptl/checkin-kiosk/pkg/logger"
)

// cookieAuth lets requests carrying a "doctor" cookie through as doctor 7.
type cookieAuth struct {
	records *emrtest.Records
}

func (a cookieAuth) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, err := c.Cookie("doctor"); err != nil {
			_ = c.Error(apperrors.ErrUnauthenticated)
			c.Abort()
			return
		}
		c.Set(middleware.ContextDoctorID, int64(7))
		c.Set(middleware.ContextRecords, a.records)
		c.Next()
	}
}

type noRoutes struct{}

func (noRoutes) RegisterRoutes(*gin.RouterGroup) {}

type dashboardView struct{}

func (dashboardView) Dashboard(ctx context.Context, records emr.RecordService, doctor int64) (*model.DashboardView, error) {
	return &model.DashboardView{Doctor: doctor}, nil
}

func newRouter(t *testing.T) (*gin.Engine, *prometheus.Registry) {
	t.Helper()
	require.NoError(t, middleware.RegisterValidators())

	reg := prometheus.NewRegistry()
	r, err := NewRouter(cookieAuth{records: &emrtest.Records{}}, Handlers{
		Health:      health.NewHandler(nil),
		Metrics:     gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})),
		Auth:        noRoutes{},
		Dashboard:   dashboard.NewHandler(dashboardView{}),
		Patient:     noRoutes{},
		Appointment: noRoutes{},
		Checkin:     checkin.NewHandler(checkinsvc.NewService(logger.Nop(), nil)),
	}, RouterConfig{
		Mode:          gin.TestMode,
		RateLimit:     &middleware.RateLimiterConfig{Rate: 0, Burst: 1},
		CORSConfig:    middleware.DefaultCORSConfig(nil),
		MetricsPrefix: "kiosk_http",
		Registerer:    reg,
	})
	require.NoError(t, err)
	r.Setup()
	return r.Engine(), reg
}

func do(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestRouter_PublicAndProtected(t *testing.T) {
	engine, _ := newRouter(t)

	w := do(engine, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get(middleware.HeaderXRequestID))
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))

	w = do(engine, httptest.NewRequest(http.MethodGet, "/dashboard", nil))
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, loginPath, w.Header().Get("Location"))

	req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	req.AddCookie(&http.Cookie{Name: "doctor", Value: "1"})
	w = do(engine, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"doctor":7`)
	assert.Contains(t, w.Header().Get("Cache-Control"), "no-store")
}

func TestRouter_CheckinIsRateLimited(t *testing.T) {
	engine, _ := newRouter(t)

	submit := func() int {
		form := url.Values{
			"patient-first-name":             {"Ada"},
			"patient-last-name":              {"Lovelace"},
			"patient-social-security-number": {"123-45-6789"},
		}
		req := httptest.NewRequest(http.MethodPost, "/handle_checkin", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.AddCookie(&http.Cookie{Name: "doctor", Value: "1"})
		return do(engine, req).Code
	}

	assert.Equal(t, http.StatusNotFound, submit())
	assert.Equal(t, http.StatusTooManyRequests, submit())

	// The form itself is not limited.
	req := httptest.NewRequest(http.MethodGet, "/checkin", nil)
	req.AddCookie(&http.Cookie{Name: "doctor", Value: "1"})
	assert.Equal(t, http.StatusOK, do(engine, req).Code)
}

func TestRouter_Metrics(t *testing.T) {
	engine, _ := newRouter(t)

	do(engine, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	do(engine, httptest.NewRequest(http.MethodGet, "/wp-admin", nil))

	w := do(engine, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, `kiosk_http_requests_total{method="GET",path="/health/live",status="200"} 1`)
	assert.Contains(t, body, `kiosk_http_requests_total{method="GET",path="unmatched",status="404"} 1`)
	assert.Contains(t, body, `kiosk_http_errors_total{method="GET",path="unmatched",type="client"} 1`)
}

func TestNewRouter_DuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	cfg := RouterConfig{Mode: gin.TestMode, Registerer: reg}

	_, err := NewRouter(cookieAuth{}, Handlers{}, cfg)
	require.NoError(t, err)
	_, err = NewRouter(cookieAuth{}, Handlers{}, cfg)
	assert.Error(t, err)
}
