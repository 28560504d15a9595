package router

import (
	"fmt"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/jwalitptl/checkin-kiosk/internal/handler/checkin"
	"github.com/jwalitptl/checkin-kiosk/internal/middleware"
	"github.com/jwalitptl/checkin-kiosk/pkg/logger"
)

const loginPath = "/login"

type Handler interface {
	RegisterRoutes(*gin.RouterGroup)
}

type Authenticator interface {
	Authenticate() gin.HandlerFunc
}

// Handlers are the route groups of the kiosk. Health and Metrics are public,
// Auth serves the sign-in flow, everything else requires a signed-in doctor.
type Handlers struct {
	Health      Handler
	Metrics     gin.HandlerFunc
	Auth        Handler
	Dashboard   Handler
	Patient     Handler
	Appointment Handler
	Checkin     *checkin.Handler
}

type RouterConfig struct {
	Mode           string
	RequestTimeout time.Duration
	// RateLimit guards the check-in submission; nil disables it.
	RateLimit     *middleware.RateLimiterConfig
	CORSConfig    middleware.CORSConfig
	MetricsPrefix string
	MetricsPath   string
	Registerer    prometheus.Registerer
	// Logger is handed to services through the request context.
	Logger *logger.Logger
}

type Router struct {
	engine   *gin.Engine
	auth     Authenticator
	handlers Handlers
	config   RouterConfig
	metrics  *routerMetrics
}

type routerMetrics struct {
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	errorTotal      *prometheus.CounterVec
}

func NewRouter(auth Authenticator, handlers Handlers, config RouterConfig) (*Router, error) {
	if config.Mode != "" {
		gin.SetMode(config.Mode)
	}
	if config.MetricsPath == "" {
		config.MetricsPath = "/metrics"
	}
	if config.Logger == nil {
		config.Logger = logger.Nop()
	}

	metrics := initRouterMetrics(config.MetricsPrefix)
	if config.Registerer != nil {
		if err := metrics.register(config.Registerer); err != nil {
			return nil, fmt.Errorf("failed to register router metrics: %w", err)
		}
	}

	r := &Router{
		engine:   gin.New(),
		auth:     auth,
		handlers: handlers,
		config:   config,
		metrics:  metrics,
	}

	r.engine.Use(
		middleware.Recovery(),
		middleware.RequestID(),
		middleware.ContextLogger(config.Logger),
		middleware.Logger(),
		r.metricsMiddleware(),
		middleware.SecurityHeaders(middleware.DefaultSecurityConfig()),
		middleware.CORS(config.CORSConfig),
		middleware.SizeLimit(middleware.DefaultSizeLimitConfig()),
		middleware.ErrorHandler(loginPath),
		middleware.Timeout(middleware.TimeoutConfig{Duration: config.RequestTimeout}),
	)

	return r, nil
}

func (r *Router) Setup() {
	root := &r.engine.RouterGroup

	if r.handlers.Health != nil {
		r.handlers.Health.RegisterRoutes(root)
	}
	if r.handlers.Metrics != nil {
		root.GET(r.config.MetricsPath, r.handlers.Metrics)
	}

	r.handlers.Auth.RegisterRoutes(root)

	protected := root.Group("")
	protected.Use(
		r.auth.Authenticate(),
		middleware.Cache(middleware.NoStoreCacheConfig()),
	)
	r.handlers.Dashboard.RegisterRoutes(protected)
	r.handlers.Patient.RegisterRoutes(protected)
	r.handlers.Appointment.RegisterRoutes(protected)

	var submit []gin.HandlerFunc
	if r.config.RateLimit != nil {
		submit = append(submit, middleware.NewRateLimiter(*r.config.RateLimit).RateLimit())
	}
	r.handlers.Checkin.RegisterRoutes(protected, submit...)
}

func (r *Router) Engine() *gin.Engine {
	return r.engine
}

func initRouterMetrics(prefix string) *routerMetrics {
	if prefix == "" {
		prefix = "http"
	}
	return &routerMetrics{
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name: prefix + "_request_duration_seconds",
				Help: "Duration of HTTP requests in seconds",
			},
			[]string{"method", "path", "status"},
		),
		requestTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: prefix + "_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		errorTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: prefix + "_errors_total",
				Help: "Total number of HTTP errors",
			},
			[]string{"method", "path", "type"},
		),
	}
}

func (m *routerMetrics) register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{m.requestDuration, m.requestTotal, m.errorTotal} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

func (r *Router) metricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		// Unmatched paths share one label so scanners cannot blow up cardinality.
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		status := strconv.Itoa(c.Writer.Status())
		duration := time.Since(start).Seconds()

		r.metrics.requestDuration.WithLabelValues(c.Request.Method, path, status).Observe(duration)
		r.metrics.requestTotal.WithLabelValues(c.Request.Method, path, status).Inc()

		if c.Writer.Status() >= 400 {
			errType := "client"
			if c.Writer.Status() >= 500 {
				errType = "server"
			}
			r.metrics.errorTotal.WithLabelValues(c.Request.Method, path, errType).Inc()
		}
	}
}
