package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"

	"github.com/jwalitptl/checkin-kiosk/internal/config"
	"github.com/jwalitptl/checkin-kiosk/internal/emr/drchrono"
	appointmentHandler "github.com/jwalitptl/checkin-kiosk/internal/handler/appointment"
	authHandler "github.com/jwalitptl/checkin-kiosk/internal/handler/auth"
	checkinHandler "github.com/jwalitptl/checkin-kiosk/internal/handler/checkin"
	dashboardHandler "github.com/jwalitptl/checkin-kiosk/internal/handler/dashboard"
	"github.com/jwalitptl/checkin-kiosk/internal/handler/health"
	patientHandler "github.com/jwalitptl/checkin-kiosk/internal/handler/patient"
	promHandler "github.com/jwalitptl/checkin-kiosk/internal/handler/prometheus"
	"github.com/jwalitptl/checkin-kiosk/internal/middleware"
	"github.com/jwalitptl/checkin-kiosk/internal/repository/postgres"
	redisrepo "github.com/jwalitptl/checkin-kiosk/internal/repository/redis"
	"github.com/jwalitptl/checkin-kiosk/internal/router"
	appointmentService "github.com/jwalitptl/checkin-kiosk/internal/service/appointment"
	authService "github.com/jwalitptl/checkin-kiosk/internal/service/auth"
	checkinService "github.com/jwalitptl/checkin-kiosk/internal/service/checkin"
	dashboardService "github.com/jwalitptl/checkin-kiosk/internal/service/dashboard"
	patientService "github.com/jwalitptl/checkin-kiosk/internal/service/patient"
	waittimeService "github.com/jwalitptl/checkin-kiosk/internal/service/waittime"
	pkgauth "github.com/jwalitptl/checkin-kiosk/pkg/auth"
	"github.com/jwalitptl/checkin-kiosk/pkg/logger"
	"github.com/jwalitptl/checkin-kiosk/pkg/metrics"
	"github.com/jwalitptl/checkin-kiosk/pkg/security"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	appLogger := logger.NewLogger(&logger.Config{
		Level:      logger.ParseLevel(cfg.Log.Level),
		TimeFormat: time.RFC3339,
		Output:     os.Stdout,
		Format:     cfg.Log.Format,
	})
	log.Logger = *appLogger.Zerolog()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Metrics
	prom := promHandler.New()
	appMetrics := metrics.New("checkin_kiosk")
	if err := appMetrics.Register(prom.Registry()); err != nil {
		log.Fatal().Err(err).Msg("failed to register metrics")
	}

	// Initialize database
	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	rdb, err := redisrepo.NewClient(ctx, redisrepo.Config{
		URL:          cfg.Redis.URL,
		MaxRetries:   cfg.Redis.MaxRetries,
		RetryBackoff: cfg.Redis.RetryBackoff,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to Redis")
	}
	defer rdb.Close()

	encryptor, err := security.NewAESEncryptorFromString(cfg.Session.EncryptionKey)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid session.encryption_key")
	}
	signer, err := pkgauth.NewSessionSigner(cfg.Session.Secret, "checkin-kiosk", cfg.Session.TTL)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid session settings")
	}

	// Initialize repositories
	base := postgres.NewBaseRepository(db, appMetrics)
	waitTimeRepo := postgres.NewWaitTimeRepository(base)
	credentialRepo := postgres.NewCredentialRepository(base, encryptor)
	sessionRepo := redisrepo.NewSessionRepository(rdb, appLogger.Zerolog())

	// Clinical API
	records, err := drchrono.New(drchrono.Config{
		BaseURL:  cfg.DrChrono.BaseURL,
		Timeout:  cfg.DrChrono.Timeout,
		Location: cfg.DrChrono.Location(),
	}, appMetrics)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create clinical API client")
	}
	oauthConfig := &oauth2.Config{
		ClientID:     cfg.OAuth.ClientID,
		ClientSecret: cfg.OAuth.ClientSecret,
		RedirectURL:  cfg.OAuth.RedirectURL,
		Scopes:       cfg.OAuth.Scopes,
		Endpoint:     drchrono.Endpoint(cfg.DrChrono.BaseURL),
	}

	// Initialize services
	authSvc := authService.NewService(oauthConfig, records, credentialRepo, appLogger, appMetrics)
	sessions := authService.NewSessions(sessionRepo, signer)
	appointmentSvc := appointmentService.NewService(appLogger, appointmentService.WithConcurrency(cfg.DrChrono.Concurrency))
	waitTimeSvc := waittimeService.NewService(waitTimeRepo, appLogger, appMetrics)
	dashboardSvc := dashboardService.NewService(appointmentSvc, waitTimeSvc)
	checkinSvc := checkinService.NewService(appLogger, appMetrics)
	patientSvc := patientService.NewService(appLogger)

	// Initialize middleware
	if err := middleware.RegisterValidators(); err != nil {
		log.Fatal().Err(err).Msg("failed to register validators")
	}
	authMiddleware := middleware.NewAuthMiddleware(sessions, authSvc, records, cfg.Session.CookieName)

	handlers := router.Handlers{
		Health: health.NewHandler(map[string]health.Pinger{
			"database": db,
			"redis":    health.PingerFunc(func(ctx context.Context) error { return rdb.Ping(ctx).Err() }),
		}),
		Auth: authHandler.NewHandler(authSvc, sessions, authHandler.CookieConfig{
			Name:   cfg.Session.CookieName,
			Secure: cfg.Session.SecureCookie,
		}),
		Dashboard:   dashboardHandler.NewHandler(dashboardSvc),
		Patient:     patientHandler.NewHandler(patientSvc),
		Appointment: appointmentHandler.NewHandler(waitTimeSvc),
		Checkin:     checkinHandler.NewHandler(checkinSvc),
	}
	if cfg.Monitoring.PrometheusEnabled {
		handlers.Metrics = prom.Handler()
	}

	routerConfig := router.RouterConfig{
		Mode:           cfg.Server.Mode,
		RequestTimeout: cfg.Server.RequestTimeout,
		CORSConfig:     middleware.DefaultCORSConfig(cfg.Security.AllowedOrigins),
		MetricsPrefix:  "checkin_kiosk_http",
		MetricsPath:    cfg.Monitoring.MetricsPath,
		Registerer:     prom.Registry(),
		Logger:         appLogger,
	}
	if cfg.RateLimit.Enabled {
		routerConfig.RateLimit = &middleware.RateLimiterConfig{
			Rate:  rate.Limit(cfg.RateLimit.RequestsPerSecond),
			Burst: cfg.RateLimit.Burst,
		}
	}

	// Setup router
	r, err := router.NewRouter(authMiddleware, handlers, routerConfig)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create router")
	}
	r.Setup()

	// Create server
	srv := &http.Server{
		Addr:           fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:        r.Engine(),
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		MaxHeaderBytes: cfg.Server.MaxHeaderBytes,
	}

	// Start server
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	<-ctx.Done()
	log.Info().Msg("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server exited properly")
}
