package server

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"clinicbook/internal/cache"
	"clinicbook/internal/clinic"
	"clinicbook/internal/config"
	"clinicbook/internal/database"
	"clinicbook/internal/middlewares"
	"clinicbook/internal/notify"
	"clinicbook/internal/repositories"
	"clinicbook/internal/services"
)

type Server struct {
	port       int
	clinicName string
	origins    []string
	httpServer *http.Server
	db         database.Service

	authService        services.AuthService
	otpService         services.OTPService
	appointmentService services.AppointmentService
	adminService       services.AdminService

	limiter     *middlewares.RateLimiter
	metrics     *middlewares.PrometheusMiddleware
	stopLimiter context.CancelFunc
}

// NewServer wires repositories and services over the given infrastructure.
func NewServer(cfg *config.Config, db database.Service, cooldown cache.Cooldown, notifier notify.Notifier) *Server {
	port, err := strconv.Atoi(cfg.Port)
	if err != nil {
		log.Warn().Err(err).Str("port", cfg.Port).Msg("Invalid PORT, using 8080")
		port = 8080
	}

	calendar := clinic.NewCalendar(cfg.Location(), cfg.ClinicClosedWeekday, time.Now)

	userRepo := repositories.NewUserRepository(db, cfg.DBTimeout)
	otpRepo := repositories.NewOTPRepository(db, cfg.DBTimeout)
	apptRepo := repositories.NewAppointmentRepository(db, cfg.DBTimeout)

	otpService := services.NewOTPService(userRepo, otpRepo, notifier, cooldown, calendar, services.OTPConfig{
		MaxPerDay: cfg.MaxOTPPerDay,
		Validity:  cfg.OTPValidity,
	})

	s := &Server{
		port:       port,
		clinicName: cfg.ClinicName,
		origins:    cfg.AllowedOrigins,
		db:         db,
		otpService: otpService,
		authService: services.NewAuthService(userRepo, otpService, services.AuthConfig{
			JWTSecret:  []byte(cfg.JWTSecret),
			SessionTTL: cfg.SessionTTL,
			AdminPhone: cfg.AdminPhone,
		}),
		appointmentService: services.NewAppointmentService(apptRepo, userRepo, notifier, calendar),
		adminService:       services.NewAdminService(apptRepo, userRepo, notifier, calendar),
		limiter:            middlewares.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst),
		metrics:            middlewares.NewPrometheusMiddleware(nil),
	}

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.port),
		Handler:      s.RegisterRoutes(),
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	return s
}

func (s *Server) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.stopLimiter = cancel
	go s.limiter.Run(ctx)

	log.Info().Int("port", s.port).Msg("Starting server")
	return s.httpServer.ListenAndServe()
}

func (s *Server) GracefulShutdown(done chan bool) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()

	log.Info().Msg("Shutting down gracefully, press Ctrl+C again to force")
	stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown with error")
	}
	if s.stopLimiter != nil {
		s.stopLimiter()
	}
	if s.db != nil {
		if err := s.db.Close(ctx); err != nil {
			log.Error().Err(err).Msg("Failed to disconnect from MongoDB")
		}
	}

	log.Info().Msg("Server exiting")
	done <- true
}
