package server

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/hlog"
	"github.com/rs/zerolog/log"

	"clinicbook/internal/handlers"
	"clinicbook/internal/middlewares"
)

func (s *Server) RegisterRoutes() http.Handler {
	r := mux.NewRouter()

	r.Use(hlog.NewHandler(log.Logger))
	r.Use(hlog.RequestIDHandler("req_id", "X-Request-Id"))
	r.Use(hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		hlog.FromRequest(r).Info().
			Str("method", r.Method).
			Stringer("url", r.URL).
			Int("status", status).
			Int("size", size).
			Dur("duration", duration).
			Msg("request")
	}))
	r.Use(middlewares.Cors(s.origins))
	r.Use(s.metrics.Instrument)
	r.Use(s.limiter.Limit)

	ch := handlers.NewCommonHandler(s.db, s.clinicName)
	r.HandleFunc("/", ch.HelloWorldHandler).Methods("GET")
	r.HandleFunc("/api/health", ch.HealthHandler).Methods("GET")
	r.Handle("/metrics", promhttp.Handler()).Methods("GET")

	s.registerAuthRoutes(r)
	s.registerAppointmentRoutes(r)
	s.registerAdminRoutes(r)

	return r
}

func (s *Server) authenticated(h http.HandlerFunc) http.Handler {
	return middlewares.Authenticate(s.authService)(h)
}

func (s *Server) adminOnly(h http.HandlerFunc) http.Handler {
	return middlewares.Authenticate(s.authService)(middlewares.RequireAdmin(h))
}

func (s *Server) registerAuthRoutes(r *mux.Router) {
	ah := handlers.NewAuthHandler(s.authService, s.otpService)

	r.HandleFunc("/api/auth/send-otp", ah.SendOTP).Methods("POST", "OPTIONS")
	r.HandleFunc("/api/auth/verify-otp", ah.VerifyOTP).Methods("POST", "OPTIONS")
	r.HandleFunc("/api/auth/login", ah.Login).Methods("POST", "OPTIONS")
	r.HandleFunc("/api/auth/forgot-password", ah.ForgotPassword).Methods("POST", "OPTIONS")
	r.HandleFunc("/api/auth/reset-password", ah.ResetPassword).Methods("POST", "OPTIONS")
	r.Handle("/api/auth/me", s.authenticated(ah.Me)).Methods("GET", "OPTIONS")
}

func (s *Server) registerAppointmentRoutes(r *mux.Router) {
	aph := handlers.NewAppointmentHandler(s.appointmentService)

	r.HandleFunc("/api/appointments/slots/{date}", aph.GetSlots).Methods("GET", "OPTIONS")
	r.Handle("/api/appointments/book", s.authenticated(aph.Book)).Methods("POST", "OPTIONS")
	r.Handle("/api/appointments/my-appointments", s.authenticated(aph.MyAppointments)).Methods("GET", "OPTIONS")
	r.Handle("/api/appointments/{id}", s.authenticated(aph.Cancel)).Methods("DELETE", "OPTIONS")
}

func (s *Server) registerAdminRoutes(r *mux.Router) {
	adh := handlers.NewAdminHandler(s.adminService)

	r.Handle("/api/admin/appointments", s.adminOnly(adh.ListAppointments)).Methods("GET", "OPTIONS")
	r.Handle("/api/admin/appointments/{id}", s.adminOnly(adh.UpdateAppointment)).Methods("PATCH", "PUT", "OPTIONS")
	r.Handle("/api/admin/users", s.adminOnly(adh.ListUsers)).Methods("GET", "OPTIONS")
	r.Handle("/api/admin/users/{id}/block", s.adminOnly(adh.SetUserBlocked)).Methods("PATCH", "PUT", "OPTIONS")
	r.Handle("/api/admin/stats", s.adminOnly(adh.Stats)).Methods("GET", "OPTIONS")
}
