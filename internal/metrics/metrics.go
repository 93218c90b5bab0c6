package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// User Activity Metrics
	NewUsersTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "app_new_users_total",
		Help: "Total number of new user registrations.",
	})
	LoginAttemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "app_login_attempts_total",
		Help: "Total number of login attempts (successful and failed).",
	}, []string{"status"}) // status: "success", "failed" or "blocked"
	PasswordResetsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "app_password_resets_total",
		Help: "Total number of completed password resets.",
	})

	// OTP Metrics
	OTPIssuedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "app_otp_issued_total",
		Help: "Total number of OTP codes issued.",
	}, []string{"purpose"})
	OTPRejectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "app_otp_rejected_total",
		Help: "Total number of OTP requests refused before issuing.",
	}, []string{"reason"}) // reason: "daily_cap" or "cooldown"
	OTPVerificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "app_otp_verifications_total",
		Help: "Total number of OTP verification attempts.",
	}, []string{"result"})

	// Appointment Metrics
	AppointmentsBookedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "app_appointments_booked_total",
		Help: "Total number of appointments booked.",
	})
	BookingConflictsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "app_booking_conflicts_total",
		Help: "Total number of bookings refused because the slot was taken.",
	}, []string{"stage"}) // stage: "precheck" or "index"
	AppointmentTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "app_appointment_transitions_total",
		Help: "Total number of appointment status changes.",
	}, []string{"to"})

	// Notification Metrics
	NotificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "app_notifications_total",
		Help: "Total number of SMS notifications attempted.",
	}, []string{"kind", "provider", "result"})
)
