package services

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.opentelemetry.io/otel/attribute"

	"clinicbook/internal/apperrors"
	"clinicbook/internal/clinic"
	"clinicbook/internal/metrics"
	"clinicbook/internal/models"
	"clinicbook/internal/notify"
	"clinicbook/internal/repositories"
)

const MsgSlotBooked = "This slot is already booked"

type AppointmentService interface {
	GetSlots(ctx context.Context, date string) ([]models.Slot, error)
	Book(ctx context.Context, user *models.User, req models.BookingRequest) (*models.Appointment, error)
	ListMine(ctx context.Context, userID primitive.ObjectID) ([]models.Appointment, error)
	// Cancel is available to the owner and to admins; admin cancellations
	// notify the patient.
	Cancel(ctx context.Context, user *models.User, id primitive.ObjectID) (*models.Appointment, error)
}

type appointmentService struct {
	apptRepo repositories.AppointmentRepository
	userRepo repositories.UserRepository
	notifier notify.Notifier
	calendar *clinic.Calendar
}

func NewAppointmentService(apptRepo repositories.AppointmentRepository, userRepo repositories.UserRepository, notifier notify.Notifier, calendar *clinic.Calendar) AppointmentService {
	return &appointmentService{apptRepo: apptRepo, userRepo: userRepo, notifier: notifier, calendar: calendar}
}

func (s *appointmentService) parseDate(raw string) (time.Time, error) {
	d, err := s.calendar.ParseDate(raw)
	if err != nil {
		return time.Time{}, apperrors.Validation("Invalid date format. Use YYYY-MM-DD")
	}
	return d, nil
}

func (s *appointmentService) GetSlots(ctx context.Context, date string) ([]models.Slot, error) {
	day, err := s.parseDate(date)
	if err != nil {
		return nil, err
	}
	if s.calendar.IsClosed(day) {
		return []models.Slot{}, nil
	}

	booked, err := s.apptRepo.Find(ctx, models.AppointmentFilter{Date: &day, ActiveOnly: true})
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	taken := make(map[string]bool, len(booked))
	for _, a := range booked {
		taken[a.TimeSlot] = true
	}

	slots := make([]models.Slot, 0, len(clinic.Slots))
	for _, id := range clinic.Slots {
		slots = append(slots, models.Slot{Time: id, IsBooked: taken[id]})
	}
	return slots, nil
}

func (s *appointmentService) Book(ctx context.Context, user *models.User, req models.BookingRequest) (*models.Appointment, error) {
	ctx, span := tracer.Start(ctx, "appointment.book")
	defer span.End()

	if user.IsAdmin {
		return nil, apperrors.Forbidden("Admin cannot book appointments")
	}
	if user.IsBlocked {
		return nil, apperrors.Forbidden("Your account has been blocked")
	}
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	if !clinic.IsValidSlot(req.TimeSlot) {
		return nil, apperrors.Validation("Invalid time slot")
	}
	day, err := s.parseDate(req.Date)
	if err != nil {
		return nil, err
	}
	if s.calendar.IsPast(day) {
		return nil, apperrors.Validation("Cannot book appointments in the past")
	}
	if s.calendar.IsClosed(day) {
		return nil, apperrors.Validation("Clinic is closed on " + s.calendar.ClosedWeekday().String() + "s")
	}

	notifyPhone := user.Phone
	if req.Phone != "" {
		if notifyPhone, err = normalizePhone(req.Phone); err != nil {
			return nil, err
		}
	}
	span.SetAttributes(
		attribute.String("appointment.date", day.Format(clinic.DateLayout)),
		attribute.String("appointment.slot", req.TimeSlot),
	)

	taken, err := s.apptRepo.Count(ctx, models.AppointmentFilter{Date: &day, TimeSlot: req.TimeSlot, ActiveOnly: true})
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	if taken > 0 {
		metrics.BookingConflictsTotal.WithLabelValues("precheck").Inc()
		return nil, apperrors.Conflict(MsgSlotBooked)
	}

	appt, err := s.apptRepo.Create(ctx, &models.Appointment{
		UserID:   user.ID,
		Date:     day,
		TimeSlot: req.TimeSlot,
		Status:   models.StatusPending,
		PainType: req.PainType,
		Reason:   req.Reason,
	})
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			metrics.BookingConflictsTotal.WithLabelValues("index").Inc()
			return nil, apperrors.Conflict(MsgSlotBooked)
		}
		return nil, apperrors.Internal(err)
	}

	metrics.AppointmentsBookedTotal.Inc()
	log.Info().Str("appointment_id", appt.ID.Hex()).Str("user_id", user.ID.Hex()).
		Str("date", day.Format(clinic.DateLayout)).Str("slot", appt.TimeSlot).Msg("Appointment booked")

	s.notifier.SendBookingConfirmation(ctx, notifyPhone, appt.Date, appt.TimeSlot)
	return appt, nil
}

func (s *appointmentService) ListMine(ctx context.Context, userID primitive.ObjectID) ([]models.Appointment, error) {
	appts, err := s.apptRepo.Find(ctx, models.AppointmentFilter{UserID: &userID, NewestFirst: true})
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	sortAppointments(appts, true)
	return appts, nil
}

func (s *appointmentService) Cancel(ctx context.Context, user *models.User, id primitive.ObjectID) (*models.Appointment, error) {
	appt, err := s.apptRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperrors.NotFound(MsgAppointmentNotFound)
		}
		return nil, apperrors.Internal(err)
	}
	if appt.UserID != user.ID && !user.IsAdmin {
		return nil, apperrors.Forbidden("Not authorized to cancel this appointment")
	}

	cancelled, err := transitionAppointment(ctx, s.apptRepo, appt, models.StatusCancelled, nil)
	if err != nil {
		return nil, err
	}
	log.Info().Str("appointment_id", id.Hex()).Bool("by_admin", user.IsAdmin).Msg("Appointment cancelled")

	if user.IsAdmin && appt.UserID != user.ID {
		notifyOwner(ctx, s.userRepo, s.notifier, cancelled)
	}
	return cancelled, nil
}

// notifyOwner sends the message matching the appointment's new status to its owner.
func notifyOwner(ctx context.Context, userRepo repositories.UserRepository, notifier notify.Notifier, appt *models.Appointment) {
	owner, err := userRepo.FindByID(ctx, appt.UserID)
	if err != nil {
		log.Error().Err(err).Str("appointment_id", appt.ID.Hex()).Msg("Could not load appointment owner for notification")
		return
	}
	switch appt.Status {
	case models.StatusConfirmed:
		notifier.SendBookingConfirmation(ctx, owner.Phone, appt.Date, appt.TimeSlot)
	case models.StatusCancelled:
		notifier.SendCancellationNotice(ctx, owner.Phone)
	}
}
