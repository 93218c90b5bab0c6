package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.opentelemetry.io/otel/attribute"

	"clinicbook/internal/apperrors"
	"clinicbook/internal/clinic"
	"clinicbook/internal/models"
	"clinicbook/internal/notify"
	"clinicbook/internal/repositories"
)

type AdminService interface {
	ListAppointments(ctx context.Context, date string, status string) ([]models.AppointmentWithUser, error)
	UpdateAppointment(ctx context.Context, id primitive.ObjectID, update models.AppointmentUpdate) (*models.Appointment, error)
	ListUsers(ctx context.Context) ([]models.User, error)
	// SetUserBlocked cancels every active appointment of a user being blocked.
	SetUserBlocked(ctx context.Context, id primitive.ObjectID, blocked bool) (*models.User, error)
	Stats(ctx context.Context) (*models.DashboardStats, error)
}

type adminService struct {
	apptRepo repositories.AppointmentRepository
	userRepo repositories.UserRepository
	notifier notify.Notifier
	calendar *clinic.Calendar
}

func NewAdminService(apptRepo repositories.AppointmentRepository, userRepo repositories.UserRepository, notifier notify.Notifier, calendar *clinic.Calendar) AdminService {
	return &adminService{apptRepo: apptRepo, userRepo: userRepo, notifier: notifier, calendar: calendar}
}

func (s *adminService) ListAppointments(ctx context.Context, date string, status string) ([]models.AppointmentWithUser, error) {
	var filter models.AppointmentFilter
	if date != "" {
		day, err := s.calendar.ParseDate(date)
		if err != nil {
			return nil, apperrors.Validation("Invalid date format. Use YYYY-MM-DD")
		}
		filter.Date = &day
	}
	if status != "" {
		st := models.AppointmentStatus(status)
		if !st.Valid() {
			return nil, apperrors.Validation("Invalid status")
		}
		filter.Status = st
	}

	appts, err := s.apptRepo.Find(ctx, filter)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	sortAppointments(appts, false)

	ids := make([]primitive.ObjectID, 0, len(appts))
	seen := make(map[primitive.ObjectID]bool)
	for _, a := range appts {
		if !seen[a.UserID] {
			seen[a.UserID] = true
			ids = append(ids, a.UserID)
		}
	}
	users, err := s.userRepo.FindByIDs(ctx, ids)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	owners := make(map[primitive.ObjectID]*models.AppointmentOwner, len(users))
	for _, u := range users {
		owners[u.ID] = &models.AppointmentOwner{
			ID:        u.ID.Hex(),
			Name:      u.Name,
			Phone:     u.Phone,
			Email:     u.Email,
			IsBlocked: u.IsBlocked,
		}
	}

	out := make([]models.AppointmentWithUser, 0, len(appts))
	for _, a := range appts {
		out = append(out, models.AppointmentWithUser{Appointment: a, User: owners[a.UserID]})
	}
	return out, nil
}

func (s *adminService) UpdateAppointment(ctx context.Context, id primitive.ObjectID, update models.AppointmentUpdate) (*models.Appointment, error) {
	ctx, span := tracer.Start(ctx, "appointment.admin_update")
	defer span.End()

	if update.Status == nil && update.Notes == nil {
		return nil, apperrors.Validation("Nothing to update")
	}
	if update.Status != nil && !update.Status.Valid() {
		return nil, apperrors.Validation("Invalid status")
	}

	appt, err := s.apptRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperrors.NotFound(MsgAppointmentNotFound)
		}
		return nil, apperrors.Internal(err)
	}

	if update.Status == nil || *update.Status == appt.Status {
		if update.Notes == nil {
			return appt, nil
		}
		updated, err := s.apptRepo.UpdateNotes(ctx, id, *update.Notes)
		if err != nil {
			if errors.Is(err, mongo.ErrNoDocuments) {
				return nil, apperrors.NotFound(MsgAppointmentNotFound)
			}
			return nil, apperrors.Internal(err)
		}
		return updated, nil
	}

	span.SetAttributes(attribute.String("appointment.to", string(*update.Status)))
	updated, err := transitionAppointment(ctx, s.apptRepo, appt, *update.Status, update.Notes)
	if err != nil {
		return nil, err
	}
	log.Info().Str("appointment_id", id.Hex()).Str("from", string(appt.Status)).Str("to", string(updated.Status)).Msg("Appointment status updated")

	notifyOwner(ctx, s.userRepo, s.notifier, updated)
	return updated, nil
}

func (s *adminService) ListUsers(ctx context.Context) ([]models.User, error) {
	users, err := s.userRepo.ListPatients(ctx)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	return users, nil
}

func (s *adminService) SetUserBlocked(ctx context.Context, id primitive.ObjectID, blocked bool) (*models.User, error) {
	user, err := s.userRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperrors.NotFound("User not found")
		}
		return nil, apperrors.Internal(err)
	}
	if user.IsAdmin {
		return nil, apperrors.Validation("Cannot block an admin account")
	}

	updated, err := s.userRepo.SetBlocked(ctx, id, blocked)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperrors.NotFound("User not found")
		}
		return nil, apperrors.Internal(err)
	}
	log.Info().Str("user_id", id.Hex()).Bool("blocked", blocked).Msg("User block flag updated")

	if !blocked {
		return updated, nil
	}
	if err := s.cancelActiveAppointments(ctx, updated); err != nil {
		return nil, err
	}
	return updated, nil
}

// cancelActiveAppointments runs the block cascade. Re-running it after a
// partial failure is safe since only active appointments are touched.
func (s *adminService) cancelActiveAppointments(ctx context.Context, user *models.User) error {
	active, err := s.apptRepo.Find(ctx, models.AppointmentFilter{UserID: &user.ID, ActiveOnly: true})
	if err != nil {
		return apperrors.Internal(err)
	}

	var failed int
	for i := range active {
		_, err := transitionAppointment(ctx, s.apptRepo, &active[i], models.StatusCancelled, nil)
		if err != nil {
			if errors.Is(err, apperrors.ErrConflict) {
				continue
			}
			failed++
			log.Error().Err(err).Str("appointment_id", active[i].ID.Hex()).Msg("Failed to cancel appointment of blocked user")
			continue
		}
		s.notifier.SendCancellationNotice(ctx, user.Phone)
	}
	log.Info().Str("user_id", user.ID.Hex()).Int("appointments", len(active)).Int("failed", failed).Msg("Block cascade finished")

	if failed > 0 {
		return apperrors.Internal(fmt.Errorf("block cascade: %d of %d appointments not cancelled", failed, len(active)))
	}
	return nil
}

func (s *adminService) Stats(ctx context.Context) (*models.DashboardStats, error) {
	today := s.calendar.Today()
	stats := &models.DashboardStats{}

	counts := []struct {
		dst    *int64
		filter models.AppointmentFilter
	}{
		{&stats.TodayAppointments, models.AppointmentFilter{Date: &today, ActiveOnly: true}},
		{&stats.UpcomingAppointments, models.AppointmentFilter{From: &today, ActiveOnly: true}},
		{&stats.PendingAppointments, models.AppointmentFilter{Status: models.StatusPending}},
		{&stats.TotalAppointments, models.AppointmentFilter{}},
	}
	for _, c := range counts {
		n, err := s.apptRepo.Count(ctx, c.filter)
		if err != nil {
			return nil, apperrors.Internal(err)
		}
		*c.dst = n
	}

	users, err := s.userRepo.CountPatients(ctx)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	stats.TotalUsers = users
	return stats, nil
}
