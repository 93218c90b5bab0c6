package services

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"go.mongodb.org/mongo-driver/mongo"

	"clinicbook/internal/apperrors"
	"clinicbook/internal/clinic"
	"clinicbook/internal/metrics"
	"clinicbook/internal/models"
	"clinicbook/internal/repositories"
)

const (
	MsgTerminalAppointment = "Appointment is already in a terminal state"
	MsgAppointmentNotFound = "Appointment not found"

	maxTransitionAttempts = 3
)

// transitionAppointment applies one state-machine step with compare-and-set on
// the current status. A lost race re-reads the document and re-validates.
func transitionAppointment(ctx context.Context, repo repositories.AppointmentRepository, appt *models.Appointment, to models.AppointmentStatus, notes *string) (*models.Appointment, error) {
	current := appt
	for attempt := 0; attempt < maxTransitionAttempts; attempt++ {
		if current.Status.IsTerminal() {
			return nil, apperrors.Conflict(MsgTerminalAppointment)
		}
		if !current.Status.CanTransitionTo(to) {
			return nil, apperrors.Conflict(fmt.Sprintf("Invalid status transition from %s to %s", current.Status, to))
		}

		updated, err := repo.TransitionStatus(ctx, current.ID, current.Status, to, notes)
		if err == nil {
			metrics.AppointmentTransitionsTotal.WithLabelValues(string(to)).Inc()
			return updated, nil
		}
		if !errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperrors.Internal(err)
		}

		current, err = repo.FindByID(ctx, appt.ID)
		if err != nil {
			if errors.Is(err, mongo.ErrNoDocuments) {
				return nil, apperrors.NotFound(MsgAppointmentNotFound)
			}
			return nil, apperrors.Internal(err)
		}
	}
	return nil, apperrors.Conflict("Appointment was modified concurrently, please retry")
}

// sortAppointments orders by date, then by position in the daily schedule.
func sortAppointments(appts []models.Appointment, newestFirst bool) {
	sort.SliceStable(appts, func(i, j int) bool {
		di, dj := appts[i].Date, appts[j].Date
		if !di.Equal(dj) {
			if newestFirst {
				return di.After(dj)
			}
			return di.Before(dj)
		}
		return clinic.SlotIndex(appts[i].TimeSlot) < clinic.SlotIndex(appts[j].TimeSlot)
	})
}
