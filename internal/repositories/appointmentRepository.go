package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"clinicbook/internal/database"
	"clinicbook/internal/models"
	"clinicbook/internal/utils"
)

type AppointmentRepository interface {
	// Create inserts a new appointment. A concurrent active booking of the same
	// (date, slot) surfaces as a duplicate-key error.
	Create(ctx context.Context, appt *models.Appointment) (*models.Appointment, error)
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Appointment, error)
	Find(ctx context.Context, filter models.AppointmentFilter) ([]models.Appointment, error)
	Count(ctx context.Context, filter models.AppointmentFilter) (int64, error)
	// TransitionStatus moves the appointment from one status to another only if
	// it is still in from. It returns mongo.ErrNoDocuments otherwise.
	TransitionStatus(ctx context.Context, id primitive.ObjectID, from, to models.AppointmentStatus, notes *string) (*models.Appointment, error)
	UpdateNotes(ctx context.Context, id primitive.ObjectID, notes string) (*models.Appointment, error)
}

type appointmentRepository struct {
	collection *mongo.Collection
	timeout    time.Duration
}

func NewAppointmentRepository(db database.Service, timeout time.Duration) AppointmentRepository {
	return &appointmentRepository{collection: db.Database().Collection(database.AppointmentsCollection), timeout: timeout}
}

func buildAppointmentFilter(f models.AppointmentFilter) bson.M {
	filter := bson.M{}
	if f.UserID != nil {
		filter["user_id"] = *f.UserID
	}
	switch {
	case f.Date != nil:
		filter["date"] = *f.Date
	case f.From != nil:
		filter["date"] = bson.M{"$gte": *f.From}
	}
	if f.TimeSlot != "" {
		filter["time_slot"] = f.TimeSlot
	}
	if f.Status != "" {
		filter["status"] = f.Status
	}
	if f.ActiveOnly {
		filter["active"] = true
	}
	return filter
}

func (r *appointmentRepository) Create(ctx context.Context, appt *models.Appointment) (*models.Appointment, error) {
	queryType := "create"
	repository := "appointment"
	status := "success"
	timer := prometheus.NewTimer(prometheus.ObserverFunc(func(v float64) {
		utils.DBQueryDurationSeconds.WithLabelValues(queryType, repository, status).Observe(v)
	}))
	defer timer.ObserveDuration()

	ctx, cancel := queryContext(ctx, r.timeout)
	defer cancel()

	appt.ID = primitive.NewObjectID()
	appt.Active = appt.Status.IsActive()
	now := time.Now().UTC()
	appt.CreatedAt = now
	appt.UpdatedAt = now

	_, err := r.collection.InsertOne(ctx, appt)
	if err != nil {
		status = "error"
		utils.DBQueryErrorsTotal.WithLabelValues(queryType, repository).Inc()
		if !mongo.IsDuplicateKeyError(err) {
			log.Error().Err(err).Str("user_id", appt.UserID.Hex()).Msg("Failed to insert appointment")
		}
		return nil, fmt.Errorf("failed to create appointment: %w", err)
	}
	return appt, nil
}

func (r *appointmentRepository) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Appointment, error) {
	queryType := "findById"
	repository := "appointment"
	status := "success"
	timer := prometheus.NewTimer(prometheus.ObserverFunc(func(v float64) {
		utils.DBQueryDurationSeconds.WithLabelValues(queryType, repository, status).Observe(v)
	}))
	defer timer.ObserveDuration()

	ctx, cancel := queryContext(ctx, r.timeout)
	defer cancel()

	var appt models.Appointment
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&appt)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, err
		}
		status = "error"
		utils.DBQueryErrorsTotal.WithLabelValues(queryType, repository).Inc()
		return nil, fmt.Errorf("failed to find appointment: %w", err)
	}
	return &appt, nil
}

// Find returns matching appointments ordered by date. Callers order slots
// within a day themselves since slot ids do not sort lexically.
func (r *appointmentRepository) Find(ctx context.Context, f models.AppointmentFilter) ([]models.Appointment, error) {
	queryType := "find"
	repository := "appointment"
	status := "success"
	timer := prometheus.NewTimer(prometheus.ObserverFunc(func(v float64) {
		utils.DBQueryDurationSeconds.WithLabelValues(queryType, repository, status).Observe(v)
	}))
	defer timer.ObserveDuration()

	ctx, cancel := queryContext(ctx, r.timeout)
	defer cancel()

	dir := 1
	if f.NewestFirst {
		dir = -1
	}
	opts := options.Find().SetSort(bson.D{{Key: "date", Value: dir}, {Key: "created_at", Value: 1}})

	cursor, err := r.collection.Find(ctx, buildAppointmentFilter(f), opts)
	if err != nil {
		status = "error"
		utils.DBQueryErrorsTotal.WithLabelValues(queryType, repository).Inc()
		log.Error().Err(err).Msg("Error finding appointments")
		return nil, fmt.Errorf("failed to find appointments: %w", err)
	}
	defer cursor.Close(ctx)

	appts := []models.Appointment{}
	if err := cursor.All(ctx, &appts); err != nil {
		status = "error"
		utils.DBQueryErrorsTotal.WithLabelValues(queryType, repository).Inc()
		return nil, fmt.Errorf("failed to decode appointments: %w", err)
	}
	return appts, nil
}

func (r *appointmentRepository) Count(ctx context.Context, f models.AppointmentFilter) (int64, error) {
	queryType := "count"
	repository := "appointment"
	status := "success"
	timer := prometheus.NewTimer(prometheus.ObserverFunc(func(v float64) {
		utils.DBQueryDurationSeconds.WithLabelValues(queryType, repository, status).Observe(v)
	}))
	defer timer.ObserveDuration()

	ctx, cancel := queryContext(ctx, r.timeout)
	defer cancel()

	count, err := r.collection.CountDocuments(ctx, buildAppointmentFilter(f))
	if err != nil {
		status = "error"
		utils.DBQueryErrorsTotal.WithLabelValues(queryType, repository).Inc()
		log.Error().Err(err).Msg("Error counting appointments")
		return 0, fmt.Errorf("failed to count appointments: %w", err)
	}
	return count, nil
}

func (r *appointmentRepository) TransitionStatus(ctx context.Context, id primitive.ObjectID, from, to models.AppointmentStatus, notes *string) (*models.Appointment, error) {
	queryType := "transitionStatus"
	repository := "appointment"
	status := "success"
	timer := prometheus.NewTimer(prometheus.ObserverFunc(func(v float64) {
		utils.DBQueryDurationSeconds.WithLabelValues(queryType, repository, status).Observe(v)
	}))
	defer timer.ObserveDuration()

	ctx, cancel := queryContext(ctx, r.timeout)
	defer cancel()

	set := bson.M{
		"status":     to,
		"active":     to.IsActive(),
		"updated_at": time.Now().UTC(),
	}
	if notes != nil {
		set["notes"] = *notes
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var appt models.Appointment
	err := r.collection.FindOneAndUpdate(ctx, bson.M{"_id": id, "status": from}, bson.M{"$set": set}, opts).Decode(&appt)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, err
		}
		status = "error"
		utils.DBQueryErrorsTotal.WithLabelValues(queryType, repository).Inc()
		log.Error().Err(err).Str("appointment_id", id.Hex()).Str("to", string(to)).Msg("Error updating appointment status")
		return nil, fmt.Errorf("failed to update appointment status: %w", err)
	}
	return &appt, nil
}

func (r *appointmentRepository) UpdateNotes(ctx context.Context, id primitive.ObjectID, notes string) (*models.Appointment, error) {
	queryType := "updateNotes"
	repository := "appointment"
	status := "success"
	timer := prometheus.NewTimer(prometheus.ObserverFunc(func(v float64) {
		utils.DBQueryDurationSeconds.WithLabelValues(queryType, repository, status).Observe(v)
	}))
	defer timer.ObserveDuration()

	ctx, cancel := queryContext(ctx, r.timeout)
	defer cancel()

	update := bson.M{"$set": bson.M{"notes": notes, "updated_at": time.Now().UTC()}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var appt models.Appointment
	err := r.collection.FindOneAndUpdate(ctx, bson.M{"_id": id}, update, opts).Decode(&appt)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, err
		}
		status = "error"
		utils.DBQueryErrorsTotal.WithLabelValues(queryType, repository).Inc()
		log.Error().Err(err).Str("appointment_id", id.Hex()).Msg("Error updating appointment notes")
		return nil, fmt.Errorf("failed to update appointment notes: %w", err)
	}
	return &appt, nil
}
