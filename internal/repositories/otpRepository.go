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

type OTPRepository interface {
	Create(ctx context.Context, otp *models.OTP) (*models.OTP, error)
	// FindLatestValid returns mongo.ErrNoDocuments when no unexpired record matches.
	FindLatestValid(ctx context.Context, phone, code string, purpose models.OTPPurpose, now time.Time) (*models.OTP, error)
	DeleteAll(ctx context.Context, phone string, purpose models.OTPPurpose) (int64, error)
	RecordRequest(ctx context.Context, req *models.OTPRequest) error
	CountRequestsSince(ctx context.Context, phone string, since time.Time) (int64, error)
}

type otpRepository struct {
	otps     *mongo.Collection
	requests *mongo.Collection
	timeout  time.Duration
}

func NewOTPRepository(db database.Service, timeout time.Duration) OTPRepository {
	return &otpRepository{
		otps:     db.Database().Collection(database.OTPsCollection),
		requests: db.Database().Collection(database.OTPRequestsCollection),
		timeout:  timeout,
	}
}

func (r *otpRepository) Create(ctx context.Context, otp *models.OTP) (*models.OTP, error) {
	queryType := "create"
	repository := "otp"
	status := "success"
	timer := prometheus.NewTimer(prometheus.ObserverFunc(func(v float64) {
		utils.DBQueryDurationSeconds.WithLabelValues(queryType, repository, status).Observe(v)
	}))
	defer timer.ObserveDuration()

	ctx, cancel := queryContext(ctx, r.timeout)
	defer cancel()

	otp.ID = primitive.NewObjectID()
	if otp.CreatedAt.IsZero() {
		otp.CreatedAt = time.Now().UTC()
	}
	_, err := r.otps.InsertOne(ctx, otp)
	if err != nil {
		status = "error"
		utils.DBQueryErrorsTotal.WithLabelValues(queryType, repository).Inc()
		log.Error().Err(err).Str("phone", otp.Phone).Msg("Failed to insert OTP")
		return nil, fmt.Errorf("failed to create otp: %w", err)
	}
	return otp, nil
}

func (r *otpRepository) FindLatestValid(ctx context.Context, phone, code string, purpose models.OTPPurpose, now time.Time) (*models.OTP, error) {
	queryType := "findLatestValid"
	repository := "otp"
	status := "success"
	timer := prometheus.NewTimer(prometheus.ObserverFunc(func(v float64) {
		utils.DBQueryDurationSeconds.WithLabelValues(queryType, repository, status).Observe(v)
	}))
	defer timer.ObserveDuration()

	ctx, cancel := queryContext(ctx, r.timeout)
	defer cancel()

	filter := bson.M{
		"phone":      phone,
		"code":       code,
		"purpose":    purpose,
		"expires_at": bson.M{"$gt": now},
	}
	opts := options.FindOne().SetSort(bson.D{{Key: "created_at", Value: -1}})

	var otp models.OTP
	err := r.otps.FindOne(ctx, filter, opts).Decode(&otp)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, err
		}
		status = "error"
		utils.DBQueryErrorsTotal.WithLabelValues(queryType, repository).Inc()
		return nil, fmt.Errorf("failed to find otp: %w", err)
	}
	return &otp, nil
}

func (r *otpRepository) DeleteAll(ctx context.Context, phone string, purpose models.OTPPurpose) (int64, error) {
	queryType := "deleteAll"
	repository := "otp"
	status := "success"
	timer := prometheus.NewTimer(prometheus.ObserverFunc(func(v float64) {
		utils.DBQueryDurationSeconds.WithLabelValues(queryType, repository, status).Observe(v)
	}))
	defer timer.ObserveDuration()

	ctx, cancel := queryContext(ctx, r.timeout)
	defer cancel()

	result, err := r.otps.DeleteMany(ctx, bson.M{"phone": phone, "purpose": purpose})
	if err != nil {
		status = "error"
		utils.DBQueryErrorsTotal.WithLabelValues(queryType, repository).Inc()
		log.Error().Err(err).Str("phone", phone).Msg("Failed to purge OTPs")
		return 0, fmt.Errorf("failed to delete otps: %w", err)
	}
	return result.DeletedCount, nil
}

func (r *otpRepository) RecordRequest(ctx context.Context, req *models.OTPRequest) error {
	queryType := "recordRequest"
	repository := "otp"
	status := "success"
	timer := prometheus.NewTimer(prometheus.ObserverFunc(func(v float64) {
		utils.DBQueryDurationSeconds.WithLabelValues(queryType, repository, status).Observe(v)
	}))
	defer timer.ObserveDuration()

	ctx, cancel := queryContext(ctx, r.timeout)
	defer cancel()

	req.ID = primitive.NewObjectID()
	if req.CreatedAt.IsZero() {
		req.CreatedAt = time.Now().UTC()
	}
	if _, err := r.requests.InsertOne(ctx, req); err != nil {
		status = "error"
		utils.DBQueryErrorsTotal.WithLabelValues(queryType, repository).Inc()
		log.Error().Err(err).Str("phone", req.Phone).Msg("Failed to record OTP request")
		return fmt.Errorf("failed to record otp request: %w", err)
	}
	return nil
}

func (r *otpRepository) CountRequestsSince(ctx context.Context, phone string, since time.Time) (int64, error) {
	queryType := "countRequestsSince"
	repository := "otp"
	status := "success"
	timer := prometheus.NewTimer(prometheus.ObserverFunc(func(v float64) {
		utils.DBQueryDurationSeconds.WithLabelValues(queryType, repository, status).Observe(v)
	}))
	defer timer.ObserveDuration()

	ctx, cancel := queryContext(ctx, r.timeout)
	defer cancel()

	count, err := r.requests.CountDocuments(ctx, bson.M{"phone": phone, "created_at": bson.M{"$gte": since}})
	if err != nil {
		status = "error"
		utils.DBQueryErrorsTotal.WithLabelValues(queryType, repository).Inc()
		return 0, fmt.Errorf("failed to count otp requests: %w", err)
	}
	return count, nil
}
