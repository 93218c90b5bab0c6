package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/mongo"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"clinicbook/internal/apperrors"
	"clinicbook/internal/cache"
	"clinicbook/internal/clinic"
	"clinicbook/internal/metrics"
	"clinicbook/internal/models"
	"clinicbook/internal/notify"
	"clinicbook/internal/repositories"
	"clinicbook/internal/utils"
)

var tracer = otel.Tracer("clinicbook/internal/services")

const (
	OTPLength = 6

	MsgInvalidOrExpiredOTP = "Invalid or expired OTP"
	MsgInvalidPhone        = "Please enter a valid 10-digit Indian mobile number"
)

type OTPConfig struct {
	MaxPerDay int
	Validity  time.Duration
}

type OTPService interface {
	// RequestOTP issues and dispatches a fresh code. Delivery failure does not
	// fail the call.
	RequestOTP(ctx context.Context, phone string, purpose models.OTPPurpose) (*models.OTP, error)
	// VerifyOTP consumes every outstanding code for phone and purpose on success.
	VerifyOTP(ctx context.Context, phone, code string, purpose models.OTPPurpose) error
	SendRegistrationOTP(ctx context.Context, phone string) error
	SendPasswordResetOTP(ctx context.Context, phone string) error
}

type otpService struct {
	userRepo repositories.UserRepository
	otpRepo  repositories.OTPRepository
	notifier notify.Notifier
	cooldown cache.Cooldown
	calendar *clinic.Calendar
	cfg      OTPConfig
}

func NewOTPService(userRepo repositories.UserRepository, otpRepo repositories.OTPRepository, notifier notify.Notifier, cooldown cache.Cooldown, calendar *clinic.Calendar, cfg OTPConfig) OTPService {
	if cooldown == nil {
		cooldown = cache.NewNoopCooldown()
	}
	if cfg.MaxPerDay <= 0 {
		cfg.MaxPerDay = 5
	}
	if cfg.Validity <= 0 {
		cfg.Validity = 5 * time.Minute
	}
	return &otpService{
		userRepo: userRepo,
		otpRepo:  otpRepo,
		notifier: notifier,
		cooldown: cooldown,
		calendar: calendar,
		cfg:      cfg,
	}
}

func (s *otpService) SendRegistrationOTP(ctx context.Context, phone string) error {
	canonical, err := normalizePhone(phone)
	if err != nil {
		return err
	}

	user, err := s.userRepo.FindByPhone(ctx, canonical)
	if err != nil && !errors.Is(err, mongo.ErrNoDocuments) {
		return apperrors.Internal(err)
	}
	if user != nil && user.IsVerified {
		return apperrors.Conflict("Phone number already registered")
	}

	_, err = s.RequestOTP(ctx, canonical, models.OTPPurposeRegistration)
	return err
}

func (s *otpService) SendPasswordResetOTP(ctx context.Context, phone string) error {
	canonical, err := normalizePhone(phone)
	if err != nil {
		return err
	}

	if _, err := s.userRepo.FindByPhone(ctx, canonical); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return apperrors.NotFound("No account found with this phone number")
		}
		return apperrors.Internal(err)
	}

	_, err = s.RequestOTP(ctx, canonical, models.OTPPurposePasswordReset)
	return err
}

func (s *otpService) RequestOTP(ctx context.Context, phone string, purpose models.OTPPurpose) (*models.OTP, error) {
	ctx, span := tracer.Start(ctx, "otp.request")
	defer span.End()

	if !purpose.Valid() {
		return nil, apperrors.Validation("Invalid OTP purpose")
	}
	canonical, err := normalizePhone(phone)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("otp.purpose", string(purpose)))

	issued, err := s.otpRepo.CountRequestsSince(ctx, canonical, s.calendar.StartOfToday())
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	if issued >= int64(s.cfg.MaxPerDay) {
		metrics.OTPRejectedTotal.WithLabelValues("daily_cap").Inc()
		log.Warn().Str("phone", canonical).Int64("issued_today", issued).Msg("Daily OTP limit reached")
		return nil, apperrors.RateLimit("Maximum OTP requests reached for today. Please try again tomorrow.")
	}

	cooldownKey := canonical + ":" + string(purpose)
	claimed := false
	wait, err := s.cooldown.Acquire(ctx, cooldownKey)
	if err != nil {
		log.Warn().Err(err).Str("phone", canonical).Msg("OTP cooldown check failed; continuing without it")
	} else if wait > 0 {
		metrics.OTPRejectedTotal.WithLabelValues("cooldown").Inc()
		return nil, apperrors.RateLimit(fmt.Sprintf("Please wait %d seconds before requesting another OTP", int(wait.Round(time.Second).Seconds())))
	} else {
		claimed = true
	}
	// No code was issued, so the phone must not be held by the cooldown.
	fail := func(err error) (*models.OTP, error) {
		if claimed {
			if rerr := s.cooldown.Release(context.WithoutCancel(ctx), cooldownKey); rerr != nil {
				log.Warn().Err(rerr).Str("phone", canonical).Msg("Failed to release OTP cooldown")
			}
		}
		return nil, apperrors.Internal(err)
	}

	code, err := utils.GenerateSecureOTP(OTPLength)
	if err != nil {
		return fail(fmt.Errorf("generate otp: %w", err))
	}

	now := s.calendar.Now().UTC()
	if err := s.otpRepo.RecordRequest(ctx, &models.OTPRequest{Phone: canonical, Purpose: purpose, CreatedAt: now}); err != nil {
		return fail(err)
	}
	otp, err := s.otpRepo.Create(ctx, &models.OTP{
		Phone:     canonical,
		Code:      code,
		Purpose:   purpose,
		ExpiresAt: now.Add(s.cfg.Validity),
		CreatedAt: now,
	})
	if err != nil {
		return fail(err)
	}
	metrics.OTPIssuedTotal.WithLabelValues(string(purpose)).Inc()

	res := s.notifier.SendOTP(ctx, canonical, code)
	span.SetAttributes(attribute.Bool("otp.delivered", res.Delivered))

	return otp, nil
}

func (s *otpService) VerifyOTP(ctx context.Context, phone, code string, purpose models.OTPPurpose) error {
	ctx, span := tracer.Start(ctx, "otp.verify")
	defer span.End()

	canonical, err := normalizePhone(phone)
	if err != nil {
		return err
	}
	if !utils.IsOTPCode(code, OTPLength) {
		metrics.OTPVerificationsTotal.WithLabelValues("rejected").Inc()
		return apperrors.Validation(MsgInvalidOrExpiredOTP)
	}

	_, err = s.otpRepo.FindLatestValid(ctx, canonical, code, purpose, s.calendar.Now().UTC())
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			metrics.OTPVerificationsTotal.WithLabelValues("rejected").Inc()
			return apperrors.Validation(MsgInvalidOrExpiredOTP)
		}
		return apperrors.Internal(err)
	}

	if _, err := s.otpRepo.DeleteAll(ctx, canonical, purpose); err != nil {
		return apperrors.Internal(err)
	}
	metrics.OTPVerificationsTotal.WithLabelValues("accepted").Inc()
	return nil
}

func normalizePhone(raw string) (string, error) {
	p, err := utils.NormalizePhone(raw)
	if err != nil {
		return "", apperrors.Validation(MsgInvalidPhone)
	}
	return p, nil
}
