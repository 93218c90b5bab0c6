package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"golang.org/x/crypto/bcrypt"

	"clinicbook/internal/apperrors"
	"clinicbook/internal/metrics"
	"clinicbook/internal/models"
	"clinicbook/internal/repositories"
	"clinicbook/internal/utils"
)

const (
	passwordHashCost = bcrypt.DefaultCost

	MsgInvalidCredentials = "Invalid credentials"
)

type AuthConfig struct {
	JWTSecret  []byte
	SessionTTL time.Duration
	// AdminPhone is compared after normalization.
	AdminPhone string
}

type AuthService interface {
	Register(ctx context.Context, req models.RegisterRequest) (*models.Session, error)
	Login(ctx context.Context, identifier, password string) (*models.Session, error)
	ResetPassword(ctx context.Context, req models.ResetPasswordRequest) error
	Me(ctx context.Context, userID primitive.ObjectID) (*models.User, error)
	// Authenticate resolves a bearer token to a live, unblocked user.
	Authenticate(ctx context.Context, token string) (*models.User, error)
}

type authService struct {
	userRepo   repositories.UserRepository
	otpService OTPService
	cfg        AuthConfig
	adminPhone string
}

func NewAuthService(userRepo repositories.UserRepository, otpService OTPService, cfg AuthConfig) AuthService {
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = 30 * 24 * time.Hour
	}
	adminPhone, err := utils.NormalizePhone(cfg.AdminPhone)
	if err != nil && cfg.AdminPhone != "" {
		log.Warn().Str("admin_phone", cfg.AdminPhone).Msg("ADMIN_PHONE is not a valid mobile number; no account will be admin")
	}
	return &authService{userRepo: userRepo, otpService: otpService, cfg: cfg, adminPhone: adminPhone}
}

func (s *authService) blockedMessage() string {
	contact := s.adminPhone
	if contact == "" {
		contact = s.cfg.AdminPhone
	}
	return "Your account has been blocked. Contact admin: " + contact
}

func (s *authService) Register(ctx context.Context, req models.RegisterRequest) (*models.Session, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Email = utils.NormalizeEmail(req.Email)
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	name, email := req.Name, req.Email
	phone, err := normalizePhone(req.Phone)
	if err != nil {
		return nil, err
	}

	// Uniqueness is checked before the OTP is consumed so a rejected
	// registration does not burn the code.
	if existing, err := s.userRepo.FindByPhone(ctx, phone); err == nil {
		if existing.IsVerified {
			return nil, apperrors.Conflict("Phone number already registered")
		}
	} else if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, apperrors.Internal(err)
	}
	if email != "" {
		if existing, err := s.userRepo.FindByEmail(ctx, email); err == nil {
			if existing.IsVerified {
				return nil, apperrors.Conflict("Email already registered")
			}
		} else if !errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperrors.Internal(err)
		}
	}

	if err := s.otpService.VerifyOTP(ctx, phone, req.OTP, models.OTPPurposeRegistration); err != nil {
		return nil, err
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), passwordHashCost)
	if err != nil {
		log.Error().Err(err).Msg("Failed to hash password during registration")
		return nil, apperrors.Internal(err)
	}

	user := &models.User{
		Name:       name,
		Phone:      phone,
		Email:      email,
		Password:   string(hashed),
		IsAdmin:    s.adminPhone != "" && phone == s.adminPhone,
		IsVerified: true,
	}
	created, err := s.userRepo.Create(ctx, user)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, apperrors.Conflict("Phone number or email already registered")
		}
		return nil, apperrors.Internal(err)
	}

	metrics.NewUsersTotal.Inc()
	log.Info().Str("user_id", created.ID.Hex()).Bool("is_admin", created.IsAdmin).Msg("User registered")
	return s.issueSession(created)
}

func (s *authService) Login(ctx context.Context, identifier, password string) (*models.Session, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" || password == "" {
		return nil, apperrors.Validation("Phone/email and password are required")
	}

	var user *models.User
	var err error
	if strings.Contains(identifier, "@") {
		user, err = s.userRepo.FindByEmail(ctx, utils.NormalizeEmail(identifier))
	} else {
		phone, perr := utils.NormalizePhone(identifier)
		if perr != nil {
			metrics.LoginAttemptsTotal.WithLabelValues("failed").Inc()
			return nil, apperrors.Unauthorized(MsgInvalidCredentials)
		}
		user, err = s.userRepo.FindByPhone(ctx, phone)
	}
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			metrics.LoginAttemptsTotal.WithLabelValues("failed").Inc()
			return nil, apperrors.Unauthorized(MsgInvalidCredentials)
		}
		return nil, apperrors.Internal(err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		metrics.LoginAttemptsTotal.WithLabelValues("failed").Inc()
		return nil, apperrors.Unauthorized(MsgInvalidCredentials)
	}
	if user.IsBlocked {
		metrics.LoginAttemptsTotal.WithLabelValues("blocked").Inc()
		return nil, apperrors.Forbidden(s.blockedMessage())
	}

	metrics.LoginAttemptsTotal.WithLabelValues("success").Inc()
	return s.issueSession(user)
}

func (s *authService) ResetPassword(ctx context.Context, req models.ResetPasswordRequest) error {
	if err := validateRequest(req); err != nil {
		return err
	}
	phone, err := normalizePhone(req.Phone)
	if err != nil {
		return err
	}

	user, err := s.userRepo.FindByPhone(ctx, phone)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return apperrors.NotFound("No account found with this phone number")
		}
		return apperrors.Internal(err)
	}

	if err := s.otpService.VerifyOTP(ctx, phone, req.OTP, models.OTPPurposePasswordReset); err != nil {
		return err
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), passwordHashCost)
	if err != nil {
		return apperrors.Internal(err)
	}
	if err := s.userRepo.UpdatePassword(ctx, user.ID, string(hashed)); err != nil {
		return apperrors.Internal(err)
	}

	metrics.PasswordResetsTotal.Inc()
	log.Info().Str("user_id", user.ID.Hex()).Msg("Password reset")
	return nil
}

func (s *authService) Me(ctx context.Context, userID primitive.ObjectID) (*models.User, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperrors.NotFound("User not found")
		}
		return nil, apperrors.Internal(err)
	}
	return user, nil
}

func (s *authService) Authenticate(ctx context.Context, token string) (*models.User, error) {
	userID, err := utils.ParseJWT(token, s.cfg.JWTSecret)
	if err != nil {
		return nil, apperrors.Unauthorized("Invalid or expired token")
	}

	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperrors.Unauthorized("User not found")
		}
		return nil, apperrors.Internal(err)
	}
	if user.IsBlocked {
		return nil, apperrors.Forbidden(s.blockedMessage())
	}
	return user, nil
}

func (s *authService) issueSession(user *models.User) (*models.Session, error) {
	token, err := utils.GenerateJWT(user.ID, s.cfg.JWTSecret, s.cfg.SessionTTL)
	if err != nil {
		log.Error().Err(err).Msg("Failed to sign session token")
		return nil, apperrors.Internal(err)
	}
	return &models.Session{Token: token, User: user.Public()}, nil
}
