package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Port     string
	Env      string
	LogLevel string

	MongoURI  string
	MongoDB   string
	DBTimeout time.Duration

	JWTSecret  string
	SessionTTL time.Duration
	AdminPhone string

	MaxOTPPerDay      int
	OTPValidity       time.Duration
	OTPRetention      time.Duration
	OTPResendCooldown time.Duration

	RedisAddr     string
	RedisPassword string

	ClinicName          string
	ClinicTimezone      string
	ClinicClosedWeekday time.Weekday

	SMSProvider      string
	TwilioAccountSID string
	TwilioAuthToken  string
	TwilioFromNumber string
	MSG91AuthKey     string
	MSG91SenderID    string
	MSG91TemplateID  string
	NotifyTimeout    time.Duration

	SMTPHost      string
	SMTPPort      int
	SMTPUsername  string
	SMTPPassword  string
	OperatorEmail string

	AllowedOrigins []string
	RateLimitRPS   float64
	RateLimitBurst int
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:     getEnv("PORT", "8080"),
		Env:      getEnv("ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		MongoURI:  getEnv("MONGO_URI", ""),
		MongoDB:   getEnv("MONGO_DB", "clinic"),
		DBTimeout: getEnvAsDuration("DB_TIMEOUT", 5*time.Second),

		JWTSecret:  getEnv("JWT_SECRET", ""),
		SessionTTL: getEnvAsDuration("SESSION_TTL", 30*24*time.Hour),
		AdminPhone: getEnv("ADMIN_PHONE", ""),

		MaxOTPPerDay:      getEnvAsInt("MAX_OTP_PER_DAY", 5),
		OTPValidity:       getEnvAsMinutesOrDuration("OTP_VALIDITY", 5*time.Minute),
		OTPRetention:      getEnvAsDuration("OTP_RETENTION", 5*time.Minute),
		OTPResendCooldown: getEnvAsDuration("OTP_RESEND_COOLDOWN", 30*time.Second),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),

		ClinicName:          getEnv("CLINIC_NAME", "the clinic"),
		ClinicTimezone:      getEnv("CLINIC_TIMEZONE", "Asia/Kolkata"),
		ClinicClosedWeekday: getEnvAsWeekday("CLINIC_CLOSED_WEEKDAY", time.Sunday),

		SMSProvider:      strings.ToLower(strings.TrimSpace(getEnv("SMS_PROVIDER", "auto"))),
		TwilioAccountSID: getEnv("TWILIO_ACCOUNT_SID", ""),
		TwilioAuthToken:  getEnv("TWILIO_AUTH_TOKEN", ""),
		TwilioFromNumber: getEnv("TWILIO_FROM_NUMBER", ""),
		MSG91AuthKey:     getEnv("MSG91_AUTH_KEY", ""),
		MSG91SenderID:    getEnv("MSG91_SENDER_ID", "TXTIND"),
		MSG91TemplateID:  getEnv("MSG91_TEMPLATE_ID", ""),
		NotifyTimeout:    getEnvAsDuration("NOTIFY_TIMEOUT", 10*time.Second),

		SMTPHost:      getEnv("SMTP_HOST", "smtp.gmail.com"),
		SMTPPort:      getEnvAsInt("SMTP_PORT", 587),
		SMTPUsername:  getEnv("SMTP_USERNAME", ""),
		SMTPPassword:  getEnv("SMTP_PASSWORD", ""),
		OperatorEmail: getEnv("OPERATOR_EMAIL", ""),

		AllowedOrigins: getEnvAsList("ALLOWED_ORIGINS", []string{"*"}),
		RateLimitRPS:   getEnvAsFloat("RATE_LIMIT_RPS", 3),
		RateLimitBurst: getEnvAsInt("RATE_LIMIT_BURST", 5),
	}
}

// Validate reports settings the service cannot start without.
func (c *Config) Validate() error {
	var errs []error
	if c.MongoURI == "" {
		errs = append(errs, errors.New("MONGO_URI is required"))
	}
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if c.MaxOTPPerDay < 1 {
		errs = append(errs, errors.New("MAX_OTP_PER_DAY must be positive"))
	}
	if c.OTPRetention < c.OTPValidity {
		errs = append(errs, errors.New("OTP_RETENTION must not be shorter than OTP_VALIDITY"))
	}
	return errors.Join(errs...)
}

// IsProduction reports whether the service runs with ENV=production.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

// Location resolves the clinic timezone, falling back to UTC.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.ClinicTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsMinutesOrDuration accepts a bare integer as minutes ("5") as well as
// a Go duration ("5m").
func getEnvAsMinutesOrDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if minutes, err := strconv.Atoi(valueStr); err == nil && minutes > 0 {
		return time.Duration(minutes) * time.Minute
	}
	return getEnvAsDuration(key, defaultValue)
}

func getEnvAsWeekday(key string, defaultValue time.Weekday) time.Weekday {
	valueStr := strings.ToLower(strings.TrimSpace(getEnv(key, "")))
	if valueStr == "" {
		return defaultValue
	}
	if n, err := strconv.Atoi(valueStr); err == nil && n >= 0 && n <= 6 {
		return time.Weekday(n)
	}
	for d := time.Sunday; d <= time.Saturday; d++ {
		if strings.ToLower(d.String()) == valueStr {
			return d
		}
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
