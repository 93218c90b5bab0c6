package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	_ "github.com/joho/godotenv/autoload" // Import godotenv/autoload

	"clinicbook/internal/cache"
	"clinicbook/internal/config"
	"clinicbook/internal/database"
	"clinicbook/internal/notify"
	"clinicbook/internal/server"
	"clinicbook/internal/sms"
)

func setupLogger(cfg *config.Config) {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339

	if cfg.IsProduction() {
		log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
		return
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
}

func setupCooldown(ctx context.Context, cfg *config.Config) cache.Cooldown {
	if cfg.RedisAddr == "" {
		log.Info().Msg("REDIS_ADDR not set, OTP resend cooldown disabled")
		return cache.NewNoopCooldown()
	}
	client, err := cache.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword)
	if err != nil {
		log.Warn().Err(err).Str("addr", cfg.RedisAddr).Msg("Redis unavailable, OTP resend cooldown disabled")
		return cache.NewNoopCooldown()
	}
	return cache.NewRedisCooldown(client, cfg.OTPResendCooldown)
}

func main() {
	cfg := config.Load()
	setupLogger(cfg)

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	db, err := database.New(ctx, cfg.MongoURI, cfg.MongoDB)
	if err != nil {
		cancel()
		log.Fatal().Err(err).Msg("Failed to connect to MongoDB")
	}
	if err := database.EnsureIndexes(ctx, db.Database(), database.IndexOptions{OTPRetention: cfg.OTPRetention}); err != nil {
		cancel()
		log.Fatal().Err(err).Msg("Failed to create indexes")
	}
	cooldown := setupCooldown(ctx, cfg)
	cancel()

	sender, err := sms.Build(sms.Options{
		Provider:         cfg.SMSProvider,
		TwilioAccountSID: cfg.TwilioAccountSID,
		TwilioAuthToken:  cfg.TwilioAuthToken,
		TwilioFromNumber: cfg.TwilioFromNumber,
		MSG91AuthKey:     cfg.MSG91AuthKey,
		MSG91SenderID:    cfg.MSG91SenderID,
		MSG91TemplateID:  cfg.MSG91TemplateID,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to configure SMS provider")
	}
	log.Info().Str("provider", sender.Name()).Msg("SMS provider selected")

	notifier := notify.NewService(sender, notify.Options{
		ClinicName:  cfg.ClinicName,
		AdminPhone:  cfg.AdminPhone,
		OTPValidity: cfg.OTPValidity,
		Timeout:     cfg.NotifyTimeout,
		Alerter: notify.NewEmailAlerter(notify.EmailConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			To:       cfg.OperatorEmail,
		}),
	})

	s := server.NewServer(cfg, db, cooldown, notifier)

	done := make(chan bool, 1)

	go s.GracefulShutdown(done)

	err = s.Start()
	if err != nil && err != http.ErrServerClosed {
		log.Fatal().Err(err).Msg("HTTP server error")
	}

	<-done
	log.Info().Msg("Graceful shutdown complete.")
}
