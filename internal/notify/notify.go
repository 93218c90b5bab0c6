// Package notify sends the patient-facing SMS messages. Every call is best
// effort: failures are logged and reported in the DeliveryResult, never
// returned to the caller as an error.
package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"clinicbook/internal/clinic"
	"clinicbook/internal/metrics"
	"clinicbook/internal/sms"
)

type DeliveryResult struct {
	Delivered bool
	Provider  string
	Err       error
}

type Notifier interface {
	SendOTP(ctx context.Context, phone, code string) DeliveryResult
	SendBookingConfirmation(ctx context.Context, phone string, date time.Time, slot string) DeliveryResult
	SendCancellationNotice(ctx context.Context, phone string) DeliveryResult
}

type Options struct {
	ClinicName  string
	AdminPhone  string
	OTPValidity time.Duration
	Timeout     time.Duration
	// Alerter is optional.
	Alerter OperatorAlerter
}

type service struct {
	sender sms.Sender
	opts   Options
}

func NewService(sender sms.Sender, opts Options) Notifier {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.OTPValidity <= 0 {
		opts.OTPValidity = 5 * time.Minute
	}
	return &service{sender: sender, opts: opts}
}

func (s *service) SendOTP(ctx context.Context, phone, code string) DeliveryResult {
	body := fmt.Sprintf("Your OTP for %s is: %s. Valid for %d minutes. Do not share this code.",
		s.opts.ClinicName, code, int(s.opts.OTPValidity.Minutes()))

	res := s.send(ctx, "otp", phone, body)
	if !res.Delivered {
		// The code must still reach someone who can read it out to the patient.
		log.Warn().Str("phone", phone).Str("otp", code).Msg("OTP delivery failed; code logged for operator")
		if s.opts.Alerter != nil {
			subject := fmt.Sprintf("%s: OTP delivery failed for %s", s.opts.ClinicName, phone)
			msg := fmt.Sprintf("SMS delivery to %s failed (%v).\nOTP: %s", phone, res.Err, code)
			if err := s.opts.Alerter.Alert(subject, msg); err != nil {
				log.Error().Err(err).Str("phone", phone).Msg("Operator alert failed")
			}
		}
	}
	return res
}

func (s *service) SendBookingConfirmation(ctx context.Context, phone string, date time.Time, slot string) DeliveryResult {
	body := fmt.Sprintf("Your appointment with %s is confirmed for %s at %s. For details, contact %s",
		s.opts.ClinicName, clinic.FormatLong(date), slot, s.opts.AdminPhone)
	return s.send(ctx, "booking", phone, body)
}

func (s *service) SendCancellationNotice(ctx context.Context, phone string) DeliveryResult {
	body := fmt.Sprintf("Your appointment with %s has been cancelled. For details, contact %s",
		s.opts.ClinicName, s.opts.AdminPhone)
	return s.send(ctx, "cancellation", phone, body)
}

func (s *service) send(ctx context.Context, kind, phone, body string) DeliveryResult {
	res := DeliveryResult{Provider: s.sender.Name()}

	// Detached from the request: the booking is already committed.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opts.Timeout)
	defer cancel()

	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("sms sender panicked: %v", r)
			}
		}()
		return s.sender.Send(ctx, phone, body)
	}()

	if err != nil {
		res.Err = err
		metrics.NotificationsTotal.WithLabelValues(kind, res.Provider, "failed").Inc()
		log.Error().Err(err).Str("kind", kind).Str("provider", res.Provider).Str("phone", phone).Msg("SMS delivery failed")
		return res
	}

	res.Delivered = true
	metrics.NotificationsTotal.WithLabelValues(kind, res.Provider, "delivered").Inc()
	log.Info().Str("kind", kind).Str("provider", res.Provider).Str("phone", phone).Msg("SMS delivered")
	return res
}
