// Package sms delivers text messages to Indian mobile numbers through Twilio
// or MSG91, with a console sender for development.
package sms

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
)

var (
	ErrNotConfigured = errors.New("sms: provider not configured")
	ErrEmptyMessage  = errors.New("sms: recipient and body required")
)

// Sender delivers one message to a canonical +91 phone number.
type Sender interface {
	Send(ctx context.Context, to, body string) error
	Name() string
}

// ProviderError is a non-2xx provider response.
type ProviderError struct {
	Provider string
	Status   int
	Body     string
}

func (e *ProviderError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: status %d", e.Provider, e.Status)
	}
	return fmt.Sprintf("%s: status %d: %s", e.Provider, e.Status, e.Body)
}

// Retryable reports whether another attempt could succeed.
func (e *ProviderError) Retryable() bool {
	return e.Status == 429 || e.Status >= 500
}

// Options selects and configures a provider.
type Options struct {
	Provider string

	TwilioAccountSID string
	TwilioAuthToken  string
	TwilioFromNumber string

	MSG91AuthKey    string
	MSG91SenderID   string
	MSG91TemplateID string
}

// Build returns the sender named by opts.Provider. "auto" prefers MSG91, then
// Twilio, then the console.
func Build(opts Options) (Sender, error) {
	twilioReady := opts.TwilioAccountSID != "" && opts.TwilioAuthToken != "" && opts.TwilioFromNumber != ""
	msg91Ready := opts.MSG91AuthKey != ""

	switch strings.ToLower(strings.TrimSpace(opts.Provider)) {
	case "twilio":
		if !twilioReady {
			return nil, fmt.Errorf("%w: twilio credentials missing", ErrNotConfigured)
		}
		return NewTwilioSender(opts.TwilioAccountSID, opts.TwilioAuthToken, opts.TwilioFromNumber), nil
	case "msg91":
		if !msg91Ready {
			return nil, fmt.Errorf("%w: msg91 auth key missing", ErrNotConfigured)
		}
		return NewMSG91Sender(opts.MSG91AuthKey, opts.MSG91SenderID, opts.MSG91TemplateID), nil
	case "console":
		return NewConsoleSender(), nil
	case "", "auto":
		switch {
		case msg91Ready:
			return NewMSG91Sender(opts.MSG91AuthKey, opts.MSG91SenderID, opts.MSG91TemplateID), nil
		case twilioReady:
			return NewTwilioSender(opts.TwilioAccountSID, opts.TwilioAuthToken, opts.TwilioFromNumber), nil
		default:
			log.Warn().Msg("No SMS provider configured; messages will only be logged")
			return NewConsoleSender(), nil
		}
	default:
		return nil, fmt.Errorf("sms: unknown provider %q", opts.Provider)
	}
}

func validate(to, body string) error {
	if strings.TrimSpace(to) == "" || strings.TrimSpace(body) == "" {
		return ErrEmptyMessage
	}
	return nil
}
