package sms

import (
	"context"

	"github.com/rs/zerolog/log"
)

// ConsoleSender writes messages to the log instead of a carrier. It never fails.
type ConsoleSender struct{}

func NewConsoleSender() *ConsoleSender { return &ConsoleSender{} }

func (c *ConsoleSender) Name() string { return "console" }

func (c *ConsoleSender) Send(ctx context.Context, to, body string) error {
	if err := validate(to, body); err != nil {
		return err
	}
	log.Info().Str("to", to).Str("body", body).Msg("SMS (console)")
	return nil
}
