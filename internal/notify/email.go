package notify

import (
	"fmt"

	"gopkg.in/gomail.v2"
)

// OperatorAlerter reaches a human when a patient could not be messaged.
type OperatorAlerter interface {
	Alert(subject, body string) error
}

type EmailConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	To       string
}

type emailAlerter struct {
	from   string
	to     string
	dialer *gomail.Dialer
}

// NewEmailAlerter returns nil when SMTP or the operator address is missing.
func NewEmailAlerter(cfg EmailConfig) OperatorAlerter {
	if cfg.Host == "" || cfg.Username == "" || cfg.To == "" {
		return nil
	}
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	return &emailAlerter{
		from:   cfg.Username,
		to:     cfg.To,
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
	}
}

func (e *emailAlerter) Alert(subject, body string) error {
	m := gomail.NewMessage()

	m.SetHeader("From", e.from)
	m.SetHeader("To", e.to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", body)

	if err := e.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("send operator email: %w", err)
	}
	return nil
}
