package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrEthical07/authcore"
	"github.com/caarlos0/env/v11"
	"gopkg.in/gomail.v2"
)

// ErrNoRecipient is returned for a notification without an address.
var ErrNoRecipient = errors.New("notify: no recipient")

// SMTPConfig holds SMTP settings.
type SMTPConfig struct {
	Host     string `env:"SMTP_HOST"`
	Port     int    `env:"SMTP_PORT" envDefault:"587"`
	Username string `env:"SMTP_USERNAME"`
	Password string `env:"SMTP_PASSWORD"`
	From     string `env:"SMTP_FROM"`
	AppName  string `env:"APP_NAME" envDefault:"authcore"`
}

// LoadSMTPConfig reads SMTPConfig from the environment and validates it.
func LoadSMTPConfig() (SMTPConfig, error) {
	cfg, err := env.ParseAs[SMTPConfig]()
	if err != nil {
		return SMTPConfig{}, fmt.Errorf("parse smtp environment: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return SMTPConfig{}, err
	}
	return cfg, nil
}

func (c SMTPConfig) validate() error {
	if c.Host == "" {
		return fmt.Errorf("missing SMTP_HOST environment variable")
	}
	if c.Port == 0 {
		return fmt.Errorf("missing SMTP_PORT environment variable")
	}
	if c.From == "" {
		return fmt.Errorf("missing SMTP_FROM environment variable")
	}
	return nil
}

type sender interface {
	DialAndSend(m ...*gomail.Message) error
}

// SMTP is a Notifier that sends one e-mail per notification.
type SMTP struct {
	config SMTPConfig
	sender sender
}

// NewSMTP returns an SMTP notifier that dials cfg's server for every message.
func NewSMTP(cfg SMTPConfig) (*SMTP, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &SMTP{
		config: cfg,
		sender: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
	}, nil
}

// Notify renders n and sends it.
func (s *SMTP) Notify(ctx context.Context, n authcore.Notification) error {
	if n.Email == "" {
		return ErrNoRecipient
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	m, err := render(s.config.AppName, n)
	if err != nil {
		return err
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", s.config.From)
	if n.Name != "" {
		msg.SetAddressHeader("To", n.Email, n.Name)
	} else {
		msg.SetHeader("To", n.Email)
	}
	msg.SetHeader("Subject", m.subject)
	msg.SetBody("text/plain", m.text)
	msg.AddAlternative("text/html", m.html)

	if err := s.sender.DialAndSend(msg); err != nil {
		return fmt.Errorf("send %s to %s: %w", n.Kind, n.Email, err)
	}
	return nil
}
