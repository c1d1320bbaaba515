package notify

import (
	"context"

	"github.com/MrEthical07/authcore"
	"github.com/rs/zerolog"
)

// Log is a Notifier that writes each notification, link included, to a
// logger. Use it where no mail server is available.
type Log struct {
	logger zerolog.Logger
}

// NewLog returns a Log notifier.
func NewLog(logger zerolog.Logger) *Log {
	return &Log{logger: logger.With().Str("component", "notify").Logger()}
}

// Notify logs n at info level.
func (l *Log) Notify(_ context.Context, n authcore.Notification) error {
	if n.Email == "" {
		return ErrNoRecipient
	}
	l.logger.Info().
		Str("kind", string(n.Kind)).
		Str("email", n.Email).
		Str("link", n.Link).
		Msg("notification")
	return nil
}
