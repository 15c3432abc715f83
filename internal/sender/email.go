package sender

import (
	"context"
	"errors"
	"math/rand"

	"github.com/rzbill/courier/pkg/log"
)

// ErrDeliveryFailed is the simulated provider rejection.
var ErrDeliveryFailed = errors.New("sender: delivery failed")

// EmailSender simulates an email provider that fails a configurable
// percentage of attempts.
type EmailSender struct {
	failurePercent int
	roll           func() int
	logger         log.Logger
}

// NewEmailSender builds the simulated email sender. failurePercent is
// clamped to [0,100].
func NewEmailSender(failurePercent int, logger log.Logger) *EmailSender {
	if failurePercent < 0 {
		failurePercent = 0
	}
	if failurePercent > 100 {
		failurePercent = 100
	}
	return &EmailSender{
		failurePercent: failurePercent,
		roll:           func() int { return rand.Intn(100) },
		logger:         logger.With(log.Component("sender.email")),
	}
}

// Channel implements Sender.
func (s *EmailSender) Channel() string { return "EMAIL" }

// Send implements Sender.
func (s *EmailSender) Send(ctx context.Context, req Request) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.roll() < s.failurePercent {
		s.logger.Warn("email delivery failed",
			log.Int64("sendResultId", req.SendResultID),
			log.Int64("userId", req.UserID))
		return ErrDeliveryFailed
	}
	s.logger.Debug("email delivered",
		log.Int64("sendResultId", req.SendResultID),
		log.Str("title", req.Title))
	return nil
}
