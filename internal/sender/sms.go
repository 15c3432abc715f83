package sender

import (
	"context"

	"github.com/rzbill/courier/pkg/log"
)

// SMSSender simulates an SMS provider that always delivers. SMS is the
// escalation channel of last resort, so the simulation keeps it reliable.
type SMSSender struct {
	logger log.Logger
}

// NewSMSSender builds the simulated SMS sender.
func NewSMSSender(logger log.Logger) *SMSSender {
	return &SMSSender{logger: logger.With(log.Component("sender.sms"))}
}

// Channel implements Sender.
func (s *SMSSender) Channel() string { return "SMS" }

// Send implements Sender.
func (s *SMSSender) Send(ctx context.Context, req Request) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.logger.Debug("sms delivered",
		log.Int64("sendResultId", req.SendResultID),
		log.Int64("userId", req.UserID))
	return nil
}
