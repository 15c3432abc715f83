// Package process executes one delivery attempt end to end: claim the row,
// render its template, dispatch on the right channel, finalize the outcome.
package process

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/rzbill/courier/internal/lookup"
	"github.com/rzbill/courier/internal/render"
	"github.com/rzbill/courier/internal/schedule"
	"github.com/rzbill/courier/internal/sender"
	"github.com/rzbill/courier/internal/store"
	"github.com/rzbill/courier/pkg/log"
)

// Options tune a Processor.
type Options struct {
	// MaxRetry is the email retry budget for billing messages.
	MaxRetry int
	// ConfirmDelay is how long an email attempt is deferred on the
	// finalizer pool, modeling asynchronous provider confirmation.
	ConfirmDelay time.Duration
	// FinalizeTimeout bounds the detached delayed-finalize call.
	FinalizeTimeout time.Duration
}

func (o *Options) applyDefaults() {
	if o.MaxRetry <= 0 {
		o.MaxRetry = 2
	}
	if o.ConfirmDelay < 0 {
		o.ConfirmDelay = 0
	}
	if o.FinalizeTimeout <= 0 {
		o.FinalizeTimeout = 10 * time.Second
	}
}

// Processor drives one send result through a delivery attempt.
type Processor struct {
	store   *store.Store
	lk      *lookup.Lookup
	render  render.Renderer
	senders *sender.Registry
	delayed *schedule.Pool
	opts    Options
	logger  log.Logger
}

// New builds a Processor.
func New(s *store.Store, lk *lookup.Lookup, r render.Renderer, reg *sender.Registry, delayed *schedule.Pool, opts Options, logger log.Logger) *Processor {
	opts.applyDefaults()
	return &Processor{
		store:   s,
		lk:      lk,
		render:  r,
		senders: reg,
		delayed: delayed,
		opts:    opts,
		logger:  logger.With(log.Component("process")),
	}
}

// Process runs one delivery attempt for the given send result.
//
// A nil return means the stream record is handled and may be acknowledged:
// the outcome was recorded, the email attempt was handed to the finalizer
// pool, or another worker owns the row. A non-nil return means the attempt
// could not be carried out and the record should stay pending for recovery.
func (p *Processor) Process(ctx context.Context, sendResultID int64) error {
	claimed, err := p.claim(ctx, sendResultID)
	if err != nil {
		return err
	}
	if !claimed {
		// Lost the race or the row is terminal. Someone else is (or was)
		// responsible; nothing to do.
		p.logger.Debug("claim lost", log.Int64("sendResultId", sendResultID))
		return nil
	}

	// Re-read after the claim: a fallback claim switches the channel.
	sr, err := p.store.Get(ctx, sendResultID)
	if err != nil {
		return fmt.Errorf("process: reload %d: %w", sendResultID, err)
	}
	channel := p.lk.Symbol(sr.ChannelID)

	msg, err := p.render.Render(ctx, sr.TemplateID, map[string]string{
		"userId": strconv.FormatInt(sr.UserID, 10),
	})
	if err != nil {
		// A bad template is not transient: record the failure instead of
		// leaving the stream entry pending. Billing rows keep their normal
		// retry and escalation path; others land in FAILED terminally.
		if _, ferr := p.store.FinalizeFailure(ctx, sr.ID, p.opts.MaxRetry); ferr != nil {
			return fmt.Errorf("process: finalize render failure %d: %w", sr.ID, ferr)
		}
		p.logger.Error("render failed",
			log.Int64("sendResultId", sr.ID),
			log.Int64("templateId", sr.TemplateID),
			log.Err(err))
		return nil
	}

	snd, err := p.senders.For(channel)
	if err != nil {
		return fmt.Errorf("process: %d: %w", sendResultID, err)
	}
	req := sender.Request{
		SendResultID: sr.ID,
		UserID:       sr.UserID,
		Title:        msg.Title,
		Body:         msg.Body,
	}

	if channel == lookup.ChannelEmail {
		// Email delivery and its finalization run later on the finalizer
		// pool, modeling asynchronous provider confirmation. The worker
		// returns now so acknowledgment does not wait out the delay.
		p.delayed.Schedule(p.opts.ConfirmDelay, func() { p.dispatch(snd, req, channel) })
		return nil
	}

	// SMS is synchronous: dispatch and finalize inline.
	if err := p.sendAndFinalize(ctx, snd, req, channel); err != nil {
		return err
	}
	return nil
}

// dispatch runs a deferred email attempt detached from the triggering
// request, so it carries its own deadline.
func (p *Processor) dispatch(snd sender.Sender, req sender.Request, channel string) {
	ctx, cancel := context.WithTimeout(context.Background(), p.opts.FinalizeTimeout)
	defer cancel()
	if err := p.sendAndFinalize(ctx, snd, req, channel); err != nil {
		p.logger.Error("deferred dispatch failed",
			log.Int64("sendResultId", req.SendResultID),
			log.Err(err))
	}
}

// sendAndFinalize invokes the sender and records the outcome. A sender error
// is a delivery failure, never an error return: it feeds the normal
// escalation path.
func (p *Processor) sendAndFinalize(ctx context.Context, snd sender.Sender, req sender.Request, channel string) error {
	if sendErr := snd.Send(ctx, req); sendErr != nil {
		if _, err := p.store.FinalizeFailure(ctx, req.SendResultID, p.opts.MaxRetry); err != nil {
			return fmt.Errorf("process: finalize failure %d: %w", req.SendResultID, err)
		}
		p.logger.Warn("send failed",
			log.Int64("sendResultId", req.SendResultID),
			log.Str("channel", channel),
			log.Err(sendErr))
		return nil
	}
	ok, err := p.store.FinalizeSuccess(ctx, req.SendResultID)
	if err != nil {
		return fmt.Errorf("process: finalize success %d: %w", req.SendResultID, err)
	}
	if !ok {
		// A sweeper settled the row while the attempt was in flight; its
		// verdict stands.
		p.logger.Warn("row already settled at finalize", log.Int64("sendResultId", req.SendResultID))
		return nil
	}
	p.logger.Debug("delivered", log.Int64("sendResultId", req.SendResultID), log.Str("channel", channel))
	return nil
}

// claim walks the claim cascade in order: fresh delivery, email retry, SMS
// fallback. The first conditional update that matches wins; each is gated so
// only the row's actual state can match.
func (p *Processor) claim(ctx context.Context, id int64) (bool, error) {
	if won, err := p.store.ClaimWaiting(ctx, id); err != nil || won {
		return won, err
	}
	if won, err := p.store.ClaimRetry(ctx, id, p.opts.MaxRetry); err != nil || won {
		return won, err
	}
	return p.store.ClaimFallback(ctx, id)
}

// MarkFailed force-fails a row whose in-flight attempt is known lost.
func (p *Processor) MarkFailed(ctx context.Context, id int64) error {
	_, err := p.store.ForceFail(ctx, id)
	return err
}
