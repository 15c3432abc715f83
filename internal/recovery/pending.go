// Package recovery closes the gaps the happy path leaves behind: stream
// records delivered but never acknowledged, and database rows stuck in
// PROCESSING with no one working on them.
package recovery

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/rzbill/courier/internal/consume"
	"github.com/rzbill/courier/internal/lookup"
	"github.com/rzbill/courier/internal/streamlog"
	"github.com/rzbill/courier/pkg/id"
	"github.com/rzbill/courier/pkg/log"
)

// Handler is the slice of the delivery state machine the sweeps need.
type Handler interface {
	Process(ctx context.Context, sendResultID int64) error
	MarkFailed(ctx context.Context, sendResultID int64) error
}

// StatusReader reads a row's current status symbol. An empty symbol with a
// nil error means the row does not exist.
type StatusReader interface {
	Status(ctx context.Context, sendResultID int64) (string, error)
}

// PendingOptions tune the reclaim sweep.
type PendingOptions struct {
	Period       time.Duration
	IdleMin      time.Duration
	ClaimCount   int
	ConsumerName string
}

func (o *PendingOptions) applyDefaults() {
	if o.Period <= 0 {
		o.Period = 5 * time.Minute
	}
	if o.IdleMin <= 0 {
		o.IdleMin = 60 * time.Minute
	}
	if o.ClaimCount <= 0 {
		o.ClaimCount = 100
	}
	if o.ConsumerName == "" {
		o.ConsumerName = "recovery"
	}
}

// PendingSweeper periodically reclaims long-idle pending entries under a
// dedicated recovery identity and resolves each against database state.
type PendingSweeper struct {
	stream  *streamlog.Stream
	group   string
	handler Handler
	status  StatusReader
	opts    PendingOptions
	logger  log.Logger
}

// NewPendingSweeper builds the reclaim sweep for one stream and group.
func NewPendingSweeper(stream *streamlog.Stream, group string, handler Handler, status StatusReader, opts PendingOptions, logger log.Logger) *PendingSweeper {
	opts.applyDefaults()
	return &PendingSweeper{
		stream:  stream,
		group:   group,
		handler: handler,
		status:  status,
		opts:    opts,
		logger:  logger.With(log.Component("recovery.pending")),
	}
}

// Run executes the sweep on its period until ctx is canceled.
func (s *PendingSweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.opts.Period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := s.Sweep(ctx); err != nil {
				s.logger.Error("sweep failed", log.Err(err))
			}
		}
	}
}

// Sweep performs one reclaim pass. Errors on individual records are
// isolated: the record stays pending for the next pass and the sweep moves
// on.
func (s *PendingSweeper) Sweep(ctx context.Context) error {
	total, err := s.stream.PendingSummary(s.group)
	if err != nil {
		if errors.Is(err, streamlog.ErrNoGroup) {
			return nil
		}
		return err
	}
	if total == 0 {
		return nil
	}

	pend, err := s.stream.Pending(ctx, s.group, s.opts.ClaimCount)
	if err != nil {
		return err
	}
	stale := make([]id.ID, 0, len(pend))
	for _, pe := range pend {
		if pe.Idle >= s.opts.IdleMin {
			stale = append(stale, pe.ID)
		}
	}
	if len(stale) == 0 {
		return nil
	}

	claimed, err := s.stream.Claim(ctx, s.group, s.opts.ConsumerName, s.opts.IdleMin, stale)
	if err != nil {
		return err
	}
	s.logger.Info("reclaimed stale entries", log.Int("count", len(claimed)))

	for _, entry := range claimed {
		if err := s.resolve(ctx, entry); err != nil {
			// No ack: the entry stays pending and the next sweep retries.
			s.logger.Error("resolve failed, keeping entry pending",
				log.Str("recordId", entry.ID.String()),
				log.Err(err))
			continue
		}
		if _, err := s.stream.Ack(ctx, s.group, entry.ID); err != nil {
			s.logger.Error("ack failed", log.Str("recordId", entry.ID.String()), log.Err(err))
		}
	}
	return nil
}

// resolve decides what a reclaimed record still needs based on the row's
// current state. A nil return means the stream entry can be acknowledged.
func (s *PendingSweeper) resolve(ctx context.Context, entry streamlog.Entry) error {
	if entry.Fields == nil {
		// Record body lost or undecodable; nothing can be done with it.
		s.logger.Warn("dropping unreadable record", log.Str("recordId", entry.ID.String()))
		return nil
	}
	sendResultID, err := strconv.ParseInt(entry.Fields[consume.FieldSendResultID], 10, 64)
	if err != nil {
		s.logger.Warn("dropping malformed record", log.Str("recordId", entry.ID.String()))
		return nil
	}

	status, err := s.status.Status(ctx, sendResultID)
	if err != nil {
		return err
	}
	switch status {
	case "":
		// Row gone. Stale entry, nothing to deliver.
		s.logger.Warn("row not found for reclaimed record", log.Int64("sendResultId", sendResultID))
		return nil
	case lookup.StatusSuccess, lookup.StatusFailed, lookup.StatusExceeded:
		// Outcome already decided.
		return nil
	case lookup.StatusWaiting:
		// Delivered but never worked on; run the attempt here.
		return s.handler.Process(ctx, sendResultID)
	case lookup.StatusProcessing:
		// Interrupted mid-attempt with the worker gone. The attempt's fate
		// is unknowable, so record it as failed.
		s.logger.Warn("force-failing interrupted attempt", log.Int64("sendResultId", sendResultID))
		return s.handler.MarkFailed(ctx, sendResultID)
	default:
		s.logger.Error("anomalous status on reclaimed record",
			log.Int64("sendResultId", sendResultID),
			log.Str("status", status))
		return nil
	}
}
