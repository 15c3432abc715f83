// Package consume pulls delivery requests off the stream and fans them out
// to the worker pool.
package consume

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/rzbill/courier/internal/streamlog"
	"github.com/rzbill/courier/internal/workerpool"
	"github.com/rzbill/courier/pkg/log"
)

// Record field names on the delivery stream.
const (
	FieldSendResultID = "sendResultId"
	FieldChannel      = "channel"
	FieldPurpose      = "purpose"
)

// Handler processes one decoded delivery request. A nil return means the
// record is fully handled and will be acknowledged.
type Handler interface {
	Process(ctx context.Context, sendResultID int64) error
}

// Options tune a Consumer.
type Options struct {
	Group        string
	NamePrefix   string
	Batch        int
	PollInterval time.Duration
}

func (o *Options) applyDefaults() {
	if o.Group == "" {
		o.Group = "message-senders"
	}
	if o.NamePrefix == "" {
		o.NamePrefix = "sender"
	}
	if o.Batch <= 0 {
		o.Batch = 10
	}
	if o.PollInterval <= 0 {
		o.PollInterval = 50 * time.Millisecond
	}
}

// Consumer reads its group's share of the stream and submits each record to
// the pool. Acknowledgment happens on the worker, after processing, so a
// crash between delivery and ack leaves the record pending for recovery.
type Consumer struct {
	stream  *streamlog.Stream
	pool    *workerpool.Pool
	handler Handler
	opts    Options
	name    string
	logger  log.Logger
}

// New builds a Consumer with a unique name: prefix, hostname, and a random
// suffix, so two processes on one host never share a pending list identity.
func New(stream *streamlog.Stream, pool *workerpool.Pool, handler Handler, opts Options, logger log.Logger) *Consumer {
	opts.applyDefaults()
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "unknown"
	}
	name := fmt.Sprintf("%s-%s-%s", opts.NamePrefix, host, uuid.NewString()[:8])
	return &Consumer{
		stream:  stream,
		pool:    pool,
		handler: handler,
		opts:    opts,
		name:    name,
		logger:  logger.With(log.Component("consume"), log.Str("consumer", name)),
	}
}

// Name returns the consumer's stream identity.
func (c *Consumer) Name() string { return c.name }

// Group returns the consumer group name.
func (c *Consumer) Group() string { return c.opts.Group }

// Run polls the stream until ctx is canceled. The group is created if
// absent, so the first consumer up provisions it.
func (c *Consumer) Run(ctx context.Context) error {
	if err := c.stream.CreateGroup(c.opts.Group); err != nil {
		return fmt.Errorf("consume: create group %q: %w", c.opts.Group, err)
	}
	c.logger.Info("consumer started",
		log.Str("group", c.opts.Group),
		log.Int("batch", c.opts.Batch))

	for {
		entries, err := c.stream.ReadGroup(ctx, c.opts.Group, c.name, c.opts.Batch)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			c.logger.Error("read failed", log.Err(err))
			if !c.sleep(ctx) {
				return nil
			}
			continue
		}
		if len(entries) == 0 {
			if !c.sleep(ctx) {
				return nil
			}
			continue
		}
		for _, e := range entries {
			entry := e
			// Submit never blocks; a saturated pool runs the task here,
			// which is exactly the backpressure the loop wants.
			c.pool.Submit(func() { c.handle(ctx, entry) })
		}
	}
}

func (c *Consumer) sleep(ctx context.Context) bool {
	t := time.NewTimer(c.opts.PollInterval)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func (c *Consumer) handle(ctx context.Context, entry streamlog.Entry) {
	sendResultID, err := strconv.ParseInt(entry.Fields[FieldSendResultID], 10, 64)
	if err != nil {
		// Poison record: acknowledge so it cannot circulate forever.
		c.logger.Error("malformed record, dropping",
			log.Str("recordId", entry.ID.String()),
			log.Err(err))
		c.ack(entry)
		return
	}

	if err := c.handler.Process(ctx, sendResultID); err != nil {
		// Left pending on purpose: the reclaim sweep will pick it up.
		c.logger.Error("processing failed, leaving record pending",
			log.Str("recordId", entry.ID.String()),
			log.Int64("sendResultId", sendResultID),
			log.Err(err))
		return
	}
	c.ack(entry)
}

func (c *Consumer) ack(entry streamlog.Entry) {
	// Acking must outlive a canceled run context; it records completed work.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := c.stream.Ack(ctx, c.opts.Group, entry.ID); err != nil {
		c.logger.Error("ack failed", log.Str("recordId", entry.ID.String()), log.Err(err))
	}
}
