package recovery

import (
	"context"
	"time"

	"github.com/rzbill/courier/pkg/log"
)

// TimeoutStore is the slice of the store the timeout sweep uses.
type TimeoutStore interface {
	ProcessingTimeoutIDs(ctx context.Context, threshold time.Time, limit int) ([]int64, error)
	FailTimedOut(ctx context.Context, ids []int64) (int64, error)
}

// TimeoutOptions tune the processing-timeout sweep.
type TimeoutOptions struct {
	Period    time.Duration
	Timeout   time.Duration
	BatchSize int
}

func (o *TimeoutOptions) applyDefaults() {
	if o.Period <= 0 {
		o.Period = 5 * time.Minute
	}
	if o.Timeout <= 0 {
		o.Timeout = 60 * time.Minute
	}
	if o.BatchSize <= 0 {
		o.BatchSize = 500
	}
}

// TimeoutSweeper force-fails rows stuck in PROCESSING past the timeout.
// It works purely on the database, covering crashes that never left a
// stream-pending entry behind.
type TimeoutSweeper struct {
	store  TimeoutStore
	opts   TimeoutOptions
	logger log.Logger
}

// NewTimeoutSweeper builds the processing-timeout sweep.
func NewTimeoutSweeper(store TimeoutStore, opts TimeoutOptions, logger log.Logger) *TimeoutSweeper {
	opts.applyDefaults()
	return &TimeoutSweeper{
		store:  store,
		opts:   opts,
		logger: logger.With(log.Component("recovery.timeout")),
	}
}

// Run executes the sweep on its period until ctx is canceled.
func (s *TimeoutSweeper) Run(ctx context.Context) error {
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

// Sweep performs one pass. The bulk update re-checks PROCESSING per row, so
// a row finalized between the select and the update is left untouched.
func (s *TimeoutSweeper) Sweep(ctx context.Context) error {
	threshold := time.Now().Add(-s.opts.Timeout)
	ids, err := s.store.ProcessingTimeoutIDs(ctx, threshold, s.opts.BatchSize)
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}
	n, err := s.store.FailTimedOut(ctx, ids)
	if err != nil {
		return err
	}
	s.logger.Info("force-failed timed-out rows",
		log.Int("candidates", len(ids)),
		log.Int64("failed", n))
	return nil
}
