// Package runtime wires storage, the stream, the database, and the delivery
// components into one process.
package runtime

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"

	cfgpkg "github.com/rzbill/courier/internal/config"
	"github.com/rzbill/courier/internal/consume"
	"github.com/rzbill/courier/internal/lookup"
	"github.com/rzbill/courier/internal/process"
	"github.com/rzbill/courier/internal/recovery"
	"github.com/rzbill/courier/internal/render"
	"github.com/rzbill/courier/internal/schedule"
	"github.com/rzbill/courier/internal/sender"
	pebblestore "github.com/rzbill/courier/internal/storage/pebble"
	"github.com/rzbill/courier/internal/store"
	"github.com/rzbill/courier/internal/streamlog"
	"github.com/rzbill/courier/internal/workerpool"
	"github.com/rzbill/courier/pkg/log"
)

// Options for building the Runtime.
type Options struct {
	Config cfgpkg.Config
	Logger log.Logger
}

// Runtime owns every long-lived resource of the worker process.
type Runtime struct {
	config cfgpkg.Config
	logger log.Logger

	kv     *pebblestore.DB
	sqldb  *bun.DB
	stream *streamlog.Stream
	store  *store.Store
	lk     *lookup.Lookup

	pool      *workerpool.Pool
	finalizer *schedule.Pool
	processor *process.Processor
	consumer  *consume.Consumer
	pending   *recovery.PendingSweeper
	timeout   *recovery.TimeoutSweeper
}

// Open initializes storage and wires the delivery pipeline.
func Open(ctx context.Context, opts Options) (*Runtime, error) {
	cfg := opts.Config
	logger := opts.Logger
	if logger == nil {
		logger = log.NewNop()
	}

	kv, err := pebblestore.Open(pebblestore.Options{DataDir: cfg.DataDir})
	if err != nil {
		return nil, fmt.Errorf("runtime: open data dir: %w", err)
	}

	rt := &Runtime{config: cfg, logger: logger, kv: kv}
	if err := rt.wire(ctx); err != nil {
		_ = rt.Close()
		return nil, err
	}
	return rt, nil
}

func (r *Runtime) wire(ctx context.Context) error {
	cfg := r.config

	stream, err := streamlog.Open(r.kv, cfg.Stream.Key)
	if err != nil {
		return fmt.Errorf("runtime: open stream: %w", err)
	}
	r.stream = stream

	sqldb, err := OpenSQL(cfg.DB)
	if err != nil {
		return err
	}
	r.sqldb = sqldb

	lk, err := lookup.Load(ctx, sqldb)
	if err != nil {
		// Fatal by design: a worker with unresolved symbols cannot make a
		// single correct decision.
		return err
	}
	r.lk = lk
	r.store = store.New(sqldb, lk)

	emailSender := sender.NewEmailSender(cfg.Email.FailurePercent, r.logger)
	smsSender := sender.NewSMSSender(r.logger)
	registry, err := sender.NewRegistry(emailSender, smsSender)
	if err != nil {
		return err
	}

	r.finalizer = schedule.New(cfg.Email.FinalizerPool, r.logger)
	r.pool = workerpool.New(cfg.Worker.Threads, cfg.Worker.QueueCapacity, r.logger)

	r.processor = process.New(r.store, lk, render.NewTemplateRenderer(r.store), registry, r.finalizer,
		process.Options{
			MaxRetry:     cfg.Email.MaxRetry,
			ConfirmDelay: cfg.Email.ConfirmDelay.Std(),
		}, r.logger)

	r.consumer = consume.New(stream, r.pool, r.processor, consume.Options{
		Group:        cfg.Stream.Group,
		NamePrefix:   cfg.Stream.ConsumerPrefix,
		Batch:        cfg.Stream.Batch,
		PollInterval: cfg.Stream.PollInterval.Std(),
	}, r.logger)

	r.pending = recovery.NewPendingSweeper(stream, cfg.Stream.Group, r.processor, r.store,
		recovery.PendingOptions{
			Period:       cfg.Sweep.Period.Std(),
			IdleMin:      cfg.Sweep.IdleTimeout.Std(),
			ClaimCount:   cfg.Sweep.ClaimCount,
			ConsumerName: r.consumer.Name() + "-recovery",
		}, r.logger)

	r.timeout = recovery.NewTimeoutSweeper(r.store,
		recovery.TimeoutOptions{
			Period:    cfg.Sweep.Period.Std(),
			Timeout:   cfg.Sweep.IdleTimeout.Std(),
			BatchSize: cfg.Sweep.DBBatchSize,
		}, r.logger)
	return nil
}

// OpenSQL opens the relational backend for the configured driver. Exposed
// so provisioning commands can reach the database before the full runtime
// (which requires a seeded code table) can come up.
func OpenSQL(cfg cfgpkg.DBConfig) (*bun.DB, error) {
	sqldb, err := sql.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("runtime: open database: %w", err)
	}
	switch cfg.Driver {
	case "postgres":
		return bun.NewDB(sqldb, pgdialect.New()), nil
	case "sqlite3":
		sqldb.SetMaxOpenConns(1)
		return bun.NewDB(sqldb, sqlitedialect.New()), nil
	default:
		_ = sqldb.Close()
		return nil, fmt.Errorf("runtime: unsupported db driver %q", cfg.Driver)
	}
}

// Run starts the consumer and both sweeps, blocking until ctx is canceled,
// then shuts the pools down in dependency order.
func (r *Runtime) Run(ctx context.Context) error {
	done := make(chan error, 3)
	go func() { done <- r.consumer.Run(ctx) }()
	go func() { done <- r.pending.Run(ctx) }()
	go func() { done <- r.timeout.Run(ctx) }()

	<-ctx.Done()
	var firstErr error
	for i := 0; i < 3; i++ {
		if err := <-done; err != nil && firstErr == nil {
			firstErr = err
		}
	}

	// Drain in-flight deliveries, then their delayed finalizations.
	shutdownCtx := context.Background()
	if err := r.pool.Shutdown(shutdownCtx); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := r.finalizer.Shutdown(shutdownCtx); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// Close closes underlying resources.
func (r *Runtime) Close() error {
	var errs []error
	if r.sqldb != nil {
		errs = append(errs, r.sqldb.Close())
	}
	if r.kv != nil {
		errs = append(errs, r.kv.Close())
	}
	return errors.Join(errs...)
}

// CheckHealth verifies both storage backends answer.
func (r *Runtime) CheckHealth(ctx context.Context) error {
	if r.kv == nil {
		return errors.New("runtime: kv store not open")
	}
	it, err := r.kv.NewIter(nil)
	if err != nil {
		return err
	}
	it.Close()
	if r.sqldb == nil {
		return errors.New("runtime: database not open")
	}
	return r.sqldb.PingContext(ctx)
}

// Stream exposes the delivery stream for producers.
func (r *Runtime) Stream() *streamlog.Stream { return r.stream }

// Store exposes the send-result store for provisioning commands.
func (r *Runtime) Store() *store.Store { return r.store }

// DB exposes the relational handle for provisioning commands.
func (r *Runtime) DB() *bun.DB { return r.sqldb }

// Lookup returns the code lookup.
func (r *Runtime) Lookup() *lookup.Lookup { return r.lk }

// Config returns the runtime configuration.
func (r *Runtime) Config() cfgpkg.Config { return r.config }
