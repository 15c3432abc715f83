package serverrun

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	cfgpkg "github.com/rzbill/courier/internal/config"
	"github.com/rzbill/courier/internal/runtime"
	logpkg "github.com/rzbill/courier/pkg/log"
)

// Options carries CLI-level overrides into the worker.
type Options struct {
	DataDir string
	Config  cfgpkg.Config
}

// Run boots the worker and blocks until the context is canceled or a
// termination signal arrives.
func Run(ctx context.Context, opts Options) error {
	// Layer a local signal context over the provided one so callers that
	// pass context.Background still get clean SIGTERM handling.
	sctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := opts.Config
	if opts.DataDir != "" {
		cfg.DataDir = opts.DataDir
	}

	logger := buildLogger(cfg.Log)
	logger.Info("starting courier worker",
		logpkg.Str("dataDir", cfg.DataDir),
		logpkg.Str("dbDriver", cfg.DB.Driver),
		logpkg.Str("stream", cfg.Stream.Key),
		logpkg.Str("group", cfg.Stream.Group),
		logpkg.Int("workers", cfg.Worker.Threads))

	rt, err := runtime.Open(sctx, runtime.Options{Config: cfg, Logger: logger})
	if err != nil {
		return err
	}
	defer rt.Close()

	err = rt.Run(sctx)
	logger.Info("courier worker stopped")
	return err
}

func buildLogger(cfg cfgpkg.LogConfig) logpkg.Logger {
	level, err := logpkg.ParseLevel(cfg.Level)
	if err != nil {
		level = logpkg.InfoLevel
	}
	format, err := logpkg.ParseFormat(cfg.Format)
	if err != nil {
		format = logpkg.FormatText
	}
	return logpkg.NewLogger(
		logpkg.WithLevel(level),
		logpkg.WithFormat(format),
		logpkg.WithOutput(os.Stderr),
	)
}
