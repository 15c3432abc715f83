// Package log provides courier's structured logging facade.
//
// The package exposes a small Logger interface with leveled methods and a
// simple Field type for structured context. Internally it is backed by Go's
// standard library slog, so output formatting (text or JSON) and level gating
// come from slog handlers while call sites stay on a stable facade.
//
// Quick start
//
//	l := log.NewLogger(
//	    log.WithLevel(log.InfoLevel),
//	    log.WithFormat(log.FormatText),
//	)
//	l = l.With(log.Component("consumer"), log.Str("group", "message-group"))
//	l.Info("consumer started", log.Int("batch", 10))
package log
