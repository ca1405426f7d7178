// Package log provides the structured, context-propagated logger used by the
// dispatcher, the client and the CLI.
//
// Loggers are passed explicitly or carried in a context.Context:
//
//	lg := log.NewZapLogger(log.Config{Format: "logfmt", Level: log.LevelDebug})
//	ctx = log.SetContextLogger(ctx, lg.WithName("rpc"))
//	log.FromContext(ctx).Info("batch sent", "size", 32)
//
// FromContext never returns nil; without a stored logger it yields a
// NoopLogger. When the context carries an OpenTelemetry span,
// SetContextLogger wraps the logger in a SpanLogger so entries are also
// recorded as span events, and Error and Fatal entries mark the span as failed.
//
// Config is read from LOG_FORMAT, LOG_LEVEL and LOG_OUTPUT, optionally under
// a prefix chosen by the embedding configuration.
package log
