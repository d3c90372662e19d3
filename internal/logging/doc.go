// Package logging provides structured logging for the Smart FAQ service.
//
// # Overview
//
// The package wraps Zap with:
//   - A custom Trace level (-2, below Debug)
//   - Stdout output plus an optional OpenTelemetry log bridge
//   - Automatic context fields (trace_id, span_id, request.id)
//   - Redaction of API keys and bearer tokens
//   - Level-aware sampling; errors are never sampled
//
// # Usage
//
//	cfg, err := logging.ConfigFrom("info", "json")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	logger, err := logging.NewLogger(cfg, nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer logger.Sync()
//
//	ctx = logging.WithRequestID(ctx, requestID)
//	logger.Info(ctx, "document ingested", zap.Int("chunks_added", n))
//
// Components that take a plain *zap.Logger receive logger.Underlying().
package logging
