// Package logging provides structured logging for tracebuild.
//
// # Overview
//
// Logging wraps Zap with:
//   - Custom Trace level (-2, below Debug)
//   - Output on stderr, leaving stdout to the supervised command
//   - Automatic context field injection (trace_id, span_id, invocation.id)
//   - Redaction of sensitive field names and command arguments
//
// # Usage
//
// Create logger from config:
//
//	cfg := logging.NewDefaultConfig()
//	logger, err := logging.NewLogger(cfg)
//	if err != nil {
//	    return err
//	}
//	defer logger.Sync()
//
// Log with context:
//
//	ctx = logging.WithInvocationID(ctx, uuid.NewString())
//	logger.Warn(ctx, "forwarding termination", zap.Int("pid", pid))
//
// Output includes automatic correlation:
//
//	{
//	  "ts": "2025-11-24T10:15:30Z",
//	  "level": "warn",
//	  "msg": "forwarding termination",
//	  "trace_id": "0af7651916cd43dd8448eb211c80319c",
//	  "invocation.id": "5f0c6a8e-...",
//	  "pid": 4242
//	}
//
// # Redaction
//
// CI commands routinely carry credentials on their command line. Use Args
// rather than zap.Strings when logging argument vectors:
//
//	logger.Debug(ctx, "spawning", logging.Args("args", args))
//
// # Testing
//
// Use TestLogger for test assertions:
//
//	tl := logging.NewTestLogger()
//	tl.Warn(ctx, "test message", zap.String("key", "value"))
//	tl.AssertLogged(t, zapcore.WarnLevel, "test message")
//	tl.AssertField(t, "test message", "key", "value")
package logging
