// Package logging configures log/slog for Report Keeper.
//
// New builds a JSON or text handler at the configured level and wraps it in
// a Handler that:
//   - copies request_id, run_id, user and report_id from the context onto
//     each record logged through the *Context methods
//   - redacts API keys, bearer tokens, emails, phone numbers and custom
//     patterns from messages and attributes when RedactPII is set
//
// # Usage
//
//	logger, err := logging.New(logging.FromConfig(cfg.Telemetry.Logging))
//	if err != nil {
//	    return err
//	}
//	slog.SetDefault(logger)
//
//	ctx = logging.WithRequestID(ctx, "req-123")
//	slog.InfoContext(ctx, "report recovered", "report_id", id)
package logging
