package logging

import "log/slog"

// EnableTrace turns on per-signal debug lines. Init sets it when the server
// log level is TRACE.
var EnableTrace = false

// Trace logs at DEBUG level, but only while EnableTrace is set. Used on the
// hot paths of the narrative (every intersection signal, every client message).
func Trace(logger *slog.Logger, msg string, args ...any) {
	if EnableTrace {
		logger.Debug(msg, args...)
	}
}
