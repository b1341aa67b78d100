package wire

import "log/slog"

// defaultLogger is used when a Session is constructed without an
// explicit logger.
func defaultLogger() *slog.Logger {
	return slog.Default()
}
