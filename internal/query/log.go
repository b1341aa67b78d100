package query

import "log/slog"

// defaultLogger is used when Compile or BindParams is called without an
// explicit logger.
func defaultLogger() *slog.Logger {
	return slog.Default()
}

func logOrDefault(l *slog.Logger) *slog.Logger {
	if l == nil {
		return defaultLogger()
	}
	return l
}
