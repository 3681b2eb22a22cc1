package session

import "github.com/rs/zerolog"

var _ Logger = (*ZerologAdapter)(nil)

// ZerologAdapter bridges a zerolog.Logger into the Logger interface so hosts
// with an existing structured logger can inject it via WithLogger.
type ZerologAdapter struct {
	zlog zerolog.Logger
}

// NewZerologAdapter wraps zlog as a Logger.
func NewZerologAdapter(zlog zerolog.Logger) ZerologAdapter {
	return ZerologAdapter{zlog: zlog}
}

func (l ZerologAdapter) Debug(format string, args ...any) {
	l.zlog.Debug().Msgf(format, args...)
}

func (l ZerologAdapter) Info(format string, args ...any) {
	l.zlog.Info().Msgf(format, args...)
}

func (l ZerologAdapter) Warn(format string, args ...any) {
	l.zlog.Warn().Msgf(format, args...)
}

func (l ZerologAdapter) Error(format string, args ...any) {
	l.zlog.Error().Msgf(format, args...)
}
