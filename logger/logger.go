package logger

import (
	"github.com/phuslu/log"
)

type Logger interface {
	Logf(format string, v ...interface{})
}

// Phuslu adapts a phuslu logger to the Logf interface the
// components are wired with.
type Phuslu struct {
	Logger *log.Logger
}

func (l *Phuslu) Logf(format string, v ...interface{}) {
	l.Logger.Info().Msgf(format, v...)
}

// Default logs through the package-level phuslu logger with a
// console writer.
func Default() *Phuslu {
	l := &log.Logger{
		Level: log.InfoLevel,
		Writer: &log.ConsoleWriter{
			ColorOutput:    true,
			EndWithMessage: true,
		},
	}
	return &Phuslu{Logger: l}
}
