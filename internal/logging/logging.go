// Package logging provides structured logging for the upload orchestrator.
package logging

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

// Logger wraps zerolog with the console formatting uploadop uses everywhere.
type Logger struct {
	zlog   zerolog.Logger
	output io.Writer
}

// New creates a logger writing console-formatted lines to w.
func New(w io.Writer) *Logger {
	output := zerolog.ConsoleWriter{
		Out:        w,
		TimeFormat: "15:04:05",
	}
	zlog := zerolog.New(output).With().Timestamp().Logger()
	return &Logger{zlog: zlog, output: w}
}

// NewDefault creates a logger writing to stdout.
func NewDefault() *Logger {
	return New(os.Stdout)
}

// With returns a child logger context for adding persistent fields.
func (l *Logger) With() zerolog.Context {
	return l.zlog.With()
}

// WithUploader returns a child logger tagged with the given uploader name.
func (l *Logger) WithUploader(name string) *Logger {
	return &Logger{zlog: l.zlog.With().Str("uploader", name).Logger(), output: l.output}
}

func (l *Logger) Info() *zerolog.Event  { return l.zlog.Info() }
func (l *Logger) Warn() *zerolog.Event  { return l.zlog.Warn() }
func (l *Logger) Error() *zerolog.Event { return l.zlog.Error() }
func (l *Logger) Debug() *zerolog.Event { return l.zlog.Debug() }

// SetGlobalLevel adjusts the process-wide minimum log level.
func SetGlobalLevel(level zerolog.Level) {
	zerolog.SetGlobalLevel(level)
}

func init() {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
}
