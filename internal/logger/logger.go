// Package logger builds the process-wide zerolog logger.
// Output is one JSON object per line on stdout (or a console writer for local use),
// optionally mirrored to a rotating file.
package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/natefinch/lumberjack"
	"github.com/rs/zerolog"

	"patientdocs/internal/config"
)

func init() {
	zerolog.TimestampFieldName = "ts"
	zerolog.TimeFieldFormat = time.RFC3339Nano
}

// New returns a logger for cfg and a close func for the file sink (a no-op when none is configured).
func New(cfg config.LogConfig, loc *time.Location) (zerolog.Logger, func() error) {
	var writers []io.Writer
	if cfg.Format == "console" {
		writers = append(writers, zerolog.NewConsoleWriter(func(w *zerolog.ConsoleWriter) {
			w.Out = os.Stderr
			w.TimeFormat = time.Kitchen
		}))
	} else {
		writers = append(writers, os.Stdout)
	}

	closeFn := func() error { return nil }
	if cfg.File.Enabled {
		lj := &lumberjack.Logger{
			Filename:   cfg.File.Path,
			MaxSize:    cfg.File.MaxSizeMB,
			MaxBackups: cfg.File.MaxBackups,
			MaxAge:     cfg.File.MaxAgeDays,
			Compress:   cfg.File.Compress,
		}
		writers = append(writers, lj)
		closeFn = lj.Close
	}

	return NewWithWriter(io.MultiWriter(writers...), cfg.Level, loc), closeFn
}

// NewWithWriter builds a JSON logger on w. An unknown level falls back to info.
func NewWithWriter(w io.Writer, level string, loc *time.Location) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	if loc == nil {
		loc = time.UTC
	}

	return zerolog.New(w).
		Level(lvl).
		Hook(tsHook{loc: loc})
}

// tsHook stamps events in the configured timezone rather than the host one.
type tsHook struct {
	loc *time.Location
}

func (h tsHook) Run(e *zerolog.Event, _ zerolog.Level, _ string) {
	e.Str(zerolog.TimestampFieldName, time.Now().In(h.loc).Format(time.RFC3339Nano))
}
