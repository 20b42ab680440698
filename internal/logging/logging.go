// Package logging builds the structured logger shared by every component.
package logging

import (
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options configures New.
type Options struct {
	Level      string // debug, info, warn, error
	Format     string // text or json
	File       string // optional rotating log file
	MaxSizeMB  int
	MaxBackups int
	Debug      bool // forces debug level
}

// Logger pairs the logger with the file rotator it may own.
type Logger struct {
	*log.Logger
	rotator *lumberjack.Logger
}

// New creates a logger writing to out, and additionally to a rotating file
// when opts.File is set.
func New(out io.Writer, opts Options) *Logger {
	level, err := log.ParseLevel(opts.Level)
	if err != nil {
		level = log.InfoLevel
	}
	if opts.Debug {
		level = log.DebugLevel
	}

	formatter := log.TextFormatter
	if opts.Format == "json" {
		formatter = log.JSONFormatter
	}

	var rotator *lumberjack.Logger
	if opts.File != "" {
		if err := os.MkdirAll(filepath.Dir(opts.File), 0o755); err == nil {
			maxSize := opts.MaxSizeMB
			if maxSize <= 0 {
				maxSize = 10
			}
			rotator = &lumberjack.Logger{
				Filename:   opts.File,
				MaxSize:    maxSize,
				MaxBackups: opts.MaxBackups,
				LocalTime:  true,
			}
			out = io.MultiWriter(out, rotator)
		}
	}

	l := log.NewWithOptions(out, log.Options{
		ReportTimestamp: true,
		TimeFormat:      time.RFC3339,
		Level:           level,
		Formatter:       formatter,
	})
	return &Logger{Logger: l, rotator: rotator}
}

// Close closes the log file if one is open.
func (l *Logger) Close() error {
	if l.rotator != nil {
		return l.rotator.Close()
	}
	return nil
}

// Discard returns a logger that drops everything. Used by tests.
func Discard() *log.Logger {
	return log.NewWithOptions(io.Discard, log.Options{Level: log.FatalLevel})
}

// Component tags a logger with the component name.
func Component(l *log.Logger, name string) *log.Logger {
	if l == nil {
		l = Discard()
	}
	return l.With("component", name)
}
