package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger is the process-wide logger. It writes text to stderr until Setup runs.
var Logger = logrus.New()

// Options controls where and how logs are written
type Options struct {
	Level      string
	File       string // empty logs to Output
	Output     io.Writer
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
	JSON       bool
}

// Setup configures the global logger, rotating the log file when one is set
func Setup(opts Options) error {
	level, err := logrus.ParseLevel(opts.Level)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", opts.Level, err)
	}

	out := opts.Output
	if out == nil {
		out = os.Stdout
	}
	if opts.File != "" {
		if err := os.MkdirAll(filepath.Dir(opts.File), 0o750); err != nil {
			return fmt.Errorf("create log dir: %w", err)
		}
		out = &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    opts.MaxSizeMB,
			MaxBackups: opts.MaxBackups,
			MaxAge:     opts.MaxAgeDays,
			Compress:   opts.Compress,
		}
	}

	Logger.SetOutput(out)
	Logger.SetLevel(level)
	if opts.JSON || opts.File != "" {
		Logger.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339Nano})
	} else {
		Logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return nil
}

// GetLogger returns the global logrus Logger instance
func GetLogger() *logrus.Logger {
	return Logger
}

// LogAPICall records one outbound request to the NetGuard API
func LogAPICall(resource, method, path string, status int, took time.Duration) {
	Logger.WithFields(logrus.Fields{
		"resource": resource,
		"method":   method,
		"path":     path,
		"status":   status,
		"took_ms":  took.Milliseconds(),
	}).Debug("API call")
}

// LogAPIError records a failed outbound request
func LogAPIError(resource, method, path string, err error) {
	Logger.WithFields(logrus.Fields{
		"resource": resource,
		"method":   method,
		"path":     path,
	}).WithError(err).Warn("API call failed")
}
