// Package observability carries the ambient concerns of the pass service:
// structured logging, prometheus metrics, and OpenTelemetry tracing.
package observability

import (
	"io"
	"os"
	"strings"

	"github.com/willibrandon/mtlog"
	"github.com/willibrandon/mtlog/core"
	"github.com/willibrandon/mtlog/sinks"
)

// Logger is the service logging interface, backed by mtlog message
// templates.
type Logger interface {
	Debug(messageTemplate string, args ...any)
	Info(messageTemplate string, args ...any)
	Warn(messageTemplate string, args ...any)
	Error(messageTemplate string, args ...any)

	// ForContext creates a child logger carrying an extra property.
	ForContext(key string, value any) Logger
}

// LogLevel is the minimum level emitted.
type LogLevel int

const (
	DebugLevel LogLevel = iota
	InfoLevel
	WarnLevel
	ErrorLevel
)

// ParseLogLevel maps a configuration string to a level, defaulting to Info.
func ParseLogLevel(s string) LogLevel {
	switch strings.ToLower(s) {
	case "debug":
		return DebugLevel
	case "warn", "warning":
		return WarnLevel
	case "error":
		return ErrorLevel
	default:
		return InfoLevel
	}
}

type mtlogAdapter struct {
	logger core.Logger
}

// NewLogger creates a console logger writing to output at the given level.
func NewLogger(output io.Writer, level LogLevel) Logger {
	opts := []mtlog.Option{
		mtlog.WithSink(sinks.NewConsoleSinkWithWriter(output)),
		mtlog.WithTimestamp(),
	}

	switch level {
	case DebugLevel:
		opts = append(opts, mtlog.Debug())
	case WarnLevel:
		opts = append(opts, mtlog.Warning())
	case ErrorLevel:
		opts = append(opts, mtlog.Error())
	default:
		opts = append(opts, mtlog.Information())
	}

	return &mtlogAdapter{logger: mtlog.New(opts...)}
}

// NewDefaultLogger creates a stdout logger at Info level.
func NewDefaultLogger() Logger {
	return NewLogger(os.Stdout, InfoLevel)
}

func (a *mtlogAdapter) Debug(messageTemplate string, args ...any) {
	a.logger.Debug(messageTemplate, args...)
}

func (a *mtlogAdapter) Info(messageTemplate string, args ...any) {
	a.logger.Info(messageTemplate, args...)
}

func (a *mtlogAdapter) Warn(messageTemplate string, args ...any) {
	a.logger.Warn(messageTemplate, args...)
}

func (a *mtlogAdapter) Error(messageTemplate string, args ...any) {
	a.logger.Error(messageTemplate, args...)
}

func (a *mtlogAdapter) ForContext(key string, value any) Logger {
	return &mtlogAdapter{logger: a.logger.ForContext(key, value)}
}

// NewNullLogger creates a logger that discards all output, for tests.
func NewNullLogger() Logger {
	return &nullLogger{}
}

type nullLogger struct{}

func (n *nullLogger) Debug(messageTemplate string, args ...any) {}
func (n *nullLogger) Info(messageTemplate string, args ...any)  {}
func (n *nullLogger) Warn(messageTemplate string, args ...any)  {}
func (n *nullLogger) Error(messageTemplate string, args ...any) {}
func (n *nullLogger) ForContext(key string, value any) Logger   { return n }
