package log

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	currentLevel atomic.Value // stores slog.Level

	outputMu sync.Mutex
	output   io.Writer = os.Stderr
	format   string
	rotating *lumberjack.Logger
)

// LevelTrace is a custom trace level below debug
const LevelTrace = slog.Level(-8)

// FileOptions controls the rotating log file.
type FileOptions struct {
	Path       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

func init() {
	level, err := parseLevel(os.Getenv("LOG_LEVEL"))
	if err != nil {
		level = slog.LevelInfo
	}
	format = os.Getenv("LOG_FORMAT")

	currentLevel.Store(level)
	if path := os.Getenv("LOG_FILE"); path != "" {
		rotating = newRotating(FileOptions{Path: path})
		output = io.MultiWriter(os.Stderr, rotating)
	}
	updateHandler()
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToUpper(s) {
	case "ERROR":
		return slog.LevelError, nil
	case "WARN", "WARNING":
		return slog.LevelWarn, nil
	case "INFO", "":
		return slog.LevelInfo, nil
	case "DEBUG":
		return slog.LevelDebug, nil
	case "TRACE":
		return LevelTrace, nil
	default:
		return 0, fmt.Errorf("invalid log level: %s", s)
	}
}

func newRotating(opts FileOptions) *lumberjack.Logger {
	if opts.MaxSizeMB <= 0 {
		opts.MaxSizeMB = 10
	}
	if opts.MaxBackups <= 0 {
		opts.MaxBackups = 3
	}
	if opts.MaxAgeDays <= 0 {
		opts.MaxAgeDays = 28
	}
	return &lumberjack.Logger{
		Filename:   opts.Path,
		MaxSize:    opts.MaxSizeMB,
		MaxBackups: opts.MaxBackups,
		MaxAge:     opts.MaxAgeDays,
		Compress:   opts.Compress,
	}
}

// updateHandler recreates the handler with the current level, format and output
func updateHandler() {
	level := currentLevel.Load().(slog.Level)

	outputMu.Lock()
	w := output
	jsonFormat := strings.ToUpper(format) == "JSON"
	outputMu.Unlock()

	var handler slog.Handler
	if jsonFormat {
		handler = slog.NewJSONHandler(w, &slog.HandlerOptions{
			Level: level,
			ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
				if a.Key == slog.TimeKey {
					return slog.Attr{
						Key:   "timestamp",
						Value: slog.StringValue(a.Value.Time().UTC().Format(time.RFC3339Nano)),
					}
				}
				if a.Key == slog.LevelKey && a.Value.Any().(slog.Level) == LevelTrace {
					return slog.Attr{
						Key:   slog.LevelKey,
						Value: slog.StringValue("TRACE"),
					}
				}
				return a
			},
		})
	} else {
		handler = slog.NewTextHandler(w, &slog.HandlerOptions{
			Level: level,
			ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
				if a.Key == slog.TimeKey {
					return slog.Attr{
						Key:   slog.TimeKey,
						Value: slog.StringValue(a.Value.Time().Format("2006-01-02 15:04:05.000-07:00")),
					}
				}
				if a.Key == slog.LevelKey && a.Value.Any().(slog.Level) == LevelTrace {
					return slog.Attr{
						Key:   slog.LevelKey,
						Value: slog.StringValue("TRACE"),
					}
				}
				return a
			},
		})
	}

	slog.SetDefault(slog.New(handler))
}

// SetLogLevel atomically updates the log level at runtime
func SetLogLevel(level string) error {
	newLevel, err := parseLevel(level)
	if err != nil {
		return err
	}

	currentLevel.Store(newLevel)
	updateHandler()

	LogDebugWithFields("logging", "Log level changed", map[string]any{
		"new_level": level,
	})

	return nil
}

// GetLogLevel returns the current log level as a string
func GetLogLevel() string {
	level := currentLevel.Load().(slog.Level)

	switch level {
	case slog.LevelError:
		return "error"
	case slog.LevelWarn:
		return "warn"
	case slog.LevelInfo:
		return "info"
	case slog.LevelDebug:
		return "debug"
	case LevelTrace:
		return "trace"
	default:
		return "unknown"
	}
}

// SetFormat switches between "text" and "json" output.
func SetFormat(f string) {
	outputMu.Lock()
	format = f
	outputMu.Unlock()
	updateHandler()
}

// SetOutput redirects log output. Used by tests and the CLI.
func SetOutput(w io.Writer) {
	outputMu.Lock()
	output = w
	outputMu.Unlock()
	updateHandler()
}

// EnableFile tees log output into a size-rotated file next to stderr.
func EnableFile(opts FileOptions) {
	if opts.Path == "" {
		return
	}
	outputMu.Lock()
	if rotating != nil {
		_ = rotating.Close()
	}
	rotating = newRotating(opts)
	output = io.MultiWriter(os.Stderr, rotating)
	outputMu.Unlock()
	updateHandler()
}

// Close flushes and closes the rotating file, if any.
func Close() error {
	outputMu.Lock()
	defer outputMu.Unlock()
	if rotating == nil {
		return nil
	}
	err := rotating.Close()
	rotating = nil
	output = os.Stderr
	return err
}

func Logf(format string, args ...any) {
	slog.Default().Info(fmt.Sprintf(format, args...))
}

func LogError(format string, args ...any) {
	slog.Default().Error(fmt.Sprintf(format, args...))
}

func LogWarn(format string, args ...any) {
	slog.Default().Warn(fmt.Sprintf(format, args...))
}

func LogDebug(format string, args ...any) {
	slog.Default().Debug(fmt.Sprintf(format, args...))
}

func LogTrace(format string, args ...any) {
	if currentLevel.Load().(slog.Level) <= LevelTrace {
		slog.Default().Log(context.Background(), LevelTrace, fmt.Sprintf(format, args...))
	}
}

func buildArgs(component string, fields map[string]any) []any {
	args := make([]any, 0, len(fields)*2+2)
	args = append(args, "component", component)
	for k, v := range fields {
		args = append(args, k, v)
	}
	return args
}

func LogInfoWithFields(component, message string, fields map[string]any) {
	slog.Default().Info(message, buildArgs(component, fields)...)
}

func LogDebugWithFields(component, message string, fields map[string]any) {
	slog.Default().Debug(message, buildArgs(component, fields)...)
}

func LogErrorWithFields(component, message string, fields map[string]any) {
	slog.Default().Error(message, buildArgs(component, fields)...)
}

func LogWarnWithFields(component, message string, fields map[string]any) {
	slog.Default().Warn(message, buildArgs(component, fields)...)
}

func LogTraceWithFields(component, message string, fields map[string]any) {
	if currentLevel.Load().(slog.Level) <= LevelTrace {
		slog.Default().Log(context.Background(), LevelTrace, message, buildArgs(component, fields)...)
	}
}
