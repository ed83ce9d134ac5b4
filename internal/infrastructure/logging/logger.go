package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/helioshome/helios-core/internal/infrastructure/config"
)

const serviceName = "helios"

// Logger is the structured logger handed to every component. It embeds
// *slog.Logger, so Debug/Info/Warn/Error take a message followed by
// alternating key/value pairs. Safe for concurrent use.
type Logger struct {
	*slog.Logger
}

// New builds a Logger from the logging section of the configuration.
// Format selects JSON or text output, level filters below the given
// severity, and every record carries service and version attributes.
func New(cfg config.LoggingConfig, version string) *Logger {
	opts := &slog.HandlerOptions{Level: levelFor(cfg.Level)}

	var h slog.Handler
	if strings.EqualFold(cfg.Format, "text") {
		h = slog.NewTextHandler(destFor(cfg.Output), opts)
	} else {
		h = slog.NewJSONHandler(destFor(cfg.Output), opts)
	}

	h = h.WithAttrs([]slog.Attr{
		slog.String("service", serviceName),
		slog.String("version", version),
	})
	return &Logger{Logger: slog.New(h)}
}

// Default returns a JSON stdout logger at info level for the window
// between process start and config load.
func Default() *Logger {
	return New(config.LoggingConfig{Level: "info", Format: "json", Output: "stdout"}, "dev")
}

// With returns a child Logger carrying the given attributes on every
// record, typically a component tag:
//
//	pollerLog := log.With("component", "inverter")
func (l *Logger) With(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...)}
}

func destFor(output string) io.Writer {
	if strings.EqualFold(output, "stderr") {
		return os.Stderr
	}
	return os.Stdout
}

var levelNames = map[string]slog.Level{
	"debug":   slog.LevelDebug,
	"info":    slog.LevelInfo,
	"warn":    slog.LevelWarn,
	"warning": slog.LevelWarn,
	"error":   slog.LevelError,
}

// levelFor maps a config level string to a slog.Level, defaulting to
// info for anything unrecognised.
func levelFor(name string) slog.Level {
	if lvl, ok := levelNames[strings.ToLower(name)]; ok {
		return lvl
	}
	return slog.LevelInfo
}
