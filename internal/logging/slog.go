package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	sdklog "go.opentelemetry.io/otel/sdk/log"
)

// otelScope names the instrumentation scope of bridged records.
const otelScope = "atlo"

// Swapped in tests.
var (
	osStdout io.Writer = os.Stdout
	osPipe             = os.Pipe
)

// SlogManager owns the process-wide slog.Logger with optional OTel output.
type SlogManager struct {
	logger  *slog.Logger
	level   slog.Level
	console io.Writer

	// OTel provider for flushing
	logProvider *sdklog.LoggerProvider
}

// NewSlogManager creates a new slog-based logging manager.
func NewSlogManager() *SlogManager {
	return &SlogManager{level: slog.LevelInfo}
}

// parseLevel converts a string log level to slog.Level.
func parseLevel(level string) slog.Level {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// SetConsole redirects the console handler, stdout by default. Commands that
// print results on stdout send their logs to stderr instead.
func (m *SlogManager) SetConsole(w io.Writer) {
	m.console = w
}

// Setup initializes the logging system. Every record goes to the console,
// to file when one is given and to the OTel pipeline when provider is
// non-nil. A non-nil attrs adds its attributes to every record.
func (m *SlogManager) Setup(file io.Writer, level string, provider *sdklog.LoggerProvider, attrs ContextProvider) {
	lvl := parseLevel(level)
	m.level = lvl
	m.logProvider = provider

	handlerOpts := &slog.HandlerOptions{
		Level: lvl,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				if t, ok := a.Value.Any().(time.Time); ok {
					a.Value = slog.StringValue(t.UTC().Format(time.RFC3339))
				}
			}
			return a
		},
	}

	console := m.console
	if console == nil {
		console = osStdout
	}
	handlers := []slog.Handler{slog.NewTextHandler(console, handlerOpts)}

	if file != nil {
		handlers = append(handlers, slog.NewTextHandler(file, handlerOpts))
	}

	if provider != nil {
		handlers = append(handlers, otelslog.NewHandler(otelScope, otelslog.WithLoggerProvider(provider)))
	}

	var handler slog.Handler = NewMultiHandler(handlers...)
	if attrs != nil {
		handler = NewContextHandler(handler, attrs)
	}

	m.logger = slog.New(handler)
	m.logger.Info("Logging initialized", "level", level)
}

// Logger returns the configured slog.Logger.
func (m *SlogManager) Logger() *slog.Logger {
	if m.logger == nil {
		return slog.Default()
	}
	return m.logger
}

// Flush forces a flush of OTel logs if available.
func (m *SlogManager) Flush(ctx context.Context) error {
	if m.logProvider != nil {
		return m.logProvider.ForceFlush(ctx)
	}
	return nil
}

// Level reports the level set by the last Setup.
func (m *SlogManager) Level() slog.Level {
	return m.level
}

// Component returns a child logger tagged with the component name.
func (m *SlogManager) Component(name string) *slog.Logger {
	return m.Logger().With("component", name)
}
