package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	"github.com/atlo/dashboard/internal/config"
	"github.com/atlo/dashboard/internal/logging"
	intOtel "github.com/atlo/dashboard/internal/otel"
	"github.com/atlo/dashboard/internal/server"
)

// module defs - BuildDate can be set at build time via ldflags
var (
	CurrentVersion string = "0.0.1"
	BuildDate      string = "unknown"

	AppName string = "atlo"
)

var (
	// SlogManager handles all slog-based logging
	SlogManager *logging.SlogManager

	// Logger is the slog logger (convenience reference)
	Logger *slog.Logger

	// ZLogger backs the database manager and the intent dispatcher
	ZLogger zerolog.Logger

	LogFile *os.File

	// OTelProvider exports slog records when otel.enabled is set
	OTelProvider *intOtel.Provider

	SessionStartTime time.Time = time.Now()

	// activeServer is set while serve runs so log lines carry the live
	// session count.
	activeServer atomic.Pointer[server.Server]
)

const usage = `usage: atlo <command> [args]

commands:
  serve                            run the dashboard HTTP server
  sync [after] [before]            fetch activities from Strava into the store
  render [type]                    build routes and print the fitted camera
  card <out.png> [type]            render a route card poster
  export <geojson|kml> <out> [type]  write routes to a file
  version                          print the version`

func main() {
	args := os.Args[1:]
	if len(args) == 0 {
		fmt.Println(usage)
		os.Exit(2)
	}

	if err := setup(strings.ToLower(args[0])); err != nil {
		fmt.Fprintf(os.Stderr, "atlo: %v\n", err)
		os.Exit(1)
	}
	defer closeLogs()

	var err error
	switch strings.ToLower(args[0]) {
	case "serve":
		err = serve()
	case "sync":
		err = syncActivities(args[1:])
	case "render":
		err = render(args[1:])
	case "card":
		err = writeCard(args[1:])
	case "export":
		err = export(args[1:])
	case "version":
		fmt.Printf("%s %s (%s)\n", AppName, CurrentVersion, BuildDate)
	default:
		fmt.Println(usage)
		err = fmt.Errorf("unknown command %q", args[0])
	}
	if err != nil {
		Logger.Error("Command failed", "command", args[0], "error", err)
		fmt.Fprintf(os.Stderr, "atlo: %v\n", err)
		closeLogs()
		os.Exit(1)
	}
}

// configDir is where atlo.cfg.json is looked up.
func configDir() string {
	if dir := os.Getenv("ATLO_CONFIG_DIR"); dir != "" {
		return dir
	}
	return "."
}

// setup loads the config, opens the session log file and starts the OTel
// log pipeline when enabled. Only serve logs to stdout; the other commands
// print their results there and log to stderr.
func setup(command string) error {
	SlogManager = logging.NewSlogManager()
	if command != "serve" {
		SlogManager.SetConsole(os.Stderr)
	}
	SlogManager.Setup(nil, "info", nil, nil)
	Logger = SlogManager.Logger()

	if err := config.Load(configDir()); err != nil {
		Logger.Warn("Failed to load config, using defaults!", "error", err)
	}

	level := viper.GetString("logLevel")
	var file io.Writer
	if f, err := openLogFile(viper.GetString("logsDir")); err != nil {
		Logger.Warn("Failed to open log file, logging to console only", "error", err)
	} else {
		LogFile = f
		file = f
	}

	otelCfg := config.GetOTelConfig()
	if otelCfg.Enabled {
		provider, err := intOtel.New(intOtel.Config{
			Enabled:      otelCfg.Enabled,
			ServiceName:  otelCfg.ServiceName,
			BatchTimeout: otelCfg.BatchTimeout,
			LogWriter:    file,
			Endpoint:     otelCfg.Endpoint,
			Insecure:     otelCfg.Insecure,
		})
		if err != nil {
			Logger.Error("Failed to initialize OTel provider", "error", err)
		} else {
			OTelProvider = provider
			Logger.Info("OTel provider initialized", "endpoint", otelCfg.Endpoint)
		}
	}

	var otelLogProvider *sdklog.LoggerProvider
	if OTelProvider != nil {
		otelLogProvider = OTelProvider.LoggerProvider()
	}
	SlogManager.Setup(file, level, otelLogProvider, contextAttrs)
	Logger = SlogManager.Logger()

	out := file
	if out == nil {
		out = os.Stderr
	}
	zlevel, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		zlevel = zerolog.InfoLevel
	}
	ZLogger = zerolog.New(out).Level(zlevel).With().Timestamp().Logger()

	Logger.Info("Starting up", "version", CurrentVersion, "build", BuildDate)
	return nil
}

func openLogFile(dir string) (*os.File, error) {
	if dir == "" {
		return nil, fmt.Errorf("logsDir not set")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	path := logging.LogFilePath(dir, AppName, SessionStartTime)
	if _, err := os.Stat(path); err == nil {
		_ = os.Rename(path, path+".old")
	}
	return os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
}

func closeLogs() {
	if OTelProvider != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := OTelProvider.Shutdown(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "atlo: %v\n", err)
		}
		cancel()
		OTelProvider = nil
	}
	if LogFile != nil {
		_ = LogFile.Close()
		LogFile = nil
	}
}

func contextAttrs() []slog.Attr {
	srv := activeServer.Load()
	if srv == nil {
		return nil
	}
	return []slog.Attr{slog.Int("sessions", srv.Sessions())}
}
