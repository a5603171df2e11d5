package config

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/rakunlabs/chu"
	"github.com/rakunlabs/chu/loader/loaderenv"
	"github.com/rakunlabs/logi"
	"github.com/rakunlabs/tell"
	str2duration "github.com/xhit/go-str2duration/v2"
)

var Service = ""

type Config struct {
	LogLevel string `cfg:"log_level,no_prefix" default:"info"`

	// Manifest is the pipeline description file. The positional CLI
	// argument overrides it.
	Manifest string `cfg:"manifest"`

	Runtime   Runtime     `cfg:"runtime"`
	Server    Server      `cfg:"server"`
	Auth      Auth        `cfg:"auth"`
	Telemetry tell.Config `cfg:"telemetry,noprefix"`
}

type Runtime struct {
	// RateHz is the target tick rate of the scheduler.
	RateHz float64 `cfg:"rate_hz" default:"10"`

	// Iterations stops the scheduler after this many ticks; zero runs
	// until a termination signal.
	Iterations uint64 `cfg:"iterations"`

	// BlockPaths are extra artifact search directories, consulted
	// before the platform default.
	BlockPaths []string `cfg:"block_paths"`
}

type Server struct {
	BasePath string `cfg:"base_path"`

	Port string `cfg:"port" default:"8080"`
	Host string `cfg:"host"`

	// WebDir is the static asset bundle served on / and /assets.
	WebDir string `cfg:"web_dir" default:"web"`

	// DashboardFile persists the dashboard layout blob.
	DashboardFile string `cfg:"dashboard_file" default:"dashboard.json"`

	// RequestTimeout bounds each request's handling. Human-readable
	// durations are accepted ("30s", "2m").
	RequestTimeout string `cfg:"request_timeout" default:"30s"`

	// LogBufferSize is the capacity of the in-memory log ring served
	// on the logs endpoint.
	LogBufferSize int `cfg:"log_buffer_size" default:"512"`
}

type Auth struct {
	Username string `cfg:"username"`
	Password string `cfg:"password" log:"-"`

	// TokenTTL is the bearer token lifetime ("24h", "1d", "90m").
	TokenTTL string `cfg:"token_ttl" default:"24h"`
}

func Load(ctx context.Context, name string) (*Config, error) {
	var cfg Config
	if err := chu.Load(ctx, name, &cfg, chu.WithLoaderOption(loaderenv.New(loaderenv.WithPrefix("EDGEFLOW_")))); err != nil {
		return nil, err
	}

	if err := logi.SetLogLevel(cfg.LogLevel); err != nil {
		return nil, fmt.Errorf("set log level %s: %w", cfg.LogLevel, err)
	}

	slog.Info("loaded configuration", "config", chu.MarshalMap(cfg))

	return &cfg, nil
}

// Duration parses a human-readable duration string, falling back to def
// when the string is empty or malformed.
func Duration(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}

	d, err := str2duration.ParseDuration(s)
	if err != nil {
		slog.Warn("invalid duration, using default", "value", s, "default", def)
		return def
	}

	return d
}
