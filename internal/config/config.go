package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Wyydra/pairlink/internal/core/domain"
)

// Default configuration values.
const (
	DefaultAddr            = "127.0.0.1:9000"
	DefaultStaticDir       = "./static"
	DefaultLogLevel        = "info"
	DefaultLogFormat       = "console"
	DefaultMaxMessageSize  = 64 * 1024 // enough for an SDP with many candidates
	DefaultBroadcastBuffer = 64
	DefaultPongWait        = 60 * time.Second
	DefaultPingInterval    = (DefaultPongWait * 9) / 10
	DefaultWriteWait       = 10 * time.Second
	DefaultShutdownTimeout = 5 * time.Second
	DefaultBufferSize      = 4096
)

// Config holds the relay's runtime settings.
type Config struct {
	Addr      string
	StaticDir string

	LogLevel  string
	LogFormat string

	// AllowedOrigins restricts browser origins. Empty allows any origin.
	AllowedOrigins []string

	ReadBufferSize  int
	WriteBufferSize int
	MaxMessageSize  int64
	BroadcastBuffer int

	PingInterval    time.Duration
	PongWait        time.Duration
	WriteWait       time.Duration
	ShutdownTimeout time.Duration

	NotifyPeerLeft bool
	EchoToSender   bool
}

// Options carries values from command line flags. Zero values mean "not
// set" and fall through to the environment.
type Options struct {
	Addr            string
	StaticDir       string
	LogLevel        string
	LogFormat       string
	AllowedOrigins  []string
	MaxMessageSize  int64
	BroadcastBuffer int
	PingInterval    time.Duration
	PongWait        time.Duration
	WriteWait       time.Duration
	ShutdownTimeout time.Duration
	NotifyPeerLeft  *bool
	EchoToSender    *bool
}

// Default returns a Config populated with default values.
func Default() *Config {
	return &Config{
		Addr:            DefaultAddr,
		StaticDir:       DefaultStaticDir,
		LogLevel:        DefaultLogLevel,
		LogFormat:       DefaultLogFormat,
		ReadBufferSize:  DefaultBufferSize,
		WriteBufferSize: DefaultBufferSize,
		MaxMessageSize:  DefaultMaxMessageSize,
		BroadcastBuffer: DefaultBroadcastBuffer,
		PingInterval:    DefaultPingInterval,
		PongWait:        DefaultPongWait,
		WriteWait:       DefaultWriteWait,
		ShutdownTimeout: DefaultShutdownTimeout,
	}
}

// Load reads configuration with the following priority:
// 1. CLI flags (passed via Options)
// 2. Environment variables
// 3. Defaults
func Load(opts Options) (*Config, error) {
	return load(opts, os.LookupEnv)
}

func load(opts Options, env func(string) (string, bool)) (*Config, error) {
	cfg := Default()

	cfg.Addr = pickString(opts.Addr, env, "RELAY_ADDR", cfg.Addr)
	cfg.StaticDir = pickString(opts.StaticDir, env, "RELAY_STATIC_DIR", cfg.StaticDir)
	cfg.LogLevel = pickString(opts.LogLevel, env, "LOG_LEVEL", cfg.LogLevel)
	cfg.LogFormat = pickString(opts.LogFormat, env, "LOG_FORMAT", cfg.LogFormat)

	if len(opts.AllowedOrigins) > 0 {
		cfg.AllowedOrigins = splitList(strings.Join(opts.AllowedOrigins, ","))
	} else if v, ok := env("RELAY_ALLOWED_ORIGINS"); ok {
		cfg.AllowedOrigins = splitList(v)
	}

	var err error
	if cfg.MaxMessageSize, err = pickInt64(opts.MaxMessageSize, env, "RELAY_MAX_MESSAGE_SIZE", cfg.MaxMessageSize); err != nil {
		return nil, err
	}
	buffer, err := pickInt64(int64(opts.BroadcastBuffer), env, "RELAY_BROADCAST_BUFFER", int64(cfg.BroadcastBuffer))
	if err != nil {
		return nil, err
	}
	cfg.BroadcastBuffer = int(buffer)

	if cfg.PingInterval, err = pickDuration(opts.PingInterval, env, "RELAY_PING_INTERVAL", cfg.PingInterval); err != nil {
		return nil, err
	}
	if cfg.PongWait, err = pickDuration(opts.PongWait, env, "RELAY_PONG_WAIT", cfg.PongWait); err != nil {
		return nil, err
	}
	if cfg.WriteWait, err = pickDuration(opts.WriteWait, env, "RELAY_WRITE_WAIT", cfg.WriteWait); err != nil {
		return nil, err
	}
	if cfg.ShutdownTimeout, err = pickDuration(opts.ShutdownTimeout, env, "RELAY_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout); err != nil {
		return nil, err
	}

	if cfg.NotifyPeerLeft, err = pickBool(opts.NotifyPeerLeft, env, "RELAY_NOTIFY_PEER_LEFT", cfg.NotifyPeerLeft); err != nil {
		return nil, err
	}
	if cfg.EchoToSender, err = pickBool(opts.EchoToSender, env, "RELAY_ECHO_TO_SENDER", cfg.EchoToSender); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports the first setting that cannot work.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return invalid("listen address is empty")
	case c.MaxMessageSize <= 0:
		return invalid("max message size must be positive, got %d", c.MaxMessageSize)
	case c.BroadcastBuffer <= 0:
		return invalid("broadcast buffer must be positive, got %d", c.BroadcastBuffer)
	case c.ReadBufferSize <= 0 || c.WriteBufferSize <= 0:
		return invalid("socket buffer sizes must be positive")
	case c.PongWait <= 0:
		return invalid("pong wait must be positive, got %s", c.PongWait)
	case c.PingInterval <= 0 || c.PingInterval >= c.PongWait:
		return invalid("ping interval %s must be positive and shorter than pong wait %s", c.PingInterval, c.PongWait)
	case c.WriteWait <= 0:
		return invalid("write wait must be positive, got %s", c.WriteWait)
	case c.ShutdownTimeout <= 0:
		return invalid("shutdown timeout must be positive, got %s", c.ShutdownTimeout)
	}
	switch c.LogFormat {
	case "console", "json":
	default:
		return invalid("unknown log format %q", c.LogFormat)
	}
	return nil
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", domain.ErrInvalidConfig, fmt.Sprintf(format, args...))
}

func pickString(flag string, env func(string) (string, bool), key, def string) string {
	if flag != "" {
		return flag
	}
	if v, ok := env(key); ok && v != "" {
		return v
	}
	return def
}

func pickInt64(flag int64, env func(string) (string, bool), key string, def int64) (int64, error) {
	if flag != 0 {
		return flag, nil
	}
	v, ok := env(key)
	if !ok || v == "" {
		return def, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, invalid("%s: %v", key, err)
	}
	return n, nil
}

func pickDuration(flag time.Duration, env func(string) (string, bool), key string, def time.Duration) (time.Duration, error) {
	if flag != 0 {
		return flag, nil
	}
	v, ok := env(key)
	if !ok || v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, invalid("%s: %v", key, err)
	}
	return d, nil
}

func pickBool(flag *bool, env func(string) (string, bool), key string, def bool) (bool, error) {
	if flag != nil {
		return *flag, nil
	}
	v, ok := env(key)
	if !ok || v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, invalid("%s: %v", key, err)
	}
	return b, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
