package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/dotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

const (
	DefaultServiceName    = "redis-metrics"
	DefaultMaxConnections = 10
	DefaultPollInterval   = 10 * time.Second
	DefaultSlowlogMaxLen  = 128
)

type Config struct {
	Redis   RedisConfig
	Poll    PollConfig
	Log     LogConfig
	HTTP    HTTPConfig
	Service string `validate:"required"`
	// Once runs a single collection cycle and exits.
	Once bool
}

type RedisConfig struct {
	URL            string `validate:"omitempty,url"`
	CertPath       string
	MaxConnections int `validate:"gt=0"`
}

type PollConfig struct {
	Interval      time.Duration `validate:"gt=0"`
	SlowlogMaxLen int64         `validate:"gt=0"`
}

type LogConfig struct {
	Level     string `validate:"oneof=debug info warn error fatal"`
	File      string
	Resources bool
}

type HTTPConfig struct {
	Addr string `validate:"omitempty,hostname_port"`
}

// Load reads configuration from .env, the environment and finally the
// command-line args. Flags override environment values.
func Load(args []string) (*Config, error) {
	k := koanf.New(".")

	// Load .env file if it exists (ignore error if missing)
	_ = k.Load(file.Provider(".env"), dotenv.ParserEnv("", ".", envKey))

	// Blank variables do not mask values from .env.
	err := k.Load(env.ProviderWithValue("", ".", func(key, value string) (string, any) {
		if value == "" {
			return "", nil
		}
		return envKey(key), value
	}), nil)
	if err != nil {
		return nil, fmt.Errorf("loading env vars: %w", err)
	}

	cfg := &Config{
		Redis: RedisConfig{
			URL:            k.String("redis.url"),
			CertPath:       k.String("redis.cert.path"),
			MaxConnections: k.Int("redis.max.connections"),
		},
		Poll: PollConfig{
			SlowlogMaxLen: k.Int64("slowlog.max.len"),
		},
		Log: LogConfig{
			Level:     strings.ToLower(k.String("log.level")),
			File:      k.String("log.file"),
			Resources: k.Bool("log.resources"),
		},
		HTTP: HTTPConfig{
			Addr: k.String("http.addr"),
		},
		Service: k.String("service.name"),
	}

	// Apply defaults
	if cfg.Redis.MaxConnections == 0 {
		cfg.Redis.MaxConnections = DefaultMaxConnections
	}
	if k.String("slowlog.max.len") == "" {
		cfg.Poll.SlowlogMaxLen = DefaultSlowlogMaxLen
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Service == "" {
		cfg.Service = DefaultServiceName
	}

	intervalStr := k.String("poll.interval")
	if intervalStr == "" {
		cfg.Poll.Interval = DefaultPollInterval
	} else if cfg.Poll.Interval, err = parseInterval(intervalStr); err != nil {
		return nil, fmt.Errorf("parsing poll interval: %w", err)
	}

	if err := cfg.applyFlags(args); err != nil {
		return nil, err
	}

	return cfg, nil
}

// envKey maps REDIS_CERT_PATH to redis.cert.path.
func envKey(s string) string {
	return strings.ToLower(strings.ReplaceAll(s, "_", "."))
}

func (c *Config) applyFlags(args []string) error {
	fs := pflag.NewFlagSet("redis-metrics", pflag.ContinueOnError)
	url := fs.String("redis-url", "", "Redis connection URL")
	certPath := fs.String("redis-cert-path", "", "path to the base64-encoded CA certificate")
	interval := fs.Duration("interval", 0, "polling interval")
	httpAddr := fs.String("http-addr", "", "address for the health and metrics endpoint")
	once := fs.Bool("once", false, "collect and log a single cycle, then exit")

	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("parsing flags: %w", err)
	}

	if fs.Changed("redis-url") {
		c.Redis.URL = *url
	}
	if fs.Changed("redis-cert-path") {
		c.Redis.CertPath = *certPath
	}
	if fs.Changed("interval") {
		c.Poll.Interval = *interval
	}
	if fs.Changed("http-addr") {
		c.HTTP.Addr = *httpAddr
	}
	c.Once = *once
	return nil
}

// parseInterval accepts a Go duration ("30s") or a bare number of seconds.
func parseInterval(s string) (time.Duration, error) {
	if d, err := time.ParseDuration(s); err == nil {
		return d, nil
	}
	secs, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid interval %q", s)
	}
	return time.Duration(secs * float64(time.Second)), nil
}
