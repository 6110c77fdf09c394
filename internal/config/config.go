package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"ctchen222/nxn-tic-tac-toe/internal/game"
	"ctchen222/nxn-tic-tac-toe/internal/validator"
)

// Config holds the server settings read from the environment.
type Config struct {
	HTTPAddr     string        `validate:"required"`
	RedisAddr    string        `validate:"required,hostname_port"`
	SQLitePath   string        `validate:"required"`
	SessionTTL   time.Duration `validate:"gt=0"`
	JWTSecret    string        `validate:"required,min=16"`
	OTLPEndpoint string        `validate:"required_if=OTLPEnabled true"`
	OTLPEnabled  bool
	LogLevel     string        `validate:"oneof=debug info warn error"`
	LogFormat    string        `validate:"oneof=text json"`
	ThinkDelay   time.Duration `validate:"gte=0"`
	Parallelism  int           `validate:"gte=1,lte=64"`

	// DepthLimits maps board size to the hard search depth limit; 0 means unbounded.
	DepthLimits map[int]int `validate:"dive,keys,min=3,max=5,endkeys,gte=0"`
}

// Load reads the configuration from environment variables, falling back to
// defaults for anything unset, and validates the result.
func Load() (*Config, error) {
	return load(os.Getenv)
}

func load(getenv func(string) string) (*Config, error) {
	env := envReader{getenv: getenv}

	cfg := &Config{
		HTTPAddr:     env.str("HTTP_ADDR", ":8080"),
		RedisAddr:    env.str("REDIS_CONNSTRING", "localhost:6379"),
		SQLitePath:   env.str("SQLITE_PATH", "./scores.db"),
		SessionTTL:   env.duration("SESSION_TTL", 24*time.Hour),
		JWTSecret:    env.str("JWT_SECRET", "change-me-in-production"),
		OTLPEndpoint: env.str("OTEL_EXPORTER_OTLP_ENDPOINT", "otel-collector:4317"),
		OTLPEnabled:  env.boolean("OTEL_ENABLED", false),
		LogLevel:     env.str("LOG_LEVEL", "info"),
		LogFormat:    env.str("LOG_FORMAT", "text"),
		ThinkDelay:   env.duration("BOT_THINK_DELAY", 0),
		Parallelism:  env.integer("BOT_PARALLELISM", 1),
		DepthLimits:  make(map[int]int),
	}
	for size := game.MinSize; size <= game.MaxSize; size++ {
		def := 0
		if size == game.MaxSize {
			def = 6
		}
		cfg.DepthLimits[size] = env.integer(fmt.Sprintf("BOT_DEPTH_LIMIT_%d", size), def)
	}

	if env.err != nil {
		return nil, env.err
	}
	if err := validator.GetValidator().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// envReader collects the first parse error so Load can report it once.
type envReader struct {
	getenv func(string) string
	err    error
}

func (e *envReader) str(key, fallback string) string {
	if v := e.getenv(key); v != "" {
		return v
	}
	return fallback
}

func (e *envReader) integer(key string, fallback int) int {
	v := e.getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.fail(key, v, err)
		return fallback
	}
	return n
}

func (e *envReader) duration(key string, fallback time.Duration) time.Duration {
	v := e.getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.fail(key, v, err)
		return fallback
	}
	return d
}

func (e *envReader) boolean(key string, fallback bool) bool {
	v := e.getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		e.fail(key, v, err)
		return fallback
	}
	return b
}

func (e *envReader) fail(key, value string, err error) {
	if e.err == nil {
		e.err = fmt.Errorf("parse %s=%q: %w", key, value, err)
	}
}
