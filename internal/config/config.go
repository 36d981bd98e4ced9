package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/dotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Server    ServerConfig
	Dataset   DatasetConfig
	Memory    MemoryConfig
	Context   ContextConfig
	Model     ModelConfig
	Session   SessionConfig
	DB        DBConfig
	Redis     RedisConfig
	RateLimit RateLimitConfig
	CORS      CORSConfig
	Log       LogConfig
}

type ServerConfig struct {
	Host string
	Port int
}

// DatasetConfig controls how uploaded datasets are summarized.
type DatasetConfig struct {
	SampleSize int
}

// MemoryConfig bounds the per-session conversation log.
type MemoryConfig struct {
	MaxTurns    int
	RedisTTLSec int
}

// ContextConfig bounds what the assembler may send per model call.
type ContextConfig struct {
	MaxSize int
}

type ModelConfig struct {
	Provider string // "openai" or "mock"
	Endpoint string
	APIKey   string
	Name     string
	Timeout  time.Duration
}

type SessionConfig struct {
	InactivityTimeout time.Duration
}

// DBConfig is optional; when Host is empty the turn archive is disabled.
type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
	MaxConns int32
}

func (c DBConfig) Enabled() bool {
	return c.Host != ""
}

func (c DBConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Name, c.SSLMode)
}

// RedisConfig is optional; when Host is empty the conversation mirror and
// the rate limiter are disabled.
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

func (c RedisConfig) Enabled() bool {
	return c.Host != ""
}

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type RateLimitConfig struct {
	MaxReqs   int
	WindowSec int
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

func Load() (*Config, error) {
	k := koanf.New(".")

	// Load .env file if it exists (ignore error if missing)
	_ = k.Load(file.Provider(".env"), dotenv.Parser())

	// Load environment variables (override .env)
	err := k.Load(env.Provider("", ".", func(s string) string {
		return strings.ToLower(strings.ReplaceAll(s, "_", "."))
	}), nil)
	if err != nil {
		return nil, fmt.Errorf("loading env vars: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Host: k.String("server.host"),
			Port: k.Int("server.port"),
		},
		Dataset: DatasetConfig{
			SampleSize: k.Int("dataset.sample.size"),
		},
		Memory: MemoryConfig{
			MaxTurns:    k.Int("memory.max.turns"),
			RedisTTLSec: k.Int("memory.redis.ttl.sec"),
		},
		Context: ContextConfig{
			MaxSize: k.Int("context.max.size"),
		},
		Model: ModelConfig{
			Provider: k.String("model.provider"),
			Endpoint: k.String("model.endpoint"),
			APIKey:   k.String("model.api.key"),
			Name:     k.String("model.name"),
		},
		DB: DBConfig{
			Host:     k.String("db.host"),
			Port:     k.Int("db.port"),
			User:     k.String("db.user"),
			Password: k.String("db.password"),
			Name:     k.String("db.name"),
			SSLMode:  k.String("db.sslmode"),
			MaxConns: int32(k.Int("db.max.conns")),
		},
		Redis: RedisConfig{
			Host:     k.String("redis.host"),
			Port:     k.Int("redis.port"),
			Password: k.String("redis.password"),
			DB:       k.Int("redis.db"),
		},
		RateLimit: RateLimitConfig{
			MaxReqs:   k.Int("ratelimit.max.reqs"),
			WindowSec: k.Int("ratelimit.window.sec"),
		},
		Log: LogConfig{
			Level:  k.String("log.level"),
			Format: k.String("log.format"),
		},
	}

	if origins := k.String("cors.allowed.origins"); origins != "" {
		for _, o := range strings.Split(origins, ",") {
			if o = strings.TrimSpace(o); o != "" {
				cfg.CORS.AllowedOrigins = append(cfg.CORS.AllowedOrigins, o)
			}
		}
	}

	// Apply defaults
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Dataset.SampleSize == 0 {
		cfg.Dataset.SampleSize = 100
	}
	if cfg.Memory.MaxTurns == 0 {
		cfg.Memory.MaxTurns = 10
	}
	if cfg.Memory.RedisTTLSec == 0 {
		cfg.Memory.RedisTTLSec = 86400
	}
	if cfg.Context.MaxSize == 0 {
		cfg.Context.MaxSize = 4000
	}
	if cfg.Model.Provider == "" {
		cfg.Model.Provider = "openai"
	}
	if cfg.Model.Endpoint == "" {
		cfg.Model.Endpoint = "https://api.openai.com/v1/chat/completions"
	}
	if cfg.Model.Name == "" {
		cfg.Model.Name = "gpt-4o-mini"
	}
	if cfg.DB.Port == 0 {
		cfg.DB.Port = 5432
	}
	if cfg.DB.User == "" {
		cfg.DB.User = "datasen"
	}
	if cfg.DB.Name == "" {
		cfg.DB.Name = "datasen"
	}
	if cfg.DB.SSLMode == "" {
		cfg.DB.SSLMode = "disable"
	}
	if cfg.DB.MaxConns == 0 {
		cfg.DB.MaxConns = 10
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.RateLimit.MaxReqs == 0 {
		cfg.RateLimit.MaxReqs = 30
	}
	if cfg.RateLimit.WindowSec == 0 {
		cfg.RateLimit.WindowSec = 60
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}

	// Parse durations
	modelTimeoutStr := k.String("model.timeout")
	if modelTimeoutStr == "" {
		modelTimeoutStr = "60s"
	}
	cfg.Model.Timeout, err = time.ParseDuration(modelTimeoutStr)
	if err != nil {
		return nil, fmt.Errorf("parsing model timeout: %w", err)
	}

	inactivityStr := k.String("session.inactivity.timeout")
	if inactivityStr == "" {
		inactivityStr = "30m"
	}
	cfg.Session.InactivityTimeout, err = time.ParseDuration(inactivityStr)
	if err != nil {
		return nil, fmt.Errorf("parsing session inactivity timeout: %w", err)
	}

	return cfg, nil
}
