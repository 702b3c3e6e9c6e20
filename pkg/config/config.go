// Package config loads and validates application configuration from YAML
// files with environment-variable overrides. It provides typed structs for
// every subsystem (Server, Postgres, Redis, Fetch, Lemma, Scoring, Queue).
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Postgres    PostgresConfig    `yaml:"postgres"`
	Redis       RedisConfig       `yaml:"redis"`
	Kafka       KafkaConfig       `yaml:"kafka"`
	Fetch       FetchConfig       `yaml:"fetch"`
	Lemma       LemmaConfig       `yaml:"lemma"`
	Scoring     ScoringConfig     `yaml:"scoring"`
	Queue       QueueConfig       `yaml:"queue"`
	Leaderboard LeaderboardConfig `yaml:"leaderboard"`
	Logging     LoggingConfig     `yaml:"logging"`
	Metrics     MetricsConfig     `yaml:"metrics"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
}

// PostgresConfig holds PostgreSQL connection parameters for the durable
// snapshot cache. When Host is empty the service falls back to the
// in-memory store.
type PostgresConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Database        string        `yaml:"database"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	SSLMode         string        `yaml:"sslMode"`
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
}

// DSN returns a lib/pq-compatible data source name.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

// RedisConfig holds Redis connection parameters for the leaderboard cache.
type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	PoolSize int           `yaml:"poolSize"`
	CacheTTL time.Duration `yaml:"cacheTTL"`
}

// KafkaConfig holds the optional score-event stream settings. Publishing is
// disabled when Brokers is empty.
type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

// Enabled reports whether score events should be published.
func (k KafkaConfig) Enabled() bool {
	return len(k.Brokers) > 0
}

// FetchConfig controls the external corpus fetch program.
type FetchConfig struct {
	Script      string        `yaml:"script"`
	DumpDir     string        `yaml:"dumpDir"`
	PostLimit   int           `yaml:"postLimit"`
	MinPosts    int           `yaml:"minPosts"`
	Timeout     time.Duration `yaml:"timeout"`
	MaxAttempts int           `yaml:"maxAttempts"`
}

// LemmaConfig controls the lemmatizer sidecar client.
type LemmaConfig struct {
	URL       string        `yaml:"url"`
	Timeout   time.Duration `yaml:"timeout"`
	MaxTokens int           `yaml:"maxTokens"`
}

// ScoringConfig holds the MTLD policy constants.
type ScoringConfig struct {
	TTRThreshold float64 `yaml:"ttrThreshold"`
	MinTokens    int     `yaml:"minTokens"`
}

// QueueConfig controls the scoring worker pool.
type QueueConfig struct {
	Workers    int           `yaml:"workers"`
	Capacity   int           `yaml:"capacity"`
	JobTimeout time.Duration `yaml:"jobTimeout"`
	Retention  time.Duration `yaml:"retention"`
}

// LeaderboardConfig controls leaderboard read limits.
type LeaderboardConfig struct {
	DefaultLimit int `yaml:"defaultLimit"`
	MaxLimit     int `yaml:"maxLimit"`
}

// LoggingConfig controls slog level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig controls the Prometheus scrape endpoint.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// Load reads the YAML file at path, applies defaults, environment overrides,
// and validation, and returns the resulting Config.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

// Default returns a Config populated with development defaults.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Postgres: PostgresConfig{
			Host:            "",
			Port:            5432,
			Database:        "lexdiv",
			User:            "lexdiv",
			Password:        "localdev",
			SSLMode:         "disable",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			Password: "",
			DB:       0,
			PoolSize: 10,
			CacheTTL: 30 * time.Second,
		},
		Kafka: KafkaConfig{
			Brokers: nil,
			Topic:   "score-events",
		},
		Fetch: FetchConfig{
			Script:      "./fetch_repo.sh",
			DumpDir:     "./account_dumps",
			PostLimit:   500,
			MinPosts:    50,
			Timeout:     2 * time.Minute,
			MaxAttempts: 3,
		},
		Lemma: LemmaConfig{
			URL:       "http://localhost:8090/lemmatize",
			Timeout:   2 * time.Minute,
			MaxTokens: 1_000_000,
		},
		Scoring: ScoringConfig{
			TTRThreshold: 0.72,
			MinTokens:    100,
		},
		Queue: QueueConfig{
			Workers:    4,
			Capacity:   64,
			JobTimeout: 5 * time.Minute,
			Retention:  30 * time.Minute,
		},
		Leaderboard: LeaderboardConfig{
			DefaultLimit: 50,
			MaxLimit:     200,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
		},
	}
}

// Validate checks invariants that would otherwise surface as runtime faults.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be in (0, 65535], got %d", c.Server.Port)
	}
	if c.Scoring.TTRThreshold <= 0 || c.Scoring.TTRThreshold >= 1 {
		return fmt.Errorf("scoring.ttrThreshold must be in (0, 1), got %g", c.Scoring.TTRThreshold)
	}
	if c.Scoring.MinTokens < 1 {
		return fmt.Errorf("scoring.minTokens must be positive, got %d", c.Scoring.MinTokens)
	}
	if c.Queue.Workers < 1 {
		return fmt.Errorf("queue.workers must be positive, got %d", c.Queue.Workers)
	}
	if c.Queue.Capacity < 1 {
		return fmt.Errorf("queue.capacity must be positive, got %d", c.Queue.Capacity)
	}
	if c.Fetch.MinPosts < 1 {
		return fmt.Errorf("fetch.minPosts must be positive, got %d", c.Fetch.MinPosts)
	}
	if c.Fetch.PostLimit < c.Fetch.MinPosts {
		return fmt.Errorf("fetch.postLimit (%d) must not be below fetch.minPosts (%d)",
			c.Fetch.PostLimit, c.Fetch.MinPosts)
	}
	if c.Leaderboard.MaxLimit < c.Leaderboard.DefaultLimit {
		return fmt.Errorf("leaderboard.maxLimit (%d) must not be below defaultLimit (%d)",
			c.Leaderboard.MaxLimit, c.Leaderboard.DefaultLimit)
	}
	return nil
}

// applyEnvOverrides reads LD_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("LD_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("LD_POSTGRES_HOST"); v != "" {
		cfg.Postgres.Host = v
	}
	if v := os.Getenv("LD_POSTGRES_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Postgres.Port = port
		}
	}
	if v := os.Getenv("LD_POSTGRES_DATABASE"); v != "" {
		cfg.Postgres.Database = v
	}
	if v := os.Getenv("LD_POSTGRES_USER"); v != "" {
		cfg.Postgres.User = v
	}
	if v := os.Getenv("LD_POSTGRES_PASSWORD"); v != "" {
		cfg.Postgres.Password = v
	}
	if v := os.Getenv("LD_POSTGRES_SSLMODE"); v != "" {
		cfg.Postgres.SSLMode = v
	}
	if v := os.Getenv("LD_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("LD_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("LD_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("LD_FETCH_SCRIPT"); v != "" {
		cfg.Fetch.Script = v
	}
	if v := os.Getenv("LD_FETCH_DUMP_DIR"); v != "" {
		cfg.Fetch.DumpDir = v
	}
	if v := os.Getenv("LD_LEMMA_URL"); v != "" {
		cfg.Lemma.URL = v
	}
	if v := os.Getenv("LD_QUEUE_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Queue.Workers = n
		}
	}
	if v := os.Getenv("LD_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("LD_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
}
