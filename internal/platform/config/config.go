// Package config loads worker configuration from an optional YAML file and
// HOPE_* environment variables. Environment variables win over the file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	pkgstrings "hope/pkg/platform/strings"
)

type Config struct {
	Server        Server        `yaml:"server"`
	Database      Database      `yaml:"database"`
	Redis         RedisConfig   `yaml:"redis"`
	Kafka         Kafka         `yaml:"kafka"`
	Biometric     Biometric     `yaml:"biometric"`
	Deduplication Deduplication `yaml:"deduplication"`
	Log           Log           `yaml:"log"`
	Tracing       Tracing       `yaml:"tracing"`
}

// Server is the ops HTTP server exposing /healthz and /metrics.
type Server struct {
	Addr            string        `yaml:"addr"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// Database selects the entity store. An empty URL runs on the in-memory store.
type Database struct {
	URL             string        `yaml:"url"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	TxTimeout       time.Duration `yaml:"tx_timeout"`
	Migrate         bool          `yaml:"migrate"`
}

// RedisConfig backs the program run lock. An empty URL disables the lock.
type RedisConfig struct {
	URL          string        `yaml:"url"`
	PoolSize     int           `yaml:"pool_size"`
	MinIdleConns int           `yaml:"min_idle_conns"`
	DialTimeout  time.Duration `yaml:"dial_timeout"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	LockTTL      time.Duration `yaml:"lock_ttl"`
}

// Kafka carries job intake and ticket notifications. Without brokers the
// worker does not consume jobs and notifications stay in memory.
type Kafka struct {
	Brokers       []string      `yaml:"brokers"`
	ClientID      string        `yaml:"client_id"`
	JobsTopic     string        `yaml:"jobs_topic"`
	TicketsTopic  string        `yaml:"tickets_topic"`
	ConsumerGroup string        `yaml:"consumer_group"`
	Linger        time.Duration `yaml:"linger"`
}

// Biometric configures the external deduplication engine client. An empty
// BaseURL disables biometric deduplication.
type Biometric struct {
	BaseURL        string        `yaml:"base_url"`
	APIKey         string        `yaml:"api_key"`
	Timeout        time.Duration `yaml:"timeout"`
	MaxRetries     uint64        `yaml:"max_retries"`
	InitialBackoff time.Duration `yaml:"initial_backoff"`
	MaxBackoff     time.Duration `yaml:"max_backoff"`

	// BreakerThreshold is the number of consecutive failures that opens the
	// circuit and disables retries.
	BreakerThreshold int `yaml:"breaker_threshold"`
}

type Deduplication struct {
	DuplicateThreshold  float64 `yaml:"duplicate_threshold"`
	SimilarityThreshold float64 `yaml:"similarity_threshold"`
	UploadConcurrency   int     `yaml:"upload_concurrency"`
}

type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Tracing selects the span exporter: "none", "stdout" or "otlp".
type Tracing struct {
	Exporter     string  `yaml:"exporter"`
	ServiceName  string  `yaml:"service_name"`
	OTLPEndpoint string  `yaml:"otlp_endpoint"`
	Insecure     bool    `yaml:"insecure"`
	SampleRatio  float64 `yaml:"sample_ratio"`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		Server: Server{
			Addr:            ":8080",
			ShutdownTimeout: 10 * time.Second,
		},
		Database: Database{
			MaxOpenConns:    10,
			MaxIdleConns:    5,
			ConnMaxLifetime: 30 * time.Minute,
			TxTimeout:       30 * time.Second,
		},
		Redis: RedisConfig{
			PoolSize:     10,
			MinIdleConns: 2,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
			LockTTL:      15 * time.Minute,
		},
		Kafka: Kafka{
			ClientID:      "hope-dedup-worker",
			JobsTopic:     "hope.dedup.jobs",
			TicketsTopic:  "hope.adjudication.tickets",
			ConsumerGroup: "hope-dedup-worker",
			Linger:        5 * time.Millisecond,
		},
		Biometric: Biometric{
			Timeout:          30 * time.Second,
			MaxRetries:       3,
			InitialBackoff:   500 * time.Millisecond,
			MaxBackoff:       10 * time.Second,
			BreakerThreshold: 5,
		},
		Deduplication: Deduplication{
			DuplicateThreshold:  0.9,
			SimilarityThreshold: 0.6,
			UploadConcurrency:   4,
		},
		Log: Log{
			Level:  "info",
			Format: "json",
		},
		Tracing: Tracing{
			Exporter:    "none",
			ServiceName: "hope-dedup-worker",
			SampleRatio: 1,
		},
	}
}

// Load reads path (if non-empty) over the defaults, then applies a .env file
// and HOPE_* environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	// A missing .env file is not an error.
	_ = godotenv.Load()
	if err := applyEnv(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return errors.New("server address is required")
	}
	d := c.Deduplication
	if d.SimilarityThreshold <= 0 || d.SimilarityThreshold > 1 || d.DuplicateThreshold <= 0 || d.DuplicateThreshold > 1 {
		return errors.New("deduplication thresholds must be in (0, 1]")
	}
	if d.SimilarityThreshold > d.DuplicateThreshold {
		return errors.New("similarity threshold must not exceed duplicate threshold")
	}
	if d.UploadConcurrency < 1 {
		return errors.New("upload concurrency must be at least 1")
	}
	if len(c.Kafka.Brokers) > 0 && (c.Kafka.JobsTopic == "" || c.Kafka.TicketsTopic == "") {
		return errors.New("kafka topics are required when brokers are set")
	}
	switch c.Tracing.Exporter {
	case "", "none", "stdout":
	case "otlp":
		if c.Tracing.OTLPEndpoint == "" {
			return errors.New("otlp exporter requires an endpoint")
		}
	default:
		return fmt.Errorf("unknown tracing exporter %q", c.Tracing.Exporter)
	}
	return nil
}

func applyEnv(cfg *Config) error {
	setString(&cfg.Server.Addr, "HOPE_ADDR")
	setString(&cfg.Database.URL, "HOPE_DATABASE_URL")
	setString(&cfg.Redis.URL, "HOPE_REDIS_URL")
	if v := os.Getenv("HOPE_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = pkgstrings.SplitList(v)
	}
	setString(&cfg.Kafka.JobsTopic, "HOPE_KAFKA_JOBS_TOPIC")
	setString(&cfg.Kafka.TicketsTopic, "HOPE_KAFKA_TICKETS_TOPIC")
	setString(&cfg.Kafka.ConsumerGroup, "HOPE_KAFKA_CONSUMER_GROUP")
	setString(&cfg.Biometric.BaseURL, "HOPE_BIOMETRIC_URL")
	setString(&cfg.Biometric.APIKey, "HOPE_BIOMETRIC_API_KEY")
	setString(&cfg.Log.Level, "HOPE_LOG_LEVEL")
	setString(&cfg.Log.Format, "HOPE_LOG_FORMAT")
	setString(&cfg.Tracing.Exporter, "HOPE_TRACING_EXPORTER")
	setString(&cfg.Tracing.OTLPEndpoint, "HOPE_OTLP_ENDPOINT")

	if v := os.Getenv("HOPE_DATABASE_MIGRATE"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("HOPE_DATABASE_MIGRATE: %w", err)
		}
		cfg.Database.Migrate = b
	}
	if err := setDuration(&cfg.Biometric.Timeout, "HOPE_BIOMETRIC_TIMEOUT"); err != nil {
		return err
	}
	if v := os.Getenv("HOPE_BIOMETRIC_MAX_RETRIES"); v != "" {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return fmt.Errorf("HOPE_BIOMETRIC_MAX_RETRIES: %w", err)
		}
		cfg.Biometric.MaxRetries = n
	}
	if err := setFloat(&cfg.Deduplication.DuplicateThreshold, "HOPE_DUPLICATE_THRESHOLD"); err != nil {
		return err
	}
	if err := setFloat(&cfg.Deduplication.SimilarityThreshold, "HOPE_SIMILARITY_THRESHOLD"); err != nil {
		return err
	}
	if v := os.Getenv("HOPE_UPLOAD_CONCURRENCY"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("HOPE_UPLOAD_CONCURRENCY: %w", err)
		}
		cfg.Deduplication.UploadConcurrency = n
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = d
	return nil
}

func setFloat(dst *float64, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = f
	return nil
}
