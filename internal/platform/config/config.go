// Package config loads process configuration: built-in defaults, overlaid by
// an optional YAML file, overlaid by SHIELDVAULT_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Store drivers.
const (
	DriverMemory   = "memory"
	DriverRedis    = "redis"
	DriverPostgres = "postgres"
	DriverPgx      = "pgx"
	DriverSQLite   = "sqlite"
)

// Audit sinks.
const (
	SinkLog      = "log"
	SinkMemory   = "memory"
	SinkKafka    = "kafka"
	SinkPostgres = "postgres"
)

// Config is the root configuration document.
type Config struct {
	Server ServerConfig `yaml:"server"`
	Store  StoreConfig  `yaml:"store"`
	Redis  RedisConfig  `yaml:"redis"`
	Audit  AuditConfig  `yaml:"audit"`
	Log    LogConfig    `yaml:"log"`
}

// ServerConfig captures HTTP and gRPC listener configuration.
type ServerConfig struct {
	HTTPAddr        string        `yaml:"http_addr"`
	GRPCAddr        string        `yaml:"grpc_addr"`
	JWTSigningKey   string        `yaml:"jwt_signing_key"`
	JWTIssuer       string        `yaml:"jwt_issuer"`
	JWTAudience     string        `yaml:"jwt_audience"`
	TokenTTL        time.Duration `yaml:"token_ttl"`
	OperatorToken   string        `yaml:"operator_token"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// StoreConfig selects and tunes the state backend.
type StoreConfig struct {
	Driver          string        `yaml:"driver"`
	DSN             string        `yaml:"dsn"`
	KeyPrefix       string        `yaml:"key_prefix"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// RedisConfig configures the Redis client used by the redis store driver.
type RedisConfig struct {
	URL          string        `yaml:"url"`
	PoolSize     int           `yaml:"pool_size"`
	MinIdleConns int           `yaml:"min_idle_conns"`
	DialTimeout  time.Duration `yaml:"dial_timeout"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// AuditConfig selects where audit events go.
type AuditConfig struct {
	Sink              string        `yaml:"sink"`
	Brokers           []string      `yaml:"brokers"`
	Topic             string        `yaml:"topic"`
	Partitions        int32         `yaml:"partitions"`
	ReplicationFactor int16         `yaml:"replication_factor"`
	BufferSize        int           `yaml:"buffer_size"`
	AppendTimeout     time.Duration `yaml:"append_timeout"`
	DrainTimeout      time.Duration `yaml:"drain_timeout"`
}

// LogConfig controls the process logger.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the built-in configuration: in-memory store, log audit
// sink, development signing key.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			HTTPAddr:        ":8080",
			GRPCAddr:        ":9090",
			JWTSigningKey:   "dev-secret-key-change-in-production",
			JWTIssuer:       "shieldvault",
			JWTAudience:     "shieldvault",
			TokenTTL:        15 * time.Minute,
			ShutdownTimeout: 10 * time.Second,
		},
		Store: StoreConfig{
			Driver:          DriverMemory,
			KeyPrefix:       "shieldvault:",
			MaxOpenConns:    10,
			MaxIdleConns:    5,
			ConnMaxLifetime: 30 * time.Minute,
		},
		Redis: RedisConfig{
			PoolSize:     10,
			MinIdleConns: 2,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		Audit: AuditConfig{
			Sink:              SinkLog,
			Topic:             "shieldvault.audit",
			Partitions:        1,
			ReplicationFactor: 1,
			BufferSize:        1024,
			AppendTimeout:     5 * time.Second,
			DrainTimeout:      10 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load reads path over the defaults, applies environment overrides and
// validates the result. An empty path or a missing file yields defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		case errors.Is(err, os.ErrNotExist):
		default:
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	setString := func(name string, dst *string) {
		if v, ok := os.LookupEnv(name); ok {
			*dst = v
		}
	}
	setString("SHIELDVAULT_HTTP_ADDR", &c.Server.HTTPAddr)
	setString("SHIELDVAULT_GRPC_ADDR", &c.Server.GRPCAddr)
	setString("SHIELDVAULT_JWT_SIGNING_KEY", &c.Server.JWTSigningKey)
	setString("SHIELDVAULT_JWT_ISSUER", &c.Server.JWTIssuer)
	setString("SHIELDVAULT_JWT_AUDIENCE", &c.Server.JWTAudience)
	setString("SHIELDVAULT_OPERATOR_TOKEN", &c.Server.OperatorToken)
	setString("SHIELDVAULT_STORE_DRIVER", &c.Store.Driver)
	setString("SHIELDVAULT_STORE_DSN", &c.Store.DSN)
	setString("SHIELDVAULT_STORE_KEY_PREFIX", &c.Store.KeyPrefix)
	setString("SHIELDVAULT_REDIS_URL", &c.Redis.URL)
	setString("SHIELDVAULT_AUDIT_SINK", &c.Audit.Sink)
	setString("SHIELDVAULT_AUDIT_TOPIC", &c.Audit.Topic)
	setString("SHIELDVAULT_LOG_LEVEL", &c.Log.Level)
	setString("SHIELDVAULT_LOG_FORMAT", &c.Log.Format)

	if v, ok := os.LookupEnv("SHIELDVAULT_KAFKA_BROKERS"); ok {
		c.Audit.Brokers = splitList(v)
	}
	if v, ok := os.LookupEnv("SHIELDVAULT_TOKEN_TTL"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("SHIELDVAULT_TOKEN_TTL: %w", err)
		}
		c.Server.TokenTTL = d
	}
	if v, ok := os.LookupEnv("SHIELDVAULT_AUDIT_APPEND_TIMEOUT"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("SHIELDVAULT_AUDIT_APPEND_TIMEOUT: %w", err)
		}
		c.Audit.AppendTimeout = d
	}
	if v, ok := os.LookupEnv("SHIELDVAULT_AUDIT_BUFFER_SIZE"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("SHIELDVAULT_AUDIT_BUFFER_SIZE: %w", err)
		}
		c.Audit.BufferSize = n
	}
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Validate checks cross-field consistency.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.HTTPAddr == "" && c.Server.GRPCAddr == "" {
		errs = append(errs, errors.New("server: at least one of http_addr or grpc_addr is required"))
	}
	if c.Server.JWTSigningKey == "" {
		errs = append(errs, errors.New("server.jwt_signing_key is required"))
	}
	if c.Server.TokenTTL <= 0 {
		errs = append(errs, errors.New("server.token_ttl must be positive"))
	}

	switch c.Store.Driver {
	case DriverMemory:
	case DriverRedis:
		if c.Redis.URL == "" {
			errs = append(errs, errors.New("redis.url is required for the redis store driver"))
		}
	case DriverPostgres, DriverPgx, DriverSQLite:
		if c.Store.DSN == "" {
			errs = append(errs, fmt.Errorf("store.dsn is required for the %s store driver", c.Store.Driver))
		}
	default:
		errs = append(errs, fmt.Errorf("store.driver %q is not one of memory, redis, postgres, pgx, sqlite", c.Store.Driver))
	}

	switch c.Audit.Sink {
	case SinkLog, SinkMemory:
	case SinkKafka:
		if len(c.Audit.Brokers) == 0 {
			errs = append(errs, errors.New("audit.brokers is required for the kafka sink"))
		}
		if c.Audit.Topic == "" {
			errs = append(errs, errors.New("audit.topic is required for the kafka sink"))
		}
		if c.Audit.Partitions <= 0 || c.Audit.ReplicationFactor <= 0 {
			errs = append(errs, errors.New("audit.partitions and audit.replication_factor must be positive"))
		}
	case SinkPostgres:
		if c.Store.Driver != DriverPostgres && c.Store.Driver != DriverPgx {
			errs = append(errs, errors.New("audit.sink postgres requires a postgres or pgx store driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("audit.sink %q is not one of log, memory, kafka, postgres", c.Audit.Sink))
	}

	if c.Audit.AppendTimeout <= 0 || c.Audit.DrainTimeout <= 0 {
		errs = append(errs, errors.New("audit.append_timeout and audit.drain_timeout must be positive"))
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log.level %q is not one of debug, info, warn, error", c.Log.Level))
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		errs = append(errs, fmt.Errorf("log.format %q is not one of json, console", c.Log.Format))
	}

	return errors.Join(errs...)
}
