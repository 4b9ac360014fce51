package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "shieldvault.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)

	cfg, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DriverMemory, cfg.Store.Driver)
}

func TestLoad_FileOverlaysDefaults(t *testing.T) {
	path := writeConfig(t, `
server:
  http_addr: ":9000"
  token_ttl: 5m
store:
  driver: sqlite
  dsn: "file:vault.db"
audit:
  sink: kafka
  brokers: ["localhost:9092"]
  partitions: 6
  replication_factor: 3
  drain_timeout: 2s
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.Server.HTTPAddr)
	assert.Equal(t, ":9090", cfg.Server.GRPCAddr, "unset keys keep defaults")
	assert.Equal(t, 5*time.Minute, cfg.Server.TokenTTL)
	assert.Equal(t, DriverSQLite, cfg.Store.Driver)
	assert.Equal(t, []string{"localhost:9092"}, cfg.Audit.Brokers)
	assert.Equal(t, "shieldvault.audit", cfg.Audit.Topic)
	assert.Equal(t, int32(6), cfg.Audit.Partitions)
	assert.Equal(t, int16(3), cfg.Audit.ReplicationFactor)
	assert.Equal(t, 2*time.Second, cfg.Audit.DrainTimeout)
	assert.Equal(t, 5*time.Second, cfg.Audit.AppendTimeout)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "store:\n  driver: memory\n")
	t.Setenv("SHIELDVAULT_STORE_DRIVER", "redis")
	t.Setenv("SHIELDVAULT_REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("SHIELDVAULT_KAFKA_BROKERS", "a:9092, b:9092,")
	t.Setenv("SHIELDVAULT_LOG_LEVEL", "debug")
	t.Setenv("SHIELDVAULT_AUDIT_APPEND_TIMEOUT", "750ms")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, DriverRedis, cfg.Store.Driver)
	assert.Equal(t, "redis://localhost:6379/0", cfg.Redis.URL)
	assert.Equal(t, []string{"a:9092", "b:9092"}, cfg.Audit.Brokers)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 750*time.Millisecond, cfg.Audit.AppendTimeout)
}

func TestLoad_RejectsMalformedInput(t *testing.T) {
	_, err := Load(writeConfig(t, "server: [not, a, map]"))
	assert.Error(t, err)

	t.Setenv("SHIELDVAULT_TOKEN_TTL", "soon")
	_, err = Load("")
	assert.ErrorContains(t, err, "SHIELDVAULT_TOKEN_TTL")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"unknown driver", func(c *Config) { c.Store.Driver = "mongo" }, `store.driver "mongo"`},
		{"redis without url", func(c *Config) { c.Store.Driver = DriverRedis }, "redis.url is required"},
		{"postgres without dsn", func(c *Config) { c.Store.Driver = DriverPostgres }, "store.dsn is required for the postgres"},
		{"kafka without brokers", func(c *Config) { c.Audit.Sink = SinkKafka }, "audit.brokers is required"},
		{"postgres sink on memory store", func(c *Config) { c.Audit.Sink = SinkPostgres }, "requires a postgres or pgx store driver"},
		{"kafka without partitions", func(c *Config) {
			c.Audit.Sink, c.Audit.Brokers, c.Audit.Partitions = SinkKafka, []string{"k:9092"}, 0
		}, "audit.partitions and audit.replication_factor must be positive"},
		{"zero drain timeout", func(c *Config) { c.Audit.DrainTimeout = 0 }, "audit.append_timeout and audit.drain_timeout must be positive"},
		{"bad log level", func(c *Config) { c.Log.Level = "chatty" }, `log.level "chatty"`},
		{"no listeners", func(c *Config) { c.Server.HTTPAddr, c.Server.GRPCAddr = "", "" }, "at least one of http_addr or grpc_addr"},
		{"empty signing key", func(c *Config) { c.Server.JWTSigningKey = "" }, "jwt_signing_key is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.ErrorContains(t, cfg.Validate(), tt.wantErr)
		})
	}

	assert.NoError(t, Default().Validate())
}
