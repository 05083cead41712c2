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
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestLoadDefaultsWithEnv(t *testing.T) {
	t.Setenv("HELIUS_AUTHORIZATION_SECRET", "s3cret")
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, https://b.example ,")
	t.Setenv("RABBITMQ_HOST", "mq")

	cfg, err := Load(writeConfig(t, "app:\n  port: \"9000\"\n"))
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.App.Port)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.App.AllowedOrigins)
	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, "oneoftools", cfg.Database.Name)
	assert.Equal(t, time.Hour, cfg.Database.ConnMaxLifetime)
	assert.Equal(t, "s3cret", cfg.Helius.AuthorizationSecret)
	assert.Equal(t, 1000, cfg.Helius.ListingsLimit)
	assert.Equal(t, 24*time.Hour, cfg.Redis.TaskNameTTL)
	assert.Equal(t, "0 */15 * * * *", cfg.Schedule.FloorRefresh)
	assert.True(t, cfg.RabbitMQ.Enabled())
	assert.Equal(t, "amqp://guest:guest@mq:5672/", cfg.RabbitMQ.URL())
}

func TestLoadFileValues(t *testing.T) {
	t.Setenv("HELIUS_AUTHORIZATION_SECRET", "s3cret")

	cfg, err := Load(writeConfig(t, `
database:
  host: pg
  name: boutique
  conn_max_lifetime: 30m
rabbitmq:
  max_retries: 2
  dial_delay: 500ms
redis:
  addr: localhost:6379
  metadata_ttl: 1h
`))
	require.NoError(t, err)

	assert.Equal(t, "boutique", cfg.Database.Name)
	assert.Equal(t, 30*time.Minute, cfg.Database.ConnMaxLifetime)
	assert.Equal(t, 2, cfg.RabbitMQ.MaxRetries)
	assert.Equal(t, 500*time.Millisecond, cfg.RabbitMQ.DialDelay)
	assert.False(t, cfg.RabbitMQ.Enabled())
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, time.Hour, cfg.Redis.MetadataTTL)
	assert.Contains(t, cfg.Database.DSN(), "host=pg")
	assert.Contains(t, cfg.Database.DSN(), "dbname=boutique")
}

func TestLoadRequiresSecret(t *testing.T) {
	t.Setenv("HELIUS_AUTHORIZATION_SECRET", "")

	_, err := Load(writeConfig(t, "app:\n  port: \"8080\"\n"))
	assert.ErrorContains(t, err, "authorization_secret")
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Database: DatabaseConfig{Name: "boutique"},
			Helius:   HeliusConfig{AuthorizationSecret: "s", ListingsLimit: 10},
		}
	}
	require.NoError(t, valid().Validate())

	cfg := valid()
	cfg.Database.Name = ""
	assert.Error(t, cfg.Validate())

	cfg = valid()
	cfg.Helius.ListingsLimit = 0
	assert.Error(t, cfg.Validate())

	cfg = valid()
	cfg.RabbitMQ.MaxRetries = -1
	assert.Error(t, cfg.Validate())
}

func TestAttemptOf(t *testing.T) {
	assert.Equal(t, 0, attemptOf(nil))
	assert.Equal(t, 2, attemptOf(map[string]interface{}{AttemptHeader: int32(2)}))
	assert.Equal(t, 3, attemptOf(map[string]interface{}{AttemptHeader: int64(3)}))
}
