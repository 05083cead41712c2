package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

// Config holds everything the api, worker and scheduler binaries need
type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Database DatabaseConfig `mapstructure:"database"`
	RabbitMQ RabbitMQConfig `mapstructure:"rabbitmq"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Helius   HeliusConfig   `mapstructure:"helius"`
	Solana   SolanaConfig   `mapstructure:"solana"`
	Schedule ScheduleConfig `mapstructure:"schedule"`
}

// AppConfig covers the HTTP surface
type AppConfig struct {
	Port           string   `mapstructure:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	// ReadRateLimit is requests per second per IP on public read routes
	ReadRateLimit float64 `mapstructure:"read_rate_limit"`
	ReadRateBurst int     `mapstructure:"read_rate_burst"`
}

// LoggingConfig configures logrus
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	File   string `mapstructure:"file"`
}

// DatabaseConfig holds postgres connectivity and pool settings
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	Port            string        `mapstructure:"port"`
	SSLMode         string        `mapstructure:"sslmode"`
	TimeZone        string        `mapstructure:"timezone"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	MigrationsPath  string        `mapstructure:"migrations_path"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

// DSN renders the postgres connection string in the form gorm's postgres driver expects
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=%s",
		d.Host, d.User, d.Password, d.Name, d.Port, d.SSLMode, d.TimeZone)
}

// RabbitMQConfig holds broker connectivity and queue names
type RabbitMQConfig struct {
	Host        string        `mapstructure:"host"`
	Port        string        `mapstructure:"port"`
	User        string        `mapstructure:"user"`
	Password    string        `mapstructure:"password"`
	TaskQueue   string        `mapstructure:"task_queue"`
	FloorQueue  string        `mapstructure:"floor_queue"`
	MaxRetries  int           `mapstructure:"max_retries"`
	DialRetries int           `mapstructure:"dial_retries"`
	DialDelay   time.Duration `mapstructure:"dial_delay"`
}

// URL renders the amqp url
func (r RabbitMQConfig) URL() string {
	return fmt.Sprintf("amqp://%s:%s@%s:%s/", r.User, r.Password, r.Host, r.Port)
}

// Enabled reports whether a broker is configured
func (r RabbitMQConfig) Enabled() bool {
	return r.Host != ""
}

// RedisConfig holds redis connectivity
type RedisConfig struct {
	Addr        string        `mapstructure:"addr"`
	Password    string        `mapstructure:"password"`
	DB          int           `mapstructure:"db"`
	TaskNameTTL time.Duration `mapstructure:"task_name_ttl"`
	MetadataTTL time.Duration `mapstructure:"metadata_ttl"`
}

// HeliusConfig holds vendor credentials
type HeliusConfig struct {
	APIKey              string `mapstructure:"api_key"`
	AuthorizationSecret string `mapstructure:"authorization_secret"`
	BaseURL             string `mapstructure:"base_url"`
	RPCURL              string `mapstructure:"rpc_url"`
	ListingsLimit       int    `mapstructure:"listings_limit"`
}

// SolanaConfig holds the RPC endpoint used for Metaplex reads
type SolanaConfig struct {
	RPCURL string `mapstructure:"rpc_url"`
}

// ScheduleConfig holds cron specs
type ScheduleConfig struct {
	FloorRefresh string `mapstructure:"floor_refresh"`
}

// envBindings maps config keys to the environment variable names used by the deployment
var envBindings = map[string]string{
	"app.port":                    "PORT",
	"app.allowed_origins":         "ALLOWED_ORIGINS",
	"logging.level":               "LOG_LEVEL",
	"logging.format":              "LOG_FORMAT",
	"logging.file":                "LOG_FILE",
	"database.host":               "DB_HOST",
	"database.user":               "DB_USER",
	"database.password":           "DB_PASSWORD",
	"database.name":               "DB_NAME",
	"database.port":               "DB_PORT",
	"database.sslmode":            "DB_SSLMODE",
	"rabbitmq.host":               "RABBITMQ_HOST",
	"rabbitmq.port":               "RABBITMQ_PORT",
	"rabbitmq.user":               "RABBITMQ_USER",
	"rabbitmq.password":           "RABBITMQ_PASSWORD",
	"redis.addr":                  "REDIS_ADDR",
	"redis.password":              "REDIS_PASSWORD",
	"redis.db":                    "REDIS_DB",
	"helius.api_key":              "HELIUS_API_KEY",
	"helius.authorization_secret": "HELIUS_AUTHORIZATION_SECRET",
	"solana.rpc_url":              "DEFAULT_SOLANA_RPC",
	"schedule.floor_refresh":      "FLOOR_REFRESH_CRON",
}

// Load builds configuration from defaults, an optional config file and the environment.
// An empty path looks for config.yaml in the working directory.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", env, err)
		}
	}

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.App.AllowedOrigins = trimAll(cfg.App.AllowedOrigins)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.port", "8080")
	v.SetDefault("app.allowed_origins", []string{})
	v.SetDefault("app.read_rate_limit", 10.0)
	v.SetDefault("app.read_rate_burst", 20)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.file", "")

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "")
	v.SetDefault("database.name", "oneoftools")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.timezone", "UTC")
	v.SetDefault("database.max_idle_conns", 50)
	v.SetDefault("database.max_open_conns", 200)
	v.SetDefault("database.conn_max_lifetime", "1h")
	v.SetDefault("database.migrations_path", "migrations")
	v.SetDefault("database.auto_migrate", true)

	v.SetDefault("rabbitmq.host", "")
	v.SetDefault("rabbitmq.port", "5672")
	v.SetDefault("rabbitmq.user", "guest")
	v.SetDefault("rabbitmq.password", "guest")
	v.SetDefault("rabbitmq.task_queue", "boutique_tasks")
	v.SetDefault("rabbitmq.floor_queue", "boutique_floor_tasks")
	v.SetDefault("rabbitmq.max_retries", 5)
	v.SetDefault("rabbitmq.dial_retries", 10)
	v.SetDefault("rabbitmq.dial_delay", "3s")

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.task_name_ttl", "24h")
	v.SetDefault("redis.metadata_ttl", "6h")

	v.SetDefault("helius.base_url", "https://api.helius.xyz")
	v.SetDefault("helius.rpc_url", "https://mainnet.helius-rpc.com")
	v.SetDefault("helius.listings_limit", 1000)

	v.SetDefault("solana.rpc_url", "https://api.mainnet-beta.solana.com")

	v.SetDefault("schedule.floor_refresh", "0 */15 * * * *")
}

// Validate rejects configurations the pipeline cannot run with
func (c *Config) Validate() error {
	if c.Helius.AuthorizationSecret == "" {
		return errors.New("config: helius.authorization_secret (HELIUS_AUTHORIZATION_SECRET) is required")
	}
	if c.Database.Name == "" {
		return errors.New("config: database.name (DB_NAME) is required")
	}
	if c.Helius.ListingsLimit <= 0 {
		return fmt.Errorf("config: helius.listings_limit must be positive, got %d", c.Helius.ListingsLimit)
	}
	if c.RabbitMQ.MaxRetries < 0 {
		return fmt.Errorf("config: rabbitmq.max_retries must not be negative, got %d", c.RabbitMQ.MaxRetries)
	}
	return nil
}

func trimAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
