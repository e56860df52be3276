package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	SMTP       SMTPConfig
	SNS        SNSConfig
	Dispatch   DispatchConfig
	Escalation EscalationConfig
	RateLimit  RateLimitConfig
	Scheduler  SchedulerConfig
}

type ServerConfig struct {
	Port           int `mapstructure:"port"`
	TimeoutSeconds int `mapstructure:"timeoutSeconds"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	SSLMode  string `mapstructure:"sslmode"`
}

type RedisConfig struct {
	URL          string `mapstructure:"url"`
	MaxRetries   int    `mapstructure:"max_retries"`
	PoolSize     int    `mapstructure:"pool_size"`
	MinIdleConns int    `mapstructure:"min_idle_conns"`
}

// SMTPConfig configures the live email sender. Mode selects the sender
// strategy at startup: "live" or "simulated".
type SMTPConfig struct {
	Mode     string `mapstructure:"mode"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
}

// SNSConfig configures the live SMS sender.
type SNSConfig struct {
	Mode     string `mapstructure:"mode"`
	Region   string `mapstructure:"region"`
	SenderID string `mapstructure:"sender_id"`
}

type DispatchConfig struct {
	MaxRetries     int           `mapstructure:"max_retries"`
	BackoffBase    time.Duration `mapstructure:"backoff_base"`
	SendTimeout    time.Duration `mapstructure:"send_timeout"`
	IdempotencyTTL time.Duration `mapstructure:"idempotency_ttl"`
}

type EscalationConfig struct {
	Workers      int     `mapstructure:"workers"`
	GatewayRate  float64 `mapstructure:"gateway_rate"`
	GatewayBurst int     `mapstructure:"gateway_burst"`
}

type RateLimitConfig struct {
	HTTPRate  float64 `mapstructure:"http_rate"`
	HTTPBurst int     `mapstructure:"http_burst"`
}

type SchedulerConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	BatchSize    int           `mapstructure:"batch_size"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
}

// Secrets are taken from the environment so they never land in config files.
type secretOverrides struct {
	DBPassword   string `envconfig:"DB_PASSWORD"`
	SMTPPassword string `envconfig:"SMTP_PASSWORD"`
	RedisURL     string `envconfig:"REDIS_URL"`
}

func LoadConfig() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	viper.AutomaticEnv()
	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	var secrets secretOverrides
	if err := envconfig.Process("", &secrets); err != nil {
		return nil, fmt.Errorf("failed to read env overrides: %w", err)
	}
	if secrets.DBPassword != "" {
		config.Database.Password = secrets.DBPassword
	}
	if secrets.SMTPPassword != "" {
		config.SMTP.Password = secrets.SMTPPassword
	}
	if secrets.RedisURL != "" {
		config.Redis.URL = secrets.RedisURL
	}

	return &config, nil
}

func setDefaults() {
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.timeoutSeconds", 30)
	viper.SetDefault("database.sslmode", "disable")
	viper.SetDefault("redis.url", "redis://localhost:6379/0")
	viper.SetDefault("redis.max_retries", 3)
	viper.SetDefault("redis.pool_size", 10)
	viper.SetDefault("redis.min_idle_conns", 2)
	viper.SetDefault("smtp.mode", "simulated")
	viper.SetDefault("sns.mode", "simulated")
	viper.SetDefault("dispatch.max_retries", 3)
	viper.SetDefault("dispatch.backoff_base", "500ms")
	viper.SetDefault("dispatch.send_timeout", "10s")
	viper.SetDefault("dispatch.idempotency_ttl", "24h")
	viper.SetDefault("escalation.workers", 5)
	viper.SetDefault("escalation.gateway_rate", 10)
	viper.SetDefault("escalation.gateway_burst", 5)
	viper.SetDefault("ratelimit.http_rate", 50)
	viper.SetDefault("ratelimit.http_burst", 100)
	viper.SetDefault("scheduler.enabled", true)
	viper.SetDefault("scheduler.batch_size", 100)
	viper.SetDefault("scheduler.poll_interval", "15s")
}
