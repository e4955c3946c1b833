// Package config loads server and CLI configuration from an optional yaml file,
// an optional .env file and FINDIT_* environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Mail     MailConfig     `mapstructure:"mail"`
	Log      LogConfig      `mapstructure:"log"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	CORSOrigins     []string      `mapstructure:"cors_origins"`
	UploadDir       string        `mapstructure:"upload_dir"`
	MaxUploadMB     int64         `mapstructure:"max_upload_mb"`
}

// DatabaseConfig holds PostgreSQL configuration.
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
}

// DSN returns the PostgreSQL connection string.
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

// AuthConfig holds token and login-lockout settings.
type AuthConfig struct {
	JWTKey         string        `mapstructure:"jwt_key"`
	AccessTTL      time.Duration `mapstructure:"access_ttl"`
	GoogleClientID string        `mapstructure:"google_client_id"`
	LoginWindow    time.Duration `mapstructure:"login_window"`
	LoginMaxFails  int           `mapstructure:"login_max_fails"`
	LoginBlockFor  time.Duration `mapstructure:"login_block_for"`
	ResetCodeTTL   time.Duration `mapstructure:"reset_code_ttl"`
}

// RedisConfig holds the request rate limiter backend. An empty Addr disables it.
type RedisConfig struct {
	Addr              string `mapstructure:"addr"`
	Password          string `mapstructure:"password"`
	DB                int    `mapstructure:"db"`
	RequestsPerMinute int    `mapstructure:"requests_per_minute"`
}

// MailConfig holds outbound email settings. An empty ResendAPIKey logs emails instead of sending.
type MailConfig struct {
	ResendAPIKey string        `mapstructure:"resend_api_key"`
	From         string        `mapstructure:"from"`
	Workers      int           `mapstructure:"workers"`
	QueueSize    int           `mapstructure:"queue_size"`
	SendTimeout  time.Duration `mapstructure:"send_timeout"`
}

// LogConfig selects the zap preset.
type LogConfig struct {
	Development bool `mapstructure:"development"`
}

// Load reads configuration. path may name a yaml file; when empty the
// default search paths are used and a missing file is not an error.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !isNotExist(err) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("findit")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/findit")
	}

	v.SetEnvPrefix("FINDIT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var nf viper.ConfigFileNotFoundError
		if !errors.As(err, &nf) || path != "" {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}

// Validate checks settings the server cannot start without.
func (c *Config) Validate() error {
	if c.Auth.JWTKey == "" {
		return errors.New("auth.jwt_key is required")
	}
	if c.Database.MaxConns <= 0 || c.Database.MinConns < 0 || c.Database.MinConns > c.Database.MaxConns {
		return fmt.Errorf("database pool bounds invalid: min=%d max=%d", c.Database.MinConns, c.Database.MaxConns)
	}
	if c.Mail.Workers <= 0 || c.Mail.QueueSize <= 0 {
		return errors.New("mail.workers and mail.queue_size must be positive")
	}
	return nil
}

func isNotExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}

// setDefaults configures default values for all settings.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8000")
	v.SetDefault("server.request_timeout", "15s")
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("server.cors_origins", []string{"http://localhost:3000"})
	v.SetDefault("server.upload_dir", "uploads")
	v.SetDefault("server.max_upload_mb", 10)

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "findit")
	v.SetDefault("database.password", "findit")
	v.SetDefault("database.name", "findit")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("database.min_conns", 1)
	v.SetDefault("database.max_conn_lifetime", "30m")

	v.SetDefault("auth.jwt_key", "")
	v.SetDefault("auth.access_ttl", "24h")
	v.SetDefault("auth.google_client_id", "")
	v.SetDefault("auth.login_window", "15m")
	v.SetDefault("auth.login_max_fails", 5)
	v.SetDefault("auth.login_block_for", "15m")
	v.SetDefault("auth.reset_code_ttl", "15m")

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.requests_per_minute", 120)

	v.SetDefault("mail.resend_api_key", "")
	v.SetDefault("mail.from", "FindIt <onboarding@resend.dev>")
	v.SetDefault("mail.workers", 2)
	v.SetDefault("mail.queue_size", 256)
	v.SetDefault("mail.send_timeout", "10s")

	v.SetDefault("log.development", false)
}
