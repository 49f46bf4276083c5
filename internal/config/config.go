// Package config loads the application configuration from YAML with
// environment variable overrides.
package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Server       ServerConfig       `yaml:"server"`
	Database     DatabaseConfig     `yaml:"database"`
	Redis        RedisConfig        `yaml:"redis"`
	SES          SESConfig          `yaml:"ses"`
	WhatsApp     WhatsAppConfig     `yaml:"whatsapp"`
	SMS          SMSConfig          `yaml:"sms"`
	Verification VerificationConfig `yaml:"verification"`
	Dispatch     DispatchConfig     `yaml:"dispatch"`
	Content      ContentConfig      `yaml:"content"`
	Scheduler    SchedulerConfig    `yaml:"scheduler"`
	Logging      LoggingConfig      `yaml:"logging"`
}

// ServerConfig holds the HTTP API server settings.
type ServerConfig struct {
	Host        string   `yaml:"host"`
	Port        int      `yaml:"port"`
	CORSOrigins []string `yaml:"cors_origins"`
}

// DatabaseConfig holds Postgres connection settings.
type DatabaseConfig struct {
	URL      string `yaml:"url"`
	MaxConns int    `yaml:"max_conns"`
}

// RedisConfig holds the Redis connection used for verification sessions and
// dispatch locks.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// SESConfig holds AWS SES credentials for the email channel.
type SESConfig struct {
	Region      string `yaml:"region"`
	AccessKey   string `yaml:"access_key"`
	SecretKey   string `yaml:"secret_key"`
	FromAddress string `yaml:"from_address"`
	FromName    string `yaml:"from_name"`
}

// WhatsAppConfig holds WhatsApp Business Cloud API settings.
type WhatsAppConfig struct {
	AccessToken   string `yaml:"access_token"`
	PhoneNumberID string `yaml:"phone_number_id"`
	BaseURL       string `yaml:"base_url"`
}

// SMSConfig holds the SMS gateway settings.
type SMSConfig struct {
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key"`
	From    string `yaml:"from"`
}

// VerificationConfig holds the OTP enrollment policy.
type VerificationConfig struct {
	CodeLength            int    `yaml:"code_length"`
	CodeTTLMinutes        int    `yaml:"code_ttl_minutes"`
	MaxAttempts           int    `yaml:"max_attempts"`
	ResendCooldownSeconds int    `yaml:"resend_cooldown_seconds"`
	SessionTTLMinutes     int    `yaml:"session_ttl_minutes"`
	PhoneChannel          string `yaml:"phone_channel"` // whatsapp or sms
}

// DispatchConfig holds the campaign fan-out settings.
type DispatchConfig struct {
	Workers             int `yaml:"workers"`
	SendTimeoutSeconds  int `yaml:"send_timeout_seconds"`
	RetryMaxAttempts    int `yaml:"retry_max_attempts"`
	RetryBaseDelayMS    int `yaml:"retry_base_delay_ms"`
	RetryMaxDelaySecond int `yaml:"retry_max_delay_seconds"`
}

// ContentConfig holds the article feed used for content.* bindings.
type ContentConfig struct {
	FeedURL         string `yaml:"feed_url"`
	CacheTTLMinutes int    `yaml:"cache_ttl_minutes"`
}

// SchedulerConfig holds the scheduled-campaign poller settings.
type SchedulerConfig struct {
	PollIntervalSeconds int `yaml:"poll_interval_seconds"`
	LockTTLSeconds      int `yaml:"lock_ttl_seconds"`
}

// LoggingConfig holds log level and PII redaction settings.
type LoggingConfig struct {
	Level     string `yaml:"level"`
	RedactPII *bool  `yaml:"redact_pii"`
}

// Load reads and parses the configuration file and applies defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	// Set defaults
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Database.MaxConns == 0 {
		cfg.Database.MaxConns = 20
	}
	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = "localhost:6379"
	}
	if cfg.SES.Region == "" {
		cfg.SES.Region = "us-east-1"
	}
	if cfg.WhatsApp.BaseURL == "" {
		cfg.WhatsApp.BaseURL = "https://graph.facebook.com/v19.0"
	}
	if cfg.Verification.CodeLength == 0 {
		cfg.Verification.CodeLength = 6
	}
	if cfg.Verification.CodeTTLMinutes == 0 {
		cfg.Verification.CodeTTLMinutes = 10
	}
	if cfg.Verification.MaxAttempts == 0 {
		cfg.Verification.MaxAttempts = 3
	}
	if cfg.Verification.ResendCooldownSeconds == 0 {
		cfg.Verification.ResendCooldownSeconds = 60
	}
	if cfg.Verification.SessionTTLMinutes == 0 {
		cfg.Verification.SessionTTLMinutes = 30
	}
	if cfg.Verification.PhoneChannel == "" {
		cfg.Verification.PhoneChannel = "whatsapp"
	}
	if cfg.Dispatch.Workers == 0 {
		cfg.Dispatch.Workers = 20
	}
	if cfg.Dispatch.SendTimeoutSeconds == 0 {
		cfg.Dispatch.SendTimeoutSeconds = 30
	}
	if cfg.Dispatch.RetryMaxAttempts == 0 {
		cfg.Dispatch.RetryMaxAttempts = 3
	}
	if cfg.Dispatch.RetryBaseDelayMS == 0 {
		cfg.Dispatch.RetryBaseDelayMS = 500
	}
	if cfg.Dispatch.RetryMaxDelaySecond == 0 {
		cfg.Dispatch.RetryMaxDelaySecond = 10
	}
	if cfg.Content.CacheTTLMinutes == 0 {
		cfg.Content.CacheTTLMinutes = 5
	}
	if cfg.Scheduler.PollIntervalSeconds == 0 {
		cfg.Scheduler.PollIntervalSeconds = 30
	}
	if cfg.Scheduler.LockTTLSeconds == 0 {
		cfg.Scheduler.LockTTLSeconds = 300
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}

	return &cfg, nil
}

// LoadFromEnv loads configuration with environment variable overrides.
// It loads a .env file (if present) before reading env vars, so secrets can
// live in .env locally and in real env vars in deployment.
func LoadFromEnv(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("AWS_SES_ACCESS_KEY"); v != "" {
		cfg.SES.AccessKey = v
	}
	if v := os.Getenv("AWS_SES_SECRET_KEY"); v != "" {
		cfg.SES.SecretKey = v
	}
	if v := os.Getenv("AWS_SES_REGION"); v != "" {
		cfg.SES.Region = v
	}
	if v := os.Getenv("SES_FROM_ADDRESS"); v != "" {
		cfg.SES.FromAddress = v
	}
	if v := os.Getenv("WHATSAPP_ACCESS_TOKEN"); v != "" {
		cfg.WhatsApp.AccessToken = v
	}
	if v := os.Getenv("WHATSAPP_PHONE_NUMBER_ID"); v != "" {
		cfg.WhatsApp.PhoneNumberID = v
	}
	if v := os.Getenv("SMS_API_KEY"); v != "" {
		cfg.SMS.APIKey = v
	}
	if v := os.Getenv("SMS_BASE_URL"); v != "" {
		cfg.SMS.BaseURL = v
	}
	if v := os.Getenv("CONTENT_FEED_URL"); v != "" {
		cfg.Content.FeedURL = v
	}

	return cfg, nil
}
