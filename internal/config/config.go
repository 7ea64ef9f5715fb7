package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

type Config struct {
	HTTPAddr       string        `mapstructure:"http_addr"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	DefaultTZ      string        `mapstructure:"default_timezone"`

	PostgresHost     string `mapstructure:"postgres_host"`
	PostgresPort     string `mapstructure:"postgres_port"`
	PostgresUser     string `mapstructure:"postgres_user"`
	PostgresPassword string `mapstructure:"postgres_password"`
	PostgresDB       string `mapstructure:"postgres_db"`
	PostgresSSLMode  string `mapstructure:"postgres_sslmode"`
	MaxIdleConns     int    `mapstructure:"postgres_max_idle"`
	MaxOpenConns     int    `mapstructure:"postgres_max_open"`
	MigrationsDir    string `mapstructure:"migrations_dir"`

	JWTSecret string        `mapstructure:"jwt_secret"`
	JWTTTL    time.Duration `mapstructure:"jwt_ttl"`

	GeminiAPIKey   string        `mapstructure:"gemini_api_key"`
	GeminiModel    string        `mapstructure:"gemini_model"`
	GeminiBaseURL  string        `mapstructure:"gemini_base_url"`
	GeminiTimeout  time.Duration `mapstructure:"gemini_timeout"`
	GeminiUseADC   bool          `mapstructure:"gemini_use_adc"`
	GeminiProject  string        `mapstructure:"gemini_project"`
	GeminiLocation string        `mapstructure:"gemini_location"`

	GoogleClientID     string `mapstructure:"google_client_id"`
	GoogleClientSecret string `mapstructure:"google_client_secret"`
	GoogleRedirectURI  string `mapstructure:"google_redirect_uri"`

	TelegramToken string `mapstructure:"telegram_bot_token"`

	RedisURL     string `mapstructure:"redis_url"`
	RedisChannel string `mapstructure:"redis_channel"`
}

var defaults = map[string]any{
	"http_addr":            ":8080",
	"request_timeout":      10 * time.Second,
	"default_timezone":     "America/Sao_Paulo",
	"postgres_host":        "localhost",
	"postgres_port":        "5432",
	"postgres_user":        "postgres",
	"postgres_password":    "",
	"postgres_db":          "mindful_garden",
	"postgres_sslmode":     "disable",
	"postgres_max_idle":    10,
	"postgres_max_open":    20,
	"migrations_dir":       "migrations",
	"jwt_secret":           "",
	"jwt_ttl":              7 * 24 * time.Hour,
	"gemini_api_key":       "",
	"gemini_model":         "gemini-3-flash-preview",
	"gemini_base_url":      "",
	"gemini_timeout":       20 * time.Second,
	"gemini_use_adc":       false,
	"gemini_project":       "",
	"gemini_location":      "us-central1",
	"google_client_id":     "",
	"google_client_secret": "",
	"google_redirect_uri":  "",
	"telegram_bot_token":   "",
	"redis_url":            "",
	"redis_channel":        "mindful:sessions",
}

// Load reads an optional .env file and then the process environment.
func Load(envFiles ...string) (*Config, error) {
	if err := godotenv.Load(envFiles...); err != nil {
		zap.S().Debugw("load .env file", zap.Error(err))
	}

	v := viper.New()
	v.AutomaticEnv()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	return &cfg, nil
}

func (c *Config) PostgresDSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.PostgresHost, c.PostgresPort, c.PostgresUser, c.PostgresPassword, c.PostgresDB, c.PostgresSSLMode)
}

// GoogleEnabled reports whether the Google sign-in client is fully configured.
func (c *Config) GoogleEnabled() bool {
	return c.GoogleClientID != "" && c.GoogleClientSecret != "" && c.GoogleRedirectURI != ""
}

// ValidateServe checks the settings the HTTP server cannot start without.
func (c *Config) ValidateServe() error {
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	if c.PostgresHost == "" {
		return errors.New("POSTGRES_HOST is required")
	}
	return nil
}
