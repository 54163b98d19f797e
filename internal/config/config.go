package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"github.com/wb-go/wbf/zlog"
)

// Config holds the main configuration for the application.
type Config struct {
	Server     Server     `mapstructure:"server"`
	Database   Database   `mapstructure:"database"`
	Storage    Storage    `mapstructure:"storage"`
	Auth       Auth       `mapstructure:"auth"`
	OpenAI     OpenAI     `mapstructure:"openai"`
	Processing Processing `mapstructure:"processing"`
	Retry      Retry      `mapstructure:"retry"`
}

// Server holds HTTP server-related configuration.
type Server struct {
	HTTPPort string `mapstructure:"http_port"` // HTTP port to listen on
}

// Database holds database master and slave configuration.
type Database struct {
	Master DatabaseNode   `mapstructure:"master"`
	Slaves []DatabaseNode `mapstructure:"slaves"`

	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// DatabaseNode holds connection parameters for a single database node.
type DatabaseNode struct {
	Host    string `mapstructure:"host"`
	Port    string `mapstructure:"port"`
	User    string `mapstructure:"user"`
	Pass    string `mapstructure:"pass"`
	Name    string `mapstructure:"name"`
	SSLMode string `mapstructure:"ssl_mode"`
}

// Storage holds configuration for the object storage backend.
type Storage struct {
	Endpoint   string `mapstructure:"endpoint"`
	AccessKey  string `mapstructure:"access_key"`
	SecretKey  string `mapstructure:"secret_key"`
	BucketName string `mapstructure:"bucket_name"`
	UseSSL     bool   `mapstructure:"use_ssl"`
}

// Auth holds configuration for the external token verification service.
type Auth struct {
	URL     string        `mapstructure:"url"`      // Base URL of the auth service
	AnonKey string        `mapstructure:"anon_key"` // Public API key sent with verification requests
	Timeout time.Duration `mapstructure:"timeout"`  // Per-request timeout
}

// OpenAI holds configuration for the vision model API.
type OpenAI struct {
	APIKey  string        `mapstructure:"api_key"`
	Model   string        `mapstructure:"model"`   // Vision model name, e.g. gpt-4o-mini
	Timeout time.Duration `mapstructure:"timeout"` // Per-request timeout
}

// Processing holds the image pipeline parameters. They are read-only
// and fixed at startup.
type Processing struct {
	ThumbnailSize int `mapstructure:"thumbnail_size"` // Square thumbnail edge length in pixels
	MaxTags       int `mapstructure:"max_tags"`       // Maximum number of AI tags persisted
	TopColors     int `mapstructure:"top_colors"`     // Number of dominant colors extracted
}

// Retry defines retry policy configuration.
type Retry struct {
	Attempts int           `mapstructure:"attempts"` // Number of retry attempts
	Delay    time.Duration `mapstructure:"delay"`    // Initial delay between retries
	Backoff  float64       `mapstructure:"backoff"`  // Backoff multiplier for delays
}

// DSN returns the PostgreSQL DSN string for connecting to this database node.
func (n DatabaseNode) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		n.User, n.Pass, n.Host, n.Port, n.Name, n.SSLMode,
	)
}

// mustBindEnv binds critical environment variables to Viper keys.
//
// It panics if any environment variable cannot be bound.
func mustBindEnv() {
	bindings := map[string]string{
		"database.master.host": "DB_HOST",
		"database.master.port": "DB_PORT",
		"database.master.user": "DB_USER",
		"database.master.pass": "DB_PASSWORD",
		"database.master.name": "DB_NAME",
		"storage.endpoint":     "MINIO_ENDPOINT",
		"storage.access_key":   "MINIO_ACCESS_KEY",
		"storage.secret_key":   "MINIO_SECRET_KEY",
		"auth.url":             "AUTH_URL",
		"auth.anon_key":        "AUTH_ANON_KEY",
		"openai.api_key":       "OPENAI_API_KEY",
		"openai.model":         "OPENAI_IMAGE_MODEL",
	}

	for key, env := range bindings {
		if err := viper.BindEnv(key, env); err != nil {
			zlog.Logger.Panic().Err(err).Msgf("failed to bind env %s", env)
		}
	}
}

// setDefaults registers fallback values for the pipeline parameters
// and external client timeouts.
func setDefaults() {
	viper.SetDefault("processing.thumbnail_size", 300)
	viper.SetDefault("processing.max_tags", 8)
	viper.SetDefault("processing.top_colors", 3)
	viper.SetDefault("openai.model", "gpt-4o-mini")
	viper.SetDefault("openai.timeout", 60*time.Second)
	viper.SetDefault("auth.timeout", 5*time.Second)
}

// MustLoad loads the configuration from the specified directory.
// It panics if the configuration file cannot be loaded or unmarshaled,
// or if a required secret is missing.
func MustLoad(path string) *Config {
	// Load .env if present so local runs pick up secrets the same way
	// as the deployed environment.
	_ = godotenv.Load()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(path)
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		zlog.Logger.Panic().Err(err).Msg("failed to read config")
	}

	setDefaults()
	mustBindEnv()

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		zlog.Logger.Panic().Err(err).Msgf("failed to unmarshal config: %v", err)
	}

	if err := cfg.Validate(); err != nil {
		zlog.Logger.Panic().Err(err).Msg("invalid configuration")
	}

	return &cfg
}

// Validate reports the first missing required setting. Secrets are
// checked at startup so the service fails fast instead of on the first
// pipeline run.
func (c *Config) Validate() error {
	required := []struct {
		name, value string
	}{
		{"AUTH_URL", c.Auth.URL},
		{"AUTH_ANON_KEY", c.Auth.AnonKey},
		{"OPENAI_API_KEY", c.OpenAI.APIKey},
		{"MINIO_ENDPOINT", c.Storage.Endpoint},
	}

	for _, r := range required {
		if r.value == "" {
			return fmt.Errorf("missing required environment variable: %s", r.name)
		}
	}

	return nil
}
