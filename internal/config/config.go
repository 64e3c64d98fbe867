// Package config loads and validates environment-driven configuration.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config contains all configuration parameters for the service.
type Config struct {
	Port      int    `env:"PORT" envDefault:"8080"`
	AppEnv    string `env:"APP_ENV" envDefault:"development"`
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	// CORSOrigins lists the frontend origins allowed to call the API with
	// credentials.
	CORSOrigins []string `env:"CORS_ORIGINS" envSeparator:"," envDefault:"http://localhost:5173"`

	// SessionCookieMaxAge bounds the cookie lifetime only; the session itself
	// expires with the user's subscription date.
	SessionCookieMaxAge int `env:"SESSION_COOKIE_MAX_AGE" envDefault:"2592000"`

	DirectoryCSVURL string        `env:"DIRECTORY_CSV_URL,notEmpty"`
	RecipesCSVURL   string        `env:"RECIPES_CSV_URL,notEmpty"`
	SheetTimeout    time.Duration `env:"SHEET_FETCH_TIMEOUT" envDefault:"20s"`

	MaxUploadBytes int64 `env:"MAX_UPLOAD_BYTES" envDefault:"10485760"`
	ImageBound     int   `env:"IMAGE_BOUND" envDefault:"800"`

	Gemini Gemini `envPrefix:"GEMINI_"`
	Redis  Redis  `envPrefix:"REDIS_"`
	S3     S3     `envPrefix:"S3_"`

	ReadTimeout  time.Duration `env:"SERVER_READ_TIMEOUT" envDefault:"15s"`
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" envDefault:"60s"`
	IdleTimeout  time.Duration `env:"SERVER_IDLE_TIMEOUT" envDefault:"120s"`
}

// Gemini contains parameters for the Gemini inference API.
type Gemini struct {
	APIKey  string        `env:"API_KEY,notEmpty"`
	Model   string        `env:"MODEL" envDefault:"gemini-2.5-flash"`
	Timeout time.Duration `env:"TIMEOUT" envDefault:"60s"`
}

// Redis contains connection parameters for the key/value store. An empty
// Addr selects the in-memory store, which loses state on restart.
type Redis struct {
	Addr     string `env:"ADDR"`
	Password string `env:"PASSWORD"`
	DB       int    `env:"DB" envDefault:"0"`
}

// S3 contains parameters for the optional photo archive. When Enabled is
// false meal photos stay inline in history entries as data URIs.
type S3 struct {
	Enabled   bool   `env:"ENABLED" envDefault:"false"`
	Endpoint  string `env:"ENDPOINT"`
	AccessKey string `env:"ACCESS_KEY"`
	SecretKey string `env:"SECRET_KEY"`
	Bucket    string `env:"BUCKET_NAME"`
	UseSSL    bool   `env:"USE_SSL" envDefault:"false"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := Config{}
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cross-field constraints env tags cannot express.
func (c *Config) Validate() error {
	if c.S3.Enabled {
		switch {
		case c.S3.Endpoint == "":
			return fmt.Errorf("S3_ENDPOINT is required when the photo archive is enabled")
		case c.S3.AccessKey == "":
			return fmt.Errorf("S3_ACCESS_KEY is required when the photo archive is enabled")
		case c.S3.SecretKey == "":
			return fmt.Errorf("S3_SECRET_KEY is required when the photo archive is enabled")
		case c.S3.Bucket == "":
			return fmt.Errorf("S3_BUCKET_NAME is required when the photo archive is enabled")
		}
	}
	if c.ImageBound <= 0 {
		return fmt.Errorf("IMAGE_BOUND must be positive")
	}
	return nil
}

// IsProduction reports whether the service runs with production settings.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}
