// Package config loads connection and batch settings from the environment.
package config

import (
	"log/slog"
	"strings"
	"time"

	env "github.com/caarlos0/env/v6"
	validator "github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

type Config struct {
	URI          string        `env:"MONGODB_URI" envDefault:"mongodb://localhost:27017" validate:"required,mongouri"`
	Database     string        `env:"MONGODB_DATABASE" envDefault:"rust" validate:"required"`
	Collection   string        `env:"MONGODB_COLLECTION" envDefault:"users" validate:"required"`
	Timeout      time.Duration `env:"MONGODB_TIMEOUT" envDefault:"10s" validate:"gt=0"`
	Workers      int           `env:"BULK_WORKERS" envDefault:"16" validate:"gte=0"`
	BatchTimeout time.Duration `env:"BULK_TIMEOUT" envDefault:"5m" validate:"gte=0"`
	LogLevel     string        `env:"LOG_LEVEL" envDefault:"info" validate:"loglevel"`
}

func validateMongoURI(fl validator.FieldLevel) bool {
	v := fl.Field().String()
	return strings.HasPrefix(v, "mongodb://") || strings.HasPrefix(v, "mongodb+srv://")
}

func validateLogLevel(fl validator.FieldLevel) bool {
	switch strings.ToLower(fl.Field().String()) {
	case "debug", "info", "warn", "warning", "error":
		return true
	}
	return false
}

// Validate checks c, e.g. after flags have overridden environment values.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.RegisterValidation("mongouri", validateMongoURI); err != nil {
		return err
	}
	if err := validate.RegisterValidation("loglevel", validateLogLevel); err != nil {
		return err
	}
	return validate.Struct(c)
}

type LoadOption func(*loadOptions)

type loadOptions struct {
	envFiles []string
	environ  map[string]string
}

// WithEnvFiles loads the given dotenv files instead of ./.env.
func WithEnvFiles(files ...string) LoadOption {
	return func(o *loadOptions) { o.envFiles = files }
}

// WithEnviron reads variables from m instead of the process environment.
func WithEnviron(m map[string]string) LoadOption {
	return func(o *loadOptions) { o.environ = m }
}

// Load reads an optional dotenv file, then the environment, applies defaults
// and validates the result.
func Load(opts ...LoadOption) (*Config, error) {
	o := &loadOptions{}
	for _, opt := range opts {
		opt(o)
	}

	if o.environ == nil {
		if err := godotenv.Load(o.envFiles...); err != nil {
			slog.Debug("Unable to load .env file", "error", err)
		}
	}

	cfg := &Config{}
	envOpts := env.Options{}
	if o.environ != nil {
		envOpts.Environment = o.environ
	}
	if err := env.Parse(cfg, envOpts); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
