package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of all environment variables read by Load.
const EnvPrefix = "CWQ"

// keys lists every configuration key so each one can be bound to its
// environment variable, whether or not it has a default.
var keys = []string{
	"server.port",
	"server.log_level",
	"server.shutdown_timeout_seconds",
	"database.url",
	"auth.jwt_secret",
	"auth.token_lifetime_minutes",
	"queue.workers",
	"queue.store",
	"queue.file_path",
	"search.root",
}

// Load configuration from environment variables and an optional config.yaml
// in the working directory. Environment variables take precedence over values
// from config files.
func Load() (*Config, error) {
	return LoadFrom("")
}

// LoadFrom is Load with an explicit configuration file. An empty path looks
// for config.yaml in the working directory and tolerates its absence.
func LoadFrom(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.shutdown_timeout_seconds", 30)
	v.SetDefault("auth.token_lifetime_minutes", 60)
	v.SetDefault("queue.workers", 4)
	v.SetDefault("queue.store", StoreMemory)
	v.SetDefault("search.root", "repositories")

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range keys {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("failed to bind environment variable for %s: %w", key, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks struct tags and the rules that span configuration sections.
func Validate(cfg *Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	if cfg.Queue.Store == StorePostgres && cfg.Database.URL == "" {
		return fmt.Errorf("config validation failed: database.url is required when queue.store is %q", StorePostgres)
	}
	return nil
}
