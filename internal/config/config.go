package config

// Store backends for the persistence layer of the work queue.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
	StoreFile     = "file"
)

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"   validate:"required"`
	Database DatabaseConfig `mapstructure:"database"`
	Auth     AuthConfig     `mapstructure:"auth"     validate:"required"`
	Queue    QueueConfig    `mapstructure:"queue"    validate:"required"`
	Search   SearchConfig   `mapstructure:"search"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port     int    `mapstructure:"port"      validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`

	// ShutdownTimeoutSeconds bounds how long running tasks and open requests
	// may take to finish on shutdown.
	ShutdownTimeoutSeconds int `mapstructure:"shutdown_timeout_seconds" validate:"gte=0"`
}

// DatabaseConfig contains all database-related configuration settings.
// The URL is only required when the queue persists to PostgreSQL.
type DatabaseConfig struct {
	URL string `mapstructure:"url" validate:"omitempty,url"`
}

// AuthConfig contains the settings for signed subject tokens.
type AuthConfig struct {
	JWTSecret            string `mapstructure:"jwt_secret"             validate:"required,min=32"`
	TokenLifetimeMinutes int    `mapstructure:"token_lifetime_minutes" validate:"required,gt=0"`
}

// QueueConfig contains the settings of the central work queue.
type QueueConfig struct {
	// Workers is the fixed number of execution slots.
	Workers int `mapstructure:"workers" validate:"required,gt=0,lte=256"`

	// Store selects where pending envelopes are persisted.
	Store string `mapstructure:"store" validate:"required,oneof=memory postgres file"`

	// FilePath is the directory used by the file store.
	FilePath string `mapstructure:"file_path" validate:"required_if=Store file"`
}

// SearchConfig contains the settings of the repository search index that the
// reindex task rebuilds.
type SearchConfig struct {
	// Root is the directory holding one subdirectory per repository.
	Root string `mapstructure:"root" validate:"required"`
}
