package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config represents the application configuration
type Config struct {
	Server  ServerConfig  `json:"server"`
	Mongo   MongoConfig   `json:"mongo"`
	Auth    AuthConfig    `json:"auth"`
	Storage StorageConfig `json:"storage"`
	Logging LoggingConfig `json:"logging"`
	Worker  WorkerConfig  `json:"worker"`
}

// ServerConfig represents server configuration
type ServerConfig struct {
	Host         string        `json:"host"`
	Port         int           `json:"port"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
	IdleTimeout  time.Duration `json:"idle_timeout"`
}

// MongoConfig represents document store configuration
type MongoConfig struct {
	URI      string        `json:"uri"`
	Database string        `json:"database"`
	Timeout  time.Duration `json:"timeout"`
}

// AuthConfig holds token and reserved-admin settings. The admin credential
// pair resolves to the fixed admin principal and is never stored in the
// users collection.
type AuthConfig struct {
	JWTSecret     string        `json:"jwt_secret"`
	TokenTTL      time.Duration `json:"token_ttl"`
	AdminEmail    string        `json:"admin_email"`
	AdminPassword string        `json:"admin_password"`
}

// StorageConfig configures the evidence object store.
type StorageConfig struct {
	Bucket        string   `json:"bucket"`
	Region        string   `json:"region"`
	KeyPrefix     string   `json:"key_prefix"`
	PublicBaseURL string   `json:"public_base_url"`
	MaxUploadSize int64    `json:"max_upload_size"`
	AllowedTypes  []string `json:"allowed_types"`
}

// LoggingConfig
type LoggingConfig struct {
	Level string `json:"level"`
}

// WorkerConfig configures the reconciliation worker.
type WorkerConfig struct {
	ReconcileSchedule string `json:"reconcile_schedule"`
}

// LoadConfig loads configuration from file and environment variables
func LoadConfig(configPath string) (*Config, error) {
	// Default config
	config := &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Mongo: MongoConfig{
			URI:      "mongodb://localhost:27017",
			Database: "blue_carbon_mrv",
			Timeout:  10 * time.Second,
		},
		Auth: AuthConfig{
			TokenTTL: 7 * 24 * time.Hour,
		},
		Storage: StorageConfig{
			KeyPrefix:     "blue-carbon-mrv",
			MaxUploadSize: 10 * 1024 * 1024,
			AllowedTypes: []string{
				"image/jpeg", "image/jpg", "image/png", "image/gif", "image/webp",
			},
		},
		Worker: WorkerConfig{
			ReconcileSchedule: "@every 1h",
		},
	}

	// Load from file if exists
	if configPath != "" {
		if data, err := os.ReadFile(configPath); err == nil {
			if err := json.Unmarshal(data, config); err != nil {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
		}
	}

	// Override with environment variables
	overrideWithEnv(config)

	if config.Auth.JWTSecret == "" {
		return nil, fmt.Errorf("jwt secret is required (set JWT_SECRET)")
	}

	return config, nil
}

func overrideWithEnv(config *Config) {
	if host := os.Getenv("SERVER_HOST"); host != "" {
		config.Server.Host = host
	}
	if port := os.Getenv("SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if uri := os.Getenv("MONGO_URI"); uri != "" {
		config.Mongo.URI = uri
	}
	if db := os.Getenv("MONGO_DATABASE"); db != "" {
		config.Mongo.Database = db
	}
	if secret := os.Getenv("JWT_SECRET"); secret != "" {
		config.Auth.JWTSecret = secret
	}
	if ttl := os.Getenv("JWT_EXPIRE"); ttl != "" {
		if d, err := time.ParseDuration(ttl); err == nil {
			config.Auth.TokenTTL = d
		}
	}
	if email := os.Getenv("ADMIN_EMAIL"); email != "" {
		config.Auth.AdminEmail = email
	}
	if pass := os.Getenv("ADMIN_PASSWORD"); pass != "" {
		config.Auth.AdminPassword = pass
	}
	if bucket := os.Getenv("STORAGE_BUCKET"); bucket != "" {
		config.Storage.Bucket = bucket
	}
	if region := os.Getenv("STORAGE_REGION"); region != "" {
		config.Storage.Region = region
	}
	if base := os.Getenv("STORAGE_PUBLIC_BASE_URL"); base != "" {
		config.Storage.PublicBaseURL = base
	}
	if size := os.Getenv("MAX_FILE_SIZE"); size != "" {
		if n, err := strconv.ParseInt(size, 10, 64); err == nil {
			config.Storage.MaxUploadSize = n
		}
	}
	if types := os.Getenv("ALLOWED_FILE_TYPES"); types != "" {
		config.Storage.AllowedTypes = strings.Split(types, ",")
	}
	if sched := os.Getenv("RECONCILE_SCHEDULE"); sched != "" {
		config.Worker.ReconcileSchedule = sched
	}
}

// GetServerAddr returns the server address
func (c *ServerConfig) GetServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
