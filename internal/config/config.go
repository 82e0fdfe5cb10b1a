// Package config loads process configuration from the environment and
// population tables from TOML files.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"

	"heredity/internal/enumerate"
)

// Storage driver names.
const (
	StorageMemory   = "memory"
	StorageSQLite   = "sqlite"
	StoragePostgres = "postgres"
)

// Blob driver names.
const (
	BlobFilesystem = "fs"
	BlobS3         = "s3"
	BlobMemory     = "memory"
)

// Config is the full process configuration.
type Config struct {
	Storage   Storage
	Blob      Blob
	Inference Inference
	LogLevel  string `env:"HEREDITY_LOG_LEVEL" envDefault:"info"`
}

// Storage selects the persistence backend.
type Storage struct {
	Driver      string `env:"HEREDITY_STORAGE_DRIVER" envDefault:"memory"`
	SQLitePath  string `env:"HEREDITY_SQLITE_PATH" envDefault:"heredity.db"`
	PostgresDSN string `env:"HEREDITY_POSTGRES_DSN"`
}

// Blob selects where exported reports are written.
type Blob struct {
	Driver string `env:"HEREDITY_BLOB_DRIVER" envDefault:"fs"`
	FSRoot string `env:"HEREDITY_BLOB_FS_ROOT" envDefault:"./blobdata"`
	S3     S3
}

// S3 holds S3 / MinIO settings used when Blob.Driver is "s3". Credentials
// fall back to the default AWS chain when AccessKeyID is empty.
type S3 struct {
	Bucket          string `env:"HEREDITY_BLOB_S3_BUCKET"`
	Region          string `env:"HEREDITY_BLOB_S3_REGION" envDefault:"us-east-1"`
	Endpoint        string `env:"HEREDITY_BLOB_S3_ENDPOINT"`
	PathStyle       bool   `env:"HEREDITY_BLOB_S3_PATH_STYLE"`
	AccessKeyID     string `env:"HEREDITY_BLOB_S3_ACCESS_KEY_ID"`
	SecretAccessKey string `env:"HEREDITY_BLOB_S3_SECRET_ACCESS_KEY"`
	SessionToken    string `env:"HEREDITY_BLOB_S3_SESSION_TOKEN"`
}

// Inference tunes the enumerator and names an optional tables file.
type Inference struct {
	TablesPath string `env:"HEREDITY_TABLES_PATH"`
	Workers    int    `env:"HEREDITY_WORKERS" envDefault:"1"`
	MaxPeople  int    `env:"HEREDITY_MAX_PEOPLE" envDefault:"12"`
}

// Load parses the process environment.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadEnvironment parses the supplied variables instead of the process
// environment.
func LoadEnvironment(vars map[string]string) (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Environment: vars}); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects unknown drivers and out-of-range limits.
func (c Config) Validate() error {
	switch c.Storage.Driver {
	case StorageMemory, StorageSQLite, StoragePostgres:
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	switch c.Blob.Driver {
	case BlobFilesystem, BlobMemory:
	case BlobS3:
		if c.Blob.S3.Bucket == "" {
			return fmt.Errorf("HEREDITY_BLOB_S3_BUCKET required for s3 driver")
		}
	default:
		return fmt.Errorf("unknown blob driver %q", c.Blob.Driver)
	}
	if c.Inference.Workers < 0 {
		return fmt.Errorf("workers must not be negative, got %d", c.Inference.Workers)
	}
	if c.Inference.MaxPeople <= 0 {
		return fmt.Errorf("max people must be positive, got %d", c.Inference.MaxPeople)
	}
	if c.Inference.MaxPeople > enumerate.MaxPeopleLimit {
		return fmt.Errorf("max people must not exceed %d, got %d", enumerate.MaxPeopleLimit, c.Inference.MaxPeople)
	}
	return nil
}
