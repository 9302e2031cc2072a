// Package container provides dependency injection and lifecycle management
// for the approval service following Clean Architecture principles.
package container

import (
	"fmt"
	"time"

	"github.com/garyjia/workflow-approval/pkg/database"
)

// Config holds all configuration for the Container.
// It aggregates configurations for all subsystems.
type Config struct {
	Database DatabaseConfig
	Lark     LarkConfig
	NATS     NATSConfig
	Workflow WorkflowConfig
	Storage  StorageConfig
	Worker   WorkerConfig
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	// Driver is sqlite3 or mysql
	Driver string

	// Path to SQLite database file
	Path string

	// DSN for MySQL
	DSN string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration

	// MigrationsDir is the path to migration files; empty skips migrations
	MigrationsDir string
}

// LarkConfig holds Lark messaging settings.
type LarkConfig struct {
	Enabled       bool
	AppID         string
	AppSecret     string
	ReceiveIDType string
	// BaseURL prefixes the action link of each message
	BaseURL string
}

// NATSConfig holds event bus settings.
type NATSConfig struct {
	Enabled       bool
	URL           string
	SubjectPrefix string
}

// WorkflowConfig controls how decisions are checked.
type WorkflowConfig struct {
	EnforceRoles    bool
	SequentialSteps bool
}

// StorageConfig holds file storage settings.
type StorageConfig struct {
	// ExportDir receives a copy of every generated export
	ExportDir string
}

// WorkerConfig holds background worker settings.
type WorkerConfig struct {
	OverdueSchedule string
	OverdueTimeout  time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Driver:          database.DriverSQLite,
			Path:            "data/approvals.db",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
			MigrationsDir:   "migrations/sqlite",
		},
		Lark: LarkConfig{
			ReceiveIDType: "user_id",
		},
		NATS: NATSConfig{
			URL:           "nats://127.0.0.1:4222",
			SubjectPrefix: "approvals",
		},
		Workflow: WorkflowConfig{
			EnforceRoles: true,
		},
		Storage: StorageConfig{
			ExportDir: "data/exports",
		},
		Worker: WorkerConfig{
			OverdueSchedule: "*/15 * * * *",
			OverdueTimeout:  time.Minute,
		},
	}
}

// Validate checks that required configuration values are present.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case database.DriverSQLite, "":
		if c.Database.Path == "" {
			return fmt.Errorf("database.path is required for sqlite")
		}
	case database.DriverMySQL:
		if c.Database.DSN == "" {
			return fmt.Errorf("database.dsn is required for mysql")
		}
	default:
		return fmt.Errorf("unsupported database driver: %s", c.Database.Driver)
	}

	if c.Lark.Enabled {
		if c.Lark.AppID == "" {
			return fmt.Errorf("lark.app_id is required")
		}
		if c.Lark.AppSecret == "" {
			return fmt.Errorf("lark.app_secret is required")
		}
	}

	if c.NATS.Enabled && c.NATS.URL == "" {
		return fmt.Errorf("nats.url is required")
	}

	if c.Storage.ExportDir == "" {
		return fmt.Errorf("storage.export_dir is required")
	}

	return nil
}
