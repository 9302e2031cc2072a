package config

import (
	"github.com/garyjia/workflow-approval/internal/container"
	httpapi "github.com/garyjia/workflow-approval/internal/interfaces/http"
	"github.com/garyjia/workflow-approval/pkg/utils"
)

// ToContainerConfig converts the application Config to a container.Config.
// This provides a bridge between the file-based config loaded by viper
// and the container's configuration structure.
func (c *Config) ToContainerConfig() *container.Config {
	return &container.Config{
		Database: container.DatabaseConfig{
			Driver:          c.Database.Driver,
			Path:            c.Database.Path,
			DSN:             c.Database.DSN,
			MaxOpenConns:    c.Database.MaxOpenConns,
			MaxIdleConns:    c.Database.MaxIdleConns,
			ConnMaxLifetime: c.Database.ConnMaxLifetime,
			MigrationsDir:   c.MigrationsDir(),
		},
		Lark: container.LarkConfig{
			Enabled:       c.Lark.Enabled,
			AppID:         c.Lark.AppID,
			AppSecret:     c.Lark.AppSecret,
			ReceiveIDType: c.Lark.ReceiveIDType,
			BaseURL:       c.Lark.BaseURL,
		},
		NATS: container.NATSConfig{
			Enabled:       c.NATS.Enabled,
			URL:           c.NATS.URL,
			SubjectPrefix: c.NATS.SubjectPrefix,
		},
		Workflow: container.WorkflowConfig{
			EnforceRoles:    c.Workflow.EnforceRoles,
			SequentialSteps: c.Workflow.SequentialSteps,
		},
		Storage: container.StorageConfig{
			ExportDir: c.Storage.ExportDir,
		},
		Worker: container.WorkerConfig{
			OverdueSchedule: c.Worker.OverdueSchedule,
			OverdueTimeout:  c.Worker.Timeout,
		},
	}
}

// ToServerConfig converts the server section to the HTTP server configuration.
func (c *Config) ToServerConfig() httpapi.ServerConfig {
	return httpapi.ServerConfig{
		Host:         c.Server.Host,
		Port:         c.Server.Port,
		ReadTimeout:  c.Server.ReadTimeout,
		WriteTimeout: c.Server.WriteTimeout,
		JWTSecret:    c.Server.JWTSecret,
		Mode:         c.Server.Mode,
	}
}

// ToLoggerConfig converts the logger section to the zap logger configuration.
func (c *Config) ToLoggerConfig() utils.LoggerConfig {
	return utils.LoggerConfig{
		Level:      c.Logger.Level,
		OutputPath: c.Logger.OutputPath,
		Format:     c.Logger.Format,
		Service:    "workflow-approval",
	}
}
