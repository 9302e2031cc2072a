package container

import (
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/garyjia/workflow-approval/internal/application/dispatcher"
	"github.com/garyjia/workflow-approval/internal/application/handler"
	"github.com/garyjia/workflow-approval/internal/application/port"
	"github.com/garyjia/workflow-approval/internal/application/service"
	"github.com/garyjia/workflow-approval/internal/infrastructure/export"
	infraLark "github.com/garyjia/workflow-approval/internal/infrastructure/external/lark"
	infraNats "github.com/garyjia/workflow-approval/internal/infrastructure/external/nats"
	"github.com/garyjia/workflow-approval/internal/infrastructure/persistence/repository"
	"github.com/garyjia/workflow-approval/internal/infrastructure/persistence/sqldb"
	"github.com/garyjia/workflow-approval/internal/infrastructure/storage"
	"github.com/garyjia/workflow-approval/internal/infrastructure/worker"
	"github.com/garyjia/workflow-approval/pkg/database"
)

// DatabaseBundle holds database-related components.
type DatabaseBundle struct {
	Conn           *database.DB
	TransactionMgr *sqldb.DB
}

// ChannelBundle holds the outbound delivery adapters that are enabled.
type ChannelBundle struct {
	Publisher *infraNats.Publisher // nil when NATS is disabled
	Messenger *infraLark.Messenger // nil when Lark is disabled
}

// Channels lists the enabled notification channels in delivery order.
func (b *ChannelBundle) Channels() []port.NotificationChannel {
	var channels []port.NotificationChannel
	if b.Messenger != nil {
		channels = append(channels, b.Messenger)
	}
	if b.Publisher != nil {
		channels = append(channels, b.Publisher)
	}
	return channels
}

// StorageBundle holds storage-related components.
type StorageBundle struct {
	FileStorage port.FileStorage
	Exporter    port.RequestExporter
}

// ProvideDatabase opens the database and runs pending migrations.
func ProvideDatabase(cfg *DatabaseConfig, logger *zap.Logger) (*DatabaseBundle, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	// Open the database; sqlite gets WAL mode and a busy timeout
	conn, err := database.New(database.Config{
		Driver:          cfg.Driver,
		Path:            cfg.Path,
		DSN:             cfg.DSN,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
	}, logger)
	if err != nil {
		return nil, err
	}

	// Run database migrations if migrations directory is configured
	if cfg.MigrationsDir != "" {
		if err := database.NewMigrator(conn, logger).RunMigrations(cfg.MigrationsDir); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	// Create transaction manager wrapper
	return &DatabaseBundle{
		Conn:           conn,
		TransactionMgr: sqldb.NewDB(conn.DB, logger),
	}, nil
}

// ProvideRepositories creates all repositories from a database connection.
func ProvideRepositories(sqlDB *sql.DB, logger *zap.Logger) (*RepositoryBundle, error) {
	if sqlDB == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	return &RepositoryBundle{
		Workflow:     repository.NewWorkflowRepository(sqlDB, logger),
		Request:      repository.NewRequestRepository(sqlDB, logger),
		Notification: repository.NewNotificationRepository(sqlDB, logger),
		History:      repository.NewHistoryRepository(sqlDB, logger),
	}, nil
}

// ProvideChannels connects the enabled delivery adapters.
func ProvideChannels(larkCfg *LarkConfig, natsCfg *NATSConfig, logger *zap.Logger) (*ChannelBundle, error) {
	if larkCfg == nil || natsCfg == nil {
		return nil, fmt.Errorf("channel config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	bundle := &ChannelBundle{}

	if natsCfg.Enabled {
		publisher, err := infraNats.NewPublisher(infraNats.Config{
			URL:           natsCfg.URL,
			SubjectPrefix: natsCfg.SubjectPrefix,
		}, logger)
		if err != nil {
			return nil, err
		}
		bundle.Publisher = publisher
	}

	if larkCfg.Enabled {
		bundle.Messenger = infraLark.NewMessenger(infraLark.Config{
			AppID:         larkCfg.AppID,
			AppSecret:     larkCfg.AppSecret,
			ReceiveIDType: larkCfg.ReceiveIDType,
			BaseURL:       larkCfg.BaseURL,
		}, logger)
	}

	return bundle, nil
}

// ProvideStorage creates export storage and the spreadsheet exporter.
func ProvideStorage(cfg *StorageConfig, logger *zap.Logger) (*StorageBundle, error) {
	if cfg == nil {
		return nil, fmt.Errorf("storage config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	return &StorageBundle{
		FileStorage: storage.NewLocalFileStorage(cfg.ExportDir, logger),
		Exporter:    export.NewXLSXExporter(logger),
	}, nil
}

// ProvideDispatcher creates the event dispatcher.
func ProvideDispatcher(logger *zap.Logger) (dispatcher.Dispatcher, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	// Create dispatcher logger adapter
	return dispatcher.NewDispatcher(
		dispatcher.WithLogger(&zapLoggerAdapter{logger: logger}),
	), nil
}

// ServiceDeps holds dependencies required for creating services.
type ServiceDeps struct {
	Repos      *RepositoryBundle
	TxManager  port.TransactionManager
	Channels   []port.NotificationChannel
	Storage    *StorageBundle
	Dispatcher dispatcher.Dispatcher
	Workflow   *WorkflowConfig
	Logger     *zap.Logger
}

// ProvideServices creates all application services.
func ProvideServices(deps *ServiceDeps) (*ServiceBundle, error) {
	if deps == nil {
		return nil, fmt.Errorf("service dependencies are required")
	}
	if deps.Repos == nil {
		return nil, fmt.Errorf("repositories are required")
	}
	if deps.TxManager == nil {
		return nil, fmt.Errorf("transaction manager is required")
	}
	if deps.Workflow == nil {
		return nil, fmt.Errorf("workflow config is required")
	}
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	// Create logger adapter for services
	serviceLogger := &zapLoggerAdapter{logger: deps.Logger}

	opts := []service.RequestServiceOption{
		service.WithRoleEnforcement(deps.Workflow.EnforceRoles),
		service.WithSequentialSteps(deps.Workflow.SequentialSteps),
	}
	if deps.Dispatcher != nil {
		opts = append(opts, service.WithEventDispatcher(deps.Dispatcher))
	}
	if deps.Storage != nil {
		opts = append(opts, service.WithExporter(deps.Storage.Exporter, deps.Storage.FileStorage))
	}

	return &ServiceBundle{
		Workflow: service.NewWorkflowService(
			deps.Repos.Workflow,
			deps.TxManager,
			serviceLogger,
		),
		Request: service.NewRequestService(
			deps.Repos.Request,
			deps.Repos.Workflow,
			deps.Repos.History,
			deps.TxManager,
			serviceLogger,
			opts...,
		),
		Notification: service.NewNotificationService(
			deps.Repos.Notification,
			deps.Channels,
			serviceLogger,
		),
	}, nil
}

// RegisterEventHandlers subscribes the notification handler, and the bus
// forwarder when a publisher is configured.
func RegisterEventHandlers(d dispatcher.Dispatcher, services *ServiceBundle, publisher port.EventPublisher, logger *zap.Logger) error {
	if d == nil {
		return fmt.Errorf("dispatcher is required")
	}
	if services == nil {
		return fmt.Errorf("services are required")
	}

	handlerLogger := &zapLoggerAdapter{logger: logger}
	handler.NewNotificationHandler(services.Notification, handlerLogger).Register(d)
	if publisher != nil {
		handler.NewEventForwarder(publisher, handlerLogger).Register(d)
	}
	return nil
}

// ProvideWorkers creates the worker manager with all workers registered but not started.
func ProvideWorkers(cfg *WorkerConfig, reminder worker.OverdueReminder, logger *zap.Logger) (*worker.Manager, error) {
	if cfg == nil {
		return nil, fmt.Errorf("worker config is required")
	}
	if reminder == nil {
		return nil, fmt.Errorf("overdue reminder is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	manager := worker.NewManager(logger)
	manager.Register(worker.NewOverdueWorker(worker.OverdueWorkerConfig{
		Schedule: cfg.OverdueSchedule,
		Timeout:  cfg.OverdueTimeout,
	}, reminder, logger))

	return manager, nil
}
