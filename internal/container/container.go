package container

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/garyjia/workflow-approval/internal/application/dispatcher"
	"github.com/garyjia/workflow-approval/internal/application/port"
	"github.com/garyjia/workflow-approval/internal/application/service"
	"github.com/garyjia/workflow-approval/internal/domain/event"
	"github.com/garyjia/workflow-approval/internal/infrastructure/persistence/sqldb"
	"github.com/garyjia/workflow-approval/internal/infrastructure/worker"
	"github.com/garyjia/workflow-approval/pkg/database"
)

// Health states reported per component
const (
	StateHealthy   = "healthy"
	StateUnhealthy = "unhealthy"
)

// Container manages all application dependencies and lifecycle.
// Components are initialized in dependency order and torn down in reverse.
type Container struct {
	config *Config
	logger *zap.Logger

	// Infrastructure - Data
	conn         *database.DB
	db           *sqldb.DB
	repositories *RepositoryBundle

	// Infrastructure - External
	channels *ChannelBundle
	storage  *StorageBundle

	// Application
	dispatcher dispatcher.Dispatcher
	services   *ServiceBundle

	// Workers
	workers *worker.Manager

	// Lifecycle
	mu     sync.RWMutex
	ctx    context.Context
	cancel context.CancelFunc
	ready  atomic.Bool
	closed atomic.Bool
}

// RepositoryBundle groups all repositories for convenient access.
type RepositoryBundle struct {
	Workflow     port.WorkflowRepository
	Request      port.RequestRepository
	Notification port.NotificationRepository
	History      port.HistoryRepository
}

// ServiceBundle groups all application services.
type ServiceBundle struct {
	Workflow     service.WorkflowService
	Request      service.RequestService
	Notification service.NotificationService
}

// NewContainer creates a new container from configuration.
// It does not initialize components - call Start() to initialize.
func NewContainer(cfg *Config, logger *zap.Logger) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Container{
		config: cfg,
		logger: logger,
	}, nil
}

// Start initializes all components and begins processing.
// Components are initialized in dependency order:
// 1. Database and repositories
// 2. Delivery channels (NATS, Lark)
// 3. Storage and exporter
// 4. Event dispatcher and application services
// 5. Event handlers
// 6. Workers
func (c *Container) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container has been closed")
	}

	if c.ready.Load() {
		return fmt.Errorf("container already started")
	}

	c.ctx, c.cancel = context.WithCancel(ctx)
	c.logger.Info("Starting container initialization")

	// Step 1: Initialize database and repositories
	if err := c.initDatabase(); err != nil {
		c.teardown()
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	c.logger.Info("Database initialized")

	// Step 2: Connect delivery channels
	if err := c.initChannels(); err != nil {
		c.teardown()
		return fmt.Errorf("failed to initialize channels: %w", err)
	}
	c.logger.Info("Channels initialized",
		zap.Bool("nats", c.channels.Publisher != nil),
		zap.Bool("lark", c.channels.Messenger != nil))

	// Step 3: Initialize storage
	if err := c.initStorage(); err != nil {
		c.teardown()
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	c.logger.Info("Storage initialized")

	// Step 4: Initialize dispatcher and services
	if err := c.initServices(); err != nil {
		c.teardown()
		return fmt.Errorf("failed to initialize services: %w", err)
	}
	c.logger.Info("Application services initialized")

	// Step 5: Subscribe event handlers
	if err := c.initEventHandlers(); err != nil {
		c.teardown()
		return fmt.Errorf("failed to register event handlers: %w", err)
	}
	c.logger.Info("Event handlers registered")

	// Step 6: Initialize and start workers
	if err := c.initWorkers(); err != nil {
		c.teardown()
		return fmt.Errorf("failed to initialize workers: %w", err)
	}
	c.logger.Info("Workers initialized and started")

	c.ready.Store(true)
	c.logger.Info("Container started successfully")

	return nil
}

// Close gracefully shuts down all components in reverse order.
func (c *Container) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container already closed")
	}

	c.logger.Info("Closing container")

	errs := c.teardown()

	c.closed.Store(true)
	c.ready.Store(false)

	if len(errs) > 0 {
		c.logger.Error("Container closed with errors", zap.Int("error_count", len(errs)))
		return fmt.Errorf("container closed with %d errors", len(errs))
	}

	c.logger.Info("Container closed successfully")
	return nil
}

// teardown releases whatever has been initialized so far, newest first.
func (c *Container) teardown() []error {
	var errs []error

	if c.cancel != nil {
		c.cancel()
	}

	// Step 1: Stop workers (reverse of step 6)
	if c.workers != nil {
		if err := c.workers.StopAll(); err != nil {
			c.logger.Error("Failed to stop workers", zap.Error(err))
			errs = append(errs, fmt.Errorf("stop workers: %w", err))
		} else {
			c.logger.Info("Workers stopped")
		}
		c.workers = nil
	}

	// Step 2: Close dispatcher, waiting for async handlers (reverse of step 4)
	if c.dispatcher != nil {
		if err := c.dispatcher.Close(); err != nil {
			c.logger.Error("Failed to close dispatcher", zap.Error(err))
			errs = append(errs, fmt.Errorf("close dispatcher: %w", err))
		} else {
			c.logger.Info("Dispatcher closed")
		}
		c.dispatcher = nil
	}

	// Step 3: Drain the event bus (reverse of step 2)
	if c.channels != nil && c.channels.Publisher != nil {
		if err := c.channels.Publisher.Close(); err != nil {
			c.logger.Error("Failed to close NATS publisher", zap.Error(err))
			errs = append(errs, fmt.Errorf("close nats: %w", err))
		} else {
			c.logger.Info("NATS publisher closed")
		}
		c.channels.Publisher = nil
	}

	// Step 4: Close database (reverse of step 1)
	if c.conn != nil {
		if err := c.conn.Close(); err != nil {
			c.logger.Error("Failed to close database", zap.Error(err))
			errs = append(errs, fmt.Errorf("close database: %w", err))
		} else {
			c.logger.Info("Database closed")
		}
		c.conn = nil
	}

	return errs
}

// Ready returns true when all components are initialized.
func (c *Container) Ready() bool {
	return c.ready.Load()
}

// Health reports the state of each component.
// Implements the HTTP layer's HealthChecker.
func (c *Container) Health(ctx context.Context) map[string]string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	status := map[string]string{
		"database":   StateUnhealthy,
		"dispatcher": StateUnhealthy,
		"workers":    StateUnhealthy,
	}

	if c.conn != nil {
		if err := c.conn.PingContext(ctx); err == nil {
			status["database"] = StateHealthy
		} else {
			c.logger.Warn("Database ping failed", zap.Error(err))
		}
	}

	if c.dispatcher != nil {
		status["dispatcher"] = StateHealthy
	}

	if c.workers != nil && c.workers.IsRunning() {
		status["workers"] = StateHealthy
	}

	// disabled integrations are left out rather than reported unhealthy
	if c.channels != nil {
		if c.channels.Publisher != nil {
			status["nats"] = StateHealthy
		}
		if c.channels.Messenger != nil {
			status["lark"] = StateHealthy
		}
	}

	return status
}

func (c *Container) initDatabase() error {
	dbBundle, err := ProvideDatabase(&c.config.Database, c.logger)
	if err != nil {
		return err
	}

	c.conn = dbBundle.Conn
	c.db = dbBundle.TransactionMgr

	repos, err := ProvideRepositories(c.conn.DB, c.logger)
	if err != nil {
		_ = c.conn.Close()
		c.conn = nil
		return err
	}

	c.repositories = repos
	return nil
}

func (c *Container) initChannels() error {
	channels, err := ProvideChannels(&c.config.Lark, &c.config.NATS, c.logger)
	if err != nil {
		return err
	}
	c.channels = channels
	return nil
}

func (c *Container) initStorage() error {
	storageBundle, err := ProvideStorage(&c.config.Storage, c.logger)
	if err != nil {
		return err
	}
	c.storage = storageBundle
	return nil
}

func (c *Container) initServices() error {
	disp, err := ProvideDispatcher(c.logger)
	if err != nil {
		return err
	}
	c.dispatcher = disp

	services, err := ProvideServices(&ServiceDeps{
		Repos:      c.repositories,
		TxManager:  c.db,
		Channels:   c.channels.Channels(),
		Storage:    c.storage,
		Dispatcher: c.dispatcher,
		Workflow:   &c.config.Workflow,
		Logger:     c.logger,
	})
	if err != nil {
		return err
	}

	c.services = services
	return nil
}

func (c *Container) initEventHandlers() error {
	var publisher port.EventPublisher
	if c.channels.Publisher != nil {
		publisher = c.channels.Publisher
	}
	if err := RegisterEventHandlers(c.dispatcher, c.services, publisher, c.logger); err != nil {
		return err
	}

	for _, t := range event.AllTypes() {
		for _, h := range c.dispatcher.ListHandlers(t) {
			c.logger.Debug("Event handler subscribed",
				zap.String("event_type", string(t)),
				zap.String("handler", h.Name))
		}
	}
	return nil
}

func (c *Container) initWorkers() error {
	workers, err := ProvideWorkers(&c.config.Worker, c.services.Request, c.logger)
	if err != nil {
		return err
	}
	c.workers = workers

	if err := c.workers.StartAll(c.ctx); err != nil {
		return fmt.Errorf("failed to start workers: %w", err)
	}

	return nil
}

// Getters for accessing container components

// DB returns the transaction manager.
func (c *Container) DB() port.TransactionManager {
	return c.db
}

// Repositories returns all repositories.
func (c *Container) Repositories() *RepositoryBundle {
	return c.repositories
}

// Dispatcher returns the event dispatcher.
func (c *Container) Dispatcher() dispatcher.Dispatcher {
	return c.dispatcher
}

// Services returns all application services.
func (c *Container) Services() *ServiceBundle {
	return c.services
}

// Workers returns the worker manager.
func (c *Container) Workers() *worker.Manager {
	return c.workers
}

// Logger returns the container's logger.
func (c *Container) Logger() *zap.Logger {
	return c.logger
}

// Config returns the container's configuration.
func (c *Container) Config() *Config {
	return c.config
}

// NewLogger adapts a zap logger to the key/value Logger used by services and handlers.
func NewLogger(logger *zap.Logger) service.Logger {
	return &zapLoggerAdapter{logger: logger}
}

// zapLoggerAdapter adapts zap.Logger to the service, dispatcher and HTTP Logger interfaces.
type zapLoggerAdapter struct {
	logger *zap.Logger
}

func (a *zapLoggerAdapter) Info(msg string, keysAndValues ...interface{}) {
	a.logger.Info(msg, convertToZapFields(keysAndValues...)...)
}

func (a *zapLoggerAdapter) Error(msg string, keysAndValues ...interface{}) {
	a.logger.Error(msg, convertToZapFields(keysAndValues...)...)
}

// convertToZapFields converts key-value pairs to zap fields.
func convertToZapFields(keysAndValues ...interface{}) []zap.Field {
	fields := make([]zap.Field, 0, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		key, ok := keysAndValues[i].(string)
		if !ok {
			continue
		}
		if err, isErr := keysAndValues[i+1].(error); isErr {
			fields = append(fields, zap.NamedError(key, err))
			continue
		}
		fields = append(fields, zap.Any(key, keysAndValues[i+1]))
	}
	return fields
}
