// Package http exposes the application services over a JSON API.
// Handlers translate HTTP requests to service calls and map service errors to status codes.
package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/workflow-approval/internal/application/service"
)

// Logger interface for logging operations
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// HealthChecker reports the state of each dependency, e.g. {"database": "healthy"}
type HealthChecker interface {
	Health(ctx context.Context) map[string]string
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	JWTSecret    string
	Mode         string // gin mode: release, debug or test
}

// DefaultServerConfig returns default server configuration
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Host:         "0.0.0.0",
		Port:         8080,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		Mode:         gin.ReleaseMode,
	}
}

// Services groups the application services the API exposes
type Services struct {
	Workflows     service.WorkflowService
	Requests      service.RequestService
	Notifications service.NotificationService
}

// Server is the HTTP server adapter
type Server struct {
	config     ServerConfig
	httpServer *http.Server
	router     *gin.Engine
	handlers   *Handlers
	logger     Logger
}

// NewServer creates a new HTTP server with the given services
func NewServer(config ServerConfig, services Services, health HealthChecker, logger Logger) *Server {
	mode := config.Mode
	if mode == "" {
		mode = gin.ReleaseMode
	}
	gin.SetMode(mode)

	server := &Server{
		config:   config,
		router:   gin.New(),
		handlers: NewHandlers(services, health, logger),
		logger:   logger,
	}

	server.setupMiddleware()
	server.setupRoutes()

	return server
}

func (s *Server) setupMiddleware() {
	s.router.Use(gin.Recovery())
	s.router.Use(s.loggingMiddleware())
}

func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		s.logger.Info("HTTP request",
			"method", method,
			"path", path,
			"status", c.Writer.Status(),
			"latency", time.Since(start).String(),
			"client_ip", c.ClientIP(),
			"user_id", c.GetString(ContextUserID),
		)
	}
}

func (s *Server) setupRoutes() {
	h := s.handlers

	s.router.GET("/health", h.HealthCheck)

	api := s.router.Group("/api/v1")
	api.Use(AuthMiddleware(s.config.JWTSecret))

	workflows := api.Group("/workflows")
	{
		workflows.GET("", h.ListWorkflows)
		workflows.GET("/active", h.ListActiveWorkflows)
		workflows.GET("/:id", h.GetWorkflow)
		workflows.GET("/:id/steps", h.GetWorkflowWithSteps)
		workflows.POST("", h.CreateWorkflow)
		workflows.PUT("/:id", h.UpdateWorkflow)
		workflows.PUT("/:id/steps", h.ReplaceWorkflowSteps)
		workflows.DELETE("/:id", h.DeleteWorkflow)
		workflows.PATCH("/:id/activate", h.ActivateWorkflow)
		workflows.PATCH("/:id/deactivate", h.DeactivateWorkflow)
	}

	requests := api.Group("/requests")
	{
		requests.GET("", h.ListRequests)
		requests.GET("/my-requests", h.ListMyRequests)
		requests.GET("/pending-approvals", h.ListPendingApprovals)
		requests.GET("/status/:status", h.ListRequestsByStatus)
		requests.GET("/export", h.ExportRequests)
		requests.GET("/:id", h.GetRequest)
		requests.GET("/:id/steps", h.GetRequestWithSteps)
		requests.GET("/:id/history", h.GetRequestHistory)
		requests.POST("", h.CreateRequest)
		requests.PUT("/:id", h.UpdateRequest)
		requests.DELETE("/:id", h.DeleteRequest)
		requests.POST("/:id/archive", h.ArchiveRequest)
		requests.POST("/:id/steps/:stepId/approve", h.ApproveStep)
		requests.POST("/:id/steps/:stepId/reject", h.RejectStep)
	}

	notifications := api.Group("/notifications")
	{
		notifications.GET("", h.ListNotifications)
		notifications.GET("/my-notifications", h.ListMyNotifications)
		notifications.GET("/unread", h.ListUnread)
		notifications.GET("/unread-count", h.UnreadCount)
		notifications.PATCH("/mark-all-read", h.MarkAllAsRead)
		notifications.GET("/:id", h.GetNotification)
		notifications.POST("", h.CreateNotification)
		notifications.PUT("/:id", h.UpdateNotification)
		notifications.DELETE("/:id", h.DeleteNotification)
		notifications.PATCH("/:id/mark-read", h.MarkAsRead)
	}
}

// Start serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Start(ctx context.Context) error {
	addr := s.Address()

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	s.logger.Info("Starting HTTP server", "address", addr)

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("HTTP server shutdown requested")
		return s.Stop()
	case err := <-errCh:
		s.logger.Error("HTTP server error", "error", err)
		return err
	}
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop() error {
	if s.httpServer == nil {
		return nil
	}

	s.logger.Info("Stopping HTTP server")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("HTTP server shutdown error", "error", err)
		return err
	}

	s.logger.Info("HTTP server stopped")
	return nil
}

// Router returns the underlying gin router (for testing)
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Address returns the server address
func (s *Server) Address() string {
	return fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
}
