package http

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/workflow-approval/internal/application/service"
)

// Version is reported by the health endpoint
const Version = "1.0.0"

// Handlers contains all HTTP request handlers
type Handlers struct {
	workflows     service.WorkflowService
	requests      service.RequestService
	notifications service.NotificationService
	health        HealthChecker
	logger        Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(services Services, health HealthChecker, logger Logger) *Handlers {
	return &Handlers{
		workflows:     services.Workflows,
		requests:      services.Requests,
		notifications: services.Notifications,
		health:        health,
		logger:        logger,
	}
}

// Response represents a standard JSON response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status     string            `json:"status"`
	Timestamp  string            `json:"timestamp"`
	Version    string            `json:"version"`
	Components map[string]string `json:"components,omitempty"`
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   Version,
	}

	status := http.StatusOK
	if h.health != nil {
		response.Components = h.health.Health(c.Request.Context())
		for _, state := range response.Components {
			if state != "healthy" {
				response.Status = "degraded"
				status = http.StatusServiceUnavailable
			}
		}
	}

	c.JSON(status, Response{
		Success: status == http.StatusOK,
		Data:    response,
	})
}

func ok(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{Success: true, Data: data})
}

func created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Response{Success: true, Data: data})
}

// bindPage reads pageNumber/pageSize query parameters
func (h *Handlers) bindPage(c *gin.Context) (service.Page, bool) {
	var page service.Page
	if err := c.ShouldBindQuery(&page); err != nil {
		h.badRequest(c, "invalid pagination parameters")
		return page, false
	}
	return page, true
}

// bindOptionalJSON binds the body when present; an empty body leaves v untouched
func (h *Handlers) bindOptionalJSON(c *gin.Context, v interface{}) bool {
	if c.Request.Body == nil || c.Request.ContentLength == 0 {
		return true
	}
	if err := c.ShouldBindJSON(v); err != nil && !errors.Is(err, io.EOF) {
		h.badRequest(c, "invalid request body")
		return false
	}
	return true
}

func (h *Handlers) bindJSON(c *gin.Context, v interface{}) bool {
	if err := c.ShouldBindJSON(v); err != nil {
		h.badRequest(c, "invalid request body")
		return false
	}
	return true
}
