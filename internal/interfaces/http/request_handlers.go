package http

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/workflow-approval/internal/application/port"
	"github.com/garyjia/workflow-approval/internal/application/service"
	"github.com/garyjia/workflow-approval/internal/domain/entity"
	"github.com/garyjia/workflow-approval/pkg/utils"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// DecisionRequest is the optional body of approve/reject calls
type DecisionRequest struct {
	Comments *string `json:"comments"`
}

// requestFilterQuery holds the listing filters accepted on the query string
type requestFilterQuery struct {
	Status      string `form:"status"`
	Type        string `form:"type"`
	InitiatorID string `form:"initiatorId"`
	WorkflowID  string `form:"workflowId"`
}

func (q requestFilterQuery) toFilter() port.RequestFilter {
	return port.RequestFilter{
		InitiatorID: q.InitiatorID,
		Status:      entity.RequestStatus(q.Status),
		Type:        entity.RequestType(q.Type),
		WorkflowID:  q.WorkflowID,
	}
}

func (h *Handlers) bindFilter(c *gin.Context) (port.RequestFilter, bool) {
	var q requestFilterQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.badRequest(c, "invalid filter parameters")
		return port.RequestFilter{}, false
	}
	f := q.toFilter()
	if f.Status != "" && !f.Status.IsValid() {
		h.badRequest(c, fmt.Sprintf("unknown request status %q", q.Status))
		return f, false
	}
	if f.Type != "" && !f.Type.IsValid() {
		h.badRequest(c, fmt.Sprintf("unknown request type %q", q.Type))
		return f, false
	}
	return f, true
}

// ListRequests handles GET /api/v1/requests
func (h *Handlers) ListRequests(c *gin.Context) {
	filter, valid := h.bindFilter(c)
	if !valid {
		return
	}
	page, valid := h.bindPage(c)
	if !valid {
		return
	}
	result, err := h.requests.ListRequests(c.Request.Context(), filter, page)
	if err != nil {
		h.respondError(c, "list requests", err)
		return
	}
	ok(c, result)
}

// ListMyRequests handles GET /api/v1/requests/my-requests
func (h *Handlers) ListMyRequests(c *gin.Context) {
	page, valid := h.bindPage(c)
	if !valid {
		return
	}
	result, err := h.requests.ListRequestsByUser(c.Request.Context(), c.GetString(ContextUserID), page)
	if err != nil {
		h.respondError(c, "list my requests", err)
		return
	}
	ok(c, result)
}

// ListPendingApprovals handles GET /api/v1/requests/pending-approvals
func (h *Handlers) ListPendingApprovals(c *gin.Context) {
	page, valid := h.bindPage(c)
	if !valid {
		return
	}
	result, err := h.requests.ListPendingApprovals(c.Request.Context(), actorFrom(c), page)
	if err != nil {
		h.respondError(c, "list pending approvals", err)
		return
	}
	ok(c, result)
}

// ListRequestsByStatus handles GET /api/v1/requests/status/:status
func (h *Handlers) ListRequestsByStatus(c *gin.Context) {
	page, valid := h.bindPage(c)
	if !valid {
		return
	}
	result, err := h.requests.ListRequestsByStatus(c.Request.Context(), entity.RequestStatus(c.Param("status")), page)
	if err != nil {
		h.respondError(c, "list requests by status", err)
		return
	}
	ok(c, result)
}

// ExportRequests handles GET /api/v1/requests/export and returns an xlsx workbook
func (h *Handlers) ExportRequests(c *gin.Context) {
	filter, valid := h.bindFilter(c)
	if !valid {
		return
	}
	result, err := h.requests.ExportRequests(c.Request.Context(), filter)
	if err != nil {
		h.respondError(c, "export requests", err)
		return
	}

	filename := fmt.Sprintf("requests_%s.xlsx", time.Now().UTC().Format("20060102_150405"))
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	c.Header("X-Total-Count", strconv.Itoa(result.Total))
	if result.Truncated() {
		c.Header("X-Export-Truncated", "true")
	}
	c.Data(http.StatusOK, xlsxContentType, result.Data)
}

// GetRequest handles GET /api/v1/requests/:id
func (h *Handlers) GetRequest(c *gin.Context) {
	req, err := h.requests.GetRequest(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, "get request", err)
		return
	}
	ok(c, req)
}

// GetRequestWithSteps handles GET /api/v1/requests/:id/steps
func (h *Handlers) GetRequestWithSteps(c *gin.Context) {
	req, err := h.requests.GetRequestWithSteps(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, "get request with steps", err)
		return
	}
	ok(c, req)
}

// GetRequestHistory handles GET /api/v1/requests/:id/history
func (h *Handlers) GetRequestHistory(c *gin.Context) {
	history, err := h.requests.GetRequestHistory(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, "get request history", err)
		return
	}
	ok(c, history)
}

// CreateRequest handles POST /api/v1/requests; the caller becomes the initiator
func (h *Handlers) CreateRequest(c *gin.Context) {
	var input service.CreateRequestInput
	if !h.bindJSON(c, &input) {
		return
	}
	input.InitiatorID = c.GetString(ContextUserID)
	input.Title = utils.SanitizeOptional(input.Title)
	input.Description = utils.SanitizeOptional(input.Description)

	req, err := h.requests.CreateRequest(c.Request.Context(), input)
	if err != nil {
		h.respondError(c, "create request", err)
		return
	}
	created(c, req)
}

// UpdateRequest handles PUT /api/v1/requests/:id
func (h *Handlers) UpdateRequest(c *gin.Context) {
	var input service.UpdateRequestInput
	if !h.bindJSON(c, &input) {
		return
	}
	input.Title = utils.SanitizeOptional(input.Title)
	input.Description = utils.SanitizeOptional(input.Description)

	req, err := h.requests.UpdateRequest(c.Request.Context(), c.Param("id"), actorFrom(c), input)
	if err != nil {
		h.respondError(c, "update request", err)
		return
	}
	ok(c, req)
}

// DeleteRequest handles DELETE /api/v1/requests/:id
func (h *Handlers) DeleteRequest(c *gin.Context) {
	if err := h.requests.DeleteRequest(c.Request.Context(), c.Param("id")); err != nil {
		h.respondError(c, "delete request", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ArchiveRequest handles POST /api/v1/requests/:id/archive
func (h *Handlers) ArchiveRequest(c *gin.Context) {
	req, err := h.requests.ArchiveRequest(c.Request.Context(), c.Param("id"), actorFrom(c))
	if err != nil {
		h.respondError(c, "archive request", err)
		return
	}
	ok(c, req)
}

// ApproveStep handles POST /api/v1/requests/:id/steps/:stepId/approve
func (h *Handlers) ApproveStep(c *gin.Context) {
	h.decide(c, "approve step", h.requests.ApproveStep)
}

// RejectStep handles POST /api/v1/requests/:id/steps/:stepId/reject
func (h *Handlers) RejectStep(c *gin.Context) {
	h.decide(c, "reject step", h.requests.RejectStep)
}

func (h *Handlers) decide(c *gin.Context, op string, fn func(ctx context.Context, requestID, stepID string, validator service.Actor, comments *string) (*entity.Request, error)) {
	var body DecisionRequest
	if !h.bindOptionalJSON(c, &body) {
		return
	}

	actor := actorFrom(c)
	req, err := fn(c.Request.Context(), c.Param("id"), c.Param("stepId"), actor, utils.SanitizeOptional(body.Comments))
	if err != nil {
		h.respondError(c, op, err)
		return
	}

	h.logger.Info("Step decided",
		"operation", op,
		"request_id", req.ID,
		"step_id", c.Param("stepId"),
		"validator_id", actor.ID,
		"status", string(req.Status))
	ok(c, req)
}
