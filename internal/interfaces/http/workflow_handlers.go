package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/workflow-approval/internal/application/service"
)

// ListWorkflows handles GET /api/v1/workflows
func (h *Handlers) ListWorkflows(c *gin.Context) {
	page, valid := h.bindPage(c)
	if !valid {
		return
	}
	result, err := h.workflows.ListWorkflows(c.Request.Context(), page)
	if err != nil {
		h.respondError(c, "list workflows", err)
		return
	}
	ok(c, result)
}

// ListActiveWorkflows handles GET /api/v1/workflows/active
func (h *Handlers) ListActiveWorkflows(c *gin.Context) {
	page, valid := h.bindPage(c)
	if !valid {
		return
	}
	result, err := h.workflows.ListActiveWorkflows(c.Request.Context(), page)
	if err != nil {
		h.respondError(c, "list active workflows", err)
		return
	}
	ok(c, result)
}

// GetWorkflow handles GET /api/v1/workflows/:id
func (h *Handlers) GetWorkflow(c *gin.Context) {
	wf, err := h.workflows.GetWorkflow(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, "get workflow", err)
		return
	}
	ok(c, wf)
}

// GetWorkflowWithSteps handles GET /api/v1/workflows/:id/steps
func (h *Handlers) GetWorkflowWithSteps(c *gin.Context) {
	wf, err := h.workflows.GetWorkflowWithSteps(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, "get workflow with steps", err)
		return
	}
	ok(c, wf)
}

// CreateWorkflow handles POST /api/v1/workflows
func (h *Handlers) CreateWorkflow(c *gin.Context) {
	var input service.CreateWorkflowInput
	if !h.bindJSON(c, &input) {
		return
	}
	wf, err := h.workflows.CreateWorkflow(c.Request.Context(), input)
	if err != nil {
		h.respondError(c, "create workflow", err)
		return
	}
	h.logger.Info("Workflow created", "workflow_id", wf.ID, "user_id", c.GetString(ContextUserID))
	created(c, wf)
}

// UpdateWorkflow handles PUT /api/v1/workflows/:id
func (h *Handlers) UpdateWorkflow(c *gin.Context) {
	var input service.UpdateWorkflowInput
	if !h.bindJSON(c, &input) {
		return
	}
	wf, err := h.workflows.UpdateWorkflow(c.Request.Context(), c.Param("id"), input)
	if err != nil {
		h.respondError(c, "update workflow", err)
		return
	}
	ok(c, wf)
}

// ReplaceWorkflowSteps handles PUT /api/v1/workflows/:id/steps
func (h *Handlers) ReplaceWorkflowSteps(c *gin.Context) {
	var steps []service.StepInput
	if !h.bindJSON(c, &steps) {
		return
	}
	wf, err := h.workflows.ReplaceWorkflowSteps(c.Request.Context(), c.Param("id"), steps)
	if err != nil {
		h.respondError(c, "replace workflow steps", err)
		return
	}
	ok(c, wf)
}

// DeleteWorkflow handles DELETE /api/v1/workflows/:id
func (h *Handlers) DeleteWorkflow(c *gin.Context) {
	if err := h.workflows.DeleteWorkflow(c.Request.Context(), c.Param("id")); err != nil {
		h.respondError(c, "delete workflow", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ActivateWorkflow handles PATCH /api/v1/workflows/:id/activate
func (h *Handlers) ActivateWorkflow(c *gin.Context) {
	wf, err := h.workflows.ActivateWorkflow(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, "activate workflow", err)
		return
	}
	ok(c, wf)
}

// DeactivateWorkflow handles PATCH /api/v1/workflows/:id/deactivate
func (h *Handlers) DeactivateWorkflow(c *gin.Context) {
	wf, err := h.workflows.DeactivateWorkflow(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, "deactivate workflow", err)
		return
	}
	ok(c, wf)
}
