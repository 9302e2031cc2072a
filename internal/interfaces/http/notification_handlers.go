package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/workflow-approval/internal/application/service"
)

// ListNotifications handles GET /api/v1/notifications
func (h *Handlers) ListNotifications(c *gin.Context) {
	page, valid := h.bindPage(c)
	if !valid {
		return
	}
	result, err := h.notifications.ListNotifications(c.Request.Context(), page)
	if err != nil {
		h.respondError(c, "list notifications", err)
		return
	}
	ok(c, result)
}

// ListMyNotifications handles GET /api/v1/notifications/my-notifications
func (h *Handlers) ListMyNotifications(c *gin.Context) {
	page, valid := h.bindPage(c)
	if !valid {
		return
	}
	result, err := h.notifications.ListUserNotifications(c.Request.Context(), c.GetString(ContextUserID), page)
	if err != nil {
		h.respondError(c, "list my notifications", err)
		return
	}
	ok(c, result)
}

// ListUnread handles GET /api/v1/notifications/unread
func (h *Handlers) ListUnread(c *gin.Context) {
	page, valid := h.bindPage(c)
	if !valid {
		return
	}
	result, err := h.notifications.ListUnread(c.Request.Context(), c.GetString(ContextUserID), page)
	if err != nil {
		h.respondError(c, "list unread notifications", err)
		return
	}
	ok(c, result)
}

// UnreadCount handles GET /api/v1/notifications/unread-count
func (h *Handlers) UnreadCount(c *gin.Context) {
	count, err := h.notifications.UnreadCount(c.Request.Context(), c.GetString(ContextUserID))
	if err != nil {
		h.respondError(c, "count unread notifications", err)
		return
	}
	ok(c, gin.H{"count": count})
}

// GetNotification handles GET /api/v1/notifications/:id
func (h *Handlers) GetNotification(c *gin.Context) {
	n, err := h.notifications.GetNotification(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, "get notification", err)
		return
	}
	ok(c, n)
}

// CreateNotification handles POST /api/v1/notifications
func (h *Handlers) CreateNotification(c *gin.Context) {
	var input service.CreateNotificationInput
	if !h.bindJSON(c, &input) {
		return
	}
	n, err := h.notifications.CreateNotification(c.Request.Context(), input)
	if err != nil {
		h.respondError(c, "create notification", err)
		return
	}
	created(c, n)
}

// UpdateNotification handles PUT /api/v1/notifications/:id
func (h *Handlers) UpdateNotification(c *gin.Context) {
	var input service.UpdateNotificationInput
	if !h.bindJSON(c, &input) {
		return
	}
	n, err := h.notifications.UpdateNotification(c.Request.Context(), c.Param("id"), input)
	if err != nil {
		h.respondError(c, "update notification", err)
		return
	}
	ok(c, n)
}

// DeleteNotification handles DELETE /api/v1/notifications/:id
func (h *Handlers) DeleteNotification(c *gin.Context) {
	if err := h.notifications.DeleteNotification(c.Request.Context(), c.Param("id")); err != nil {
		h.respondError(c, "delete notification", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// MarkAsRead handles PATCH /api/v1/notifications/:id/mark-read
func (h *Handlers) MarkAsRead(c *gin.Context) {
	n, err := h.notifications.MarkAsRead(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, "mark notification read", err)
		return
	}
	ok(c, n)
}

// MarkAllAsRead handles PATCH /api/v1/notifications/mark-all-read
func (h *Handlers) MarkAllAsRead(c *gin.Context) {
	updated, err := h.notifications.MarkAllAsRead(c.Request.Context(), c.GetString(ContextUserID))
	if err != nil {
		h.respondError(c, "mark all notifications read", err)
		return
	}
	ok(c, gin.H{"updated": updated})
}
