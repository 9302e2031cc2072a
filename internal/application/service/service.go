package service

import (
	"context"
	"strings"

	"github.com/garyjia/workflow-approval/internal/domain/event"
)

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// EventDispatcher receives domain events once the producing transaction has committed
type EventDispatcher interface {
	Dispatch(ctx context.Context, evt *event.Event) error
	DispatchAsync(ctx context.Context, evt *event.Event)
}

// RoleAdmin may perform administrative actions such as archiving
const RoleAdmin = "admin"

// Actor is the authenticated caller performing an operation
type Actor struct {
	ID    string
	Roles []string
}

// HasRole reports whether the actor carries role (case-insensitive)
func (a Actor) HasRole(role string) bool {
	for _, r := range a.Roles {
		if strings.EqualFold(r, role) {
			return true
		}
	}
	return false
}

// Page is a 1-based page request
type Page struct {
	PageNumber int `form:"pageNumber" json:"page_number"`
	PageSize   int `form:"pageSize" json:"page_size"`
}

const (
	defaultPageSize = 10
	maxPageSize     = 50
	// keeps Offset well inside int range
	maxPageNumber = 1_000_000
)

// Normalize applies the default page number and clamps both page number and size
func (p Page) Normalize() Page {
	if p.PageNumber < 1 {
		p.PageNumber = 1
	}
	if p.PageNumber > maxPageNumber {
		p.PageNumber = maxPageNumber
	}
	if p.PageSize < 1 {
		p.PageSize = defaultPageSize
	}
	if p.PageSize > maxPageSize {
		p.PageSize = maxPageSize
	}
	return p
}

// Offset returns the number of rows to skip
func (p Page) Offset() int {
	n := p.Normalize()
	return (n.PageNumber - 1) * n.PageSize
}

// PagedResult is one page of a listing
type PagedResult[T any] struct {
	Items      []T `json:"items"`
	TotalCount int `json:"total_count"`
	PageNumber int `json:"page_number"`
	PageSize   int `json:"page_size"`
}

func newPagedResult[T any](items []T, total int, page Page) *PagedResult[T] {
	page = page.Normalize()
	if items == nil {
		items = []T{}
	}
	return &PagedResult[T]{
		Items:      items,
		TotalCount: total,
		PageNumber: page.PageNumber,
		PageSize:   page.PageSize,
	}
}

// dispatchAll hands events to the dispatcher; failures are logged and never returned
func dispatchAll(ctx context.Context, d EventDispatcher, logger Logger, events []*event.Event) {
	if d == nil {
		return
	}
	for _, evt := range events {
		if err := d.Dispatch(ctx, evt); err != nil {
			logger.Error("Event handler failed", "event_type", evt.Type, "request_id", evt.RequestID, "error", err)
		}
	}
}
