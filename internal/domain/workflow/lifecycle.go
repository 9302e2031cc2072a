package workflow

import (
	"context"

	"github.com/garyjia/workflow-approval/internal/domain/entity"
)

// NewRequestMachine builds the request lifecycle starting at current.
//
// An approved step keeps the request pending until allApproved reports true;
// a rejected step rejects the request at once. Only a decided request can be archived.
func NewRequestMachine(current State, allApproved GuardFunc) StateMachine {
	builder := NewBuilder()

	builder.Configure(StatePending).
		PermitIf(TriggerApproveStep, StateApproved, allApproved).
		PermitIf(TriggerApproveStep, StatePending, func(ctx context.Context) bool {
			return !allApproved(ctx)
		}).
		Permit(TriggerRejectStep, StateRejected)

	builder.Configure(StateApproved).
		Permit(TriggerArchive, StateArchived)

	builder.Configure(StateRejected).
		Permit(TriggerArchive, StateArchived)

	return builder.Build(current)
}

// Aggregate derives the request status from its step statuses.
// Any rejection wins; otherwise the request is approved only when every step is approved.
// A request without steps stays pending.
func Aggregate(statuses []entity.StepStatus) entity.RequestStatus {
	if len(statuses) == 0 {
		return entity.RequestStatusPending
	}

	allApproved := true
	for _, s := range statuses {
		switch s {
		case entity.StepStatusRejected:
			return entity.RequestStatusRejected
		case entity.StepStatusApproved:
		default:
			allApproved = false
		}
	}

	if allApproved {
		return entity.RequestStatusApproved
	}
	return entity.RequestStatusPending
}

// AllApproved returns a guard that is true when every step of the request is approved
func AllApproved(req *entity.Request) GuardFunc {
	return func(ctx context.Context) bool {
		return Aggregate(req.StepStatuses()) == entity.RequestStatusApproved
	}
}
