package model

// Notification event types emitted by the core.
const (
	NotifyWorkflowTransitioned = "workflow.transitioned"
	NotifyStepStarted          = "workflow.step_started"
	NotifyStepCompleted        = "workflow.step_completed"
	NotifyStepAssigned         = "workflow.step_assigned"
	NotifyDeadlineCreated      = "deadline.created"
	NotifyDeadlineCompleted    = "deadline.completed"
	NotifyDeadlineReminder     = "deadline.reminder"
	NotifyDeadlineOverdue      = "deadline.overdue"
	NotifyEquipmentApproved    = "equipment.approved"
	NotifyEquipmentRejected    = "equipment.rejected"
	NotifyEquipmentReturned    = "equipment.returned"
	NotifyTaskReassigned       = "task.reassigned"
)

// Notification is a domain event destined for a single recipient. Content
// rendering and delivery channels live outside the core.
type Notification struct {
	Recipient string         `json:"recipient"`
	Type      string         `json:"type"`
	Title     string         `json:"title"`
	Message   string         `json:"message"`
	Data      map[string]any `json:"data,omitempty"`
}

// Dispatcher fans notifications out to delivery channels. Dispatch is
// fire-and-forget: the core never blocks on delivery.
type Dispatcher interface {
	Dispatch(n Notification)
}

// NopDispatcher discards every notification.
type NopDispatcher struct{}

// Dispatch implements Dispatcher.
func (NopDispatcher) Dispatch(Notification) {}
