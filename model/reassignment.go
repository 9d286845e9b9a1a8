package model

import "time"

// TaskType identifies the kind of workflow-attached unit of work a
// reassignment targets.
type TaskType string

const (
	TaskWorkflowStep     TaskType = "workflow_step"
	TaskDeadline         TaskType = "deadline"
	TaskEquipmentRequest TaskType = "equipment_request"
)

// ParseTaskType returns the TaskType for s, or false if s is unknown.
func ParseTaskType(s string) (TaskType, bool) {
	switch TaskType(s) {
	case TaskWorkflowStep, TaskDeadline, TaskEquipmentRequest:
		return TaskType(s), true
	}
	return "", false
}

// ReassignmentRecord is an append-only audit entry for a single task
// ownership transfer. Records are never mutated or deleted.
type ReassignmentRecord struct {
	ID          string    `json:"id"`
	TaskType    TaskType  `json:"task_type"`
	TaskID      string    `json:"task_id"`
	OldAssignee string    `json:"old_assignee,omitempty"`
	NewAssignee string    `json:"new_assignee"`
	Actor       string    `json:"actor"`
	Reason      string    `json:"reason,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// User is the directory view of an account, as resolved by the identity
// provider boundary.
type User struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
	Role  Role   `json:"role"`
}

// Directory resolves users for reassignment target validation. Implemented
// by the identity/role provider outside the core.
type Directory interface {
	// Lookup returns the user with the given ID, or a NOT_FOUND envelope.
	Lookup(userID string) (User, error)

	// UsersWithRoles returns all users whose role is in the given set.
	UsersWithRoles(roles RoleSet) ([]User, error)
}
