package model

import "time"

// Deadline status constants.
const (
	DeadlinePending   = "pending"
	DeadlineCompleted = "completed"
	DeadlineCancelled = "cancelled"
)

// Deadline is a role-scoped due date derived from an episode's air date.
// Completed deadlines are immutable; cancellation is terminal and excludes
// the deadline from overdue and reminder queries. Deadlines are never hard
// deleted.
type Deadline struct {
	ID          string     `json:"id"`
	EpisodeID   string     `json:"episode_id"`
	Role        Role       `json:"role"`
	UserID      string     `json:"user_id,omitempty"`
	Description string     `json:"description,omitempty"`
	DueAt       time.Time  `json:"due_at"`
	Status      string     `json:"status"`
	IsCompleted bool       `json:"is_completed"`
	CompletedBy string     `json:"completed_by,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Notes       string     `json:"notes,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// Open reports whether the deadline still counts toward overdue and reminder
// queries.
func (d Deadline) Open() bool {
	return !d.IsCompleted && d.Status != DeadlineCancelled
}

// OverdueAt reports whether the deadline is overdue at the given instant.
// This derived predicate is the single source of truth for overdue status.
func (d Deadline) OverdueAt(now time.Time) bool {
	return d.Open() && d.DueAt.Before(now)
}

// DeadlineStatistics aggregates deadline counts for reporting.
type DeadlineStatistics struct {
	Total     int `json:"total"`
	Completed int `json:"completed"`
	OnTime    int `json:"on_time"`
	Overdue   int `json:"overdue"`
	Upcoming  int `json:"upcoming"`
	Cancelled int `json:"cancelled"`
}
