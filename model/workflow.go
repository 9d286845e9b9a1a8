package model

import "time"

// WorkflowStage is a named stage of the linear episode production lifecycle.
type WorkflowStage string

// Linear workflow stages.
const (
	StagePlanning      WorkflowStage = "planning"
	StagePreProduction WorkflowStage = "pre_production"
	StageProduction    WorkflowStage = "production"
	StageEditing       WorkflowStage = "editing"
	StageReview        WorkflowStage = "review"
	StageCompleted     WorkflowStage = "completed"
	StageCancelled     WorkflowStage = "cancelled"
)

// Step progress status constants for the numbered production workflow.
const (
	StepNotStarted = "not_started"
	StepInProgress = "in_progress"
	StepCompleted  = "completed"
)

// StepCount is the fixed number of checkpoints in the numbered workflow.
const StepCount = 10

// WorkflowState is the linear workflow record for one episode: exactly one
// current stage plus an ordered, append-only transition history.
type WorkflowState struct {
	ID           string        `json:"id"`
	EpisodeID    string        `json:"episode_id"`
	CurrentState WorkflowStage `json:"current_state"`
	Version      int           `json:"version"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

// TransitionRecord is one entry in an episode's workflow history. Every
// record describes a transition that was valid when it was made.
type TransitionRecord struct {
	ID        string        `json:"id"`
	EpisodeID string        `json:"episode_id"`
	From      WorkflowStage `json:"from"`
	To        WorkflowStage `json:"to"`
	Role      Role          `json:"role"`
	Actor     string        `json:"actor"`
	Notes     string        `json:"notes,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
}

// StepProgress tracks one of the ten numbered checkpoints for an episode.
// Keyed uniquely by (EpisodeID, Step).
type StepProgress struct {
	ID           string     `json:"id"`
	EpisodeID    string     `json:"episode_id"`
	Step         int        `json:"step"`
	Status       string     `json:"status"`
	AssignedUser string     `json:"assigned_user,omitempty"`
	Notes        string     `json:"notes,omitempty"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// StepView is a StepProgress joined with its static step metadata, used for
// the workflow visualization.
type StepView struct {
	Step     int    `json:"step"`
	Label    string `json:"label"`
	Roles    []Role `json:"roles"`
	Progress StepProgress `json:"progress"`
}
