package model

import "time"

// Program is a broadcast series. Episodes belong to exactly one program.
type Program struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Episode is a single broadcast unit belonging to a Program. It is the unit
// of workflow and deadline tracking.
type Episode struct {
	ID        string    `json:"id"`
	ProgramID string    `json:"program_id"`
	Title     string    `json:"title"`
	AirDate   time.Time `json:"air_date"`
	CreatedBy string    `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CrewAssignment places one user in one role on an episode's crew. An
// episode carries at most one assignment per (user, role) pair.
type CrewAssignment struct {
	ID         string    `json:"id"`
	EpisodeID  string    `json:"episode_id"`
	UserID     string    `json:"user_id"`
	Role       Role      `json:"role"`
	AssignedBy string    `json:"assigned_by"`
	CreatedAt  time.Time `json:"created_at"`
}
