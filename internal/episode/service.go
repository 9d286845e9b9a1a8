// Package episode owns the program and episode lifecycle and fans creation
// and deletion out to the workflow, deadline, and equipment components.
package episode

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/greenroomhq/greenroom/internal/roles"
	"github.com/greenroomhq/greenroom/model"
)

// WorkflowLifecycle is the slice of the workflow engine the episode service
// drives.
type WorkflowLifecycle interface {
	InitEpisode(ctx context.Context, episodeID string) error
	DropEpisode(ctx context.Context, episodeID string) error
	CompleteStepAuto(ctx context.Context, episodeID string, step int, notes string) (model.StepProgress, error)
}

// DeadlineLifecycle is the slice of the deadline scheduler the episode
// service drives.
type DeadlineLifecycle interface {
	GenerateForEpisode(ctx context.Context, episodeID string) error
	DropEpisode(ctx context.Context, episodeID string) error
}

// EquipmentLifecycle is the slice of the allocator the episode service
// drives.
type EquipmentLifecycle interface {
	DropEpisode(ctx context.Context, episodeID string) error
}

// Service manages programs, episodes, and crews. Creating an episode seeds
// its workflow rows and generates its deadlines; deleting one cascades
// through equipment, deadlines, and workflow before the episode row goes.
type Service struct {
	store     Store
	tables    *roles.Tables
	workflow  WorkflowLifecycle
	deadlines DeadlineLifecycle
	equipment EquipmentLifecycle
}

// NewService creates a new episode service.
func NewService(
	store Store,
	tables *roles.Tables,
	workflow WorkflowLifecycle,
	deadlines DeadlineLifecycle,
	equipment EquipmentLifecycle,
) *Service {
	return &Service{
		store:     store,
		tables:    tables,
		workflow:  workflow,
		deadlines: deadlines,
		equipment: equipment,
	}
}

// CreateProgram registers a new program. Manager tier only.
func (s *Service) CreateProgram(ctx context.Context, name string, actor model.Actor) (model.Program, error) {
	if !actor.Role.IsManager() {
		return model.Program{}, model.NewUnauthorizedError(
			fmt.Sprintf("role %s cannot create programs", actor.Role),
		)
	}
	if name == "" {
		return model.Program{}, model.NewValidationError("program name is required")
	}

	p := model.Program{
		ID:        uuid.New().String(),
		Name:      name,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.CreateProgram(ctx, p); err != nil {
		return model.Program{}, err
	}
	return p, nil
}

// Programs lists every program.
func (s *Service) Programs(ctx context.Context) ([]model.Program, error) {
	return s.store.ListPrograms(ctx)
}

// CreateEpisode registers a new episode under a program, seeds its workflow
// at planning with all steps not_started, and generates its role deadlines
// from the air date.
func (s *Service) CreateEpisode(
	ctx context.Context,
	programID, title string,
	airDate time.Time,
	actor model.Actor,
) (model.Episode, error) {
	if err := actor.Validate(); err != nil {
		return model.Episode{}, model.NewValidationError(err.Error())
	}
	if title == "" {
		return model.Episode{}, model.NewValidationError("episode title is required")
	}
	if airDate.IsZero() {
		return model.Episode{}, model.NewValidationError("air date is required")
	}
	if _, err := s.store.GetProgram(ctx, programID); err != nil {
		return model.Episode{}, err
	}

	now := time.Now().UTC()
	e := model.Episode{
		ID:        uuid.New().String(),
		ProgramID: programID,
		Title:     title,
		AirDate:   airDate,
		CreatedBy: actor.ID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.CreateEpisode(ctx, e); err != nil {
		return model.Episode{}, err
	}
	if err := s.workflow.InitEpisode(ctx, e.ID); err != nil {
		return model.Episode{}, err
	}
	if err := s.deadlines.GenerateForEpisode(ctx, e.ID); err != nil {
		return model.Episode{}, err
	}
	return e, nil
}

// Get retrieves an episode.
func (s *Service) Get(ctx context.Context, id string) (model.Episode, error) {
	return s.store.GetEpisode(ctx, id)
}

// ForProgram lists a program's episodes, earliest air date first.
func (s *Service) ForProgram(ctx context.Context, programID string) ([]model.Episode, error) {
	if _, err := s.store.GetProgram(ctx, programID); err != nil {
		return nil, err
	}
	return s.store.ListEpisodesByProgram(ctx, programID)
}

// Reschedule moves an episode's air date and regenerates open deadlines
// against it. Manager tier only.
func (s *Service) Reschedule(ctx context.Context, id string, airDate time.Time, actor model.Actor) (model.Episode, error) {
	if !actor.Role.IsManager() {
		return model.Episode{}, model.NewUnauthorizedError(
			fmt.Sprintf("role %s cannot reschedule episodes", actor.Role),
		)
	}
	if airDate.IsZero() {
		return model.Episode{}, model.NewValidationError("air date is required")
	}

	e, err := s.store.GetEpisode(ctx, id)
	if err != nil {
		return model.Episode{}, err
	}
	e.AirDate = airDate
	if err := s.store.UpdateEpisode(ctx, e); err != nil {
		return model.Episode{}, err
	}
	if err := s.deadlines.GenerateForEpisode(ctx, id); err != nil {
		return model.Episode{}, err
	}
	return e, nil
}

// Delete removes an episode. The cascade releases its equipment, cancels
// its open deadlines, and drops its workflow rows and crew. Manager tier
// only.
func (s *Service) Delete(ctx context.Context, id string, actor model.Actor) error {
	if !actor.Role.IsManager() {
		return model.NewUnauthorizedError(
			fmt.Sprintf("role %s cannot delete episodes", actor.Role),
		)
	}
	if _, err := s.store.GetEpisode(ctx, id); err != nil {
		return err
	}

	if err := s.equipment.DropEpisode(ctx, id); err != nil {
		return err
	}
	if err := s.deadlines.DropEpisode(ctx, id); err != nil {
		return err
	}
	if err := s.workflow.DropEpisode(ctx, id); err != nil {
		return err
	}
	return s.store.DeleteEpisode(ctx, id)
}

// AssignCrew places a user in a role on an episode's crew. Manager tier
// only. Once every scheduled role is covered the team-formation step
// completes automatically.
func (s *Service) AssignCrew(ctx context.Context, episodeID, userID string, role model.Role, actor model.Actor) (model.CrewAssignment, error) {
	if !actor.Role.IsManager() {
		return model.CrewAssignment{}, model.NewUnauthorizedError(
			fmt.Sprintf("role %s cannot assign crew", actor.Role),
		)
	}
	if userID == "" {
		return model.CrewAssignment{}, model.NewValidationError("user id is required")
	}
	if _, ok := model.ParseRole(string(role)); !ok {
		return model.CrewAssignment{}, model.NewValidationError(fmt.Sprintf("unknown role %q", role))
	}
	if _, err := s.store.GetEpisode(ctx, episodeID); err != nil {
		return model.CrewAssignment{}, err
	}

	c := model.CrewAssignment{
		ID:         uuid.New().String(),
		EpisodeID:  episodeID,
		UserID:     userID,
		Role:       role,
		AssignedBy: actor.ID,
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.store.AddCrew(ctx, c); err != nil {
		return model.CrewAssignment{}, err
	}

	complete, err := s.crewComplete(ctx, episodeID)
	if err != nil {
		return model.CrewAssignment{}, err
	}
	if complete {
		if _, err := s.workflow.CompleteStepAuto(ctx, episodeID, 1, "all crew roles filled"); err != nil {
			return model.CrewAssignment{}, err
		}
	}
	return c, nil
}

// Crew retrieves an episode's crew assignments, oldest first.
func (s *Service) Crew(ctx context.Context, episodeID string) ([]model.CrewAssignment, error) {
	if _, err := s.store.GetEpisode(ctx, episodeID); err != nil {
		return nil, err
	}
	return s.store.ListCrew(ctx, episodeID)
}

// RemoveCrew deletes one crew assignment. Manager tier only.
func (s *Service) RemoveCrew(ctx context.Context, assignmentID string, actor model.Actor) error {
	if !actor.Role.IsManager() {
		return model.NewUnauthorizedError(
			fmt.Sprintf("role %s cannot remove crew", actor.Role),
		)
	}
	return s.store.RemoveCrew(ctx, assignmentID)
}

// AirDates exposes episode air dates from a Store for the deadline
// scheduler. It adapts the store directly so the scheduler can be built
// before the service that shares the store.
type AirDates struct {
	Store Store
}

// AirDate resolves an episode's air date.
func (a AirDates) AirDate(ctx context.Context, episodeID string) (time.Time, error) {
	e, err := a.Store.GetEpisode(ctx, episodeID)
	if err != nil {
		return time.Time{}, err
	}
	return e.AirDate, nil
}

// crewComplete reports whether every scheduled role has at least one crew
// member.
func (s *Service) crewComplete(ctx context.Context, episodeID string) (bool, error) {
	crew, err := s.store.ListCrew(ctx, episodeID)
	if err != nil {
		return false, err
	}
	covered := make(map[model.Role]bool, len(crew))
	for _, c := range crew {
		covered[c.Role] = true
	}
	for _, role := range s.tables.DeadlineRoles() {
		if !covered[role] {
			return false, nil
		}
	}
	return true, nil
}
