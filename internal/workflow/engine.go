// Package workflow implements the role-gated workflow engine for episodes:
// the named linear production lifecycle and the numbered ten-step gated
// workflow share one engine because both need role-gated, audited
// transitions.
package workflow

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/greenroomhq/greenroom/internal/roles"
	"github.com/greenroomhq/greenroom/model"
)

// DeadlineRegenerator is invoked after a linear transition to (re)generate
// per-role deadlines for the entered stage. Implemented by the deadline
// scheduler.
type DeadlineRegenerator interface {
	RegenerateForRoles(ctx context.Context, episodeID string, entered []model.Role) error
}

// Engine validates and executes transitions for both workflow shapes. All
// mutations of one episode's workflow serialize on a per-episode lock so
// history append order is well defined.
type Engine struct {
	store      Store
	tables     *roles.Tables
	deadlines  DeadlineRegenerator
	dispatcher model.Dispatcher

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewEngine creates a new workflow engine. deadlines and dispatcher may be
// nil, in which case the corresponding side effects are skipped.
func NewEngine(store Store, tables *roles.Tables, deadlines DeadlineRegenerator, dispatcher model.Dispatcher) *Engine {
	if dispatcher == nil {
		dispatcher = model.NopDispatcher{}
	}
	return &Engine{
		store:      store,
		tables:     tables,
		deadlines:  deadlines,
		dispatcher: dispatcher,
		locks:      make(map[string]*sync.Mutex),
	}
}

// episodeLock returns the mutex serializing mutations for one episode.
func (e *Engine) episodeLock(episodeID string) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()

	l, ok := e.locks[episodeID]
	if !ok {
		l = &sync.Mutex{}
		e.locks[episodeID] = l
	}
	return l
}

// InitEpisode seeds the workflow rows for a newly created episode: the
// linear state at planning and ten not_started step rows.
func (e *Engine) InitEpisode(ctx context.Context, episodeID string) error {
	now := time.Now().UTC()

	state := model.WorkflowState{
		ID:           uuid.New().String(),
		EpisodeID:    episodeID,
		CurrentState: model.StagePlanning,
		Version:      1,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := e.store.CreateState(ctx, state); err != nil {
		return err
	}

	steps := make([]model.StepProgress, 0, model.StepCount)
	for _, def := range e.tables.Steps() {
		steps = append(steps, model.StepProgress{
			ID:        uuid.New().String(),
			EpisodeID: episodeID,
			Step:      def.Step,
			Status:    model.StepNotStarted,
			UpdatedAt: now,
		})
	}
	return e.store.CreateSteps(ctx, steps)
}

// DropEpisode removes all workflow rows for an episode. Called only by the
// episode delete cascade.
func (e *Engine) DropEpisode(ctx context.Context, episodeID string) error {
	lock := e.episodeLock(episodeID)
	lock.Lock()
	defer lock.Unlock()

	return e.store.DeleteEpisode(ctx, episodeID)
}

// --- Linear workflow ---

// IsValidTransition reports whether the linear table allows the move. No
// side effects.
func (e *Engine) IsValidTransition(from, to model.WorkflowStage) bool {
	return e.tables.ValidTransition(from, to)
}

// NextStates returns the stages reachable from the given stage.
func (e *Engine) NextStates(from model.WorkflowStage) []model.WorkflowStage {
	return e.tables.NextStages(from)
}

// PreviousStates returns the stages from which the given stage is reachable.
func (e *Engine) PreviousStates(to model.WorkflowStage) []model.WorkflowStage {
	return e.tables.PreviousStages(to)
}

// Transition moves an episode's linear workflow to the next stage, appends a
// history record, and triggers deadline regeneration for the entered stage's
// roles. Authorization and transition failures leave no partial mutation.
func (e *Engine) Transition(
	ctx context.Context,
	episodeID string,
	next model.WorkflowStage,
	actor model.Actor,
	notes string,
) (model.WorkflowState, error) {
	if err := actor.Validate(); err != nil {
		return model.WorkflowState{}, model.NewValidationError(err.Error())
	}
	if !e.tables.KnownStage(next) {
		return model.WorkflowState{}, model.NewValidationError(
			fmt.Sprintf("unknown workflow state %q", next),
		)
	}

	lock := e.episodeLock(episodeID)
	lock.Lock()
	defer lock.Unlock()

	return e.transitionLocked(ctx, episodeID, next, actor, notes)
}

// AdvanceAfterEquipmentReturn advances an episode sitting in the equipment
// return gate stage to the next stage. The cascade is idempotent: an episode
// in any other stage is left untouched and no error is returned.
func (e *Engine) AdvanceAfterEquipmentReturn(ctx context.Context, episodeID string) (advanced bool, err error) {
	lock := e.episodeLock(episodeID)
	lock.Lock()
	defer lock.Unlock()

	state, err := e.store.GetState(ctx, episodeID)
	if err != nil {
		return false, err
	}

	gate, target := e.tables.ReturnGate()
	if state.CurrentState != gate {
		return false, nil
	}

	system := model.Actor{ID: "system", Name: "system", Role: model.RoleAdmin}
	_, err = e.transitionLocked(ctx, episodeID, target, system, "all equipment returned")
	if err != nil {
		return false, err
	}
	return true, nil
}

// transitionLocked performs the transition. Caller holds the episode lock.
func (e *Engine) transitionLocked(
	ctx context.Context,
	episodeID string,
	next model.WorkflowStage,
	actor model.Actor,
	notes string,
) (model.WorkflowState, error) {
	state, err := e.store.GetState(ctx, episodeID)
	if err != nil {
		return model.WorkflowState{}, err
	}

	if !e.tables.ValidTransition(state.CurrentState, next) {
		return model.WorkflowState{}, model.NewInvalidTransitionError(
			fmt.Sprintf("cannot move episode %q from %s to %s", episodeID, state.CurrentState, next),
		).WithDetail("from", state.CurrentState).WithDetail("to", next)
	}

	now := time.Now().UTC()
	rec := model.TransitionRecord{
		ID:        uuid.New().String(),
		EpisodeID: episodeID,
		From:      state.CurrentState,
		To:        next,
		Role:      actor.Role,
		Actor:     actor.ID,
		Notes:     notes,
		Timestamp: now,
	}
	if err := e.store.AppendTransition(ctx, rec); err != nil {
		return model.WorkflowState{}, err
	}

	previous := state.CurrentState
	state.CurrentState = next
	state.UpdatedAt = now
	if err := e.store.UpdateState(ctx, state); err != nil {
		return model.WorkflowState{}, err
	}
	state.Version++

	if e.deadlines != nil {
		entered := e.tables.StageRoles(next)
		if len(entered) > 0 {
			if err := e.deadlines.RegenerateForRoles(ctx, episodeID, entered); err != nil {
				return model.WorkflowState{}, err
			}
		}
	}

	e.dispatcher.Dispatch(model.Notification{
		Recipient: actor.ID,
		Type:      model.NotifyWorkflowTransitioned,
		Title:     "Workflow state changed",
		Message:   fmt.Sprintf("Episode moved from %s to %s", previous, next),
		Data: map[string]any{
			"episode_id": episodeID,
			"from":       previous,
			"to":         next,
		},
	})

	return state, nil
}

// --- Numbered gated workflow ---

// CanAccessStep reports whether the actor's role is authorized for the step.
func (e *Engine) CanAccessStep(actor model.Actor, step int) bool {
	return e.tables.RoleAllowedForStep(actor.Role, step)
}

// StartStep marks a step in progress. Fails with UNAUTHORIZED if the actor's
// role is not in the step's authorized set, and ALREADY_STARTED if the step
// has been started or completed.
func (e *Engine) StartStep(ctx context.Context, episodeID string, step int, actor model.Actor) (model.StepProgress, error) {
	def, err := e.authorizeStep(actor, step)
	if err != nil {
		return model.StepProgress{}, err
	}

	lock := e.episodeLock(episodeID)
	lock.Lock()
	defer lock.Unlock()

	progress, err := e.store.GetStep(ctx, episodeID, step)
	if err != nil {
		return model.StepProgress{}, err
	}
	if progress.Status != model.StepNotStarted {
		return model.StepProgress{}, model.NewAlreadyStartedError(
			fmt.Sprintf("step %d (%s) is already %s", step, def.Label, progress.Status),
		).WithDetail("step", step).WithDetail("status", progress.Status)
	}

	now := time.Now().UTC()
	progress.Status = model.StepInProgress
	progress.StartedAt = &now
	if progress.AssignedUser == "" {
		progress.AssignedUser = actor.ID
	}
	if err := e.store.UpdateStep(ctx, progress); err != nil {
		return model.StepProgress{}, err
	}

	e.dispatcher.Dispatch(model.Notification{
		Recipient: progress.AssignedUser,
		Type:      model.NotifyStepStarted,
		Title:     "Production step started",
		Message:   fmt.Sprintf("Step %d (%s) is now in progress", step, def.Label),
		Data:      map[string]any{"episode_id": episodeID, "step": step},
	})

	return progress, nil
}

// CompleteStep marks a step completed and stores notes. Completing an
// already-completed step is a no-op so automatic completion hooks can retry
// safely; a step that was never started fails with NOT_STARTED.
func (e *Engine) CompleteStep(ctx context.Context, episodeID string, step int, actor model.Actor, notes string) (model.StepProgress, error) {
	def, err := e.authorizeStep(actor, step)
	if err != nil {
		return model.StepProgress{}, err
	}

	lock := e.episodeLock(episodeID)
	lock.Lock()
	defer lock.Unlock()

	progress, err := e.store.GetStep(ctx, episodeID, step)
	if err != nil {
		return model.StepProgress{}, err
	}

	switch progress.Status {
	case model.StepCompleted:
		return progress, nil
	case model.StepNotStarted:
		return model.StepProgress{}, model.NewNotStartedError(
			fmt.Sprintf("step %d (%s) has not been started", step, def.Label),
		).WithDetail("step", step)
	}

	now := time.Now().UTC()
	progress.Status = model.StepCompleted
	progress.CompletedAt = &now
	if notes != "" {
		progress.Notes = notes
	}
	if err := e.store.UpdateStep(ctx, progress); err != nil {
		return model.StepProgress{}, err
	}

	e.dispatcher.Dispatch(model.Notification{
		Recipient: progress.AssignedUser,
		Type:      model.NotifyStepCompleted,
		Title:     "Production step completed",
		Message:   fmt.Sprintf("Step %d (%s) is complete", step, def.Label),
		Data:      map[string]any{"episode_id": episodeID, "step": step},
	})

	return progress, nil
}

// CompleteStepAuto is the idempotent completion path for external hooks such
// as crew assignment. It starts the step first when necessary and silently
// ignores steps that are already completed.
func (e *Engine) CompleteStepAuto(ctx context.Context, episodeID string, step int, notes string) (model.StepProgress, error) {
	system := model.Actor{ID: "system", Name: "system", Role: model.RoleAdmin}

	lock := e.episodeLock(episodeID)
	lock.Lock()
	defer lock.Unlock()

	progress, err := e.store.GetStep(ctx, episodeID, step)
	if err != nil {
		return model.StepProgress{}, err
	}
	if progress.Status == model.StepCompleted {
		return progress, nil
	}

	now := time.Now().UTC()
	if progress.Status == model.StepNotStarted {
		progress.Status = model.StepInProgress
		progress.StartedAt = &now
		if progress.AssignedUser == "" {
			progress.AssignedUser = system.ID
		}
	}
	progress.Status = model.StepCompleted
	progress.CompletedAt = &now
	if notes != "" {
		progress.Notes = notes
	}
	if err := e.store.UpdateStep(ctx, progress); err != nil {
		return model.StepProgress{}, err
	}
	return progress, nil
}

// AssignUser reassigns a step's assigned user without altering its status.
// Manager-tier only.
func (e *Engine) AssignUser(ctx context.Context, episodeID string, step int, userID string, actor model.Actor) (model.StepProgress, error) {
	if !actor.Role.IsManager() {
		return model.StepProgress{}, model.NewUnauthorizedError(
			fmt.Sprintf("role %s cannot assign step users", actor.Role),
		).WithDetail("required_roles", []model.Role{model.RoleProductionManager, model.RoleAdmin})
	}
	if userID == "" {
		return model.StepProgress{}, model.NewValidationError("assigned user is required")
	}

	lock := e.episodeLock(episodeID)
	lock.Lock()
	defer lock.Unlock()

	progress, err := e.store.GetStep(ctx, episodeID, step)
	if err != nil {
		return model.StepProgress{}, err
	}

	progress.AssignedUser = userID
	if err := e.store.UpdateStep(ctx, progress); err != nil {
		return model.StepProgress{}, err
	}

	e.dispatcher.Dispatch(model.Notification{
		Recipient: userID,
		Type:      model.NotifyStepAssigned,
		Title:     "Production step assigned",
		Message:   fmt.Sprintf("You are now assigned to step %d", step),
		Data:      map[string]any{"episode_id": episodeID, "step": step},
	})

	return progress, nil
}

// SetStepAssignee transfers the step identified by its progress row ID to a
// new user. Called by the reassignment auditor after it has validated the
// target; no authorization here.
func (e *Engine) SetStepAssignee(ctx context.Context, progressID, userID string) (previous string, err error) {
	// First read only resolves the owning episode for the lock.
	progress, err := e.store.GetStepByID(ctx, progressID)
	if err != nil {
		return "", err
	}

	lock := e.episodeLock(progress.EpisodeID)
	lock.Lock()
	defer lock.Unlock()

	// Re-read under the lock: the step may have been completed between the
	// unlocked read and the lock acquisition.
	progress, err = e.store.GetStepByID(ctx, progressID)
	if err != nil {
		return "", err
	}
	if progress.Status == model.StepCompleted {
		return "", model.NewConflictError(
			fmt.Sprintf("step %d is completed and cannot be reassigned", progress.Step),
		)
	}

	previous = progress.AssignedUser
	progress.AssignedUser = userID
	if err := e.store.UpdateStep(ctx, progress); err != nil {
		return "", err
	}
	return previous, nil
}

// UpdateStepNotes replaces a step's notes. Same authorization rule as start
// and complete.
func (e *Engine) UpdateStepNotes(ctx context.Context, episodeID string, step int, notes string, actor model.Actor) (model.StepProgress, error) {
	if _, err := e.authorizeStep(actor, step); err != nil {
		return model.StepProgress{}, err
	}

	lock := e.episodeLock(episodeID)
	lock.Lock()
	defer lock.Unlock()

	progress, err := e.store.GetStep(ctx, episodeID, step)
	if err != nil {
		return model.StepProgress{}, err
	}

	progress.Notes = notes
	if err := e.store.UpdateStep(ctx, progress); err != nil {
		return model.StepProgress{}, err
	}
	return progress, nil
}

// ResetStep forces a step back to not_started and clears its timestamps.
// Manager-tier only; used for rework.
func (e *Engine) ResetStep(ctx context.Context, episodeID string, step int, actor model.Actor) (model.StepProgress, error) {
	if !actor.Role.IsManager() {
		return model.StepProgress{}, model.NewUnauthorizedError(
			fmt.Sprintf("role %s cannot reset steps", actor.Role),
		).WithDetail("required_roles", []model.Role{model.RoleProductionManager, model.RoleAdmin})
	}

	lock := e.episodeLock(episodeID)
	lock.Lock()
	defer lock.Unlock()

	progress, err := e.store.GetStep(ctx, episodeID, step)
	if err != nil {
		return model.StepProgress{}, err
	}

	progress.Status = model.StepNotStarted
	progress.StartedAt = nil
	progress.CompletedAt = nil
	if err := e.store.UpdateStep(ctx, progress); err != nil {
		return model.StepProgress{}, err
	}
	return progress, nil
}

// Visualization returns all ten step rows with their static labels and role
// sets, ordered by step number.
func (e *Engine) Visualization(ctx context.Context, episodeID string) ([]model.StepView, error) {
	rows, err := e.store.ListSteps(ctx, episodeID)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, model.NewNotFoundError(
			fmt.Sprintf("no step progress for episode %q", episodeID),
		)
	}

	byStep := make(map[int]model.StepProgress, len(rows))
	for _, p := range rows {
		byStep[p.Step] = p
	}

	views := make([]model.StepView, 0, model.StepCount)
	for _, def := range e.tables.Steps() {
		views = append(views, model.StepView{
			Step:     def.Step,
			Label:    def.Label,
			Roles:    def.Roles.Roles(),
			Progress: byStep[def.Step],
		})
	}
	return views, nil
}

// State returns the current linear workflow state for an episode.
func (e *Engine) State(ctx context.Context, episodeID string) (model.WorkflowState, error) {
	return e.store.GetState(ctx, episodeID)
}

// HistoryEntry is one chronological entry of the combined transition and
// step log.
type HistoryEntry struct {
	Kind      string              `json:"kind"` // "transition" or "step"
	Timestamp time.Time           `json:"timestamp"`
	From      model.WorkflowStage `json:"from,omitempty"`
	To        model.WorkflowStage `json:"to,omitempty"`
	Step      int                 `json:"step,omitempty"`
	Event     string              `json:"event,omitempty"`
	Actor     string              `json:"actor,omitempty"`
	Notes     string              `json:"notes,omitempty"`
}

// History returns the chronological transition and step log for an episode.
func (e *Engine) History(ctx context.Context, episodeID string) ([]HistoryEntry, error) {
	records, err := e.store.GetTransitions(ctx, episodeID)
	if err != nil {
		return nil, err
	}
	steps, err := e.store.ListSteps(ctx, episodeID)
	if err != nil {
		return nil, err
	}

	entries := make([]HistoryEntry, 0, len(records)+len(steps)*2)
	for _, rec := range records {
		entries = append(entries, HistoryEntry{
			Kind:      "transition",
			Timestamp: rec.Timestamp,
			From:      rec.From,
			To:        rec.To,
			Actor:     rec.Actor,
			Notes:     rec.Notes,
		})
	}
	for _, p := range steps {
		if p.StartedAt != nil {
			entries = append(entries, HistoryEntry{
				Kind:      "step",
				Timestamp: *p.StartedAt,
				Step:      p.Step,
				Event:     "started",
				Actor:     p.AssignedUser,
			})
		}
		if p.CompletedAt != nil {
			entries = append(entries, HistoryEntry{
				Kind:      "step",
				Timestamp: *p.CompletedAt,
				Step:      p.Step,
				Event:     "completed",
				Actor:     p.AssignedUser,
				Notes:     p.Notes,
			})
		}
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Timestamp.Before(entries[j].Timestamp)
	})
	return entries, nil
}

// authorizeStep checks the actor against the step's role table and returns
// the step definition.
func (e *Engine) authorizeStep(actor model.Actor, step int) (roles.StepDef, error) {
	def, ok := e.tables.Step(step)
	if !ok {
		return roles.StepDef{}, model.NewValidationError(
			fmt.Sprintf("step number %d out of range 1..%d", step, model.StepCount),
		)
	}
	if !e.tables.RoleAllowedForStep(actor.Role, step) {
		return roles.StepDef{}, model.NewUnauthorizedError(
			fmt.Sprintf("role %s is not authorized for step %d (%s)", actor.Role, step, def.Label),
		).WithDetail("step", step).WithDetail("required_roles", def.Roles.Roles())
	}
	return def, nil
}
