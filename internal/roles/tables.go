// Package roles holds the static authorization and scheduling tables consumed
// by the workflow engine, the deadline scheduler, and the reassignment
// auditor. The tables are configuration data: the core reads them, never
// mutates them.
package roles

import (
	"github.com/greenroomhq/greenroom/model"
)

// StepDef is one checkpoint of the numbered production workflow.
type StepDef struct {
	Step  int
	Label string
	Roles model.RoleSet
}

// Tables bundles every static table. Construct with Defaults and optionally
// override from a YAML policy file.
type Tables struct {
	// transitions maps each linear stage to the set of stages reachable
	// from it.
	transitions map[model.WorkflowStage][]model.WorkflowStage

	// stageRoles maps each linear stage to the roles responsible for it,
	// used to regenerate deadlines on stage entry.
	stageRoles map[model.WorkflowStage][]model.Role

	// steps holds the ten checkpoints in order.
	steps []StepDef

	// taskRoles maps each task type to the roles eligible to receive it.
	taskRoles map[model.TaskType]model.RoleSet

	// deadlineOffsets maps each role to the number of days before an
	// episode's air date its deadline falls due.
	deadlineOffsets map[model.Role]int
}

// Defaults returns the built-in tables.
func Defaults() *Tables {
	return &Tables{
		transitions: map[model.WorkflowStage][]model.WorkflowStage{
			model.StagePlanning:      {model.StagePreProduction, model.StageCancelled},
			model.StagePreProduction: {model.StageProduction, model.StageCancelled},
			model.StageProduction:    {model.StageEditing, model.StageCancelled},
			model.StageEditing:       {model.StageReview, model.StageCancelled},
			model.StageReview:        {model.StageCompleted, model.StageEditing, model.StageCancelled},
			model.StageCompleted:     {},
			model.StageCancelled:     {},
		},
		stageRoles: map[model.WorkflowStage][]model.Role{
			model.StagePlanning:      {model.RoleProducer},
			model.StagePreProduction: {model.RoleProducer, model.RoleArtSetDesigner},
			model.StageProduction:    {model.RoleDirector, model.RoleCameraOperator, model.RoleSoundEngineer},
			model.StageEditing:       {model.RoleEditor, model.RoleGraphicsDesigner},
			model.StageReview:        {model.RoleProducer, model.RoleProductionManager},
		},
		steps: []StepDef{
			{1, "Team formed", model.NewRoleSet(model.RoleProductionManager, model.RoleProducer)},
			{2, "Script finalized", model.NewRoleSet(model.RoleProducer, model.RoleDirector)},
			{3, "Set and art prepared", model.NewRoleSet(model.RoleArtSetDesigner)},
			{4, "Equipment allocated", model.NewRoleSet(model.RoleProductionManager, model.RoleCameraOperator, model.RoleSoundEngineer)},
			{5, "Rehearsal held", model.NewRoleSet(model.RoleDirector, model.RolePresenter)},
			{6, "Recording completed", model.NewRoleSet(model.RoleDirector, model.RoleCameraOperator, model.RoleSoundEngineer)},
			{7, "Rough cut edited", model.NewRoleSet(model.RoleEditor)},
			{8, "Graphics and packaging", model.NewRoleSet(model.RoleGraphicsDesigner, model.RoleEditor)},
			{9, "Final review approved", model.NewRoleSet(model.RoleProducer, model.RoleProductionManager)},
			{10, "Delivered to broadcast", model.NewRoleSet(model.RoleProductionManager)},
		},
		taskRoles: map[model.TaskType]model.RoleSet{
			model.TaskWorkflowStep:     model.NewRoleSet(model.AllRoles...),
			model.TaskDeadline:         model.NewRoleSet(model.AllRoles...),
			model.TaskEquipmentRequest: model.NewRoleSet(model.RoleProducer, model.RoleCameraOperator, model.RoleSoundEngineer, model.RoleProductionManager),
		},
		deadlineOffsets: map[model.Role]int{
			model.RoleProducer:          14,
			model.RoleArtSetDesigner:    10,
			model.RoleDirector:          7,
			model.RoleCameraOperator:    5,
			model.RoleSoundEngineer:     5,
			model.RolePresenter:         5,
			model.RoleEditor:            3,
			model.RoleGraphicsDesigner:  2,
			model.RoleProductionManager: 1,
		},
	}
}

// ReturnGate returns the stage that gates on equipment return and the stage
// it advances to when the gate clears. An episode sitting in the gate stage
// advances automatically once its last active equipment request is resolved.
func (t *Tables) ReturnGate() (from, to model.WorkflowStage) {
	return model.StageProduction, model.StageEditing
}

// ValidTransition reports whether the linear workflow allows moving from one
// stage to another.
func (t *Tables) ValidTransition(from, to model.WorkflowStage) bool {
	for _, next := range t.transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// NextStages returns the stages reachable from the given stage.
func (t *Tables) NextStages(from model.WorkflowStage) []model.WorkflowStage {
	out := make([]model.WorkflowStage, len(t.transitions[from]))
	copy(out, t.transitions[from])
	return out
}

// PreviousStages returns the stages from which the given stage is reachable.
func (t *Tables) PreviousStages(to model.WorkflowStage) []model.WorkflowStage {
	var out []model.WorkflowStage
	for _, from := range t.stageOrder() {
		for _, next := range t.transitions[from] {
			if next == to {
				out = append(out, from)
				break
			}
		}
	}
	return out
}

// KnownStage reports whether the stage is a member of the static stage set.
func (t *Tables) KnownStage(s model.WorkflowStage) bool {
	_, ok := t.transitions[s]
	return ok
}

// StageRoles returns the roles responsible for the given stage.
func (t *Tables) StageRoles(s model.WorkflowStage) []model.Role {
	out := make([]model.Role, len(t.stageRoles[s]))
	copy(out, t.stageRoles[s])
	return out
}

// Steps returns the ten checkpoints in order.
func (t *Tables) Steps() []StepDef {
	out := make([]StepDef, len(t.steps))
	copy(out, t.steps)
	return out
}

// Step returns the definition for the given step number, or false if the
// number is out of range.
func (t *Tables) Step(step int) (StepDef, bool) {
	if step < 1 || step > len(t.steps) {
		return StepDef{}, false
	}
	return t.steps[step-1], true
}

// RoleAllowedForStep reports whether the role may mutate the given step.
// Manager-tier roles may access every step.
func (t *Tables) RoleAllowedForStep(role model.Role, step int) bool {
	def, ok := t.Step(step)
	if !ok {
		return false
	}
	return role.IsManager() || def.Roles.Has(role)
}

// TaskRoles returns the roles eligible to receive the given task type.
func (t *Tables) TaskRoles(taskType model.TaskType) (model.RoleSet, bool) {
	rs, ok := t.taskRoles[taskType]
	return rs, ok
}

// DeadlineOffsetDays returns the days-before-air-date offset for the role,
// or false if the role carries no deadline.
func (t *Tables) DeadlineOffsetDays(role model.Role) (int, bool) {
	d, ok := t.deadlineOffsets[role]
	return d, ok
}

// DeadlineRoles returns the roles that receive generated deadlines, in
// enumeration order.
func (t *Tables) DeadlineRoles() []model.Role {
	var out []model.Role
	for _, r := range model.AllRoles {
		if _, ok := t.deadlineOffsets[r]; ok {
			out = append(out, r)
		}
	}
	return out
}

// stageOrder returns linear stages in lifecycle order for deterministic
// iteration.
func (t *Tables) stageOrder() []model.WorkflowStage {
	return []model.WorkflowStage{
		model.StagePlanning,
		model.StagePreProduction,
		model.StageProduction,
		model.StageEditing,
		model.StageReview,
		model.StageCompleted,
		model.StageCancelled,
	}
}
