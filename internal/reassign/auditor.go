// Package reassign transfers in-flight task ownership between users and keeps
// the durable audit trail of every transfer.
package reassign

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/greenroomhq/greenroom/internal/roles"
	"github.com/greenroomhq/greenroom/model"
)

// TaskWriter mutates the assignee field of one task type. Each owning
// component (workflow engine, deadline scheduler, allocator) implements it
// for its own records.
type TaskWriter interface {
	SetAssignee(ctx context.Context, taskID, userID string) (previous string, err error)
}

// TaskWriterFunc adapts a function to the TaskWriter interface.
type TaskWriterFunc func(ctx context.Context, taskID, userID string) (string, error)

// SetAssignee implements TaskWriter.
func (f TaskWriterFunc) SetAssignee(ctx context.Context, taskID, userID string) (string, error) {
	return f(ctx, taskID, userID)
}

// Auditor validates and executes task reassignments. Every successful
// transfer appends exactly one audit record.
type Auditor struct {
	store      Store
	tables     *roles.Tables
	directory  model.Directory
	writers    map[model.TaskType]TaskWriter
	dispatcher model.Dispatcher
}

// NewAuditor creates a new reassignment auditor. dispatcher may be nil.
func NewAuditor(
	store Store,
	tables *roles.Tables,
	directory model.Directory,
	writers map[model.TaskType]TaskWriter,
	dispatcher model.Dispatcher,
) *Auditor {
	if dispatcher == nil {
		dispatcher = model.NopDispatcher{}
	}
	return &Auditor{
		store:      store,
		tables:     tables,
		directory:  directory,
		writers:    writers,
		dispatcher: dispatcher,
	}
}

// Reassign transfers a task to a new assignee. The actor must be manager
// tier; the target must exist in the directory and hold a role eligible for
// the task type, otherwise the call fails with INVALID_TARGET. On success the
// owning component's assignee field is updated, one audit record is appended,
// and both assignees are notified.
func (a *Auditor) Reassign(
	ctx context.Context,
	taskType model.TaskType,
	taskID string,
	newAssignee string,
	actor model.Actor,
	reason string,
) (model.ReassignmentRecord, error) {
	if !actor.Role.IsManager() {
		return model.ReassignmentRecord{}, model.NewUnauthorizedError(
			fmt.Sprintf("role %s cannot reassign tasks", actor.Role),
		).WithDetail("required_roles", []model.Role{model.RoleProductionManager, model.RoleAdmin})
	}
	if taskID == "" || newAssignee == "" {
		return model.ReassignmentRecord{}, model.NewValidationError("task id and new assignee are required")
	}

	eligible, known := a.tables.TaskRoles(taskType)
	if !known {
		return model.ReassignmentRecord{}, model.NewValidationError(
			fmt.Sprintf("unknown task type %q", taskType),
		)
	}

	target, err := a.directory.Lookup(newAssignee)
	if err != nil {
		if model.CodeOf(err) == model.ErrNotFound {
			return model.ReassignmentRecord{}, model.NewInvalidTargetError(
				fmt.Sprintf("user %q does not exist", newAssignee),
			).WithDetail("user_id", newAssignee)
		}
		return model.ReassignmentRecord{}, err
	}
	if !eligible.Has(target.Role) {
		return model.ReassignmentRecord{}, model.NewInvalidTargetError(
			fmt.Sprintf("user %q holds role %s, which cannot receive %s tasks", newAssignee, target.Role, taskType),
		).WithDetail("user_id", newAssignee).WithDetail("role", target.Role).
			WithDetail("required_roles", eligible.Roles())
	}

	writer, ok := a.writers[taskType]
	if !ok {
		return model.ReassignmentRecord{}, model.NewValidationError(
			fmt.Sprintf("no task writer registered for %q", taskType),
		)
	}
	previous, err := writer.SetAssignee(ctx, taskID, newAssignee)
	if err != nil {
		return model.ReassignmentRecord{}, err
	}

	rec := model.ReassignmentRecord{
		ID:          uuid.New().String(),
		TaskType:    taskType,
		TaskID:      taskID,
		OldAssignee: previous,
		NewAssignee: newAssignee,
		Actor:       actor.ID,
		Reason:      reason,
		Timestamp:   time.Now().UTC(),
	}
	if err := a.store.Append(ctx, rec); err != nil {
		return model.ReassignmentRecord{}, err
	}

	a.notify(rec, target)
	return rec, nil
}

// History returns a task's reassignment records, oldest first.
func (a *Auditor) History(ctx context.Context, taskType model.TaskType, taskID string) ([]model.ReassignmentRecord, error) {
	if _, ok := a.tables.TaskRoles(taskType); !ok {
		return nil, model.NewValidationError(fmt.Sprintf("unknown task type %q", taskType))
	}
	return a.store.ListByTask(ctx, taskType, taskID)
}

// EligibleUsers returns the users who may receive tasks of the given type,
// derived from the same role table used for target validation.
func (a *Auditor) EligibleUsers(_ context.Context, taskType model.TaskType) ([]model.User, error) {
	eligible, ok := a.tables.TaskRoles(taskType)
	if !ok {
		return nil, model.NewValidationError(fmt.Sprintf("unknown task type %q", taskType))
	}
	return a.directory.UsersWithRoles(eligible)
}

func (a *Auditor) notify(rec model.ReassignmentRecord, target model.User) {
	data := map[string]any{
		"task_type": rec.TaskType,
		"task_id":   rec.TaskID,
		"record_id": rec.ID,
	}
	if rec.OldAssignee != "" && rec.OldAssignee != rec.NewAssignee {
		a.dispatcher.Dispatch(model.Notification{
			Recipient: rec.OldAssignee,
			Type:      model.NotifyTaskReassigned,
			Title:     "Task reassigned",
			Message:   fmt.Sprintf("Your %s task was reassigned to %s", rec.TaskType, target.Name),
			Data:      data,
		})
	}
	a.dispatcher.Dispatch(model.Notification{
		Recipient: rec.NewAssignee,
		Type:      model.NotifyTaskReassigned,
		Title:     "Task assigned to you",
		Message:   fmt.Sprintf("A %s task was assigned to you", rec.TaskType),
		Data:      data,
	})
}
