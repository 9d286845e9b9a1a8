// Package deadline derives role-scoped due dates from episode air dates and
// runs the overdue and reminder sweeps over them.
package deadline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/greenroomhq/greenroom/internal/roles"
	"github.com/greenroomhq/greenroom/model"
)

// EpisodeSource resolves an episode's air date. Implemented by the episode
// service.
type EpisodeSource interface {
	AirDate(ctx context.Context, episodeID string) (time.Time, error)
}

// Scheduler generates, completes, and sweeps deadlines. Generation is
// idempotent per (episode, role): a role with an open deadline for the
// episode never receives a second one.
type Scheduler struct {
	store      Store
	tables     *roles.Tables
	episodes   EpisodeSource
	reminders  ReminderLog
	dispatcher model.Dispatcher
}

// NewScheduler creates a new deadline scheduler. dispatcher may be nil.
func NewScheduler(
	store Store,
	tables *roles.Tables,
	episodes EpisodeSource,
	reminders ReminderLog,
	dispatcher model.Dispatcher,
) *Scheduler {
	if dispatcher == nil {
		dispatcher = model.NopDispatcher{}
	}
	return &Scheduler{
		store:      store,
		tables:     tables,
		episodes:   episodes,
		reminders:  reminders,
		dispatcher: dispatcher,
	}
}

// GenerateForEpisode creates one deadline per scheduled role for a newly
// created episode, offset backwards from its air date.
func (s *Scheduler) GenerateForEpisode(ctx context.Context, episodeID string) error {
	return s.generate(ctx, episodeID, s.tables.DeadlineRoles())
}

// RegenerateForRoles creates deadlines for roles entering a workflow stage
// that have none open. Roles with an open deadline keep it untouched.
func (s *Scheduler) RegenerateForRoles(ctx context.Context, episodeID string, entered []model.Role) error {
	return s.generate(ctx, episodeID, entered)
}

func (s *Scheduler) generate(ctx context.Context, episodeID string, forRoles []model.Role) error {
	airDate, err := s.episodes.AirDate(ctx, episodeID)
	if err != nil {
		return err
	}

	existing, err := s.store.ListByEpisode(ctx, episodeID)
	if err != nil {
		return err
	}
	hasOpen := make(map[model.Role]bool)
	for _, d := range existing {
		if d.Open() {
			hasOpen[d.Role] = true
		}
	}

	now := time.Now().UTC()
	for _, role := range forRoles {
		offset, scheduled := s.tables.DeadlineOffsetDays(role)
		if !scheduled || hasOpen[role] {
			continue
		}

		d := model.Deadline{
			ID:          uuid.New().String(),
			EpisodeID:   episodeID,
			Role:        role,
			Description: fmt.Sprintf("%s deliverables due before air date", role),
			DueAt:       airDate.AddDate(0, 0, -offset),
			Status:      model.DeadlinePending,
			CreatedAt:   now,
		}
		if err := s.store.Create(ctx, d); err != nil {
			return err
		}
		hasOpen[role] = true

		s.dispatcher.Dispatch(model.Notification{
			Recipient: recipient(d),
			Type:      model.NotifyDeadlineCreated,
			Title:     "Deadline scheduled",
			Message:   fmt.Sprintf("%s due %s", d.Description, d.DueAt.Format("2006-01-02")),
			Data:      map[string]any{"episode_id": episodeID, "deadline_id": d.ID, "role": role},
		})
	}
	return nil
}

// Complete marks a deadline done. Completing an already-completed deadline
// fails with ALREADY_COMPLETED, a cancelled one with CONFLICT. The actor must
// hold the deadline's role, be its assignee, or be manager tier.
func (s *Scheduler) Complete(ctx context.Context, id string, actor model.Actor, notes string) (model.Deadline, error) {
	if err := actor.Validate(); err != nil {
		return model.Deadline{}, model.NewValidationError(err.Error())
	}

	d, err := s.store.Get(ctx, id)
	if err != nil {
		return model.Deadline{}, err
	}
	if err := s.authorize(actor, d); err != nil {
		return model.Deadline{}, err
	}

	switch {
	case d.IsCompleted:
		return model.Deadline{}, model.NewAlreadyCompletedError(
			fmt.Sprintf("deadline %q was already completed by %s", id, d.CompletedBy),
		).WithDetail("completed_by", d.CompletedBy)
	case d.Status == model.DeadlineCancelled:
		return model.Deadline{}, model.NewConflictError(
			fmt.Sprintf("deadline %q is cancelled", id),
		)
	}

	now := time.Now().UTC()
	d.Status = model.DeadlineCompleted
	d.IsCompleted = true
	d.CompletedBy = actor.ID
	d.CompletedAt = &now
	if notes != "" {
		d.Notes = notes
	}
	if err := s.store.UpdateFrom(ctx, d, model.DeadlinePending); err != nil {
		if model.CodeOf(err) == model.ErrConflict {
			// A concurrent writer got there first; report what actually
			// happened to the row.
			if fresh, ferr := s.store.Get(ctx, id); ferr == nil && fresh.IsCompleted {
				return model.Deadline{}, model.NewAlreadyCompletedError(
					fmt.Sprintf("deadline %q was already completed by %s", id, fresh.CompletedBy),
				).WithDetail("completed_by", fresh.CompletedBy)
			}
		}
		return model.Deadline{}, err
	}

	s.dispatcher.Dispatch(model.Notification{
		Recipient: recipient(d),
		Type:      model.NotifyDeadlineCompleted,
		Title:     "Deadline completed",
		Message:   fmt.Sprintf("%s completed by %s", d.Description, actor.Name),
		Data:      map[string]any{"episode_id": d.EpisodeID, "deadline_id": d.ID},
	})

	return d, nil
}

// Cancel retires a deadline without completing it. Manager tier only.
// Cancelling a completed deadline fails with ALREADY_COMPLETED; cancelling an
// already-cancelled one is a no-op.
func (s *Scheduler) Cancel(ctx context.Context, id string, actor model.Actor) (model.Deadline, error) {
	if !actor.Role.IsManager() {
		return model.Deadline{}, model.NewUnauthorizedError(
			fmt.Sprintf("role %s cannot cancel deadlines", actor.Role),
		).WithDetail("required_roles", []model.Role{model.RoleProductionManager, model.RoleAdmin})
	}

	d, err := s.store.Get(ctx, id)
	if err != nil {
		return model.Deadline{}, err
	}
	if d.IsCompleted {
		return model.Deadline{}, model.NewAlreadyCompletedError(
			fmt.Sprintf("deadline %q is completed and cannot be cancelled", id),
		)
	}
	if d.Status == model.DeadlineCancelled {
		return d, nil
	}

	d.Status = model.DeadlineCancelled
	if err := s.store.UpdateFrom(ctx, d, model.DeadlinePending); err != nil {
		if model.CodeOf(err) == model.ErrConflict {
			if fresh, ferr := s.store.Get(ctx, id); ferr == nil && fresh.IsCompleted {
				return model.Deadline{}, model.NewAlreadyCompletedError(
					fmt.Sprintf("deadline %q is completed and cannot be cancelled", id),
				)
			}
		}
		return model.Deadline{}, err
	}
	return d, nil
}

// SetAssignee transfers a deadline to a user. Called by the reassignment
// auditor after it has validated the target; no authorization here.
func (s *Scheduler) SetAssignee(ctx context.Context, id, userID string) (previous string, err error) {
	d, err := s.store.Get(ctx, id)
	if err != nil {
		return "", err
	}
	if !d.Open() {
		return "", model.NewConflictError(
			fmt.Sprintf("deadline %q is %s and cannot be reassigned", id, d.Status),
		)
	}

	previous = d.UserID
	d.UserID = userID
	if err := s.store.UpdateFrom(ctx, d, model.DeadlinePending); err != nil {
		return "", err
	}
	return previous, nil
}

// Get retrieves a single deadline.
func (s *Scheduler) Get(ctx context.Context, id string) (model.Deadline, error) {
	return s.store.Get(ctx, id)
}

// ForEpisode retrieves all deadlines for an episode, due soonest first.
func (s *Scheduler) ForEpisode(ctx context.Context, episodeID string) ([]model.Deadline, error) {
	return s.store.ListByEpisode(ctx, episodeID)
}

// ForUser retrieves all deadlines assigned to a user, due soonest first.
func (s *Scheduler) ForUser(ctx context.Context, userID string) ([]model.Deadline, error) {
	return s.store.ListByUser(ctx, userID)
}

// Overdue returns the open deadlines whose due date has passed, optionally
// filtered to one assignee. Overdue is derived at query time, never stored.
func (s *Scheduler) Overdue(ctx context.Context, now time.Time, userID string) ([]model.Deadline, error) {
	open, err := s.store.ListOpen(ctx)
	if err != nil {
		return nil, err
	}
	var out []model.Deadline
	for _, d := range open {
		if d.OverdueAt(now) && matchesUser(d, userID) {
			out = append(out, d)
		}
	}
	return out, nil
}

// Upcoming returns the open deadlines due within the horizon from now,
// optionally filtered to one assignee.
func (s *Scheduler) Upcoming(ctx context.Context, now time.Time, horizon time.Duration, userID string) ([]model.Deadline, error) {
	open, err := s.store.ListOpen(ctx)
	if err != nil {
		return nil, err
	}
	limit := now.Add(horizon)
	var out []model.Deadline
	for _, d := range open {
		if !d.DueAt.Before(now) && !d.DueAt.After(limit) && matchesUser(d, userID) {
			out = append(out, d)
		}
	}
	return out, nil
}

// matchesUser reports whether the deadline counts for the given assignee
// filter. An empty filter matches everything.
func matchesUser(d model.Deadline, userID string) bool {
	return userID == "" || d.UserID == userID
}

// Statistics aggregates deadline counts. An empty episodeID aggregates across
// all episodes; a non-empty userID restricts the counts to one assignee.
func (s *Scheduler) Statistics(ctx context.Context, episodeID, userID string, now time.Time) (model.DeadlineStatistics, error) {
	var (
		all []model.Deadline
		err error
	)
	if episodeID == "" {
		all, err = s.store.ListAll(ctx)
	} else {
		all, err = s.store.ListByEpisode(ctx, episodeID)
	}
	if err != nil {
		return model.DeadlineStatistics{}, err
	}

	var stats model.DeadlineStatistics
	for _, d := range all {
		if !matchesUser(d, userID) {
			continue
		}
		stats.Total++
		switch {
		case d.IsCompleted:
			stats.Completed++
			if d.CompletedAt != nil && !d.CompletedAt.After(d.DueAt) {
				stats.OnTime++
			}
		case d.Status == model.DeadlineCancelled:
			stats.Cancelled++
		case d.OverdueAt(now):
			stats.Overdue++
		default:
			stats.Upcoming++
		}
	}
	return stats, nil
}

// SweepOverdue dispatches one overdue notification per overdue deadline,
// deduplicated through the reminder log so repeated sweeps stay quiet for the
// TTL window. Returns the number of notifications sent.
func (s *Scheduler) SweepOverdue(ctx context.Context, now time.Time, ttl time.Duration) (int, error) {
	overdue, err := s.Overdue(ctx, now, "")
	if err != nil {
		return 0, err
	}

	sent := 0
	for _, d := range overdue {
		fresh, err := s.reminders.Mark(ctx, FormatReminderKey("overdue", d.ID), ttl)
		if err != nil {
			return sent, err
		}
		if !fresh {
			continue
		}
		s.dispatcher.Dispatch(model.Notification{
			Recipient: recipient(d),
			Type:      model.NotifyDeadlineOverdue,
			Title:     "Deadline overdue",
			Message:   fmt.Sprintf("%s was due %s", d.Description, d.DueAt.Format("2006-01-02")),
			Data:      map[string]any{"episode_id": d.EpisodeID, "deadline_id": d.ID},
		})
		sent++
	}
	return sent, nil
}

// SendReminders dispatches one reminder per open deadline due within the
// horizon, deduplicated through the reminder log. Returns the number of
// reminders sent.
func (s *Scheduler) SendReminders(ctx context.Context, now time.Time, horizon, ttl time.Duration) (int, error) {
	upcoming, err := s.Upcoming(ctx, now, horizon, "")
	if err != nil {
		return 0, err
	}

	sent := 0
	for _, d := range upcoming {
		fresh, err := s.reminders.Mark(ctx, FormatReminderKey("reminder", d.ID), ttl)
		if err != nil {
			return sent, err
		}
		if !fresh {
			continue
		}
		s.dispatcher.Dispatch(model.Notification{
			Recipient: recipient(d),
			Type:      model.NotifyDeadlineReminder,
			Title:     "Deadline approaching",
			Message:   fmt.Sprintf("%s is due %s", d.Description, d.DueAt.Format("2006-01-02")),
			Data:      map[string]any{"episode_id": d.EpisodeID, "deadline_id": d.ID},
		})
		sent++
	}
	return sent, nil
}

// DropEpisode cancels every open deadline for an episode. Called only by the
// episode delete cascade. Completed and cancelled rows stay behind as the
// audit trail; nothing is erased.
func (s *Scheduler) DropEpisode(ctx context.Context, episodeID string) error {
	deadlines, err := s.store.ListByEpisode(ctx, episodeID)
	if err != nil {
		return err
	}
	for _, d := range deadlines {
		if !d.Open() {
			continue
		}
		d.Status = model.DeadlineCancelled
		if err := s.store.UpdateFrom(ctx, d, model.DeadlinePending); err != nil {
			// A writer racing the cascade already closed this one.
			if model.CodeOf(err) == model.ErrConflict {
				continue
			}
			return err
		}
	}
	return nil
}

// authorize checks whether the actor may complete the deadline.
func (s *Scheduler) authorize(actor model.Actor, d model.Deadline) error {
	if actor.Role.IsManager() || actor.Role == d.Role || (d.UserID != "" && actor.ID == d.UserID) {
		return nil
	}
	return model.NewUnauthorizedError(
		fmt.Sprintf("role %s cannot complete a %s deadline", actor.Role, d.Role),
	).WithDetail("required_role", d.Role)
}

// recipient returns the notification recipient for a deadline: its assignee
// when set, otherwise the role inbox.
func recipient(d model.Deadline) string {
	if d.UserID != "" {
		return d.UserID
	}
	return "role:" + string(d.Role)
}
