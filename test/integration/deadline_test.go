package integration

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/greenroomhq/greenroom/model"
)

// waitForNotifications polls the capture sink until at least want
// notifications of the given type have been delivered. The dispatcher is
// asynchronous, so assertions on delivered counts need a settling window.
func waitForNotifications(t *testing.T, h *TestHarness, typ string, want int) []model.Notification {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for {
		var matched []model.Notification
		for _, n := range h.Notifications.Seen() {
			if n.Type == typ {
				matched = append(matched, n)
			}
		}
		if len(matched) >= want {
			return matched
		}
		if time.Now().After(deadline) {
			t.Fatalf("saw %d %s notifications, want at least %d", len(matched), typ, want)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

// TestDeadlineGeneration verifies role deadlines are derived from the air
// date at episode creation.
func TestDeadlineGeneration(t *testing.T) {
	h := NewTestHarness(t)
	manager := h.GenerateToken(ManagerClaims())

	airDate := time.Now().AddDate(0, 0, 30)
	ep := h.CreateEpisode(t, airDate)

	var deadlines []model.Deadline
	h.AssertJSON(t, h.GET("/episodes/"+ep.ID+"/deadlines", manager), http.StatusOK, &deadlines)
	if len(deadlines) == 0 {
		t.Fatal("expected deadlines generated from the air date")
	}
	for _, d := range deadlines {
		if d.Status != model.DeadlinePending {
			t.Errorf("deadline %s status = %s, want pending", d.ID, d.Status)
		}
		if !d.DueAt.Before(airDate.Add(time.Minute)) {
			t.Errorf("deadline %s due %s, after air date %s", d.ID, d.DueAt, airDate)
		}
	}
}

// TestReminderSweepDedup verifies SendReminders notifies each open deadline
// once per TTL window.
func TestReminderSweepDedup(t *testing.T) {
	h := NewTestHarness(t)
	ctx := context.Background()

	h.CreateEpisode(t, time.Now().AddDate(0, 0, 10))

	horizon := 30 * 24 * time.Hour
	ttl := 24 * time.Hour

	sent, err := h.Scheduler.SendReminders(ctx, time.Now(), horizon, ttl)
	if err != nil {
		t.Fatalf("SendReminders: %v", err)
	}
	if sent == 0 {
		t.Fatal("first sweep sent no reminders")
	}
	waitForNotifications(t, h, model.NotifyDeadlineReminder, sent)

	again, err := h.Scheduler.SendReminders(ctx, time.Now(), horizon, ttl)
	if err != nil {
		t.Fatalf("SendReminders: %v", err)
	}
	if again != 0 {
		t.Fatalf("second sweep sent %d reminders, want 0", again)
	}
}

// TestOverdueSweepDedup verifies SweepOverdue notifies once per deadline and
// skips completed deadlines.
func TestOverdueSweepDedup(t *testing.T) {
	h := NewTestHarness(t)
	ctx := context.Background()
	manager := h.GenerateToken(ManagerClaims())

	ep := h.CreateEpisode(t, time.Now().AddDate(0, 0, 5))

	var deadlines []model.Deadline
	h.AssertJSON(t, h.GET("/episodes/"+ep.ID+"/deadlines", manager), http.StatusOK, &deadlines)
	if len(deadlines) < 2 {
		t.Fatalf("deadlines = %d, want at least 2", len(deadlines))
	}

	// Complete one deadline so the sweep has something to skip.
	var completed model.Deadline
	h.AssertJSON(t, h.POST("/deadlines/"+deadlines[0].ID+"/complete",
		map[string]any{"notes": "done early"}, manager), http.StatusOK, &completed)
	if !completed.IsCompleted {
		t.Fatal("deadline not marked completed")
	}

	// Far enough in the future that every open deadline is overdue.
	future := time.Now().AddDate(0, 1, 0)
	ttl := 24 * time.Hour

	sent, err := h.Scheduler.SweepOverdue(ctx, future, ttl)
	if err != nil {
		t.Fatalf("SweepOverdue: %v", err)
	}
	if sent != len(deadlines)-1 {
		t.Fatalf("overdue sweep sent %d, want %d", sent, len(deadlines)-1)
	}
	waitForNotifications(t, h, model.NotifyDeadlineOverdue, sent)

	again, err := h.Scheduler.SweepOverdue(ctx, future, ttl)
	if err != nil {
		t.Fatalf("SweepOverdue: %v", err)
	}
	if again != 0 {
		t.Fatalf("repeat overdue sweep sent %d, want 0", again)
	}
}

// TestDeadlineReassignmentFlow reassigns a deadline through the audit trail
// and verifies the new assignee sees it.
func TestDeadlineReassignmentFlow(t *testing.T) {
	h := NewTestHarness(t)
	manager := h.GenerateToken(ManagerClaims())
	editor := h.GenerateToken(EditorClaims())

	ep := h.CreateEpisode(t, time.Now().AddDate(0, 0, 14))

	var deadlines []model.Deadline
	h.AssertJSON(t, h.GET("/episodes/"+ep.ID+"/deadlines", manager), http.StatusOK, &deadlines)

	// Find a deadline an editor may hold.
	var target model.Deadline
	for _, d := range deadlines {
		if d.Role == model.RoleEditor {
			target = d
			break
		}
	}
	if target.ID == "" {
		t.Fatal("no editor deadline generated")
	}

	var rec model.ReassignmentRecord
	h.AssertJSON(t, h.POST("/reassignments", map[string]any{
		"task_type":    "deadline",
		"task_id":      target.ID,
		"new_assignee": "user-bob",
		"reason":       "vacation cover",
	}, manager), http.StatusCreated, &rec)
	if rec.NewAssignee != "user-bob" {
		t.Fatalf("new assignee = %s, want user-bob", rec.NewAssignee)
	}

	var mine []model.Deadline
	h.AssertJSON(t, h.GET("/deadlines/mine", editor), http.StatusOK, &mine)
	found := false
	for _, d := range mine {
		if d.ID == target.ID {
			found = true
		}
	}
	if !found {
		t.Fatal("reassigned deadline missing from the new assignee's list")
	}

	// Non-managers cannot reassign.
	h.AssertErrorCode(t, h.POST("/reassignments", map[string]any{
		"task_type":    "deadline",
		"task_id":      target.ID,
		"new_assignee": "user-alice",
		"reason":       "no",
	}, editor), http.StatusForbidden, model.ErrUnauthorized)

	var history []model.ReassignmentRecord
	h.AssertJSON(t, h.GET("/reassignments/deadline/"+target.ID, manager), http.StatusOK, &history)
	if len(history) != 1 {
		t.Fatalf("history entries = %d, want 1", len(history))
	}
}
