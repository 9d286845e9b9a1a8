package workflow

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/greenroomhq/greenroom/model"
)

func seedState(t *testing.T, s Store, episodeID string) model.WorkflowState {
	t.Helper()
	now := time.Now().UTC()
	state := model.WorkflowState{
		ID:           uuid.New().String(),
		EpisodeID:    episodeID,
		CurrentState: model.StagePlanning,
		Version:      1,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.CreateState(context.Background(), state); err != nil {
		t.Fatalf("CreateState error: %v", err)
	}
	return state
}

func TestMemoryStore_CreateState_duplicate(t *testing.T) {
	store := NewMemoryStore()
	state := seedState(t, store, "ep-1")

	err := store.CreateState(context.Background(), state)
	assertCode(t, err, model.ErrConflict)
}

func TestMemoryStore_GetState_notFound(t *testing.T) {
	store := NewMemoryStore()

	_, err := store.GetState(context.Background(), "ep-missing")
	assertCode(t, err, model.ErrNotFound)
}

func TestMemoryStore_UpdateState_versionConflict(t *testing.T) {
	store := NewMemoryStore()
	state := seedState(t, store, "ep-1")
	ctx := context.Background()

	state.CurrentState = model.StagePreProduction
	if err := store.UpdateState(ctx, state); err != nil {
		t.Fatalf("UpdateState error: %v", err)
	}

	// A writer still holding the old version must lose.
	stale := state
	stale.CurrentState = model.StageCancelled
	err := store.UpdateState(ctx, stale)
	assertCode(t, err, model.ErrConflict)

	got, err := store.GetState(ctx, "ep-1")
	if err != nil {
		t.Fatalf("GetState error: %v", err)
	}
	if got.CurrentState != model.StagePreProduction {
		t.Errorf("current state = %s, want %s", got.CurrentState, model.StagePreProduction)
	}
	if got.Version != 2 {
		t.Errorf("version = %d, want 2", got.Version)
	}
}

func TestMemoryStore_Transitions_ordering(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	base := time.Now().UTC()
	for i, offset := range []time.Duration{2 * time.Second, 0, time.Second} {
		rec := model.TransitionRecord{
			ID:        uuid.New().String(),
			EpisodeID: "ep-1",
			From:      model.StagePlanning,
			To:        model.StagePreProduction,
			Actor:     "user-alice",
			Notes:     string(rune('a' + i)),
			Timestamp: base.Add(offset),
		}
		if err := store.AppendTransition(ctx, rec); err != nil {
			t.Fatalf("AppendTransition error: %v", err)
		}
	}

	records, err := store.GetTransitions(ctx, "ep-1")
	if err != nil {
		t.Fatalf("GetTransitions error: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("records = %d, want 3", len(records))
	}
	for i := 1; i < len(records); i++ {
		if records[i].Timestamp.Before(records[i-1].Timestamp) {
			t.Errorf("records out of order at %d", i)
		}
	}
}

func TestMemoryStore_Steps(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	now := time.Now().UTC()

	steps := make([]model.StepProgress, 0, 3)
	for _, n := range []int{3, 1, 2} {
		steps = append(steps, model.StepProgress{
			ID:        uuid.New().String(),
			EpisodeID: "ep-1",
			Step:      n,
			Status:    model.StepNotStarted,
			UpdatedAt: now,
		})
	}
	if err := store.CreateSteps(ctx, steps); err != nil {
		t.Fatalf("CreateSteps error: %v", err)
	}

	// Duplicate seeding is rejected.
	err := store.CreateSteps(ctx, steps)
	assertCode(t, err, model.ErrConflict)

	// Listed in step order regardless of insertion order.
	rows, err := store.ListSteps(ctx, "ep-1")
	if err != nil {
		t.Fatalf("ListSteps error: %v", err)
	}
	for i, p := range rows {
		if p.Step != i+1 {
			t.Errorf("row %d step = %d, want %d", i, p.Step, i+1)
		}
	}

	p, err := store.GetStep(ctx, "ep-1", 2)
	if err != nil {
		t.Fatalf("GetStep error: %v", err)
	}
	p.Status = model.StepInProgress
	if err := store.UpdateStep(ctx, p); err != nil {
		t.Fatalf("UpdateStep error: %v", err)
	}
	got, _ := store.GetStep(ctx, "ep-1", 2)
	if got.Status != model.StepInProgress {
		t.Errorf("status = %s, want %s", got.Status, model.StepInProgress)
	}

	_, err = store.GetStep(ctx, "ep-1", 9)
	assertCode(t, err, model.ErrNotFound)
}

func TestMemoryStore_DeleteEpisode(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	seedState(t, store, "ep-1")

	if err := store.DeleteEpisode(ctx, "ep-1"); err != nil {
		t.Fatalf("DeleteEpisode error: %v", err)
	}
	_, err := store.GetState(ctx, "ep-1")
	assertCode(t, err, model.ErrNotFound)
}
