package state

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func sampleKickoff(kickoffID string, at time.Time) []*TaskOutput {
	return []*TaskOutput{
		{
			TaskID:    kickoffID + "-t0",
			KickoffID: kickoffID,
			Crew:      "setup",
			Index:     0,
			Name:      "persona_identification_task",
			Agent:     "persona_identifier",
			Raw:       "personas",
			Inputs:    map[string]string{"startup_idea": "A meal-planning app"},
			CreatedAt: at,
		},
		{
			TaskID:    kickoffID + "-t1",
			KickoffID: kickoffID,
			Crew:      "setup",
			Index:     1,
			Name:      "voice_research_task",
			Agent:     "voice_researcher",
			Raw:       "voices",
			Inputs:    map[string]string{"startup_idea": "A meal-planning app"},
			CreatedAt: at.Add(time.Second),
		},
	}
}

func exerciseStore(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()

	if _, err := store.LatestKickoff(ctx); !errors.Is(err, ErrTaskNotFound) {
		t.Fatalf("LatestKickoff() on empty store error = %v, want ErrTaskNotFound", err)
	}

	base := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	for _, out := range sampleKickoff("k1", base) {
		if err := store.Save(ctx, out); err != nil {
			t.Fatalf("Save(%s) error = %v", out.TaskID, err)
		}
	}
	for _, out := range sampleKickoff("k2", base.Add(time.Minute)) {
		if err := store.Save(ctx, out); err != nil {
			t.Fatalf("Save(%s) error = %v", out.TaskID, err)
		}
	}

	outs, err := store.KickoffByTask(ctx, "k1-t1")
	if err != nil {
		t.Fatalf("KickoffByTask() error = %v", err)
	}
	if len(outs) != 2 {
		t.Fatalf("expected 2 outputs, got %d", len(outs))
	}
	if outs[0].Name != "persona_identification_task" || outs[1].Name != "voice_research_task" {
		t.Fatalf("unexpected order: %s, %s", outs[0].Name, outs[1].Name)
	}
	if outs[0].Inputs["startup_idea"] != "A meal-planning app" {
		t.Fatalf("unexpected inputs: %#v", outs[0].Inputs)
	}

	latest, err := store.LatestKickoff(ctx)
	if err != nil {
		t.Fatalf("LatestKickoff() error = %v", err)
	}
	if latest[0].KickoffID != "k2" {
		t.Fatalf("latest kickoff = %s, want k2", latest[0].KickoffID)
	}

	if _, err := store.KickoffByTask(ctx, "missing"); !errors.Is(err, ErrTaskNotFound) {
		t.Fatalf("KickoffByTask(missing) error = %v, want ErrTaskNotFound", err)
	}
	if _, err := store.KickoffByTask(ctx, "  "); !errors.Is(err, ErrInvalidTaskID) {
		t.Fatalf("KickoffByTask(blank) error = %v, want ErrInvalidTaskID", err)
	}
	if err := store.Save(ctx, nil); !errors.Is(err, ErrNilTaskOutput) {
		t.Fatalf("Save(nil) error = %v, want ErrNilTaskOutput", err)
	}
}

func TestMemoryStore(t *testing.T) {
	t.Parallel()

	exerciseStore(t, NewMemoryStore())
}

func TestBunStoreSQLite(t *testing.T) {
	t.Parallel()

	dsn := "file:" + filepath.Join(t.TempDir(), "voiceboard.db")
	store, err := NewBunStore(context.Background(), StoreConfig{DSN: dsn})
	if err != nil {
		t.Fatalf("NewBunStore() error = %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	exerciseStore(t, store)
}

func TestNewBunStoreRequiresDSN(t *testing.T) {
	t.Parallel()

	if _, err := NewBunStore(context.Background(), StoreConfig{DSN: " "}); err == nil {
		t.Fatal("expected error for blank dsn")
	}
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewMemoryStore()
	out := sampleKickoff("k1", time.Now())[0]
	if err := store.Save(ctx, out); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	out.Inputs["startup_idea"] = "mutated"

	outs, err := store.KickoffByTask(ctx, out.TaskID)
	if err != nil {
		t.Fatalf("KickoffByTask() error = %v", err)
	}
	if outs[0].Inputs["startup_idea"] != "A meal-planning app" {
		t.Fatalf("store kept caller's map: %#v", outs[0].Inputs)
	}
}
