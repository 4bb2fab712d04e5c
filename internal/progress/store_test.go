package progress_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/lumen-edu/progress-engine/internal/progress"
)

func sampleRecord(moduleID string) *progress.ProgressRecord {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	rec := progress.NewProgressRecord(moduleID, now)
	rec.Parts["p1"] = map[string]progress.AnswerRecord{
		"ex1": {UserAnswer: "a", IsCorrect: true, Timestamp: now},
	}
	rec.CompletedExercises = []string{"ex1"}
	rec.TotalExercises = 5
	rec.Score = 1
	rec.Percentage = 20
	return rec
}

func TestMemoryStoreSaveLoad(t *testing.T) {
	store := progress.NewMemoryStore()
	ctx := context.Background()

	rec := sampleRecord("anatomy-heart")
	if err := store.Save(ctx, "u1", "anatomy-heart", rec); err != nil {
		t.Fatalf("Save error: %v", err)
	}

	got, err := store.Load(ctx, "u1", "anatomy-heart")
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if got.Score != 1 || got.TotalExercises != 5 {
		t.Errorf("loaded record = %+v, want saved values", got)
	}
}

func TestMemoryStoreLoadMissing(t *testing.T) {
	store := progress.NewMemoryStore()

	_, err := store.Load(context.Background(), "u1", "nope")
	if !errors.Is(err, progress.ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestMemoryStoreIsolation(t *testing.T) {
	store := progress.NewMemoryStore()
	ctx := context.Background()

	rec := sampleRecord("anatomy-heart")
	if err := store.Save(ctx, "u1", "anatomy-heart", rec); err != nil {
		t.Fatalf("Save error: %v", err)
	}

	// Mutating the record after Save must not change stored state.
	rec.Parts["p1"]["ex1"] = progress.AnswerRecord{UserAnswer: "changed"}
	got, _ := store.Load(ctx, "u1", "anatomy-heart")
	if a, _ := got.Answer("p1", "ex1"); a.UserAnswer != "a" {
		t.Error("Save aliased the caller's record")
	}

	// Mutating a loaded record must not change stored state either.
	got.Score = 99
	again, _ := store.Load(ctx, "u1", "anatomy-heart")
	if again.Score != 1 {
		t.Error("Load aliased stored state")
	}
}

func TestMemoryStoreKeysAreScoped(t *testing.T) {
	store := progress.NewMemoryStore()
	ctx := context.Background()

	if err := store.Save(ctx, "u1", "m1", sampleRecord("m1")); err != nil {
		t.Fatalf("Save error: %v", err)
	}

	if _, err := store.Load(ctx, "u2", "m1"); !errors.Is(err, progress.ErrNotFound) {
		t.Errorf("other user's load: error = %v, want ErrNotFound", err)
	}
	if _, err := store.Load(ctx, "u1", "m2"); !errors.Is(err, progress.ErrNotFound) {
		t.Errorf("other module's load: error = %v, want ErrNotFound", err)
	}
}

func TestMemoryStoreUpdate(t *testing.T) {
	store := progress.NewMemoryStore()
	ctx := context.Background()

	if err := store.Save(ctx, "u1", "m1", sampleRecord("m1")); err != nil {
		t.Fatalf("Save error: %v", err)
	}

	score := 5
	done := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	err := store.Update(ctx, "u1", "m1", progress.CompletionUpdate{
		Completed:   true,
		Percentage:  100,
		CompletedAt: done,
		Score:       &score,
		LastUpdated: done,
	})
	if err != nil {
		t.Fatalf("Update error: %v", err)
	}

	got, _ := store.Load(ctx, "u1", "m1")
	if !got.Completed || got.Percentage != 100 || got.Score != 5 {
		t.Errorf("updated record = %+v, want completed/100/5", got)
	}
	if got.CompletedAt == nil || !got.CompletedAt.Equal(done) {
		t.Errorf("completedAt = %v, want %v", got.CompletedAt, done)
	}
	// Answers survive the patch.
	if _, ok := got.Answer("p1", "ex1"); !ok {
		t.Error("Update dropped recorded answers")
	}
}

func TestMemoryStoreUpdateNilScore(t *testing.T) {
	store := progress.NewMemoryStore()
	ctx := context.Background()

	if err := store.Save(ctx, "u1", "m1", sampleRecord("m1")); err != nil {
		t.Fatalf("Save error: %v", err)
	}
	err := store.Update(ctx, "u1", "m1", progress.CompletionUpdate{Completed: true, Percentage: 100})
	if err != nil {
		t.Fatalf("Update error: %v", err)
	}

	got, _ := store.Load(ctx, "u1", "m1")
	if got.Score != 1 {
		t.Errorf("score = %d, want stored value 1", got.Score)
	}
}

func TestMemoryStoreUpdateMissing(t *testing.T) {
	store := progress.NewMemoryStore()

	err := store.Update(context.Background(), "u1", "nope", progress.CompletionUpdate{Completed: true})
	if !errors.Is(err, progress.ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestMemoryStoreLoadMany(t *testing.T) {
	store := progress.NewMemoryStore()
	ctx := context.Background()

	for _, m := range []string{"m1", "m2"} {
		if err := store.Save(ctx, "u1", m, sampleRecord(m)); err != nil {
			t.Fatalf("Save(%s) error: %v", m, err)
		}
	}

	got, err := store.LoadMany(ctx, "u1", []string{"m1", "m2", "m3"})
	if err != nil {
		t.Fatalf("LoadMany error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("records = %d, want 2 (absent modules omitted)", len(got))
	}
	if got["m1"].ModuleID != "m1" || got["m2"].ModuleID != "m2" {
		t.Errorf("records keyed wrong: %v", got)
	}
}

func TestMemoryStoreConcurrentWriters(t *testing.T) {
	store := progress.NewMemoryStore()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			moduleID := fmt.Sprintf("m%d", i%4)
			_ = store.Save(ctx, "u1", moduleID, sampleRecord(moduleID))
			_, _ = store.Load(ctx, "u1", moduleID)
		}(i)
	}
	wg.Wait()

	got, err := store.LoadMany(ctx, "u1", []string{"m0", "m1", "m2", "m3"})
	if err != nil {
		t.Fatalf("LoadMany error: %v", err)
	}
	if len(got) != 4 {
		t.Errorf("records = %d, want 4", len(got))
	}
}
