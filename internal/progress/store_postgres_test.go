package progress_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/lumen-edu/progress-engine/internal/progress"
)

// startPostgres spins up a throwaway database, runs the migration and
// returns a connected pool. Skipped with -short.
func startPostgres(t *testing.T) *pgxpool.Pool {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	ctx := context.Background()

	ctr, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("progress"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		postgres.BasicWaitStrategies(),
	)
	if err != nil {
		t.Fatalf("start postgres container: %v", err)
	}
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(ctr); err != nil {
			t.Logf("terminate container: %v", err)
		}
	})

	connStr, err := ctr.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("connection string: %v", err)
	}
	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(pool.Close)

	if err := progress.Migrate(ctx, pool); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return pool
}

func newPostgresStore(t *testing.T, pool *pgxpool.Pool) *progress.PostgresStore {
	t.Helper()
	store, err := progress.NewPostgresStore(pool)
	if err != nil {
		t.Fatalf("NewPostgresStore error: %v", err)
	}
	return store
}

func TestPostgresStoreSaveLoad(t *testing.T) {
	pool := startPostgres(t)
	store := newPostgresStore(t, pool)
	ctx := context.Background()

	rec := sampleRecord("anatomy-heart")
	if err := store.Save(ctx, "u1", "anatomy-heart", rec); err != nil {
		t.Fatalf("Save error: %v", err)
	}

	got, err := store.Load(ctx, "u1", "anatomy-heart")
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if got.Score != rec.Score || got.TotalExercises != rec.TotalExercises {
		t.Errorf("loaded = %+v, want %+v", got, rec)
	}
	if a, ok := got.Answer("p1", "ex1"); !ok || !a.IsCorrect {
		t.Errorf("answer = %+v, want recorded correct answer", a)
	}

	if _, err := store.Load(ctx, "u1", "missing"); !errors.Is(err, progress.ErrNotFound) {
		t.Errorf("missing load: error = %v, want ErrNotFound", err)
	}
}

func TestPostgresStoreUpsert(t *testing.T) {
	pool := startPostgres(t)
	store := newPostgresStore(t, pool)
	ctx := context.Background()

	rec := sampleRecord("m1")
	if err := store.Save(ctx, "u1", "m1", rec); err != nil {
		t.Fatalf("first Save error: %v", err)
	}
	rec.Score = 3
	rec.Percentage = 60
	if err := store.Save(ctx, "u1", "m1", rec); err != nil {
		t.Fatalf("second Save error: %v", err)
	}

	got, err := store.Load(ctx, "u1", "m1")
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if got.Score != 3 || got.Percentage != 60 {
		t.Errorf("got score=%d pct=%d, want overwrite to 3/60", got.Score, got.Percentage)
	}
}

func TestPostgresStoreUpdate(t *testing.T) {
	pool := startPostgres(t)
	store := newPostgresStore(t, pool)
	ctx := context.Background()

	if err := store.Save(ctx, "u1", "m1", sampleRecord("m1")); err != nil {
		t.Fatalf("Save error: %v", err)
	}

	score := 5
	done := time.Now().UTC().Truncate(time.Second)
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
		t.Errorf("updated = %+v, want completed/100/5", got)
	}
	if _, ok := got.Answer("p1", "ex1"); !ok {
		t.Error("Update must merge, not replace the document")
	}

	err = store.Update(ctx, "u1", "missing", progress.CompletionUpdate{Completed: true})
	if !errors.Is(err, progress.ErrNotFound) {
		t.Errorf("missing update: error = %v, want ErrNotFound", err)
	}
}

func TestPostgresStoreLoadMany(t *testing.T) {
	pool := startPostgres(t)
	store := newPostgresStore(t, pool)
	ctx := context.Background()

	for _, m := range []string{"m1", "m2"} {
		if err := store.Save(ctx, "u1", m, sampleRecord(m)); err != nil {
			t.Fatalf("Save(%s) error: %v", m, err)
		}
	}
	if err := store.Save(ctx, "u2", "m1", sampleRecord("m1")); err != nil {
		t.Fatalf("Save error: %v", err)
	}

	got, err := store.LoadMany(ctx, "u1", []string{"m1", "m2", "m3"})
	if err != nil {
		t.Fatalf("LoadMany error: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("records = %d, want 2", len(got))
	}
}

func TestPostgresStoreLoadsLegacyDocument(t *testing.T) {
	pool := startPostgres(t)
	store := newPostgresStore(t, pool)
	ctx := context.Background()

	// Plant a legacy-shaped document directly, bypassing the store.
	legacy := `{"0": {"moduleId": "chem-atoms", "score": 2, "totalExercises": 4, "percentage": 50}}`
	_, err := pool.Exec(ctx,
		`INSERT INTO progress_records (user_id, module_id, doc, updated_at) VALUES ($1, $2, $3::jsonb, now())`,
		"u1", "chem-atoms", legacy)
	if err != nil {
		t.Fatalf("insert legacy doc: %v", err)
	}

	got, err := store.Load(ctx, "u1", "chem-atoms")
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if got.Score != 2 || got.TotalExercises != 4 {
		t.Errorf("normalized record = %+v, want score=2 total=4", got)
	}
}

func TestPostgresEventLogger(t *testing.T) {
	pool := startPostgres(t)
	logger := progress.NewPostgresEventLogger(pool)
	ctx := context.Background()

	err := logger.LogEvent(ctx, progress.Event{
		UserID:    "u1",
		ModuleID:  "m1",
		EventType: progress.EventAnswerSubmitted,
		Data:      map[string]any{"exercise_id": "ex1", "is_correct": true},
	})
	if err != nil {
		t.Fatalf("LogEvent error: %v", err)
	}

	var count int
	if err := pool.QueryRow(ctx,
		`SELECT count(*) FROM progress_events WHERE user_id = $1 AND event_type = $2`,
		"u1", progress.EventAnswerSubmitted).Scan(&count); err != nil {
		t.Fatalf("count events: %v", err)
	}
	if count != 1 {
		t.Errorf("events = %d, want 1", count)
	}
}
