package progress

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"
)

// ModuleCatalog lists the known content modules. The all-modules query
// iterates it, and initialization uses it for the default denominator.
type ModuleCatalog interface {
	ModuleIDs() []string
	TotalExercises(moduleID string) (int, bool)
}

// Publisher receives every record the engine persists, for fan-out to
// connected clients. Publishing is fire-and-forget.
type Publisher interface {
	Publish(userID string, rec *ProgressRecord)
}

// EngineConfig holds dependencies for the scoring engine.
type EngineConfig struct {
	Store     Store
	Catalog   ModuleCatalog
	Events    EventLogger
	Publisher Publisher
	Now       func() time.Time // defaults to time.Now
}

// Engine records answers, maintains scores and completion state, and is the
// only writer of progress records. It is stateless between calls apart from
// the per-key locks that serialize the load-recompute-save cycle, so a lost
// update can never drop a score delta.
type Engine struct {
	store     Store
	catalog   ModuleCatalog
	events    EventLogger
	publisher Publisher
	now       func() time.Time
	locks     keyedMutex
}

// NewEngine creates a new scoring engine.
func NewEngine(cfg EngineConfig) *Engine {
	store := cfg.Store
	if store == nil {
		store = NewMemoryStore()
	}
	events := cfg.Events
	if events == nil {
		events = NopEventLogger{}
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Engine{
		store:     store,
		catalog:   cfg.Catalog,
		events:    events,
		publisher: cfg.Publisher,
		now:       now,
	}
}

// SubmitAnswerRequest carries one answer submission.
type SubmitAnswerRequest struct {
	UserID     string
	ModuleID   string
	PartID     string
	ExerciseID string
	UserAnswer string
	IsCorrect  bool

	// TotalExercises, when positive, is the authoritative denominator
	// supplied by the caller. Zero means "not provided": the engine then
	// keeps the larger of the stored denominator and the number of
	// exercises answered so far.
	TotalExercises int
}

// SubmitAnswer records a learner's answer to one exercise and returns the
// updated, persisted record. Exactly one durable write happens per call.
func (e *Engine) SubmitAnswer(ctx context.Context, req SubmitAnswerRequest) (*ProgressRecord, error) {
	switch {
	case req.UserID == "":
		return nil, invalidArg("userId")
	case req.ModuleID == "":
		return nil, invalidArg("moduleId")
	case req.PartID == "":
		return nil, invalidArg("partId")
	case req.ExerciseID == "":
		return nil, invalidArg("exerciseId")
	}
	// Pure-integer part keys mark the legacy document shape and are
	// stripped by repair on a later load, so accepting one here would lose
	// the answer on the next read.
	if _, err := strconv.Atoi(req.PartID); err == nil {
		return nil, fmt.Errorf("%w: partId must not be numeric", ErrInvalidArgument)
	}

	unlock := e.locks.lock(storeKey(req.UserID, req.ModuleID))
	defer unlock()

	now := e.now()

	rec, err := e.store.Load(ctx, req.UserID, req.ModuleID)
	switch {
	case errors.Is(err, ErrNotFound):
		rec = NewProgressRecord(req.ModuleID, now)
	case err != nil:
		var malformed *MalformedRecordError
		if errors.As(err, &malformed) {
			return nil, err
		}
		return nil, storageErr("load", err)
	}

	wasCompleted := rec.Completed

	if rec.Parts[req.PartID] == nil {
		rec.Parts[req.PartID] = map[string]AnswerRecord{}
	}
	rec.Parts[req.PartID][req.ExerciseID] = AnswerRecord{
		UserAnswer: req.UserAnswer,
		IsCorrect:  req.IsCorrect,
		Timestamp:  now,
	}

	// First-time-answered tracking is independent of correctness and
	// never reverses.
	if !rec.HasExercise(req.ExerciseID) {
		rec.CompletedExercises = append(rec.CompletedExercises, req.ExerciseID)
	}

	if req.TotalExercises > 0 {
		rec.TotalExercises = req.TotalExercises
	} else if n := len(rec.CompletedExercises); n > rec.TotalExercises {
		rec.TotalExercises = n
	}

	rec.recompute(now)

	if err := e.store.Save(ctx, req.UserID, req.ModuleID, rec); err != nil {
		return nil, storageErr("save", err)
	}

	e.logEvent(ctx, Event{
		UserID:    req.UserID,
		ModuleID:  req.ModuleID,
		EventType: EventAnswerSubmitted,
		Data: map[string]any{
			"part_id":     req.PartID,
			"exercise_id": req.ExerciseID,
			"is_correct":  req.IsCorrect,
			"score":       rec.Score,
			"percentage":  rec.Percentage,
		},
		CreatedAt: now,
	})
	if rec.Completed && !wasCompleted {
		e.logEvent(ctx, Event{
			UserID:    req.UserID,
			ModuleID:  req.ModuleID,
			EventType: EventModuleCompleted,
			Data:      map[string]any{"score": rec.Score, "percentage": rec.Percentage},
			CreatedAt: now,
		})
	}
	e.publish(req.UserID, rec)

	return rec, nil
}

// MarkCompleted is the manual completion override: it forces an existing
// record to completed with percentage 100 regardless of its answers. A nil
// finalScore leaves the stored score untouched.
func (e *Engine) MarkCompleted(ctx context.Context, userID, moduleID string, finalScore *int) error {
	if userID == "" {
		return invalidArg("userId")
	}
	if moduleID == "" {
		return invalidArg("moduleId")
	}

	unlock := e.locks.lock(storeKey(userID, moduleID))
	defer unlock()

	now := e.now()
	err := e.store.Update(ctx, userID, moduleID, CompletionUpdate{
		Completed:   true,
		Percentage:  100,
		CompletedAt: now,
		Score:       finalScore,
		LastUpdated: now,
	})
	if errors.Is(err, ErrNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return storageErr("update", err)
	}

	e.logEvent(ctx, Event{
		UserID:    userID,
		ModuleID:  moduleID,
		EventType: EventModuleCompleted,
		Data:      map[string]any{"manual": true},
		CreatedAt: now,
	})
	if rec, loadErr := e.store.Load(ctx, userID, moduleID); loadErr == nil {
		e.publish(userID, rec)
	}
	return nil
}

// InitializeModuleProgress persists a fresh empty record for the module
// unless one with answered exercises already exists, in which case it is a
// no-op. The denominator falls back to the catalog when the caller does not
// supply one.
func (e *Engine) InitializeModuleProgress(ctx context.Context, userID, moduleID string, totalExercises int) error {
	if userID == "" {
		return invalidArg("userId")
	}
	if moduleID == "" {
		return invalidArg("moduleId")
	}

	unlock := e.locks.lock(storeKey(userID, moduleID))
	defer unlock()

	existing, err := e.store.Load(ctx, userID, moduleID)
	if err == nil && len(existing.Parts) > 0 {
		return nil
	}
	if err != nil && !errors.Is(err, ErrNotFound) {
		var malformed *MalformedRecordError
		if errors.As(err, &malformed) {
			return err
		}
		return storageErr("load", err)
	}

	rec := NewProgressRecord(moduleID, e.now())
	if totalExercises > 0 {
		rec.TotalExercises = totalExercises
	} else if e.catalog != nil {
		if n, ok := e.catalog.TotalExercises(moduleID); ok {
			rec.TotalExercises = n
		}
	}

	if err := e.store.Save(ctx, userID, moduleID, rec); err != nil {
		return storageErr("save", err)
	}
	return nil
}

// GetModuleProgress returns the record for one module, or nil when none is
// stored. It never writes.
func (e *Engine) GetModuleProgress(ctx context.Context, userID, moduleID string) (*ProgressRecord, error) {
	if userID == "" || moduleID == "" {
		return nil, nil
	}
	rec, err := e.store.Load(ctx, userID, moduleID)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		var malformed *MalformedRecordError
		if errors.As(err, &malformed) {
			return nil, err
		}
		return nil, storageErr("load", err)
	}
	return rec, nil
}

// GetExerciseAnswer returns the answer recorded for one exercise, if any.
func (e *Engine) GetExerciseAnswer(ctx context.Context, userID, moduleID, partID, exerciseID string) (*AnswerRecord, error) {
	rec, err := e.GetModuleProgress(ctx, userID, moduleID)
	if err != nil || rec == nil {
		return nil, err
	}
	if a, ok := rec.Answer(partID, exerciseID); ok {
		return &a, nil
	}
	return nil, nil
}

// GetPartAnswers returns all answers recorded for one part, or nil when the
// part has none.
func (e *Engine) GetPartAnswers(ctx context.Context, userID, moduleID, partID string) (map[string]AnswerRecord, error) {
	rec, err := e.GetModuleProgress(ctx, userID, moduleID)
	if err != nil || rec == nil {
		return nil, err
	}
	part, ok := rec.Parts[partID]
	if !ok {
		return nil, nil
	}
	out := make(map[string]AnswerRecord, len(part))
	for exID, a := range part {
		out[exID] = a
	}
	return out, nil
}

// GetAllModulesProgress aggregates present records across the catalog's
// known modules. Modules without a record are simply absent from the map.
func (e *Engine) GetAllModulesProgress(ctx context.Context, userID string) (map[string]*ProgressRecord, error) {
	if userID == "" || e.catalog == nil {
		return map[string]*ProgressRecord{}, nil
	}
	out, err := e.store.LoadMany(ctx, userID, e.catalog.ModuleIDs())
	if err != nil {
		var malformed *MalformedRecordError
		if errors.As(err, &malformed) {
			return nil, err
		}
		return nil, storageErr("load", err)
	}
	return out, nil
}

func (e *Engine) logEvent(ctx context.Context, event Event) {
	if err := e.events.LogEvent(ctx, event); err != nil {
		slog.Warn("failed to log progress event", "type", event.EventType, "error", err)
	}
}

func (e *Engine) publish(userID string, rec *ProgressRecord) {
	if e.publisher != nil {
		e.publisher.Publish(userID, rec.Clone())
	}
}

// keyedMutex serializes work per (userID, moduleID) key. Locks are created
// on demand and kept for the life of the process.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func (k *keyedMutex) lock(key string) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*sync.Mutex)
	}
	l, ok := k.locks[key]
	if !ok {
		l = &sync.Mutex{}
		k.locks[key] = l
	}
	k.mu.Unlock()

	l.Lock()
	return l.Unlock
}
