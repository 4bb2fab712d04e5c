package progress

import (
	"context"
	"sync"
	"time"
)

// CompletionUpdate is the partial patch applied by the manual completion
// override. Everything else goes through whole-document Save.
type CompletionUpdate struct {
	Completed   bool
	Percentage  int
	CompletedAt time.Time
	Score       *int // nil leaves the stored score untouched
	LastUpdated time.Time
}

// Store persists one ProgressRecord per (userID, moduleID) key. Load returns
// ErrNotFound when no record is stored. Save has whole-document overwrite
// semantics and must be atomic; the engine relies on that plus its own
// per-key serialization to keep the scoring invariants under concurrency.
type Store interface {
	Load(ctx context.Context, userID, moduleID string) (*ProgressRecord, error)
	Save(ctx context.Context, userID, moduleID string, rec *ProgressRecord) error
	Update(ctx context.Context, userID, moduleID string, patch CompletionUpdate) error
	LoadMany(ctx context.Context, userID string, moduleIDs []string) (map[string]*ProgressRecord, error)
}

// MemoryStore is an in-memory Store implementation, used in tests and as a
// fallback when no database is configured. Records are deep-copied on both
// read and write so callers can never alias stored state.
type MemoryStore struct {
	records map[string]*ProgressRecord
	mu      sync.RWMutex
}

// NewMemoryStore creates a new in-memory progress store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]*ProgressRecord),
	}
}

func storeKey(userID, moduleID string) string {
	return userID + "/" + moduleID
}

func (s *MemoryStore) Load(_ context.Context, userID, moduleID string) (*ProgressRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[storeKey(userID, moduleID)]
	if !ok {
		return nil, ErrNotFound
	}
	return rec.Clone(), nil
}

func (s *MemoryStore) Save(_ context.Context, userID, moduleID string, rec *ProgressRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records[storeKey(userID, moduleID)] = rec.Clone()
	return nil
}

func (s *MemoryStore) Update(_ context.Context, userID, moduleID string, patch CompletionUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[storeKey(userID, moduleID)]
	if !ok {
		return ErrNotFound
	}
	applyCompletionUpdate(rec, patch)
	return nil
}

func (s *MemoryStore) LoadMany(_ context.Context, userID string, moduleIDs []string) (map[string]*ProgressRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]*ProgressRecord)
	for _, moduleID := range moduleIDs {
		if rec, ok := s.records[storeKey(userID, moduleID)]; ok {
			out[moduleID] = rec.Clone()
		}
	}
	return out, nil
}

func applyCompletionUpdate(rec *ProgressRecord, patch CompletionUpdate) {
	rec.Completed = patch.Completed
	rec.Percentage = patch.Percentage
	if !patch.CompletedAt.IsZero() {
		t := patch.CompletedAt
		rec.CompletedAt = &t
	}
	if patch.Score != nil {
		rec.Score = *patch.Score
	}
	if !patch.LastUpdated.IsZero() {
		rec.LastUpdated = patch.LastUpdated
	}
}
