// Package progress implements the progress and scoring engine: per-learner
// progress records, answer scoring, completion tracking, and the storage
// adapters that persist them.
package progress

import (
	"math"
	"time"
)

// CompletionThreshold is the percentage at or above which a module counts
// as completed.
const CompletionThreshold = 80

// AnswerRecord is one learner's response to one exercise. It is owned by its
// parent ProgressRecord and replaced wholesale on re-submission.
type AnswerRecord struct {
	UserAnswer string    `json:"userAnswer"`
	IsCorrect  bool      `json:"isCorrect"`
	Timestamp  time.Time `json:"timestamp"`
}

// ProgressRecord is one learner's progress in one content module. One record
// is persisted per (userID, moduleID) pair.
type ProgressRecord struct {
	ModuleID string `json:"moduleId"`

	// Parts maps partID -> exerciseID -> the latest answer.
	Parts map[string]map[string]AnswerRecord `json:"parts"`

	// CompletedExercises lists every exercise ever answered, across all
	// parts, regardless of correctness. It only grows.
	CompletedExercises []string `json:"completedExercises"`

	TotalExercises int  `json:"totalExercises"`
	Score          int  `json:"score"`
	Percentage     int  `json:"percentage"`
	Completed      bool `json:"completed"`

	StartedAt   time.Time  `json:"startedAt"`
	LastUpdated time.Time  `json:"lastUpdated"`
	CompletedAt *time.Time `json:"completedAt"`
}

// NewProgressRecord creates an empty record for a module.
func NewProgressRecord(moduleID string, now time.Time) *ProgressRecord {
	return &ProgressRecord{
		ModuleID:           moduleID,
		Parts:              map[string]map[string]AnswerRecord{},
		CompletedExercises: []string{},
		StartedAt:          now,
		LastUpdated:        now,
	}
}

// Answer returns the answer recorded for (partID, exerciseID), if any.
func (r *ProgressRecord) Answer(partID, exerciseID string) (AnswerRecord, bool) {
	part, ok := r.Parts[partID]
	if !ok {
		return AnswerRecord{}, false
	}
	a, ok := part[exerciseID]
	return a, ok
}

// HasExercise reports whether the exercise is in the completed set.
func (r *ProgressRecord) HasExercise(exerciseID string) bool {
	for _, id := range r.CompletedExercises {
		if id == exerciseID {
			return true
		}
	}
	return false
}

// CountCorrect counts exercises whose current answer is correct.
func (r *ProgressRecord) CountCorrect() int {
	n := 0
	for _, part := range r.Parts {
		for _, a := range part {
			if a.IsCorrect {
				n++
			}
		}
	}
	return n
}

// Percent computes the completion percentage for a score/total pair.
// A zero total always yields 0.
func Percent(score, total int) int {
	if total == 0 {
		return 0
	}
	return int(math.Round(float64(score) / float64(total) * 100))
}

// recompute re-derives score, percentage and completed from the parts map,
// and stamps completedAt when completed flips from false to true. The
// completedAt stamp records the most recent such transition; it is left
// untouched on later writes, including when the score later drops back
// below the threshold.
func (r *ProgressRecord) recompute(now time.Time) {
	wasCompleted := r.Completed

	r.Score = r.CountCorrect()
	r.Percentage = Percent(r.Score, r.TotalExercises)
	r.Completed = r.Percentage >= CompletionThreshold
	r.LastUpdated = now

	if r.Completed && !wasCompleted {
		t := now
		r.CompletedAt = &t
	}
}

// Clone returns a deep copy of the record.
func (r *ProgressRecord) Clone() *ProgressRecord {
	if r == nil {
		return nil
	}
	out := *r
	out.Parts = make(map[string]map[string]AnswerRecord, len(r.Parts))
	for partID, part := range r.Parts {
		cp := make(map[string]AnswerRecord, len(part))
		for exID, a := range part {
			cp[exID] = a
		}
		out.Parts[partID] = cp
	}
	out.CompletedExercises = append([]string{}, r.CompletedExercises...)
	if r.CompletedAt != nil {
		t := *r.CompletedAt
		out.CompletedAt = &t
	}
	return &out
}
