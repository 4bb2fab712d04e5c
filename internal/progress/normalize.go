package progress

import (
	"sort"
	"strconv"
	"time"
)

// An earlier schema wrote per-module data under top-level numeric keys
// instead of the parts map. Normalization detects that shape and repairs it
// into a canonical ProgressRecord without losing any field the legacy shape
// actually populated. Normalizing an already-canonical document is a no-op
// beyond filling absent optional fields with their zero defaults.

// IsLegacyDoc reports whether a raw document was written under the legacy
// schema: any top-level key that parses as a pure integer marks it.
func IsLegacyDoc(doc map[string]any) bool {
	for k := range doc {
		if _, err := strconv.Atoi(k); err == nil {
			return true
		}
	}
	return false
}

// NormalizeDoc turns a raw document, legacy-shaped or canonical, into a
// canonical ProgressRecord. Fields are taken from the top level first, then
// from under numeric keys in ascending order; absent fields default to
// empty/zero values. It never fails: missing data degrades to defaults
// rather than erroring, because dropping recorded progress is worse than
// showing a zeroed field.
func NormalizeDoc(doc map[string]any) *ProgressRecord {
	sources := []map[string]any{doc}
	for _, k := range numericKeys(doc) {
		if nested, ok := doc[k].(map[string]any); ok {
			sources = append(sources, nested)
		}
	}

	rec := &ProgressRecord{
		ModuleID:           lookupString(sources, "moduleId"),
		Parts:              lookupParts(sources),
		CompletedExercises: lookupStrings(sources, "completedExercises"),
		TotalExercises:     lookupInt(sources, "totalExercises"),
		Score:              lookupInt(sources, "score"),
		Percentage:         lookupInt(sources, "percentage"),
		Completed:          lookupBool(sources, "completed"),
		StartedAt:          lookupTime(sources, "startedAt"),
		LastUpdated:        lookupTime(sources, "lastUpdated"),
	}
	if t := lookupTime(sources, "completedAt"); !t.IsZero() {
		rec.CompletedAt = &t
	}
	return rec
}

// fillDefaults replaces nil collections on a decoded canonical record so
// the engine never has to nil-check them. Populated fields are untouched.
func fillDefaults(rec *ProgressRecord) {
	if rec.Parts == nil {
		rec.Parts = map[string]map[string]AnswerRecord{}
	}
	if rec.CompletedExercises == nil {
		rec.CompletedExercises = []string{}
	}
}

func numericKeys(doc map[string]any) []string {
	var keys []string
	for k := range doc {
		if _, err := strconv.Atoi(k); err == nil {
			keys = append(keys, k)
		}
	}
	sort.Slice(keys, func(i, j int) bool {
		a, _ := strconv.Atoi(keys[i])
		b, _ := strconv.Atoi(keys[j])
		return a < b
	})
	return keys
}

func lookupString(sources []map[string]any, key string) string {
	for _, src := range sources {
		if s, ok := src[key].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

func lookupInt(sources []map[string]any, key string) int {
	for _, src := range sources {
		switch v := src[key].(type) {
		case float64:
			return int(v)
		case int:
			return v
		}
	}
	return 0
}

func lookupBool(sources []map[string]any, key string) bool {
	for _, src := range sources {
		if b, ok := src[key].(bool); ok {
			return b
		}
	}
	return false
}

func lookupTime(sources []map[string]any, key string) time.Time {
	for _, src := range sources {
		if s, ok := src[key].(string); ok {
			if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
				return t
			}
		}
	}
	return time.Time{}
}

func lookupStrings(sources []map[string]any, key string) []string {
	for _, src := range sources {
		arr, ok := src[key].([]any)
		if !ok {
			continue
		}
		out := make([]string, 0, len(arr))
		for _, v := range arr {
			if s, ok := v.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return []string{}
}

// lookupParts extracts the partID -> exerciseID -> answer mapping. Keys
// that do not match that shape (including numeric part keys, an artifact of
// the legacy schema) are skipped rather than carried over.
func lookupParts(sources []map[string]any) map[string]map[string]AnswerRecord {
	for _, src := range sources {
		raw, ok := src["parts"].(map[string]any)
		if !ok {
			continue
		}
		parts := make(map[string]map[string]AnswerRecord, len(raw))
		for partID, v := range raw {
			if _, err := strconv.Atoi(partID); err == nil {
				continue
			}
			exercises, ok := v.(map[string]any)
			if !ok {
				continue
			}
			part := make(map[string]AnswerRecord, len(exercises))
			for exID, ev := range exercises {
				ans, ok := ev.(map[string]any)
				if !ok {
					continue
				}
				part[exID] = AnswerRecord{
					UserAnswer: lookupString([]map[string]any{ans}, "userAnswer"),
					IsCorrect:  lookupBool([]map[string]any{ans}, "isCorrect"),
					Timestamp:  lookupTime([]map[string]any{ans}, "timestamp"),
				}
			}
			parts[partID] = part
		}
		return parts
	}
	return map[string]map[string]AnswerRecord{}
}
