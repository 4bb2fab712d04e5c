package progress

import (
	"encoding/json"
	"fmt"

	"github.com/xeipuuv/gojsonschema"
)

// canonicalSchema describes the persisted document shape. Stored documents
// that validate against it are decoded straight into a ProgressRecord;
// anything else goes through legacy repair.
const canonicalSchema = `{
  "type": "object",
  "properties": {
    "moduleId": {"type": "string"},
    "parts": {
      "type": "object",
      "additionalProperties": {
        "type": "object",
        "additionalProperties": {
          "type": "object",
          "properties": {
            "userAnswer": {"type": "string"},
            "isCorrect": {"type": "boolean"},
            "timestamp": {"type": "string"}
          },
          "required": ["userAnswer", "isCorrect"]
        }
      },
      "propertyNames": {"pattern": "^.*[^0-9].*$|^$"}
    },
    "completedExercises": {"type": "array", "items": {"type": "string"}},
    "totalExercises": {"type": "integer", "minimum": 0},
    "score": {"type": "integer"},
    "percentage": {"type": "integer"},
    "completed": {"type": "boolean"},
    "startedAt": {"type": "string"},
    "lastUpdated": {"type": "string"},
    "completedAt": {"type": ["string", "null"]}
  },
  "propertyNames": {"pattern": "^.*[^0-9].*$|^$"},
  "additionalProperties": true
}`

var schemaLoader = gojsonschema.NewStringLoader(canonicalSchema)

// DecodeRecord turns a raw stored document into a canonical ProgressRecord.
// This is the schema-sniffing step at the storage boundary: legacy-shaped
// documents are repaired by the normalizer, canonical ones are validated and
// decoded directly, and anything that is not a JSON object at all comes back
// as a MalformedRecordError carrying the raw bytes.
func DecodeRecord(userID, moduleID string, raw []byte) (*ProgressRecord, error) {
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, &MalformedRecordError{
			UserID:   userID,
			ModuleID: moduleID,
			Raw:      append([]byte{}, raw...),
			Reason:   fmt.Sprintf("not a JSON object: %v", err),
		}
	}

	if IsLegacyDoc(doc) {
		rec := NormalizeDoc(doc)
		if rec.ModuleID == "" {
			rec.ModuleID = moduleID
		}
		return rec, nil
	}

	if result, err := gojsonschema.Validate(schemaLoader, gojsonschema.NewBytesLoader(raw)); err == nil && result.Valid() {
		var rec ProgressRecord
		if err := json.Unmarshal(raw, &rec); err == nil {
			fillDefaults(&rec)
			if rec.ModuleID == "" {
				rec.ModuleID = moduleID
			}
			return &rec, nil
		}
	}

	// Canonical-looking but not schema-valid: run the repair path rather
	// than failing, so a partially written document still loads.
	rec := NormalizeDoc(doc)
	if rec.ModuleID == "" {
		rec.ModuleID = moduleID
	}
	return rec, nil
}

// EncodeRecord serializes a record to its persisted document form.
func EncodeRecord(rec *ProgressRecord) ([]byte, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("encode progress record: %w", err)
	}
	return data, nil
}
