package audit

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
)

// SensitiveFields are never written into a change set. Matching is exact
// and case-sensitive.
var SensitiveFields = map[string]struct{}{
	"passwordHash": {},
	"password":     {},
	"token":        {},
	"secret":       {},
}

// ComputeChanges reports every key of next whose value differs from the
// same key in prev. Keys present only in prev are not reported. Values are
// compared by their JSON encoding, so map key order does not matter. The
// result is nil when nothing changed.
func ComputeChanges(prev, next map[string]any) Changes {
	var changes Changes
	for key, newValue := range next {
		if _, sensitive := SensitiveFields[key]; sensitive {
			continue
		}
		oldValue := prev[key]
		if equalValues(oldValue, newValue) {
			continue
		}
		if changes == nil {
			changes = make(Changes)
		}
		changes[key] = Change{Old: oldValue, New: newValue}
	}
	return changes
}

func equalValues(a, b any) bool {
	ja, errA := json.Marshal(a)
	jb, errB := json.Marshal(b)
	if errA != nil || errB != nil {
		return reflect.DeepEqual(a, b)
	}
	return bytes.Equal(ja, jb)
}

// Snapshot converts an entity to the field map used by ComputeChanges,
// keyed by its JSON field names. A nil entity yields an empty map.
func Snapshot(entity any) (map[string]any, error) {
	if entity == nil {
		return map[string]any{}, nil
	}
	raw, err := json.Marshal(entity)
	if err != nil {
		return nil, fmt.Errorf("snapshot entity: %w", err)
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("snapshot entity: %w", err)
	}
	if out == nil {
		out = map[string]any{}
	}
	return out, nil
}

// Diff snapshots both entities and computes their change set.
func Diff(prev, next any) (Changes, error) {
	before, err := Snapshot(prev)
	if err != nil {
		return nil, err
	}
	after, err := Snapshot(next)
	if err != nil {
		return nil, err
	}
	return ComputeChanges(before, after), nil
}
