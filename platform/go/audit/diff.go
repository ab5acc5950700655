package audit

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
)

// Snapshot converts a domain value into the generic map form stored in audit
// records. The JSON round trip normalizes times, decimals and nested structs
// into plain values, so two snapshots compare structurally rather than by Go
// type identity.
func Snapshot(v any) (map[string]any, error) {
	if v == nil {
		return nil, nil
	}

	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal snapshot: %w", err)
	}

	var snapshot map[string]any
	if err := json.Unmarshal(raw, &snapshot); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}

	return snapshot, nil
}

// ChangedFields computes the field-level diff between two snapshots: the
// symmetric union of both key sets, keeping a key when its values differ
// structurally. Nested objects and arrays are compared by value. The result is
// sorted for stable audit records.
func ChangedFields(oldValues, newValues map[string]any) []string {
	keys := make(map[string]struct{}, len(oldValues)+len(newValues))
	for k := range oldValues {
		keys[k] = struct{}{}
	}
	for k := range newValues {
		keys[k] = struct{}{}
	}

	var changed []string
	for k := range keys {
		oldV, oldOk := oldValues[k]
		newV, newOk := newValues[k]
		if oldOk != newOk || !reflect.DeepEqual(oldV, newV) {
			changed = append(changed, k)
		}
	}

	sort.Strings(changed)
	return changed
}
