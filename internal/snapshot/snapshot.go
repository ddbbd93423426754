package snapshot

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
)

// Snapshot is a typed, immutable JSON capture of an entity graph. Commands
// take one before and one after every mutation; the pair feeds the audit
// trail and undo.
type Snapshot[T any] struct {
	data json.RawMessage
}

// Capture serializes the value into a snapshot.
func Capture[T any](value T) (Snapshot[T], error) {
	data, err := json.Marshal(value)
	if err != nil {
		return Snapshot[T]{}, fmt.Errorf("snapshot: capture: %w", err)
	}
	return Snapshot[T]{data: data}, nil
}

// FromRaw wraps previously persisted snapshot bytes. The payload must be
// valid JSON.
func FromRaw[T any](raw []byte) (Snapshot[T], error) {
	if len(raw) == 0 {
		return Snapshot[T]{}, nil
	}
	if !json.Valid(raw) {
		return Snapshot[T]{}, errors.New("snapshot: payload is not valid json")
	}
	return Snapshot[T]{data: append(json.RawMessage(nil), raw...)}, nil
}

// IsZero reports whether the snapshot holds no capture.
func (s Snapshot[T]) IsZero() bool {
	return len(s.data) == 0
}

// Raw returns the serialized form for persistence. The returned slice is a
// copy.
func (s Snapshot[T]) Raw() json.RawMessage {
	if len(s.data) == 0 {
		return nil
	}
	return append(json.RawMessage(nil), s.data...)
}

// Restore reconstructs the captured value. Restoring a zero snapshot yields
// the zero value.
func (s Snapshot[T]) Restore() (T, error) {
	var value T
	if len(s.data) == 0 {
		return value, nil
	}
	if err := json.Unmarshal(s.data, &value); err != nil {
		return value, fmt.Errorf("snapshot: restore: %w", err)
	}
	return value, nil
}

// Diff returns the top-level JSON keys whose values differ between the two
// snapshots, sorted for stable output. Non-object payloads produce a single
// "." entry when they differ.
func (s Snapshot[T]) Diff(other Snapshot[T]) []string {
	if bytes.Equal(s.data, other.data) {
		return nil
	}
	left, right := map[string]json.RawMessage{}, map[string]json.RawMessage{}
	if err := json.Unmarshal(s.data, &left); err != nil {
		return []string{"."}
	}
	if err := json.Unmarshal(other.data, &right); err != nil {
		return []string{"."}
	}
	changed := map[string]struct{}{}
	for key, lv := range left {
		rv, ok := right[key]
		if !ok || !jsonEqual(lv, rv) {
			changed[key] = struct{}{}
		}
	}
	for key := range right {
		if _, ok := left[key]; !ok {
			changed[key] = struct{}{}
		}
	}
	keys := make([]string, 0, len(changed))
	for key := range changed {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func jsonEqual(a, b json.RawMessage) bool {
	var av, bv any
	if err := json.Unmarshal(a, &av); err != nil {
		return false
	}
	if err := json.Unmarshal(b, &bv); err != nil {
		return false
	}
	return reflectDeepEqualJSON(av, bv)
}

func reflectDeepEqualJSON(a, b any) bool {
	switch av := a.(type) {
	case map[string]any:
		bv, ok := b.(map[string]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for key, val := range av {
			other, ok := bv[key]
			if !ok || !reflectDeepEqualJSON(val, other) {
				return false
			}
		}
		return true
	case []any:
		bv, ok := b.([]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !reflectDeepEqualJSON(av[i], bv[i]) {
				return false
			}
		}
		return true
	default:
		return a == b
	}
}
