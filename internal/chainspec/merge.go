// Package chainspec generates and customizes chain specifications: source
// resolution, plain-spec patching, raw conversion and per-node key material.
package chainspec

import (
	"encoding/json"
	"fmt"
	"strings"
)

// DeepMerge folds overlay into base in place. Two objects under the same key
// merge key-wise; any other pairing (scalars, arrays, mismatched types) is
// won by the overlay value.
func DeepMerge(base, overlay map[string]any) {
	for key, val := range overlay {
		if next, ok := val.(map[string]any); ok {
			if cur, ok := base[key].(map[string]any); ok {
				DeepMerge(cur, next)
				continue
			}
		}
		base[key] = val
	}
}

// MergeJSON applies an overlay JSON document to a base one and returns the
// merged tree re-encoded. Empty inputs short-circuit to the other side.
func MergeJSON(base, overlay []byte) ([]byte, error) {
	switch {
	case len(overlay) == 0:
		return base, nil
	case len(base) == 0:
		return overlay, nil
	}

	trees := make([]map[string]any, 2)
	for i, doc := range [][]byte{base, overlay} {
		if err := json.Unmarshal(doc, &trees[i]); err != nil {
			return nil, fmt.Errorf("merge input %d is not a JSON object: %w", i, err)
		}
	}
	DeepMerge(trees[0], trees[1])

	return json.MarshalIndent(trees[0], "", "  ")
}

// getPath walks a slash-separated path through nested maps.
func getPath(tree map[string]any, path string) (any, bool) {
	parts := strings.Split(path, "/")
	cur := any(tree)
	for _, p := range parts {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[p]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// setPath writes value at a slash-separated path, creating intermediate maps.
func setPath(tree map[string]any, path string, value any) error {
	parts := strings.Split(path, "/")
	cur := tree
	for _, p := range parts[:len(parts)-1] {
		next, ok := cur[p]
		if !ok {
			child := map[string]any{}
			cur[p] = child
			cur = child
			continue
		}
		m, ok := next.(map[string]any)
		if !ok {
			return fmt.Errorf("path element %q is not an object", p)
		}
		cur = m
	}
	cur[parts[len(parts)-1]] = value
	return nil
}

// clearPath empties the value at path when it exists: arrays become empty
// arrays, maps empty maps. Missing paths are left alone.
func clearPath(tree map[string]any, path string) {
	parent, last, ok := parentOf(tree, path)
	if !ok {
		return
	}
	switch parent[last].(type) {
	case []any:
		parent[last] = []any{}
	case map[string]any:
		parent[last] = map[string]any{}
	}
}

func parentOf(tree map[string]any, path string) (map[string]any, string, bool) {
	parts := strings.Split(path, "/")
	cur := any(tree)
	for _, p := range parts[:len(parts)-1] {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, "", false
		}
		cur, ok = m[p]
		if !ok {
			return nil, "", false
		}
	}
	m, ok := cur.(map[string]any)
	if !ok {
		return nil, "", false
	}
	if _, ok := m[parts[len(parts)-1]]; !ok {
		return nil, "", false
	}
	return m, parts[len(parts)-1], true
}

// appendPath appends value to the array at path, creating it when missing.
func appendPath(tree map[string]any, path string, value any) error {
	existing, ok := getPath(tree, path)
	if !ok {
		return setPath(tree, path, []any{value})
	}
	arr, ok := existing.([]any)
	if !ok {
		return fmt.Errorf("path %q is not an array", path)
	}
	return setPath(tree, path, append(arr, value))
}
