// Package gwconfig provides generic config-tree helpers (a YAML-decoded
// map[string]any/[]any document) plus typed accessors for the one subtree
// the secrets core owns: secrets.sources.*.
package gwconfig

import (
	"encoding/json"
	"fmt"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Tree is a config document decoded into Go's generic JSON-like shape:
// map[string]any, []any, string, float64/int, bool, nil. It is the shape
// internal/jsonpointer walks.
type Tree map[string]any

// LoadYAML decodes YAML bytes into a Tree. yaml.v3 decodes mappings into
// map[string]any natively when the target is `any`, so no intermediate
// map[any]any conversion is needed (unlike yaml.v2).
func LoadYAML(data []byte) (Tree, error) {
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	m, ok := raw.(map[string]any)
	if !ok {
		if raw == nil {
			return Tree{}, nil
		}
		return nil, fmt.Errorf("decode config: top-level document is not a mapping")
	}
	return Tree(m), nil
}

// LoadJSON decodes JSON bytes into a Tree, for auth-profile stores, which
// are plain JSON rather than YAML.
func LoadJSON(data []byte) (Tree, error) {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode auth store: %w", err)
	}
	m, ok := raw.(map[string]any)
	if !ok {
		if raw == nil {
			return Tree{}, nil
		}
		return nil, fmt.Errorf("decode auth store: top-level document is not a mapping")
	}
	return Tree(m), nil
}

// DumpYAML encodes a Tree back to YAML bytes, for writing a migrated
// config back to disk.
func DumpYAML(tree Tree) ([]byte, error) {
	data, err := yaml.Marshal(map[string]any(tree))
	if err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	return data, nil
}

// DeepCopy returns a structural copy of value with no aliasing between the
// input and output graphs. Snapshot building and migration planning both
// depend on this: structural-equality checks decide whether a file needs to
// be rewritten, so "before" and "next" states must never share substructure.
func DeepCopy(value any) any {
	switch v := value.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, sub := range v {
			out[k] = DeepCopy(sub)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, sub := range v {
			out[i] = DeepCopy(sub)
		}
		return out
	default:
		return v
	}
}

// StructurallyEqual reports whether a and b represent the same JSON-like
// value, independent of map key iteration order or float/int representation
// wobble introduced by decoding.
func StructurallyEqual(a, b any) bool {
	switch av := a.(type) {
	case map[string]any:
		bv, ok := b.(map[string]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for k, v := range av {
			bvv, ok := bv[k]
			if !ok || !StructurallyEqual(v, bvv) {
				return false
			}
		}
		return true
	case []any:
		bv, ok := b.([]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i, v := range av {
			if !StructurallyEqual(v, bv[i]) {
				return false
			}
		}
		return true
	case int:
		if bf, ok := b.(float64); ok {
			return float64(av) == bf
		}
		return a == b
	case float64:
		if bi, ok := b.(int); ok {
			return av == float64(bi)
		}
		return a == b
	default:
		return a == b
	}
}

// AsString normalizes a decoded scalar to a string for the trim/compare
// steps the per-site migration rules need, without requiring the caller to
// know whether YAML decoded a bare value as string or number. Any other type,
// bool included, returns ("", false).
func AsString(value any) (string, bool) {
	switch v := value.(type) {
	case string:
		return v, true
	case int:
		return strconv.Itoa(v), true
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), true
	default:
		return "", false
	}
}
