package migrate

import "sort"

// navigate walks a chain of nested map[string]any fields, returning false
// if any segment is absent or not an object.
func navigate(root map[string]any, path ...string) (map[string]any, bool) {
	cur := root
	for _, key := range path {
		next, ok := cur[key].(map[string]any)
		if !ok {
			return nil, false
		}
		cur = next
	}
	return cur, true
}

// sortedKeys returns m's keys in lexical order, for deterministic iteration.
func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
