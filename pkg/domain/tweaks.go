package domain

import "sort"

// Tweaks is the caller-supplied set of per-node field overrides.
//
// Keys are node identifiers (or display names) mapping to a field -> value
// object. A key whose value is not an object is a global tweak: it applies to
// every node whose template declares that field.
type Tweaks map[string]any

// NodeKeys returns the keys that target a single node, sorted.
func (t Tweaks) NodeKeys() []string {
	keys := make([]string, 0, len(t))
	for k, v := range t {
		if _, ok := AsFieldMap(v); ok {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

// AsFieldMap reports whether v is an override object and returns it with string keys.
func AsFieldMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case Tweaks:
		return map[string]any(m), true
	case map[string]string:
		out := make(map[string]any, len(m))
		for k, val := range m {
			out[k] = val
		}
		return out, true
	case map[any]any:
		out := make(map[string]any, len(m))
		for k, val := range m {
			key, ok := k.(string)
			if !ok {
				return nil, false
			}
			out[key] = val
		}
		return out, true
	}
	return nil, false
}
