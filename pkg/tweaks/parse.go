package tweaks

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/aretw0/langrun/pkg/domain"
	"github.com/mohae/deepcopy"
	"gopkg.in/yaml.v3"
)

// ReadFile loads a Tweaks mapping from a JSON or YAML file.
func ReadFile(path string) (domain.Tweaks, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read tweaks %s: %w", path, err)
	}
	t, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

// Parse decodes a JSON or YAML Tweaks mapping.
func Parse(data []byte) (domain.Tweaks, error) {
	trimmed := bytes.TrimSpace(data)
	t := domain.Tweaks{}
	if len(trimmed) == 0 {
		return t, nil
	}
	if trimmed[0] == '{' {
		if err := json.Unmarshal(trimmed, &t); err != nil {
			return nil, fmt.Errorf("invalid tweaks: %w", err)
		}
		return t, nil
	}
	if err := yaml.Unmarshal(trimmed, &t); err != nil {
		return nil, fmt.Errorf("invalid tweaks: %w", err)
	}
	return t, nil
}

// ParseAssignments turns "Node.field=value" items into a Tweaks mapping.
// An item without a node ("field=value") becomes a global tweak. Values that
// decode as JSON (numbers, booleans, objects, quoted strings) keep their type;
// anything else is taken as a plain string.
func ParseAssignments(items []string) (domain.Tweaks, error) {
	t := domain.Tweaks{}
	for _, item := range items {
		key, raw, ok := strings.Cut(item, "=")
		if !ok || strings.TrimSpace(key) == "" {
			return nil, fmt.Errorf("invalid tweak %q: expected Node.field=value", item)
		}
		value := decodeValue(raw)

		dot := strings.LastIndex(key, ".")
		if dot < 0 {
			t[key] = value
			continue
		}
		node, field := key[:dot], key[dot+1:]
		if node == "" || field == "" {
			return nil, fmt.Errorf("invalid tweak %q: expected Node.field=value", item)
		}
		fields, ok := domain.AsFieldMap(t[node])
		if !ok {
			fields = map[string]any{}
			t[node] = fields
		}
		fields[field] = value
	}
	return t, nil
}

func decodeValue(raw string) any {
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err == nil {
		return v
	}
	return raw
}

// Clone returns a deep copy of t.
func Clone(t domain.Tweaks) domain.Tweaks {
	if t == nil {
		return nil
	}
	c, _ := deepcopy.Copy(t).(domain.Tweaks)
	return c
}

// Merge layers mappings left to right. Node overrides are merged field by
// field, so a later layer only replaces the fields it names. The inputs are
// not modified.
func Merge(layers ...domain.Tweaks) domain.Tweaks {
	out := domain.Tweaks{}
	for _, layer := range layers {
		for key, value := range Clone(layer) {
			incoming, isNode := domain.AsFieldMap(value)
			existing, hadNode := domain.AsFieldMap(out[key])
			if !isNode || !hadNode {
				if isNode {
					out[key] = incoming
				} else {
					out[key] = value
				}
				continue
			}
			for field, v := range incoming {
				existing[field] = v
			}
			out[key] = existing
		}
	}
	return out
}
