package flow

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/aretw0/langrun/pkg/domain"
	"github.com/mohae/deepcopy"
	"gopkg.in/yaml.v3"
)

// Parse decodes a JSON or YAML flow document.
// JSON numbers are kept as json.Number so large integers are not rounded.
func Parse(data []byte) (*domain.Flow, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("%w: empty document", domain.ErrInvalidFlow)
	}

	var doc map[string]any
	if trimmed[0] == '{' {
		dec := json.NewDecoder(bytes.NewReader(trimmed))
		dec.UseNumber()
		if err := dec.Decode(&doc); err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrInvalidFlow, err)
		}
	} else if err := yaml.Unmarshal(trimmed, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidFlow, err)
	}

	return FromMap(doc)
}

// FromMap wraps an already decoded document. The map is used as is, not copied.
func FromMap(doc map[string]any) (*domain.Flow, error) {
	if doc == nil {
		return nil, fmt.Errorf("%w: empty document", domain.ErrInvalidFlow)
	}
	f := &domain.Flow{Doc: doc}
	f.ID, _ = doc["id"].(string)
	f.Name, _ = doc["name"].(string)
	f.Description, _ = doc["description"].(string)

	if err := Validate(f); err != nil {
		return nil, err
	}
	return f, nil
}

// Validate checks that the graph has a node list and that node ids are present and unique.
func Validate(f *domain.Flow) error {
	raw, ok := f.Graph()["nodes"].([]any)
	if !ok {
		return fmt.Errorf("%w: missing nodes", domain.ErrInvalidFlow)
	}

	seen := make(map[string]bool, len(raw))
	for i, item := range raw {
		node, ok := item.(map[string]any)
		if !ok {
			return fmt.Errorf("%w: node %d is not an object", domain.ErrInvalidFlow, i)
		}
		id, _ := node["id"].(string)
		if id == "" {
			return fmt.Errorf("%w: node %d has no id", domain.ErrInvalidFlow, i)
		}
		if seen[id] {
			return fmt.Errorf("%w: duplicate node id %q", domain.ErrInvalidFlow, id)
		}
		seen[id] = true
	}
	return nil
}

// ReadFile loads a flow from disk. A missing file yields domain.ErrFlowNotFound.
// Flows without a name are named after the file.
func ReadFile(path string) (*domain.Flow, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", domain.ErrFlowNotFound, path)
		}
		return nil, fmt.Errorf("read flow %s: %w", path, err)
	}

	f, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if f.Name == "" {
		f.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return f, nil
}

// Resolve turns the accepted source forms into a flow: a file path, inline
// JSON/YAML text, raw bytes, a decoded map, or an already parsed flow.
func Resolve(source any) (*domain.Flow, error) {
	switch src := source.(type) {
	case *domain.Flow:
		if src == nil {
			return nil, fmt.Errorf("%w: nil flow", domain.ErrInvalidFlow)
		}
		return src, nil
	case map[string]any:
		return FromMap(src)
	case []byte:
		return Parse(src)
	case json.RawMessage:
		return Parse(src)
	case string:
		if isInline(src) {
			return Parse([]byte(src))
		}
		return ReadFile(src)
	case nil:
		return nil, fmt.Errorf("%w: no flow source", domain.ErrInvalidFlow)
	}
	return nil, fmt.Errorf("%w: unsupported flow source %T", domain.ErrInvalidFlow, source)
}

func isInline(s string) bool {
	t := strings.TrimSpace(s)
	return strings.HasPrefix(t, "{") || strings.Contains(t, "\n")
}

// Clone returns a deep copy of f, so tweaks can be applied without touching the original.
func Clone(f *domain.Flow) *domain.Flow {
	c := *f
	c.Doc, _ = deepcopy.Copy(f.Doc).(map[string]any)
	return &c
}

// Marshal encodes the flow document as JSON.
func Marshal(f *domain.Flow) ([]byte, error) {
	return json.Marshal(f.Doc)
}
