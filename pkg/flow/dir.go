package flow

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/aretw0/langrun/pkg/domain"
)

var flowExtensions = []string{".json", ".yaml", ".yml"}

// DirLoader implements ports.FlowLoader over a directory of flow files.
// A flow's name is its file name without extension.
type DirLoader struct {
	Root string
}

// NewDirLoader creates a loader rooted at dir.
func NewDirLoader(dir string) *DirLoader {
	return &DirLoader{Root: dir}
}

// Load reads the named flow. Names may not contain path separators.
func (l *DirLoader) Load(ctx context.Context, name string) (*domain.Flow, error) {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return nil, fmt.Errorf("%w: invalid flow name %q", domain.ErrFlowNotFound, name)
	}

	candidates := []string{name}
	if filepath.Ext(name) == "" {
		candidates = candidates[:0]
		for _, ext := range flowExtensions {
			candidates = append(candidates, name+ext)
		}
	}

	for _, candidate := range candidates {
		path := filepath.Join(l.Root, candidate)
		if info, err := os.Stat(path); err != nil || info.IsDir() {
			continue
		}
		f, err := ReadFile(path)
		if err != nil {
			return nil, err
		}
		return f, nil
	}
	return nil, fmt.Errorf("%w: %s", domain.ErrFlowNotFound, name)
}

// List returns the names of the flows in the directory, sorted.
func (l *DirLoader) List(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(l.Root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to list flows: %w", err)
	}

	seen := make(map[string]bool)
	names := []string{}
	for _, entry := range entries {
		if entry.IsDir() || !isFlowFile(entry.Name()) {
			continue
		}
		name := strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name()))
		if seen[name] {
			continue
		}
		seen[name] = true
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func isFlowFile(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range flowExtensions {
		if ext == e {
			return true
		}
	}
	return false
}
