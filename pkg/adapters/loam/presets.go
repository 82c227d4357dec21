package loam

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/aretw0/langrun/pkg/domain"
	"github.com/aretw0/loam"
)

// PresetMetadata is the front matter of a preset document:
//
//	---
//	id: gemini-precise
//	description: Low temperature answers
//	tweaks:
//	  GoogleGenerativeAIModel-VIX5X:
//	    temperature: 0.1
//	---
//	Free-form notes.
type PresetMetadata struct {
	ID          string        `json:"id" mapstructure:"id"`
	Description string        `json:"description" mapstructure:"description"`
	Tweaks      domain.Tweaks `json:"tweaks" mapstructure:"tweaks"`
}

// Preset is a named Tweaks mapping with its documentation.
type Preset struct {
	Name        string        `json:"name"`
	Description string        `json:"description,omitempty"`
	Notes       string        `json:"notes,omitempty"`
	Tweaks      domain.Tweaks `json:"tweaks"`
}

// Presets implements ports.PresetStore on a Loam repository.
type Presets struct {
	Repo *loam.TypedRepository[PresetMetadata]
}

// New wraps an existing typed repository.
func New(repo *loam.TypedRepository[PresetMetadata]) *Presets {
	return &Presets{Repo: repo}
}

// Open initialises a read-only, strict Loam repository at dir.
// Strict mode keeps numbers as json.Number, so large integers survive.
func Open(dir string) (*Presets, error) {
	absPath, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("invalid path: %w", err)
	}
	repo, err := loam.Init(absPath,
		loam.WithStrict(true),
		loam.WithReadOnly(true),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize loam: %w", err)
	}
	return New(loam.NewTypedRepository[PresetMetadata](repo)), nil
}

// Get returns the tweaks of the named preset.
func (p *Presets) Get(ctx context.Context, name string) (domain.Tweaks, error) {
	preset, err := p.Describe(ctx, name)
	if err != nil {
		return nil, err
	}
	return preset.Tweaks, nil
}

// Describe returns the whole preset.
func (p *Presets) Describe(ctx context.Context, name string) (*Preset, error) {
	docID, err := p.resolve(ctx, name)
	if err != nil {
		return nil, err
	}

	doc, err := p.Repo.Get(ctx, docID)
	if err != nil {
		return nil, fmt.Errorf("loam get failed for %s: %w", name, err)
	}

	tweaks := doc.Data.Tweaks
	if tweaks == nil {
		tweaks = domain.Tweaks{}
	}
	return &Preset{
		Name:        name,
		Description: doc.Data.Description,
		Notes:       strings.TrimSpace(doc.Content),
		Tweaks:      tweaks,
	}, nil
}

// List returns the preset names, sorted.
func (p *Presets) List(ctx context.Context) ([]string, error) {
	index, err := p.index(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(index))
	for name := range index {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// resolve maps a preset name to the Loam document id that defines it.
func (p *Presets) resolve(ctx context.Context, name string) (string, error) {
	index, err := p.index(ctx)
	if err != nil {
		return "", err
	}
	docID, ok := index[name]
	if !ok {
		return "", fmt.Errorf("%w: %s", domain.ErrPresetNotFound, name)
	}
	return docID, nil
}

// index maps preset names (front matter id, or file name without extension) to document ids.
func (p *Presets) index(ctx context.Context) (map[string]string, error) {
	docs, err := p.Repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("loam list failed: %w", err)
	}

	index := make(map[string]string, len(docs))
	for _, doc := range docs {
		rawID := doc.Data.ID
		if rawID == "" {
			rawID = doc.ID
		}
		name := trimExtension(rawID)
		if existing, ok := index[name]; ok {
			return nil, fmt.Errorf("collision detected: preset '%s' is defined in both '%s' and '%s'", name, existing, doc.ID)
		}
		index[name] = doc.ID
	}
	return index, nil
}

func trimExtension(id string) string {
	if ext := filepath.Ext(id); ext != "" {
		return filepath.ToSlash(strings.TrimSuffix(id, ext))
	}
	return filepath.ToSlash(id)
}
