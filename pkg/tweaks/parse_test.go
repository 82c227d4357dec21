package tweaks_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/aretw0/langrun/pkg/domain"
	"github.com/aretw0/langrun/pkg/tweaks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAssignments(t *testing.T) {
	got, err := tweaks.ParseAssignments([]string{
		"ChatInput-5Jlkw.input_value=hello",
		"GoogleGenerativeAIModel-VIX5X.temperature=0.2",
		"Google Generative AI Embeddings-8OUsF.model=models/text-embedding-004",
		"ChatInput-5Jlkw.should_store_message=false",
		"sender_name=Bot",
		"Prompt-bbTEe.template=a=b",
	})
	require.NoError(t, err)

	assert.Equal(t, domain.Tweaks{
		"ChatInput-5Jlkw": map[string]any{
			"input_value":          "hello",
			"should_store_message": false,
		},
		"GoogleGenerativeAIModel-VIX5X":         map[string]any{"temperature": 0.2},
		"Google Generative AI Embeddings-8OUsF": map[string]any{"model": "models/text-embedding-004"},
		"Prompt-bbTEe":                          map[string]any{"template": "a=b"},
		"sender_name":                           "Bot",
	}, got)
}

func TestParseAssignments_DottedNodeName(t *testing.T) {
	got, err := tweaks.ParseAssignments([]string{"Model v1.5.temperature=1"})
	require.NoError(t, err)
	assert.Equal(t, domain.Tweaks{"Model v1.5": map[string]any{"temperature": float64(1)}}, got)
}

func TestParseAssignments_Invalid(t *testing.T) {
	for _, item := range []string{"no-equals", "=value", ".field=1", "Node.=1"} {
		_, err := tweaks.ParseAssignments([]string{item})
		assert.Error(t, err, item)
	}
}

func TestReadFile(t *testing.T) {
	dir := t.TempDir()
	jsonPath := filepath.Join(dir, "t.json")
	yamlPath := filepath.Join(dir, "t.yaml")
	require.NoError(t, os.WriteFile(jsonPath, []byte(`{"AstraDB-uzyaj": {"collection_name": "docs"}}`), 0644))
	require.NoError(t, os.WriteFile(yamlPath, []byte("AstraDB-uzyaj:\n  collection_name: docs\n"), 0644))

	for _, path := range []string{jsonPath, yamlPath} {
		got, err := tweaks.ReadFile(path)
		require.NoError(t, err, path)
		assert.Equal(t, domain.Tweaks{"AstraDB-uzyaj": map[string]any{"collection_name": "docs"}}, got, path)
	}

	_, err := tweaks.ReadFile(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)
}

func TestMerge(t *testing.T) {
	base := domain.Tweaks{
		"AstraDB-uzyaj": map[string]any{"collection_name": "docs", "number_of_results": 4},
		"sender_name":   "User",
	}
	override := domain.Tweaks{
		"AstraDB-uzyaj": map[string]any{"number_of_results": 8},
		"Memory-I6yT5":  map[string]any{"n_messages": 10},
	}

	got := tweaks.Merge(base, override)
	assert.Equal(t, domain.Tweaks{
		"AstraDB-uzyaj": map[string]any{"collection_name": "docs", "number_of_results": 8},
		"Memory-I6yT5":  map[string]any{"n_messages": 10},
		"sender_name":   "User",
	}, got)

	assert.Equal(t, 4, base["AstraDB-uzyaj"].(map[string]any)["number_of_results"])
}

func TestMerge_Empty(t *testing.T) {
	assert.Equal(t, domain.Tweaks{}, tweaks.Merge())
	assert.Equal(t, domain.Tweaks{}, tweaks.Merge(nil, domain.Tweaks{}))
}
