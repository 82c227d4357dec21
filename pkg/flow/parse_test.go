package flow_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/aretw0/langrun/pkg/domain"
	"github.com/aretw0/langrun/pkg/flow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadFile_Export(t *testing.T) {
	f, err := flow.ReadFile(filepath.Join("testdata", "basic.json"))
	require.NoError(t, err)

	assert.Equal(t, "0b6a1f4e-2b7e-4c53-9d7a-6f1f0c1d9a11", f.ID)
	assert.Equal(t, "Basic Prompting", f.Name)
	require.Len(t, f.Nodes(), 2)
	assert.Len(t, f.Edges(), 1)
}

func TestReadFile_PreservesLargeIntegersAndUnknownFields(t *testing.T) {
	f, err := flow.ReadFile(filepath.Join("testdata", "basic.json"))
	require.NoError(t, err)

	out, err := flow.Marshal(f)
	require.NoError(t, err)
	assert.Contains(t, string(out), "9007199254740993")
	assert.Contains(t, string(out), `"is_component":false`)
	assert.Contains(t, string(out), `"viewport"`)
}

func TestReadFile_NotFound(t *testing.T) {
	_, err := flow.ReadFile(filepath.Join(t.TempDir(), "missing.json"))
	assert.ErrorIs(t, err, domain.ErrFlowNotFound)
}

func TestReadFile_NamesFlowAfterFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "support-bot.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"nodes":[{"id":"A"}],"edges":[]}`), 0644))

	f, err := flow.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "support-bot", f.Name)
}

func TestParse_YAML(t *testing.T) {
	doc := `
name: yaml-flow
data:
  nodes:
    - id: ChatOutput-lMVlG
      data:
        type: ChatOutput
        node:
          display_name: Chat Output
          template:
            sender_name:
              type: str
              value: AI
  edges: []
`
	f, err := flow.Parse([]byte(doc))
	require.NoError(t, err)
	assert.Equal(t, "yaml-flow", f.Name)
	nodes := f.Nodes()
	require.Len(t, nodes, 1)
	assert.Equal(t, []string{"sender_name"}, nodes[0].FieldNames())
}

func TestParse_Invalid(t *testing.T) {
	cases := map[string]string{
		"empty":         "   ",
		"broken json":   `{"data":`,
		"no nodes":      `{"data":{"edges":[]}}`,
		"node not obj":  `{"nodes":["x"]}`,
		"missing id":    `{"nodes":[{"data":{}}]}`,
		"duplicate ids": `{"nodes":[{"id":"A"},{"id":"A"}]}`,
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := flow.Parse([]byte(doc))
			assert.ErrorIs(t, err, domain.ErrInvalidFlow)
		})
	}
}

func TestResolve_Sources(t *testing.T) {
	path := filepath.Join("testdata", "basic.json")
	data, err := os.ReadFile(path)
	require.NoError(t, err)

	parsed, err := flow.Parse(data)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))

	sources := map[string]any{
		"path":   path,
		"inline": string(data),
		"bytes":  data,
		"raw":    json.RawMessage(data),
		"map":    decoded,
		"flow":   parsed,
	}
	for name, src := range sources {
		t.Run(name, func(t *testing.T) {
			f, err := flow.Resolve(src)
			require.NoError(t, err)
			assert.Len(t, f.Nodes(), 2)
		})
	}
}

func TestResolve_Unsupported(t *testing.T) {
	_, err := flow.Resolve(42)
	assert.ErrorIs(t, err, domain.ErrInvalidFlow)

	_, err = flow.Resolve(nil)
	assert.ErrorIs(t, err, domain.ErrInvalidFlow)

	var nilFlow *domain.Flow
	_, err = flow.Resolve(nilFlow)
	assert.ErrorIs(t, err, domain.ErrInvalidFlow)
}

func TestClone_IsDeep(t *testing.T) {
	f, err := flow.ReadFile(filepath.Join("testdata", "basic.json"))
	require.NoError(t, err)

	c := flow.Clone(f)
	c.Nodes()[0].Template["sender_name"].(map[string]any)["value"] = "Changed"

	assert.Equal(t, "User", f.Nodes()[0].Template["sender_name"].(map[string]any)["value"])
	assert.Equal(t, f.ID, c.ID)
}
